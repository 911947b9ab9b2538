// Package watcher provides glob-scoped filesystem watch subscriptions on top
// of fsnotify. Directories under a pattern's fixed base are watched
// recursively, events are debounced per path, and each subscription filters
// by its own glob and ignore patterns.
package watcher
