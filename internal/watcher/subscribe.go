package watcher

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"

	"github.com/bmatcuk/doublestar/v4"
)

type subscription struct {
	id      uint64
	pattern string   // absolute slash-separated glob
	ignore  []string // slash-separated ignore patterns
	base    string   // native base directory holding the watches
	deep    bool     // watch subdirectories of base
	once    bool
	fired   bool
	fn      func(Event)
	dirs    []string // native dirs this subscription holds refs on
}

func (sub *subscription) ignored(slashPath string) bool {
	for _, pattern := range sub.ignore {
		if ok, _ := doublestar.Match(pattern, slashPath); ok {
			return true
		}
	}
	return false
}

func (sub *subscription) matches(slashPath string) bool {
	if sub.ignored(slashPath) {
		return false
	}
	ok, err := doublestar.Match(sub.pattern, slashPath)
	return err == nil && ok
}

type watchHandle struct {
	watcher *Watcher
	id      uint64
	once    sync.Once
}

func (handle *watchHandle) Close() error {
	if handle == nil || handle.watcher == nil {
		return nil
	}
	handle.once.Do(func() {
		handle.watcher.removeSubscription(handle.id)
	})
	return nil
}

// Subscribe registers a continuous subscription for the spec.
func (watcher *Watcher) Subscribe(spec Spec, fn func(Event)) (Handle, error) {
	return watcher.subscribe(spec, fn, false)
}

// SubscribeOnce registers a subscription that delivers the first matching
// change and then retires itself.
func (watcher *Watcher) SubscribeOnce(spec Spec, fn func(Event)) (Handle, error) {
	return watcher.subscribe(spec, fn, true)
}

func (watcher *Watcher) subscribe(spec Spec, fn func(Event), once bool) (Handle, error) {
	if watcher == nil {
		return nil, errors.New("watcher is nil")
	}
	if spec.Pattern == "" {
		return nil, errors.New("pattern is required")
	}
	if fn == nil {
		return nil, errors.New("callback is required")
	}

	absPattern, err := filepath.Abs(spec.Pattern)
	if err != nil {
		return nil, err
	}
	slashPattern := filepath.ToSlash(absPattern)
	if !doublestar.ValidatePattern(slashPattern) {
		return nil, fmt.Errorf("invalid watch pattern %q", spec.Pattern)
	}

	sub := &subscription{
		pattern: slashPattern,
		ignore:  normalizeIgnore(spec.Ignore),
		once:    once,
		fn:      fn,
	}
	if err := resolveBase(sub); err != nil {
		return nil, err
	}

	dirs := []string{sub.base}
	if sub.deep {
		dirs = append(dirs, walkDirs(sub.base, sub.ignore)...)
	}

	watcher.mutex.Lock()
	if watcher.closed {
		watcher.mutex.Unlock()
		return nil, errors.New("watcher is closed")
	}
	newDirs := 0
	for _, dir := range dirs {
		if watcher.dirs[dir] == 0 {
			newDirs++
		}
	}
	if len(watcher.dirs)+newDirs > watcher.maxWatches {
		watcher.mutex.Unlock()
		return nil, ErrMaxWatchesExceeded
	}
	watcher.nextID++
	sub.id = watcher.nextID
	watcher.subs[sub.id] = sub
	added := watcher.refDirsLocked(sub, dirs)
	activeCount := len(watcher.dirs)
	source := watcher.fs
	watcher.mutex.Unlock()

	for _, dir := range added {
		if err := source.Add(dir); err != nil {
			watcher.removeSubscription(sub.id)
			watcher.logWarn("watch add failed", map[string]string{
				"path":  dir,
				"error": err.Error(),
			})
			return nil, err
		}
		watcher.logDebug("watch added", dir, activeCount)
	}

	return &watchHandle{watcher: watcher, id: sub.id}, nil
}

// resolveBase fills in the fixed base directory for a pattern. A literal
// pattern naming a directory is widened to everything beneath it; a literal
// file pattern watches the parent directory and matches the exact path.
func resolveBase(sub *subscription) error {
	base, deep := splitPattern(sub.pattern)
	if base == sub.pattern {
		info, err := os.Stat(filepath.FromSlash(sub.pattern))
		if err == nil && info.IsDir() {
			sub.base = filepath.FromSlash(sub.pattern)
			sub.pattern = path.Join(sub.pattern, "**", "*")
			sub.deep = true
			return nil
		}
		sub.base = filepath.FromSlash(path.Dir(sub.pattern))
		sub.deep = false
		if _, err := os.Stat(sub.base); err != nil {
			return err
		}
		return nil
	}

	sub.base = filepath.FromSlash(base)
	sub.deep = deep
	info, err := os.Stat(sub.base)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("watch base %q is not a directory", sub.base)
	}
	return nil
}

// splitPattern returns the pattern prefix before the first meta segment.
// When the pattern has no meta characters the pattern itself is returned.
func splitPattern(pattern string) (string, bool) {
	segments := strings.Split(pattern, "/")
	for i, segment := range segments {
		if !strings.ContainsAny(segment, "*?[{") {
			continue
		}
		base := strings.Join(segments[:i], "/")
		if base == "" {
			base = "/"
		}
		rest := segments[i:]
		deep := len(rest) > 1 || strings.Contains(rest[0], "**")
		return base, deep
	}
	return pattern, false
}

func normalizeIgnore(patterns []string) []string {
	if len(patterns) == 0 {
		return nil
	}
	normalized := make([]string, 0, len(patterns))
	for _, pattern := range patterns {
		if pattern == "" {
			continue
		}
		normalized = append(normalized, filepath.ToSlash(pattern))
	}
	return normalized
}

func walkDirs(root string, ignore []string) []string {
	dirs := []string{}
	_ = filepath.WalkDir(root, func(current string, entry fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !entry.IsDir() || current == root {
			return nil
		}
		slashed := filepath.ToSlash(current)
		for _, pattern := range ignore {
			if ok, _ := doublestar.Match(pattern, slashed); ok {
				return filepath.SkipDir
			}
		}
		dirs = append(dirs, current)
		return nil
	})
	return dirs
}

// refDirsLocked records the subscription's interest in each dir and returns
// the dirs that need an fsnotify registration.
func (watcher *Watcher) refDirsLocked(sub *subscription, dirs []string) []string {
	added := make([]string, 0, len(dirs))
	for _, dir := range dirs {
		if watcher.dirs[dir] == 0 {
			added = append(added, dir)
		}
		watcher.dirs[dir]++
		sub.dirs = append(sub.dirs, dir)
	}
	return added
}

func (watcher *Watcher) removeSubscription(id uint64) {
	if watcher == nil {
		return
	}

	removed := []string{}
	watcher.mutex.Lock()
	sub, ok := watcher.subs[id]
	if ok {
		delete(watcher.subs, id)
		for _, dir := range sub.dirs {
			if watcher.dirs[dir] == 0 {
				continue
			}
			watcher.dirs[dir]--
			if watcher.dirs[dir] == 0 {
				delete(watcher.dirs, dir)
				removed = append(removed, dir)
			}
		}
	}
	closed := watcher.closed
	activeCount := len(watcher.dirs)
	source := watcher.fs
	watcher.mutex.Unlock()

	if closed || source == nil {
		return
	}
	for _, dir := range removed {
		// The dir may already be gone; fsnotify drops deleted watches itself.
		if err := source.Remove(dir); err != nil {
			watcher.logDebug("watch remove skipped", dir, activeCount)
			continue
		}
		watcher.logDebug("watch removed", dir, activeCount)
	}
}

// trackNewDir registers watches for a directory created under the base of a
// deep subscription, so files added later keep being seen.
func (watcher *Watcher) trackNewDir(dir string) {
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return
	}
	slashed := filepath.ToSlash(dir)

	watcher.mutex.Lock()
	if watcher.closed {
		watcher.mutex.Unlock()
		return
	}
	interested := []*subscription{}
	for _, sub := range watcher.subs {
		if sub.deep && isWithinPath(sub.base, dir) && !sub.ignored(slashed) {
			interested = append(interested, sub)
		}
	}
	if len(interested) == 0 {
		watcher.mutex.Unlock()
		return
	}

	added := []string{}
	for _, sub := range interested {
		for _, candidate := range append([]string{dir}, walkDirs(dir, sub.ignore)...) {
			if watcher.dirs[candidate] == 0 {
				if len(watcher.dirs) >= watcher.maxWatches {
					continue
				}
				added = append(added, candidate)
			}
			watcher.dirs[candidate]++
			sub.dirs = append(sub.dirs, candidate)
		}
	}
	activeCount := len(watcher.dirs)
	source := watcher.fs
	watcher.mutex.Unlock()

	for _, candidate := range added {
		if err := source.Add(candidate); err != nil {
			watcher.logWarn("watch add failed", map[string]string{
				"path":  candidate,
				"error": err.Error(),
			})
			continue
		}
		watcher.logDebug("watch added", candidate, activeCount)
	}
}

func isWithinPath(parent, child string) bool {
	parentPath := filepath.Clean(parent)
	childPath := filepath.Clean(child)
	rel, err := filepath.Rel(parentPath, childPath)
	if err != nil {
		return false
	}
	if rel == "." {
		return true
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(os.PathSeparator))
}
