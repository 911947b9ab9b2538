package watcher

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func testRoot(t *testing.T) string {
	t.Helper()
	root, err := filepath.EvalSymlinks(t.TempDir())
	if err != nil {
		t.Fatalf("resolve temp dir: %v", err)
	}
	return root
}

func waitForEvent(events <-chan Event) (Event, bool) {
	select {
	case event := <-events:
		return event, true
	case <-time.After(2 * time.Second):
		return Event{}, false
	}
}

func expectQuiet(t *testing.T, events <-chan Event) {
	t.Helper()
	select {
	case event := <-events:
		t.Fatalf("unexpected event for %q", event.Path)
	case <-time.After(500 * time.Millisecond):
	}
}

func TestSubscribeGlobDeliversWriteEvent(t *testing.T) {
	root := testRoot(t)
	path := filepath.Join(root, "renderer.js")
	if err := os.WriteFile(path, []byte("a"), 0o600); err != nil {
		t.Fatalf("write file: %v", err)
	}

	watcher, err := New()
	if err != nil {
		t.Fatalf("new watcher: %v", err)
	}
	defer watcher.Close()

	events := make(chan Event, 4)
	handle, err := watcher.Subscribe(Spec{Pattern: filepath.Join(root, "**", "*.js")}, func(event Event) {
		events <- event
	})
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer handle.Close()

	if err := os.WriteFile(path, []byte("b"), 0o600); err != nil {
		t.Fatalf("rewrite file: %v", err)
	}

	event, ok := waitForEvent(events)
	if !ok {
		t.Fatal("timed out waiting for write event")
	}
	if event.Path != path {
		t.Fatalf("expected path %q, got %q", path, event.Path)
	}
}

func TestSubscribeFiltersNonMatchingFiles(t *testing.T) {
	root := testRoot(t)
	watcher, err := New()
	if err != nil {
		t.Fatalf("new watcher: %v", err)
	}
	defer watcher.Close()

	events := make(chan Event, 4)
	handle, err := watcher.Subscribe(Spec{Pattern: filepath.Join(root, "*.js")}, func(event Event) {
		events <- event
	})
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer handle.Close()

	if err := os.WriteFile(filepath.Join(root, "notes.txt"), []byte("x"), 0o600); err != nil {
		t.Fatalf("write file: %v", err)
	}

	expectQuiet(t, events)
}

func TestSubscribeHonorsIgnorePatterns(t *testing.T) {
	root := testRoot(t)
	ignored := filepath.Join(root, "main.js")
	if err := os.WriteFile(ignored, []byte("a"), 0o600); err != nil {
		t.Fatalf("write file: %v", err)
	}

	watcher, err := New()
	if err != nil {
		t.Fatalf("new watcher: %v", err)
	}
	defer watcher.Close()

	events := make(chan Event, 4)
	handle, err := watcher.Subscribe(Spec{
		Pattern: filepath.Join(root, "**", "*.js"),
		Ignore:  []string{ignored},
	}, func(event Event) {
		events <- event
	})
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer handle.Close()

	if err := os.WriteFile(ignored, []byte("b"), 0o600); err != nil {
		t.Fatalf("rewrite file: %v", err)
	}

	expectQuiet(t, events)
}

func TestSubscribeLiteralFileMatchesExactPath(t *testing.T) {
	root := testRoot(t)
	target := filepath.Join(root, "main.js")
	sibling := filepath.Join(root, "other.js")
	for _, path := range []string{target, sibling} {
		if err := os.WriteFile(path, []byte("a"), 0o600); err != nil {
			t.Fatalf("write %s: %v", path, err)
		}
	}

	watcher, err := New()
	if err != nil {
		t.Fatalf("new watcher: %v", err)
	}
	defer watcher.Close()

	events := make(chan Event, 4)
	handle, err := watcher.Subscribe(Spec{Pattern: target}, func(event Event) {
		events <- event
	})
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer handle.Close()

	if err := os.WriteFile(sibling, []byte("b"), 0o600); err != nil {
		t.Fatalf("rewrite sibling: %v", err)
	}
	expectQuiet(t, events)

	if err := os.WriteFile(target, []byte("b"), 0o600); err != nil {
		t.Fatalf("rewrite target: %v", err)
	}
	event, ok := waitForEvent(events)
	if !ok {
		t.Fatal("timed out waiting for target event")
	}
	if event.Path != target {
		t.Fatalf("expected path %q, got %q", target, event.Path)
	}
}

func TestSubscribeOnceRetiresAfterFirstDelivery(t *testing.T) {
	root := testRoot(t)
	path := filepath.Join(root, "main.js")
	if err := os.WriteFile(path, []byte("a"), 0o600); err != nil {
		t.Fatalf("write file: %v", err)
	}

	watcher, err := New()
	if err != nil {
		t.Fatalf("new watcher: %v", err)
	}
	defer watcher.Close()

	events := make(chan Event, 4)
	handle, err := watcher.SubscribeOnce(Spec{Pattern: path}, func(event Event) {
		events <- event
	})
	if err != nil {
		t.Fatalf("subscribe once: %v", err)
	}
	defer handle.Close()

	if err := os.WriteFile(path, []byte("b"), 0o600); err != nil {
		t.Fatalf("rewrite file: %v", err)
	}
	if _, ok := waitForEvent(events); !ok {
		t.Fatal("timed out waiting for first event")
	}

	time.Sleep(200 * time.Millisecond)
	if err := os.WriteFile(path, []byte("c"), 0o600); err != nil {
		t.Fatalf("rewrite file: %v", err)
	}
	expectQuiet(t, events)
}

func TestSubscribeTracksDirectoriesCreatedLater(t *testing.T) {
	root := testRoot(t)
	watcher, err := New()
	if err != nil {
		t.Fatalf("new watcher: %v", err)
	}
	defer watcher.Close()

	events := make(chan Event, 4)
	handle, err := watcher.Subscribe(Spec{Pattern: filepath.Join(root, "**", "*.js")}, func(event Event) {
		events <- event
	})
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer handle.Close()

	nested := filepath.Join(root, "sub")
	if err := os.Mkdir(nested, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	time.Sleep(300 * time.Millisecond)

	path := filepath.Join(nested, "late.js")
	if err := os.WriteFile(path, []byte("a"), 0o600); err != nil {
		t.Fatalf("write nested file: %v", err)
	}

	event, ok := waitForEvent(events)
	if !ok {
		t.Fatal("timed out waiting for nested event")
	}
	if event.Path != path {
		t.Fatalf("expected path %q, got %q", path, event.Path)
	}
}

func TestSubscribeMissingBaseFails(t *testing.T) {
	watcher, err := New()
	if err != nil {
		t.Fatalf("new watcher: %v", err)
	}
	defer watcher.Close()

	_, err = watcher.Subscribe(Spec{Pattern: filepath.Join(testRoot(t), "missing", "*.js")}, func(Event) {})
	if err == nil {
		t.Fatal("expected error for missing base directory")
	}
}

func TestHandleCloseReleasesWatches(t *testing.T) {
	root := testRoot(t)
	watcher, err := New()
	if err != nil {
		t.Fatalf("new watcher: %v", err)
	}
	defer watcher.Close()

	handle, err := watcher.Subscribe(Spec{Pattern: filepath.Join(root, "*.js")}, func(Event) {})
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	if watcher.Metrics().ActiveWatches != 1 {
		t.Fatalf("expected 1 active watch, got %d", watcher.Metrics().ActiveWatches)
	}

	if err := handle.Close(); err != nil {
		t.Fatalf("close handle: %v", err)
	}
	if watcher.Metrics().ActiveWatches != 0 {
		t.Fatalf("expected 0 active watches, got %d", watcher.Metrics().ActiveWatches)
	}
}

func TestErrorHandlerFiresWhenRestartBudgetExhausted(t *testing.T) {
	failures := make(chan error, 1)
	watcher, err := NewWithOptions(Options{ErrorHandler: func(err error) {
		failures <- err
	}})
	if err != nil {
		t.Fatalf("new watcher: %v", err)
	}
	defer watcher.Close()

	watcher.restartMutex.Lock()
	watcher.restartAttempts = maxRestartAttempts
	watcher.restartMutex.Unlock()

	watcher.handleError(errors.New("inotify instance gone"))

	select {
	case <-failures:
	default:
		t.Fatal("expected error handler to fire once restarts are exhausted")
	}
}

func TestTrackNewDirHonorsMaxWatchCap(t *testing.T) {
	root := testRoot(t)
	watcher, err := NewWithOptions(Options{MaxWatches: 1})
	if err != nil {
		t.Fatalf("new watcher: %v", err)
	}
	defer watcher.Close()

	handle, err := watcher.Subscribe(Spec{Pattern: filepath.Join(root, "**", "*.js")}, func(Event) {})
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	if err := os.Mkdir(filepath.Join(root, "sub"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	time.Sleep(300 * time.Millisecond)

	if got := watcher.Metrics().ActiveWatches; got != 1 {
		t.Fatalf("expected watch count pinned at the cap, got %d", got)
	}

	if err := handle.Close(); err != nil {
		t.Fatalf("close handle: %v", err)
	}
	if got := watcher.Metrics().ActiveWatches; got != 0 {
		t.Fatalf("expected all watches released, got %d", got)
	}
}

func TestSplitPattern(t *testing.T) {
	cases := []struct {
		pattern string
		base    string
		deep    bool
	}{
		{"/app/**/*.js", "/app", true},
		{"/app/*.js", "/app", false},
		{"/app/*/main.js", "/app", true},
		{"/*.js", "/", false},
		{"/app/main.js", "/app/main.js", false},
	}
	for _, testCase := range cases {
		base, deep := splitPattern(testCase.pattern)
		if base != testCase.base || deep != testCase.deep {
			t.Fatalf("splitPattern(%q) = %q, %v; want %q, %v",
				testCase.pattern, base, deep, testCase.base, testCase.deep)
		}
	}
}
