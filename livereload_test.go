package livereload

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"livereload/internal/process"
)

// testRoot returns a symlink-resolved temp dir so watched paths compare
// equal to the paths fsnotify reports.
func testRoot(t *testing.T) string {
	t.Helper()
	root, err := filepath.EvalSymlinks(t.TempDir())
	if err != nil {
		t.Fatalf("resolve temp dir: %v", err)
	}
	return root
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

type stubWindow struct {
	reloads chan bool
	closed  chan struct{}
}

func newStubWindow() *stubWindow {
	return &stubWindow{
		reloads: make(chan bool, 8),
		closed:  make(chan struct{}),
	}
}

func (w *stubWindow) Reload(ignoreCache bool) error {
	w.reloads <- ignoreCache
	return nil
}

func (w *stubWindow) Closed() <-chan struct{} {
	return w.closed
}

type nopChild struct{}

func (nopChild) Release() error { return nil }

// lifecycleRecorder doubles as spawner and host so a hard reset leaves a
// single ordered trace of its steps.
type lifecycleRecorder struct {
	mu    sync.Mutex
	order []string
	path  string
	argv  []string
	root  string
	done  chan struct{}
	once  sync.Once
}

func newLifecycleRecorder(root string) *lifecycleRecorder {
	return &lifecycleRecorder{root: root, done: make(chan struct{})}
}

func (r *lifecycleRecorder) Start(path string, argv []string) (process.Child, error) {
	r.mu.Lock()
	r.order = append(r.order, "spawn")
	r.path = path
	r.argv = append([]string(nil), argv...)
	r.mu.Unlock()
	return nopChild{}, nil
}

func (r *lifecycleRecorder) Quit()        { r.terminate("quit") }
func (r *lifecycleRecorder) Exit()        { r.terminate("exit") }
func (r *lifecycleRecorder) Root() string { return r.root }

func (r *lifecycleRecorder) terminate(step string) {
	r.mu.Lock()
	r.order = append(r.order, step)
	r.mu.Unlock()
	r.once.Do(func() { close(r.done) })
}

func (r *lifecycleRecorder) steps() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.order...)
}

func (r *lifecycleRecorder) waitTerminated(t *testing.T) {
	t.Helper()
	select {
	case <-r.done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for hard reset")
	}
}

func waitReload(t *testing.T, w *stubWindow) bool {
	t.Helper()
	select {
	case force := <-w.reloads:
		return force
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for window reload")
		return false
	}
}

func expectNoReload(t *testing.T, w *stubWindow) {
	t.Helper()
	select {
	case force := <-w.reloads:
		t.Fatalf("unexpected reload (force=%v)", force)
	case <-time.After(500 * time.Millisecond):
	}
}

func TestStartSoftResetReloadsTrackedWindows(t *testing.T) {
	root := testRoot(t)
	aux := filepath.Join(root, "renderer.js")
	entry := filepath.Join(root, "main.js")
	writeFile(t, aux, "a")
	writeFile(t, entry, "e")

	recorder := newLifecycleRecorder(root)
	session, err := Start(filepath.Join(root, "**", "*.js"), entry, Options{
		Quiet:   true,
		Host:    recorder,
		Spawner: recorder,
	})
	if err != nil {
		t.Fatalf("start session: %v", err)
	}
	defer session.Close()

	w := newStubWindow()
	session.Track(w)

	writeFile(t, aux, "changed")

	if force := waitReload(t, w); !force {
		t.Fatal("expected cache-ignoring reload")
	}
	if steps := recorder.steps(); len(steps) != 0 {
		t.Fatalf("soft reset must not touch the process lifecycle, got %v", steps)
	}
}

func TestStartEntryChangeWithoutExecDoesNothing(t *testing.T) {
	root := testRoot(t)
	entry := filepath.Join(root, "main.js")
	writeFile(t, entry, "e")

	recorder := newLifecycleRecorder(root)
	session, err := Start(filepath.Join(root, "**", "*.js"), entry, Options{
		Quiet:   true,
		Host:    recorder,
		Spawner: recorder,
	})
	if err != nil {
		t.Fatalf("start session: %v", err)
	}
	defer session.Close()

	w := newStubWindow()
	session.Track(w)

	writeFile(t, entry, "changed")

	expectNoReload(t, w)
	if steps := recorder.steps(); len(steps) != 0 {
		t.Fatalf("expected no lifecycle activity, got %v", steps)
	}
}

func TestStartEntryChangeSpawnsReplacementThenQuits(t *testing.T) {
	root := testRoot(t)
	entry := filepath.Join(root, "main.js")
	exec := filepath.Join(root, "app-shell")
	writeFile(t, entry, "e")
	writeFile(t, exec, "#!/bin/sh\n")

	recorder := newLifecycleRecorder(root)
	session, err := Start(filepath.Join(root, "**", "*.js"), entry, Options{
		Quiet:    true,
		Exec:     exec,
		ExecArgs: []string{"--inspect"},
		AppArgs:  []string{"--dev"},
		Host:     recorder,
		Spawner:  recorder,
	})
	if err != nil {
		t.Fatalf("start session: %v", err)
	}
	defer session.Close()

	writeFile(t, entry, "changed")

	recorder.waitTerminated(t)
	steps := recorder.steps()
	if len(steps) != 2 || steps[0] != "spawn" || steps[1] != "quit" {
		t.Fatalf("expected spawn then quit, got %v", steps)
	}
	if recorder.path != exec {
		t.Fatalf("expected spawn of %s, got %s", exec, recorder.path)
	}
	want := []string{"--inspect", root, "--dev"}
	if len(recorder.argv) != len(want) {
		t.Fatalf("unexpected argv %v", recorder.argv)
	}
	for i := range want {
		if recorder.argv[i] != want[i] {
			t.Fatalf("argv[%d]: expected %q, got %q", i, want[i], recorder.argv[i])
		}
	}
}

func TestStartMissingExecFails(t *testing.T) {
	root := testRoot(t)
	entry := filepath.Join(root, "main.js")
	writeFile(t, entry, "e")

	recorder := newLifecycleRecorder(root)
	_, err := Start(filepath.Join(root, "**", "*.js"), entry, Options{
		Quiet:   true,
		Exec:    filepath.Join(root, "absent-shell"),
		Host:    recorder,
		Spawner: recorder,
	})
	if !errors.Is(err, ErrExecNotFound) {
		t.Fatalf("expected ErrExecNotFound, got %v", err)
	}
}

func TestSessionCloseStopsDelivery(t *testing.T) {
	root := testRoot(t)
	aux := filepath.Join(root, "renderer.js")
	entry := filepath.Join(root, "main.js")
	writeFile(t, aux, "a")
	writeFile(t, entry, "e")

	recorder := newLifecycleRecorder(root)
	session, err := Start(filepath.Join(root, "**", "*.js"), entry, Options{
		Quiet:   true,
		Host:    recorder,
		Spawner: recorder,
	})
	if err != nil {
		t.Fatalf("start session: %v", err)
	}

	w := newStubWindow()
	session.Track(w)

	if err := session.Close(); err != nil {
		t.Fatalf("close session: %v", err)
	}

	writeFile(t, aux, "changed")
	expectNoReload(t, w)
}
