package uvloop_test

import (
	"os"
	"sync"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/nanouv/uvloop"
)

// This test demonstrates wiring a third-party event source (fsnotify,
// which runs its own internal goroutine and delivers events over Go
// channels rather than exposing a raw, poll-able fd) into the loop via
// an Async handle: the fsnotify goroutine appends to a mutex-protected
// slice and calls Async.Send(); the loop drains the slice from its own
// goroutine inside the Async callback, so fsnotify's events are observed
// with the same "callbacks only run on the loop goroutine" guarantee as
// every other uvloop handle.
func TestFsnotifyClientViaAsync(t *testing.T) {
	dir := t.TempDir()

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		t.Skipf("fsnotify unavailable in this environment: %v", err)
	}
	defer watcher.Close()

	if err := watcher.Add(dir); err != nil {
		t.Fatalf("watch dir: %v", err)
	}

	loop, err := uvloop.New()
	if err != nil {
		t.Fatalf("new loop: %v", err)
	}
	defer loop.Close()

	var mu sync.Mutex
	var names []string

	var async *uvloop.Async
	async = uvloop.NewAsync(loop, func(a *uvloop.Async) {
		mu.Lock()
		defer mu.Unlock()
		for _, n := range names {
			t.Logf("observed fs event for %s", n)
		}
		names = names[:0]
		loop.Stop()
	})

	done := make(chan struct{})
	go func() {
		defer close(done)
		select {
		case ev, ok := <-watcher.Events:
			if !ok {
				return
			}
			mu.Lock()
			names = append(names, ev.Name)
			mu.Unlock()
			async.Send()
		case <-time.After(2 * time.Second):
			async.Send()
		}
	}()

	timer := uvloop.NewTimer(loop)
	_ = timer.Start(50, 0, func(*uvloop.Timer) {
		// Trigger a filesystem event from the loop's own tick, so the
		// test doesn't depend on external timing.
		go func() {
			_ = writeTestFile(dir)
		}()
	})

	if err := loop.Run(uvloop.RunDefault); err != nil {
		t.Fatalf("run: %v", err)
	}
	<-done
}

func writeTestFile(dir string) error {
	return os.WriteFile(dir+"/touched", []byte("x"), 0o644)
}
