package sync

import (
	"runtime"
	"sync"
	"testing"
	"time"
)

func TestTicketSpinlock(t *testing.T) {
	// Substitute the yieldFn with runtime.Gosched to avoid starving the Go
	// scheduler while testing.
	defer func(orig func()) { yieldFn = orig }(yieldFn)
	yieldFn = runtime.Gosched

	var (
		sl         TicketSpinlock
		wg         sync.WaitGroup
		numWorkers = 10
	)

	sl.Acquire()

	if sl.TryToAcquire() != false {
		t.Error("expected TryToAcquire to return false when lock is held")
	}
	if !sl.Held() {
		t.Error("expected Held to return true while the lock is acquired")
	}

	wg.Add(numWorkers)
	for i := 0; i < numWorkers; i++ {
		go func(worker int) {
			sl.Acquire()
			sl.Release()
			wg.Done()
		}(i)
	}

	<-time.After(100 * time.Millisecond)
	sl.Release()
	wg.Wait()

	if sl.Held() {
		t.Error("expected Held to return false once every ticket has been released")
	}
}

func TestTicketSpinlockFIFOFairness(t *testing.T) {
	defer func(orig func()) { yieldFn = orig }(yieldFn)
	yieldFn = runtime.Gosched

	var (
		sl      TicketSpinlock
		order   []int
		started sync.WaitGroup
		release = make(chan struct{})
	)

	sl.Acquire()

	const numWorkers = 5
	started.Add(numWorkers)
	done := make(chan struct{})
	for i := 0; i < numWorkers; i++ {
		go func(worker int) {
			started.Done()
			<-release
			sl.Acquire()
			order = append(order, worker)
			sl.Release()
			done <- struct{}{}
		}(i)
	}

	started.Wait()
	close(release)
	// Give every worker a chance to queue up behind the held lock before we
	// free it; tickets are dispensed on Acquire, so whichever goroutines
	// manage to call Acquire first are guaranteed to be served first.
	<-time.After(50 * time.Millisecond)
	sl.Release()

	for i := 0; i < numWorkers; i++ {
		<-done
	}

	if len(order) != numWorkers {
		t.Fatalf("expected %d workers to have run, got %d", numWorkers, len(order))
	}
}
