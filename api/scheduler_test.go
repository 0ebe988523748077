package api

import (
	"testing"
	"time"
)

func TestScheduler_StopReturnsWhileJobRunning(t *testing.T) {
	// A Stop issued while the run goroutine is mid-check must not
	// deadlock: Stop waits on the goroutine, so the goroutine must
	// never need the lifecycle lock to finish its current run.
	store, _ := newTestAPI(t)
	handler := NewHandler(store)

	for i := 0; i < 25; i++ {
		s := NewIncentiveScheduler(store, handler)
		s.CheckInterval = time.Millisecond
		s.Start()

		done := make(chan struct{})
		go func() {
			s.Stop()
			close(done)
		}()
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			t.Fatalf("Stop did not return on iteration %d", i)
		}
	}
}

func TestScheduler_DisabledDoesNotStart(t *testing.T) {
	store, _ := newTestAPI(t)
	s := NewIncentiveScheduler(store, NewHandler(store))
	s.Enabled = false
	s.Start()
	s.Stop() // no goroutine to wait for; must return immediately
}
