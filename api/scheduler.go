/*
scheduler.go - Nightly incentive job scheduler

PURPOSE:
  Periodically runs the daily incentive job so yesterday's incentives
  land without anyone calling the admin endpoint. The scheduler only
  decides WHEN to run; the job itself lives in jobs.go and is the same
  code path the manual endpoint uses.

DESIGN:
  - Background goroutine with a configurable check interval
  - Skips a run when the target day was already committed since the
    last tick (job audit rows make reruns visible either way; the job
    is full-replace, so a rerun is safe, just redundant)
  - Records every run in job_run_logs for audit and UI display

CONFIGURATION:
  - CheckInterval: How often to check (default: 1 hour)
  - Enabled: Whether scheduler is active (default: true)

USAGE:
  scheduler := NewIncentiveScheduler(store, handler)
  scheduler.Start()
  // ... later
  scheduler.Stop()

SEE ALSO:
  - jobs.go: RunDailyJob, the work this schedules
*/
package api

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/warp/incentive-engine/engine"
	"github.com/warp/incentive-engine/store/sqlite"
)

// IncentiveScheduler runs the daily incentive job in the background.
type IncentiveScheduler struct {
	Store         *sqlite.Store
	Handler       *Handler
	CheckInterval time.Duration
	Enabled       bool

	ticker *time.Ticker
	stop   chan bool
	wg     sync.WaitGroup
	mu     sync.Mutex

	// lastRunDate guards against rerunning the same day every tick.
	// It has its own mutex: Stop holds mu across wg.Wait, and the run
	// goroutine must never need mu to finish.
	dateMu      sync.Mutex
	lastRunDate engine.Date
}

// NewIncentiveScheduler creates a new scheduler.
func NewIncentiveScheduler(store *sqlite.Store, handler *Handler) *IncentiveScheduler {
	return &IncentiveScheduler{
		Store:         store,
		Handler:       handler,
		CheckInterval: 1 * time.Hour,
		Enabled:       true,
		stop:          make(chan bool),
	}
}

// Start begins the scheduler.
func (is *IncentiveScheduler) Start() {
	is.mu.Lock()
	defer is.mu.Unlock()

	if !is.Enabled {
		log.Println("[Scheduler] Disabled, not starting")
		return
	}

	is.ticker = time.NewTicker(is.CheckInterval)
	is.wg.Add(1)

	go is.run()

	log.Printf("[Scheduler] Started with check interval: %v", is.CheckInterval)
}

// Stop stops the scheduler.
func (is *IncentiveScheduler) Stop() {
	is.mu.Lock()
	defer is.mu.Unlock()

	if is.ticker != nil {
		is.ticker.Stop()
		close(is.stop)
		is.wg.Wait()
		log.Println("[Scheduler] Stopped")
	}
}

func (is *IncentiveScheduler) run() {
	defer is.wg.Done()

	// Run immediately on start
	is.checkAndProcess()

	for {
		select {
		case <-is.ticker.C:
			is.checkAndProcess()
		case <-is.stop:
			return
		}
	}
}

func (is *IncentiveScheduler) checkAndProcess() {
	ctx := context.Background()
	target := engine.Yesterday()

	is.dateMu.Lock()
	done := is.lastRunDate.Equal(target)
	is.dateMu.Unlock()
	if done {
		return
	}

	log.Printf("[Scheduler] Running daily incentive job for %s", target)

	stats, err := is.Handler.RunDailyJob(ctx, target, nil, false)
	if err != nil {
		log.Printf("[Scheduler] Daily incentive job failed: %v", err)
		return
	}

	is.dateMu.Lock()
	is.lastRunDate = target
	is.dateMu.Unlock()

	log.Printf("[Scheduler] Completed %s: %d ok, %d skipped, %d failed, total=%s",
		target, stats.VenturesOK, stats.VenturesSkipped, stats.VenturesFailed, stats.TotalAmount)
}

// RunNow triggers an immediate run (for testing/admin). It ignores the
// already-ran-today guard.
func (is *IncentiveScheduler) RunNow() {
	is.dateMu.Lock()
	is.lastRunDate = engine.Date{}
	is.dateMu.Unlock()
	is.checkAndProcess()
}

// GetNextRunTime returns when the next scheduled check will occur.
func (is *IncentiveScheduler) GetNextRunTime() time.Time {
	return time.Now().Add(is.CheckInterval)
}
