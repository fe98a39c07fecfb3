package job

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/dntrply/MedicationReminder-sub002/internal/device"
)

// Constraints are the environmental conditions a deferred task waits
// for before running.
type Constraints struct {
	RequiresCharging      bool
	RequiresBatteryNotLow bool
}

// Satisfied reports whether the snapshot meets the constraints.
func (c Constraints) Satisfied(charging, batteryLow bool) bool {
	if c.RequiresCharging && !charging {
		return false
	}
	if c.RequiresBatteryNotLow && batteryLow {
		return false
	}
	return true
}

// Task is one unit of deferred work. The context is cancelled when the
// runner shuts down.
type Task func(ctx context.Context)

// Runner executes tasks in the background once their constraints are
// met. The production runner is a worker pool; tests substitute a
// synchronous implementation.
type Runner interface {
	Submit(key string, task Task, c Constraints)
}

// PoolRunner runs tasks on a fixed worker pool, deferring each task
// until a device snapshot satisfies its constraints. Tasks resume
// automatically when constraints become true; nothing re-submits them.
type PoolRunner struct {
	devices      device.Provider
	queue        chan submission
	pollInterval time.Duration
	wg           sync.WaitGroup
	ctx          context.Context
	cancel       context.CancelFunc

	mu     sync.Mutex
	closed bool
}

type submission struct {
	key  string
	task Task
	c    Constraints
}

// NewPoolRunner starts workers goroutines servicing the queue.
func NewPoolRunner(workers int, devices device.Provider) *PoolRunner {
	ctx, cancel := context.WithCancel(context.Background())
	r := &PoolRunner{
		devices:      devices,
		queue:        make(chan submission, 64),
		pollInterval: 30 * time.Second,
		ctx:          ctx,
		cancel:       cancel,
	}

	for i := 0; i < workers; i++ {
		r.wg.Add(1)
		go r.worker()
	}
	return r
}

// Submit enqueues a task. Submissions after Close are dropped.
func (r *PoolRunner) Submit(key string, task Task, c Constraints) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		log.Printf("runner: dropping %s, runner closed", key)
		return
	}
	r.queue <- submission{key: key, task: task, c: c}
}

// Close stops accepting work, cancels in-flight tasks, and waits for
// the workers to drain.
func (r *PoolRunner) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	close(r.queue)
	r.mu.Unlock()

	r.cancel()
	r.wg.Wait()
}

// worker services the queue until it is closed.
func (r *PoolRunner) worker() {
	defer r.wg.Done()
	for sub := range r.queue {
		if !r.awaitConstraints(sub) {
			// Shut down before constraints were met; the task's
			// statistics record stays pending for the next attempt.
			log.Printf("runner: dropping %s, shutting down", sub.key)
			continue
		}
		sub.task(r.ctx)
	}
}

// awaitConstraints polls device snapshots until the submission's
// constraints hold or the runner shuts down.
func (r *PoolRunner) awaitConstraints(sub submission) bool {
	for {
		snap, err := r.devices.Snapshot()
		if err == nil && sub.c.Satisfied(snap.Charging, snap.BatteryLow) {
			return true
		}
		if err != nil {
			log.Printf("runner: snapshot failed while waiting for %s: %v", sub.key, err)
		}

		t := time.NewTimer(r.pollInterval)
		select {
		case <-r.ctx.Done():
			t.Stop()
			return false
		case <-t.C:
		}
	}
}
