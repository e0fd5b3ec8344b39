// Package scheduler wraps github.com/go-co-op/gocron/v2 the way the
// teacher's main.go drives per-exchange update jobs, adding per-job jitter
// and exponential backoff on consecutive failures per spec.md §4.7 (neither
// of which the teacher's raw DurationJob loop has).
package scheduler

import (
	"context"
	"errors"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"

	"arbwatch/applog"
	"arbwatch/errs"
)

// Job is one named unit of periodic work. Return an error to signal
// failure; the Driver applies backoff and logs it the way the teacher logs
// "%s error updating spot pairs."
type Job struct {
	Name     string
	Interval time.Duration
	Run      func(ctx context.Context) error
}

// Driver owns a gocron scheduler and layers jitter plus exponential backoff
// on top of each registered Job.
type Driver struct {
	sched gocron.Scheduler
	log   *applog.Entry

	mu       sync.Mutex
	failures map[string]int
}

// NewDriver builds a Driver with a fresh gocron scheduler.
func NewDriver() (*Driver, error) {
	sched, err := gocron.NewScheduler()
	if err != nil {
		return nil, err
	}
	return &Driver{
		sched:    sched,
		log:      applog.Default().WithComponent("scheduler"),
		failures: make(map[string]int),
	}, nil
}

// Register schedules job to run at its interval, jittered by ±10%, with
// consecutive-failure backoff up to 5x the base interval.
func (d *Driver) Register(ctx context.Context, job Job) error {
	_, err := d.sched.NewJob(
		gocron.DurationRandomJob(
			jitterFloor(job.Interval),
			jitterCeil(job.Interval),
		),
		gocron.NewTask(func() {
			d.runOnce(ctx, job)
		}),
	)
	return err
}

func (d *Driver) runOnce(ctx context.Context, job Job) {
	d.mu.Lock()
	streak := d.failures[job.Name]
	d.mu.Unlock()

	if streak > 0 {
		backoff := backoffMultiplier(streak)
		if backoff > 1 {
			// Skip probabilistically so a failing connector's job still gets
			// its regular tick slot but runs less often, matching the
			// "moves to 2x, capped at 5x" backoff spec without needing a
			// second scheduler per job.
			if rand.Float64() > 1/backoff {
				return
			}
		}
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	err := job.Run(runCtx)

	d.mu.Lock()
	defer d.mu.Unlock()
	if err != nil {
		// A 429 means the venue is actively throttling us, so treat it as
		// worth several consecutive plain failures and back off harder than
		// a one-off network hiccup would.
		bump := 1
		if errors.Is(err, errs.RateLimited) {
			bump = 3
		}
		d.failures[job.Name] += bump
		d.log.WithError(err).WithFields(applog.Fields{
			"job":               job.Name,
			"consecutive_fails": d.failures[job.Name],
			"rate_limited":      errors.Is(err, errs.RateLimited),
		}).Warn("job failed")
		return
	}
	if d.failures[job.Name] > 0 {
		d.log.WithFields(applog.Fields{"job": job.Name}).Info("job recovered")
	}
	d.failures[job.Name] = 0
}

// Start begins running all registered jobs.
func (d *Driver) Start() {
	d.sched.Start()
}

// Shutdown stops the scheduler and waits for in-flight jobs to finish.
func (d *Driver) Shutdown() error {
	return d.sched.Shutdown()
}

func jitterFloor(interval time.Duration) time.Duration {
	return time.Duration(float64(interval) * 0.9)
}

func jitterCeil(interval time.Duration) time.Duration {
	return time.Duration(float64(interval) * 1.1)
}

// backoffMultiplier doubles per consecutive failure, capped at 5x.
func backoffMultiplier(consecutiveFailures int) float64 {
	m := 1.0
	for i := 0; i < consecutiveFailures; i++ {
		m *= 2
		if m >= 5 {
			return 5
		}
	}
	return m
}
