// Package scheduler runs the hub's recurring jobs: the nightly settlement
// sweep, the optional balance reset, and the crypto confirmation poll.
// Jobs are bound at startup and the due-check is a plain method, so tests
// drive the clock instead of sleeping.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/FoodCourtHub/server/internal/metrics"
)

// tickInterval is how often the loop checks for due jobs. Jobs fire on the
// first tick at or after their scheduled time.
const tickInterval = 30 * time.Second

// JobFunc runs one job occurrence.
type JobFunc func(ctx context.Context) error

type job struct {
	name string
	next time.Time
	// advance computes the following occurrence strictly after now.
	advance func(now time.Time) time.Time
	run     JobFunc
}

// Scheduler owns the job table and the ticking loop.
type Scheduler struct {
	loc     *time.Location
	log     zerolog.Logger
	metrics *metrics.Metrics

	mu   sync.Mutex
	jobs []*job

	stopCh chan struct{}
	doneCh chan struct{}
}

func New(loc *time.Location, m *metrics.Metrics, log zerolog.Logger) *Scheduler {
	if loc == nil {
		loc = time.UTC
	}
	return &Scheduler{
		loc:     loc,
		log:     log.With().Str("component", "scheduler").Logger(),
		metrics: m,
		stopCh:  make(chan struct{}),
		doneCh:  make(chan struct{}),
	}
}

// AddDaily binds a job to a local wall-clock time, once per day. The
// first occurrence is computed from the first tick the loop observes.
func (s *Scheduler) AddDaily(name string, hour, minute int, run JobFunc) {
	advance := func(now time.Time) time.Time {
		local := now.In(s.loc)
		next := time.Date(local.Year(), local.Month(), local.Day(), hour, minute, 0, 0, s.loc)
		if !next.After(now) {
			next = next.AddDate(0, 0, 1)
		}
		return next
	}
	s.add(&job{name: name, advance: advance, run: run})
}

// AddInterval binds a job to a fixed period.
func (s *Scheduler) AddInterval(name string, every time.Duration, run JobFunc) {
	advance := func(now time.Time) time.Time { return now.Add(every) }
	s.add(&job{name: name, advance: advance, run: run})
}

func (s *Scheduler) add(j *job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs = append(s.jobs, j)
	s.log.Info().Str("job", j.name).Msg("job bound")
}

// Start begins the ticking loop.
func (s *Scheduler) Start(ctx context.Context) {
	go s.loop(ctx)
}

// Stop waits for the loop to exit.
func (s *Scheduler) Stop() {
	close(s.stopCh)
	<-s.doneCh
}

func (s *Scheduler) loop(ctx context.Context) {
	defer close(s.doneCh)

	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			s.RunDue(ctx, now)
		}
	}
}

// RunDue executes every job whose scheduled time has passed, then advances
// it. A job that was due several times while the process slept runs once;
// every job here is idempotent over its period.
func (s *Scheduler) RunDue(ctx context.Context, now time.Time) {
	s.mu.Lock()
	var due []*job
	for _, j := range s.jobs {
		if j.next.IsZero() {
			j.next = j.advance(now)
			continue
		}
		if !j.next.After(now) {
			due = append(due, j)
			j.next = j.advance(now)
		}
	}
	s.mu.Unlock()

	for _, j := range due {
		start := time.Now()
		err := j.run(ctx)
		status := "ok"
		if err != nil {
			status = "error"
			s.log.Error().Err(err).Str("job", j.name).Msg("job failed")
		} else {
			s.log.Info().Str("job", j.name).Dur("duration", time.Since(start)).Msg("job completed")
		}
		if s.metrics != nil {
			s.metrics.ObserveSchedulerRun(j.name, status)
		}
	}
}
