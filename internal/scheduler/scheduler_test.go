package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestDailyJobFiresOncePerDay(t *testing.T) {
	s := New(time.UTC, nil, zerolog.Nop())
	runs := 0
	s.AddDaily("sweep", 23, 0, func(ctx context.Context) error {
		runs++
		return nil
	})

	day := time.Date(2024, 12, 1, 0, 0, 0, 0, time.UTC)

	s.RunDue(context.Background(), day.Add(22*time.Hour))
	if runs != 0 {
		t.Fatalf("runs before schedule = %d", runs)
	}

	s.RunDue(context.Background(), day.Add(23*time.Hour+10*time.Second))
	if runs != 1 {
		t.Fatalf("runs at schedule = %d", runs)
	}

	// Later ticks on the same day stay quiet.
	s.RunDue(context.Background(), day.Add(23*time.Hour+5*time.Minute))
	s.RunDue(context.Background(), day.Add(23*time.Hour+50*time.Minute))
	if runs != 1 {
		t.Fatalf("runs after repeat ticks = %d", runs)
	}

	// The next day fires again.
	s.RunDue(context.Background(), day.AddDate(0, 0, 1).Add(23*time.Hour+time.Minute))
	if runs != 2 {
		t.Fatalf("runs next day = %d", runs)
	}
}

func TestMissedOccurrenceRunsOnce(t *testing.T) {
	s := New(time.UTC, nil, zerolog.Nop())
	runs := 0
	s.AddDaily("sweep", 23, 0, func(ctx context.Context) error {
		runs++
		return nil
	})

	// Schedule is armed on Dec 1, then the process sleeps through two
	// scheduled times; the next tick runs the job once and realigns.
	s.RunDue(context.Background(), time.Date(2024, 12, 1, 22, 0, 0, 0, time.UTC))
	late := time.Date(2024, 12, 3, 8, 0, 0, 0, time.UTC)
	s.RunDue(context.Background(), late)
	if runs != 1 {
		t.Fatalf("runs after sleep = %d", runs)
	}
	s.RunDue(context.Background(), late.Add(time.Minute))
	if runs != 1 {
		t.Fatalf("runs after realign = %d", runs)
	}
}

func TestIntervalJob(t *testing.T) {
	s := New(time.UTC, nil, zerolog.Nop())
	runs := 0
	s.AddInterval("poll", 5*time.Minute, func(ctx context.Context) error {
		runs++
		return nil
	})

	start := time.Now()
	s.RunDue(context.Background(), start.Add(time.Minute))
	if runs != 0 {
		t.Fatalf("runs before interval = %d", runs)
	}
	s.RunDue(context.Background(), start.Add(6*time.Minute))
	if runs != 1 {
		t.Fatalf("runs after interval = %d", runs)
	}
	s.RunDue(context.Background(), start.Add(12*time.Minute))
	if runs != 2 {
		t.Fatalf("runs after second interval = %d", runs)
	}
}

func TestFailingJobKeepsSchedule(t *testing.T) {
	s := New(time.UTC, nil, zerolog.Nop())
	runs := 0
	s.AddInterval("poll", time.Minute, func(ctx context.Context) error {
		runs++
		return errors.New("rpc down")
	})

	start := time.Now()
	s.RunDue(context.Background(), start)
	s.RunDue(context.Background(), start.Add(2*time.Minute))
	s.RunDue(context.Background(), start.Add(4*time.Minute))
	if runs != 2 {
		t.Fatalf("failing job runs = %d, want 2", runs)
	}
}
