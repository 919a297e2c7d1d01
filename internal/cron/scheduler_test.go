package cron

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/smes-pos/smes-backend/pkg/logger"
	"github.com/smes-pos/smes-backend/pkg/metrics"
)

type fakeLock struct {
	held     bool
	releases int
}

func (f *fakeLock) Acquire(context.Context) (bool, error) {
	if f.held {
		return false, nil
	}
	f.held = true
	return true, nil
}

func (f *fakeLock) Release(context.Context) error {
	f.held = false
	f.releases++
	return nil
}

type countingJob struct {
	name string
	err  error
	runs int
}

func (c *countingJob) Name() string { return c.name }

func (c *countingJob) Run(ctx context.Context) error {
	if _, ok := ctx.Deadline(); !ok {
		return errors.New("job context has no deadline")
	}
	c.runs++
	return c.err
}

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "cron-test", Output: io.Discard})
}

func TestRunOnceRunsEveryJobEvenAfterFailure(t *testing.T) {
	ok := &countingJob{name: "ok"}
	failing := &countingJob{name: "failing", err: errors.New("boom")}
	lock := &fakeLock{}
	reg := prometheus.NewRegistry()

	s, err := NewScheduler(SchedulerParams{
		Logger:  testLogger(),
		Lock:    lock,
		Metrics: metrics.NewCronJobMetrics(reg),
		Jobs:    []Job{failing, ok, nil},
	})
	if err != nil {
		t.Fatalf("new scheduler: %v", err)
	}
	if len(s.Jobs()) != 2 {
		t.Fatalf("expected nil job to be skipped, got %d jobs", len(s.Jobs()))
	}

	ran, err := s.RunOnce(context.Background())
	if err != nil || !ran {
		t.Fatalf("expected cycle to run, ran=%v err=%v", ran, err)
	}
	if ok.runs != 1 || failing.runs != 1 {
		t.Fatalf("expected each job once, got ok=%d failing=%d", ok.runs, failing.runs)
	}
	if lock.releases != 1 || lock.held {
		t.Fatalf("expected lock released after cycle")
	}

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	seen := map[string]bool{}
	for _, f := range families {
		seen[f.GetName()] = true
	}
	for _, name := range []string{"smes_cron_job_runs_total", "smes_cron_job_duration_seconds", "smes_cron_job_last_success_timestamp_seconds"} {
		if !seen[name] {
			t.Fatalf("expected metric %s", name)
		}
	}
}

func TestRunOnceSkipsWhenLockHeld(t *testing.T) {
	job := &countingJob{name: "job"}
	lock := &fakeLock{held: true}
	s, err := NewScheduler(SchedulerParams{Logger: testLogger(), Lock: lock, Jobs: []Job{job}})
	if err != nil {
		t.Fatalf("new scheduler: %v", err)
	}
	ran, err := s.RunOnce(context.Background())
	if err != nil || ran {
		t.Fatalf("expected skipped cycle, ran=%v err=%v", ran, err)
	}
	if job.runs != 0 {
		t.Fatalf("job must not run without the lock")
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	job := &countingJob{name: "job"}
	s, err := NewScheduler(SchedulerParams{Logger: testLogger(), Lock: &fakeLock{}, Jobs: []Job{job}})
	if err != nil {
		t.Fatalf("new scheduler: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := s.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context canceled, got %v", err)
	}
	if job.runs != 1 {
		t.Fatalf("expected the immediate cycle to run once, got %d", job.runs)
	}
}
