package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"tariff-service/internal/event"

	"github.com/robfig/cron/v3"
)

// Flusher is the part of the event sink the scheduler drives.
type Flusher interface {
	FlushAll(ctx context.Context) error
}

// FlushJob ships partially filled event batches on a schedule so that low
// traffic does not leave audit messages waiting for the size threshold.
type FlushJob struct {
	cron    *cron.Cron
	flusher Flusher
	timeout time.Duration
}

func NewFlushJob(schedule string, flusher Flusher, timeout time.Duration) (*FlushJob, error) {
	job := &FlushJob{
		cron:    cron.New(),
		flusher: flusher,
		timeout: timeout,
	}
	if _, err := job.cron.AddFunc(schedule, job.Run); err != nil {
		return nil, fmt.Errorf("invalid flush schedule %q: %w", schedule, err)
	}
	return job, nil
}

func (j *FlushJob) Start() {
	j.cron.Start()
	slog.Info("Event flush job started")
}

// Stop prevents new runs and waits for a running one to finish or ctx to end.
func (j *FlushJob) Stop(ctx context.Context) {
	select {
	case <-j.cron.Stop().Done():
		slog.Info("Event flush job stopped")
	case <-ctx.Done():
		slog.Warn("event flush job did not stop in time", "error", ctx.Err())
	}
}

// Run flushes every pending batch once.
func (j *FlushJob) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	err := j.flusher.FlushAll(ctx)
	switch {
	case err == nil:
	case errors.Is(err, event.ErrNotStarted):
		slog.Debug("skipping scheduled flush, event sink is not running")
	default:
		slog.Error("scheduled event flush failed", "error", err)
	}
}
