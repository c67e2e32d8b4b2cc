package worker

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"tariff-service/internal/event"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingFlusher struct {
	calls atomic.Int32
	err   error
}

func (f *countingFlusher) FlushAll(ctx context.Context) error {
	f.calls.Add(1)
	if _, ok := ctx.Deadline(); !ok {
		return errors.New("flush called without deadline")
	}
	return f.err
}

func TestNewFlushJobRejectsBadSchedule(t *testing.T) {
	_, err := NewFlushJob("every now and then", &countingFlusher{}, time.Second)
	assert.Error(t, err)
}

func TestFlushJobRun(t *testing.T) {
	f := &countingFlusher{}
	job, err := NewFlushJob("@every 1h", f, time.Second)
	require.NoError(t, err)

	job.Run()
	f.err = event.ErrNotStarted
	job.Run()
	f.err = errors.New("broker down")
	job.Run()

	assert.Equal(t, int32(3), f.calls.Load())
}

func TestFlushJobStartStop(t *testing.T) {
	job, err := NewFlushJob("@every 1h", &countingFlusher{}, time.Second)
	require.NoError(t, err)

	job.Start()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	job.Stop(ctx)
}
