package event

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

var (
	ErrNotStarted     = errors.New("event sink is not started")
	ErrAlreadyStarted = errors.New("event sink was already started")
	ErrFlushFailed    = errors.New("event batch flush failed")
)

type SinkState int32

const (
	StateUninitialized SinkState = iota
	StateConnected
	StateDraining
	StateDisconnected
)

func (s SinkState) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateConnected:
		return "connected"
	case StateDraining:
		return "draining"
	case StateDisconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}

// SinkStats is a point-in-time view of the sink counters.
type SinkStats struct {
	State       string    `json:"state"`
	Pending     int64     `json:"pending"`
	Transmitted int64     `json:"transmitted"`
	Failed      int64     `json:"failed"`
	LastFlush   time.Time `json:"last_flush"`
}

// BatchSink buffers serialized messages per topic and ships a topic's batch
// once it reaches the configured size. A batch is only dropped from memory
// after every message in it was acknowledged; on a failed send the whole
// batch stays queued and is retried on the next flush, so consumers must
// tolerate duplicates.
type BatchSink struct {
	producer     Producer
	defaultTopic string
	batchSize    int

	mu      sync.Mutex
	state   atomic.Int32
	batches map[string][][]byte

	pending     atomic.Int64
	transmitted atomic.Int64
	failed      atomic.Int64
	lastFlush   atomic.Int64
}

func NewBatchSink(producer Producer, defaultTopic string, batchSize int) *BatchSink {
	if batchSize < 1 {
		batchSize = 1
	}
	if defaultTopic == "" {
		defaultTopic = DefaultTopic
	}
	return &BatchSink{
		producer:     producer,
		defaultTopic: defaultTopic,
		batchSize:    batchSize,
		batches:      make(map[string][][]byte),
	}
}

func (s *BatchSink) State() SinkState {
	return SinkState(s.state.Load())
}

// Start connects the producer and makes sure the default topic exists.
// A failed Start leaves the sink uninitialized so it can be retried.
func (s *BatchSink) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.State() != StateUninitialized {
		return ErrAlreadyStarted
	}

	if err := s.producer.Connect(ctx); err != nil {
		return fmt.Errorf("failed to connect event producer: %w", err)
	}

	if err := s.producer.EnsureTopic(ctx, s.defaultTopic); err != nil {
		if cerr := s.producer.Close(); cerr != nil {
			slog.Error("failed to close event producer after topic setup error", "error", cerr)
		}
		return fmt.Errorf("failed to ensure topic %s: %w", s.defaultTopic, err)
	}

	s.state.Store(int32(StateConnected))
	slog.Info("Event sink started", "topic", s.defaultTopic, "batch_size", s.batchSize)
	return nil
}

// Enqueue serializes message and appends it to the batch of the given topic
// (the default topic when none is passed). When the batch reaches the
// threshold it is flushed before Enqueue returns. A flush failure is reported
// wrapped in ErrFlushFailed; the message itself stays queued.
func (s *BatchSink) Enqueue(ctx context.Context, message any, topic ...string) error {
	payload, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.State() != StateConnected {
		slog.Error("event enqueued on a sink that is not running", "state", s.State().String())
		return ErrNotStarted
	}

	t := s.resolveTopic(topic)
	s.batches[t] = append(s.batches[t], payload)
	s.pending.Add(1)

	if len(s.batches[t]) < s.batchSize {
		return nil
	}

	if err := s.flushLocked(ctx, t); err != nil {
		return fmt.Errorf("%w: %w", ErrFlushFailed, err)
	}
	return nil
}

// Flush ships whatever is queued for topic regardless of the threshold.
func (s *BatchSink) Flush(ctx context.Context, topic ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.State() != StateConnected {
		return ErrNotStarted
	}
	return s.flushLocked(ctx, s.resolveTopic(topic))
}

// FlushAll flushes every topic that has queued messages.
func (s *BatchSink) FlushAll(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.State() != StateConnected {
		return ErrNotStarted
	}
	return s.flushAllLocked(ctx)
}

// Stop flushes all pending batches and closes the producer. The producer is
// closed even when the final flush fails. Messages that could not be sent
// stay counted in Pending and are lost when the process exits.
func (s *BatchSink) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.State() != StateConnected {
		slog.Error("stop requested on an event sink that is not running", "state", s.State().String())
		return ErrNotStarted
	}

	s.state.Store(int32(StateDraining))

	var errs []error
	if err := s.flushAllLocked(ctx); err != nil {
		slog.Error("events left unsent at shutdown", "pending", s.pending.Load(), "error", err)
		errs = append(errs, err)
	}

	if err := s.producer.Close(); err != nil {
		errs = append(errs, fmt.Errorf("failed to close event producer: %w", err))
	}

	s.state.Store(int32(StateDisconnected))
	slog.Info("Event sink stopped", "transmitted", s.transmitted.Load(), "failed", s.failed.Load())
	return errors.Join(errs...)
}

func (s *BatchSink) Stats() SinkStats {
	stats := SinkStats{
		State:       s.State().String(),
		Pending:     s.pending.Load(),
		Transmitted: s.transmitted.Load(),
		Failed:      s.failed.Load(),
	}
	if ts := s.lastFlush.Load(); ts > 0 {
		stats.LastFlush = time.Unix(0, ts)
	}
	return stats
}

func (s *BatchSink) resolveTopic(topic []string) string {
	if len(topic) > 0 && topic[0] != "" {
		return topic[0]
	}
	return s.defaultTopic
}

// flushAllLocked visits the default topic first, then the rest by name.
func (s *BatchSink) flushAllLocked(ctx context.Context) error {
	topics := make([]string, 0, len(s.batches))
	for t := range s.batches {
		if t != s.defaultTopic {
			topics = append(topics, t)
		}
	}
	sort.Strings(topics)
	if _, ok := s.batches[s.defaultTopic]; ok {
		topics = append([]string{s.defaultTopic}, topics...)
	}

	var errs []error
	for _, t := range topics {
		if err := s.flushLocked(ctx, t); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// flushLocked sends the batch of topic in enqueue order. Callers hold s.mu.
func (s *BatchSink) flushLocked(ctx context.Context, topic string) error {
	batch := s.batches[topic]
	if len(batch) == 0 {
		return nil
	}

	for i, payload := range batch {
		if err := ctx.Err(); err != nil {
			s.failed.Add(1)
			return fmt.Errorf("flush of topic %s interrupted at message %d of %d: %w", topic, i+1, len(batch), err)
		}
		if err := s.producer.Send(ctx, topic, payload); err != nil {
			s.failed.Add(1)
			slog.Error("failed to send event batch",
				"topic", topic,
				"position", i+1,
				"batch_size", len(batch),
				"error", err)
			return fmt.Errorf("failed to send message %d of %d to topic %s: %w", i+1, len(batch), topic, err)
		}
	}

	delete(s.batches, topic)
	s.pending.Add(-int64(len(batch)))
	s.transmitted.Add(int64(len(batch)))
	s.lastFlush.Store(time.Now().UnixNano())

	slog.Info("Batch of events sent", "topic", topic, "count", len(batch))
	return nil
}
