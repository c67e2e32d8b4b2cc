package event

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sentMessage struct {
	topic   string
	payload []byte
}

type fakeProducer struct {
	mu         sync.Mutex
	sent       []sentMessage
	topics     []string
	connectErr error
	ensureErr  error
	// failAt makes the n-th Send call (1-based) fail once.
	failAt     int
	sendCalls  int
	sendErr    error
	closeCalls int
}

func (f *fakeProducer) Connect(context.Context) error { return f.connectErr }

func (f *fakeProducer) EnsureTopic(_ context.Context, topic string) error {
	if f.ensureErr != nil {
		return f.ensureErr
	}
	f.topics = append(f.topics, topic)
	return nil
}

func (f *fakeProducer) Send(_ context.Context, topic string, payload []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sendCalls++
	if f.sendErr != nil {
		return f.sendErr
	}
	if f.failAt > 0 && f.sendCalls == f.failAt {
		return errors.New("broker unavailable")
	}
	f.sent = append(f.sent, sentMessage{topic: topic, payload: payload})
	return nil
}

func (f *fakeProducer) Close() error {
	f.closeCalls++
	return nil
}

func (f *fakeProducer) sentCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

func startedSink(t *testing.T, p *fakeProducer, batchSize int) *BatchSink {
	t.Helper()
	sink := NewBatchSink(p, DefaultTopic, batchSize)
	require.NoError(t, sink.Start(context.Background()))
	return sink
}

func TestBatchSink_StartEnsuresDefaultTopic(t *testing.T) {
	p := &fakeProducer{}
	sink := startedSink(t, p, 3)

	assert.Equal(t, []string{DefaultTopic}, p.topics)
	assert.Equal(t, StateConnected, sink.State())
}

func TestBatchSink_StartTwiceFails(t *testing.T) {
	sink := startedSink(t, &fakeProducer{}, 3)

	err := sink.Start(context.Background())
	assert.ErrorIs(t, err, ErrAlreadyStarted)
}

func TestBatchSink_StartFailureLeavesSinkUninitialized(t *testing.T) {
	p := &fakeProducer{ensureErr: errors.New("no controller")}
	sink := NewBatchSink(p, DefaultTopic, 3)

	err := sink.Start(context.Background())
	require.Error(t, err)
	assert.Equal(t, StateUninitialized, sink.State())
	assert.Equal(t, 1, p.closeCalls)
}

func TestBatchSink_BelowThresholdSendsNothing(t *testing.T) {
	p := &fakeProducer{}
	sink := startedSink(t, p, 3)

	for i := 0; i < 2; i++ {
		require.NoError(t, sink.Enqueue(context.Background(), map[string]int{"n": i}))
	}

	assert.Equal(t, 0, p.sentCount())
	assert.Equal(t, int64(2), sink.Stats().Pending)
}

func TestBatchSink_ThresholdFlushesInOrder(t *testing.T) {
	p := &fakeProducer{}
	sink := startedSink(t, p, 3)

	for i := 0; i < 3; i++ {
		require.NoError(t, sink.Enqueue(context.Background(), map[string]int{"n": i}))
	}

	require.Equal(t, 3, p.sentCount())
	for i, msg := range p.sent {
		var body map[string]int
		require.NoError(t, json.Unmarshal(msg.payload, &body))
		assert.Equal(t, i, body["n"])
		assert.Equal(t, DefaultTopic, msg.topic)
	}

	stats := sink.Stats()
	assert.Equal(t, int64(0), stats.Pending)
	assert.Equal(t, int64(3), stats.Transmitted)
	assert.False(t, stats.LastFlush.IsZero())
}

func TestBatchSink_BatchSizeOneSendsImmediately(t *testing.T) {
	p := &fakeProducer{}
	sink := startedSink(t, p, 1)

	require.NoError(t, sink.Enqueue(context.Background(), "x"))
	assert.Equal(t, 1, p.sentCount())
}

func TestBatchSink_FailedFlushRetainsWholeBatch(t *testing.T) {
	p := &fakeProducer{failAt: 2}
	sink := startedSink(t, p, 3)

	require.NoError(t, sink.Enqueue(context.Background(), 1))
	require.NoError(t, sink.Enqueue(context.Background(), 2))
	err := sink.Enqueue(context.Background(), 3)

	require.ErrorIs(t, err, ErrFlushFailed)
	assert.Equal(t, int64(3), sink.Stats().Pending)
	assert.Equal(t, int64(1), sink.Stats().Failed)

	// retry resends the batch from the start, so message 1 goes out twice
	require.NoError(t, sink.Flush(context.Background()))
	payloads := make([]string, 0, len(p.sent))
	for _, m := range p.sent {
		payloads = append(payloads, string(m.payload))
	}
	assert.Equal(t, []string{"1", "1", "2", "3"}, payloads)
	assert.Equal(t, int64(0), sink.Stats().Pending)
}

func TestBatchSink_CancelledFlushKeepsBatch(t *testing.T) {
	p := &fakeProducer{}
	sink := startedSink(t, p, 10)
	require.NoError(t, sink.Enqueue(context.Background(), "a"))

	cancelled, cancel := context.WithCancel(context.Background())
	cancel()
	err := sink.Flush(cancelled)

	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, int64(1), sink.Stats().Pending)
	assert.Equal(t, int64(1), sink.Stats().Failed)
	assert.Equal(t, 0, p.sendCalls)
	assert.Equal(t, 0, p.sentCount())

	require.NoError(t, sink.Flush(context.Background()))
	require.Equal(t, 1, p.sentCount())
	assert.JSONEq(t, `"a"`, string(p.sent[0].payload))
	assert.Equal(t, DefaultTopic, p.sent[0].topic)
	assert.Equal(t, int64(0), sink.Stats().Pending)
	assert.Equal(t, int64(1), sink.Stats().Transmitted)
}

func TestBatchSink_TopicsAreBatchedSeparately(t *testing.T) {
	p := &fakeProducer{}
	sink := startedSink(t, p, 2)

	require.NoError(t, sink.Enqueue(context.Background(), "a"))
	require.NoError(t, sink.Enqueue(context.Background(), "b", "other"))
	assert.Equal(t, 0, p.sentCount())

	require.NoError(t, sink.Enqueue(context.Background(), "c", "other"))
	require.Equal(t, 2, p.sentCount())
	assert.Equal(t, "other", p.sent[0].topic)
	assert.Equal(t, int64(1), sink.Stats().Pending)
}

func TestBatchSink_StopFlushesPendingAndCloses(t *testing.T) {
	p := &fakeProducer{}
	sink := startedSink(t, p, 10)

	require.NoError(t, sink.Enqueue(context.Background(), "a", "zeta"))
	require.NoError(t, sink.Enqueue(context.Background(), "b"))

	require.NoError(t, sink.Stop(context.Background()))

	require.Equal(t, 2, p.sentCount())
	assert.Equal(t, DefaultTopic, p.sent[0].topic)
	assert.Equal(t, "zeta", p.sent[1].topic)
	assert.Equal(t, 1, p.closeCalls)
	assert.Equal(t, StateDisconnected, sink.State())
}

func TestBatchSink_StopClosesEvenWhenFlushFails(t *testing.T) {
	p := &fakeProducer{sendErr: errors.New("down")}
	sink := startedSink(t, p, 10)
	require.NoError(t, sink.Enqueue(context.Background(), "a"))

	err := sink.Stop(context.Background())

	require.Error(t, err)
	assert.Equal(t, 1, p.closeCalls)
	assert.Equal(t, StateDisconnected, sink.State())
	assert.Equal(t, int64(1), sink.Stats().Pending)
}

func TestBatchSink_StopWithoutStart(t *testing.T) {
	p := &fakeProducer{}
	sink := NewBatchSink(p, DefaultTopic, 3)

	err := sink.Stop(context.Background())

	assert.ErrorIs(t, err, ErrNotStarted)
	assert.Equal(t, 0, p.closeCalls)
}

func TestBatchSink_EnqueueBeforeStartAndAfterStop(t *testing.T) {
	p := &fakeProducer{}
	sink := NewBatchSink(p, DefaultTopic, 3)
	assert.ErrorIs(t, sink.Enqueue(context.Background(), "a"), ErrNotStarted)

	require.NoError(t, sink.Start(context.Background()))
	require.NoError(t, sink.Stop(context.Background()))
	assert.ErrorIs(t, sink.Enqueue(context.Background(), "a"), ErrNotStarted)
	assert.ErrorIs(t, sink.Stop(context.Background()), ErrNotStarted)
}

func TestBatchSink_EnqueueRejectsUnmarshalable(t *testing.T) {
	sink := startedSink(t, &fakeProducer{}, 3)

	err := sink.Enqueue(context.Background(), make(chan int))

	require.Error(t, err)
	assert.Equal(t, int64(0), sink.Stats().Pending)
}

func TestBatchSink_ConcurrentEnqueueLosesNothing(t *testing.T) {
	p := &fakeProducer{}
	sink := startedSink(t, p, 7)

	var wg sync.WaitGroup
	for w := 0; w < 10; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				assert.NoError(t, sink.Enqueue(context.Background(), i))
			}
		}()
	}
	wg.Wait()
	require.NoError(t, sink.Stop(context.Background()))

	assert.Equal(t, 500, p.sentCount())
	assert.Equal(t, int64(500), sink.Stats().Transmitted)
}

func TestNewAuditMessage(t *testing.T) {
	at := time.Date(2024, 3, 5, 10, 11, 12, 345678000, time.UTC)
	id := uuid.MustParse("7c3a1f2e-8d55-4b1a-9a43-2f7b9e0c1d11")

	msg := NewAuditMessage(ActionUpdateTariff, id, at)
	raw, err := json.Marshal(msg)
	require.NoError(t, err)
	assert.JSONEq(t,
		`{"user_id":"7c3a1f2e-8d55-4b1a-9a43-2f7b9e0c1d11","action":"update_tariff","timestamp":"2024-03-05 10:11:12.345678"}`,
		string(raw))

	anon := NewAuditMessage(ActionCalculateInsuranceCost, uuid.Nil, at)
	raw, err = json.Marshal(anon)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"user_id":null`)
}
