package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/marketplace/internal/domain"
	"github.com/vladislavdragonenkov/marketplace/internal/metrics"
	"github.com/vladislavdragonenkov/marketplace/internal/storage/memory"
)

func statusChanged(id, orderID string) domain.OutboxMessage {
	return domain.OutboxMessage{
		ID:            id,
		AggregateType: domain.AggregateOrder,
		AggregateID:   orderID,
		EventType:     domain.EventOrderStatusChanged,
		Payload:       []byte(`{"status":"dispatched"}`),
	}
}

func TestWorker_ProcessOnce_PublishOutcomes(t *testing.T) {
	t.Parallel()

	brokerDown := errors.New("broker unavailable")
	tests := []struct {
		name       string
		publisher  *stubPublisher
		wantSent   int
		wantCalls  int
		wantFailed bool
		wantDLQ    int
		wantByKind map[string]float64
	}{
		{
			name:       "first attempt succeeds",
			publisher:  &stubPublisher{},
			wantSent:   1,
			wantCalls:  1,
			wantByKind: map[string]float64{resultSent: 1},
		},
		{
			name:       "succeeds after retries",
			publisher:  &stubPublisher{sequenceErrors: []error{brokerDown, brokerDown, nil}},
			wantSent:   1,
			wantCalls:  3,
			wantByKind: map[string]float64{resultSent: 1, resultRetry: 2},
		},
		{
			name:       "attempts exhausted",
			publisher:  &stubPublisher{err: brokerDown},
			wantCalls:  3,
			wantFailed: true,
			wantDLQ:    1,
			wantByKind: map[string]float64{resultRetry: 3, resultFailed: 1},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			reg := prometheus.NewRegistry()
			repo := &stubOutboxRepo{pending: []domain.OutboxMessage{statusChanged("msg-1", "order-1")}}
			dlq := &stubPublisher{}
			worker := NewWorker(repo, tt.publisher,
				WithDLQPublisher(dlq),
				WithRetryBaseDelay(0),
				WithMaxAttempts(3),
				WithMetrics(metrics.NewMarketMetricsWithRegisterer(reg)),
			)

			require.Equal(t, tt.wantSent, worker.ProcessOnce(context.Background()))
			require.Equal(t, tt.wantCalls, tt.publisher.calls())
			require.Equal(t, tt.wantDLQ, dlq.calls())
			if tt.wantFailed {
				require.Equal(t, []string{"msg-1"}, repo.failedIDs)
				require.Empty(t, repo.sentIDs)

				var envelope deadLetterEnvelope
				require.NoError(t, json.Unmarshal(dlq.last.Payload, &envelope))
				require.Equal(t, "order-1", envelope.AggregateID)
				require.Contains(t, envelope.PublishError, "broker unavailable")
				require.JSONEq(t, `{"status":"dispatched"}`, string(envelope.Payload))
			} else {
				require.Equal(t, []string{"msg-1"}, repo.sentIDs)
				require.Empty(t, repo.failedIDs)
			}
			for result, want := range tt.wantByKind {
				require.Equal(t, want, publishAttempts(t, reg, result), result)
			}
		})
	}
}

func TestWorker_DeadLetterKeepsEnvelopeValidForBrokenPayload(t *testing.T) {
	t.Parallel()

	msg := statusChanged("msg-4", "order-4")
	msg.Payload = []byte("not-json")
	repo := &stubOutboxRepo{pending: []domain.OutboxMessage{msg}}
	dlq := &stubPublisher{}

	worker := NewWorker(repo, &stubPublisher{err: errors.New("down")},
		WithDLQPublisher(dlq), WithMaxAttempts(1))
	worker.ProcessOnce(context.Background())

	var envelope deadLetterEnvelope
	require.NoError(t, json.Unmarshal(dlq.last.Payload, &envelope))
	require.Equal(t, "msg-4", envelope.OutboxID)
	require.Equal(t, "null", string(envelope.Payload))
	require.False(t, envelope.FailedAt.IsZero())
}

func TestWorker_ProcessOnce_CancelledContextLeavesPending(t *testing.T) {
	t.Parallel()

	repo := &stubOutboxRepo{pending: []domain.OutboxMessage{statusChanged("msg-5", "order-5")}}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.Zero(t, NewWorker(repo, &stubPublisher{}).ProcessOnce(ctx))
	require.Empty(t, repo.sentIDs)
	require.Empty(t, repo.failedIDs)
}

func TestWorker_RelaysMemoryOutboxInBatches(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	repo := memory.NewOutboxRepository()
	for _, msg := range []domain.OutboxMessage{
		{AggregateType: domain.AggregateOrder, AggregateID: "order-1", EventType: domain.EventOrderCreated},
		{AggregateType: domain.AggregateNotification, AggregateID: "n-1", EventType: domain.EventNotificationCreated},
		{AggregateType: domain.AggregateInventory, AggregateID: "product-1", EventType: domain.EventInventoryDecrementFailed},
	} {
		_, err := repo.Enqueue(ctx, msg)
		require.NoError(t, err)
	}

	publisher := &stubPublisher{}
	worker := NewWorker(repo, publisher, WithBatchSize(2), WithRetryBaseDelay(0))

	require.Equal(t, 2, worker.ProcessOnce(ctx))
	require.Equal(t, 1, worker.ProcessOnce(ctx))
	require.Empty(t, repo.AllPending())
	require.Equal(t, domain.EventInventoryDecrementFailed, publisher.last.EventType, "fifo order")
	require.JSONEq(t, `{}`, string(publisher.last.Payload))
}

func TestRetryBackoff(t *testing.T) {
	t.Parallel()

	w := NewWorker(nil, nil, WithRetryBaseDelay(10*time.Millisecond))
	for attempt, want := range map[int]time.Duration{
		1: 10 * time.Millisecond,
		2: 20 * time.Millisecond,
		4: 80 * time.Millisecond,
	} {
		require.Equal(t, want, w.retryBackoff(attempt), "attempt %d", attempt)
	}
	require.Equal(t, maxBackoff, w.retryBackoff(200))
	require.Zero(t, NewWorker(nil, nil, WithRetryBaseDelay(0)).retryBackoff(3))
}

func TestWorker_Run_StopsOnContextCancel(t *testing.T) {
	t.Parallel()

	repo := &stubOutboxRepo{}
	worker := NewWorker(repo, &stubPublisher{}, WithPollInterval(5*time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		worker.Run(ctx)
	}()

	require.Eventually(t, func() bool { return repo.pulls() >= 2 }, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker did not stop on context cancel")
	}
}

func TestWorker_Run_WithoutPublisherReturnsImmediately(t *testing.T) {
	t.Parallel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		NewWorker(&stubOutboxRepo{}, nil).Run(context.Background())
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("disabled worker kept running")
	}
}

func publishAttempts(t *testing.T, reg *prometheus.Registry, result string) float64 {
	t.Helper()

	families, err := reg.Gather()
	require.NoError(t, err)
	for _, family := range families {
		if family.GetName() != "market_outbox_publish_attempts_total" {
			continue
		}
		for _, m := range family.GetMetric() {
			for _, label := range m.GetLabel() {
				if label.GetName() == "result" && label.GetValue() == result {
					return m.GetCounter().GetValue()
				}
			}
		}
	}
	return 0
}

type stubOutboxRepo struct {
	mu        sync.Mutex
	pending   []domain.OutboxMessage
	pullCount int
	sentIDs   []string
	failedIDs []string
}

func (s *stubOutboxRepo) Enqueue(_ context.Context, msg domain.OutboxMessage) (domain.OutboxMessage, error) {
	return msg, nil
}

func (s *stubOutboxRepo) PullPending(_ context.Context, limit int) ([]domain.OutboxMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pullCount++
	if limit <= 0 || limit >= len(s.pending) {
		return append([]domain.OutboxMessage(nil), s.pending...), nil
	}
	return append([]domain.OutboxMessage(nil), s.pending[:limit]...), nil
}

func (s *stubOutboxRepo) pulls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pullCount
}

func (s *stubOutboxRepo) Stats(context.Context) (domain.OutboxStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stats := domain.OutboxStats{PendingCount: len(s.pending)}
	if len(s.pending) > 0 {
		stats.OldestPendingAt = time.Now().UTC().Add(-time.Second)
	}
	return stats, nil
}

func (s *stubOutboxRepo) MarkSent(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sentIDs = append(s.sentIDs, id)
	return nil
}

func (s *stubOutboxRepo) MarkFailed(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failedIDs = append(s.failedIDs, id)
	return nil
}

type stubPublisher struct {
	mu             sync.Mutex
	err            error
	sequenceErrors []error
	callCount      int
	last           domain.OutboxMessage
}

func (s *stubPublisher) Publish(event domain.OutboxMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.callCount++
	s.last = event
	if len(s.sequenceErrors) > 0 {
		err := s.sequenceErrors[0]
		s.sequenceErrors = s.sequenceErrors[1:]
		return err
	}
	return s.err
}

func (s *stubPublisher) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.callCount
}

var _ domain.OutboxRepository = (*stubOutboxRepo)(nil)
var _ domain.OutboxPublisher = (*stubPublisher)(nil)
