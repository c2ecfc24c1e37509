package amqp

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rabbitmq/amqp091-go"

	"fintrack/internal/core"
	"fintrack/internal/log"
	"fintrack/internal/middleware/trace"
)

type fakeChannel struct {
	published []amqp091.Publishing
	keys      []string
	err       error
	closed    bool
}

func (f *fakeChannel) PublishWithContext(_ context.Context, _, key string, _, _ bool, msg amqp091.Publishing) error {
	if f.err != nil {
		return f.err
	}
	f.keys = append(f.keys, key)
	f.published = append(f.published, msg)
	return nil
}

func (f *fakeChannel) Close() error {
	f.closed = true
	return nil
}

func newTestClient(ch channel) *Client {
	return &Client{
		exchangeName: "test_exchange",
		logger:       log.Discard(),
		channel:      ch,
	}
}

func sampleTransaction() core.Transaction {
	return core.Transaction{
		ID:          42,
		Description: "Groceries",
		Amount:      core.Money{Cents: 1234},
		Type:        core.Expense,
		Date:        time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC),
		OwnerID:     7,
	}
}

func TestExponentialBackoff(t *testing.T) {
	tests := []struct {
		attempt  int
		expected time.Duration
	}{
		{0, 1 * time.Second},
		{1, 2 * time.Second},
		{2, 4 * time.Second},
		{3, 8 * time.Second},
		{4, 16 * time.Second},
		{5, 30 * time.Second},  // capped at 30s
		{10, 30 * time.Second}, // capped at 30s
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("attempt_%d", tt.attempt), func(t *testing.T) {
			result := exponentialBackoff(tt.attempt)
			if result != tt.expected {
				t.Errorf("exponentialBackoff(%d) = %v, want %v", tt.attempt, result, tt.expected)
			}
		})
	}
}

func TestIsConnectionError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{"nil error", nil, false},
		{"connection refused", errors.New("dial tcp: connect: connection refused"), true},
		{"EOF error", errors.New("unexpected EOF"), true},
		{"broken pipe error", errors.New("broken pipe"), true},
		{"closed network connection", errors.New("use of closed network connection"), true},
		{"amqp closed", fmt.Errorf("publish: %w", amqp091.ErrClosed), true},
		{"other error", errors.New("some other error"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isConnectionError(tt.err); got != tt.expected {
				t.Errorf("isConnectionError(%v) = %v, want %v", tt.err, got, tt.expected)
			}
		})
	}
}

func TestClient_PublishTransactionEvents(t *testing.T) {
	ch := &fakeChannel{}
	client := newTestClient(ch)
	ctx := context.WithValue(context.Background(), trace.RequestIDKey, "req-123")

	if err := client.PublishTransactionCreated(ctx, sampleTransaction()); err != nil {
		t.Fatalf("PublishTransactionCreated() error = %v", err)
	}
	if err := client.PublishTransactionDeleted(ctx, sampleTransaction()); err != nil {
		t.Fatalf("PublishTransactionDeleted() error = %v", err)
	}

	if len(ch.published) != 2 {
		t.Fatalf("published %d messages, want 2", len(ch.published))
	}
	if ch.keys[0] != EventTransactionCreated || ch.keys[1] != EventTransactionDeleted {
		t.Errorf("routing keys = %v", ch.keys)
	}

	msg := ch.published[0]
	if msg.ContentType != "application/json" || msg.DeliveryMode != amqp091.Persistent {
		t.Errorf("unexpected publishing properties: %+v", msg)
	}
	if msg.CorrelationId != "req-123" {
		t.Errorf("CorrelationId = %q, want req-123", msg.CorrelationId)
	}
	if msg.MessageId == "" || msg.MessageId == ch.published[1].MessageId {
		t.Errorf("message ids must be set and unique: %q %q", msg.MessageId, ch.published[1].MessageId)
	}

	evt, err := TransactionEventFromJSON(msg.Body)
	if err != nil {
		t.Fatalf("TransactionEventFromJSON() error = %v", err)
	}
	if evt.TransactionID != 42 || evt.OwnerID != 7 || evt.Type != core.Expense || evt.Amount.Cents != 1234 {
		t.Errorf("unexpected event %+v", evt)
	}
	if !strings.Contains(string(msg.Body), `"amount":"12.34"`) {
		t.Errorf("amount should be encoded as a decimal string: %s", msg.Body)
	}
}

func TestClient_CircuitBreaker(t *testing.T) {
	client := newTestClient(&fakeChannel{})

	t.Run("initial state is closed", func(t *testing.T) {
		if client.isCircuitOpen() {
			t.Error("Circuit breaker should be closed initially")
		}
	})

	t.Run("record success resets state", func(t *testing.T) {
		atomic.StoreInt64(&client.failureCount, 3)
		atomic.StoreInt32(&client.state, StateOpen)

		client.recordSuccess()

		if client.isCircuitOpen() {
			t.Error("Circuit breaker should be closed after success")
		}
		if atomic.LoadInt64(&client.failureCount) != 0 {
			t.Error("Failure count should be reset to 0 after success")
		}
	})

	t.Run("multiple failures open circuit", func(t *testing.T) {
		for i := 0; i < maxFailures; i++ {
			client.recordFailure()
		}
		if !client.isCircuitOpen() {
			t.Error("Circuit breaker should be open after max failures")
		}
	})

	t.Run("circuit transitions to half-open after timeout", func(t *testing.T) {
		atomic.StoreInt32(&client.state, StateOpen)
		client.lastFailure = time.Now().Add(-openTimeout - time.Second)

		if client.isCircuitOpen() {
			t.Error("Circuit should transition to half-open after timeout")
		}
		if atomic.LoadInt32(&client.state) != StateHalfOpen {
			t.Error("State should be StateHalfOpen after timeout")
		}
	})

	t.Run("failure in half-open reopens", func(t *testing.T) {
		atomic.StoreInt64(&client.failureCount, 0)
		atomic.StoreInt32(&client.state, StateHalfOpen)

		client.recordFailure()

		if atomic.LoadInt32(&client.state) != StateOpen {
			t.Error("State should be StateOpen after a half-open failure")
		}
	})
}

func TestClient_PublishFailures(t *testing.T) {
	t.Run("publish fails when circuit is open", func(t *testing.T) {
		client := newTestClient(&fakeChannel{})
		atomic.StoreInt32(&client.state, StateOpen)
		client.lastFailure = time.Now()

		err := client.PublishTransactionCreated(context.Background(), sampleTransaction())
		if !errors.Is(err, ErrCircuitOpen) {
			t.Errorf("error = %v, want ErrCircuitOpen", err)
		}
	})

	t.Run("publish respects context cancellation", func(t *testing.T) {
		client := newTestClient(&fakeChannel{})
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		err := client.PublishTransactionCreated(ctx, sampleTransaction())
		if err != context.Canceled {
			t.Errorf("error = %v, want context.Canceled", err)
		}
	})

	t.Run("connection error drops channel", func(t *testing.T) {
		ch := &fakeChannel{err: amqp091.ErrClosed}
		client := newTestClient(ch)

		if err := client.PublishTransactionCreated(context.Background(), sampleTransaction()); err == nil {
			t.Fatal("expected publish error")
		}
		if !ch.closed || client.channel != nil {
			t.Error("channel should be closed and dropped after a connection error")
		}
		if atomic.LoadInt64(&client.failureCount) != 1 {
			t.Errorf("failureCount = %d, want 1", client.failureCount)
		}
	})

	t.Run("no channel and no url", func(t *testing.T) {
		client := newTestClient(nil)
		if err := client.PublishTransactionDeleted(context.Background(), sampleTransaction()); err == nil {
			t.Error("expected error without a channel")
		}
	})
}

func TestTransactionEvent_JSON(t *testing.T) {
	evt := NewTransactionEvent(EventTransactionCreated, sampleTransaction())
	if evt.Timestamp.IsZero() || time.Since(evt.Timestamp) > time.Second {
		t.Error("Timestamp should be recent")
	}

	data, err := evt.ToJSON()
	if err != nil {
		t.Fatalf("ToJSON() error = %v", err)
	}
	parsed, err := TransactionEventFromJSON(data)
	if err != nil {
		t.Fatalf("TransactionEventFromJSON() error = %v", err)
	}
	if parsed.Event != EventTransactionCreated || !parsed.Date.Equal(evt.Date) {
		t.Errorf("parsed = %+v", parsed)
	}

	if _, err := TransactionEventFromJSON([]byte(`{"transactionId": "nope"}`)); err == nil {
		t.Error("TransactionEventFromJSON() should fail with invalid JSON")
	}
}
