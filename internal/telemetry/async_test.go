package telemetry

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"passwordless-auth/internal/audit/domain"
)

// mockEventEmitter implements EventEmitter for tests.
type mockEventEmitter struct {
	mu      sync.Mutex
	events  []*domain.AuditLog
	emitErr error
	done    chan struct{}
}

func (m *mockEventEmitter) Emit(ctx context.Context, event *domain.AuditLog) error {
	m.mu.Lock()
	m.events = append(m.events, event)
	m.mu.Unlock()
	if m.done != nil {
		m.done <- struct{}{}
	}
	return m.emitErr
}

func (m *mockEventEmitter) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.events)
}

func TestEmitAsync_Delivers(t *testing.T) {
	em := &mockEventEmitter{done: make(chan struct{}, 1)}
	EmitAsync(em, &domain.AuditLog{Action: domain.ActionUserLogin})
	select {
	case <-em.done:
	case <-time.After(2 * time.Second):
		t.Fatal("event was not emitted")
	}
	if em.count() != 1 {
		t.Errorf("events = %d, want 1", em.count())
	}
}

func TestEmitAsync_NilInputs(t *testing.T) {
	EmitAsync(nil, &domain.AuditLog{})
	em := &mockEventEmitter{}
	EmitAsync(em, nil)
	time.Sleep(10 * time.Millisecond)
	if em.count() != 0 {
		t.Error("nil event should not be emitted")
	}
}

func TestInline_RunsOnCaller(t *testing.T) {
	ran := false
	Inline("test", func(ctx context.Context) error {
		if _, ok := ctx.Deadline(); !ok {
			t.Error("context should carry a deadline")
		}
		ran = true
		return errors.New("logged, not returned")
	})
	if !ran {
		t.Fatal("Inline did not run fn")
	}
}

func TestMultiEmitter_TriesAll(t *testing.T) {
	failing := &mockEventEmitter{emitErr: errors.New("kafka down")}
	ok := &mockEventEmitter{}
	m := MultiEmitter{failing, nil, ok}
	err := m.Emit(context.Background(), &domain.AuditLog{})
	if err == nil {
		t.Error("first error should be returned")
	}
	if failing.count() != 1 || ok.count() != 1 {
		t.Errorf("emitters called %d/%d times, want 1/1", failing.count(), ok.count())
	}
}
