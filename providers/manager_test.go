package providers

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jbelanger/exitbook/cursor"
	"github.com/jbelanger/exitbook/internal/xerrors"
)

type fakeProvider struct {
	name  string
	chain string
	ops   []OperationType
	fail  func(ctx context.Context, op Operation) error
	value any
}

func (f *fakeProvider) Name() string       { return f.name }
func (f *fakeProvider) Blockchain() string { return f.chain }
func (f *fakeProvider) Capabilities() Capabilities {
	return Capabilities{Operations: f.ops}
}
func (f *fakeProvider) RequiresAPIKey() bool                { return false }
func (f *fakeProvider) HealthCheckConfig() HealthCheckConfig { return HealthCheckConfig{} }
func (f *fakeProvider) ValidateResponse(Response) error      { return nil }

func (f *fakeProvider) Execute(ctx context.Context, op Operation) (Response, error) {
	if f.fail != nil {
		if err := f.fail(ctx, op); err != nil {
			return Response{}, err
		}
	}
	return Response{Value: f.value}, nil
}

func (f *fakeProvider) ExecuteStreaming(ctx context.Context, op Operation, cur cursor.State) (<-chan StreamResult, error) {
	ch := make(chan StreamResult, 1)
	ch <- StreamResult{Batch: &Batch{OperationType: op.Type, IsComplete: true, Cursor: cur}}
	close(ch)
	return ch, nil
}

func TestManagerFailoverOnTransientError(t *testing.T) {
	m := NewManager()
	bad := &fakeProvider{
		name: "A", chain: "bitcoin", ops: []OperationType{"get_transactions"},
		fail: func(ctx context.Context, op Operation) error {
			return xerrors.New(xerrors.KindTransientNetwork, "fake", errors.New("boom"))
		},
	}
	good := &fakeProvider{name: "B", chain: "bitcoin", ops: []OperationType{"get_transactions"}, value: "ok"}
	m.Register(bad, 0)
	m.Register(good, 0)

	var gotEvent FailoverEvent
	events, unsub := m.SubscribeFailovers()
	defer unsub()

	resp, err := m.ExecuteWithFailover(context.Background(), Operation{Type: "get_transactions", Chain: "bitcoin"})
	if err != nil {
		t.Fatalf("expected failover to succeed, got %v", err)
	}
	if resp.Value != "ok" {
		t.Fatalf("expected response from provider B, got %v", resp.Value)
	}

	select {
	case gotEvent = <-events:
	case <-time.After(time.Second):
		t.Fatal("expected a failover event")
	}
	if gotEvent.From != "A" || gotEvent.To != "B" {
		t.Fatalf("failover event = %+v", gotEvent)
	}
}

func TestManagerCircuitOpensAfterRepeatedFailures(t *testing.T) {
	m := NewManager(WithRetryPolicy(RetryPolicy{MaxAttempts: 1}))
	calls := 0
	bad := &fakeProvider{
		name: "A", chain: "ethereum", ops: []OperationType{"get_transactions"},
		fail: func(ctx context.Context, op Operation) error {
			calls++
			return xerrors.New(xerrors.KindTransientNetwork, "fake", errors.New("down"))
		},
	}
	m.Register(bad, 0)

	for i := 0; i < 3; i++ {
		_, err := m.ExecuteWithFailover(context.Background(), Operation{Type: "get_transactions", Chain: "ethereum"})
		if err == nil {
			t.Fatalf("expected error on call %d", i)
		}
	}

	_, c := m.trackerFor("ethereum", "A")
	if got := c.State(time.Now()); got != CircuitOpen {
		t.Fatalf("circuit state after 3 failures = %v, want open", got)
	}
	if calls != 3 {
		t.Fatalf("expected 3 calls before circuit opened guards further dispatch, got %d", calls)
	}
}

func TestGetProvidersOrderingDeterministicTieBreak(t *testing.T) {
	m := NewManager()
	p1 := &fakeProvider{name: "first", chain: "near", ops: []OperationType{"get_transactions"}}
	p2 := &fakeProvider{name: "second", chain: "near", ops: []OperationType{"get_transactions"}}
	m.Register(p1, 0)
	m.Register(p2, 0)

	got := m.GetProviders("near", "get_transactions")
	if len(got) != 2 || got[0].Name() != "first" || got[1].Name() != "second" {
		t.Fatalf("expected registration-order tie-break, got %v, %v", got[0].Name(), got[1].Name())
	}
}
