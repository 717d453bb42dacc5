package wsample

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/jbelanger/exitbook/cursor"
	"github.com/jbelanger/exitbook/providers"
)

type fakeConn struct {
	frames [][]byte
	idx    int
	writes []any
}

func (c *fakeConn) WriteJSON(v any) error {
	c.writes = append(c.writes, v)
	return nil
}

func (c *fakeConn) ReadMessage() (int, []byte, error) {
	if c.idx >= len(c.frames) {
		return 0, nil, context.Canceled
	}
	f := c.frames[c.idx]
	c.idx++
	return 1, f, nil
}

func (c *fakeConn) Close() error { return nil }

type fakeDialer struct{ conn *fakeConn }

func (d fakeDialer) Dial(url string, header map[string][]string) (Conn, error) {
	return d.conn, nil
}

func frame(t *testing.T, ev streamEvent) []byte {
	t.Helper()
	b, err := json.Marshal(ev)
	if err != nil {
		t.Fatal(err)
	}
	return b
}

func TestExecuteStreamingEmitsBatchesUntilFinal(t *testing.T) {
	conn := &fakeConn{frames: [][]byte{
		frame(t, streamEvent{EventID: "e1", Payload: json.RawMessage(`{"a":1}`), Cursor: "1"}),
		frame(t, streamEvent{EventID: "e2", Payload: json.RawMessage(`{"a":2}`), Cursor: "2", Final: true}),
	}}
	a := New("wsample", "solana", "wss://example.invalid")
	a.dialer = fakeDialer{conn: conn}

	ch, err := a.ExecuteStreaming(context.Background(), providers.Operation{Type: "get_transactions", Chain: "solana"}, cursor.State{})
	if err != nil {
		t.Fatal(err)
	}

	var batches []*providers.Batch
	for r := range ch {
		if r.Err != nil {
			t.Fatalf("unexpected stream error: %v", r.Err)
		}
		batches = append(batches, r.Batch)
	}
	if len(batches) != 2 {
		t.Fatalf("expected 2 batches, got %d", len(batches))
	}
	if !batches[1].IsComplete {
		t.Fatal("expected the final batch to be marked complete")
	}
	if batches[1].Cursor.Primary.Value != "2" {
		t.Fatalf("expected cursor to advance to 2, got %q", batches[1].Cursor.Primary.Value)
	}
	if len(conn.writes) != 1 {
		t.Fatalf("expected exactly one subscribe request written, got %d", len(conn.writes))
	}
}

func TestExecuteStreamingSurfacesRateLimitErrorAndContinues(t *testing.T) {
	conn := &fakeConn{frames: [][]byte{
		frame(t, streamEvent{ErrorText: "rate limited"}),
		frame(t, streamEvent{EventID: "e1", Payload: json.RawMessage(`{}`), Cursor: "1", Final: true}),
	}}
	a := New("wsample", "solana", "wss://example.invalid")
	a.dialer = fakeDialer{conn: conn}

	ch, err := a.ExecuteStreaming(context.Background(), providers.Operation{Type: "get_transactions"}, cursor.State{})
	if err != nil {
		t.Fatal(err)
	}

	var sawErr, sawBatch bool
	timeout := time.After(2 * time.Second)
	for {
		select {
		case r, ok := <-ch:
			if !ok {
				if !sawErr || !sawBatch {
					t.Fatalf("expected both a rate-limit error and a final batch, sawErr=%v sawBatch=%v", sawErr, sawBatch)
				}
				return
			}
			if r.Err != nil {
				sawErr = true
			}
			if r.Batch != nil {
				sawBatch = true
			}
		case <-timeout:
			t.Fatal("timed out waiting for stream to close")
		}
	}
}

func TestExecuteIsUnsupported(t *testing.T) {
	a := New("wsample", "solana", "wss://example.invalid")
	if _, err := a.Execute(context.Background(), providers.Operation{Type: "get_transactions"}); err == nil {
		t.Fatal("expected Execute to reject in favor of ExecuteStreaming")
	}
}
