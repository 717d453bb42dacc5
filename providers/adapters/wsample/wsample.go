// Package wsample is an illustrative Provider adapter for a
// subscription-style blockchain feed (the shape of a Solana/NEAR-style
// websocket RPC node), exercising the streaming half of the provider
// contract end to end with gorilla/websocket.
package wsample

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gorilla/websocket"

	"github.com/jbelanger/exitbook/cursor"
	"github.com/jbelanger/exitbook/internal/xerrors"
	"github.com/jbelanger/exitbook/internal/xlog"
	"github.com/jbelanger/exitbook/providers"
)

// subscribeRequest is the JSON-RPC subscription envelope the sample node
// expects: {"method":<operation type>,"params":{"chain":...,"after":cursor}}.
type subscribeRequest struct {
	Method string         `json:"method"`
	Params map[string]any `json:"params"`
}

// streamEvent is one decoded websocket frame.
type streamEvent struct {
	EventID   string          `json:"event_id"`
	Payload   json.RawMessage `json:"payload"`
	Cursor    string          `json:"cursor"`
	Final     bool            `json:"final"`
	ErrorText string          `json:"error,omitempty"`
}

// Dialer abstracts websocket.Dialer.Dial for testing without a real
// socket.
type Dialer interface {
	Dial(url string, header map[string][]string) (Conn, error)
}

// Conn is the subset of *websocket.Conn the adapter needs.
type Conn interface {
	WriteJSON(v any) error
	ReadMessage() (messageType int, p []byte, err error)
	Close() error
}

type gorillaDialer struct{}

func (gorillaDialer) Dial(url string, header map[string][]string) (Conn, error) {
	c, _, err := websocket.DefaultDialer.Dial(url, header)
	if err != nil {
		return nil, err
	}
	return c, nil
}

// Adapter implements providers.Provider over a websocket subscription
// endpoint.
type Adapter struct {
	name       string
	blockchain string
	url        string
	dialer     Dialer
	log        *xlog.Logger
}

// New constructs a wsample adapter pointed at a websocket RPC url.
func New(name, blockchain, url string) *Adapter {
	return &Adapter{
		name:       name,
		blockchain: blockchain,
		url:        url,
		dialer:     gorillaDialer{},
		log:        xlog.Default().With("component", "wsample", "provider", name),
	}
}

func (a *Adapter) Name() string       { return a.name }
func (a *Adapter) Blockchain() string { return a.blockchain }

func (a *Adapter) Capabilities() providers.Capabilities {
	return providers.Capabilities{
		Operations: []providers.OperationType{"get_transactions"},
		RateLimit:  providers.RateLimit{RequestsPerSecond: 10, Burst: 20},
	}
}

func (a *Adapter) RequiresAPIKey() bool { return false }

func (a *Adapter) HealthCheckConfig() providers.HealthCheckConfig {
	return providers.HealthCheckConfig{Interval: 30 * time.Second, Timeout: 5 * time.Second}
}

// Execute is unsupported: this adapter only serves the streaming
// operation it advertises.
func (a *Adapter) Execute(ctx context.Context, op providers.Operation) (providers.Response, error) {
	return providers.Response{}, xerrors.New(xerrors.KindValidation, "wsample.Execute",
		fmt.Errorf("operation %q is only available via ExecuteStreaming", op.Type))
}

// ValidateResponse never sees an application-level-200 error body on this
// transport: websocket frames that encode an error set streamEvent.ErrorText,
// handled directly in the read loop.
func (a *Adapter) ValidateResponse(resp providers.Response) error { return nil }

// ExecuteStreaming opens one websocket connection, subscribes from cur,
// and emits a Batch per frame until the server marks the stream final or
// the context is canceled.
func (a *Adapter) ExecuteStreaming(ctx context.Context, op providers.Operation, cur cursor.State) (<-chan providers.StreamResult, error) {
	conn, err := a.dialer.Dial(a.url, nil)
	if err != nil {
		return nil, xerrors.New(xerrors.KindTransientNetwork, "wsample.ExecuteStreaming", err)
	}

	req := subscribeRequest{
		Method: string(op.Type),
		Params: map[string]any{"chain": op.Chain, "after": cur.Primary.Value},
	}
	if err := conn.WriteJSON(req); err != nil {
		conn.Close()
		return nil, xerrors.New(xerrors.KindTransientNetwork, "wsample.ExecuteStreaming", err)
	}

	out := make(chan providers.StreamResult)
	go a.readLoop(ctx, conn, op.Type, cur, out)
	return out, nil
}

func (a *Adapter) readLoop(ctx context.Context, conn Conn, opType providers.OperationType, cur cursor.State, out chan<- providers.StreamResult) {
	defer close(out)
	defer conn.Close()

	for {
		select {
		case <-ctx.Done():
			out <- providers.StreamResult{Err: ctx.Err()}
			return
		default:
		}

		_, raw, err := conn.ReadMessage()
		if err != nil {
			// The error result carries no cursor; the last good cursor is
			// the one on the most recently emitted batch, which the caller
			// persists to resume the stream under a fresh connection.
			out <- providers.StreamResult{Err: xerrors.New(xerrors.KindTransientNetwork, "wsample.readLoop", err)}
			return
		}

		var ev streamEvent
		if err := json.Unmarshal(raw, &ev); err != nil {
			out <- providers.StreamResult{Err: xerrors.New(xerrors.KindValidation, "wsample.readLoop", err)}
			return
		}
		if ev.ErrorText != "" {
			out <- providers.StreamResult{Err: xerrors.New(xerrors.KindRateLimit, "wsample.readLoop", fmt.Errorf("%s", ev.ErrorText))}
			continue
		}

		cur.Primary.Value = ev.Cursor
		cur.TotalFetched++
		cur.ProviderName = a.name

		batch := &providers.Batch{
			RawTransactions: []providers.RawTransaction{{
				EventID:      ev.EventID,
				RawPayload:   ev.Payload,
				ProviderName: a.name,
			}},
			OperationType: opType,
			Cursor:        cur,
			IsComplete:    ev.Final,
		}
		out <- providers.StreamResult{Batch: batch}
		if ev.Final {
			return
		}
	}
}
