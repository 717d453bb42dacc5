package exchangesample

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"testing"

	"github.com/jbelanger/exitbook/cursor"
	"github.com/jbelanger/exitbook/providers"
)

type fakeDoer struct {
	resp *http.Response
	err  error
	req  *http.Request
}

func (d *fakeDoer) Do(req *http.Request) (*http.Response, error) {
	d.req = req
	return d.resp, d.err
}

func jsonResponse(body string) *http.Response {
	return &http.Response{StatusCode: 200, Body: io.NopCloser(bytes.NewBufferString(body))}
}

func TestExecuteSignsRequestAndParsesPage(t *testing.T) {
	doer := &fakeDoer{resp: jsonResponse(`{"entries":[{"id":1}],"next_cursor":"c2","has_more":true}`)}
	a := New("exchangesample", "https://example.invalid", "key1", []byte("secret"))
	a.httpClient = doer

	resp, err := a.Execute(context.Background(), providers.Operation{Type: "get_transactions", Params: map[string]any{"after": "c1"}})
	if err != nil {
		t.Fatal(err)
	}
	page, ok := resp.Value.(ledgerPage)
	if !ok {
		t.Fatalf("expected ledgerPage value, got %T", resp.Value)
	}
	if page.Cursor != "c2" || len(page.Entries) != 1 {
		t.Fatalf("unexpected page: %+v", page)
	}
	if doer.req.Header.Get("Authorization") == "" {
		t.Fatal("expected a signed Authorization header")
	}
}

func TestExecuteMapsApplicationLevelErrorToRateLimit(t *testing.T) {
	doer := &fakeDoer{resp: jsonResponse(`{"error":"too many requests"}`)}
	a := New("exchangesample", "https://example.invalid", "key1", []byte("secret"))
	a.httpClient = doer

	_, err := a.Execute(context.Background(), providers.Operation{Type: "get_transactions"})
	if err == nil {
		t.Fatal("expected application-level error body to surface as an error")
	}
}

func TestExecuteStreamingUnsupported(t *testing.T) {
	a := New("exchangesample", "https://example.invalid", "key1", []byte("secret"))
	if _, err := a.ExecuteStreaming(context.Background(), providers.Operation{Type: "get_transactions"}, cursor.State{}); err == nil {
		t.Fatal("expected ExecuteStreaming to be unsupported for this adapter")
	}
}
