// Package exchangesample is an illustrative Provider adapter for a
// REST-based exchange API authenticated by a short-lived session token
// (the shape of Kraken/Coinbase-style key+secret login flows), exercising
// the non-streaming half of the provider contract with a
// golang-jwt/jwt/v4-signed session token and the validate_response hook
// for application-level-200 errors.
package exchangesample

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v4"

	"github.com/jbelanger/exitbook/cursor"
	"github.com/jbelanger/exitbook/internal/xerrors"
	"github.com/jbelanger/exitbook/internal/xlog"
	"github.com/jbelanger/exitbook/providers"
)

// HTTPDoer abstracts *http.Client for testing.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// errorEnvelope is the shape of this sample exchange's application-level
// error body, returned with a 200 status code.
type errorEnvelope struct {
	Error string `json:"error,omitempty"`
}

// ledgerPage is one page of the sample exchange's ledger endpoint.
type ledgerPage struct {
	Entries []json.RawMessage `json:"entries"`
	Cursor  string             `json:"next_cursor"`
	HasMore bool               `json:"has_more"`
}

// Adapter implements providers.Provider over the sample exchange's REST
// ledger endpoint, signing a session token per request.
type Adapter struct {
	name       string
	baseURL    string
	apiKey     string
	secret     []byte
	httpClient HTTPDoer
	log        *xlog.Logger
}

// New constructs an exchangesample adapter. secret signs the per-request
// session token; it is never logged.
func New(name, baseURL, apiKey string, secret []byte) *Adapter {
	return &Adapter{
		name:       name,
		baseURL:    baseURL,
		apiKey:     apiKey,
		secret:     secret,
		httpClient: http.DefaultClient,
		log:        xlog.Default().With("component", "exchangesample", "provider", name),
	}
}

func (a *Adapter) Name() string       { return a.name }
func (a *Adapter) Blockchain() string { return "" } // exchange adapters are not chain-scoped

func (a *Adapter) Capabilities() providers.Capabilities {
	return providers.Capabilities{
		Operations: []providers.OperationType{"get_transactions", "get_balance"},
		RateLimit:  providers.RateLimit{RequestsPerSecond: 1, PerMinute: 15, Burst: 3},
	}
}

func (a *Adapter) RequiresAPIKey() bool { return true }

func (a *Adapter) HealthCheckConfig() providers.HealthCheckConfig {
	return providers.HealthCheckConfig{Interval: time.Minute, Timeout: 10 * time.Second}
}

// sessionToken signs a short-lived JWT carrying the api key as subject,
// the shape an exchange expecting Bearer-token auth needs per request.
func (a *Adapter) sessionToken() (string, error) {
	claims := jwt.RegisteredClaims{
		Subject:   a.apiKey,
		IssuedAt:  jwt.NewNumericDate(time.Now()),
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(30 * time.Second)),
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return tok.SignedString(a.secret)
}

// Execute performs one non-streaming ledger page fetch.
func (a *Adapter) Execute(ctx context.Context, op providers.Operation) (providers.Response, error) {
	token, err := a.sessionToken()
	if err != nil {
		return providers.Response{}, xerrors.New(xerrors.KindConfiguration, "exchangesample.Execute", err)
	}

	after, _ := op.Params["after"].(string)
	url := fmt.Sprintf("%s/ledger?after=%s", a.baseURL, after)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return providers.Response{}, xerrors.New(xerrors.KindValidation, "exchangesample.Execute", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return providers.Response{}, xerrors.New(xerrors.KindTransientNetwork, "exchangesample.Execute", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return providers.Response{}, xerrors.New(xerrors.KindTransientNetwork, "exchangesample.Execute", err)
	}

	r := providers.Response{Raw: body}
	if err := a.ValidateResponse(r); err != nil {
		return r, err
	}

	var page ledgerPage
	if err := json.Unmarshal(body, &page); err != nil {
		return r, xerrors.New(xerrors.KindValidation, "exchangesample.Execute", err)
	}
	r.Value = page
	return r, nil
}

// ValidateResponse implements the application-level-200 error
// detection: a non-empty Error field is mapped to a retryable rate-limit
// error regardless of HTTP status, the shape Etherscan/Kraken-style APIs
// use for throttling.
func (a *Adapter) ValidateResponse(resp providers.Response) error {
	var env errorEnvelope
	if err := json.Unmarshal(resp.Raw, &env); err != nil {
		return nil // not every response follows the envelope shape; not our concern here
	}
	if env.Error != "" {
		return xerrors.New(xerrors.KindRateLimit, "exchangesample.ValidateResponse", fmt.Errorf("%s", env.Error))
	}
	return nil
}

// ExecuteStreaming is unsupported: this adapter only serves page-at-a-time
// polling via Execute: the caller loops, advancing the cursor from each
// ledgerPage.Cursor.
func (a *Adapter) ExecuteStreaming(ctx context.Context, op providers.Operation, cur cursor.State) (<-chan providers.StreamResult, error) {
	return nil, xerrors.New(xerrors.KindValidation, "exchangesample.ExecuteStreaming",
		fmt.Errorf("operation %q is only available via Execute page polling", op.Type))
}
