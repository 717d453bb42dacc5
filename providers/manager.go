package providers

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/singleflight"

	"github.com/jbelanger/exitbook/cursor"
	"github.com/jbelanger/exitbook/internal/config"
	"github.com/jbelanger/exitbook/internal/xerrors"
	"github.com/jbelanger/exitbook/internal/xlog"
	"github.com/jbelanger/exitbook/providers/cache"
)

// providerKey identifies one (chain, provider_name) pair in the
// process-wide health/circuit maps.
type providerKey struct {
	chain string
	name  string
}

type registration struct {
	provider Provider
	order    int // registration order, used for deterministic tie-breaks
	priority float64
}

// Manager orchestrates a pool of providers. One Manager
// typically serves an entire process; callers register adapters for every
// chain/exchange they support at startup.
type Manager struct {
	log *xlog.Logger

	mu        sync.RWMutex
	providers map[string][]*registration // chain -> providers

	healthMu sync.Mutex
	health   map[providerKey]*HealthTracker
	circuits map[providerKey]*CircuitBreaker

	circuitCfg config.CircuitConfig
	retry      RetryPolicy
	callTimeout time.Duration

	cache  *cache.Cache
	ttl    time.Duration

	failovers *failoverFeed
	group     singleflight.Group
	metrics   *metricsSet
}

// ManagerOption configures optional Manager behavior.
type ManagerOption func(*Manager)

// WithRegisterer installs a Prometheus registerer for provider metrics.
func WithRegisterer(reg prometheus.Registerer) ManagerOption {
	return func(m *Manager) { m.metrics = newMetricsSet(reg) }
}

// WithCircuitConfig overrides the default circuit breaker config.
func WithCircuitConfig(cfg config.CircuitConfig) ManagerOption {
	return func(m *Manager) { m.circuitCfg = cfg }
}

// WithRetryPolicy overrides the default retry policy.
func WithRetryPolicy(p RetryPolicy) ManagerOption {
	return func(m *Manager) { m.retry = p }
}

// WithCallTimeout overrides the default per-call timeout (default 30s).
func WithCallTimeout(d time.Duration) ManagerOption {
	return func(m *Manager) { m.callTimeout = d }
}

// WithCacheTTL overrides the default response cache TTL.
func WithCacheTTL(d time.Duration) ManagerOption {
	return func(m *Manager) { m.ttl = d }
}

// NewManager builds an empty Manager ready for provider registration.
func NewManager(opts ...ManagerOption) *Manager {
	m := &Manager{
		log:         xlog.Default().With("component", "providers.manager"),
		providers:   map[string][]*registration{},
		health:      map[providerKey]*HealthTracker{},
		circuits:    map[providerKey]*CircuitBreaker{},
		circuitCfg:  config.DefaultCircuitConfig(),
		retry:       DefaultRetryPolicy(),
		callTimeout: config.DefaultCallTimeout,
		cache:       cache.New(2048, 64<<20),
		ttl:         time.Minute,
		failovers:   newFailoverFeed(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Register adds a provider for its advertised blockchain with an optional
// priority bonus (configured per provider, added straight into the
// ranking score).
func (m *Manager) Register(p Provider, priorityBonus float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	chain := p.Blockchain()
	order := len(m.providers[chain])
	m.providers[chain] = append(m.providers[chain], &registration{provider: p, order: order, priority: priorityBonus})
}

// SubscribeFailovers lets an external observer (CLI, TUI — out of scope
// for this module) watch failover events.
func (m *Manager) SubscribeFailovers() (<-chan FailoverEvent, func()) {
	return m.failovers.Subscribe()
}

func (m *Manager) trackerFor(chain, name string) (*HealthTracker, *CircuitBreaker) {
	m.healthMu.Lock()
	defer m.healthMu.Unlock()
	key := providerKey{chain: chain, name: name}
	h, ok := m.health[key]
	if !ok {
		h = NewHealthTracker()
		m.health[key] = h
	}
	c, ok := m.circuits[key]
	if !ok {
		c = NewCircuitBreaker(m.circuitCfg)
		m.circuits[key] = c
	}
	return h, c
}

// GetProviders returns providers registered for chain that advertise the
// given operation, ordered by score descending with registration order as
// the deterministic tie-break.
func (m *Manager) GetProviders(chain string, op OperationType) []Provider {
	return m.rankedProviders(chain, op, nil, time.Now())
}

func (m *Manager) rankedProviders(chain string, op OperationType, ts *time.Time, now time.Time) []Provider {
	m.mu.RLock()
	regs := append([]*registration{}, m.providers[chain]...)
	m.mu.RUnlock()

	type scored struct {
		reg   *registration
		score float64
	}
	var candidates []scored
	for _, r := range regs {
		caps := r.provider.Capabilities()
		if !supports(caps.Operations, op) {
			continue
		}
		h, c := m.trackerFor(chain, r.provider.Name())
		in := scoreInputs{
			circuit:            c.State(now),
			health:             h.Snapshot(),
			priorityBonus:      r.priority,
			isPriceOp:          op == "get_price",
			granularitySupport: caps.GranularitySupport,
			opTimestamp:        ts,
		}
		s := score(in)
		if m.metrics != nil {
			m.metrics.providerScore.WithLabelValues(chain, r.provider.Name()).Set(s)
			m.metrics.circuitState.WithLabelValues(chain, r.provider.Name()).Set(circuitStateGauge(in.circuit))
		}
		candidates = append(candidates, scored{reg: r, score: s})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].score != candidates[j].score {
			return candidates[i].score > candidates[j].score
		}
		return candidates[i].reg.order < candidates[j].reg.order
	})

	out := make([]Provider, len(candidates))
	for i, c := range candidates {
		out[i] = c.reg.provider
	}
	return out
}

func supports(ops []OperationType, target OperationType) bool {
	for _, o := range ops {
		if o == target {
			return true
		}
	}
	return false
}

// ExecuteWithFailover tries providers for op.Chain in scored order,
// recording health/circuit outcomes and emitting failover events as it
// moves between providers.
func (m *Manager) ExecuteWithFailover(ctx context.Context, op Operation) (Response, error) {
	candidates := m.rankedProviders(op.Chain, op.Type, op.Timestamp, time.Now())
	if len(candidates) == 0 {
		return Response{}, xerrors.New(xerrors.KindConfiguration, "providers.execute_with_failover",
			fmt.Errorf("no provider registered for chain=%s op=%s", op.Chain, op.Type))
	}

	available := m.excludeOpenCircuits(op.Chain, candidates, time.Now())
	degraded := false
	if len(available) == 0 {
		// All circuits open and no alternative: degrade rather than hard-fail,
		// logging and attempting anyway.
		m.log.Warn("all providers circuit-open, attempting degraded mode", "chain", op.Chain, "op", op.Type)
		available = candidates
		degraded = true
	}

	if cached, ok := m.tryCache(op); ok {
		return cached, nil
	}

	var lastErr error
	for i, p := range available {
		resp, err := m.callOne(ctx, p, op)
		if err == nil {
			m.putCache(op, resp)
			return resp, nil
		}
		lastErr = err
		if i+1 < len(available) {
			reason := err.Error()
			if degraded {
				reason = "degraded-mode: " + reason
			}
			m.failovers.emit(FailoverEvent{Chain: op.Chain, From: p.Name(), To: available[i+1].Name(), Reason: reason})
		}
	}
	return Response{}, fmt.Errorf("providers: all providers exhausted for chain=%s op=%s: %w", op.Chain, op.Type, lastErr)
}

// excludeOpenCircuits drops providers whose circuit is currently open.
func (m *Manager) excludeOpenCircuits(chain string, candidates []Provider, now time.Time) []Provider {
	var out []Provider
	for _, p := range candidates {
		_, c := m.trackerFor(chain, p.Name())
		if c.State(now) != CircuitOpen {
			out = append(out, p)
		}
	}
	return out
}

// callOne executes a single provider call with retry, health tracking,
// circuit updates, and the validate_response hook.
func (m *Manager) callOne(ctx context.Context, p Provider, op Operation) (Response, error) {
	h, c := m.trackerFor(op.Chain, p.Name())
	callCtx, cancel := context.WithTimeout(ctx, m.callTimeout)
	defer cancel()

	var resp Response
	start := time.Now()
	err := m.retry.Do(callCtx, func(ctx context.Context) error {
		key := op.Chain + "|" + p.Name() + "|" + string(op.Type) + "|" + op.FingerprintKey()
		v, err, _ := m.group.Do(key, func() (any, error) {
			r, err := p.Execute(ctx, op)
			if err != nil {
				return Response{}, err
			}
			if verr := p.ValidateResponse(r); verr != nil {
				return Response{}, xerrors.New(xerrors.KindRateLimit, "providers.validate_response", verr)
			}
			return r, nil
		})
		if err != nil {
			return err
		}
		resp = v.(Response)
		return nil
	})
	elapsed := time.Since(start)

	if m.metrics != nil {
		m.metrics.callsTotal.WithLabelValues(op.Chain, p.Name()).Inc()
	}

	success := err == nil
	h.Record(success, elapsed)
	if err != nil {
		if xerrors.OpensCircuit(err) {
			c.RecordFailure(time.Now())
		}
		if m.metrics != nil {
			kind := xerrors.KindUnknown.String()
			var xe *xerrors.Error
			if errors.As(err, &xe) {
				kind = xe.Kind.String()
			}
			m.metrics.callErrors.WithLabelValues(op.Chain, p.Name(), kind).Inc()
		}
		return Response{}, err
	}
	c.RecordSuccess(time.Now())
	return resp, nil
}

func (m *Manager) cacheKey(op Operation) cache.Key {
	return cache.Key{OperationType: string(op.Type), Fingerprint: op.Chain + ":" + op.FingerprintKey()}
}

func (m *Manager) tryCache(op Operation) (Response, bool) {
	k := m.cacheKey(op)
	now := time.Now()
	if v, ok := m.cache.GetObject(k, now); ok {
		if m.metrics != nil {
			m.metrics.cacheHits.WithLabelValues(string(op.Type)).Inc()
		}
		return v.(Response), true
	}
	if m.metrics != nil {
		m.metrics.cacheMisses.WithLabelValues(string(op.Type)).Inc()
	}
	return Response{}, false
}

func (m *Manager) putCache(op Operation, resp Response) {
	m.cache.PutObject(m.cacheKey(op), resp, m.ttl, time.Now())
}

// ExecuteStreaming drives a streaming operation against the top-ranked
// available provider, resuming from cur (after applying the replay
// window if the provider differs from the one that produced cur) and
// forwarding batches to the returned channel.
func (m *Manager) ExecuteStreaming(ctx context.Context, op Operation, cur cursor.State) (<-chan StreamResult, error) {
	candidates := m.rankedProviders(op.Chain, op.Type, op.Timestamp, time.Now())
	available := m.excludeOpenCircuits(op.Chain, candidates, time.Now())
	if len(available) == 0 {
		available = candidates
	}
	if len(available) == 0 {
		return nil, xerrors.New(xerrors.KindConfiguration, "providers.execute_streaming",
			fmt.Errorf("no provider registered for chain=%s op=%s", op.Chain, op.Type))
	}

	p := available[0]
	resumeCursor := cur
	if cursor.NeedsReplay(cur, p.Name()) {
		resumeCursor = cursor.ApplyReplayWindow(cur, cursor.DefaultReplayDelta)
		m.log.Info("applying replay window on provider switch", "chain", op.Chain, "from_provider", cur.ProviderName, "to_provider", p.Name())
	}

	h, c := m.trackerFor(op.Chain, p.Name())
	upstream, err := p.ExecuteStreaming(ctx, op, resumeCursor)
	if err != nil {
		c.RecordFailure(time.Now())
		return nil, err
	}

	out := make(chan StreamResult)
	go func() {
		defer close(out)
		start := time.Now()
		for res := range upstream {
			if res.Err != nil {
				h.Record(false, time.Since(start))
				if xerrors.OpensCircuit(res.Err) {
					c.RecordFailure(time.Now())
				}
				select {
				case out <- res:
				case <-ctx.Done():
				}
				return
			}
			h.Record(true, time.Since(start))
			c.RecordSuccess(time.Now())
			select {
			case out <- res:
			case <-ctx.Done():
				return
			}
			start = time.Now()
		}
	}()
	return out, nil
}
