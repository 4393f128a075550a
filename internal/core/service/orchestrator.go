package service

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/athena-web3/dashboard-core/internal/cache"
	"github.com/athena-web3/dashboard-core/internal/core/domain"
	"github.com/athena-web3/dashboard-core/internal/logging"
	"github.com/athena-web3/dashboard-core/internal/observability"
)

const (
	// DefaultPollInterval is the status poll cadence after a swap is submitted.
	DefaultPollInterval = 5 * time.Second

	// SwapSessionTTL bounds how old a persisted session may be on restore.
	SwapSessionTTL = 30 * time.Second
)

// SwapOrchestrator drives one quote, execute and poll cycle at a time.
// Starting a new quote stops the poll loop of the previous session.
type SwapOrchestrator struct {
	backend  domain.RoutingBackend
	resolver *AddressResolver
	sessions *cache.Durable[domain.SwapSession]
	clock    domain.Clock
	log      logging.Logger
	metrics  *observability.Metrics
	interval time.Duration

	mu        sync.Mutex
	session   domain.SwapSession
	token     uint64
	cancel    context.CancelFunc
	done      chan struct{}
	listeners []func(domain.SwapSession)
}

// OrchestratorOption configures a SwapOrchestrator.
type OrchestratorOption func(*SwapOrchestrator)

func WithPollInterval(d time.Duration) OrchestratorOption {
	return func(o *SwapOrchestrator) {
		if d > 0 {
			o.interval = d
		}
	}
}

func WithOrchestratorClock(c domain.Clock) OrchestratorOption {
	return func(o *SwapOrchestrator) { o.clock = c }
}

func WithOrchestratorLogger(l logging.Logger) OrchestratorOption {
	return func(o *SwapOrchestrator) { o.log = l }
}

func WithOrchestratorMetrics(m *observability.Metrics) OrchestratorOption {
	return func(o *SwapOrchestrator) { o.metrics = m }
}

// NewSwapOrchestrator creates an orchestrator. store may be nil, in which
// case sessions live in memory only.
func NewSwapOrchestrator(backend domain.RoutingBackend, resolver *AddressResolver, store domain.SnapshotStore, opts ...OrchestratorOption) *SwapOrchestrator {
	o := &SwapOrchestrator{
		backend:  backend,
		resolver: resolver,
		clock:    domain.SystemClock,
		interval: DefaultPollInterval,
		session:  domain.SwapSession{Status: domain.SwapNone},
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.resolver == nil {
		o.resolver = NewAddressResolver()
	}
	o.log = logging.OrNop(o.log)
	o.sessions = cache.NewDurable[domain.SwapSession](store, SwapSessionTTL, o.clock, o.log, o.metrics)
	return o
}

// OnTransition registers fn to receive the session after every state change.
func (o *SwapOrchestrator) OnTransition(fn func(domain.SwapSession)) {
	o.mu.Lock()
	o.listeners = append(o.listeners, fn)
	o.mu.Unlock()
}

// Session returns the current session.
func (o *SwapOrchestrator) Session() domain.SwapSession {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.session
}

// RequestQuote validates req locally, invalidates the previous session and
// asks the backend for a quote. UserAddress must be one of the wallet's
// addresses for the source chain; an empty one is filled with the default.
// On any failure the new session stays in SwapNone.
func (o *SwapOrchestrator) RequestQuote(ctx context.Context, wallet domain.WalletState, req domain.QuoteRequest) (domain.SwapSession, error) {
	if !wallet.Connected || strings.TrimSpace(req.SourceChain) == "" {
		return o.Session(), domain.ErrMissingSwapFields
	}
	source, err := o.resolver.SourceAddress(wallet, req.SourceChain, req.UserAddress)
	if err != nil {
		return o.Session(), err
	}
	req.UserAddress = source.Address
	if !complete(req) {
		return o.Session(), domain.ErrMissingSwapFields
	}

	o.stopPoll()

	o.mu.Lock()
	o.token++
	token := o.token
	o.session = domain.SwapSession{Status: domain.SwapNone, Request: req, UpdatedAt: o.clock.Now()}
	o.mu.Unlock()

	res, err := o.backend.Quote(ctx, req)
	if err != nil {
		o.log.Warnw("quote failed", "source_chain", req.SourceChain, "destination_chain", req.DestinationChain, "error", err)
		return o.Session(), err
	}

	o.mu.Lock()
	if token != o.token {
		o.mu.Unlock()
		o.log.Debugw("dropping superseded quote", "swap_id", res.SwapID)
		return o.Session(), domain.ErrSuperseded
	}
	from := o.session.Status
	o.session.SwapID = res.SwapID
	o.session.Quote = res.Quote
	o.session.Steps = res.Steps
	o.session.Status = domain.SwapQuoted
	o.session.UpdatedAt = o.clock.Now()
	session := o.session
	o.mu.Unlock()

	o.transitioned(ctx, from, session)
	return session, nil
}

// Execute submits the quoted swap and starts polling its status. Without a
// quote it fails with domain.ErrNoQuote and makes no call. On failure the
// session stays quoted.
func (o *SwapOrchestrator) Execute(ctx context.Context) (domain.SwapSession, error) {
	o.mu.Lock()
	if o.session.Status != domain.SwapQuoted || len(o.session.Quote) == 0 {
		session := o.session
		o.mu.Unlock()
		return session, domain.ErrNoQuote
	}
	token := o.token
	req := o.session.Request
	o.mu.Unlock()

	res, err := o.backend.Swap(ctx, req)
	if err != nil {
		o.log.Warnw("swap execution failed", "swap_id", o.Session().SwapID, "error", err)
		return o.Session(), err
	}

	o.mu.Lock()
	if token != o.token {
		o.mu.Unlock()
		return o.Session(), domain.ErrSuperseded
	}
	from := o.session.Status
	if res.SwapID != "" {
		o.session.SwapID = res.SwapID
	}
	o.session.Status = domain.SwapSubmitted
	o.session.UpdatedAt = o.clock.Now()
	session := o.session
	o.mu.Unlock()

	o.transitioned(ctx, from, session)

	o.mu.Lock()
	if token == o.token && o.cancel == nil {
		o.startPollLocked(token, session.SwapID)
	}
	o.mu.Unlock()
	return session, nil
}

// Restore loads a persisted session and makes it current. A session that
// was still in flight resumes polling.
func (o *SwapOrchestrator) Restore(ctx context.Context, swapID string) (domain.SwapSession, bool) {
	session, ok := o.sessions.Get(ctx, domain.SwapSessionKey(swapID))
	if !ok {
		return domain.SwapSession{}, false
	}

	o.stopPoll()

	o.mu.Lock()
	o.token++
	o.session = session
	if session.Status == domain.SwapSubmitted || session.Status == domain.SwapPending {
		o.startPollLocked(o.token, session.SwapID)
	}
	o.mu.Unlock()

	o.log.Infow("swap session restored", "swap_id", swapID, "status", session.Status)
	return session, true
}

// Close stops any running poll loop.
func (o *SwapOrchestrator) Close() {
	o.stopPoll()
}

func (o *SwapOrchestrator) startPollLocked(token uint64, swapID string) {
	pctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	o.cancel = cancel
	o.done = done
	go o.poll(pctx, token, swapID, done)
}

// stopPoll cancels the current poll loop and waits for it to exit.
func (o *SwapOrchestrator) stopPoll() {
	o.mu.Lock()
	cancel, done := o.cancel, o.done
	o.cancel, o.done = nil, nil
	o.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// poll queries the status immediately and then every interval until the
// session reaches a terminal state or is invalidated. Transport errors are
// logged and never end the loop.
func (o *SwapOrchestrator) poll(ctx context.Context, token uint64, swapID string, done chan struct{}) {
	defer close(done)

	for {
		report, err := o.backend.Status(ctx, swapID)
		if ctx.Err() != nil {
			return
		}
		o.metrics.RecordStatusPoll(err == nil)
		if err != nil {
			o.log.Warnw("status poll failed", "swap_id", swapID, "error", err)
		} else if stop := o.applyStatus(ctx, token, report); stop {
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-o.clock.After(o.interval):
		}
	}
}

// applyStatus folds one status report into the session and reports whether
// polling should stop.
func (o *SwapOrchestrator) applyStatus(ctx context.Context, token uint64, report *domain.StatusReport) bool {
	next := domain.SwapPending
	switch domain.SwapStatus(strings.ToLower(report.Status)) {
	case domain.SwapCompleted:
		next = domain.SwapCompleted
	case domain.SwapFailed:
		next = domain.SwapFailed
	}

	o.mu.Lock()
	if token != o.token {
		o.mu.Unlock()
		return true
	}
	from := o.session.Status
	o.session.Status = next
	if report.TxHash != "" {
		o.session.TxHash = report.TxHash
	}
	if report.Confirmations != nil {
		o.session.Confirmations = report.Confirmations
	}
	if report.ChainID != "" {
		o.session.ChainID = report.ChainID
	}
	o.session.UpdatedAt = o.clock.Now()
	session := o.session
	o.mu.Unlock()

	o.transitioned(ctx, from, session)
	return next.IsTerminal()
}

func (o *SwapOrchestrator) transitioned(ctx context.Context, from domain.SwapStatus, session domain.SwapSession) {
	if from != session.Status {
		o.log.Infow("swap transition", "swap_id", session.SwapID, "from", from, "to", session.Status)
		o.metrics.RecordSwapTransition(string(session.Status))
	}
	if session.SwapID != "" {
		o.sessions.Set(context.WithoutCancel(ctx), domain.SwapSessionKey(session.SwapID), session)
	}

	o.mu.Lock()
	listeners := append([]func(domain.SwapSession){}, o.listeners...)
	o.mu.Unlock()
	for _, fn := range listeners {
		fn(session)
	}
}

func complete(req domain.QuoteRequest) bool {
	for _, f := range []string{req.SourceChain, req.DestinationChain, req.TokenIn, req.TokenOut, req.Amount, req.UserAddress, req.ReceiverAddress} {
		if strings.TrimSpace(f) == "" {
			return false
		}
	}
	return true
}

// QuoteSummary is the part of an opaque quote payload shown to the user.
type QuoteSummary struct {
	DestinationAmount string `json:"destinationAmount"`
	GasEstimate       string `json:"gasEstimate"`
}

// SummarizeQuote extracts result.destinationAmount and result.gasEstimate.
// Numbers and strings are both accepted.
func SummarizeQuote(quote json.RawMessage) (QuoteSummary, bool) {
	var payload struct {
		Result struct {
			DestinationAmount json.RawMessage `json:"destinationAmount"`
			GasEstimate       json.RawMessage `json:"gasEstimate"`
		} `json:"result"`
	}
	if len(quote) == 0 || json.Unmarshal(quote, &payload) != nil {
		return QuoteSummary{}, false
	}
	s := QuoteSummary{
		DestinationAmount: scalar(payload.Result.DestinationAmount),
		GasEstimate:       scalar(payload.Result.GasEstimate),
	}
	return s, s.DestinationAmount != "" || s.GasEstimate != ""
}

func scalar(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return ""
	}
	var s string
	if json.Unmarshal(raw, &s) == nil {
		return s
	}
	return string(raw)
}
