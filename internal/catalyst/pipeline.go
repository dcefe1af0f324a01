package catalyst

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"momentumwatch/internal/model"
)

// HeadlineSource fetches recent headlines for a symbol. An empty slice
// means no news; an error means the check could not be performed and may be
// retried.
type HeadlineSource interface {
	Headlines(ctx context.Context, symbol string) ([]Headline, error)
}

// AlertSink receives confirmed candidates.
type AlertSink interface {
	Alert(ctx context.Context, a model.Alert) error
}

// SeenMarker records symbols that have been alerted this session.
type SeenMarker interface {
	MarkSeen(symbol string, at time.Time)
}

// Config holds Confirmation Pipeline settings.
type Config struct {
	MaxConcurrent int64         // Simultaneous news checks
	CheckTimeout  time.Duration // Per-attempt enrichment deadline
	MaxRetries    int           // Attempts before enrichment-unavailable
	RetryBackoff  time.Duration // Delay between attempts, doubled each retry
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		MaxConcurrent: 4,
		CheckTimeout:  10 * time.Second,
		MaxRetries:    3,
		RetryBackoff:  2 * time.Second,
	}
}

func (c *Config) applyDefaults() {
	d := DefaultConfig()
	if c.MaxConcurrent <= 0 {
		c.MaxConcurrent = d.MaxConcurrent
	}
	if c.CheckTimeout == 0 {
		c.CheckTimeout = d.CheckTimeout
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = d.MaxRetries
	}
	if c.RetryBackoff == 0 {
		c.RetryBackoff = d.RetryBackoff
	}
}

// Stats is a snapshot of pipeline outcomes.
type Stats struct {
	Pending   int
	Confirmed int64
	Rejected  int64
	Alerted   int64
}

// Pipeline confirms candidates against the news before they may alert.
type Pipeline struct {
	cfg        Config
	source     HeadlineSource
	classifier Classifier
	sink       AlertSink
	seen       SeenMarker
	logger     *slog.Logger

	sem *semaphore.Weighted

	// mu guards states and the pending count together so admission is one
	// atomic check-and-set.
	mu      sync.Mutex
	states  map[string]model.CatalystState
	pending int

	confirmed int64
	rejected  int64
	alerted   int64

	wg sync.WaitGroup
}

// New creates a Pipeline. classifier defaults to the keyword classifier.
func New(cfg Config, source HeadlineSource, classifier Classifier, sink AlertSink, seen SeenMarker, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	if classifier == nil {
		classifier = NewKeywordClassifier()
	}
	cfg.applyDefaults()
	return &Pipeline{
		cfg:        cfg,
		source:     source,
		classifier: classifier,
		sink:       sink,
		seen:       seen,
		logger:     logger,
		sem:        semaphore.NewWeighted(cfg.MaxConcurrent),
		states:     make(map[string]model.CatalystState),
	}
}

// Submit admits candidates into the pipeline. Symbols already in flight or
// in a terminal phase are skipped; each admitted symbol enters Discovered
// and gets one concurrent news check.
func (p *Pipeline) Submit(ctx context.Context, candidates []model.Candidate) {
	now := time.Now()

	for _, cand := range candidates {
		p.mu.Lock()
		if st, exists := p.states[cand.Symbol]; exists {
			p.mu.Unlock()
			p.logger.Debug("candidate already in pipeline",
				"symbol", cand.Symbol, "phase", st.Phase.String())
			continue
		}
		p.states[cand.Symbol] = model.CatalystState{
			Phase:     model.PhaseDiscovered,
			UpdatedAt: now,
		}
		p.pending++
		p.mu.Unlock()

		p.logger.Info("candidate discovered",
			"symbol", cand.Symbol, "scanners", cand.Hits())

		p.wg.Add(1)
		go p.check(ctx, cand)
	}
}

// State returns the per-symbol state value.
func (p *Pipeline) State(symbol string) (model.CatalystState, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	st, ok := p.states[symbol]
	return st, ok
}

// Stats returns a snapshot of outcomes.
func (p *Pipeline) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return Stats{
		Pending:   p.pending,
		Confirmed: p.confirmed,
		Rejected:  p.rejected,
		Alerted:   p.alerted,
	}
}

// Drain blocks until all in-flight checks settle.
func (p *Pipeline) Drain() { p.wg.Wait() }

// Reset forgets all non-pending state so cleared symbols can re-enter.
// Pending checks settle into the fresh map.
func (p *Pipeline) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for sym, st := range p.states {
		if st.Phase.Terminal() || st.Phase == model.PhaseConfirmed {
			delete(p.states, sym)
		}
	}
}

func (p *Pipeline) check(ctx context.Context, cand model.Candidate) {
	defer p.wg.Done()

	// The symbol stays Discovered while queued behind the concurrency
	// bound; PendingNewsCheck means the check has actually been issued.
	if err := p.sem.Acquire(ctx, 1); err != nil {
		p.reject(cand.Symbol, model.RejectEnrichmentUnavailable)
		return
	}
	defer p.sem.Release(1)

	p.transition(cand.Symbol, model.CatalystState{
		Phase:     model.PhasePendingNewsCheck,
		UpdatedAt: time.Now(),
	})

	headlines, err := p.fetchWithRetry(ctx, cand.Symbol)
	if err != nil {
		p.logger.Warn("news check exhausted retries, rejecting",
			"symbol", cand.Symbol, "error", err)
		p.reject(cand.Symbol, model.RejectEnrichmentUnavailable)
		return
	}

	label, headline, found := p.classifier.Classify(headlines)
	if !found {
		p.logger.Info("no catalyst found", "symbol", cand.Symbol, "headlines", len(headlines))
		p.reject(cand.Symbol, model.RejectNoCatalyst)
		return
	}

	now := time.Now()
	p.transition(cand.Symbol, model.CatalystState{
		Phase:     model.PhaseConfirmed,
		Headline:  headline,
		Catalyst:  label,
		UpdatedAt: now,
	})
	p.mu.Lock()
	p.confirmed++
	p.mu.Unlock()

	alert := model.Alert{
		Symbol:    cand.Symbol,
		Headline:  headline,
		Catalyst:  label,
		Candidate: cand,
		At:        now,
	}
	if err := p.sink.Alert(ctx, alert); err != nil {
		// The alert fires regardless; the sink failure only loses the record.
		p.logger.Warn("alert sink failed", "symbol", cand.Symbol, "error", err)
	}

	p.transition(cand.Symbol, model.CatalystState{
		Phase:     model.PhaseAlerted,
		Headline:  headline,
		Catalyst:  label,
		UpdatedAt: time.Now(),
	})
	if p.seen != nil {
		p.seen.MarkSeen(cand.Symbol, now)
	}
	p.mu.Lock()
	p.alerted++
	p.mu.Unlock()

	p.logger.Info("alert confirmed",
		"symbol", cand.Symbol,
		"catalyst", label,
		"headline", headline,
		"scanners", cand.Hits(),
	)
}

// fetchWithRetry attempts the headline fetch up to MaxRetries times with
// doubling backoff between attempts.
func (p *Pipeline) fetchWithRetry(ctx context.Context, symbol string) ([]Headline, error) {
	var lastErr error
	delay := p.cfg.RetryBackoff

	for attempt := 1; attempt <= p.cfg.MaxRetries; attempt++ {
		callCtx, cancel := context.WithTimeout(ctx, p.cfg.CheckTimeout)
		headlines, err := p.source.Headlines(callCtx, symbol)
		cancel()
		if err == nil {
			return headlines, nil
		}
		lastErr = err
		p.logger.Debug("news check attempt failed",
			"symbol", symbol, "attempt", attempt, "error", err)

		if attempt == p.cfg.MaxRetries {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
	}
	return nil, lastErr
}

func (p *Pipeline) reject(symbol string, reason model.RejectReason) {
	p.transition(symbol, model.CatalystState{
		Phase:     model.PhaseRejected,
		Reason:    reason,
		UpdatedAt: time.Now(),
	})
	p.mu.Lock()
	p.rejected++
	p.mu.Unlock()
	p.logger.Info("candidate rejected", "symbol", symbol, "reason", string(reason))
}

func (p *Pipeline) transition(symbol string, next model.CatalystState) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if prev, ok := p.states[symbol]; ok && inFlight(prev.Phase) && !inFlight(next.Phase) {
		p.pending--
	}
	p.states[symbol] = next
}

// inFlight reports whether a phase counts against the pending total:
// admitted but not yet settled.
func inFlight(phase model.CatalystPhase) bool {
	return phase == model.PhaseDiscovered || phase == model.PhasePendingNewsCheck
}
