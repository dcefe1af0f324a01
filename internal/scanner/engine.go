package scanner

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"

	"momentumwatch/internal/gateway"
	"momentumwatch/internal/model"
	"momentumwatch/internal/protocol"
)

var (
	// ErrAlreadySubscribed reports a second Subscribe for a scan code whose
	// request id range is already in use.
	ErrAlreadySubscribed = errors.New("scanner: already subscribed")

	// ErrNotSubscribed reports an Unsubscribe for an unknown request id.
	ErrNotSubscribed = errors.New("scanner: not subscribed")
)

// Transport is the slice of the connection manager the engine needs.
// *gateway.Conn satisfies it; tests supply a fake.
type Transport interface {
	Send(fields ...string) error
	Register(reqID int) <-chan protocol.Message
	Unregister(reqID int)
	State() gateway.State
	States() <-chan gateway.State
	Session() <-chan protocol.Message
}

// Config holds Subscription Engine settings.
type Config struct {
	// FallbackClientID keys the request id range for scan codes without a
	// fixed client id assignment.
	FallbackClientID int

	// MarketDataType is requested once per connection; 4 = delayed-frozen,
	// usable without realtime market data entitlements.
	MarketDataType int
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		FallbackClientID: 1,
		MarketDataType:   4,
	}
}

func (c *Config) applyDefaults() {
	d := DefaultConfig()
	if c.FallbackClientID == 0 {
		c.FallbackClientID = d.FallbackClientID
	}
	if c.MarketDataType == 0 {
		c.MarketDataType = d.MarketDataType
	}
}

// Stats is a snapshot of engine activity.
type Stats struct {
	Subscriptions int
	Active        int
	Errored       int
	Snapshots     int64
	TicksApplied  int64
	SchemaLoaded  bool
}

type subscription struct {
	code   string
	reqID  int // base of the range; per-row ids follow it
	params SubscriptionParams
	status model.SubscriptionStatus
	rows   []model.ScanRow
	// Per-row request ids already registered with the transport; row ids are
	// stable (base+1+index) so registrations survive snapshot replacement.
	watched map[int]bool
}

// Engine owns scanner subscriptions and the per-row market data requests
// that enrich them.
type Engine struct {
	cfg    Config
	tr     Transport
	logger *slog.Logger

	mu     sync.RWMutex
	subs   map[int]*subscription
	schema *ParamSchema

	inbox    chan protocol.Message
	done     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	snapshots atomic.Int64
	ticks     atomic.Int64
}

// NewEngine creates an Engine on top of a connection manager.
func NewEngine(cfg Config, tr Transport, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	cfg.applyDefaults()
	return &Engine{
		cfg:    cfg,
		tr:     tr,
		logger: logger,
		subs:   make(map[int]*subscription),
		inbox:  make(chan protocol.Message, 256),
		done:   make(chan struct{}),
	}
}

// Start launches the engine loop. If the connection is already Ready the
// session setup (market data type, parameter fetch) runs immediately.
func (e *Engine) Start(ctx context.Context) error {
	e.wg.Add(1)
	go e.run(ctx)

	if e.tr.State() == gateway.StateReady {
		e.onReady()
	}
	return nil
}

// Stop terminates the engine loop. Subscriptions are not cancelled on the
// wire; closing the connection does that.
func (e *Engine) Stop(ctx context.Context) error {
	e.stopOnce.Do(func() { close(e.done) })

	waited := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(waited)
	}()
	select {
	case <-waited:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Subscribe issues a scanner subscription and returns its base request id.
// While the connection is down the subscription is queued and sent when
// Ready arrives.
func (e *Engine) Subscribe(code string, params SubscriptionParams) (int, error) {
	code = model.ResolveScanner(code)
	params.applyDefaults()
	if err := params.validate(); err != nil {
		return 0, err
	}

	e.mu.Lock()
	if schema := e.schema; schema != nil {
		if _, known := schema.Lookup(code); !known {
			e.mu.Unlock()
			return 0, ErrUnknownScanner
		}
	}

	clientID := e.cfg.FallbackClientID
	for _, as := range model.AlertScanners {
		if as.Code == code {
			clientID = as.ClientID
			break
		}
	}
	base := model.RequestIDBase(clientID)

	if _, exists := e.subs[base]; exists {
		e.mu.Unlock()
		return 0, ErrAlreadySubscribed
	}
	sub := &subscription{
		code:    code,
		reqID:   base,
		params:  params,
		status:  model.SubPending,
		watched: map[int]bool{base: true},
	}
	e.subs[base] = sub
	e.mu.Unlock()

	e.watch(e.tr.Register(base))

	if e.tr.State() == gateway.StateReady {
		e.issue(sub)
	} else {
		e.logger.Debug("subscription queued until connected", "code", code, "req_id", base)
	}
	return base, nil
}

// Unsubscribe cancels a subscription and its per-row market data requests.
func (e *Engine) Unsubscribe(reqID int) error {
	e.mu.Lock()
	sub, ok := e.subs[reqID]
	if !ok {
		e.mu.Unlock()
		return ErrNotSubscribed
	}
	delete(e.subs, reqID)
	watched := sub.watched
	e.mu.Unlock()

	if e.tr.State() == gateway.StateReady {
		for id := range watched {
			if id == reqID {
				continue
			}
			if err := e.tr.Send(encodeCancelMktData(id)...); err != nil {
				break
			}
		}
		if err := e.tr.Send(encodeCancelScannerSubscription(reqID)...); err != nil {
			e.logger.Warn("cancel scanner subscription failed", "req_id", reqID, "error", err)
		}
	}
	for id := range watched {
		e.tr.Unregister(id)
	}
	return nil
}

// Rows returns a copy of the current result snapshot for a subscription.
func (e *Engine) Rows(reqID int) []model.ScanRow {
	e.mu.RLock()
	defer e.mu.RUnlock()
	sub, ok := e.subs[reqID]
	if !ok {
		return nil
	}
	out := make([]model.ScanRow, len(sub.rows))
	copy(out, sub.rows)
	return out
}

// Status returns the lifecycle status of a subscription.
func (e *Engine) Status(reqID int) (model.SubscriptionStatus, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	sub, ok := e.subs[reqID]
	if !ok {
		return 0, false
	}
	return sub.status, true
}

// Schema returns the scanner parameter schema, nil until fetched.
func (e *Engine) Schema() *ParamSchema {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.schema
}

// Stats returns a snapshot of engine activity.
func (e *Engine) Stats() Stats {
	e.mu.RLock()
	s := Stats{
		Subscriptions: len(e.subs),
		SchemaLoaded:  e.schema != nil,
	}
	for _, sub := range e.subs {
		switch sub.status {
		case model.SubActive:
			s.Active++
		case model.SubError:
			s.Errored++
		}
	}
	e.mu.RUnlock()

	s.Snapshots = e.snapshots.Load()
	s.TicksApplied = e.ticks.Load()
	return s
}

// watch forwards one transport channel into the engine inbox so the run loop
// sees a single message stream.
func (e *Engine) watch(ch <-chan protocol.Message) {
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		for {
			select {
			case <-e.done:
				return
			case m, open := <-ch:
				if !open {
					return
				}
				select {
				case e.inbox <- m:
				case <-e.done:
					return
				}
			}
		}
	}()
}

func (e *Engine) run(ctx context.Context) {
	defer e.wg.Done()

	for {
		select {
		case <-e.done:
			return
		case <-ctx.Done():
			return
		case st := <-e.tr.States():
			switch st {
			case gateway.StateReady:
				e.onReady()
			case gateway.StateDisconnected:
				e.onDisconnect()
			}
		case m := <-e.tr.Session():
			if m.Type() == protocol.InScannerParameters {
				e.loadSchema(m.Field(2))
			}
		case m := <-e.inbox:
			e.handle(m)
		}
	}
}

// onReady runs session setup and replays every subscription. The gateway
// keeps no state across connections, so everything is reissued.
func (e *Engine) onReady() {
	if err := e.tr.Send(encodeMktDataTypeRequest(e.cfg.MarketDataType)...); err != nil {
		e.logger.Warn("set market data type failed", "error", err)
	}

	e.mu.RLock()
	needSchema := e.schema == nil
	pending := make([]*subscription, 0, len(e.subs))
	for _, sub := range e.subs {
		pending = append(pending, sub)
	}
	e.mu.RUnlock()

	if needSchema {
		if err := e.tr.Send(encodeScannerParamsRequest()...); err != nil {
			e.logger.Warn("scanner parameters request failed", "error", err)
		}
	}
	for _, sub := range pending {
		e.issue(sub)
	}
}

// onDisconnect marks every subscription Error; onReady reissues them.
func (e *Engine) onDisconnect() {
	e.mu.Lock()
	for _, sub := range e.subs {
		sub.status = model.SubError
	}
	n := len(e.subs)
	e.mu.Unlock()
	if n > 0 {
		e.logger.Warn("connection lost, subscriptions marked errored", "count", n)
	}
}

func (e *Engine) issue(sub *subscription) {
	e.mu.Lock()
	sub.status = model.SubPending
	sub.rows = nil
	e.mu.Unlock()

	if err := e.tr.Send(encodeScannerSubscription(sub.reqID, sub.code, sub.params)...); err != nil {
		e.logger.Warn("scanner subscription send failed",
			"code", sub.code, "req_id", sub.reqID, "error", err)
		e.mu.Lock()
		sub.status = model.SubError
		e.mu.Unlock()
		return
	}
	e.logger.Info("scanner subscribed", "code", sub.code, "req_id", sub.reqID)
}

func (e *Engine) loadSchema(doc string) {
	schema, err := ParseParams(doc)
	if err != nil {
		e.logger.Warn("scanner parameter document rejected", "error", err)
		return
	}
	e.mu.Lock()
	e.schema = schema
	e.mu.Unlock()
	e.logger.Info("scanner parameters loaded", "scan_types", schema.Len())
}

func (e *Engine) handle(m protocol.Message) {
	switch m.Type() {
	case protocol.InScannerData:
		e.handleScannerData(m)
	case protocol.InTickPrice:
		e.handleTickPrice(m)
	case protocol.InTickSize:
		e.handleTickSize(m)
	case protocol.InErrMsg:
		e.handleError(m)
	}
}

// scannerRowFields is the per-row field count in a scannerData message:
// rank, conId, symbol, secType, lastTradeDate, strike, right, exchange,
// currency, localSymbol, marketName, tradingClass, distance, benchmark,
// projection, legsStr.
const scannerRowFields = 16

// handleScannerData replaces a subscription's row set wholesale and issues
// per-row market data requests on the ids following the base.
func (e *Engine) handleScannerData(m protocol.Message) {
	base := m.Int(2)
	count := m.Int(3)

	e.mu.Lock()
	sub, ok := e.subs[base]
	if !ok {
		e.mu.Unlock()
		return
	}
	if count < 0 {
		// End-of-snapshot marker with no rows attached.
		sub.status = model.SubActive
		e.mu.Unlock()
		return
	}

	prevRows := len(sub.rows)
	rows := make([]model.ScanRow, 0, count)
	for i := 0; i < count; i++ {
		off := 4 + i*scannerRowFields
		if off+scannerRowFields > len(m.Fields) {
			break
		}
		rows = append(rows, model.ScanRow{
			Symbol:  m.Field(off + 2),
			Rank:    i + 1,
			Scanner: sub.code,
			ConID:   m.Int64(off + 1),
		})
	}
	sub.rows = rows
	sub.status = model.SubActive
	code := sub.code

	newWatches := make([]int, 0, len(rows))
	for i := range rows {
		id := base + 1 + i
		if !sub.watched[id] {
			sub.watched[id] = true
			newWatches = append(newWatches, id)
		}
	}
	e.mu.Unlock()

	e.snapshots.Add(1)

	for _, id := range newWatches {
		e.watch(e.tr.Register(id))
	}
	for i, row := range rows {
		if err := e.tr.Send(encodeMktDataRequest(base+1+i, row)...); err != nil {
			e.logger.Warn("market data request failed",
				"symbol", row.Symbol, "req_id", base+1+i, "error", err)
			break
		}
	}
	// Rows past the new snapshot keep their registrations but stop streaming.
	for i := len(rows); i < prevRows; i++ {
		e.tr.Send(encodeCancelMktData(base + 1 + i)...)
	}

	e.logger.Debug("scanner snapshot", "code", code, "rows", len(rows))
}

// lookupRow resolves a per-row market data request id to its row. Caller
// holds e.mu.
func (e *Engine) lookupRow(reqID int) *model.ScanRow {
	base := (reqID / model.RequestIDSpan) * model.RequestIDSpan
	sub, ok := e.subs[base]
	if !ok {
		return nil
	}
	idx := reqID - base - 1
	if idx < 0 || idx >= len(sub.rows) {
		return nil
	}
	return &sub.rows[idx]
}

// handleTickPrice applies last/close prices and derives the change
// percentage once both sides are known. Non-positive prices are noise.
func (e *Engine) handleTickPrice(m protocol.Message) {
	tickType := m.Int(3)
	price := m.Float(4)
	if price <= 0 {
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	row := e.lookupRow(m.Int(2))
	if row == nil {
		return
	}

	switch tickType {
	case protocol.TickLast, protocol.TickDelayedLast:
		row.LastPrice = &price
	case protocol.TickClose, protocol.TickDelayedClose:
		row.ClosePrice = &price
	default:
		return
	}
	if row.LastPrice != nil && row.ClosePrice != nil && *row.ClosePrice > 0 {
		pct := (*row.LastPrice - *row.ClosePrice) / *row.ClosePrice * 100
		row.ChangePct = &pct
	}
	e.ticks.Add(1)
}

// handleTickSize applies volume, average volume, and shortable shares.
// Shortable shares stand in for the free float, which the gateway does not
// report directly; relative volume is day volume over average volume.
func (e *Engine) handleTickSize(m protocol.Message) {
	tickType := m.Int(3)
	size := m.Int64(4)
	if size < 0 {
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	row := e.lookupRow(m.Int(2))
	if row == nil {
		return
	}

	switch tickType {
	case protocol.TickVolume:
		row.Volume = &size
	case protocol.TickAvgVolume:
		row.AvgVolume = &size
	case protocol.TickShortableShares:
		f := float64(size)
		row.FloatShares = &f
	default:
		return
	}
	if row.Volume != nil && row.AvgVolume != nil && *row.AvgVolume > 0 {
		rvol := float64(*row.Volume) / float64(*row.AvgVolume)
		row.RVol = &rvol
	}
	e.ticks.Add(1)
}

// handleError marks a subscription Error on a fatal gateway error keyed to
// its base id. Fatal errors on per-row ids only cost that row's market data.
func (e *Engine) handleError(m protocol.Message) {
	code := m.Int(3)
	if protocol.NonFatalErrors[code] {
		return
	}
	reqID := m.Int(2)

	e.mu.Lock()
	defer e.mu.Unlock()
	if sub, ok := e.subs[reqID]; ok {
		sub.status = model.SubError
		e.logger.Warn("scanner subscription rejected",
			"code", sub.code, "req_id", reqID, "gateway_code", code, "text", m.Field(4))
	}
}
