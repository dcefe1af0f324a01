package gateway

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"momentumwatch/internal/protocol"
)

// Conn owns the TCP session to the gateway. No other component reads or
// writes the socket; decoded messages reach consumers through per-request-id
// channels registered with Register.
type Conn struct {
	cfg       Config
	logger    *slog.Logger
	sessionID uuid.UUID

	mu            sync.RWMutex
	state         State
	tcp           net.Conn
	port          int
	serverVersion int
	closed        bool
	readDone      chan error

	// Write serialization
	writeMu sync.Mutex

	// Dispatch table keyed by request id
	subsMu  sync.RWMutex
	subs    map[int]chan protocol.Message
	session chan protocol.Message
	states  chan State

	frames     atomic.Int64
	protoErrs  atomic.Int64
	reconnects atomic.Int64

	done chan struct{}
	wg   sync.WaitGroup
}

// New creates a Conn. The connection is not dialed until Start.
func New(cfg Config, logger *slog.Logger) *Conn {
	if logger == nil {
		logger = slog.Default()
	}
	cfg.applyDefaults()

	id := uuid.New()
	return &Conn{
		cfg:       cfg,
		logger:    logger.With("session", id.String()[:8]),
		sessionID: id,
		subs:      make(map[int]chan protocol.Message),
		session:   make(chan protocol.Message, cfg.ChannelBuffer),
		states:    make(chan State, 16),
		done:      make(chan struct{}),
	}
}

// SessionID identifies this connection manager instance for the process
// lifetime; request ids are unique within it.
func (c *Conn) SessionID() uuid.UUID { return c.sessionID }

// Start dials the gateway and begins the read loop. The initial connect is
// synchronous: an error means no configured port completed the handshake.
// After a successful Start, reconnection is automatic.
func (c *Conn) Start(ctx context.Context) error {
	c.mu.RLock()
	closed := c.closed
	c.mu.RUnlock()
	if closed {
		return ErrClosed
	}

	if err := c.connect(ctx); err != nil {
		return err
	}

	c.wg.Add(1)
	go c.supervise(ctx)
	return nil
}

// Close releases the socket and stops all goroutines. Idempotent, callable
// from any state.
func (c *Conn) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.state = StateDisconnected
	tcp := c.tcp
	c.tcp = nil
	c.mu.Unlock()

	close(c.done)
	if tcp != nil {
		tcp.Close()
	}
	c.wg.Wait()

	c.notifyState(StateDisconnected)
	c.logger.Info("gateway connection closed")
	return nil
}

// Send writes one framed message. Fails fast outside StateReady.
func (c *Conn) Send(fields ...string) error {
	c.mu.RLock()
	tcp := c.tcp
	ready := c.state == StateReady
	c.mu.RUnlock()

	if !ready || tcp == nil {
		return ErrNotConnected
	}

	frame := protocol.EncodeFrame(fields...)

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	tcp.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
	_, err := tcp.Write(frame)
	return err
}

// Register subscribes to messages keyed by the given request id. The channel
// is buffered; slow consumers drop messages rather than stalling the read
// loop.
func (c *Conn) Register(reqID int) <-chan protocol.Message {
	c.subsMu.Lock()
	defer c.subsMu.Unlock()

	if ch, ok := c.subs[reqID]; ok {
		return ch
	}
	ch := make(chan protocol.Message, c.cfg.ChannelBuffer)
	c.subs[reqID] = ch
	return ch
}

// Unregister removes and closes the channel for a request id.
func (c *Conn) Unregister(reqID int) {
	c.subsMu.Lock()
	defer c.subsMu.Unlock()

	if ch, ok := c.subs[reqID]; ok {
		delete(c.subs, reqID)
		close(ch)
	}
}

// Session returns the channel of messages carrying no request id
// (handshake confirmations, scanner parameter documents, session errors).
func (c *Conn) Session() <-chan protocol.Message { return c.session }

// States returns connection state change notifications. Consumers must keep
// up; the channel is small and non-blocking on the sender side.
func (c *Conn) States() <-chan State { return c.states }

// State returns the current connection state.
func (c *Conn) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// Stats returns a snapshot of connection activity.
func (c *Conn) Stats() Stats {
	c.mu.RLock()
	state, port, sv := c.state, c.port, c.serverVersion
	c.mu.RUnlock()

	return Stats{
		State:          state,
		Port:           port,
		ServerVersion:  sv,
		FramesDecoded:  c.frames.Load(),
		ProtocolErrors: c.protoErrs.Load(),
		Reconnects:     c.reconnects.Load(),
	}
}

// connect walks the configured ports and keeps the first that completes the
// handshake.
func (c *Conn) connect(ctx context.Context) error {
	c.setState(StateConnecting)

	dialer := net.Dialer{Timeout: c.cfg.DialTimeout}
	for _, port := range c.cfg.Ports {
		addr := fmt.Sprintf("%s:%d", c.cfg.Host, port)

		tcp, err := dialer.DialContext(ctx, "tcp", addr)
		if err != nil {
			c.logger.Debug("dial failed", "addr", addr, "error", err)
			continue
		}

		br, dec, sv, err := c.handshake(tcp)
		if err != nil {
			tcp.Close()
			c.logger.Debug("handshake failed", "addr", addr, "error", err)
			c.setState(StateConnecting)
			continue
		}

		readDone := make(chan error, 1)
		c.mu.Lock()
		c.tcp = tcp
		c.port = port
		c.serverVersion = sv
		c.state = StateReady
		c.readDone = readDone
		c.mu.Unlock()

		c.wg.Add(1)
		go c.readLoop(tcp, br, dec, readDone)

		c.notifyState(StateReady)
		c.logger.Info("connected to gateway",
			"port", port,
			"server_version", sv,
			"client_id", c.cfg.ClientID,
		)
		return nil
	}

	c.setState(StateDisconnected)
	return ErrAllPortsFailed
}

// handshake performs the version exchange and waits for the nextValidId
// confirmation. Messages arriving before the confirmation are dispatched
// normally.
func (c *Conn) handshake(tcp net.Conn) (*bufio.Reader, *protocol.Decoder, int, error) {
	c.setState(StateHandshaking)

	deadline := time.Now().Add(c.cfg.HandshakeTimeout)
	tcp.SetDeadline(deadline)
	defer tcp.SetDeadline(time.Time{})

	if _, err := tcp.Write(protocol.EncodeHandshake()); err != nil {
		return nil, nil, 0, fmt.Errorf("send handshake: %w", err)
	}

	br := bufio.NewReader(tcp)
	sv, serverTime, err := protocol.ReadHandshakeAck(br)
	if err != nil {
		return nil, nil, 0, err
	}
	c.logger.Debug("handshake ack", "server_version", sv, "server_time", serverTime)

	if _, err := tcp.Write(protocol.EncodeStartAPI(c.cfg.ClientID)); err != nil {
		return nil, nil, 0, fmt.Errorf("send startAPI: %w", err)
	}

	// Wait for nextValidId — the gateway's connection confirmation.
	dec := &protocol.Decoder{}
	buf := make([]byte, 4096)
	for {
		confirmed, err := c.drainDecoder(dec, func(m protocol.Message) bool {
			return m.Type() == protocol.InNextValidID
		})
		if err != nil {
			return nil, nil, 0, err
		}
		if confirmed {
			return br, dec, sv, nil
		}

		n, err := br.Read(buf)
		if err != nil {
			return nil, nil, 0, fmt.Errorf("wait for connection confirmation: %w", err)
		}
		dec.Feed(buf[:n])
	}
}

// readLoop feeds the socket into the decoder and dispatches every decoded
// message. It exits on the first read error, handing the error to the
// supervisor.
func (c *Conn) readLoop(tcp net.Conn, br *bufio.Reader, dec *protocol.Decoder, readDone chan<- error) {
	defer c.wg.Done()

	buf := make([]byte, 4096)
	for {
		n, err := br.Read(buf)
		if n > 0 {
			dec.Feed(buf[:n])
			if _, derr := c.drainDecoder(dec, nil); derr != nil {
				readDone <- derr
				return
			}
		}
		if err != nil {
			readDone <- err
			return
		}
	}
}

// drainDecoder dispatches all complete frames currently buffered. When until
// is non-nil, it stops early and reports true once a matching message has
// been seen (and dispatched).
func (c *Conn) drainDecoder(dec *protocol.Decoder, until func(protocol.Message) bool) (bool, error) {
	for {
		msg, err := dec.Next()
		if errors.Is(err, protocol.ErrNeedMoreData) {
			return false, nil
		}
		if errors.Is(err, protocol.ErrMalformed) {
			c.protoErrs.Add(1)
			c.logger.Warn("malformed frame, resynchronized",
				"resyncs", dec.Stats().Resyncs,
				"bytes_discarded", dec.Stats().BytesDiscarded,
			)
			continue
		}
		if err != nil {
			return false, err
		}

		c.frames.Add(1)
		c.dispatch(msg)

		if until != nil && until(msg) {
			return true, nil
		}
	}
}

// dispatch routes one message to whoever registered for its request id;
// unkeyed messages go to the session channel.
func (c *Conn) dispatch(msg protocol.Message) {
	if msg.Type() == "" {
		return // keepalive frame
	}

	if msg.Type() == protocol.InErrMsg {
		code := msg.Int(3)
		if !protocol.NonFatalErrors[code] {
			c.logger.Warn("gateway error",
				"req_id", msg.Int(2),
				"code", code,
				"text", msg.Field(4),
			)
		}
	}

	if reqID, ok := protocol.RequestID(msg); ok {
		c.subsMu.RLock()
		ch, found := c.subs[reqID]
		c.subsMu.RUnlock()
		if !found {
			return // no consumer registered; e.g. cancelled subscription
		}
		select {
		case ch <- msg:
		default:
			c.logger.Warn("consumer buffer full, dropping message",
				"req_id", reqID, "type", msg.Type())
		}
		return
	}

	select {
	case c.session <- msg:
	default:
		c.logger.Warn("session buffer full, dropping message", "type", msg.Type())
	}
}

// supervise watches for read-loop death and reconnects with exponential
// backoff. Consumers learn about the drop through States and must reissue
// their subscriptions once Ready arrives; none silently survives.
func (c *Conn) supervise(ctx context.Context) {
	defer c.wg.Done()

	for {
		c.mu.RLock()
		readDone := c.readDone
		c.mu.RUnlock()

		select {
		case <-c.done:
			return
		case <-ctx.Done():
			return
		case err := <-readDone:
			select {
			case <-c.done:
				return // Close() owns the teardown
			default:
			}

			c.logger.Warn("gateway connection lost", "error", err)
			c.teardown()
			c.notifyState(StateDisconnected)

			if !c.reconnect(ctx) {
				return
			}
			c.reconnects.Add(1)
		}
	}
}

// reconnect retries connect with exponential backoff until it succeeds,
// the configured attempt bound is exhausted, or the Conn is closed.
func (c *Conn) reconnect(ctx context.Context) bool {
	for attempt := 1; ; attempt++ {
		delay := backoffDelay(c.cfg.ReconnectBaseDelay, c.cfg.ReconnectMaxDelay, attempt)
		c.logger.Info("reconnecting", "attempt", attempt, "delay", delay)

		select {
		case <-c.done:
			return false
		case <-ctx.Done():
			return false
		case <-time.After(delay):
		}

		if err := c.connect(ctx); err == nil {
			return true
		}

		if c.cfg.MaxReconnects > 0 && attempt >= c.cfg.MaxReconnects {
			c.logger.Error("reconnect attempts exhausted, session is down",
				"attempts", attempt)
			return false
		}
	}
}

// teardown closes the socket and marks the state Disconnected.
func (c *Conn) teardown() {
	c.mu.Lock()
	if c.tcp != nil {
		c.tcp.Close()
		c.tcp = nil
	}
	c.state = StateDisconnected
	c.mu.Unlock()
}

func (c *Conn) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

// notifyState publishes a state change without ever blocking the caller.
func (c *Conn) notifyState(s State) {
	select {
	case c.states <- s:
	default:
	}
}

// backoffDelay doubles the base per attempt, capped at max.
func backoffDelay(base, max time.Duration, attempt int) time.Duration {
	d := base
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= max {
			return max
		}
	}
	if d > max {
		return max
	}
	return d
}
