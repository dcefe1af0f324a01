package gateway

import (
	"errors"
	"time"
)

// State is the connection lifecycle state.
type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateHandshaking
	StateReady
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateHandshaking:
		return "handshaking"
	case StateReady:
		return "ready"
	default:
		return "unknown"
	}
}

// Config holds Connection Manager settings.
type Config struct {
	Host     string
	Ports    []int // Tried in order; first completed handshake wins
	ClientID int

	DialTimeout      time.Duration
	HandshakeTimeout time.Duration
	WriteTimeout     time.Duration

	ReconnectBaseDelay time.Duration
	ReconnectMaxDelay  time.Duration
	MaxReconnects      int // 0 = retry forever

	ChannelBuffer int // Per-consumer dispatch buffer
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Host:               "127.0.0.1",
		Ports:              []int{7497, 7500},
		ClientID:           1,
		DialTimeout:        2 * time.Second,
		HandshakeTimeout:   10 * time.Second,
		WriteTimeout:       5 * time.Second,
		ReconnectBaseDelay: time.Second,
		ReconnectMaxDelay:  60 * time.Second,
		ChannelBuffer:      256,
	}
}

func (c *Config) applyDefaults() {
	d := DefaultConfig()
	if c.Host == "" {
		c.Host = d.Host
	}
	if len(c.Ports) == 0 {
		c.Ports = d.Ports
	}
	if c.ClientID == 0 {
		c.ClientID = d.ClientID
	}
	if c.DialTimeout == 0 {
		c.DialTimeout = d.DialTimeout
	}
	if c.HandshakeTimeout == 0 {
		c.HandshakeTimeout = d.HandshakeTimeout
	}
	if c.WriteTimeout == 0 {
		c.WriteTimeout = d.WriteTimeout
	}
	if c.ReconnectBaseDelay == 0 {
		c.ReconnectBaseDelay = d.ReconnectBaseDelay
	}
	if c.ReconnectMaxDelay == 0 {
		c.ReconnectMaxDelay = d.ReconnectMaxDelay
	}
	if c.ChannelBuffer == 0 {
		c.ChannelBuffer = d.ChannelBuffer
	}
}

// Stats is a snapshot of connection activity.
type Stats struct {
	State          State
	Port           int
	ServerVersion  int
	FramesDecoded  int64
	ProtocolErrors int64
	Reconnects     int64
}

var (
	// ErrNotConnected reports a write attempted outside StateReady.
	ErrNotConnected = errors.New("gateway: not connected")

	// ErrClosed reports use after Close.
	ErrClosed = errors.New("gateway: connection closed")

	// ErrAllPortsFailed reports that no configured port completed the
	// handshake.
	ErrAllPortsFailed = errors.New("gateway: no configured port accepted the handshake")
)
