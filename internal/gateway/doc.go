// Package gateway implements the Connection Manager component.
//
// The Connection Manager:
//   - Owns the TCP session to the market-data gateway exclusively
//   - Walks Disconnected -> Connecting -> Handshaking -> Ready
//   - Tries configured ports in order; first completed handshake wins
//   - Runs the dedicated read loop feeding the protocol decoder
//   - Dispatches decoded messages by request id to registered consumers
//   - Reconnects with exponential backoff after any read error
package gateway
