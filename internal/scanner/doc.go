// Package scanner implements the Subscription Engine.
//
// The engine owns scanner subscriptions against the gateway: each defined
// scanner code has a fixed client id whose request id range
// [ClientID*1000, ClientID*1000+999) carries the subscription on the base id
// and per-row market data requests on the rest. Scanner result messages
// replace the row set wholesale; tick messages fill in per-row market fields.
//
// Subscriptions issued while disconnected are queued and replayed when the
// connection reaches Ready; live subscriptions are marked Error on connection
// loss and reissued the same way.
package scanner
