// Package session holds per-run mutable state: the operator-adjustable
// settings and the seen-set of symbols already alerted.
//
// Both are single-writer-many-reader structures; the mutex is held only
// across the read or insert itself. The seen-set has no expiry — Clear is
// the only reset, wiping the whole session's alert memory at once.
package session
