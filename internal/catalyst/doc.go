// Package catalyst implements the Confirmation Pipeline.
//
// Every candidate surfaced by the combiner holds a tagged state value:
// Discovered -> PendingNewsCheck -> Confirmed | Rejected, Confirmed ->
// Alerted. Transitions happen only along those edges, and the check-and-set
// that admits a symbol into the pipeline is atomic with the pending and seen
// sets, so one symbol is never checked twice concurrently.
//
// News checks run under a weighted semaphore with a per-call timeout.
// Transient enrichment failures are retried with backoff up to a bound, then
// the symbol is rejected as enrichment-unavailable rather than alerted
// unconfirmed.
package catalyst
