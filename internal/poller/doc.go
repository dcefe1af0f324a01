// Package poller implements the Scheduler component.
//
// A single timer drives the poll cycle. Ticks are non-reentrant: when a
// cycle is still running at the next fire, that fire is skipped and counted,
// never queued. Stop halts the timer but lets an in-flight cycle finish.
package poller
