// Package enrich implements the news enrichment client.
//
// It speaks to a Yahoo-Finance-shaped quote endpoint: a search call for
// recent headlines and a quoteSummary call for company profile data. All
// outbound calls share a rate limiter; transient upstream failures are
// retried with jittered backoff. No headlines is a normal answer, not an
// error.
package enrich
