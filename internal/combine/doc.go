// Package combine implements the Combination & Dedup Engine.
//
// Rows from all active scanner subscriptions are grouped by symbol into
// Candidates carrying the union of contributing scanner codes. Candidates
// pass the momentum filter (price band, change, relative volume, float;
// missing fields fail closed), are dropped if the symbol was already alerted
// this session, and survivors are ordered by relative volume then change
// percentage, both descending.
package combine
