// Package history persists sightings to Postgres.
//
// The sightings relation is keyed by symbol and upserted: hit_count
// accumulates, scanners merge as a comma-joined sorted set, last_seen
// refreshes while first_seen is preserved. Recent and Today back the
// history command surface.
package history
