// Package model defines shared data types used across momentumwatch.
//
// Conventions:
//   - Prices and percentages: float64, exactly as parsed off the wire
//   - Optional market fields: pointers, nil = the gateway never reported it
//   - Timestamps: time.Time in the local session's clock
//   - Scanner codes: upper-case gateway codes (e.g. TOP_PERC_GAIN)
package model
