// Package common provides shared utilities for navrank
package common

import "time"

// Default freshness thresholds
const (
	FreshnessDataset = 24 * time.Hour
	FreshnessNAV     = 72 * time.Hour // a fund whose latest NAV is older than this is stale
)

// IsFreshAt reports whether observed lies within ttl of now. Both are
// compared as calendar instants; an observation after now is fresh.
func IsFreshAt(observed, now time.Time, ttl time.Duration) bool {
	if observed.IsZero() {
		return false
	}
	return now.Sub(observed) <= ttl
}
