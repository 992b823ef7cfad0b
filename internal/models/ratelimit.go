package models

import "time"

// RateLimitResult reports a sliding-window decision for one key
type RateLimitResult struct {
	Allowed    bool          `json:"allowed"`
	Current    int           `json:"current"`
	Limit      int           `json:"limit"`
	Remaining  int           `json:"remaining"`
	RetryAfter time.Duration `json:"retry_after,omitempty"`
}
