// Package models defines common data structures shared across the wallet's
// coordinator-facing services.
package models

import "time"

// QueryOutcome records the terminal classification of one quorum.Query
// call: how it was configured, how many retries it spent, and how it
// ended. It is the row persisted by the audit log and the payload
// published by the outcome publisher.
type QueryOutcome struct {
	Chain                string    `json:"chain"`
	Kind                 string    `json:"kind"` // "balance", "nonce", "gas_price", "broadcast"
	Address              string    `json:"address,omitempty"`
	Policy               string    `json:"policy"` // "count" or "average"
	Class                string    `json:"class"`  // "consistent", "averaged", "none_available", "not_enough_available", "inconsistent", "configuration_error", "fatal"
	Value                string    `json:"value,omitempty"`
	Cause                string    `json:"cause,omitempty"`
	Retries              uint16    `json:"retries"`
	InconsistencyRetries uint16    `json:"inconsistency_retries"`
	ObservedAt           time.Time `json:"observed_at"`
}

// CacheEntry is the last consistent result recorded for a chain+address+kind
// (Address is empty for queries, like gas price, with no address to key
// on), persisted by internal/cache.
type CacheEntry struct {
	Chain     string    `json:"chain"`
	Address   string    `json:"address"`
	Kind      string    `json:"kind"`
	Value     string    `json:"value"`
	UpdatedAt time.Time `json:"updated_at"`
}
