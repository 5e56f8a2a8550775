package events

import (
	"time"
)

// OutcomeEvent is the terminal result of a sweep or transfer, published to
// the subject "outcomes.{receiver_address}" in JetStream. Consumers use it
// for notifications and audit trails; nothing in this process reads it back.
type OutcomeEvent struct {
	// Operation identifiers
	Kind      string `json:"kind"` // "sweep" or "transfer"
	Signature string `json:"signature"`

	// Parties
	Receiver string `json:"receiver"`

	// Result
	Status string `json:"status"` // finalized, failed, expired
	Reason string `json:"reason,omitempty"`

	// Amounts in base units
	Amount  uint64 `json:"amount"`
	Senders int    `json:"senders,omitempty"` // sweep only
	Mint    string `json:"mint,omitempty"`    // transfer of a fungible asset only

	// Metadata
	PublishedAt time.Time `json:"published_at"`
}
