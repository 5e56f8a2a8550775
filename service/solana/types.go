package solana

import (
	"github.com/gagliardetto/solana-go"
)

// Anchor is a recent-validity token: the blockhash a transaction is bound to
// and the block height after which that binding expires.
type Anchor struct {
	Blockhash            solana.Hash
	LastValidBlockHeight uint64
}

// AssetAccount is the derived (associated) token account for one
// owner/mint pair. Exists reflects a live ledger lookup, not a guess from
// the derivation.
type AssetAccount struct {
	Address solana.PublicKey
	Exists  bool
}

// AccountSnapshot is a point-in-time view of one account's state. Snapshots
// are immutable and never cached: balances are externally mutated, so every
// operation fetches fresh ones.
type AccountSnapshot struct {
	PublicKey solana.PublicKey
	Lamports  uint64
	Asset     *AssetAccount // set only when a mint was given
}

// TokenHolding is one SPL token account owned by a wallet, with its
// base-unit balance.
type TokenHolding struct {
	Account solana.PublicKey
	Mint    solana.PublicKey
	Amount  uint64
}

// OutcomeStatus is the terminal status of one submission attempt.
type OutcomeStatus string

const (
	// OutcomeFinalized means the ledger finalized the transaction.
	OutcomeFinalized OutcomeStatus = "finalized"

	// OutcomeFailed means the ledger processed the transaction and it failed.
	OutcomeFailed OutcomeStatus = "failed"

	// OutcomeExpired means the anchor's validity window elapsed without the
	// transaction finalizing. This is ambiguous: the transaction may or may
	// not have landed, and callers must not treat it as proof of
	// non-execution.
	OutcomeExpired OutcomeStatus = "expired"
)

// Outcome is the terminal result of one submission attempt. A retried
// attempt produces a new Outcome, never a mutation of an old one.
type Outcome struct {
	Signature solana.Signature
	Status    OutcomeStatus
	Reason    string // populated for failed outcomes
}
