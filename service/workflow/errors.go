package workflow

import (
	"errors"
)

// Input errors: rejected before any network call.
var (
	ErrInvalidAmount   = errors.New("amount must be greater than zero")
	ErrInvalidReceiver = errors.New("invalid receiver address")
	ErrInvalidMint     = errors.New("invalid mint address")
)

// Precondition and state errors.
var (
	// ErrNoValidSenders means every sender was dropped before a transaction
	// could be built; the ledger was never asked to mutate anything.
	ErrNoValidSenders = errors.New("no valid senders remain")

	// ErrInsufficientFunds means the resolved sender balances cannot cover
	// the requested total.
	ErrInsufficientFunds = errors.New("sender balances cannot cover the requested amount")

	// ErrMissingSenderAccount means the connected wallet has no associated
	// token account for the mint. This system does not create one: that is
	// a privileged, fee-bearing action left to the user's wallet.
	ErrMissingSenderAccount = errors.New("sender has no associated token account for this mint")

	// ErrMissingReceiverAccount is the receiver-side counterpart of
	// ErrMissingSenderAccount.
	ErrMissingReceiverAccount = errors.New("receiver has no associated token account for this mint")

	// ErrSigningIncomplete means a required signer other than the fee payer
	// is still unsigned after batch signing; handing off to the wallet
	// would produce a transaction the ledger rejects.
	ErrSigningIncomplete = errors.New("required signatures missing before wallet hand-off")
)

// Reasons a sender is dropped from a sweep. Batch workflows isolate
// per-item errors and continue; these name the per-item causes.
const (
	ReasonInvalidSender    = "invalid_sender"
	ReasonResolutionFailed = "resolution_failed"
	ReasonZeroBalance      = "zero_balance"
	ReasonNoContribution   = "no_contribution"
)
