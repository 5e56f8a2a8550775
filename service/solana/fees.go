package solana

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
)

// ErrEstimationUnavailable is returned when the ledger cannot price a
// message, typically because the anchor expired between build and estimate.
// Estimation is advisory: callers log it and proceed to submission anyway.
var ErrEstimationUnavailable = errors.New("fee estimation unavailable")

// FeeEstimator prices anchored transactions without submitting them.
type FeeEstimator struct {
	*Client
}

// NewFeeEstimator creates a fee estimator on top of an existing client.
func NewFeeEstimator(c *Client) *FeeEstimator {
	return &FeeEstimator{Client: c}
}

// Estimate returns the ledger's fee for the transaction's message. The
// transaction must already carry its recent-blockhash anchor; an unanchored
// message cannot be priced.
func (e *FeeEstimator) Estimate(ctx context.Context, transaction *solana.Transaction) (uint64, error) {
	if transaction.Message.RecentBlockhash == (solana.Hash{}) {
		return 0, fmt.Errorf("%w: transaction has no anchor", ErrEstimationUnavailable)
	}

	message, err := transaction.Message.MarshalBinary()
	if err != nil {
		return 0, fmt.Errorf("failed to serialize message: %w", err)
	}

	start := time.Now()
	out, err := e.rpc.GetFeeForMessage(ctx, base64.StdEncoding.EncodeToString(message), rpc.CommitmentFinalized)
	e.record("GetFeeForMessage", start, err)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrEstimationUnavailable, err)
	}
	if out.Value == nil {
		return 0, ErrEstimationUnavailable
	}
	return *out.Value, nil
}
