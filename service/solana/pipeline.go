package solana

import (
	"context"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
)

// Pipeline sends fully signed transactions to the ledger and waits for a
// terminal outcome. Submission is single-attempt: there is no internal
// retry, and an expired confirmation is surfaced as-is rather than
// resubmitted. A failed operation must be rebuilt from a fresh anchor by
// the caller.
type Pipeline struct {
	*Client
	pollInterval time.Duration
}

// NewPipeline creates a submission pipeline. pollInterval controls how often
// Confirm checks the signature status; zero selects the 2s default.
func NewPipeline(c *Client, pollInterval time.Duration) *Pipeline {
	if pollInterval <= 0 {
		pollInterval = 2 * time.Second
	}
	return &Pipeline{Client: c, pollInterval: pollInterval}
}

// Submit sends the signed transaction. One attempt only; a rejection
// (malformed, duplicate, insufficient funds) comes back as an error with
// the ledger's reason attached.
func (p *Pipeline) Submit(ctx context.Context, transaction *solana.Transaction) (solana.Signature, error) {
	start := time.Now()
	sig, err := p.rpc.SendTransactionWithOpts(ctx, transaction, rpc.TransactionOpts{
		PreflightCommitment: rpc.CommitmentFinalized,
	})
	p.record("SendTransaction", start, err)
	if err != nil {
		return solana.Signature{}, fmt.Errorf("transaction rejected by ledger: %w", err)
	}

	p.logger.InfoContext(ctx, "submitted transaction", "signature", sig.String())
	return sig, nil
}

// Confirm polls the signature's status until it finalizes, fails, or the
// anchor's validity window elapses, whichever comes first. An expired
// outcome is ambiguous: blockhash expiry bounds how long the transaction
// stays eligible, it does not prove the transaction never executed. Confirm
// never resubmits and never restarts its own wait; callers wanting another
// look must call Confirm again.
func (p *Pipeline) Confirm(ctx context.Context, sig solana.Signature, lastValidBlockHeight uint64) (Outcome, error) {
	confirmStart := time.Now()
	outcome := func(o Outcome) (Outcome, error) {
		p.metrics.RecordConfirmation(string(o.Status), time.Since(confirmStart).Seconds())
		return o, nil
	}

	ticker := time.NewTicker(p.pollInterval)
	defer ticker.Stop()

	for {
		start := time.Now()
		statuses, err := p.rpc.GetSignatureStatuses(ctx, false, sig)
		p.record("GetSignatureStatuses", start, err)
		if err != nil {
			return Outcome{}, fmt.Errorf("failed to get signature status: %w", err)
		}

		if len(statuses.Value) > 0 && statuses.Value[0] != nil {
			status := statuses.Value[0]
			if status.Err != nil {
				p.logger.WarnContext(ctx, "transaction failed on ledger",
					"signature", sig.String(),
					"error", fmt.Sprintf("%v", status.Err),
				)
				return outcome(Outcome{
					Signature: sig,
					Status:    OutcomeFailed,
					Reason:    fmt.Sprintf("%v", status.Err),
				})
			}
			if status.ConfirmationStatus == rpc.ConfirmationStatusFinalized {
				p.logger.InfoContext(ctx, "transaction finalized",
					"signature", sig.String(),
					"slot", status.Slot,
				)
				return outcome(Outcome{Signature: sig, Status: OutcomeFinalized})
			}
		}

		heightStart := time.Now()
		height, err := p.rpc.GetBlockHeight(ctx, rpc.CommitmentFinalized)
		p.record("GetBlockHeight", heightStart, err)
		if err != nil {
			return Outcome{}, fmt.Errorf("failed to get block height: %w", err)
		}
		if height > lastValidBlockHeight {
			p.logger.WarnContext(ctx, "anchor expired before finalization",
				"signature", sig.String(),
				"block_height", height,
				"last_valid_block_height", lastValidBlockHeight,
			)
			return outcome(Outcome{
				Signature: sig,
				Status:    OutcomeExpired,
				Reason:    "anchor expired before finalization; transaction may or may not have landed",
			})
		}

		select {
		case <-ctx.Done():
			return Outcome{}, ctx.Err()
		case <-ticker.C:
		}
	}
}
