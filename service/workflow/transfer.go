package workflow

import (
	"context"
	"fmt"
	"time"

	"github.com/dustpan/dustpan/service/events"
	"github.com/dustpan/dustpan/service/solana"
	"github.com/dustpan/dustpan/service/tokenmeta"
	"github.com/dustpan/dustpan/service/tx"
	solanago "github.com/gagliardetto/solana-go"
)

// MetadataLookup resolves a mint to its static metadata. Implemented by
// tokenmeta.Registry.
type MetadataLookup interface {
	Lookup(ctx context.Context, mint string) (tokenmeta.Token, error)
}

// TransferRequest asks for a single transfer from the connected wallet:
// native coin when Mint is empty, otherwise the fungible asset with that
// mint. Amount is in human units ("1.5"), converted to base units via the
// asset's decimal count.
type TransferRequest struct {
	Receiver string
	Amount   string
	Mint     string
}

// TransferResult is the terminal report of one transfer operation.
type TransferResult struct {
	Receiver        solanago.PublicKey
	AmountBaseUnits uint64
	EstimatedFee    *uint64
	Outcome         solana.Outcome
}

// Transferer orchestrates single transfers from the connected wallet. The
// wallet session is the only required signer on this path.
type Transferer struct {
	deps Deps
	meta MetadataLookup
}

// NewTransferer creates a single-transfer workflow.
func NewTransferer(deps Deps, meta MetadataLookup) *Transferer {
	return &Transferer{deps: deps, meta: meta}
}

// Transfer runs one transfer operation end to end. Unlike the sweep, any
// error aborts immediately: there is a single item, so there is nothing to
// isolate.
func (t *Transferer) Transfer(ctx context.Context, req TransferRequest) (*TransferResult, error) {
	d := t.deps

	receiver, err := solanago.PublicKeyFromBase58(req.Receiver)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidReceiver, err)
	}

	asset := "native"
	decimals := uint8(tx.NativeDecimals)
	var mint solanago.PublicKey
	if req.Mint != "" {
		asset = "token"
		mint, err = solanago.PublicKeyFromBase58(req.Mint)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidMint, err)
		}
		tok, err := t.meta.Lookup(ctx, req.Mint)
		if err != nil {
			return nil, fmt.Errorf("cannot determine decimals for %s: %w", req.Mint, err)
		}
		decimals = tok.Decimals
	}

	base, err := tx.ToBaseUnits(req.Amount, decimals)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidAmount, err)
	}
	if base == 0 {
		return nil, ErrInvalidAmount
	}

	sender := d.Session.PublicKey()

	var instruction solanago.Instruction
	if req.Mint == "" {
		instruction = tx.NativeTransfer(sender, receiver, base)
	} else {
		// Both derived accounts must already exist; this system does not
		// auto-create the missing one.
		senderAsset, err := d.Resolver.AssetAccount(ctx, sender, mint)
		if err != nil {
			return nil, err
		}
		if !senderAsset.Exists {
			return nil, fmt.Errorf("%w: %s", ErrMissingSenderAccount, sender)
		}
		receiverAsset, err := d.Resolver.AssetAccount(ctx, receiver, mint)
		if err != nil {
			return nil, err
		}
		if !receiverAsset.Exists {
			return nil, fmt.Errorf("%w: %s", ErrMissingReceiverAccount, receiver)
		}
		instruction = tx.AssetTransfer(senderAsset.Address, receiverAsset.Address, sender, base)
	}

	anchor, err := d.Anchors.LatestAnchor(ctx)
	if err != nil {
		return nil, err
	}
	anchored, err := tx.NewDraft(instruction).Anchor(anchor.Blockhash, anchor.LastValidBlockHeight, sender)
	if err != nil {
		return nil, err
	}

	result := &TransferResult{
		Receiver:        receiver,
		AmountBaseUnits: base,
		EstimatedFee:    estimateFee(ctx, d, anchored),
	}

	outcome, err := finalize(ctx, d, anchored)
	if err != nil {
		d.Metrics.RecordTransfer(asset, "rejected")
		return nil, err
	}
	result.Outcome = outcome

	d.Metrics.RecordTransfer(asset, string(outcome.Status))
	d.Logger.InfoContext(ctx, "transfer completed",
		"receiver", receiver.String(),
		"asset", asset,
		"base_units", base,
		"status", outcome.Status,
		"signature", outcome.Signature.String(),
	)

	publishOutcome(ctx, d, &events.OutcomeEvent{
		Kind:        "transfer",
		Signature:   outcome.Signature.String(),
		Receiver:    receiver.String(),
		Status:      string(outcome.Status),
		Reason:      outcome.Reason,
		Amount:      base,
		Mint:        req.Mint,
		PublishedAt: time.Now().UTC(),
	})

	return result, nil
}

// estimateFee prices the anchored transaction. Estimation is advisory: a
// failure is logged and the operation proceeds without a number.
func estimateFee(ctx context.Context, d Deps, anchored *tx.Anchored) *uint64 {
	fee, err := d.Estimator.Estimate(ctx, anchored.Transaction())
	if err != nil {
		d.Logger.WarnContext(ctx, "fee estimation unavailable", "error", err)
		return nil
	}
	d.Logger.DebugContext(ctx, "estimated transaction fee", "lamports", fee)
	return &fee
}

// finalize runs the shared tail of both workflows: verify the fee payer is
// the only pending signer, hand off to the wallet session, submit once, and
// wait for a terminal outcome.
func finalize(ctx context.Context, d Deps, anchored *tx.Anchored) (solana.Outcome, error) {
	payer := d.Session.PublicKey()
	for _, pending := range anchored.PendingSigners() {
		if !pending.Equals(payer) {
			return solana.Outcome{}, fmt.Errorf("%w: %s still pending", ErrSigningIncomplete, pending)
		}
	}

	signed, err := d.Session.SignTransaction(ctx, anchored.Transaction())
	if err != nil {
		return solana.Outcome{}, fmt.Errorf("wallet session refused to sign: %w", err)
	}

	sig, err := d.Pipeline.Submit(ctx, signed)
	if err != nil {
		return solana.Outcome{}, err
	}

	return d.Pipeline.Confirm(ctx, sig, anchored.LastValidBlockHeight())
}

// publishOutcome emits the terminal event when a publisher is configured.
// Publishing is best-effort; a failure never fails the operation.
func publishOutcome(ctx context.Context, d Deps, event *events.OutcomeEvent) {
	if d.Publisher == nil {
		return
	}
	if err := d.Publisher.PublishOutcome(ctx, event); err != nil {
		d.Logger.WarnContext(ctx, "failed to publish outcome event",
			"signature", event.Signature,
			"error", err,
		)
	}
}
