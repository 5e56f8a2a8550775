package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/dustpan/dustpan/service/events"
	"github.com/dustpan/dustpan/service/keys"
	"github.com/dustpan/dustpan/service/metrics"
	"github.com/dustpan/dustpan/service/solana"
	"github.com/dustpan/dustpan/service/tx"
	"github.com/dustpan/dustpan/service/wallet"
	solanago "github.com/gagliardetto/solana-go"
	"golang.org/x/sync/errgroup"
)

// AccountResolver answers read-only account questions. Implemented by
// solana.Resolver; narrowed here so tests can substitute fakes.
type AccountResolver interface {
	NativeBalance(ctx context.Context, account solanago.PublicKey) (uint64, error)
	AssetAccount(ctx context.Context, owner, mint solanago.PublicKey) (solana.AssetAccount, error)
}

// FeeEstimator prices an anchored transaction. Implemented by
// solana.FeeEstimator.
type FeeEstimator interface {
	Estimate(ctx context.Context, transaction *solanago.Transaction) (uint64, error)
}

// AnchorSource supplies fresh recent-validity tokens. Implemented by
// solana.Client.
type AnchorSource interface {
	LatestAnchor(ctx context.Context) (solana.Anchor, error)
}

// SubmissionPipeline sends and confirms signed transactions. Implemented by
// solana.Pipeline.
type SubmissionPipeline interface {
	Submit(ctx context.Context, transaction *solanago.Transaction) (solanago.Signature, error)
	Confirm(ctx context.Context, sig solanago.Signature, lastValidBlockHeight uint64) (solana.Outcome, error)
}

// Deps bundles the collaborators both workflows share. Publisher and
// Metrics are optional; everything else is required.
type Deps struct {
	Anchors   AnchorSource
	Resolver  AccountResolver
	Estimator FeeEstimator
	Pipeline  SubmissionPipeline
	Session   wallet.Session
	Publisher events.Publisher
	Metrics   *metrics.Metrics
	Logger    *slog.Logger
}

// SweepRequest asks for many throwaway accounts to be consolidated into one
// receiver. SenderKeys are raw secret key strings, one per sender, exactly
// as pasted by the user.
type SweepRequest struct {
	SenderKeys []string
	Receiver   string

	// FullAmount sweeps each sender's entire balance. When false,
	// TotalLamports is the total requested from the batch, allocated across
	// senders in input order.
	FullAmount    bool
	TotalLamports uint64
}

// DroppedSender records one sender excluded from the sweep and why. The
// index refers to the position in SweepRequest.SenderKeys.
type DroppedSender struct {
	Index  int
	Reason string
}

// SenderContribution is one sender's share of the sweep transaction.
type SenderContribution struct {
	PublicKey solanago.PublicKey
	Lamports  uint64
}

// SweepResult is the terminal report of one sweep operation.
type SweepResult struct {
	Outcome        solana.Outcome
	Contributions  []SenderContribution
	Dropped        []DroppedSender
	TotalAvailable uint64 // sum of all resolved sender balances
	Transferred    uint64 // sum of contributions actually in the transaction
	EstimatedFee   *uint64
}

// Sweeper orchestrates dust consolidation: parse keys, resolve balances in
// parallel, allocate amounts, build one atomic transaction signed by every
// sender plus the connected fee payer, submit, confirm.
type Sweeper struct {
	deps Deps
}

// NewSweeper creates a sweep workflow with the given collaborators.
func NewSweeper(deps Deps) *Sweeper {
	return &Sweeper{deps: deps}
}

type sweepSender struct {
	index    int
	km       *keys.Material
	lamports uint64
}

// Sweep runs one consolidation operation end to end. Per-sender failures
// (unparseable key, failed resolution) drop that sender only; the rest
// proceed. On any ledger-level failure nothing is re-sent: the user must
// trigger a new sweep, which rebuilds from a fresh anchor.
func (s *Sweeper) Sweep(ctx context.Context, req SweepRequest) (*SweepResult, error) {
	d := s.deps

	if !req.FullAmount && req.TotalLamports == 0 {
		return nil, ErrInvalidAmount
	}

	receiver, err := solanago.PublicKeyFromBase58(req.Receiver)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidReceiver, err)
	}

	result := &SweepResult{}

	// Parse every sender key; a bad key drops that sender, not the batch.
	var senders []*sweepSender
	for i, raw := range req.SenderKeys {
		km, err := keys.Parse(raw)
		if err != nil {
			d.Logger.WarnContext(ctx, "dropping invalid sender key", "index", i, "error", err)
			d.Metrics.RecordSendersDropped(ReasonInvalidSender, 1)
			result.Dropped = append(result.Dropped, DroppedSender{Index: i, Reason: ReasonInvalidSender})
			continue
		}
		senders = append(senders, &sweepSender{index: i, km: km})
	}
	// Secret keys live only for the span of this operation, whatever the
	// exit path.
	defer func() {
		for _, sd := range senders {
			sd.km.Zero()
		}
	}()

	if len(senders) == 0 {
		return nil, ErrNoValidSenders
	}

	// Resolve every sender and the receiver in parallel. A sender's
	// resolution failure drops that sender without cancelling its siblings;
	// only a receiver failure aborts the operation.
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if _, err := d.Resolver.NativeBalance(gctx, receiver); err != nil {
			return fmt.Errorf("failed to resolve receiver %s: %w", receiver, err)
		}
		return nil
	})
	resolveErrs := make([]error, len(senders))
	for i, sd := range senders {
		g.Go(func() error {
			lamports, err := d.Resolver.NativeBalance(gctx, sd.km.PublicKey())
			if err != nil {
				resolveErrs[i] = err
				return nil
			}
			sd.lamports = lamports
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var resolved []*sweepSender
	for i, sd := range senders {
		if resolveErrs[i] != nil {
			d.Logger.WarnContext(ctx, "dropping unresolvable sender",
				"index", sd.index,
				"public_key", sd.km.PublicKey().String(),
				"error", resolveErrs[i],
			)
			d.Metrics.RecordSendersDropped(ReasonResolutionFailed, 1)
			result.Dropped = append(result.Dropped, DroppedSender{Index: sd.index, Reason: ReasonResolutionFailed})
			continue
		}
		resolved = append(resolved, sd)
		result.TotalAvailable += sd.lamports
	}

	contributors, err := s.allocate(ctx, req, resolved, result)
	if err != nil {
		return nil, err
	}
	if len(contributors) == 0 {
		return nil, ErrNoValidSenders
	}

	draft := tx.NewDraft()
	for _, sd := range contributors {
		draft.Add(tx.NativeTransfer(sd.km.PublicKey(), receiver, sd.lamports))
		result.Contributions = append(result.Contributions, SenderContribution{
			PublicKey: sd.km.PublicKey(),
			Lamports:  sd.lamports,
		})
		result.Transferred += sd.lamports
	}

	anchor, err := d.Anchors.LatestAnchor(ctx)
	if err != nil {
		return nil, err
	}
	anchored, err := draft.Anchor(anchor.Blockhash, anchor.LastValidBlockHeight, d.Session.PublicKey())
	if err != nil {
		return nil, err
	}

	result.EstimatedFee = estimateFee(ctx, d, anchored)

	for _, sd := range contributors {
		if err := anchored.ApplySignature(sd.km); err != nil {
			return nil, fmt.Errorf("failed to sign for sender %s: %w", sd.km.PublicKey(), err)
		}
	}

	outcome, err := finalize(ctx, d, anchored)
	if err != nil {
		d.Metrics.RecordSweep("rejected", len(contributors), 0)
		return nil, err
	}
	result.Outcome = outcome

	d.Metrics.RecordSweep(string(outcome.Status), len(contributors), result.Transferred)
	d.Logger.InfoContext(ctx, "sweep completed",
		"receiver", receiver.String(),
		"senders", len(contributors),
		"dropped", len(result.Dropped),
		"lamports", result.Transferred,
		"status", outcome.Status,
		"signature", outcome.Signature.String(),
	)

	publishOutcome(ctx, d, &events.OutcomeEvent{
		Kind:        "sweep",
		Signature:   outcome.Signature.String(),
		Receiver:    receiver.String(),
		Status:      string(outcome.Status),
		Reason:      outcome.Reason,
		Amount:      result.Transferred,
		Senders:     len(contributors),
		PublishedAt: time.Now().UTC(),
	})

	return result, nil
}

// allocate decides each sender's contribution. Full-amount mode takes every
// sender's whole balance. Custom mode treats the requested amount as a batch
// total and drains senders in input order until it is covered; senders that
// end up contributing nothing are dropped from the transaction.
func (s *Sweeper) allocate(ctx context.Context, req SweepRequest, resolved []*sweepSender, result *SweepResult) ([]*sweepSender, error) {
	d := s.deps

	var contributors []*sweepSender
	drop := func(sd *sweepSender, reason string) {
		d.Metrics.RecordSendersDropped(reason, 1)
		result.Dropped = append(result.Dropped, DroppedSender{Index: sd.index, Reason: reason})
	}

	if req.FullAmount {
		for _, sd := range resolved {
			if sd.lamports == 0 {
				drop(sd, ReasonZeroBalance)
				continue
			}
			contributors = append(contributors, sd)
		}
		return contributors, nil
	}

	if result.TotalAvailable < req.TotalLamports {
		return nil, fmt.Errorf("%w: have %d lamports, need %d",
			ErrInsufficientFunds, result.TotalAvailable, req.TotalLamports)
	}

	remaining := req.TotalLamports
	for _, sd := range resolved {
		take := min(remaining, sd.lamports)
		if take == 0 {
			drop(sd, ReasonNoContribution)
			continue
		}
		sd.lamports = take
		remaining -= take
		contributors = append(contributors, sd)
	}
	return contributors, nil
}
