package solana

import (
	"context"
	"errors"
	"fmt"
	"time"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/token"
	"github.com/gagliardetto/solana-go/rpc"
)

// Resolver answers read-only questions about account state: native balance,
// derived asset accounts and their existence, and token holdings. It holds
// no mutable state, so one Resolver may serve many concurrent lookups (the
// sweep workflow resolves all senders in parallel through a single
// instance).
type Resolver struct {
	*Client
}

// NewResolver creates a resolver on top of an existing client.
func NewResolver(c *Client) *Resolver {
	return &Resolver{Client: c}
}

// NativeBalance returns the account's lamport balance. An account the
// ledger has never seen holds zero lamports; that is a valid answer, not
// an error.
func (r *Resolver) NativeBalance(ctx context.Context, account solana.PublicKey) (uint64, error) {
	start := time.Now()
	out, err := r.rpc.GetBalance(ctx, account, rpc.CommitmentFinalized)
	r.record("GetBalance", start, err)
	if err != nil {
		return 0, fmt.Errorf("failed to get balance for %s: %w", account, err)
	}
	return out.Value, nil
}

// AssetAccount derives the canonical associated token account for the
// owner/mint pair and checks on the ledger whether it exists. The
// derivation is deterministic; existence is a live lookup.
func (r *Resolver) AssetAccount(ctx context.Context, owner, mint solana.PublicKey) (AssetAccount, error) {
	address, _, err := solana.FindAssociatedTokenAddress(owner, mint)
	if err != nil {
		return AssetAccount{}, fmt.Errorf("failed to derive token account for %s: %w", owner, err)
	}

	start := time.Now()
	_, err = r.rpc.GetAccountInfo(ctx, address)
	r.record("GetAccountInfo", start, err)
	if err != nil {
		if errors.Is(err, rpc.ErrNotFound) {
			return AssetAccount{Address: address, Exists: false}, nil
		}
		return AssetAccount{}, fmt.Errorf("failed to look up token account %s: %w", address, err)
	}

	return AssetAccount{Address: address, Exists: true}, nil
}

// Snapshot fetches a fresh view of one account: its native balance and,
// when mint is non-nil, its derived asset account for that mint.
func (r *Resolver) Snapshot(ctx context.Context, account solana.PublicKey, mint *solana.PublicKey) (AccountSnapshot, error) {
	lamports, err := r.NativeBalance(ctx, account)
	if err != nil {
		return AccountSnapshot{}, err
	}

	snap := AccountSnapshot{PublicKey: account, Lamports: lamports}
	if mint != nil {
		asset, err := r.AssetAccount(ctx, account, *mint)
		if err != nil {
			return AccountSnapshot{}, err
		}
		snap.Asset = &asset
	}
	return snap, nil
}

// TokenHoldings lists every SPL token account owned by the wallet with its
// base-unit balance. Used for the balance overview; never consulted when
// building transfers.
func (r *Resolver) TokenHoldings(ctx context.Context, owner solana.PublicKey) ([]TokenHolding, error) {
	programID := solana.TokenProgramID
	start := time.Now()
	out, err := r.rpc.GetTokenAccountsByOwner(ctx, owner,
		&rpc.GetTokenAccountsConfig{ProgramId: &programID},
		&rpc.GetTokenAccountsOpts{
			Commitment: rpc.CommitmentFinalized,
			Encoding:   solana.EncodingBase64,
		},
	)
	r.record("GetTokenAccountsByOwner", start, err)
	if err != nil {
		return nil, fmt.Errorf("failed to list token accounts for %s: %w", owner, err)
	}

	holdings := make([]TokenHolding, 0, len(out.Value))
	for _, acc := range out.Value {
		var parsed token.Account
		if err := bin.NewBinDecoder(acc.Account.Data.GetBinary()).Decode(&parsed); err != nil {
			r.logger.WarnContext(ctx, "skipping undecodable token account",
				"account", acc.Pubkey.String(),
				"error", err,
			)
			continue
		}
		holdings = append(holdings, TokenHolding{
			Account: acc.Pubkey,
			Mint:    parsed.Mint,
			Amount:  parsed.Amount,
		})
	}
	return holdings, nil
}
