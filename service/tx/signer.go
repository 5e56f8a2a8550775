package tx

import (
	"errors"
	"fmt"

	"github.com/dustpan/dustpan/service/keys"
	"github.com/gagliardetto/solana-go"
)

// ErrUnknownSigner is returned when a signature is applied for a key that is
// not among the transaction's required signers.
var ErrUnknownSigner = errors.New("signer is not required by this transaction")

// Anchored is a transaction whose instruction content is frozen and whose
// recent-blockhash anchor is set. It accumulates signatures from the
// independent senders; the fee payer's signature is supplied last by the
// wallet session, not by this type.
type Anchored struct {
	tx                   *solana.Transaction
	feePayer             solana.PublicKey
	lastValidBlockHeight uint64
	applied              map[solana.PublicKey]bool
}

// RequiredSigners lists every public key that must sign before submission,
// fee payer included (always first, per message layout).
func (a *Anchored) RequiredSigners() []solana.PublicKey {
	n := int(a.tx.Message.Header.NumRequiredSignatures)
	out := make([]solana.PublicKey, n)
	copy(out, a.tx.Message.AccountKeys[:n])
	return out
}

// PendingSigners lists required signers that have not yet signed.
func (a *Anchored) PendingSigners() []solana.PublicKey {
	var out []solana.PublicKey
	for _, key := range a.RequiredSigners() {
		if !a.applied[key] {
			out = append(out, key)
		}
	}
	return out
}

// ApplySignature signs the frozen message with the given key material and
// records the signature in the signer's slot. Re-applying the same signer
// overwrites the previous signature rather than duplicating it. Fails with
// ErrUnknownSigner if the key's public identifier is not a required signer;
// the transaction is left unchanged in that case.
func (a *Anchored) ApplySignature(km *keys.Material) error {
	pub := km.PublicKey()

	idx := -1
	for i, key := range a.RequiredSigners() {
		if key.Equals(pub) {
			idx = i
			break
		}
	}
	if idx < 0 {
		return fmt.Errorf("%w: %s", ErrUnknownSigner, pub)
	}

	message, err := a.tx.Message.MarshalBinary()
	if err != nil {
		return fmt.Errorf("failed to serialize message: %w", err)
	}

	sig, err := km.Sign(message)
	if err != nil {
		return fmt.Errorf("failed to sign as %s: %w", pub, err)
	}

	a.tx.Signatures[idx] = sig
	a.applied[pub] = true
	return nil
}

// FeePayer returns the designated fee payer.
func (a *Anchored) FeePayer() solana.PublicKey {
	return a.feePayer
}

// LastValidBlockHeight returns the block height after which the anchor
// expires and the transaction is no longer eligible for submission.
func (a *Anchored) LastValidBlockHeight() uint64 {
	return a.lastValidBlockHeight
}

// ReadyForHandoff reports whether the fee payer is the only signer still
// pending. Only then is the transaction valid input to the wallet session.
func (a *Anchored) ReadyForHandoff() bool {
	pending := a.PendingSigners()
	return len(pending) == 1 && pending[0].Equals(a.feePayer)
}

// Transaction exposes the underlying transaction for fee estimation and for
// the wallet-session hand-off. Callers must not mutate instruction content.
func (a *Anchored) Transaction() *solana.Transaction {
	return a.tx
}
