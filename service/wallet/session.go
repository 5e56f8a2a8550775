package wallet

import (
	"context"
	"errors"
	"fmt"

	"github.com/gagliardetto/solana-go"
)

// ErrRejected is returned when the wallet declines to sign. The whole
// operation fails; there is no partial approval.
var ErrRejected = errors.New("wallet rejected the signing request")

// Session is the connected-wallet collaborator: it owns the fee payer's
// identity and supplies the final required signature. Workflows prepare a
// transaction where the fee payer is the only unsigned required signer and
// hand it off here.
type Session interface {
	// PublicKey returns the connected identity.
	PublicKey() solana.PublicKey

	// SignTransaction adds the connected identity's signature to the
	// transaction and returns it fully signed, or fails the operation.
	SignTransaction(ctx context.Context, transaction *solana.Transaction) (*solana.Transaction, error)
}

// LocalSession signs with a keypair loaded from a solana-keygen file. It is
// the CLI stand-in for a browser wallet; tests substitute their own Session
// implementations.
type LocalSession struct {
	key solana.PrivateKey
}

// NewLocalSession loads the keypair at path.
func NewLocalSession(path string) (*LocalSession, error) {
	key, err := solana.PrivateKeyFromSolanaKeygenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load keypair from %s: %w", path, err)
	}
	return &LocalSession{key: key}, nil
}

// NewLocalSessionFromKey wraps an already-loaded keypair.
func NewLocalSessionFromKey(key solana.PrivateKey) *LocalSession {
	return &LocalSession{key: key}
}

// PublicKey returns the connected identity.
func (s *LocalSession) PublicKey() solana.PublicKey {
	return s.key.PublicKey()
}

// SignTransaction fills this identity's signature slot. Fails if the
// connected identity is not a required signer of the transaction.
func (s *LocalSession) SignTransaction(ctx context.Context, transaction *solana.Transaction) (*solana.Transaction, error) {
	pub := s.PublicKey()

	n := int(transaction.Message.Header.NumRequiredSignatures)
	idx := -1
	for i, key := range transaction.Message.AccountKeys[:n] {
		if key.Equals(pub) {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, fmt.Errorf("%w: %s is not a required signer", ErrRejected, pub)
	}

	message, err := transaction.Message.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("failed to serialize message: %w", err)
	}

	sig, err := s.key.Sign(message)
	if err != nil {
		return nil, fmt.Errorf("failed to sign as %s: %w", pub, err)
	}

	if len(transaction.Signatures) < n {
		transaction.Signatures = append(transaction.Signatures, make([]solana.Signature, n-len(transaction.Signatures))...)
	}
	transaction.Signatures[idx] = sig
	return transaction, nil
}
