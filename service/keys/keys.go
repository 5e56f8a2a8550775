package keys

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/gagliardetto/solana-go"
	"github.com/mr-tron/base58"
)

// Material holds one sender's secret key for the duration of a single
// operation. It is never persisted and must be wiped with Zero before the
// owning workflow returns.
type Material struct {
	priv solana.PrivateKey
	pub  solana.PublicKey
}

// Parse decodes a raw secret key string into Material. Two encodings are
// accepted: a base58 string (the format wallet UIs export), or a JSON array
// of bytes (the solana-keygen file format). The decoded key must be a full
// 64-byte ed25519 keypair.
func Parse(raw string) (*Material, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, fmt.Errorf("empty key")
	}

	var secret []byte
	if strings.HasPrefix(raw, "[") {
		if err := json.Unmarshal([]byte(raw), &secret); err != nil {
			return nil, fmt.Errorf("invalid JSON key: %w", err)
		}
	} else {
		decoded, err := base58.Decode(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid base58 key: %w", err)
		}
		secret = decoded
	}

	if len(secret) != 64 {
		return nil, fmt.Errorf("secret key must be 64 bytes, got %d", len(secret))
	}

	priv := solana.PrivateKey(secret)
	return &Material{priv: priv, pub: priv.PublicKey()}, nil
}

// ParseAll decodes one key per line, skipping blank lines. Each entry in the
// returned slice corresponds positionally to a non-blank input line; a nil
// entry means that line failed to parse and the error is in errs at the same
// index. Callers decide whether partial failure is tolerable.
func ParseAll(input string) (materials []*Material, errs []error) {
	for _, line := range strings.Split(input, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		km, err := Parse(line)
		materials = append(materials, km)
		errs = append(errs, err)
	}
	return materials, errs
}

// PublicKey returns the public identifier derived from the secret key.
func (m *Material) PublicKey() solana.PublicKey {
	return m.pub
}

// Sign produces an ed25519 signature over the given message bytes.
func (m *Material) Sign(message []byte) (solana.Signature, error) {
	return m.priv.Sign(message)
}

// Zero overwrites the secret key bytes. The Material is unusable afterwards.
// Safe to call more than once.
func (m *Material) Zero() {
	for i := range m.priv {
		m.priv[i] = 0
	}
	m.priv = nil
}
