package tokenmeta

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
)

// DefaultTokenListURL is the community token list used when no override is
// configured.
const DefaultTokenListURL = "https://raw.githubusercontent.com/solana-labs/token-list/main/src/tokens/solana.tokenlist.json"

// ErrUnknownToken is returned when a mint is absent from the token list.
// Display code may fall back to "Unknown"; transfer code must treat this as
// fatal since the decimal count is required for amount conversion.
var ErrUnknownToken = errors.New("token not in token list")

// Token is the static metadata for one mint. It is used to render and
// convert amounts, never to validate transfers.
type Token struct {
	Mint     string `json:"address"`
	Name     string `json:"name"`
	Symbol   string `json:"symbol"`
	Decimals uint8  `json:"decimals"`
}

type tokenList struct {
	Tokens []Token `json:"tokens"`
}

// Registry resolves mint addresses to token metadata, fetching the token
// list over HTTP on first use. The list is static content, so one fetch per
// process is enough; live account state is never cached here.
type Registry struct {
	client *resty.Client
	url    string
	logger *slog.Logger

	mu     sync.Mutex
	byMint map[string]Token
}

// NewRegistry creates a registry backed by the token list at url.
// An empty url selects DefaultTokenListURL.
func NewRegistry(url string, logger *slog.Logger) *Registry {
	if url == "" {
		url = DefaultTokenListURL
	}
	return &Registry{
		client: resty.New().SetTimeout(30 * time.Second),
		url:    url,
		logger: logger,
	}
}

func (r *Registry) load(ctx context.Context) error {
	if r.byMint != nil {
		return nil
	}

	var list tokenList
	resp, err := r.client.R().
		SetContext(ctx).
		SetResult(&list).
		Get(r.url)
	if err != nil {
		return fmt.Errorf("failed to fetch token list: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("failed to fetch token list: status %d", resp.StatusCode())
	}

	byMint := make(map[string]Token, len(list.Tokens))
	for _, tok := range list.Tokens {
		byMint[tok.Mint] = tok
	}
	r.byMint = byMint

	r.logger.DebugContext(ctx, "loaded token list", "tokens", len(byMint))
	return nil
}

// Lookup returns metadata for the given mint, fetching the token list on
// first call. Returns ErrUnknownToken for mints the list does not carry.
func (r *Registry) Lookup(ctx context.Context, mint string) (Token, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.load(ctx); err != nil {
		return Token{}, err
	}

	tok, ok := r.byMint[mint]
	if !ok {
		return Token{}, fmt.Errorf("%w: %s", ErrUnknownToken, mint)
	}
	return tok, nil
}

// DisplayName returns "Name (SYMBOL)" for known mints and "Unknown" for
// anything else. Never fails; this is for rendering only.
func (r *Registry) DisplayName(ctx context.Context, mint string) string {
	tok, err := r.Lookup(ctx, mint)
	if err != nil {
		return "Unknown"
	}
	return fmt.Sprintf("%s (%s)", tok.Name, tok.Symbol)
}
