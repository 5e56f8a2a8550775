package solana

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/stretchr/testify/require"
)

// mockRPCClient implements RPCClient for testing.
// It's behavior-focused: we set what it should return, not verify call
// sequences — but call counters are kept so tests can assert that certain
// paths never touch the ledger.
type mockRPCClient struct {
	balances   map[string]uint64
	balanceErr error

	// existing account addresses; anything else returns rpc.ErrNotFound
	accounts   map[string]bool
	accountErr error

	tokenAccounts []*rpc.TokenAccount
	tokenErr      error

	blockhash            solana.Hash
	lastValidBlockHeight uint64
	blockhashErr         error

	fee    *uint64
	feeErr error

	sendSig solana.Signature
	sendErr error

	// statuses returned by successive GetSignatureStatuses calls; the last
	// entry repeats once exhausted.
	statuses []*rpc.SignatureStatusesResult

	// heights returned by successive GetBlockHeight calls; the last entry
	// repeats once exhausted.
	heights []uint64

	balanceCalls int
	accountCalls int
	tokenCalls   int
	sendCalls    int
	statusCalls  int
	heightCalls  int
}

func (m *mockRPCClient) GetBalance(
	ctx context.Context,
	account solana.PublicKey,
	commitment rpc.CommitmentType,
) (*rpc.GetBalanceResult, error) {
	m.balanceCalls++
	if m.balanceErr != nil {
		return nil, m.balanceErr
	}
	return &rpc.GetBalanceResult{Value: m.balances[account.String()]}, nil
}

func (m *mockRPCClient) GetAccountInfo(
	ctx context.Context,
	account solana.PublicKey,
) (*rpc.GetAccountInfoResult, error) {
	m.accountCalls++
	if m.accountErr != nil {
		return nil, m.accountErr
	}
	if !m.accounts[account.String()] {
		return nil, rpc.ErrNotFound
	}
	return &rpc.GetAccountInfoResult{Value: &rpc.Account{}}, nil
}

func (m *mockRPCClient) GetTokenAccountsByOwner(
	ctx context.Context,
	owner solana.PublicKey,
	conf *rpc.GetTokenAccountsConfig,
	opts *rpc.GetTokenAccountsOpts,
) (*rpc.GetTokenAccountsResult, error) {
	m.tokenCalls++
	if m.tokenErr != nil {
		return nil, m.tokenErr
	}
	return &rpc.GetTokenAccountsResult{Value: m.tokenAccounts}, nil
}

func (m *mockRPCClient) GetLatestBlockhash(
	ctx context.Context,
	commitment rpc.CommitmentType,
) (*rpc.GetLatestBlockhashResult, error) {
	if m.blockhashErr != nil {
		return nil, m.blockhashErr
	}
	return &rpc.GetLatestBlockhashResult{
		Value: &rpc.LatestBlockhashResult{
			Blockhash:            m.blockhash,
			LastValidBlockHeight: m.lastValidBlockHeight,
		},
	}, nil
}

func (m *mockRPCClient) GetFeeForMessage(
	ctx context.Context,
	message string,
	commitment rpc.CommitmentType,
) (*rpc.GetFeeForMessageResult, error) {
	if m.feeErr != nil {
		return nil, m.feeErr
	}
	return &rpc.GetFeeForMessageResult{Value: m.fee}, nil
}

func (m *mockRPCClient) SendTransactionWithOpts(
	ctx context.Context,
	transaction *solana.Transaction,
	opts rpc.TransactionOpts,
) (solana.Signature, error) {
	m.sendCalls++
	if m.sendErr != nil {
		return solana.Signature{}, m.sendErr
	}
	return m.sendSig, nil
}

func (m *mockRPCClient) GetSignatureStatuses(
	ctx context.Context,
	searchTransactionHistory bool,
	transactionSignatures ...solana.Signature,
) (*rpc.GetSignatureStatusesResult, error) {
	i := m.statusCalls
	m.statusCalls++
	if len(m.statuses) == 0 {
		return &rpc.GetSignatureStatusesResult{Value: []*rpc.SignatureStatusesResult{nil}}, nil
	}
	if i >= len(m.statuses) {
		i = len(m.statuses) - 1
	}
	return &rpc.GetSignatureStatusesResult{Value: []*rpc.SignatureStatusesResult{m.statuses[i]}}, nil
}

func (m *mockRPCClient) GetBlockHeight(
	ctx context.Context,
	commitment rpc.CommitmentType,
) (uint64, error) {
	i := m.heightCalls
	m.heightCalls++
	if len(m.heights) == 0 {
		return 0, nil
	}
	if i >= len(m.heights) {
		i = len(m.heights) - 1
	}
	return m.heights[i], nil
}

func newTestClient(mock *mockRPCClient) *Client {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewClient(mock, "test", nil, logger)
}

func testPubkey(t *testing.T) solana.PublicKey {
	t.Helper()
	return solana.NewWallet().PublicKey()
}

func testSignature(t *testing.T) solana.Signature {
	t.Helper()
	sig, err := solana.SignatureFromBase58("5j7s6NiJS3JAkvgkoc18WVAsiSaci2pxB2A6ueCJP4tprA2TFg9wSyTLeYouxPBJEMzJinENTkpA52YStRW5Dia7")
	require.NoError(t, err)
	return sig
}
