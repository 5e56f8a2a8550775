package workflow

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/dustpan/dustpan/service/events"
	"github.com/dustpan/dustpan/service/solana"
	"github.com/dustpan/dustpan/service/wallet"
	solanago "github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeResolver is an in-memory AccountResolver with call counters.
type fakeResolver struct {
	mu          sync.Mutex
	balances    map[solanago.PublicKey]uint64
	balanceErrs map[solanago.PublicKey]error
	assets      map[string]solana.AssetAccount
	assetErrs   map[string]error

	balanceCalls int
	assetCalls   int
}

func newFakeResolver() *fakeResolver {
	return &fakeResolver{
		balances:    make(map[solanago.PublicKey]uint64),
		balanceErrs: make(map[solanago.PublicKey]error),
		assets:      make(map[string]solana.AssetAccount),
		assetErrs:   make(map[string]error),
	}
}

func assetKey(owner, mint solanago.PublicKey) string {
	return owner.String() + "/" + mint.String()
}

func (f *fakeResolver) NativeBalance(ctx context.Context, account solanago.PublicKey) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.balanceCalls++
	if err := f.balanceErrs[account]; err != nil {
		return 0, err
	}
	return f.balances[account], nil
}

func (f *fakeResolver) AssetAccount(ctx context.Context, owner, mint solanago.PublicKey) (solana.AssetAccount, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.assetCalls++
	key := assetKey(owner, mint)
	if err := f.assetErrs[key]; err != nil {
		return solana.AssetAccount{}, err
	}
	return f.assets[key], nil
}

type fakeEstimator struct {
	fee  uint64
	err  error
	calls int
}

func (f *fakeEstimator) Estimate(ctx context.Context, transaction *solanago.Transaction) (uint64, error) {
	f.calls++
	if f.err != nil {
		return 0, f.err
	}
	return f.fee, nil
}

type fakeAnchors struct {
	anchor solana.Anchor
	err    error
}

func (f *fakeAnchors) LatestAnchor(ctx context.Context) (solana.Anchor, error) {
	if f.err != nil {
		return solana.Anchor{}, f.err
	}
	return f.anchor, nil
}

type fakePipeline struct {
	submitSig solanago.Signature
	submitErr error
	outcome   solana.Outcome
	confirmErr error

	submitCalls  int
	confirmCalls int
	lastLVBH     uint64
	submitted    *solanago.Transaction
}

func (f *fakePipeline) Submit(ctx context.Context, transaction *solanago.Transaction) (solanago.Signature, error) {
	f.submitCalls++
	f.submitted = transaction
	if f.submitErr != nil {
		return solanago.Signature{}, f.submitErr
	}
	return f.submitSig, nil
}

func (f *fakePipeline) Confirm(ctx context.Context, sig solanago.Signature, lastValidBlockHeight uint64) (solana.Outcome, error) {
	f.confirmCalls++
	f.lastLVBH = lastValidBlockHeight
	if f.confirmErr != nil {
		return solana.Outcome{}, f.confirmErr
	}
	out := f.outcome
	if out.Signature == (solanago.Signature{}) {
		out.Signature = sig
	}
	return out, nil
}

// rejectingSession declines every signing request.
type rejectingSession struct {
	identity solanago.PublicKey
}

func (s *rejectingSession) PublicKey() solanago.PublicKey { return s.identity }

func (s *rejectingSession) SignTransaction(ctx context.Context, transaction *solanago.Transaction) (*solanago.Transaction, error) {
	return nil, wallet.ErrRejected
}

type testHarness struct {
	resolver  *fakeResolver
	estimator *fakeEstimator
	anchors   *fakeAnchors
	pipeline  *fakePipeline
	session   wallet.Session
	publisher *events.MockPublisher
}

func newTestHarness(t *testing.T) *testHarness {
	t.Helper()
	var blockhash solanago.Hash
	copy(blockhash[:], []byte("test-blockhash-for-workflows!!!!"))
	return &testHarness{
		resolver:  newFakeResolver(),
		estimator: &fakeEstimator{fee: 5000},
		anchors:   &fakeAnchors{anchor: solana.Anchor{Blockhash: blockhash, LastValidBlockHeight: 1000}},
		pipeline: &fakePipeline{
			submitSig: testSig(),
			outcome:   solana.Outcome{Status: solana.OutcomeFinalized},
		},
		session:   wallet.NewLocalSessionFromKey(solanago.NewWallet().PrivateKey),
		publisher: events.NewMockPublisher(),
	}
}

func (h *testHarness) deps() Deps {
	return Deps{
		Anchors:   h.anchors,
		Resolver:  h.resolver,
		Estimator: h.estimator,
		Pipeline:  h.pipeline,
		Session:   h.session,
		Publisher: h.publisher,
		Logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

// newSender generates a throwaway keypair, funds it in the fake resolver, and
// returns the raw base58 secret alongside its public key.
func (h *testHarness) newSender(lamports uint64) (string, solanago.PublicKey) {
	w := solanago.NewWallet()
	h.resolver.balances[w.PublicKey()] = lamports
	return w.PrivateKey.String(), w.PublicKey()
}

func testSig() solanago.Signature {
	var sig solanago.Signature
	copy(sig[:], []byte("signature-bytes-for-workflow-tests"))
	return sig
}

func testReceiver() solanago.PublicKey {
	return solanago.NewWallet().PublicKey()
}

func TestSweep_FullAmount(t *testing.T) {
	// Setup
	h := newTestHarness(t)
	k1, pub1 := h.newSender(400)
	k2, pub2 := h.newSender(600)
	receiver := testReceiver()
	sweeper := NewSweeper(h.deps())

	// Act
	result, err := sweeper.Sweep(context.Background(), SweepRequest{
		SenderKeys: []string{k1, k2},
		Receiver:   receiver.String(),
		FullAmount: true,
	})

	// Assert
	require.NoError(t, err)
	assert.Equal(t, solana.OutcomeFinalized, result.Outcome.Status)
	assert.Equal(t, uint64(1000), result.TotalAvailable)
	assert.Equal(t, uint64(1000), result.Transferred)
	require.Len(t, result.Contributions, 2)
	assert.Equal(t, pub1, result.Contributions[0].PublicKey)
	assert.Equal(t, uint64(400), result.Contributions[0].Lamports)
	assert.Equal(t, pub2, result.Contributions[1].PublicKey)
	assert.Equal(t, uint64(600), result.Contributions[1].Lamports)
	assert.Empty(t, result.Dropped)
	require.NotNil(t, result.EstimatedFee)
	assert.Equal(t, uint64(5000), *result.EstimatedFee)

	assert.Equal(t, 1, h.pipeline.submitCalls)
	assert.Equal(t, uint64(1000), h.pipeline.lastLVBH)

	published := h.publisher.GetPublishedEvents()
	require.Len(t, published, 1)
	assert.Equal(t, "sweep", published[0].Kind)
	assert.Equal(t, receiver.String(), published[0].Receiver)
	assert.Equal(t, "finalized", published[0].Status)
	assert.Equal(t, uint64(1000), published[0].Amount)
	assert.Equal(t, 2, published[0].Senders)
}

func TestSweep_InvalidSenderKeyDropsOnlyThatSender(t *testing.T) {
	// Setup: sender #2 of three is garbage.
	h := newTestHarness(t)
	k1, _ := h.newSender(100)
	k3, _ := h.newSender(300)
	sweeper := NewSweeper(h.deps())

	// Act
	result, err := sweeper.Sweep(context.Background(), SweepRequest{
		SenderKeys: []string{k1, "not-a-key", k3},
		Receiver:   testReceiver().String(),
		FullAmount: true,
	})

	// Assert: the other two still went through, in one transaction.
	require.NoError(t, err)
	assert.Equal(t, uint64(400), result.Transferred)
	require.Len(t, result.Dropped, 1)
	assert.Equal(t, 1, result.Dropped[0].Index)
	assert.Equal(t, ReasonInvalidSender, result.Dropped[0].Reason)
	assert.Equal(t, 1, h.pipeline.submitCalls)
}

func TestSweep_ZeroCustomAmountFailsBeforeAnyLookup(t *testing.T) {
	h := newTestHarness(t)
	k1, _ := h.newSender(100)
	sweeper := NewSweeper(h.deps())

	result, err := sweeper.Sweep(context.Background(), SweepRequest{
		SenderKeys:    []string{k1},
		Receiver:      testReceiver().String(),
		TotalLamports: 0,
	})

	require.ErrorIs(t, err, ErrInvalidAmount)
	assert.Nil(t, result)
	assert.Equal(t, 0, h.resolver.balanceCalls)
	assert.Equal(t, 0, h.pipeline.submitCalls)
}

func TestSweep_InvalidReceiver(t *testing.T) {
	h := newTestHarness(t)
	k1, _ := h.newSender(100)
	sweeper := NewSweeper(h.deps())

	_, err := sweeper.Sweep(context.Background(), SweepRequest{
		SenderKeys: []string{k1},
		Receiver:   "definitely-not-an-address",
		FullAmount: true,
	})

	require.ErrorIs(t, err, ErrInvalidReceiver)
	assert.Equal(t, 0, h.resolver.balanceCalls)
}

func TestSweep_AllSendersInvalid(t *testing.T) {
	h := newTestHarness(t)
	sweeper := NewSweeper(h.deps())

	_, err := sweeper.Sweep(context.Background(), SweepRequest{
		SenderKeys: []string{"bad", "[1,2,3]"},
		Receiver:   testReceiver().String(),
		FullAmount: true,
	})

	require.ErrorIs(t, err, ErrNoValidSenders)
	assert.Equal(t, 0, h.pipeline.submitCalls)
}

func TestSweep_ResolutionFailureDropsSender(t *testing.T) {
	// Setup: one sender's balance lookup fails.
	h := newTestHarness(t)
	k1, _ := h.newSender(100)
	k2, pub2 := h.newSender(200)
	h.resolver.balanceErrs[pub2] = errors.New("rpc timeout")
	sweeper := NewSweeper(h.deps())

	// Act
	result, err := sweeper.Sweep(context.Background(), SweepRequest{
		SenderKeys: []string{k1, k2},
		Receiver:   testReceiver().String(),
		FullAmount: true,
	})

	// Assert
	require.NoError(t, err)
	assert.Equal(t, uint64(100), result.Transferred)
	require.Len(t, result.Dropped, 1)
	assert.Equal(t, 1, result.Dropped[0].Index)
	assert.Equal(t, ReasonResolutionFailed, result.Dropped[0].Reason)
}

func TestSweep_ReceiverResolutionFailureAborts(t *testing.T) {
	h := newTestHarness(t)
	k1, _ := h.newSender(100)
	receiver := testReceiver()
	h.resolver.balanceErrs[receiver] = errors.New("rpc unavailable")
	sweeper := NewSweeper(h.deps())

	_, err := sweeper.Sweep(context.Background(), SweepRequest{
		SenderKeys: []string{k1},
		Receiver:   receiver.String(),
		FullAmount: true,
	})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "receiver")
	assert.Equal(t, 0, h.pipeline.submitCalls)
}

func TestSweep_CustomAmountDrainsSendersInOrder(t *testing.T) {
	// Setup: 500 + 300 + 200 available, 600 requested.
	h := newTestHarness(t)
	k1, pub1 := h.newSender(500)
	k2, pub2 := h.newSender(300)
	k3, _ := h.newSender(200)
	sweeper := NewSweeper(h.deps())

	// Act
	result, err := sweeper.Sweep(context.Background(), SweepRequest{
		SenderKeys:    []string{k1, k2, k3},
		Receiver:      testReceiver().String(),
		TotalLamports: 600,
	})

	// Assert: first sender drained, second covers the rest, third dropped.
	require.NoError(t, err)
	assert.Equal(t, uint64(600), result.Transferred)
	assert.Equal(t, uint64(1000), result.TotalAvailable)
	require.Len(t, result.Contributions, 2)
	assert.Equal(t, pub1, result.Contributions[0].PublicKey)
	assert.Equal(t, uint64(500), result.Contributions[0].Lamports)
	assert.Equal(t, pub2, result.Contributions[1].PublicKey)
	assert.Equal(t, uint64(100), result.Contributions[1].Lamports)
	require.Len(t, result.Dropped, 1)
	assert.Equal(t, ReasonNoContribution, result.Dropped[0].Reason)
}

func TestSweep_InsufficientFunds(t *testing.T) {
	h := newTestHarness(t)
	k1, _ := h.newSender(100)
	k2, _ := h.newSender(200)
	sweeper := NewSweeper(h.deps())

	_, err := sweeper.Sweep(context.Background(), SweepRequest{
		SenderKeys:    []string{k1, k2},
		Receiver:      testReceiver().String(),
		TotalLamports: 500,
	})

	require.ErrorIs(t, err, ErrInsufficientFunds)
	assert.Equal(t, 0, h.pipeline.submitCalls)
}

func TestSweep_ZeroBalanceSendersDroppedInFullMode(t *testing.T) {
	h := newTestHarness(t)
	k1, _ := h.newSender(0)
	k2, _ := h.newSender(250)
	sweeper := NewSweeper(h.deps())

	result, err := sweeper.Sweep(context.Background(), SweepRequest{
		SenderKeys: []string{k1, k2},
		Receiver:   testReceiver().String(),
		FullAmount: true,
	})

	require.NoError(t, err)
	assert.Equal(t, uint64(250), result.Transferred)
	require.Len(t, result.Dropped, 1)
	assert.Equal(t, 0, result.Dropped[0].Index)
	assert.Equal(t, ReasonZeroBalance, result.Dropped[0].Reason)
}

func TestSweep_WalletRejectionAbortsBeforeSubmit(t *testing.T) {
	// Setup
	h := newTestHarness(t)
	k1, _ := h.newSender(100)
	h.session = &rejectingSession{identity: solanago.NewWallet().PublicKey()}
	sweeper := NewSweeper(h.deps())

	// Act
	_, err := sweeper.Sweep(context.Background(), SweepRequest{
		SenderKeys: []string{k1},
		Receiver:   testReceiver().String(),
		FullAmount: true,
	})

	// Assert: nothing was sent and nothing was published.
	require.ErrorIs(t, err, wallet.ErrRejected)
	assert.Equal(t, 0, h.pipeline.submitCalls)
	assert.Empty(t, h.publisher.GetPublishedEvents())
}

func TestSweep_ExpiredOutcomeIsTerminal(t *testing.T) {
	// Setup: confirmation reports expiry, which is ambiguous but final.
	h := newTestHarness(t)
	h.pipeline.outcome = solana.Outcome{
		Status: solana.OutcomeExpired,
		Reason: "anchor expired before finalization; transaction may or may not have landed",
	}
	k1, _ := h.newSender(100)
	sweeper := NewSweeper(h.deps())

	// Act
	result, err := sweeper.Sweep(context.Background(), SweepRequest{
		SenderKeys: []string{k1},
		Receiver:   testReceiver().String(),
		FullAmount: true,
	})

	// Assert: expiry surfaces in the result, with exactly one submission.
	require.NoError(t, err)
	assert.Equal(t, solana.OutcomeExpired, result.Outcome.Status)
	assert.Equal(t, 1, h.pipeline.submitCalls)
	assert.Equal(t, 1, h.pipeline.confirmCalls)

	published := h.publisher.GetPublishedEvents()
	require.Len(t, published, 1)
	assert.Equal(t, "expired", published[0].Status)
}

func TestSweep_SubmitRejectionIsFatal(t *testing.T) {
	h := newTestHarness(t)
	h.pipeline.submitErr = errors.New("Transaction simulation failed")
	k1, _ := h.newSender(100)
	sweeper := NewSweeper(h.deps())

	_, err := sweeper.Sweep(context.Background(), SweepRequest{
		SenderKeys: []string{k1},
		Receiver:   testReceiver().String(),
		FullAmount: true,
	})

	require.Error(t, err)
	assert.Equal(t, 1, h.pipeline.submitCalls)
	assert.Equal(t, 0, h.pipeline.confirmCalls)
}

func TestSweep_PublishFailureDoesNotFailSweep(t *testing.T) {
	h := newTestHarness(t)
	h.publisher.SetPublishError(errors.New("nats unavailable"))
	k1, _ := h.newSender(100)
	sweeper := NewSweeper(h.deps())

	result, err := sweeper.Sweep(context.Background(), SweepRequest{
		SenderKeys: []string{k1},
		Receiver:   testReceiver().String(),
		FullAmount: true,
	})

	require.NoError(t, err)
	assert.Equal(t, solana.OutcomeFinalized, result.Outcome.Status)
}

func TestSweep_FeeEstimationFailureIsAdvisory(t *testing.T) {
	h := newTestHarness(t)
	h.estimator.err = errors.New("node does not price unsigned messages")
	k1, _ := h.newSender(100)
	sweeper := NewSweeper(h.deps())

	result, err := sweeper.Sweep(context.Background(), SweepRequest{
		SenderKeys: []string{k1},
		Receiver:   testReceiver().String(),
		FullAmount: true,
	})

	require.NoError(t, err)
	assert.Nil(t, result.EstimatedFee)
	assert.Equal(t, solana.OutcomeFinalized, result.Outcome.Status)
}
