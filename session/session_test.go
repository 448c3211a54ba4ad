package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/celer-network/go-multichain/aggregator"
	"github.com/celer-network/go-multichain/builder"
	"github.com/celer-network/go-multichain/bundler"
	"github.com/celer-network/go-multichain/credential"
	"github.com/celer-network/go-multichain/db/memorydb"
	"github.com/celer-network/go-multichain/expander"
	"github.com/celer-network/go-multichain/storage"
	"github.com/celer-network/go-multichain/submitter"
	"github.com/celer-network/go-multichain/test"
	"github.com/celer-network/go-multichain/types"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var newOwner = common.HexToAddress("0x00000000000000000000000000000000000000b0")

// countingProvider records sign calls and can decline or block them.
type countingProvider struct {
	inner   *credential.Authenticator
	decline bool
	gate    chan struct{}

	lock       sync.Mutex
	challenges []common.Hash
}

func (p *countingProvider) Sign(ctx context.Context, challenge common.Hash) (*credential.Signature, *credential.Metadata, error) {
	p.lock.Lock()
	p.challenges = append(p.challenges, challenge)
	p.lock.Unlock()
	if p.gate != nil {
		<-p.gate
	}
	if p.decline {
		return nil, nil, types.ErrUserCancelled
	}
	return p.inner.Sign(ctx, challenge)
}

func (p *countingProvider) CreateCredential(ctx context.Context, params credential.CreateParams) (*credential.Credential, error) {
	return p.inner.CreateCredential(ctx, params)
}

func (p *countingProvider) calls() []common.Hash {
	p.lock.Lock()
	defer p.lock.Unlock()
	return append([]common.Hash(nil), p.challenges...)
}

type fixture struct {
	net        *test.Network
	provider   *countingProvider
	store      *storage.Storage
	controller *Controller
	signer     types.PublicKey
}

func newFixture(t *testing.T, chainIDs ...uint64) *fixture {
	net, err := test.NewNetwork(chainIDs...)
	require.NoError(t, err)
	t.Cleanup(net.Close)

	auth, err := credential.NewSoftwareAuthenticator()
	require.NoError(t, err)
	signer := auth.Credential().PublicKey

	cfg := builder.DefaultConfig()
	cfg.EntryPoint = test.EntryPoint
	cfg.SafeModule = test.SafeModule
	cfg.MultiSend = test.MultiSend
	cfg.RecoveryModule = test.RecoveryModule
	cfg.ChainCount = len(chainIDs)
	bundlers := net.BundlerClients()
	b, err := builder.New(cfg, net.ChainReaders(), bundlers, net.PaymasterClient(nil))
	require.NoError(t, err)

	provider := &countingProvider{inner: auth}
	store := storage.NewStorage(memorydb.NewDB())
	controller, err := New(Config{
		Chains:    net.Chains,
		Account:   test.Account,
		Signer:    signer,
		Builder:   b,
		Provider:  provider,
		Submitter: submitter.New(submitter.Config{PollInterval: 5 * time.Millisecond, InclusionTimeout: 200 * time.Millisecond}, bundlers),
		Store:     store,
	})
	require.NoError(t, err)
	return &fixture{net: net, provider: provider, store: store, controller: controller, signer: signer}
}

func (f *fixture) sentCount() int {
	n := 0
	for _, b := range f.net.Bundlers {
		n += len(b.Sent())
	}
	return n
}

func addOwner() types.Intent {
	return types.Intent{Kind: types.IntentAddOwner, Subject: newOwner, Threshold: 1}
}

func TestAddOwnerOnThreeChains(t *testing.T) {
	f := newFixture(t, 1, 10, 42)
	report, err := f.controller.Run(context.Background(), addOwner())
	require.NoError(t, err)

	// exactly one signature for three chains
	challenges := f.provider.calls()
	require.Len(t, challenges, 1)
	assert.Equal(t, report.Root, challenges[0])

	require.Len(t, report.Results, 3)
	for i, id := range []uint64{1, 10, 42} {
		r := report.Results[i]
		assert.Equal(t, id, r.ChainID)
		assert.Equal(t, types.ChainStatusConfirmed, r.Status)
		require.NotNil(t, r.TransactionHash)
	}

	// every submitted operation carries addOwnerWithThreshold(newOwner, 1) and verifies alone
	for _, id := range []uint64{1, 10, 42} {
		sent := f.net.Bundlers[id].Sent()
		require.Len(t, sent, 1)
		op := sentOperation(id, sent[0])
		assert.Equal(t, "0x7bb37428", hexutil.Encode(op.CallData[:4]))
		assert.NoError(t, expander.Verify(op, sent[0].Signature, report.Root), "chain %d", id)
	}

	view := f.controller.Snapshot()
	assert.Equal(t, StateSettled, view.State)
	assert.Equal(t, report.SessionID, view.SessionID)

	stored, ok, err := f.store.Report(report.SessionID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 3, stored.Confirmed())

	require.NoError(t, f.controller.Dismiss())
	assert.Equal(t, StateIdle, f.controller.Snapshot().State)
}

// sentOperation rebuilds the pending operation a bundler received.
func sentOperation(chainID uint64, sent bundler.UserOperation) *types.PendingOperation {
	op := &types.PendingOperation{
		ChainID:              chainID,
		Sender:               sent.Sender,
		Nonce:                sent.Nonce.ToInt(),
		CallData:             sent.CallData,
		CallGasLimit:         sent.CallGasLimit.ToInt(),
		VerificationGasLimit: sent.VerificationGasLimit.ToInt(),
		PreVerificationGas:   sent.PreVerificationGas.ToInt(),
		MaxFeePerGas:         sent.MaxFeePerGas.ToInt(),
		MaxPriorityFeePerGas: sent.MaxPriorityFeePerGas.ToInt(),
		EntryPoint:           test.EntryPoint,
		SafeModule:           test.SafeModule,
	}
	if sent.Factory != nil {
		op.Factory = sent.Factory
		op.FactoryData = sent.FactoryData
	}
	if sent.Paymaster != nil {
		op.Paymaster = sent.Paymaster
		op.PaymasterVerificationGasLimit = sent.PaymasterVerificationGasLimit.ToInt()
		op.PaymasterPostOpGasLimit = sent.PaymasterPostOpGasLimit.ToInt()
		op.PaymasterData = sent.PaymasterData
	}
	if decoded, err := expander.Decode(sent.Signature); err == nil {
		op.ValidAfter = decoded.ValidAfter
		op.ValidUntil = decoded.ValidUntil
	}
	return op
}

func TestPreSigningFailureAbortsEverything(t *testing.T) {
	f := newFixture(t, 1, 10, 42)
	f.net.Readers[10].Fail = true

	_, err := f.controller.Run(context.Background(), addOwner())
	require.Error(t, err)
	assert.True(t, errors.Is(err, types.ErrNetwork))

	assert.Empty(t, f.provider.calls())
	assert.Zero(t, f.sentCount())
	view := f.controller.Snapshot()
	assert.Equal(t, StateIdle, view.State)
	assert.NotEmpty(t, view.AbortReason)
	for _, r := range view.Results {
		assert.Equal(t, types.ChainStatusUnset, r.Status)
	}
	reports, err := f.store.Reports()
	require.NoError(t, err)
	assert.Empty(t, reports)
}

func TestSponsorshipFailureAborts(t *testing.T) {
	f := newFixture(t, 1, 10)
	f.net.Sponsor.Refuse = true
	_, err := f.controller.Run(context.Background(), addOwner())
	assert.True(t, errors.Is(err, types.ErrSponsorship))
	assert.Empty(t, f.provider.calls())
	assert.Zero(t, f.sentCount())
}

func TestUserCancellation(t *testing.T) {
	f := newFixture(t, 1, 10)
	f.provider.decline = true

	_, err := f.controller.Run(context.Background(), addOwner())
	assert.True(t, errors.Is(err, types.ErrUserCancelled))
	assert.Len(t, f.provider.calls(), 1)
	assert.Zero(t, f.sentCount())
	view := f.controller.Snapshot()
	assert.Equal(t, StateIdle, view.State)
	require.Len(t, view.Results, 2)
	for _, r := range view.Results {
		assert.Nil(t, r.OperationHash, "chain %d", r.ChainID)
		assert.Nil(t, r.TransactionHash, "chain %d", r.ChainID)
	}

	// a new action can start right away
	f.provider.decline = false
	report, err := f.controller.Run(context.Background(), addOwner())
	require.NoError(t, err)
	assert.Equal(t, 2, report.Confirmed())
}

func TestPostSigningIndependence(t *testing.T) {
	f := newFixture(t, 1, 10, 42)
	f.net.Bundlers[10].Outcome = test.OutcomeReject
	f.net.Bundlers[42].Outcome = test.OutcomeNeverInclude

	report, err := f.controller.Run(context.Background(), addOwner())
	require.NoError(t, err)
	assert.Len(t, f.provider.calls(), 1)

	assert.Equal(t, types.ChainStatusConfirmed, report.Results[0].Status)
	assert.Equal(t, types.ChainStatusFailed, report.Results[1].Status)
	assert.Equal(t, types.ErrorKindBundlerRejected, report.Results[1].ErrorKind)
	assert.Equal(t, types.ChainStatusFailed, report.Results[2].Status)
	assert.Equal(t, types.ErrorKindInclusionTimeout, report.Results[2].ErrorKind)
	assert.Equal(t, 1, report.Confirmed())
}

func TestBusyWhileSigning(t *testing.T) {
	f := newFixture(t, 1, 10)
	f.provider.gate = make(chan struct{})

	done := make(chan error, 1)
	go func() {
		_, err := f.controller.Run(context.Background(), addOwner())
		done <- err
	}()
	require.Eventually(t, func() bool {
		return f.controller.Snapshot().State == StateSigning
	}, time.Second, time.Millisecond)

	_, err := f.controller.Run(context.Background(), addOwner())
	assert.True(t, errors.Is(err, types.ErrSessionBusy))
	assert.True(t, errors.Is(f.controller.Dismiss(), types.ErrSessionBusy))

	close(f.provider.gate)
	require.NoError(t, <-done)
	assert.Equal(t, StateSettled, f.controller.Snapshot().State)
}

func TestUpdatesPublished(t *testing.T) {
	f := newFixture(t, 1, 10)
	report, err := f.controller.Run(context.Background(), addOwner())
	require.NoError(t, err)

	confirmed := make(map[uint64]bool)
	for len(f.controller.Updates()) > 0 {
		u := <-f.controller.Updates()
		if u.Status == types.ChainStatusConfirmed {
			confirmed[u.ChainID] = true
		}
	}
	assert.Equal(t, map[uint64]bool{1: true, 10: true}, confirmed)
	assert.Equal(t, 2, report.Confirmed())
}

func TestUpdatesStartFreshEachSession(t *testing.T) {
	f := newFixture(t, 1, 10)
	f.net.Bundlers[10].Outcome = test.OutcomeReject
	report, err := f.controller.Run(context.Background(), addOwner())
	require.NoError(t, err)
	require.Equal(t, types.ChainStatusFailed, report.Results[1].Status)
	require.NotZero(t, len(f.controller.Updates()))

	f.net.Bundlers[10].Outcome = test.OutcomeInclude
	report, err = f.controller.Run(context.Background(), addOwner())
	require.NoError(t, err)
	require.Equal(t, 2, report.Confirmed())

	for len(f.controller.Updates()) > 0 {
		u := <-f.controller.Updates()
		assert.NotEqual(t, types.ChainStatusFailed, u.Status, "chain %d", u.ChainID)
	}
}

func TestRootCommitsEveryChain(t *testing.T) {
	f := newFixture(t, 1, 10, 42)
	report, err := f.controller.Run(context.Background(), addOwner())
	require.NoError(t, err)

	for _, id := range []uint64{1, 10, 42} {
		sent := f.net.Bundlers[id].Sent()[0]
		decoded, err := expander.Decode(sent.Signature)
		require.NoError(t, err)
		leaf, err := aggregator.Hash(sentOperation(id, sent))
		require.NoError(t, err)
		proof := types.InclusionProof{Index: decoded.LeafIndex, Depth: decoded.Depth, Siblings: decoded.Proof}
		assert.True(t, aggregator.VerifyMembership(leaf, proof, report.Root))
	}
}

func TestNewRequiresTwoChains(t *testing.T) {
	_, err := New(Config{Chains: []types.ChainDescriptor{{ChainID: 1}}})
	assert.True(t, errors.Is(err, types.ErrConfig))
}
