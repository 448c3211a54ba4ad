package expander

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/celer-network/go-multichain/aggregator"
	"github.com/celer-network/go-multichain/credential"
	"github.com/celer-network/go-multichain/types"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testOps(chainIDs ...uint64) []*types.PendingOperation {
	ops := make([]*types.PendingOperation, len(chainIDs))
	for i, id := range chainIDs {
		ops[i] = &types.PendingOperation{
			ChainID:              id,
			Sender:               common.HexToAddress("0x5afe"),
			Nonce:                big.NewInt(int64(i)),
			CallData:             []byte{0x7b, 0xb3, 0x74, 0x28},
			CallGasLimit:         big.NewInt(100000),
			VerificationGasLimit: big.NewInt(500000),
			PreVerificationGas:   big.NewInt(60000),
			MaxFeePerGas:         big.NewInt(2000000000),
			MaxPriorityFeePerGas: big.NewInt(1000000000),
			ValidUntil:           1900000000,
			EntryPoint:           common.HexToAddress("0x0000000071727De22E5E9d8BAf0edAc6f37da032"),
			SafeModule:           common.HexToAddress("0x75cf11467937ce3F2f357CE24ffc3DBF8fD5c226"),
		}
	}
	return ops
}

type signed struct {
	ops   []*types.PendingOperation
	agg   *aggregator.Commitment
	sig   *credential.Signature
	meta  *credential.Metadata
	cred  *credential.Credential
	blobs [][]byte
}

func signOps(t *testing.T, ops []*types.PendingOperation) *signed {
	hashes, err := aggregator.HashAll(ops)
	require.NoError(t, err)
	agg, err := aggregator.Aggregate(hashes)
	require.NoError(t, err)
	auth, err := credential.NewSoftwareAuthenticator()
	require.NoError(t, err)
	sig, meta, err := auth.Sign(context.Background(), agg.Root)
	require.NoError(t, err)
	cred := auth.Credential()
	blobs, err := ExpandAll(context.Background(), sig, meta, cred.PublicKey, agg, ops)
	require.NoError(t, err)
	return &signed{ops: ops, agg: agg, sig: sig, meta: meta, cred: cred, blobs: blobs}
}

func TestEachChainVerifiesAlone(t *testing.T) {
	s := signOps(t, testOps(1, 10, 42))
	require.Len(t, s.blobs, 3)
	for i, op := range s.ops {
		assert.NoError(t, Verify(op, s.blobs[i], s.agg.Root), "chain %d", op.ChainID)
		decoded, err := Decode(s.blobs[i])
		require.NoError(t, err)
		assert.Equal(t, uint64(i), decoded.LeafIndex)
		assert.Equal(t, uint8(2), decoded.Depth)
		assert.Equal(t, 0, decoded.R.Cmp(s.sig.R))
	}
}

func TestVerifyRejectsTampering(t *testing.T) {
	s := signOps(t, testOps(1, 10, 42))

	// blob of another chain
	assert.True(t, errors.Is(Verify(s.ops[0], s.blobs[1], s.agg.Root), ErrNotMember))

	mutated := s.ops[2].Copy()
	mutated.CallGasLimit = big.NewInt(100001)
	assert.True(t, errors.Is(Verify(mutated, s.blobs[2], s.agg.Root), ErrNotMember))

	window := s.ops[0].Copy()
	window.ValidUntil++
	assert.True(t, errors.Is(Verify(window, s.blobs[0], s.agg.Root), ErrWindowChanged))

	// a root whose tree happens to contain the leaf would still need the signature
	other := testOps(1, 10, 42, 137)
	hashes, err := aggregator.HashAll(other)
	require.NoError(t, err)
	otherAgg, err := aggregator.Aggregate(hashes)
	require.NoError(t, err)
	expanded, err := Expand(s.sig, s.meta, s.cred.PublicKey, otherAgg.Proofs[0], WindowOf(other[0]))
	require.NoError(t, err)
	blob, err := Encode(expanded)
	require.NoError(t, err)
	assert.True(t, errors.Is(Verify(other[0], blob, otherAgg.Root), ErrBadSignature))
}

func TestExpandDoesNotAlterSignature(t *testing.T) {
	s := signOps(t, testOps(1, 10))
	r := new(big.Int).Set(s.sig.R)
	expanded, err := Expand(s.sig, s.meta, s.cred.PublicKey, s.agg.Proofs[1], WindowOf(s.ops[1]))
	require.NoError(t, err)
	expanded.R.SetInt64(1)
	expanded.Proof[0] = common.Hash{}
	assert.Equal(t, 0, r.Cmp(s.sig.R))
	assert.NotEqual(t, common.Hash{}, s.agg.Proofs[1].Siblings[0])
}

func TestExpandRejectsMalformedInput(t *testing.T) {
	s := signOps(t, testOps(1, 10))
	bad := s.agg.Proofs[0]
	bad.Depth = 3
	_, err := Expand(s.sig, s.meta, s.cred.PublicKey, bad, Window{})
	assert.True(t, errors.Is(err, ErrMalformed))

	_, err = Expand(s.sig, &credential.Metadata{ClientDataJSON: "{}"}, s.cred.PublicKey, s.agg.Proofs[0], Window{})
	assert.True(t, errors.Is(err, credential.ErrClientData))

	_, err = Decode([]byte{1, 2, 3})
	assert.True(t, errors.Is(err, ErrMalformed))
}

func TestDummySignature(t *testing.T) {
	blob, err := DummySignature(types.PublicKey{X: big.NewInt(1), Y: big.NewInt(2)}, 3, Window{ValidUntil: 5})
	require.NoError(t, err)
	decoded, err := Decode(blob)
	require.NoError(t, err)
	assert.Len(t, decoded.Proof, 3)
	assert.Equal(t, uint64(5), decoded.ValidUntil)
}
