package smt

import (
	"bytes"
	"testing"

	"github.com/celer-network/go-multichain/db/memorydb"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/minio/sha256-simd"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/sha3"
)

var namespaceTestTrie = []byte("tt")

func TestEmptyRoot(t *testing.T) {
	smt, err := NewSparseMerkleTree(memorydb.NewDB(), namespaceTestTrie, sha3.NewLegacyKeccak256(), nil, 2)
	require.NoError(t, err)

	zero := make([]byte, 32)
	level1 := crypto.Keccak256(zero, zero)
	assert.Equal(t, crypto.Keccak256(level1, level1), smt.Root())

	value, err := smt.Get(3)
	require.NoError(t, err)
	assert.Equal(t, DefaultValue, value)
}

func TestTwoLeafRoot(t *testing.T) {
	smt, err := NewSparseMerkleTree(memorydb.NewDB(), namespaceTestTrie, sha3.NewLegacyKeccak256(), nil, 1)
	require.NoError(t, err)

	_, err = smt.Update(0, []byte("a"))
	require.NoError(t, err)
	root, err := smt.Update(1, []byte("b"))
	require.NoError(t, err)

	expected := crypto.Keccak256(crypto.Keccak256([]byte("a")), crypto.Keccak256([]byte("b")))
	assert.Equal(t, expected, root)
	assert.Equal(t, expected, smt.Root())
}

func TestThreeLeavesPadWithDefault(t *testing.T) {
	smt, err := NewSparseMerkleTree(memorydb.NewDB(), namespaceTestTrie, sha3.NewLegacyKeccak256(), nil, DepthFor(3))
	require.NoError(t, err)
	for i, v := range []string{"a", "b", "c"} {
		_, err := smt.Update(uint64(i), []byte(v))
		require.NoError(t, err)
	}

	h := func(b ...[]byte) []byte { return crypto.Keccak256(b...) }
	left := h(h([]byte("a")), h([]byte("b")))
	right := h(h([]byte("c")), make([]byte, 32))
	assert.Equal(t, h(left, right), smt.Root())
}

func TestUpdateGet(t *testing.T) {
	smt, err := NewSparseMerkleTree(memorydb.NewDB(), namespaceTestTrie, sha256.New(), nil, 4)
	require.NoError(t, err)

	_, err = smt.Update(5, []byte("testValue"))
	require.NoError(t, err)
	value, err := smt.Get(5)
	require.NoError(t, err)
	assert.Equal(t, []byte("testValue"), value)

	oldRoot := smt.Root()
	_, err = smt.Update(5, []byte("testValue2"))
	require.NoError(t, err)
	value, err = smt.Get(5)
	require.NoError(t, err)
	assert.Equal(t, []byte("testValue2"), value)

	// earlier roots stay readable
	value, err = smt.GetForRoot(5, oldRoot)
	require.NoError(t, err)
	assert.Equal(t, []byte("testValue"), value)

	_, err = smt.Update(16, []byte("x"))
	assert.ErrorIs(t, err, ErrIndexTooLarge)
}

func TestRestoreFromRoot(t *testing.T) {
	mdb := memorydb.NewDB()
	smt, err := NewSparseMerkleTree(mdb, namespaceTestTrie, sha256.New(), nil, 3)
	require.NoError(t, err)
	root, err := smt.Update(2, []byte("kept"))
	require.NoError(t, err)

	restored, err := NewSparseMerkleTree(mdb, namespaceTestTrie, sha256.New(), root, 3)
	require.NoError(t, err)
	value, err := restored.Get(2)
	require.NoError(t, err)
	assert.Equal(t, []byte("kept"), value)
}

func TestProofs(t *testing.T) {
	smt, err := NewSparseMerkleTree(memorydb.NewDB(), namespaceTestTrie, sha3.NewLegacyKeccak256(), nil, 3)
	require.NoError(t, err)
	values := [][]byte{[]byte("v0"), []byte("v1"), []byte("v2"), []byte("v3"), []byte("v4")}
	for i, v := range values {
		_, err := smt.Update(uint64(i), v)
		require.NoError(t, err)
	}

	for i, v := range values {
		proof, err := smt.Prove(uint64(i))
		require.NoError(t, err)
		require.Len(t, proof, 3)
		assert.True(t, smt.VerifyProof(proof, uint64(i), v), "leaf %d", i)
		assert.False(t, smt.VerifyProof(proof, uint64(i), []byte("bad")), "leaf %d", i)
		assert.False(t, smt.VerifyProof(proof, uint64(i)^1, v), "leaf %d", i)
		assert.False(t, smt.VerifyProof(proof[:2], uint64(i), v))
	}

	// an unset position proves the empty leaf only through its default node
	proof, err := smt.Prove(6)
	require.NoError(t, err)
	assert.False(t, smt.VerifyProof(proof, 6, []byte("v0")))

	badProof := make([][]byte, 3)
	for i := range badProof {
		badProof[i] = bytes.Repeat([]byte{byte(i + 1)}, 32)
	}
	assert.False(t, smt.VerifyProof(badProof, 0, values[0]))
}

func TestDepthFor(t *testing.T) {
	assert.Equal(t, 1, DepthFor(1))
	assert.Equal(t, 1, DepthFor(2))
	assert.Equal(t, 2, DepthFor(3))
	assert.Equal(t, 2, DepthFor(4))
	assert.Equal(t, 3, DepthFor(5))
	assert.Equal(t, 4, DepthFor(16))
}
