// Package aggregator commits an ordered set of per-chain challenge hashes to one root that
// is signed once, and proves each hash's membership independently.
package aggregator

import (
	"errors"
	"fmt"

	"github.com/celer-network/go-multichain/db"
	"github.com/celer-network/go-multichain/db/memorydb"
	"github.com/celer-network/go-multichain/smt"
	"github.com/celer-network/go-multichain/types"
	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/crypto/sha3"
)

// ErrTooFewLeaves is returned when fewer than two hashes are aggregated.
var ErrTooFewLeaves = errors.New("aggregate needs at least 2 hashes")

// Commitment is the root over an ordered set of challenge hashes and one proof per hash.
type Commitment struct {
	Root   common.Hash
	Proofs []types.InclusionProof
}

// Aggregate builds a position-keyed Merkle tree of depth ceil(log2 n) over hashes.
// Leaf i is keccak256(hashes[i]); unused positions hold the zero leaf.
func Aggregate(hashes []common.Hash) (*Commitment, error) {
	if len(hashes) < 2 {
		return nil, ErrTooFewLeaves
	}
	depth := smt.DepthFor(len(hashes))
	tree, err := smt.NewSparseMerkleTree(memorydb.NewDB(), db.NamespaceAggregateTree, sha3.NewLegacyKeccak256(), nil, depth)
	if err != nil {
		return nil, fmt.Errorf("aggregate tree: %w", err)
	}
	for i, h := range hashes {
		if _, err := tree.Update(uint64(i), h.Bytes()); err != nil {
			return nil, fmt.Errorf("aggregate leaf %d: %w", i, err)
		}
	}

	proofs := make([]types.InclusionProof, len(hashes))
	for i := range hashes {
		siblings, err := tree.Prove(uint64(i))
		if err != nil {
			return nil, fmt.Errorf("prove leaf %d: %w", i, err)
		}
		proof := types.InclusionProof{
			Index:    uint64(i),
			Depth:    uint8(depth),
			Siblings: make([]common.Hash, len(siblings)),
		}
		for j, s := range siblings {
			proof.Siblings[j] = common.BytesToHash(s)
		}
		proofs[i] = proof
	}
	return &Commitment{Root: common.BytesToHash(tree.Root()), Proofs: proofs}, nil
}

// RootFromProof recomputes the root implied by leaf and proof. ok is false for a
// malformed proof.
func RootFromProof(leaf common.Hash, proof types.InclusionProof) (root common.Hash, ok bool) {
	if int(proof.Depth) != len(proof.Siblings) {
		return common.Hash{}, false
	}
	siblings := make([][]byte, len(proof.Siblings))
	for i, s := range proof.Siblings {
		siblings[i] = s.Bytes()
	}
	computed := smt.ComputeRoot(siblings, proof.Index, leaf.Bytes(), sha3.NewLegacyKeccak256(), int(proof.Depth))
	if computed == nil {
		return common.Hash{}, false
	}
	return common.BytesToHash(computed), true
}

// VerifyMembership reports whether leaf is committed by root at the proof's position.
func VerifyMembership(leaf common.Hash, proof types.InclusionProof, root common.Hash) bool {
	computed, ok := RootFromProof(leaf, proof)
	return ok && computed == root
}
