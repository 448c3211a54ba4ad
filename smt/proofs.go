package smt

import (
	"bytes"
	"hash"
)

func (smt *SparseMerkleTree) VerifyProof(proof [][]byte, index uint64, value []byte) bool {
	return VerifyProof(proof, smt.root, index, value, smt.hasher, smt.depth)
}

// ComputeRoot folds proof over the leaf H(value) at index. It returns nil when the proof
// has the wrong shape.
func ComputeRoot(proof [][]byte, index uint64, value []byte, hasher hash.Hash, depth int) []byte {
	if depth < 1 || depth > MaxDepth || len(proof) != depth {
		return nil
	}
	if depth < MaxDepth && index >= uint64(1)<<uint(depth) {
		return nil
	}

	hasher.Reset()
	hasher.Write(value)
	currentHash := hasher.Sum(nil)
	hasher.Reset()

	for level := 0; level < depth; level++ {
		if len(proof[level]) != hasher.Size() {
			return nil
		}
		if isRight(index, level) {
			hasher.Write(proof[level])
			hasher.Write(currentHash)
		} else {
			hasher.Write(currentHash)
			hasher.Write(proof[level])
		}
		currentHash = hasher.Sum(nil)
		hasher.Reset()
	}
	return currentHash
}

// VerifyProof verifies a Merkle proof produced by Prove.
func VerifyProof(proof [][]byte, root []byte, index uint64, value []byte, hasher hash.Hash, depth int) bool {
	computed := ComputeRoot(proof, index, value, hasher, depth)
	return computed != nil && bytes.Equal(computed, root)
}
