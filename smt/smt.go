// Package smt implements a position-keyed sparse Merkle tree. Leaf i sits at the path given
// by the bits of i, most significant first, so a tree of depth d holds 2^d leaves.
package smt

import (
	"bytes"
	"errors"
	"fmt"
	"hash"

	"github.com/celer-network/go-multichain/db"
)

// MaxDepth bounds the tree so leaf indexes fit a uint64.
const MaxDepth = 64

var (
	// DefaultValue is the value of a leaf that was never set.
	DefaultValue = []byte{}

	initMarker = []byte("init")

	ErrCorruptDB     = errors.New("corrupt db")
	ErrIndexTooLarge = errors.New("leaf index out of range")
)

// SparseMerkleTree is a sparse Merkle tree. Nodes are stored by hash, an inner node as
// left ‖ right and a leaf as its value. It is not safe for concurrent use.
type SparseMerkleTree struct {
	hasher    hash.Hash
	db        db.DB
	namespace []byte
	root      []byte
	depth     int
	defaults  [][]byte
}

// NewSparseMerkleTree creates or restores a tree in namespace of db. A nil root starts
// from the empty tree.
func NewSparseMerkleTree(database db.DB, namespace []byte, hasher hash.Hash, root []byte, depth int) (*SparseMerkleTree, error) {
	if depth < 1 || depth > MaxDepth {
		return nil, fmt.Errorf("invalid depth %d", depth)
	}
	smt := &SparseMerkleTree{
		hasher:    hasher,
		db:        database,
		namespace: namespace,
		depth:     depth,
		defaults:  defaultNodes(hasher, depth),
	}

	_, exists, err := database.Get(namespace, initMarker)
	if err != nil {
		return nil, err
	}
	if !exists {
		bulk := database.NewBulk()
		for level := 1; level <= depth; level++ {
			children := append(append([]byte{}, smt.defaults[level-1]...), smt.defaults[level-1]...)
			if err := bulk.Set(namespace, smt.defaults[level], children); err != nil {
				return nil, err
			}
		}
		if err := bulk.Set(namespace, initMarker, []byte{}); err != nil {
			return nil, err
		}
		if err := bulk.Flush(); err != nil {
			return nil, err
		}
	}

	if root != nil {
		smt.SetRoot(root)
	} else {
		smt.SetRoot(smt.defaults[depth])
	}
	return smt, nil
}

// Root gets the root of the tree.
func (smt *SparseMerkleTree) Root() []byte {
	return smt.root
}

// SetRoot sets the root of the tree.
func (smt *SparseMerkleTree) SetRoot(root []byte) {
	smt.root = root
}

func (smt *SparseMerkleTree) Depth() int {
	return smt.depth
}

func (smt *SparseMerkleTree) keySize() int {
	return smt.hasher.Size()
}

func (smt *SparseMerkleTree) digest(data ...[]byte) []byte {
	for _, d := range data {
		smt.hasher.Write(d)
	}
	sum := smt.hasher.Sum(nil)
	smt.hasher.Reset()
	return sum
}

func (smt *SparseMerkleTree) checkIndex(index uint64) error {
	if smt.depth < MaxDepth && index >= uint64(1)<<uint(smt.depth) {
		return fmt.Errorf("index %d depth %d: %w", index, smt.depth, ErrIndexTooLarge)
	}
	return nil
}

// Get returns the value of leaf index, or DefaultValue when it was never set.
func (smt *SparseMerkleTree) Get(index uint64) ([]byte, error) {
	return smt.GetForRoot(index, smt.Root())
}

// GetForRoot gets a leaf at a specific root.
func (smt *SparseMerkleTree) GetForRoot(index uint64, root []byte) ([]byte, error) {
	if err := smt.checkIndex(index); err != nil {
		return nil, err
	}
	currentHash := root
	for level := smt.depth; level > 0; level-- {
		children, exists, err := smt.db.Get(smt.namespace, currentHash)
		if err != nil {
			return nil, err
		}
		if !exists || len(children) != 2*smt.keySize() {
			return nil, ErrCorruptDB
		}
		if isRight(index, level-1) {
			currentHash = children[smt.keySize():]
		} else {
			currentHash = children[:smt.keySize()]
		}
	}
	if bytes.Equal(currentHash, smt.defaults[0]) {
		return DefaultValue, nil
	}
	value, exists, err := smt.db.Get(smt.namespace, currentHash)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, ErrCorruptDB
	}
	return value, nil
}

// Update sets leaf index to value, returns the new root, and makes it the current root.
func (smt *SparseMerkleTree) Update(index uint64, value []byte) ([]byte, error) {
	newRoot, err := smt.UpdateForRoot(index, value, smt.Root())
	if err == nil {
		smt.SetRoot(newRoot)
	}
	return newRoot, err
}

// UpdateForRoot sets leaf index at a specific root and returns the new root.
func (smt *SparseMerkleTree) UpdateForRoot(index uint64, value []byte, root []byte) ([]byte, error) {
	if err := smt.checkIndex(index); err != nil {
		return nil, err
	}
	sideNodes, err := smt.sideNodesForRoot(index, root)
	if err != nil {
		return nil, err
	}
	return smt.updateWithSideNodes(index, value, sideNodes)
}

func (smt *SparseMerkleTree) updateWithSideNodes(index uint64, value []byte, sideNodes [][]byte) ([]byte, error) {
	bulk := smt.db.NewBulk()
	currentHash := smt.digest(value)
	if err := bulk.Set(smt.namespace, currentHash, value); err != nil {
		return nil, err
	}

	for level := 0; level < smt.depth; level++ {
		var children []byte
		if isRight(index, level) {
			children = append(append([]byte{}, sideNodes[level]...), currentHash...)
		} else {
			children = append(append([]byte{}, currentHash...), sideNodes[level]...)
		}
		currentHash = smt.digest(children)
		if err := bulk.Set(smt.namespace, currentHash, children); err != nil {
			return nil, err
		}
	}
	if err := bulk.Flush(); err != nil {
		return nil, err
	}
	return currentHash, nil
}

// sideNodesForRoot returns the siblings on the path to index, ordered from the leaf up.
func (smt *SparseMerkleTree) sideNodesForRoot(index uint64, root []byte) ([][]byte, error) {
	sideNodes := make([][]byte, smt.depth)
	currentHash := root
	for level := smt.depth; level > 0; level-- {
		children, exists, err := smt.db.Get(smt.namespace, currentHash)
		if err != nil {
			return nil, err
		}
		if !exists || len(children) != 2*smt.keySize() {
			return nil, ErrCorruptDB
		}
		leftChild, rightChild := children[:smt.keySize()], children[smt.keySize():]
		if isRight(index, level-1) {
			sideNodes[level-1] = leftChild
			currentHash = rightChild
		} else {
			sideNodes[level-1] = rightChild
			currentHash = leftChild
		}
	}
	return sideNodes, nil
}

// Prove generates a Merkle proof for leaf index. Siblings are ordered from the leaf up,
// the order in which a verifier folds them.
func (smt *SparseMerkleTree) Prove(index uint64) ([][]byte, error) {
	return smt.ProveForRoot(index, smt.Root())
}

// ProveForRoot generates a Merkle proof for leaf index at a specific root.
func (smt *SparseMerkleTree) ProveForRoot(index uint64, root []byte) ([][]byte, error) {
	if err := smt.checkIndex(index); err != nil {
		return nil, err
	}
	return smt.sideNodesForRoot(index, root)
}
