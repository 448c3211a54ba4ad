package smt

import "hash"

// isRight reports whether the node at level on the path to index is a right child.
// Level 0 is the leaf.
func isRight(index uint64, level int) bool {
	return (index>>uint(level))&1 == 1
}

// defaultNodes returns the root of an empty subtree for every level up to depth. The empty
// leaf is all zeroes.
func defaultNodes(hasher hash.Hash, depth int) [][]byte {
	nodes := make([][]byte, depth+1)
	nodes[0] = make([]byte, hasher.Size())
	for level := 1; level <= depth; level++ {
		hasher.Write(nodes[level-1])
		hasher.Write(nodes[level-1])
		nodes[level] = hasher.Sum(nil)
		hasher.Reset()
	}
	return nodes
}

// DepthFor is the smallest depth whose tree holds n leaves, at least 1.
func DepthFor(n int) int {
	depth := 1
	for (1 << uint(depth)) < n {
		depth++
	}
	return depth
}
