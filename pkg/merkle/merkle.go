// Package merkle builds binary hash trees over ordered chunk digests and
// produces inclusion proofs for single chunks.
//
// The tree follows the duplicate-self rule: whenever a level has an odd
// number of nodes, the last node is paired with itself to form its parent.
// Proofs record that self-pairing as a regular step so that proof
// verification round-trips for every leaf index.
package merkle

import (
	"fmt"

	"github.com/vouchfs/vouchfs/pkg/hasher"
)

// Tree is an immutable digest tree. Building is a pure computation over
// already-resolved chunk digests; rebuilding means constructing a new tree.
type Tree struct {
	algo   hasher.Algorithm
	levels [][]hasher.Digest // levels[0] holds the leaves
	root   hasher.Digest
}

// ProofStep pairs a sibling digest with its side relative to the running
// digest while walking from leaf to root.
type ProofStep struct {
	Sibling hasher.Digest `json:"sibling"`
	Right   bool          `json:"right"` // sibling concatenates on the right
}

// Proof is an inclusion proof for one leaf under a tree's root
type Proof struct {
	LeafIndex int         `json:"leafIndex"`
	Steps     []ProofStep `json:"steps"`
}

// EmptyRoot returns the sentinel root digest of an empty tree: the digest
// of an empty byte sequence under the given algorithm.
func EmptyRoot(algo hasher.Algorithm) (hasher.Digest, error) {
	return hasher.Compute(algo, nil)
}

// Build constructs the tree for an ordered list of chunk digests. All
// leaves must carry the tree's algorithm tag. An empty list yields a tree
// whose root is the sentinel empty root.
func Build(algo hasher.Algorithm, leaves []hasher.Digest) (*Tree, error) {
	if !algo.Valid() {
		return nil, hasher.ErrUnsupportedAlgorithm
	}

	if len(leaves) == 0 {
		sentinel, err := EmptyRoot(algo)
		if err != nil {
			return nil, err
		}
		return &Tree{algo: algo, root: sentinel}, nil
	}

	for i, leaf := range leaves {
		if leaf.Algorithm() != algo {
			return nil, fmt.Errorf("leaf %d is tagged %s, tree requires %s", i, leaf.Algorithm(), algo)
		}
	}

	levels := make([][]hasher.Digest, 0, 8)
	level := make([]hasher.Digest, len(leaves))
	copy(level, leaves)
	levels = append(levels, level)

	for len(level) > 1 {
		next := make([]hasher.Digest, 0, (len(level)+1)/2)
		for i := 0; i < len(level); i += 2 {
			left := level[i]
			right := left // duplicate-self on odd tail
			if i+1 < len(level) {
				right = level[i+1]
			}
			parent, err := parentDigest(algo, left, right)
			if err != nil {
				return nil, err
			}
			next = append(next, parent)
		}
		levels = append(levels, next)
		level = next
	}

	return &Tree{algo: algo, levels: levels, root: level[0]}, nil
}

func parentDigest(algo hasher.Algorithm, left, right hasher.Digest) (hasher.Digest, error) {
	combined := append(left.Bytes(), right.Bytes()...)
	return hasher.Compute(algo, combined)
}

// Root returns the tree's root digest. For an empty tree this is the
// sentinel empty root.
func (t *Tree) Root() hasher.Digest {
	return t.root
}

// Algorithm returns the digest algorithm of the tree
func (t *Tree) Algorithm() hasher.Algorithm {
	return t.algo
}

// NumLeaves returns the number of leaves the tree was built from
func (t *Tree) NumLeaves() int {
	if len(t.levels) == 0 {
		return 0
	}
	return len(t.levels[0])
}

// ProveLeaf returns the inclusion proof for the leaf at the given index:
// the ordered sibling steps from leaf to root.
func (t *Tree) ProveLeaf(index int) (Proof, error) {
	if index < 0 || index >= t.NumLeaves() {
		return Proof{}, fmt.Errorf("leaf index %d out of range [0, %d)", index, t.NumLeaves())
	}

	steps := make([]ProofStep, 0, len(t.levels)-1)
	idx := index
	for lvl := 0; lvl < len(t.levels)-1; lvl++ {
		nodes := t.levels[lvl]
		var step ProofStep
		if idx%2 == 0 {
			// sibling on the right; the duplicate-self rule makes the node
			// its own right sibling at an odd tail
			step.Right = true
			if idx+1 < len(nodes) {
				step.Sibling = nodes[idx+1]
			} else {
				step.Sibling = nodes[idx]
			}
		} else {
			step.Sibling = nodes[idx-1]
		}
		steps = append(steps, step)
		idx /= 2
	}

	return Proof{LeafIndex: index, Steps: steps}, nil
}

// VerifyProof recomputes the path from a leaf digest up through the proof
// steps and compares the result against the expected root. Any mismatch,
// in digest bytes or in a step's recorded side, yields false.
func VerifyProof(leaf hasher.Digest, proof Proof, expectedRoot hasher.Digest) bool {
	algo := leaf.Algorithm()
	if algo != expectedRoot.Algorithm() {
		return false
	}

	current := leaf
	idx := proof.LeafIndex
	if idx < 0 {
		return false
	}
	for _, step := range proof.Steps {
		// the recorded side must agree with the leaf position
		if step.Right != (idx%2 == 0) {
			return false
		}
		var (
			parent hasher.Digest
			err    error
		)
		if step.Right {
			parent, err = parentDigest(algo, current, step.Sibling)
		} else {
			parent, err = parentDigest(algo, step.Sibling, current)
		}
		if err != nil {
			return false
		}
		current = parent
		idx /= 2
	}

	return current == expectedRoot
}
