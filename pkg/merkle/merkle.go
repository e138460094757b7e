// Copyright 2025 Certen Protocol
//
// Keccak Binary Merkle Trees
// Inclusion verification for the batch trees EigenDA builds over blob
// certificates, plus a small tree builder used to construct batch roots.
//
// A proof is the concatenated 32-byte sibling hashes from leaf to root. The
// path word indicates, per level, whether the sibling sits on the left
// (bit set) or the right (bit clear).

package merkle

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/crypto"
)

// Common errors
var (
	ErrProofLengthNotMultipleOf32 = errors.New("merkle proof length not a multiple of 32")
	ErrProofPathTooShort          = errors.New("merkle proof path has fewer bits than proof levels")
	ErrLeafNotInTree              = errors.New("leaf does not belong to merkle tree")
	ErrEmptyTree                  = errors.New("cannot build tree from empty leaves")
)

// pathBits is the width of the direction bitmap the path word is widened
// into. Bits beyond the uint32 path read as zero ("sibling on the right").
const pathBits = 256

// VerifyInclusion checks that leaf is included under expectedRoot given the
// sibling path in proof and the per-level direction bits in path.
//
// An empty proof is valid iff the leaf equals the root.
func VerifyInclusion(leaf, expectedRoot [32]byte, proof []byte, path uint32) error {
	if len(proof)%32 != 0 {
		return fmt.Errorf("%w: %d bytes", ErrProofLengthNotMultipleOf32, len(proof))
	}

	depth := len(proof) / 32
	if depth > pathBits {
		return fmt.Errorf("%w: path %d bits, depth %d", ErrProofPathTooShort, pathBits, depth)
	}

	current := leaf
	for level := 0; level < depth; level++ {
		var sibling [32]byte
		copy(sibling[:], proof[level*32:(level+1)*32])

		siblingOnLeft := level < 32 && path&(1<<uint(level)) != 0
		if siblingOnLeft {
			current = HashPair(sibling, current)
		} else {
			current = HashPair(current, sibling)
		}
	}

	if current != expectedRoot {
		return ErrLeafNotInTree
	}
	return nil
}

// HashPair combines two nodes into their parent: keccak256(left || right).
func HashPair(left, right [32]byte) [32]byte {
	var parent [32]byte
	copy(parent[:], crypto.Keccak256(left[:], right[:]))
	return parent
}

// Tree is a keccak binary Merkle tree over 32-byte leaves. Odd nodes at any
// level are paired with themselves.
type Tree struct {
	levels [][][32]byte
}

// BuildTree constructs a tree from the given leaves.
func BuildTree(leaves [][32]byte) (*Tree, error) {
	if len(leaves) == 0 {
		return nil, ErrEmptyTree
	}

	level := make([][32]byte, len(leaves))
	copy(level, leaves)

	tree := &Tree{levels: [][][32]byte{level}}
	for len(level) > 1 {
		next := make([][32]byte, 0, (len(level)+1)/2)
		for i := 0; i < len(level); i += 2 {
			if i+1 < len(level) {
				next = append(next, HashPair(level[i], level[i+1]))
			} else {
				next = append(next, HashPair(level[i], level[i]))
			}
		}
		tree.levels = append(tree.levels, next)
		level = next
	}

	return tree, nil
}

// Root returns the Merkle root.
func (t *Tree) Root() [32]byte {
	top := t.levels[len(t.levels)-1]
	return top[0]
}

// LeafCount returns the number of leaves.
func (t *Tree) LeafCount() int {
	return len(t.levels[0])
}

// Proof produces the sibling path and direction word for the leaf at index,
// in the format VerifyInclusion consumes.
func (t *Tree) Proof(index int) ([]byte, uint32, error) {
	if index < 0 || index >= t.LeafCount() {
		return nil, 0, fmt.Errorf("leaf index %d out of range [0, %d)", index, t.LeafCount())
	}

	var proof bytes.Buffer
	var path uint32

	current := index
	for level := 0; level < len(t.levels)-1; level++ {
		nodes := t.levels[level]

		sibling := current ^ 1
		if sibling >= len(nodes) {
			sibling = current
		}
		proof.Write(nodes[sibling][:])

		if current%2 == 1 {
			// sibling is on the left at this level
			path |= 1 << uint(level)
		}

		current /= 2
	}

	return proof.Bytes(), path, nil
}
