// Copyright 2024-2025, Plasma Labs, Inc.
// For license information, see https://github.com/plasmalabs/exitgame/blob/main/LICENSE

// Package merkle verifies membership of transaction hashes under child-chain
// block roots. The sibling-combination order is determined by the parity of
// the leaf index at each level, reproducing the order used when the block
// root was computed. Leaf and interior hashes are domain-separated so a leaf
// can never be replayed as an interior node.
package merkle

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"
)

// MaxProofDepth bounds the size of an accepted proof. Child-chain blocks
// position at most position.BlockOffset/position.TxOffset transactions, which
// a depth-17 tree covers.
const MaxProofDepth = 17

var (
	leafPrefix = []byte{0x00}
	nodePrefix = []byte{0x01}
)

var ErrProofShape = errors.New("malformed inclusion proof")

// LeafHash hashes raw leaf bytes into the domain-separated leaf digest.
func LeafHash(leaf []byte) common.Hash {
	return crypto.Keccak256Hash(leafPrefix, leaf)
}

func nodeHash(left, right common.Hash) common.Hash {
	return crypto.Keccak256Hash(nodePrefix, left.Bytes(), right.Bytes())
}

// VerifyInclusion reports whether leafHash is a member at the given index
// under root. Any malformed input fails closed.
func VerifyInclusion(leafHash common.Hash, index uint64, root common.Hash, proof []common.Hash) bool {
	if len(proof) == 0 || len(proof) > MaxProofDepth {
		return false
	}
	if index >= uint64(1)<<uint(len(proof)) {
		return false
	}
	computed := leafHash
	for _, sibling := range proof {
		if index%2 == 0 {
			computed = nodeHash(computed, sibling)
		} else {
			computed = nodeHash(sibling, computed)
		}
		index /= 2
	}
	return computed == root
}

// ProofFromBytes splits a concatenated sibling path into hashes. The wire
// form is the proof hashes tightly packed, 32 bytes each.
func ProofFromBytes(b []byte) ([]common.Hash, error) {
	if len(b) == 0 || len(b)%common.HashLength != 0 {
		return nil, errors.Wrapf(ErrProofShape, "proof length %d", len(b))
	}
	depth := len(b) / common.HashLength
	if depth > MaxProofDepth {
		return nil, errors.Wrapf(ErrProofShape, "proof depth %d exceeds %d", depth, MaxProofDepth)
	}
	proof := make([]common.Hash, depth)
	for i := range proof {
		proof[i] = common.BytesToHash(b[i*common.HashLength : (i+1)*common.HashLength])
	}
	return proof, nil
}

// ProofToBytes is the inverse of ProofFromBytes.
func ProofToBytes(proof []common.Hash) []byte {
	b := make([]byte, 0, len(proof)*common.HashLength)
	for _, h := range proof {
		b = append(b, h.Bytes()...)
	}
	return b
}

// Tree is a fixed-shape keccak tree over a block's transaction list, used to
// compute roots and produce inclusion proofs. Leaves are padded to the next
// power of two with empty-leaf digests.
type Tree struct {
	levels [][]common.Hash
}

var ErrNoLeaves = errors.New("tree requires at least one leaf")

func NewTree(leaves [][]byte) (*Tree, error) {
	if len(leaves) == 0 {
		return nil, ErrNoLeaves
	}
	width := uint64(1)
	for width < uint64(len(leaves)) {
		width *= 2
	}
	// A single leaf still gets one interior level so proofs are never empty.
	if width == 1 {
		width = 2
	}
	level := make([]common.Hash, width)
	empty := LeafHash(nil)
	for i := range level {
		if i < len(leaves) {
			level[i] = LeafHash(leaves[i])
		} else {
			level[i] = empty
		}
	}
	levels := [][]common.Hash{level}
	for len(level) > 1 {
		next := make([]common.Hash, len(level)/2)
		for i := range next {
			next[i] = nodeHash(level[2*i], level[2*i+1])
		}
		levels = append(levels, next)
		level = next
	}
	return &Tree{levels: levels}, nil
}

func (t *Tree) Root() common.Hash {
	return t.levels[len(t.levels)-1][0]
}

// Proof returns the sibling path for the leaf at index.
func (t *Tree) Proof(index uint64) ([]common.Hash, error) {
	if index >= uint64(len(t.levels[0])) {
		return nil, errors.Wrapf(ErrProofShape, "leaf index %d out of range", index)
	}
	proof := make([]common.Hash, 0, len(t.levels)-1)
	for _, level := range t.levels[:len(t.levels)-1] {
		proof = append(proof, level[index^1])
		index /= 2
	}
	return proof, nil
}
