// Copyright 2025 OpenPad Software
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package whitelist

import (
	"bytes"
	"errors"
	"sort"

	"github.com/openpad-io/openpad/asset"
	"golang.org/x/crypto/sha3"
)

// Merkle trees use keccak-256 with sorted-pair hashing, the layout produced
// by the common EVM airdrop/whitelist tooling, so roots and proofs are
// interchangeable with off-the-shelf generators.

var ErrEmptyTree = errors.New("empty merkle tree")

// LeafHash hashes a contributor address into a tree leaf.
func LeafHash(addr asset.Address) []byte {
	h := sha3.NewLegacyKeccak256()
	h.Write([]byte(addr))
	return h.Sum(nil)
}

func hashPair(a, b []byte) []byte {
	h := sha3.NewLegacyKeccak256()
	if bytes.Compare(a, b) <= 0 {
		h.Write(a)
		h.Write(b)
	} else {
		h.Write(b)
		h.Write(a)
	}
	return h.Sum(nil)
}

// VerifyProof checks a sorted-pair keccak-256 inclusion proof of leaf
// against root.
func VerifyProof(root, leaf []byte, proof [][]byte) bool {
	if len(root) == 0 || len(leaf) == 0 {
		return false
	}
	compute := leaf
	for _, sibling := range proof {
		compute = hashPair(compute, sibling)
	}
	return bytes.Equal(compute, root)
}

// Tree is a complete Merkle tree over a set of addresses, used to produce
// roots and per-address proofs for TypeMerkle sales.
type Tree struct {
	leaves [][]byte
	layers [][][]byte
	index  map[string]int
}

// NewTree builds a tree over the given addresses. Leaves are sorted so the
// same address set always yields the same root.
func NewTree(addrs []asset.Address) (*Tree, error) {
	if len(addrs) == 0 {
		return nil, ErrEmptyTree
	}
	leaves := make([][]byte, len(addrs))
	for i, addr := range addrs {
		leaves[i] = LeafHash(addr)
	}
	sort.Slice(leaves, func(i, j int) bool {
		return bytes.Compare(leaves[i], leaves[j]) < 0
	})
	t := &Tree{
		leaves: leaves,
		index:  make(map[string]int, len(leaves)),
	}
	for i, leaf := range leaves {
		t.index[string(leaf)] = i
	}
	layer := leaves
	t.layers = append(t.layers, layer)
	for len(layer) > 1 {
		next := make([][]byte, 0, (len(layer)+1)/2)
		for i := 0; i < len(layer); i += 2 {
			if i+1 < len(layer) {
				next = append(next, hashPair(layer[i], layer[i+1]))
			} else {
				// Odd node carries up unchanged
				next = append(next, layer[i])
			}
		}
		t.layers = append(t.layers, next)
		layer = next
	}
	return t, nil
}

// Root returns the tree root.
func (t *Tree) Root() []byte {
	top := t.layers[len(t.layers)-1]
	return append([]byte(nil), top[0]...)
}

// ProofFor returns the inclusion proof for addr, or ErrNotWhitelisted if the
// address is not a member of the tree.
func (t *Tree) ProofFor(addr asset.Address) ([][]byte, error) {
	idx, ok := t.index[string(LeafHash(addr))]
	if !ok {
		return nil, ErrNotWhitelisted
	}
	var proof [][]byte
	for _, layer := range t.layers[:len(t.layers)-1] {
		var siblingIdx int
		if idx%2 == 0 {
			siblingIdx = idx + 1
		} else {
			siblingIdx = idx - 1
		}
		if siblingIdx < len(layer) {
			proof = append(
				proof,
				append([]byte(nil), layer[siblingIdx]...),
			)
		}
		idx /= 2
	}
	return proof, nil
}
