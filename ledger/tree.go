/*
 * Copyright 2017-2022 Provide Technologies Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package ledger

import (
	"fmt"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/consensys/gnark-crypto/ecc/bn254/fr/mimc"

	"github.com/provideplatform/counter/authpath"
)

// CommitmentTree is a fixed-depth, append-only merkle tree over resource
// commitments. Absent subtrees hash as precomputed zero nodes so every leaf
// resolves a full depth-32 authentication path in the ledger contract's
// convention (direction bit 0 means the sibling is the left child).
type CommitmentTree struct {
	levels [][][]byte // levels[l][i] is the hash of the i-th non-empty subtree at height l
	zeros  [][]byte   // zeros[l] is the hash of an empty subtree at height l
}

// NewCommitmentTree initializes an empty commitment tree of the fixed depth
func NewCommitmentTree() *CommitmentTree {
	zeros := make([][]byte, authpath.Depth+1)
	zeros[0] = make([]byte, fr.Bytes)
	for l := 0; l < authpath.Depth; l++ {
		zeros[l+1] = hashNodes(zeros[l], zeros[l])
	}

	levels := make([][][]byte, authpath.Depth+1)
	for l := range levels {
		levels[l] = make([][]byte, 0)
	}

	return &CommitmentTree{
		levels: levels,
		zeros:  zeros,
	}
}

// Append inserts a commitment at the next available leaf and propagates the
// change to the root; returns the index it was inserted at
func (t *CommitmentTree) Append(commitment []byte) (int, error) {
	index := len(t.levels[0])
	if index >= 1<<authpath.Depth {
		return -1, fmt.Errorf("commitment tree is full; %d leaves", index)
	}

	t.levels[0] = append(t.levels[0], canonical(commitment))

	idx := index
	for l := 0; l < authpath.Depth; l++ {
		parent := idx / 2
		node := hashNodes(t.node(l, parent*2), t.node(l, parent*2+1))
		if parent == len(t.levels[l+1]) {
			t.levels[l+1] = append(t.levels[l+1], node)
		} else {
			t.levels[l+1][parent] = node
		}
		idx = parent
	}

	return index, nil
}

// Root returns the current tree root
func (t *CommitmentTree) Root() []byte {
	return t.node(authpath.Depth, 0)
}

// Length returns the count of the tree leaves
func (t *CommitmentTree) Length() int {
	return len(t.levels[0])
}

// PathAt resolves the full authentication path for the leaf at the given
// index, in the ledger contract's convention
func (t *CommitmentTree) PathAt(index int) (*authpath.LedgerPath, error) {
	if index < 0 || index >= len(t.levels[0]) {
		return nil, fmt.Errorf("leaf index out of bounds: %d", index)
	}

	steps := make([]*authpath.LedgerStep, authpath.Depth)
	idx := index
	for l := 0; l < authpath.Depth; l++ {
		// bit 1: the appended leaf is the left child, so its sibling is on the right
		bit := uint8(1)
		if idx%2 == 1 {
			bit = 0
		}
		steps[l] = &authpath.LedgerStep{
			Sibling:      t.node(l, idx^1),
			DirectionBit: bit,
		}
		idx /= 2
	}

	return &authpath.LedgerPath{Steps: steps}, nil
}

func (t *CommitmentTree) node(level, index int) []byte {
	if index < len(t.levels[level]) {
		return t.levels[level][index]
	}
	return t.zeros[level]
}

func hashNodes(left, right []byte) []byte {
	hasher := mimc.NewMiMC()
	hasher.Write(canonical(left))
	hasher.Write(canonical(right))
	return hasher.Sum(nil)
}

func canonical(b []byte) []byte {
	var elem fr.Element
	elem.SetBytes(b)
	buf := elem.Bytes()
	return buf[:]
}
