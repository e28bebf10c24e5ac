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

// Package authpath translates authentication paths between the ledger
// contract's sibling/direction convention and the proving layer's convention.
package authpath

import (
	"fmt"
	"math/big"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/consensys/gnark-crypto/ecc/bn254/fr/mimc"
)

// Depth is the fixed depth of the ledger's commitment tree
const Depth = 32

// MalformedPathError indicates the ledger returned a path of the wrong shape;
// fatal for the attempt but safe to retry as a fresh fetch
type MalformedPathError struct {
	Expected int
	Actual   int
}

func (e *MalformedPathError) Error() string {
	return fmt.Sprintf("malformed authentication path; expected %d levels, resolved %d", e.Expected, e.Actual)
}

// LedgerStep is one level of a path in the ledger contract's convention;
// a direction bit of 0 means the sibling is the left child
type LedgerStep struct {
	Sibling      []byte `json:"sibling"`
	DirectionBit uint8  `json:"direction_bit"`
}

// LedgerPath is the ordered leaf-to-root authentication path as returned by
// the ledger contract
type LedgerPath struct {
	Steps []*LedgerStep `json:"steps"`
}

// Path is the proving layer's representation of an authentication path; a
// direction of true means the proven leaf is the right child at that level
type Path struct {
	Siblings   [][]byte
	Directions []bool
}

// Translate converts a ledger-convention path into the proving layer's
// convention. The per-level direction is the logical complement of the ledger
// bit: "sibling is the left child" (ledger bit 0) implies the proven leaf is
// the right child (proving-layer true). Copying the bit instead of
// complementing it yields a path that authenticates against the wrong root.
func Translate(raw *LedgerPath) (*Path, error) {
	if raw == nil || len(raw.Steps) != Depth {
		actual := 0
		if raw != nil {
			actual = len(raw.Steps)
		}
		return nil, &MalformedPathError{Expected: Depth, Actual: actual}
	}

	path := &Path{
		Siblings:   make([][]byte, Depth),
		Directions: make([]bool, Depth),
	}

	for i, step := range raw.Steps {
		sibling := make([]byte, len(step.Sibling))
		copy(sibling, step.Sibling)
		path.Siblings[i] = sibling
		path.Directions[i] = step.DirectionBit == 0
	}

	return path, nil
}

// Inverse converts a proving-layer path back into the ledger contract's
// convention
func Inverse(path *Path) *LedgerPath {
	steps := make([]*LedgerStep, len(path.Siblings))
	for i := range path.Siblings {
		sibling := make([]byte, len(path.Siblings[i]))
		copy(sibling, path.Siblings[i])
		bit := uint8(1)
		if path.Directions[i] {
			bit = 0
		}
		steps[i] = &LedgerStep{
			Sibling:      sibling,
			DirectionBit: bit,
		}
	}
	return &LedgerPath{Steps: steps}
}

// Root recomputes the tree root authenticated by the given path for the given
// leaf, using the proving layer's hash
func (p *Path) Root(leaf []byte) []byte {
	current := make([]byte, len(leaf))
	copy(current, leaf)

	for i := range p.Siblings {
		hasher := mimc.NewMiMC()
		if p.Directions[i] {
			hasher.Write(fieldElement(p.Siblings[i]))
			hasher.Write(fieldElement(current))
		} else {
			hasher.Write(fieldElement(current))
			hasher.Write(fieldElement(p.Siblings[i]))
		}
		current = hasher.Sum(nil)
	}

	return current
}

// SiblingBigInts returns the path siblings reduced into the proving field
func (p *Path) SiblingBigInts() []*big.Int {
	siblings := make([]*big.Int, len(p.Siblings))
	for i := range p.Siblings {
		var elem fr.Element
		elem.SetBytes(p.Siblings[i])
		siblings[i] = elem.BigInt(new(big.Int))
	}
	return siblings
}

func fieldElement(b []byte) []byte {
	var elem fr.Element
	elem.SetBytes(b)
	buf := elem.Bytes()
	return buf[:]
}
