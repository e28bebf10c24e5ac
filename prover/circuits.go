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

package prover

import (
	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/std/hash/mimc"

	"github.com/provideplatform/counter/authpath"
)

// ComplianceCircuit attests the pairing of one consumed and one created
// resource: the consumed resource's commitment is a member of the ledger's
// commitment tree at Root (skipped for ephemeral resources), its nullifier is
// derived from the prover-held nullifier key, the created resource's
// commitment opens to its fields, and quantity is conserved across the pair.
type ComplianceCircuit struct {
	Root              frontend.Variable `gnark:",public"`
	ConsumedNullifier frontend.Variable `gnark:",public"`
	ConsumedKindRef   frontend.Variable `gnark:",public"`
	ConsumedEphemeral frontend.Variable `gnark:",public"`
	CreatedCommitment frontend.Variable `gnark:",public"`
	CreatedKindRef    frontend.Variable `gnark:",public"`

	ConsumedQuantity frontend.Variable
	ConsumedValue    frontend.Variable
	ConsumedNonce    frontend.Variable
	NullifierKey     frontend.Variable
	CreatedQuantity  frontend.Variable
	CreatedValue     frontend.Variable
	CreatedNonce     frontend.Variable

	// authentication path for the consumed commitment, proving-layer
	// convention: direction 1 means the proven leaf is the right child
	PathSiblings   [authpath.Depth]frontend.Variable
	PathDirections [authpath.Depth]frontend.Variable
}

// Define declares the compliance constraint system
func (c *ComplianceCircuit) Define(api frontend.API) error {
	hasher, err := mimc.NewMiMC(api)
	if err != nil {
		return err
	}

	hasher.Write(c.ConsumedKindRef, c.ConsumedQuantity, c.ConsumedValue, c.ConsumedNonce)
	consumedCommitment := hasher.Sum()

	hasher.Reset()
	hasher.Write(c.NullifierKey, consumedCommitment)
	api.AssertIsEqual(c.ConsumedNullifier, hasher.Sum())

	hasher.Reset()
	hasher.Write(c.CreatedKindRef, c.CreatedQuantity, c.CreatedValue, c.CreatedNonce)
	api.AssertIsEqual(c.CreatedCommitment, hasher.Sum())

	api.AssertIsEqual(c.ConsumedQuantity, c.CreatedQuantity)

	current := consumedCommitment
	for i := 0; i < authpath.Depth; i++ {
		api.AssertIsBoolean(c.PathDirections[i])
		left := api.Select(c.PathDirections[i], c.PathSiblings[i], current)
		right := api.Select(c.PathDirections[i], current, c.PathSiblings[i])
		hasher.Reset()
		hasher.Write(left, right)
		current = hasher.Sum()
	}

	// membership is enforced against Root unless the consumed resource is
	// ephemeral (i.e., the padding side of an initialization)
	api.AssertIsBoolean(c.ConsumedEphemeral)
	api.AssertIsEqual(api.Mul(api.Sub(1, c.ConsumedEphemeral), api.Sub(current, c.Root)), 0)

	return nil
}

// CounterLogicCircuit attests one side of a counter transition obeys the
// counter kind's rules: the proven resource's commitment opens to its fields
// and, on the created side, the counter value is exactly one greater than the
// consumed value -- or exactly zero when initializing.
//
// Each side is bound through its public handle: the created resource's
// handle is its commitment; the consumed resource's handle is its nullifier,
// since a consumed commitment is never revealed on the wire.
type CounterLogicCircuit struct {
	SelfRef      frontend.Variable `gnark:",public"`
	OtherRef     frontend.Variable `gnark:",public"`
	CreatedSide  frontend.Variable `gnark:",public"`
	Initializing frontend.Variable `gnark:",public"`

	SelfKindRef   frontend.Variable
	SelfQuantity  frontend.Variable
	SelfValue     frontend.Variable
	SelfNonce     frontend.Variable
	OtherKindRef  frontend.Variable
	OtherQuantity frontend.Variable
	OtherValue    frontend.Variable
	OtherNonce    frontend.Variable
	NullifierKey  frontend.Variable // key bound to the consumed side, whichever side that is
}

// Define declares the counter kind's transition constraint system
func (c *CounterLogicCircuit) Define(api frontend.API) error {
	hasher, err := mimc.NewMiMC(api)
	if err != nil {
		return err
	}

	api.AssertIsBoolean(c.CreatedSide)
	api.AssertIsBoolean(c.Initializing)

	hasher.Write(c.SelfKindRef, c.SelfQuantity, c.SelfValue, c.SelfNonce)
	selfCommitment := hasher.Sum()

	hasher.Reset()
	hasher.Write(c.OtherKindRef, c.OtherQuantity, c.OtherValue, c.OtherNonce)
	otherCommitment := hasher.Sum()

	hasher.Reset()
	hasher.Write(c.NullifierKey, selfCommitment)
	selfNullifier := hasher.Sum()

	hasher.Reset()
	hasher.Write(c.NullifierKey, otherCommitment)
	otherNullifier := hasher.Sum()

	// on the created side self binds by commitment and the consumed
	// counterpart by nullifier; on the consumed side the reverse
	api.AssertIsEqual(c.SelfRef, api.Select(c.CreatedSide, selfCommitment, selfNullifier))
	api.AssertIsEqual(c.OtherRef, api.Select(c.CreatedSide, otherNullifier, otherCommitment))

	// created counter value is consumed value + 1, or 0 on initialization;
	// the constraint binds on the created side only
	expected := api.Select(c.Initializing, 0, api.Add(c.OtherValue, 1))
	api.AssertIsEqual(api.Mul(c.CreatedSide, api.Sub(c.SelfValue, expected)), 0)

	return nil
}
