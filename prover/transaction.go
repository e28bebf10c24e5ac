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
	"crypto/sha256"
	"encoding/hex"
)

// Action is one atomic state transition: the pairing of one consumed and one
// created resource, the compliance proof binding them, the logic proofs
// attesting each side, and the action's masked balance contribution
type Action struct {
	Root              []byte `json:"root"`
	ConsumedNullifier []byte `json:"consumed_nullifier"`
	ConsumedKindRef   []byte `json:"consumed_kind_ref"`
	ConsumedEphemeral bool   `json:"consumed_ephemeral"`
	CreatedCommitment []byte `json:"created_commitment"`
	CreatedKindRef    []byte `json:"created_kind_ref"`
	Initializing      bool   `json:"initializing"`

	DeltaCommitment    []byte `json:"delta_commitment"`
	ComplianceProof    []byte `json:"compliance_proof"`
	ConsumedLogicProof []byte `json:"consumed_logic_proof"`
	CreatedLogicProof  []byte `json:"created_logic_proof"`

	// per-action balance witness; consumed by Finalize, never serialized
	balance *BalanceWitness
}

// Transaction is an ordered sequence of actions plus one aggregate balance
// proof attesting the sum of per-action balance commitments nets to zero
type Transaction struct {
	Actions      []*Action     `json:"actions"`
	BalanceProof *BalanceProof `json:"balance_proof"`
}

// BindingMessage deterministically digests the public parts of every action;
// the aggregate balance proof signs this digest, binding it to the
// transaction contents
func (t *Transaction) BindingMessage() []byte {
	digest := sha256.New()
	for _, action := range t.Actions {
		digest.Write(action.Root)
		digest.Write(action.ConsumedNullifier)
		digest.Write(action.CreatedCommitment)
		digest.Write(action.DeltaCommitment)
	}
	return digest.Sum(nil)
}

// Nullifiers returns the consumed nullifiers revealed by the transaction
func (t *Transaction) Nullifiers() []string {
	nullifiers := make([]string, len(t.Actions))
	for i, action := range t.Actions {
		nullifiers[i] = hex.EncodeToString(action.ConsumedNullifier)
	}
	return nullifiers
}
