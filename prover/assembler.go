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
	"context"

	"golang.org/x/sync/semaphore"

	"github.com/provideplatform/counter/authpath"
	"github.com/provideplatform/counter/resource"
)

// Assembler builds actions and finalizes transactions against the configured
// proof backend. Proof generation is CPU-bound; a weighted semaphore sized to
// the configured concurrency keeps it from starving request-serving
// goroutines.
type Assembler struct {
	backend Backend
	sem     *semaphore.Weighted
}

// NewAssembler initializes an assembler around the given proof backend
func NewAssembler(backend Backend, concurrency int) *Assembler {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Assembler{
		backend: backend,
		sem:     semaphore.NewWeighted(int64(concurrency)),
	}
}

// Assemble builds one action: the compliance proof pairing the consumed and
// created resources, a logic proof per side, and a fresh masked balance
// contribution. The authentication path must be nil if and only if the
// consumed resource is ephemeral. Errors are propagated untouched; the
// assembler never decides retry policy.
func (a *Assembler) Assemble(ctx context.Context, consumed *resource.Resource, consumedKey *resource.NullifierKey, path *authpath.Path, created *resource.Resource) (*Action, error) {
	if consumed.Ephemeral && path != nil {
		return nil, newProofGenerationError("refusing to assemble action; ephemeral consumed resource carries an authentication path")
	}
	if !consumed.Ephemeral && path == nil {
		return nil, newProofGenerationError("refusing to assemble action; consumed resource requires an authentication path")
	}

	var root []byte
	if path != nil {
		root = path.Root(consumed.Commitment())
	}

	initializing := consumed.Ephemeral

	balance, err := NewBalanceWitness(consumed.Quantity, created.Quantity)
	if err != nil {
		return nil, err
	}

	delta, err := balance.Commitment()
	if err != nil {
		return nil, err
	}

	if err := a.sem.Acquire(ctx, 1); err != nil {
		return nil, newProofGenerationError("failed to acquire proving slot; %s", err.Error())
	}
	defer a.sem.Release(1)

	complianceProof, err := a.backend.ProveCompliance(&ComplianceWitness{
		Consumed:    consumed,
		ConsumedKey: consumedKey,
		Path:        path,
		Root:        root,
		Created:     created,
	})
	if err != nil {
		return nil, err
	}

	consumedLogicProof, err := a.backend.ProveLogic(&LogicWitness{
		Self:         consumed,
		Other:        created,
		Key:          consumedKey,
		CreatedSide:  false,
		Initializing: initializing,
	})
	if err != nil {
		return nil, err
	}

	createdLogicProof, err := a.backend.ProveLogic(&LogicWitness{
		Self:         created,
		Other:        consumed,
		Key:          consumedKey,
		CreatedSide:  true,
		Initializing: initializing,
	})
	if err != nil {
		return nil, err
	}

	return &Action{
		Root:               root,
		ConsumedNullifier:  consumed.Nullifier(consumedKey),
		ConsumedKindRef:    consumed.KindRef,
		ConsumedEphemeral:  consumed.Ephemeral,
		CreatedCommitment:  created.Commitment(),
		CreatedKindRef:     created.KindRef,
		Initializing:       initializing,
		DeltaCommitment:    delta,
		ComplianceProof:    complianceProof,
		ConsumedLogicProof: consumedLogicProof,
		CreatedLogicProof:  createdLogicProof,
		balance:            balance,
	}, nil
}

// Finalize aggregates the per-action balance witnesses into one
// transaction-level balance proof. Finalizing zero actions fails; an empty
// transaction is never submittable.
func (a *Assembler) Finalize(actions []*Action) (*Transaction, error) {
	if len(actions) == 0 {
		return nil, newProofGenerationError("failed to finalize transaction; no actions resolved")
	}

	tx := &Transaction{
		Actions: actions,
	}

	witnesses := make([]*BalanceWitness, len(actions))
	for i, action := range actions {
		if action.balance == nil {
			return nil, newProofGenerationError("failed to finalize transaction; action %d carries no balance witness", i)
		}
		witnesses[i] = action.balance
	}

	proof, err := a.backend.AggregateBalance(witnesses, tx.BindingMessage())
	if err != nil {
		return nil, err
	}

	tx.BalanceProof = proof
	return tx, nil
}
