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

// Package engine drives the counter resource lifecycle: initialization and
// increment transitions, each assembled into a transaction, submitted to the
// ledger service and committed into the account state store only after the
// ledger reports success. No transition mutates stored state before
// submission succeeds; this is the central correctness invariant.
package engine

import (
	"context"
	"fmt"
	"math/big"

	"github.com/provideplatform/counter/authpath"
	"github.com/provideplatform/counter/common"
	"github.com/provideplatform/counter/ledger"
	"github.com/provideplatform/counter/prover"
	"github.com/provideplatform/counter/resource"
	"github.com/provideplatform/counter/state"
)

const transitionStatusPending = "pending"
const transitionStatusCommitted = "committed"
const transitionStatusFailed = "failed"

// NotInitializedError indicates an increment was requested before the
// account's counter was initialized; recoverable by initializing
type NotInitializedError struct {
	AccountID string
}

func (e *NotInitializedError) Error() string {
	return fmt.Sprintf("account not initialized: %s", e.AccountID)
}

// AlreadyInitializedError indicates an initialization was requested for an
// account that already holds a counter resource
type AlreadyInitializedError struct {
	AccountID string
}

func (e *AlreadyInitializedError) Error() string {
	return fmt.Sprintf("account already initialized: %s", e.AccountID)
}

// Engine orchestrates counter transitions. It is the only component
// authorized to decide retry vs terminal failure and the only component
// authorized to mutate the account state store.
type Engine struct {
	store     *state.Store
	ledger    ledger.Service
	assembler *prover.Assembler
}

// New initializes a transition engine
func New(store *state.Store, ledgerService ledger.Service, assembler *prover.Assembler) *Engine {
	return &Engine{
		store:     store,
		ledger:    ledgerService,
		assembler: assembler,
	}
}

// Initialize synthesizes a fresh counter resource with value 0 for the given
// account, proves and submits the initializing transaction and, only on
// reported success, commits the new entry into the state store
func (e *Engine) Initialize(ctx context.Context, accountID string) (*string, error) {
	lockCtx, cancel := context.WithTimeout(ctx, common.AccountLockTimeout)
	defer cancel()

	release, err := e.store.Lock(lockCtx, accountID)
	if err != nil {
		return nil, err
	}
	defer release()

	if _, ok := e.store.Get(accountID); ok {
		return nil, &AlreadyInitializedError{AccountID: accountID}
	}

	created, createdKey, err := newCounterResource(big.NewInt(0), false)
	if err != nil {
		return nil, err
	}

	// the initializing action consumes an ephemeral padding resource whose
	// commitment is never required to be in the ledger's tree
	consumed, consumedKey, err := newCounterResource(big.NewInt(0), true)
	if err != nil {
		return nil, err
	}

	common.Log.Debugf("account %s initialization %s; assembling transaction", accountID, transitionStatusPending)

	action, err := e.assembler.Assemble(ctx, consumed, consumedKey, nil, created)
	if err != nil {
		return nil, err
	}

	tx, err := e.assembler.Finalize([]*prover.Action{action})
	if err != nil {
		return nil, err
	}

	txID, err := e.submit(tx)
	if err != nil {
		common.Log.Warningf("account %s initialization %s; %s", accountID, transitionStatusFailed, err.Error())
		return nil, err
	}

	e.store.Put(accountID, &state.Entry{
		Resource: created,
		Key:      createdKey,
	})

	common.Log.Debugf("account %s initialization %s; tx id: %s", accountID, transitionStatusCommitted, *txID)
	return txID, nil
}

// Increment consumes the account's current counter resource and creates its
// successor carrying value + 1 and a fresh nonce. The state store is left
// untouched on any failure, so a retried increment re-reads the same
// authoritative snapshot and produces a different candidate transaction.
func (e *Engine) Increment(ctx context.Context, accountID string) (*string, error) {
	lockCtx, cancel := context.WithTimeout(ctx, common.AccountLockTimeout)
	defer cancel()

	release, err := e.store.Lock(lockCtx, accountID)
	if err != nil {
		return nil, err
	}
	defer release()

	entry, ok := e.store.Get(accountID)
	if !ok {
		return nil, &NotInitializedError{AccountID: accountID}
	}

	raw, err := e.ledger.FetchPath(ctx, entry.Resource.Commitment())
	if err != nil {
		return nil, err
	}

	path, err := authpath.Translate(raw)
	if err != nil {
		return nil, err
	}

	next := new(big.Int).Add(entry.Resource.CounterValue(), big.NewInt(1))
	created, createdKey, err := newCounterResource(next, false)
	if err != nil {
		return nil, err
	}

	common.Log.Debugf("account %s increment %s; assembling transaction; value: %s", accountID, transitionStatusPending, next.String())

	action, err := e.assembler.Assemble(ctx, entry.Resource, entry.Key, path, created)
	if err != nil {
		return nil, err
	}

	tx, err := e.assembler.Finalize([]*prover.Action{action})
	if err != nil {
		return nil, err
	}

	txID, err := e.submit(tx)
	if err != nil {
		common.Log.Warningf("account %s increment %s; %s", accountID, transitionStatusFailed, err.Error())
		return nil, err
	}

	e.store.Put(accountID, &state.Entry{
		Resource: created,
		Key:      createdKey,
	})

	common.Log.Debugf("account %s increment %s; value: %s; tx id: %s", accountID, transitionStatusCommitted, next.String(), *txID)
	return txID, nil
}

// Current resolves the account's current counter value and commitment; no
// side effects
func (e *Engine) Current(accountID string) (*big.Int, []byte, bool) {
	entry, ok := e.store.Get(accountID)
	if !ok {
		return nil, nil, false
	}
	return entry.Resource.CounterValue(), entry.Resource.Commitment(), true
}

// submit hands the candidate transaction to the ledger service under an
// engine-owned bounded context, so an abandoned caller can neither interrupt
// a confirmation in flight nor leave the account half-committed
func (e *Engine) submit(tx *prover.Transaction) (*string, error) {
	submitCtx, cancel := context.WithTimeout(context.Background(), common.SubmissionTimeout)
	defer cancel()

	return e.ledger.Submit(submitCtx, tx)
}

func newCounterResource(value *big.Int, ephemeral bool) (*resource.Resource, *resource.NullifierKey, error) {
	res, err := resource.NewCounter(value, ephemeral)
	if err != nil {
		return nil, nil, err
	}

	key, err := resource.NewNullifierKey()
	if err != nil {
		return nil, nil, err
	}

	return res, key, nil
}
