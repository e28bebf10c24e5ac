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
	"context"
	"encoding/hex"
	"sync"

	uuid "github.com/kthomas/go.uuid"

	"github.com/provideplatform/counter/authpath"
	"github.com/provideplatform/counter/common"
	"github.com/provideplatform/counter/prover"
)

// MemoryLedger is an in-process ledger: a fixed-depth commitment tree, the
// set of revealed nullifiers, and the set of historical roots it accepts.
// Submitted transactions are fully verified -- proofs, roots and double-spend
// checks -- before any state is applied.
type MemoryLedger struct {
	mutex      sync.Mutex
	tree       *CommitmentTree
	leafIndex  map[string]int
	nullifiers map[string]bool
	roots      map[string]bool
	backend    prover.Backend
}

// InitMemoryLedger initializes an empty in-process ledger verifying proofs
// against the given backend
func InitMemoryLedger(backend prover.Backend) *MemoryLedger {
	ledger := &MemoryLedger{
		tree:       NewCommitmentTree(),
		leafIndex:  map[string]int{},
		nullifiers: map[string]bool{},
		roots:      map[string]bool{},
		backend:    backend,
	}
	ledger.roots[hex.EncodeToString(ledger.tree.Root())] = true
	return ledger
}

// FetchPath resolves the current authentication path for the given commitment
func (l *MemoryLedger) FetchPath(ctx context.Context, commitment []byte) (*authpath.LedgerPath, error) {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	index, ok := l.leafIndex[hex.EncodeToString(canonical(commitment))]
	if !ok {
		return nil, ErrNotFound
	}

	return l.tree.PathAt(index)
}

// Submit verifies and applies the given transaction, returning its assigned
// transaction identifier. Verification failures and double spends are
// terminal; the candidate transaction must be discarded and rebuilt.
func (l *MemoryLedger) Submit(ctx context.Context, tx *prover.Transaction) (*string, error) {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	if tx == nil || len(tx.Actions) == 0 {
		return nil, newSubmissionError(false, "rejected transaction; no actions resolved")
	}

	deltas := make([][]byte, len(tx.Actions))
	for i, action := range tx.Actions {
		if !action.ConsumedEphemeral {
			if !l.roots[hex.EncodeToString(canonical(action.Root))] {
				return nil, newSubmissionError(false, "rejected transaction; action %d proven against an unrecognized root", i)
			}
			if l.nullifiers[hex.EncodeToString(action.ConsumedNullifier)] {
				return nil, newSubmissionError(false, "rejected transaction; action %d reveals an already-spent nullifier", i)
			}
		}

		if l.backend != nil {
			if err := l.backend.VerifyCompliance(action.ComplianceProof, action); err != nil {
				return nil, newSubmissionError(false, "rejected transaction; action %d compliance proof invalid; %s", i, err.Error())
			}
			if err := l.backend.VerifyLogic(action.CreatedLogicProof, action.CreatedCommitment, action.ConsumedNullifier, true, action.Initializing); err != nil {
				return nil, newSubmissionError(false, "rejected transaction; action %d created logic proof invalid; %s", i, err.Error())
			}
			if err := l.backend.VerifyLogic(action.ConsumedLogicProof, action.ConsumedNullifier, action.CreatedCommitment, false, action.Initializing); err != nil {
				return nil, newSubmissionError(false, "rejected transaction; action %d consumed logic proof invalid; %s", i, err.Error())
			}
		}

		deltas[i] = action.DeltaCommitment
	}

	if l.backend != nil {
		if err := l.backend.VerifyBalance(tx.BalanceProof, deltas, tx.BindingMessage()); err != nil {
			return nil, newSubmissionError(false, "rejected transaction; %s", err.Error())
		}
	}

	for _, action := range tx.Actions {
		if !action.ConsumedEphemeral {
			l.nullifiers[hex.EncodeToString(action.ConsumedNullifier)] = true
		}

		index, err := l.tree.Append(action.CreatedCommitment)
		if err != nil {
			return nil, newSubmissionError(true, "failed to apply transaction; %s", err.Error())
		}
		l.leafIndex[hex.EncodeToString(canonical(action.CreatedCommitment))] = index
	}
	l.roots[hex.EncodeToString(l.tree.Root())] = true

	txID, err := uuid.NewV4()
	if err != nil {
		return nil, newSubmissionError(true, "failed to assign transaction id; %s", err.Error())
	}

	id := txID.String()
	common.Log.Debugf("ledger accepted transaction %s; %d action(s); new root: %s", id, len(tx.Actions), hex.EncodeToString(l.tree.Root()))
	return common.StringOrNil(id), nil
}

// Root returns the ledger's current commitment tree root
func (l *MemoryLedger) Root() []byte {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	return l.tree.Root()
}

// HasNullifier returns true if the given nullifier has been revealed
func (l *MemoryLedger) HasNullifier(nullifier []byte) bool {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	return l.nullifiers[hex.EncodeToString(nullifier)]
}
