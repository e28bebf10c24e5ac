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

package engine

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/provideplatform/counter/authpath"
	"github.com/provideplatform/counter/prover"
	"github.com/provideplatform/counter/state"
)

// mockBackend emits placeholder proofs; circuit semantics are covered by the
// prover and ledger tests, the engine tests cover orchestration only
type mockBackend struct{}

func (b *mockBackend) ProveCompliance(witness *prover.ComplianceWitness) ([]byte, error) {
	return []byte("compliance"), nil
}

func (b *mockBackend) VerifyCompliance(proof []byte, action *prover.Action) error {
	return nil
}

func (b *mockBackend) ProveLogic(witness *prover.LogicWitness) ([]byte, error) {
	return []byte("logic"), nil
}

func (b *mockBackend) VerifyLogic(proof []byte, selfRef, otherRef []byte, createdSide, initializing bool) error {
	return nil
}

func (b *mockBackend) AggregateBalance(witnesses []*prover.BalanceWitness, msg []byte) (*prover.BalanceProof, error) {
	return &prover.BalanceProof{}, nil
}

func (b *mockBackend) VerifyBalance(proof *prover.BalanceProof, deltaCommitments [][]byte, msg []byte) error {
	return nil
}

// mockLedger serves synthetic full-depth paths for any commitment and fails
// submissions once the configured success budget is exhausted
type mockLedger struct {
	mutex       sync.Mutex
	successes   int // negative means unbounded
	submissions []*prover.Transaction
}

func newMockLedger(successes int) *mockLedger {
	return &mockLedger{successes: successes}
}

func (l *mockLedger) FetchPath(ctx context.Context, commitment []byte) (*authpath.LedgerPath, error) {
	steps := make([]*authpath.LedgerStep, authpath.Depth)
	for i := range steps {
		steps[i] = &authpath.LedgerStep{
			Sibling:      make([]byte, 32),
			DirectionBit: 1,
		}
	}
	return &authpath.LedgerPath{Steps: steps}, nil
}

func (l *mockLedger) Submit(ctx context.Context, tx *prover.Transaction) (*string, error) {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	if l.successes == 0 {
		return nil, errors.New("ledger unavailable")
	}
	if l.successes > 0 {
		l.successes--
	}

	l.submissions = append(l.submissions, tx)
	id := fmt.Sprintf("tx-%d", len(l.submissions))
	return &id, nil
}

func (l *mockLedger) submissionCount() int {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	return len(l.submissions)
}

func testEngine(successes int) (*Engine, *state.Store, *mockLedger) {
	store := state.NewStore()
	ledger := newMockLedger(successes)
	assembler := prover.NewAssembler(&mockBackend{}, 2)
	return New(store, ledger, assembler), store, ledger
}

func TestIncrementRequiresInitialization(t *testing.T) {
	counters, _, _ := testEngine(-1)

	_, err := counters.Increment(context.Background(), "alice")
	require.Error(t, err)

	var notInitialized *NotInitializedError
	require.True(t, errors.As(err, &notInitialized))
	require.Equal(t, "alice", notInitialized.AccountID)
}

func TestInitializeRejectsSecondInitialization(t *testing.T) {
	counters, _, _ := testEngine(-1)

	txID, err := counters.Initialize(context.Background(), "alice")
	require.NoError(t, err)
	require.NotNil(t, txID)

	_, err = counters.Initialize(context.Background(), "alice")
	require.Error(t, err)

	var alreadyInitialized *AlreadyInitializedError
	require.True(t, errors.As(err, &alreadyInitialized))
}

func TestFailedSubmissionNeverCommits(t *testing.T) {
	counters, store, _ := testEngine(0)

	_, err := counters.Initialize(context.Background(), "alice")
	require.Error(t, err)

	_, ok := store.Get("alice")
	require.False(t, ok, "state committed despite failed submission")
}

func TestFailedIncrementLeavesSnapshotUntouched(t *testing.T) {
	counters, store, _ := testEngine(1)

	_, err := counters.Initialize(context.Background(), "alice")
	require.NoError(t, err)

	before, ok := store.Get("alice")
	require.True(t, ok)

	// the success budget is exhausted; the increment must fail without
	// mutating the stored snapshot
	_, err = counters.Increment(context.Background(), "alice")
	require.Error(t, err)

	after, ok := store.Get("alice")
	require.True(t, ok)
	require.Same(t, before.Resource, after.Resource)
	require.Same(t, before.Key, after.Key)

	value, _, ok := counters.Current("alice")
	require.True(t, ok)
	require.Zero(t, value.Cmp(big.NewInt(0)))
}

func TestConcurrentIncrementsCommitExactlyOnce(t *testing.T) {
	counters, _, ledger := testEngine(2)

	_, err := counters.Initialize(context.Background(), "alice")
	require.NoError(t, err)

	// one success remains; concurrent increments race for it and exactly one
	// may commit
	var wg sync.WaitGroup
	var successCount int32
	var successMutex sync.Mutex

	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := counters.Increment(context.Background(), "alice"); err == nil {
				successMutex.Lock()
				successCount++
				successMutex.Unlock()
			}
		}()
	}
	wg.Wait()

	require.Equal(t, int32(1), successCount)
	require.Equal(t, 2, ledger.submissionCount())

	value, _, ok := counters.Current("alice")
	require.True(t, ok)
	require.Zero(t, value.Cmp(big.NewInt(1)))
}

func TestConsecutiveTransitionsNeverRepeatWireData(t *testing.T) {
	counters, _, ledger := testEngine(-1)

	_, err := counters.Initialize(context.Background(), "alice")
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		_, err := counters.Increment(context.Background(), "alice")
		require.NoError(t, err)
	}

	commitments := map[string]bool{}
	nullifiers := map[string]bool{}
	for _, tx := range ledger.submissions {
		for _, action := range tx.Actions {
			commitment := hex.EncodeToString(action.CreatedCommitment)
			require.False(t, commitments[commitment], "created commitment repeated across transitions")
			commitments[commitment] = true

			nullifier := hex.EncodeToString(action.ConsumedNullifier)
			require.False(t, nullifiers[nullifier], "consumed nullifier repeated across transitions")
			nullifiers[nullifier] = true
		}
	}
}

func TestAccountsTransitionIndependently(t *testing.T) {
	counters, _, _ := testEngine(-1)
	ctx := context.Background()

	_, err := counters.Initialize(ctx, "alice")
	require.NoError(t, err)

	_, err = counters.Increment(ctx, "alice")
	require.NoError(t, err)
	_, err = counters.Increment(ctx, "alice")
	require.NoError(t, err)

	_, err = counters.Increment(ctx, "bob")
	var notInitialized *NotInitializedError
	require.True(t, errors.As(err, &notInitialized))

	_, err = counters.Initialize(ctx, "bob")
	require.NoError(t, err)
	_, err = counters.Increment(ctx, "bob")
	require.NoError(t, err)

	aliceValue, _, ok := counters.Current("alice")
	require.True(t, ok)
	require.Zero(t, aliceValue.Cmp(big.NewInt(2)))

	bobValue, _, ok := counters.Current("bob")
	require.True(t, ok)
	require.Zero(t, bobValue.Cmp(big.NewInt(1)))
}
