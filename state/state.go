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

// Package state maintains the in-memory mapping from account identifier to
// the account's current resource snapshot and its spending key material. The
// store is the only mutable shared resource in the core; it is mutated
// exactly once per confirmed transition, never speculatively.
package state

import (
	"context"
	"fmt"
	"sync"

	"github.com/provideplatform/counter/resource"
)

// ConcurrencyError indicates the per-account lock could not be acquired
// before the caller's deadline; the request is safe to retry
type ConcurrencyError struct {
	AccountID string
}

func (e *ConcurrencyError) Error() string {
	return fmt.Sprintf("timed out waiting on account lock: %s", e.AccountID)
}

// Entry pairs an account's current resource with the nullifier key bound to
// it at creation time; the pair is read and written atomically
type Entry struct {
	Resource *resource.Resource
	Key      *resource.NullifierKey
}

// Store is the account state store
type Store struct {
	mutex   sync.RWMutex
	entries map[string]*Entry
	locks   map[string]chan struct{}
}

// NewStore initializes an empty account state store
func NewStore() *Store {
	return &Store{
		entries: map[string]*Entry{},
		locks:   map[string]chan struct{}{},
	}
}

// Get resolves the current entry for the given account; no side effects
func (s *Store) Get(accountID string) (*Entry, bool) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	entry, ok := s.entries[accountID]
	return entry, ok
}

// Put unconditionally replaces the entry for the given account. It is the
// caller's responsibility to invoke this only after the ledger has confirmed
// the transition.
func (s *Store) Put(accountID string, entry *Entry) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.entries[accountID] = entry
}

// Lock acquires the per-account mutex covering the full
// read-assemble-submit-commit span of a transition. The wait is bounded by
// the given context; expiry surfaces as a ConcurrencyError so an abandoned
// caller can never leave the account locked forever. The returned release
// function must be invoked exactly once.
func (s *Store) Lock(ctx context.Context, accountID string) (func(), error) {
	s.mutex.Lock()
	lock, ok := s.locks[accountID]
	if !ok {
		lock = make(chan struct{}, 1)
		s.locks[accountID] = lock
	}
	s.mutex.Unlock()

	select {
	case lock <- struct{}{}:
		var once sync.Once
		return func() {
			once.Do(func() {
				<-lock
			})
		}, nil
	case <-ctx.Done():
		return nil, &ConcurrencyError{AccountID: accountID}
	}
}
