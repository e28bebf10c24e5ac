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

// Package ledger exposes the external ledger service consumed by the core:
// authentication path resolution for a commitment and exactly-once
// transaction submission.
package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/provideplatform/counter/authpath"
	"github.com/provideplatform/counter/common"
	"github.com/provideplatform/counter/prover"
)

// LedgerProviderMemory in-process ledger provider
const LedgerProviderMemory = "memory"

// LedgerProviderRPC remote ledger gateway provider
const LedgerProviderRPC = "rpc"

// ErrNotFound indicates the requested commitment is not present in the
// ledger's commitment tree
var ErrNotFound = errors.New("commitment not resolved in ledger")

// SubmissionError indicates the ledger rejected or failed to accept a
// transaction; the retryable subset may be retried with the same candidate
// transaction, the terminal subset requires discarding the candidate
type SubmissionError struct {
	Retryable bool
	message   string
}

func (e *SubmissionError) Error() string {
	return e.message
}

func newSubmissionError(retryable bool, format string, args ...interface{}) *SubmissionError {
	return &SubmissionError{
		Retryable: retryable,
		message:   fmt.Sprintf(format, args...),
	}
}

// Service is the ledger service contract consumed by the transition engine
type Service interface {
	FetchPath(ctx context.Context, commitment []byte) (*authpath.LedgerPath, error)
	Submit(ctx context.Context, tx *prover.Transaction) (*string, error)
}

// ServiceFactory initializes the configured ledger service provider
func ServiceFactory(provider *string, backend prover.Backend) Service {
	if provider == nil {
		common.Log.Warning("failed to initialize ledger service; no provider defined")
		return nil
	}

	switch *provider {
	case LedgerProviderMemory:
		return InitMemoryLedger(backend)
	case LedgerProviderRPC:
		if common.LedgerAPIHost == "" {
			common.Log.Warning("failed to initialize rpc ledger service; no LEDGER_API_HOST defined")
			return nil
		}
		return NewClient(common.LedgerAPIScheme, common.LedgerAPIHost)
	default:
		common.Log.Warningf("failed to initialize ledger service; unknown provider: %s", *provider)
	}

	return nil
}
