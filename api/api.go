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

// Package api exposes the counter transition engine over HTTP
package api

import (
	"encoding/hex"
	"errors"

	"github.com/gin-gonic/gin"
	provide "github.com/provideplatform/provide-go/common"

	"github.com/provideplatform/counter/engine"
	"github.com/provideplatform/counter/ledger"
	"github.com/provideplatform/counter/prover"
	"github.com/provideplatform/counter/state"
)

// InstallAPI registers the counter API handlers with gin
func InstallAPI(r *gin.Engine, counters *engine.Engine) {
	r.POST("/api/v1/counters/:accountId/init", initCounterHandler(counters))
	r.POST("/api/v1/counters/:accountId/increment", incrementCounterHandler(counters))
	r.GET("/api/v1/counters/:accountId", counterDetailsHandler(counters))
}

// initialize the account's counter at value 0
func initCounterHandler(counters *engine.Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		accountID := c.Param("accountId")
		if accountID == "" {
			provide.RenderError("accountId required", 400, c)
			return
		}

		txID, err := counters.Initialize(c.Request.Context(), accountID)
		if err != nil {
			renderTransitionError(err, c)
			return
		}

		provide.Render(&counterTransitionResponse{
			AccountID:     accountID,
			TransactionID: txID,
		}, 201, c)
	}
}

// increment the account's counter by exactly one
func incrementCounterHandler(counters *engine.Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		accountID := c.Param("accountId")
		if accountID == "" {
			provide.RenderError("accountId required", 400, c)
			return
		}

		txID, err := counters.Increment(c.Request.Context(), accountID)
		if err != nil {
			renderTransitionError(err, c)
			return
		}

		provide.Render(&counterTransitionResponse{
			AccountID:     accountID,
			TransactionID: txID,
		}, 200, c)
	}
}

// resolve the account's current counter value and commitment
func counterDetailsHandler(counters *engine.Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		accountID := c.Param("accountId")

		value, commitment, ok := counters.Current(accountID)
		if !ok {
			provide.RenderError("counter not found", 404, c)
			return
		}

		provide.Render(&counterDetailsResponse{
			AccountID:  accountID,
			Value:      value.String(),
			Commitment: hex.EncodeToString(commitment),
		}, 200, c)
	}
}

type counterTransitionResponse struct {
	AccountID     string  `json:"account_id"`
	TransactionID *string `json:"transaction_id"`
}

type counterDetailsResponse struct {
	AccountID  string `json:"account_id"`
	Value      string `json:"value"`
	Commitment string `json:"commitment"`
}

// renderTransitionError maps the transition error taxonomy onto HTTP statuses
func renderTransitionError(err error, c *gin.Context) {
	var notInitialized *engine.NotInitializedError
	var alreadyInitialized *engine.AlreadyInitializedError
	var concurrency *state.ConcurrencyError
	var submission *ledger.SubmissionError
	var proofGeneration *prover.ProofGenerationError

	switch {
	case errors.As(err, &notInitialized):
		provide.RenderError(err.Error(), 404, c)
	case errors.As(err, &alreadyInitialized):
		provide.RenderError(err.Error(), 409, c)
	case errors.As(err, &concurrency):
		provide.RenderError(err.Error(), 409, c)
	case errors.As(err, &submission):
		if submission.Retryable {
			provide.RenderError(err.Error(), 503, c)
		} else {
			provide.RenderError(err.Error(), 422, c)
		}
	case errors.As(err, &proofGeneration):
		provide.RenderError(err.Error(), 500, c)
	case errors.Is(err, ledger.ErrNotFound):
		provide.RenderError(err.Error(), 404, c)
	default:
		provide.RenderError(err.Error(), 500, c)
	}
}
