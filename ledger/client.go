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
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/provideplatform/counter/authpath"
	"github.com/provideplatform/counter/prover"
)

const clientRequestTimeout = time.Second * 30

// Client resolves authentication paths from, and submits transactions to, a
// remote ledger gateway over HTTP
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient initializes a ledger gateway client for the given scheme and host
func NewClient(scheme, host string) *Client {
	return &Client{
		baseURL: fmt.Sprintf("%s://%s", scheme, host),
		httpClient: &http.Client{
			Timeout: clientRequestTimeout,
		},
	}
}

// FetchPath resolves the current authentication path for the given commitment
func (c *Client) FetchPath(ctx context.Context, commitment []byte) (*authpath.LedgerPath, error) {
	uri := fmt.Sprintf("%s/api/v1/commitments/%s/path", c.baseURL, hex.EncodeToString(commitment))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, uri, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve authentication path; %s", err.Error())
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve authentication path; %s", err.Error())
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to resolve authentication path; ledger gateway returned status %d", resp.StatusCode)
	}

	var path authpath.LedgerPath
	if err := json.NewDecoder(resp.Body).Decode(&path); err != nil {
		return nil, fmt.Errorf("failed to parse authentication path; %s", err.Error())
	}

	return &path, nil
}

// Submit posts the given transaction to the ledger gateway. Network failures
// and gateway-side congestion are retryable with the same candidate
// transaction; a rejected proof is terminal.
func (c *Client) Submit(ctx context.Context, tx *prover.Transaction) (*string, error) {
	payload, err := json.Marshal(tx)
	if err != nil {
		return nil, newSubmissionError(false, "failed to marshal transaction; %s", err.Error())
	}

	uri := fmt.Sprintf("%s/api/v1/transactions", c.baseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, uri, bytes.NewReader(payload))
	if err != nil {
		return nil, newSubmissionError(false, "failed to submit transaction; %s", err.Error())
	}
	req.Header.Set("content-type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, newSubmissionError(true, "failed to submit transaction; %s", err.Error())
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusCreated || resp.StatusCode == http.StatusAccepted:
		var result struct {
			TransactionID *string `json:"transaction_id"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
			return nil, newSubmissionError(true, "failed to parse transaction submission response; %s", err.Error())
		}
		if result.TransactionID == nil {
			return nil, newSubmissionError(true, "transaction submission response resolved no transaction id")
		}
		return result.TransactionID, nil
	case resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests:
		return nil, newSubmissionError(true, "transaction submission failed; ledger gateway returned status %d", resp.StatusCode)
	default:
		return nil, newSubmissionError(false, "transaction rejected; ledger gateway returned status %d", resp.StatusCode)
	}
}
