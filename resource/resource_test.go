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

package resource

import (
	"bytes"
	"encoding/json"
	"math/big"
	"testing"
)

func TestNewCounterEncodesValueLittleEndian(t *testing.T) {
	counter, err := NewCounter(big.NewInt(0x0102), false)
	if err != nil {
		t.Fatalf("failed to synthesize counter; %s", err.Error())
	}

	if len(counter.Value) != CounterValueSize {
		t.Fatalf("value payload resolved %d bytes, expected %d", len(counter.Value), CounterValueSize)
	}
	if counter.Value[0] != 0x02 || counter.Value[1] != 0x01 {
		t.Errorf("value payload head not little-endian: %x", counter.Value[:2])
	}
	for i := 2; i < CounterValueSize; i++ {
		if counter.Value[i] != 0 {
			t.Errorf("value payload byte %d not zero: %x", i, counter.Value[i])
		}
	}

	if counter.CounterValue().Cmp(big.NewInt(0x0102)) != 0 {
		t.Errorf("counter value did not survive the round trip; resolved %s", counter.CounterValue().String())
	}
}

func TestNewCounterRejectsOutOfRangeValue(t *testing.T) {
	if _, err := NewCounter(big.NewInt(-1), false); err == nil {
		t.Error("expected negative counter value to be rejected")
	}

	limit := new(big.Int).Lsh(big.NewInt(1), CounterValueSize*8)
	if _, err := NewCounter(limit, false); err == nil {
		t.Error("expected counter value beyond 128 bits to be rejected")
	}

	max := new(big.Int).Sub(limit, big.NewInt(1))
	counter, err := NewCounter(max, false)
	if err != nil {
		t.Fatalf("failed to synthesize counter at the range limit; %s", err.Error())
	}
	if counter.CounterValue().Cmp(max) != 0 {
		t.Error("counter value at the range limit did not survive the round trip")
	}
}

func TestCommitmentDeterministic(t *testing.T) {
	counter, err := NewCounter(big.NewInt(42), false)
	if err != nil {
		t.Fatalf("failed to synthesize counter; %s", err.Error())
	}

	if !bytes.Equal(counter.Commitment(), counter.Commitment()) {
		t.Error("commitment not deterministic over identical field values")
	}

	clone := &Resource{
		KindRef:   counter.KindRef,
		Quantity:  counter.Quantity,
		Nonce:     counter.Nonce,
		Value:     counter.Value,
		Ephemeral: counter.Ephemeral,
	}
	if !counter.Equal(clone) {
		t.Error("clone with identical fields not equal")
	}
	if !bytes.Equal(counter.Commitment(), clone.Commitment()) {
		t.Error("clone with identical fields resolved a different commitment")
	}
}

func TestFreshNoncePerTransition(t *testing.T) {
	first, err := NewCounter(big.NewInt(7), false)
	if err != nil {
		t.Fatalf("failed to synthesize counter; %s", err.Error())
	}
	second, err := NewCounter(big.NewInt(7), false)
	if err != nil {
		t.Fatalf("failed to synthesize counter; %s", err.Error())
	}

	if bytes.Equal(first.Nonce, second.Nonce) {
		t.Error("consecutive counters with equal values resolved the same nonce")
	}
	if bytes.Equal(first.Commitment(), second.Commitment()) {
		t.Error("consecutive counters with equal values resolved the same commitment")
	}
}

func TestNullifierBoundToKey(t *testing.T) {
	counter, err := NewCounter(big.NewInt(1), false)
	if err != nil {
		t.Fatalf("failed to synthesize counter; %s", err.Error())
	}

	key, err := NewNullifierKey()
	if err != nil {
		t.Fatalf("failed to generate nullifier key; %s", err.Error())
	}
	other, err := NewNullifierKey()
	if err != nil {
		t.Fatalf("failed to generate nullifier key; %s", err.Error())
	}

	if !bytes.Equal(counter.Nullifier(key), counter.Nullifier(key)) {
		t.Error("nullifier not deterministic for a fixed key")
	}
	if bytes.Equal(counter.Nullifier(key), counter.Nullifier(other)) {
		t.Error("distinct keys resolved the same nullifier")
	}
}

func TestNullifierKeyNeverSerialized(t *testing.T) {
	key, err := NewNullifierKey()
	if err != nil {
		t.Fatalf("failed to generate nullifier key; %s", err.Error())
	}

	if _, err := json.Marshal(key); err == nil {
		t.Error("expected nullifier key serialization to fail")
	}

	wrapper := struct {
		Key *NullifierKey `json:"key"`
	}{Key: key}
	if _, err := json.Marshal(&wrapper); err == nil {
		t.Error("expected serialization of a struct embedding a nullifier key to fail")
	}
}
