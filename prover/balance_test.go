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
	"errors"
	"testing"
)

func TestBalanceProofNetsToZero(t *testing.T) {
	first, err := NewBalanceWitness(1, 1)
	if err != nil {
		t.Fatalf("failed to generate balance witness; %s", err.Error())
	}
	second, err := NewBalanceWitness(1, 1)
	if err != nil {
		t.Fatalf("failed to generate balance witness; %s", err.Error())
	}

	firstDelta, err := first.Commitment()
	if err != nil {
		t.Fatalf("failed to resolve delta commitment; %s", err.Error())
	}
	secondDelta, err := second.Commitment()
	if err != nil {
		t.Fatalf("failed to resolve delta commitment; %s", err.Error())
	}

	msg := []byte("binding message")
	proof, err := aggregateBalance([]*BalanceWitness{first, second}, msg)
	if err != nil {
		t.Fatalf("failed to aggregate balance proof; %s", err.Error())
	}

	if err := verifyBalance(proof, [][]byte{firstDelta, secondDelta}, msg); err != nil {
		t.Errorf("failed to verify balance proof; %s", err.Error())
	}
}

func TestBalanceProofBindsMessage(t *testing.T) {
	witness, err := NewBalanceWitness(1, 1)
	if err != nil {
		t.Fatalf("failed to generate balance witness; %s", err.Error())
	}

	delta, err := witness.Commitment()
	if err != nil {
		t.Fatalf("failed to resolve delta commitment; %s", err.Error())
	}

	proof, err := aggregateBalance([]*BalanceWitness{witness}, []byte("signed message"))
	if err != nil {
		t.Fatalf("failed to aggregate balance proof; %s", err.Error())
	}

	if err := verifyBalance(proof, [][]byte{delta}, []byte("different message")); err == nil {
		t.Error("expected balance proof bound to a different message to fail")
	}
}

func TestBalanceProofRejectsNonZeroNet(t *testing.T) {
	// a quantity delta of 1 - 2 is not a commitment to zero
	witness, err := NewBalanceWitness(1, 2)
	if err != nil {
		t.Fatalf("failed to generate balance witness; %s", err.Error())
	}

	delta, err := witness.Commitment()
	if err != nil {
		t.Fatalf("failed to resolve delta commitment; %s", err.Error())
	}

	msg := []byte("binding message")
	proof, err := aggregateBalance([]*BalanceWitness{witness}, msg)
	if err != nil {
		t.Fatalf("failed to aggregate balance proof; %s", err.Error())
	}

	if err := verifyBalance(proof, [][]byte{delta}, msg); err == nil {
		t.Error("expected balance proof over a non-zero net to fail")
	}
}

func TestAggregateBalanceRejectsEmptyWitnesses(t *testing.T) {
	if _, err := aggregateBalance(nil, []byte("msg")); err == nil {
		t.Error("expected aggregation over zero witnesses to fail")
	}
}

func TestFinalizeRejectsEmptyTransaction(t *testing.T) {
	assembler := NewAssembler(nil, 1)

	_, err := assembler.Finalize(nil)
	if err == nil {
		t.Fatal("expected finalization of zero actions to fail")
	}

	var generation *ProofGenerationError
	if !errors.As(err, &generation) {
		t.Fatalf("expected ProofGenerationError, resolved %T", err)
	}
}
