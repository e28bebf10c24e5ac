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
	"math/big"
	"testing"

	"github.com/provideplatform/counter/authpath"
	"github.com/provideplatform/counter/resource"
)

func TestAssembleRejectsPathShapeMismatch(t *testing.T) {
	assembler := NewAssembler(nil, 1)

	key, err := resource.NewNullifierKey()
	if err != nil {
		t.Fatalf("failed to generate nullifier key; %s", err.Error())
	}

	created, err := resource.NewCounter(big.NewInt(0), false)
	if err != nil {
		t.Fatalf("failed to synthesize counter; %s", err.Error())
	}

	ephemeral, err := resource.NewCounter(big.NewInt(0), true)
	if err != nil {
		t.Fatalf("failed to synthesize counter; %s", err.Error())
	}

	path := &authpath.Path{
		Siblings:   make([][]byte, authpath.Depth),
		Directions: make([]bool, authpath.Depth),
	}
	for i := range path.Siblings {
		path.Siblings[i] = make([]byte, 32)
	}

	if _, err := assembler.Assemble(context.Background(), ephemeral, key, path, created); err == nil {
		t.Error("expected assembly of an ephemeral consumed resource with a path to fail")
	}

	persisted, err := resource.NewCounter(big.NewInt(0), false)
	if err != nil {
		t.Fatalf("failed to synthesize counter; %s", err.Error())
	}
	if _, err := assembler.Assemble(context.Background(), persisted, key, nil, created); err == nil {
		t.Error("expected assembly of a persisted consumed resource without a path to fail")
	}
}
