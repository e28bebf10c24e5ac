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
	"testing"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"

	"github.com/provideplatform/counter/authpath"
)

func randomCommitment(t *testing.T) []byte {
	var elem fr.Element
	if _, err := elem.SetRandom(); err != nil {
		t.Fatalf("failed to generate commitment; %s", err.Error())
	}
	buf := elem.Bytes()
	return buf[:]
}

func TestEmptyTreeRootIsZeroSubtreeHash(t *testing.T) {
	tree := NewCommitmentTree()

	if tree.Length() != 0 {
		t.Fatalf("empty tree resolved %d leaves", tree.Length())
	}
	if !bytes.Equal(tree.Root(), tree.zeros[authpath.Depth]) {
		t.Error("empty tree root is not the zero subtree hash")
	}
}

func TestPathAtAuthenticatesEveryLeaf(t *testing.T) {
	tree := NewCommitmentTree()

	leaves := make([][]byte, 5)
	for i := range leaves {
		leaves[i] = randomCommitment(t)
		index, err := tree.Append(leaves[i])
		if err != nil {
			t.Fatalf("failed to append commitment; %s", err.Error())
		}
		if index != i {
			t.Fatalf("append resolved index %d, expected %d", index, i)
		}
	}

	for i, leaf := range leaves {
		raw, err := tree.PathAt(i)
		if err != nil {
			t.Fatalf("failed to resolve path for leaf %d; %s", i, err.Error())
		}
		if len(raw.Steps) != authpath.Depth {
			t.Fatalf("path for leaf %d resolved %d levels", i, len(raw.Steps))
		}

		path, err := authpath.Translate(raw)
		if err != nil {
			t.Fatalf("failed to translate path for leaf %d; %s", i, err.Error())
		}

		if !bytes.Equal(path.Root(leaf), tree.Root()) {
			t.Errorf("translated path for leaf %d failed to authenticate against the tree root", i)
		}
	}
}

func TestPathAtRejectsUnknownIndex(t *testing.T) {
	tree := NewCommitmentTree()

	if _, err := tree.PathAt(0); err == nil {
		t.Error("expected path resolution on an empty tree to fail")
	}
	if _, err := tree.PathAt(-1); err == nil {
		t.Error("expected path resolution for a negative index to fail")
	}
}

func TestRootChangesOnAppend(t *testing.T) {
	tree := NewCommitmentTree()
	before := tree.Root()

	if _, err := tree.Append(randomCommitment(t)); err != nil {
		t.Fatalf("failed to append commitment; %s", err.Error())
	}

	if bytes.Equal(before, tree.Root()) {
		t.Error("tree root unchanged after append")
	}
}
