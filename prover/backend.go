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
	"bytes"
	"fmt"
	"math/big"

	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/consensys/gnark/backend/groth16"
	"github.com/consensys/gnark/constraint"
	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/frontend/cs/r1cs"

	"github.com/provideplatform/counter/authpath"
	"github.com/provideplatform/counter/common"
	"github.com/provideplatform/counter/resource"
)

// ZKSnarkProverProviderGnark gnark zksnark prover provider
const ZKSnarkProverProviderGnark = "gnark"

// ProofGenerationError indicates the proof backend rejected a witness; fatal
// for the attempt. When caused by a stale tree root the caller may retry
// after re-fetching the authentication path.
type ProofGenerationError struct {
	message string
}

func (e *ProofGenerationError) Error() string {
	return e.message
}

func newProofGenerationError(format string, args ...interface{}) *ProofGenerationError {
	return &ProofGenerationError{message: fmt.Sprintf(format, args...)}
}

// ComplianceWitness is the private input to a compliance proof
type ComplianceWitness struct {
	Consumed    *resource.Resource
	ConsumedKey *resource.NullifierKey
	Path        *authpath.Path // nil when the consumed resource is ephemeral
	Root        []byte         // zero when the consumed resource is ephemeral
	Created     *resource.Resource
}

// LogicWitness is the private input to a logic proof for one resource side;
// Key is the nullifier key bound to whichever side is consumed
type LogicWitness struct {
	Self         *resource.Resource
	Other        *resource.Resource
	Key          *resource.NullifierKey
	CreatedSide  bool
	Initializing bool
}

// Backend provides a common interface to the underlying zero-knowledge
// proving primitives, consumed as an opaque capability
type Backend interface {
	ProveCompliance(witness *ComplianceWitness) ([]byte, error)
	VerifyCompliance(proof []byte, action *Action) error
	ProveLogic(witness *LogicWitness) ([]byte, error)
	VerifyLogic(proof []byte, selfRef, otherRef []byte, createdSide, initializing bool) error
	AggregateBalance(witnesses []*BalanceWitness, msg []byte) (*BalanceProof, error)
	VerifyBalance(proof *BalanceProof, deltaCommitments [][]byte, msg []byte) error
}

// BackendFactory initializes the configured proof backend
func BackendFactory(provider *string) Backend {
	if provider == nil {
		common.Log.Warning("failed to initialize proof backend; no provider defined")
		return nil
	}

	switch *provider {
	case ZKSnarkProverProviderGnark:
		backend, err := InitGnarkBackend()
		if err != nil {
			common.Log.Warningf("failed to initialize gnark proof backend; %s", err.Error())
			return nil
		}
		return backend
	default:
		common.Log.Warningf("failed to initialize proof backend; unknown provider: %s", *provider)
	}

	return nil
}

// GnarkBackend interacts with the go-native gnark package; circuits are
// compiled and set up once at initialization
type GnarkBackend struct {
	curveID ecc.ID

	complianceCCS constraint.ConstraintSystem
	compliancePK  groth16.ProvingKey
	complianceVK  groth16.VerifyingKey

	logicCCS constraint.ConstraintSystem
	logicPK  groth16.ProvingKey
	logicVK  groth16.VerifyingKey
}

// InitGnarkBackend compiles the compliance and counter logic circuits and
// runs the Groth16 setup for each
func InitGnarkBackend() (*GnarkBackend, error) {
	backend := &GnarkBackend{
		curveID: ecc.BN254,
	}

	var err error

	backend.complianceCCS, err = frontend.Compile(backend.curveID.ScalarField(), r1cs.NewBuilder, &ComplianceCircuit{})
	if err != nil {
		return nil, fmt.Errorf("failed to compile compliance circuit; %s", err.Error())
	}

	backend.compliancePK, backend.complianceVK, err = groth16.Setup(backend.complianceCCS)
	if err != nil {
		return nil, fmt.Errorf("failed to complete compliance circuit setup; %s", err.Error())
	}

	backend.logicCCS, err = frontend.Compile(backend.curveID.ScalarField(), r1cs.NewBuilder, &CounterLogicCircuit{})
	if err != nil {
		return nil, fmt.Errorf("failed to compile counter logic circuit; %s", err.Error())
	}

	backend.logicPK, backend.logicVK, err = groth16.Setup(backend.logicCCS)
	if err != nil {
		return nil, fmt.Errorf("failed to complete counter logic circuit setup; %s", err.Error())
	}

	common.Log.Debugf("initialized gnark proof backend; curve: %s", backend.curveID.String())
	return backend, nil
}

func (b *GnarkBackend) complianceAssignment(witness *ComplianceWitness) *ComplianceCircuit {
	assignment := &ComplianceCircuit{
		Root:              frBigInt(witness.Root),
		ConsumedNullifier: frBigInt(witness.Consumed.Nullifier(witness.ConsumedKey)),
		ConsumedKindRef:   witness.Consumed.KindRefBigInt(),
		ConsumedEphemeral: boolVariable(witness.Consumed.Ephemeral),
		CreatedCommitment: frBigInt(witness.Created.Commitment()),
		CreatedKindRef:    witness.Created.KindRefBigInt(),

		ConsumedQuantity: new(big.Int).SetUint64(witness.Consumed.Quantity),
		ConsumedValue:    witness.Consumed.ValueBigInt(),
		ConsumedNonce:    witness.Consumed.NonceBigInt(),
		NullifierKey:     witness.ConsumedKey.BigInt(),
		CreatedQuantity:  new(big.Int).SetUint64(witness.Created.Quantity),
		CreatedValue:     witness.Created.ValueBigInt(),
		CreatedNonce:     witness.Created.NonceBigInt(),
	}

	for i := 0; i < authpath.Depth; i++ {
		assignment.PathSiblings[i] = big.NewInt(0)
		assignment.PathDirections[i] = big.NewInt(0)
	}

	if witness.Path != nil {
		for i, sibling := range witness.Path.SiblingBigInts() {
			assignment.PathSiblings[i] = sibling
			assignment.PathDirections[i] = boolVariable(witness.Path.Directions[i])
		}
	}

	return assignment
}

// ProveCompliance generates the compliance proof for the given witness
func (b *GnarkBackend) ProveCompliance(witness *ComplianceWitness) ([]byte, error) {
	if witness.Path != nil && len(witness.Path.Siblings) != authpath.Depth {
		return nil, newProofGenerationError("failed to generate compliance proof; authentication path resolved %d levels", len(witness.Path.Siblings))
	}

	assignment := b.complianceAssignment(witness)
	w, err := frontend.NewWitness(assignment, b.curveID.ScalarField())
	if err != nil {
		return nil, newProofGenerationError("failed to resolve compliance witness; %s", err.Error())
	}

	proof, err := groth16.Prove(b.complianceCCS, b.compliancePK, w)
	if err != nil {
		return nil, newProofGenerationError("proof backend rejected compliance witness; %s", err.Error())
	}

	var buf bytes.Buffer
	if _, err := proof.WriteTo(&buf); err != nil {
		return nil, newProofGenerationError("failed to marshal compliance proof; %s", err.Error())
	}

	return buf.Bytes(), nil
}

// VerifyCompliance verifies a compliance proof against the public inputs
// carried by the given action
func (b *GnarkBackend) VerifyCompliance(proof []byte, action *Action) error {
	assignment := &ComplianceCircuit{
		Root:              frBigInt(action.Root),
		ConsumedNullifier: frBigInt(action.ConsumedNullifier),
		ConsumedKindRef:   frBigInt(action.ConsumedKindRef),
		ConsumedEphemeral: boolVariable(action.ConsumedEphemeral),
		CreatedCommitment: frBigInt(action.CreatedCommitment),
		CreatedKindRef:    frBigInt(action.CreatedKindRef),
	}

	w, err := frontend.NewWitness(assignment, b.curveID.ScalarField(), frontend.PublicOnly())
	if err != nil {
		return newProofGenerationError("failed to resolve public compliance witness; %s", err.Error())
	}

	decoded := groth16.NewProof(b.curveID)
	if _, err := decoded.ReadFrom(bytes.NewReader(proof)); err != nil {
		return newProofGenerationError("failed to unmarshal compliance proof; %s", err.Error())
	}

	if err := groth16.Verify(decoded, b.complianceVK, w); err != nil {
		return newProofGenerationError("compliance proof verification failed; %s", err.Error())
	}

	return nil
}

// ProveLogic generates a counter logic proof for one resource side
func (b *GnarkBackend) ProveLogic(witness *LogicWitness) ([]byte, error) {
	var selfRef, otherRef []byte
	if witness.CreatedSide {
		selfRef = witness.Self.Commitment()
		otherRef = witness.Other.Nullifier(witness.Key)
	} else {
		selfRef = witness.Self.Nullifier(witness.Key)
		otherRef = witness.Other.Commitment()
	}

	assignment := &CounterLogicCircuit{
		SelfRef:      frBigInt(selfRef),
		OtherRef:     frBigInt(otherRef),
		CreatedSide:  boolVariable(witness.CreatedSide),
		Initializing: boolVariable(witness.Initializing),

		SelfKindRef:   witness.Self.KindRefBigInt(),
		SelfQuantity:  new(big.Int).SetUint64(witness.Self.Quantity),
		SelfValue:     witness.Self.ValueBigInt(),
		SelfNonce:     witness.Self.NonceBigInt(),
		OtherKindRef:  witness.Other.KindRefBigInt(),
		OtherQuantity: new(big.Int).SetUint64(witness.Other.Quantity),
		OtherValue:    witness.Other.ValueBigInt(),
		OtherNonce:    witness.Other.NonceBigInt(),
		NullifierKey:  witness.Key.BigInt(),
	}

	w, err := frontend.NewWitness(assignment, b.curveID.ScalarField())
	if err != nil {
		return nil, newProofGenerationError("failed to resolve logic witness; %s", err.Error())
	}

	proof, err := groth16.Prove(b.logicCCS, b.logicPK, w)
	if err != nil {
		return nil, newProofGenerationError("proof backend rejected logic witness; %s", err.Error())
	}

	var buf bytes.Buffer
	if _, err := proof.WriteTo(&buf); err != nil {
		return nil, newProofGenerationError("failed to marshal logic proof; %s", err.Error())
	}

	return buf.Bytes(), nil
}

// VerifyLogic verifies a counter logic proof for one resource side given the
// public handles of each side (commitment for created, nullifier for consumed)
func (b *GnarkBackend) VerifyLogic(proof []byte, selfRef, otherRef []byte, createdSide, initializing bool) error {
	assignment := &CounterLogicCircuit{
		SelfRef:      frBigInt(selfRef),
		OtherRef:     frBigInt(otherRef),
		CreatedSide:  boolVariable(createdSide),
		Initializing: boolVariable(initializing),
	}

	w, err := frontend.NewWitness(assignment, b.curveID.ScalarField(), frontend.PublicOnly())
	if err != nil {
		return newProofGenerationError("failed to resolve public logic witness; %s", err.Error())
	}

	decoded := groth16.NewProof(b.curveID)
	if _, err := decoded.ReadFrom(bytes.NewReader(proof)); err != nil {
		return newProofGenerationError("failed to unmarshal logic proof; %s", err.Error())
	}

	if err := groth16.Verify(decoded, b.logicVK, w); err != nil {
		return newProofGenerationError("logic proof verification failed; %s", err.Error())
	}

	return nil
}

// AggregateBalance sums the given blinding witnesses and produces the
// transaction-level balance proof
func (b *GnarkBackend) AggregateBalance(witnesses []*BalanceWitness, msg []byte) (*BalanceProof, error) {
	return aggregateBalance(witnesses, msg)
}

// VerifyBalance verifies a transaction-level balance proof
func (b *GnarkBackend) VerifyBalance(proof *BalanceProof, deltaCommitments [][]byte, msg []byte) error {
	return verifyBalance(proof, deltaCommitments, msg)
}

func frBigInt(b []byte) *big.Int {
	var elem fr.Element
	elem.SetBytes(b)
	return elem.BigInt(new(big.Int))
}

func boolVariable(b bool) *big.Int {
	if b {
		return big.NewInt(1)
	}
	return big.NewInt(0)
}
