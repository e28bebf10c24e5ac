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
	"crypto/sha256"
	"math/big"

	bn254 "github.com/consensys/gnark-crypto/ecc/bn254"
	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
)

const balanceBlindingDST = "counter.balance.blinding.v1"

// BalanceWitness carries the blinding factor masking one action's balance
// contribution together with the quantity delta it commits to
type BalanceWitness struct {
	delta    fr.Element
	blinding fr.Element
}

// NewBalanceWitness generates a fresh blinding factor for an action pairing
// the given consumed and created quantities
func NewBalanceWitness(consumedQuantity, createdQuantity uint64) (*BalanceWitness, error) {
	var blinding fr.Element
	if _, err := blinding.SetRandom(); err != nil {
		return nil, newProofGenerationError("failed to generate balance blinding factor; %s", err.Error())
	}

	var consumed, created, delta fr.Element
	consumed.SetUint64(consumedQuantity)
	created.SetUint64(createdQuantity)
	delta.Sub(&consumed, &created)

	return &BalanceWitness{
		delta:    delta,
		blinding: blinding,
	}, nil
}

// Commitment returns the compressed Pedersen commitment delta*G + blinding*H
// masking this action's balance contribution
func (w *BalanceWitness) Commitment() ([]byte, error) {
	generator, blindingBase, err := balanceBases()
	if err != nil {
		return nil, err
	}

	var valueTerm, blindingTerm, commitment bn254.G1Affine
	valueTerm.ScalarMultiplication(generator, w.delta.BigInt(new(big.Int)))
	blindingTerm.ScalarMultiplication(blindingBase, w.blinding.BigInt(new(big.Int)))
	commitment.Add(&valueTerm, &blindingTerm)

	buf := commitment.Bytes()
	return buf[:], nil
}

// BalanceProof is a Schnorr-style binding signature over the transaction by
// the sum of per-action blinding factors; it attests the transaction's net
// value change is zero
type BalanceProof struct {
	Commitment []byte `json:"commitment"`
	Response   []byte `json:"response"`
}

func balanceBases() (*bn254.G1Affine, *bn254.G1Affine, error) {
	_, _, generator, _ := bn254.Generators()

	blindingBase, err := bn254.HashToG1([]byte(balanceBlindingDST), []byte(balanceBlindingDST))
	if err != nil {
		return nil, nil, newProofGenerationError("failed to derive balance blinding base; %s", err.Error())
	}

	return &generator, &blindingBase, nil
}

func balanceChallenge(commitment []byte, msg []byte) fr.Element {
	digest := sha256.New()
	digest.Write(commitment)
	digest.Write(msg)

	var challenge fr.Element
	challenge.SetBytes(digest.Sum(nil))
	return challenge
}

// aggregateBalance sums the blinding witnesses across all actions and signs
// the transaction's binding message with the total, producing the aggregate
// balance proof
func aggregateBalance(witnesses []*BalanceWitness, msg []byte) (*BalanceProof, error) {
	if len(witnesses) == 0 {
		return nil, newProofGenerationError("failed to aggregate balance proof; no witnesses resolved")
	}

	_, blindingBase, err := balanceBases()
	if err != nil {
		return nil, err
	}

	var total fr.Element
	for _, witness := range witnesses {
		total.Add(&total, &witness.blinding)
	}

	var nonce fr.Element
	if _, err := nonce.SetRandom(); err != nil {
		return nil, newProofGenerationError("failed to generate balance proof nonce; %s", err.Error())
	}

	var commitment bn254.G1Affine
	commitment.ScalarMultiplication(blindingBase, nonce.BigInt(new(big.Int)))
	commitmentBytes := commitment.Bytes()

	challenge := balanceChallenge(commitmentBytes[:], msg)

	var response fr.Element
	response.Mul(&challenge, &total)
	response.Add(&response, &nonce)
	responseBytes := response.Bytes()

	return &BalanceProof{
		Commitment: commitmentBytes[:],
		Response:   responseBytes[:],
	}, nil
}

// verifyBalance checks the aggregate balance proof against the sum of the
// transaction's per-action delta commitments: the sum must be a commitment to
// zero, i.e., a multiple of the blinding base known to the signer
func verifyBalance(proof *BalanceProof, deltaCommitments [][]byte, msg []byte) error {
	if proof == nil {
		return newProofGenerationError("failed to verify balance proof; no proof resolved")
	}

	_, blindingBase, err := balanceBases()
	if err != nil {
		return err
	}

	var sum bn254.G1Affine
	for _, delta := range deltaCommitments {
		var point bn254.G1Affine
		if _, err := point.SetBytes(delta); err != nil {
			return newProofGenerationError("failed to parse delta commitment; %s", err.Error())
		}
		sum.Add(&sum, &point)
	}

	var commitment bn254.G1Affine
	if _, err := commitment.SetBytes(proof.Commitment); err != nil {
		return newProofGenerationError("failed to parse balance proof commitment; %s", err.Error())
	}

	var response fr.Element
	response.SetBytes(proof.Response)

	challenge := balanceChallenge(proof.Commitment, msg)

	var lhs, challengeTerm, rhs bn254.G1Affine
	lhs.ScalarMultiplication(blindingBase, response.BigInt(new(big.Int)))
	challengeTerm.ScalarMultiplication(&sum, challenge.BigInt(new(big.Int)))
	rhs.Add(&commitment, &challengeTerm)

	if !lhs.Equal(&rhs) {
		return newProofGenerationError("balance proof verification failed; transaction does not net to zero")
	}

	return nil
}
