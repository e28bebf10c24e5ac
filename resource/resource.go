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
	"crypto/sha256"
	"fmt"
	"math/big"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/consensys/gnark-crypto/ecc/bn254/fr/mimc"
	"github.com/provideplatform/counter/common"
)

// NonceSize is the size in bytes of the caller-chosen resource nonce
const NonceSize = 32

// CounterValueSize is the size in bytes of the little-endian counter value
// occupying the head of the resource value payload
const CounterValueSize = 16

// NullifierKeySize is the size in bytes of the private nullifier key material
const NullifierKeySize = 32

var counterKindRef []byte

func init() {
	digest := sha256.Sum256([]byte("counter"))
	var elem fr.Element
	elem.SetBytes(digest[:])
	kind := elem.Bytes()
	counterKindRef = kind[:]
}

// CounterKindRef returns the canonical kind reference for the counter resource kind
func CounterKindRef() []byte {
	kind := make([]byte, len(counterKindRef))
	copy(kind, counterKindRef)
	return kind
}

// NullifierKey is the private value bound one-to-one with a resource at creation
// time; it is required to compute the resource nullifier and to authorize
// consuming the resource. It never leaves process memory and is never
// serialized into a submitted transaction.
type NullifierKey struct {
	key []byte
}

// NewNullifierKey generates fresh nullifier key material
func NewNullifierKey() (*NullifierKey, error) {
	key, err := common.RandomBytes(NullifierKeySize)
	if err != nil {
		return nil, fmt.Errorf("failed to generate nullifier key; %s", err.Error())
	}
	return &NullifierKey{key: key}, nil
}

// BigInt returns the key material reduced into the proving field
func (k *NullifierKey) BigInt() *big.Int {
	var elem fr.Element
	elem.SetBytes(k.key)
	return elem.BigInt(new(big.Int))
}

// MarshalJSON prevents nullifier key material from ever being serialized
func (k *NullifierKey) MarshalJSON() ([]byte, error) {
	return nil, fmt.Errorf("refusing to serialize nullifier key material")
}

// Resource is an opaque, content-addressed record representing one version of
// the counter and its associated metadata. Two resources with identical field
// values produce identical commitments; freshness is guaranteed by injecting a
// new nonce on every transition.
type Resource struct {
	KindRef   []byte `json:"kind_ref"`
	Quantity  uint64 `json:"quantity"`
	Nonce     []byte `json:"nonce"`
	Value     []byte `json:"value"`
	Ephemeral bool   `json:"ephemeral"`
}

// NewCounter synthesizes a counter resource carrying the given numeric value
// and a fresh, unpredictable nonce
func NewCounter(value *big.Int, ephemeral bool) (*Resource, error) {
	if value.Sign() < 0 || value.BitLen() > CounterValueSize*8 {
		return nil, fmt.Errorf("counter value out of range: %s", value.String())
	}

	nonce, err := common.RandomBytes(NonceSize)
	if err != nil {
		return nil, fmt.Errorf("failed to generate resource nonce; %s", err.Error())
	}

	payload := make([]byte, CounterValueSize)
	valueBytes := value.Bytes() // big-endian
	for i := range valueBytes {
		payload[i] = valueBytes[len(valueBytes)-1-i]
	}

	return &Resource{
		KindRef:   CounterKindRef(),
		Quantity:  1,
		Nonce:     nonce,
		Value:     payload,
		Ephemeral: ephemeral,
	}, nil
}

// CounterValue decodes the little-endian counter value from the head of the
// resource value payload
func (r *Resource) CounterValue() *big.Int {
	head := r.Value
	if len(head) > CounterValueSize {
		head = head[:CounterValueSize]
	}
	buf := make([]byte, len(head))
	for i := range head {
		buf[len(head)-1-i] = head[i]
	}
	return new(big.Int).SetBytes(buf)
}

// KindRefBigInt returns the kind reference reduced into the proving field
func (r *Resource) KindRefBigInt() *big.Int {
	var elem fr.Element
	elem.SetBytes(r.KindRef)
	return elem.BigInt(new(big.Int))
}

// NonceBigInt returns the nonce reduced into the proving field
func (r *Resource) NonceBigInt() *big.Int {
	var elem fr.Element
	elem.SetBytes(r.Nonce)
	return elem.BigInt(new(big.Int))
}

// ValueBigInt returns the value payload interpreted little-endian and reduced
// into the proving field; for counter resources this is the counter value
func (r *Resource) ValueBigInt() *big.Int {
	buf := make([]byte, len(r.Value))
	for i := range r.Value {
		buf[len(r.Value)-1-i] = r.Value[i]
	}
	var elem fr.Element
	elem.SetBytes(buf)
	return elem.BigInt(new(big.Int))
}

// Commitment returns the deterministic hash over all resource fields,
// publishing the resource's existence without revealing its consumption
func (r *Resource) Commitment() []byte {
	hasher := mimc.NewMiMC()
	hasher.Write(fieldBytes(r.KindRefBigInt()))
	hasher.Write(fieldBytes(new(big.Int).SetUint64(r.Quantity)))
	hasher.Write(fieldBytes(r.ValueBigInt()))
	hasher.Write(fieldBytes(r.NonceBigInt()))
	return hasher.Sum(nil)
}

// Nullifier returns the deterministic hash proving the resource has been
// consumed, computable only with the resource's nullifier key
func (r *Resource) Nullifier(key *NullifierKey) []byte {
	hasher := mimc.NewMiMC()
	hasher.Write(fieldBytes(key.BigInt()))
	hasher.Write(r.Commitment())
	return hasher.Sum(nil)
}

// Equal returns true if the given resource carries identical field values
func (r *Resource) Equal(other *Resource) bool {
	return r.Quantity == other.Quantity &&
		r.Ephemeral == other.Ephemeral &&
		bytes.Equal(r.KindRef, other.KindRef) &&
		bytes.Equal(r.Nonce, other.Nonce) &&
		bytes.Equal(r.Value, other.Value)
}

func fieldBytes(i *big.Int) []byte {
	var elem fr.Element
	elem.SetBigInt(i)
	buf := elem.Bytes()
	return buf[:]
}
