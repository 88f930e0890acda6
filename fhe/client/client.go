// Package client provides the client-side half of the encryption capability:
// encrypting a plaintext under the oracle public key and producing the
// attestation proof that binds the ciphertext to a contract and caller.
package client

import (
	"fmt"
	"math/big"

	"github.com/hushvote/hushvote/crypto/ecc"
	"github.com/hushvote/hushvote/crypto/elgamal"
	"github.com/hushvote/hushvote/fhe"
)

// Encrypt encrypts value under the oracle public key, bound to the given
// context. It returns the handle to submit and the attestation proof input
// for it. Values above fhe.MaxValue do not fit the ciphertext width.
func Encrypt(value uint64, oraclePub ecc.Point, ctx fhe.BoundContext) (fhe.Handle, fhe.ProofInput, error) {
	if value > fhe.MaxValue {
		return nil, fhe.ProofInput{}, fmt.Errorf("value %d exceeds the ciphertext width", value)
	}
	c1, c2, k, err := elgamal.Encrypt(oraclePub, new(big.Int).SetUint64(value))
	if err != nil {
		return nil, fhe.ProofInput{}, err
	}
	ct := &elgamal.Ciphertext{C1: c1, C2: c2}
	serialized := ct.Serialize()
	handle, err := fhe.ComputeHandle(serialized, ctx)
	if err != nil {
		return nil, fhe.ProofInput{}, err
	}
	return handle, fhe.ProofInput{Ciphertext: serialized, K: k.Bytes()}, nil
}

// EncryptBatch encrypts a list of values bound to the same context, returning
// the handles and a single proof attesting all of them.
func EncryptBatch(values []uint64, oraclePub ecc.Point, ctx fhe.BoundContext) ([]fhe.Handle, *fhe.Proof, error) {
	handles := make([]fhe.Handle, 0, len(values))
	proof := &fhe.Proof{}
	for _, v := range values {
		handle, input, err := Encrypt(v, oraclePub, ctx)
		if err != nil {
			return nil, nil, err
		}
		handles = append(handles, handle)
		proof.Inputs = append(proof.Inputs, input)
	}
	return handles, proof, nil
}
