// Package fhe defines the encryption capability interface consumed by the
// tally contract. Encrypted values are opaque: the only operations available
// on them are the ones the capability service exposes, so no plaintext can
// leak through ordinary arithmetic.
package fhe

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/iden3/go-iden3-crypto/poseidon"

	"github.com/hushvote/hushvote/types"
)

// MaxValue is the upper bound of the plaintext domain. All homomorphic
// operations wrap around modulo MaxValue+1, like an 8-bit unsigned integer.
const MaxValue = 255

// Op identifies a homomorphic combination operation.
type Op int

const (
	OpAdd Op = iota
	OpSub
	OpMul
	OpEq
	OpOr
)

func (o Op) String() string {
	switch o {
	case OpAdd:
		return "add"
	case OpSub:
		return "sub"
	case OpMul:
		return "mul"
	case OpEq:
		return "eq"
	case OpOr:
		return "or"
	}
	return fmt.Sprintf("op(%d)", int(o))
}

// Handle is an opaque reference to an encrypted value. Handles are not
// secret; only the ability to decrypt them is gated.
type Handle = types.HexBytes

// BoundContext is the context an attested ciphertext is bound to at
// encryption time: the target contract and the submitting caller.
type BoundContext struct {
	Contract common.Address `json:"contract"`
	Caller   common.Address `json:"caller"`
}

// ProofInput is a single attested ciphertext inside a Proof.
type ProofInput struct {
	// Ciphertext is the serialized ElGamal ciphertext.
	Ciphertext types.HexBytes `json:"ciphertext"`
	// K is the big-endian encryption randomness, proving knowledge of the
	// plaintext to the oracle.
	K types.HexBytes `json:"k"`
}

// Proof is the client-supplied attestation binding one or more ciphertexts
// to the submitting principal and target contract.
type Proof struct {
	Inputs []ProofInput `json:"inputs"`
}

// ErrInvalidCiphertext is returned by the oracle when a proof does not
// validate against the given handle and bound context.
var ErrInvalidCiphertext = fmt.Errorf("invalid ciphertext")

// ErrAccessDenied is returned by the oracle when a principal without decrypt
// permission asks for a plaintext.
var ErrAccessDenied = fmt.Errorf("decrypt access denied")

// Oracle is the encryption/decryption capability service. The tally contract
// consumes encrypted values exclusively through this interface.
type Oracle interface {
	// VerifyAndDecode checks the attestation proof against the handle and
	// the bound context, stores the ciphertext, and returns the decoded
	// encrypted value. Fails with ErrInvalidCiphertext on proof or context
	// mismatch.
	VerifyAndDecode(handle Handle, proof *Proof, ctx BoundContext) (*EncryptedValue, error)

	// EncryptConst returns a trivial encryption of a plaintext constant,
	// reduced into the 8-bit domain.
	EncryptConst(value uint64) (*EncryptedValue, error)

	// Combine applies a homomorphic operation over two encrypted values and
	// returns a new one. Arithmetic wraps around modulo MaxValue+1; Eq and
	// Or produce an encrypted boolean (0 or 1).
	Combine(op Op, a, b *EncryptedValue) (*EncryptedValue, error)

	// GrantAccess allows the principal to decrypt the value. Additive only,
	// there is no revocation.
	GrantAccess(v *EncryptedValue, principal common.Address) error

	// MakePublic marks the value as decryptable by anyone, irrevocably.
	MakePublic(v *EncryptedValue) error

	// PublicDecrypt returns the plaintext of the handle if the caller has
	// been granted access or the value is public. Fails with ErrAccessDenied
	// otherwise.
	PublicDecrypt(handle Handle, caller common.Address) (uint64, error)
}

// EncryptedValue is a capability-bound ciphertext reference: a handle plus
// the oracle it lives in. It deliberately exposes no plaintext arithmetic.
type EncryptedValue struct {
	handle Handle
	oracle Oracle
}

// NewEncryptedValue binds a handle to an oracle. Meant to be used by Oracle
// implementations and by callers re-hydrating persisted handles.
func NewEncryptedValue(oracle Oracle, handle Handle) *EncryptedValue {
	return &EncryptedValue{handle: handle, oracle: oracle}
}

// Handle returns the opaque handle of the value.
func (v *EncryptedValue) Handle() Handle {
	return v.handle
}

// Add returns a new encrypted value of v + o (mod 256).
func (v *EncryptedValue) Add(o *EncryptedValue) (*EncryptedValue, error) {
	return v.oracle.Combine(OpAdd, v, o)
}

// Sub returns a new encrypted value of v - o (mod 256).
func (v *EncryptedValue) Sub(o *EncryptedValue) (*EncryptedValue, error) {
	return v.oracle.Combine(OpSub, v, o)
}

// Mul returns a new encrypted value of v * o (mod 256).
func (v *EncryptedValue) Mul(o *EncryptedValue) (*EncryptedValue, error) {
	return v.oracle.Combine(OpMul, v, o)
}

// Eq returns an encrypted boolean of v == o.
func (v *EncryptedValue) Eq(o *EncryptedValue) (*EncryptedValue, error) {
	return v.oracle.Combine(OpEq, v, o)
}

// Or returns an encrypted boolean of v || o, treating non-zero as true.
func (v *EncryptedValue) Or(o *EncryptedValue) (*EncryptedValue, error) {
	return v.oracle.Combine(OpOr, v, o)
}

// Allow grants decrypt access over v to the principal.
func (v *EncryptedValue) Allow(principal common.Address) error {
	return v.oracle.GrantAccess(v, principal)
}

// MakePublic marks v as decryptable by anyone.
func (v *EncryptedValue) MakePublic() error {
	return v.oracle.MakePublic(v)
}

// ComputeHandle derives the handle of a serialized ciphertext bound to a
// context: the poseidon digest of ciphertext || contract || caller.
func ComputeHandle(ciphertext []byte, ctx BoundContext) (Handle, error) {
	msg := make([]byte, 0, len(ciphertext)+2*common.AddressLength)
	msg = append(msg, ciphertext...)
	msg = append(msg, ctx.Contract.Bytes()...)
	msg = append(msg, ctx.Caller.Bytes()...)
	digest, err := poseidon.HashBytes(msg)
	if err != nil {
		return nil, fmt.Errorf("failed to hash ciphertext: %w", err)
	}
	handle := make([]byte, 32)
	digest.FillBytes(handle)
	return handle, nil
}
