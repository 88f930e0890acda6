package elgamal

import (
	"bytes"
	"fmt"
	"math/big"

	"github.com/hushvote/hushvote/crypto/ecc"
)

// sizePoint is the marshaled size of a single curve point.
const sizePoint = 32

// SizeCiphertext is the marshaled size of a Ciphertext.
const SizeCiphertext = 2 * sizePoint

// Ciphertext is an ElGamal encrypted message with additive homomorphic
// properties. It encapsulates the two curve points of a ciphertext.
type Ciphertext struct {
	C1 ecc.Point `json:"c1"`
	C2 ecc.Point `json:"c2"`
}

// NewCiphertext creates a zero Ciphertext on the same curve as the given
// point. The zero ciphertext decrypts to zero and is the neutral element of
// ciphertext addition.
func NewCiphertext(curve ecc.Point) *Ciphertext {
	return &Ciphertext{C1: curve.New(), C2: curve.New()}
}

// Encrypt encrypts a message under the public key. The randomness k can be
// provided, or nil to generate a fresh one.
func (z *Ciphertext) Encrypt(message *big.Int, publicKey ecc.Point, k *big.Int) (*Ciphertext, error) {
	var err error
	if k == nil {
		if k, err = RandK(); err != nil {
			return nil, fmt.Errorf("elgamal encryption failed: %w", err)
		}
	}
	c1, c2, err := EncryptWithK(publicKey, message, k)
	if err != nil {
		return nil, fmt.Errorf("elgamal encryption failed: %w", err)
	}
	z.C1 = c1
	z.C2 = c2
	return z, nil
}

// Add sets z to x + y and returns z.
func (z *Ciphertext) Add(x, y *Ciphertext) *Ciphertext {
	z.C1.SafeAdd(x.C1, y.C1)
	z.C2.SafeAdd(x.C2, y.C2)
	return z
}

// Neg sets z to the negation of x and returns z. Adding the negation is a
// homomorphic subtraction.
func (z *Ciphertext) Neg(x *Ciphertext) *Ciphertext {
	z.C1.Neg(x.C1)
	z.C2.Neg(x.C2)
	return z
}

// Decrypt recovers the plaintext of z using the private key.
func (z *Ciphertext) Decrypt(privateKey *big.Int, maxMessage uint64) (*big.Int, error) {
	return Decrypt(privateKey, z.C1, z.C2, maxMessage)
}

// Serialize returns a slice of SizeCiphertext bytes representing the two
// marshaled points.
func (z *Ciphertext) Serialize() []byte {
	var buf bytes.Buffer
	buf.Write(z.C1.Marshal())
	buf.Write(z.C2.Marshal())
	return buf.Bytes()
}

// Deserialize reconstructs a Ciphertext from a slice of bytes produced by
// Serialize. The receiver points must already be set to the right curve.
func (z *Ciphertext) Deserialize(data []byte) error {
	if len(data) != SizeCiphertext {
		return fmt.Errorf("invalid input length: got %d bytes, expected %d bytes", len(data), SizeCiphertext)
	}
	if err := z.C1.Unmarshal(data[:sizePoint]); err != nil {
		return err
	}
	return z.C2.Unmarshal(data[sizePoint:])
}

// String returns a string representation of the ciphertext points.
func (z *Ciphertext) String() string {
	if z == nil || z.C1 == nil || z.C2 == nil {
		return "{C1: nil, C2: nil}"
	}
	return fmt.Sprintf("{C1: %s, C2: %s}", z.C1.String(), z.C2.String())
}
