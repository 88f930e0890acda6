// Package elgamal implements exponential ElGamal encryption over an abstract
// elliptic curve group. Messages are encoded in the exponent, which makes the
// scheme additively homomorphic: adding two ciphertexts yields a ciphertext
// of the sum of the plaintexts. Decryption requires solving a discrete log,
// so the plaintext domain must stay small.
package elgamal

import (
	"crypto/rand"
	"fmt"
	"math"
	"math/big"

	"github.com/vocdoni/arbo"

	"github.com/hushvote/hushvote/crypto/ecc"
)

// RandK generates a random scalar for encryption.
func RandK() (*big.Int, error) {
	kBytes := make([]byte, 20)
	if _, err := rand.Read(kBytes); err != nil {
		return nil, fmt.Errorf("failed to generate random k: %w", err)
	}
	k := new(big.Int).SetBytes(kBytes)
	return arbo.BigToFF(arbo.BN254BaseField, k), nil
}

// GenerateKey generates a new ElGamal keypair on the given curve.
func GenerateKey(curve ecc.Point) (publicKey ecc.Point, privateKey *big.Int, err error) {
	d, err := rand.Int(rand.Reader, curve.Order())
	if err != nil {
		return nil, nil, fmt.Errorf("failed to generate private key scalar: %w", err)
	}
	if d.Sign() == 0 {
		d = big.NewInt(1) // avoid zero private keys
	}
	publicKey = curve.New()
	publicKey.SetGenerator()
	publicKey.ScalarMult(publicKey, d)
	return publicKey, d, nil
}

// Encrypt encrypts msg under the public key with a fresh random k. It returns
// the two ciphertext points and the k used, so callers can later prove
// knowledge of the encryption randomness.
func Encrypt(publicKey ecc.Point, msg *big.Int) (ecc.Point, ecc.Point, *big.Int, error) {
	k, err := RandK()
	if err != nil {
		return nil, nil, nil, err
	}
	c1, c2, err := EncryptWithK(publicKey, msg, k)
	if err != nil {
		return nil, nil, nil, err
	}
	return c1, c2, k, nil
}

// EncryptWithK encrypts msg under the public key using the provided scalar k.
func EncryptWithK(pubKey ecc.Point, msg, k *big.Int) (ecc.Point, ecc.Point, error) {
	msg = new(big.Int).Mod(msg, pubKey.Order())
	// C1 = k * G
	c1 := pubKey.New()
	c1.ScalarBaseMult(k)
	// s = k * pubKey
	s := pubKey.New()
	s.ScalarMult(pubKey, k)
	// M = msg * G
	m := pubKey.New()
	m.ScalarBaseMult(msg)
	// C2 = M + s
	c2 := pubKey.New()
	c2.Add(m, s)
	return c1, c2, nil
}

// Decrypt recovers the plaintext of (c1, c2) using the private key. The
// message must lie in [0, maxMessage], otherwise an error is returned.
func Decrypt(privateKey *big.Int, c1, c2 ecc.Point, maxMessage uint64) (*big.Int, error) {
	// M = c2 - d*c1
	dC1 := c1.New()
	dC1.ScalarMult(c1, privateKey)
	dC1.Neg(dC1)

	M := c2.New()
	M.Set(c2)
	M.Add(M, dC1)

	G := c1.New()
	G.SetGenerator()
	msg, err := babyStepGiantStep(M, G, maxMessage)
	if err != nil {
		return nil, fmt.Errorf("failed to find discrete log: %w", err)
	}
	return msg, nil
}

// babyStepGiantStep solves M = x*G for x in [0, maxMessage].
func babyStepGiantStep(M, G ecc.Point, maxMessage uint64) (*big.Int, error) {
	mSqrt := uint64(math.Sqrt(float64(maxMessage))) + 1

	babySteps := make(map[string]uint64, mSqrt)
	babyStep := M.New()
	babyStep.SetZero()
	for j := uint64(0); j < mSqrt; j++ {
		babySteps[babyStep.String()] = j
		babyStep.Add(babyStep, G)
	}

	// c = -mSqrt * G
	c := M.New()
	c.ScalarBaseMult(new(big.Int).SetUint64(mSqrt))
	c.Neg(c)

	giantStep := M.New()
	giantStep.Set(M)
	for i := uint64(0); i <= mSqrt; i++ {
		if j, found := babySteps[giantStep.String()]; found {
			return new(big.Int).SetUint64(i*mSqrt + j), nil
		}
		giantStep.Add(giantStep, c)
	}
	return nil, fmt.Errorf("message out of range for discrete log search")
}

// CheckK reports whether k is the randomness used to produce c1, by checking
// c1 == k * G. It does not require decrypting the message.
func CheckK(c1 ecc.Point, k *big.Int) bool {
	kG := c1.New()
	kG.ScalarBaseMult(k)
	return kG.Equal(c1)
}
