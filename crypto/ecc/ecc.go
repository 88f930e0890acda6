// Package ecc defines the elliptic curve group interface used by the
// homomorphic encryption layer.
package ecc

import "math/big"

// Point represents the affine coordinates of a point on an elliptic curve
// and provides the group operations needed by the ElGamal cryptosystem.
type Point interface {
	// New returns a new point on the same curve, set to the identity.
	New() Point

	// Order returns the order of the curve subgroup.
	Order() *big.Int

	// Add sets the receiver to a + b.
	Add(a, b Point)

	// SafeAdd sets the receiver to a + b, holding a lock on the receiver
	// for the duration of the operation.
	SafeAdd(a, b Point)

	// ScalarMult sets the receiver to scalar * a.
	ScalarMult(a Point, scalar *big.Int)

	// ScalarBaseMult sets the receiver to scalar * G, where G is the
	// subgroup generator.
	ScalarBaseMult(scalar *big.Int)

	// Neg sets the receiver to -a.
	Neg(a Point)

	// Set sets the receiver to the value of a.
	Set(a Point)

	// SetZero sets the receiver to the identity element.
	SetZero()

	// SetGenerator sets the receiver to the subgroup generator.
	SetGenerator()

	// Equal reports whether the receiver and a are the same group element.
	Equal(a Point) bool

	// Marshal serializes the point into a byte slice.
	Marshal() []byte

	// Unmarshal deserializes a byte slice into the receiver. The input must
	// represent a valid curve point.
	Unmarshal(buf []byte) error

	// Point returns the X and Y affine coordinates.
	Point() (*big.Int, *big.Int)

	// String returns a human-readable representation, usable as a map key.
	String() string
}
