// Package bjj implements the ecc.Point interface over the BabyJubJub curve,
// backed by the gnark-crypto twisted Edwards arithmetic.
package bjj

import (
	"fmt"
	"math/big"
	"sync"

	babyjubjub "github.com/consensys/gnark-crypto/ecc/bn254/twistededwards"
	"github.com/hushvote/hushvote/crypto/ecc"
)

var params babyjubjub.CurveParams

func init() {
	params = babyjubjub.GetEdwardsCurve()
}

// BJJ is the affine representation of a BabyJubJub group element.
type BJJ struct {
	inner *babyjubjub.PointAffine
	lock  sync.Mutex
}

// New returns a new BJJ point set to the identity element.
func New() ecc.Point {
	p := &BJJ{inner: new(babyjubjub.PointAffine)}
	p.SetZero()
	return p
}

// New returns a new point on the same curve, set to the identity.
func (g *BJJ) New() ecc.Point {
	return New()
}

// Order returns the order of the BabyJubJub subgroup.
func (g *BJJ) Order() *big.Int {
	return new(big.Int).Set(&params.Order)
}

// Add sets g to a + b.
func (g *BJJ) Add(a, b ecc.Point) {
	g.inner.Add(a.(*BJJ).inner, b.(*BJJ).inner)
}

// SafeAdd sets g to a + b, locking g during the operation.
func (g *BJJ) SafeAdd(a, b ecc.Point) {
	g.lock.Lock()
	defer g.lock.Unlock()
	g.Add(a, b)
}

// ScalarMult sets g to scalar * a.
func (g *BJJ) ScalarMult(a ecc.Point, scalar *big.Int) {
	g.inner.ScalarMultiplication(a.(*BJJ).inner, scalar)
}

// ScalarBaseMult sets g to scalar * G.
func (g *BJJ) ScalarBaseMult(scalar *big.Int) {
	g.SetGenerator()
	g.ScalarMult(g, scalar)
}

// Neg sets g to -a.
func (g *BJJ) Neg(a ecc.Point) {
	g.inner.Neg(a.(*BJJ).inner)
}

// Set sets g to the value of a.
func (g *BJJ) Set(a ecc.Point) {
	g.inner.Set(a.(*BJJ).inner)
}

// SetZero sets g to the identity element (0, 1).
func (g *BJJ) SetZero() {
	g.inner.X.SetZero()
	g.inner.Y.SetOne()
}

// SetGenerator sets g to the subgroup generator.
func (g *BJJ) SetGenerator() {
	g.inner.Set(&params.Base)
}

// Equal reports whether g and a are the same group element.
func (g *BJJ) Equal(a ecc.Point) bool {
	return g.inner.Equal(a.(*BJJ).inner)
}

// Marshal serializes the point into a 32-byte slice.
func (g *BJJ) Marshal() []byte {
	return g.inner.Marshal()
}

// Unmarshal deserializes a byte slice into g.
func (g *BJJ) Unmarshal(buf []byte) error {
	if g.inner == nil {
		g.inner = new(babyjubjub.PointAffine)
	}
	if err := g.inner.Unmarshal(buf); err != nil {
		return err
	}
	if !g.inner.IsOnCurve() {
		return fmt.Errorf("point is not on the BabyJubJub curve")
	}
	return nil
}

// Point returns the affine X and Y coordinates.
func (g *BJJ) Point() (*big.Int, *big.Int) {
	x, y := new(big.Int), new(big.Int)
	g.inner.X.BigInt(x)
	g.inner.Y.BigInt(y)
	return x, y
}

// String returns the coordinates as a "x,y" decimal string.
func (g *BJJ) String() string {
	x, y := g.Point()
	return fmt.Sprintf("%s,%s", x.String(), y.String())
}
