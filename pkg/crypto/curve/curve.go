// Copyright 2025 Certen Protocol
//
// BN254 Point Conversions and Hash-to-Curve
// Bridges the contract wire encoding (uint256 coordinates, (0,0) = point at
// infinity) and gnark-crypto affine points, and implements the
// try-and-increment hash-to-curve the EigenDA contracts use for message
// points.

package curve

import (
	"math/big"
	"sync"

	bn254 "github.com/consensys/gnark-crypto/ecc/bn254"
	"github.com/consensys/gnark-crypto/ecc/bn254/fp"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/certen/eigenda-cert-validator/pkg/cert"
)

var (
	initOnce sync.Once

	// Generator points, initialized once
	g1Gen bn254.G1Affine
	g2Gen bn254.G2Affine

	// (p+1)/4 for the square-root candidate y = beta^((p+1)/4); valid
	// because the BN254 base field modulus is congruent to 3 mod 4
	sqrtExponent big.Int

	curveB fp.Element
)

// Initialize sets up the package-level curve constants. Safe to call
// multiple times; all entry points call it on first use.
func Initialize() {
	initOnce.Do(func() {
		_, _, g1Gen, g2Gen = bn254.Generators()

		modulus := fp.Modulus()
		sqrtExponent.Add(modulus, big.NewInt(1))
		sqrtExponent.Rsh(&sqrtExponent, 2)

		curveB.SetUint64(3)
	})
}

// G1Generator returns the G1 generator point.
func G1Generator() bn254.G1Affine {
	Initialize()
	return g1Gen
}

// G2Generator returns the G2 generator point.
func G2Generator() bn254.G2Affine {
	Initialize()
	return g2Gen
}

// G1FromPoint converts a wire point to an affine point. (0, 0) maps to the
// point at infinity. Coordinates are reduced modulo the base field, matching
// the contract-side behavior of trusting wire coordinates as field elements.
func G1FromPoint(p cert.G1Point) bn254.G1Affine {
	var affine bn254.G1Affine
	if isZero(p.X) && isZero(p.Y) {
		return affine
	}
	affine.X.SetBytes(coordBytes(p.X))
	affine.Y.SetBytes(coordBytes(p.Y))
	return affine
}

// PointFromG1 converts an affine point back to the wire encoding.
func PointFromG1(affine bn254.G1Affine) cert.G1Point {
	if affine.IsInfinity() {
		return cert.ZeroG1()
	}
	return cert.G1Point{
		X: coordBig(affine.X),
		Y: coordBig(affine.Y),
	}
}

// G2FromPoint converts a wire G2 point to an affine point. All-zero
// coordinates map to the point at infinity.
func G2FromPoint(p cert.G2Point) bn254.G2Affine {
	var affine bn254.G2Affine
	if isCoordZero(p.X) && isCoordZero(p.Y) {
		return affine
	}
	affine.X.A0.SetBytes(coordBytes(coordAt(p.X, 0)))
	affine.X.A1.SetBytes(coordBytes(coordAt(p.X, 1)))
	affine.Y.A0.SetBytes(coordBytes(coordAt(p.Y, 0)))
	affine.Y.A1.SetBytes(coordBytes(coordAt(p.Y, 1)))
	return affine
}

// PointFromG2 converts an affine G2 point back to the wire encoding.
func PointFromG2(affine bn254.G2Affine) cert.G2Point {
	if affine.IsInfinity() {
		return cert.ZeroG2()
	}
	return cert.G2Point{
		X: []*big.Int{coordBig(affine.X.A0), coordBig(affine.X.A1)},
		Y: []*big.Int{coordBig(affine.Y.A0), coordBig(affine.Y.A1)},
	}
}

// PointToHash derives the 32-byte operator identifier of a G1 public key:
// keccak256(x || y) over the 32-byte big-endian coordinates.
func PointToHash(p cert.G1Point) [32]byte {
	var buf [64]byte
	copy(buf[:32], coordBytes(p.X))
	copy(buf[32:], coordBytes(p.Y))
	var hash [32]byte
	copy(hash[:], crypto.Keccak256(buf[:]))
	return hash
}

// AffineToHash derives the operator identifier of an affine G1 point.
func AffineToHash(affine bn254.G1Affine) [32]byte {
	return PointToHash(PointFromG1(affine))
}

// HashToPoint maps a 32-byte message hash onto G1 with the contracts'
// try-and-increment construction: x starts at the hash reduced into the base
// field and increments until x^3 + 3 is a quadratic residue.
func HashToPoint(msgHash [32]byte) bn254.G1Affine {
	Initialize()

	var x fp.Element
	x.SetBytes(msgHash[:])

	var one fp.Element
	one.SetOne()

	for {
		beta := betaFromX(x)

		var y fp.Element
		y.Exp(beta, &sqrtExponent)

		var ySquared fp.Element
		ySquared.Square(&y)
		if ySquared.Equal(&beta) {
			var point bn254.G1Affine
			point.X = x
			point.Y = y
			return point
		}

		x.Add(&x, &one)
	}
}

// betaFromX computes x^3 + 3.
func betaFromX(x fp.Element) fp.Element {
	var beta fp.Element
	beta.Square(&x)
	beta.Mul(&beta, &x)
	beta.Add(&beta, &curveB)
	return beta
}

// FpToBytes renders a base field element as 32 big-endian bytes.
func FpToBytes(e fp.Element) [32]byte {
	return e.Bytes()
}

func coordAt(coords []*big.Int, i int) *big.Int {
	if i >= len(coords) {
		return nil
	}
	return coords[i]
}

func coordBytes(v *big.Int) []byte {
	buf := make([]byte, 32)
	if v != nil {
		v.FillBytes(buf)
	}
	return buf
}

func coordBig(e fp.Element) *big.Int {
	bytes := e.Bytes()
	return new(big.Int).SetBytes(bytes[:])
}

func isZero(v *big.Int) bool {
	return v == nil || v.Sign() == 0
}

func isCoordZero(coords []*big.Int) bool {
	for _, c := range coords {
		if !isZero(c) {
			return false
		}
	}
	return true
}
