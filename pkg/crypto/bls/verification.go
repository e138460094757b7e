// Copyright 2025 Certen Protocol
//
// BLS Signature Verification (BN254)
// Pairing-based verification of the aggregate signature carried by an
// EigenDA certificate. The Fiat-Shamir challenge gamma binds the signature
// to the full public key material, hardening the aggregate setting against
// rogue-public-key attacks.
//
// Accepts iff e(sigma + gamma*apk_g1, -G2) * e(H(m) + gamma*G1, apk_g2) == 1.

package bls

import (
	"math/big"
	"sync"

	bn254 "github.com/consensys/gnark-crypto/ecc/bn254"
	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/certen/eigenda-cert-validator/pkg/crypto/curve"
)

var (
	negG2Once sync.Once
	negG2Gen  bn254.G2Affine
)

func negG2Generator() bn254.G2Affine {
	negG2Once.Do(func() {
		gen := curve.G2Generator()
		negG2Gen.Neg(&gen)
	})
	return negG2Gen
}

// Verify checks the aggregate BLS signature sigma over msgHash against the
// aggregate public key pair (apkG1, apkG2). Returns false if any input point
// is the identity.
func Verify(msgHash [32]byte, apkG1 bn254.G1Affine, apkG2 bn254.G2Affine, sigma bn254.G1Affine) bool {
	gamma, ok := computeGamma(msgHash, apkG1, apkG2, sigma)
	if !ok {
		return false
	}

	var gammaBig big.Int
	gamma.BigInt(&gammaBig)

	msgPoint := curve.HashToPoint(msgHash)

	// a1 = sigma + gamma * apk_g1
	var gammaApk bn254.G1Affine
	gammaApk.ScalarMultiplication(&apkG1, &gammaBig)
	var a1Jac bn254.G1Jac
	a1Jac.FromAffine(&sigma)
	var gammaApkJac bn254.G1Jac
	gammaApkJac.FromAffine(&gammaApk)
	a1Jac.AddAssign(&gammaApkJac)
	var a1 bn254.G1Affine
	a1.FromJacobian(&a1Jac)

	// b1 = H(m) + gamma * G1
	g1 := curve.G1Generator()
	var gammaG1 bn254.G1Affine
	gammaG1.ScalarMultiplication(&g1, &gammaBig)
	var b1Jac bn254.G1Jac
	b1Jac.FromAffine(&msgPoint)
	var gammaG1Jac bn254.G1Jac
	gammaG1Jac.FromAffine(&gammaG1)
	b1Jac.AddAssign(&gammaG1Jac)
	var b1 bn254.G1Affine
	b1.FromJacobian(&b1Jac)

	ok, err := bn254.PairingCheck(
		[]bn254.G1Affine{a1, b1},
		[]bn254.G2Affine{negG2Generator(), apkG2},
	)
	if err != nil {
		return false
	}
	return ok
}

// computeGamma derives the Fiat-Shamir challenge
// keccak256(msgHash || apk_g1 || apk_g2 || sigma) reduced into the scalar
// field. Returns false if any point is the identity.
func computeGamma(msgHash [32]byte, apkG1 bn254.G1Affine, apkG2 bn254.G2Affine, sigma bn254.G1Affine) (fr.Element, bool) {
	var gamma fr.Element
	if apkG1.IsInfinity() || apkG2.IsInfinity() || sigma.IsInfinity() {
		return gamma, false
	}

	apkG1X := curve.FpToBytes(apkG1.X)
	apkG1Y := curve.FpToBytes(apkG1.Y)
	apkG2X0 := curve.FpToBytes(apkG2.X.A0)
	apkG2X1 := curve.FpToBytes(apkG2.X.A1)
	apkG2Y0 := curve.FpToBytes(apkG2.Y.A0)
	apkG2Y1 := curve.FpToBytes(apkG2.Y.A1)
	sigmaX := curve.FpToBytes(sigma.X)
	sigmaY := curve.FpToBytes(sigma.Y)

	digest := crypto.Keccak256(
		msgHash[:],
		apkG1X[:],
		apkG1Y[:],
		apkG2X0[:],
		apkG2X1[:],
		apkG2Y0[:],
		apkG2Y1[:],
		sigmaX[:],
		sigmaY[:],
	)

	gamma.SetBytes(digest)
	return gamma, true
}
