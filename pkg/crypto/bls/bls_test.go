// Copyright 2025 Certen Protocol
//
// BLS Aggregation and Verification Tests

package bls

import (
	"errors"
	"math/big"
	"testing"

	bn254 "github.com/consensys/gnark-crypto/ecc/bn254"

	"github.com/certen/eigenda-cert-validator/pkg/bitmap"
	"github.com/certen/eigenda-cert-validator/pkg/crypto/curve"
)

func pk(n uint64) bn254.G1Affine {
	var out bn254.G1Affine
	gen := curve.G1Generator()
	out.ScalarMultiplication(&gen, new(big.Int).SetUint64(n+1))
	return out
}

func sumG1(points ...bn254.G1Affine) bn254.G1Affine {
	var acc bn254.G1Jac
	for i := range points {
		var jac bn254.G1Jac
		jac.FromAffine(&points[i])
		acc.AddAssign(&jac)
	}
	var out bn254.G1Affine
	out.FromJacobian(&acc)
	return out
}

// Three quorums [0, 2] signed; six operators with membership bitmaps
// 101, 110, 111, 100, 001, 000; the first three are non-signers. The
// effective signers' APK must reduce to PK3 + PK4.
func TestAggregateSignersApk_ThreeQuorumsSixOperators(t *testing.T) {
	signedQuorums := []byte{0, 2}

	nonSignerPks := []bn254.G1Affine{pk(0), pk(1), pk(2)}
	nonSignerBitmaps := []bitmap.Bitmap{
		bitmap.New([4]uint64{5, 0, 0, 0}), // 1 0 1
		bitmap.New([4]uint64{6, 0, 0, 0}), // 1 1 0
		bitmap.New([4]uint64{7, 0, 0, 0}), // 1 1 1
	}

	quorumApks := []bn254.G1Affine{
		sumG1(pk(0), pk(2), pk(4)),        // quorum 0: operators 0, 2, 4
		sumG1(pk(0), pk(1), pk(2), pk(3)), // quorum 2: operators 0, 1, 2, 3
	}

	signersApk, err := AggregateSignersApk(255, signedQuorums, quorumApks, nonSignerPks, nonSignerBitmaps)
	if err != nil {
		t.Fatalf("aggregation failed: %v", err)
	}

	expected := sumG1(pk(3), pk(4))
	if !signersApk.Equal(&expected) {
		t.Error("signers APK mismatch: expected PK3 + PK4")
	}
}

// When every operator required to sign is a non-signer, the aggregation
// cancels to the identity.
func TestAggregateSignersApk_FullCancellation(t *testing.T) {
	signedQuorums := []byte{0}

	nonSignerPks := []bn254.G1Affine{pk(0), pk(1)}
	membership := bitmap.New([4]uint64{1, 0, 0, 0})
	nonSignerBitmaps := []bitmap.Bitmap{membership, membership}

	quorumApks := []bn254.G1Affine{sumG1(pk(0), pk(1))}

	signersApk, err := AggregateSignersApk(255, signedQuorums, quorumApks, nonSignerPks, nonSignerBitmaps)
	if err != nil {
		t.Fatalf("aggregation failed: %v", err)
	}
	if !signersApk.IsInfinity() {
		t.Error("full cancellation should yield the identity point")
	}
}

func TestAggregateSignersApk_QuorumOutOfBounds(t *testing.T) {
	_, err := AggregateSignersApk(1, []byte{0, 1}, make([]bn254.G1Affine, 2), nil, nil)
	if !errors.Is(err, bitmap.ErrIndexGreaterThanOrEqualToUpperBound) {
		t.Errorf("expected ErrIndexGreaterThanOrEqualToUpperBound, got %v", err)
	}
}

func TestVerify_Roundtrip(t *testing.T) {
	sk := new(big.Int).SetUint64(42)

	g1 := curve.G1Generator()
	g2 := curve.G2Generator()

	var apkG1 bn254.G1Affine
	apkG1.ScalarMultiplication(&g1, sk)
	var apkG2 bn254.G2Affine
	apkG2.ScalarMultiplication(&g2, sk)

	var msgHash [32]byte
	for i := range msgHash {
		msgHash[i] = 42
	}
	msgPoint := curve.HashToPoint(msgHash)

	var sigma bn254.G1Affine
	sigma.ScalarMultiplication(&msgPoint, sk)

	if !Verify(msgHash, apkG1, apkG2, sigma) {
		t.Error("valid signature rejected")
	}
}

func TestVerify_WrongSigner(t *testing.T) {
	expectedSk := new(big.Int).SetUint64(42)
	actualSk := new(big.Int).SetUint64(43)

	g1 := curve.G1Generator()
	g2 := curve.G2Generator()

	var apkG1 bn254.G1Affine
	apkG1.ScalarMultiplication(&g1, expectedSk)
	var apkG2 bn254.G2Affine
	apkG2.ScalarMultiplication(&g2, expectedSk)

	var msgHash [32]byte
	msgHash[0] = 42
	msgPoint := curve.HashToPoint(msgHash)

	var sigma bn254.G1Affine
	sigma.ScalarMultiplication(&msgPoint, actualSk)

	if Verify(msgHash, apkG1, apkG2, sigma) {
		t.Error("signature by the wrong signer accepted")
	}
}

func TestVerify_IdentityInputsRejected(t *testing.T) {
	sk := new(big.Int).SetUint64(42)

	g1 := curve.G1Generator()
	g2 := curve.G2Generator()

	var apkG1 bn254.G1Affine
	apkG1.ScalarMultiplication(&g1, sk)
	var apkG2 bn254.G2Affine
	apkG2.ScalarMultiplication(&g2, sk)
	sigma := curve.G1Generator()

	var msgHash [32]byte
	msgHash[0] = 42

	var infG1 bn254.G1Affine
	var infG2 bn254.G2Affine

	if Verify(msgHash, infG1, apkG2, sigma) {
		t.Error("identity apk_g1 accepted")
	}
	if Verify(msgHash, apkG1, infG2, sigma) {
		t.Error("identity apk_g2 accepted")
	}
	if Verify(msgHash, apkG1, apkG2, infG1) {
		t.Error("identity sigma accepted")
	}
}

// Aggregate two signers over the same message: sigma = (sk3 + sk4) * H(m)
// must verify against the summed key pair.
func TestVerify_AggregateOfTwoSigners(t *testing.T) {
	sk3 := new(big.Int).SetUint64(43)
	sk4 := new(big.Int).SetUint64(44)

	g1 := curve.G1Generator()
	g2 := curve.G2Generator()

	var pk3G1, pk4G1 bn254.G1Affine
	pk3G1.ScalarMultiplication(&g1, sk3)
	pk4G1.ScalarMultiplication(&g1, sk4)
	apkG1 := sumG1(pk3G1, pk4G1)

	var pk3G2, pk4G2 bn254.G2Affine
	pk3G2.ScalarMultiplication(&g2, sk3)
	pk4G2.ScalarMultiplication(&g2, sk4)
	var apkG2Jac bn254.G2Jac
	var jac3, jac4 bn254.G2Jac
	jac3.FromAffine(&pk3G2)
	jac4.FromAffine(&pk4G2)
	apkG2Jac.Set(&jac3)
	apkG2Jac.AddAssign(&jac4)
	var apkG2 bn254.G2Affine
	apkG2.FromJacobian(&apkG2Jac)

	var msgHash [32]byte
	msgHash[0] = 7
	msgPoint := curve.HashToPoint(msgHash)

	var sig3, sig4 bn254.G1Affine
	sig3.ScalarMultiplication(&msgPoint, sk3)
	sig4.ScalarMultiplication(&msgPoint, sk4)
	sigma := sumG1(sig3, sig4)

	if !Verify(msgHash, apkG1, apkG2, sigma) {
		t.Error("aggregate signature rejected")
	}
}
