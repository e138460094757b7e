// Copyright 2025 Certen Protocol
//
// BLS Aggregate Public Key Computation (BN254)
// Computes the aggregate public key of the operators who actually signed a
// batch by summing the per-quorum aggregate keys and subtracting each
// non-signer weighted by the number of signatures it owed.
//
// Correctness relies on a protocol invariant: because operators sign the
// batch root, an operator either signs for every quorum it is registered in
// or for none. A non-signer therefore owes exactly
// popcount(membership AND signed_quorums) signatures.

package bls

import (
	"math/big"

	bn254 "github.com/consensys/gnark-crypto/ecc/bn254"

	"github.com/certen/eigenda-cert-validator/pkg/bitmap"
)

// AggregateSignersApk computes the effective signers' aggregate public key.
//
// quorumNumbers and quorumApks run in parallel over the signed quorums;
// nonSignerPks and nonSignerBitmaps run in parallel over the non-signers,
// where each bitmap records the quorums the operator was registered in at
// the reference block.
func AggregateSignersApk(
	quorumCount uint8,
	quorumNumbers []byte,
	quorumApks []bn254.G1Affine,
	nonSignerPks []bn254.G1Affine,
	nonSignerBitmaps []bitmap.Bitmap,
) (bn254.G1Affine, error) {
	var totalApk bn254.G1Jac
	for i := range quorumApks {
		var jac bn254.G1Jac
		jac.FromAffine(&quorumApks[i])
		totalApk.AddAssign(&jac)
	}

	signedQuorums, err := bitmap.BitIndicesToBitmap(quorumNumbers, int(quorumCount))
	if err != nil {
		return bn254.G1Affine{}, err
	}

	var nonSignersApk bn254.G1Jac
	for i := range nonSignerPks {
		missingSignatures := nonSignerBitmaps[i].And(signedQuorums).PopCount()
		if missingSignatures == 0 {
			continue
		}

		var weighted bn254.G1Affine
		weighted.ScalarMultiplication(&nonSignerPks[i], big.NewInt(int64(missingSignatures)))

		var jac bn254.G1Jac
		jac.FromAffine(&weighted)
		nonSignersApk.AddAssign(&jac)
	}

	totalApk.SubAssign(&nonSignersApk)

	var signersApk bn254.G1Affine
	signersApk.FromJacobian(&totalApk)
	return signersApk, nil
}
