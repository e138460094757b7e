// Copyright 2025 Certen Protocol
//
// Certificate Verification Orchestrator
// Runs every certificate rule in a fixed order against a Storage snapshot
// and returns the first violated rule's error. The verification is a pure
// function of its inputs: no I/O, no caching, no shared mutable state.

package verification

import (
	bn254 "github.com/consensys/gnark-crypto/ecc/bn254"

	"github.com/certen/eigenda-cert-validator/pkg/bitmap"
	"github.com/certen/eigenda-cert-validator/pkg/cert"
	"github.com/certen/eigenda-cert-validator/pkg/codec"
	"github.com/certen/eigenda-cert-validator/pkg/crypto/bls"
	"github.com/certen/eigenda-cert-validator/pkg/crypto/curve"
	"github.com/certen/eigenda-cert-validator/pkg/kzg"
	"github.com/certen/eigenda-cert-validator/pkg/merkle"
)

// VerifyCert validates a certificate against the historical contract state
// in inputs.Storage. Returns nil exactly when every rule passes; otherwise
// the first failing rule's error.
func VerifyCert(inputs *CertVerificationInputs) error {
	storage := &inputs.Storage
	batchHeader := &inputs.BatchHeader
	inclusion := &inputs.BlobInclusionInfo
	params := &inputs.NonSignerStakesAndSignature

	// 1. blob certificate inclusion in the batch tree
	leaf, err := cert.MerkleLeaf(&inclusion.BlobCertificate)
	if err != nil {
		return err
	}
	if err := merkle.VerifyInclusion(leaf, batchHeader.BatchRoot, inclusion.InclusionProof, inclusion.BlobIndex); err != nil {
		return err
	}

	// 2. the reference block must precede the chain head
	if batchHeader.ReferenceBlockNumber >= storage.CurrentBlock {
		return &ReferenceBlockError{
			ReferenceBlock: batchHeader.ReferenceBlockNumber,
			CurrentBlock:   storage.CurrentBlock,
		}
	}

	// 3. parallel non-signer sequences must correspond element-wise
	if err := checkEqualLengths([]int{
		len(params.NonSignerPubkeys),
		len(params.NonSignerQuorumBitmapIndices),
	}); err != nil {
		return err
	}

	// 4. parallel per-quorum sequences must correspond and be non-empty
	if err := checkNotEmpty(inputs.SignedQuorumNumbers); err != nil {
		return err
	}
	if err := checkEqualLengths([]int{
		len(inputs.SignedQuorumNumbers),
		len(params.QuorumApks),
		len(params.QuorumApkIndices),
		len(params.TotalStakeIndices),
		len(params.NonSignerStakeIndices),
	}); err != nil {
		return err
	}

	// 5. optional staleness rule
	if storage.Staleness.StaleStakesForbidden {
		if err := checkQuorumsLastUpdatedAfterMostRecentStaleBlock(
			inputs.SignedQuorumNumbers,
			batchHeader.ReferenceBlockNumber,
			storage.Staleness.QuorumUpdateBlockNumber,
			storage.Staleness.MinWithdrawalDelayBlocks,
		); err != nil {
			return err
		}
	}

	// 6. certificate APKs must match the registry records
	if err := checkCertApksEqualStorageApks(
		inputs.SignedQuorumNumbers,
		batchHeader.ReferenceBlockNumber,
		params.QuorumApks,
		params.QuorumApkIndices,
		storage.ApkHistory,
	); err != nil {
		return err
	}

	// 7. materialize non-signers with their quorum membership at the
	// reference block
	nonSigners, err := assembleNonSigners(inputs)
	if err != nil {
		return err
	}

	// 8. duplicate prevention
	if err := checkNonSignersStrictlySortedByHash(nonSigners); err != nil {
		return err
	}

	// 9. materialize quorums with their stake split
	quorums, err := assembleQuorums(inputs, nonSigners)
	if err != nil {
		return err
	}

	// 10. aggregate signature
	if err := verifySignature(inputs, nonSigners, quorums); err != nil {
		return err
	}

	blobHeader := &inclusion.BlobCertificate.BlobHeader

	// 11. blob version bound
	if err := checkBlobVersion(blobHeader.Version, storage.NextBlobVersion); err != nil {
		return err
	}

	// 12. coding-theoretic security assumptions
	if err := checkSecurityAssumptionsAreMet(
		blobHeader.Version,
		storage.VersionedBlobParams,
		storage.SecurityThresholds,
	); err != nil {
		return err
	}

	// 13. confirmed quorums must cover the blob's quorums
	if err := checkConfirmedQuorumsContainBlobQuorums(
		storage.SecurityThresholds.ConfirmationThreshold,
		quorums,
		blobHeader.QuorumNumbers,
	); err != nil {
		return err
	}

	// 14. the blob's quorums must cover the required quorums
	return checkBlobQuorumsContainRequiredQuorums(
		blobHeader.QuorumNumbers,
		storage.RequiredQuorumNumbers,
	)
}

// assembleNonSigners pairs each non-signer public key with the quorum
// membership bitmap the certificate nominated, validated against the
// reference block.
func assembleNonSigners(inputs *CertVerificationInputs) ([]NonSigner, error) {
	params := &inputs.NonSignerStakesAndSignature
	storage := &inputs.Storage

	nonSigners := make([]NonSigner, 0, len(params.NonSignerPubkeys))
	for i, pk := range params.NonSignerPubkeys {
		pkHash := OperatorID(curve.PointToHash(pk))

		bitmapHistory, ok := storage.QuorumBitmapHistory[pkHash]
		if !ok {
			return nil, ErrMissingSignerEntry
		}
		update, err := bitmapHistory.At(params.NonSignerQuorumBitmapIndices[i])
		if err != nil {
			return nil, err
		}
		quorumBitmap, err := update.Against(inputs.BatchHeader.ReferenceBlockNumber)
		if err != nil {
			return nil, err
		}

		nonSigners = append(nonSigners, NonSigner{
			Pk:           curve.G1FromPoint(pk),
			PkHash:       pkHash,
			QuorumBitmap: quorumBitmap,
		})
	}
	return nonSigners, nil
}

// assembleQuorums derives each signed quorum's stake split: total stake from
// the registry, unsigned stake summed over the non-signers that owed this
// quorum a signature, signed stake as the checked difference.
func assembleQuorums(inputs *CertVerificationInputs, nonSigners []NonSigner) ([]Quorum, error) {
	params := &inputs.NonSignerStakesAndSignature
	storage := &inputs.Storage
	referenceBlock := inputs.BatchHeader.ReferenceBlockNumber

	quorums := make([]Quorum, 0, len(inputs.SignedQuorumNumbers))
	for i, signedQuorum := range inputs.SignedQuorumNumbers {
		quorumHistory, ok := storage.TotalStakeHistory[signedQuorum]
		if !ok {
			return nil, ErrMissingQuorumEntry
		}
		update, err := quorumHistory.At(params.TotalStakeIndices[i])
		if err != nil {
			return nil, err
		}
		totalStake, err := update.Against(referenceBlock)
		if err != nil {
			return nil, err
		}

		unsignedStake, err := sumUnsignedStake(
			storage, nonSigners, signedQuorum, params.NonSignerStakeIndices[i], referenceBlock)
		if err != nil {
			return nil, err
		}

		signedStake, err := totalStake.Sub(unsignedStake)
		if err != nil {
			return nil, err
		}

		quorums = append(quorums, Quorum{
			Number:      signedQuorum,
			Apk:         curve.G1FromPoint(params.QuorumApks[i]),
			TotalStake:  totalStake,
			SignedStake: signedStake,
		})
	}
	return quorums, nil
}

// sumUnsignedStake walks the non-signers registered in the quorum, zipped
// with the certificate's per-quorum stake indices, and sums their stakes at
// the reference block.
func sumUnsignedStake(
	storage *Storage,
	nonSigners []NonSigner,
	signedQuorum uint8,
	stakeIndices []uint32,
	referenceBlock uint32,
) (Stake, error) {
	unsigned := NewStake(0)

	next := 0
	for _, nonSigner := range nonSigners {
		if !nonSigner.QuorumBitmap.Bit(int(signedQuorum)) {
			continue
		}
		if next >= len(stakeIndices) {
			break
		}
		stakeIndex := stakeIndices[next]
		next++

		stakeHistoryByQuorum, ok := storage.OperatorStakeHistory[nonSigner.PkHash]
		if !ok {
			return Stake{}, ErrMissingSignerEntry
		}
		stakeHistory, ok := stakeHistoryByQuorum[signedQuorum]
		if !ok {
			return Stake{}, ErrMissingQuorumEntry
		}
		update, err := stakeHistory.At(stakeIndex)
		if err != nil {
			return Stake{}, err
		}
		stake, err := update.Against(referenceBlock)
		if err != nil {
			return Stake{}, err
		}

		unsigned, err = unsigned.Add(stake)
		if err != nil {
			return Stake{}, err
		}
	}

	return unsigned, nil
}

// verifySignature reconstructs the signers' aggregate public key and runs
// the pairing check over the batch header hash.
func verifySignature(inputs *CertVerificationInputs, nonSigners []NonSigner, quorums []Quorum) error {
	quorumApks := make([]bn254.G1Affine, len(quorums))
	quorumNumbers := make([]byte, len(quorums))
	for i, quorum := range quorums {
		quorumApks[i] = quorum.Apk
		quorumNumbers[i] = quorum.Number
	}

	nonSignerPks := make([]bn254.G1Affine, len(nonSigners))
	nonSignerBitmaps := make([]bitmap.Bitmap, len(nonSigners))
	for i, nonSigner := range nonSigners {
		nonSignerPks[i] = nonSigner.Pk
		nonSignerBitmaps[i] = nonSigner.QuorumBitmap
	}

	signersApk, err := bls.AggregateSignersApk(
		inputs.Storage.QuorumCount, quorumNumbers, quorumApks, nonSignerPks, nonSignerBitmaps)
	if err != nil {
		return err
	}

	msgHash := cert.HashBatchHeader(&inputs.BatchHeader)
	apkG2 := curve.G2FromPoint(inputs.NonSignerStakesAndSignature.ApkG2)
	sigma := curve.G1FromPoint(inputs.NonSignerStakesAndSignature.Sigma)

	if !bls.Verify(msgHash, signersApk, apkG2, sigma) {
		return ErrSignatureVerificationFailed
	}
	return nil
}

// VerifyBlob validates an encoded payload against the certificate's blob
// commitment using the shared SRS table.
func VerifyBlob(blobCommitment *cert.BlobCommitment, encodedPayload []byte, srs *kzg.SRS) error {
	return kzg.VerifyBlob(blobCommitment, encodedPayload, srs)
}

// DecodePayload recovers the raw payload bytes from an encoded payload.
func DecodePayload(encodedPayload []byte) ([]byte, error) {
	return codec.Decode(encodedPayload)
}
