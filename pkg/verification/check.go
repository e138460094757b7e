// Copyright 2025 Certen Protocol
//
// Certificate Rule Checks
// Each function enforces one contract rule and fails with that rule's error
// variant. VerifyCert runs them in a fixed order.

package verification

import (
	"github.com/certen/eigenda-cert-validator/pkg/bitmap"
	"github.com/certen/eigenda-cert-validator/pkg/cert"
	"github.com/certen/eigenda-cert-validator/pkg/crypto/curve"
	"github.com/certen/eigenda-cert-validator/pkg/history"
)

// thresholdDenominator scales percentage thresholds (uint256 in the
// contracts).
const thresholdDenominator = 100

// checkEqualLengths requires all lengths to be equal to the first.
func checkEqualLengths(lengths []int) error {
	if len(lengths) == 0 {
		return ErrEmptyVec
	}
	for _, length := range lengths[1:] {
		if length != lengths[0] {
			return ErrUnequalLengths
		}
	}
	return nil
}

// checkNotEmpty rejects empty byte sequences.
func checkNotEmpty(b []byte) error {
	if len(b) == 0 {
		return ErrEmptyVec
	}
	return nil
}

// checkBlobVersion requires the certificate's blob version to be strictly
// below the registry's next unassigned version. An out-of-range version
// would otherwise reach the security-assumption check with the zero
// coding_rate of an unset parameter slot.
func checkBlobVersion(certVersion, nextBlobVersion uint16) error {
	if certVersion >= nextBlobVersion {
		return &InvalidBlobVersionError{Version: certVersion, NextBlobVersion: nextBlobVersion}
	}
	return nil
}

// checkNonSignersStrictlySortedByHash requires the non-signer hashes to be
// strictly ascending, which rules out duplicate non-signer accounting.
func checkNonSignersStrictlySortedByHash(nonSigners []NonSigner) error {
	for i := 1; i < len(nonSigners); i++ {
		if !lessHash(nonSigners[i-1].PkHash, nonSigners[i].PkHash) {
			return ErrNotStrictlySortedByHash
		}
	}
	return nil
}

func lessHash(a, b OperatorID) bool {
	for i := range a {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return false
}

// checkQuorumsLastUpdatedAfterMostRecentStaleBlock enforces the optional
// stale-stake rule: every signed quorum must have been updated after
// reference_block - min_withdrawal_delay_blocks.
func checkQuorumsLastUpdatedAfterMostRecentStaleBlock(
	signedQuorums []byte,
	referenceBlock uint32,
	quorumUpdateBlockNumber map[uint8]uint32,
	window uint32,
) error {
	for _, signedQuorum := range signedQuorums {
		lastUpdatedAtBlock, ok := quorumUpdateBlockNumber[signedQuorum]
		if !ok {
			return ErrMissingQuorumEntry
		}

		if referenceBlock < window {
			return ErrUnderflow
		}
		mostRecentStaleBlock := referenceBlock - window

		if lastUpdatedAtBlock <= mostRecentStaleBlock {
			return &StaleQuorumError{
				LastUpdatedAtBlock:   lastUpdatedAtBlock,
				MostRecentStaleBlock: mostRecentStaleBlock,
				Window:               window,
			}
		}
	}
	return nil
}

// checkCertApksEqualStorageApks compares each certificate-supplied quorum
// APK, truncated-hash form, against the APK registry record the certificate
// nominated.
func checkCertApksEqualStorageApks(
	signedQuorums []byte,
	referenceBlock uint32,
	quorumApks []cert.G1Point,
	quorumApkIndices []uint32,
	apkHistory map[uint8]history.History[TruncHash],
) error {
	for i, signedQuorum := range signedQuorums {
		certApkHash := curve.PointToHash(quorumApks[i])
		var certApkTruncHash TruncHash
		copy(certApkTruncHash[:], certApkHash[:24])

		quorumHistory, ok := apkHistory[signedQuorum]
		if !ok {
			return ErrMissingQuorumEntry
		}
		update, err := quorumHistory.At(quorumApkIndices[i])
		if err != nil {
			return err
		}
		storageApkTruncHash, err := update.Against(referenceBlock)
		if err != nil {
			return err
		}

		if certApkTruncHash != storageApkTruncHash {
			return &CertApkMismatchError{
				CertApk:    certApkTruncHash,
				StorageApk: storageApkTruncHash,
			}
		}
	}
	return nil
}

// checkSecurityAssumptionsAreMet validates the coding-theoretic safety
// condition of the blob's parameter version:
//
//	n = (10000 - 1_000_000/(gamma * coding_rate)) * num_chunks >= max_num_operators * 10000
//
// where gamma = confirmation_threshold - adversary_threshold.
func checkSecurityAssumptionsAreMet(
	certBlobVersion uint16,
	versionedBlobParams map[uint16]VersionedBlobParams,
	securityThresholds SecurityThresholds,
) error {
	params, ok := versionedBlobParams[certBlobVersion]
	if !ok {
		return &MissingVersionEntryError{Version: certBlobVersion}
	}

	if securityThresholds.ConfirmationThreshold <= securityThresholds.AdversaryThreshold {
		return &ThresholdOrderError{
			ConfirmationThreshold: securityThresholds.ConfirmationThreshold,
			AdversaryThreshold:    securityThresholds.AdversaryThreshold,
		}
	}

	// cannot underflow: confirmation > adversary was just checked
	gamma := uint64(securityThresholds.ConfirmationThreshold) - uint64(securityThresholds.AdversaryThreshold)

	// gamma > 0 for the same reason, but an unset parameter slot decodes to
	// a zero coding rate, which would make the denominator zero
	denominator := gamma * uint64(params.CodingRate)
	if denominator == 0 {
		return ErrUnderflow
	}
	inverse := uint64(1_000_000) / denominator

	if inverse > 10_000 {
		return ErrUnderflow
	}
	n := (10_000 - inverse) * uint64(params.NumChunks)

	if n < uint64(params.MaxNumOperators)*10_000 {
		return ErrUnmetSecurityAssumptions
	}
	return nil
}

// checkConfirmedQuorumsContainBlobQuorums marks a quorum confirmed iff
// signed_stake * 100 >= total_stake * confirmation_threshold and requires
// the confirmed set to cover the blob's quorums.
func checkConfirmedQuorumsContainBlobQuorums(
	confirmationThreshold uint8,
	quorums []Quorum,
	blobQuorums []byte,
) error {
	blobQuorumsBitmap, err := bitmap.BitIndicesToBitmap(blobQuorums, bitmap.NoUpperBound)
	if err != nil {
		return err
	}

	var confirmedQuorums bitmap.Bitmap
	for _, quorum := range quorums {
		left, err := quorum.SignedStake.MulUint64(thresholdDenominator)
		if err != nil {
			return err
		}
		right, err := quorum.TotalStake.MulUint64(uint64(confirmationThreshold))
		if err != nil {
			return err
		}
		confirmedQuorums.SetBit(int(quorum.Number), left.Cmp(right) >= 0)
	}

	if !confirmedQuorums.Contains(blobQuorumsBitmap) {
		return ErrConfirmedQuorumsDoNotContainBlobQuorums
	}
	return nil
}

// checkBlobQuorumsContainRequiredQuorums requires the blob's quorum set to
// cover the contract-required quorums.
func checkBlobQuorumsContainRequiredQuorums(blobQuorums, requiredQuorums []byte) error {
	requiredBitmap, err := bitmap.BitIndicesToBitmap(requiredQuorums, bitmap.NoUpperBound)
	if err != nil {
		return err
	}
	blobBitmap, err := bitmap.BitIndicesToBitmap(blobQuorums, bitmap.NoUpperBound)
	if err != nil {
		return err
	}
	if !blobBitmap.Contains(requiredBitmap) {
		return ErrBlobQuorumsDoNotContainRequiredQuorums
	}
	return nil
}
