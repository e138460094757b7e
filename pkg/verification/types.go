// Copyright 2025 Certen Protocol
//
// Certificate Verification Types
// The Storage record aggregates the historical contract state one
// verification reads. It is assembled by the storage extractors, owned by
// the caller for the duration of a single verification, and never mutated by
// the checks.

package verification

import (
	bn254 "github.com/consensys/gnark-crypto/ecc/bn254"

	"github.com/certen/eigenda-cert-validator/pkg/bitmap"
	"github.com/certen/eigenda-cert-validator/pkg/cert"
	"github.com/certen/eigenda-cert-validator/pkg/history"
)

// TruncHash is the 24-byte truncation of a keccak digest. The BLS APK
// registry stores aggregate public keys in this compressed form, so APK
// equality checks compare truncated hashes.
type TruncHash [24]byte

// OperatorID is the 32-byte identifier of an operator: the keccak hash of
// its G1 public key.
type OperatorID [32]byte

// SecurityThresholds are the contract-configured percentage thresholds.
type SecurityThresholds struct {
	ConfirmationThreshold uint8
	AdversaryThreshold    uint8
}

// VersionedBlobParams are the dispersal parameters registered for one blob
// version.
type VersionedBlobParams struct {
	MaxNumOperators uint32
	NumChunks       uint32
	CodingRate      uint8
}

// Staleness carries the stale-stake prevention settings.
type Staleness struct {
	StaleStakesForbidden     bool
	MinWithdrawalDelayBlocks uint32
	QuorumUpdateBlockNumber  map[uint8]uint32
}

// Storage is the historical contract state one verification runs against.
type Storage struct {
	QuorumCount  uint8
	CurrentBlock uint32

	QuorumBitmapHistory  map[OperatorID]history.History[bitmap.Bitmap]
	OperatorStakeHistory map[OperatorID]map[uint8]history.History[Stake]
	TotalStakeHistory    map[uint8]history.History[Stake]
	ApkHistory           map[uint8]history.History[TruncHash]

	VersionedBlobParams map[uint16]VersionedBlobParams
	NextBlobVersion     uint16

	SecurityThresholds    SecurityThresholds
	RequiredQuorumNumbers []byte

	Staleness Staleness
}

// NonSigner is an operator listed as expected-to-sign that did not
// contribute to the aggregate signature. Materialized during orchestration
// from the certificate and the bitmap history.
type NonSigner struct {
	Pk           bn254.G1Affine
	PkHash       OperatorID
	QuorumBitmap bitmap.Bitmap
}

// Quorum is a signed quorum with its aggregate public key and the stake
// split derived from the historical record.
type Quorum struct {
	Number      uint8
	Apk         bn254.G1Affine
	TotalStake  Stake
	SignedStake Stake
}

// CertVerificationInputs bundles everything VerifyCert consumes: the
// certificate material and the Storage snapshot it is judged against.
type CertVerificationInputs struct {
	BatchHeader                 cert.BatchHeaderV2
	BlobInclusionInfo           cert.BlobInclusionInfo
	NonSignerStakesAndSignature cert.NonSignerStakesAndSignature
	SignedQuorumNumbers         []byte
	Storage                     Storage
}
