// Copyright 2025 Certen Protocol
//
// Certificate Verification Error Taxonomy
// Every rule a certificate can violate has its own error so operators and
// auditors can attribute a rejection to a specific contract rule. The
// orchestrator threads errors with first-failure-wins semantics and never
// recovers locally.

package verification

import (
	"errors"
	"fmt"
)

// Sentinel errors
var (
	ErrEmptyVec                               = errors.New("empty vec")
	ErrUnequalLengths                         = errors.New("unequal lengths")
	ErrMissingSignerEntry                     = errors.New("missing signer entry")
	ErrMissingQuorumEntry                     = errors.New("missing quorum entry")
	ErrNotStrictlySortedByHash                = errors.New("non-signers not strictly sorted by hash")
	ErrUnderflow                              = errors.New("underflow")
	ErrOverflow                               = errors.New("overflow")
	ErrUnmetSecurityAssumptions               = errors.New("unmet security assumptions")
	ErrConfirmedQuorumsDoNotContainBlobQuorums = errors.New("confirmed quorums do not contain blob quorums")
	ErrBlobQuorumsDoNotContainRequiredQuorums  = errors.New("blob quorums do not contain required quorums")
	ErrSignatureVerificationFailed             = errors.New("signature verification failed")
)

// ReferenceBlockError reports a reference block that does not precede the
// current block.
type ReferenceBlockError struct {
	ReferenceBlock uint32
	CurrentBlock   uint32
}

func (e *ReferenceBlockError) Error() string {
	return fmt.Sprintf("reference block (%d) does not precede current block (%d)", e.ReferenceBlock, e.CurrentBlock)
}

// MissingVersionEntryError reports a blob version with no registered
// parameters.
type MissingVersionEntryError struct {
	Version uint16
}

func (e *MissingVersionEntryError) Error() string {
	return fmt.Sprintf("missing version entry %d", e.Version)
}

// StaleQuorumError reports a signed quorum whose last update predates the
// staleness window.
type StaleQuorumError struct {
	LastUpdatedAtBlock   uint32
	MostRecentStaleBlock uint32
	Window               uint32
}

func (e *StaleQuorumError) Error() string {
	return fmt.Sprintf("stale quorum: last updated at block %d, most recent stale block %d, window %d",
		e.LastUpdatedAtBlock, e.MostRecentStaleBlock, e.Window)
}

// CertApkMismatchError reports a certificate APK that disagrees with the
// storage record.
type CertApkMismatchError struct {
	CertApk    TruncHash
	StorageApk TruncHash
}

func (e *CertApkMismatchError) Error() string {
	return fmt.Sprintf("cert apk (%x) does not equal storage apk (%x)", e.CertApk, e.StorageApk)
}

// InvalidBlobVersionError reports a blob version at or past the registry's
// next unassigned version.
type InvalidBlobVersionError struct {
	Version         uint16
	NextBlobVersion uint16
}

func (e *InvalidBlobVersionError) Error() string {
	return fmt.Sprintf("invalid blob version %d, next blob version %d", e.Version, e.NextBlobVersion)
}

// ThresholdOrderError reports a confirmation threshold that does not exceed
// the adversary threshold.
type ThresholdOrderError struct {
	ConfirmationThreshold uint8
	AdversaryThreshold    uint8
}

func (e *ThresholdOrderError) Error() string {
	return fmt.Sprintf("confirmation threshold (%d) less than or equal to adversary threshold (%d)",
		e.ConfirmationThreshold, e.AdversaryThreshold)
}
