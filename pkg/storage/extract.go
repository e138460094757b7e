// Copyright 2025 Certen Protocol
//
// Certificate State Assembly
// CertStateData carries the proven storage slots of every EigenDA contract
// one verification reads. Extract runs the extractors of those slots and
// assembles the CertVerificationInputs for the verification pipeline.

package storage

import (
	"github.com/ethereum/go-ethereum/common"

	"github.com/certen/eigenda-cert-validator/pkg/cert"
	"github.com/certen/eigenda-cert-validator/pkg/crypto/curve"
	"github.com/certen/eigenda-cert-validator/pkg/verification"
)

// CertStateData groups proven storage slots by the contract they were read
// from. The proofs are assumed to be already verified against a state root;
// Merkle-Patricia verification happens in pkg/proof.
type CertStateData struct {
	RegistryCoordinator []StorageProof
	StakeRegistry       []StorageProof
	BlsApkRegistry      []StorageProof
	ThresholdRegistry   []StorageProof
	CertVerifier        []StorageProof
	ServiceManager      []StorageProof
	DelegationManager   []StorageProof
}

// RequiredKeys lists, per contract, the storage keys a certificate needs
// proven. The caller feeds these into eth_getProof.
func RequiredKeys(commitment *cert.StandardCommitment) *CertStateKeys {
	params := commitment.NonSignerStakesAndSignature()
	signedQuorums := commitment.SignedQuorumNumbers()
	nonSignerHashes := nonSignerPkHashes(params)

	return &CertStateKeys{
		RegistryCoordinator: concatKeys(
			QuorumCountExtractor{}.StorageKeys(),
			OperatorBitmapHistoryExtractor{
				NonSignerPkHashes:            nonSignerHashes,
				NonSignerQuorumBitmapIndices: params.NonSignerQuorumBitmapIndices,
			}.StorageKeys(),
			QuorumUpdateBlockNumberExtractor{SignedQuorumNumbers: signedQuorums}.StorageKeys(),
		),
		StakeRegistry: concatKeys(
			TotalStakeHistoryExtractor{
				SignedQuorumNumbers: signedQuorums,
				TotalStakeIndices:   params.TotalStakeIndices,
			}.StorageKeys(),
			OperatorStakeHistoryExtractor{
				SignedQuorumNumbers:   signedQuorums,
				NonSignerPkHashes:     nonSignerHashes,
				NonSignerStakeIndices: params.NonSignerStakeIndices,
			}.StorageKeys(),
		),
		BlsApkRegistry: ApkHistoryExtractor{
			SignedQuorumNumbers: signedQuorums,
			QuorumApkIndices:    params.QuorumApkIndices,
		}.StorageKeys(),
		ThresholdRegistry: concatKeys(
			NextBlobVersionExtractor{}.StorageKeys(),
			VersionedBlobParamsExtractor{Version: commitment.BlobVersion()}.StorageKeys(),
		),
		CertVerifier: concatKeys(
			SecurityThresholdsExtractor{}.StorageKeys(),
			RequiredQuorumNumbersExtractor{}.StorageKeys(),
		),
		ServiceManager:    StaleStakesForbiddenExtractor{}.StorageKeys(),
		DelegationManager: MinWithdrawalDelayBlocksExtractor{}.StorageKeys(),
	}
}

// CertStateKeys mirrors CertStateData with the storage keys to prove.
type CertStateKeys struct {
	RegistryCoordinator []common.Hash
	StakeRegistry       []common.Hash
	BlsApkRegistry      []common.Hash
	ThresholdRegistry   []common.Hash
	CertVerifier        []common.Hash
	ServiceManager      []common.Hash
	DelegationManager   []common.Hash
}

func concatKeys(lists ...[]common.Hash) []common.Hash {
	var out []common.Hash
	for _, list := range lists {
		out = append(out, list...)
	}
	return out
}

// Extract runs the extractor of every datum the verification inputs hold
// and assembles those inputs for the certificate against the proven state at
// currentBlock. The cert-verifier router extractors are not run here.
func (d *CertStateData) Extract(commitment *cert.StandardCommitment, currentBlock uint32) (*verification.CertVerificationInputs, error) {
	params := commitment.NonSignerStakesAndSignature()
	signedQuorums := commitment.SignedQuorumNumbers()
	nonSignerHashes := nonSignerPkHashes(params)

	quorumCount, err := QuorumCountExtractor{}.Decode(d.RegistryCoordinator)
	if err != nil {
		return nil, err
	}

	quorumBitmapHistory, err := OperatorBitmapHistoryExtractor{
		NonSignerPkHashes:            nonSignerHashes,
		NonSignerQuorumBitmapIndices: params.NonSignerQuorumBitmapIndices,
	}.Decode(d.RegistryCoordinator)
	if err != nil {
		return nil, err
	}

	operatorStakeHistory, err := OperatorStakeHistoryExtractor{
		SignedQuorumNumbers:   signedQuorums,
		NonSignerPkHashes:     nonSignerHashes,
		NonSignerStakeIndices: params.NonSignerStakeIndices,
	}.Decode(d.StakeRegistry)
	if err != nil {
		return nil, err
	}

	totalStakeHistory, err := TotalStakeHistoryExtractor{
		SignedQuorumNumbers: signedQuorums,
		TotalStakeIndices:   params.TotalStakeIndices,
	}.Decode(d.StakeRegistry)
	if err != nil {
		return nil, err
	}

	apkHistory, err := ApkHistoryExtractor{
		SignedQuorumNumbers: signedQuorums,
		QuorumApkIndices:    params.QuorumApkIndices,
	}.Decode(d.BlsApkRegistry)
	if err != nil {
		return nil, err
	}

	nextBlobVersion, err := NextBlobVersionExtractor{}.Decode(d.ThresholdRegistry)
	if err != nil {
		return nil, err
	}

	versionedBlobParams, err := VersionedBlobParamsExtractor{Version: commitment.BlobVersion()}.Decode(d.ThresholdRegistry)
	if err != nil {
		return nil, err
	}

	securityThresholds, err := SecurityThresholdsExtractor{}.Decode(d.CertVerifier)
	if err != nil {
		return nil, err
	}

	requiredQuorums, err := RequiredQuorumNumbersExtractor{}.Decode(d.CertVerifier)
	if err != nil {
		return nil, err
	}

	staleStakesForbidden, err := StaleStakesForbiddenExtractor{}.Decode(d.ServiceManager)
	if err != nil {
		return nil, err
	}

	minWithdrawalDelayBlocks, err := MinWithdrawalDelayBlocksExtractor{}.Decode(d.DelegationManager)
	if err != nil {
		return nil, err
	}

	quorumUpdateBlockNumber, err := QuorumUpdateBlockNumberExtractor{
		SignedQuorumNumbers: signedQuorums,
	}.Decode(d.RegistryCoordinator)
	if err != nil {
		return nil, err
	}

	return &verification.CertVerificationInputs{
		BatchHeader:                 *commitment.BatchHeader(),
		BlobInclusionInfo:           *commitment.BlobInclusion(),
		NonSignerStakesAndSignature: *params,
		SignedQuorumNumbers:         signedQuorums,
		Storage: verification.Storage{
			QuorumCount:          quorumCount,
			CurrentBlock:         currentBlock,
			QuorumBitmapHistory:  quorumBitmapHistory,
			OperatorStakeHistory: operatorStakeHistory,
			TotalStakeHistory:    totalStakeHistory,
			ApkHistory:           apkHistory,
			VersionedBlobParams:  versionedBlobParams,
			NextBlobVersion:      nextBlobVersion,
			SecurityThresholds:   securityThresholds,
			RequiredQuorumNumbers: requiredQuorums,
			Staleness: verification.Staleness{
				StaleStakesForbidden:     staleStakesForbidden,
				MinWithdrawalDelayBlocks: minWithdrawalDelayBlocks,
				QuorumUpdateBlockNumber:  quorumUpdateBlockNumber,
			},
		},
	}, nil
}

func nonSignerPkHashes(params *cert.NonSignerStakesAndSignature) []verification.OperatorID {
	hashes := make([]verification.OperatorID, len(params.NonSignerPubkeys))
	for i, pk := range params.NonSignerPubkeys {
		hashes[i] = verification.OperatorID(curve.PointToHash(pk))
	}
	return hashes
}
