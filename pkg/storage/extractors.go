// Copyright 2025 Certen Protocol
//
// Contract Storage Extractors
// Each extractor derives the storage keys for one contract datum from the
// certificate and decodes the proven 32-byte slot values into the typed
// form the verification pipeline consumes. Decoding is bit-exact against
// the deployed contract layouts: fields sit at fixed little-endian offsets
// inside the slot, with the APK truncated hash byte-reversed on the way out
// to match the keccak form used in APK comparisons.

package storage

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/certen/eigenda-cert-validator/pkg/bitmap"
	"github.com/certen/eigenda-cert-validator/pkg/history"
	"github.com/certen/eigenda-cert-validator/pkg/verification"
)

// StorageProof is one proven storage slot: the slot key and its 32-byte
// value. Slots absent from the trie prove as zero, which is meaningful for
// the Cartesian-product extractors below.
type StorageProof struct {
	Key   common.Hash
	Value *uint256.Int
}

// MissingProofError reports that a required storage proof was not supplied.
type MissingProofError struct {
	Variable string
}

func (e *MissingProofError) Error() string {
	return fmt.Sprintf("failed to extract storage proof for %s", e.Variable)
}

// findProof locates the proof for a key; callers name the contract variable
// for attributable errors.
func findProof(proofs []StorageProof, key common.Hash, variable string) (*uint256.Int, error) {
	for i := range proofs {
		if proofs[i].Key == key {
			if proofs[i].Value == nil {
				return uint256.NewInt(0), nil
			}
			return proofs[i].Value, nil
		}
	}
	return nil, &MissingProofError{Variable: variable}
}

// leBytes renders a slot value as 32 little-endian bytes, the layout the
// Solidity struct-packing offsets are defined against.
func leBytes(v *uint256.Int) [32]byte {
	be := v.Bytes32()
	var le [32]byte
	for i := range be {
		le[i] = be[31-i]
	}
	return le
}

func leUint32(le []byte) uint32 {
	return uint32(le[0]) | uint32(le[1])<<8 | uint32(le[2])<<16 | uint32(le[3])<<24
}

// QuorumCountExtractor reads RegistryCoordinator::quorumCount.
type QuorumCountExtractor struct{}

func (QuorumCountExtractor) StorageKeys() []common.Hash {
	return []common.Hash{SimpleSlotKey(QuorumCountSlot)}
}

func (e QuorumCountExtractor) Decode(proofs []StorageProof) (uint8, error) {
	value, err := findProof(proofs, e.StorageKeys()[0], "quorumCount")
	if err != nil {
		return 0, err
	}
	return uint8(value.Uint64()), nil
}

// NextBlobVersionExtractor reads EigenDaThresholdRegistry::nextBlobVersion.
type NextBlobVersionExtractor struct{}

func (NextBlobVersionExtractor) StorageKeys() []common.Hash {
	return []common.Hash{SimpleSlotKey(NextBlobVersionSlot)}
}

func (e NextBlobVersionExtractor) Decode(proofs []StorageProof) (uint16, error) {
	value, err := findProof(proofs, e.StorageKeys()[0], "nextBlobVersion")
	if err != nil {
		return 0, err
	}
	return uint16(value.Uint64()), nil
}

// VersionedBlobParamsExtractor reads
// EigenDaThresholdRegistry::versionedBlobParams[version].
type VersionedBlobParamsExtractor struct {
	Version uint16
}

func (e VersionedBlobParamsExtractor) StorageKeys() []common.Hash {
	return []common.Hash{MappingKey(Uint256Key(uint64(e.Version)), VersionedBlobParamsSlot)}
}

func (e VersionedBlobParamsExtractor) Decode(proofs []StorageProof) (map[uint16]verification.VersionedBlobParams, error) {
	value, err := findProof(proofs, e.StorageKeys()[0], "versionedBlobParams")
	if err != nil {
		return nil, err
	}
	le := leBytes(value)
	params := verification.VersionedBlobParams{
		MaxNumOperators: leUint32(le[0:4]),
		NumChunks:       leUint32(le[4:8]),
		CodingRate:      le[8],
	}
	return map[uint16]verification.VersionedBlobParams{e.Version: params}, nil
}

// OperatorBitmapHistoryExtractor reads
// RegistryCoordinator::_operatorBitmapHistory[operatorId][index] for each
// non-signer. Slot layout: updateBlockNumber u32, nextUpdateBlockNumber u32,
// quorumBitmap u192.
type OperatorBitmapHistoryExtractor struct {
	NonSignerPkHashes            []verification.OperatorID
	NonSignerQuorumBitmapIndices []uint32
}

func (e OperatorBitmapHistoryExtractor) StorageKeys() []common.Hash {
	keys := make([]common.Hash, len(e.NonSignerPkHashes))
	for i, operatorID := range e.NonSignerPkHashes {
		keys[i] = MappingToArrayKey(common.Hash(operatorID), OperatorBitmapHistorySlot, e.NonSignerQuorumBitmapIndices[i])
	}
	return keys
}

func (e OperatorBitmapHistoryExtractor) Decode(proofs []StorageProof) (map[verification.OperatorID]history.History[bitmap.Bitmap], error) {
	out := make(map[verification.OperatorID]history.History[bitmap.Bitmap], len(e.NonSignerPkHashes))

	keys := e.StorageKeys()
	for i, operatorID := range e.NonSignerPkHashes {
		value, err := findProof(proofs, keys[i], "_operatorBitmapHistory")
		if err != nil {
			return nil, err
		}
		le := leBytes(value)

		updateBlock := leUint32(le[0:4])
		nextUpdateBlock := leUint32(le[4:8])

		// 192-bit quorum bitmap in the upper 24 bytes
		var limbs [4]uint64
		for limb := 0; limb < 3; limb++ {
			for b := 0; b < 8; b++ {
				limbs[limb] |= uint64(le[8+limb*8+b]) << (8 * uint(b))
			}
		}
		quorumBitmap := bitmap.New(limbs)

		update, err := history.NewUpdate(updateBlock, nextUpdateBlock, quorumBitmap)
		if err != nil {
			return nil, err
		}
		out[operatorID] = history.History[bitmap.Bitmap]{e.NonSignerQuorumBitmapIndices[i]: update}
	}
	return out, nil
}

// ApkHistoryExtractor reads BlsApkRegistry::apkHistory[quorum][index]. Slot
// layout: apkHash bytes24, updateBlockNumber u32, nextUpdateBlockNumber u32.
// The truncated hash is stored little-endian and byte-reversed here so it
// compares directly against keccak output.
type ApkHistoryExtractor struct {
	SignedQuorumNumbers []byte
	QuorumApkIndices    []uint32
}

func (e ApkHistoryExtractor) StorageKeys() []common.Hash {
	keys := make([]common.Hash, len(e.SignedQuorumNumbers))
	for i, quorum := range e.SignedQuorumNumbers {
		keys[i] = MappingToArrayKey(Uint256Key(uint64(quorum)), ApkHistorySlot, e.QuorumApkIndices[i])
	}
	return keys
}

func (e ApkHistoryExtractor) Decode(proofs []StorageProof) (map[uint8]history.History[verification.TruncHash], error) {
	out := make(map[uint8]history.History[verification.TruncHash], len(e.SignedQuorumNumbers))

	keys := e.StorageKeys()
	for i, quorum := range e.SignedQuorumNumbers {
		value, err := findProof(proofs, keys[i], "apkHistory")
		if err != nil {
			return nil, err
		}
		le := leBytes(value)

		var truncHash verification.TruncHash
		for b := 0; b < 24; b++ {
			truncHash[b] = le[23-b]
		}

		update, err := history.NewUpdate(leUint32(le[24:28]), leUint32(le[28:32]), truncHash)
		if err != nil {
			return nil, err
		}
		out[quorum] = history.History[verification.TruncHash]{e.QuorumApkIndices[i]: update}
	}
	return out, nil
}

// TotalStakeHistoryExtractor reads
// StakeRegistry::_totalStakeHistory[quorum][index]. Slot layout:
// updateBlockNumber u32, nextUpdateBlockNumber u32, stake u96.
type TotalStakeHistoryExtractor struct {
	SignedQuorumNumbers []byte
	TotalStakeIndices   []uint32
}

func (e TotalStakeHistoryExtractor) StorageKeys() []common.Hash {
	keys := make([]common.Hash, len(e.SignedQuorumNumbers))
	for i, quorum := range e.SignedQuorumNumbers {
		keys[i] = MappingToArrayKey(Uint256Key(uint64(quorum)), TotalStakeHistorySlot, e.TotalStakeIndices[i])
	}
	return keys
}

func (e TotalStakeHistoryExtractor) Decode(proofs []StorageProof) (map[uint8]history.History[verification.Stake], error) {
	out := make(map[uint8]history.History[verification.Stake], len(e.SignedQuorumNumbers))

	keys := e.StorageKeys()
	for i, quorum := range e.SignedQuorumNumbers {
		value, err := findProof(proofs, keys[i], "_totalStakeHistory")
		if err != nil {
			return nil, err
		}
		update, err := decodeStakeUpdate(value)
		if err != nil {
			return nil, err
		}
		out[quorum] = history.History[verification.Stake]{e.TotalStakeIndices[i]: update}
	}
	return out, nil
}

// OperatorStakeHistoryExtractor reads
// StakeRegistry::operatorStakeHistory[operatorId][quorum][index].
//
// The certificate does not say which stake index belongs to which
// (quorum, non-signer) pair, so the extractor enumerates the full Cartesian
// product of signed quorums, non-signers, and per-quorum stake indices.
// Pairs that do not exist on chain prove as zero slots, which decode to
// zero-stake updates and drop out of the arithmetic.
type OperatorStakeHistoryExtractor struct {
	SignedQuorumNumbers   []byte
	NonSignerPkHashes     []verification.OperatorID
	NonSignerStakeIndices [][]uint32
}

func (e OperatorStakeHistoryExtractor) StorageKeys() []common.Hash {
	var keys []common.Hash
	for i, quorum := range e.SignedQuorumNumbers {
		for _, operatorID := range e.NonSignerPkHashes {
			for _, stakeIndex := range e.NonSignerStakeIndices[i] {
				keys = append(keys, NestedMappingToArrayKey(
					common.Hash(operatorID), OperatorStakeHistorySlot, Uint256Key(uint64(quorum)), stakeIndex))
			}
		}
	}
	return keys
}

func (e OperatorStakeHistoryExtractor) Decode(proofs []StorageProof) (map[verification.OperatorID]map[uint8]history.History[verification.Stake], error) {
	out := make(map[verification.OperatorID]map[uint8]history.History[verification.Stake])

	for i, quorum := range e.SignedQuorumNumbers {
		for _, operatorID := range e.NonSignerPkHashes {
			for _, stakeIndex := range e.NonSignerStakeIndices[i] {
				key := NestedMappingToArrayKey(
					common.Hash(operatorID), OperatorStakeHistorySlot, Uint256Key(uint64(quorum)), stakeIndex)

				value, err := findProof(proofs, key, "operatorStakeHistory")
				if err != nil {
					return nil, err
				}
				update, err := decodeStakeUpdate(value)
				if err != nil {
					return nil, err
				}

				byQuorum, ok := out[operatorID]
				if !ok {
					byQuorum = make(map[uint8]history.History[verification.Stake])
					out[operatorID] = byQuorum
				}
				quorumHistory, ok := byQuorum[quorum]
				if !ok {
					quorumHistory = history.History[verification.Stake]{}
					byQuorum[quorum] = quorumHistory
				}
				quorumHistory[stakeIndex] = update
			}
		}
	}
	return out, nil
}

func decodeStakeUpdate(value *uint256.Int) (history.Update[verification.Stake], error) {
	le := leBytes(value)
	stake := verification.StakeFromLittleEndianBytes(le[8:20])
	return history.NewUpdate(leUint32(le[0:4]), leUint32(le[4:8]), stake)
}

// SecurityThresholdsExtractor reads
// EigenDaCertVerifier::securityThresholdsV2. Slot layout:
// confirmationThreshold u8, adversaryThreshold u8.
type SecurityThresholdsExtractor struct{}

func (SecurityThresholdsExtractor) StorageKeys() []common.Hash {
	return []common.Hash{SimpleSlotKey(SecurityThresholdsV2Slot)}
}

func (e SecurityThresholdsExtractor) Decode(proofs []StorageProof) (verification.SecurityThresholds, error) {
	value, err := findProof(proofs, e.StorageKeys()[0], "securityThresholdsV2")
	if err != nil {
		return verification.SecurityThresholds{}, err
	}
	le := leBytes(value)
	return verification.SecurityThresholds{
		ConfirmationThreshold: le[0],
		AdversaryThreshold:    le[1],
	}, nil
}

// RequiredQuorumNumbersExtractor reads
// EigenDaCertVerifier::quorumNumbersRequiredV2, a short byte string stored
// in-slot: data left-aligned, 2*length in the last byte.
type RequiredQuorumNumbersExtractor struct{}

func (RequiredQuorumNumbersExtractor) StorageKeys() []common.Hash {
	return []common.Hash{SimpleSlotKey(RequiredQuorumNumbersV2Slot)}
}

func (e RequiredQuorumNumbersExtractor) Decode(proofs []StorageProof) ([]byte, error) {
	value, err := findProof(proofs, e.StorageKeys()[0], "quorumNumbersRequiredV2")
	if err != nil {
		return nil, err
	}
	be := value.Bytes32()
	length := int(be[31] / 2)
	if length > 31 {
		length = 31
	}
	out := make([]byte, length)
	copy(out, be[:length])
	return out, nil
}

// StaleStakesForbiddenExtractor reads
// EigenDAServiceManager::staleStakesForbidden.
type StaleStakesForbiddenExtractor struct{}

func (StaleStakesForbiddenExtractor) StorageKeys() []common.Hash {
	return []common.Hash{SimpleSlotKey(StaleStakesForbiddenSlot)}
}

func (e StaleStakesForbiddenExtractor) Decode(proofs []StorageProof) (bool, error) {
	value, err := findProof(proofs, e.StorageKeys()[0], "staleStakesForbidden")
	if err != nil {
		return false, err
	}
	return !value.IsZero(), nil
}

// MinWithdrawalDelayBlocksExtractor reads
// DelegationManager::minWithdrawalDelayBlocks.
type MinWithdrawalDelayBlocksExtractor struct{}

func (MinWithdrawalDelayBlocksExtractor) StorageKeys() []common.Hash {
	return []common.Hash{SimpleSlotKey(MinWithdrawalDelayBlocksSlot)}
}

func (e MinWithdrawalDelayBlocksExtractor) Decode(proofs []StorageProof) (uint32, error) {
	value, err := findProof(proofs, e.StorageKeys()[0], "minWithdrawalDelayBlocks")
	if err != nil {
		return 0, err
	}
	return uint32(value.Uint64()), nil
}

// QuorumUpdateBlockNumberExtractor reads
// RegistryCoordinator::quorumUpdateBlockNumber[quorum] for each signed
// quorum.
type QuorumUpdateBlockNumberExtractor struct {
	SignedQuorumNumbers []byte
}

func (e QuorumUpdateBlockNumberExtractor) StorageKeys() []common.Hash {
	keys := make([]common.Hash, len(e.SignedQuorumNumbers))
	for i, quorum := range e.SignedQuorumNumbers {
		keys[i] = MappingKey(Uint256Key(uint64(quorum)), QuorumUpdateBlockNumberSlot)
	}
	return keys
}

func (e QuorumUpdateBlockNumberExtractor) Decode(proofs []StorageProof) (map[uint8]uint32, error) {
	out := make(map[uint8]uint32, len(e.SignedQuorumNumbers))
	keys := e.StorageKeys()
	for i, quorum := range e.SignedQuorumNumbers {
		value, err := findProof(proofs, keys[i], "quorumUpdateBlockNumber")
		if err != nil {
			return nil, err
		}
		out[quorum] = uint32(value.Uint64())
	}
	return out, nil
}

// CertVerifierABNsLengthExtractor reads the length word of the router's
// certVerifierABNs array.
type CertVerifierABNsLengthExtractor struct{}

func (CertVerifierABNsLengthExtractor) StorageKeys() []common.Hash {
	return []common.Hash{SimpleSlotKey(CertVerifierABNsArraySlot)}
}

func (e CertVerifierABNsLengthExtractor) Decode(proofs []StorageProof) (int, error) {
	value, err := findProof(proofs, e.StorageKeys()[0], "certVerifierABNs")
	if err != nil {
		return 0, err
	}
	return int(value.Uint64()), nil
}

// CertVerifierABNsExtractor reads the router's certVerifierABNs activation
// block numbers. Fetch the length with CertVerifierABNsLengthExtractor
// first.
type CertVerifierABNsExtractor struct {
	NumABNs int
}

func (e CertVerifierABNsExtractor) StorageKeys() []common.Hash {
	keys := make([]common.Hash, e.NumABNs)
	for i := range keys {
		keys[i] = ArrayElementKey(CertVerifierABNsArraySlot, uint32(i))
	}
	return keys
}

func (e CertVerifierABNsExtractor) Decode(proofs []StorageProof) ([]uint32, error) {
	out := make([]uint32, e.NumABNs)
	keys := e.StorageKeys()
	for i := range keys {
		value, err := findProof(proofs, keys[i], "certVerifierABNs")
		if err != nil {
			return nil, err
		}
		out[i] = uint32(value.Uint64())
	}
	return out, nil
}
