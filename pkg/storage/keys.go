// Copyright 2025 Certen Protocol
//
// Ethereum Storage Key Derivation
// Implements the Solidity storage layout rules for the slot shapes the
// EigenDA contracts use:
//   - simple variable:            key = uint256(slot)
//   - mapping value:              key = keccak256(pad32(key) || pad32(slot))
//   - dynamic array element:      key = keccak256(pad32(slot)) + index
//   - mapping to dynamic array:   key = keccak256(keccak256(pad32(key) || pad32(slot))) + index
//   - nested mapping to array:    key = keccak256(keccak256(pad32(key2) || keccak256(pad32(key1) || pad32(slot)))) + index
//
// https://docs.soliditylang.org/en/latest/internals/layout_in_storage.html

package storage

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
)

// Storage slot numbers of the contract variables the verifier reads. These
// are coupled bit-exactly to the deployed contract layouts; an upstream
// layout change requires a coordinated update here.
const (
	// EigenDaThresholdRegistry
	NextBlobVersionSlot     = 3
	VersionedBlobParamsSlot = 4

	// BlsApkRegistry
	ApkHistorySlot = 4

	// StakeRegistry
	TotalStakeHistorySlot    = 1
	OperatorStakeHistorySlot = 2

	// RegistryCoordinator
	QuorumCountSlot             = 150
	OperatorBitmapHistorySlot   = 152
	QuorumUpdateBlockNumberSlot = 155

	// EigenDaCertVerifier
	SecurityThresholdsV2Slot    = 0
	RequiredQuorumNumbersV2Slot = 1

	// EigenDaCertVerifierRouter
	CertVerifierABNsArraySlot = 102

	// EigenDAServiceManager / DelegationManager
	MinWithdrawalDelayBlocksSlot = 157
	StaleStakesForbiddenSlot     = 201
)

// SimpleSlotKey returns the storage key of a simple state variable.
func SimpleSlotKey(slot uint64) common.Hash {
	return common.Hash(uint256.NewInt(slot).Bytes32())
}

// MappingKey returns the storage key of mapping[key] for a mapping rooted at
// slot.
func MappingKey(key common.Hash, slot uint64) common.Hash {
	slotKey := SimpleSlotKey(slot)
	return crypto.Keccak256Hash(key[:], slotKey[:])
}

// ArrayElementKey returns the storage key of array[index] for a dynamic
// array rooted at slot. Assumes one element per slot.
func ArrayElementKey(slot uint64, index uint32) common.Hash {
	slotKey := SimpleSlotKey(slot)
	base := crypto.Keccak256Hash(slotKey[:])
	return addIndex(base, index)
}

// MappingToArrayKey returns the storage key of mapping[key][index] where the
// mapping value is a dynamic array. The first keccak locates the array
// length slot, the second the data area. Assumes one element per slot,
// which the EigenDA history structs satisfy.
func MappingToArrayKey(key common.Hash, slot uint64, index uint32) common.Hash {
	lengthSlot := MappingKey(key, slot)
	base := crypto.Keccak256Hash(lengthSlot[:])
	return addIndex(base, index)
}

// NestedMappingToArrayKey returns the storage key of
// mapping[firstKey][secondKey][index] for a nested mapping whose inner value
// is a dynamic array.
func NestedMappingToArrayKey(firstKey common.Hash, slot uint64, secondKey common.Hash, index uint32) common.Hash {
	b1 := MappingKey(firstKey, slot)
	b2 := crypto.Keccak256Hash(secondKey[:], b1[:])
	base := crypto.Keccak256Hash(b2[:])
	return addIndex(base, index)
}

// Uint256Key widens a small integer into a 32-byte mapping key.
func Uint256Key(v uint64) common.Hash {
	return common.Hash(uint256.NewInt(v).Bytes32())
}

func addIndex(base common.Hash, index uint32) common.Hash {
	var v uint256.Int
	v.SetBytes(base[:])
	v.Add(&v, uint256.NewInt(uint64(index)))
	return common.Hash(v.Bytes32())
}
