// Copyright 2025 Certen Protocol
//
// Merkle-Patricia Storage Proof Verification
// Verifies eth_getProof responses against a parent-chain state root: the
// account proof yields the contract's storage root, the storage proofs
// yield the typed slot values the extractors consume. A key proven absent
// resolves to a zero value, which is meaningful for the Cartesian-product
// stake lookups.

package proof

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethdb/memorydb"
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/ethereum/go-ethereum/trie"
	"github.com/holiman/uint256"

	"github.com/certen/eigenda-cert-validator/pkg/storage"
)

// Common errors
var (
	ErrAccountNotFound = errors.New("account not found in state trie")
)

// StorageEntry is one storage slot with its Merkle-Patricia proof nodes.
type StorageEntry struct {
	Key   common.Hash
	Proof [][]byte
}

// AccountData is the decoded result of a verified account proof.
type AccountData struct {
	Nonce       uint64
	StorageRoot common.Hash
	CodeHash    common.Hash
}

// VerifyAccountProof proves the account at address against stateRoot and
// returns its storage root.
func VerifyAccountProof(stateRoot common.Hash, address common.Address, proofNodes [][]byte) (*AccountData, error) {
	value, err := lookup(stateRoot, crypto.Keccak256(address.Bytes()), proofNodes)
	if err != nil {
		return nil, fmt.Errorf("account proof for %s: %w", address, err)
	}
	if len(value) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrAccountNotFound, address)
	}

	var account types.StateAccount
	if err := rlp.DecodeBytes(value, &account); err != nil {
		return nil, fmt.Errorf("decode account %s: %w", address, err)
	}

	return &AccountData{
		Nonce:       account.Nonce,
		StorageRoot: account.Root,
		CodeHash:    common.BytesToHash(account.CodeHash),
	}, nil
}

// VerifyStorageProof proves one storage slot against a storage root. Keys
// proven absent return zero.
func VerifyStorageProof(storageRoot common.Hash, key common.Hash, proofNodes [][]byte) (*uint256.Int, error) {
	value, err := lookup(storageRoot, crypto.Keccak256(key.Bytes()), proofNodes)
	if err != nil {
		return nil, fmt.Errorf("storage proof for %s: %w", key, err)
	}
	if len(value) == 0 {
		return uint256.NewInt(0), nil
	}

	var content []byte
	if err := rlp.DecodeBytes(value, &content); err != nil {
		return nil, fmt.Errorf("decode storage value at %s: %w", key, err)
	}

	var out uint256.Int
	out.SetBytes(content)
	return &out, nil
}

// VerifyContractStorage verifies an account proof plus its storage proofs
// in one step and returns the typed slot records the extractors consume.
func VerifyContractStorage(stateRoot common.Hash, address common.Address, accountProof [][]byte, entries []StorageEntry) ([]storage.StorageProof, error) {
	account, err := VerifyAccountProof(stateRoot, address, accountProof)
	if err != nil {
		return nil, err
	}

	proofs := make([]storage.StorageProof, 0, len(entries))
	for _, entry := range entries {
		value, err := VerifyStorageProof(account.StorageRoot, entry.Key, entry.Proof)
		if err != nil {
			return nil, err
		}
		proofs = append(proofs, storage.StorageProof{Key: entry.Key, Value: value})
	}
	return proofs, nil
}

// lookup walks the proof nodes from root to the value at key.
func lookup(root common.Hash, hashedKey []byte, proofNodes [][]byte) ([]byte, error) {
	db := memorydb.New()
	for _, node := range proofNodes {
		if err := db.Put(crypto.Keccak256(node), node); err != nil {
			return nil, err
		}
	}
	return trie.VerifyProof(root, hashedKey, db)
}
