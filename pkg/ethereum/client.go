// Copyright 2025 Certen Protocol
//
// Ethereum Client
// Read-only access to the parent chain: block headers, certificate calldata
// and eth_getProof responses for the EigenDA contracts. All verification
// happens locally; the client only materializes inputs.

package ethereum

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"

	"github.com/certen/eigenda-cert-validator/pkg/cert"
	"github.com/certen/eigenda-cert-validator/pkg/proof"
)

// Common errors
var (
	ErrTransactionNotFound = errors.New("transaction not found")
	ErrRecencyWindowMissed = errors.New("certificate recency window missed")
)

// Client wraps an Ethereum JSON-RPC endpoint.
type Client struct {
	eth *ethclient.Client
	rpc *rpc.Client
	url string
}

// NewClient connects to an Ethereum JSON-RPC endpoint.
func NewClient(url string) (*Client, error) {
	rpcClient, err := rpc.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Ethereum: %w", err)
	}
	return &Client{
		eth: ethclient.NewClient(rpcClient),
		rpc: rpcClient,
		url: url,
	}, nil
}

// Close releases the underlying RPC connection.
func (c *Client) Close() {
	c.rpc.Close()
}

// HeaderByNumber fetches a block header; nil fetches the latest.
func (c *Client) HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error) {
	header, err := c.eth.HeaderByNumber(ctx, number)
	if err != nil {
		return nil, fmt.Errorf("failed to get header: %w", err)
	}
	return header, nil
}

// BlockNumber fetches the latest block number.
func (c *Client) BlockNumber(ctx context.Context) (uint64, error) {
	number, err := c.eth.BlockNumber(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to get block number: %w", err)
	}
	return number, nil
}

// CertificateFromTransaction extracts a certificate envelope from the
// calldata of the transaction that persisted it.
func (c *Client) CertificateFromTransaction(ctx context.Context, txHash common.Hash) (*cert.StandardCommitment, error) {
	tx, _, err := c.eth.TransactionByHash(ctx, txHash)
	if err != nil {
		return nil, fmt.Errorf("failed to get transaction %s: %w", txHash, err)
	}
	if tx == nil {
		return nil, fmt.Errorf("%w: %s", ErrTransactionNotFound, txHash)
	}
	commitment, err := cert.ParseStandardCommitment(tx.Data())
	if err != nil {
		return nil, fmt.Errorf("parse certificate from %s: %w", txHash, err)
	}
	return commitment, nil
}

// accountResult mirrors the eth_getProof response.
type accountResult struct {
	Address      common.Address  `json:"address"`
	AccountProof []hexutil.Bytes `json:"accountProof"`
	StorageHash  common.Hash     `json:"storageHash"`
	StorageProof []storageResult `json:"storageProof"`
}

type storageResult struct {
	Key   hexutil.Big     `json:"key"`
	Value hexutil.Big     `json:"value"`
	Proof []hexutil.Bytes `json:"proof"`
}

// GetProof fetches an eth_getProof response for the given contract and
// storage keys at a specific block, converted into the proof package's
// types.
func (c *Client) GetProof(ctx context.Context, address common.Address, keys []common.Hash, blockNumber *big.Int) ([][]byte, []proof.StorageEntry, error) {
	hexKeys := make([]string, len(keys))
	for i, key := range keys {
		hexKeys[i] = key.Hex()
	}

	var result accountResult
	err := c.rpc.CallContext(ctx, &result, "eth_getProof", address, hexKeys, toBlockNumArg(blockNumber))
	if err != nil {
		return nil, nil, fmt.Errorf("eth_getProof for %s: %w", address, err)
	}

	accountProof := make([][]byte, len(result.AccountProof))
	for i, node := range result.AccountProof {
		accountProof[i] = node
	}

	entries := make([]proof.StorageEntry, len(result.StorageProof))
	for i, sp := range result.StorageProof {
		nodes := make([][]byte, len(sp.Proof))
		for j := range sp.Proof {
			nodes[j] = sp.Proof[j]
		}
		entries[i] = proof.StorageEntry{
			Key:   common.BigToHash((*big.Int)(&sp.Key)),
			Proof: nodes,
		}
	}

	return accountProof, entries, nil
}

// VerifyCertRecency enforces the recency rule: a certificate must be
// included within window blocks of its reference block. This prevents
// replaying certificates against long-obsolete operator sets.
func VerifyCertRecency(inclusionHeight, referencedHeight, window uint64) error {
	recencyHeight := referencedHeight + window
	if inclusionHeight > recencyHeight {
		return fmt.Errorf("%w: inclusion height %d past recency height %d",
			ErrRecencyWindowMissed, inclusionHeight, recencyHeight)
	}
	return nil
}

func toBlockNumArg(number *big.Int) string {
	if number == nil {
		return "latest"
	}
	return hexutil.EncodeBig(number)
}
