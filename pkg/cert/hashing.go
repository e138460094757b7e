// Copyright 2025 Certen Protocol
//
// Certificate Hashing
// Reproduces the contract-side hashing of certificates: the Merkle leaf of a
// blob certificate is keccak256(abi.encodePacked(keccak256(abi.encode(cert))))
// and the signed message of a batch is keccak256(abi.encode(batchHeader)).

package cert

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/crypto"
)

// ABI tuple mirrors of the wire types. The abi package maps tuple component
// names onto these exported field names when packing.
type g1Tuple struct {
	X *big.Int
	Y *big.Int
}

type g2Tuple struct {
	X [2]*big.Int
	Y [2]*big.Int
}

type blobCommitmentTuple struct {
	Commitment       g1Tuple
	LengthCommitment g2Tuple
	LengthProof      g2Tuple
	Length           uint32
}

type blobHeaderTuple struct {
	Version           uint16
	QuorumNumbers     []byte
	Commitment        blobCommitmentTuple
	PaymentHeaderHash [32]byte
}

type blobCertificateTuple struct {
	BlobHeader blobHeaderTuple
	Signature  []byte
	RelayKeys  []uint32
}

var (
	blobCertificateArgs abi.Arguments
	batchHeaderArgs     abi.Arguments
)

func init() {
	g1Components := []abi.ArgumentMarshaling{
		{Name: "x", Type: "uint256"},
		{Name: "y", Type: "uint256"},
	}
	g2Components := []abi.ArgumentMarshaling{
		{Name: "x", Type: "uint256[2]"},
		{Name: "y", Type: "uint256[2]"},
	}
	commitmentComponents := []abi.ArgumentMarshaling{
		{Name: "commitment", Type: "tuple", Components: g1Components},
		{Name: "lengthCommitment", Type: "tuple", Components: g2Components},
		{Name: "lengthProof", Type: "tuple", Components: g2Components},
		{Name: "length", Type: "uint32"},
	}
	blobHeaderComponents := []abi.ArgumentMarshaling{
		{Name: "version", Type: "uint16"},
		{Name: "quorumNumbers", Type: "bytes"},
		{Name: "commitment", Type: "tuple", Components: commitmentComponents},
		{Name: "paymentHeaderHash", Type: "bytes32"},
	}
	blobCertificateComponents := []abi.ArgumentMarshaling{
		{Name: "blobHeader", Type: "tuple", Components: blobHeaderComponents},
		{Name: "signature", Type: "bytes"},
		{Name: "relayKeys", Type: "uint32[]"},
	}

	blobCertificateType := mustNewType("tuple", blobCertificateComponents)
	blobCertificateArgs = abi.Arguments{{Type: blobCertificateType}}

	batchHeaderArgs = abi.Arguments{
		{Type: mustNewType("bytes32", nil)},
		{Type: mustNewType("uint32", nil)},
	}
}

func mustNewType(t string, components []abi.ArgumentMarshaling) abi.Type {
	typ, err := abi.NewType(t, "", components)
	if err != nil {
		panic(fmt.Sprintf("invalid ABI type %q: %v", t, err))
	}
	return typ
}

// HashBlobCertificate computes keccak256(abi.encode(blobCertificate)).
func HashBlobCertificate(c *BlobCertificate) ([32]byte, error) {
	encoded, err := blobCertificateArgs.Pack(toBlobCertificateTuple(c))
	if err != nil {
		return [32]byte{}, fmt.Errorf("abi encode blob certificate: %w", err)
	}
	var hash [32]byte
	copy(hash[:], crypto.Keccak256(encoded))
	return hash, nil
}

// MerkleLeaf computes the batch-tree leaf of a blob certificate:
// keccak256(abi.encodePacked(HashBlobCertificate(c))).
func MerkleLeaf(c *BlobCertificate) ([32]byte, error) {
	certHash, err := HashBlobCertificate(c)
	if err != nil {
		return [32]byte{}, err
	}
	var leaf [32]byte
	copy(leaf[:], crypto.Keccak256(certHash[:]))
	return leaf, nil
}

// HashBatchHeader computes keccak256(abi.encode(batchHeader)). This is the
// message operators sign.
func HashBatchHeader(h *BatchHeaderV2) [32]byte {
	encoded, err := batchHeaderArgs.Pack(h.BatchRoot, h.ReferenceBlockNumber)
	if err != nil {
		// the argument list is static, packing two static values cannot fail
		panic(fmt.Sprintf("abi encode batch header: %v", err))
	}
	var hash [32]byte
	copy(hash[:], crypto.Keccak256(encoded))
	return hash
}

func toBlobCertificateTuple(c *BlobCertificate) blobCertificateTuple {
	return blobCertificateTuple{
		BlobHeader: blobHeaderTuple{
			Version:       c.BlobHeader.Version,
			QuorumNumbers: normalizeBytes(c.BlobHeader.QuorumNumbers),
			Commitment: blobCommitmentTuple{
				Commitment:       toG1Tuple(c.BlobHeader.Commitment.Commitment),
				LengthCommitment: toG2Tuple(c.BlobHeader.Commitment.LengthCommitment),
				LengthProof:      toG2Tuple(c.BlobHeader.Commitment.LengthProof),
				Length:           c.BlobHeader.Commitment.Length,
			},
			PaymentHeaderHash: c.BlobHeader.PaymentHeaderHash,
		},
		Signature: normalizeBytes(c.Signature),
		RelayKeys: normalizeRelayKeys(c.RelayKeys),
	}
}

func toG1Tuple(p G1Point) g1Tuple {
	return g1Tuple{X: normalizeBig(p.X), Y: normalizeBig(p.Y)}
}

func toG2Tuple(p G2Point) g2Tuple {
	var out g2Tuple
	out.X = [2]*big.Int{normalizeCoord(p.X, 0), normalizeCoord(p.X, 1)}
	out.Y = [2]*big.Int{normalizeCoord(p.Y, 0), normalizeCoord(p.Y, 1)}
	return out
}

func normalizeCoord(coords []*big.Int, i int) *big.Int {
	if i >= len(coords) {
		return new(big.Int)
	}
	return normalizeBig(coords[i])
}

func normalizeBig(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return v
}

func normalizeBytes(b []byte) []byte {
	if b == nil {
		return []byte{}
	}
	return b
}

func normalizeRelayKeys(keys []uint32) []uint32 {
	if keys == nil {
		return []uint32{}
	}
	return keys
}
