// Copyright 2025 Certen Protocol
//
// EigenDA Certificate Wire Model
// Mirrors the Solidity structs of the EigenDA contracts
// (EigenDATypesV2.BatchHeaderV2, BlobCertificate, ...) plus the RLP
// envelope used when certificates are persisted as transaction calldata.

package cert

import (
	"errors"
	"fmt"
	"io"
	"math/big"

	"github.com/ethereum/go-ethereum/rlp"
)

// Certificate envelope version bytes.
const (
	// CertVersion2 tags an RLP-encoded version 2 certificate.
	CertVersion2 = 0x01
	// CertVersion3 tags an RLP-encoded version 3 certificate.
	CertVersion3 = 0x02
)

// Envelope parse errors
var (
	ErrEmptyCommitment        = errors.New("empty commitment data")
	ErrUnsupportedCertVersion = errors.New("unsupported cert version")
)

// G1Point is a point on the BN254 G1 curve in the contract wire encoding:
// two uint256 coordinates, with (0, 0) denoting the point at infinity.
type G1Point struct {
	X *big.Int
	Y *big.Int
}

// G2Point is a point on the BN254 G2 curve. Each coordinate is a quadratic
// extension field element encoded as [c0, c1] where the value is c0 + c1*i.
// All four zero denotes the point at infinity.
type G2Point struct {
	X []*big.Int
	Y []*big.Int
}

// BatchHeaderV2 summarizes a batch of blob certificates. The reference block
// number pins the operator-set snapshot that signature verification is
// evaluated against.
type BatchHeaderV2 struct {
	BatchRoot            [32]byte
	ReferenceBlockNumber uint32
}

// BlobCommitment carries the KZG commitment material for one blob. Length is
// the committed blob size in 32-byte symbols.
type BlobCommitment struct {
	Commitment       G1Point
	LengthCommitment G2Point
	LengthProof      G2Point
	Length           uint32
}

// BlobHeaderV2 describes one blob: its parameter version, the quorums it was
// dispersed to (strictly ascending bytes), its commitment, and the payment
// header hash.
type BlobHeaderV2 struct {
	Version           uint16
	QuorumNumbers     []byte
	Commitment        BlobCommitment
	PaymentHeaderHash [32]byte
}

// BlobCertificate is a blob header together with the disperser signature and
// the relay keys the blob can be retrieved from.
type BlobCertificate struct {
	BlobHeader BlobHeaderV2
	Signature  []byte
	RelayKeys  []uint32
}

// BlobInclusionInfo locates a blob certificate inside a batch: the
// certificate itself, its leaf index, and the sibling path of the Merkle
// inclusion proof.
type BlobInclusionInfo struct {
	BlobCertificate BlobCertificate
	BlobIndex       uint32
	InclusionProof  []byte
}

// NonSignerStakesAndSignature bundles the parallel sequences a certificate
// uses to index historical operator state, plus the aggregate signature
// material. The i-th element of each sequence describes the i-th non-signer
// or the i-th signed quorum respectively.
type NonSignerStakesAndSignature struct {
	NonSignerQuorumBitmapIndices []uint32
	NonSignerPubkeys             []G1Point
	QuorumApks                   []G1Point
	ApkG2                        G2Point
	Sigma                        G1Point
	QuorumApkIndices             []uint32
	TotalStakeIndices            []uint32
	NonSignerStakeIndices        [][]uint32
}

// CertV2 is the version 2 certificate layout.
type CertV2 struct {
	BlobInclusionInfo           BlobInclusionInfo
	BatchHeader                 BatchHeaderV2
	NonSignerStakesAndSignature NonSignerStakesAndSignature
	SignedQuorumNumbers         []byte
}

// CertV3 is the version 3 certificate layout. Same fields as V2 with the
// batch header leading.
type CertV3 struct {
	BatchHeader                 BatchHeaderV2
	BlobInclusionInfo           BlobInclusionInfo
	NonSignerStakesAndSignature NonSignerStakesAndSignature
	SignedQuorumNumbers         []byte
}

// StandardCommitment is the versioned certificate envelope: a single version
// byte followed by the RLP encoding of the certificate body.
type StandardCommitment struct {
	Version uint8
	V2      *CertV2
	V3      *CertV3
}

// ParseStandardCommitment decodes a certificate envelope from calldata
// bytes.
func ParseStandardCommitment(data []byte) (*StandardCommitment, error) {
	if len(data) == 0 {
		return nil, ErrEmptyCommitment
	}

	version, body := data[0], data[1:]
	switch version {
	case CertVersion2:
		var cert CertV2
		if err := rlp.DecodeBytes(body, &cert); err != nil {
			return nil, fmt.Errorf("decode v2 cert: %w", err)
		}
		return &StandardCommitment{Version: version, V2: &cert}, nil
	case CertVersion3:
		var cert CertV3
		if err := rlp.DecodeBytes(body, &cert); err != nil {
			return nil, fmt.Errorf("decode v3 cert: %w", err)
		}
		return &StandardCommitment{Version: version, V3: &cert}, nil
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedCertVersion, version)
	}
}

// Encode serializes the envelope back to calldata bytes.
func (c *StandardCommitment) Encode() ([]byte, error) {
	var body interface{}
	switch c.Version {
	case CertVersion2:
		body = c.V2
	case CertVersion3:
		body = c.V3
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedCertVersion, c.Version)
	}

	encoded, err := rlp.EncodeToBytes(body)
	if err != nil {
		return nil, fmt.Errorf("encode cert: %w", err)
	}
	return append([]byte{c.Version}, encoded...), nil
}

// DecodeStandardCommitment reads an envelope from an RLP stream wrapper.
func DecodeStandardCommitment(r io.Reader) (*StandardCommitment, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	return ParseStandardCommitment(data)
}

// BatchHeader returns the batch header regardless of envelope version.
func (c *StandardCommitment) BatchHeader() *BatchHeaderV2 {
	if c.V2 != nil {
		return &c.V2.BatchHeader
	}
	return &c.V3.BatchHeader
}

// BlobInclusion returns the blob inclusion info regardless of envelope
// version.
func (c *StandardCommitment) BlobInclusion() *BlobInclusionInfo {
	if c.V2 != nil {
		return &c.V2.BlobInclusionInfo
	}
	return &c.V3.BlobInclusionInfo
}

// NonSignerStakesAndSignature returns the stake-and-signature bundle
// regardless of envelope version.
func (c *StandardCommitment) NonSignerStakesAndSignature() *NonSignerStakesAndSignature {
	if c.V2 != nil {
		return &c.V2.NonSignerStakesAndSignature
	}
	return &c.V3.NonSignerStakesAndSignature
}

// SignedQuorumNumbers returns the quorums that met threshold, as strictly
// ascending bytes.
func (c *StandardCommitment) SignedQuorumNumbers() []byte {
	if c.V2 != nil {
		return c.V2.SignedQuorumNumbers
	}
	return c.V3.SignedQuorumNumbers
}

// BlobVersion returns the blob parameter version the certificate claims.
func (c *StandardCommitment) BlobVersion() uint16 {
	return c.BlobInclusion().BlobCertificate.BlobHeader.Version
}

// ReferenceBlockNumber returns the operator-set snapshot block.
func (c *StandardCommitment) ReferenceBlockNumber() uint32 {
	return c.BatchHeader().ReferenceBlockNumber
}

// NewG1Point builds a wire point from uint64 coordinates. Test helper
// friendly constructor; production points come off the wire.
func NewG1Point(x, y uint64) G1Point {
	return G1Point{X: new(big.Int).SetUint64(x), Y: new(big.Int).SetUint64(y)}
}

// ZeroG1 returns the wire encoding of the G1 point at infinity.
func ZeroG1() G1Point {
	return G1Point{X: new(big.Int), Y: new(big.Int)}
}

// ZeroG2 returns the wire encoding of the G2 point at infinity.
func ZeroG2() G2Point {
	return G2Point{
		X: []*big.Int{new(big.Int), new(big.Int)},
		Y: []*big.Int{new(big.Int), new(big.Int)},
	}
}
