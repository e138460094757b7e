// Copyright 2025 Certen Protocol
//
// KZG Commitment Verification (BN254)
// Recomputes the polynomial commitment of an encoded payload against a
// structured reference string and compares it with the commitment claimed by
// the certificate. The encoded payload is interpreted as a coefficient-form
// polynomial whose coefficients are its 32-byte symbols read as BN254 scalar
// field elements.

package kzg

import (
	"errors"
	"fmt"
	"math/big"
	"math/bits"
	"os"
	"sync"

	"github.com/consensys/gnark-crypto/ecc"
	bn254 "github.com/consensys/gnark-crypto/ecc/bn254"
	"github.com/consensys/gnark-crypto/ecc/bn254/fr"

	"github.com/certen/eigenda-cert-validator/pkg/cert"
	"github.com/certen/eigenda-cert-validator/pkg/codec"
	"github.com/certen/eigenda-cert-validator/pkg/crypto/curve"
)

// Common errors
var (
	ErrBlobLargerThanCommitmentLength = errors.New("blob larger than commitment length")
	ErrCommitmentLengthNotPowerOfTwo  = errors.New("commitment length not a power of two")
	ErrInvalidKzgCommitment           = errors.New("invalid kzg commitment")
	ErrSRSTooSmall                    = errors.New("srs has fewer points than blob symbols")
	ErrInvalidSRSLength               = errors.New("srs file length not a multiple of the point size")
	ErrEmptySRS                       = errors.New("srs has no points")
)

// SRS is a structured reference string: successive powers of an unknown
// secret applied to the G1 generator. The table is a process-wide read-only
// resource; load it once and share it across verifications.
type SRS struct {
	G1 []bn254.G1Affine
}

var (
	defaultSRS     *SRS
	defaultSRSErr  error
	defaultSRSOnce sync.Once
)

// LoadFile reads an SRS from a file of concatenated 32-byte compressed G1
// points.
func LoadFile(path string) (*SRS, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read srs file: %w", err)
	}
	return Parse(data)
}

// LoadFileOnce loads the process-wide SRS on first use and returns the same
// table thereafter.
func LoadFileOnce(path string) (*SRS, error) {
	defaultSRSOnce.Do(func() {
		defaultSRS, defaultSRSErr = LoadFile(path)
	})
	return defaultSRS, defaultSRSErr
}

// Parse decodes an SRS from concatenated compressed G1 points.
func Parse(data []byte) (*SRS, error) {
	pointSize := bn254.SizeOfG1AffineCompressed
	if len(data)%pointSize != 0 {
		return nil, fmt.Errorf("%w: %d bytes", ErrInvalidSRSLength, len(data))
	}
	count := len(data) / pointSize
	if count == 0 {
		return nil, ErrEmptySRS
	}

	points := make([]bn254.G1Affine, count)
	for i := 0; i < count; i++ {
		if _, err := points[i].SetBytes(data[i*pointSize : (i+1)*pointSize]); err != nil {
			return nil, fmt.Errorf("decode srs point %d: %w", i, err)
		}
	}
	return &SRS{G1: points}, nil
}

// Deterministic derives an SRS of n points from a fixed secret. Development
// and test use only: the secret is public, so commitments made against this
// table carry no binding guarantee.
func Deterministic(n int) *SRS {
	var tau fr.Element
	tau.SetUint64(424242)

	scalars := make([]fr.Element, n)
	power := fr.One()
	for i := 0; i < n; i++ {
		scalars[i] = power
		power.Mul(&power, &tau)
	}

	points := make([]bn254.G1Affine, n)
	gen := curve.G1Generator()
	for i := range scalars {
		var kBig big.Int
		scalars[i].BigInt(&kBig)
		points[i].ScalarMultiplication(&gen, &kBig)
	}
	return &SRS{G1: points}
}

// Commit computes the KZG commitment of an encoded payload:
// C = sum_i coef_i * SRS_i over the payload's 32-byte symbols.
func (s *SRS) Commit(encodedPayload []byte) (bn254.G1Affine, error) {
	var commitment bn254.G1Affine

	if len(encodedPayload)%codec.BytesPerSymbol != 0 {
		return commitment, fmt.Errorf("%w: %d bytes", codec.ErrInvalidLengthEncodedPayload, len(encodedPayload))
	}
	symbols := len(encodedPayload) / codec.BytesPerSymbol
	if symbols == 0 {
		// the zero polynomial commits to the identity
		return commitment, nil
	}
	if symbols > len(s.G1) {
		return commitment, fmt.Errorf("%w: %d symbols, %d points", ErrSRSTooSmall, symbols, len(s.G1))
	}

	coefficients := make([]fr.Element, symbols)
	for i := 0; i < symbols; i++ {
		coefficients[i].SetBytes(encodedPayload[i*codec.BytesPerSymbol : (i+1)*codec.BytesPerSymbol])
	}

	var acc bn254.G1Jac
	if _, err := acc.MultiExp(s.G1[:symbols], coefficients, ecc.MultiExpConfig{}); err != nil {
		return commitment, fmt.Errorf("multiexp: %w", err)
	}

	commitment.FromJacobian(&acc)
	return commitment, nil
}

// VerifyBlob runs the blob checks against a claimed commitment: the blob
// must not exceed the committed symbol count, the committed count must be a
// power of two, and the recomputed commitment must equal the claimed one.
func VerifyBlob(blobCommitment *cert.BlobCommitment, encodedPayload []byte, srs *SRS) error {
	blobSymbols := len(encodedPayload) / codec.BytesPerSymbol

	if blobSymbols > int(blobCommitment.Length) {
		return fmt.Errorf("%w: %d > %d symbols", ErrBlobLargerThanCommitmentLength, blobSymbols, blobCommitment.Length)
	}

	// zero is not a power of two, so this also enforces length > 0
	if bits.OnesCount32(blobCommitment.Length) != 1 {
		return fmt.Errorf("%w: %d", ErrCommitmentLengthNotPowerOfTwo, blobCommitment.Length)
	}

	computed, err := srs.Commit(encodedPayload)
	if err != nil {
		return err
	}

	claimed := curve.G1FromPoint(blobCommitment.Commitment)
	if !computed.Equal(&claimed) {
		return ErrInvalidKzgCommitment
	}
	return nil
}
