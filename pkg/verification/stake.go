// Copyright 2025 Certen Protocol
//
// Checked 96-bit Stake Arithmetic
// Stake amounts are uint96 on chain. All arithmetic is checked: crossing the
// 96-bit bound surfaces as Overflow, a negative difference as Underflow, so
// threshold math can never wrap silently.

package verification

import (
	"github.com/holiman/uint256"
)

// stakeBits is the on-chain width of a stake amount.
const stakeBits = 96

// Stake is an unsigned 96-bit stake amount.
type Stake struct {
	v uint256.Int
}

// NewStake builds a stake from a uint64 amount.
func NewStake(amount uint64) Stake {
	var s Stake
	s.v.SetUint64(amount)
	return s
}

// StakeFromUint256 builds a stake from a uint256 value, rejecting values
// that do not fit in 96 bits.
func StakeFromUint256(v *uint256.Int) (Stake, error) {
	if v.BitLen() > stakeBits {
		return Stake{}, ErrOverflow
	}
	var s Stake
	s.v.Set(v)
	return s, nil
}

// StakeFromLittleEndianBytes decodes a stake from up to 12 little-endian
// bytes, the layout used inside storage slots.
func StakeFromLittleEndianBytes(le []byte) Stake {
	var s Stake
	buf := make([]byte, 0, len(le))
	for i := len(le) - 1; i >= 0; i-- {
		buf = append(buf, le[i])
	}
	s.v.SetBytes(buf)
	return s
}

// Add returns s + other, or Overflow past the 96-bit bound.
func (s Stake) Add(other Stake) (Stake, error) {
	var out Stake
	out.v.Add(&s.v, &other.v)
	if out.v.BitLen() > stakeBits {
		return Stake{}, ErrOverflow
	}
	return out, nil
}

// Sub returns s - other, or Underflow when other exceeds s.
func (s Stake) Sub(other Stake) (Stake, error) {
	if s.v.Lt(&other.v) {
		return Stake{}, ErrUnderflow
	}
	var out Stake
	out.v.Sub(&s.v, &other.v)
	return out, nil
}

// MulUint64 returns s * m, or Overflow past the 96-bit bound.
func (s Stake) MulUint64(m uint64) (Stake, error) {
	var factor uint256.Int
	factor.SetUint64(m)
	var out Stake
	out.v.Mul(&s.v, &factor)
	if out.v.BitLen() > stakeBits {
		return Stake{}, ErrOverflow
	}
	return out, nil
}

// Cmp compares two stakes: -1 if s < other, 0 if equal, 1 if s > other.
func (s Stake) Cmp(other Stake) int {
	return s.v.Cmp(&other.v)
}

// IsZero reports whether the stake is zero.
func (s Stake) IsZero() bool {
	return s.v.IsZero()
}

// Uint64 returns the stake as a uint64; callers use this only for display.
func (s Stake) Uint64() uint64 {
	return s.v.Uint64()
}

// MaxStake returns the largest representable stake, 2^96 - 1.
func MaxStake() Stake {
	var s Stake
	s.v.SetAllOne()
	s.v.Rsh(&s.v, 256-stakeBits)
	return s
}

func (s Stake) String() string {
	return s.v.Dec()
}
