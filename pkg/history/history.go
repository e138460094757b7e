// Copyright 2025 Certen Protocol
//
// Historical Interval Store
// On-chain registries record operator state as sequences of updates, each
// valid over a half-open block interval [update_block, next_update_block)
// where next_update_block == 0 means "still current". The verifier never
// searches these histories: the certificate nominates an index, and the
// verifier only validates that the nominated entry covers the reference
// block.

package history

import "fmt"

// MissingEntryError reports that no update exists at the nominated index.
type MissingEntryError struct {
	Index uint32
}

func (e *MissingEntryError) Error() string {
	return fmt.Sprintf("missing history entry %d", e.Index)
}

// NotInIntervalError reports that the reference block falls outside the
// validity interval of the nominated update.
type NotInIntervalError struct {
	Element  uint32
	Interval string
}

func (e *NotInIntervalError) Error() string {
	return fmt.Sprintf("element (%d) not in interval %s", e.Element, e.Interval)
}

// InvalidBlockOrderError reports an update whose block interval is
// degenerate: update_block >= next_update_block with next_update_block != 0.
type InvalidBlockOrderError struct {
	UpdateBlock     uint32
	NextUpdateBlock uint32
}

func (e *InvalidBlockOrderError) Error() string {
	return fmt.Sprintf("invalid block order: update block %d >= next update block %d", e.UpdateBlock, e.NextUpdateBlock)
}

// Update is a single historical entry: a value and the block interval during
// which it was active.
type Update[T any] struct {
	updateBlock     uint32
	nextUpdateBlock uint32
	value           T
}

// NewUpdate constructs an update, rejecting degenerate intervals. A
// nextUpdateBlock of 0 marks the update as still current.
func NewUpdate[T any](updateBlock, nextUpdateBlock uint32, value T) (Update[T], error) {
	if nextUpdateBlock != 0 && updateBlock >= nextUpdateBlock {
		return Update[T]{}, &InvalidBlockOrderError{
			UpdateBlock:     updateBlock,
			NextUpdateBlock: nextUpdateBlock,
		}
	}
	return Update[T]{
		updateBlock:     updateBlock,
		nextUpdateBlock: nextUpdateBlock,
		value:           value,
	}, nil
}

// UpdateBlock returns the first block at which the update is valid.
func (u Update[T]) UpdateBlock() uint32 { return u.updateBlock }

// NextUpdateBlock returns the first block at which the update was superseded
// (0 means never).
func (u Update[T]) NextUpdateBlock() uint32 { return u.nextUpdateBlock }

// Value returns the stored value unconditionally.
func (u Update[T]) Value() T { return u.value }

// Interval renders the validity interval in [a, b) notation.
func (u Update[T]) Interval() string {
	return fmt.Sprintf("[%d, %d)", u.updateBlock, u.nextUpdateBlock)
}

// Against returns the value iff referenceBlock lies inside the validity
// interval, treating nextUpdateBlock == 0 as "no upper bound".
func (u Update[T]) Against(referenceBlock uint32) (T, error) {
	inInterval := referenceBlock >= u.updateBlock &&
		(u.nextUpdateBlock == 0 || referenceBlock < u.nextUpdateBlock)
	if !inInterval {
		var zero T
		return zero, &NotInIntervalError{
			Element:  referenceBlock,
			Interval: u.Interval(),
		}
	}
	return u.value, nil
}

// History maps the indices a certificate may nominate to their updates.
type History[T any] map[uint32]Update[T]

// At fetches the update at the nominated index.
func (h History[T]) At(index uint32) (Update[T], error) {
	update, ok := h[index]
	if !ok {
		return Update[T]{}, &MissingEntryError{Index: index}
	}
	return update, nil
}
