// Copyright 2025 Certen Protocol
//
// Certificate Recency Tests

package ethereum

import (
	"errors"
	"testing"
)

func TestVerifyCertRecency(t *testing.T) {
	successCases := []struct {
		name             string
		referencedHeight uint64
		window           uint64
		inclusionOffset  uint64
	}{
		{"exactly at window boundary", 100, 50, 50},
		{"well within window", 100, 50, 40},
		{"same block as reference", 100, 50, 0},
		{"zero window", 100, 0, 0},
	}
	for _, tc := range successCases {
		err := VerifyCertRecency(tc.referencedHeight+tc.inclusionOffset, tc.referencedHeight, tc.window)
		if err != nil {
			t.Errorf("%s: unexpected error: %v", tc.name, err)
		}
	}

	failureCases := []struct {
		name             string
		referencedHeight uint64
		window           uint64
		inclusionOffset  uint64
	}{
		{"one block past window", 100, 50, 51},
		{"far past window", 100, 50, 150},
		{"zero window failure", 100, 0, 1},
	}
	for _, tc := range failureCases {
		err := VerifyCertRecency(tc.referencedHeight+tc.inclusionOffset, tc.referencedHeight, tc.window)
		if !errors.Is(err, ErrRecencyWindowMissed) {
			t.Errorf("%s: expected ErrRecencyWindowMissed, got %v", tc.name, err)
		}
	}
}
