// Copyright 2025 Certen Protocol
//
// Verification API Handler Tests
// Request-validation paths only; the cryptographic pipeline is covered by
// the verification package tests.

package server

import (
	"context"
	"encoding/json"
	"errors"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/certen/eigenda-cert-validator/pkg/config"
	"github.com/certen/eigenda-cert-validator/pkg/kzg"
	"github.com/certen/eigenda-cert-validator/pkg/proof"
)

type stubBackend struct{}

func (stubBackend) BlockNumber(ctx context.Context) (uint64, error) {
	return 0, errors.New("stub backend has no chain")
}

func (stubBackend) HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error) {
	return nil, errors.New("stub backend has no chain")
}

func (stubBackend) GetProof(ctx context.Context, address common.Address, keys []common.Hash, blockNumber *big.Int) ([][]byte, []proof.StorageEntry, error) {
	return nil, nil, errors.New("stub backend has no chain")
}

func testHandlers() *VerifyHandlers {
	cfg := &config.Config{ValidatorID: "test", CertRecencyWindow: 100}
	return NewVerifyHandlers(stubBackend{}, kzg.Deterministic(2), cfg, nil, nil)
}

func TestHandleVerify_MethodNotAllowed(t *testing.T) {
	h := testHandlers()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/verify", nil)
	rec := httptest.NewRecorder()

	h.HandleVerify(rec, req)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("status mismatch: got %d, want 405", rec.Code)
	}
}

func TestHandleVerify_BadJSON(t *testing.T) {
	h := testHandlers()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/verify", strings.NewReader("{not json"))
	rec := httptest.NewRecorder()

	h.HandleVerify(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status mismatch: got %d, want 400", rec.Code)
	}
}

func TestHandleVerify_BadCertificateHex(t *testing.T) {
	h := testHandlers()
	body := `{"certificate": "0xzz"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/verify", strings.NewReader(body))
	rec := httptest.NewRecorder()

	h.HandleVerify(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status mismatch: got %d, want 400", rec.Code)
	}

	var response map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&response); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if response["error"] != "INVALID_CERTIFICATE" {
		t.Errorf("error code mismatch: %v", response)
	}
}

func TestHandleVerify_UnparseableCertificate(t *testing.T) {
	h := testHandlers()
	// version byte 3 is unsupported
	body := `{"certificate": "0x0303"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/verify", strings.NewReader(body))
	rec := httptest.NewRecorder()

	h.HandleVerify(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status mismatch: got %d, want 400", rec.Code)
	}
}

func TestHandleHealth(t *testing.T) {
	h := testHandlers()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()

	h.HandleHealth(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("status mismatch: got %d, want 200", rec.Code)
	}
}

func TestTruncateRule(t *testing.T) {
	if got := truncateRule("underflow"); got != "underflow" {
		t.Errorf("plain rule changed: %s", got)
	}
	if got := truncateRule("reference header: connection refused"); got != "reference header" {
		t.Errorf("chained rule not truncated: %s", got)
	}
	long := strings.Repeat("a", 100)
	if got := truncateRule(long); len(got) != 64 {
		t.Errorf("long rule not bounded: %d", len(got))
	}
}
