// Copyright 2025 Certen Protocol
//
// Certificate Verification API Handlers
// POST /api/v1/verify drives the full pipeline: parse the certificate,
// fetch and verify storage proofs at the reference block, extract the
// Storage record, run the certificate checks, and (when a payload is
// supplied) the blob checks.

package server

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log"
	"math/big"
	"net/http"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/google/uuid"

	"github.com/certen/eigenda-cert-validator/pkg/cert"
	"github.com/certen/eigenda-cert-validator/pkg/config"
	"github.com/certen/eigenda-cert-validator/pkg/database"
	"github.com/certen/eigenda-cert-validator/pkg/ethereum"
	"github.com/certen/eigenda-cert-validator/pkg/kzg"
	"github.com/certen/eigenda-cert-validator/pkg/metrics"
	"github.com/certen/eigenda-cert-validator/pkg/proof"
	"github.com/certen/eigenda-cert-validator/pkg/storage"
	"github.com/certen/eigenda-cert-validator/pkg/verification"
)

// ChainBackend is the parent-chain access the handlers need. Implemented by
// pkg/ethereum.Client.
type ChainBackend interface {
	BlockNumber(ctx context.Context) (uint64, error)
	HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error)
	GetProof(ctx context.Context, address common.Address, keys []common.Hash, blockNumber *big.Int) ([][]byte, []proof.StorageEntry, error)
}

// VerifyHandlers provides the verification API.
type VerifyHandlers struct {
	backend ChainBackend
	srs     *kzg.SRS
	cfg     *config.Config
	results *database.VerificationResultRepository // nil when auditing is disabled
	logger  *log.Logger
}

// NewVerifyHandlers creates the verification handlers.
func NewVerifyHandlers(backend ChainBackend, srs *kzg.SRS, cfg *config.Config, results *database.VerificationResultRepository, logger *log.Logger) *VerifyHandlers {
	if logger == nil {
		logger = log.New(log.Writer(), "[VerifyAPI] ", log.LstdFlags)
	}
	return &VerifyHandlers{
		backend: backend,
		srs:     srs,
		cfg:     cfg,
		results: results,
		logger:  logger,
	}
}

// Register installs the handlers on a mux.
func (h *VerifyHandlers) Register(mux *http.ServeMux) {
	mux.HandleFunc("/api/v1/verify", h.HandleVerify)
	mux.HandleFunc("/health", h.HandleHealth)
}

type verifyRequest struct {
	// Certificate is the hex-encoded RLP certificate envelope.
	Certificate string `json:"certificate"`
	// EncodedPayload is the hex-encoded encoded payload; optional. When
	// absent only the certificate is verified.
	EncodedPayload string `json:"encoded_payload,omitempty"`
	// InclusionBlock is the block the certificate was persisted at; used
	// for the recency rule. Optional; 0 skips the recency check.
	InclusionBlock uint64 `json:"inclusion_block,omitempty"`
}

type verifyResponse struct {
	RequestID      string `json:"request_id"`
	Valid          bool   `json:"valid"`
	FailureRule    string `json:"failure_rule,omitempty"`
	ReferenceBlock uint32 `json:"reference_block"`
	CurrentBlock   uint32 `json:"current_block"`
	Payload        string `json:"payload,omitempty"`
}

// HandleVerify handles POST /api/v1/verify.
func (h *VerifyHandlers) HandleVerify(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		h.writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Only POST is allowed")
		return
	}

	var req verifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "INVALID_JSON", err.Error())
		return
	}

	certBytes, err := decodeHex(req.Certificate)
	if err != nil || len(certBytes) == 0 {
		h.writeError(w, http.StatusBadRequest, "INVALID_CERTIFICATE", "certificate must be non-empty hex")
		return
	}

	var encodedPayload []byte
	if req.EncodedPayload != "" {
		encodedPayload, err = decodeHex(req.EncodedPayload)
		if err != nil {
			h.writeError(w, http.StatusBadRequest, "INVALID_PAYLOAD", "encoded_payload must be hex")
			return
		}
	}

	commitment, err := cert.ParseStandardCommitment(certBytes)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "INVALID_CERTIFICATE", err.Error())
		return
	}

	requestID := uuid.New()
	start := time.Now()

	response, status := h.verify(r.Context(), requestID, commitment, encodedPayload, req.InclusionBlock)
	metrics.ObserveDuration(start)

	h.audit(r.Context(), requestID, commitment, response)
	h.writeJSON(w, status, response)
}

// verify runs the full pipeline against live chain state.
func (h *VerifyHandlers) verify(ctx context.Context, requestID uuid.UUID, commitment *cert.StandardCommitment, encodedPayload []byte, inclusionBlock uint64) (*verifyResponse, int) {
	referenceBlock := commitment.ReferenceBlockNumber()

	if inclusionBlock > 0 {
		if err := ethereum.VerifyCertRecency(inclusionBlock, uint64(referenceBlock), h.cfg.CertRecencyWindow); err != nil {
			return h.rejection(requestID, referenceBlock, 0, err), http.StatusOK
		}
	}

	currentBlock, err := h.backend.BlockNumber(ctx)
	if err != nil {
		metrics.RPCErrors.Inc()
		h.logger.Printf("request %s: block number: %v", requestID, err)
		return h.rejection(requestID, referenceBlock, 0, fmt.Errorf("chain head unavailable: %w", err)), http.StatusBadGateway
	}

	inputs, err := h.assembleInputs(ctx, commitment, referenceBlock, uint32(currentBlock))
	if err != nil {
		h.logger.Printf("request %s: state assembly: %v", requestID, err)
		return h.rejection(requestID, referenceBlock, uint32(currentBlock), err), http.StatusOK
	}

	if err := verification.VerifyCert(inputs); err != nil {
		return h.rejection(requestID, referenceBlock, uint32(currentBlock), err), http.StatusOK
	}

	response := &verifyResponse{
		RequestID:      requestID.String(),
		Valid:          true,
		ReferenceBlock: referenceBlock,
		CurrentBlock:   uint32(currentBlock),
	}

	if encodedPayload != nil {
		blobCommitment := &commitment.BlobInclusion().BlobCertificate.BlobHeader.Commitment
		if err := verification.VerifyBlob(blobCommitment, encodedPayload, h.srs); err != nil {
			return h.rejection(requestID, referenceBlock, uint32(currentBlock), err), http.StatusOK
		}
		payload, err := verification.DecodePayload(encodedPayload)
		if err != nil {
			return h.rejection(requestID, referenceBlock, uint32(currentBlock), err), http.StatusOK
		}
		response.Payload = "0x" + hex.EncodeToString(payload)
	}

	metrics.CertificatesVerified.Inc()
	return response, http.StatusOK
}

// contractKeys pairs a configured contract address with the storage keys to
// prove there.
type contractKeys struct {
	address common.Address
	keys    []common.Hash
	dst     *[]storage.StorageProof
}

// assembleInputs fetches and verifies the storage proofs for every EigenDA
// contract at the reference block, then extracts the verification inputs.
func (h *VerifyHandlers) assembleInputs(ctx context.Context, commitment *cert.StandardCommitment, referenceBlock uint32, currentBlock uint32) (*verification.CertVerificationInputs, error) {
	refHeader, err := h.backend.HeaderByNumber(ctx, new(big.Int).SetUint64(uint64(referenceBlock)))
	if err != nil {
		metrics.RPCErrors.Inc()
		return nil, fmt.Errorf("reference header: %w", err)
	}
	stateRoot := refHeader.Root

	required := storage.RequiredKeys(commitment)
	data := &storage.CertStateData{}

	plan := []contractKeys{
		{common.HexToAddress(h.cfg.RegistryCoordinatorAddress), required.RegistryCoordinator, &data.RegistryCoordinator},
		{common.HexToAddress(h.cfg.StakeRegistryAddress), required.StakeRegistry, &data.StakeRegistry},
		{common.HexToAddress(h.cfg.BlsApkRegistryAddress), required.BlsApkRegistry, &data.BlsApkRegistry},
		{common.HexToAddress(h.cfg.ThresholdRegistryAddress), required.ThresholdRegistry, &data.ThresholdRegistry},
		{common.HexToAddress(h.cfg.CertVerifierAddress), required.CertVerifier, &data.CertVerifier},
		{common.HexToAddress(h.cfg.ServiceManagerAddress), required.ServiceManager, &data.ServiceManager},
		{common.HexToAddress(h.cfg.DelegationManagerAddress), required.DelegationManager, &data.DelegationManager},
	}

	for _, contract := range plan {
		accountProof, entries, err := h.backend.GetProof(ctx, contract.address, contract.keys, new(big.Int).SetUint64(uint64(referenceBlock)))
		if err != nil {
			metrics.RPCErrors.Inc()
			return nil, fmt.Errorf("proof retrieval for %s: %w", contract.address, err)
		}
		proofs, err := proof.VerifyContractStorage(stateRoot, contract.address, accountProof, entries)
		if err != nil {
			return nil, err
		}
		*contract.dst = proofs
	}

	return data.Extract(commitment, currentBlock)
}

func (h *VerifyHandlers) rejection(requestID uuid.UUID, referenceBlock, currentBlock uint32, err error) *verifyResponse {
	rule := err.Error()
	metrics.CertificatesRejected.WithLabelValues(truncateRule(rule)).Inc()
	return &verifyResponse{
		RequestID:      requestID.String(),
		Valid:          false,
		FailureRule:    rule,
		ReferenceBlock: referenceBlock,
		CurrentBlock:   currentBlock,
	}
}

func (h *VerifyHandlers) audit(ctx context.Context, requestID uuid.UUID, commitment *cert.StandardCommitment, response *verifyResponse) {
	if h.results == nil {
		return
	}

	verdict := "valid"
	if !response.Valid {
		verdict = "invalid"
	}
	result := &database.VerificationResult{
		RequestID:      requestID,
		ValidatorID:    h.cfg.ValidatorID,
		CertVersion:    commitment.Version,
		ReferenceBlock: response.ReferenceBlock,
		CurrentBlock:   response.CurrentBlock,
		Verdict:        verdict,
		FailureRule:    response.FailureRule,
	}
	if err := h.results.Save(ctx, result); err != nil {
		h.logger.Printf("request %s: audit save failed: %v", requestID, err)
	}
}

// HandleHealth handles GET /health.
func (h *VerifyHandlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		h.writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Only GET is allowed")
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *VerifyHandlers) writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.logger.Printf("Error encoding response: %v", err)
	}
}

func (h *VerifyHandlers) writeError(w http.ResponseWriter, status int, code, message string) {
	h.writeJSON(w, status, map[string]string{"error": code, "message": message})
}

func decodeHex(s string) ([]byte, error) {
	return hex.DecodeString(strings.TrimPrefix(s, "0x"))
}

// truncateRule keeps metric label cardinality bounded: only the leading
// rule description, not the full error chain.
func truncateRule(rule string) string {
	if i := strings.IndexByte(rule, ':'); i > 0 {
		rule = rule[:i]
	}
	if len(rule) > 64 {
		rule = rule[:64]
	}
	return rule
}
