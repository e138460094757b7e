// Copyright 2025 Certen Protocol
//
// verify-cert
// One-shot certificate verification from the command line: reads a
// hex-encoded certificate (and optionally an encoded payload file), fetches
// the contract state proofs from an Ethereum endpoint, and prints the
// verdict.

package main

import (
	"context"
	"encoding/hex"
	"flag"
	"fmt"
	"log"
	"math/big"
	"os"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/certen/eigenda-cert-validator/pkg/cert"
	"github.com/certen/eigenda-cert-validator/pkg/config"
	"github.com/certen/eigenda-cert-validator/pkg/ethereum"
	"github.com/certen/eigenda-cert-validator/pkg/kzg"
	"github.com/certen/eigenda-cert-validator/pkg/proof"
	"github.com/certen/eigenda-cert-validator/pkg/storage"
	"github.com/certen/eigenda-cert-validator/pkg/verification"
)

func main() {
	certHex := flag.String("cert", "", "hex-encoded certificate envelope (required)")
	payloadPath := flag.String("payload", "", "path to the encoded payload file (optional)")
	timeout := flag.Duration("timeout", 60*time.Second, "overall timeout")
	flag.Parse()

	logger := log.New(os.Stderr, "[verify-cert] ", log.LstdFlags)

	if *certHex == "" {
		logger.Fatal("-cert is required")
	}

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("load configuration: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatalf("invalid configuration: %v", err)
	}

	certBytes, err := hex.DecodeString(strings.TrimPrefix(*certHex, "0x"))
	if err != nil {
		logger.Fatalf("decode certificate hex: %v", err)
	}
	commitment, err := cert.ParseStandardCommitment(certBytes)
	if err != nil {
		logger.Fatalf("parse certificate: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	client, err := ethereum.NewClient(cfg.EthereumURL)
	if err != nil {
		logger.Fatalf("connect to Ethereum: %v", err)
	}
	defer client.Close()

	currentBlock, err := client.BlockNumber(ctx)
	if err != nil {
		logger.Fatalf("chain head: %v", err)
	}

	inputs, err := assembleInputs(ctx, client, cfg, commitment, currentBlock)
	if err != nil {
		logger.Fatalf("assemble state: %v", err)
	}

	if err := verification.VerifyCert(inputs); err != nil {
		fmt.Printf("INVALID: %v\n", err)
		os.Exit(1)
	}

	if *payloadPath != "" {
		encodedPayload, err := os.ReadFile(*payloadPath)
		if err != nil {
			logger.Fatalf("read payload: %v", err)
		}
		srs, err := kzg.LoadFileOnce(cfg.SRSPath)
		if err != nil {
			logger.Fatalf("load SRS: %v", err)
		}
		blobCommitment := &commitment.BlobInclusion().BlobCertificate.BlobHeader.Commitment
		if err := verification.VerifyBlob(blobCommitment, encodedPayload, srs); err != nil {
			fmt.Printf("INVALID: %v\n", err)
			os.Exit(1)
		}
	}

	fmt.Println("VALID")
}

func assembleInputs(ctx context.Context, client *ethereum.Client, cfg *config.Config, commitment *cert.StandardCommitment, currentBlock uint64) (*verification.CertVerificationInputs, error) {
	referenceBlock := uint64(commitment.ReferenceBlockNumber())
	refHeader, err := client.HeaderByNumber(ctx, new(big.Int).SetUint64(referenceBlock))
	if err != nil {
		return nil, fmt.Errorf("reference header: %w", err)
	}

	required := storage.RequiredKeys(commitment)
	data := &storage.CertStateData{}

	contracts := []struct {
		address string
		keys    []common.Hash
		dst     *[]storage.StorageProof
	}{
		{cfg.RegistryCoordinatorAddress, required.RegistryCoordinator, &data.RegistryCoordinator},
		{cfg.StakeRegistryAddress, required.StakeRegistry, &data.StakeRegistry},
		{cfg.BlsApkRegistryAddress, required.BlsApkRegistry, &data.BlsApkRegistry},
		{cfg.ThresholdRegistryAddress, required.ThresholdRegistry, &data.ThresholdRegistry},
		{cfg.CertVerifierAddress, required.CertVerifier, &data.CertVerifier},
		{cfg.ServiceManagerAddress, required.ServiceManager, &data.ServiceManager},
		{cfg.DelegationManagerAddress, required.DelegationManager, &data.DelegationManager},
	}

	for _, contract := range contracts {
		address := common.HexToAddress(contract.address)
		accountProof, entries, err := client.GetProof(ctx, address, contract.keys, new(big.Int).SetUint64(referenceBlock))
		if err != nil {
			return nil, fmt.Errorf("proofs for %s: %w", address, err)
		}
		proofs, err := proof.VerifyContractStorage(refHeader.Root, address, accountProof, entries)
		if err != nil {
			return nil, err
		}
		*contract.dst = proofs
	}

	return data.Extract(commitment, uint32(currentBlock))
}
