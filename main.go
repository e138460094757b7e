// Copyright 2025 Certen Protocol
//
// EigenDA Certificate Validator Service
// Independent verification of EigenDA data-availability certificates against
// parent-chain state: storage proofs in, verdicts out.

package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/certen/eigenda-cert-validator/pkg/config"
	"github.com/certen/eigenda-cert-validator/pkg/database"
	"github.com/certen/eigenda-cert-validator/pkg/ethereum"
	"github.com/certen/eigenda-cert-validator/pkg/kzg"
	"github.com/certen/eigenda-cert-validator/pkg/metrics"
	"github.com/certen/eigenda-cert-validator/pkg/server"
)

func main() {
	logger := log.New(os.Stdout, "[Validator] ", log.LstdFlags)

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("Failed to load configuration: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatalf("Invalid configuration: %v", err)
	}

	// The SRS table is a process-wide read-only resource; loading it here
	// front-loads the one-time deserialization cost.
	srs, err := kzg.LoadFileOnce(cfg.SRSPath)
	if err != nil {
		logger.Fatalf("Failed to load SRS from %s: %v", cfg.SRSPath, err)
	}
	logger.Printf("Loaded SRS with %d G1 points", len(srs.G1))

	ethClient, err := ethereum.NewClient(cfg.EthereumURL)
	if err != nil {
		logger.Fatalf("Failed to connect to Ethereum at %s: %v", cfg.EthereumURL, err)
	}
	defer ethClient.Close()

	var results *database.VerificationResultRepository
	if cfg.DatabaseEnabled() {
		dbClient, err := database.NewClient(cfg)
		if err != nil {
			logger.Fatalf("Failed to connect to database: %v", err)
		}
		defer dbClient.Close()
		results = dbClient.VerificationResults()
		logger.Println("Verification audit trail enabled")
	}

	mux := http.NewServeMux()
	handlers := server.NewVerifyHandlers(ethClient, srs, cfg, results, nil)
	handlers.Register(mux)

	httpServer := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := metrics.Serve(cfg.MetricsAddr); err != nil && err != http.ErrServerClosed {
			logger.Printf("Metrics server stopped: %v", err)
		}
	}()

	go func() {
		logger.Printf("Serving verification API on %s", cfg.ListenAddr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("HTTP server failed: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Println("Shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Printf("Shutdown error: %v", err)
	}
}
