// Command recompute rewrites programs' collected amounts from the donation
// ledger. It is safe to run at any time.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os/signal"
	"syscall"

	"donasi/internal/bootstrap"
	"donasi/internal/config"
	"donasi/internal/repository"
	"donasi/internal/service"

	"github.com/joho/godotenv"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	programID := flag.Uint("program", 0, "Recompute a single program (0 means all)")
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	db, _, err := bootstrap.InitRuntime(cfg, bootstrap.Options{})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	agg := service.NewAggregationService(repository.NewDonationLedger(db), repository.NewProgramRepository(db), nil)

	if *programID != 0 {
		collected, err := agg.RecomputeProgramFund(ctx, *programID)
		if err != nil {
			return fmt.Errorf("recompute program %d: %w", *programID, err)
		}
		log.Printf("program %d collected_amount=%s", *programID, collected.StringFixed(2))
		return nil
	}

	n, err := agg.RecomputeAllProgramFunds(ctx)
	if err != nil {
		return fmt.Errorf("recompute stopped after %d programs: %w", n, err)
	}
	log.Printf("recomputed %d programs", n)
	return nil
}
