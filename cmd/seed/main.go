// Command seed fills the database with demo users, programs and donations.
package main

import (
	"context"
	"flag"
	"log"

	"donasi/internal/bootstrap"
	"donasi/internal/config"
	"donasi/internal/seed"

	"github.com/joho/godotenv"
)

func main() {
	defaults := seed.DefaultOptions()
	donors := flag.Int("donors", defaults.Donors, "Number of donor accounts to create")
	proposers := flag.Int("proposers", defaults.Proposers, "Number of pengusul accounts to create")
	programs := flag.Int("programs", defaults.ProgramsPerProposer, "Programs per pengusul")
	donations := flag.Int("donations", defaults.DonationsPerProgram, "Donations per active program")
	fast := flag.Bool("fast", false, "Store plain passwords instead of bcrypt hashes")
	shouldClean := flag.Bool("clean", true, "Clean database before seeding")
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if cfg.IsProduction() {
		log.Fatal("Refusing to seed a production database")
	}

	db, _, err := bootstrap.InitRuntime(cfg, bootstrap.Options{Migrate: true})
	if err != nil {
		log.Fatalf("Failed to initialize runtime: %v", err)
	}

	opts := defaults
	opts.Donors = *donors
	opts.Proposers = *proposers
	opts.ProgramsPerProposer = *programs
	opts.DonationsPerProgram = *donations
	opts.SkipBcrypt = *fast

	s := seed.NewSeeder(db, opts)
	if *shouldClean {
		if err := s.ClearAll(); err != nil {
			log.Fatalf("Cleanup failed: %v", err)
		}
	}

	res, err := s.Seed(context.Background())
	if err != nil {
		log.Fatalf("Seeding failed: %v", err)
	}

	log.Printf("Seeded %d users, %d programs, %d articles, %d donations",
		res.Users, res.Programs, res.Articles, res.Donations)
	log.Printf("All seeded accounts use the password: %s", seed.DefaultPassword)
}
