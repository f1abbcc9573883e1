// Command main runs the database seeder for the travel diary backend.
package main

import (
	"context"
	"flag"
	"log"

	"github.com/traveldairy2025nju/td-backend/internal/config"
	"github.com/traveldairy2025nju/td-backend/internal/database"
	"github.com/traveldairy2025nju/td-backend/internal/seed"
)

func main() {
	numUsers := flag.Int("users", 50, "Number of regular users to create")
	numReviewers := flag.Int("reviewers", 3, "Number of reviewers to create")
	numEntries := flag.Int("entries", 200, "Number of diary entries to create")
	maxDays := flag.Int("days", 90, "Spread entry timestamps over this many days")
	pending := flag.Int("pending", 25, "Percentage of entries left pending")
	rejected := flag.Int("rejected", 15, "Percentage of entries rejected")
	shouldClean := flag.Bool("clean", true, "Clean database before seeding")
	dryRun := flag.Bool("dry-run", false, "Build records without writing them")
	flag.Parse()

	log.Println("🌱 Database Seeder")
	log.Println("==================")
	log.Printf("Target: %d users, %d entries, clean=%v\n", *numUsers, *numEntries, *shouldClean)

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	summary, err := seed.Seed(context.Background(), db, seed.Options{
		NumUsers:     *numUsers,
		NumReviewers: *numReviewers,
		NumEntries:   *numEntries,
		MaxDays:      *maxDays,
		Distribution: seed.StatusDistribution{Pending: *pending, Rejected: *rejected},
		ShouldClean:  *shouldClean,
		DryRun:       *dryRun,
	})
	if err != nil {
		log.Fatalf("❌ Seeding failed: %v", err)
	}

	log.Printf("✨ All done! %d users, %d approved / %d pending / %d rejected entries.",
		summary.Users, summary.Approved, summary.Pending, summary.Rejected)
}
