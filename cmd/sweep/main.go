// Command sweep removes ledger and comment rows orphaned by interrupted
// entry deletions and re-derives the denormalized counters.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/traveldairy2025nju/td-backend/internal/config"
	"github.com/traveldairy2025nju/td-backend/internal/database"
	"github.com/traveldairy2025nju/td-backend/internal/observability"
	"github.com/traveldairy2025nju/td-backend/internal/repository"
)

func main() {
	interval := flag.Duration("interval", 0, "Repeat every interval until interrupted (0 runs once)")
	reconcile := flag.Bool("reconcile", true, "Recompute like, favorite and comment counters after sweeping")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	db, err := database.ConnectWithOptions(cfg, database.ConnectOptions{ApplySchema: false})
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	maint := repository.NewMaintenanceRepository(db)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := runOnce(ctx, maint, *reconcile); err != nil {
		log.Fatalf("Sweep failed: %v", err)
	}
	if *interval <= 0 {
		return
	}

	ticker := time.NewTicker(*interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			log.Println("Sweeper stopped")
			return
		case <-ticker.C:
			if err := runOnce(ctx, maint, *reconcile); err != nil {
				log.Printf("Sweep failed: %v", err)
			}
		}
	}
}

func runOnce(ctx context.Context, maint repository.MaintenanceRepository, reconcile bool) error {
	removed, err := maint.SweepOrphans(ctx)
	if err != nil {
		return err
	}
	for table, n := range removed {
		if n > 0 {
			observability.OrphansSwept.WithLabelValues(table).Add(float64(n))
			log.Printf("swept %d orphaned %s", n, table)
		}
	}

	if !reconcile {
		log.Printf("sweep complete: %d rows removed", removed.Total())
		return nil
	}
	touched, err := maint.ReconcileCounters(ctx)
	if err != nil {
		return err
	}
	log.Printf("sweep complete: %d rows removed, %d entries reconciled", removed.Total(), touched)
	return nil
}
