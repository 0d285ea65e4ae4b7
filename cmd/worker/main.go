// Worker periodically purges refresh tokens past their expiry.
// Set DATABASE_URL and TOKEN_SWEEP_INTERVAL. Secrets are required by config but unused here.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"passwordless-auth/internal/config"
	"passwordless-auth/internal/db"
	rtrepo "passwordless-auth/internal/refreshtoken/repository"
)

// purger is the refresh token repository subset the sweep needs.
type purger interface {
	PurgeExpired(ctx context.Context, before time.Time) (int64, error)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
		<-quit
		log.Println("worker: shutting down...")
		cancel()
	}()

	database, err := db.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("worker: db: %v", err)
	}
	defer database.Close()

	interval := cfg.SweepInterval()
	log.Printf("worker: purging expired refresh tokens every %s", interval)
	run(ctx, rtrepo.NewPostgresRepository(database), interval, time.Now)
	log.Println("worker: stopped")
}

// run sweeps once immediately and then on every tick until ctx is done.
func run(ctx context.Context, repo purger, interval time.Duration, now func() time.Time) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		sweep(ctx, repo, now())
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func sweep(ctx context.Context, repo purger, before time.Time) {
	sweepCtx, cancel := context.WithTimeout(ctx, time.Minute)
	defer cancel()
	n, err := repo.PurgeExpired(sweepCtx, before)
	if err != nil {
		if ctx.Err() == nil {
			log.Printf("worker: purge failed: %v", err)
		}
		return
	}
	if n > 0 {
		log.Printf("worker: purged %d expired refresh tokens", n)
	}
}
