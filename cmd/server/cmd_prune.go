package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/agusmdev/burntop/internal/config"
	"github.com/agusmdev/burntop/internal/pgxstore"
	"github.com/agusmdev/burntop/internal/prune"
)

func cmdPrune(args []string) {
	if err := runPrune(args); err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
}

// PruneFlags holds the parsed flags for the prune command
type PruneFlags struct {
	OlderThanDays int
	Yes           bool
}

func parsePruneFlags(args []string) (*PruneFlags, error) {
	fs := flag.NewFlagSet("prune", flag.ContinueOnError)

	flags := &PruneFlags{}
	fs.IntVar(&flags.OlderThanDays, "older-than-days", 90, "Delete synced_message_ids rows synced more than N days ago")
	fs.BoolVar(&flags.Yes, "yes", false, "Skip confirmation prompt")

	fs.Usage = func() {
		fmt.Print(`Prune synced_message_ids rows past the retention window

Usage: burntop prune [options]

Options:
`)
		printFlags(fs)
	}

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	return flags, nil
}

func runPrune(args []string) error {
	flags, err := parsePruneFlags(args)
	if err != nil {
		return err
	}
	if flags.OlderThanDays <= 0 {
		return fmt.Errorf("--older-than-days must be positive")
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	ctx := context.Background()
	pool, err := pgxstore.Open(ctx, cfg.DatabaseURL, cfg.DatabasePoolMin, cfg.DatabasePoolMax)
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer pool.Close()

	opts := prune.Options{
		OlderThan:   time.Now().UTC().AddDate(0, 0, -flags.OlderThanDays),
		SkipConfirm: flags.Yes,
	}

	return prune.Run(ctx, pool.Pool, opts)
}
