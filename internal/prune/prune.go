// Package prune implements the retention-pruning workflow for
// synced_message_ids rows, run out-of-band from the API server via the
// "burntop prune" command.
package prune

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Options configures a prune run.
type Options struct {
	OlderThan   time.Time
	SkipConfirm bool
}

// Summary reports how many synced_message_ids rows a prune touched.
type Summary struct {
	MessageIDCount int64
}

func (s *Summary) IsEmpty() bool {
	return s.MessageIDCount == 0
}

// Preview counts rows a prune would delete without deleting them.
func Preview(ctx context.Context, pool *pgxpool.Pool, opts Options) (*Summary, error) {
	var count int64
	err := pool.QueryRow(ctx,
		`SELECT count(*) FROM synced_message_ids WHERE synced_at < $1`,
		opts.OlderThan,
	).Scan(&count)
	if err != nil {
		return nil, fmt.Errorf("counting prunable rows: %w", err)
	}
	return &Summary{MessageIDCount: count}, nil
}

// Execute deletes synced_message_ids rows older than the cutoff.
func Execute(ctx context.Context, pool *pgxpool.Pool, opts Options) (*Summary, error) {
	tag, err := pool.Exec(ctx,
		`DELETE FROM synced_message_ids WHERE synced_at < $1`,
		opts.OlderThan,
	)
	if err != nil {
		return nil, fmt.Errorf("deleting prunable rows: %w", err)
	}
	return &Summary{MessageIDCount: tag.RowsAffected()}, nil
}

// PrintSummary prints what a prune would delete.
func PrintSummary(summary *Summary, opts Options) {
	fmt.Println("Prune Summary")
	fmt.Println("=============")
	fmt.Printf("Older than: %s\n", opts.OlderThan.Format("2006-01-02"))
	fmt.Println()
	fmt.Printf("synced_message_ids rows to delete: %d\n", summary.MessageIDCount)
}

// PrintResult prints what a prune actually deleted.
func PrintResult(summary *Summary) {
	fmt.Println()
	fmt.Printf("Deletion complete: %d synced_message_ids rows deleted\n", summary.MessageIDCount)
}

// Confirm prompts the user for confirmation on stdin.
func Confirm() bool {
	fmt.Println()
	fmt.Println("This action cannot be undone.")
	fmt.Print("Continue? [y/N] ")

	reader := bufio.NewReader(os.Stdin)
	response, err := reader.ReadString('\n')
	if err != nil {
		return false
	}
	response = strings.TrimSpace(strings.ToLower(response))
	return response == "y" || response == "yes"
}

// Run executes the full preview -> confirm -> execute workflow.
func Run(ctx context.Context, pool *pgxpool.Pool, opts Options) error {
	summary, err := Preview(ctx, pool, opts)
	if err != nil {
		return fmt.Errorf("preview failed: %w", err)
	}

	if summary.IsEmpty() {
		fmt.Println("No rows found past the retention cutoff.")
		return nil
	}

	PrintSummary(summary, opts)

	if !opts.SkipConfirm {
		if !Confirm() {
			fmt.Println("Aborted.")
			return nil
		}
	}

	result, err := Execute(ctx, pool, opts)
	if err != nil {
		return fmt.Errorf("prune failed: %w", err)
	}

	PrintResult(result)
	return nil
}
