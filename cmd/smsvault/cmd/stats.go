package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/wesm/smsvault/internal/store"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print message counts for the configured database",
	RunE:  runStats,
}

func init() {
	rootCmd.AddCommand(statsCmd)
}

func runStats(cmd *cobra.Command, args []string) error {
	s, err := store.Open(cfg.DatabasePath())
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer s.Close()

	stats, err := s.GetStats(cmd.Context())
	if err != nil {
		return fmt.Errorf("get stats: %w", err)
	}

	fmt.Printf("Database: %s\n", cfg.DatabasePath())
	fmt.Printf("  Total messages:    %d\n", stats.Total)
	fmt.Printf("  Unread messages:   %d\n", stats.Unread)
	fmt.Printf("  Received messages: %d\n", stats.Received)
	fmt.Printf("  Sent messages:     %d\n", stats.Sent)
	return nil
}
