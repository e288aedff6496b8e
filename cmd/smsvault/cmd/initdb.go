package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/wesm/smsvault/internal/store"
)

var initdbCmd = &cobra.Command{
	Use:   "initdb",
	Short: "Create the database and schema",
	Long: `Create the smsvault database and its schema, then exit.

The serve command does this automatically on startup; initdb is useful
for provisioning and for verifying the configured database path.`,
	RunE: runInitDB,
}

func init() {
	rootCmd.AddCommand(initdbCmd)
}

func runInitDB(cmd *cobra.Command, args []string) error {
	dbPath := cfg.DatabasePath()

	s, err := store.Open(dbPath)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer s.Close()

	if err := s.InitSchema(); err != nil {
		return fmt.Errorf("init schema: %w", err)
	}

	fmt.Printf("Database initialized: %s\n", dbPath)
	return nil
}
