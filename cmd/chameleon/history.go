package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/lorenzotomasdiez/chameleon/internal/archive"
	"github.com/lorenzotomasdiez/chameleon/internal/output"
)

func newHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List archived sessions, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			limit, _ := cmd.Flags().GetInt("limit")
			dbPath, _ := cmd.Flags().GetString("db")
			if v := os.Getenv("CHAMELEON_DB"); v != "" && !cmd.Flags().Changed("db") {
				dbPath = v
			}

			store, err := archive.Open(dbPath, slog.Default())
			if err != nil {
				return err
			}
			defer store.Close()

			sessions, err := store.ListSessions(context.Background(), limit)
			if err != nil {
				return err
			}
			output.NewPrinter(cmd.OutOrStdout()).PrintSessions(sessions)
			return nil
		},
	}
	cmd.Flags().Int("limit", 20, "Maximum sessions to list")
	return cmd
}
