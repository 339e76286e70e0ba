package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/lorenzotomasdiez/chameleon/internal/events"
	"github.com/lorenzotomasdiez/chameleon/internal/game"
	"github.com/lorenzotomasdiez/chameleon/internal/output"
)

func newWatchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch SESSION",
		Short: "Follow a running session's live events from Redis",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			url := os.Getenv("REDIS_URL")
			if url == "" {
				return fmt.Errorf("Redis URL required: set --redis-url flag or REDIS_URL env var")
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
			defer stop()

			rdb, err := events.Connect(ctx, url)
			if err != nil {
				return err
			}
			defer rdb.Close()

			printer := output.NewPrinter(cmd.OutOrStdout())
			return events.Watch(ctx, rdb, events.DefaultChannel, args[0], func(e events.Event) {
				printEvent(printer, e)
			})
		},
	}
}

func printEvent(p *output.Printer, e events.Event) {
	phase, _ := game.ParsePhase(e.Phase)
	switch e.Type {
	case events.TypePhase:
		p.PrintPhase(phase)
	case events.TypeTurn:
		p.PrintTurn(game.Turn{Phase: phase, Index: e.Index, Player: e.Player, Content: e.Content})
	case events.TypeOutcome:
		p.PrintOutcome(&game.Record{SessionID: e.SessionID, Animal: e.Animal, Chameleon: e.Chameleon, Tally: e.Tally, Winner: e.Winner})
	}
}
