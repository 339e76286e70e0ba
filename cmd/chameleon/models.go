package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/lorenzotomasdiez/chameleon/internal/models"
	"github.com/lorenzotomasdiez/chameleon/internal/openrouter"
	"github.com/lorenzotomasdiez/chameleon/internal/output"
)

func newModelsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "models",
		Short: "List the free OpenRouter models players are drawn from",
		RunE: func(cmd *cobra.Command, args []string) error {
			apiKey := os.Getenv("OPENROUTER_API_KEY")
			if apiKey == "" {
				return fmt.Errorf("API key required: set --api-key flag or OPENROUTER_API_KEY env var")
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
			defer stop()

			client := openrouter.NewClient(apiKey)
			all, err := client.ListModels(ctx)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Warning: could not fetch models: %v. Using defaults.\n", err)
				all = models.DefaultFreeModels()
			}
			free := models.NewRegistry(all).FreeModels()
			if len(free) == 0 {
				free = models.DefaultFreeModels()
			}
			output.NewPrinter(os.Stdout).PrintModels(free)
			return nil
		},
	}
}
