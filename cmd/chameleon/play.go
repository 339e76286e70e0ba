package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/lorenzotomasdiez/chameleon/internal/archive"
	"github.com/lorenzotomasdiez/chameleon/internal/config"
	"github.com/lorenzotomasdiez/chameleon/internal/controller"
	"github.com/lorenzotomasdiez/chameleon/internal/events"
	"github.com/lorenzotomasdiez/chameleon/internal/game"
	"github.com/lorenzotomasdiez/chameleon/internal/gemini"
	"github.com/lorenzotomasdiez/chameleon/internal/models"
	"github.com/lorenzotomasdiez/chameleon/internal/openrouter"
	"github.com/lorenzotomasdiez/chameleon/internal/output"
	"github.com/lorenzotomasdiez/chameleon/internal/telemetry"
)

func newPlayCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "play",
		Short: "Play one session",
		RunE:  runPlay,
	}
	cmd.Flags().String("human", "", "Join the table under this name")
	cmd.Flags().Bool("guess", false, "Let a caught Chameleon win by naming the animal")
	cmd.Flags().String("name", "", "Override output folder name (default: chameleon)")
	cmd.Flags().Float64("temperature", 0, "Sampling temperature for automated players (0 = backend default)")
	return cmd
}

func runPlay(cmd *cobra.Command, args []string) error {
	human, _ := cmd.Flags().GetString("human")
	guess, _ := cmd.Flags().GetBool("guess")
	name, _ := cmd.Flags().GetString("name")
	temperature, _ := cmd.Flags().GetFloat64("temperature")
	levelName, _ := cmd.Flags().GetString("log-level")

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	cat, err := config.LoadCatalog(cfg.CatalogPath)
	if err != nil {
		return err
	}

	logger, closeLog, err := telemetry.InitLogger(cfg.LogDir, telemetry.ParseLevel(levelName))
	if err != nil {
		return err
	}
	defer closeLog()

	// Setup context with Ctrl+C cancellation
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	_, _, cleanup, err := telemetry.InitTelemetry(ctx, cfg.LogDir)
	if err != nil {
		return err
	}
	defer cleanup()

	backend, ids, closeBackend, err := newBackend(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeBackend()

	settings := cfg.Settings(cat)
	settings.HumanName = human
	settings.ChameleonGuess = guess

	dice := game.RandomDice()
	if cfg.HasSeed {
		dice = game.NewDice(cfg.Seed)
	}

	var pub *events.Publisher
	if cfg.RedisURL != "" {
		rdb, err := events.Connect(ctx, cfg.RedisURL)
		if err != nil {
			return err
		}
		defer rdb.Close()
		pub = events.NewPublisher(rdb, events.DefaultChannel, logger)
	}

	slug := name
	if slug == "" {
		slug = "chameleon"
	}

	_, dir, err := playSession(ctx, playOptions{
		Settings:  settings,
		Dice:      dice,
		Source:    newSource(controller.DefaultRegistry(), backend, ids(settings.Players), temperature, os.Stdin, os.Stdout),
		OutputDir: cfg.OutputDir,
		Slug:      output.GenerateSlug(slug),
		DBPath:    cfg.DBPath,
		Publisher: pub,
		Logger:    logger,
		Printer:   output.NewPrinter(os.Stdout),
	})
	if dir != "" {
		fmt.Printf("\nOutput saved to: %s\n", dir)
	}
	return err
}

// newBackend returns the automated backend and a function assigning a model
// id to every seat.
func newBackend(ctx context.Context, cfg *config.Config, logger *slog.Logger) (controller.Backend, func(int) []string, func(), error) {
	switch cfg.Backend {
	case config.BackendGemini:
		client, err := gemini.New(ctx, cfg.GeminiKey, cfg.Model)
		if err != nil {
			return nil, nil, nil, err
		}
		model := cfg.Model
		if model == "" {
			model = gemini.DefaultModel
		}
		ids := func(n int) []string {
			out := make([]string, n)
			for i := range out {
				out[i] = model
			}
			return out
		}
		return client, ids, func() { client.Close() }, nil
	default:
		client := openrouter.NewClient(cfg.APIKey)
		// Fetch live models, fallback to defaults
		registry := models.Load(ctx, client, logger)
		if cfg.Model != "" && !registry.Contains(cfg.Model) {
			logger.Warn("pinned model is not a listed free model", "model", cfg.Model)
		}
		ids := func(n int) []string { return registry.Assign(n, cfg.Model) }
		return client, ids, func() {}, nil
	}
}

// newSource seats the human on the terminal and every other player on the
// backend, one model id per seat.
func newSource(reg *controller.Registry, backend controller.Backend, ids []string, temperature float64, in io.Reader, out io.Writer) game.ControllerSource {
	return game.ControllerSourceFunc(func(slot game.Slot) (controller.Controller, string, error) {
		if slot.Human {
			ctrl, err := reg.New(controller.Spec{Kind: controller.KindHuman, In: in, Out: out})
			return ctrl, "human", err
		}
		model := ids[slot.Index]
		ctrl, err := reg.New(controller.Spec{
			Kind:    controller.KindAutomated,
			Backend: backend,
			Options: controller.Options{Model: model, Temperature: temperature},
		})
		return ctrl, model, err
	})
}

type playOptions struct {
	Settings  game.Settings
	Dice      *game.Dice
	Source    game.ControllerSource
	OutputDir string
	Slug      string
	DBPath    string
	Publisher *events.Publisher
	Logger    *slog.Logger
	Printer   *output.Printer
}

// playSession runs one session and writes its artifacts. It returns the
// output directory even when the session fails, so the partial log can be
// found.
func playSession(ctx context.Context, o playOptions) (*game.Record, string, error) {
	dir, err := output.CreateOutputDir(o.OutputDir, o.Slug)
	if err != nil {
		return nil, "", fmt.Errorf("creating output directory: %w", err)
	}
	writer := output.NewWriter(dir)

	records := archive.NewRecordLog(filepath.Join(dir, "records.jsonl"))
	defer records.Close()

	store, err := archive.Open(o.DBPath, o.Logger)
	if err != nil {
		return nil, dir, err
	}
	defer store.Close()

	opts := []game.Option{
		game.WithLogger(o.Logger),
		game.WithRecorder(records),
		game.WithArchiver(store),
		game.WithArchiver(records),
	}
	if o.Publisher != nil {
		opts = append(opts, game.WithArchiver(o.Publisher))
	}

	g, err := game.Setup(o.Settings, o.Dice, o.Source, opts...)
	if err != nil {
		writer.Log(fmt.Sprintf("Setup failed: %v", err))
		return nil, dir, err
	}

	g.OnTurn = func(turn game.Turn) {
		o.Printer.PrintTurn(turn)
		writer.Log(fmt.Sprintf("[%s %d] %s: %s", turn.Phase, turn.Index+1, turn.Player, turn.Content))
		if o.Publisher != nil {
			o.Publisher.PublishTurn(ctx, g.ID(), turn)
		}
	}
	g.OnPhase = func(phase game.Phase) {
		o.Printer.PrintPhase(phase)
		writer.Log(fmt.Sprintf("Phase transition: %s", phase))
		if o.Publisher != nil {
			o.Publisher.PublishPhase(ctx, g.ID(), phase)
		}
	}

	o.Printer.PrintHeader(g.ID(), len(g.Players()), g.Settings().VoteRule, dir)

	rec, err := g.Run(ctx)
	if err != nil {
		writer.Log(fmt.Sprintf("Session aborted: %v", err))
		return nil, dir, fmt.Errorf("session %s: %w", g.ID(), err)
	}

	o.Printer.PrintOutcome(rec)

	if err := writer.WriteJSON(rec); err != nil {
		return rec, dir, fmt.Errorf("writing JSON: %w", err)
	}
	if err := writer.WriteMarkdown(rec); err != nil {
		return rec, dir, fmt.Errorf("writing markdown: %w", err)
	}
	if err := writer.WriteLog(); err != nil {
		return rec, dir, fmt.Errorf("writing log: %w", err)
	}
	return rec, dir, nil
}
