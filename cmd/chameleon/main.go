package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/lorenzotomasdiez/chameleon/internal/config"
)

// flagEnv maps persistent flags onto the environment variables config.Load
// reads, so a flag given on the command line wins over env and .env.
var flagEnv = map[string]string{
	"api-key":    "OPENROUTER_API_KEY",
	"gemini-key": "GEMINI_API_KEY",
	"backend":    "CHAMELEON_BACKEND",
	"model":      "CHAMELEON_MODEL",
	"output-dir": "CHAMELEON_OUTPUT_DIR",
	"db":         "CHAMELEON_DB",
	"log-dir":    "CHAMELEON_LOG_DIR",
	"redis-url":  "REDIS_URL",
	"catalog":    "CHAMELEON_CATALOG",
	"players":    "CHAMELEON_PLAYERS",
	"retries":    "CHAMELEON_RETRIES",
	"seed":       "CHAMELEON_SEED",
	"vote-rule":  "CHAMELEON_VOTE_RULE",
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "chameleon",
		Short: "Play The Chameleon with language models",
		Long:  "Runs sessions of The Chameleon social deduction game. Every player but one knows the secret animal; the Chameleon has to blend in while the herd tries to vote it out. Players are OpenRouter or Gemini models, optionally joined by you.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			envFile, _ := cmd.Flags().GetString("env-file")
			if err := config.LoadDotEnv(envFile); err != nil {
				return err
			}
			var err error
			cmd.Flags().Visit(func(f *pflag.Flag) {
				if key, ok := flagEnv[f.Name]; ok && err == nil {
					err = os.Setenv(key, f.Value.String())
				}
			})
			return err
		},
		SilenceUsage: true,
	}

	pf := root.PersistentFlags()
	pf.String("env-file", ".env", "Dotenv file to load before reading the environment")
	pf.String("api-key", "", "OpenRouter API key (overrides OPENROUTER_API_KEY env var)")
	pf.String("gemini-key", "", "Gemini API key (overrides GEMINI_API_KEY env var)")
	pf.String("backend", "openrouter", "Model backend: openrouter or gemini")
	pf.String("model", "", "Use this model for every automated player")
	pf.String("output-dir", "output", "Output directory for session artifacts")
	pf.String("db", "chameleon.db", "SQLite session archive")
	pf.String("log-dir", "logs", "Directory for rotated logs and telemetry")
	pf.String("redis-url", "", "Publish live events to this Redis server")
	pf.String("catalog", "", "YAML file with animals and names")
	pf.String("log-level", "info", "Log level: debug, info, warn or error")
	pf.Int("players", 5, "Number of players (minimum 2)")
	pf.Int("retries", 3, "Format re-prompts allowed per turn")
	pf.Uint64("seed", 0, "Seed for a reproducible session")
	pf.String("vote-rule", "majority", "Herd win rule: majority or unanimous")

	root.AddCommand(newPlayCmd())
	root.AddCommand(newModelsCmd())
	root.AddCommand(newHistoryCmd())
	root.AddCommand(newWatchCmd())
	return root
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
