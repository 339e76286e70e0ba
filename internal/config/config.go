// Package config loads session settings from the environment, an optional
// .env file and a YAML catalog of animals and player names.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/lorenzotomasdiez/chameleon/internal/game"
	"github.com/lorenzotomasdiez/chameleon/internal/structured"
)

const (
	BackendOpenRouter = "openrouter"
	BackendGemini     = "gemini"
)

type Config struct {
	Backend   string
	APIKey    string
	GeminiKey string
	Model     string

	Players  int
	Retries  int
	VoteRule game.VoteRule
	Seed     uint64
	HasSeed  bool

	OutputDir   string
	DBPath      string
	LogDir      string
	RedisURL    string
	CatalogPath string
}

func Load() (*Config, error) {
	backend := strings.ToLower(envString("CHAMELEON_BACKEND", BackendOpenRouter))
	cfg := &Config{
		Backend:     backend,
		APIKey:      os.Getenv("OPENROUTER_API_KEY"),
		GeminiKey:   os.Getenv("GEMINI_API_KEY"),
		Model:       os.Getenv("CHAMELEON_MODEL"),
		OutputDir:   envString("CHAMELEON_OUTPUT_DIR", "output"),
		DBPath:      envString("CHAMELEON_DB", "chameleon.db"),
		LogDir:      envString("CHAMELEON_LOG_DIR", "logs"),
		RedisURL:    os.Getenv("REDIS_URL"),
		CatalogPath: os.Getenv("CHAMELEON_CATALOG"),
	}

	switch backend {
	case BackendOpenRouter:
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("config: OPENROUTER_API_KEY is required")
		}
	case BackendGemini:
		if cfg.GeminiKey == "" {
			return nil, fmt.Errorf("config: GEMINI_API_KEY is required")
		}
	default:
		return nil, fmt.Errorf("config: unknown backend %q", backend)
	}

	var err error
	if cfg.Players, err = envInt("CHAMELEON_PLAYERS", 5); err != nil {
		return nil, err
	}
	if cfg.Retries, err = envInt("CHAMELEON_RETRIES", structured.DefaultRetries); err != nil {
		return nil, err
	}
	if cfg.VoteRule, err = game.ParseVoteRule(envString("CHAMELEON_VOTE_RULE", string(game.RuleMajority))); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if s := os.Getenv("CHAMELEON_SEED"); s != "" {
		if cfg.Seed, err = strconv.ParseUint(s, 10, 64); err != nil {
			return nil, fmt.Errorf("config: invalid CHAMELEON_SEED value %q: %w", s, err)
		}
		cfg.HasSeed = true
	}

	if cfg.Players < game.MinPlayers {
		return nil, fmt.Errorf("config: Players must be >= %d, got %d", game.MinPlayers, cfg.Players)
	}
	if cfg.Retries < 0 {
		return nil, fmt.Errorf("config: Retries must be >= 0, got %d", cfg.Retries)
	}
	return cfg, nil
}

// LoadDotEnv loads path into the environment. Variables already set win, and
// a missing file is not an error.
func LoadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("config: loading %s: %w", path, err)
	}
	return nil
}

// Catalog lists the animals and player names a session draws from.
type Catalog struct {
	Animals []string `yaml:"animals"`
	Names   []string `yaml:"names"`
}

// DefaultCatalog returns the built-in animals and names.
func DefaultCatalog() Catalog {
	return Catalog{
		Animals: append([]string(nil), game.DefaultAnimals...),
		Names:   append([]string(nil), game.DefaultNames...),
	}
}

// LoadCatalog reads a YAML catalog. An empty path yields the defaults, and a
// list left out of the file keeps its default.
func LoadCatalog(path string) (Catalog, error) {
	cat := DefaultCatalog()
	if path == "" {
		return cat, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Catalog{}, fmt.Errorf("config: reading catalog: %w", err)
	}
	var file Catalog
	if err := yaml.Unmarshal(data, &file); err != nil {
		return Catalog{}, fmt.Errorf("config: parsing catalog %s: %w", path, err)
	}
	if len(file.Animals) > 0 {
		cat.Animals = file.Animals
	}
	if len(file.Names) > 0 {
		cat.Names = file.Names
	}
	return cat, nil
}

// Settings builds game settings from the config and catalog.
func (c *Config) Settings(cat Catalog) game.Settings {
	s := game.DefaultSettings()
	s.Players = c.Players
	s.Retries = c.Retries
	s.VoteRule = c.VoteRule
	s.Animals = cat.Animals
	s.Names = cat.Names
	return s
}

func envString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envInt(key string, defaultVal int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal, nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("config: invalid %s value %q: %w", key, s, err)
	}
	return v, nil
}
