package config

import (
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"
)

const CacheDirEnv = "CCSUM_CACHE_DIR"

type Config struct {
	ClaudeRoot      string `toml:"claude_root"`
	CacheDir        string `toml:"cache_dir"`
	DBPath          string `toml:"db_path"`
	Model           string `toml:"model"`
	MaxInputTokens  int    `toml:"max_input_tokens"`
	Concurrency     int    `toml:"concurrency"`
	EmitOrphanTurns bool   `toml:"emit_orphan_turns"`

	// APIKey comes from the environment only, never from the config file.
	APIKey string `toml:"-"`
}

// Load builds the configuration from defaults, ~/.config/ccsum/config.toml,
// a .env file in the working directory and the environment, in that order.
func Load() (*Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, errors.Wrap(err, "resolve home directory")
	}
	return LoadFrom(home, filepath.Join(home, ".config", "ccsum", "config.toml"))
}

// LoadFrom is Load with an explicit home directory and config file.
func LoadFrom(home, cfgPath string) (*Config, error) {
	cfg := &Config{
		ClaudeRoot:     filepath.Join(home, ".claude", "projects"),
		CacheDir:       filepath.Join(home, ".cache", "ccsum"),
		DBPath:         filepath.Join(home, ".config", "ccsum", "ccsum.db"),
		Model:          "claude-3-5-haiku-20241022",
		MaxInputTokens: 100000,
		Concurrency:    4,
	}

	if _, err := os.Stat(cfgPath); err == nil {
		if _, err := toml.DecodeFile(cfgPath, cfg); err != nil {
			return nil, errors.Wrapf(err, "parse config %s", cfgPath)
		}
	}

	// .env never overrides variables already set
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, errors.Wrap(err, "load .env")
	}
	if dir := os.Getenv(CacheDirEnv); dir != "" {
		cfg.CacheDir = dir
	}
	cfg.APIKey = os.Getenv("ANTHROPIC_API_KEY")

	// expand ~ in paths
	cfg.ClaudeRoot = expandHome(cfg.ClaudeRoot, home)
	cfg.CacheDir = expandHome(cfg.CacheDir, home)
	cfg.DBPath = expandHome(cfg.DBPath, home)

	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	return cfg, nil
}

func expandHome(path, home string) string {
	if path == "~" {
		return home
	}
	if len(path) > 1 && path[0] == '~' && path[1] == '/' {
		return filepath.Join(home, path[2:])
	}
	return path
}
