package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"blockdoc/internal/render"
)

// Config aggregates application settings sourced from defaults, an
// optional config.yaml in the data directory and BLOCKDOC_* variables.
type Config struct {
	Storage StorageConfig `mapstructure:"storage"`
	Data    DataConfig    `mapstructure:"data"`
	Render  RenderConfig  `mapstructure:"render"`
	Janitor JanitorConfig `mapstructure:"janitor"`
	Log     LogConfig     `mapstructure:"log"`
	MCP     MCPConfig     `mapstructure:"mcp"`
}

// StorageConfig is where the document JSON files live.
type StorageConfig struct {
	Dir string `mapstructure:"dir"`
}

// DataConfig holds application state that is not a document (history
// database, config.yaml).
type DataConfig struct {
	Dir string `mapstructure:"dir"`
}

type RenderConfig struct {
	Interpreter string        `mapstructure:"interpreter"`
	ScriptsDir  string        `mapstructure:"scripts_dir"`
	Script      string        `mapstructure:"script"`
	Timeout     time.Duration `mapstructure:"timeout"`
	ExportsDir  string        `mapstructure:"exports_dir"`
}

type JanitorConfig struct {
	Schedule   string        `mapstructure:"schedule"`
	TempMaxAge time.Duration `mapstructure:"temp_max_age"`
}

// MCPConfig enables the agent tool server inside the desktop app. An
// empty Addr keeps it off; `blockdoc --mcp` serves stdio regardless.
type MCPConfig struct {
	Addr string `mapstructure:"addr"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

// HistoryPath is the undo history database inside the data directory.
func (c *Config) HistoryPath() string {
	return filepath.Join(c.Data.Dir, "history.db")
}

// SlogLevel maps log.level to a slog level. Unknown values mean info.
func (l LogConfig) SlogLevel() slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(l.Level)); err != nil {
		return slog.LevelInfo
	}
	return level
}

// Load reads configuration. An explicit storageDir overrides every other
// source for storage.dir.
func Load(storageDir string) (*Config, error) {
	v := viper.New()
	if err := setDefaults(v); err != nil {
		return nil, err
	}
	if err := bindEnv(v); err != nil {
		return nil, fmt.Errorf("bind env: %w", err)
	}

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(v.GetString("data.dir"))
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	if storageDir != "" {
		v.Set("storage.dir", storageDir)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if cfg.Render.ExportsDir == "" {
		cfg.Render.ExportsDir = filepath.Join(cfg.Storage.Dir, "exports")
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// MustLoad wraps Load and panics on failure.
func MustLoad(storageDir string) *Config {
	cfg, err := Load(storageDir)
	if err != nil {
		panic(err)
	}
	return cfg
}

func setDefaults(v *viper.Viper) error {
	home, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("resolve home directory: %w", err)
	}
	v.SetDefault("storage.dir", filepath.Join(home, "Documents", "BlockDoc"))
	v.SetDefault("data.dir", filepath.Join(home, ".blockdoc"))
	v.SetDefault("render.interpreter", render.DefaultInterpreter())
	v.SetDefault("render.scripts_dir", filepath.Join(home, ".blockdoc", "scripts"))
	v.SetDefault("render.script", render.DefaultRenderScript)
	v.SetDefault("render.timeout", render.DefaultRenderTimeout)
	v.SetDefault("render.exports_dir", "")
	v.SetDefault("janitor.schedule", "@every 10m")
	v.SetDefault("janitor.temp_max_age", 10*time.Minute)
	v.SetDefault("log.level", "info")
	v.SetDefault("mcp.addr", "")
	return nil
}

func bindEnv(v *viper.Viper) error {
	keys := []string{
		"storage.dir",
		"data.dir",
		"render.interpreter",
		"render.scripts_dir",
		"render.script",
		"render.timeout",
		"render.exports_dir",
		"janitor.schedule",
		"janitor.temp_max_age",
		"log.level",
		"mcp.addr",
	}
	for _, key := range keys {
		env := "BLOCKDOC_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, env); err != nil {
			return fmt.Errorf("bind %s to %s: %w", key, env, err)
		}
	}
	return nil
}

func validate(cfg Config) error {
	if cfg.Storage.Dir == "" {
		return errors.New("storage dir is required")
	}
	if cfg.Data.Dir == "" {
		return errors.New("data dir is required")
	}
	if cfg.Render.Script == "" {
		return errors.New("render script is required")
	}
	if cfg.Render.Timeout <= 0 {
		return errors.New("render timeout must be positive")
	}
	if cfg.Janitor.TempMaxAge <= 0 {
		return errors.New("janitor temp max age must be positive")
	}
	return nil
}
