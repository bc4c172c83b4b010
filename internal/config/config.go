// Package config loads skillgap settings from defaults, an optional YAML
// file and SKILLGAP_* environment variables, in increasing precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/kalambet/skillgap/internal/engine"
)

const envPrefix = "SKILLGAP"

type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Models  ModelsConfig  `mapstructure:"models"`
	Ollama  OllamaConfig  `mapstructure:"ollama"`
	Gemini  GeminiConfig  `mapstructure:"gemini"`
	Scoring ScoringConfig `mapstructure:"scoring"`
	Storage StorageConfig `mapstructure:"storage"`
	Quota   QuotaConfig   `mapstructure:"quota"`
	Log     LogConfig     `mapstructure:"log"`
}

type ServerConfig struct {
	Port   int    `mapstructure:"port"`
	APIKey string `mapstructure:"api_key"`
}

// ModelsConfig holds model references of the form "provider:model". A
// reference without a provider prefix is an Ollama model.
type ModelsConfig struct {
	Chat           string `mapstructure:"chat"`
	Embed          string `mapstructure:"embed"`
	SecondaryEmbed string `mapstructure:"secondary_embed"`
}

type OllamaConfig struct {
	BaseURL string `mapstructure:"base_url"`
}

type GeminiConfig struct {
	APIKey string `mapstructure:"api_key"`
}

type ScoringConfig struct {
	TablesDir      string        `mapstructure:"tables_dir"`
	EmbedTimeout   time.Duration `mapstructure:"embed_timeout"`
	ExtractTimeout time.Duration `mapstructure:"extract_timeout"`
	Pacing         time.Duration `mapstructure:"pacing"`
}

type StorageConfig struct {
	DataDir string `mapstructure:"data_dir"`
}

type QuotaConfig struct {
	Window          time.Duration `mapstructure:"window"`
	CleanupInterval time.Duration `mapstructure:"cleanup_interval"`
}

type LogConfig struct {
	JSON  bool `mapstructure:"json"`
	Debug bool `mapstructure:"debug"`
}

// Load reads configuration. An empty path means the default location
// ($XDG_CONFIG_HOME/skillgap/config.yaml); a missing default file is not an
// error, a missing explicit file is.
func Load(path string) (Config, error) {
	v, err := newViper(path)
	if err != nil {
		return Config{}, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decoding config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func newViper(path string) (*viper.Viper, error) {
	v := viper.New()
	for _, s := range specs {
		v.SetDefault(s.key, s.def)
		envs := append([]string{s.key}, s.env...)
		if err := v.BindEnv(envs...); err != nil {
			return nil, fmt.Errorf("binding env for %s: %w", s.key, err)
		}
	}

	if path == "" {
		path = FilePath()
		if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
			return v, nil
		}
	}
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}
	return v, nil
}

// Validate checks value ranges and that every Gemini model has a key.
func (c Config) Validate() error {
	var errs []error
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port %d out of range", c.Server.Port))
	}
	if c.Models.Chat == "" {
		errs = append(errs, errors.New("models.chat must be set"))
	}
	for _, ref := range []string{c.Models.Chat, c.Models.Embed, c.Models.SecondaryEmbed} {
		if p, _ := engine.ParseModelRef(ref); ref != "" && p == engine.ProviderGemini && c.Gemini.APIKey == "" {
			errs = append(errs, fmt.Errorf("missing required config: Gemini API key for model %q. "+
				"Set it via environment variable %s_GEMINI_API_KEY or GEMINI_API_KEY", ref, envPrefix))
			break
		}
	}
	if c.Quota.Window <= 0 {
		errs = append(errs, errors.New("quota.window must be positive"))
	}
	if c.Storage.DataDir == "" {
		errs = append(errs, errors.New("storage.data_dir must be set"))
	}
	return errors.Join(errs...)
}

// FilePath is the default config file location.
func FilePath() string {
	dir := os.Getenv("XDG_CONFIG_HOME")
	if dir == "" {
		if home, err := os.UserHomeDir(); err == nil {
			dir = filepath.Join(home, ".config")
		} else {
			dir = "."
		}
	}
	return filepath.Join(dir, "skillgap", "config.yaml")
}

func defaultDataDir() string {
	dir := os.Getenv("XDG_DATA_HOME")
	if dir == "" {
		if home, err := os.UserHomeDir(); err == nil {
			dir = filepath.Join(home, ".local", "share")
		} else {
			return "skillgap-data"
		}
	}
	return filepath.Join(dir, "skillgap")
}

func envName(key string) string {
	return envPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
}
