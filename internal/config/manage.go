package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// KeyInfo describes a config key for display purposes.
type KeyInfo struct {
	Key    string
	EnvVar string
	Value  string
}

// ShowAll returns every non-secret key with its effective value.
func ShowAll(cfg Config) []KeyInfo {
	values := map[string]any{
		"server.port":             cfg.Server.Port,
		"models.chat":             cfg.Models.Chat,
		"models.embed":            cfg.Models.Embed,
		"models.secondary_embed":  cfg.Models.SecondaryEmbed,
		"ollama.base_url":         cfg.Ollama.BaseURL,
		"scoring.tables_dir":      cfg.Scoring.TablesDir,
		"scoring.embed_timeout":   cfg.Scoring.EmbedTimeout,
		"scoring.extract_timeout": cfg.Scoring.ExtractTimeout,
		"scoring.pacing":          cfg.Scoring.Pacing,
		"storage.data_dir":        cfg.Storage.DataDir,
		"quota.window":            cfg.Quota.Window,
		"quota.cleanup_interval":  cfg.Quota.CleanupInterval,
		"log.json":                cfg.Log.JSON,
		"log.debug":               cfg.Log.Debug,
	}
	var result []KeyInfo
	for _, s := range specs {
		if s.secret {
			continue
		}
		result = append(result, KeyInfo{
			Key:    s.key,
			EnvVar: s.env[0],
			Value:  fmt.Sprintf("%v", values[s.key]),
		})
	}
	return result
}

// SetKey writes a key to the YAML file at path, or to the default location
// when path is empty. Other keys already in the file are preserved.
func SetKey(path, key, value string) error {
	s, ok := lookupSpec(key)
	if !ok {
		return fmt.Errorf("unknown config key: %q", key)
	}
	if s.secret {
		return fmt.Errorf("cannot set secret %q via config; use environment variable %s", key, s.env[0])
	}
	parsed, err := s.parseValue(value)
	if err != nil {
		return err
	}

	if path == "" {
		path = FilePath()
	}
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	if _, err := os.Stat(path); err == nil {
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("reading config %s: %w", path, err)
		}
	}
	v.Set(key, parsed)

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("writing config %s: %w", path, err)
	}
	return nil
}

// ValidKeys returns the list of valid non-secret config key names.
func ValidKeys() []string {
	var keys []string
	for _, s := range specs {
		if !s.secret {
			keys = append(keys, s.key)
		}
	}
	return keys
}
