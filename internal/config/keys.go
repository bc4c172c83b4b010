package config

import (
	"fmt"
	"strconv"
	"time"
)

type keyType int

const (
	kString keyType = iota
	kInt
	kBool
	kDuration
)

type keySpec struct {
	key    string
	typ    keyType
	def    any
	secret bool
	// env lists extra environment variables read after the SKILLGAP_ one.
	env []string
}

var specs = []keySpec{
	{key: "server.port", typ: kInt, def: 4000},
	{key: "server.api_key", typ: kString, def: "", secret: true},
	{key: "models.chat", typ: kString, def: "llama3.2"},
	{key: "models.embed", typ: kString, def: "nomic-embed-text"},
	{key: "models.secondary_embed", typ: kString, def: ""},
	{key: "ollama.base_url", typ: kString, def: "http://localhost:11434", env: []string{"OLLAMA_HOST"}},
	{key: "gemini.api_key", typ: kString, def: "", secret: true, env: []string{"GEMINI_API_KEY", "GOOGLE_API_KEY"}},
	{key: "scoring.tables_dir", typ: kString, def: ""},
	{key: "scoring.embed_timeout", typ: kDuration, def: "10s"},
	{key: "scoring.extract_timeout", typ: kDuration, def: "30s"},
	{key: "scoring.pacing", typ: kDuration, def: "100ms"},
	{key: "storage.data_dir", typ: kString, def: defaultDataDir()},
	{key: "quota.window", typ: kDuration, def: "24h"},
	{key: "quota.cleanup_interval", typ: kDuration, def: "1h"},
	{key: "log.json", typ: kBool, def: false},
	{key: "log.debug", typ: kBool, def: false},
}

func init() {
	for i := range specs {
		specs[i].env = append([]string{envName(specs[i].key)}, specs[i].env...)
	}
}

func lookupSpec(key string) (keySpec, bool) {
	for _, s := range specs {
		if s.key == key {
			return s, true
		}
	}
	return keySpec{}, false
}

// parseValue converts a command-line value to the key's type.
func (s keySpec) parseValue(raw string) (any, error) {
	switch s.typ {
	case kInt:
		i, err := strconv.Atoi(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid integer value for %s: %w", s.key, err)
		}
		return i, nil
	case kBool:
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid boolean value for %s: %w", s.key, err)
		}
		return b, nil
	case kDuration:
		if _, err := time.ParseDuration(raw); err != nil {
			return nil, fmt.Errorf("invalid duration value for %s: %w", s.key, err)
		}
		return raw, nil
	default:
		return raw, nil
	}
}
