// Package config loads service configuration from an optional config.yaml
// overlaid by REPAIRLENS_-prefixed environment variables.
package config

import (
	"errors"
	"os"
	"regexp"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

type Config struct {
	Server ServerConfig `koanf:"server"`
	Gemini GeminiConfig `koanf:"gemini"`
	Media  MediaConfig  `koanf:"media"`
	Chat   ChatConfig   `koanf:"chat"`
}

type ServerConfig struct {
	Port int `koanf:"port"`
}

type GeminiConfig struct {
	// APIKey may use ${VAR} substitution in the config file. When empty
	// after substitution, gateway calls fail with a configuration error;
	// the process itself still starts.
	APIKey string `koanf:"api_key"`
	Model  string `koanf:"model"`
	// BaseURL overrides the API endpoint, used by recorded-exchange tests.
	BaseURL string `koanf:"base_url"`
	// RequestsPerSecond bounds outbound calls; 0 disables the limiter.
	RequestsPerSecond float64 `koanf:"requests_per_second"`
	Burst             int     `koanf:"burst"`
}

type MediaConfig struct {
	// MaxUploadBytes caps a single capture payload.
	MaxUploadBytes int64 `koanf:"max_upload_bytes"`
}

type ChatConfig struct {
	// TokenBudget caps the transcript context submitted with a chat turn;
	// oldest turns are dropped first.
	TokenBudget int `koanf:"token_budget"`
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// Load reads config.yaml if present, then the environment. Missing file is
// not an error.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if path == "" {
		path = "config.yaml"
	}
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
	}

	// Environment overrides file config: REPAIRLENS_GEMINI__MODEL -> gemini.model
	if err := k.Load(env.Provider("REPAIRLENS_", ".", func(s string) string {
		return strings.Replace(strings.ToLower(strings.TrimPrefix(s, "REPAIRLENS_")), "__", ".", -1)
	}), nil); err != nil {
		return nil, err
	}

	applyDefaults(k)

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, err
	}

	cfg.Gemini.APIKey = substituteEnvVars(cfg.Gemini.APIKey)
	if cfg.Gemini.APIKey == "" {
		cfg.Gemini.APIKey = os.Getenv("GEMINI_API_KEY")
	}

	return &cfg, nil
}

func applyDefaults(k *koanf.Koanf) {
	if !k.Exists("server.port") {
		k.Set("server.port", 8080)
	}
	if !k.Exists("gemini.model") {
		k.Set("gemini.model", "gemini-2.5-flash")
	}
	if !k.Exists("media.max_upload_bytes") {
		k.Set("media.max_upload_bytes", 20*1024*1024)
	}
	if !k.Exists("chat.token_budget") {
		k.Set("chat.token_budget", 8000)
	}
}

func substituteEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		varName := envVarPattern.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}
