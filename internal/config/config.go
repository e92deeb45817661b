// Package config loads Tandem configuration from JSONC files and the
// environment.
package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"regexp"

	"github.com/tidwall/jsonc"
)

// Config is the merged configuration for a Tandem process.
type Config struct {
	// Model selects the default model as "provider/model-id".
	Model    string                    `json:"model,omitempty"`
	LogLevel string                    `json:"log_level,omitempty"`
	Provider map[string]ProviderConfig `json:"provider,omitempty"`
	Session  SessionConfig             `json:"session,omitempty"`
	Planner  PlannerConfig             `json:"planner,omitempty"`
}

// ProviderConfig holds per-provider credentials and overrides.
type ProviderConfig struct {
	APIKey   string `json:"api_key,omitempty"`
	BaseURL  string `json:"base_url,omitempty"`
	Disabled bool   `json:"disabled,omitempty"`
}

// SessionConfig controls session storage and the per-round turn cap.
type SessionConfig struct {
	Dir      string `json:"dir,omitempty"`
	MaxTurns int    `json:"max_turns,omitempty"`
}

// PlannerConfig controls the planner's optional prompt enrichment.
type PlannerConfig struct {
	PromptCompression bool   `json:"prompt_compression,omitempty"`
	UseExperience     bool   `json:"use_experience,omitempty"`
	ExperienceDir     string `json:"experience_dir,omitempty"`
	ExperienceTopK    int    `json:"experience_top_k,omitempty"`
	UseExample        bool   `json:"use_example,omitempty"`
	ExampleDir        string `json:"example_dir,omitempty"`
}

// Load merges configuration from, in priority order: the global config
// (~/.config/tandem/), the project config (tandem.json[c] in directory),
// a TANDEM_CONFIG file override, and environment variables.
func Load(directory string) (*Config, error) {
	config := &Config{
		Provider: make(map[string]ProviderConfig),
	}

	loaded := make(map[string]bool)
	loadOnce := func(path string) {
		absPath, err := filepath.Abs(path)
		if err != nil {
			return
		}
		if loaded[absPath] {
			return
		}
		if loadConfigFile(path, config) == nil {
			loaded[absPath] = true
		}
	}

	globalDir := GetPaths().Config
	loadOnce(filepath.Join(globalDir, "tandem.json"))
	loadOnce(filepath.Join(globalDir, "tandem.jsonc"))

	if directory != "" {
		loadOnce(filepath.Join(directory, "tandem.json"))
		loadOnce(filepath.Join(directory, "tandem.jsonc"))
	}

	if path := os.Getenv("TANDEM_CONFIG"); path != "" {
		loadOnce(path)
	}

	applyEnvOverrides(config)
	applyDefaults(config)
	return config, nil
}

func loadConfigFile(path string, config *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	data = jsonc.ToJSON(data)
	data = interpolateEnv(data)

	var fileConfig Config
	if err := json.Unmarshal(data, &fileConfig); err != nil {
		return err
	}

	mergeConfig(config, &fileConfig)
	return nil
}

var envPattern = regexp.MustCompile(`\{env:([^}]+)\}`)

// interpolateEnv resolves {env:VAR} placeholders so keys can stay out of
// config files.
func interpolateEnv(data []byte) []byte {
	return envPattern.ReplaceAllFunc(data, func(match []byte) []byte {
		name := envPattern.FindSubmatch(match)[1]
		return []byte(os.Getenv(string(name)))
	})
}

func mergeConfig(target, source *Config) {
	if source.Model != "" {
		target.Model = source.Model
	}
	if source.LogLevel != "" {
		target.LogLevel = source.LogLevel
	}
	for name, p := range source.Provider {
		target.Provider[name] = p
	}
	if source.Session.Dir != "" {
		target.Session.Dir = source.Session.Dir
	}
	if source.Session.MaxTurns != 0 {
		target.Session.MaxTurns = source.Session.MaxTurns
	}
	if source.Planner != (PlannerConfig{}) {
		target.Planner = source.Planner
	}
}

// applyEnvOverrides applies the highest-priority layer: well-known
// environment variables.
func applyEnvOverrides(config *Config) {
	if v := os.Getenv("TANDEM_MODEL"); v != "" {
		config.Model = v
	}
	if v := os.Getenv("TANDEM_LOG_LEVEL"); v != "" {
		config.LogLevel = v
	}
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		p := config.Provider["openai"]
		p.APIKey = v
		config.Provider["openai"] = p
	}
	if v := os.Getenv("ANTHROPIC_API_KEY"); v != "" {
		p := config.Provider["anthropic"]
		p.APIKey = v
		config.Provider["anthropic"] = p
	}
}

func applyDefaults(config *Config) {
	if config.Session.Dir == "" {
		config.Session.Dir = GetPaths().Data
	}
}
