// Package config manages persisted chopchop configuration: credentials,
// the target repository, and UI preferences.
package config

import (
	"encoding/json"
	"fmt"
	"strings"

	chop "github.com/randalmurphal/chopchop/internal/errors"
	"github.com/randalmurphal/chopchop/internal/storage"
)

// Key is the fixed key the configuration lives under in the KV store.
const Key = "chopchop.config"

// Preferences holds non-credential UI settings.
type Preferences struct {
	Theme      string `json:"theme,omitempty"`
	EditorMode string `json:"editorMode,omitempty"`
}

// AppConfig is the persisted application configuration.
type AppConfig struct {
	GitHubPAT    string      `json:"githubPat,omitempty"`
	GitHubRepo   string      `json:"githubRepo,omitempty"`
	OpenAIAPIKey string      `json:"openaiApiKey,omitempty"`
	Preferences  Preferences `json:"preferences"`
}

// importConfig is the wire shape accepted on import: either the current
// githubRepo field or the legacy defaultRepo field.
type importConfig struct {
	GitHubPAT    string      `json:"githubPat"`
	GitHubRepo   string      `json:"githubRepo"`
	DefaultRepo  string      `json:"defaultRepo"`
	OpenAIAPIKey string      `json:"openaiApiKey"`
	Preferences  Preferences `json:"preferences"`
}

// Usable reports whether the configuration can carry a session through the
// stages that need credentials.
func (c AppConfig) Usable() bool {
	return c.GitHubPAT != "" && c.GitHubRepo != "" && c.OpenAIAPIKey != ""
}

// MissingField names the first unset required field, or "".
func (c AppConfig) MissingField() string {
	switch {
	case c.GitHubPAT == "":
		return "githubPat"
	case c.GitHubRepo == "":
		return "githubRepo"
	case c.OpenAIAPIKey == "":
		return "openaiApiKey"
	default:
		return ""
	}
}

// OwnerRepo splits the configured "owner/repo" value.
func (c AppConfig) OwnerRepo() (string, string) {
	parts := strings.SplitN(c.GitHubRepo, "/", 2)
	if len(parts) != 2 {
		return "", ""
	}
	return parts[0], parts[1]
}

// Load reads the configuration from the store. A missing key or malformed
// value yields the zero configuration, never an error.
func Load(kv storage.KV) AppConfig {
	var cfg AppConfig
	data, ok := kv.Get(Key)
	if !ok {
		return cfg
	}
	if err := json.Unmarshal(data, &cfg); err != nil {
		return AppConfig{}
	}
	return cfg
}

// Save writes the configuration to the store.
func Save(kv storage.KV, cfg AppConfig) error {
	data, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	return kv.Set(Key, data)
}

// Export renders the configuration as pretty-printed JSON.
func Export(cfg AppConfig) ([]byte, error) {
	return json.MarshalIndent(cfg, "", "  ")
}

// Import parses an exported configuration, accepting the legacy
// defaultRepo field name and normalizing it to githubRepo. Files carrying
// neither field are rejected.
func Import(data []byte) (AppConfig, error) {
	var in importConfig
	if err := json.Unmarshal(data, &in); err != nil {
		return AppConfig{}, chop.Wrap(chop.CodeConfigInvalid, "configuration file is not valid JSON", err)
	}
	repo := in.GitHubRepo
	if repo == "" {
		repo = in.DefaultRepo
	}
	if repo == "" {
		return AppConfig{}, chop.New(chop.CodeConfigInvalid,
			"configuration file has neither githubRepo nor defaultRepo")
	}
	return AppConfig{
		GitHubPAT:    in.GitHubPAT,
		GitHubRepo:   repo,
		OpenAIAPIKey: in.OpenAIAPIKey,
		Preferences:  in.Preferences,
	}, nil
}
