package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/qrqcrew/callsign-notes/internal/domain"
)

const (
	// DefaultMaxConcurrentLookups bounds parallel QRZ lookups per organization
	DefaultMaxConcurrentLookups = 10

	defaultSyncIntervalSecs = 3600
	defaultCachePath        = "nickname_cache.json"
	defaultStatusAddr       = ":8880"
	defaultCallsignColumn   = "Callsign"
	defaultNumberColumn     = "Number"
)

// Config holds the application configuration
type Config struct {
	Daemon        DaemonConfig   `mapstructure:"daemon"`
	GitHub        GitHubConfig   `mapstructure:"github"`
	QRZ           *QRZConfig     `mapstructure:"qrz"`
	Status        StatusConfig   `mapstructure:"status"`
	Organizations []Organization `mapstructure:"organizations"`
}

// DaemonConfig controls the sync loop
type DaemonConfig struct {
	SyncIntervalSecs int  `mapstructure:"sync_interval_secs"`
	RunOnce          bool `mapstructure:"run_once"`
}

// GitHubConfig is the global default publish target and commit identity
type GitHubConfig struct {
	Token             string `mapstructure:"token"`
	Owner             string `mapstructure:"owner"`
	Repo              string `mapstructure:"repo"`
	Branch            string `mapstructure:"branch"`
	CommitAuthorName  string `mapstructure:"commit_author_name"`
	CommitAuthorEmail string `mapstructure:"commit_author_email"`
}

// GitHubOverride is a per-organization partial target; unset fields fall
// back to the global GitHubConfig
type GitHubOverride struct {
	Owner  string `mapstructure:"owner"`
	Repo   string `mapstructure:"repo"`
	Branch string `mapstructure:"branch"`
}

// QRZConfig enables nickname enrichment via the QRZ XML API
type QRZConfig struct {
	Enabled              bool   `mapstructure:"enabled"`
	Username             string `mapstructure:"username"`
	Password             string `mapstructure:"password"`
	CachePath            string `mapstructure:"cache_path"`
	MaxConcurrentLookups int    `mapstructure:"max_concurrent_lookups"`
}

// StatusConfig enables the HTTP status server in daemon mode
type StatusConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Addr    string `mapstructure:"addr"`
}

// Organization describes one roster source
type Organization struct {
	Name                string          `mapstructure:"name"`
	Enabled             bool            `mapstructure:"enabled"`
	RosterURL           string          `mapstructure:"roster_url"`
	SourceType          string          `mapstructure:"source_type"`
	CallsignColumn      string          `mapstructure:"callsign_column"`
	NumberColumn        string          `mapstructure:"number_column"`
	CallsignColumnIndex *int            `mapstructure:"callsign_column_index"`
	NumberColumnIndex   *int            `mapstructure:"number_column_index"`
	SkipRows            int             `mapstructure:"skip_rows"`
	Emoji               string          `mapstructure:"emoji"`
	Label               string          `mapstructure:"label"`
	URL                 string          `mapstructure:"url"`
	OutputFile          string          `mapstructure:"output_file"`
	GitHub              *GitHubOverride `mapstructure:"github"`
}

// Load loads the configuration from a TOML file with environment overrides
func Load(path string) (*Config, error) {
	// Load .env file if it exists (ignore error if not found)
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(path)
	v.SetEnvPrefix("NOTESD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "__"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.expandTokenPlaceholder(); err != nil {
		return nil, err
	}
	cfg.applyDefaults()

	return &cfg, nil
}

// expandTokenPlaceholder resolves a ${VAR} token value from the environment
func (c *Config) expandTokenPlaceholder() error {
	token := c.GitHub.Token
	if strings.HasPrefix(token, "${") && strings.HasSuffix(token, "}") {
		envVar := token[2 : len(token)-1]
		value := os.Getenv(envVar)
		if value == "" {
			return &ConfigError{Field: "github.token", Message: fmt.Sprintf("environment variable %s not set", envVar)}
		}
		c.GitHub.Token = value
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.Daemon.SyncIntervalSecs <= 0 {
		c.Daemon.SyncIntervalSecs = defaultSyncIntervalSecs
	}
	if c.QRZ != nil {
		if c.QRZ.CachePath == "" {
			c.QRZ.CachePath = defaultCachePath
		}
		if c.QRZ.MaxConcurrentLookups <= 0 {
			c.QRZ.MaxConcurrentLookups = DefaultMaxConcurrentLookups
		}
	}
	if c.Status.Addr == "" {
		c.Status.Addr = defaultStatusAddr
	}
	for i := range c.Organizations {
		org := &c.Organizations[i]
		if org.SourceType == "" {
			org.SourceType = "csv"
		}
		if org.CallsignColumn == "" {
			org.CallsignColumn = defaultCallsignColumn
		}
		if org.NumberColumn == "" {
			org.NumberColumn = defaultNumberColumn
		}
		if org.CallsignColumnIndex == nil {
			idx := 1
			org.CallsignColumnIndex = &idx
		}
		if org.NumberColumnIndex == nil {
			idx := 0
			org.NumberColumnIndex = &idx
		}
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.GitHub.Token == "" {
		return &ConfigError{Field: "github.token", Message: "GitHub token is required"}
	}
	if c.GitHub.CommitAuthorName == "" || c.GitHub.CommitAuthorEmail == "" {
		return &ConfigError{Field: "github", Message: "commit author name and email are required"}
	}
	for _, org := range c.Organizations {
		if !org.Enabled {
			continue
		}
		if org.Name == "" {
			return &ConfigError{Field: "organizations", Message: "every organization needs a name"}
		}
		if org.RosterURL == "" {
			return &ConfigError{Field: org.Name + ".roster_url", Message: "roster URL is required"}
		}
		if org.SourceType != "csv" && org.SourceType != "html_table" {
			return &ConfigError{Field: org.Name + ".source_type", Message: "must be 'csv' or 'html_table'"}
		}
		if org.OutputFile == "" {
			return &ConfigError{Field: org.Name + ".output_file", Message: "output file path is required"}
		}
		if org.Label == "" {
			return &ConfigError{Field: org.Name + ".label", Message: "label is required"}
		}
		target := c.ResolveTarget(org.GitHub)
		if target.Owner == "" || target.Repo == "" || target.Branch == "" {
			return &ConfigError{Field: org.Name + ".github", Message: "resolved target must have owner, repo and branch"}
		}
	}
	return nil
}

// ResolveTarget merges a per-organization override over the global default.
// Override fields win field-by-field; unset fields fall back to the global.
func (c *Config) ResolveTarget(override *GitHubOverride) domain.GitHubTarget {
	target := domain.GitHubTarget{
		Owner:  c.GitHub.Owner,
		Repo:   c.GitHub.Repo,
		Branch: c.GitHub.Branch,
	}
	if override == nil {
		return target
	}
	if override.Owner != "" {
		target.Owner = override.Owner
	}
	if override.Repo != "" {
		target.Repo = override.Repo
	}
	if override.Branch != "" {
		target.Branch = override.Branch
	}
	return target
}

// EnabledOrganizations returns the organizations with enabled = true
func (c *Config) EnabledOrganizations() []Organization {
	var enabled []Organization
	for _, org := range c.Organizations {
		if org.Enabled {
			enabled = append(enabled, org)
		}
	}
	return enabled
}

// ConfigError represents a configuration error
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return e.Field + ": " + e.Message
}
