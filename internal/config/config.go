package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	appLog "rareopen/internal/log"
	"rareopen/internal/match"
	"rareopen/internal/model"
	"rareopen/internal/rank"
)

// FeedConfig describes one ICS feed of busy tasting slots.
type FeedConfig struct {
	ID  string `yaml:"id" json:"id"`
	URL string `yaml:"url" json:"url"`
}

// BasicAuthConfig holds HTTP Basic Auth credentials for the API.
type BasicAuthConfig struct {
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
}

// MatchingConfig exposes the matching and ranking policy constants.
type MatchingConfig struct {
	// FormatTokens are whole words dropped from names before comparison.
	FormatTokens []string `yaml:"format_tokens" json:"format_tokens"`
	// SizeKeywords are the bottle sizes recognized for scoring, in priority order.
	SizeKeywords []string `yaml:"size_keywords" json:"size_keywords"`

	AdmissionCutoff int `yaml:"admission_cutoff" json:"admission_cutoff"`
	AcceptThreshold int `yaml:"accept_threshold" json:"accept_threshold"`

	MinScore   int `yaml:"min_score" json:"min_score"`
	MaxResults int `yaml:"max_results" json:"max_results"`
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address for the API.
	Listen string `yaml:"listen" json:"listen"`

	// Timezone is the IANA zone schedule date/time strings are read in.
	Timezone string `yaml:"timezone" json:"timezone"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level" json:"log_level"`

	// DataDir holds schedule.yaml, wines.yaml and tastings.yaml.
	DataDir string `yaml:"data_dir" json:"data_dir"`

	// RefreshCron is a cron-style schedule for reloading the data snapshot.
	RefreshCron string `yaml:"refresh" json:"refresh"`

	// SlotHorizonDays bounds recurring busy slot expansion.
	SlotHorizonDays int `yaml:"slot_horizon_days" json:"slot_horizon_days"`

	// TastingFeeds are ICS calendars whose events count as busy slots.
	TastingFeeds []FeedConfig `yaml:"tastings_ics" json:"tastings_ics"`

	// Preferences are the base preferences every request is overlaid on.
	Preferences model.Preferences `yaml:"preferences" json:"preferences"`

	Matching MatchingConfig `yaml:"matching" json:"matching"`

	// BasicAuth, if set, protects every endpoint except /health.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	cfg := &Config{
		Listen:          "127.0.0.1:8080",
		Timezone:        "Europe/Paris",
		LogLevel:        "info",
		DataDir:         "./data",
		RefreshCron:     "*/10 * * * *",
		SlotHorizonDays: 14,
		TastingFeeds:    []FeedConfig{},
		Preferences: model.Preferences{
			Sizes: []string{"magnum"},
		},
	}
	cfg.Matching = defaultMatching()
	return cfg
}

func defaultMatching() MatchingConfig {
	return MatchingConfig{
		FormatTokens:    append([]string(nil), match.DefaultFormatTokens...),
		SizeKeywords:    append([]string(nil), rank.DefaultSizeKeywords...),
		AdmissionCutoff: match.DefaultAdmissionCutoff,
		AcceptThreshold: match.DefaultAcceptThreshold,
		MinScore:        rank.DefaultMinScore,
		MaxResults:      rank.DefaultMaxResults,
	}
}

// Normalize fills in missing/zero values so partially filled configs behave.
func (c *Config) Normalize() {
	if c.Listen == "" {
		c.Listen = "127.0.0.1:8080"
	}
	if c.Timezone == "" {
		c.Timezone = "Europe/Paris"
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.DataDir == "" {
		c.DataDir = "./data"
	}
	if c.RefreshCron == "" {
		c.RefreshCron = "*/10 * * * *"
	}
	if c.SlotHorizonDays <= 0 {
		c.SlotHorizonDays = 14
	}
	if c.TastingFeeds == nil {
		c.TastingFeeds = []FeedConfig{}
	}

	def := defaultMatching()
	m := &c.Matching
	if m.FormatTokens == nil {
		m.FormatTokens = def.FormatTokens
	}
	if len(m.SizeKeywords) == 0 {
		m.SizeKeywords = def.SizeKeywords
	}
	if m.AdmissionCutoff <= 0 || m.AdmissionCutoff > 100 {
		m.AdmissionCutoff = def.AdmissionCutoff
	}
	if m.AcceptThreshold <= 0 || m.AcceptThreshold > 100 {
		m.AcceptThreshold = def.AcceptThreshold
	}
	if m.MinScore <= 0 {
		m.MinScore = def.MinScore
	}
	if m.MaxResults <= 0 {
		m.MaxResults = def.MaxResults
	}
}

// Location resolves Timezone, falling back to time.Local when it is invalid.
func (c *Config) Location() *time.Location {
	if c.Timezone == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		appLog.Error("failed to load timezone; falling back to local", err, "name", c.Timezone)
		return time.Local
	}
	return loc
}

// Normalizer returns a name normalizer using the configured format tokens.
func (c *Config) Normalizer() *match.Normalizer {
	return match.NewNormalizer(c.Matching.FormatTokens)
}

// Ranker builds a ranker wired with the configured matching policy.
func (c *Config) Ranker() *rank.Ranker {
	m := match.NewPriceMatcher(c.Normalizer())
	m.AdmissionCutoff = c.Matching.AdmissionCutoff
	m.AcceptThreshold = c.Matching.AcceptThreshold

	r := rank.New(m)
	r.SizeKeywords = c.Matching.SizeKeywords
	r.MinScore = c.Matching.MinScore
	r.MaxResults = c.Matching.MaxResults
	r.Location = c.Location()
	return r
}

// Load loads configuration from the given YAML path.
//
// If the file does not exist a default config is written (0600) and
// returned. Otherwise the YAML is decoded and normalized.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				return cfg, err
			}
			return cfg, nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	cfg.Normalize()

	return &cfg, nil
}

// Save writes cfg to path atomically (temp file + rename) with 0600 perms.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".rareopen-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}
