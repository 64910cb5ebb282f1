package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadCreatesDefault(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	again, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg.Matching, again.Matching)
	assert.Equal(t, cfg.Preferences, again.Preferences)
}

func TestLoadPartial(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "config.yaml")
	body := `
timezone: UTC
preferences:
  houses: [Krug, Salon]
  older_than_year: 2010
  excluded_wines:
    - Krug Grande Cuvée
matching:
  accept_threshold: 85
  size_keywords: [jeroboam, magnum]
tastings_ics:
  - id: trade
    url: https://example.com/trade.ics
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:8080", cfg.Listen)
	assert.Equal(t, []string{"Krug", "Salon"}, cfg.Preferences.Houses)
	require.NotNil(t, cfg.Preferences.OlderThanYear)
	assert.Equal(t, 2010, *cfg.Preferences.OlderThanYear)
	assert.Equal(t, []string{"Krug Grande Cuvée"}, cfg.Preferences.ExcludedWines)
	assert.Nil(t, cfg.Preferences.Sizes)
	assert.Equal(t, 60, cfg.Matching.AdmissionCutoff)
	assert.Equal(t, 85, cfg.Matching.AcceptThreshold)
	assert.Equal(t, 2, cfg.Matching.MinScore)
	assert.Equal(t, 3, cfg.Matching.MaxResults)
	require.Len(t, cfg.TastingFeeds, 1)
	assert.Equal(t, "trade", cfg.TastingFeeds[0].ID)

	r := cfg.Ranker()
	assert.Equal(t, []string{"jeroboam", "magnum"}, r.SizeKeywords)
	assert.Equal(t, 85, r.Matcher.AcceptThreshold)
	assert.Equal(t, time.UTC, r.Location)
}

func TestLoadInvalidYAML(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("listen: [unterminated"), 0o600))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestLocationFallback(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	cfg.Timezone = "Not/AZone"
	assert.Equal(t, time.Local, cfg.Location())
}

func TestSaveRejectsEmpty(t *testing.T) {
	t.Parallel()

	assert.Error(t, Save("", DefaultConfig()))
	assert.Error(t, Save(filepath.Join(t.TempDir(), "c.yaml"), nil))
}
