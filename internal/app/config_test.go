package app

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shrimpsizemoose/kladdkaka/internal/rules"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadConfig_PartialCreditsKeepDefaults(t *testing.T) {
	path := writeConfig(t, `
[server]
port = ":9999"

[credits]
post = 3
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 3, cfg.Credits.Post, "overridden value sticks")
	assert.Equal(t, 1, cfg.Credits.Comment)
	assert.Equal(t, 10, cfg.Credits.Material)
	assert.Equal(t, 5, cfg.Credits.Attendance)
	assert.Equal(t, 20, cfg.Credits.MaxGrade)
}

func TestLoadConfig_Defaults(t *testing.T) {
	path := writeConfig(t, `
[server]
port = ":9999"
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, rules.DefaultAmounts(), cfg.Credits)
	assert.Equal(t, 3, cfg.Retry.MaxAttempts)
	assert.Equal(t, 200, cfg.Retry.BaseDelayMs)
	assert.Equal(t, 50, cfg.Leaderboard.Limit)
}

func TestLoadConfig_MissingPort(t *testing.T) {
	path := writeConfig(t, `
[credits]
post = 3
`)

	_, err := LoadConfig(path)
	assert.Error(t, err)
}

func TestNewBotService_AppliesDefaults(t *testing.T) {
	svc := NewBotService(nil, rules.Amounts{Post: 3})

	assert.Equal(t, 3, svc.Config.Credits.Post)
	assert.Equal(t, 5, svc.Config.Credits.Attendance)
	assert.Equal(t, 20, svc.Config.Credits.MaxGrade)
	assert.Equal(t, 3, svc.Config.Retry.MaxAttempts)
}
