package common

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDefaultConfig(t *testing.T) {
	config := NewDefaultConfig()

	assert.Equal(t, 8085, config.Server.Port)
	assert.Equal(t, "localhost", config.Server.Host)
	assert.Equal(t, "info", config.Logging.Level)
	assert.Equal(t, 1, config.Poller.Concurrency)
	assert.Equal(t, "new", config.Poller.EligibleStatus)
	assert.Equal(t, "Uploaded", config.Poller.SuccessStatus)
	assert.Equal(t, 3, config.Browser.LaunchRetries)
	assert.Contains(t, config.Pipeline.ValidationKeywords, "must be")
	assert.Contains(t, config.Pipeline.ValidationKeywords, "invalid")
}

func TestLoadFromFilesMergesOverDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "scriba.toml")
	content := `
[server]
port = 9090

[poller]
concurrency = 3
schedule = "@every 30s"

[portal]
url = "https://portal.example.com/login"
username = "operator"
password = "secret"

[sheet]
url = "https://sheet.example.com/exec"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	config, err := LoadFromFiles(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, config.Server.Port)
	assert.Equal(t, "localhost", config.Server.Host) // default preserved
	assert.Equal(t, 3, config.Poller.Concurrency)
	assert.Equal(t, "@every 30s", config.Poller.Schedule)
	assert.Equal(t, "https://portal.example.com/login", config.Portal.URL)
}

func TestLoadFromFilesMissingFile(t *testing.T) {
	_, err := LoadFromFiles("/nonexistent/scriba.toml")
	require.Error(t, err)
}

func TestApplyEnvOverrides(t *testing.T) {
	t.Setenv("SCRIBA_SERVER_PORT", "7070")
	t.Setenv("SCRIBA_POLLER_CONCURRENCY", "4")
	t.Setenv("SCRIBA_PIPELINE_VALIDATION_KEYWORDS", "invalid, rejected ,must be")
	t.Setenv("SCRIBA_PORTAL_NAVIGATION_TIMEOUT", "45s")

	config := NewDefaultConfig()
	applyEnvOverrides(config)

	assert.Equal(t, 7070, config.Server.Port)
	assert.Equal(t, 4, config.Poller.Concurrency)
	assert.Equal(t, []string{"invalid", "rejected", "must be"}, config.Pipeline.ValidationKeywords)
	assert.Equal(t, 45*time.Second, config.Portal.NavigationTimeout)
}

func TestApplyFlagOverrides(t *testing.T) {
	config := NewDefaultConfig()

	ApplyFlagOverrides(config, 6060, "0.0.0.0")
	assert.Equal(t, 6060, config.Server.Port)
	assert.Equal(t, "0.0.0.0", config.Server.Host)

	// Zero values leave config untouched
	ApplyFlagOverrides(config, 0, "")
	assert.Equal(t, 6060, config.Server.Port)
	assert.Equal(t, "0.0.0.0", config.Server.Host)
}

func TestValidateRequiresPortalAndSheet(t *testing.T) {
	config := NewDefaultConfig()
	require.Error(t, config.Validate(), "empty portal credentials must fail validation")

	config.Portal.URL = "https://portal.example.com/login"
	config.Portal.Username = "operator"
	config.Portal.Password = "secret"
	config.Sheet.URL = "https://sheet.example.com/exec"

	require.NoError(t, config.Validate())
}

func TestValidatePollSchedule(t *testing.T) {
	tests := []struct {
		name     string
		schedule string
		wantErr  bool
	}{
		{"every interval", "@every 90s", false},
		{"standard cron", "*/5 * * * *", false},
		{"empty", "", true},
		{"garbage", "whenever", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePollSchedule(tt.schedule)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestIsProduction(t *testing.T) {
	config := NewDefaultConfig()
	assert.False(t, config.IsProduction())

	config.Environment = "production"
	assert.True(t, config.IsProduction())

	config.Environment = "PROD"
	assert.True(t, config.IsProduction())
}
