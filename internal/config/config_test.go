package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	os.Clearenv()
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.Environment)
	assert.Equal(t, "https://api.clockify.me/api/v1", cfg.APIBaseURL)
	assert.Equal(t, 10, cfg.DispatchBatch)
	assert.Equal(t, 25.0, cfg.HourlyRate)
	assert.Equal(t, ":8390", cfg.MgmtListenAddr)
	assert.True(t, cfg.Display.ShowBillable)
	assert.False(t, cfg.MgmtAuthEnabled())
}

func TestLoad_EnvOverrides(t *testing.T) {
	os.Clearenv()
	t.Setenv("TRACKD_API_KEY", "secret")
	t.Setenv("TRACKD_WORKSPACE_ID", "ws1")
	t.Setenv("TRACKD_HOURLY_RATE", "80.5")
	t.Setenv("TRACKD_DISPATCH_BATCH", "5")
	t.Setenv("TRACKD_MGMT_API_KEY", "mgmt-key")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "secret", cfg.APIKey)
	assert.Equal(t, 80.5, cfg.HourlyRate)
	assert.Equal(t, 5, cfg.DispatchBatch)
	assert.True(t, cfg.MgmtAuthEnabled())
	assert.NoError(t, cfg.Validate())
}

func TestValidate_MissingCredentials(t *testing.T) {
	cfg := &Config{}
	assert.ErrorContains(t, cfg.Validate(), "TRACKD_API_KEY")

	cfg.APIKey = "k"
	assert.ErrorContains(t, cfg.Validate(), "TRACKD_WORKSPACE_ID")

	cfg.WorkspaceID = "ws"
	assert.NoError(t, cfg.Validate())
}

func TestLoadDisplayOptions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "display.yaml")
	require.NoError(t, os.WriteFile(path, []byte("show_billable: false\nshow_client_name: false\n"), 0o644))

	opts, err := LoadDisplayOptions(path)
	require.NoError(t, err)
	assert.False(t, opts.ShowBillable)
	assert.False(t, opts.ShowClientName)
	assert.True(t, opts.ShowElapsedTime, "absent toggles keep defaults")
}

func TestLoadDisplayOptions_MissingFile(t *testing.T) {
	_, err := LoadDisplayOptions(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoadDisplayOptions_BadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "display.yaml")
	require.NoError(t, os.WriteFile(path, []byte("show_billable: [not a bool"), 0o644))
	_, err := LoadDisplayOptions(path)
	assert.Error(t, err)
}
