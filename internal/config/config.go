package config

import (
	"fmt"
	"os"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	// General
	Environment string `envconfig:"ENVIRONMENT" default:"development"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`

	// Remote time-tracking service
	APIBaseURL  string        `envconfig:"TRACKD_API_BASE_URL" default:"https://api.clockify.me/api/v1"`
	APIKey      string        `envconfig:"TRACKD_API_KEY"`
	WorkspaceID string        `envconfig:"TRACKD_WORKSPACE_ID"`
	UserID      string        `envconfig:"TRACKD_USER_ID"` // auto-filled by the credential check if empty
	HTTPTimeout time.Duration `envconfig:"TRACKD_HTTP_TIMEOUT" default:"10s"`

	// Billing
	HourlyRate float64 `envconfig:"TRACKD_HOURLY_RATE" default:"25.0"`

	// Dispatcher
	TickInterval  time.Duration `envconfig:"TRACKD_TICK_INTERVAL" default:"100ms"`
	DispatchBatch int           `envconfig:"TRACKD_DISPATCH_BATCH" default:"10"`
	// StartupDelay is how long to wait before the startup timer-resume check.
	StartupDelay time.Duration `envconfig:"TRACKD_STARTUP_DELAY" default:"2s"`

	// Persistence
	DBPath string `envconfig:"TRACKD_DB_PATH" default:"trackd.db"`

	// Management API
	MgmtListenAddr string `envconfig:"TRACKD_MGMT_LISTEN_ADDR" default:":8390"`
	MgmtAPIKey     string `envconfig:"TRACKD_MGMT_API_KEY"` // empty disables auth (local use)

	// Display options file (YAML, optional)
	DisplayConfigPath string `envconfig:"TRACKD_DISPLAY_CONFIG" default:""`

	Display DisplayOptions `ignored:"true"`
}

// DisplayOptions are the host-facing display toggles, loaded from an
// optional YAML file so they can be edited without touching the environment.
type DisplayOptions struct {
	ShowBillable    bool `yaml:"show_billable"`
	ShowElapsedTime bool `yaml:"show_elapsed_time"`
	ShowProjectName bool `yaml:"show_project_name"`
	ShowTaskName    bool `yaml:"show_task_name"`
	ShowClientName  bool `yaml:"show_client_name"`
	ShowLastSession bool `yaml:"show_last_session"`
}

// DefaultDisplayOptions returns the toggles the tracker ships with.
func DefaultDisplayOptions() DisplayOptions {
	return DisplayOptions{
		ShowBillable:    true,
		ShowElapsedTime: true,
		ShowProjectName: true,
		ShowTaskName:    true,
		ShowClientName:  true,
		ShowLastSession: true,
	}
}

// Load reads configuration from environment variables and, if configured,
// the display options YAML file.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	cfg.Display = DefaultDisplayOptions()
	if cfg.DisplayConfigPath != "" {
		opts, err := LoadDisplayOptions(cfg.DisplayConfigPath)
		if err != nil {
			return nil, err
		}
		cfg.Display = opts
	}

	return &cfg, nil
}

// LoadDisplayOptions parses a display options YAML file. Toggles absent from
// the file keep their defaults.
func LoadDisplayOptions(path string) (DisplayOptions, error) {
	opts := DefaultDisplayOptions()
	data, err := os.ReadFile(path)
	if err != nil {
		return opts, fmt.Errorf("reading display config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &opts); err != nil {
		return opts, fmt.Errorf("parsing display config %s: %w", path, err)
	}
	return opts, nil
}

// Validate checks that the remote service credentials are present.
func (c *Config) Validate() error {
	if c.APIKey == "" {
		return fmt.Errorf("TRACKD_API_KEY is required")
	}
	if c.WorkspaceID == "" {
		return fmt.Errorf("TRACKD_WORKSPACE_ID is required")
	}
	return nil
}

// MgmtAuthEnabled returns true if the management API requires a bearer key.
func (c *Config) MgmtAuthEnabled() bool {
	return c.MgmtAPIKey != ""
}
