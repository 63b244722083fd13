package common

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pelletier/go-toml/v2"
	"github.com/robfig/cron/v3"
)

// Config represents the application configuration
type Config struct {
	Environment string          `toml:"environment"` // "development" or "production"
	Server      ServerConfig    `toml:"server"`
	Logging     LoggingConfig   `toml:"logging"`
	Portal      PortalConfig    `toml:"portal"`
	Browser     BrowserConfig   `toml:"browser"`
	Sheet       SheetConfig     `toml:"sheet"`
	Poller      PollerConfig    `toml:"poller"`
	Pipeline    PipelineConfig  `toml:"pipeline"`
	Storage     StorageConfig   `toml:"storage"`
	WebSocket   WebSocketConfig `toml:"websocket"`
}

type ServerConfig struct {
	Port int    `toml:"port"`
	Host string `toml:"host"`
}

type LoggingConfig struct {
	Level         string   `toml:"level"`           // "debug", "info", "warn", "error"
	Format        string   `toml:"format"`          // "json" or "text"
	Output        []string `toml:"output"`          // "stdout", "file"
	MinEventLevel string   `toml:"min_event_level"` // Minimum log level to publish as events to the dashboard
}

// PortalConfig describes the external capture portal and its credentials
type PortalConfig struct {
	URL               string        `toml:"url" validate:"required"`      // Portal base URL (login page)
	Username          string        `toml:"username" validate:"required"` // Portal account username
	Password          string        `toml:"password" validate:"required"` // Portal account password
	NavigationTimeout time.Duration `toml:"navigation_timeout"`           // Hard bound for page navigations
	ActionTimeout     time.Duration `toml:"action_timeout"`               // Hard bound for element interactions
}

// BrowserConfig controls session launch behavior and profile placement
type BrowserConfig struct {
	Headless         bool          `toml:"headless"`
	UserAgent        string        `toml:"user_agent"`
	WindowWidth      int           `toml:"window_width"`
	WindowHeight     int           `toml:"window_height"`
	ProfileRoot      string        `toml:"profile_root"`      // Directory holding per-worker profile dirs (default: <exe>/profiles)
	LaunchRetries    int           `toml:"launch_retries"`    // Launch attempts per profile dir before fallback
	LaunchRetryDelay time.Duration `toml:"launch_retry_delay"`
	ProfileFallbacks int           `toml:"profile_fallbacks"` // Alternate fresh dirs to try after rename recovery
}

// SheetConfig describes the tabular data source web app
type SheetConfig struct {
	URL            string            `toml:"url" validate:"required"` // Web app endpoint accepting action requests
	Token          string            `toml:"token"`                   // Optional bearer token
	RequestTimeout time.Duration     `toml:"request_timeout"`
	StatusColumn   string            `toml:"status_column"` // Column letter holding the job status marker
	ResultColumn   string            `toml:"result_column"` // Column letter receiving the portal reference on success
	Columns        map[string]string `toml:"columns"`       // Logical field name -> column letter
	HighlightRate  time.Duration     `toml:"highlight_rate"`
}

// PollerConfig controls eligibility scanning and dispatch
type PollerConfig struct {
	Schedule         string        `toml:"schedule"`    // Cron spec, e.g. "@every 90s"
	Concurrency      int           `toml:"concurrency"` // Max jobs in flight per batch (1 = strictly sequential)
	BatchPause       time.Duration `toml:"batch_pause"`
	EligibleStatus   string        `toml:"eligible_status"`   // Row status selecting a job, compared case-insensitively
	ProcessingStatus string        `toml:"processing_status"` // Written when a job is dispatched
	SuccessStatus    string        `toml:"success_status"`    // Written on terminal success
	ErrorLimit       int           `toml:"error_limit"`       // Max characters of error text written back to the sheet
	StartOnBoot      bool          `toml:"start_on_boot"`
}

// PipelineConfig tunes the filing protocol and failure capture
type PipelineConfig struct {
	PostFileDelay      time.Duration `toml:"post_file_delay"`      // Fixed server round-trip wait after clicking a filing control
	DialogPollAttempts int           `toml:"dialog_poll_attempts"` // Bounded dialog polls after filing
	DialogPollInterval time.Duration `toml:"dialog_poll_interval"`
	ValidationKeywords []string      `toml:"validation_keywords"` // Dialog text fragments classified as validation failures
	ScreenshotDir      string        `toml:"screenshot_dir"`      // Failure screenshot directory (default: <exe>/screenshots)
}

type StorageConfig struct {
	Badger BadgerConfig `toml:"badger"`
}

// BadgerConfig represents BadgerDB-specific configuration
type BadgerConfig struct {
	Path           string `toml:"path"`             // Database directory path
	ResetOnStartup bool   `toml:"reset_on_startup"` // Delete database on startup for clean test runs
}

// WebSocketConfig contains configuration for dashboard event streaming
type WebSocketConfig struct {
	MinLevel        string   `toml:"min_level"`        // Minimum log level to broadcast ("debug", "info", "warn", "error")
	ExcludePatterns []string `toml:"exclude_patterns"` // Log message patterns to exclude from broadcasting
	// Whitelist of event types to broadcast. Empty list allows all events.
	AllowedEvents []string `toml:"allowed_events"`
	// Throttle intervals for high-frequency events. Map of event type to duration string.
	// Example: {"stage_progress": "500ms"}
	ThrottleIntervals map[string]string `toml:"throttle_intervals"`
}

// NewDefaultConfig creates a configuration with default values.
// Technical parameters are hardcoded here for production stability.
// Only user-facing settings should be exposed in scriba.toml.
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Server: ServerConfig{
			Port: 8085,
			Host: "localhost",
		},
		Logging: LoggingConfig{
			Level:         "info",
			Format:        "text",
			Output:        []string{"stdout", "file"},
			MinEventLevel: "info",
		},
		Portal: PortalConfig{
			NavigationTimeout: 60 * time.Second,
			ActionTimeout:     15 * time.Second,
		},
		Browser: BrowserConfig{
			Headless:         true,
			UserAgent:        "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
			WindowWidth:      1920,
			WindowHeight:     1080,
			ProfileRoot:      "", // Resolved to <exe dir>/profiles when empty
			LaunchRetries:    3,
			LaunchRetryDelay: 2 * time.Second,
			ProfileFallbacks: 3,
		},
		Sheet: SheetConfig{
			RequestTimeout: 30 * time.Second,
			StatusColumn:   "B",
			ResultColumn:   "C",
			Columns: map[string]string{
				"name":           "D",
				"surname":        "E",
				"id_number":      "F",
				"phone":          "G",
				"inception_date": "H",
				"plan":           "I",
				"premium":        "J",
				"bank_name":      "K",
				"account_number": "L",
				"account_type":   "M",
				"debit_day":      "N",
				"members":        "O",
			},
			HighlightRate: 500 * time.Millisecond,
		},
		Poller: PollerConfig{
			Schedule:         "@every 90s",
			Concurrency:      1,
			BatchPause:       5 * time.Second,
			EligibleStatus:   "new",
			ProcessingStatus: "Processing",
			SuccessStatus:    "Uploaded",
			ErrorLimit:       200,
			StartOnBoot:      false,
		},
		Pipeline: PipelineConfig{
			PostFileDelay:      4 * time.Second,
			DialogPollAttempts: 5,
			DialogPollInterval: 750 * time.Millisecond,
			ValidationKeywords: []string{
				"invalid",
				"must be",
				"required",
				"cannot be",
				"error",
				"failed",
				"critical",
			},
			ScreenshotDir: "", // Resolved to <exe dir>/screenshots when empty
		},
		Storage: StorageConfig{
			Badger: BadgerConfig{
				Path: "./data",
			},
		},
		WebSocket: WebSocketConfig{
			MinLevel: "info",
			ExcludePatterns: []string{
				"WebSocket client connected",
				"WebSocket client disconnected",
				"HTTP request",
				"HTTP response",
				"Publishing event",
			},
			// Empty AllowedEvents allows all events
			AllowedEvents: []string{},
			// Throttle high-frequency events to prevent WebSocket flooding during long runs
			ThrottleIntervals: map[string]string{
				"stage_progress": "500ms",
			},
		},
	}
}

// LoadFromFile loads configuration with priority: default -> file -> env -> CLI
func LoadFromFile(path string) (*Config, error) {
	if path == "" {
		return LoadFromFiles()
	}
	return LoadFromFiles(path)
}

// LoadFromFiles loads configuration from multiple files, later files overriding
// earlier ones. Priority system: CLI flags > Environment variables > Last config
// file > ... > First config file > Defaults
func LoadFromFiles(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	for i, path := range paths {
		if path == "" {
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		// Unmarshal into config (merges with existing values, later values override)
		err = toml.Unmarshal(data, config)
		if err != nil {
			return nil, fmt.Errorf("failed to parse config file %s (file %d of %d): %w", path, i+1, len(paths), err)
		}
	}

	applyEnvOverrides(config)

	return config, nil
}

// applyEnvOverrides applies environment variable overrides to config
func applyEnvOverrides(config *Config) {
	// Environment configuration (highest priority: SCRIBA_ENV, fallback: GO_ENV)
	if env := os.Getenv("SCRIBA_ENV"); env != "" {
		config.Environment = env
	} else if env := os.Getenv("GO_ENV"); env != "" {
		config.Environment = env
	}

	// Server configuration
	if port := os.Getenv("SCRIBA_SERVER_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}
	if host := os.Getenv("SCRIBA_SERVER_HOST"); host != "" {
		config.Server.Host = host
	}

	// Logging configuration
	if level := os.Getenv("SCRIBA_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}
	if format := os.Getenv("SCRIBA_LOG_FORMAT"); format != "" {
		config.Logging.Format = format
	}
	if output := os.Getenv("SCRIBA_LOG_OUTPUT"); output != "" {
		outputs := []string{}
		for _, o := range strings.Split(output, ",") {
			trimmed := strings.TrimSpace(o)
			if trimmed != "" {
				outputs = append(outputs, trimmed)
			}
		}
		if len(outputs) > 0 {
			config.Logging.Output = outputs
		}
	}
	if minEventLevel := os.Getenv("SCRIBA_LOG_MIN_EVENT_LEVEL"); minEventLevel != "" {
		config.Logging.MinEventLevel = minEventLevel
	}

	// Portal configuration
	if url := os.Getenv("SCRIBA_PORTAL_URL"); url != "" {
		config.Portal.URL = url
	}
	if username := os.Getenv("SCRIBA_PORTAL_USERNAME"); username != "" {
		config.Portal.Username = username
	}
	if password := os.Getenv("SCRIBA_PORTAL_PASSWORD"); password != "" {
		config.Portal.Password = password
	}
	if navTimeout := os.Getenv("SCRIBA_PORTAL_NAVIGATION_TIMEOUT"); navTimeout != "" {
		if d, err := time.ParseDuration(navTimeout); err == nil {
			config.Portal.NavigationTimeout = d
		}
	}
	if actTimeout := os.Getenv("SCRIBA_PORTAL_ACTION_TIMEOUT"); actTimeout != "" {
		if d, err := time.ParseDuration(actTimeout); err == nil {
			config.Portal.ActionTimeout = d
		}
	}

	// Browser configuration
	if headless := os.Getenv("SCRIBA_BROWSER_HEADLESS"); headless != "" {
		if h, err := strconv.ParseBool(headless); err == nil {
			config.Browser.Headless = h
		}
	}
	if profileRoot := os.Getenv("SCRIBA_BROWSER_PROFILE_ROOT"); profileRoot != "" {
		config.Browser.ProfileRoot = profileRoot
	}
	if retries := os.Getenv("SCRIBA_BROWSER_LAUNCH_RETRIES"); retries != "" {
		if r, err := strconv.Atoi(retries); err == nil {
			config.Browser.LaunchRetries = r
		}
	}
	if retryDelay := os.Getenv("SCRIBA_BROWSER_LAUNCH_RETRY_DELAY"); retryDelay != "" {
		if d, err := time.ParseDuration(retryDelay); err == nil {
			config.Browser.LaunchRetryDelay = d
		}
	}

	// Sheet configuration
	if url := os.Getenv("SCRIBA_SHEET_URL"); url != "" {
		config.Sheet.URL = url
	}
	if token := os.Getenv("SCRIBA_SHEET_TOKEN"); token != "" {
		config.Sheet.Token = token
	}
	if timeout := os.Getenv("SCRIBA_SHEET_REQUEST_TIMEOUT"); timeout != "" {
		if d, err := time.ParseDuration(timeout); err == nil {
			config.Sheet.RequestTimeout = d
		}
	}
	if statusColumn := os.Getenv("SCRIBA_SHEET_STATUS_COLUMN"); statusColumn != "" {
		config.Sheet.StatusColumn = statusColumn
	}

	// Poller configuration
	if schedule := os.Getenv("SCRIBA_POLLER_SCHEDULE"); schedule != "" {
		config.Poller.Schedule = schedule
	}
	if concurrency := os.Getenv("SCRIBA_POLLER_CONCURRENCY"); concurrency != "" {
		if c, err := strconv.Atoi(concurrency); err == nil {
			config.Poller.Concurrency = c
		}
	}
	if batchPause := os.Getenv("SCRIBA_POLLER_BATCH_PAUSE"); batchPause != "" {
		if d, err := time.ParseDuration(batchPause); err == nil {
			config.Poller.BatchPause = d
		}
	}
	if eligible := os.Getenv("SCRIBA_POLLER_ELIGIBLE_STATUS"); eligible != "" {
		config.Poller.EligibleStatus = eligible
	}
	if startOnBoot := os.Getenv("SCRIBA_POLLER_START_ON_BOOT"); startOnBoot != "" {
		if s, err := strconv.ParseBool(startOnBoot); err == nil {
			config.Poller.StartOnBoot = s
		}
	}

	// Pipeline configuration
	if postFileDelay := os.Getenv("SCRIBA_PIPELINE_POST_FILE_DELAY"); postFileDelay != "" {
		if d, err := time.ParseDuration(postFileDelay); err == nil {
			config.Pipeline.PostFileDelay = d
		}
	}
	if attempts := os.Getenv("SCRIBA_PIPELINE_DIALOG_POLL_ATTEMPTS"); attempts != "" {
		if a, err := strconv.Atoi(attempts); err == nil {
			config.Pipeline.DialogPollAttempts = a
		}
	}
	if keywords := os.Getenv("SCRIBA_PIPELINE_VALIDATION_KEYWORDS"); keywords != "" {
		parsed := []string{}
		for _, k := range strings.Split(keywords, ",") {
			trimmed := strings.TrimSpace(k)
			if trimmed != "" {
				parsed = append(parsed, trimmed)
			}
		}
		if len(parsed) > 0 {
			config.Pipeline.ValidationKeywords = parsed
		}
	}
	if screenshotDir := os.Getenv("SCRIBA_PIPELINE_SCREENSHOT_DIR"); screenshotDir != "" {
		config.Pipeline.ScreenshotDir = screenshotDir
	}

	// Storage configuration
	if badgerPath := os.Getenv("SCRIBA_BADGER_PATH"); badgerPath != "" {
		config.Storage.Badger.Path = badgerPath
	}

	// WebSocket configuration
	if minLevel := os.Getenv("SCRIBA_WEBSOCKET_MIN_LEVEL"); minLevel != "" {
		config.WebSocket.MinLevel = minLevel
	}
	if allowedEvents := os.Getenv("SCRIBA_WEBSOCKET_ALLOWED_EVENTS"); allowedEvents != "" {
		events := []string{}
		for _, e := range strings.Split(allowedEvents, ",") {
			trimmed := strings.TrimSpace(e)
			if trimmed != "" {
				events = append(events, trimmed)
			}
		}
		if len(events) > 0 {
			config.WebSocket.AllowedEvents = events
		}
	}
	if stageThrottle := os.Getenv("SCRIBA_WEBSOCKET_THROTTLE_STAGE_PROGRESS"); stageThrottle != "" {
		if _, err := time.ParseDuration(stageThrottle); err == nil {
			if config.WebSocket.ThrottleIntervals == nil {
				config.WebSocket.ThrottleIntervals = make(map[string]string)
			}
			config.WebSocket.ThrottleIntervals["stage_progress"] = stageThrottle
		}
	}
}

// ApplyFlagOverrides applies command-line flag overrides to config
func ApplyFlagOverrides(config *Config, port int, host string) {
	// Command-line flags have highest priority
	if port > 0 {
		config.Server.Port = port
	}
	if host != "" {
		config.Server.Host = host
	}
}

// Validate checks that required settings are present and well-formed.
// Configuration errors fail fast, before any browser session is touched.
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}

	if err := ValidatePollSchedule(c.Poller.Schedule); err != nil {
		return fmt.Errorf("poller schedule: %w", err)
	}

	if c.Poller.Concurrency < 1 {
		return fmt.Errorf("poller concurrency must be at least 1, got %d", c.Poller.Concurrency)
	}

	return nil
}

// ValidatePollSchedule validates a cron schedule expression ("@every 90s" or
// standard 5-field cron)
func ValidatePollSchedule(schedule string) error {
	if strings.TrimSpace(schedule) == "" {
		return fmt.Errorf("schedule is empty")
	}
	if _, err := cron.ParseStandard(schedule); err != nil {
		return fmt.Errorf("invalid cron expression %q: %w", schedule, err)
	}
	return nil
}

// IsProduction returns true if the environment is set to production
func (c *Config) IsProduction() bool {
	env := strings.ToLower(strings.TrimSpace(c.Environment))
	return env == "production" || env == "prod"
}
