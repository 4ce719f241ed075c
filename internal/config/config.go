package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"waitroom/internal/errors"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Display sources.
const (
	SourceLocal  = "local"
	SourceRemote = "remote"
)

// Display renderers.
const (
	RendererTUI   = "tui"
	RendererPlain = "plain"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "WAITROOM_"

// Config represents the application configuration structure.
// It covers the data directory, the HTTP gateway, the display engine and
// the renderer layout.
type Config struct {
	DataDir string `yaml:"data_dir"` // Directory holding the JSON state files
	Server  struct {
		Host            string `yaml:"host"`             // Listen host for the gateway
		Port            int    `yaml:"port"`             // Listen port for the gateway
		ShutdownTimeout int    `yaml:"shutdown_timeout"` // Graceful shutdown timeout in seconds
	} `yaml:"server"`
	Display struct {
		Source        string `yaml:"source"`         // local (data dir) or remote (gateway)
		ServerURL     string `yaml:"server_url"`     // Gateway base URL for remote source
		PollInterval  int    `yaml:"poll_interval"`  // Seconds between reconcile polls
		FetchTimeout  int    `yaml:"fetch_timeout"`  // Seconds before a remote fetch is abandoned
		ManualAdvance bool   `yaml:"manual_advance"` // Only advance on operator input
		Renderer      string `yaml:"renderer"`       // tui or plain
		FadeMillis    int    `yaml:"fade_millis"`    // Fade-out duration before an item swap
	} `yaml:"display"`
	Layout struct {
		SingleLineMax int `yaml:"single_line_max"` // Status message characters that fit on one line
		BreakWindow   int `yaml:"break_window"`    // Search radius around the midpoint for a natural break
		MinFont       int `yaml:"min_font"`        // Smallest announcement font size
		MaxFont       int `yaml:"max_font"`        // Largest announcement font size
		Width         int `yaml:"width"`           // Announcement box width
		Height        int `yaml:"height"`          // Announcement box height
	} `yaml:"layout"`
	Watch struct {
		Disabled bool `yaml:"disabled"` // Rely on polling only
		Debounce int  `yaml:"debounce"` // Milliseconds to coalesce bursts of events
	} `yaml:"watch"`
	Log struct {
		Debug bool   `yaml:"debug"` // Enable debug output
		JSON  bool   `yaml:"json"`  // Emit JSON lines
		File  string `yaml:"file"`  // Mirror output to this file
	} `yaml:"log"`
	Theme struct {
		Name     string `yaml:"name"`     // Theme name (default, dark, light, etc.)
		Primary  string `yaml:"primary"`  // Title color
		Success  string `yaml:"success"`  // Room number color
		Warning  string `yaml:"warning"`  // Announcement color
		Error    string `yaml:"error"`    // Error panel color
		Info     string `yaml:"info"`     // Body text color
		Emphasis string `yaml:"emphasis"` // Message banner color
		Border   string `yaml:"border"`   // Border color for frames
	} `yaml:"theme"`
}

// DefaultPath returns ~/.config/waitroom/config.yaml.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "waitroom", "config.yaml"), nil
}

// LoadConfig loads configuration from the default location.
func LoadConfig() (*Config, error) {
	path, err := DefaultPath()
	if err != nil {
		return nil, err
	}
	return LoadConfigFile(path)
}

// LoadEnv reads KEY=VALUE files into the process environment without
// overriding variables that are already set. Missing files are ignored.
func LoadEnv(paths ...string) error {
	var existing []string
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			existing = append(existing, p)
		}
	}
	if len(existing) == 0 {
		return nil
	}
	if err := godotenv.Load(existing...); err != nil {
		return errors.NewConfigError("failed to load env file", strings.Join(existing, ","), errors.InvalidConfig, err)
	}
	return nil
}

// LoadConfigFile loads configuration from a specific file path.
// If the file doesn't exist, the defaults are used. Environment overrides
// are applied last.
func LoadConfigFile(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, errors.NewFileError("error reading config file", path, errors.FileAccessDenied, err)
	}
	if err == nil {
		var tempCfg Config
		if err := yaml.Unmarshal(data, &tempCfg); err != nil {
			return nil, errors.NewConfigError("error parsing config file", path, errors.InvalidConfig, err)
		}
		cfg.merge(&tempCfg)
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// merge copies every set value of other over c.
func (c *Config) merge(other *Config) {
	if other.DataDir != "" {
		c.DataDir = other.DataDir
	}
	if other.Server.Host != "" {
		c.Server.Host = other.Server.Host
	}
	if other.Server.Port > 0 {
		c.Server.Port = other.Server.Port
	}
	if other.Server.ShutdownTimeout > 0 {
		c.Server.ShutdownTimeout = other.Server.ShutdownTimeout
	}

	if other.Display.Source != "" {
		c.Display.Source = other.Display.Source
	}
	if other.Display.ServerURL != "" {
		c.Display.ServerURL = other.Display.ServerURL
	}
	if other.Display.PollInterval > 0 {
		c.Display.PollInterval = other.Display.PollInterval
	}
	if other.Display.FetchTimeout > 0 {
		c.Display.FetchTimeout = other.Display.FetchTimeout
	}
	if other.Display.Renderer != "" {
		c.Display.Renderer = other.Display.Renderer
	}
	if other.Display.FadeMillis > 0 {
		c.Display.FadeMillis = other.Display.FadeMillis
	}
	c.Display.ManualAdvance = other.Display.ManualAdvance

	if other.Layout.SingleLineMax > 0 {
		c.Layout.SingleLineMax = other.Layout.SingleLineMax
	}
	if other.Layout.BreakWindow > 0 {
		c.Layout.BreakWindow = other.Layout.BreakWindow
	}
	if other.Layout.MinFont > 0 {
		c.Layout.MinFont = other.Layout.MinFont
	}
	if other.Layout.MaxFont > 0 {
		c.Layout.MaxFont = other.Layout.MaxFont
	}
	if other.Layout.Width > 0 {
		c.Layout.Width = other.Layout.Width
	}
	if other.Layout.Height > 0 {
		c.Layout.Height = other.Layout.Height
	}

	c.Watch.Disabled = other.Watch.Disabled
	if other.Watch.Debounce > 0 {
		c.Watch.Debounce = other.Watch.Debounce
	}

	c.Log.Debug = other.Log.Debug
	c.Log.JSON = other.Log.JSON
	if other.Log.File != "" {
		c.Log.File = other.Log.File
	}

	if other.Theme.Name != "" {
		c.ApplyTheme(other.Theme.Name)
	}
}

// applyEnv overrides values from WAITROOM_* variables.
func (c *Config) applyEnv() error {
	if v := os.Getenv(EnvPrefix + "DATA_DIR"); v != "" {
		c.DataDir = v
	}
	if v := os.Getenv(EnvPrefix + "HOST"); v != "" {
		c.Server.Host = v
	}
	if v := os.Getenv(EnvPrefix + "PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return errors.NewConfigError("invalid port override", EnvPrefix+"PORT", errors.InvalidConfig, err)
		}
		c.Server.Port = port
	}
	if v := os.Getenv(EnvPrefix + "SOURCE"); v != "" {
		c.Display.Source = v
	}
	if v := os.Getenv(EnvPrefix + "SERVER_URL"); v != "" {
		c.Display.ServerURL = v
	}
	if v := os.Getenv(EnvPrefix + "RENDERER"); v != "" {
		c.Display.Renderer = v
	}
	if v := os.Getenv(EnvPrefix + "DEBUG"); v != "" {
		debug, err := strconv.ParseBool(v)
		if err != nil {
			return errors.NewConfigError("invalid debug override", EnvPrefix+"DEBUG", errors.InvalidConfig, err)
		}
		c.Log.Debug = debug
	}
	return nil
}

// defaultConfig returns the default configuration.
func defaultConfig() *Config {
	cfg := &Config{}

	cfg.DataDir = "data"

	cfg.Server.Host = "127.0.0.1"
	cfg.Server.Port = 8080
	cfg.Server.ShutdownTimeout = 5

	cfg.Display.Source = SourceLocal
	cfg.Display.ServerURL = "http://127.0.0.1:8080"
	cfg.Display.PollInterval = 5
	cfg.Display.FetchTimeout = 3
	cfg.Display.ManualAdvance = false
	cfg.Display.Renderer = RendererTUI
	cfg.Display.FadeMillis = 300

	cfg.Layout.SingleLineMax = 20
	cfg.Layout.BreakWindow = 5
	cfg.Layout.MinFont = 30
	cfg.Layout.MaxFont = 200
	cfg.Layout.Width = 1200
	cfg.Layout.Height = 600

	cfg.Watch.Debounce = 200

	cfg.ApplyTheme("default")
	return cfg
}

// SaveConfig saves the configuration to the specified file.
// It creates parent directories if they don't exist.
func SaveConfig(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return errors.NewFileError("failed to create config directory", filepath.Dir(path), errors.FileOperationFailed, err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return errors.Wrap(err, "failed to marshal config")
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return errors.NewFileError("failed to write config file", path, errors.FileOperationFailed, err)
	}
	return nil
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c == nil {
		return errors.ErrInvalidConfig
	}

	if c.DataDir == "" {
		return errors.NewConfigError("data directory is required", "data_dir", errors.InvalidConfig, nil)
	}
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return errors.NewConfigError(fmt.Sprintf("port %d out of range", c.Server.Port), "server.port", errors.InvalidConfig, nil)
	}

	switch c.Display.Source {
	case SourceLocal:
	case SourceRemote:
		u, err := url.Parse(c.Display.ServerURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return errors.NewConfigError("remote source needs an absolute server url", "display.server_url", errors.InvalidConfig, err)
		}
	default:
		return errors.NewConfigError(fmt.Sprintf("unknown source %q", c.Display.Source), "display.source", errors.InvalidConfig, nil)
	}

	if c.Display.Renderer != RendererTUI && c.Display.Renderer != RendererPlain {
		return errors.NewConfigError(fmt.Sprintf("unknown renderer %q", c.Display.Renderer), "display.renderer", errors.InvalidConfig, nil)
	}
	if c.Display.PollInterval < 1 {
		return errors.NewConfigError("poll interval must be >= 1 second", "display.poll_interval", errors.InvalidConfig, nil)
	}
	if c.Display.FetchTimeout < 1 {
		return errors.NewConfigError("fetch timeout must be >= 1 second", "display.fetch_timeout", errors.InvalidConfig, nil)
	}

	if c.Layout.SingleLineMax < 2 {
		return errors.NewConfigError("single line budget must be >= 2", "layout.single_line_max", errors.InvalidConfig, nil)
	}
	if c.Layout.BreakWindow < 0 {
		return errors.NewConfigError("break window must be >= 0", "layout.break_window", errors.InvalidConfig, nil)
	}
	if c.Layout.MinFont < 1 || c.Layout.MinFont > c.Layout.MaxFont {
		return errors.NewConfigError("font bounds must satisfy 1 <= min <= max", "layout.min_font", errors.InvalidConfig, nil)
	}
	if c.Layout.Width < 1 || c.Layout.Height < 1 {
		return errors.NewConfigError("layout box must be positive", "layout.width", errors.InvalidConfig, nil)
	}
	return nil
}

// New creates a new configuration instance with default values.
func New() *Config {
	return defaultConfig()
}

// GetTheme returns a predefined theme configuration by name.
// If the theme doesn't exist, returns the default theme.
func GetTheme(name string) map[string]string {
	themes := map[string]map[string]string{
		"default": {
			"primary":  "213", // Purple
			"success":  "114", // Green
			"warning":  "220", // Yellow
			"error":    "196", // Red
			"info":     "252", // Off-white
			"emphasis": "212", // Light Pink
			"border":   "213", // Purple
		},
		"dark": {
			"primary":  "105",
			"success":  "78",
			"warning":  "214",
			"error":    "160",
			"info":     "250",
			"emphasis": "147",
			"border":   "105",
		},
		"clinic": {
			"primary":  "31",  // Teal
			"success":  "36",  // Green-Blue
			"warning":  "208", // Orange
			"error":    "196", // Red
			"info":     "255", // White
			"emphasis": "51",  // Cyan
			"border":   "31",  // Teal
		},
		"monochrome": {
			"primary":  "255",
			"success":  "252",
			"warning":  "250",
			"error":    "245",
			"info":     "252",
			"emphasis": "255",
			"border":   "245",
		},
	}

	if theme, exists := themes[name]; exists {
		return theme
	}
	return themes["default"]
}

// ApplyTheme sets the theme colors in the configuration.
func (c *Config) ApplyTheme(name string) {
	theme := GetTheme(name)

	c.Theme.Name = name
	c.Theme.Primary = theme["primary"]
	c.Theme.Success = theme["success"]
	c.Theme.Warning = theme["warning"]
	c.Theme.Error = theme["error"]
	c.Theme.Info = theme["info"]
	c.Theme.Emphasis = theme["emphasis"]
	c.Theme.Border = theme["border"]
}

// ListThemes returns a list of available theme names.
func ListThemes() []string {
	return []string{"default", "dark", "clinic", "monochrome"}
}
