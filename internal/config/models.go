package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/bryanchriswhite/PoseStreamer/internal/frame"
	"github.com/bryanchriswhite/PoseStreamer/internal/logger"
	"github.com/bryanchriswhite/PoseStreamer/internal/source"
	"gopkg.in/yaml.v3"
)

// Config is the persisted application configuration
type Config struct {
	Source     SourceConfig    `json:"source" yaml:"source"`
	Detector   DetectorConfig  `json:"detector" yaml:"detector"`
	Inference  InferenceConfig `json:"inference" yaml:"inference"`
	Pipeline   PipelineConfig  `json:"pipeline" yaml:"pipeline"`
	Sinks      SinksConfig     `json:"sinks" yaml:"sinks"`
	ServerPort int             `json:"server_port" yaml:"server_port"`
	LogLevel   string          `json:"log_level" yaml:"log_level"`
	LogFile    string          `json:"log_file" yaml:"log_file"`
}

// SourceConfig selects the frame source. Camera >= 0 wins over Path.
type SourceConfig struct {
	Camera int     `json:"camera" yaml:"camera"`
	Path   string  `json:"path" yaml:"path"`
	FPS    float64 `json:"fps" yaml:"fps"` // image sequences only; 0 = default
	Width  int     `json:"width" yaml:"width"`
	Height int     `json:"height" yaml:"height"`
}

// Selection converts the section into a source selection
func (s SourceConfig) Selection() source.Selection {
	return source.Selection{Camera: s.Camera, Path: s.Path, FPS: s.FPS, Width: s.Width, Height: s.Height}
}

// DetectorConfig selects the pose backend
type DetectorConfig struct {
	Kind           string  `json:"kind" yaml:"kind"`
	Model          string  `json:"model" yaml:"model"`
	ScoreThreshold float64 `json:"score_threshold" yaml:"score_threshold"`
	Overlay        bool    `json:"overlay" yaml:"overlay"`
}

// InferenceConfig points at the model server
type InferenceConfig struct {
	URL     string        `json:"url" yaml:"url"`
	Timeout time.Duration `json:"timeout" yaml:"timeout"`
}

// PipelineConfig holds driver defaults
type PipelineConfig struct {
	Loop      bool `json:"loop" yaml:"loop"`
	AutoStart bool `json:"auto_start" yaml:"auto_start"`
}

// SinksConfig groups the per-sink settings
type SinksConfig struct {
	Preview   PreviewConfig   `json:"preview" yaml:"preview"`
	MJPEG     MJPEGConfig     `json:"mjpeg" yaml:"mjpeg"`
	OSC       OSCConfig       `json:"osc" yaml:"osc"`
	Websocket WebsocketConfig `json:"websocket" yaml:"websocket"`
}

// PreviewConfig is the local X11 preview window
type PreviewConfig struct {
	Enabled bool   `json:"enabled" yaml:"enabled"`
	Title   string `json:"title" yaml:"title"`
}

// MJPEGConfig is the network video sink
type MJPEGConfig struct {
	Enabled     bool   `json:"enabled" yaml:"enabled"`
	PixelFormat string `json:"pixel_format" yaml:"pixel_format"`
	Quality     int    `json:"quality" yaml:"quality"`
}

// OSCConfig is the landmark broadcast target
type OSCConfig struct {
	Enabled bool   `json:"enabled" yaml:"enabled"`
	Host    string `json:"host" yaml:"host"`
	Port    int    `json:"port" yaml:"port"`
	Split   bool   `json:"split" yaml:"split"` // legacy :tx/:ty/:tz messages
}

// WebsocketConfig is the JSON landmark feed
type WebsocketConfig struct {
	Enabled bool `json:"enabled" yaml:"enabled"`
}

// Defaults returns the configuration written on first run
func Defaults() *Config {
	return &Config{
		Source: SourceConfig{
			Camera: 0,
			Width:  640,
			Height: 480,
		},
		Detector: DetectorConfig{
			Kind:           "mediapipe",
			ScoreThreshold: 0.2,
			Overlay:        true,
		},
		Inference: InferenceConfig{
			URL:     "http://localhost:8000",
			Timeout: 2 * time.Second,
		},
		Pipeline: PipelineConfig{
			Loop: true,
		},
		Sinks: SinksConfig{
			Preview: PreviewConfig{Enabled: true, Title: "PoseStreamer"},
			MJPEG:   MJPEGConfig{Enabled: true, PixelFormat: string(frame.BGRA), Quality: 75},
			OSC:     OSCConfig{Enabled: true, Host: "127.0.0.1", Port: 5005},
		},
		ServerPort: 8080,
		LogLevel:   "info",
	}
}

// Validate checks values that would otherwise fail late at startup
func (c *Config) Validate() error {
	if c.ServerPort < 1 || c.ServerPort > 65535 {
		return fmt.Errorf("server_port %d out of range", c.ServerPort)
	}
	if c.Source.FPS < 0 {
		return fmt.Errorf("source.fps must not be negative")
	}
	if c.Source.Camera < 0 && c.Source.Path == "" {
		return fmt.Errorf("source needs a camera index or a path")
	}
	if c.Sinks.OSC.Port < 0 || c.Sinks.OSC.Port > 65535 {
		return fmt.Errorf("sinks.osc.port %d out of range", c.Sinks.OSC.Port)
	}
	if _, err := frame.ParsePixelFormat(c.Sinks.MJPEG.PixelFormat); err != nil {
		return fmt.Errorf("sinks.mjpeg: %w", err)
	}
	return nil
}

// Manager handles configuration
type Manager struct {
	configPath string
	config     *Config
	mu         sync.RWMutex
}

// DefaultPath returns ~/.config/posestreamer/config.yaml
func DefaultPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(homeDir, ".config", "posestreamer", "config.yaml"), nil
}

// NewManager creates a new configuration manager
func NewManager(configFile string) (*Manager, error) {
	actualConfigPath := configFile
	if actualConfigPath == "" {
		p, err := DefaultPath()
		if err != nil {
			return nil, err
		}
		actualConfigPath = p
	}

	// Create config directory if it doesn't exist
	if err := os.MkdirAll(filepath.Dir(actualConfigPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create config directory: %w", err)
	}

	m := &Manager{
		configPath: actualConfigPath,
	}

	// Try to read config file
	if err := m.load(); err != nil {
		if os.IsNotExist(err) {
			// Config file not found, create it with defaults
			logger.WithComponent("config").Info().
				Str("path", m.configPath).
				Msg("Config file not found, creating new config")
			m.config = Defaults()
			if err := m.Save(); err != nil {
				return nil, fmt.Errorf("failed to create default config: %w", err)
			}
		} else {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	logger.WithComponent("config").Info().
		Str("path", m.configPath).
		Str("detector", m.config.Detector.Kind).
		Msg("Config loaded")

	return m, nil
}

// load reads the configuration from disk. Keys missing from the file keep
// their default values.
func (m *Manager) load() error {
	data, err := os.ReadFile(m.configPath)
	if err != nil {
		return err
	}

	cfg := Defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config: %w", err)
	}

	m.config = cfg
	return nil
}

// Get returns a copy of the current configuration
func (m *Manager) Get() *Config {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.config == nil {
		return Defaults()
	}

	// Return a copy to prevent external modification
	cfg := *m.config
	return &cfg
}

// Save saves the current configuration to disk
func (m *Manager) Save() error {
	m.mu.RLock()
	cfg := m.config
	m.mu.RUnlock()

	if cfg == nil {
		cfg = Defaults()
	}

	logger.WithComponent("config").Debug().
		Str("path", m.configPath).
		Msg("Saving config")

	configDir := filepath.Dir(m.configPath)
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(m.configPath, data, 0644); err != nil {
		logger.WithComponent("config").Error().
			Err(err).
			Str("path", m.configPath).
			Msg("Failed to write config")
		return err
	}

	logger.WithComponent("config").Info().
		Str("path", m.configPath).
		Msg("Config saved successfully")
	return nil
}

// Update validates and replaces the entire configuration
func (m *Manager) Update(cfg *Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	m.config = cfg
	m.mu.Unlock()
	return m.Save()
}

// Value returns the setting at a dotted key such as "sinks.osc.port"
func (m *Manager) Value(key string) (interface{}, error) {
	tree, err := toTree(m.Get())
	if err != nil {
		return nil, err
	}

	var cur interface{} = tree
	for _, part := range strings.Split(key, ".") {
		node, ok := cur.(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("unknown config key %q", key)
		}
		if cur, ok = node[part]; !ok {
			return nil, fmt.Errorf("unknown config key %q", key)
		}
	}
	return cur, nil
}

// SetValue parses raw as a YAML scalar and stores it at a dotted key
func (m *Manager) SetValue(key, raw string) error {
	tree, err := toTree(m.Get())
	if err != nil {
		return err
	}

	parts := strings.Split(key, ".")
	node := tree
	for _, part := range parts[:len(parts)-1] {
		next, ok := node[part].(map[string]interface{})
		if !ok {
			return fmt.Errorf("unknown config key %q", key)
		}
		node = next
	}
	last := parts[len(parts)-1]
	old, ok := node[last]
	if !ok {
		return fmt.Errorf("unknown config key %q", key)
	}
	if _, isSection := old.(map[string]interface{}); isSection {
		return fmt.Errorf("%q is a section, not a value", key)
	}

	var value interface{}
	if err := yaml.Unmarshal([]byte(raw), &value); err != nil {
		return fmt.Errorf("invalid value for %s: %w", key, err)
	}
	node[last] = value

	data, err := yaml.Marshal(tree)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	cfg := Defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("invalid value for %s: %w", key, err)
	}
	return m.Update(cfg)
}

func toTree(cfg *Config) (map[string]interface{}, error) {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return nil, err
	}
	tree := map[string]interface{}{}
	if err := yaml.Unmarshal(data, &tree); err != nil {
		return nil, err
	}
	return tree, nil
}

// SetPort sets the server port
func (m *Manager) SetPort(port int) error {
	m.mu.Lock()
	m.config.ServerPort = port
	m.mu.Unlock()
	return m.Save()
}

// GetPort gets the server port
func (m *Manager) GetPort() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.config.ServerPort
}

// SetLogLevel sets the log level
func (m *Manager) SetLogLevel(level string) error {
	m.mu.Lock()
	m.config.LogLevel = level
	m.mu.Unlock()
	return m.Save()
}

// GetLogLevel gets the log level
func (m *Manager) GetLogLevel() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.config.LogLevel
}

// GetConfigPath returns the path to the config file
func (m *Manager) GetConfigPath() string {
	return m.configPath
}

// GetConfigDir returns the config directory path
func (m *Manager) GetConfigDir() string {
	return filepath.Dir(m.configPath)
}
