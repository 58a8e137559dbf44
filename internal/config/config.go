package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"flank/internal/domain"
)

// ErrInvalidConfig is wrapped by every validation failure
var ErrInvalidConfig = errors.New("invalid configuration")

// DeviceConfig is the YAML form of a target device
type DeviceConfig = domain.Device

// Config holds the validated run configuration handed to the core
type Config struct {
	// Project settings
	ProjectPath string `yaml:"-"`

	// Pass-through settings for the remote test service
	Project            string         `yaml:"project"`
	ResultsBucket      string         `yaml:"results-bucket"`
	ResultsDir         string         `yaml:"results-dir"`
	ResultsHistoryName string         `yaml:"results-history-name"`
	RecordVideo        bool           `yaml:"record-video"`
	Test               string         `yaml:"test"`
	XctestrunFile      string         `yaml:"xctestrun-file"`
	XcodeVersion       string         `yaml:"xcode-version"`
	Devices            []DeviceConfig `yaml:"device"`
	FilesToDownload    []string       `yaml:"files-to-download"`

	// Test selection
	TestTargets          []string `yaml:"test-targets"`
	TestTargetsAlwaysRun []string `yaml:"test-targets-always-run"`
	TestListFile         string   `yaml:"test-list"`

	// Sharding settings
	MaxTestShards   int           `yaml:"max-test-shards"`
	ShardTime       time.Duration `yaml:"shard-time"`
	DisableSharding bool          `yaml:"disable-sharding"`
	SmartFlank      bool          `yaml:"smart-flank"`
	DefaultTestTime time.Duration `yaml:"default-test-time"`
	RepeatTests     int           `yaml:"repeat-tests"`

	// Execution settings
	Timeout              time.Duration `yaml:"timeout"`
	Async                bool          `yaml:"async"`
	FlakyTestAttempts    int           `yaml:"flaky-test-attempts"`
	PollInterval         time.Duration `yaml:"poll-interval"`
	TimeoutConsumesRetry bool          `yaml:"timeout-consumes-retry"`
	RemoteRetryAttempts  uint          `yaml:"remote-retry-attempts"`
	RemoteRetryDelay     time.Duration `yaml:"remote-retry-delay"`
	ShardCommand         string        `yaml:"shard-command"`

	// Timing data and outputs
	TimingSource            string `yaml:"timing-source"`
	SmartFlankDisableUpload bool   `yaml:"smart-flank-disable-upload"`
	LocalResultsDir         string `yaml:"local-result-dir"`
	OutputJSONFile          string `yaml:"output-json-file"`
	MetricsFile             string `yaml:"metrics-file"`
}

// New creates a new Config with defaults
func New() *Config {
	return &Config{
		ProjectPath:         DefaultProjectPath,
		MaxTestShards:       DefaultMaxTestShards,
		DefaultTestTime:     DefaultTestTime,
		RepeatTests:         1,
		Timeout:             DefaultTimeout,
		PollInterval:        DefaultPollInterval,
		RemoteRetryAttempts: DefaultRemoteRetryAttempts,
		RemoteRetryDelay:    DefaultRemoteRetryDelay,
		LocalResultsDir:     DefaultLocalResultsDir,
		OutputJSONFile:      DefaultOutputJSONFile,
	}
}

// LoadFile creates a config with defaults and overlays the YAML file at path.
// A missing file yields the defaults.
func LoadFile(path string) (*Config, error) {
	cfg := New()
	if path == "" {
		return cfg, nil
	}
	cfg.ProjectPath = filepath.Dir(path)

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// LoadEnv loads the project's .env file into the process environment, if present
func (c *Config) LoadEnv() {
	// .env might not exist, the process environment is used as is
	_ = godotenv.Load(filepath.Join(c.ProjectPath, ".env"))
}

// Validate rejects inconsistent configurations before planning begins
func (c *Config) Validate() error {
	var result *multierror.Error
	add := func(format string, args ...interface{}) {
		result = multierror.Append(result, fmt.Errorf("%w: "+format, append([]interface{}{ErrInvalidConfig}, args...)...))
	}

	if !c.DisableSharding {
		if c.MaxTestShards < 1 {
			add("max-test-shards must be >= 1, got %d", c.MaxTestShards)
		}
		if c.MaxTestShards > MaxShardLimit {
			add("max-test-shards must be <= %d, got %d", MaxShardLimit, c.MaxTestShards)
		}
	}
	if c.DisableSharding && c.ShardTime > 0 {
		add("disable-sharding conflicts with shard-time")
	}
	if c.DisableSharding && c.SmartFlank {
		add("disable-sharding conflicts with smart-flank")
	}
	if c.ShardTime < 0 {
		add("shard-time must not be negative")
	}
	if c.DefaultTestTime <= 0 {
		add("default-test-time must be positive")
	}
	if c.FlakyTestAttempts < 0 {
		add("flaky-test-attempts must not be negative, got %d", c.FlakyTestAttempts)
	}
	if c.Timeout <= 0 {
		add("timeout must be positive")
	}
	if !c.Async && c.PollInterval <= 0 {
		add("poll-interval must be positive")
	}
	if c.RepeatTests > 1 {
		add("repeat-tests > 1 is not supported")
	}
	for _, d := range c.Devices {
		if d.Model == "" || d.Version == "" {
			add("device requires model and version: %+v", d)
		}
	}

	return result.ErrorOrNil()
}

// DevicesOrDefault returns the configured devices, or the default device
func (c *Config) DevicesOrDefault() []domain.Device {
	if len(c.Devices) == 0 {
		return []domain.Device{DefaultDevice}
	}
	return c.Devices
}

// RequestEnvironment returns the opaque parameters passed to every execution request
func (c *Config) RequestEnvironment() map[string]string {
	env := map[string]string{
		"project":              c.Project,
		"results-bucket":       c.ResultsBucket,
		"results-dir":          c.ResultsDir,
		"results-history-name": c.ResultsHistoryName,
		"record-video":         strconv.FormatBool(c.RecordVideo),
		"test":                 c.Test,
		"xctestrun-file":       c.XctestrunFile,
		"xcode-version":        c.XcodeVersion,
		"files-to-download":    strings.Join(c.FilesToDownload, ","),
	}
	for k, v := range env {
		if v == "" {
			delete(env, k)
		}
	}
	return env
}

// ResolvePath resolves a path relative to the project directory
func (c *Config) ResolvePath(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.ProjectPath, p)
}

// GetResultsDir returns the local directory for a run's artifacts
func (c *Config) GetResultsDir(runID string) string {
	return filepath.Join(c.ProjectPath, c.LocalResultsDir, runID)
}

// GetOutputPath returns the absolute path of the stored last run report
func (c *Config) GetOutputPath() string {
	p := filepath.Join(c.ProjectPath, c.LocalResultsDir, c.OutputJSONFile)
	if abs, err := filepath.Abs(p); err == nil {
		return abs
	}
	return p
}
