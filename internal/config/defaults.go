package config

import "time"

const (
	// DefaultProjectPath is the directory holding flank.yml and .env
	DefaultProjectPath = "."
	// DefaultConfigFile is the default YAML configuration file name
	DefaultConfigFile = "flank.yml"
	// DefaultLocalResultsDir is where run artifacts are written
	DefaultLocalResultsDir = "results"
	// DefaultOutputJSONFile is the file name of the stored last run report
	DefaultOutputJSONFile = "run-report.json"
	// DefaultTimingFile is the JUnit file written after each run for smart flank
	DefaultTimingFile = "JUnitReport.xml"
	// DefaultMaxTestShards is the default number of shards
	DefaultMaxTestShards = 1
	// DefaultTestTime is the weight of a test case with no historical duration
	DefaultTestTime = 120 * time.Second
	// DefaultTimeout is the overall run timeout
	DefaultTimeout = 15 * time.Minute
	// DefaultPollInterval is how often remote shard status is polled
	DefaultPollInterval = 10 * time.Second
	// DefaultRemoteRetryAttempts bounds retries of transient remote API errors
	DefaultRemoteRetryAttempts = 3
	// DefaultRemoteRetryDelay is the base delay between remote API retries
	DefaultRemoteRetryDelay = time.Second
	// MaxShardLimit is the largest shard count accepted
	MaxShardLimit = 50
)

// DefaultDevice is used when no device is configured
var DefaultDevice = DeviceConfig{Model: "iphone8", Version: "12.0", Locale: "en_US", Orientation: "portrait"}
