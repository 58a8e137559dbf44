package cli

import (
	"fmt"
	"time"

	"flank/internal/config"
	"flank/internal/domain"
)

// Flags holds command-line flags
type Flags struct {
	ConfigFile string
	LogLevel   string

	// Remote test service pass-through
	Project            string
	ResultsBucket      string
	ResultsDir         string
	ResultsHistoryName string
	RecordVideo        bool
	NoRecordVideo      bool
	Test               string
	XctestrunFile      string
	XcodeVersion       string
	Devices            []string
	FilesToDownload    []string

	// Test selection and sharding
	TestList             string
	TestTargets          []string
	TestTargetsAlwaysRun []string
	TestShards           int
	ShardTime            int // seconds
	DisableSharding      bool
	SmartFlank           bool
	DefaultTestTime      time.Duration
	RepeatTests          int

	// Execution
	Timeout              time.Duration
	Async                bool
	FlakyTestAttempts    int
	PollInterval         time.Duration
	TimeoutConsumesRetry bool
	ShardCommand         string

	// Timing data and outputs
	TimingSource            string
	SmartFlankDisableUpload bool
	LocalResultDir          string
	MetricsFile             string

	// Command specific
	Verbose     bool
	Interactive bool
	Fresh       bool
	Seed        string
}

// Apply overrides cfg with the flags that were set on the command line
func (f *Flags) Apply(cfg *config.Config, changed func(name string) bool) error {
	setString := func(name string, dst *string, v string) {
		if changed(name) {
			*dst = v
		}
	}
	setBool := func(name string, dst *bool, v bool) {
		if changed(name) {
			*dst = v
		}
	}
	setInt := func(name string, dst *int, v int) {
		if changed(name) {
			*dst = v
		}
	}
	setDuration := func(name string, dst *time.Duration, v time.Duration) {
		if changed(name) {
			*dst = v
		}
	}
	setStrings := func(name string, dst *[]string, v []string) {
		if changed(name) {
			*dst = v
		}
	}

	setString("project", &cfg.Project, f.Project)
	setString("results-bucket", &cfg.ResultsBucket, f.ResultsBucket)
	setString("results-dir", &cfg.ResultsDir, f.ResultsDir)
	setString("results-history-name", &cfg.ResultsHistoryName, f.ResultsHistoryName)
	setBool("record-video", &cfg.RecordVideo, f.RecordVideo)
	if changed("no-record-video") && f.NoRecordVideo {
		cfg.RecordVideo = false
	}
	setString("test", &cfg.Test, f.Test)
	setString("xctestrun-file", &cfg.XctestrunFile, f.XctestrunFile)
	setString("xcode-version", &cfg.XcodeVersion, f.XcodeVersion)
	setStrings("files-to-download", &cfg.FilesToDownload, f.FilesToDownload)
	if changed("device") {
		devices := make([]domain.Device, 0, len(f.Devices))
		for _, raw := range f.Devices {
			d, err := domain.ParseDevice(raw)
			if err != nil {
				return fmt.Errorf("--device: %w", err)
			}
			devices = append(devices, d)
		}
		cfg.Devices = devices
	}

	setString("test-list", &cfg.TestListFile, f.TestList)
	setStrings("test-targets", &cfg.TestTargets, f.TestTargets)
	setStrings("test-targets-always-run", &cfg.TestTargetsAlwaysRun, f.TestTargetsAlwaysRun)
	setInt("test-shards", &cfg.MaxTestShards, f.TestShards)
	if changed("shard-time") {
		cfg.ShardTime = time.Duration(f.ShardTime) * time.Second
	}
	setBool("disable-sharding", &cfg.DisableSharding, f.DisableSharding)
	setBool("smart-flank", &cfg.SmartFlank, f.SmartFlank)
	setDuration("default-test-time", &cfg.DefaultTestTime, f.DefaultTestTime)
	setInt("repeat-tests", &cfg.RepeatTests, f.RepeatTests)

	setDuration("timeout", &cfg.Timeout, f.Timeout)
	setBool("async", &cfg.Async, f.Async)
	setInt("flaky-test-attempts", &cfg.FlakyTestAttempts, f.FlakyTestAttempts)
	setDuration("poll-interval", &cfg.PollInterval, f.PollInterval)
	setBool("timeout-consumes-retry", &cfg.TimeoutConsumesRetry, f.TimeoutConsumesRetry)
	setString("shard-command", &cfg.ShardCommand, f.ShardCommand)

	setString("timing-source", &cfg.TimingSource, f.TimingSource)
	setBool("smart-flank-disable-upload", &cfg.SmartFlankDisableUpload, f.SmartFlankDisableUpload)
	setString("local-result-dir", &cfg.LocalResultsDir, f.LocalResultDir)
	setString("metrics-file", &cfg.MetricsFile, f.MetricsFile)
	return nil
}
