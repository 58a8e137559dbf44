package commands

import (
	"fmt"
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"flank/internal/cli"
	"flank/internal/config"
	"flank/internal/discovery"
	"flank/internal/migration"
	"flank/internal/parser"
	"flank/internal/storage"
	"flank/internal/ui"
)

// Commands holds all CLI commands
type Commands struct {
	Run     *RunCommand
	Plan    *PlanCommand
	Results *ResultsCommand
	Migrate *MigrateCommand
}

// NewCommands creates all commands with dependencies
func NewCommands(cfg *config.Config, flags *cli.Flags) *Commands {
	// Initialize dependencies
	filter := discovery.NewFilter()
	scanner := discovery.NewScanner(filter)
	junitParser := parser.NewJUnitParser()
	jsonStorage := storage.NewJSONStorage(cfg)
	formatter := ui.NewFormatter()
	failureViewer := ui.NewFailureViewer()
	dbManager := migration.NewDatabaseManager()

	return &Commands{
		Run:     NewRunCommand(cfg, scanner, junitParser, jsonStorage, formatter),
		Plan:    NewPlanCommand(cfg, flags, scanner, formatter),
		Results: NewResultsCommand(flags, jsonStorage, formatter, failureViewer),
		Migrate: NewMigrateCommand(cfg, flags, dbManager),
	}
}

// Register registers all commands with cobra
func (c *Commands) Register(rootCmd *cobra.Command, flags *cli.Flags, cfg *config.Config) {
	rootCmd.PersistentFlags().StringVarP(&flags.ConfigFile, "config", "c", config.DefaultConfigFile, "Path to the YAML configuration file")
	rootCmd.PersistentFlags().StringVar(&flags.LogLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		level, err := log.ParseLevel(flags.LogLevel)
		if err != nil {
			return fmt.Errorf("--log-level: %w", err)
		}
		log.SetLevel(level)
		log.SetOutput(os.Stderr)
		return nil
	}

	// Load the config file, then let explicitly set flags override it
	prepare := func(cmd *cobra.Command, args []string) error {
		loaded, err := config.LoadFile(flags.ConfigFile)
		if err != nil {
			return err
		}
		*cfg = *loaded
		cfg.LoadEnv()
		if err := flags.Apply(cfg, cmd.Flags().Changed); err != nil {
			return err
		}
		return cfg.Validate()
	}

	// Run command
	runCmd := &cobra.Command{
		Use:     "run",
		Short:   "Run tests in parallel shards",
		Long:    "Plan the test cases into shards, run every shard through the shard command and report the results",
		RunE:    c.Run.Execute,
		PreRunE: prepare,
	}
	addRemoteFlags(runCmd, flags)
	addShardingFlags(runCmd, flags)
	addExecutionFlags(runCmd, flags)
	runCmd.Flags().StringVar(&flags.TimingSource, "timing-source", "", "Timing data: a JUnit XML path, gs://bucket/object, mysql://dsn or sqlite://path")
	runCmd.Flags().BoolVar(&flags.SmartFlankDisableUpload, "smart-flank-disable-upload", false, "Do not upload the run's timings to the timing source")
	runCmd.Flags().StringVar(&flags.LocalResultDir, "local-result-dir", config.DefaultLocalResultsDir, "Local directory for run artifacts")
	runCmd.Flags().StringVar(&flags.MetricsFile, "metrics-file", "", "Write prometheus metrics of the run to this file")
	rootCmd.AddCommand(runCmd)

	// Plan command
	planCmd := &cobra.Command{
		Use:     "plan",
		Short:   "Show the shard plan",
		Long:    "Plan the test cases into shards without running them",
		RunE:    c.Plan.Execute,
		PreRunE: prepare,
	}
	addShardingFlags(planCmd, flags)
	planCmd.Flags().StringVar(&flags.TimingSource, "timing-source", "", "Timing data: a JUnit XML path, gs://bucket/object, mysql://dsn or sqlite://path")
	planCmd.Flags().BoolVarP(&flags.Verbose, "verbose", "v", false, "List the test cases of every shard")
	rootCmd.AddCommand(planCmd)

	// Results command
	resultsCmd := &cobra.Command{
		Use:     "results",
		Short:   "Show the last run report",
		Long:    "Display the report of the last run, optionally in an interactive failure viewer",
		RunE:    c.Results.Execute,
		PreRunE: prepare,
	}
	resultsCmd.Flags().StringVar(&flags.LocalResultDir, "local-result-dir", config.DefaultLocalResultsDir, "Local directory for run artifacts")
	resultsCmd.Flags().BoolVarP(&flags.Interactive, "interactive", "i", false, "Browse failures in an interactive viewer")
	rootCmd.AddCommand(resultsCmd)

	// Migrate command
	migrateCmd := &cobra.Command{
		Use:     "migrate",
		Short:   "Create the SQL timing table",
		Long:    "Create the database and the test_timings table behind a mysql:// or sqlite:// timing source",
		RunE:    c.Migrate.Execute,
		PreRunE: prepare,
	}
	migrateCmd.Flags().StringVar(&flags.TimingSource, "timing-source", "", "Timing database: mysql://dsn or sqlite://path")
	migrateCmd.Flags().BoolVar(&flags.Fresh, "fresh", false, "Drop stored timings before migrating")
	migrateCmd.Flags().StringVar(&flags.Seed, "seed", "", "Import timings from a JUnit XML report")
	rootCmd.AddCommand(migrateCmd)
}

func addRemoteFlags(cmd *cobra.Command, flags *cli.Flags) {
	cmd.Flags().StringVar(&flags.Project, "project", "", "Project of the remote test service")
	cmd.Flags().StringVar(&flags.ResultsBucket, "results-bucket", "", "Bucket the remote service stores results in")
	cmd.Flags().StringVar(&flags.ResultsDir, "results-dir", "", "Remote results directory")
	cmd.Flags().StringVar(&flags.ResultsHistoryName, "results-history-name", "", "Results history name")
	cmd.Flags().BoolVar(&flags.RecordVideo, "record-video", false, "Record a video of the test run")
	cmd.Flags().BoolVar(&flags.NoRecordVideo, "no-record-video", false, "Do not record a video of the test run")
	cmd.Flags().StringVar(&flags.Test, "test", "", "Path to the test bundle")
	cmd.Flags().StringVar(&flags.XctestrunFile, "xctestrun-file", "", "Path to the xctestrun file")
	cmd.Flags().StringVar(&flags.XcodeVersion, "xcode-version", "", "Xcode version to run with")
	cmd.Flags().StringArrayVar(&flags.Devices, "device", nil, "Target device as model=..,version=..,locale=..,orientation=.. (repeatable)")
	cmd.Flags().StringSliceVar(&flags.FilesToDownload, "files-to-download", nil, "Remote files to download after the run")
}

func addShardingFlags(cmd *cobra.Command, flags *cli.Flags) {
	cmd.Flags().StringVar(&flags.TestList, "test-list", "", "File with one test case id per line")
	cmd.Flags().StringSliceVar(&flags.TestTargets, "test-targets", nil, "Test case ids, or patterns filtering the test list")
	cmd.Flags().StringSliceVar(&flags.TestTargetsAlwaysRun, "test-targets-always-run", nil, "Test case ids run in every shard")
	cmd.Flags().IntVar(&flags.TestShards, "test-shards", config.DefaultMaxTestShards, "Maximum number of shards")
	cmd.Flags().IntVar(&flags.ShardTime, "shard-time", 0, "Target shard duration in seconds")
	cmd.Flags().BoolVar(&flags.DisableSharding, "disable-sharding", false, "Run every test case in a single shard")
	cmd.Flags().BoolVar(&flags.SmartFlank, "smart-flank", false, "Balance shards with historical timing data")
	cmd.Flags().DurationVar(&flags.DefaultTestTime, "default-test-time", config.DefaultTestTime, "Duration assumed for test cases without timing data")
	cmd.Flags().IntVar(&flags.RepeatTests, "repeat-tests", 1, "Number of times to repeat the tests")
}

func addExecutionFlags(cmd *cobra.Command, flags *cli.Flags) {
	cmd.Flags().DurationVar(&flags.Timeout, "timeout", config.DefaultTimeout, "Overall run timeout")
	cmd.Flags().BoolVar(&flags.Async, "async", false, "Submit the shards and return without waiting for results")
	cmd.Flags().IntVar(&flags.FlakyTestAttempts, "flaky-test-attempts", 0, "Retries granted to every failed test case")
	cmd.Flags().DurationVar(&flags.PollInterval, "poll-interval", config.DefaultPollInterval, "Interval between shard status polls")
	cmd.Flags().BoolVar(&flags.TimeoutConsumesRetry, "timeout-consumes-retry", false, "Retry cases of shards that timed out remotely like failures")
	cmd.Flags().StringVar(&flags.ShardCommand, "shard-command", "", "Command run for every shard attempt")
}
