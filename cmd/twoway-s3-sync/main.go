package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/yuya-takeyama/twoway-s3-sync/pkg/executor"
	"github.com/yuya-takeyama/twoway-s3-sync/pkg/logger"
	"github.com/yuya-takeyama/twoway-s3-sync/pkg/progress"
	"github.com/yuya-takeyama/twoway-s3-sync/pkg/replica"
	"github.com/yuya-takeyama/twoway-s3-sync/pkg/replicator"
	"github.com/yuya-takeyama/twoway-s3-sync/pkg/report"
	"github.com/yuya-takeyama/twoway-s3-sync/pkg/s3client"
	"github.com/yuya-takeyama/twoway-s3-sync/pkg/state"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
	builtBy = "unknown"
)

type syncConfig struct {
	primaryURI     string
	secondaryURI   string
	dryRun         bool
	quiet          bool
	verbose        bool
	excludes       []string
	profile        string
	region         string
	stateKey       string
	logKey         string
	planJSONFile   string
	resultJSONFile string
}

func main() {
	var cfg syncConfig
	if err := newRootCmd(&cfg).Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd(cfg *syncConfig) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "twoway-s3-sync <PrimaryS3Uri> <SecondaryS3Uri>",
		Short: "Crash-safe two-way S3 replication",
		Long: `twoway-s3-sync keeps two S3 locations in sync by propagating creations
and deletions in both directions. Progress is checkpointed in both replicas,
so an interrupted run resumes where it stopped when invoked again.`,
		Version: fmt.Sprintf("%s (commit: %s, built at: %s by %s)", version, commit, date, builtBy),
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg.primaryURI = args[0]
			cfg.secondaryURI = args[1]

			if err := validateConfig(cfg); err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return run(ctx, cfg, afero.NewOsFs())
		},
		SilenceUsage: true,
	}

	rootCmd.Flags().BoolVar(&cfg.dryRun, "dryrun", false, "Shows operations without executing")
	rootCmd.Flags().BoolVar(&cfg.quiet, "quiet", false, "Suppress non-error output")
	rootCmd.Flags().BoolVar(&cfg.verbose, "verbose", false, "Show debug output")
	// Array, not slice: brace patterns such as '*.{tmp,bak}' contain commas.
	rootCmd.Flags().StringArrayVar(&cfg.excludes, "exclude", nil, "Exclude patterns (multiple allowed)")
	rootCmd.Flags().StringVar(&cfg.profile, "profile", "", "AWS profile to use")
	rootCmd.Flags().StringVar(&cfg.region, "region", "", "AWS region (uses default if not specified)")
	rootCmd.Flags().StringVar(&cfg.stateKey, "state-key", state.DefaultKey, "Object key of the replication state in each replica")
	rootCmd.Flags().StringVar(&cfg.logKey, "log-key", progress.DefaultKey, "Object key of the progress log in each replica")
	rootCmd.Flags().StringVar(&cfg.planJSONFile, "plan-json-file", "", "Path to output plan as JSON file")
	rootCmd.Flags().StringVar(&cfg.resultJSONFile, "result-json-file", "", "Path to output result as JSON file")

	return rootCmd
}

func validateConfig(cfg *syncConfig) error {
	if cfg.quiet && cfg.verbose {
		return fmt.Errorf("--quiet and --verbose are mutually exclusive")
	}
	if cfg.stateKey == "" || cfg.logKey == "" {
		return fmt.Errorf("--state-key and --log-key must not be empty")
	}
	if cfg.stateKey == cfg.logKey {
		return fmt.Errorf("--state-key and --log-key must differ")
	}
	return nil
}

func run(ctx context.Context, cfg *syncConfig, fs afero.Fs) error {
	startTime := time.Now()

	pair, err := replica.NewPair(cfg.primaryURI, cfg.secondaryURI)
	if err != nil {
		return err
	}

	var configOpts []func(*config.LoadOptions) error
	if cfg.profile != "" {
		configOpts = append(configOpts, config.WithSharedConfigProfile(cfg.profile))
	}
	if cfg.region != "" {
		configOpts = append(configOpts, config.WithRegion(cfg.region))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, configOpts...)
	if err != nil {
		return fmt.Errorf("failed to load AWS config: %w", err)
	}

	syncLogger := logger.NewSyncLogger(os.Stdout, cfg.dryRun, cfg.quiet, cfg.verbose)
	syncLogger.Info(fmt.Sprintf("starting replication between %s and %s", pair.Primary, pair.Secondary))

	rep, err := replicator.New(replicator.Config{
		Client:   s3client.NewAWSClient(awsCfg),
		Pair:     pair,
		StateKey: cfg.stateKey,
		LogKey:   cfg.logKey,
		Excludes: cfg.excludes,
		DryRun:   cfg.dryRun,
		Logger:   syncLogger,
	})
	if err != nil {
		return err
	}

	result, runErr := rep.Run(ctx)

	if cfg.planJSONFile != "" && result != nil && result.Plan != nil {
		if err := report.WritePlan(fs, cfg.planJSONFile, pair, result.Plan); err != nil {
			return fmt.Errorf("failed to write plan JSON: %w", err)
		}
	}

	if cfg.resultJSONFile != "" && !cfg.dryRun {
		if err := report.WriteResult(fs, cfg.resultJSONFile, pair, result, runErr); err != nil {
			return fmt.Errorf("failed to write result JSON: %w", err)
		}
	}

	if runErr != nil {
		logRunError(syncLogger, pair, runErr)
		return runErr
	}

	syncLogger.Info(fmt.Sprintf("replication finished in %s", time.Since(startTime).Round(time.Millisecond)))
	return nil
}

// logRunError reports a failed run. Failed actions were already logged by the
// executor with their key, so only the resume hint is added for them.
func logRunError(log logger.Logger, pair replica.Pair, err error) {
	var actionErr *executor.ActionError
	if !errors.As(err, &actionErr) {
		log.Error("replicate", fmt.Sprintf("%s <-> %s", pair.Primary, pair.Secondary), err)
	}
	log.Info("the run will resume from its checkpoint when invoked again")
}
