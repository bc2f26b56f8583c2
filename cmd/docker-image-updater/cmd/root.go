package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap/zapcore"

	"github.com/oshokin/docker-image-updater/internal/config"
	"github.com/oshokin/docker-image-updater/internal/logger"
	"github.com/oshokin/docker-image-updater/internal/repository/lock"
	"github.com/oshokin/docker-image-updater/internal/service/updater"
	"github.com/oshokin/docker-image-updater/internal/version"
)

var (
	// deprecatedFile is the legacy single configuration file, it replaces the positional files.
	deprecatedFile string
	// debug is a shorthand for --log-level=debug.
	debug bool
	// logLevel is the minimum level of printed messages.
	logLevel string
	// lockFile is the run lock marker, empty disables locking.
	lockFile string
	// pullTimeout bounds each image pull.
	pullTimeout time.Duration
	// commandTimeout bounds each command.
	commandTimeout time.Duration

	// rootCmd pulls the watched images and runs the commands of updated groups.
	rootCmd = &cobra.Command{
		Use:   "docker-image-updater [flags] [FILE...]",
		Short: "Pull watched Docker images and run commands when they change",
		Long: "Pull every image listed in the watch groups of the configuration files and run " +
			"the commands of each group in which at least one image changed.\n" +
			"Files are merged from left to right, " + config.DefaultConfigFilename + " is used when none is given.",
		Args:              cobra.ArbitraryArgs,
		SilenceUsage:      true,
		PersistentPreRunE: setupLogging,
		RunE: func(cmd *cobra.Command, args []string) error {
			// Setup graceful shutdown handling.
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			options := &updater.Options{
				ConfigPaths:    configPaths(ctx, args),
				LockFile:       lockFile,
				PullTimeout:    pullTimeout,
				CommandTimeout: commandTimeout,
			}

			_, err := updater.Run(ctx, options)

			return err
		},
	}

	// configCmd prints the merged configuration.
	configCmd = &cobra.Command{
		Use:   "config [FILE...]",
		Short: "Print the merged configuration as YAML",
		Args:  cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return updater.PrintConfig(cmd.Context(), configPaths(cmd.Context(), args), cmd.OutOrStdout())
		},
	}
)

// Execute runs the docker-image-updater CLI and exits with non-zero status on error.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)

	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	// Setup command flags with consistent naming and descriptions.
	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&deprecatedFile, "file", "f", "", "deprecated, pass configuration files as arguments instead")
	flags.BoolVar(&debug, "debug", false, "show debug messages")
	flags.StringVar(&logLevel, "log-level", "info", "log level: debug, info, warn or error")

	rootCmd.Flags().StringVar(&lockFile, "lock-file", "",
		"run lock marker file, e.g. "+lock.DefaultPath+", empty disables locking")
	rootCmd.Flags().DurationVar(&pullTimeout, "pull-timeout", 0, "abort an image pull after this long, 0 waits forever")
	rootCmd.Flags().DurationVar(&commandTimeout, "command-timeout", 0, "kill a command after this long, 0 waits forever")

	rootCmd.AddCommand(configCmd)
}

// setupLogging applies --log-level and --debug.
func setupLogging(_ *cobra.Command, _ []string) error {
	level, ok := logger.ParseLogLevel(logLevel)
	if !ok {
		return fmt.Errorf("unknown log level %q", strings.TrimSpace(logLevel))
	}

	if debug {
		level = zapcore.DebugLevel
	}

	logger.SetLevel(level)

	return nil
}

// configPaths returns the files to load. The deprecated flag wins over positional arguments.
func configPaths(ctx context.Context, args []string) []string {
	if deprecatedFile == "" {
		return args
	}

	logger.Warn(ctx, "--file is deprecated, please migrate to using positional arguments instead")

	return []string{deprecatedFile}
}
