package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/containercopier/container-copier/internal/config"
	"github.com/containercopier/container-copier/internal/daemon"
	"github.com/containercopier/container-copier/internal/dashboard"
	"github.com/containercopier/container-copier/internal/logging"
	"github.com/containercopier/container-copier/internal/metrics"
	"github.com/containercopier/container-copier/internal/notify"
	"github.com/containercopier/container-copier/internal/ui"
	"github.com/containercopier/container-copier/internal/version"
)

// errSettings marks invalid flags or environment settings.
var errSettings = errors.New("invalid settings")

// cli carries what every command needs: settings and standard streams.
type cli struct {
	v      *viper.Viper
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
}

func newRootCmd(stdin io.Reader, stdout, stderr io.Writer) *cobra.Command {
	c := &cli{v: config.NewViper(), stdin: stdin, stdout: stdout, stderr: stderr}

	cmd := &cobra.Command{
		Use:   "container-copier",
		Short: "Mirror files into place whenever their source changes",
		Long: `Watch source files and copy them to their targets on change.

The copyset document (TOML, or YAML for .yaml/.yml files) lists groups of
files sharing a source and a target base directory. On start every missing
target is copied once, then each source is watched and copied again whenever
one of its configured events fires.

Copying reads the source. A target listening for ACCESS, OPEN,
CLOSE_NOWRITE, CLOSE or ALL without ONESHOT is therefore copied again
after every copy.

Every flag can also be set through the environment, e.g.
CONTAINER_COPIER_CONFIG or CONTAINER_COPIER_LOG_LEVEL.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          c.runDaemon,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			ui.Setup(stdout)
		},
	}
	cmd.SetIn(stdin)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	flags := cmd.PersistentFlags()
	flags.StringP(config.KeyConfig, "c", config.DefaultPath, "Path to the copyset document")
	flags.CountP(config.KeyVerbose, "v", "Increase log verbosity (-v debug, -vv trace)")
	flags.String(config.KeyBackend, "", fmt.Sprintf("Notification backend (default %q)", notify.DefaultBackend))
	flags.String(config.KeyLogLevel, "info", "Log level when no -v is given")
	flags.String(config.KeyLogFormat, "console", "Log format: console or json")
	flags.String(config.KeyLogFile, "", "Also write logs to this rotating file")
	flags.Int(config.KeyLogMaxSize, 10, "Rotate the log file after this many megabytes")
	flags.Int(config.KeyLogMaxBackups, 3, "Rotated log files to keep")
	flags.Int(config.KeyLogMaxAge, 28, "Days to keep rotated log files")
	flags.String(config.KeyMetricsAddr, "", "Serve /metrics, /health and /ws on this address")
	_ = c.v.BindPFlags(flags)

	cmd.Flags().BoolP("version", "V", false, "Print version information and exit")

	cmd.AddCommand(
		newVersionCmd(c),
		newCheckCmd(c),
		newSchemaCmd(c),
		newInitCmd(c),
	)
	return cmd
}

func (c *cli) settings() (config.Settings, error) {
	s, err := config.SettingsFrom(c.v)
	if err != nil {
		return s, fmt.Errorf("%w: %w", errSettings, err)
	}
	return s, nil
}

func (c *cli) logger(s config.Settings) (*zap.Logger, func() error, error) {
	logger, closer, err := logging.New(logging.Options{
		Verbose:    s.Verbose,
		Level:      s.LogLevel,
		Format:     s.LogFormat,
		Output:     c.stderr,
		File:       s.LogFile,
		MaxSizeMB:  s.LogMaxSizeMB,
		MaxBackups: s.LogMaxBackups,
		MaxAgeDays: s.LogMaxAgeDays,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %w", errSettings, err)
	}
	return logger, closer, nil
}

// runDaemon loads the configuration, opens the notifier and runs the
// daemon until the stream ends, a fatal error occurs or a signal arrives.
func (c *cli) runDaemon(cmd *cobra.Command, _ []string) error {
	if printVersion, _ := cmd.Flags().GetBool("version"); printVersion {
		fmt.Fprintf(c.stdout, "container-copier %s\n", version.Read())
		return nil
	}

	s, err := c.settings()
	if err != nil {
		return err
	}
	logger, closeLog, err := c.logger(s)
	if err != nil {
		return err
	}
	defer func() { _ = closeLog() }()

	logger.Info("Starting container-copier",
		zap.Stringer("version", version.Read()),
		zap.String("config", s.ConfigPath))

	cfg, err := config.Load(s.ConfigPath)
	if err != nil {
		logger.Error("Failed to load configuration", zap.Error(err))
		return err
	}
	logger.Debug("Configuration loaded", zap.Int("copysets", len(cfg.Copysets)))

	opts := daemon.Options{Logger: logger}
	if s.MetricsAddr != "" {
		opts.Metrics = metrics.New()
		status := dashboard.NewServer(dashboard.Config{
			Addr:    s.MetricsAddr,
			Logger:  logger,
			Metrics: opts.Metrics,
		})
		if err := status.Start(); err != nil {
			logger.Error("Failed to start status server", zap.Error(err))
			return err
		}
		defer func() { _ = status.Stop() }()
		opts.Observer = status
	}

	notifier, err := notify.Open(s.Backend)
	if err != nil {
		logger.Error("Failed to create notifier", zap.Error(err))
		return err
	}
	d, err := daemon.New(cfg, notifier, opts)
	if err != nil {
		_ = notifier.Close()
		return err
	}
	defer func() { _ = d.Stop() }()

	if err := d.Start(cmd.Context()); err != nil {
		logger.Error("Daemon stopped", zap.Error(err))
		return err
	}
	logger.Info("Daemon stopped")
	return nil
}
