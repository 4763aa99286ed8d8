package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/qrqcrew/callsign-notes/internal/api"
	"github.com/qrqcrew/callsign-notes/internal/cache"
	"github.com/qrqcrew/callsign-notes/internal/config"
	"github.com/qrqcrew/callsign-notes/internal/syncer"
)

var (
	cfgFile   string
	runOnce   bool
	dryRun    bool
	logLevel  string
	logFormat string
)

var rootCmd = &cobra.Command{
	Use:   "notesd",
	Short: "Callsign notes daemon",
	Long: `Generate Ham2K PoLo callsign notes from amateur radio organization rosters.

The daemon fetches membership rosters (CSV or HTML tables), enriches
members with nicknames from QRZ, and commits the rendered notes files
to GitHub repositories in batches.`,
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the sync daemon",
	Long:  `Run the roster sync loop, or a single pass with --once.`,
	RunE:  runDaemon,
}

var rosterCmd = &cobra.Command{
	Use:   "roster [org]",
	Short: "Fetch and print one organization's roster",
	Long:  `Fetch, parse and print a configured organization's roster as a table. No lookups or commits are performed.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runRoster,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "config.toml", "config file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "console", "log format (console, json)")

	runCmd.Flags().BoolVar(&runOnce, "once", false, "run once and exit (overrides config)")
	runCmd.Flags().BoolVar(&dryRun, "dry-run", false, "compute everything but don't commit to GitHub")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(rosterCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// newLogger builds the process logger. Level precedence: --log-level
// flag, then LOG_LEVEL environment variable, then info.
func newLogger() zerolog.Logger {
	level := logLevel
	if level == "" {
		level = os.Getenv("LOG_LEVEL")
	}
	parsed, err := zerolog.ParseLevel(level)
	if err != nil || parsed == zerolog.NoLevel {
		parsed = zerolog.InfoLevel
	}

	var w io.Writer = os.Stderr
	if logFormat != "json" {
		w = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	}
	return zerolog.New(w).Level(parsed).With().Timestamp().Logger()
}

func runDaemon(cmd *cobra.Command, args []string) error {
	logger := newLogger()

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	enabled := cfg.EnabledOrganizations()
	if len(enabled) == 0 {
		logger.Warn().Msg("No organizations enabled in config")
		return nil
	}
	logger.Info().Int("organizations", len(enabled)).Msg("Starting callsign notes daemon")

	orch := syncer.New(cfg, dryRun, runOnce, logger)
	defer orch.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Status.Enabled && !(runOnce || cfg.Daemon.RunOnce) {
		router := api.SetupRoutes(api.NewHandler(orch))
		go func() {
			if err := router.Run(cfg.Status.Addr); err != nil {
				logger.Error().Err(err).Msg("Status server stopped")
			}
		}()
		logger.Info().Str("addr", cfg.Status.Addr).Msg("Status server listening")
	}

	if err := orch.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func runRoster(cmd *cobra.Command, args []string) error {
	logger := newLogger()

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	var org *config.Organization
	for i := range cfg.Organizations {
		if cfg.Organizations[i].Name == args[0] {
			org = &cfg.Organizations[i]
			break
		}
	}
	if org == nil {
		return fmt.Errorf("organization %q not found in config", args[0])
	}

	src := syncer.SourceForOrganization(*org, logger)
	members, err := src.FetchMembers(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to fetch roster: %w", err)
	}

	// Nicknames come from the cache only; no lookups here
	var nicknames *cache.Nickname
	if cfg.QRZ != nil {
		nicknames = cache.Load(cfg.QRZ.CachePath, logger)
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Callsign", "Number", "Nickname"})
	for _, m := range members {
		nickname := ""
		if nicknames != nil {
			if n, ok := nicknames.Get(m.Callsign); ok && n != nil {
				nickname = *n
			}
		}
		table.Append([]string{m.Callsign, m.MemberID, nickname})
	}
	table.Render()

	fmt.Printf("%d members\n", len(members))
	return nil
}
