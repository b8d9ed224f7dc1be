// Package cli implements the drill command.
package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/me/drill/internal/config"
	"github.com/me/drill/internal/logging"
	"github.com/me/drill/internal/practice"
	"github.com/me/drill/internal/records"
	"github.com/me/drill/internal/runner"
	"github.com/me/drill/internal/store"
)

var (
	flagConfig  string
	flagDebug   bool
	flagLearner string

	cfg    config.Config
	logger *slog.Logger
	client *Client
)

// defaultLearner returns the learner name, checking DRILL_LEARNER then USER.
func defaultLearner() string {
	if s := os.Getenv("DRILL_LEARNER"); s != "" {
		return s
	}
	if s := os.Getenv("USER"); s != "" {
		return s
	}
	return "learner"
}

// NewRootCmd creates the root cobra command for the drill CLI.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "drill",
		Short: "drill: spaced-repetition practice for coding exercises",
		Long: "drill picks coding exercises by spaced repetition, checks your answers\n" +
			"and keeps track of your progress. It also maintains the exercise files.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			cfg, err = config.Load(flagConfig, cmd.Flags())
			if err != nil {
				return err
			}
			if flagDebug {
				cfg.LogLevel = "debug"
			}
			logger = logging.NewLogger(logging.ParseLevel(cfg.LogLevel), cfg.LogFormat)
			client = NewClient(cfg.ServerURL, cfg.APIKey, logger)
			return nil
		},
		SilenceUsage: true,
	}

	pf := root.PersistentFlags()
	pf.StringVar(&flagConfig, "config", "", "YAML config file")
	pf.BoolVar(&flagDebug, "debug", false, "Enable debug logging")
	pf.StringVar(&flagLearner, "learner", defaultLearner(), "Learner name (or DRILL_LEARNER env)")
	pf.String("log-level", "info", "Log level (debug, info, warn, error)")
	pf.String("log-format", "text", "Log format (text, json)")
	pf.String("server", "", "drill server URL for remote commands (or DRILL_SERVER_URL env)")
	pf.String("api-key", "", "API key for remote commands (or DRILL_API_KEY env)")
	pf.String("records", "", "Record file or directory (or DRILL_RECORDS env)")
	pf.String("store", "", "Progress store backend: sqlite, postgres, redis, file")
	pf.String("dsn", "", "Progress store DSN (path, connection string or address)")
	pf.String("data-dir", "", "Data directory (default ~/.drill)")
	pf.String("python", "", "Python interpreter used to check answers")

	root.AddCommand(
		newExtractCmd(),
		newAuditCmd(),
		newSolutionsCmd(),
		newRenumberCmd(),
		newProgressCmd(),
		newPracticeCmd(),
		newDueCmd(),
		newNextCmd(),
		newRateCmd(),
		newStatsCmd(),
	)

	return root
}

// openService builds a local practice service from the loaded configuration.
// The returned cleanup closes the store.
func openService(ctx context.Context) (*practice.Service, func(), error) {
	recs, err := records.LoadPath(cfg.Records)
	if err != nil {
		return nil, nil, fmt.Errorf("load records: %w", err)
	}
	set, err := records.NewSet(recs)
	if err != nil {
		return nil, nil, err
	}

	dsn, err := cfg.StoreDSN()
	if err != nil {
		return nil, nil, err
	}
	ps, err := store.Open(ctx, cfg.Store.Backend, dsn, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("open store: %w", err)
	}

	reg := runner.NewDefaultRegistry(cfg.PythonBin, "", cfg.CheckTimeout, logger)
	svc := practice.New(set, ps, reg, logger, practice.WithSessionTTL(cfg.SessionTTL))
	return svc, func() { ps.Close() }, nil
}
