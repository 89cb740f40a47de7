// Package cli implements meritctl, the admin command line for the merit
// engine. Commands operate directly on the configured SQLite database.
package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/okian/merit/internal/adapters/repository"
	service "github.com/okian/merit/internal/app"
	"github.com/okian/merit/internal/config"
	"github.com/okian/merit/pkg/logger"
)

// env carries state shared by subcommands. The store is opened lazily so
// commands that only talk HTTP never touch the database.
type env struct {
	cfg       *config.Config
	dbPath    string
	rulesPath string
	logFormat string

	store *repository.SQLiteStore
	svc   *service.Service
}

// NewRootCmd builds the meritctl command tree.
func NewRootCmd() *cobra.Command {
	e := &env{}
	root := &cobra.Command{
		Use:           "meritctl",
		Short:         "Administer the merit engine",
		Long:          `meritctl manages seasons, leagues, streaks and awards on a merit database, and drives load against a running server.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return e.init(cmd.Context(), cmd.ErrOrStderr())
		},
	}
	root.PersistentFlags().StringVar(&e.dbPath, "db", "", "SQLite database path (overrides db_path)")
	root.PersistentFlags().StringVar(&e.rulesPath, "rules", "", "TOML rules catalog (overrides rules_path)")
	root.PersistentFlags().StringVar(&e.logFormat, "log-format", "", "log format: text or json")

	root.AddCommand(
		newSeasonCmd(e),
		newLeaguesCmd(e),
		newAwardCmd(e),
		newShelterCmd(e),
		newStreakCmd(e),
		newRankCmd(e),
		newEligibilityCmd(e),
		newRulesCmd(e),
		newLoadgenCmd(e),
	)
	e.closeAfter(root)
	return root
}

// closeAfter wraps every RunE in the tree so the store is released whether
// the command succeeds or fails.
func (e *env) closeAfter(c *cobra.Command) {
	if run := c.RunE; run != nil {
		c.RunE = func(cmd *cobra.Command, args []string) error {
			err := run(cmd, args)
			return errors.Join(err, e.close())
		}
	}
	for _, sub := range c.Commands() {
		e.closeAfter(sub)
	}
}

// Execute runs meritctl with os.Args.
func Execute(ctx context.Context) error {
	return NewRootCmd().ExecuteContext(ctx)
}

func (e *env) init(ctx context.Context, logOut io.Writer) error {
	cfg, err := config.Load(ctx)
	if err != nil {
		return err
	}
	if e.dbPath != "" {
		cfg.DBPath = e.dbPath
	}
	if e.rulesPath != "" {
		cfg.RulesPath = e.rulesPath
	}
	if e.logFormat != "" {
		cfg.LogFormat = e.logFormat
	}
	if err := logger.Init(logger.WithFormat(cfg.LogFormat), logger.WithOutput(logOut)); err != nil {
		return err
	}
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		_ = logger.SetLevelString("info")
	}
	e.cfg = cfg
	return nil
}

// service opens the store and builds the service on first use.
func (e *env) service(ctx context.Context) (*service.Service, error) {
	if e.svc != nil {
		return e.svc, nil
	}
	store, err := repository.Open(ctx, e.cfg.DBPath,
		repository.WithTimeout(e.cfg.StoreTimeout()),
		repository.WithLogger(logger.Named("store")))
	if err != nil {
		return nil, err
	}
	opts, err := service.OptionsFromConfig(e.cfg)
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	svc, err := service.New(store, append(opts, service.WithLogger(logger.Named("service")))...)
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	e.store, e.svc = store, svc
	return svc, nil
}

func (e *env) close() error {
	if e.store == nil {
		return nil
	}
	err := e.store.Close()
	e.store, e.svc = nil, nil
	return err
}

// printJSON writes v to the command's stdout as indented JSON.
func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	return nil
}
