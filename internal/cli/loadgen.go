package cli

import (
	"github.com/spf13/cobra"

	"github.com/okian/merit/internal/loadgen"
	"github.com/okian/merit/pkg/logger"
)

func newLoadgenCmd(_ *env) *cobra.Command {
	cfg := loadgen.DefaultConfig()
	cmd := &cobra.Command{
		Use:   "loadgen",
		Short: "Post award traffic to a running server and verify season totals",
		Long: `loadgen posts awards for synthetic users, replaying a share of source keys
to exercise idempotency, then checks that every user's season points equal
the sum of the points the server reported as applied.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			st, err := loadgen.Run(cmd.Context(), cfg, logger.Named("loadgen"))
			if perr := printJSON(cmd, st); perr != nil && err == nil {
				err = perr
			}
			return err
		},
	}
	f := cmd.Flags()
	f.StringVar(&cfg.BaseURL, "url", cfg.BaseURL, "base URL of the server")
	f.IntVar(&cfg.Users, "users", cfg.Users, "distinct users")
	f.IntVar(&cfg.Awards, "awards", cfg.Awards, "award requests to send, replays included")
	f.Float64Var(&cfg.DuplicatePct, "duplicates", cfg.DuplicatePct, "share of requests replaying an earlier source key")
	f.IntVar(&cfg.Workers, "workers", cfg.Workers, "concurrent submitters")
	f.DurationVar(&cfg.Timeout, "timeout", cfg.Timeout, "HTTP request timeout")
	f.Uint64Var(&cfg.Retries, "retries", cfg.Retries, "retries of transient 503 responses")
	f.StringVar(&cfg.OutputFile, "output", "", "write generated requests to this JSON file")
	f.BoolVarP(&cfg.Verbose, "verbose", "v", false, "log progress and failures")
	return cmd
}
