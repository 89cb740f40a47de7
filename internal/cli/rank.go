package cli

import (
	"github.com/spf13/cobra"

	service "github.com/okian/merit/internal/app"
	"github.com/okian/merit/internal/domain/model"
)

func newRankCmd(e *env) *cobra.Command {
	var (
		role, league string
		limit        int
	)
	cmd := &cobra.Command{
		Use:   "rank SEASON_ID",
		Short: "Print a season leaderboard with disclosed bias",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			q := service.RankQuery{Limit: limit}
			if role != "" {
				r, err := model.ParseRole(role)
				if err != nil {
					return err
				}
				q.Role = &r
			}
			if league != "" {
				l, err := model.ParseLeague(league)
				if err != nil {
					return err
				}
				q.League = &l
			}
			svc, err := e.service(cmd.Context())
			if err != nil {
				return err
			}
			board, err := svc.Rank(cmd.Context(), args[0], q)
			if err != nil {
				return err
			}
			return printJSON(cmd, board)
		},
	}
	cmd.Flags().StringVar(&role, "role", "", "filter by role")
	cmd.Flags().StringVar(&league, "league", "", "filter by league")
	cmd.Flags().IntVar(&limit, "limit", 0, "maximum rows, 0 for the configured maximum")
	return cmd
}

func newEligibilityCmd(e *env) *cobra.Command {
	var (
		eligible bool
		reason   string
	)
	cmd := &cobra.Command{
		Use:   "eligibility USER_ID",
		Short: "Include or exclude a user from leaderboards",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := e.service(cmd.Context())
			if err != nil {
				return err
			}
			if err := svc.SetEligibility(cmd.Context(), args[0], eligible, reason); err != nil {
				return err
			}
			return printJSON(cmd, map[string]any{"user_id": args[0], "eligible": eligible})
		},
	}
	cmd.Flags().BoolVar(&eligible, "eligible", true, "whether the user may appear on leaderboards")
	cmd.Flags().StringVar(&reason, "reason", "", "audit note")
	return cmd
}
