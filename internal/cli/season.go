package cli

import (
	"github.com/spf13/cobra"

	"github.com/okian/merit/internal/domain/types"
)

func newSeasonCmd(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "season",
		Short: "Create and move seasons through their lifecycle",
	}
	cmd.AddCommand(
		newSeasonCreateCmd(e),
		&cobra.Command{
			Use:   "list",
			Short: "List all seasons",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				svc, err := e.service(cmd.Context())
				if err != nil {
					return err
				}
				seasons, err := svc.Seasons(cmd.Context())
				if err != nil {
					return err
				}
				out := make([]types.Season, len(seasons))
				for i, s := range seasons {
					out[i] = types.NewSeason(s)
				}
				return printJSON(cmd, out)
			},
		},
		&cobra.Command{
			Use:   "activate SEASON_ID",
			Short: "Activate an upcoming season",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				svc, err := e.service(cmd.Context())
				if err != nil {
					return err
				}
				s, err := svc.ActivateSeason(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return printJSON(cmd, types.NewSeason(s))
			},
		},
		&cobra.Command{
			Use:   "close SEASON_ID",
			Short: "Close the active season",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				svc, err := e.service(cmd.Context())
				if err != nil {
					return err
				}
				s, err := svc.CloseSeason(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return printJSON(cmd, types.NewSeason(s))
			},
		},
		&cobra.Command{
			Use:   "rollover NEXT_SEASON_ID",
			Short: "Close the active season, assign leagues and activate the next one",
			Long: `Rollover closes the active season, runs league assignment into NEXT_SEASON_ID
and activates it, all in one transaction. Running it again after success
returns the same report without changing anything.`,
			Args: cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				svc, err := e.service(cmd.Context())
				if err != nil {
					return err
				}
				report, err := svc.Rollover(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return printJSON(cmd, report)
			},
		},
	)
	return cmd
}

func newSeasonCreateCmd(e *env) *cobra.Command {
	var req types.SeasonRequest
	cmd := &cobra.Command{
		Use:   "create SEASON_ID",
		Short: "Create an upcoming season",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req.ID = args[0]
			season, err := req.Season()
			if err != nil {
				return err
			}
			svc, err := e.service(cmd.Context())
			if err != nil {
				return err
			}
			created, err := svc.CreateSeason(cmd.Context(), season)
			if err != nil {
				return err
			}
			return printJSON(cmd, types.NewSeason(created))
		},
	}
	cmd.Flags().StringVar(&req.StartDate, "start", "", "first day, YYYY-MM-DD")
	cmd.Flags().StringVar(&req.EndDate, "end", "", "last day, YYYY-MM-DD")
	cmd.Flags().BoolVar(&req.ResetPoints, "reset-points", false, "start the next season from zero points")
	cmd.Flags().BoolVar(&req.MaintainLeagues, "maintain-leagues", false, "carry assigned leagues into the next season")
	_ = cmd.MarkFlagRequired("start")
	_ = cmd.MarkFlagRequired("end")
	return cmd
}
