package cli

import (
	"github.com/spf13/cobra"

	"github.com/okian/merit/internal/domain/types"
)

func newStreakCmd(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "streak",
		Short: "Inspect and roll activity streaks",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "show USER_ID",
			Short: "Show a user's streak",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				svc, err := e.service(cmd.Context())
				if err != nil {
					return err
				}
				st, err := svc.GetUserStreak(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return printJSON(cmd, types.NewStreak(st))
			},
		},
		&cobra.Command{
			Use:   "rollover",
			Short: "Reset streaks of users who missed a day without a shelter",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				svc, err := e.service(cmd.Context())
				if err != nil {
					return err
				}
				n, err := svc.RollStreaks(cmd.Context())
				if err != nil {
					return err
				}
				return printJSON(cmd, map[string]int{"reset": n})
			},
		},
	)
	return cmd
}
