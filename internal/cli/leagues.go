package cli

import (
	"github.com/spf13/cobra"
)

func newLeaguesCmd(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "leagues",
		Short: "League assignment between seasons",
	}
	var from, to string
	assign := &cobra.Command{
		Use:   "assign",
		Short: "Assign next-season leagues from a season's final standings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, err := e.service(cmd.Context())
			if err != nil {
				return err
			}
			report, err := svc.AssignLeagues(cmd.Context(), from, to)
			if err != nil {
				return err
			}
			return printJSON(cmd, report)
		},
	}
	assign.Flags().StringVar(&from, "from", "", "season whose standings are used")
	assign.Flags().StringVar(&to, "to", "", "season receiving the memberships")
	_ = assign.MarkFlagRequired("from")
	_ = assign.MarkFlagRequired("to")
	cmd.AddCommand(assign)
	return cmd
}
