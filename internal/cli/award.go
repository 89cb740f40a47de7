package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	service "github.com/okian/merit/internal/app"
	"github.com/okian/merit/internal/domain/model"
	"github.com/okian/merit/internal/domain/types"
)

func newAwardCmd(e *env) *cobra.Command {
	var (
		req    types.AwardRequest
		points int64
		meta   map[string]string
	)
	cmd := &cobra.Command{
		Use:   "award",
		Short: "Apply one award synchronously",
		Long: `Award runs the full pipeline for one business event: idempotency on the
source key, point resolution, caps, the streak multiplier and the ledger
write. Skips (duplicate, cap, no_points) are printed, not returned as errors.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Flags().Changed("points") {
				req.BasePoints = &points
			}
			req.Metadata = meta
			svc, err := e.service(cmd.Context())
			if err != nil {
				return err
			}
			res, err := svc.Award(cmd.Context(), req.Input())
			if err != nil {
				return err
			}
			return printJSON(cmd, types.NewAwardResponse(res))
		},
	}
	cmd.Flags().StringVar(&req.UserID, "user", "", "user id")
	cmd.Flags().StringVar(&req.Role, "role", "", "broker, operator, pilot, crew or shared")
	cmd.Flags().StringVar(&req.EventType, "event", "", "event type, e.g. quote_submitted_fast")
	cmd.Flags().StringVar(&req.SourceKey, "key", "", "idempotency key, e.g. quote:91|rule:quote_submitted_fast")
	cmd.Flags().Int64Var(&points, "points", 0, "override the catalog base points")
	cmd.Flags().StringToStringVar(&meta, "meta", nil, "metadata key=value pairs")
	for _, f := range []string{"user", "role", "event", "key"} {
		_ = cmd.MarkFlagRequired(f)
	}

	cmd.AddCommand(newMissionCmd(e))
	return cmd
}

func newMissionCmd(e *env) *cobra.Command {
	var (
		m      service.Mission
		role   string
		points int64
	)
	cmd := &cobra.Command{
		Use:   "mission",
		Short: "Complete a mission once per period",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			m.Role = model.Role(role)
			if cmd.Flags().Changed("points") {
				m.BasePoints = &points
			}
			svc, err := e.service(cmd.Context())
			if err != nil {
				return err
			}
			res, err := svc.CompleteMission(cmd.Context(), m)
			if err != nil {
				return err
			}
			return printJSON(cmd, types.NewAwardResponse(res))
		},
	}
	cmd.Flags().StringVar(&m.UserID, "user", "", "user id")
	cmd.Flags().StringVar(&role, "role", "", "role the mission is credited to")
	cmd.Flags().StringVar(&m.Code, "code", "", "mission code")
	cmd.Flags().StringVar(&m.Period, "period", "", "period key, e.g. 2026-W42")
	cmd.Flags().Int64Var(&points, "points", 0, "override the catalog base points")
	cmd.Flags().BoolVar(&m.GrantsShelter, "shelter", false, "grant one streak shelter when applied")
	for _, f := range []string{"user", "role", "code", "period"} {
		_ = cmd.MarkFlagRequired(f)
	}
	return cmd
}

func newShelterCmd(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "shelter",
		Short: "Streak shelters",
	}
	var count int
	grant := &cobra.Command{
		Use:   "grant USER_ID",
		Short: "Grant streak shelters to a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if count < 1 {
				return fmt.Errorf("count must be positive, got %d", count)
			}
			svc, err := e.service(cmd.Context())
			if err != nil {
				return err
			}
			st, err := svc.GrantShelter(cmd.Context(), args[0], count)
			if err != nil {
				return err
			}
			return printJSON(cmd, types.NewStreak(st))
		},
	}
	grant.Flags().IntVarP(&count, "count", "n", 1, "number of shelters")
	cmd.AddCommand(grant)
	return cmd
}
