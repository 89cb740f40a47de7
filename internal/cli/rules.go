package cli

import (
	"github.com/spf13/cobra"

	"github.com/okian/merit/internal/config"
)

func newRulesCmd(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rules",
		Short: "Inspect the rules catalog",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Validate and print the effective rules catalog as TOML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rules, err := config.LoadRules(e.cfg.RulesPath)
			if err != nil {
				return err
			}
			if _, err := rules.Compile(); err != nil {
				return err
			}
			return config.EncodeRules(cmd.OutOrStdout(), rules)
		},
	})
	return cmd
}
