package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jonwraymond/reqops/health"
)

func newHealthCommand(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check the cache backend and the upstream base URL",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, cleanup, err := openClient(cmd.Context(), root)
			if err != nil {
				return err
			}
			defer cleanup()

			report := c.Health(cmd.Context())
			if err := printJSON(cmd.OutOrStdout(), report); err != nil {
				return err
			}
			if report.Status == health.StatusUnhealthy.String() {
				return fmt.Errorf("status %s", report.Status)
			}
			return nil
		},
	}
}
