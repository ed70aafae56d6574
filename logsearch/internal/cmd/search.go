package cmd

import (
	"github.com/spf13/cobra"

	"github.com/telhawk-systems/logsearch/logsearch/internal/output"
)

func newSearchCmd(a *app) *cobra.Command {
	var flags requestFlags

	cmd := &cobra.Command{
		Use:   "search",
		Short: "Run a search against the log backend",
		Example: `  logsearch search --start 2024-01-01 --end 2024-01-31 --api-key KEY --limit 20
  logsearch search --start 2024-01-01 --end 2024-01-07 --query-file slow.yaml --agg users:10`,
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := flags.build(cmd)
			if err != nil {
				return err
			}

			d, err := a.open(cmd.Context(), true, false)
			if err != nil {
				return err
			}
			defer d.close()

			resp, err := d.svc.ExecuteSearch(cmd.Context(), req)
			if err != nil {
				return err
			}
			return output.Write(cmd.OutOrStdout(), a.output, resp)
		},
	}
	flags.register(cmd)
	return cmd
}
