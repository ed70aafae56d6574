package cmd

import (
	"github.com/spf13/cobra"

	"github.com/telhawk-systems/logsearch/logsearch/internal/output"
	"github.com/telhawk-systems/logsearch/logsearch/pkg/model"
)

// planOutput is what plan prints: the target partitions and the payload.
type planOutput struct {
	Indexes      []string    `json:"indexes"`
	Country      string      `json:"country,omitempty"`
	State        string      `json:"state,omitempty"`
	Aggregations []string    `json:"aggregations"`
	Payload      interface{} `json:"payload"`
}

func newPlanCmd(a *app) *cobra.Command {
	var flags requestFlags

	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Print the backend query a search would run",
		Example: `  logsearch plan --start 2024-01-01 --end 2024-01-31 --agg interval --agg region --region US
  logsearch plan -r request.yaml -o yaml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := flags.build(cmd)
			if err != nil {
				return err
			}
			return a.runPlan(cmd, req)
		},
	}
	flags.register(cmd)
	return cmd
}

func (a *app) runPlan(cmd *cobra.Command, req *model.SearchRequest) error {
	svc, err := a.planner()
	if err != nil {
		return err
	}
	ls, err := svc.Plan(cmd.Context(), req)
	if err != nil {
		return err
	}

	return output.Write(cmd.OutOrStdout(), a.output, planOutput{
		Indexes:      ls.Indexes(),
		Country:      ls.Country(),
		State:        ls.State(),
		Aggregations: ls.AggregationNames(),
		Payload:      ls.Payload(),
	})
}
