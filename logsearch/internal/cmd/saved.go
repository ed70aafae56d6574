package cmd

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/telhawk-systems/logsearch/logsearch/internal/output"
	"github.com/telhawk-systems/logsearch/logsearch/internal/repository"
	"github.com/telhawk-systems/logsearch/logsearch/pkg/model"
)

func newSavedCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "saved",
		Short: "Manage saved searches",
	}
	cmd.AddCommand(
		newSavedCreateCmd(a),
		newSavedListCmd(a),
		newSavedGetCmd(a),
		newSavedDeleteCmd(a),
		newSavedRunCmd(a),
		newSavedMigrateCmd(a),
	)
	return cmd
}

func newSavedCreateCmd(a *app) *cobra.Command {
	var name, description, query, queryFile string

	cmd := &cobra.Command{
		Use:     "create",
		Short:   "Save a rule tree under a name",
		Example: `  logsearch saved create --name "slow responses" --query-file slow.yaml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if name == "" {
				return fmt.Errorf("--name is required")
			}
			tree, err := readRuleTree(query, queryFile)
			if err != nil {
				return err
			}
			if tree == nil {
				return fmt.Errorf("provide --query or --query-file with a rule tree")
			}
			raw, err := json.Marshal(tree)
			if err != nil {
				return fmt.Errorf("encode rule tree: %w", err)
			}

			d, err := a.open(cmd.Context(), false, true)
			if err != nil {
				return err
			}
			defer d.close()

			saved := &model.SavedSearch{Name: name, Description: description, Query: raw}
			if err := d.svc.CreateSaved(cmd.Context(), saved); err != nil {
				return err
			}
			return output.Write(cmd.OutOrStdout(), a.output, saved)
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "saved search name")
	cmd.Flags().StringVar(&description, "description", "", "saved search description")
	cmd.Flags().StringVarP(&query, "query", "q", "", "inline rule tree (JSON)")
	cmd.Flags().StringVar(&queryFile, "query-file", "", "YAML or JSON file holding the rule tree")
	return cmd
}

func newSavedListCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List saved searches",
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := a.open(cmd.Context(), false, true)
			if err != nil {
				return err
			}
			defer d.close()

			items, err := d.svc.ListSaved(cmd.Context())
			if err != nil {
				return err
			}
			if a.output != output.FormatTable {
				return output.Write(cmd.OutOrStdout(), a.output, items)
			}
			renderSavedTable(cmd, items)
			return nil
		},
	}
}

func renderSavedTable(cmd *cobra.Command, items []model.SavedSearch) {
	tbl := output.NewTable([]string{"ID", "Name", "Description", "Created"})
	for _, s := range items {
		tbl.AddRow([]string{s.ID, s.Name, s.Description, s.CreatedAt.Format(time.RFC3339)})
	}
	tbl.Render(cmd.OutOrStdout())
}

func newSavedGetCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Show a saved search",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := a.open(cmd.Context(), false, true)
			if err != nil {
				return err
			}
			defer d.close()

			s, err := d.svc.GetSaved(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return output.Write(cmd.OutOrStdout(), a.output, s)
		},
	}
}

func newSavedDeleteCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a saved search",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := a.open(cmd.Context(), false, true)
			if err != nil {
				return err
			}
			defer d.close()

			if err := d.svc.DeleteSaved(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Saved search deleted: %s\n", args[0])
			return nil
		},
	}
}

func newSavedRunCmd(a *app) *cobra.Command {
	var flags requestFlags

	cmd := &cobra.Command{
		Use:     "run <id>",
		Short:   "Run a saved search over a window",
		Args:    cobra.ExactArgs(1),
		Example: `  logsearch saved run 0b6f7c2e-5f0e-4c59-9d3b-5a4f3d8d9e21 --start 2024-01-01 --end 2024-01-31 --agg interval`,
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := flags.build(cmd)
			if err != nil {
				return err
			}

			d, err := a.open(cmd.Context(), true, true)
			if err != nil {
				return err
			}
			defer d.close()

			resp, err := d.svc.ExecuteSaved(cmd.Context(), args[0], req)
			if err != nil {
				return err
			}
			return output.Write(cmd.OutOrStdout(), a.output, resp)
		},
	}
	flags.register(cmd)
	return cmd
}

func newSavedMigrateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the saved search schema migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			if a.cfg.DatabaseURL == "" {
				return fmt.Errorf("database_url is not configured")
			}
			a.logger.InfoContext(cmd.Context(), "Running database migrations")
			if err := repository.Migrate(a.cfg.DatabaseURL); err != nil {
				return err
			}
			a.logger.InfoContext(cmd.Context(), "Database migrations completed")
			return nil
		},
	}
}
