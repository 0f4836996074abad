package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/randalmurphal/chopchop/internal/model"
)

// newPlansCmd creates the plans command with subcommands.
func newPlansCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plans",
		Short: "Manage saved execution plans",
		Long: `Manage execution plans saved from the wizard.

Examples:
  chopchop plans list
  chopchop plans show PLAN-1a2b3c4d
  chopchop plans export PLAN-1a2b3c4d --json
  chopchop plans delete PLAN-1a2b3c4d`,
	}

	cmd.AddCommand(newPlansListCmd())
	cmd.AddCommand(newPlansShowCmd())
	cmd.AddCommand(newPlansExportCmd())
	cmd.AddCommand(newPlansDeleteCmd())

	return cmd
}

func newPlansListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List saved plans",
		RunE: func(cmd *cobra.Command, args []string) error {
			lib, err := openPlans()
			if err != nil {
				return err
			}
			defer lib.Close()

			metas, err := lib.ListPlans()
			if err != nil {
				return err
			}
			if len(metas) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No saved plans.")
				return nil
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tTITLE\tUPDATED")
			for _, m := range metas {
				fmt.Fprintf(w, "%s\t%s\t%s\n", m.ID, m.Title, m.UpdatedAt.Format("2006-01-02 15:04"))
			}
			return w.Flush()
		},
	}
}

func newPlansShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show a saved plan's markdown",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			lib, err := openPlans()
			if err != nil {
				return err
			}
			defer lib.Close()

			plan, err := lib.LoadPlan(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), plan.Content)
			return nil
		},
	}
}

func newPlansExportCmd() *cobra.Command {
	var asJSON bool
	var outPath string

	cmd := &cobra.Command{
		Use:   "export <id>",
		Short: "Export a saved plan",
		Long: `Export a saved plan as markdown (default) or JSON.

The JSON form carries the full plan record including the structured
steps and subtasks; the markdown form is the plan content followed by
a summary of the subtask breakdown.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			lib, err := openPlans()
			if err != nil {
				return err
			}
			defer lib.Close()

			plan, err := lib.LoadPlan(args[0])
			if err != nil {
				return err
			}

			var data []byte
			if asJSON {
				data, err = json.MarshalIndent(plan, "", "  ")
				if err != nil {
					return err
				}
			} else {
				data = []byte(planMarkdown(plan))
			}

			if outPath != "" {
				return os.WriteFile(outPath, data, 0o644)
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(data))
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "export as JSON")
	cmd.Flags().StringVarP(&outPath, "output", "o", "", "write to file instead of stdout")
	return cmd
}

// planMarkdown renders a plan for export: the content plus a summary of
// the subtask breakdown. Plans saved before a breakdown existed fall back
// to the subtasks attached to individual steps.
func planMarkdown(plan *model.ExecutionPlan) string {
	var b strings.Builder
	b.WriteString(strings.TrimRight(plan.Content, "\n"))
	b.WriteString("\n")

	subtasks := plan.Subtasks
	if len(subtasks) == 0 {
		for _, step := range plan.Steps {
			subtasks = append(subtasks, step.Subtasks...)
		}
	}
	if len(subtasks) == 0 {
		return b.String()
	}

	b.WriteString("\n## Subtasks\n\n")
	for _, st := range subtasks {
		fmt.Fprintf(&b, "%d. %s", st.Order, st.Title)
		if st.EstimatedHours > 0 {
			fmt.Fprintf(&b, " (%dh)", st.EstimatedHours)
		}
		b.WriteString("\n")
		for _, c := range st.AcceptanceCriteria {
			fmt.Fprintf(&b, "   - %s\n", c)
		}
	}
	return b.String()
}

func newPlansDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a saved plan",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			lib, err := openPlans()
			if err != nil {
				return err
			}
			defer lib.Close()

			if err := lib.DeletePlan(args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s.\n", args[0])
			return nil
		},
	}
}
