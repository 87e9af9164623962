package cmd

import (
	"github.com/spf13/cobra"

	"github.com/convsearch/convdex/internal/lifecycle"
	"github.com/convsearch/convdex/internal/ui"
)

func newStatusCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "status [dataset...]",
		Short: "Show index state per dataset",
		Long: `Display the lifecycle state of each dataset's index: missing,
building, ready, stale, or failed. Ready state is recovered from the
on-disk manifest, so status is accurate across restarts.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApp()
			if err != nil {
				return err
			}
			defer app.Close()

			var handles []lifecycle.Handle
			if len(args) == 0 {
				handles = app.manager.Handles()
			} else {
				for _, name := range args {
					h, err := app.manager.Status(name)
					if err != nil {
						return err
					}
					handles = append(handles, h)
				}
			}

			rows := make([]ui.DatasetStatus, 0, len(handles))
			for _, h := range handles {
				row := ui.DatasetStatus{
					Dataset:    h.Dataset,
					Status:     string(h.Status),
					DocCount:   h.DocCount,
					BuiltAt:    h.BuiltAt,
					IndexPath:  h.Path,
					ParamsHash: h.ParamsHash,
				}
				if d, err := app.registry.Get(h.Dataset); err == nil {
					row.Family = string(d.Family)
				}
				if h.Err != nil {
					row.Error = h.Err.Error()
				}
				rows = append(rows, row)
			}

			renderer := ui.NewStatusRenderer(cmd.OutOrStdout(), !ui.UseColor(cmd.OutOrStdout()))
			if jsonOutput {
				return renderer.RenderJSON(rows)
			}
			return renderer.Render(rows)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}
