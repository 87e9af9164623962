package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/convsearch/convdex/internal/ui"
)

func newInvalidateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "invalidate <dataset>...",
		Short: "Discard a dataset's index so the next ensure rebuilds it",
		Long: `Remove the named datasets' published indexes and mark them stale.
A dataset with a build in flight cannot be invalidated; cancel or wait
for the build first.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApp()
			if err != nil {
				return err
			}
			defer app.Close()

			styles := ui.GetStyles(!ui.UseColor(cmd.OutOrStdout()))
			for _, name := range args {
				if err := app.manager.Invalidate(name); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", styles.Warning("invalidated:"), name)
			}
			return nil
		},
	}
	return cmd
}
