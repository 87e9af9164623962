package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/convsearch/convdex/internal/adapter"
	"github.com/convsearch/convdex/internal/ui"
)

func newValidateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate [dataset...]",
		Short: "Check dataset schemas without building",
		Long: `Validate each dataset's declared schema against its adapter
family: the schema must name exactly one id field and at least one
text field, and the raw corpus path must exist. No index is built.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApp()
			if err != nil {
				return err
			}
			defer app.Close()

			names := args
			if len(names) == 0 {
				for _, d := range app.registry.List() {
					names = append(names, d.Name)
				}
			}

			styles := ui.GetStyles(!ui.UseColor(cmd.OutOrStdout()))
			var failed int
			for _, name := range names {
				desc, err := app.registry.Get(name)
				if err != nil {
					return err
				}
				// Validate against the resolved on-disk path, not the
				// possibly-relative configured one.
				if desc.RawPath, err = app.storage.ResolveDatasetPath(desc); err != nil {
					fmt.Fprintf(cmd.OutOrStdout(), "%s %s: %v\n", styles.Error("fail:"), name, err)
					failed++
					continue
				}

				a, err := adapter.For(desc)
				if err == nil {
					err = a.ValidateSchema(desc)
				}
				if err != nil {
					fmt.Fprintf(cmd.OutOrStdout(), "%s %s: %v\n", styles.Error("fail:"), name, err)
					failed++
					continue
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", styles.Success("ok:"), name)
			}

			if failed > 0 {
				return fmt.Errorf("%d dataset(s) failed validation", failed)
			}
			return nil
		},
	}
	return cmd
}
