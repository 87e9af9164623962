package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/convsearch/convdex/internal/registry"
	"github.com/convsearch/convdex/internal/ui"
)

func newDatasetsCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "datasets",
		Short: "List registered datasets",
		Long:  "List every dataset declared in the configuration, in declaration order.",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApp()
			if err != nil {
				return err
			}
			defer app.Close()

			descs := app.registry.List()
			if jsonOutput {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(descriptorRows(descs))
			}

			styles := ui.GetStyles(!ui.UseColor(cmd.OutOrStdout()))
			if len(descs) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no datasets registered")
				return nil
			}
			for _, d := range descs {
				fmt.Fprintf(cmd.OutOrStdout(), "%s  %s\n",
					styles.Header(d.Name), styles.Dim("("+string(d.Family)+", "+d.AdapterKind+")"))
				fmt.Fprintf(cmd.OutOrStdout(), "  raw:    %s\n", d.RawPath)
				fmt.Fprintf(cmd.OutOrStdout(), "  index:  %s\n", d.IndexPath)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

type datasetRow struct {
	Name      string `json:"name"`
	Family    string `json:"family"`
	Adapter   string `json:"adapter"`
	RawPath   string `json:"raw_path"`
	IndexPath string `json:"index_path"`
}

func descriptorRows(descs []registry.Descriptor) []datasetRow {
	rows := make([]datasetRow, 0, len(descs))
	for _, d := range descs {
		rows = append(rows, datasetRow{
			Name:      d.Name,
			Family:    string(d.Family),
			Adapter:   d.AdapterKind,
			RawPath:   d.RawPath,
			IndexPath: d.IndexPath,
		})
	}
	return rows
}
