package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/convsearch/convdex/internal/builder"
	"github.com/convsearch/convdex/internal/lifecycle"
	"github.com/convsearch/convdex/internal/ui"
)

func newEnsureCmd() *cobra.Command {
	var (
		all     bool
		force   bool
		timeout time.Duration
	)

	cmd := &cobra.Command{
		Use:   "ensure [dataset...]",
		Short: "Build indexes that are missing or out of date",
		Long: `Bring the named datasets' indexes to the ready state, building
them if missing, stale, or failed. An index that is already ready with
unchanged build settings is left untouched unless --force is given.

With --all, every registered dataset is ensured; independent datasets
build in parallel up to max_concurrent_builds.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !all && len(args) == 0 {
				return fmt.Errorf("name at least one dataset or pass --all")
			}
			if all && len(args) > 0 {
				return fmt.Errorf("--all and explicit dataset names are mutually exclusive")
			}

			app, err := newApp()
			if err != nil {
				return err
			}
			defer app.Close()

			names := args
			if all {
				for _, d := range app.registry.List() {
					names = append(names, d.Name)
				}
				if len(names) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "no datasets registered")
					return nil
				}
			}

			return runEnsure(cmd, app, names, force, timeout)
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "Ensure every registered dataset")
	cmd.Flags().BoolVar(&force, "force", false, "Rebuild even if the index is current")
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "Per-build timeout (0 means no timeout)")
	return cmd
}

func runEnsure(cmd *cobra.Command, app *app, names []string, force bool, timeout time.Duration) error {
	styles := ui.GetStyles(!ui.UseColor(cmd.OutOrStdout()))

	g, ctx := errgroup.WithContext(cmd.Context())
	handles := make([]lifecycle.Handle, len(names))

	for i, name := range names {
		g.Go(func() error {
			opts := lifecycle.Options{Timeout: timeout, Force: force}
			if p := datasetParams(app, name); p != nil {
				opts.Params = p
			}
			h, err := app.manager.EnsureIndex(ctx, name, opts)
			if err != nil {
				return err
			}
			handles[i] = h
			return nil
		})
	}

	err := g.Wait()
	for _, h := range handles {
		if h.Dataset == "" {
			continue
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s %s (%d docs) %s\n",
			styles.Success("ready:"), h.Dataset, h.DocCount, styles.Dim(h.Path))
	}
	return err
}

// datasetParams returns the dataset's per-config override, or nil when
// the manager's defaults apply.
func datasetParams(app *app, name string) *builder.Params {
	defaults := app.cfg.Params()
	p := app.cfg.DatasetParams(name)
	if p == defaults {
		return nil
	}
	return &p
}

// ensureOne is shared by watch mode.
func ensureOne(ctx context.Context, app *app, name string, timeout time.Duration) (lifecycle.Handle, error) {
	opts := lifecycle.Options{Timeout: timeout}
	if p := datasetParams(app, name); p != nil {
		opts.Params = p
	}
	return app.manager.EnsureIndex(ctx, name, opts)
}
