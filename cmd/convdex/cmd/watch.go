package cmd

import (
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/convsearch/convdex/internal/watcher"
)

func newWatchCmd() *cobra.Command {
	var (
		debounce time.Duration
		timeout  time.Duration
	)

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Rebuild indexes when raw corpora change",
		Long: `Watch every registered dataset's raw corpus path. When a corpus
changes, its index is invalidated and rebuilt after a debounce window.
Runs until interrupted.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApp()
			if err != nil {
				return err
			}
			defer app.Close()

			if debounce <= 0 {
				debounce = app.cfg.Watch.Debounce
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			w, err := watcher.New(watcher.Config{
				Registry: app.registry,
				Storage:  app.storage,
				Debounce: debounce,
				OnChange: func(dataset string) {
					slog.Info("corpus changed, rebuilding", slog.String("dataset", dataset))
					// A failed invalidation (e.g. build already in
					// flight) is not fatal; ensure still joins it.
					if err := app.manager.Invalidate(dataset); err != nil {
						slog.Debug("invalidate skipped", slog.String("dataset", dataset),
							slog.String("reason", err.Error()))
					}
					if _, err := ensureOne(ctx, app, dataset, timeout); err != nil {
						slog.Error("rebuild failed", slog.String("dataset", dataset),
							slog.String("error", err.Error()))
					}
				},
			})
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), "watching for corpus changes (ctrl-c to stop)")
			w.Start(ctx)
			<-ctx.Done()
			w.Wait()
			return nil
		},
	}

	cmd.Flags().DurationVar(&debounce, "debounce", 0, "Quiet period before a rebuild (default from config)")
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "Per-build timeout (0 means no timeout)")
	return cmd
}
