package main

import (
	"context"
	"errors"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"rowfilter/config"
	"rowfilter/engine"
	"rowfilter/source"
	"rowfilter/updater"
)

func newWatchCmd(opts *globalOptions) *cobra.Command {
	q := &queryOptions{}

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Like query, but reprint the result whenever remote tables or the config reload",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if q.preset == "" {
				return errors.New("--preset is required")
			}

			ctx := cmd.Context()
			mgr, eng, loader, err := loadEngine(ctx, opts)
			if err != nil {
				return err
			}

			w := &watcher{mgr: mgr, eng: eng, loader: loader, query: q, out: cmd.OutOrStdout()}
			w.show(ctx)
			w.start(ctx)
			defer w.stop()

			// Wait for shutdown, reload the config on SIGHUP
			sigChan := make(chan os.Signal, 1)
			signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
			defer signal.Stop(sigChan)

			for s := range sigChan {
				if s != syscall.SIGHUP {
					log.Printf("Received signal %v, shutting down...", s)
					return nil
				}
				log.Printf("Reloading configuration from %s", opts.configPath)
				if err := w.reload(ctx); err != nil {
					log.Errorf("Failed to reload config: %v", err)
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&q.preset, "preset", "", "Name of a preset from the config file")
	return cmd
}

// watcher reprints a query result and keeps the updater in line with the
// current config.
type watcher struct {
	mgr    *config.Manager
	eng    *engine.Engine
	loader *source.Loader
	query  *queryOptions
	out    io.Writer

	// Serializes writes to out, show runs from the updater and the signal loop.
	outMu sync.Mutex

	upd *updater.Updater
	// remote is what the last RunSimple returned.
	remote bool
}

func (w *watcher) show(ctx context.Context) {
	res, err := w.query.run(ctx, w.eng)
	if err != nil {
		log.Errorf("Query failed: %v", err)
		return
	}

	w.outMu.Lock()
	defer w.outMu.Unlock()
	if err := writeResult(w.out, res); err != nil {
		log.Errorf("Failed to write result: %v", err)
	}
}

// start runs a new updater built from the current config.
func (w *watcher) start(ctx context.Context) {
	cfg := w.mgr.Get()
	setCacheAge(w.loader, cfg)

	w.upd = updater.NewUpdater(cfg, w.eng, w.loader)
	w.upd.OnReload = func(error) { w.show(ctx) }
	w.remote = w.upd.RunSimple()
}

func (w *watcher) stop() {
	if w.upd != nil {
		w.upd.Stop()
	}
}

// reload rereads the config file, then reloads the tables and restarts the
// updater so a changed url_interval or table list takes effect. A config that
// fails to load leaves everything running as before.
func (w *watcher) reload(ctx context.Context) error {
	if err := w.mgr.Load(); err != nil {
		return err
	}

	w.stop()
	setCacheAge(w.loader, w.mgr.Get())
	if err := w.eng.ReloadTables(ctx, w.loader); err != nil {
		log.Warnf("Some tables failed to reload: %v", err)
	}
	w.start(ctx)
	w.show(ctx)
	return nil
}
