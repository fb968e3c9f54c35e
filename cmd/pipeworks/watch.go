package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
)

// DefaultDebounce is how long the script must be quiet before a rebuild.
const DefaultDebounce = 200 * time.Millisecond

func newWatchCmd(f *rootFlags) *cobra.Command {
	var (
		out         string
		noFlanges   bool
		metricsAddr string
		debounce    time.Duration
	)
	cmd := &cobra.Command{
		Use:   "watch SCRIPT",
		Short: "Re-export a script every time it changes",
		Long: `Exports SCRIPT once, then again whenever the file is saved. Evaluation
errors are logged and the previous STL is left in place.

With --metrics-addr, Prometheus metrics are served on /metrics.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := newPipeline(f, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			script := args[0]
			if out == "" {
				out = stlName(script)
			}
			if metricsAddr == "" {
				metricsAddr = p.cfg.Metrics.Addr
			}

			ctx := cmd.Context()
			if metricsAddr != "" {
				srv := serveMetrics(metricsAddr, p.logger)
				defer func() {
					sctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
					defer cancel()
					_ = srv.Shutdown(sctx)
				}()
			}

			return watch(ctx, script, debounce, p.logger, func() {
				if err := p.export(ctx, script, out, noFlanges); err != nil {
					p.logger.Error("export failed", "script", script, "error", err)
				}
			})
		},
	}
	cmd.Flags().StringVarP(&out, "output", "o", "", "STL file to write (default: SCRIPT with .stl extension)")
	cmd.Flags().BoolVar(&noFlanges, "no-flanges", false, "leave flange rings out")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address (default from config)")
	cmd.Flags().DurationVar(&debounce, "debounce", DefaultDebounce, "quiet period before rebuilding")
	return cmd
}

// watch calls rebuild once, then again after each burst of changes to
// script, until ctx is done. The script's directory is watched rather than
// the file so editors that save by rename are followed.
func watch(ctx context.Context, script string, debounce time.Duration, logger *slog.Logger, rebuild func()) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	if err := w.Add(filepath.Dir(script)); err != nil {
		return err
	}
	name := filepath.Base(script)

	rebuild()

	var (
		timer *time.Timer
		fire  <-chan time.Time
	)
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Base(ev.Name) != name || !ev.Has(fsnotify.Write|fsnotify.Create|fsnotify.Rename) {
				continue
			}
			logger.Debug("script changed", "path", ev.Name, "op", ev.Op.String())
			if timer == nil {
				timer = time.NewTimer(debounce)
			} else {
				timer.Reset(debounce)
			}
			fire = timer.C
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Warn("watch error", "error", err)
		case <-fire:
			fire = nil
			rebuild()
		}
	}
}

// serveMetrics exposes the default Prometheus registry on addr.
func serveMetrics(addr string, logger *slog.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		logger.Info("serving metrics", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server", "error", err)
		}
	}()
	return srv
}
