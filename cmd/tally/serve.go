package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/tallyhq/tally/pkg/connectivity"
	"github.com/tallyhq/tally/pkg/engine"
	"github.com/tallyhq/tally/pkg/events"
	"github.com/tallyhq/tally/pkg/metrics"
	"github.com/tallyhq/tally/pkg/remote"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the sync engine",
	Long: `Run the sync engine: probe the remote store periodically, replay
queued mutations when connectivity returns, and expose metrics.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		store := remote.NewHTTPStore(cfg.Remote.URL, cfg.Remote.Timeout.Std())

		// Seed connectivity from a single startup probe.
		probeCtx, cancelProbe := context.WithTimeout(context.Background(), cfg.Remote.Timeout.Std())
		reachable := store.Check(probeCtx) == nil
		cancelProbe()

		eng, err := engine.New(cfg, store, reachable)
		if err != nil {
			return fmt.Errorf("failed to start engine: %v", err)
		}
		defer eng.Stop()

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		prober := connectivity.NewProber(store.Check, cfg.Sync.ProbeInterval.Std())
		go prober.Run(ctx)
		eng.Start(ctx, prober)

		// Surface permanently failed operations to the operator; everything
		// else is already in the structured log.
		sub := eng.Events().Subscribe()
		go func() {
			for {
				select {
				case ev := <-sub:
					if ev.Type == events.EventOpDead {
						fmt.Fprintf(os.Stderr, "operation %s permanently failed: %s\n", ev.ID, ev.Metadata["error"])
					}
				case <-ctx.Done():
					return
				}
			}
		}()

		if cfg.Metrics.Listen != "" {
			mux := http.NewServeMux()
			mux.Handle("/metrics", metrics.Handler())
			go func() {
				if err := http.ListenAndServe(cfg.Metrics.Listen, mux); err != nil {
					fmt.Fprintf(os.Stderr, "metrics server error: %v\n", err)
				}
			}()
			fmt.Printf("  Metrics: http://%s/metrics\n", cfg.Metrics.Listen)
		}

		fmt.Printf("  Data Directory: %s\n", cfg.DataDir)
		fmt.Printf("  Remote: %s\n", cfg.Remote.URL)
		if reachable {
			fmt.Println("  Connectivity: online")
		} else {
			fmt.Println("  Connectivity: offline (mutations will queue)")
		}
		fmt.Println()
		fmt.Println("Engine is running. Press Ctrl+C to stop.")

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		fmt.Println("\nShutting down...")
		return nil
	},
}
