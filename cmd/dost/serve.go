package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/dostlabs/dost/internal/channels"
	"github.com/dostlabs/dost/internal/channels/httpapi"
	"github.com/dostlabs/dost/internal/config"
	"github.com/dostlabs/dost/internal/logging"
	"github.com/dostlabs/dost/internal/thought"
)

const defaultHTTPAddr = "127.0.0.1:8741"

// ServeCmd runs the daemon: HTTP API transport, reminder sweeps and
// the daily thought refresh, until interrupted.
func ServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the assistant daemon with the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe()
		},
	}
}

func runServe() error {
	if verbose {
		logging.EnableDebug()
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		fmt.Printf("\nReceived %v, shutting down...\n", sig)
		cancel()
	}()

	addr := cfg.HTTP.Addr
	if addr == "" {
		addr = defaultHTTPAddr
	}

	// The reminder notifier sends through the adapter, which needs the
	// engine handler, which comes out of buildCore. The adapter slot is
	// written before reminders.Start, so the sweep goroutine always
	// sees it.
	var adapter channels.Adapter
	notify := func(identity, text string) error {
		return adapter.Send(ctx, channels.OutboundMessage{Target: identity, Text: text})
	}

	c, err := buildCore(cfg, notify)
	if err != nil {
		return err
	}

	api := httpapi.New(addr, c.history)
	api.SetHandler(func(ctx context.Context, msg channels.InboundMessage) string {
		return c.engine.Handle(ctx, msg)
	})
	adapter = api

	c.reminders.Start()
	defer c.reminders.Stop()

	updater := thought.NewUpdater(
		filepath.Join(cfg.DataDir, "auto", "thought.json"),
		c.inv, c.client, cfg.Assistant, cfg.Model, nil,
	)
	if err := updater.Start(ctx); err != nil {
		logging.Warnf("serve: thought updater: %v", err)
	}

	cfgPath := cfgFile
	if cfgPath == "" {
		cfgPath = filepath.Join(cfg.DataDir, "config.yaml")
	}
	if watcher, err := config.Watch(cfgPath, func(fresh *config.Config) {
		logging.Infof("serve: config reloaded, %d credential(s) available (restart to apply)", len(fresh.Credentials()))
	}); err == nil {
		defer watcher.Close()
	} else {
		logging.Debugf("serve: config watch disabled: %v", err)
	}

	fmt.Printf("%s is listening on http://%s (data: %s, %d credential(s))\n",
		cfg.Assistant, addr, cfg.DataDir, c.pool.Size())
	fmt.Println("Press Ctrl+C to stop")

	return api.Connect(ctx)
}
