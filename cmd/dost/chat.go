package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/dostlabs/dost/internal/channels"
	"github.com/dostlabs/dost/internal/channels/console"
	"github.com/dostlabs/dost/internal/logging"
)

// ChatCmd runs a local console session against the same engine the
// daemon uses.
func ChatCmd() *cobra.Command {
	var as string

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Chat with the assistant on the console",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runChat(as)
		},
	}
	cmd.Flags().StringVar(&as, "as", "", "identity to chat as (default: OS username)")
	return cmd
}

func runChat(as string) error {
	if verbose {
		logging.EnableDebug()
	} else {
		logging.Disable()
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
		<-sigCh
		cancel()
	}()

	adapter := console.New(as)
	c, err := buildCore(cfg, func(identity, text string) error {
		return adapter.Send(ctx, channels.OutboundMessage{Target: identity, Text: text})
	})
	if err != nil {
		return err
	}

	adapter.SetHandler(func(ctx context.Context, msg channels.InboundMessage) string {
		return c.engine.Handle(ctx, msg)
	})

	c.reminders.Start()
	defer c.reminders.Stop()

	fmt.Printf("Chatting with %s. Greet it to start, say bye to stop, Ctrl+D to quit.\n", cfg.Assistant)
	return adapter.Connect(ctx)
}
