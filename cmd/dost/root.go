// Package cli wires the daemon together behind cobra commands.
package cli

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/dostlabs/dost/internal/config"
	"github.com/dostlabs/dost/internal/credential"
	"github.com/dostlabs/dost/internal/engine"
	"github.com/dostlabs/dost/internal/handlers"
	"github.com/dostlabs/dost/internal/inference"
	"github.com/dostlabs/dost/internal/invoker"
	"github.com/dostlabs/dost/internal/router"
	"github.com/dostlabs/dost/internal/session"
	"github.com/dostlabs/dost/internal/store"
)

var (
	cfgFile string
	verbose bool
)

// SetupRootCmd builds the command tree.
func SetupRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "dost",
		Short: "Dost - a conversational Hinglish assistant",
		Long: `Dost is a gated conversational assistant: greet it to start a
conversation, say bye to end one. Run 'dost serve' for the daemon with
the HTTP API, or 'dost chat' for a local console session.`,
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ~/.dost/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	rootCmd.AddCommand(ServeCmd())
	rootCmd.AddCommand(ChatCmd())
	return rootCmd
}

func loadConfig() (*config.Config, error) {
	if cfgFile != "" {
		return config.LoadFrom(cfgFile)
	}
	return config.Load()
}

// core is the assembled turn-processing stack shared by every command.
type core struct {
	cfg       *config.Config
	pool      *credential.Pool
	inv       *invoker.Invoker
	client    *inference.Client
	history   store.Store
	sessions  *session.Manager
	engine    *engine.Engine
	reminders *handlers.Reminders
}

// buildCore assembles the stack from config. Zero credentials is a
// startup error; nothing later in the turn path is allowed to be.
func buildCore(cfg *config.Config, notify handlers.NotifyFunc) (*core, error) {
	if err := cfg.EnsureDataDir(); err != nil {
		return nil, fmt.Errorf("data dir: %w", err)
	}

	keys := cfg.Credentials()
	creds := make([]credential.Credential, 0, len(keys))
	for i, k := range keys {
		creds = append(creds, credential.Credential{
			Name:   fmt.Sprintf("key%d", i+1),
			APIKey: k,
		})
	}
	pool, err := credential.NewPool(creds)
	if err != nil {
		return nil, err
	}

	inv := invoker.New(pool, invoker.Options{
		MaxRetries:   cfg.Invoker.MaxRetries,
		InitialDelay: time.Duration(cfg.Invoker.InitialDelay) * time.Second,
	})
	client := inference.NewClient(cfg.BaseURL, cfg.Model)

	var history store.Store
	switch cfg.Storage {
	case "sqlite":
		history, err = store.NewSQLiteStore(cfg.DBPath(), store.DefaultCap, store.DefaultTail)
	default:
		history, err = store.NewFileStore(cfg.ConversationDir(), store.DefaultCap, store.DefaultTail)
	}
	if err != nil {
		return nil, fmt.Errorf("storage: %w", err)
	}

	sessions := session.NewManager(cfg.ConversationDir())

	// The classifier retries each credential more times than the reply path.
	clsInv := invoker.New(pool, invoker.Options{
		MaxRetries:   3,
		InitialDelay: time.Duration(cfg.Invoker.InitialDelay) * time.Second,
	})
	r := router.New(clsInv, client, cfg.Model)

	chat := handlers.NewChat(inv, client, history, cfg.Assistant, cfg.Model)
	search := handlers.NewSearchClient(cfg.Search.APIKey, cfg.Search.CX)
	play := handlers.NewPlay()
	reminders, err := handlers.NewReminders(filepath.Join(cfg.DataDir, "reminders.json"), notify)
	if err != nil {
		return nil, fmt.Errorf("reminders: %w", err)
	}

	extra := map[router.Category]handlers.Handler{
		router.CategoryRealtime: handlers.NewRealtime(inv, client, history, search, cfg.Assistant, cfg.Model),
		router.CategoryPlay:     play,
		router.CategoryLyrics:   handlers.NewLyrics(inv, client, history, play, cfg.Assistant, cfg.Model),
		router.CategoryReminder: reminders,
	}

	return &core{
		cfg:       cfg,
		pool:      pool,
		inv:       inv,
		client:    client,
		history:   history,
		sessions:  sessions,
		engine:    engine.New(sessions, r, history, chat, extra),
		reminders: reminders,
	}, nil
}
