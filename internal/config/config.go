// Package config loads the daemon configuration: YAML file with
// environment expansion, .env convenience loading, and numbered
// DOST_API_KEY environment credentials.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/dostlabs/dost/internal/logging"
)

const (
	// DefaultModel is the chat model used when the config names none.
	DefaultModel = "llama-3.3-70b-versatile"

	envKeyPrefix = "DOST_API_KEY"
	maxEnvKeys   = 16
)

// Config holds everything the daemon needs at startup.
type Config struct {
	Assistant string `yaml:"assistant"` // Assistant display name
	Model     string `yaml:"model"`     // Chat model identifier
	BaseURL   string `yaml:"base_url"`  // OpenAI-compatible endpoint
	DataDir   string `yaml:"data_dir"`  // Conversation and state root
	Storage   string `yaml:"storage"`   // "files" or "sqlite"

	// APIKeys from the config file; merged with DOST_API_KEY1..N.
	APIKeys []string `yaml:"api_keys"`

	HTTP struct {
		Addr string `yaml:"addr"` // Empty disables the HTTP API
	} `yaml:"http"`

	Search struct {
		APIKey string `yaml:"api_key"`
		CX     string `yaml:"cx"`
	} `yaml:"search"`

	Invoker struct {
		MaxRetries   int `yaml:"max_retries"`
		InitialDelay int `yaml:"initial_delay_seconds"`
	} `yaml:"invoker"`
}

// DefaultConfig returns a config with sensible defaults.
func DefaultConfig() *Config {
	cfg := &Config{
		Assistant: "Dost",
		Model:     DefaultModel,
		DataDir:   defaultDataDir(),
		Storage:   "files",
	}
	cfg.Invoker.MaxRetries = 1
	cfg.Invoker.InitialDelay = 3
	return cfg
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".dost"
	}
	return filepath.Join(home, ".dost")
}

// Load reads <dataDirOrDefault>/config.yaml, layered over defaults.
// A missing file is not an error. A .env in the working directory is
// loaded first so numbered key variables work without exporting.
func Load() (*Config, error) {
	return LoadFrom(filepath.Join(defaultDataDir(), "config.yaml"))
}

// LoadFrom reads config from a specific path.
func LoadFrom(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		logging.Debugf("config: no .env loaded: %v", err)
	}

	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, err
	}

	expanded := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	if strings.HasPrefix(cfg.DataDir, "~/") {
		home, _ := os.UserHomeDir()
		cfg.DataDir = filepath.Join(home, cfg.DataDir[2:])
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Storage == "" {
		cfg.Storage = "files"
	}
	return cfg, nil
}

// Credentials merges the config file keys with numbered environment
// keys (DOST_API_KEY1, DOST_API_KEY2, ...), env keys first so they
// rotate ahead of file keys. Blanks and duplicates are dropped.
func (c *Config) Credentials() []string {
	seen := map[string]bool{}
	var keys []string
	add := func(k string) {
		k = strings.TrimSpace(k)
		if k == "" || seen[k] {
			return
		}
		seen[k] = true
		keys = append(keys, k)
	}

	for i := 1; i <= maxEnvKeys; i++ {
		add(os.Getenv(fmt.Sprintf("%s%d", envKeyPrefix, i)))
	}
	add(os.Getenv(envKeyPrefix))
	for _, k := range c.APIKeys {
		add(k)
	}
	return keys
}

// DBPath returns the SQLite database location under the data dir.
func (c *Config) DBPath() string {
	return filepath.Join(c.DataDir, "dost.db")
}

// ConversationDir is where per-identity logs and session files live.
func (c *Config) ConversationDir() string {
	return filepath.Join(c.DataDir, "Data")
}

// EnsureDataDir creates the data directory tree.
func (c *Config) EnsureDataDir() error {
	return os.MkdirAll(c.ConversationDir(), 0o755)
}

// Watch reloads the config file on change and hands the fresh config
// to onChange, debounced against editors that write in bursts. The
// watcher stops when the process exits; callers treat reloads as
// advisory (credentials and model only).
func Watch(path string, onChange func(*Config)) (*fsnotify.Watcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("watch %s: %w", filepath.Dir(path), err)
	}

	go func() {
		var debounce *time.Timer
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Base(event.Name) != filepath.Base(path) {
					continue
				}
				if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				if debounce != nil {
					debounce.Stop()
				}
				debounce = time.AfterFunc(100*time.Millisecond, func() {
					cfg, err := LoadFrom(path)
					if err != nil {
						logging.Errorf("config: reload %s: %v", path, err)
						return
					}
					logging.Infof("config: %s changed, reloaded", path)
					onChange(cfg)
				})
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logging.Warnf("config: watcher: %v", err)
			}
		}
	}()
	return watcher, nil
}
