// llmchat - command line chat against local and remote LLM backends.
//
// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/alexandra767/localllm/config"
	"github.com/alexandra767/localllm/llm"
	"github.com/alexandra767/localllm/model"
)

// Version information (set at build time)
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

var (
	flagConfigPath string
	flagDBPath     string
)

var rootCmd = &cobra.Command{
	Use:   "llmchat",
	Short: "Chat with local and remote language models",
	Long: `llmchat is a terminal client for language models.

Models that need an API key are reached through a chat-completions
endpoint; local models are served by an Ollama-compatible server on the
same base URL. Settings live in ` + "`~/.localllm/settings.toml`" + ` by
default, or in SQLite with --db.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	Version:       fmt.Sprintf("%s (commit %s, built %s)", Version, GitCommit, BuildDate),
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfigPath, "config", "", "path to the TOML settings file")
	rootCmd.PersistentFlags().StringVar(&flagDBPath, "db", "", "path to a SQLite settings database (overrides --config)")
}

func main() {
	// A .env in the working directory supplies LOCALLLM_* overrides.
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		if hint := llm.HintFor(err); hint != "" {
			fmt.Fprintf(os.Stderr, "hint: %s\n", hint)
		}
		os.Exit(1)
	}
}

// dataDir returns the application directory, creating it if needed.
func dataDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolving home directory: %w", err)
	}
	dir := filepath.Join(home, ".localllm")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("creating %s: %w", dir, err)
	}
	return dir, nil
}

// openSettings builds the settings layer over the selected store and
// applies environment overrides for keys the store does not have yet.
func openSettings() (*config.Settings, func(), error) {
	var (
		store   config.Store
		cleanup = func() {}
	)
	switch {
	case flagDBPath != "":
		db, err := config.OpenSQLiteStore(flagDBPath)
		if err != nil {
			return nil, nil, err
		}
		store, cleanup = db, func() { db.Close() }
	default:
		path := flagConfigPath
		if path == "" {
			dir, err := dataDir()
			if err != nil {
				return nil, nil, err
			}
			path = filepath.Join(dir, "settings.toml")
		}
		fs, err := config.OpenFileStore(path)
		if err != nil {
			return nil, nil, err
		}
		store = fs
	}

	settings := config.NewSettings(store)
	seedFromEnv(settings)
	return settings, cleanup, nil
}

// seedFromEnv fills unset settings from the environment. Values already
// in the store win, so a one-time env bootstrap never clobbers explicit
// configuration.
func seedFromEnv(s *config.Settings) {
	if s.BaseURL() == "" {
		if v := os.Getenv("LOCALLLM_BASE_URL"); v != "" {
			_ = s.SetBaseURL(v)
		}
	}
	if s.APIKey() == "" {
		if v := os.Getenv("LOCALLLM_API_KEY"); v != "" {
			_ = s.SetAPIKey(v)
		}
	}
}

// newClient wires the registry and client over the settings.
func newClient() (*llm.Client, *config.Settings, func(), error) {
	settings, cleanup, err := openSettings()
	if err != nil {
		return nil, nil, nil, err
	}
	dir, err := dataDir()
	if err != nil {
		cleanup()
		return nil, nil, nil, err
	}
	registry := model.DefaultRegistry(filepath.Join(dir, "models"))
	client := llm.New(settings, registry, llm.WithUserAgent("llmchat/"+Version))
	return client, settings, cleanup, nil
}
