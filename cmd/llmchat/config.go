// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/alexandra767/localllm/config"
	"github.com/alexandra767/localllm/llm"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage llmchat settings",
	Long: `Manage llmchat settings.

  llmchat config list              Show all settings
  llmchat config get KEY           Print one value
  llmchat config set KEY VALUE     Set a value`,
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "Show all settings",
	RunE:  runConfigList,
}

var configGetCmd = &cobra.Command{
	Use:   "get KEY",
	Short: "Print one setting",
	Args:  cobra.ExactArgs(1),
	RunE:  runConfigGet,
}

var configSetCmd = &cobra.Command{
	Use:   "set KEY VALUE",
	Short: "Set a setting",
	Long: `Set a single setting. Example:
  llmchat config set base_url http://localhost:11434`,
	Args: cobra.ExactArgs(2),
	RunE: runConfigSet,
}

func init() {
	configCmd.AddCommand(configListCmd)
	configCmd.AddCommand(configGetCmd)
	configCmd.AddCommand(configSetCmd)
	rootCmd.AddCommand(configCmd)
}

func runConfigList(cmd *cobra.Command, args []string) error {
	settings, cleanup, err := openSettings()
	if err != nil {
		return err
	}
	defer cleanup()

	client := llm.New(settings, nil)
	for _, key := range config.AllKeys() {
		fmt.Printf("  %-15s %s\n", key, displayValue(settings, client, key))
	}
	return nil
}

func runConfigGet(cmd *cobra.Command, args []string) error {
	settings, cleanup, err := openSettings()
	if err != nil {
		return err
	}
	defer cleanup()

	key := strings.ToLower(args[0])
	client := llm.New(settings, nil)
	fmt.Println(displayValue(settings, client, key))
	return nil
}

func runConfigSet(cmd *cobra.Command, args []string) error {
	settings, cleanup, err := openSettings()
	if err != nil {
		return err
	}
	defer cleanup()

	key := strings.ToLower(args[0])
	if err := settings.SetKey(key, args[1]); err != nil {
		return err
	}
	fmt.Printf("set %s\n", key)
	return nil
}

// displayValue renders a setting for output; the API key is never
// printed in the clear.
func displayValue(s *config.Settings, client *llm.Client, key string) string {
	switch key {
	case config.KeyAPIKey:
		return client.MaskedCredential()
	case config.KeyBaseURL:
		if s.BaseURL() == "" {
			return "(unset)"
		}
		return s.BaseURL()
	case config.KeyDefaultModel:
		return s.DefaultModel()
	case config.KeyMaxTokens:
		return fmt.Sprintf("%d", s.MaxTokens())
	case config.KeyTemperature:
		return fmt.Sprintf("%g", s.Temperature())
	case config.KeyTopP:
		return fmt.Sprintf("%g", s.TopP())
	case config.KeyPenalty:
		return fmt.Sprintf("%g", s.Penalty())
	default:
		return "(unknown key)"
	}
}
