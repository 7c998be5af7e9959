// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/alexandra767/localllm/internal/storage"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Browse saved conversations",
	Long: `Browse conversations saved by the chat command.

  llmchat history list             List saved conversations
  llmchat history show ID          Print a conversation
  llmchat history search QUERY     Find conversations by title
  llmchat history rm ID            Delete a conversation`,
}

var historyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List saved conversations",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openTranscripts()
		if err != nil {
			return err
		}
		metas, err := store.List()
		if err != nil {
			return err
		}
		printMetas(metas)
		return nil
	},
}

var historyShowCmd = &cobra.Command{
	Use:   "show ID",
	Short: "Print a conversation",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openTranscripts()
		if err != nil {
			return err
		}
		id, err := resolveID(store, args[0])
		if err != nil {
			return err
		}
		tr, err := store.Load(id)
		if err != nil {
			return err
		}
		fmt.Printf("%s (%s)\n\n", tr.Title, tr.Model)
		for _, m := range tr.Messages {
			speaker := "assistant"
			if m.FromUser {
				speaker = "you"
			}
			fmt.Printf("[%s] %s\n", speaker, m.Content)
		}
		return nil
	},
}

var historySearchCmd = &cobra.Command{
	Use:   "search QUERY",
	Short: "Find conversations by title",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openTranscripts()
		if err != nil {
			return err
		}
		metas, err := store.Search(args[0])
		if err != nil {
			return err
		}
		printMetas(metas)
		return nil
	},
}

var historyRmCmd = &cobra.Command{
	Use:   "rm ID",
	Short: "Delete a conversation",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openTranscripts()
		if err != nil {
			return err
		}
		id, err := resolveID(store, args[0])
		if err != nil {
			return err
		}
		return store.Delete(id)
	},
}

// resolveID accepts either a full transcript ID or the short prefix
// shown by the list command.
func resolveID(store *storage.Store, arg string) (string, error) {
	metas, err := store.List()
	if err != nil {
		return "", err
	}
	for _, meta := range metas {
		if meta.ID == arg || strings.HasPrefix(meta.ID, arg) {
			return meta.ID, nil
		}
	}
	return "", storage.ErrTranscriptNotFound
}

func init() {
	historyCmd.AddCommand(historyListCmd)
	historyCmd.AddCommand(historyShowCmd)
	historyCmd.AddCommand(historySearchCmd)
	historyCmd.AddCommand(historyRmCmd)
	rootCmd.AddCommand(historyCmd)
}

func printMetas(metas []storage.Meta) {
	if len(metas) == 0 {
		fmt.Println("no conversations saved")
		return
	}
	for _, meta := range metas {
		short := meta.ID
		if len(short) > 8 {
			short = short[:8]
		}
		fmt.Printf("%s  %-50s %-10s %2d msgs  %s\n",
			short, meta.Title, meta.Model, meta.MessageCount,
			meta.UpdatedAt.Format("2006-01-02 15:04"))
	}
}
