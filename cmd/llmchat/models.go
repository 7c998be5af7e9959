// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "List known models and their availability",
	RunE:  runModels,
}

func init() {
	rootCmd.AddCommand(modelsCmd)
}

func runModels(cmd *cobra.Command, args []string) error {
	client, settings, cleanup, err := newClient()
	if err != nil {
		return err
	}
	defer cleanup()

	def := settings.DefaultModel()
	for _, d := range client.Registry().All() {
		marker := " "
		if d.ID == def {
			marker = "*"
		}
		status := "available"
		switch {
		case d.RequiresCredential:
			status = "remote"
		case !client.IsAvailable(d):
			status = "not downloaded"
		}
		fmt.Printf("%s %-15s %-20s %s\n", marker, d.ID, d.Name, status)
	}
	return nil
}
