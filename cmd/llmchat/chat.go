// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/alexandra767/localllm/internal/storage"
	"github.com/alexandra767/localllm/llm"
	"github.com/alexandra767/localllm/model"
)

var (
	flagModel    string
	flagSystem   string
	flagNoStream bool
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start an interactive chat session",
	Long: `Start an interactive chat session. Responses stream as they are
generated; press Ctrl-C to cancel a response in progress. At the
prompt, Ctrl-C or /quit leaves.`,
	RunE: runChat,
}

func init() {
	chatCmd.Flags().StringVarP(&flagModel, "model", "m", "", "model ID to chat with (default from settings)")
	chatCmd.Flags().StringVar(&flagSystem, "system", "", "system prompt for the session")
	chatCmd.Flags().BoolVar(&flagNoStream, "no-stream", false, "wait for the complete response instead of streaming")
	rootCmd.AddCommand(chatCmd)
}

func runChat(cmd *cobra.Command, args []string) error {
	client, settings, cleanup, err := newClient()
	if err != nil {
		return err
	}
	defer cleanup()

	modelID := flagModel
	if modelID == "" {
		modelID = settings.DefaultModel()
	}
	desc, ok := client.Registry().Lookup(modelID)
	if !ok {
		return fmt.Errorf("unknown model %q; run `llmchat models`", modelID)
	}
	if !client.IsAvailable(desc) {
		return fmt.Errorf("model %q is not downloaded", modelID)
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	transcripts, err := openTranscripts()
	if err != nil {
		return err
	}

	fmt.Printf("chatting with %s (/quit to exit)\n", desc.Name)

	transcript := &storage.Transcript{Model: desc.ID}
	var history []model.Message
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "/quit" || line == "/exit" {
			break
		}

		// Signal handling is armed per turn: Ctrl-C cancels only the
		// response in flight, and at the prompt it keeps its default
		// process-exit behavior.
		turnCtx, stop := newTurnContext(ctx)
		reply, err := converse(turnCtx, client, line, desc, history)
		stop()
		if err != nil {
			if llm.IsCancelled(err) {
				fmt.Println("\n(cancelled)")
				continue
			}
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			if hint := llm.HintFor(err); hint != "" {
				fmt.Fprintf(os.Stderr, "hint: %s\n", hint)
			}
			continue
		}

		history = append(history, *model.NewUserMessage(line))
		answer := model.NewPendingMessage()
		answer.Deliver(reply)
		history = append(history, *answer)

		transcript.Messages = history
		if _, err := transcripts.Save(transcript); err != nil {
			fmt.Fprintf(os.Stderr, "warning: could not save transcript: %v\n", err)
		}
	}
	return scanner.Err()
}

// newTurnContext arms interrupt handling for a single response. The
// returned stop must be called when the turn ends so the next turn gets
// a fresh, uncancelled context.
func newTurnContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

// openTranscripts opens the transcript store in the data directory.
func openTranscripts() (*storage.Store, error) {
	dir, err := dataDir()
	if err != nil {
		return nil, err
	}
	return storage.Open(filepath.Join(dir, "transcripts"))
}

// converse sends one turn and returns the full reply text, printing
// streamed chunks as they arrive unless --no-stream was given.
func converse(ctx context.Context, client *llm.Client, line string, desc model.Descriptor, history []model.Message) (string, error) {
	if flagNoStream {
		r := <-client.GenerateAsync(ctx, line, history, flagSystem, desc)
		if r.Err != nil {
			return "", r.Err
		}
		fmt.Println(r.Text)
		return r.Text, nil
	}

	var full strings.Builder
	for chunk := range client.StreamConversation(ctx, line, desc, flagSystem, history, settingsTemperature(client)) {
		if chunk.Err != nil {
			fmt.Println()
			return "", chunk.Err
		}
		if chunk.Text != "" {
			fmt.Print(chunk.Text)
			full.WriteString(chunk.Text)
		}
	}
	fmt.Println()
	return full.String(), nil
}

func settingsTemperature(client *llm.Client) float64 {
	// Streaming takes an explicit temperature; pass the configured one.
	return client.Settings().Temperature()
}
