package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/playbookhq/engine/internal/models"
	"github.com/spf13/cobra"
)

// newHookCmd creates the parent 'hook' command with one subcommand per
// trigger point a host's hook dispatcher calls around a session.
func newHookCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "hook",
		Short: "Hook subcommands for coding-assistant session events",
		Long: `Native implementations of the three hook entry points.

Each subcommand reads a JSON payload from stdin and writes its result to
stdout. Per the failure policy, these always exit 0: a failure degrades to
"no context added" or "no update", never a loud error visible to the user.`,
	}

	cmd.AddCommand(
		newHookPromptSubmitCmd(),
		newHookSessionEndCmd(),
		newHookPreCompactCmd(),
	)

	return cmd
}

type promptSubmitInput struct {
	Prompt    string                  `json:"prompt"`
	History   []models.TranscriptTurn `json:"history"`
	SessionID string                  `json:"session_id"`
}

func newHookPromptSubmitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "prompt-submit",
		Short: "Emit a context-injection payload for a submitted prompt",
		RunE: func(cmd *cobra.Command, args []string) error {
			root, _ := cmd.Flags().GetString("root")

			var input promptSubmitInput
			if err := json.NewDecoder(cmd.InOrStdin()).Decode(&input); err != nil {
				return nil // invalid input — exit silently, empty injection
			}

			ctx := context.Background()
			a, err := buildApp(ctx, root)
			if err != nil {
				return nil // degrade to no injection rather than fail loudly
			}
			defer a.Close()

			payload := a.handlers.OnPromptSubmit(ctx, input.Prompt, input.History)
			fmt.Fprint(cmd.OutOrStdout(), payload)
			return nil
		},
	}
}

type sessionEventInput struct {
	Transcript []models.TranscriptTurn `json:"transcript"`
	SessionID  string                  `json:"session_id"`
}

func newHookSessionEndCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "session-end",
		Short: "Reflect on a finished session and update the playbook",
		RunE: func(cmd *cobra.Command, args []string) error {
			root, _ := cmd.Flags().GetString("root")

			var input sessionEventInput
			if err := json.NewDecoder(cmd.InOrStdin()).Decode(&input); err != nil {
				return nil
			}
			if input.SessionID == "" {
				input.SessionID = "unknown"
			}

			ctx := context.Background()
			a, err := buildApp(ctx, root)
			if err != nil {
				return nil
			}
			defer a.Close()

			// The error is for diagnostics; the CLI boundary discards it and
			// always exits 0.
			if err := a.handlers.OnSessionEnd(ctx, input.Transcript, input.SessionID); err != nil {
				fmt.Fprintln(cmd.ErrOrStderr(), err)
			}
			return nil
		},
	}
}

func newHookPreCompactCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "pre-compact",
		Short: "Reflect on a transcript before it is compacted away",
		RunE: func(cmd *cobra.Command, args []string) error {
			root, _ := cmd.Flags().GetString("root")

			var input sessionEventInput
			if err := json.NewDecoder(cmd.InOrStdin()).Decode(&input); err != nil {
				return nil
			}
			if input.SessionID == "" {
				input.SessionID = "unknown"
			}

			ctx := context.Background()
			a, err := buildApp(ctx, root)
			if err != nil {
				return nil
			}
			defer a.Close()

			if err := a.handlers.OnPreCompact(ctx, input.Transcript, input.SessionID); err != nil {
				fmt.Fprintln(cmd.ErrOrStderr(), err)
			}
			return nil
		},
	}
}
