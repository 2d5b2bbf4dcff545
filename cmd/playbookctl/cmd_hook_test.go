package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/playbookhq/engine/internal/models"
	"github.com/playbookhq/engine/internal/store"
)

func TestNewHookCmd_HasThreeSubcommands(t *testing.T) {
	cmd := newHookCmd()
	want := map[string]bool{"prompt-submit": false, "session-end": false, "pre-compact": false}
	for _, sub := range cmd.Commands() {
		if _, ok := want[sub.Name()]; ok {
			want[sub.Name()] = true
		}
	}
	for name, found := range want {
		if !found {
			t.Errorf("missing subcommand %q", name)
		}
	}
}

func seedPlaybook(t *testing.T, root string, pb *models.Playbook) {
	t.Helper()
	storage := store.New(filepath.Join(root, ".claude", "playbook.json"))
	if err := storage.Store(context.Background(), pb); err != nil {
		t.Fatalf("seeding playbook: %v", err)
	}
}

func TestHookPromptSubmit_ColdStartReturnsEmptyPayload(t *testing.T) {
	root := t.TempDir()

	rootCmd := newTestRootCmd()
	rootCmd.AddCommand(newHookCmd())

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetIn(strings.NewReader(`{"prompt":"fix the retry logic","session_id":"s1"}`))
	rootCmd.SetArgs([]string{"hook", "prompt-submit", "--root", root})

	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("hook prompt-submit: %v", err)
	}
	if out.String() != "" {
		t.Errorf("expected empty payload on an empty playbook, got %q", out.String())
	}
}

func TestHookPromptSubmit_MatchingStableKPTIsInjected(t *testing.T) {
	root := t.TempDir()
	seedPlaybook(t, root, &models.Playbook{
		Stable: []models.KPT{
			{Name: "kpt_001", When: "retrying a payment call", Do: "use exponential backoff", Tags: []string{"payment", "retry", "backoff"}, Score: 3, EffectRating: 0.9},
		},
	})

	rootCmd := newTestRootCmd()
	rootCmd.AddCommand(newHookCmd())

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetIn(strings.NewReader(`{"prompt":"payment gateway keeps failing on retry","session_id":"s1"}`))
	rootCmd.SetArgs([]string{"hook", "prompt-submit", "--root", root})

	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("hook prompt-submit: %v", err)
	}
	if !strings.Contains(out.String(), "backoff") {
		t.Errorf("expected the stable KPT's lesson in the injection payload, got %q", out.String())
	}
}

func TestHookPromptSubmit_MalformedStdinExitsZeroWithNoOutput(t *testing.T) {
	root := t.TempDir()

	rootCmd := newTestRootCmd()
	rootCmd.AddCommand(newHookCmd())

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetIn(strings.NewReader(`not json`))
	rootCmd.SetArgs([]string{"hook", "prompt-submit", "--root", root})

	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("expected malformed stdin to exit cleanly, got %v", err)
	}
	if out.String() != "" {
		t.Errorf("expected no output for malformed stdin, got %q", out.String())
	}
}

func TestHookSessionEnd_NoProviderConfiguredDegradesWithoutWrite(t *testing.T) {
	// With no LLM provider configured, buildApp wires the deterministic
	// FallbackClient, whose Reflect always errors — exercising the
	// degrade-to-no-update path end to end.
	root := t.TempDir()

	rootCmd := newTestRootCmd()
	rootCmd.AddCommand(newHookCmd())

	var out, errOut bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&errOut)
	rootCmd.SetIn(strings.NewReader(`{"transcript":[{"role":"user","text":"hi"}],"session_id":"s1"}`))
	rootCmd.SetArgs([]string{"hook", "session-end", "--root", root})

	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("hook session-end should always exit 0, got %v", err)
	}
	if _, err := os.Stat(filepath.Join(root, ".claude", "playbook.json")); err == nil {
		t.Error("expected no playbook write when reflection fails")
	}
}

func TestHookPreCompact_DisabledViaConfigIsANoOp(t *testing.T) {
	root := t.TempDir()
	claudeDir := filepath.Join(root, ".claude")
	if err := os.MkdirAll(claudeDir, 0o700); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	cfgYAML := "update_on_clear: false\n"
	if err := os.WriteFile(filepath.Join(claudeDir, "playbook.yaml"), []byte(cfgYAML), 0o600); err != nil {
		t.Fatalf("writing config: %v", err)
	}

	rootCmd := newTestRootCmd()
	rootCmd.AddCommand(newHookCmd())

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetIn(strings.NewReader(`{"transcript":[],"session_id":"s1"}`))
	rootCmd.SetArgs([]string{"hook", "pre-compact", "--root", root})

	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("hook pre-compact: %v", err)
	}
	if _, err := os.Stat(filepath.Join(claudeDir, "playbook.json")); err == nil {
		t.Error("expected no playbook write when update_on_clear is disabled")
	}
}
