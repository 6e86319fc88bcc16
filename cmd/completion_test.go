package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/spf13/cobra"

	"github.com/dimasma0305/devwatch/internal/devwatch/config"
	"github.com/dimasma0305/devwatch/internal/devwatch/testutil"
)

func TestGetAvailableLogs(t *testing.T) {
	dir := t.TempDir()
	cfg := config.Default(dir)
	cfg.Logs = []string{"web", "api"}

	logsDir := cfg.Resolve(cfg.LogsDir)
	testutil.WriteFile(t, logsDir, "api.log", "")
	testutil.WriteFile(t, logsDir, "worker.log", "")
	testutil.WriteFile(t, logsDir, "notes.txt", "")
	if err := os.MkdirAll(filepath.Join(logsDir, "archive.log"), 0750); err != nil {
		t.Fatal(err)
	}

	names, err := getAvailableLogs(cfg)
	testutil.AssertNoError(t, err, "getAvailableLogs()")
	if diff := cmp.Diff([]string{"api", "web", "worker"}, names); diff != "" {
		t.Errorf("getAvailableLogs() mismatch (-want +got):\n%s", diff)
	}
}

func TestGetAvailableLogsMissingDir(t *testing.T) {
	cfg := config.Default(t.TempDir())
	cfg.Logs = []string{"dev"}

	names, err := getAvailableLogs(cfg)
	testutil.AssertNoError(t, err, "getAvailableLogs()")
	if diff := cmp.Diff([]string{"dev"}, names); diff != "" {
		t.Errorf("getAvailableLogs() mismatch (-want +got):\n%s", diff)
	}
}

func TestValidLogNames(t *testing.T) {
	dir := useProject(t)
	cfg := config.Default(dir)
	cfg.Logs = []string{"web"}
	saveConfig(t, cfg)

	names, directive := validLogNames(nil, nil, "")
	if directive != cobra.ShellCompDirectiveNoFileComp {
		t.Errorf("directive = %v, want NoFileComp", directive)
	}
	if diff := cmp.Diff([]string{"web"}, names); diff != "" {
		t.Errorf("validLogNames() mismatch (-want +got):\n%s", diff)
	}
}

func TestCompletionCommand(t *testing.T) {
	for _, shell := range []string{"bash", "zsh", "fish", "powershell"} {
		t.Run(shell, func(t *testing.T) {
			var buf bytes.Buffer
			completionCmd.SetOut(&buf)
			t.Cleanup(func() { completionCmd.SetOut(nil) })

			completionCmd.Run(completionCmd, []string{shell})
			if !strings.Contains(buf.String(), "devwatch") {
				t.Errorf("%s completion does not mention devwatch", shell)
			}
		})
	}
}
