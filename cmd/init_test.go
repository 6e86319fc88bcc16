package cmd

import (
	"os"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/dimasma0305/devwatch/internal/devwatch/config"
	"github.com/dimasma0305/devwatch/internal/devwatch/testutil"
)

func TestInitProject(t *testing.T) {
	dir := t.TempDir()
	cfg := config.Default(dir)

	path, err := initProject(cfg, []string{"web", "api"}, "https://discord.com/api/webhooks/1/abc", false)
	testutil.AssertNoError(t, err, "initProject()")
	if path != config.Path(dir) {
		t.Errorf("path = %q, want %q", path, config.Path(dir))
	}

	loaded, err := config.Load(dir)
	testutil.AssertNoError(t, err, "config.Load()")
	if diff := cmp.Diff([]string{"web", "api"}, loaded.Logs); diff != "" {
		t.Errorf("Logs mismatch (-want +got):\n%s", diff)
	}
	if loaded.Notify.Discord.WebhookURL != "https://discord.com/api/webhooks/1/abc" {
		t.Errorf("WebhookURL = %q", loaded.Notify.Discord.WebhookURL)
	}
	if info, err := os.Stat(loaded.Resolve(loaded.LogsDir)); err != nil || !info.IsDir() {
		t.Errorf("logs directory not created: %v", err)
	}
}

func TestInitProjectKeepsDefaults(t *testing.T) {
	dir := t.TempDir()
	_, err := initProject(config.Default(dir), nil, "", false)
	testutil.AssertNoError(t, err, "initProject()")

	loaded, err := config.Load(dir)
	testutil.AssertNoError(t, err, "config.Load()")
	if diff := cmp.Diff(config.Default(dir).Logs, loaded.Logs); diff != "" {
		t.Errorf("Logs mismatch (-want +got):\n%s", diff)
	}
}

func TestInitProjectExisting(t *testing.T) {
	dir := t.TempDir()
	_, err := initProject(config.Default(dir), []string{"web"}, "", false)
	testutil.AssertNoError(t, err, "first initProject()")

	_, err = initProject(config.Default(dir), []string{"api"}, "", false)
	testutil.AssertError(t, err, "second initProject() without force")
	if err != nil && !strings.Contains(err.Error(), "already exists") {
		t.Errorf("error = %v, want 'already exists'", err)
	}

	_, err = initProject(config.Default(dir), []string{"api"}, "", true)
	testutil.AssertNoError(t, err, "initProject() with force")
	loaded, err := config.Load(dir)
	testutil.AssertNoError(t, err, "config.Load()")
	if diff := cmp.Diff([]string{"api"}, loaded.Logs); diff != "" {
		t.Errorf("Logs mismatch (-want +got):\n%s", diff)
	}
}

func TestInitProjectRejectsInvalid(t *testing.T) {
	dir := t.TempDir()
	cfg := config.Default(dir)
	cfg.Interval = 0

	_, err := initProject(cfg, nil, "", false)
	testutil.AssertError(t, err, "initProject() with zero interval")
	if _, statErr := os.Stat(config.Path(dir)); !os.IsNotExist(statErr) {
		t.Error("invalid configuration should not be written")
	}
}
