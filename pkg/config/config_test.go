package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/specforge/specforge/pkg/workspace"
)

func testLayout(t *testing.T) *workspace.Layout {
	t.Helper()

	layout, err := workspace.NewLayout(t.TempDir())
	if err != nil {
		t.Fatalf("NewLayout failed: %v", err)
	}
	return layout
}

func TestLoadMissingFileYieldsDefaults(t *testing.T) {
	layout := testLayout(t)

	cfg, err := Load(layout)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(cfg.ProviderOrder) == 0 || cfg.ProviderOrder[0] != "anthropic" {
		t.Errorf("unexpected default provider order: %v", cfg.ProviderOrder)
	}
	if cfg.TimeoutMinutes != 30 {
		t.Errorf("unexpected default timeout: %d", cfg.TimeoutMinutes)
	}
}

func TestLoadPartialFileMergesOverDefaults(t *testing.T) {
	layout := testLayout(t)

	content := "provider_order:\n  - openai\ntimeout_minutes: 5\n"
	if err := os.WriteFile(layout.ConfigPath(), []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(layout)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(cfg.ProviderOrder) != 1 || cfg.ProviderOrder[0] != "openai" {
		t.Errorf("provider order not overridden: %v", cfg.ProviderOrder)
	}
	if cfg.TimeoutMinutes != 5 {
		t.Errorf("timeout not overridden: %d", cfg.TimeoutMinutes)
	}
	if cfg.MaxRetries != 3 {
		t.Errorf("unset field must keep its default, got %d", cfg.MaxRetries)
	}
}

func TestLoadRejectsUnknownProvider(t *testing.T) {
	layout := testLayout(t)

	content := "provider_order:\n  - cohere\n"
	if err := os.WriteFile(layout.ConfigPath(), []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	if _, err := Load(layout); err == nil {
		t.Fatal("expected validation error for unknown provider")
	}
}

func TestLoadRejectsUnknownFields(t *testing.T) {
	layout := testLayout(t)

	content := "provider_order:\n  - anthropic\nretry_count: 9\n"
	if err := os.WriteFile(layout.ConfigPath(), []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	if _, err := Load(layout); err == nil {
		t.Fatal("expected error for unknown config field")
	}
}

func TestRunConfigSnapshotIsIndependent(t *testing.T) {
	cfg := Default()
	rc := cfg.RunConfig()

	cfg.ProviderOrder[0] = "openai"
	if rc.ProviderOrder[0] != "anthropic" {
		t.Error("snapshot must not alias the live config slice")
	}
	if rc.TimeoutMinutes != 30 || rc.MaxRetries != 3 || rc.MaxFallbacks != 2 {
		t.Errorf("snapshot fields wrong: %+v", rc)
	}
}

func TestDiscoverCredentials(t *testing.T) {
	t.Setenv(EnvAnthropicAPIKey, "sk-ant-test")
	t.Setenv(EnvOpenAIAPIKey, "")

	creds := DiscoverCredentials()
	if !creds.Has("anthropic") {
		t.Error("anthropic credential should be present")
	}
	if creds.Has("openai") {
		t.Error("openai credential should be absent")
	}
	if creds.APIKey("anthropic") != "sk-ant-test" {
		t.Errorf("unexpected key %q", creds.APIKey("anthropic"))
	}
	if creds.Has("cohere") {
		t.Error("unknown provider never has credentials")
	}
}

func TestConfigPathLivesAtWorkspaceRoot(t *testing.T) {
	layout := testLayout(t)

	if got, want := filepath.Base(layout.ConfigPath()), "config.yaml"; got != want {
		t.Errorf("config file name: got %q, want %q", got, want)
	}
}
