package dag

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if got := cfg.DefaultModel(); got != "gpt-4o" {
		t.Errorf("DefaultModel() = %q, want gpt-4o", got)
	}
	if got := cfg.MaxTasks(); got != 8 {
		t.Errorf("MaxTasks() = %d, want 8", got)
	}
	if got := cfg.StoragePath(); got != "~/.config/iterai" {
		t.Errorf("StoragePath() = %q, want the default", got)
	}
	if !cfg.GetBool("diff.colorize", false) {
		t.Error("diff.colorize = false, want true by default")
	}
	if got := cfg.GetString("diff.plan_comparison", ""); got != "simple" {
		t.Errorf("diff.plan_comparison = %q, want simple", got)
	}
}

func TestConfigGet(t *testing.T) {
	cfg := DefaultConfig()

	tests := []struct {
		name string
		key  string
		def  interface{}
		want interface{}
	}{
		{"top-level key", "system_prompt_template", "", "You are an expert editor..."},
		{"nested key", "models.default", "", "gpt-4o"},
		{"missing key returns default", "models.missing", "fallback", "fallback"},
		{"missing subtree returns default", "no.such.path", 42, 42},
		{"traversal through scalar returns default", "models.default.deeper", "d", "d"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := cfg.Get(tt.key, tt.def); got != tt.want {
				t.Errorf("Get(%q) = %v, want %v", tt.key, got, tt.want)
			}
		})
	}
}

func TestLoadConfigMergesOverDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
models:
  default: claude-3-5-sonnet-20240620
concurrency:
  max_tasks: 3
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile() error: %v", err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig() error: %v", err)
	}

	if got := cfg.DefaultModel(); got != "claude-3-5-sonnet-20240620" {
		t.Errorf("DefaultModel() = %q, want the override", got)
	}
	if got := cfg.MaxTasks(); got != 3 {
		t.Errorf("MaxTasks() = %d, want 3", got)
	}
	// Untouched defaults survive the merge, including sibling keys of
	// overridden subtrees.
	if got := cfg.StoragePath(); got != "~/.config/iterai" {
		t.Errorf("StoragePath() = %q, want the default", got)
	}
	if _, ok := cfg.ModelRegistry()["gpt-4o"]; !ok {
		t.Error("default registry entry lost after merge")
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("LoadConfig() error: %v", err)
	}
	if got := cfg.DefaultModel(); got != "gpt-4o" {
		t.Errorf("DefaultModel() = %q, want defaults for a missing file", got)
	}
}

func TestConfigModelRegistry(t *testing.T) {
	registry := DefaultConfig().ModelRegistry()

	gpt, ok := registry["gpt-4o"]
	if !ok {
		t.Fatal("registry missing gpt-4o")
	}
	if gpt.Provider != "openai" {
		t.Errorf("gpt-4o provider = %q, want openai", gpt.Provider)
	}
	if gpt.Options.Temperature == nil || *gpt.Options.Temperature != 0.2 {
		t.Errorf("gpt-4o temperature = %v, want 0.2", gpt.Options.Temperature)
	}
	if gpt.Options.MaxTokens == nil || *gpt.Options.MaxTokens != 2048 {
		t.Errorf("gpt-4o max_tokens = %v, want 2048", gpt.Options.MaxTokens)
	}

	claude, ok := registry["claude-3-5-sonnet-20240620"]
	if !ok {
		t.Fatal("registry missing claude-3-5-sonnet-20240620")
	}
	if claude.Provider != "anthropic" || claude.BaseURL != "https://api.anthropic.com/v1" {
		t.Errorf("claude entry = %+v, want anthropic with its base URL", claude)
	}
}

func TestConfigMaxTasksClamped(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("concurrency:\n  max_tasks: 0\n"), 0o644); err != nil {
		t.Fatalf("WriteFile() error: %v", err)
	}
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig() error: %v", err)
	}
	if got := cfg.MaxTasks(); got != 1 {
		t.Errorf("MaxTasks() = %d, want clamped to 1", got)
	}
}

func TestConfigSave(t *testing.T) {
	path := filepath.Join(t.TempDir(), "deep", "config.yaml")

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig() error: %v", err)
	}
	if err := cfg.Save(); err != nil {
		t.Fatalf("Save() error: %v", err)
	}

	reloaded, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig() reload error: %v", err)
	}
	if got := reloaded.DefaultModel(); got != "gpt-4o" {
		t.Errorf("DefaultModel() after save/reload = %q, want gpt-4o", got)
	}
}
