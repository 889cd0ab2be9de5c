package dag

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/iterai/iterai-go/dag/model"
)

// Config is an immutable configuration object resolved from defaults plus an
// optional YAML file. It is constructed explicitly and passed by reference
// into the Engine and Graph; there is no process-wide singleton.
//
// Lookups use dot-separated key paths, e.g. "models.default" or
// "concurrency.max_tasks". Unknown keys return the caller-supplied default.
type Config struct {
	data map[string]interface{}
	path string
}

func defaultData() map[string]interface{} {
	return map[string]interface{}{
		"diff": map[string]interface{}{
			"colorize": true,
			// "simple" or "semantic"
			"plan_comparison": "simple",
		},
		"models": map[string]interface{}{
			"default": "gpt-4o",
			"registry": map[string]interface{}{
				"gpt-4o": map[string]interface{}{
					"provider": "openai",
					"options": map[string]interface{}{
						"temperature": 0.2,
						"top_p":       0.9,
						"max_tokens":  2048,
					},
				},
				"gpt-4": map[string]interface{}{
					"provider": "openai",
					"options": map[string]interface{}{
						"temperature": 0.2,
						"top_p":       0.9,
						"max_tokens":  2048,
					},
				},
				"claude-3-5-sonnet-20240620": map[string]interface{}{
					"provider": "anthropic",
					"base_url": "https://api.anthropic.com/v1",
					"options": map[string]interface{}{
						"temperature": 0.3,
						"top_p":       0.95,
						"max_tokens":  2048,
					},
				},
				"gemini-1.5-pro": map[string]interface{}{
					"provider": "google",
					"options": map[string]interface{}{
						"temperature": 0.4,
						"top_p":       0.9,
						"max_tokens":  2048,
					},
				},
			},
		},
		"concurrency": map[string]interface{}{
			"max_tasks": 8,
		},
		"storage": map[string]interface{}{
			"path": "~/.config/iterai",
		},
		"evaluation": map[string]interface{}{
			"model": "gpt-4o",
		},
		"system_prompt_template": "You are an expert editor...",
	}
}

// DefaultConfig returns a Config holding only the built-in defaults.
func DefaultConfig() *Config {
	return &Config{data: defaultData()}
}

// LoadConfig reads a YAML config file and deep-merges it over the defaults.
// A missing file yields the defaults; a path of "" uses
// ~/.config/iterai/config.yaml.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to resolve home directory: %w", err)
		}
		path = filepath.Join(home, ".config", "iterai", "config.yaml")
	}

	cfg := &Config{data: defaultData(), path: path}

	raw, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	var overrides map[string]interface{}
	if err := yaml.Unmarshal(raw, &overrides); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	cfg.data = deepMerge(cfg.data, overrides)
	return cfg, nil
}

// deepMerge merges overrides into base recursively; non-map values replace.
func deepMerge(base, overrides map[string]interface{}) map[string]interface{} {
	for key, value := range overrides {
		if ov, ok := value.(map[string]interface{}); ok {
			if bv, ok := base[key].(map[string]interface{}); ok {
				base[key] = deepMerge(bv, ov)
				continue
			}
		}
		base[key] = value
	}
	return base
}

// Get resolves a dot-separated key path, returning def when any segment is
// missing or a non-map value is traversed.
func (c *Config) Get(key string, def interface{}) interface{} {
	var value interface{} = c.data
	for _, k := range strings.Split(key, ".") {
		m, ok := value.(map[string]interface{})
		if !ok {
			return def
		}
		value, ok = m[k]
		if !ok || value == nil {
			return def
		}
	}
	return value
}

// GetString resolves a key path as a string.
func (c *Config) GetString(key, def string) string {
	if s, ok := c.Get(key, def).(string); ok {
		return s
	}
	return def
}

// GetInt resolves a key path as an integer. YAML numbers may decode as int
// or float64 depending on their textual form.
func (c *Config) GetInt(key string, def int) int {
	switch v := c.Get(key, def).(type) {
	case int:
		return v
	case float64:
		return int(v)
	default:
		return def
	}
}

// GetBool resolves a key path as a boolean.
func (c *Config) GetBool(key string, def bool) bool {
	if b, ok := c.Get(key, def).(bool); ok {
		return b
	}
	return def
}

// DefaultModel returns the configured default model name.
func (c *Config) DefaultModel() string {
	return c.GetString("models.default", "gpt-4o")
}

// SystemPrompt returns the configured system prompt template.
func (c *Config) SystemPrompt() string {
	return c.GetString("system_prompt_template", "")
}

// MaxTasks returns the concurrency bound for batch evaluation. Values below
// 1 are clamped to 1.
func (c *Config) MaxTasks() int {
	n := c.GetInt("concurrency.max_tasks", 8)
	if n < 1 {
		return 1
	}
	return n
}

// StoragePath returns the configured storage root directory.
func (c *Config) StoragePath() string {
	return c.GetString("storage.path", "~/.config/iterai")
}

// ModelRegistry extracts the models.registry subtree as a typed registry.
// Malformed entries are dropped rather than failing the whole registry.
func (c *Config) ModelRegistry() model.Registry {
	sub, ok := c.Get("models.registry", nil).(map[string]interface{})
	if !ok {
		return model.Registry{}
	}

	registry := make(model.Registry, len(sub))
	for name, entry := range sub {
		raw, err := yaml.Marshal(entry)
		if err != nil {
			continue
		}
		var mc model.ModelConfig
		if err := yaml.Unmarshal(raw, &mc); err != nil {
			continue
		}
		registry[name] = mc
	}
	return registry
}

// Save writes the current configuration to the path it was loaded from,
// creating parent directories as needed.
func (c *Config) Save() error {
	if c.path == "" {
		return errors.New("config has no file path")
	}
	if err := os.MkdirAll(filepath.Dir(c.path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	data, err := yaml.Marshal(c.data)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(c.path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config %s: %w", c.path, err)
	}
	return nil
}
