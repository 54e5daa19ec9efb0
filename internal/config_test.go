package internal

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	pkgconfig "github.com/arne-cl/rstWeb/pkg/config"
)

func TestDefaultConfigValid(t *testing.T) {
	cfg := NewDefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should pass: %v", err)
	}
	if cfg.Inbox.Enabled() {
		t.Error("inbox should be disabled by default")
	}
}

func TestConfigValidation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"port zero", func(c *Config) { c.App.HTTP.Port = 0 }, "port"},
		{"port too large", func(c *Config) { c.App.HTTP.Port = 70000 }, "port"},
		{"empty user", func(c *Config) { c.App.User = "" }, "user"},
		{"empty sqlite path", func(c *Config) { c.SQLite.Path = "" }, "path"},
		{"renderer not a url", func(c *Config) { c.Renderer.URL = "render service" }, "url"},
		{"renderer wrong scheme", func(c *Config) { c.Renderer.URL = "ftp://host/render" }, "http"},
		{"renderer zero timeout", func(c *Config) { c.Renderer.Timeout = 0 }, "timeout"},
		{"bad editor template", func(c *Config) { c.Editor.URLTemplate = "/structure{?doc" }, "urltemplate"},
		{"temp project with slash", func(c *Config) { c.Convert.TempProject = "a/b" }, "tempproject"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewDefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(strings.ToLower(err.Error()), tt.want) {
				t.Errorf("error %q does not mention %q", err, tt.want)
			}
		})
	}
}

func TestLoadConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	t.Setenv("RSTWEB_TEST_RENDERER", "http://renderer:9000/render")
	yaml := `
app:
  log_level: debug
  http:
    port: 9090
sqlite:
  path: /tmp/rstweb.db
renderer:
  url: ${RSTWEB_TEST_RENDERER}
  timeout: 5s
inbox:
  path: /srv/inbox
`
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg := NewDefaultConfig()
	if err := pkgconfig.LoadWithDefaults(path, "", cfg); err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.App.HTTP.Port != 9090 {
		t.Errorf("port = %d", cfg.App.HTTP.Port)
	}
	if cfg.Renderer.URL != "http://renderer:9000/render" {
		t.Errorf("renderer url = %q", cfg.Renderer.URL)
	}
	if cfg.Renderer.Timeout != 5*time.Second {
		t.Errorf("renderer timeout = %v", cfg.Renderer.Timeout)
	}
	if !cfg.Inbox.Enabled() {
		t.Error("inbox should be enabled")
	}
	// Unset sections keep their defaults.
	if cfg.App.User != "local" || cfg.Convert.TempProject != "_temp_convert" {
		t.Errorf("defaults lost: user = %q, temp project = %q", cfg.App.User, cfg.Convert.TempProject)
	}
}
