package appconfig

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadCreatesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conf", "config.yaml")
	m, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if got := m.Get(); got != Default() {
		t.Errorf("Get() = %+v, want defaults", got)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("config file not written: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0600 {
		t.Errorf("config mode = %o, want 0600", perm)
	}
	data, _ := os.ReadFile(path)
	if !strings.Contains(string(data), "strict_host_key_checking: true") {
		t.Errorf("unexpected file contents:\n%s", data)
	}
}

func TestDefaultValues(t *testing.T) {
	d := Default()
	if d.Theme != "dark" || d.FontSize != 14 || d.FontFamily != "JetBrains Mono, monospace" ||
		d.CursorStyle != "block" || d.BellEnabled || !d.CopyOnSelect || d.ScrollbackLines != 10000 ||
		d.WindowOpacity != 1.0 {
		t.Errorf("unexpected defaults: %+v", d)
	}
	s := d.Security
	if s.AutoLockTimeout != 300 || s.RequirePasswordOnStartup || s.SSHKeyPassphraseCache ||
		!s.VerifyHostKeys || !s.StrictHostKeyChecking {
		t.Errorf("unexpected security defaults: %+v", s)
	}
	if err := d.Validate(); err != nil {
		t.Errorf("defaults do not validate: %v", err)
	}
}

func TestLoadPartialFileKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := "theme: dracula\nsecurity:\n  strict_host_key_checking: false\n"
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	m, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	cfg := m.Get()
	if cfg.Theme != "dracula" || cfg.Security.StrictHostKeyChecking {
		t.Errorf("file values not applied: %+v", cfg)
	}
	if cfg.FontSize != 14 || !cfg.Security.VerifyHostKeys {
		t.Errorf("missing fields lost their defaults: %+v", cfg)
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	tests := map[string]string{
		"bad yaml":   "theme: [",
		"bad theme":  "theme: neon\n",
		"tiny font":  "font_size: 2\n",
		"bad cursor": "cursor_style: blink\n",
	}
	for name, content := range tests {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.yaml")
			os.WriteFile(path, []byte(content), 0600)
			if _, err := Load(path); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestUpdatePersistsAndNotifies(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	m, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	var notified []AppConfig
	m.OnChange(func(c AppConfig) { notified = append(notified, c) })

	got, err := m.Update(func(c *AppConfig) {
		c.FontSize = 16
		c.Security.VerifyHostKeys = false
	})
	if err != nil {
		t.Fatalf("Update() error: %v", err)
	}
	if got.FontSize != 16 || got.Security.VerifyHostKeys {
		t.Errorf("Update() returned %+v", got)
	}
	if len(notified) != 1 || notified[0].FontSize != 16 {
		t.Errorf("listener calls = %+v", notified)
	}

	reloaded, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if reloaded.Get().FontSize != 16 || reloaded.Get().Security.VerifyHostKeys {
		t.Errorf("update not persisted: %+v", reloaded.Get())
	}
}

func TestUpdateInvalidLeavesConfigUnchanged(t *testing.T) {
	m, err := Load(filepath.Join(t.TempDir(), "config.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	called := false
	m.OnChange(func(AppConfig) { called = true })

	if _, err := m.Update(func(c *AppConfig) { c.WindowOpacity = 0 }); err == nil {
		t.Fatal("expected validation error")
	}
	if m.Get().WindowOpacity != 1.0 {
		t.Error("invalid update was applied")
	}
	if called {
		t.Error("listener called for rejected update")
	}
}

func TestThemes(t *testing.T) {
	names := ThemeNames()
	if len(names) != 3 || names[0] != "dark" || names[1] != "dracula" || names[2] != "light" {
		t.Errorf("ThemeNames() = %v", names)
	}
	th, ok := GetTheme("dracula")
	if !ok || th["background"] != "#282a36" {
		t.Errorf("GetTheme(dracula) = %v, %v", th, ok)
	}
	th["background"] = "#000000"
	if again, _ := GetTheme("dracula"); again["background"] != "#282a36" {
		t.Error("GetTheme must return a copy")
	}
	if _, ok := GetTheme("neon"); ok {
		t.Error("unknown theme should not be found")
	}
}
