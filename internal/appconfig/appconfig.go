// Package appconfig holds the user's terminal and security preferences,
// persisted as YAML next to the other application data.
package appconfig

import (
	"errors"
	"fmt"
	"log"
	"os"
	"sync"

	"github.com/gluk-w/sshdeck/internal/fsutil"
	"gopkg.in/yaml.v3"
)

// AppConfig is the full set of preferences.
type AppConfig struct {
	Theme           string         `yaml:"theme" json:"theme"`
	FontSize        uint32         `yaml:"font_size" json:"font_size"`
	FontFamily      string         `yaml:"font_family" json:"font_family"`
	CursorStyle     string         `yaml:"cursor_style" json:"cursor_style"`
	BellEnabled     bool           `yaml:"bell_enabled" json:"bell_enabled"`
	CopyOnSelect    bool           `yaml:"copy_on_select" json:"copy_on_select"`
	ScrollbackLines uint32         `yaml:"scrollback_lines" json:"scrollback_lines"`
	WindowOpacity   float64        `yaml:"window_opacity" json:"window_opacity"`
	Security        SecurityConfig `yaml:"security" json:"security"`
}

type SecurityConfig struct {
	AutoLockTimeout          uint32 `yaml:"auto_lock_timeout" json:"auto_lock_timeout"` // seconds, 0 disables
	RequirePasswordOnStartup bool   `yaml:"require_password_on_startup" json:"require_password_on_startup"`
	SSHKeyPassphraseCache    bool   `yaml:"ssh_key_passphrase_cache" json:"ssh_key_passphrase_cache"`
	VerifyHostKeys           bool   `yaml:"verify_host_keys" json:"verify_host_keys"`
	StrictHostKeyChecking    bool   `yaml:"strict_host_key_checking" json:"strict_host_key_checking"`
}

// Default returns the preferences used when no file exists yet.
func Default() AppConfig {
	return AppConfig{
		Theme:           "dark",
		FontSize:        14,
		FontFamily:      "JetBrains Mono, monospace",
		CursorStyle:     "block",
		BellEnabled:     false,
		CopyOnSelect:    true,
		ScrollbackLines: 10000,
		WindowOpacity:   1.0,
		Security: SecurityConfig{
			AutoLockTimeout:          300,
			RequirePasswordOnStartup: false,
			SSHKeyPassphraseCache:    false,
			VerifyHostKeys:           true,
			StrictHostKeyChecking:    true,
		},
	}
}

var cursorStyles = map[string]bool{"block": true, "underline": true, "bar": true}

const maxScrollbackLines = 1_000_000

// Validate rejects values the terminal front end cannot render.
func (c AppConfig) Validate() error {
	if _, ok := themes[c.Theme]; !ok {
		return fmt.Errorf("unknown theme %q", c.Theme)
	}
	if c.FontSize < 6 || c.FontSize > 72 {
		return fmt.Errorf("font_size must be between 6 and 72, got %d", c.FontSize)
	}
	if c.FontFamily == "" {
		return errors.New("font_family is empty")
	}
	if !cursorStyles[c.CursorStyle] {
		return fmt.Errorf("cursor_style must be block, underline or bar, got %q", c.CursorStyle)
	}
	if c.ScrollbackLines > maxScrollbackLines {
		return fmt.Errorf("scrollback_lines must be at most %d", maxScrollbackLines)
	}
	if c.WindowOpacity < 0.1 || c.WindowOpacity > 1.0 {
		return fmt.Errorf("window_opacity must be between 0.1 and 1.0, got %g", c.WindowOpacity)
	}
	return nil
}

// ChangeFunc is called after a successful update with the new config.
type ChangeFunc func(AppConfig)

// Manager loads, updates and persists the config file.
type Manager struct {
	path string

	mu        sync.RWMutex
	cfg       AppConfig
	listeners []ChangeFunc
}

// Load reads path, writing the defaults there first if it does not exist.
// Fields missing from the file keep their default values.
func Load(path string) (*Manager, error) {
	m := &Manager{path: path, cfg: Default()}

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		if err := m.save(m.cfg); err != nil {
			return nil, err
		}
		log.Printf("Wrote default preferences to %s", path)
		return m, nil
	case err != nil:
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	m.cfg = cfg
	return m, nil
}

// Path returns the config file location.
func (m *Manager) Path() string { return m.path }

// Get returns a copy of the current config.
func (m *Manager) Get() AppConfig {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cfg
}

// OnChange registers fn to run after every successful Update.
func (m *Manager) OnChange(fn ChangeFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listeners = append(m.listeners, fn)
}

// Update applies fn to a copy of the config, validates the result and
// persists it. On any error the stored config is left unchanged.
func (m *Manager) Update(fn func(*AppConfig)) (AppConfig, error) {
	m.mu.Lock()
	next := m.cfg
	fn(&next)
	if err := next.Validate(); err != nil {
		m.mu.Unlock()
		return AppConfig{}, err
	}
	if err := m.save(next); err != nil {
		m.mu.Unlock()
		return AppConfig{}, err
	}
	m.cfg = next
	listeners := make([]ChangeFunc, len(m.listeners))
	copy(listeners, m.listeners)
	m.mu.Unlock()

	for _, l := range listeners {
		l(next)
	}
	return next, nil
}

func (m *Manager) save(cfg AppConfig) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	if err := fsutil.WriteFileAtomic(m.path, data, 0600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}
