package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// EnvPrefix is prepended to every variable name, e.g. SSHDECK_DATA_PATH.
const EnvPrefix = "SSHDECK"

type Settings struct {
	DataPath     string `envconfig:"DATA_PATH" default:""`
	ListenAddr   string `envconfig:"LISTEN_ADDR" default:"127.0.0.1:8022"`
	LogPath      string `envconfig:"LOG_PATH" default:""`
	DatabasePath string `envconfig:"DATABASE_PATH" default:""`
	APIToken     string `envconfig:"API_TOKEN" default:""`
	AllowedIPs   string `envconfig:"ALLOWED_IPS" default:""` // comma-separated IPs/CIDRs; empty allows all

	// Vault settings
	VaultBackend   string `envconfig:"VAULT_BACKEND" default:"file"`
	KeyringService string `envconfig:"KEYRING_SERVICE" default:"sshdeck"`

	// SSH settings
	ConnectTimeout       time.Duration `envconfig:"CONNECT_TIMEOUT" default:"10s"`
	KnownHostsPath       string        `envconfig:"KNOWN_HOSTS_PATH" default:""`
	MaxAttemptsPerMinute int           `envconfig:"MAX_ATTEMPTS_PER_MINUTE" default:"10"`
	MaxConsecFailures    int           `envconfig:"MAX_CONSEC_FAILURES" default:"5"`
	FailureBlockDuration time.Duration `envconfig:"FAILURE_BLOCK_DURATION" default:"5m"`

	// Audit settings
	AuditRetentionDays int    `envconfig:"AUDIT_RETENTION_DAYS" default:"90"`
	AuditPurgeSchedule string `envconfig:"AUDIT_PURGE_SCHEDULE" default:"@daily"`
}

// Load reads Settings from the environment and fills the path defaults that
// derive from DataPath.
func Load() (*Settings, error) {
	var s Settings
	if err := envconfig.Process(EnvPrefix, &s); err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := s.resolvePaths(); err != nil {
		return nil, err
	}
	return &s, nil
}

// SetDataPath overrides the data directory and re-derives the paths that
// were not set explicitly.
func (s *Settings) SetDataPath(dir string) error {
	if s.LogPath == filepath.Join(s.DataPath, "sshdeck.log") {
		s.LogPath = ""
	}
	if s.DatabasePath == filepath.Join(s.DataPath, "sshdeck.db") {
		s.DatabasePath = ""
	}
	if s.KnownHostsPath == filepath.Join(s.DataPath, "known_hosts") {
		s.KnownHostsPath = ""
	}
	s.DataPath = dir
	return s.resolvePaths()
}

func (s *Settings) resolvePaths() error {
	if s.DataPath == "" {
		dir, err := os.UserConfigDir()
		if err != nil {
			return fmt.Errorf("resolve data path: %w", err)
		}
		s.DataPath = filepath.Join(dir, "sshdeck")
	}
	if s.LogPath == "" {
		s.LogPath = filepath.Join(s.DataPath, "sshdeck.log")
	}
	if s.DatabasePath == "" {
		s.DatabasePath = filepath.Join(s.DataPath, "sshdeck.db")
	}
	if s.KnownHostsPath == "" {
		s.KnownHostsPath = filepath.Join(s.DataPath, "known_hosts")
	}
	return nil
}

// SessionsPath is the saved-session collection file.
func (s *Settings) SessionsPath() string {
	return filepath.Join(s.DataPath, "sessions.json")
}

// AppConfigPath is the user preferences file.
func (s *Settings) AppConfigPath() string {
	return filepath.Join(s.DataPath, "config.yaml")
}
