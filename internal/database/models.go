package database

import "time"

type Setting struct {
	Key       string    `gorm:"primaryKey" json:"key"`
	Value     string    `gorm:"not null" json:"value"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// VaultEntry is one named ciphertext stored by the sqlite vault backend.
type VaultEntry struct {
	Name      string    `gorm:"primaryKey;size:255"`
	Value     string    `gorm:"type:text;not null"` // codec text of nonce || ciphertext || tag
	CreatedAt time.Time `gorm:"autoCreateTime"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

// AuditLog is one recorded connection, session or key event.
type AuditLog struct {
	ID        uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	EventType string    `gorm:"not null;index" json:"event_type"`
	SessionID string    `gorm:"index" json:"session_id,omitempty"`
	Target    string    `gorm:"index" json:"target,omitempty"` // user@host:port, session or key name
	Username  string    `json:"username,omitempty"`
	SourceIP  string    `json:"source_ip,omitempty"`
	Details   string    `gorm:"type:text" json:"details,omitempty"`
	Duration  int64     `json:"duration_ms,omitempty"`
	CreatedAt time.Time `gorm:"autoCreateTime;index" json:"created_at"`
}
