package sshaudit

import (
	"fmt"
	"log"
	"time"

	"github.com/gluk-w/sshdeck/internal/database"
	"github.com/gluk-w/sshdeck/internal/logutil"
	"github.com/robfig/cron/v3"
	"gorm.io/gorm"
)

// Event types for audit logging.
const (
	EventConnectionEstablished = "connection_established"
	EventConnectionFailed      = "connection_failed"
	EventConnectionTerminated  = "connection_terminated"
	EventTeardownError         = "teardown_error"
	EventRateLimited           = "rate_limited"
	EventSessionSaved          = "session_saved"
	EventSessionDeleted        = "session_deleted"
	EventCredentialsRead       = "credentials_read"
	EventKeyGenerated          = "key_generated"
	EventKeySaved              = "key_saved"
	EventKeyDeleted            = "key_deleted"
	EventConfigUpdated         = "config_updated"
)

// DefaultRetentionDays is the default number of days to keep audit logs.
const DefaultRetentionDays = 90

// AuditEntry contains the fields needed to create an audit log entry.
type AuditEntry struct {
	EventType  string
	SessionID  string
	Target     string
	Username   string
	SourceIP   string
	Details    string
	DurationMs int64
}

// Auditor records and queries audit logs. Every record is also written to
// the standard logger.
type Auditor struct {
	db            *gorm.DB
	retentionDays int
	nowFn         func() time.Time
}

// NewAuditor creates an Auditor over an already migrated database. If
// retentionDays is 0, DefaultRetentionDays is used.
func NewAuditor(db *gorm.DB, retentionDays int) *Auditor {
	if retentionDays <= 0 {
		retentionDays = DefaultRetentionDays
	}
	return &Auditor{
		db:            db,
		retentionDays: retentionDays,
		nowFn:         time.Now,
	}
}

// Log records an audit event.
func (a *Auditor) Log(entry AuditEntry) error {
	record := database.AuditLog{
		EventType: entry.EventType,
		SessionID: entry.SessionID,
		Target:    entry.Target,
		Username:  entry.Username,
		SourceIP:  entry.SourceIP,
		Details:   entry.Details,
		Duration:  entry.DurationMs,
		CreatedAt: a.nowFn(),
	}

	if err := a.db.Create(&record).Error; err != nil {
		log.Printf("[ssh-audit] failed to write audit log: %v", err)
		return fmt.Errorf("write audit log: %w", err)
	}

	log.Printf("[ssh-audit] %s target=%s user=%s ip=%s details=%s",
		entry.EventType,
		logutil.SanitizeForLog(entry.Target),
		logutil.SanitizeForLog(entry.Username),
		logutil.SanitizeForLog(entry.SourceIP),
		logutil.SanitizeForLog(entry.Details),
	)
	return nil
}

// QueryOptions specifies filters for retrieving audit logs.
type QueryOptions struct {
	EventType string
	SessionID string
	Target    string
	Username  string
	Since     *time.Time
	Until     *time.Time
	Limit     int
	Offset    int
}

// QueryResult contains audit log entries and pagination metadata.
type QueryResult struct {
	Entries []database.AuditLog `json:"entries"`
	Total   int64               `json:"total"`
	Limit   int                 `json:"limit"`
	Offset  int                 `json:"offset"`
}

// Query retrieves audit log entries matching opts, newest first.
func (a *Auditor) Query(opts QueryOptions) (*QueryResult, error) {
	tx := a.db.Model(&database.AuditLog{})

	if opts.EventType != "" {
		tx = tx.Where("event_type = ?", opts.EventType)
	}
	if opts.SessionID != "" {
		tx = tx.Where("session_id = ?", opts.SessionID)
	}
	if opts.Target != "" {
		tx = tx.Where("target = ?", opts.Target)
	}
	if opts.Username != "" {
		tx = tx.Where("username = ?", opts.Username)
	}
	if opts.Since != nil {
		tx = tx.Where("created_at >= ?", *opts.Since)
	}
	if opts.Until != nil {
		tx = tx.Where("created_at <= ?", *opts.Until)
	}

	var total int64
	if err := tx.Count(&total).Error; err != nil {
		return nil, fmt.Errorf("count audit logs: %w", err)
	}

	if opts.Limit <= 0 {
		opts.Limit = 50
	}
	if opts.Limit > 1000 {
		opts.Limit = 1000
	}
	if opts.Offset < 0 {
		opts.Offset = 0
	}

	var entries []database.AuditLog
	if err := tx.Order("created_at DESC, id DESC").Offset(opts.Offset).Limit(opts.Limit).Find(&entries).Error; err != nil {
		return nil, fmt.Errorf("query audit logs: %w", err)
	}

	return &QueryResult{
		Entries: entries,
		Total:   total,
		Limit:   opts.Limit,
		Offset:  opts.Offset,
	}, nil
}

// PurgeOlderThan removes entries older than days, or older than the
// configured retention when days is 0. Returns the number deleted.
func (a *Auditor) PurgeOlderThan(days int) (int64, error) {
	if days <= 0 {
		days = a.retentionDays
	}
	cutoff := a.nowFn().AddDate(0, 0, -days)
	result := a.db.Where("created_at < ?", cutoff).Delete(&database.AuditLog{})
	if result.Error != nil {
		log.Printf("[ssh-audit] purge failed: %v", result.Error)
		return 0, fmt.Errorf("purge audit logs: %w", result.Error)
	}
	if result.RowsAffected > 0 {
		log.Printf("[ssh-audit] purged %d audit log entries older than %d days", result.RowsAffected, days)
	}
	return result.RowsAffected, nil
}

// SchedulePurge registers the retention purge on c under the given cron
// spec.
func (a *Auditor) SchedulePurge(c *cron.Cron, spec string) (cron.EntryID, error) {
	id, err := c.AddFunc(spec, func() {
		a.PurgeOlderThan(0)
	})
	if err != nil {
		return 0, fmt.Errorf("schedule audit purge %q: %w", spec, err)
	}
	return id, nil
}

// RetentionDays returns the configured retention period.
func (a *Auditor) RetentionDays() int {
	return a.retentionDays
}
