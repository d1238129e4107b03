package models

import (
	"time"

	"github.com/erp/marketsync/internal/domain/integration"
	"github.com/google/uuid"
)

// SyncRunModel is the persistence model for the history of one sync run.
type SyncRunModel struct {
	ID         uuid.UUID `gorm:"type:uuid;primary_key"`
	Kind       string    `gorm:"type:varchar(20);not null;index:idx_sync_run_kind_started,priority:1"`
	Status     string    `gorm:"type:varchar(20);not null"`
	StartedAt  time.Time `gorm:"not null;index:idx_sync_run_kind_started,priority:2"`
	FinishedAt *time.Time
	Succeeded  int    `gorm:"not null;default:0"`
	Drafts     int    `gorm:"not null;default:0"`
	Skipped    int    `gorm:"not null;default:0"`
	Failed     int    `gorm:"not null;default:0"`
	Error      string `gorm:"type:text"`
	Entries    []SyncLogEntryModel `gorm:"foreignKey:RunID;references:ID;constraint:OnDelete:CASCADE"`
}

// TableName returns the table name for GORM
func (SyncRunModel) TableName() string {
	return "sync_runs"
}

// SyncLogEntryModel is one audit record of a run
type SyncLogEntryModel struct {
	ID        uint      `gorm:"primaryKey;autoIncrement"`
	RunID     uuid.UUID `gorm:"type:uuid;not null;index"`
	Seq       int       `gorm:"not null"`
	Time      time.Time `gorm:"not null"`
	Level     string    `gorm:"type:varchar(10);not null"`
	Change    string    `gorm:"type:varchar(200);not null"`
	OrderID   string    `gorm:"type:varchar(100);index"`
	Reference string    `gorm:"type:varchar(200)"`
	Detail    string    `gorm:"type:text"`
}

// TableName returns the table name for GORM
func (SyncLogEntryModel) TableName() string {
	return "sync_log_entries"
}

// ToDomain converts the persistence model to a domain SyncRun.
func (m *SyncRunModel) ToDomain() *integration.SyncRun {
	run := &integration.SyncRun{
		ID:         m.ID,
		Kind:       integration.RunKind(m.Kind),
		Status:     integration.SyncStatus(m.Status),
		StartedAt:  m.StartedAt,
		FinishedAt: m.FinishedAt,
		Counts: integration.Counts{
			Succeeded: m.Succeeded,
			Drafts:    m.Drafts,
			Skipped:   m.Skipped,
			Failed:    m.Failed,
		},
		Error: m.Error,
	}
	for _, e := range m.Entries {
		run.Entries = append(run.Entries, integration.LogEntry{
			Time:      e.Time,
			Level:     integration.LogLevel(e.Level),
			Change:    e.Change,
			OrderID:   e.OrderID,
			Reference: e.Reference,
			Detail:    e.Detail,
		})
	}
	return run
}

// SyncRunModelFromDomain creates a new persistence model from a domain SyncRun.
// Entries are mapped separately by SyncLogEntryModelsFromDomain.
func SyncRunModelFromDomain(r *integration.SyncRun) *SyncRunModel {
	return &SyncRunModel{
		ID:         r.ID,
		Kind:       r.Kind.String(),
		Status:     r.Status.String(),
		StartedAt:  r.StartedAt,
		FinishedAt: r.FinishedAt,
		Succeeded:  r.Counts.Succeeded,
		Drafts:     r.Counts.Drafts,
		Skipped:    r.Counts.Skipped,
		Failed:     r.Counts.Failed,
		Error:      r.Error,
	}
}

// SyncLogEntryModelsFromDomain maps a run's entries, numbering them in order
func SyncLogEntryModelsFromDomain(runID uuid.UUID, entries []integration.LogEntry) []SyncLogEntryModel {
	out := make([]SyncLogEntryModel, 0, len(entries))
	for i, e := range entries {
		out = append(out, SyncLogEntryModel{
			RunID:     runID,
			Seq:       i + 1,
			Time:      e.Time,
			Level:     string(e.Level),
			Change:    e.Change,
			OrderID:   e.OrderID,
			Reference: e.Reference,
			Detail:    e.Detail,
		})
	}
	return out
}
