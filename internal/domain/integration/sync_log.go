package integration

import (
	"slices"
	"sync"
	"time"
)

// LogLevel is the severity of a sync log entry
type LogLevel string

const (
	LogLevelInfo    LogLevel = "INFO"
	LogLevelWarning LogLevel = "WARNING"
	LogLevelError   LogLevel = "ERROR"
)

// LogEntry is one audit record of a run
type LogEntry struct {
	Time  time.Time
	Level LogLevel
	// Change names what happened, e.g. "Adding Sales Invoice" or "Sales Invoice already exists"
	Change string
	// OrderID is the marketplace order id, if any
	OrderID string
	// Reference is the ERP document name or marketplace id the entry refers to
	Reference string
	Detail    string
}

// SyncLog is the append-only log of one run. It is safe for concurrent use.
type SyncLog struct {
	mu      sync.Mutex
	entries []LogEntry
	now     func() time.Time
}

// NewSyncLog creates an empty log
func NewSyncLog() *SyncLog {
	return &SyncLog{now: time.Now}
}

// Add appends an entry, stamping its time when unset
func (l *SyncLog) Add(e LogEntry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if e.Time.IsZero() {
		e.Time = l.now()
	}
	if e.Level == "" {
		e.Level = LogLevelInfo
	}
	l.entries = append(l.entries, e)
}

// Info appends an informational change
func (l *SyncLog) Info(change, orderID, reference string) {
	l.Add(LogEntry{Level: LogLevelInfo, Change: change, OrderID: orderID, Reference: reference})
}

// Warn appends a warning
func (l *SyncLog) Warn(change, orderID, detail string) {
	l.Add(LogEntry{Level: LogLevelWarning, Change: change, OrderID: orderID, Detail: detail})
}

// Error appends an error entry
func (l *SyncLog) Error(change, orderID, detail string) {
	l.Add(LogEntry{Level: LogLevelError, Change: change, OrderID: orderID, Detail: detail})
}

// Entries returns a copy of the entries in insertion order
func (l *SyncLog) Entries() []LogEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	return slices.Clone(l.entries)
}

// Len returns the number of entries
func (l *SyncLog) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// Changes returns the Change field of every entry
func (l *SyncLog) Changes() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	changes := make([]string, len(l.entries))
	for i, e := range l.entries {
		changes[i] = e.Change
	}
	return changes
}
