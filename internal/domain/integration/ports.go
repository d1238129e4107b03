package integration

import (
	"context"
	"errors"
	"time"

	"github.com/erp/marketsync/internal/domain/marketplace"
)

var (
	ErrLockHeld       = errors.New("integration: run lock is held")
	ErrArchiveMissing = errors.New("integration: archive not found")
)

// ---------------------------------------------------------------------------
// RunLock
// ---------------------------------------------------------------------------

// RunLock keeps two runs of the same kind from overlapping
type RunLock interface {
	// Acquire takes the named lock for at most ttl. It returns ErrLockHeld when
	// another holder has it. The returned release function is safe to call once.
	Acquire(ctx context.Context, name string, ttl time.Duration) (release func(context.Context) error, err error)
}

// ---------------------------------------------------------------------------
// ArchiveStore
// ---------------------------------------------------------------------------

// DailyArchive holds one settlement date's marketplace financial records
type DailyArchive struct {
	Date         time.Time             `json:"date"`
	Transactions []ArchivedTransaction `json:"transactions"`
	Payouts      []marketplace.Payout  `json:"payouts"`
}

// ArchivedTransaction is a transaction together with the item codes it was
// identified against at archive time
type ArchivedTransaction struct {
	marketplace.Transaction
	ItemCodes []string `json:"item_codes"`
}

// IsEmpty returns true if the archive has no records
func (a *DailyArchive) IsEmpty() bool {
	return len(a.Transactions) == 0 && len(a.Payouts) == 0
}

// ArchiveStore keeps one object per settlement date
type ArchiveStore interface {
	Put(ctx context.Context, archive *DailyArchive) error
	// Get returns ErrArchiveMissing when no object exists for the date
	Get(ctx context.Context, date time.Time) (*DailyArchive, error)
	// Delete removes the date's object; a missing object is not an error
	Delete(ctx context.Context, date time.Time) error
}
