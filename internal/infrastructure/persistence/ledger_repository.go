package persistence

import (
	"context"
	"time"

	"github.com/erp/marketsync/internal/domain/accounting"
	"github.com/erp/marketsync/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// GormFeeDocumentRepository implements accounting.FeeDocumentRepository using GORM
type GormFeeDocumentRepository struct {
	db *gorm.DB
}

// NewGormFeeDocumentRepository creates a new GormFeeDocumentRepository
func NewGormFeeDocumentRepository(db *gorm.DB) *GormFeeDocumentRepository {
	return &GormFeeDocumentRepository{db: db}
}

// IsTransactionLinked checks whether any fee line carries the transaction id
func (r *GormFeeDocumentRepository) IsTransactionLinked(ctx context.Context, transactionID string) (bool, error) {
	return exists(r.db.WithContext(ctx).Model(&models.FeeItemModel{}).Where("transaction_id = ?", transactionID))
}

// Create inserts a fee document with its items
func (r *GormFeeDocumentRepository) Create(ctx context.Context, d *accounting.FeeDocument) error {
	err := r.db.WithContext(ctx).Create(models.FeeDocumentModelFromDomain(d)).Error
	return translateError(err, "fee document %s", d.Name)
}

// GormJournalEntryRepository implements accounting.JournalEntryRepository using GORM
type GormJournalEntryRepository struct {
	db *gorm.DB
}

// NewGormJournalEntryRepository creates a new GormJournalEntryRepository
func NewGormJournalEntryRepository(db *gorm.DB) *GormJournalEntryRepository {
	return &GormJournalEntryRepository{db: db}
}

// Exists checks for an entry of the kind with the same reference id and date
func (r *GormJournalEntryRepository) Exists(ctx context.Context, kind accounting.JournalKind, referenceID string, referenceDate time.Time) (bool, error) {
	return exists(r.db.WithContext(ctx).
		Model(&models.JournalEntryModel{}).
		Where("kind = ? AND reference_id = ? AND reference_date = ?", string(kind), referenceID, referenceDate))
}

// Create inserts a journal entry with its lines
func (r *GormJournalEntryRepository) Create(ctx context.Context, je *accounting.JournalEntry) error {
	err := r.db.WithContext(ctx).Create(models.JournalEntryModelFromDomain(je)).Error
	return translateError(err, "journal entry %s %s", je.Kind, je.ReferenceID)
}
