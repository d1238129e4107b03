package persistence

import (
	"context"
	"errors"
	"fmt"

	"github.com/erp/marketsync/internal/domain/accounting"
	"github.com/erp/marketsync/internal/domain/shared"
	"gorm.io/gorm"
)

// GormStore implements accounting.Store on one *gorm.DB. Inside Transaction
// the repositories share the transaction handle.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore creates a new GormStore
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

// Customers returns the customer repository
func (s *GormStore) Customers() accounting.CustomerRepository {
	return NewGormCustomerRepository(s.db)
}

// Addresses returns the address repository
func (s *GormStore) Addresses() accounting.AddressRepository {
	return NewGormAddressRepository(s.db)
}

// Items returns the item repository
func (s *GormStore) Items() accounting.ItemRepository {
	return NewGormItemRepository(s.db)
}

// Accounts returns the account repository
func (s *GormStore) Accounts() accounting.AccountRepository {
	return NewGormAccountRepository(s.db)
}

// Orders returns the order record repository
func (s *GormStore) Orders() accounting.OrderRecordRepository {
	return NewGormOrderRecordRepository(s.db)
}

// Invoices returns the sales invoice repository
func (s *GormStore) Invoices() accounting.SalesInvoiceRepository {
	return NewGormSalesInvoiceRepository(s.db)
}

// FeeDocuments returns the fee document repository
func (s *GormStore) FeeDocuments() accounting.FeeDocumentRepository {
	return NewGormFeeDocumentRepository(s.db)
}

// JournalEntries returns the journal entry repository
func (s *GormStore) JournalEntries() accounting.JournalEntryRepository {
	return NewGormJournalEntryRepository(s.db)
}

// Transaction runs fn in a database transaction. A nested call opens a savepoint.
func (s *GormStore) Transaction(ctx context.Context, fn func(tx accounting.Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(NewGormStore(tx))
	})
}

// translateError maps GORM errors to domain errors
func translateError(err error, format string, args ...any) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return shared.ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return fmt.Errorf("%w: "+format, append([]any{shared.ErrAlreadyExists}, args...)...)
	default:
		return err
	}
}

// exists runs a COUNT query and reports whether any row matched
func exists(query *gorm.DB) (bool, error) {
	var count int64
	if err := query.Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}
