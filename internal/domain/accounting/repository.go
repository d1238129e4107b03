package accounting

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Single-record lookups return shared.ErrNotFound when no record matches; list
// lookups return an empty slice. Creates return shared.ErrAlreadyExists when a
// unique name or external id is taken.

// CustomerRepository persists customers
type CustomerRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*Customer, error)
	FindByBuyerID(ctx context.Context, buyerID string) (*Customer, error)
	ExistsByName(ctx context.Context, name string) (bool, error)
	// FindUnclaimed returns customers without a buyer id named name and linked
	// to an address with the given postcode
	FindUnclaimed(ctx context.Context, name, postcode string) ([]Customer, error)
	Create(ctx context.Context, c *Customer) error
	Update(ctx context.Context, c *Customer) error
}

// AddressRepository persists addresses and their customer links
type AddressRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*Address, error)
	FindByMarketplaceID(ctx context.Context, marketplaceID string) (*Address, error)
	FindByKey(ctx context.Context, key AddressKey) ([]Address, error)
	ExistsByName(ctx context.Context, name string) (bool, error)
	Create(ctx context.Context, a *Address) error
	Update(ctx context.Context, a *Address) error
}

// ItemRepository reads the item catalog
type ItemRepository interface {
	FindByCode(ctx context.Context, code string) (*Item, error)
	FindByListingID(ctx context.Context, listingID string) ([]Item, error)
}

// AccountRepository reads the chart of accounts
type AccountRepository interface {
	FindByName(ctx context.Context, name string) (*Account, error)
}

// OrderRecordRepository persists order records
type OrderRecordRepository interface {
	FindByMarketplaceOrderID(ctx context.Context, orderID string) (*OrderRecord, error)
	Create(ctx context.Context, o *OrderRecord) error
}

// SalesInvoiceRepository persists sales invoices and returns
type SalesInvoiceRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*SalesInvoice, error)
	// FindByMarketplaceOrderID returns the original (non-return) invoice of an order
	FindByMarketplaceOrderID(ctx context.Context, orderID string) (*SalesInvoice, error)
	CountByTitle(ctx context.Context, title string) (int64, error)
	FindAmendments(ctx context.Context, id uuid.UUID) ([]SalesInvoice, error)
	// FindLiveReturns returns the non-cancelled returns against an invoice
	FindLiveReturns(ctx context.Context, againstID uuid.UUID) ([]SalesInvoice, error)
	// FindItemCodes returns the distinct item codes invoiced for an order line,
	// matched by line item id or, when lineItemID is empty, by listing id
	FindItemCodes(ctx context.Context, orderID, lineItemID, listingID string) ([]string, error)
	Create(ctx context.Context, inv *SalesInvoice) error
	UpdateStatus(ctx context.Context, inv *SalesInvoice) error
}

// FeeDocumentRepository persists fee documents
type FeeDocumentRepository interface {
	// IsTransactionLinked returns true if any fee item carries the transaction id
	IsTransactionLinked(ctx context.Context, transactionID string) (bool, error)
	Create(ctx context.Context, d *FeeDocument) error
}

// JournalEntryRepository persists journal entries
type JournalEntryRepository interface {
	Exists(ctx context.Context, kind JournalKind, referenceID string, referenceDate time.Time) (bool, error)
	Create(ctx context.Context, je *JournalEntry) error
}

// Store groups the repositories behind one unit of work.
type Store interface {
	Customers() CustomerRepository
	Addresses() AddressRepository
	Items() ItemRepository
	Accounts() AccountRepository
	Orders() OrderRecordRepository
	Invoices() SalesInvoiceRepository
	FeeDocuments() FeeDocumentRepository
	JournalEntries() JournalEntryRepository

	// Transaction runs fn against a transactional Store. Any error or panic
	// from fn rolls back every write made through it.
	Transaction(ctx context.Context, fn func(tx Store) error) error
}
