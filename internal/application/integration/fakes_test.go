package integration

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/erp/marketsync/internal/domain/accounting"
	"github.com/erp/marketsync/internal/domain/integration"
	"github.com/erp/marketsync/internal/domain/marketplace"
	"github.com/erp/marketsync/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

// ---------------------------------------------------------------------------
// MockClient
// ---------------------------------------------------------------------------

// MockClient is a mock implementation of marketplace.Client
type MockClient struct {
	mock.Mock
}

func (m *MockClient) FetchOrders(ctx context.Context, q marketplace.OrderQuery) (*marketplace.OrderBatch, error) {
	args := m.Called(ctx, q)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*marketplace.OrderBatch), args.Error(1)
}

func (m *MockClient) FetchTransactions(ctx context.Context, from, to time.Time) ([]marketplace.Transaction, error) {
	args := m.Called(ctx, from, to)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]marketplace.Transaction), args.Error(1)
}

func (m *MockClient) FetchPayouts(ctx context.Context, from, to time.Time) ([]marketplace.Payout, error) {
	args := m.Called(ctx, from, to)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]marketplace.Payout), args.Error(1)
}

func (m *MockClient) GetOrder(ctx context.Context, orderID string) (*marketplace.Order, error) {
	args := m.Called(ctx, orderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*marketplace.Order), args.Error(1)
}

// ---------------------------------------------------------------------------
// memStore
// ---------------------------------------------------------------------------

// memState is the data behind a memStore; Transaction snapshots and restores it
type memState struct {
	customers []accounting.Customer
	addresses []accounting.Address
	items     []accounting.Item
	accounts  []accounting.Account
	orders    []accounting.OrderRecord
	invoices  []accounting.SalesInvoice
	feeDocs   []accounting.FeeDocument
	journals  []accounting.JournalEntry
}

func (s memState) clone() memState {
	return memState{
		customers: slices.Clone(s.customers),
		addresses: slices.Clone(s.addresses),
		items:     slices.Clone(s.items),
		accounts:  slices.Clone(s.accounts),
		orders:    slices.Clone(s.orders),
		invoices:  slices.Clone(s.invoices),
		feeDocs:   slices.Clone(s.feeDocs),
		journals:  slices.Clone(s.journals),
	}
}

// memStore is an in-memory accounting.Store
type memStore struct {
	state *memState
}

func newMemStore() *memStore {
	return &memStore{state: &memState{}}
}

func (s *memStore) addItem(code, description, listingID string) {
	s.state.items = append(s.state.items, accounting.Item{Code: code, Description: description, ListingID: listingID})
}

func (s *memStore) addAccounts(names ...string) {
	for _, n := range names {
		s.state.accounts = append(s.state.accounts, accounting.Account{Name: n})
	}
}

func (s *memStore) Customers() accounting.CustomerRepository       { return memCustomers{s} }
func (s *memStore) Addresses() accounting.AddressRepository        { return memAddresses{s} }
func (s *memStore) Items() accounting.ItemRepository               { return memItems{s} }
func (s *memStore) Accounts() accounting.AccountRepository         { return memAccounts{s} }
func (s *memStore) Orders() accounting.OrderRecordRepository       { return memOrders{s} }
func (s *memStore) Invoices() accounting.SalesInvoiceRepository    { return memInvoices{s} }
func (s *memStore) FeeDocuments() accounting.FeeDocumentRepository { return memFeeDocs{s} }
func (s *memStore) JournalEntries() accounting.JournalEntryRepository {
	return memJournals{s}
}

func (s *memStore) Transaction(ctx context.Context, fn func(tx accounting.Store) error) (err error) {
	snapshot := s.state.clone()
	defer func() {
		if r := recover(); r != nil {
			*s.state = snapshot
			panic(r)
		}
		if err != nil {
			*s.state = snapshot
		}
	}()
	return fn(s)
}

type memCustomers struct{ s *memStore }

func (r memCustomers) FindByID(_ context.Context, id uuid.UUID) (*accounting.Customer, error) {
	for _, c := range r.s.state.customers {
		if c.ID == id {
			return &c, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (r memCustomers) FindByBuyerID(_ context.Context, buyerID string) (*accounting.Customer, error) {
	for _, c := range r.s.state.customers {
		if c.BuyerID == buyerID {
			return &c, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (r memCustomers) ExistsByName(_ context.Context, name string) (bool, error) {
	return slices.ContainsFunc(r.s.state.customers, func(c accounting.Customer) bool { return c.Name == name }), nil
}

func (r memCustomers) FindUnclaimed(_ context.Context, name, postcode string) ([]accounting.Customer, error) {
	var out []accounting.Customer
	for _, c := range r.s.state.customers {
		if c.BuyerID != "" || c.Name != name {
			continue
		}
		for _, a := range r.s.state.addresses {
			if a.Postcode == postcode && a.IsLinkedTo(c.ID) {
				out = append(out, c)
				break
			}
		}
	}
	return out, nil
}

func (r memCustomers) Create(_ context.Context, c *accounting.Customer) error {
	r.s.state.customers = append(r.s.state.customers, *c)
	return nil
}

func (r memCustomers) Update(_ context.Context, c *accounting.Customer) error {
	for i := range r.s.state.customers {
		if r.s.state.customers[i].ID == c.ID {
			r.s.state.customers[i] = *c
			return nil
		}
	}
	return shared.ErrNotFound
}

type memAddresses struct{ s *memStore }

func cloneAddress(a accounting.Address) *accounting.Address {
	a.CustomerIDs = slices.Clone(a.CustomerIDs)
	return &a
}

func (r memAddresses) FindByID(_ context.Context, id uuid.UUID) (*accounting.Address, error) {
	for _, a := range r.s.state.addresses {
		if a.ID == id {
			return cloneAddress(a), nil
		}
	}
	return nil, shared.ErrNotFound
}

func (r memAddresses) FindByMarketplaceID(_ context.Context, id string) (*accounting.Address, error) {
	for _, a := range r.s.state.addresses {
		if a.MarketplaceID == id {
			return cloneAddress(a), nil
		}
	}
	return nil, shared.ErrNotFound
}

func (r memAddresses) FindByKey(_ context.Context, key accounting.AddressKey) ([]accounting.Address, error) {
	var out []accounting.Address
	for _, a := range r.s.state.addresses {
		if a.Key() == key {
			out = append(out, *cloneAddress(a))
		}
	}
	return out, nil
}

func (r memAddresses) ExistsByName(_ context.Context, name string) (bool, error) {
	return slices.ContainsFunc(r.s.state.addresses, func(a accounting.Address) bool { return a.Name == name }), nil
}

func (r memAddresses) Create(_ context.Context, a *accounting.Address) error {
	r.s.state.addresses = append(r.s.state.addresses, *cloneAddress(*a))
	return nil
}

func (r memAddresses) Update(_ context.Context, a *accounting.Address) error {
	for i := range r.s.state.addresses {
		if r.s.state.addresses[i].ID == a.ID {
			r.s.state.addresses[i] = *cloneAddress(*a)
			return nil
		}
	}
	return shared.ErrNotFound
}

type memItems struct{ s *memStore }

func (r memItems) FindByCode(_ context.Context, code string) (*accounting.Item, error) {
	for _, it := range r.s.state.items {
		if it.Code == code {
			return &it, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (r memItems) FindByListingID(_ context.Context, listingID string) ([]accounting.Item, error) {
	var out []accounting.Item
	for _, it := range r.s.state.items {
		if it.ListingID == listingID {
			out = append(out, it)
		}
	}
	return out, nil
}

type memAccounts struct{ s *memStore }

func (r memAccounts) FindByName(_ context.Context, name string) (*accounting.Account, error) {
	for _, a := range r.s.state.accounts {
		if a.Name == name {
			return &a, nil
		}
	}
	return nil, shared.ErrNotFound
}

type memOrders struct{ s *memStore }

func (r memOrders) FindByMarketplaceOrderID(_ context.Context, orderID string) (*accounting.OrderRecord, error) {
	for _, o := range r.s.state.orders {
		if o.MarketplaceOrderID == orderID {
			return &o, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (r memOrders) Create(_ context.Context, o *accounting.OrderRecord) error {
	r.s.state.orders = append(r.s.state.orders, *o)
	return nil
}

type memInvoices struct{ s *memStore }

func (r memInvoices) FindByID(_ context.Context, id uuid.UUID) (*accounting.SalesInvoice, error) {
	for _, inv := range r.s.state.invoices {
		if inv.ID == id {
			return &inv, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (r memInvoices) FindByMarketplaceOrderID(_ context.Context, orderID string) (*accounting.SalesInvoice, error) {
	for _, inv := range r.s.state.invoices {
		if inv.MarketplaceOrderID == orderID && !inv.IsReturn && inv.AmendedFrom == nil {
			return &inv, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (r memInvoices) CountByTitle(_ context.Context, title string) (int64, error) {
	var n int64
	for _, inv := range r.s.state.invoices {
		if inv.Title == title {
			n++
		}
	}
	return n, nil
}

func (r memInvoices) FindAmendments(_ context.Context, id uuid.UUID) ([]accounting.SalesInvoice, error) {
	var out []accounting.SalesInvoice
	for _, inv := range r.s.state.invoices {
		if inv.AmendedFrom != nil && *inv.AmendedFrom == id {
			out = append(out, inv)
		}
	}
	return out, nil
}

func (r memInvoices) FindLiveReturns(_ context.Context, againstID uuid.UUID) ([]accounting.SalesInvoice, error) {
	var out []accounting.SalesInvoice
	for _, inv := range r.s.state.invoices {
		if inv.IsReturn && inv.ReturnAgainst != nil && *inv.ReturnAgainst == againstID && inv.Status != accounting.DocStatusCancelled {
			out = append(out, inv)
		}
	}
	return out, nil
}

func (r memInvoices) FindItemCodes(_ context.Context, orderID, lineItemID, listingID string) ([]string, error) {
	var codes []string
	for _, inv := range r.s.state.invoices {
		if inv.MarketplaceOrderID != orderID || inv.IsReturn || inv.Status == accounting.DocStatusCancelled {
			continue
		}
		for _, it := range inv.Items {
			match := (lineItemID != "" && it.LineItemID == lineItemID) ||
				(lineItemID == "" && listingID != "" && it.ListingID == listingID)
			if match && !slices.Contains(codes, it.ItemCode) {
				codes = append(codes, it.ItemCode)
			}
		}
	}
	return codes, nil
}

func (r memInvoices) Create(_ context.Context, inv *accounting.SalesInvoice) error {
	c := *inv
	c.Items = slices.Clone(inv.Items)
	c.Taxes = slices.Clone(inv.Taxes)
	c.Payments = slices.Clone(inv.Payments)
	r.s.state.invoices = append(r.s.state.invoices, c)
	return nil
}

func (r memInvoices) UpdateStatus(_ context.Context, inv *accounting.SalesInvoice) error {
	for i := range r.s.state.invoices {
		if r.s.state.invoices[i].ID == inv.ID {
			r.s.state.invoices[i].Status = inv.Status
			return nil
		}
	}
	return shared.ErrNotFound
}

type memFeeDocs struct{ s *memStore }

func (r memFeeDocs) IsTransactionLinked(_ context.Context, txID string) (bool, error) {
	for _, d := range r.s.state.feeDocs {
		if slices.ContainsFunc(d.Items, func(it accounting.FeeItem) bool { return it.TransactionID == txID }) {
			return true, nil
		}
	}
	return false, nil
}

func (r memFeeDocs) Create(_ context.Context, d *accounting.FeeDocument) error {
	r.s.state.feeDocs = append(r.s.state.feeDocs, *d)
	return nil
}

type memJournals struct{ s *memStore }

func (r memJournals) Exists(_ context.Context, kind accounting.JournalKind, referenceID string, referenceDate time.Time) (bool, error) {
	return slices.ContainsFunc(r.s.state.journals, func(je accounting.JournalEntry) bool {
		return je.Kind == kind && je.ReferenceID == referenceID && je.ReferenceDate.Equal(referenceDate)
	}), nil
}

func (r memJournals) Create(_ context.Context, je *accounting.JournalEntry) error {
	r.s.state.journals = append(r.s.state.journals, *je)
	return nil
}

// ---------------------------------------------------------------------------
// Run history and lock
// ---------------------------------------------------------------------------

type memRunRepo struct {
	mu   sync.Mutex
	runs []integration.SyncRun
}

func (r *memRunRepo) Save(_ context.Context, run *integration.SyncRun) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runs = append(r.runs, *run)
	return nil
}

func (r *memRunRepo) FindByID(_ context.Context, id uuid.UUID) (*integration.SyncRun, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, run := range r.runs {
		if run.ID == id {
			return &run, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (r *memRunRepo) FindRecent(_ context.Context, kind integration.RunKind, limit int) ([]integration.SyncRun, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []integration.SyncRun
	for i := len(r.runs) - 1; i >= 0 && len(out) < limit; i-- {
		if r.runs[i].Kind == kind {
			out = append(out, r.runs[i])
		}
	}
	return out, nil
}

type memLock struct {
	mu   sync.Mutex
	held map[string]bool
}

func (l *memLock) Acquire(_ context.Context, name string, _ time.Duration) (func(context.Context) error, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held == nil {
		l.held = make(map[string]bool)
	}
	if l.held[name] {
		return nil, integration.ErrLockHeld
	}
	l.held[name] = true
	return func(context.Context) error {
		l.mu.Lock()
		defer l.mu.Unlock()
		delete(l.held, name)
		return nil
	}, nil
}

type memArchive struct {
	objects map[time.Time]*integration.DailyArchive
	deleted []time.Time
}

func (a *memArchive) Put(_ context.Context, archive *integration.DailyArchive) error {
	if a.objects == nil {
		a.objects = make(map[time.Time]*integration.DailyArchive)
	}
	a.objects[archive.Date] = archive
	return nil
}

func (a *memArchive) Get(_ context.Context, date time.Time) (*integration.DailyArchive, error) {
	if obj, ok := a.objects[date]; ok {
		return obj, nil
	}
	return nil, integration.ErrArchiveMissing
}

func (a *memArchive) Delete(_ context.Context, date time.Time) error {
	delete(a.objects, date)
	a.deleted = append(a.deleted, date)
	return nil
}
