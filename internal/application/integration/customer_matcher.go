package integration

import (
	"context"
	"errors"
	"fmt"

	"github.com/erp/marketsync/internal/domain/accounting"
	"github.com/erp/marketsync/internal/domain/integration"
	"github.com/erp/marketsync/internal/domain/shared"
	"github.com/erp/marketsync/internal/domain/territory"
	"go.uber.org/zap"
)

// CustomerMatcher finds or creates the customer and shipping address of an order
type CustomerMatcher struct {
	resolver      *territory.Resolver
	maxDuplicates int
	logger        *zap.Logger
}

// NewCustomerMatcher creates a CustomerMatcher
func NewCustomerMatcher(resolver *territory.Resolver, maxDuplicates int, logger *zap.Logger) *CustomerMatcher {
	return &CustomerMatcher{
		resolver:      resolver,
		maxDuplicates: maxDuplicates,
		logger:        logger,
	}
}

// Resolve matches or creates the customer and address in their own
// transaction, so identity records survive a later order failure.
func (m *CustomerMatcher) Resolve(
	ctx context.Context,
	store accounting.Store,
	cust CustomerDraft,
	addr AddressDraft,
	log *integration.SyncLog,
) (*accounting.Customer, *accounting.Address, error) {
	var (
		customer *accounting.Customer
		address  *accounting.Address
	)
	err := store.Transaction(ctx, func(tx accounting.Store) error {
		var err error
		customer, err = m.MatchOrCreateCustomer(ctx, tx, cust, log)
		if err != nil {
			return err
		}
		address, err = m.MatchOrCreateAddress(ctx, tx, addr, customer, log)
		return err
	})
	if err != nil {
		return nil, nil, err
	}
	return customer, address, nil
}

// MatchOrCreateCustomer returns the customer for a buyer. It matches on buyer
// id first, then adopts an unclaimed customer with the same name and postcode,
// and creates a customer otherwise.
func (m *CustomerMatcher) MatchOrCreateCustomer(
	ctx context.Context,
	store accounting.Store,
	draft CustomerDraft,
	log *integration.SyncLog,
) (*accounting.Customer, error) {
	repo := store.Customers()

	customer, err := repo.FindByBuyerID(ctx, draft.BuyerID)
	switch {
	case err == nil:
		log.Info("User already exists", "", customer.Name)
		if customer.HasPlaceholderName() && draft.ShippingName != "" && draft.Name != customer.BuyerID {
			if err := m.rename(ctx, repo, customer, draft.Name, log); err != nil {
				return nil, err
			}
		}
		return customer, nil
	case !errors.Is(err, shared.ErrNotFound):
		return nil, err
	}

	if draft.ShippingName != "" && draft.Postcode != "" {
		candidates, err := repo.FindUnclaimed(ctx, draft.ShippingName, draft.Postcode)
		if err != nil {
			return nil, err
		}
		if len(candidates) > 0 {
			customer = &candidates[0]
			if err := customer.AdoptBuyerID(draft.BuyerID); err != nil {
				return nil, err
			}
			if err := repo.Update(ctx, customer); err != nil {
				return nil, err
			}
			m.logger.Info("Customer adopted buyer id",
				zap.String("customer", customer.Name),
				zap.String("buyer_id", draft.BuyerID))
			log.Info("Linking existing customer", "", customer.Name)
			return customer, nil
		}
	}

	name, err := uniqueName(ctx, draft.Name, m.maxDuplicates, repo.ExistsByName)
	if err != nil {
		return nil, err
	}
	customer, err = accounting.NewCustomer(name, draft.BuyerID, m.resolver.TerritoryName(draft.Territory))
	if err != nil {
		return nil, err
	}
	customer.TaxID = draft.TaxID
	customer.Details = draft.Details
	if err := repo.Create(ctx, customer); err != nil {
		return nil, err
	}
	m.logger.Info("Adding a user", zap.String("buyer_id", draft.BuyerID), zap.String("customer", name))
	log.Info("Adding a user", "", name)
	return customer, nil
}

func (m *CustomerMatcher) rename(
	ctx context.Context,
	repo accounting.CustomerRepository,
	customer *accounting.Customer,
	base string,
	log *integration.SyncLog,
) error {
	name, err := uniqueName(ctx, base, m.maxDuplicates, repo.ExistsByName)
	if err != nil {
		return err
	}
	old := customer.Name
	if err := customer.Rename(name); err != nil {
		return err
	}
	if err := repo.Update(ctx, customer); err != nil {
		return err
	}
	log.Add(integration.LogEntry{Change: "Renaming customer", Reference: name, Detail: "was " + old})
	return nil
}

// MatchOrCreateAddress returns the shipping address for an order. It matches
// on marketplace id first, then on the canonical address tuple, and creates
// an address otherwise. The customer is linked and its territory follows the
// address country.
func (m *CustomerMatcher) MatchOrCreateAddress(
	ctx context.Context,
	store accounting.Store,
	draft AddressDraft,
	customer *accounting.Customer,
	log *integration.SyncLog,
) (*accounting.Address, error) {
	repo := store.Addresses()

	address, err := repo.FindByMarketplaceID(ctx, draft.MarketplaceID)
	if err == nil {
		return address, nil
	}
	if !errors.Is(err, shared.ErrNotFound) {
		return nil, err
	}

	key := accounting.AddressKey{Line1: draft.Line1, Line2: draft.Line2, City: draft.City, Postcode: draft.Postcode}
	matches, err := repo.FindByKey(ctx, key)
	if err != nil {
		return nil, err
	}
	if len(matches) > 0 {
		address = &matches[0]
		changed := address.AttachMarketplaceID(draft.MarketplaceID)
		if address.LinkCustomer(customer.ID) {
			changed = true
		}
		if changed {
			if err := repo.Update(ctx, address); err != nil {
				return nil, err
			}
		}
		if err := m.updateTerritory(ctx, store, customer, address.Country); err != nil {
			return nil, err
		}
		return address, nil
	}

	address = accounting.NewAddress(draft.Title)
	address.MarketplaceID = draft.MarketplaceID
	address.Line1 = draft.Line1
	address.Line2 = draft.Line2
	address.City = draft.City
	address.State = draft.State
	address.Postcode = draft.Postcode
	address.Country = draft.Country
	address.Phone = draft.Phone
	address.Email = draft.Email
	address.LinkCustomer(customer.ID)

	name, err := uniqueName(ctx, address.BaseName(), m.maxDuplicates, repo.ExistsByName)
	if err != nil {
		return nil, err
	}
	address.Name = name
	if err := repo.Create(ctx, address); err != nil {
		return nil, err
	}
	log.Info("Adding address", "", address.Name)

	if err := m.updateTerritory(ctx, store, customer, address.Country); err != nil {
		return nil, err
	}
	return address, nil
}

func (m *CustomerMatcher) updateTerritory(ctx context.Context, store accounting.Store, customer *accounting.Customer, country string) error {
	name := m.resolver.TerritoryName(m.resolver.Territory(country))
	if !customer.SetTerritory(name) {
		return nil
	}
	return store.Customers().Update(ctx, customer)
}

// uniqueName returns the first of base, base-1 .. base-max that is not taken
func uniqueName(ctx context.Context, base string, max int, exists func(context.Context, string) (bool, error)) (string, error) {
	for _, name := range accounting.DuplicateNames(base, max) {
		taken, err := exists(ctx, name)
		if err != nil {
			return "", err
		}
		if !taken {
			return name, nil
		}
	}
	return "", fmt.Errorf("%w: %s", accounting.ErrTooManyDuplicates, base)
}
