package integration

import (
	"time"

	"github.com/erp/marketsync/internal/domain/accounting"
	"github.com/erp/marketsync/internal/domain/marketplace"
	"github.com/erp/marketsync/internal/domain/territory"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var testOrderDate = time.Date(2024, 3, 4, 10, 30, 0, 0, time.UTC)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func gbp(s string) marketplace.Amount {
	return marketplace.NewAmount(dec(s), "GBP")
}

func testResolver() *territory.Resolver {
	return territory.NewResolver(territory.NewTables("United Kingdom", nil))
}

func testSettings() Settings {
	return DefaultSettings()
}

// seedAccounts creates every ledger account the settings require
func seedAccounts(store *memStore, settings Settings) {
	store.addAccounts(settings.RequiredAccounts()...)
}

// twoLineOrder is a paid UK order: SKU-A at 10.00 plus 5.00 shipping and
// SKU-B at 20.00, all VAT inclusive
func twoLineOrder(orderID string) *marketplace.Order {
	return &marketplace.Order{
		OrderID:       orderID,
		CreationDate:  testOrderDate,
		PaymentStatus: marketplace.PaymentStatusPaid,
		Buyer:         marketplace.Buyer{Username: "jsmith_1"},
		ShipTo: marketplace.ShipTo{
			FullName: "Jane Smith",
			Email:    "jane@example.com",
			Phone:    "07700 900000",
			Address: marketplace.PostalAddress{
				AddressLine1: "1 High Street",
				City:         "London",
				PostalCode:   "sw1a1aa",
				CountryCode:  "GB",
			},
		},
		LineItems: []marketplace.LineItem{
			{
				LineItemID:            "L1",
				LegacyItemID:          "1001",
				SKU:                   "SKU-A",
				Title:                 "Widget",
				Quantity:              1,
				Total:                 gbp("15.00"),
				ShippingCost:          gbp("5.00"),
				ListingMarketplaceID:  "EBAY_GB",
				PurchaseMarketplaceID: "EBAY_GB",
			},
			{
				LineItemID:            "L2",
				LegacyItemID:          "1002",
				SKU:                   "SKU-B",
				Title:                 "Gadget",
				Quantity:              1,
				Total:                 gbp("20.00"),
				ShippingCost:          gbp("0"),
				ListingMarketplaceID:  "EBAY_GB",
				PurchaseMarketplaceID: "EBAY_GB",
			},
		},
		Total:    gbp("35.00"),
		Payments: []marketplace.Payment{{PaymentMethod: "WALLET", Amount: gbp("35.00")}},
	}
}

// saleFor is the SALE transaction of twoLineOrder with 3.50 of fees
func saleFor(orderID string) marketplace.Transaction {
	fee := gbp("3.50")
	return marketplace.Transaction{
		TransactionID:   "SALE-" + orderID,
		TransactionType: marketplace.TransactionTypeSale,
		Status:          marketplace.TransactionStatusPayout,
		Date:            testOrderDate.Add(time.Hour),
		BookingEntry:    marketplace.BookingEntryCredit,
		Amount:          gbp("31.50"),
		TotalFeeAmount:  &fee,
		OrderID:         orderID,
		BuyerUsername:   "jsmith_1",
		OrderLineItems: []marketplace.OrderLineFees{
			{LineItemID: "L1", Fees: []marketplace.MarketplaceFee{
				{FeeType: marketplace.FeeTypeFinalValue, Amount: gbp("1.20")},
				{FeeType: marketplace.FeeTypeFinalValueFixed, Amount: gbp("0.30")},
			}},
			{LineItemID: "L2", Fees: []marketplace.MarketplaceFee{
				{FeeType: marketplace.FeeTypeFinalValue, Amount: gbp("2.00")},
			}},
		},
	}
}

// singleLineOrder is a paid order of one unit of sku with no shipping
func singleLineOrder(orderID, sku, total, countryCode string) *marketplace.Order {
	return &marketplace.Order{
		OrderID:       orderID,
		CreationDate:  testOrderDate,
		PaymentStatus: marketplace.PaymentStatusPaid,
		Buyer:         marketplace.Buyer{Username: "buyer_" + orderID},
		ShipTo: marketplace.ShipTo{
			FullName: "Ola Nordmann",
			Address: marketplace.PostalAddress{
				AddressLine1: "Storgata 1",
				City:         "Oslo",
				PostalCode:   "0155",
				CountryCode:  countryCode,
			},
		},
		LineItems: []marketplace.LineItem{{
			LineItemID:            "L1",
			LegacyItemID:          "2001",
			SKU:                   sku,
			Quantity:              1,
			Total:                 gbp(total),
			ShippingCost:          gbp("0"),
			ListingMarketplaceID:  "EBAY_GB",
			PurchaseMarketplaceID: "EBAY_GB",
		}},
		Total:    gbp(total),
		Payments: []marketplace.Payment{{Amount: gbp(total)}},
	}
}

// simpleSale is a SALE for orderID paying out payout after a single line fee
func simpleSale(orderID, payout, fee string) marketplace.Transaction {
	f := gbp(fee)
	return marketplace.Transaction{
		TransactionID:   "SALE-" + orderID,
		TransactionType: marketplace.TransactionTypeSale,
		Status:          marketplace.TransactionStatusPayout,
		Date:            testOrderDate.Add(time.Hour),
		BookingEntry:    marketplace.BookingEntryCredit,
		Amount:          gbp(payout),
		TotalFeeAmount:  &f,
		OrderID:         orderID,
		OrderLineItems: []marketplace.OrderLineFees{
			{LineItemID: "L1", Fees: []marketplace.MarketplaceFee{{FeeType: marketplace.FeeTypeFinalValue, Amount: f}}},
		},
	}
}

func testCustomer(name, buyerID string) *accounting.Customer {
	c, err := accounting.NewCustomer(name, buyerID, "United Kingdom")
	if err != nil {
		panic(err)
	}
	return c
}

func testAddress(country string) *accounting.Address {
	a := accounting.NewAddress("Jane Smith")
	a.Name = "Jane Smith-Shipping"
	a.Country = country
	a.Email = "jane@example.com"
	return a
}

func newTestInvoiceBuilder(settings Settings) *InvoiceBuilder {
	return NewInvoiceBuilder(settings, testResolver(), zap.NewNop())
}
