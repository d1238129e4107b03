package marketplace

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func gbp(s string) Amount {
	return NewAmount(decimal.RequireFromString(s), "GBP")
}

func sampleOrder() Order {
	return Order{
		OrderID:       "12-34567-89012",
		CreationDate:  time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC),
		PaymentStatus: PaymentStatusPaid,
		Buyer:         Buyer{Username: "buyer_one"},
		LineItems: []LineItem{
			{LineItemID: "1001", SKU: "ITEM-1", Quantity: 1, Total: gbp("10.00"), ShippingCost: gbp("0"),
				ListingMarketplaceID: "EBAY_GB", PurchaseMarketplaceID: "EBAY_GB"},
			{LineItemID: "1002", SKU: "ITEM-2", Quantity: 1, Total: gbp("25.00"), ShippingCost: gbp("5.00"),
				ListingMarketplaceID: "EBAY_GB", PurchaseMarketplaceID: "EBAY_US"},
		},
		Total:    gbp("35.00"),
		Payments: []Payment{{PaymentMethod: "WALLET", Amount: gbp("35.00")}},
	}
}

func TestAmount(t *testing.T) {
	t.Run("unconverted amount", func(t *testing.T) {
		a := gbp("12.50")
		assert.False(t, a.IsConverted())
		assert.Equal(t, "GBP", a.OriginalCurrency())
		assert.True(t, a.Original().Equal(decimal.RequireFromString("12.50")))
		assert.True(t, a.Rate().Equal(decimal.NewFromInt(1)))
	})

	t.Run("converted amount", func(t *testing.T) {
		orig := decimal.RequireFromString("14.60")
		rate := decimal.RequireFromString("0.856")
		a := Amount{Value: decimal.RequireFromString("12.50"), Currency: "GBP",
			ConvertedFromValue: &orig, ConvertedFromCurrency: "EUR", ExchangeRate: &rate}
		assert.True(t, a.IsConverted())
		assert.Equal(t, "EUR", a.OriginalCurrency())
		assert.True(t, a.Original().Equal(orig))
		assert.True(t, a.Rate().Equal(rate))
	})
}

func TestPaymentStatus(t *testing.T) {
	assert.True(t, PaymentStatusPending.IsIncomplete())
	assert.True(t, PaymentStatusFailed.IsIncomplete())
	assert.False(t, PaymentStatusPaid.IsIncomplete())
	assert.True(t, PaymentStatusPartiallyRefunded.IsRefunded())
	assert.Equal(t, "Partial", PaymentStatusPartiallyRefunded.RefundKind())
	assert.Equal(t, "Full", PaymentStatusFullyRefunded.RefundKind())
	assert.False(t, PaymentStatus("SHIPPED").IsValid())
}

func TestBookingEntry_Multiplier(t *testing.T) {
	assert.True(t, BookingEntryCredit.Multiplier().Equal(decimal.NewFromInt(-1)))
	assert.True(t, BookingEntryDebit.Multiplier().Equal(decimal.NewFromInt(1)))
}

func TestTransaction_SettlementDate(t *testing.T) {
	tx := Transaction{Date: time.Date(2024, 3, 1, 23, 59, 59, 0, time.UTC)}
	assert.Equal(t, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), tx.SettlementDate())
}

func TestOrderSites(t *testing.T) {
	listing, purchase, warnings := OrderSites(sampleOrder())
	assert.Equal(t, "United Kingdom", listing)
	assert.Equal(t, UnknownSite, purchase)
	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0], "purchase")
}

func TestValidator_ValidateOrder(t *testing.T) {
	v := NewValidator()

	t.Run("valid order", func(t *testing.T) {
		o := sampleOrder()
		assert.NoError(t, v.ValidateOrder(&o))
	})

	t.Run("missing buyer", func(t *testing.T) {
		o := sampleOrder()
		o.Buyer.Username = ""
		assert.ErrorIs(t, v.ValidateOrder(&o), ErrUnrecognizedShape)
	})

	t.Run("no line items", func(t *testing.T) {
		o := sampleOrder()
		o.LineItems = nil
		assert.ErrorIs(t, v.ValidateOrder(&o), ErrUnrecognizedShape)
	})

	t.Run("zero quantity", func(t *testing.T) {
		o := sampleOrder()
		o.LineItems[0].Quantity = 0
		assert.ErrorIs(t, v.ValidateOrder(&o), ErrUnrecognizedShape)
	})

	t.Run("unknown payment status", func(t *testing.T) {
		o := sampleOrder()
		o.PaymentStatus = "SHIPPED"
		assert.ErrorIs(t, v.ValidateOrder(&o), ErrUnrecognizedShape)
	})

	t.Run("import charges", func(t *testing.T) {
		o := sampleOrder()
		charges := gbp("3.00")
		o.LineItems[0].ImportCharges = &charges
		assert.ErrorIs(t, v.ValidateOrder(&o), ErrUnrecognizedShape)
	})
}

func TestValidator_ValidateTransaction(t *testing.T) {
	v := NewValidator()
	base := func(tt TransactionType) Transaction {
		return Transaction{
			TransactionID:   "tx-1",
			TransactionType: tt,
			Status:          TransactionStatusPayout,
			Date:            time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
			BookingEntry:    BookingEntryCredit,
			Amount:          gbp("30.00"),
		}
	}

	t.Run("unknown type is a hard error", func(t *testing.T) {
		tx := base("LOYALTY_BONUS")
		err := v.ValidateTransaction(&tx)
		assert.ErrorIs(t, err, ErrUnknownTransactionType)
	})

	t.Run("sale with fee lines needs an order", func(t *testing.T) {
		tx := base(TransactionTypeSale)
		fee := gbp("1.20")
		tx.TotalFeeAmount = &fee
		tx.OrderLineItems = []OrderLineFees{{LineItemID: "1001", Fees: []MarketplaceFee{{FeeType: FeeTypeFinalValue, Amount: fee}}}}
		assert.ErrorIs(t, v.ValidateTransaction(&tx), ErrUnrecognizedShape)

		tx.OrderID = "12-34567-89012"
		assert.NoError(t, v.ValidateTransaction(&tx))
	})

	t.Run("charge with order lines", func(t *testing.T) {
		tx := base(TransactionTypeNonSaleCharge)
		tx.OrderLineItems = []OrderLineFees{{LineItemID: "1001"}}
		assert.ErrorIs(t, v.ValidateTransaction(&tx), ErrUnrecognizedShape)
	})

	t.Run("bad booking entry", func(t *testing.T) {
		tx := base(TransactionTypeTransfer)
		tx.BookingEntry = "SIDEWAYS"
		assert.ErrorIs(t, v.ValidateTransaction(&tx), ErrUnrecognizedShape)
	})

	t.Run("transfer", func(t *testing.T) {
		tx := base(TransactionTypeTransfer)
		assert.NoError(t, v.ValidateTransaction(&tx))
	})
}

func TestValidator_ValidatePayout(t *testing.T) {
	v := NewValidator()
	p := Payout{PayoutID: "p-1", Status: PayoutStatusSucceeded, Date: time.Now(), Amount: gbp("100.00")}
	assert.NoError(t, v.ValidatePayout(&p))

	p.PayoutID = ""
	assert.ErrorIs(t, v.ValidatePayout(&p), ErrUnrecognizedShape)
}
