package ecommerce

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/erp/marketsync/internal/domain/marketplace"
)

// ---------------------------------------------------------------------------
// Common
// ---------------------------------------------------------------------------

// EbayAmount is the Amount type shared by the Fulfillment and Finances APIs
type EbayAmount struct {
	Value                 decimal.Decimal  `json:"value"`
	Currency              string           `json:"currency"`
	ConvertedFromValue    *decimal.Decimal `json:"convertedFromValue,omitempty"`
	ConvertedFromCurrency string           `json:"convertedFromCurrency,omitempty"`
	ExchangeRate          *decimal.Decimal `json:"exchangeRate,omitempty"`
}

// EbayErrorResponse is the error body returned with 4xx/5xx statuses
type EbayErrorResponse struct {
	Errors []EbayErrorDetail `json:"errors"`
}

// EbayErrorDetail is one entry of an error response
type EbayErrorDetail struct {
	ErrorID     int    `json:"errorId"`
	Domain      string `json:"domain"`
	Category    string `json:"category"`
	Message     string `json:"message"`
	LongMessage string `json:"longMessage"`
}

// ebayPage is the paging envelope shared by every collection response
type ebayPage struct {
	Total  int `json:"total"`
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
}

// ---------------------------------------------------------------------------
// Fulfillment API
// ---------------------------------------------------------------------------

// EbayOrderSearchResponse is the response of GET /sell/fulfillment/v1/order
type EbayOrderSearchResponse struct {
	ebayPage
	Orders   []EbayOrder       `json:"orders"`
	Warnings []EbayErrorDetail `json:"warnings,omitempty"`
}

// EbayOrder is a Fulfillment API order
type EbayOrder struct {
	OrderID                      string                      `json:"orderId"`
	CreationDate                 time.Time                   `json:"creationDate"`
	LastModifiedDate             time.Time                   `json:"lastModifiedDate"`
	OrderPaymentStatus           string                      `json:"orderPaymentStatus"`
	Buyer                        EbayBuyer                   `json:"buyer"`
	BuyerCheckoutNotes           string                      `json:"buyerCheckoutNotes,omitempty"`
	FulfillmentStartInstructions []EbayFulfillmentStartInstr `json:"fulfillmentStartInstructions"`
	LineItems                    []EbayLineItem              `json:"lineItems"`
	PricingSummary               EbayPricingSummary          `json:"pricingSummary"`
	PaymentSummary               EbayPaymentSummary          `json:"paymentSummary"`
}

// EbayBuyer is the buyer of an order
type EbayBuyer struct {
	Username      string             `json:"username"`
	TaxAddress    *EbayTaxAddress    `json:"taxAddress,omitempty"`
	TaxIdentifier *EbayTaxIdentifier `json:"taxIdentifier,omitempty"`
}

// EbayTaxAddress is the buyer's tax residence
type EbayTaxAddress struct {
	City            string `json:"city"`
	StateOrProvince string `json:"stateOrProvince"`
	PostalCode      string `json:"postalCode"`
	CountryCode     string `json:"countryCode"`
}

// EbayTaxIdentifier is a buyer tax registration
type EbayTaxIdentifier struct {
	TaxpayerID        string `json:"taxpayerId"`
	TaxIdentifierType string `json:"taxIdentifierType"`
	IssuingCountry    string `json:"issuingCountry"`
}

// EbayFulfillmentStartInstr carries the shipping step of an order
type EbayFulfillmentStartInstr struct {
	ShippingStep struct {
		ShipTo EbayShipTo `json:"shipTo"`
	} `json:"shippingStep"`
}

// EbayShipTo is the shipping destination
type EbayShipTo struct {
	FullName       string             `json:"fullName"`
	Email          string             `json:"email"`
	PrimaryPhone   EbayPhone          `json:"primaryPhone"`
	ContactAddress EbayContactAddress `json:"contactAddress"`
}

// EbayPhone is a contact phone number
type EbayPhone struct {
	PhoneNumber string `json:"phoneNumber"`
}

// EbayContactAddress is a postal address
type EbayContactAddress struct {
	AddressLine1    string `json:"addressLine1"`
	AddressLine2    string `json:"addressLine2"`
	City            string `json:"city"`
	StateOrProvince string `json:"stateOrProvince"`
	PostalCode      string `json:"postalCode"`
	CountryCode     string `json:"countryCode"`
}

// EbayLineItem is one line of an order
type EbayLineItem struct {
	LineItemID   string     `json:"lineItemId"`
	LegacyItemID string     `json:"legacyItemId"`
	SKU          string     `json:"sku"`
	Title        string     `json:"title"`
	Quantity     int        `json:"quantity"`
	Total        EbayAmount `json:"total"`
	DeliveryCost struct {
		ShippingCost              EbayAmount  `json:"shippingCost"`
		ImportCharges             *EbayAmount `json:"importCharges,omitempty"`
		ShippingIntermediationFee *EbayAmount `json:"shippingIntermediationFee,omitempty"`
	} `json:"deliveryCost"`
	Taxes []struct {
		TaxType string     `json:"taxType"`
		Amount  EbayAmount `json:"amount"`
	} `json:"taxes"`
	EbayCollectAndRemitTaxes []EbayCollectAndRemitTax `json:"ebayCollectAndRemitTaxes"`
	ListingMarketplaceID     string                   `json:"listingMarketplaceId"`
	PurchaseMarketplaceID    string                   `json:"purchaseMarketplaceId"`
	Refunds                  []struct {
		RefundDate time.Time  `json:"refundDate"`
		Amount     EbayAmount `json:"amount"`
	} `json:"refunds"`
}

// EbayCollectAndRemitTax is a tax collected by eBay for the seller
type EbayCollectAndRemitTax struct {
	TaxType       string     `json:"taxType"`
	Amount        EbayAmount `json:"amount"`
	EbayReference *struct {
		Name  string `json:"name"`
		Value string `json:"value"`
	} `json:"ebayReference,omitempty"`
}

// EbayPricingSummary holds the order totals
type EbayPricingSummary struct {
	Total EbayAmount `json:"total"`
}

// EbayPaymentSummary holds payments and refunds
type EbayPaymentSummary struct {
	Payments []struct {
		PaymentMethod string     `json:"paymentMethod"`
		Amount        EbayAmount `json:"amount"`
	} `json:"payments"`
	Refunds []struct {
		RefundID   string     `json:"refundId"`
		RefundDate time.Time  `json:"refundDate"`
		Amount     EbayAmount `json:"amount"`
	} `json:"refunds"`
}

// ---------------------------------------------------------------------------
// Finances API
// ---------------------------------------------------------------------------

// EbayTransactionsResponse is the response of GET /sell/finances/v1/transaction
type EbayTransactionsResponse struct {
	ebayPage
	Transactions []EbayTransaction `json:"transactions"`
}

// EbayTransaction is a Finances API transaction
type EbayTransaction struct {
	TransactionID     string      `json:"transactionId"`
	OrderID           string      `json:"orderId"`
	PayoutID          string      `json:"payoutId"`
	TransactionType   string      `json:"transactionType"`
	TransactionStatus string      `json:"transactionStatus"`
	TransactionDate   time.Time   `json:"transactionDate"`
	BookingEntry      string      `json:"bookingEntry"`
	Amount            EbayAmount  `json:"amount"`
	TotalFeeAmount    *EbayAmount `json:"totalFeeAmount,omitempty"`
	Buyer             *struct {
		Username string `json:"username"`
	} `json:"buyer,omitempty"`
	FeeType         string `json:"feeType"`
	TransactionMemo string `json:"transactionMemo"`
	References      []struct {
		ReferenceID   string `json:"referenceId"`
		ReferenceType string `json:"referenceType"`
	} `json:"references"`
	OrderLineItems []struct {
		LineItemID      string `json:"lineItemId"`
		MarketplaceFees []struct {
			FeeType string     `json:"feeType"`
			Amount  EbayAmount `json:"amount"`
			FeeMemo string     `json:"feeMemo"`
		} `json:"marketplaceFees"`
	} `json:"orderLineItems"`
}

// EbayPayoutsResponse is the response of GET /sell/finances/v1/payout
type EbayPayoutsResponse struct {
	ebayPage
	Payouts []EbayPayout `json:"payouts"`
}

// EbayPayout is a Finances API payout
type EbayPayout struct {
	PayoutID                string     `json:"payoutId"`
	PayoutStatus            string     `json:"payoutStatus"`
	PayoutStatusDescription string     `json:"payoutStatusDescription"`
	PayoutDate              time.Time  `json:"payoutDate"`
	Amount                  EbayAmount `json:"amount"`
	PayoutInstrument        struct {
		InstrumentType        string `json:"instrumentType"`
		Nickname              string `json:"nickname"`
		AccountLastFourDigits string `json:"accountLastFourDigits"`
	} `json:"payoutInstrument"`
}

// ---------------------------------------------------------------------------
// Conversion
// ---------------------------------------------------------------------------

func (a EbayAmount) toDomain() marketplace.Amount {
	return marketplace.Amount{
		Value:                 a.Value,
		Currency:              a.Currency,
		ConvertedFromValue:    a.ConvertedFromValue,
		ConvertedFromCurrency: a.ConvertedFromCurrency,
		ExchangeRate:          a.ExchangeRate,
	}
}

func optionalAmount(a *EbayAmount) *marketplace.Amount {
	if a == nil {
		return nil
	}
	m := a.toDomain()
	return &m
}

// toDomain maps the wire order onto the typed record. Shape checks happen
// afterwards in the validator.
func (o *EbayOrder) toDomain() marketplace.Order {
	order := marketplace.Order{
		OrderID:       o.OrderID,
		CreationDate:  o.CreationDate,
		PaymentStatus: marketplace.PaymentStatus(o.OrderPaymentStatus),
		Buyer:         marketplace.Buyer{Username: o.Buyer.Username},
		Total:         o.PricingSummary.Total.toDomain(),
		CheckoutNotes: o.BuyerCheckoutNotes,
		LineItems:     make([]marketplace.LineItem, 0, len(o.LineItems)),
	}
	if ta := o.Buyer.TaxAddress; ta != nil {
		order.Buyer.TaxAddress = &marketplace.TaxAddress{
			City:            ta.City,
			StateOrProvince: ta.StateOrProvince,
			PostalCode:      ta.PostalCode,
			CountryCode:     ta.CountryCode,
		}
	}
	if ti := o.Buyer.TaxIdentifier; ti != nil {
		order.Buyer.TaxIdentifier = &marketplace.TaxIdentifier{
			Type:           ti.TaxIdentifierType,
			TaxpayerID:     ti.TaxpayerID,
			IssuingCountry: ti.IssuingCountry,
		}
	}
	if len(o.FulfillmentStartInstructions) > 0 {
		st := o.FulfillmentStartInstructions[0].ShippingStep.ShipTo
		order.ShipTo = marketplace.ShipTo{
			FullName: st.FullName,
			Email:    st.Email,
			Phone:    st.PrimaryPhone.PhoneNumber,
			Address: marketplace.PostalAddress{
				AddressLine1:    st.ContactAddress.AddressLine1,
				AddressLine2:    st.ContactAddress.AddressLine2,
				City:            st.ContactAddress.City,
				StateOrProvince: st.ContactAddress.StateOrProvince,
				PostalCode:      st.ContactAddress.PostalCode,
				CountryCode:     st.ContactAddress.CountryCode,
			},
		}
	}

	for _, li := range o.LineItems {
		line := marketplace.LineItem{
			LineItemID:                li.LineItemID,
			LegacyItemID:              li.LegacyItemID,
			SKU:                       li.SKU,
			Title:                     li.Title,
			Quantity:                  li.Quantity,
			Total:                     li.Total.toDomain(),
			ShippingCost:              li.DeliveryCost.ShippingCost.toDomain(),
			ImportCharges:             optionalAmount(li.DeliveryCost.ImportCharges),
			ShippingIntermediationFee: optionalAmount(li.DeliveryCost.ShippingIntermediationFee),
			ListingMarketplaceID:      li.ListingMarketplaceID,
			PurchaseMarketplaceID:     li.PurchaseMarketplaceID,
		}
		for _, t := range li.Taxes {
			line.Taxes = append(line.Taxes, marketplace.LineTax{TaxType: t.TaxType, Amount: t.Amount.toDomain()})
		}
		for _, t := range li.EbayCollectAndRemitTaxes {
			ct := marketplace.CollectedTax{TaxType: t.TaxType, Amount: t.Amount.toDomain()}
			if t.EbayReference != nil {
				ct.Reference = &marketplace.TaxReference{Name: t.EbayReference.Name, Value: t.EbayReference.Value}
			}
			line.CollectedTaxes = append(line.CollectedTaxes, ct)
		}
		for _, r := range li.Refunds {
			line.Refunds = append(line.Refunds, marketplace.LineRefund{RefundDate: r.RefundDate, Amount: r.Amount.toDomain()})
		}
		order.LineItems = append(order.LineItems, line)
	}

	for _, p := range o.PaymentSummary.Payments {
		order.Payments = append(order.Payments, marketplace.Payment{PaymentMethod: p.PaymentMethod, Amount: p.Amount.toDomain()})
	}
	for _, r := range o.PaymentSummary.Refunds {
		order.Refunds = append(order.Refunds, marketplace.Refund{RefundID: r.RefundID, RefundDate: r.RefundDate, Amount: r.Amount.toDomain()})
	}
	return order
}

func (t *EbayTransaction) toDomain() marketplace.Transaction {
	txn := marketplace.Transaction{
		TransactionID:   t.TransactionID,
		TransactionType: marketplace.TransactionType(t.TransactionType),
		Status:          t.TransactionStatus,
		Date:            t.TransactionDate,
		BookingEntry:    marketplace.BookingEntry(t.BookingEntry),
		Amount:          t.Amount.toDomain(),
		TotalFeeAmount:  optionalAmount(t.TotalFeeAmount),
		OrderID:         t.OrderID,
		FeeType:         t.FeeType,
		Memo:            t.TransactionMemo,
		PayoutID:        t.PayoutID,
	}
	if t.Buyer != nil {
		txn.BuyerUsername = t.Buyer.Username
	}
	for _, r := range t.References {
		txn.References = append(txn.References, marketplace.TransactionReference{ReferenceID: r.ReferenceID, ReferenceType: r.ReferenceType})
	}
	for _, li := range t.OrderLineItems {
		lf := marketplace.OrderLineFees{LineItemID: li.LineItemID}
		for _, f := range li.MarketplaceFees {
			lf.Fees = append(lf.Fees, marketplace.MarketplaceFee{FeeType: f.FeeType, Amount: f.Amount.toDomain(), Memo: f.FeeMemo})
		}
		txn.OrderLineItems = append(txn.OrderLineItems, lf)
	}
	return txn
}

func (p *EbayPayout) toDomain() marketplace.Payout {
	return marketplace.Payout{
		PayoutID: p.PayoutID,
		Status:   marketplace.PayoutStatus(p.PayoutStatus),
		Date:     p.PayoutDate,
		Amount:   p.Amount.toDomain(),
		Instrument: marketplace.PayoutInstrument{
			InstrumentType: p.PayoutInstrument.InstrumentType,
			Nickname:       p.PayoutInstrument.Nickname,
			LastFourDigits: p.PayoutInstrument.AccountLastFourDigits,
		},
		StatusDescription: p.PayoutStatusDescription,
	}
}
