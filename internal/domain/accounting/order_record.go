package accounting

import (
	"time"

	"github.com/erp/marketsync/internal/domain/shared"
	"github.com/google/uuid"
)

// OrderRecord marks a marketplace order as seen once its payment completed.
// It is never modified after creation.
type OrderRecord struct {
	shared.BaseEntity
	MarketplaceOrderID string
	BuyerID            string
	CustomerID         uuid.UUID
	CustomerName       string
	AddressID          uuid.UUID
	PaymentStatus      string
	OrderedAt          time.Time
}

// NewOrderRecord creates an order record
func NewOrderRecord(orderID, buyerID string, customer *Customer, address *Address, paymentStatus string, orderedAt time.Time) *OrderRecord {
	return &OrderRecord{
		BaseEntity:         shared.NewBaseEntity(),
		MarketplaceOrderID: orderID,
		BuyerID:            buyerID,
		CustomerID:         customer.ID,
		CustomerName:       customer.Name,
		AddressID:          address.ID,
		PaymentStatus:      paymentStatus,
		OrderedAt:          orderedAt,
	}
}
