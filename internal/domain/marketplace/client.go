package marketplace

import (
	"context"
	"errors"
	"time"
)

var (
	ErrOrderNotFound          = errors.New("marketplace: order not found")
	ErrUnknownTransactionType = errors.New("marketplace: unknown transaction type")
	ErrUnrecognizedShape      = errors.New("marketplace: unrecognized record shape")
	ErrRequestFailed          = errors.New("marketplace: request failed")
	ErrInvalidResponse        = errors.New("marketplace: invalid response")
	ErrAuthFailed             = errors.New("marketplace: authentication failed")
	ErrRateLimited            = errors.New("marketplace: rate limited")
)

// OrderQuery selects orders modified in the last Days days with the given
// payment statuses. No statuses means all statuses.
type OrderQuery struct {
	Days     int
	Statuses []PaymentStatus
}

// RejectedOrder is an order the ingestion boundary refused to type.
type RejectedOrder struct {
	OrderID string
	Err     error
}

// OrderBatch is the result of an order fetch. Rejected orders are reported
// separately so one malformed order does not hide the rest of the batch.
type OrderBatch struct {
	Orders   []Order
	Rejected []RejectedOrder
}

// Client is the port to the marketplace selling APIs.
//
// Implementations validate every record before returning it. A transaction of a
// type the reconciler does not understand fails the whole fetch with
// ErrUnknownTransactionType.
type Client interface {
	// FetchOrders returns orders in fetch (creation) order
	FetchOrders(ctx context.Context, q OrderQuery) (*OrderBatch, error)

	// FetchTransactions returns transactions dated within [from, to]
	FetchTransactions(ctx context.Context, from, to time.Time) ([]Transaction, error)

	// FetchPayouts returns payouts dated within [from, to]
	FetchPayouts(ctx context.Context, from, to time.Time) ([]Payout, error)

	// GetOrder fetches a single order by id
	GetOrder(ctx context.Context, orderID string) (*Order, error)
}
