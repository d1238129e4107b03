package ecommerce

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"maps"
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"time"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/erp/marketsync/internal/domain/marketplace"
	"github.com/erp/marketsync/internal/infrastructure/telemetry"
)

// maxResponseSize is the maximum allowed response size from the eBay APIs (10MB)
const maxResponseSize = 10 * 1024 * 1024

// ebayTimeLayout is the UTC timestamp format of eBay filters
const ebayTimeLayout = "2006-01-02T15:04:05.000Z"

const (
	ordersPath       = "/sell/fulfillment/v1/order"
	transactionsPath = "/sell/finances/v1/transaction"
	payoutsPath      = "/sell/finances/v1/payout"
)

// StatusError is a non-2xx response from the eBay APIs
type StatusError struct {
	StatusCode int
	Errors     []EbayErrorDetail
}

func (e *StatusError) Error() string {
	msg := fmt.Sprintf("%v: HTTP %d", e.Unwrap(), e.StatusCode)
	for _, d := range e.Errors {
		text := d.LongMessage
		if text == "" {
			text = d.Message
		}
		msg += fmt.Sprintf("; error %d: %s", d.ErrorID, text)
	}
	return msg
}

// Unwrap maps the status onto the marketplace error taxonomy
func (e *StatusError) Unwrap() error {
	switch {
	case e.StatusCode == http.StatusTooManyRequests:
		return marketplace.ErrRateLimited
	case e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden:
		return marketplace.ErrAuthFailed
	default:
		return marketplace.ErrRequestFailed
	}
}

// EbayAdapter implements marketplace.Client over the eBay Fulfillment and
// Finances REST APIs
type EbayAdapter struct {
	config     *EbayConfig
	httpClient *http.Client
	validator  *marketplace.Validator
	logger     *zap.Logger
	now        func() time.Time
}

var _ marketplace.Client = (*EbayAdapter)(nil)

// NewEbayAdapter creates a new eBay adapter with the given configuration
func NewEbayAdapter(config *EbayConfig, logger *zap.Logger) (*EbayAdapter, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &EbayAdapter{
		config: config,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
		validator: marketplace.NewValidator(),
		logger:    logger.With(zap.String("platform", "ebay")),
		now:       time.Now,
	}, nil
}

// ---------------------------------------------------------------------------
// Orders
// ---------------------------------------------------------------------------

// FetchOrders returns the orders modified in the last q.Days days. Modification
// rather than creation is filtered on so that later refunds are picked up.
func (a *EbayAdapter) FetchOrders(ctx context.Context, q marketplace.OrderQuery) (*marketplace.OrderBatch, error) {
	query := url.Values{}
	query.Set("fieldGroups", "TAX_BREAKDOWN")
	if q.Days > 0 {
		since := a.now().UTC().AddDate(0, 0, -q.Days)
		query.Set("filter", fmt.Sprintf("lastmodifieddate:[%s..]", since.Format(ebayTimeLayout)))
	}

	raw, err := fetchAll(ctx, a, a.config.BaseURL, ordersPath, query, a.decodeOrders)
	if err != nil {
		return nil, fmt.Errorf("fetch orders: %w", err)
	}

	batch := &marketplace.OrderBatch{Orders: make([]marketplace.Order, 0, len(raw))}
	for i := range raw {
		order := raw[i].toDomain()
		if len(q.Statuses) > 0 && !slices.Contains(q.Statuses, order.PaymentStatus) {
			continue
		}
		if err := a.validator.ValidateOrder(&order); err != nil {
			a.logger.Warn("Rejected order", zap.String("order_id", order.OrderID), zap.Error(err))
			batch.Rejected = append(batch.Rejected, marketplace.RejectedOrder{OrderID: order.OrderID, Err: err})
			continue
		}
		batch.Orders = append(batch.Orders, order)
	}

	a.logger.Info("Fetched orders",
		zap.Int("days", q.Days),
		zap.Int("orders", len(batch.Orders)),
		zap.Int("rejected", len(batch.Rejected)),
	)
	return batch, nil
}

// GetOrder fetches a single order by id
func (a *EbayAdapter) GetOrder(ctx context.Context, orderID string) (*marketplace.Order, error) {
	if orderID == "" {
		return nil, marketplace.ErrOrderNotFound
	}
	query := url.Values{}
	query.Set("fieldGroups", "TAX_BREAKDOWN")

	body, err := a.get(ctx, a.config.BaseURL, ordersPath+"/"+url.PathEscape(orderID), query)
	var se *StatusError
	if errors.As(err, &se) && se.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("%w: %s", marketplace.ErrOrderNotFound, orderID)
	}
	if err != nil {
		return nil, fmt.Errorf("get order %s: %w", orderID, err)
	}

	var raw EbayOrder
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("%w: failed to parse order %s: %v", marketplace.ErrInvalidResponse, orderID, err)
	}
	order := raw.toDomain()
	if err := a.validator.ValidateOrder(&order); err != nil {
		return nil, err
	}
	return &order, nil
}

func (a *EbayAdapter) decodeOrders(body []byte) (ebayPage, []EbayOrder, error) {
	var resp EbayOrderSearchResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return ebayPage{}, nil, fmt.Errorf("%w: failed to parse orders: %v", marketplace.ErrInvalidResponse, err)
	}
	for _, w := range resp.Warnings {
		a.logger.Warn("eBay warning", zap.Int("error_id", w.ErrorID), zap.String("message", w.Message))
	}
	return resp.ebayPage, resp.Orders, nil
}

// ---------------------------------------------------------------------------
// Finances
// ---------------------------------------------------------------------------

// FetchTransactions returns transactions dated within [from, to]. A single
// unknown or malformed transaction fails the whole fetch.
func (a *EbayAdapter) FetchTransactions(ctx context.Context, from, to time.Time) ([]marketplace.Transaction, error) {
	query := url.Values{}
	query.Set("filter", dateRangeFilter("transactionDate", from, to))

	raw, err := fetchAll(ctx, a, a.config.FinancesBaseURL, transactionsPath, query, decodeTransactions)
	if err != nil {
		return nil, fmt.Errorf("fetch transactions: %w", err)
	}

	txns := make([]marketplace.Transaction, 0, len(raw))
	for i := range raw {
		t := raw[i].toDomain()
		if err := a.validator.ValidateTransaction(&t); err != nil {
			return nil, err
		}
		txns = append(txns, t)
	}

	a.logger.Info("Fetched transactions",
		zap.Time("from", from),
		zap.Time("to", to),
		zap.Int("transactions", len(txns)),
	)
	return txns, nil
}

// FetchPayouts returns payouts dated within [from, to]
func (a *EbayAdapter) FetchPayouts(ctx context.Context, from, to time.Time) ([]marketplace.Payout, error) {
	query := url.Values{}
	query.Set("filter", dateRangeFilter("payoutDate", from, to))

	raw, err := fetchAll(ctx, a, a.config.FinancesBaseURL, payoutsPath, query, decodePayouts)
	if err != nil {
		return nil, fmt.Errorf("fetch payouts: %w", err)
	}

	payouts := make([]marketplace.Payout, 0, len(raw))
	for i := range raw {
		p := raw[i].toDomain()
		if err := a.validator.ValidatePayout(&p); err != nil {
			return nil, err
		}
		payouts = append(payouts, p)
	}

	a.logger.Info("Fetched payouts", zap.Int("payouts", len(payouts)))
	return payouts, nil
}

func decodeTransactions(body []byte) (ebayPage, []EbayTransaction, error) {
	var resp EbayTransactionsResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return ebayPage{}, nil, fmt.Errorf("%w: failed to parse transactions: %v", marketplace.ErrInvalidResponse, err)
	}
	return resp.ebayPage, resp.Transactions, nil
}

func decodePayouts(body []byte) (ebayPage, []EbayPayout, error) {
	var resp EbayPayoutsResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return ebayPage{}, nil, fmt.Errorf("%w: failed to parse payouts: %v", marketplace.ErrInvalidResponse, err)
	}
	return resp.ebayPage, resp.Payouts, nil
}

func dateRangeFilter(field string, from, to time.Time) string {
	return fmt.Sprintf("%s:[%s..%s]", field, from.UTC().Format(ebayTimeLayout), to.UTC().Format(ebayTimeLayout))
}

// ---------------------------------------------------------------------------
// Paging
// ---------------------------------------------------------------------------

type pageDecoder[T any] func(body []byte) (ebayPage, []T, error)

// fetchAll reads the first page to learn the total, then reads the remaining
// pages concurrently. Records are returned in page order.
func fetchAll[T any](ctx context.Context, a *EbayAdapter, baseURL, path string, query url.Values, decode pageDecoder[T]) ([]T, error) {
	page, first, err := fetchPage(ctx, a, baseURL, path, query, 0, a.config.PageSize, decode)
	if err != nil {
		return nil, err
	}
	limit := page.Limit
	if limit <= 0 {
		limit = a.config.PageSize
	}
	if page.Total <= len(first) {
		return first, nil
	}

	pages := make([][]T, (page.Total+limit-1)/limit)
	pages[0] = first

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.config.FetchConcurrency)
	for i := 1; i < len(pages); i++ {
		g.Go(func() error {
			_, records, err := fetchPage(gctx, a, baseURL, path, query, i*limit, limit, decode)
			if err != nil {
				return err
			}
			pages[i] = records
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	all := make([]T, 0, page.Total)
	for _, p := range pages {
		all = append(all, p...)
	}
	return all, nil
}

func fetchPage[T any](ctx context.Context, a *EbayAdapter, baseURL, path string, query url.Values, offset, limit int, decode pageDecoder[T]) (ebayPage, []T, error) {
	q := maps.Clone(query)
	q.Set("limit", strconv.Itoa(limit))
	q.Set("offset", strconv.Itoa(offset))

	body, err := a.get(ctx, baseURL, path, q)
	if err != nil {
		return ebayPage{}, nil, err
	}
	a.logger.Debug("Fetched page", zap.String("path", path), zap.Int("offset", offset))
	return decode(body)
}

// ---------------------------------------------------------------------------
// HTTP
// ---------------------------------------------------------------------------

// get performs an authenticated GET under the retry policy. Transport
// failures, 429 and 5xx are retried.
func (a *EbayAdapter) get(ctx context.Context, baseURL, path string, query url.Values) ([]byte, error) {
	target := baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	ctx, span := telemetry.StartSpan(ctx, "ebay.GET "+path,
		telemetry.WithSpanKind(trace.SpanKindClient),
		telemetry.WithAttribute("http.url.path", path),
	)
	defer span.End()

	var body []byte
	err := a.config.Retry.Do(ctx, func(ctx context.Context) error {
		var err error
		body, err = a.doRequest(ctx, target)
		if err != nil && IsRetryable(err) {
			a.logger.Warn("eBay request failed, retrying", zap.String("path", path), zap.Error(err))
		}
		return err
	})
	if err != nil {
		telemetry.RecordError(span, err)
	}
	return body, err
}

func (a *EbayAdapter) doRequest(ctx context.Context, target string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("ebay: failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+a.config.Token)
	req.Header.Set("Accept", "application/json")
	if a.config.MarketplaceID != "" {
		req.Header.Set("X-EBAY-C-MARKETPLACE-ID", a.config.MarketplaceID)
	}

	resp, err := a.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%w: %v", marketplace.ErrRequestFailed, err)
		}
		return nil, retryable(fmt.Errorf("%w: %v", marketplace.ErrRequestFailed, err))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, retryable(fmt.Errorf("%w: failed to read response: %v", marketplace.ErrRequestFailed, err))
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return body, nil
	}

	se := &StatusError{StatusCode: resp.StatusCode}
	var detail EbayErrorResponse
	if json.Unmarshal(body, &detail) == nil {
		se.Errors = detail.Errors
	}
	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		return nil, retryable(se)
	}
	return nil, se
}
