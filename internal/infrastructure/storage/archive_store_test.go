package storage

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/erp/marketsync/internal/domain/integration"
	"github.com/erp/marketsync/internal/domain/marketplace"
	"github.com/erp/marketsync/internal/infrastructure/config"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// fakeS3 serves the path-style object calls the archive store makes
type fakeS3 struct {
	mu      sync.Mutex
	objects map[string][]byte
	puts    []string
}

func newFakeS3() *fakeS3 {
	return &fakeS3{objects: make(map[string][]byte)}
}

func (f *fakeS3) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	key := strings.TrimPrefix(r.URL.Path, "/")
	switch r.Method {
	case http.MethodPut:
		body, _ := io.ReadAll(r.Body)
		f.objects[key] = body
		f.puts = append(f.puts, key)
		w.WriteHeader(http.StatusOK)
	case http.MethodGet:
		body, ok := f.objects[key]
		if !ok {
			w.Header().Set("Content-Type", "application/xml")
			w.WriteHeader(http.StatusNotFound)
			_, _ = io.WriteString(w, `<?xml version="1.0" encoding="UTF-8"?>`+
				`<Error><Code>NoSuchKey</Code><Message>The specified key does not exist.</Message></Error>`)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(body)
	case http.MethodDelete:
		delete(f.objects, key)
		w.WriteHeader(http.StatusNoContent)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func newTestS3Store(t *testing.T, prefix string) (*S3ArchiveStore, *fakeS3) {
	t.Helper()
	fake := newFakeS3()
	server := httptest.NewServer(fake)
	t.Cleanup(server.Close)

	store, err := NewS3ArchiveStore(&config.StorageConfig{
		Endpoint:     server.URL,
		Bucket:       "archives",
		Prefix:       prefix,
		AccessKey:    "test-key",
		SecretKey:    "test-secret",
		UsePathStyle: true,
	}, WithLogger(zaptest.NewLogger(t)))
	require.NoError(t, err)
	return store, fake
}

func sampleArchive() *integration.DailyArchive {
	date := time.Date(2024, 3, 7, 0, 0, 0, 0, time.UTC)
	return &integration.DailyArchive{
		Date: date,
		Transactions: []integration.ArchivedTransaction{
			{
				Transaction: marketplace.Transaction{
					TransactionID:   "TX-1",
					TransactionType: marketplace.TransactionTypeSale,
					Status:          "PAYOUT",
					Date:            date.Add(10 * time.Hour),
					BookingEntry:    marketplace.BookingEntryCredit,
					Amount:          marketplace.Amount{Value: decimal.RequireFromString("12.50"), Currency: "GBP"},
					OrderID:         "01-11111-22222",
				},
				ItemCodes: []string{"SKU-1"},
			},
		},
		Payouts: []marketplace.Payout{
			{
				PayoutID: "P-1",
				Status:   marketplace.PayoutStatusSucceeded,
				Date:     date.Add(12 * time.Hour),
				Amount:   marketplace.Amount{Value: decimal.RequireFromString("100.00"), Currency: "GBP"},
			},
		},
	}
}

func TestNewS3ArchiveStore_Validation(t *testing.T) {
	tests := []struct {
		name    string
		cfg     *config.StorageConfig
		wantErr string
	}{
		{"nil config", nil, "configuration is required"},
		{"missing bucket", &config.StorageConfig{AccessKey: "k", SecretKey: "s"}, "bucket is required"},
		{"missing access key", &config.StorageConfig{Bucket: "b", SecretKey: "s"}, "access key is required"},
		{"missing secret key", &config.StorageConfig{Bucket: "b", AccessKey: "k"}, "secret key is required"},
		{"endpoint without scheme", &config.StorageConfig{Bucket: "b", AccessKey: "k", SecretKey: "s", Endpoint: "localhost:9000"}, ""},
		{"ssl endpoint without scheme", &config.StorageConfig{Bucket: "b", AccessKey: "k", SecretKey: "s", Endpoint: "minio:9000", UseSSL: true}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, err := NewS3ArchiveStore(tt.cfg)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "b", store.GetBucket())
		})
	}
}

func TestS3ArchiveStore_Key(t *testing.T) {
	date := time.Date(2024, 3, 7, 0, 0, 0, 0, time.UTC)

	withPrefix, _ := newTestS3Store(t, "/ebay/transactions/")
	assert.Equal(t, "ebay/transactions/2024-03-07.json", withPrefix.Key(date))

	bare, _ := newTestS3Store(t, "")
	assert.Equal(t, "2024-03-07.json", bare.Key(date))
}

func TestS3ArchiveStore_PutGetDelete(t *testing.T) {
	ctx := context.Background()
	store, fake := newTestS3Store(t, "ebay")
	archive := sampleArchive()

	require.NoError(t, store.Put(ctx, archive))
	assert.Equal(t, []string{"archives/ebay/2024-03-07.json"}, fake.puts)

	got, err := store.Get(ctx, archive.Date)
	require.NoError(t, err)
	require.Len(t, got.Transactions, 1)
	assert.Equal(t, "TX-1", got.Transactions[0].TransactionID)
	assert.Equal(t, []string{"SKU-1"}, got.Transactions[0].ItemCodes)
	assert.True(t, got.Transactions[0].Amount.Value.Equal(decimal.RequireFromString("12.5")))
	require.Len(t, got.Payouts, 1)
	assert.Equal(t, "P-1", got.Payouts[0].PayoutID)

	require.NoError(t, store.Delete(ctx, archive.Date))
	_, err = store.Get(ctx, archive.Date)
	assert.ErrorIs(t, err, integration.ErrArchiveMissing)
}

func TestS3ArchiveStore_GetMissing(t *testing.T) {
	store, _ := newTestS3Store(t, "")

	_, err := store.Get(context.Background(), time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	assert.ErrorIs(t, err, integration.ErrArchiveMissing)
}

func TestS3ArchiveStore_DeleteMissing(t *testing.T) {
	store, _ := newTestS3Store(t, "")

	err := store.Delete(context.Background(), time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	assert.NoError(t, err)
}

func TestS3ArchiveStore_PutNil(t *testing.T) {
	store, _ := newTestS3Store(t, "")
	assert.Error(t, store.Put(context.Background(), nil))
}

func TestMemoryArchiveStore(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryArchiveStore()
	archive := sampleArchive()

	_, err := store.Get(ctx, archive.Date)
	assert.ErrorIs(t, err, integration.ErrArchiveMissing)

	require.NoError(t, store.Put(ctx, archive))
	assert.Equal(t, []string{"2024-03-07"}, store.Dates())

	got, err := store.Get(ctx, archive.Date)
	require.NoError(t, err)
	assert.Equal(t, archive.Transactions[0].TransactionID, got.Transactions[0].TransactionID)

	// Stored copies are not aliased to the caller's archive
	archive.Transactions[0].TransactionID = "changed"
	got, err = store.Get(ctx, archive.Date)
	require.NoError(t, err)
	assert.Equal(t, "TX-1", got.Transactions[0].TransactionID)

	require.NoError(t, store.Delete(ctx, archive.Date))
	require.NoError(t, store.Delete(ctx, archive.Date))
	assert.Empty(t, store.Dates())
}
