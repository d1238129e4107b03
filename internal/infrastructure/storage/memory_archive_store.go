package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/erp/marketsync/internal/domain/integration"
)

// MemoryArchiveStore keeps archives in process memory.
// Use it for development and when object storage is disabled.
type MemoryArchiveStore struct {
	mu      sync.RWMutex
	objects map[string][]byte
}

// NewMemoryArchiveStore creates an empty MemoryArchiveStore
func NewMemoryArchiveStore() *MemoryArchiveStore {
	return &MemoryArchiveStore{objects: make(map[string][]byte)}
}

// Ensure MemoryArchiveStore implements ArchiveStore
var _ integration.ArchiveStore = (*MemoryArchiveStore)(nil)

// Put stores a copy of the archive
func (s *MemoryArchiveStore) Put(_ context.Context, archive *integration.DailyArchive) error {
	if archive == nil {
		return errors.New("archive is required")
	}
	data, err := json.Marshal(archive)
	if err != nil {
		return fmt.Errorf("failed to encode archive: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[archive.Date.Format(archiveDateLayout)] = data
	return nil
}

// Get returns a copy of the stored archive
func (s *MemoryArchiveStore) Get(_ context.Context, date time.Time) (*integration.DailyArchive, error) {
	key := date.Format(archiveDateLayout)

	s.mu.RLock()
	data, ok := s.objects[key]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", integration.ErrArchiveMissing, key)
	}

	var archive integration.DailyArchive
	if err := json.Unmarshal(data, &archive); err != nil {
		return nil, fmt.Errorf("failed to decode archive: %w", err)
	}
	return &archive, nil
}

// Delete removes the archive for date
func (s *MemoryArchiveStore) Delete(_ context.Context, date time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, date.Format(archiveDateLayout))
	return nil
}

// Dates returns the stored dates as YYYY-MM-DD
func (s *MemoryArchiveStore) Dates() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	dates := make([]string, 0, len(s.objects))
	for d := range s.objects {
		dates = append(dates, d)
	}
	return dates
}
