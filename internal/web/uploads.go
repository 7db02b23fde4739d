package web

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"passos-predictor/internal/batch"
	"passos-predictor/internal/common/errors"
	"passos-predictor/internal/ingest"
)

// Upload is a parsed file waiting for, or holding, its batch prediction.
type Upload struct {
	ID        string
	FileName  string
	Table     *ingest.Table
	Result    *batch.Result
	CreatedAt time.Time
}

// UploadStore keeps uploads in memory for a limited time.
type UploadStore struct {
	mu      sync.RWMutex
	uploads map[string]Upload
	ttl     time.Duration
	now     func() time.Time
}

func NewUploadStore(ttl time.Duration) *UploadStore {
	return &UploadStore{
		uploads: make(map[string]Upload),
		ttl:     ttl,
		now:     time.Now,
	}
}

// Put stores a parsed table under a new id.
func (s *UploadStore) Put(fileName string, t *ingest.Table) Upload {
	up := Upload{
		ID:        uuid.New().String(),
		FileName:  fileName,
		Table:     t,
		CreatedAt: s.now(),
	}
	s.mu.Lock()
	s.uploads[up.ID] = up
	s.mu.Unlock()
	return up
}

// Get returns the upload, or UPLOAD_NOT_FOUND when unknown or expired.
func (s *UploadStore) Get(id string) (Upload, error) {
	s.mu.RLock()
	up, ok := s.uploads[id]
	s.mu.RUnlock()

	if !ok || s.expired(up) {
		return Upload{}, errors.NewUploadNotFoundError(id)
	}
	return up, nil
}

// SetResult attaches the batch result to an upload.
func (s *UploadStore) SetResult(id string, r *batch.Result) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	up, ok := s.uploads[id]
	if !ok || s.expired(up) {
		return errors.NewUploadNotFoundError(id)
	}
	up.Result = r
	s.uploads[id] = up
	return nil
}

// Sweep drops expired uploads and returns how many were removed.
func (s *UploadStore) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, up := range s.uploads {
		if s.expired(up) {
			delete(s.uploads, id)
			removed++
		}
	}
	return removed
}

// Len is the number of stored uploads, expired ones included.
func (s *UploadStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.uploads)
}

// Run sweeps every interval until ctx is done.
func (s *UploadStore) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep()
		}
	}
}

func (s *UploadStore) expired(up Upload) bool {
	return s.ttl > 0 && s.now().Sub(up.CreatedAt) > s.ttl
}
