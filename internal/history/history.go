// Package history persists predictions: a Postgres log of every scored
// record, a Redis cache for single-record predictions and an Elasticsearch
// index of batch results. Each backend is optional.
package history

import (
	"context"
	"time"

	"passos-predictor/internal/models"
)

// Prediction sources.
const (
	SourceIndividual = "individual"
	SourceBatch      = "batch"
	SourceAPI        = "api"
	SourceWorker     = "worker"
)

// Entry is one scored record.
type Entry struct {
	ID          string                 `json:"id"`
	BatchID     string                 `json:"batchId,omitempty"`
	Source      string                 `json:"source"`
	Record      map[string]interface{} `json:"record"`
	Probability float64                `json:"probability"`
	Label       int                    `json:"label"`
	ModelName   string                 `json:"modelName,omitempty"`
	CreatedAt   time.Time              `json:"createdAt"`
}

// LabelText is the localized label.
func (e Entry) LabelText() string { return models.LabelText(e.Label) }

// Store is the durable prediction log.
type Store interface {
	Save(ctx context.Context, entries []Entry) error
	Recent(ctx context.Context, limit int) ([]Entry, error)
}

// Cache memoizes single-record predictions.
type Cache interface {
	Get(ctx context.Context, rec models.StudentRecord) (*models.Prediction, bool, error)
	Set(ctx context.Context, rec models.StudentRecord, p *models.Prediction) error
}

// Indexer makes batch results searchable.
type Indexer interface {
	IndexBatch(ctx context.Context, batchID string, docs []map[string]interface{}) error
}

// NopStore discards entries.
type NopStore struct{}

func (NopStore) Save(context.Context, []Entry) error          { return nil }
func (NopStore) Recent(context.Context, int) ([]Entry, error) { return nil, nil }

// NopCache never hits.
type NopCache struct{}

func (NopCache) Get(context.Context, models.StudentRecord) (*models.Prediction, bool, error) {
	return nil, false, nil
}
func (NopCache) Set(context.Context, models.StudentRecord, *models.Prediction) error { return nil }

// NopIndexer discards documents.
type NopIndexer struct{}

func (NopIndexer) IndexBatch(context.Context, string, []map[string]interface{}) error { return nil }
