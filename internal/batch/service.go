// Package batch scores uploaded tables and produces the downloadable result.
package batch

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"passos-predictor/internal/common/errors"
	"passos-predictor/internal/common/logger"
	"passos-predictor/internal/common/metrics"
	"passos-predictor/internal/common/observability"
	"passos-predictor/internal/history"
	"passos-predictor/internal/inference"
	"passos-predictor/internal/ingest"
	"passos-predictor/internal/models"
	"passos-predictor/internal/notify"
)

// Service runs batch predictions. History, indexing and notification are
// side effects; their failures are logged and never fail the batch.
type Service struct {
	loader   *inference.Loader
	store    history.Store
	indexer  history.Indexer
	notifier notify.Notifier
	obs      *observability.Observability
	logger   logger.Logger
	now      func() time.Time
}

// Option customizes a Service.
type Option func(*Service)

func WithStore(s history.Store) Option {
	return func(svc *Service) { svc.store = s }
}

func WithIndexer(i history.Indexer) Option {
	return func(svc *Service) { svc.indexer = i }
}

func WithNotifier(n notify.Notifier) Option {
	return func(svc *Service) { svc.notifier = n }
}

func WithObservability(o *observability.Observability) Option {
	return func(svc *Service) { svc.obs = o }
}

func NewService(loader *inference.Loader, log logger.Logger, opts ...Option) *Service {
	svc := &Service{
		loader:   loader,
		store:    history.NopStore{},
		indexer:  history.NopIndexer{},
		notifier: notify.Nop{},
		logger:   log.WithFields(map[string]interface{}{"component": "batch"}),
		now:      func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

// Run scores every row of t. Rows keep their original cells; the result is
// stably sorted by descending rounded probability.
func (s *Service) Run(ctx context.Context, fileName string, t *ingest.Table) (*Result, error) {
	ctx, span := s.obs.StartSpan(ctx, "batch.run")
	defer span.End()

	snap := s.loader.Load(ctx)
	pipeline, err := snap.Pipeline()
	if err != nil {
		return nil, err
	}

	rec := ingest.Reconcile(t, snap.Metadata.AllFeatures)
	if len(rec.Missing) > 0 {
		s.logger.Warn("Upload is missing expected columns", map[string]interface{}{
			"file":    fileName,
			"missing": rec.Missing,
		})
	}

	rows, err := ingest.ToRows(t, rec.Use)
	if err != nil {
		return nil, errors.NewFileParseFailedError(fileName, err)
	}

	start := time.Now()
	proba, err := pipeline.PredictProba(rows)
	if err != nil {
		return nil, errors.NewPredictionFailedError(err)
	}
	labels, err := pipeline.Predict(rows)
	if err != nil {
		return nil, errors.NewPredictionFailedError(err)
	}
	metrics.PredictionDuration.WithLabelValues(metrics.ModeBatch).Observe(time.Since(start).Seconds())
	metrics.ObservePredictions(metrics.ModeBatch, labels)
	metrics.BatchRows.Observe(float64(len(rows)))

	result := &Result{
		ID:             uuid.New().String(),
		FileName:       fileName,
		ModelName:      snap.Metadata.Algorithm(),
		InputColumns:   append([]string(nil), t.Columns...),
		MissingColumns: rec.Missing,
		Rows:           make([]Row, t.Len()),
		CreatedAt:      s.now(),
	}
	for i := range t.Rows {
		cells := make([]string, len(t.Columns))
		for j := range t.Columns {
			cells[j] = t.Cell(i, j)
		}
		result.Rows[i] = Row{
			Cells:       cells,
			Probability: Round4(proba[i][1]),
			Label:       labels[i],
			LabelText:   models.LabelText(labels[i]),
		}
	}
	sort.SliceStable(result.Rows, func(a, b int) bool {
		return result.Rows[a].Probability > result.Rows[b].Probability
	})
	result.KPIs = computeKPIs(result.Rows)

	s.logger.Info("Batch scored", map[string]interface{}{
		"batchId": result.ID,
		"file":    fileName,
		"rows":    result.KPIs.Total,
		"yes":     result.KPIs.Yes,
	})

	s.afterRun(ctx, result, rec.Use)
	return result, nil
}

func (s *Service) afterRun(ctx context.Context, r *Result, used []string) {
	if err := s.store.Save(ctx, entries(r, used)); err != nil {
		s.logger.Error("Failed to store batch history", map[string]interface{}{
			"batchId": r.ID,
			"error":   err,
		})
	}

	docs := make([]map[string]interface{}, len(r.Rows))
	for i := range r.Rows {
		docs[i] = r.Document(i)
	}
	if err := s.indexer.IndexBatch(ctx, r.ID, docs); err != nil {
		s.logger.Error("Failed to index batch results", map[string]interface{}{
			"batchId": r.ID,
			"error":   err,
		})
	}

	if err := s.notifier.NotifyBatch(ctx, Summarize(r)); err != nil {
		s.logger.Error("Failed to notify batch completion", map[string]interface{}{
			"batchId": r.ID,
			"error":   err,
		})
	}
}

// entries converts result rows to history entries holding the columns fed to
// the pipeline.
func entries(r *Result, used []string) []history.Entry {
	idx := make(map[string]int, len(r.InputColumns))
	for j, c := range r.InputColumns {
		idx[c] = j
	}
	out := make([]history.Entry, len(r.Rows))
	for i, row := range r.Rows {
		record := make(map[string]interface{}, len(used))
		for _, c := range used {
			if j, ok := idx[c]; ok && row.Cells[j] != "" {
				record[c] = row.Cells[j]
			}
		}
		out[i] = history.Entry{
			ID:          uuid.New().String(),
			BatchID:     r.ID,
			Source:      history.SourceBatch,
			Record:      record,
			Probability: row.Probability,
			Label:       row.Label,
			ModelName:   r.ModelName,
			CreatedAt:   r.CreatedAt,
		}
	}
	return out
}

// Summarize builds the notification summary of a result.
func Summarize(r *Result) notify.Summary {
	return notify.Summary{
		BatchID:   r.ID,
		FileName:  r.FileName,
		ModelName: r.ModelName,
		Total:     r.KPIs.Total,
		Yes:       r.KPIs.Yes,
		No:        r.KPIs.No,
		YesShare:  r.KPIs.YesShare,
		NoShare:   r.KPIs.NoShare,
		Missing:   r.MissingColumns,
		CreatedAt: r.CreatedAt,
	}
}
