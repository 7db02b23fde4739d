// Package predictor scores one student record end to end: validation,
// cache, pipeline, recommendations and history.
package predictor

import (
	"context"
	"time"

	"github.com/google/uuid"

	"passos-predictor/internal/common/errors"
	"passos-predictor/internal/common/logger"
	"passos-predictor/internal/common/metrics"
	"passos-predictor/internal/common/observability"
	"passos-predictor/internal/common/validation"
	"passos-predictor/internal/history"
	"passos-predictor/internal/inference"
	"passos-predictor/internal/models"
	"passos-predictor/internal/recommend"
)

// Outcome is everything the result panel shows for one record.
type Outcome struct {
	Record     models.StudentRecord `json:"record"`
	Prediction models.Prediction    `json:"prediction"`
	Verdict    recommend.Verdict    `json:"verdict"`
	Advice     recommend.Advice     `json:"advice"`
	Cards      []recommend.Card     `json:"cards"`
	Cached     bool                 `json:"cached"`
}

type Service struct {
	loader *inference.Loader
	cache  history.Cache
	store  history.Store
	obs    *observability.Observability
	logger logger.Logger
	now    func() time.Time
}

type Option func(*Service)

func WithCache(c history.Cache) Option {
	return func(s *Service) { s.cache = c }
}

func WithStore(st history.Store) Option {
	return func(s *Service) { s.store = st }
}

func WithObservability(o *observability.Observability) Option {
	return func(s *Service) { s.obs = o }
}

func NewService(loader *inference.Loader, log logger.Logger, opts ...Option) *Service {
	s := &Service{
		loader: loader,
		cache:  history.NopCache{},
		store:  history.NopStore{},
		logger: log.WithFields(map[string]interface{}{"component": "predictor"}),
		now:    func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Loader exposes the pipeline loader, for the model info panel.
func (s *Service) Loader() *inference.Loader { return s.loader }

// Predict scores rec. source tags the history entry and the metrics.
func (s *Service) Predict(ctx context.Context, rec models.StudentRecord, source string) (*Outcome, error) {
	ctx, span := s.obs.StartSpan(ctx, "predictor.predict")
	defer span.End()

	snap := s.loader.Load(ctx)
	pipeline, err := snap.Pipeline()
	if err != nil {
		return nil, err
	}

	if res := validation.ValidateRecord(rec); !res.Valid {
		return nil, errors.NewInvalidStudentRecordError(res.Error()).
			WithMetadata("fields", res.Errors)
	}

	pred, cached := s.lookup(ctx, rec)
	if !cached {
		pred, err = s.score(pipeline, snap, rec, source)
		if err != nil {
			return nil, err
		}
		if err := s.cache.Set(ctx, rec, pred); err != nil {
			s.logger.Warn("Failed to cache prediction", map[string]interface{}{"error": err})
		}
	}

	entry := history.Entry{
		ID:          uuid.New().String(),
		Source:      source,
		Record:      rec.Document(),
		Probability: pred.Probability,
		Label:       pred.Label,
		ModelName:   pred.ModelName,
		CreatedAt:   s.now(),
	}
	if err := s.store.Save(ctx, []history.Entry{entry}); err != nil {
		s.logger.Error("Failed to store prediction history", map[string]interface{}{
			"predictionId": pred.ID,
			"error":        err,
		})
	}

	return &Outcome{
		Record:     rec,
		Prediction: *pred,
		Verdict:    recommend.VerdictFor(pred.Label),
		Advice:     recommend.Recommend(rec),
		Cards:      recommend.Cards(rec),
		Cached:     cached,
	}, nil
}

func (s *Service) lookup(ctx context.Context, rec models.StudentRecord) (*models.Prediction, bool) {
	pred, hit, err := s.cache.Get(ctx, rec)
	switch {
	case err != nil:
		metrics.CacheLookups.WithLabelValues("error").Inc()
		s.logger.Warn("Prediction cache lookup failed", map[string]interface{}{"error": err})
		return nil, false
	case hit:
		metrics.CacheLookups.WithLabelValues("hit").Inc()
		return pred, true
	default:
		metrics.CacheLookups.WithLabelValues("miss").Inc()
		return nil, false
	}
}

func (s *Service) score(p inference.Pipeline, snap *inference.Snapshot, rec models.StudentRecord, source string) (*models.Prediction, error) {
	row := []models.Row{inference.Restrict(rec.Row(), snap.Metadata.AllFeatures)}

	start := time.Now()
	proba, err := p.PredictProba(row)
	if err != nil {
		return nil, errors.NewPredictionFailedError(err)
	}
	labels, err := p.Predict(row)
	if err != nil {
		return nil, errors.NewPredictionFailedError(err)
	}
	metrics.PredictionDuration.WithLabelValues(source).Observe(time.Since(start).Seconds())
	metrics.ObservePredictions(source, labels)

	return &models.Prediction{
		ID:            uuid.New().String(),
		Label:         labels[0],
		LabelText:     models.LabelText(labels[0]),
		Probability:   proba[0][1],
		ProbabilityNo: proba[0][0],
		ModelName:     snap.Metadata.Algorithm(),
		CreatedAt:     s.now(),
	}, nil
}
