// Package inference runs the externally trained Ponto de Virada pipeline.
package inference

import (
	"runtime"
	"sync"

	"passos-predictor/internal/models"
	"passos-predictor/pkg/artifact"
)

// Pipeline is the trained classifier as consumed by the dashboard, the batch
// service and the job worker.
type Pipeline interface {
	// Predict returns the binary label per row.
	Predict(rows []models.Row) ([]int, error)
	// PredictProba returns the (negative, positive) class probabilities per row.
	PredictProba(rows []models.Row) ([][2]float64, error)
	// Features lists the raw input columns the pipeline reads.
	Features() []string
	// Name is the algorithm name recorded at training time.
	Name() string
}

// Model implements Pipeline over a loaded artifact. It is immutable and safe
// for concurrent use.
type Model struct {
	name      string
	features  []string
	threshold float64
	encoder   *Encoder
	estimator estimator
}

// NewModel builds a Model from a validated artifact.
func NewModel(a *artifact.Artifact) (*Model, error) {
	if err := a.Validate(); err != nil {
		return nil, err
	}
	threshold := a.Estimator.Threshold
	if threshold == 0 {
		threshold = 0.5
	}
	name := a.Metadata.BestModelName
	if name == "" {
		name = a.Estimator.Type
	}
	return &Model{
		name:      name,
		features:  a.FeatureNames(),
		threshold: threshold,
		encoder:   NewEncoder(a),
		estimator: newEstimator(a.Estimator),
	}, nil
}

func (m *Model) Name() string       { return m.name }
func (m *Model) Features() []string { return append([]string(nil), m.features...) }

func (m *Model) PredictProba(rows []models.Row) ([][2]float64, error) {
	pos, err := m.score(rows)
	if err != nil {
		return nil, err
	}
	out := make([][2]float64, len(pos))
	for i, p := range pos {
		out[i] = [2]float64{1 - p, p}
	}
	return out, nil
}

// Predict labels a row positive when its probability exceeds the threshold;
// a tie goes to the negative class.
func (m *Model) Predict(rows []models.Row) ([]int, error) {
	pos, err := m.score(rows)
	if err != nil {
		return nil, err
	}
	out := make([]int, len(pos))
	for i, p := range pos {
		if p > m.threshold {
			out[i] = 1
		}
	}
	return out, nil
}

// score encodes all rows, then fans the estimator out over GOMAXPROCS
// contiguous chunks.
func (m *Model) score(rows []models.Row) ([]float64, error) {
	if len(rows) == 0 {
		return nil, nil
	}
	X, err := m.encoder.EncodeAll(rows)
	if err != nil {
		return nil, err
	}

	out := make([]float64, len(X))
	workers := runtime.GOMAXPROCS(0)
	chunk := (len(X) + workers - 1) / workers

	var wg sync.WaitGroup
	for start := 0; start < len(X); start += chunk {
		end := start + chunk
		if end > len(X) {
			end = len(X)
		}
		wg.Add(1)
		go func(start, end int) {
			defer wg.Done()
			for i := start; i < end; i++ {
				out[i] = m.estimator.positive(X[i])
			}
		}(start, end)
	}
	wg.Wait()
	return out, nil
}
