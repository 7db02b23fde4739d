package inference

import (
	"fmt"
	"math"

	"passos-predictor/internal/models"
	"passos-predictor/pkg/artifact"
)

// Encoder turns a raw row into the standardized, one-hot encoded vector the
// estimator was fitted on.
type Encoder struct {
	numeric     []artifact.NumericFeature
	categorical []artifact.CategoricalFeature
	offsets     []int // start of each one-hot block
	width       int
}

func NewEncoder(a *artifact.Artifact) *Encoder {
	e := &Encoder{
		numeric:     a.Numeric,
		categorical: a.Categorical,
		offsets:     make([]int, len(a.Categorical)),
	}
	pos := len(a.Numeric)
	for i, f := range a.Categorical {
		e.offsets[i] = pos
		pos += len(f.Categories)
	}
	e.width = pos
	return e
}

// Width is the length of encoded vectors.
func (e *Encoder) Width() int { return e.width }

// Encode imputes missing values and encodes one row.
func (e *Encoder) Encode(row models.Row) ([]float64, error) {
	x := make([]float64, e.width)

	for i, f := range e.numeric {
		v, ok, err := row.Float(f.Name)
		if err != nil {
			return nil, err
		}
		if !ok || math.IsNaN(v) {
			v = f.Impute
		}
		scale := f.Scale
		if scale == 0 {
			scale = 1
		}
		x[i] = (v - f.Mean) / scale
	}

	for i, f := range e.categorical {
		s, ok := row.String(f.Name)
		if !ok || models.IsMissing(s) {
			s = f.Impute
		}
		for j, c := range f.Categories {
			if c == s {
				x[e.offsets[i]+j] = 1
				break
			}
		}
	}
	return x, nil
}

// EncodeAll encodes rows, naming the offending row on failure.
func (e *Encoder) EncodeAll(rows []models.Row) ([][]float64, error) {
	out := make([][]float64, len(rows))
	for i, row := range rows {
		x, err := e.Encode(row)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+1, err)
		}
		out[i] = x
	}
	return out, nil
}

// Restrict keeps only the listed columns of row. An empty list keeps all.
func Restrict(row models.Row, features []string) models.Row {
	if len(features) == 0 {
		return row
	}
	out := make(models.Row, len(features))
	for _, f := range features {
		if v, ok := row[f]; ok {
			out[f] = v
		}
	}
	return out
}
