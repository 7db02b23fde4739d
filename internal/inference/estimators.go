package inference

import (
	"math"

	"passos-predictor/pkg/artifact"
)

// estimator scores an encoded vector with the positive-class probability.
type estimator interface {
	positive(x []float64) float64
}

type logistic struct {
	coef      []float64
	intercept float64
}

func (m *logistic) positive(x []float64) float64 {
	z := m.intercept
	for j, v := range x {
		z += m.coef[j] * v
	}
	return sigmoid(z)
}

func sigmoid(z float64) float64 {
	return 1 / (1 + math.Exp(-z))
}

type forest struct {
	trees []artifact.Tree
}

// positive averages the leaf probabilities of every tree.
func (f *forest) positive(x []float64) float64 {
	var sum float64
	for _, t := range f.trees {
		sum += walk(t, x)
	}
	return sum / float64(len(f.trees))
}

func walk(t artifact.Tree, x []float64) float64 {
	i := 0
	for {
		n := t.Nodes[i]
		if n.IsLeaf() {
			total := n.Value[0] + n.Value[1]
			if total == 0 {
				return 0
			}
			return n.Value[1] / total
		}
		if x[n.Feature] <= n.Threshold {
			i = n.Left
		} else {
			i = n.Right
		}
	}
}

func newEstimator(est artifact.Estimator) estimator {
	switch est.Type {
	case artifact.EstimatorRandomForest:
		return &forest{trees: est.Trees}
	default:
		return &logistic{coef: est.Coefficients, intercept: est.Intercept}
	}
}
