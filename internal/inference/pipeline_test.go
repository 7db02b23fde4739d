package inference_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"passos-predictor/internal/inference"
	"passos-predictor/internal/inference/inferencetest"
	"passos-predictor/internal/models"
)

func sigmoid(z float64) float64 { return 1 / (1 + math.Exp(-z)) }

func TestModel_LogisticProbability(t *testing.T) {
	m := inferencetest.MustModel(inferencetest.LogisticArtifact())

	rec := models.DefaultRecord() // ieg 7.5, ipv 7.0
	proba, err := m.PredictProba([]models.Row{rec.Row()})
	require.NoError(t, err)
	require.Len(t, proba, 1)

	assert.InDelta(t, sigmoid(0.4), proba[0][1], 1e-9)
	assert.InDelta(t, 1.0, proba[0][0]+proba[0][1], 1e-12)

	labels, err := m.Predict([]models.Row{rec.Row()})
	require.NoError(t, err)
	assert.Equal(t, []int{1}, labels)
}

func TestModel_TieGoesToNegativeClass(t *testing.T) {
	m := inferencetest.MustModel(inferencetest.LogisticArtifact())

	rec := models.DefaultRecord()
	rec.IEG, rec.IPV = 7, 7

	proba, err := m.PredictProba([]models.Row{rec.Row()})
	require.NoError(t, err)
	assert.InDelta(t, 0.5, proba[0][1], 1e-12)

	labels, err := m.Predict([]models.Row{rec.Row()})
	require.NoError(t, err)
	assert.Equal(t, []int{0}, labels)
}

func TestModel_ImputesMissingAndIgnoresUnknownCategory(t *testing.T) {
	m := inferencetest.MustModel(inferencetest.LogisticArtifact())

	row := models.Row{
		models.ColGenero: "Outro", // not seen at training time
		models.ColIPV:    "NA",
	}
	proba, err := m.PredictProba([]models.Row{row})
	require.NoError(t, err)
	assert.InDelta(t, 0.5, proba[0][1], 1e-12)
}

func TestModel_UnparseableNumericNamesRow(t *testing.T) {
	m := inferencetest.MustModel(inferencetest.LogisticArtifact())

	rows := []models.Row{
		models.DefaultRecord().Row(),
		{models.ColIPV: "sete"},
	}
	_, err := m.Predict(rows)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "row 2")
	assert.Contains(t, err.Error(), "column ipv")
}

func TestModel_Forest(t *testing.T) {
	m := inferencetest.MustModel(inferencetest.StumpForest())
	assert.Equal(t, "Random Forest", m.Name())
	assert.Equal(t, []string{models.ColIPV}, m.Features())

	rows := []models.Row{
		{models.ColIPV: 8.0},
		{models.ColIPV: 5.0},
		{models.ColIPV: 3.0},
		{}, // imputed to 7
	}
	proba, err := m.PredictProba(rows)
	require.NoError(t, err)

	want := []float64{0.9, 0.1, 0.3, 0.9}
	for i, p := range proba {
		assert.InDelta(t, want[i], p[1], 1e-9, "row %d", i)
	}

	labels, err := m.Predict(rows)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 0, 0, 1}, labels)
}

func TestModel_ParallelScoringKeepsOrder(t *testing.T) {
	m := inferencetest.MustModel(inferencetest.StumpForest())

	rows := make([]models.Row, 1000)
	for i := range rows {
		rows[i] = models.Row{models.ColIPV: float64(i % 10)}
	}
	proba, err := m.PredictProba(rows)
	require.NoError(t, err)
	require.Len(t, proba, len(rows))

	for i, p := range proba {
		ipv := float64(i % 10)
		switch {
		case ipv > 6:
			assert.InDelta(t, 0.9, p[1], 1e-9)
		case ipv > 4:
			assert.InDelta(t, 0.1, p[1], 1e-9)
		default:
			assert.InDelta(t, 0.3, p[1], 1e-9)
		}
	}
}

func TestModel_EmptyInput(t *testing.T) {
	m := inferencetest.MustModel(inferencetest.LogisticArtifact())
	labels, err := m.Predict(nil)
	require.NoError(t, err)
	assert.Empty(t, labels)
}

func TestRestrict(t *testing.T) {
	row := models.Row{"ipv": 7.0, "nome": "Ana", "genero": "Menina"}

	assert.Equal(t, models.Row{"ipv": 7.0, "genero": "Menina"},
		inference.Restrict(row, []string{"ipv", "genero", "pedra"}))
	assert.Equal(t, row, inference.Restrict(row, nil))
}

func TestEncoder_Width(t *testing.T) {
	a := inferencetest.LogisticArtifact()
	e := inference.NewEncoder(a)
	assert.Equal(t, a.EncodedWidth(), e.Width())

	x, err := e.Encode(models.DefaultRecord().Row())
	require.NoError(t, err)
	// Menina, Quartzo and Escola Pública are the first category of each block
	assert.Equal(t, 3.0, x[11]+x[13]+x[17])
}
