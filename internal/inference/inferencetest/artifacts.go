// Package inferencetest provides small hand-built pipelines for tests.
package inferencetest

import (
	"passos-predictor/internal/inference"
	"passos-predictor/internal/models"
	"passos-predictor/pkg/artifact"
)

// LogisticArtifact is a logistic pipeline over the full student record whose
// score is driven by ipv and ieg. A record with ipv=7, ieg=7 and the default
// categories scores exactly 0.5.
func LogisticArtifact() *artifact.Artifact {
	auc, f1, acc := 0.91, 0.78, 0.85
	numeric := []artifact.NumericFeature{
		{Name: models.ColFase, Impute: 2, Mean: 2, Scale: 1},
		{Name: models.ColINDE, Impute: 7, Mean: 7, Scale: 1},
		{Name: models.ColIAA, Impute: 8, Mean: 8, Scale: 1},
		{Name: models.ColIEG, Impute: 7, Mean: 7, Scale: 1},
		{Name: models.ColIPS, Impute: 6.5, Mean: 6.5, Scale: 1},
		{Name: models.ColIDA, Impute: 6, Mean: 6, Scale: 1},
		{Name: models.ColIPV, Impute: 7, Mean: 7, Scale: 1},
		{Name: models.ColIAN, Impute: 5, Mean: 5, Scale: 1},
		{Name: models.ColDefas, Impute: 0, Mean: 0, Scale: 1},
		{Name: models.ColAnoIngresso, Impute: 2021, Mean: 2021, Scale: 1},
		{Name: models.ColAnoReferencia, Impute: 2024, Mean: 2024, Scale: 1},
	}
	categorical := []artifact.CategoricalFeature{
		{Name: models.ColGenero, Impute: "Menina", Categories: models.Genders},
		{Name: models.ColPedra, Impute: "Quartzo", Categories: models.Pedras},
		{Name: models.ColInstituicao, Impute: "Escola Pública", Categories: models.Institutions},
	}

	coef := make([]float64, len(numeric))
	coef[3] = 0.8 // ieg
	coef[6] = 1.2 // ipv
	// one-hot blocks contribute nothing
	coef = append(coef, make([]float64, len(models.Genders)+len(models.Pedras)+len(models.Institutions))...)

	return &artifact.Artifact{
		Version: "1",
		Metadata: models.ModelMetadata{
			BestModelName: "Logistic Regression",
			TestAUC:       &auc,
			TestF1:        &f1,
			TestAccuracy:  &acc,
			AllFeatures:   append([]string(nil), models.FeatureColumns...),
		},
		Numeric:     numeric,
		Categorical: categorical,
		Estimator: artifact.Estimator{
			Type:         artifact.EstimatorLogistic,
			Coefficients: coef,
			Threshold:    0.5,
		},
	}
}

// StumpForest is a two-tree forest over ipv alone. Both trees vote 0.9 when
// ipv > 6 and 0.1 otherwise, except the second tree votes 0.5 for ipv <= 4.
func StumpForest() *artifact.Artifact {
	leaf := func(p float64) artifact.Node {
		return artifact.Node{Left: -1, Right: -1, Value: [2]float64{1 - p, p}}
	}
	return &artifact.Artifact{
		Version: "1",
		Metadata: models.ModelMetadata{
			BestModelName: "Random Forest",
			AllFeatures:   []string{models.ColIPV},
		},
		Numeric: []artifact.NumericFeature{{Name: models.ColIPV, Impute: 7, Mean: 0, Scale: 1}},
		Estimator: artifact.Estimator{
			Type: artifact.EstimatorRandomForest,
			Trees: []artifact.Tree{
				{Nodes: []artifact.Node{
					{Feature: 0, Threshold: 6, Left: 1, Right: 2},
					leaf(0.1),
					leaf(0.9),
				}},
				{Nodes: []artifact.Node{
					{Feature: 0, Threshold: 6, Left: 1, Right: 4},
					{Feature: 0, Threshold: 4, Left: 2, Right: 3},
					leaf(0.5),
					leaf(0.1),
					leaf(0.9),
				}},
			},
		},
	}
}

// MustModel builds a Model or panics.
func MustModel(a *artifact.Artifact) *inference.Model {
	m, err := inference.NewModel(a)
	if err != nil {
		panic(err)
	}
	return m
}

// Snapshot returns a loaded snapshot for a.
func Snapshot(a *artifact.Artifact) *inference.Snapshot {
	return &inference.Snapshot{
		Model:    MustModel(a),
		Metadata: a.Metadata,
		Path:     "test://pipeline",
	}
}

// Loader returns a loader that already holds a snapshot for a.
func Loader(a *artifact.Artifact) *inference.Loader {
	return inference.NewStaticLoader(Snapshot(a))
}

// EmptyLoader returns a loader in the "not loaded" state.
func EmptyLoader() *inference.Loader {
	return inference.NewStaticLoader(&inference.Snapshot{Path: "models/pipeline_completo.json"})
}
