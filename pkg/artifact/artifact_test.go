package artifact

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func logisticArtifact() *Artifact {
	return &Artifact{
		Version: "1",
		Numeric: []NumericFeature{
			{Name: "ipv", Impute: 7, Mean: 7, Scale: 1},
		},
		Categorical: []CategoricalFeature{
			{Name: "genero", Impute: "Menina", Categories: []string{"Menina", "Menino"}},
		},
		Estimator: Estimator{
			Type:         EstimatorLogistic,
			Coefficients: []float64{1.5, 0.1, -0.1},
			Threshold:    0.5,
		},
	}
}

func TestArtifact_FeatureNamesAndWidth(t *testing.T) {
	a := logisticArtifact()
	assert.Equal(t, []string{"ipv", "genero"}, a.FeatureNames())
	assert.Equal(t, 3, a.EncodedWidth())
	require.NoError(t, a.Validate())
}

func TestArtifact_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(a *Artifact)
		wantErr string
	}{
		{
			name:    "coefficient count mismatch",
			mutate:  func(a *Artifact) { a.Estimator.Coefficients = []float64{1} },
			wantErr: "encoded width is 3",
		},
		{
			name:    "unknown estimator",
			mutate:  func(a *Artifact) { a.Estimator.Type = "svm" },
			wantErr: `unsupported estimator type "svm"`,
		},
		{
			name: "duplicate feature",
			mutate: func(a *Artifact) {
				a.Numeric = append(a.Numeric, NumericFeature{Name: "genero"})
			},
			wantErr: `feature "genero" declared twice`,
		},
		{
			name:    "no features",
			mutate:  func(a *Artifact) { a.Numeric, a.Categorical = nil, nil },
			wantErr: "declares no features",
		},
		{
			name: "forest child pointing backwards",
			mutate: func(a *Artifact) {
				a.Estimator = Estimator{Type: EstimatorRandomForest, Trees: []Tree{{Nodes: []Node{
					{Feature: 0, Threshold: 1, Left: 0, Right: 1},
					{Left: -1, Right: -1, Value: [2]float64{0.5, 0.5}},
				}}}}
			},
			wantErr: "tree 0: node 0: child index out of range",
		},
		{
			name: "forest leaf probability out of range",
			mutate: func(a *Artifact) {
				a.Estimator = Estimator{Type: EstimatorRandomForest, Trees: []Tree{{Nodes: []Node{
					{Left: -1, Right: -1, Value: [2]float64{-0.1, 1.1}},
				}}}}
			},
			wantErr: "outside [0,1]",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := logisticArtifact()
			tt.mutate(a)
			err := a.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestSaveAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pipeline.json")
	require.NoError(t, Save(path, logisticArtifact()))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, EstimatorLogistic, loaded.Estimator.Type)
	assert.Equal(t, []float64{1.5, 0.1, -0.1}, loaded.Estimator.Coefficients)
}

func TestLoad_Missing(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.json"))
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestParse_Malformed(t *testing.T) {
	_, err := Parse([]byte(`{"numeric": [`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode artifact")
}

func TestLoadMetadata(t *testing.T) {
	path := filepath.Join(t.TempDir(), "feature_names.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"best_model_name": "Logistic Regression",
		"test_auc": 0.87,
		"all_features": ["ipv", "genero"]
	}`), 0o600))

	meta, err := LoadMetadata(path)
	require.NoError(t, err)
	assert.Equal(t, "Logistic Regression", meta.BestModelName)
	assert.Equal(t, "0.87", meta.AUC())
	assert.Equal(t, "N/A", meta.F1())
	assert.Equal(t, []string{"ipv", "genero"}, meta.AllFeatures)
}
