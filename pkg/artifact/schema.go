// pkg/artifact/schema.go
package artifact

import "passos-predictor/internal/models"

// Estimator types understood by the inference package.
const (
	EstimatorLogistic     = "logistic_regression"
	EstimatorRandomForest = "random_forest"
)

// Artifact is the serialized, already-fitted preprocessing + classifier
// pipeline produced by the training job.
type Artifact struct {
	Version     string               `json:"version"`
	TrainedAt   string               `json:"trainedAt,omitempty"`
	Metadata    models.ModelMetadata `json:"metadata"`
	Numeric     []NumericFeature     `json:"numeric"`
	Categorical []CategoricalFeature `json:"categorical"`
	Estimator   Estimator            `json:"estimator"`
}

// NumericFeature is imputed with Impute and standardized with Mean/Scale.
type NumericFeature struct {
	Name   string  `json:"name"`
	Impute float64 `json:"impute"`
	Mean   float64 `json:"mean"`
	Scale  float64 `json:"scale"`
}

// CategoricalFeature is imputed with Impute and one-hot encoded over
// Categories; values outside Categories encode as all zeros.
type CategoricalFeature struct {
	Name       string   `json:"name"`
	Impute     string   `json:"impute"`
	Categories []string `json:"categories"`
}

// Estimator holds the parameters of the final classifier over the encoded
// vector (numeric features first, then one-hot blocks in declaration order).
type Estimator struct {
	Type string `json:"type"`

	// logistic_regression
	Coefficients []float64 `json:"coefficients,omitempty"`
	Intercept    float64   `json:"intercept,omitempty"`
	Threshold    float64   `json:"threshold,omitempty"`

	// random_forest
	Trees []Tree `json:"trees,omitempty"`
}

// Tree is a flattened binary decision tree; node 0 is the root.
type Tree struct {
	Nodes []Node `json:"nodes"`
}

// Node splits on Feature <= Threshold (left) / > Threshold (right). A node
// with Left == -1 is a leaf carrying the class probability pair Value.
type Node struct {
	Feature   int        `json:"feature"`
	Threshold float64    `json:"threshold"`
	Left      int        `json:"left"`
	Right     int        `json:"right"`
	Value     [2]float64 `json:"value"`
}

// IsLeaf reports whether the node terminates the walk.
func (n Node) IsLeaf() bool {
	return n.Left < 0 || n.Right < 0
}
