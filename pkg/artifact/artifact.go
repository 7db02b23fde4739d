// pkg/artifact/artifact.go
package artifact

import (
	"encoding/json"
	"fmt"
	"os"

	"passos-predictor/internal/models"
)

// Load reads and validates an artifact file. A missing file surfaces as an
// error satisfying errors.Is(err, os.ErrNotExist).
func Load(path string) (*Artifact, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Parse decodes and validates an artifact document.
func Parse(data []byte) (*Artifact, error) {
	var a Artifact
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("decode artifact: %w", err)
	}
	if err := a.Validate(); err != nil {
		return nil, err
	}
	return &a, nil
}

// LoadMetadata reads the standalone metadata file written next to the
// pipeline (best model name, test metrics, expected features).
func LoadMetadata(path string) (*models.ModelMetadata, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var meta models.ModelMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("decode metadata: %w", err)
	}
	return &meta, nil
}

// Save writes the artifact as indented JSON.
func Save(path string, a *Artifact) error {
	data, err := json.MarshalIndent(a, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// FeatureNames returns the raw input columns the pipeline consumes, numeric
// first, in declaration order.
func (a *Artifact) FeatureNames() []string {
	names := make([]string, 0, len(a.Numeric)+len(a.Categorical))
	for _, f := range a.Numeric {
		names = append(names, f.Name)
	}
	for _, f := range a.Categorical {
		names = append(names, f.Name)
	}
	return names
}

// EncodedWidth is the length of the vector the estimator sees.
func (a *Artifact) EncodedWidth() int {
	width := len(a.Numeric)
	for _, f := range a.Categorical {
		width += len(f.Categories)
	}
	return width
}

// Validate checks the structural integrity of the artifact.
func (a *Artifact) Validate() error {
	if len(a.Numeric)+len(a.Categorical) == 0 {
		return fmt.Errorf("artifact declares no features")
	}

	seen := make(map[string]bool)
	for _, name := range a.FeatureNames() {
		if name == "" {
			return fmt.Errorf("artifact has a feature without a name")
		}
		if seen[name] {
			return fmt.Errorf("feature %q declared twice", name)
		}
		seen[name] = true
	}
	for _, f := range a.Categorical {
		if len(f.Categories) == 0 {
			return fmt.Errorf("categorical feature %q has no categories", f.Name)
		}
	}

	width := a.EncodedWidth()
	switch a.Estimator.Type {
	case EstimatorLogistic:
		if len(a.Estimator.Coefficients) != width {
			return fmt.Errorf("logistic regression has %d coefficients, encoded width is %d",
				len(a.Estimator.Coefficients), width)
		}
		if a.Estimator.Threshold < 0 || a.Estimator.Threshold > 1 {
			return fmt.Errorf("threshold %v outside [0,1]", a.Estimator.Threshold)
		}
	case EstimatorRandomForest:
		if len(a.Estimator.Trees) == 0 {
			return fmt.Errorf("random forest has no trees")
		}
		for i, tree := range a.Estimator.Trees {
			if err := validateTree(tree, width); err != nil {
				return fmt.Errorf("tree %d: %w", i, err)
			}
		}
	default:
		return fmt.Errorf("unsupported estimator type %q", a.Estimator.Type)
	}
	return nil
}

func validateTree(t Tree, width int) error {
	if len(t.Nodes) == 0 {
		return fmt.Errorf("empty tree")
	}
	for i, n := range t.Nodes {
		if n.IsLeaf() {
			for _, p := range n.Value {
				if p < 0 || p > 1 {
					return fmt.Errorf("node %d: probability %v outside [0,1]", i, p)
				}
			}
			continue
		}
		if n.Feature < 0 || n.Feature >= width {
			return fmt.Errorf("node %d: feature index %d out of range", i, n.Feature)
		}
		// children must point forward so every walk terminates
		if n.Left <= i || n.Right <= i || n.Left >= len(t.Nodes) || n.Right >= len(t.Nodes) {
			return fmt.Errorf("node %d: child index out of range", i)
		}
	}
	return nil
}
