// internal/workers/prediction/predict-ponto-de-virada/models.go
package predictpontodevirada

import "passos-predictor/internal/models"

// Input is the job variables: one complete student record. Other process
// variables are ignored.
type Input struct {
	models.StudentRecord
}

type Output struct {
	Probability     float64  `json:"probability"`
	Label           int      `json:"label"`
	LabelText       string   `json:"labelText"`
	Verdict         string   `json:"verdict"`
	ModelName       string   `json:"modelName,omitempty"`
	Recommendations []string `json:"recommendations"`
}
