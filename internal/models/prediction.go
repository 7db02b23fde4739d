// internal/models/prediction.go
package models

import (
	"fmt"
	"strconv"
	"time"
)

// Localized labels for the binary target.
const (
	LabelYes = "Sim"
	LabelNo  = "Não"
)

// LabelText maps a predicted class to its localized label.
func LabelText(label int) string {
	if label == 1 {
		return LabelYes
	}
	return LabelNo
}

// Prediction is the outcome of the pipeline for one record.
type Prediction struct {
	ID            string    `json:"id"`
	Label         int       `json:"label"`
	LabelText     string    `json:"labelText"`
	Probability   float64   `json:"probability"`
	ProbabilityNo float64   `json:"probabilityNo"`
	ModelName     string    `json:"modelName,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
}

// Percent formats the positive-class probability with one decimal.
func (p Prediction) Percent() string {
	return FormatPercent(p.Probability)
}

// PercentNo formats the negative-class probability with one decimal.
func (p Prediction) PercentNo() string {
	return FormatPercent(p.ProbabilityNo)
}

// String returns "Sim (72.3%)".
func (p Prediction) String() string {
	return fmt.Sprintf("%s (%s)", p.LabelText, p.Percent())
}

// FormatPercent renders a [0,1] share as "72.3%".
func FormatPercent(share float64) string {
	return fmt.Sprintf("%.1f%%", share*100)
}

// ModelMetadata is the metadata stored next to the trained pipeline.
type ModelMetadata struct {
	BestModelName string   `json:"best_model_name,omitempty"`
	TestAUC       *float64 `json:"test_auc,omitempty"`
	TestF1        *float64 `json:"test_f1,omitempty"`
	TestAccuracy  *float64 `json:"test_accuracy,omitempty"`
	AllFeatures   []string `json:"all_features,omitempty"`
}

// Empty reports whether no metadata was loaded.
func (m *ModelMetadata) Empty() bool {
	return m == nil || (m.BestModelName == "" && m.TestAUC == nil && m.TestF1 == nil &&
		m.TestAccuracy == nil && len(m.AllFeatures) == 0)
}

func (m *ModelMetadata) Algorithm() string {
	if m == nil || m.BestModelName == "" {
		return "N/A"
	}
	return m.BestModelName
}

func (m *ModelMetadata) AUC() string {
	if m == nil {
		return "N/A"
	}
	return formatMetric(m.TestAUC)
}

func (m *ModelMetadata) F1() string {
	if m == nil {
		return "N/A"
	}
	return formatMetric(m.TestF1)
}

func (m *ModelMetadata) Accuracy() string {
	if m == nil {
		return "N/A"
	}
	return formatMetric(m.TestAccuracy)
}

func formatMetric(v *float64) string {
	if v == nil {
		return "N/A"
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}
