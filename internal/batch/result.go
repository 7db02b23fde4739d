package batch

import (
	"encoding/csv"
	"io"
	"math"
	"strconv"
	"time"

	"passos-predictor/internal/models"
)

// Appended result columns.
const (
	ColProbability = "prob_ponto_de_virada"
	ColPrediction  = "predicao_pv"

	// ResultFileName is the download name of a result CSV.
	ResultFileName = "predicoes_ponto_de_virada.csv"
	// TemplateFileName is the download name of the upload template.
	TemplateFileName = "template_predicao.csv"
)

// Row is one input row with its prediction.
type Row struct {
	Cells       []string `json:"cells"`
	Probability float64  `json:"probability"`
	Label       int      `json:"label"`
	LabelText   string   `json:"labelText"`
}

// KPIs summarize a batch.
type KPIs struct {
	Total    int     `json:"total"`
	Yes      int     `json:"yes"`
	No       int     `json:"no"`
	YesShare float64 `json:"yesShare"`
	NoShare  float64 `json:"noShare"`
}

func (k KPIs) YesPercent() string { return models.FormatPercent(k.YesShare) }
func (k KPIs) NoPercent() string  { return models.FormatPercent(k.NoShare) }

// Result is a scored upload, sorted by descending probability.
type Result struct {
	ID             string    `json:"id"`
	FileName       string    `json:"fileName,omitempty"`
	ModelName      string    `json:"modelName,omitempty"`
	InputColumns   []string  `json:"inputColumns"`
	MissingColumns []string  `json:"missingColumns,omitempty"`
	Rows           []Row     `json:"rows"`
	KPIs           KPIs      `json:"kpis"`
	CreatedAt      time.Time `json:"createdAt"`
}

// Columns is the header of the result table.
func (r *Result) Columns() []string {
	cols := make([]string, 0, len(r.InputColumns)+2)
	cols = append(cols, r.InputColumns...)
	return append(cols, ColProbability, ColPrediction)
}

// Record returns row i as a full result record.
func (r *Result) Record(i int) []string {
	row := r.Rows[i]
	out := make([]string, 0, len(r.InputColumns)+2)
	out = append(out, row.Cells...)
	return append(out, FormatProbability(row.Probability), row.LabelText)
}

// Document returns row i keyed by column, for indexing.
func (r *Result) Document(i int) map[string]interface{} {
	row := r.Rows[i]
	doc := make(map[string]interface{}, len(r.InputColumns)+3)
	for j, c := range r.InputColumns {
		if row.Cells[j] != "" {
			doc[c] = row.Cells[j]
		}
	}
	doc[ColProbability] = row.Probability
	doc[ColPrediction] = row.LabelText
	doc["model_name"] = r.ModelName
	doc["created_at"] = r.CreatedAt
	return doc
}

// FormatProbability renders a rounded probability the short way ("0.9").
func FormatProbability(p float64) string {
	return strconv.FormatFloat(p, 'f', -1, 64)
}

// Round4 rounds half away from zero to 4 decimals.
func Round4(p float64) float64 {
	return math.Round(p*1e4) / 1e4
}

func computeKPIs(rows []Row) KPIs {
	k := KPIs{Total: len(rows)}
	for _, r := range rows {
		if r.Label == 1 {
			k.Yes++
		} else {
			k.No++
		}
	}
	if k.Total > 0 {
		k.YesShare = float64(k.Yes) / float64(k.Total)
		k.NoShare = 1 - k.YesShare
	}
	return k
}

// WriteCSV writes the result table as UTF-8 CSV with a header row.
func WriteCSV(w io.Writer, r *Result) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(r.Columns()); err != nil {
		return err
	}
	for i := range r.Rows {
		if err := cw.Write(r.Record(i)); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
