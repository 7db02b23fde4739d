package batch

import (
	"encoding/csv"
	"io"

	"passos-predictor/internal/ingest"
	"passos-predictor/internal/models"
)

// Template is the example upload offered for download: an identifier column
// followed by every feature column.
func Template() *ingest.Table {
	cols := append([]string{"ra"}, models.FeatureColumns...)
	return &ingest.Table{
		Columns: cols,
		Rows: [][]string{
			{"RA-001", "2", "7.2", "8.0", "7.5", "6.5", "6.0", "7.0", "5.0", "-1", "2021", "2024", "Menina", "Ametista", "Escola Pública"},
			{"RA-002", "3", "6.5", "7.5", "6.0", "5.5", "5.0", "6.5", "10.0", "0", "2020", "2024", "Menino", "Quartzo", "Rede Decisão"},
		},
	}
}

// WriteTemplate writes the template as CSV.
func WriteTemplate(w io.Writer) error {
	t := Template()
	cw := csv.NewWriter(w)
	if err := cw.Write(t.Columns); err != nil {
		return err
	}
	if err := cw.WriteAll(t.Rows); err != nil {
		return err
	}
	return cw.Error()
}
