// Package ingest reads uploaded CSV and spreadsheet files into tables and
// reconciles their columns with the pipeline's expected features.
package ingest

import (
	"fmt"
	"strings"

	"passos-predictor/internal/models"
)

// Table is an uploaded file as header plus string cells. Rows may be shorter
// than Columns; absent trailing cells are missing values.
type Table struct {
	Columns []string   `json:"columns"`
	Rows    [][]string `json:"rows"`
}

// Len is the number of data rows.
func (t *Table) Len() int { return len(t.Rows) }

// Index returns the position of column, or -1.
func (t *Table) Index(column string) int {
	for i, c := range t.Columns {
		if c == column {
			return i
		}
	}
	return -1
}

// Cell returns the cell of row i in column j, "" when the row is short.
func (t *Table) Cell(i, j int) string {
	if j < 0 || j >= len(t.Rows[i]) {
		return ""
	}
	return t.Rows[i][j]
}

// Preview returns a copy holding at most the first n rows.
func (t *Table) Preview(n int) *Table {
	if n > len(t.Rows) {
		n = len(t.Rows)
	}
	if n < 0 {
		n = 0
	}
	return &Table{Columns: t.Columns, Rows: t.Rows[:n]}
}

// Reconciliation is the outcome of matching a table against the expected
// feature list.
type Reconciliation struct {
	Present []string `json:"present"`
	Missing []string `json:"missing"`
	// Use lists the columns fed to the pipeline.
	Use []string `json:"use"`
}

// Reconcile splits expected into present and missing columns. With no
// expected list, or none of it present, the whole table is used.
func Reconcile(t *Table, expected []string) Reconciliation {
	var r Reconciliation
	if len(expected) == 0 {
		r.Use = append([]string(nil), t.Columns...)
		return r
	}
	for _, c := range expected {
		if t.Index(c) >= 0 {
			r.Present = append(r.Present, c)
		} else {
			r.Missing = append(r.Missing, c)
		}
	}
	if len(r.Present) == 0 {
		r.Use = append([]string(nil), t.Columns...)
	} else {
		r.Use = r.Present
	}
	return r
}

// ToRows converts the listed columns of every row to pipeline rows. Known
// numeric columns are parsed; missing cells are left out of the row.
func ToRows(t *Table, columns []string) ([]models.Row, error) {
	idx := make([]int, len(columns))
	for k, c := range columns {
		idx[k] = t.Index(c)
	}

	rows := make([]models.Row, len(t.Rows))
	for i := range t.Rows {
		row := make(models.Row, len(columns))
		for k, c := range columns {
			cell := strings.TrimSpace(t.Cell(i, idx[k]))
			if models.IsMissing(cell) {
				continue
			}
			if models.KindOf(c) == models.KindNumeric {
				v, err := models.ParseNumber(cell)
				if err != nil {
					return nil, fmt.Errorf("row %d, column %s: %w", i+1, c, err)
				}
				row[c] = v
				continue
			}
			row[c] = cell
		}
		rows[i] = row
	}
	return rows, nil
}
