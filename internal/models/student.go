// internal/models/student.go
package models

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Column names of the survey record, as used by the training pipeline.
const (
	ColFase          = "fase"
	ColINDE          = "inde"
	ColIAA           = "iaa"
	ColIEG           = "ieg"
	ColIPS           = "ips"
	ColIDA           = "ida"
	ColIPV           = "ipv"
	ColIAN           = "ian"
	ColDefas         = "defas"
	ColAnoIngresso   = "ano_ingresso"
	ColAnoReferencia = "ano_referencia"
	ColGenero        = "genero"
	ColPedra         = "pedra"
	ColInstituicao   = "instituicao_de_ensino"
)

// FeatureColumns lists the record columns in canonical order.
var FeatureColumns = []string{
	ColFase, ColINDE, ColIAA, ColIEG, ColIPS, ColIDA, ColIPV, ColIAN,
	ColDefas, ColAnoIngresso, ColAnoReferencia, ColGenero, ColPedra, ColInstituicao,
}

// IndicatorColumns are the seven bounded [0,10] indices.
var IndicatorColumns = []string{ColINDE, ColIAA, ColIEG, ColIPS, ColIDA, ColIPV, ColIAN}

var (
	Genders        = []string{"Menina", "Menino"}
	Institutions   = []string{"Escola Pública", "Rede Decisão", "Escola Particular", "Outra"}
	Pedras         = []string{"Quartzo", "Ágata", "Ametista", "Topázio"} // ascending tier
	ReferenceYears = []int{2022, 2023, 2024}
)

// Form bounds.
const (
	MinFase        = 0
	MaxFase        = 8
	MinDefas       = -5
	MaxDefas       = 5
	MinIndicator   = 0.0
	MaxIndicator   = 10.0
	MinAnoIngresso = 2016
	MaxAnoIngresso = 2024
)

// ColumnKind tells the pipeline how to treat a column.
type ColumnKind int

const (
	KindUnknown ColumnKind = iota
	KindNumeric
	KindCategorical
)

var columnKinds = map[string]ColumnKind{
	ColFase: KindNumeric, ColINDE: KindNumeric, ColIAA: KindNumeric, ColIEG: KindNumeric,
	ColIPS: KindNumeric, ColIDA: KindNumeric, ColIPV: KindNumeric, ColIAN: KindNumeric,
	ColDefas: KindNumeric, ColAnoIngresso: KindNumeric, ColAnoReferencia: KindNumeric,
	ColGenero: KindCategorical, ColPedra: KindCategorical, ColInstituicao: KindCategorical,
}

// KindOf returns the kind of a known column, KindUnknown otherwise.
func KindOf(column string) ColumnKind {
	return columnKinds[column]
}

// StudentRecord is one fully-specified student, as entered on the form.
type StudentRecord struct {
	Fase          int     `json:"fase"`
	INDE          float64 `json:"inde"`
	IAA           float64 `json:"iaa"`
	IEG           float64 `json:"ieg"`
	IPS           float64 `json:"ips"`
	IDA           float64 `json:"ida"`
	IPV           float64 `json:"ipv"`
	IAN           float64 `json:"ian"`
	Defas         int     `json:"defas"`
	AnoIngresso   int     `json:"ano_ingresso"`
	AnoReferencia int     `json:"ano_referencia"`
	Genero        string  `json:"genero"`
	Pedra         string  `json:"pedra"`
	Instituicao   string  `json:"instituicao_de_ensino"`
}

// DefaultRecord holds the values the individual form starts with.
func DefaultRecord() StudentRecord {
	return StudentRecord{
		Fase:          2,
		INDE:          7.0,
		IAA:           8.0,
		IEG:           7.5,
		IPS:           6.5,
		IDA:           6.0,
		IPV:           7.0,
		IAN:           5.0,
		Defas:         -1,
		AnoIngresso:   2021,
		AnoReferencia: 2024,
		Genero:        "Menina",
		Pedra:         "Quartzo",
		Instituicao:   "Escola Pública",
	}
}

// Row converts the record to a pipeline row.
func (r StudentRecord) Row() Row {
	return Row{
		ColFase:          float64(r.Fase),
		ColINDE:          r.INDE,
		ColIAA:           r.IAA,
		ColIEG:           r.IEG,
		ColIPS:           r.IPS,
		ColIDA:           r.IDA,
		ColIPV:           r.IPV,
		ColIAN:           r.IAN,
		ColDefas:         float64(r.Defas),
		ColAnoIngresso:   float64(r.AnoIngresso),
		ColAnoReferencia: float64(r.AnoReferencia),
		ColGenero:        r.Genero,
		ColPedra:         r.Pedra,
		ColInstituicao:   r.Instituicao,
	}
}

// Document returns the record as a generic JSON-like document, used for
// schema validation and persistence.
func (r StudentRecord) Document() map[string]interface{} {
	return map[string]interface{}{
		ColFase:          r.Fase,
		ColINDE:          r.INDE,
		ColIAA:           r.IAA,
		ColIEG:           r.IEG,
		ColIPS:           r.IPS,
		ColIDA:           r.IDA,
		ColIPV:           r.IPV,
		ColIAN:           r.IAN,
		ColDefas:         r.Defas,
		ColAnoIngresso:   r.AnoIngresso,
		ColAnoReferencia: r.AnoReferencia,
		ColGenero:        r.Genero,
		ColPedra:         r.Pedra,
		ColInstituicao:   r.Instituicao,
	}
}

// Indicators returns the seven indices in display order.
func (r StudentRecord) Indicators() []Indicator {
	return []Indicator{
		{Name: "INDE", Value: r.INDE},
		{Name: "IAA", Value: r.IAA},
		{Name: "IEG", Value: r.IEG},
		{Name: "IPS", Value: r.IPS},
		{Name: "IDA", Value: r.IDA},
		{Name: "IPV", Value: r.IPV},
		{Name: "IAN", Value: r.IAN},
	}
}

// Indicator is a named index value.
type Indicator struct {
	Name  string  `json:"name"`
	Value float64 `json:"value"`
}

// Row is one pipeline input keyed by column name. Numeric columns hold
// float64, categorical columns hold string; an absent key is a missing value.
type Row map[string]interface{}

// Float returns the numeric value of column, accepting numeric strings.
func (r Row) Float(column string) (float64, bool, error) {
	v, ok := r[column]
	if !ok || v == nil {
		return 0, false, nil
	}
	switch t := v.(type) {
	case float64:
		if math.IsInf(t, 0) || math.IsNaN(t) {
			return 0, false, fmt.Errorf("column %s: %v is not a finite number", column, t)
		}
		return t, true, nil
	case int:
		return float64(t), true, nil
	case string:
		if IsMissing(t) {
			return 0, false, nil
		}
		f, err := ParseNumber(t)
		if err != nil {
			return 0, false, fmt.Errorf("column %s: %w", column, err)
		}
		return f, true, nil
	default:
		return 0, false, fmt.Errorf("column %s: unsupported value type %T", column, v)
	}
}

// String returns the categorical value of column.
func (r Row) String(column string) (string, bool) {
	v, ok := r[column]
	if !ok || v == nil {
		return "", false
	}
	switch t := v.(type) {
	case string:
		return t, true
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), true
	default:
		return fmt.Sprint(t), true
	}
}

// ParseNumber parses a numeric cell, accepting a decimal comma.
func ParseNumber(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if strings.Contains(s, ",") && !strings.Contains(s, ".") {
		s = strings.Replace(s, ",", ".", 1)
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("%q is not a number", s)
	}
	if math.IsInf(f, 0) || math.IsNaN(f) {
		return 0, fmt.Errorf("%q is not a finite number", s)
	}
	return f, nil
}

// IsMissing reports whether a raw cell counts as a missing value.
func IsMissing(cell string) bool {
	switch strings.TrimSpace(cell) {
	case "", "NA", "NaN", "nan", "N/A", "null", "None":
		return true
	}
	return false
}
