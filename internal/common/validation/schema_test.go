package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"passos-predictor/internal/models"
)

func TestValidateRecord_Default(t *testing.T) {
	res := ValidateRecord(models.DefaultRecord())
	assert.True(t, res.Valid)
	assert.Empty(t, res.Errors)
}

func TestValidateRecord_Violations(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(r *models.StudentRecord)
		field  string
		code   string
	}{
		{"fase above range", func(r *models.StudentRecord) { r.Fase = 9 }, "fase", "NUMBER_LTE"},
		{"indicator below zero", func(r *models.StudentRecord) { r.IPV = -0.1 }, "ipv", "NUMBER_GTE"},
		{"indicator above ten", func(r *models.StudentRecord) { r.INDE = 10.5 }, "inde", "NUMBER_LTE"},
		{"defas out of range", func(r *models.StudentRecord) { r.Defas = 6 }, "defas", "NUMBER_LTE"},
		{"unknown gender", func(r *models.StudentRecord) { r.Genero = "Outro" }, "genero", "ENUM"},
		{"unknown pedra", func(r *models.StudentRecord) { r.Pedra = "Diamante" }, "pedra", "ENUM"},
		{"reference year", func(r *models.StudentRecord) { r.AnoReferencia = 2021 }, "ano_referencia", "ENUM"},
		{"enrollment year", func(r *models.StudentRecord) { r.AnoIngresso = 2015 }, "ano_ingresso", "NUMBER_GTE"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := models.DefaultRecord()
			tt.mutate(&rec)
			res := ValidateRecord(rec)
			require.False(t, res.Valid)
			require.True(t, res.HasErrors(tt.field), "errors: %v", res.GetErrorMessages())
			assert.Equal(t, tt.code, res.Errors[0].Code)
		})
	}
}

func TestValidateDocument_MissingAndWrongType(t *testing.T) {
	doc := models.DefaultRecord().Document()
	delete(doc, models.ColIEG)
	doc[models.ColFase] = 2.5

	res := ValidateDocument(doc)
	require.False(t, res.Valid)
	assert.True(t, res.HasErrors("ieg"))
	assert.True(t, res.HasErrors("fase"))
	assert.Contains(t, res.Error(), "ieg: ")
}
