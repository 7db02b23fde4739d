package predictor

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	commonerrors "passos-predictor/internal/common/errors"
	"passos-predictor/internal/models"
)

func TestParseRecord(t *testing.T) {
	doc := models.DefaultRecord().Document()
	doc["processInstance"] = "ignored"
	data, err := json.Marshal(doc)
	require.NoError(t, err)

	rec, err := ParseRecord(data)
	require.NoError(t, err)
	assert.Equal(t, models.DefaultRecord(), rec)
}

func TestParseRecord_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		input string
		field string
	}{
		{name: "malformed", input: `{"fase":`},
		{name: "not an object", input: `null`},
		{name: "missing field", input: mustJSON(t, without(models.ColPedra)), field: models.ColPedra},
		{name: "out of range", input: mustJSON(t, with(models.ColIPV, 11.0)), field: models.ColIPV},
		{name: "unknown category", input: mustJSON(t, with(models.ColGenero, "Outro")), field: models.ColGenero},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseRecord([]byte(tt.input))
			require.Error(t, err)
			assert.True(t, commonerrors.HasCode(err, commonerrors.ErrCodeInvalidStudentRecord))
			if tt.field != "" {
				assert.Contains(t, err.Error(), tt.field)
			}
		})
	}
}

func with(key string, value interface{}) map[string]interface{} {
	doc := models.DefaultRecord().Document()
	doc[key] = value
	return doc
}

func without(key string) map[string]interface{} {
	doc := models.DefaultRecord().Document()
	delete(doc, key)
	return doc
}

func mustJSON(t *testing.T, v interface{}) string {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	return string(data)
}
