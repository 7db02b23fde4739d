// Package validation checks student records against a JSON Schema before
// they reach the pipeline.
package validation

import (
	"fmt"
	"sort"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"passos-predictor/internal/models"
)

type ValidationResult struct {
	Valid  bool              `json:"valid"`
	Errors []ValidationError `json:"errors,omitempty"`
}

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// RecordSchema is the JSON Schema of a complete student record.
func RecordSchema() map[string]interface{} {
	indicator := func(desc string) map[string]interface{} {
		return map[string]interface{}{
			"type": "number", "minimum": models.MinIndicator, "maximum": models.MaxIndicator,
			"description": desc,
		}
	}
	return map[string]interface{}{
		"$schema": "http://json-schema.org/draft-07/schema#",
		"type":    "object",
		"properties": map[string]interface{}{
			models.ColFase: map[string]interface{}{
				"type": "integer", "minimum": models.MinFase, "maximum": models.MaxFase,
			},
			models.ColINDE: indicator("Índice de Desenvolvimento Educacional"),
			models.ColIAA:  indicator("Índice de Auto-Avaliação"),
			models.ColIEG:  indicator("Índice de Engajamento"),
			models.ColIPS:  indicator("Índice Psicossocial"),
			models.ColIDA:  indicator("Índice de Desempenho Acadêmico"),
			models.ColIPV:  indicator("Índice do Ponto de Virada"),
			models.ColIAN:  indicator("Índice de Adequação ao Nível"),
			models.ColDefas: map[string]interface{}{
				"type": "integer", "minimum": models.MinDefas, "maximum": models.MaxDefas,
			},
			models.ColAnoIngresso: map[string]interface{}{
				"type": "integer", "minimum": models.MinAnoIngresso, "maximum": models.MaxAnoIngresso,
			},
			models.ColAnoReferencia: map[string]interface{}{
				"type": "integer", "enum": toInterfaces(models.ReferenceYears),
			},
			models.ColGenero:      map[string]interface{}{"type": "string", "enum": toInterfaces(models.Genders)},
			models.ColPedra:       map[string]interface{}{"type": "string", "enum": toInterfaces(models.Pedras)},
			models.ColInstituicao: map[string]interface{}{"type": "string", "enum": toInterfaces(models.Institutions)},
		},
		"required": toInterfaces(models.FeatureColumns),
	}
}

var recordSchema = func() *gojsonschema.Schema {
	s, err := gojsonschema.NewSchema(gojsonschema.NewGoLoader(RecordSchema()))
	if err != nil {
		panic(fmt.Sprintf("record schema: %v", err))
	}
	return s
}()

// ValidateRecord validates a typed record.
func ValidateRecord(rec models.StudentRecord) *ValidationResult {
	return ValidateDocument(rec.Document())
}

// ValidateDocument validates a raw document such as decoded job variables.
func ValidateDocument(doc map[string]interface{}) *ValidationResult {
	result, err := recordSchema.Validate(gojsonschema.NewGoLoader(doc))
	if err != nil {
		return &ValidationResult{Errors: []ValidationError{{
			Field: "(root)", Message: err.Error(), Code: "SCHEMA_ERROR",
		}}}
	}

	out := &ValidationResult{Valid: result.Valid()}
	for _, e := range result.Errors() {
		field := e.Field()
		if field == "(root)" {
			if p, ok := e.Details()["property"].(string); ok {
				field = p
			}
		}
		out.Errors = append(out.Errors, ValidationError{
			Field:   field,
			Message: e.Description(),
			Code:    strings.ToUpper(e.Type()),
		})
	}
	sort.SliceStable(out.Errors, func(i, j int) bool { return out.Errors[i].Field < out.Errors[j].Field })
	return out
}

// GetErrorMessages returns a simple list of error messages
func (vr *ValidationResult) GetErrorMessages() []string {
	messages := make([]string, len(vr.Errors))
	for i, err := range vr.Errors {
		messages[i] = fmt.Sprintf("%s: %s", err.Field, err.Message)
	}
	return messages
}

// HasErrors checks if validation has errors for specific field
func (vr *ValidationResult) HasErrors(field string) bool {
	for _, err := range vr.Errors {
		if err.Field == field {
			return true
		}
	}
	return false
}

// Error joins all messages, for wrapping in a StandardError.
func (vr *ValidationResult) Error() string {
	return strings.Join(vr.GetErrorMessages(), "; ")
}

func toInterfaces[T any](in []T) []interface{} {
	out := make([]interface{}, len(in))
	for i, v := range in {
		out[i] = v
	}
	return out
}
