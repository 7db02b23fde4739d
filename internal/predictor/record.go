package predictor

import (
	"encoding/json"

	"passos-predictor/internal/common/errors"
	"passos-predictor/internal/common/validation"
	"passos-predictor/internal/models"
)

// ParseRecord decodes a JSON student record, checking it against the record
// schema first so that missing fields are reported instead of zero-filled.
// Unknown keys are ignored.
func ParseRecord(data []byte) (models.StudentRecord, error) {
	var doc map[string]interface{}
	if err := json.Unmarshal(data, &doc); err != nil {
		return models.StudentRecord{}, errors.NewInvalidStudentRecordError("malformed JSON: " + err.Error())
	}
	if doc == nil {
		return models.StudentRecord{}, errors.NewInvalidStudentRecordError("record must be a JSON object")
	}

	if res := validation.ValidateDocument(doc); !res.Valid {
		return models.StudentRecord{}, errors.NewInvalidStudentRecordError(res.Error()).
			WithMetadata("fields", res.Errors)
	}

	var rec models.StudentRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return models.StudentRecord{}, errors.NewInvalidStudentRecordError(err.Error())
	}
	return rec, nil
}
