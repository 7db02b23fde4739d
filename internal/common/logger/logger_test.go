package logger

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestZapWrapper_FieldsAndLevels(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	log := NewZapAdapter(zap.New(core))

	log.WithFields(map[string]interface{}{"mode": "batch"}).
		Info("batch finished", map[string]interface{}{"rows": 12})
	log.WithError(errors.New("boom")).Error("upload failed", nil)
	log.Warn("missing columns", map[string]interface{}{"columns": []string{"ipv"}})

	entries := logs.All()
	if assert.Len(t, entries, 3) {
		assert.Equal(t, "batch finished", entries[0].Message)
		assert.Equal(t, "batch", entries[0].ContextMap()["mode"])
		assert.EqualValues(t, 12, entries[0].ContextMap()["rows"])

		assert.Equal(t, zapcore.ErrorLevel, entries[1].Level)
		assert.Equal(t, "boom", entries[1].ContextMap()["error"])

		assert.Equal(t, zapcore.WarnLevel, entries[2].Level)
	}
}

func TestMapToZapFields_ErrorValues(t *testing.T) {
	fields := mapToZapFields(map[string]interface{}{"cause": errors.New("bad file")})
	if assert.Len(t, fields, 1) {
		assert.Equal(t, "cause", fields[0].Key)
		assert.Equal(t, zapcore.ErrorType, fields[0].Type)
	}
	assert.Nil(t, mapToZapFields(nil))
}

func TestNew_UnknownLevelFallsBackToInfo(t *testing.T) {
	l := New("chatty", "console")
	assert.True(t, l.Core().Enabled(zapcore.InfoLevel))
	assert.False(t, l.Core().Enabled(zapcore.DebugLevel))
}
