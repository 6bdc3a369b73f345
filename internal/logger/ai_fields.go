package logger

import (
	"strings"

	"go.uber.org/zap"
)

const (
	// FieldProvider is the structured log field key for the AI provider name.
	FieldProvider = "ai_provider"
	// FieldModel is the structured log field key for the AI model identifier.
	FieldModel = "ai_model"
	// FieldComponent names the pipeline component (extractor, synthesizer, resolver).
	FieldComponent = "component"
	// FieldRequestID carries the per-request correlation id.
	FieldRequestID = "request_id"
)

// StringField describes a string-valued structured logging field.
type StringField struct {
	Key   string
	Value string
}

// StringFields converts the provided key/value pairs into zap fields, trimming
// whitespace and omitting entries with empty keys or values.
func StringFields(fields ...StringField) []zap.Field {
	result := make([]zap.Field, 0, len(fields))
	for _, field := range fields {
		key := strings.TrimSpace(field.Key)
		if key == "" {
			continue
		}

		value := strings.TrimSpace(field.Value)
		if value == "" {
			continue
		}

		result = append(result, zap.String(key, value))
	}

	return result
}

// WithFields attaches the provided fields to the logger, defaulting to a
// no-op logger when nil.
func WithFields(logger *zap.Logger, fields ...zap.Field) *zap.Logger {
	if logger == nil {
		logger = zap.NewNop()
	}

	if len(fields) == 0 {
		return logger
	}

	return logger.With(fields...)
}

// CommonFields returns the fields that describe which component talks to which model.
// Empty values are skipped.
func CommonFields(component, provider, model string) []zap.Field {
	return StringFields(
		StringField{Key: FieldComponent, Value: component},
		StringField{Key: FieldProvider, Value: provider},
		StringField{Key: FieldModel, Value: model},
	)
}

// WithCommonFields attaches the common AI fields to the provided logger.
func WithCommonFields(logger *zap.Logger, component, provider, model string) *zap.Logger {
	return WithFields(logger, CommonFields(component, provider, model)...)
}

// WithRequestID tags every entry of the returned logger with the request id.
func WithRequestID(logger *zap.Logger, id string) *zap.Logger {
	return WithFields(logger, StringFields(StringField{Key: FieldRequestID, Value: id})...)
}
