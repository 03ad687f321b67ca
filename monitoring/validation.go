package monitoring

import (
	"fmt"
	"log/slog"
	"math"

	"github.com/aurawell/pulse/config/adaptive"
)

// FieldType names the expected JSON shape of a schema field.
type FieldType string

const (
	FieldString FieldType = "string"
	FieldNumber FieldType = "number"
	FieldBool   FieldType = "bool"
	FieldObject FieldType = "object"
	FieldArray  FieldType = "array"
)

// Schema describes the expected shape of one payload kind.
type Schema struct {
	Name     string
	Required []string
	Fields   map[string]FieldType

	// Check, when set, runs after structural validation and may reject
	// payloads on semantic grounds.
	Check func(payload map[string]any) error
}

// ValidationError describes one failed check within a payload.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Result is the outcome of validating one payload.
type Result struct {
	Valid  bool              `json:"valid"`
	Errors []ValidationError `json:"errors,omitempty"`
}

// Validator checks payloads against registered schemas. It is active only
// when the configuration enables development mode; in production it is a
// no-op that always reports valid, so validation can stay wired into hot
// paths without cost.
type Validator struct {
	enabled bool
	schemas map[string]Schema
	logger  *slog.Logger
}

// NewValidator creates a validator. A nil config disables it.
func NewValidator(cfg *adaptive.Config, logger *slog.Logger) *Validator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Validator{
		enabled: cfg != nil && cfg.Development,
		schemas: make(map[string]Schema),
		logger:  logger,
	}
}

// Enabled reports whether validation is active.
func (v *Validator) Enabled() bool {
	return v.enabled
}

// Register adds or replaces a schema under its name.
func (v *Validator) Register(schema Schema) {
	v.schemas[schema.Name] = schema
}

// Validate checks a payload against the named schema and logs each failure
// at warning level. Disabled validators and unknown schemas report valid.
func (v *Validator) Validate(schemaName string, payload map[string]any) Result {
	if !v.enabled {
		return Result{Valid: true}
	}

	schema, ok := v.schemas[schemaName]
	if !ok {
		return Result{Valid: true}
	}

	result := v.check(schema, payload)
	for _, verr := range result.Errors {
		v.logger.Warn("payload validation failed",
			slog.String("schema", schemaName),
			slog.String("field", verr.Field),
			slog.String("message", verr.Message),
		)
	}
	return result
}

// ValidateStrict is Validate for call sites that want a hard failure: the
// first error is returned instead of logged.
func (v *Validator) ValidateStrict(schemaName string, payload map[string]any) error {
	if !v.enabled {
		return nil
	}

	schema, ok := v.schemas[schemaName]
	if !ok {
		return nil
	}

	result := v.check(schema, payload)
	if result.Valid {
		return nil
	}
	return fmt.Errorf("validate %s: %w", schemaName, result.Errors[0])
}

func (v *Validator) check(schema Schema, payload map[string]any) Result {
	var errs []ValidationError

	if payload == nil {
		errs = append(errs, ValidationError{Message: "payload is nil"})
		return Result{Valid: false, Errors: errs}
	}

	for _, field := range schema.Required {
		if _, ok := payload[field]; !ok {
			errs = append(errs, ValidationError{Field: field, Message: "required field missing"})
		}
	}

	for field, want := range schema.Fields {
		value, ok := payload[field]
		if !ok {
			continue
		}
		if msg := checkFieldType(value, want); msg != "" {
			errs = append(errs, ValidationError{Field: field, Message: msg})
		}
	}

	if len(errs) == 0 && schema.Check != nil {
		if err := schema.Check(payload); err != nil {
			errs = append(errs, ValidationError{Message: err.Error()})
		}
	}

	return Result{Valid: len(errs) == 0, Errors: errs}
}

func checkFieldType(value any, want FieldType) string {
	switch want {
	case FieldString:
		if _, ok := value.(string); !ok {
			return fmt.Sprintf("expected string, got %T", value)
		}
	case FieldNumber:
		f, ok := toFloat(value)
		if !ok {
			return fmt.Sprintf("expected number, got %T", value)
		}
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return "number is not finite"
		}
	case FieldBool:
		if _, ok := value.(bool); !ok {
			return fmt.Sprintf("expected bool, got %T", value)
		}
	case FieldObject:
		if _, ok := value.(map[string]any); !ok {
			return fmt.Sprintf("expected object, got %T", value)
		}
	case FieldArray:
		if _, ok := value.([]any); !ok {
			return fmt.Sprintf("expected array, got %T", value)
		}
	}
	return ""
}

func toFloat(value any) (float64, bool) {
	switch n := value.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}

// MetricPayloadSchema is the schema the collector applies to inbound
// report payloads when running in development mode.
func MetricPayloadSchema() Schema {
	return Schema{
		Name:     "metric_report",
		Required: []string{"session_id", "metrics"},
		Fields: map[string]FieldType{
			"session_id": FieldString,
			"metrics":    FieldArray,
			"device":     FieldObject,
		},
	}
}
