package monitoring

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aurawell/pulse/config/adaptive"
)

func devConfig() *adaptive.Config {
	cfg := adaptive.DefaultConfig()
	cfg.Development = true
	return cfg
}

func TestValidatorDisabledInProduction(t *testing.T) {
	v := NewValidator(adaptive.DefaultConfig(), nil)
	require.False(t, v.Enabled())

	v.Register(Schema{Name: "thing", Required: []string{"id"}})

	result := v.Validate("thing", map[string]any{})
	assert.True(t, result.Valid)
	assert.NoError(t, v.ValidateStrict("thing", nil))
}

func TestValidatorRequiredFields(t *testing.T) {
	v := NewValidator(devConfig(), nil)
	v.Register(Schema{
		Name:     "metric",
		Required: []string{"name", "duration"},
	})

	result := v.Validate("metric", map[string]any{"name": "Widget"})
	require.False(t, result.Valid)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, "duration", result.Errors[0].Field)
}

func TestValidatorFieldTypes(t *testing.T) {
	v := NewValidator(devConfig(), nil)
	v.Register(Schema{
		Name: "metric",
		Fields: map[string]FieldType{
			"name":     FieldString,
			"duration": FieldNumber,
			"slow":     FieldBool,
			"device":   FieldObject,
			"samples":  FieldArray,
		},
	})

	good := map[string]any{
		"name":     "Widget",
		"duration": 5.2,
		"slow":     false,
		"device":   map[string]any{"tier": "medium"},
		"samples":  []any{1.0, 2.0},
	}
	assert.True(t, v.Validate("metric", good).Valid)

	bad := map[string]any{
		"name":     42,
		"duration": "fast",
	}
	result := v.Validate("metric", bad)
	require.False(t, result.Valid)
	assert.Len(t, result.Errors, 2)
}

func TestValidatorRejectsNonFiniteNumbers(t *testing.T) {
	v := NewValidator(devConfig(), nil)
	v.Register(Schema{
		Name:   "metric",
		Fields: map[string]FieldType{"duration": FieldNumber},
	})

	assert.True(t, v.Validate("metric", map[string]any{"duration": 1.5}).Valid)

	result := v.Validate("metric", map[string]any{"duration": math.NaN()})
	assert.False(t, result.Valid)
	result = v.Validate("metric", map[string]any{"duration": math.Inf(1)})
	assert.False(t, result.Valid)
}

func TestValidatorSemanticCheck(t *testing.T) {
	v := NewValidator(devConfig(), nil)
	v.Register(Schema{
		Name:   "metric",
		Fields: map[string]FieldType{"duration": FieldNumber},
		Check: func(payload map[string]any) error {
			if d, ok := payload["duration"].(float64); ok && d < 0 {
				return errors.New("duration cannot be negative")
			}
			return nil
		},
	})

	assert.True(t, v.Validate("metric", map[string]any{"duration": 3.0}).Valid)

	err := v.ValidateStrict("metric", map[string]any{"duration": -3.0})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duration cannot be negative")
}

func TestValidatorNilPayload(t *testing.T) {
	v := NewValidator(devConfig(), nil)
	v.Register(Schema{Name: "metric"})

	result := v.Validate("metric", nil)
	assert.False(t, result.Valid)
}

func TestValidatorUnknownSchemaPasses(t *testing.T) {
	v := NewValidator(devConfig(), nil)
	assert.True(t, v.Validate("never-registered", map[string]any{}).Valid)
}

func TestMetricPayloadSchema(t *testing.T) {
	v := NewValidator(devConfig(), nil)
	v.Register(MetricPayloadSchema())

	valid := map[string]any{
		"session_id": "abc",
		"metrics":    []any{},
	}
	assert.True(t, v.Validate("metric_report", valid).Valid)

	missing := map[string]any{"metrics": []any{}}
	assert.False(t, v.Validate("metric_report", missing).Valid)

	wrongType := map[string]any{
		"session_id": "abc",
		"metrics":    "not-a-list",
	}
	assert.False(t, v.Validate("metric_report", wrongType).Valid)
}
