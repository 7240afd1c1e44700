package runtime

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStep_UnmarshalJSON_OmittedFieldsTakeDefaults(t *testing.T) {
	var req RunRequest
	require.NoError(t, json.Unmarshal([]byte(`{"steps":[{"id":"a","title":"A","userPrompt":"p","outputKey":"a"}]}`), &req))
	require.NoError(t, ValidateRequest(&req))

	assert.Equal(t, DefaultModel, req.Steps[0].Model)
	assert.Equal(t, DefaultTemperature, *req.Steps[0].Temperature)
}

func TestStep_UnmarshalJSON_ExplicitValues(t *testing.T) {
	var step Step
	require.NoError(t, json.Unmarshal([]byte(`{"id":"a","model":"gpt-4o","temperature":0}`), &step))
	assert.Equal(t, "gpt-4o", step.Model)
	require.NotNil(t, step.Temperature)
	assert.Equal(t, 0.0, *step.Temperature)
}

func TestStep_UnmarshalJSON_Rejects(t *testing.T) {
	tests := map[string]struct {
		body string
		err  string
	}{
		"null model":       {`{"id":"a","model":null}`, "step model must not be null"},
		"null temperature": {`{"id":"a","temperature":null}`, "step temperature must not be null"},
		"empty model":      {`{"id":"a","model":""}`, "step model must not be empty"},
		"not an object":    {`"step"`, "cannot unmarshal"},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			var step Step
			assert.ErrorContains(t, json.Unmarshal([]byte(tt.body), &step), tt.err)
		})
	}
}
