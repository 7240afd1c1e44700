package runtime

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Flow is a named, reusable flow definition: an ordered list of steps plus
// the input variables it starts from.
type Flow struct {
	ID             string    `yaml:"id" json:"id"`
	Name           string    `yaml:"name" json:"name,omitempty"`
	Description    string    `yaml:"description" json:"description,omitempty"`
	Steps          []Step    `yaml:"steps" json:"steps"`
	InputVariables Variables `yaml:"inputVariables" json:"inputVariables"`
	Checks         []string  `yaml:"checks" json:"checks,omitempty"`
}

// Step is one unit of work in a flow. Temperature is a pointer so that an
// explicit 0 can be told apart from an absent value during defaulting.
type Step struct {
	ID           string   `yaml:"id" json:"id" validate:"required"`
	Title        string   `yaml:"title" json:"title" validate:"required"`
	SystemPrompt string   `yaml:"systemPrompt" json:"systemPrompt"`
	UserPrompt   string   `yaml:"userPrompt" json:"userPrompt" validate:"required"`
	Model        string   `yaml:"model" json:"model" default:"gpt-4o-mini" validate:"required"`
	Temperature  *float64 `yaml:"temperature" json:"temperature" default:"0.3" validate:"required,gte=0,lte=2"`
	OutputKey    string   `yaml:"outputKey" json:"outputKey" validate:"required"`
}

// UnmarshalJSON decodes a step. model and temperature take their defaults
// only when omitted: null for either is rejected, as is an empty model.
func (s *Step) UnmarshalJSON(data []byte) error {
	type plain Step
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	for _, key := range []string{"model", "temperature"} {
		if raw, ok := fields[key]; ok && bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
			return fmt.Errorf("step %s must not be null", key)
		}
	}

	if err := json.Unmarshal(data, (*plain)(s)); err != nil {
		return err
	}
	if _, ok := fields["model"]; ok && s.Model == "" {
		return fmt.Errorf("step model must not be empty")
	}
	return nil
}

// TemperatureValue returns the step temperature, or DefaultTemperature when
// none was set.
func (s Step) TemperatureValue() float64 {
	if s.Temperature == nil {
		return DefaultTemperature
	}
	return *s.Temperature
}

// TokenUsage is the provider-reported token accounting for one completion.
type TokenUsage struct {
	Input  int `json:"input"`
	Output int `json:"output"`
	Total  int `json:"total"`
}

// StepResult is the immutable record of one executed step.
type StepResult struct {
	ID          string      `json:"id"`
	Title       string      `json:"title"`
	OutputKey   string      `json:"outputKey"`
	Output      string      `json:"output"`
	Model       string      `json:"model"`
	Temperature float64     `json:"temperature"`
	Tokens      *TokenUsage `json:"tokens,omitempty"`
}

// RunResponse aggregates a successful run.
type RunResponse struct {
	RunID   string       `json:"-"`
	Steps   []StepResult `json:"steps"`
	Context *Variables   `json:"context"`
	Mock    bool         `json:"mock"`
}

// RunRequest is the externally supplied request to execute a flow.
type RunRequest struct {
	Steps          []Step    `json:"steps" validate:"required,min=1,dive"`
	InputVariables Variables `json:"inputVariables"`
	Mock           *bool     `json:"mock,omitempty"`
	APIKey         *string   `json:"apiKey,omitempty" validate:"omitnil,min=1"`
	BaseURL        *string   `json:"baseUrl,omitempty" validate:"omitnil,min=1,url_format"`
}

const (
	DefaultModel       = "gpt-4o-mini"
	DefaultTemperature = 0.3
)
