package json

import (
	stdjson "encoding/json"
	"fmt"
	"os"

	"github.com/flowforge/flowforge/runtime"
)

// FlowLoader loads flow definitions exported from the studio as JSON.
type FlowLoader struct{}

func NewFlowLoader() *FlowLoader {
	return &FlowLoader{}
}

func (l *FlowLoader) Extensions() []string {
	return []string{"*.json"}
}

func (l *FlowLoader) Load(filePath string) (runtime.Flow, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return runtime.Flow{}, fmt.Errorf("error reading JSON file: %w", err)
	}

	var flow runtime.Flow
	if err := stdjson.Unmarshal(data, &flow); err != nil {
		return runtime.Flow{}, fmt.Errorf("error unmarshalling JSON: %w", err)
	}

	return flow, nil
}
