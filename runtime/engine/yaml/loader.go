package yaml

import (
	"bytes"
	"fmt"
	"os"

	goyaml "gopkg.in/yaml.v3"

	"github.com/flowforge/flowforge/runtime"
)

// FlowLoader loads flow definitions from YAML files.
type FlowLoader struct{}

func NewFlowLoader() *FlowLoader {
	return &FlowLoader{}
}

func (l *FlowLoader) Extensions() []string {
	return []string{"*.yaml", "*.yml"}
}

func (l *FlowLoader) Load(filePath string) (runtime.Flow, error) {
	yamlFile, err := os.ReadFile(filePath)
	if err != nil {
		return runtime.Flow{}, fmt.Errorf("error reading YAML file: %w", err)
	}

	var flow runtime.Flow
	dec := goyaml.NewDecoder(bytes.NewReader(yamlFile))
	dec.KnownFields(true)
	if err := dec.Decode(&flow); err != nil {
		return runtime.Flow{}, fmt.Errorf("error unmarshalling YAML: %w", err)
	}

	return flow, nil
}
