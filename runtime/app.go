package runtime

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// App is the library of flow definitions served to the studio.
type App struct {
	Flows map[string]Flow
}

// NewApp registers the built-in starter flow, then every flow file in
// flowsDir matched by one of the loaders. A missing directory is not an
// error. Each loaded flow must pass ValidateRequest.
func NewApp(flowsDir string, loaders ...FlowLoader) (*App, error) {
	app := App{
		Flows: make(map[string]Flow),
	}
	app.RegisterFlow(DefaultFlow())

	if flowsDir == "" {
		return &app, nil
	}
	if _, err := os.Stat(flowsDir); errors.Is(err, fs.ErrNotExist) {
		return &app, nil
	}

	for _, loader := range loaders {
		for _, ext := range loader.Extensions() {
			files, err := filepath.Glob(filepath.Join(flowsDir, ext))
			if err != nil {
				return nil, fmt.Errorf("error reading directory: %w", err)
			}

			for _, file := range files {
				flow, err := LoadFlowFile(loader, file)
				if err != nil {
					return nil, err
				}
				app.RegisterFlow(flow)
			}
		}
	}

	return &app, nil
}

// LoadFlowFile loads one file and validates it like a run request. A flow
// without an id is named after its file.
func LoadFlowFile(loader FlowLoader, file string) (Flow, error) {
	flow, err := loader.Load(file)
	if err != nil {
		return Flow{}, fmt.Errorf("error loading flow %s: %w", file, err)
	}
	if flow.ID == "" {
		flow.ID = strings.TrimSuffix(filepath.Base(file), filepath.Ext(file))
	}
	if err := ValidateFlow(&flow); err != nil {
		return Flow{}, fmt.Errorf("invalid flow %s: %w", file, err)
	}
	return flow, nil
}

// ValidateFlow runs the request contract over a flow definition and keeps
// the normalized steps.
func ValidateFlow(flow *Flow) error {
	req := flow.Request()
	if err := ValidateRequest(req); err != nil {
		return err
	}
	flow.Steps = req.Steps
	return nil
}

// Request builds a run request from the flow definition.
func (f Flow) Request() *RunRequest {
	return &RunRequest{
		Steps:          append([]Step(nil), f.Steps...),
		InputVariables: *f.InputVariables.Clone(),
	}
}

func (a *App) RegisterFlow(flow Flow) {
	a.Flows[flow.ID] = flow
}

// Flow returns the flow registered under id.
func (a *App) Flow(id string) (Flow, bool) {
	f, ok := a.Flows[id]
	return f, ok
}

// FlowIDs returns the registered flow ids in sorted order.
func (a *App) FlowIDs() []string {
	return sortedKeys(a.Flows)
}
