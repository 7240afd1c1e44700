package runtime

// UnresolvedVariable is a placeholder that no input variable or earlier step
// provides. It renders as the empty string at run time.
type UnresolvedVariable struct {
	StepID   string `json:"stepId"`
	Title    string `json:"title"`
	Variable string `json:"variable"`
}

// UnresolvedVariables walks steps in order, tracking which names are
// available from inputs and earlier output keys, and reports every
// placeholder referenced before it is available.
func UnresolvedVariables(steps []Step, inputs *Variables) []UnresolvedVariable {
	available := map[string]bool{}
	for _, k := range inputs.Keys() {
		available[k] = true
	}

	var out []UnresolvedVariable
	for _, s := range steps {
		for _, name := range Placeholders(s.SystemPrompt + "\n" + s.UserPrompt) {
			if !available[name] {
				out = append(out, UnresolvedVariable{StepID: s.ID, Title: s.Title, Variable: name})
			}
		}
		available[s.OutputKey] = true
	}
	return out
}
