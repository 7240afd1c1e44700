package runtime

import "regexp"

// Lookup resolves a template variable by name.
type Lookup interface {
	Lookup(name string) (string, bool)
}

// MapLookup adapts a plain map to Lookup.
type MapLookup map[string]string

func (m MapLookup) Lookup(name string) (string, bool) {
	v, ok := m[name]
	return v, ok
}

type (
	// MissingVariableFunc supplies a replacement for a placeholder whose
	// name is not present in the context.
	MissingVariableFunc func(name string) string

	// RenderOption configures Render.
	RenderOption func(*renderOptions)

	renderOptions struct {
		onMissing MissingVariableFunc
	}
)

var placeholderPattern = regexp.MustCompile(`{{\s*([A-Za-z0-9_-]+)\s*}}`)

// WithMissingVariable installs a missing-variable handler.
func WithMissingVariable(fn MissingVariableFunc) RenderOption {
	return func(o *renderOptions) {
		o.onMissing = fn
	}
}

// EmptyForMissing substitutes the empty string for unresolved names. Prompts
// are sent to a model as natural language, so raw {{var}} text must not leak.
var EmptyForMissing = WithMissingVariable(func(string) string { return "" })

// Render substitutes {{name}} placeholders from ctx. A name present in ctx
// is replaced by its value even when that value is empty. An absent name is
// passed to the missing-variable handler if one is set and otherwise left
// exactly as written, inner whitespace included: "{{ x }}" stays "{{ x }}"
// rather than being normalized to "{{x}}". Substituted values are never
// re-scanned.
func Render(template string, ctx Lookup, opts ...RenderOption) string {
	var o renderOptions
	for _, opt := range opts {
		opt(&o)
	}

	return placeholderPattern.ReplaceAllStringFunc(template, func(match string) string {
		name := placeholderPattern.FindStringSubmatch(match)[1]
		if ctx != nil {
			if v, ok := ctx.Lookup(name); ok {
				return v
			}
		}
		if o.onMissing != nil {
			return o.onMissing(name)
		}
		return match
	})
}

// Placeholders lists the variable names referenced by template, in order of
// first appearance and without duplicates.
func Placeholders(template string) []string {
	var names []string
	seen := map[string]bool{}
	for _, m := range placeholderPattern.FindAllStringSubmatch(template, -1) {
		if !seen[m[1]] {
			seen[m[1]] = true
			names = append(names, m[1])
		}
	}
	return names
}
