package yaml

import (
	"fmt"

	"github.com/expr-lang/expr"

	"github.com/flowforge/flowforge/runtime"
)

// CheckResult is the outcome of one flow check.
type CheckResult struct {
	Expression string `json:"expression"`
	Passed     bool   `json:"passed"`
	Error      string `json:"error,omitempty"`
}

// ExpressionEvaluator evaluates flow checks with expr-lang against a run
// context. Keys are exposed as variables through runtime.FormatKey, and
// hyphenated names in expressions are rewritten to match. lookup(name) looks
// a key up by its exact name.
type ExpressionEvaluator struct{}

func NewExpressionEvaluator() *ExpressionEvaluator {
	return &ExpressionEvaluator{}
}

func (e *ExpressionEvaluator) Eval(expression string, ctx *runtime.Variables) (any, error) {
	env := make(map[string]any, ctx.Len())
	for _, k := range ctx.Keys() {
		env[runtime.FormatKey(k)] = ctx.Get(k)
	}

	lookupFn := expr.Function(
		"lookup",
		func(params ...any) (any, error) {
			name, ok := params[0].(string)
			if !ok {
				return nil, fmt.Errorf("lookup() expects a string argument, got %T", params[0])
			}
			return ctx.Get(name), nil
		},
		new(func(string) string),
	)

	definedFn := expr.Function(
		"defined",
		func(params ...any) (any, error) {
			name, ok := params[0].(string)
			if !ok {
				return false, fmt.Errorf("defined() expects a string argument, got %T", params[0])
			}
			_, exists := ctx.Lookup(name)
			return exists, nil
		},
		new(func(string) bool),
	)

	// NOTE: expr.Env MUST come before AllowUndefinedVariables for it to work
	program, err := expr.Compile(runtime.FormatExpression(expression),
		expr.Env(env),
		expr.AllowUndefinedVariables(),
		lookupFn,
		definedFn,
	)
	if err != nil {
		return nil, err
	}
	return expr.Run(program, env)
}

// Check evaluates every expression; a check passes only when it yields true.
func (e *ExpressionEvaluator) Check(expressions []string, ctx *runtime.Variables) []CheckResult {
	results := make([]CheckResult, 0, len(expressions))
	for _, ex := range expressions {
		res := CheckResult{Expression: ex}
		out, err := e.Eval(ex, ctx)
		switch {
		case err != nil:
			res.Error = err.Error()
		default:
			b, ok := out.(bool)
			if !ok {
				res.Error = fmt.Sprintf("check evaluated to %T, expected boolean", out)
			}
			res.Passed = ok && b
		}
		results = append(results, res)
	}
	return results
}
