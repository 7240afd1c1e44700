package runtime

import (
	"fmt"
	"regexp"
)

// EnvVarSpec is a parsed settings-file value. Values written as ${VAR} or
// ${VAR:default} are read from the environment; anything else is literal.
type EnvVarSpec struct {
	VarName      string
	HasDefault   bool
	DefaultValue string
	IsLiteral    bool
	LiteralValue string
}

// envVarPattern matches ${VAR} and ${VAR:default}
var envVarPattern = regexp.MustCompile(`^\$\{([A-Z_][A-Z0-9_]*)(:[^}]*)?\}$`)

// ParseEnvVar parses a settings-file string value.
//
//	ParseEnvVar("${OPENAI_API_KEY}")           -> required variable
//	ParseEnvVar("${FLOWS_DIR:/srv/flows}")     -> variable with default
//	ParseEnvVar("https://api.openai.com/v1")   -> literal
func ParseEnvVar(value string) EnvVarSpec {
	m := envVarPattern.FindStringSubmatch(value)
	if m == nil {
		return EnvVarSpec{IsLiteral: true, LiteralValue: value}
	}

	spec := EnvVarSpec{VarName: m[1]}
	if m[2] != "" {
		spec.HasDefault = true
		spec.DefaultValue = m[2][1:]
	}
	return spec
}

// Resolve returns the effective value. A required variable that
// is not set is an error; one set to the empty string is not.
func (s EnvVarSpec) Resolve(lookupEnv func(string) (string, bool)) (string, error) {
	if s.IsLiteral {
		return s.LiteralValue, nil
	}
	if v, ok := lookupEnv(s.VarName); ok {
		return v, nil
	}
	if s.HasDefault {
		return s.DefaultValue, nil
	}
	return "", fmt.Errorf("environment variable %s is not set", s.VarName)
}

// expandEnvVars resolves ${VAR} references in the top-level string values of
// a decoded settings file, in place.
func expandEnvVars(raw map[string]any, lookupEnv func(string) (string, bool)) error {
	for _, key := range sortedKeys(raw) {
		s, ok := raw[key].(string)
		if !ok {
			continue
		}
		v, err := ParseEnvVar(s).Resolve(lookupEnv)
		if err != nil {
			return fmt.Errorf("settings key %q: %w", key, err)
		}
		raw[key] = v
	}
	return nil
}
