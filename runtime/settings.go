package runtime

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Settings is the process-wide configuration. It is loaded once at start
// and passed explicitly to the components that need it.
type Settings struct {
	Addr            string        `yaml:"addr" default:":8080" validate:"required,listen_addr"`
	DefaultAPIKey   string        `yaml:"openai_api_key"`
	DefaultBaseURL  string        `yaml:"openai_base_url" validate:"omitempty,url_format"`
	MockEnabled     bool          `yaml:"mock_enabled"`
	FlowsDir        string        `yaml:"flows_dir" default:"flows"`
	RunTimeout      time.Duration `yaml:"run_timeout" default:"5m" validate:"gte=0"`
	ProviderTimeout time.Duration `yaml:"provider_timeout" default:"2m" validate:"gte=1s"`
	ProviderRetries int           `yaml:"provider_retries" default:"0" validate:"gte=0,lte=10"`
	LogLevel        string        `yaml:"log_level" default:"INFO" validate:"oneof=DEBUG INFO WARN ERROR"`
	LogFormat       string        `yaml:"log_format" default:"json" validate:"oneof=json text"`
	Tracing         bool          `yaml:"tracing"`
}

// envBindings maps environment variables onto Settings yaml keys. Later
// entries for the same key take precedence.
var envBindings = []struct {
	env string
	key string
}{
	{"FLOWFORGE_ADDR", "addr"},
	{"OPENAI_API_KEY", "openai_api_key"},
	{"OPENAI_BASE_URL", "openai_base_url"},
	{"NEXT_PUBLIC_ENABLE_MOCKS", "mock_enabled"},
	{"FLOWFORGE_ENABLE_MOCKS", "mock_enabled"},
	{"FLOWFORGE_FLOWS_DIR", "flows_dir"},
	{"FLOWFORGE_RUN_TIMEOUT", "run_timeout"},
	{"FLOWFORGE_PROVIDER_TIMEOUT", "provider_timeout"},
	{"FLOWFORGE_PROVIDER_RETRIES", "provider_retries"},
	{"LOG_LEVEL", "log_level"},
	{"LOG_FORMAT", "log_format"},
	{"FLOWFORGE_TRACING", "tracing"},
}

// boolKeys only accept the literal "true" from the environment.
var boolKeys = map[string]bool{
	"mock_enabled": true,
	"tracing":      true,
}

// LoadSettings builds Settings from defaults, then the optional YAML file at
// path, then the environment as seen through lookupEnv. String values in the
// file may reference the environment as ${VAR} or ${VAR:default}.
func LoadSettings(path string, lookupEnv func(string) (string, bool)) (*Settings, error) {
	raw := map[string]any{}

	if lookupEnv == nil {
		lookupEnv = os.LookupEnv
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("error reading settings file: %w", err)
		}
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("error unmarshalling settings YAML: %w", err)
		}
		if err := expandEnvVars(raw, lookupEnv); err != nil {
			return nil, err
		}
	}
	for _, b := range envBindings {
		v, ok := lookupEnv(b.env)
		if !ok {
			continue
		}
		if boolKeys[b.key] {
			raw[b.key] = v == "true"
			continue
		}
		raw[b.key] = v
	}

	if lvl, ok := raw["log_level"].(string); ok {
		raw["log_level"] = strings.ToUpper(lvl)
	}

	var s Settings
	if err := InitializeConfig(&s, raw); err != nil {
		return nil, err
	}
	return &s, nil
}
