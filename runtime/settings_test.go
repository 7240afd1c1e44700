package runtime

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func envFrom(m map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := m[key]
		return v, ok
	}
}

func TestLoadSettings_Defaults(t *testing.T) {
	s, err := LoadSettings("", envFrom(nil))
	require.NoError(t, err)

	assert.Equal(t, ":8080", s.Addr)
	assert.Equal(t, "flows", s.FlowsDir)
	assert.Equal(t, 5*time.Minute, s.RunTimeout)
	assert.Equal(t, 2*time.Minute, s.ProviderTimeout)
	assert.Equal(t, 0, s.ProviderRetries)
	assert.Equal(t, "INFO", s.LogLevel)
	assert.Equal(t, "json", s.LogFormat)
	assert.False(t, s.MockEnabled)
	assert.False(t, s.Tracing)
	assert.Empty(t, s.DefaultAPIKey)
}

func TestLoadSettings_Environment(t *testing.T) {
	s, err := LoadSettings("", envFrom(map[string]string{
		"OPENAI_API_KEY":             "sk-env",
		"OPENAI_BASE_URL":            "https://llm.internal/v1",
		"FLOWFORGE_ADDR":             "127.0.0.1:9090",
		"FLOWFORGE_RUN_TIMEOUT":      "90s",
		"FLOWFORGE_PROVIDER_RETRIES": "2",
		"FLOWFORGE_ENABLE_MOCKS":     "true",
		"LOG_LEVEL":                  "debug",
		"LOG_FORMAT":                 "text",
	}))
	require.NoError(t, err)

	assert.Equal(t, "sk-env", s.DefaultAPIKey)
	assert.Equal(t, "https://llm.internal/v1", s.DefaultBaseURL)
	assert.Equal(t, "127.0.0.1:9090", s.Addr)
	assert.Equal(t, 90*time.Second, s.RunTimeout)
	assert.Equal(t, 2, s.ProviderRetries)
	assert.True(t, s.MockEnabled)
	assert.Equal(t, "DEBUG", s.LogLevel)
	assert.Equal(t, "text", s.LogFormat)
}

func TestLoadSettings_MockFlagOnlyAcceptsLiteralTrue(t *testing.T) {
	for _, v := range []string{"1", "TRUE", "yes", ""} {
		s, err := LoadSettings("", envFrom(map[string]string{"NEXT_PUBLIC_ENABLE_MOCKS": v}))
		require.NoError(t, err)
		assert.False(t, s.MockEnabled, "value %q", v)
	}

	s, err := LoadSettings("", envFrom(map[string]string{"NEXT_PUBLIC_ENABLE_MOCKS": "true"}))
	require.NoError(t, err)
	assert.True(t, s.MockEnabled)
}

func TestLoadSettings_FileThenEnvironment(t *testing.T) {
	path := filepath.Join(t.TempDir(), "flowforge.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
addr: ":7000"
flows_dir: /srv/flows
provider_timeout: 30s
openai_api_key: sk-file
`), 0o600))

	s, err := LoadSettings(path, envFrom(map[string]string{"OPENAI_API_KEY": "sk-env"}))
	require.NoError(t, err)

	assert.Equal(t, ":7000", s.Addr)
	assert.Equal(t, "/srv/flows", s.FlowsDir)
	assert.Equal(t, 30*time.Second, s.ProviderTimeout)
	assert.Equal(t, "sk-env", s.DefaultAPIKey)
}

func TestLoadSettings_Invalid(t *testing.T) {
	tests := map[string]map[string]string{
		"log level":  {"LOG_LEVEL": "verbose"},
		"log format": {"LOG_FORMAT": "xml"},
		"base url":   {"OPENAI_BASE_URL": "localhost"},
		"addr":       {"FLOWFORGE_ADDR": "8080"},
		"timeout":    {"FLOWFORGE_PROVIDER_TIMEOUT": "10ms"},
		"retries":    {"FLOWFORGE_PROVIDER_RETRIES": "-1"},
	}
	for name, env := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := LoadSettings("", envFrom(env))
			var verr *ValidationError
			assert.ErrorAs(t, err, &verr)
		})
	}
}

func TestLoadSettings_MissingFile(t *testing.T) {
	_, err := LoadSettings(filepath.Join(t.TempDir(), "absent.yaml"), envFrom(nil))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "error reading settings file")
}

func TestLoadSettings_FileEnvReferences(t *testing.T) {
	path := filepath.Join(t.TempDir(), "flowforge.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
openai_base_url: ${LLM_GATEWAY_URL}
flows_dir: ${FLOWS_DIR:/srv/flows}
`), 0o600))

	s, err := LoadSettings(path, envFrom(map[string]string{"LLM_GATEWAY_URL": "https://gateway/v1"}))
	require.NoError(t, err)
	assert.Equal(t, "https://gateway/v1", s.DefaultBaseURL)
	assert.Equal(t, "/srv/flows", s.FlowsDir)

	_, err = LoadSettings(path, envFrom(nil))
	assert.ErrorContains(t, err, "environment variable LLM_GATEWAY_URL is not set")
}
