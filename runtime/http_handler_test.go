package runtime

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func testServer(t *testing.T, settings *Settings, factory ProviderFactory) (*gin.Engine, *prometheus.Registry) {
	t.Helper()
	l := slog.New(slog.NewTextHandler(io.Discard, nil))
	app, err := NewApp("")
	require.NoError(t, err)

	reg := prometheus.NewRegistry()
	executor := NewExecutor(l, WithMetrics(NewMetrics(reg)))
	runner := NewRunner(l, settings, executor, factory)
	return NewServer(l, app, runner, reg).SetupRoutes(), reg
}

func doJSON(router http.Handler, method, path, body string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

type runBody struct {
	Steps   []StepResult      `json:"steps"`
	Context map[string]string `json:"context"`
	Mock    bool              `json:"mock"`
}

func TestHandleRun_Mock(t *testing.T) {
	router, _ := testServer(t, &Settings{}, nil)
	body := `{
		"steps": [{"id":"s1","title":"T1","userPrompt":"Hi {{name}}","outputKey":"o1"}],
		"inputVariables": {"name":"World"}
	}`

	w := doJSON(router, http.MethodPost, "/api/flow/run", body)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.NotEmpty(t, w.Header().Get(RunIDHeader))

	var resp runBody
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Mock)
	require.Len(t, resp.Steps, 1)
	assert.Equal(t, "🔧 Mocked response for \"T1\"\nContext → name: World", resp.Steps[0].Output)
	assert.Equal(t, DefaultModel, resp.Steps[0].Model)
	assert.Equal(t, 0.3, resp.Steps[0].Temperature)
	assert.Nil(t, resp.Steps[0].Tokens)
	assert.Equal(t, map[string]string{"name": "World", "o1": resp.Steps[0].Output}, resp.Context)
	assert.NotContains(t, w.Body.String(), "tokens")
}

func TestHandleRun_ContextKeepsOrder(t *testing.T) {
	router, _ := testServer(t, &Settings{}, nil)
	body := `{
		"steps": [{"id":"s1","title":"T","userPrompt":"go","outputKey":"out"}],
		"inputVariables": {"zeta":"1","alpha":"2"}
	}`

	w := doJSON(router, http.MethodPost, "/api/flow/run", body)
	require.Equal(t, http.StatusOK, w.Code)
	ctxStart := strings.Index(w.Body.String(), `"context":`)
	require.GreaterOrEqual(t, ctxStart, 0)
	ctxJSON := w.Body.String()[ctxStart:]
	assert.Less(t, strings.Index(ctxJSON, `"zeta"`), strings.Index(ctxJSON, `"alpha"`))
	assert.Less(t, strings.Index(ctxJSON, `"alpha"`), strings.Index(ctxJSON, `"out"`))
}

func TestHandleRun_Live(t *testing.T) {
	provider := &recordingProvider{reply: func(req CompletionRequest) (Completion, error) {
		return Completion{Content: "live!", Usage: &TokenUsage{Input: 3, Output: 4, Total: 7}}, nil
	}}
	var calls []factoryCall
	router, reg := testServer(t, &Settings{}, recordingFactory(&calls, provider))
	body := `{
		"steps": [{"id":"s1","title":"T","systemPrompt":"Be brief","userPrompt":"go","model":"gpt-4o","temperature":0,"outputKey":"out"}],
		"apiKey": "sk-req",
		"baseUrl": "https://llm.internal/v1"
	}`

	w := doJSON(router, http.MethodPost, "/api/flow/run", body)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp runBody
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.False(t, resp.Mock)
	assert.Equal(t, "live!", resp.Steps[0].Output)
	assert.Equal(t, 0.0, resp.Steps[0].Temperature)
	assert.Equal(t, &TokenUsage{Input: 3, Output: 4, Total: 7}, resp.Steps[0].Tokens)
	assert.Equal(t, []factoryCall{{"sk-req", "https://llm.internal/v1"}}, calls)
	assert.Equal(t, 0.0, provider.calls[0].Temperature)

	mfs, err := reg.Gather()
	require.NoError(t, err)
	names := make([]string, 0, len(mfs))
	for _, mf := range mfs {
		names = append(names, mf.GetName())
	}
	assert.Contains(t, names, "flowforge_tokens_total")
}

func TestHandleRun_InvalidRequest(t *testing.T) {
	router, _ := testServer(t, &Settings{}, nil)

	tests := map[string]string{
		"empty steps":       `{"steps":[]}`,
		"missing steps":     `{}`,
		"missing id":        `{"steps":[{"title":"T","userPrompt":"p","outputKey":"o"}]}`,
		"temperature range": `{"steps":[{"id":"s1","title":"T","userPrompt":"p","outputKey":"o","temperature":3}]}`,
		"blank api key":     `{"steps":[{"id":"s1","title":"T","userPrompt":"p","outputKey":"o"}],"apiKey":"  "}`,
		"bad base url":      `{"steps":[{"id":"s1","title":"T","userPrompt":"p","outputKey":"o"}],"baseUrl":"nope"}`,
	}
	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			w := doJSON(router, http.MethodPost, "/api/flow/run", body)
			require.Equal(t, http.StatusBadRequest, w.Code)

			var resp ErrorResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.Equal(t, "Invalid request", resp.Message)
			assert.NotEmpty(t, resp.Issues)
		})
	}
}

func TestHandleRun_MalformedBody(t *testing.T) {
	router, _ := testServer(t, &Settings{}, nil)

	for _, body := range []string{
		`{not json`,
		`{"inputVariables":{"n":1},"steps":[]}`,
		`{"steps":[{"id":"s1","title":"T","userPrompt":"p","outputKey":"o","model":null}]}`,
		`{"steps":[{"id":"s1","title":"T","userPrompt":"p","outputKey":"o","model":""}]}`,
		`{"steps":[{"id":"s1","title":"T","userPrompt":"p","outputKey":"o","temperature":null}]}`,
	} {
		w := doJSON(router, http.MethodPost, "/api/flow/run", body)
		require.Equal(t, http.StatusBadRequest, w.Code, body)

		var resp ErrorResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, "Invalid request", resp.Message)
		require.Len(t, resp.Issues, 1)
		assert.Equal(t, "json", resp.Issues[0].Rule)
	}
}

func TestHandleRun_EmptyPrompt(t *testing.T) {
	router, _ := testServer(t, &Settings{}, nil)
	body := `{"steps":[{"id":"s1","title":"Ghost","userPrompt":"{{missing}}","outputKey":"o"}]}`

	w := doJSON(router, http.MethodPost, "/api/flow/run", body)
	require.Equal(t, http.StatusInternalServerError, w.Code)

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, `Step "Ghost" resolved to an empty user prompt.`, resp.Message)
	assert.Empty(t, resp.Issues)
}

func TestHandleRun_ProviderFailure(t *testing.T) {
	provider := &recordingProvider{reply: func(CompletionRequest) (Completion, error) {
		return Completion{}, errors.New("upstream unavailable")
	}}
	var calls []factoryCall
	router, _ := testServer(t, &Settings{DefaultAPIKey: "sk-env"}, recordingFactory(&calls, provider))
	body := `{"steps":[{"id":"s1","title":"T","userPrompt":"p","outputKey":"o"}]}`

	w := doJSON(router, http.MethodPost, "/api/flow/run", body)
	require.Equal(t, http.StatusInternalServerError, w.Code)

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Contains(t, resp.Message, "upstream unavailable")
}

func TestHandleRun_UnexpectedError(t *testing.T) {
	router, _ := testServer(t, &Settings{DefaultAPIKey: "sk-env"}, func(string, string) (Provider, error) {
		return nil, errors.New("secret detail")
	})
	body := `{"steps":[{"id":"s1","title":"T","userPrompt":"p","outputKey":"o"}]}`

	w := doJSON(router, http.MethodPost, "/api/flow/run", body)
	require.Equal(t, http.StatusInternalServerError, w.Code)

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "Unexpected server error", resp.Message)
}

func TestHandleValidate(t *testing.T) {
	router, _ := testServer(t, &Settings{}, nil)
	body := `{
		"steps": [
			{"id":"a","title":"A","userPrompt":"{{topic}} {{nope}}","outputKey":"x"},
			{"id":"b","title":"B","userPrompt":"{{x}}","outputKey":"x"}
		],
		"inputVariables": {"topic":"t"},
		"apiKey": "sk-secret"
	}`

	w := doJSON(router, http.MethodPost, "/api/flow/validate", body)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.NotContains(t, w.Body.String(), "sk-secret")

	var resp struct {
		Request struct {
			Steps []Step `json:"steps"`
		} `json:"request"`
		Warnings Warnings `json:"warnings"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, DefaultModel, resp.Request.Steps[0].Model)
	assert.Equal(t, []string{"x"}, resp.Warnings.DuplicateOutputKeys)
	assert.Equal(t, []UnresolvedVariable{{StepID: "a", Title: "A", Variable: "nope"}}, resp.Warnings.UnresolvedVariables)
}

func TestHandleValidate_EmptyWarningsAreArrays(t *testing.T) {
	router, _ := testServer(t, &Settings{}, nil)
	w := doJSON(router, http.MethodPost, "/api/flow/validate",
		`{"steps":[{"id":"s1","title":"A","userPrompt":"go","outputKey":"x"}]}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"duplicateOutputKeys":[]`)
	assert.Contains(t, w.Body.String(), `"unresolvedVariables":[]`)
}

func TestFlowEndpoints(t *testing.T) {
	router, _ := testServer(t, &Settings{}, nil)

	w := doJSON(router, http.MethodGet, "/api/flow/default", "")
	require.Equal(t, http.StatusOK, w.Code)
	var flow Flow
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &flow))
	assert.Equal(t, DefaultFlowID, flow.ID)
	assert.Len(t, flow.Steps, 3)
	assert.Equal(t, []string{"product", "audience", "tone"}, flow.InputVariables.Keys())

	w = doJSON(router, http.MethodGet, "/api/flows", "")
	require.Equal(t, http.StatusOK, w.Code)
	var summaries []FlowSummary
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &summaries))
	require.Len(t, summaries, 1)
	assert.Equal(t, 3, summaries[0].Steps)

	w = doJSON(router, http.MethodGet, "/api/flows/"+DefaultFlowID, "")
	assert.Equal(t, http.StatusOK, w.Code)

	w = doJSON(router, http.MethodGet, "/api/flows/unknown", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestDefaultFlowRoundTripsThroughRun(t *testing.T) {
	router, _ := testServer(t, &Settings{}, nil)

	w := doJSON(router, http.MethodGet, "/api/flow/default", "")
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(router, http.MethodPost, "/api/flow/run", w.Body.String())
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp runBody
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Steps, 3)
	assert.Contains(t, resp.Context, "cta")
}

func TestHealthMetricsAndCORS(t *testing.T) {
	router, _ := testServer(t, &Settings{}, nil)

	w := doJSON(router, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())

	doJSON(router, http.MethodPost, "/api/flow/run", `{"steps":[{"id":"s1","title":"T","userPrompt":"p","outputKey":"o"}]}`)
	w = doJSON(router, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `flowforge_runs_total{mode="mock",outcome="success"} 1`)

	req := httptest.NewRequest(http.MethodOptions, "/api/flow/run", bytes.NewReader(nil))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, rec.Header().Get("Access-Control-Expose-Headers"), RunIDHeader)
}
