package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/Jeffail/gabs/v2"
	"github.com/go-resty/resty/v2"

	"github.com/flowforge/flowforge/runtime"
)

const completionsPath = "/chat/completions"

// Config holds the provider configuration with declarative tags
type Config struct {
	APIKey      string        `yaml:"api_key" validate:"required"`
	BaseURL     string        `yaml:"base_url" default:"https://api.openai.com/v1" validate:"required,url_format"`
	Timeout     time.Duration `yaml:"timeout" default:"2m" validate:"gte=1s"`
	MaxRetries  int           `yaml:"max_retries" default:"0" validate:"gte=0,lte=10"`
	RetryWaitMS int           `yaml:"retry_wait_ms" default:"500" validate:"gte=0,lte=10000"`
	Debug       bool          `yaml:"debug" default:"false"`
}

// CompletionError is returned when the API answers with a non-2xx status.
type CompletionError struct {
	StatusCode int
	Message    string
}

func (e *CompletionError) Error() string {
	return fmt.Sprintf("completion API returned %d: %s", e.StatusCode, e.Message)
}

// Provider calls an OpenAI-compatible chat completions endpoint.
type Provider struct {
	config Config
	client *resty.Client
}

var _ runtime.Provider = (*Provider)(nil)

// New validates cfg and builds the resty client.
func New(cfg Config) (*Provider, error) {
	if err := runtime.InitializeConfig(&cfg, nil); err != nil {
		return nil, fmt.Errorf("invalid openai provider config: %w", err)
	}

	client := resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetAuthToken(cfg.APIKey).
		SetHeader("Content-Type", "application/json").
		SetTimeout(cfg.Timeout).
		SetRetryCount(cfg.MaxRetries).
		SetRetryWaitTime(time.Duration(cfg.RetryWaitMS) * time.Millisecond).
		SetDebug(cfg.Debug)

	return &Provider{config: cfg, client: client}, nil
}

// NewFactory returns a runtime.ProviderFactory that builds providers with
// the transport settings of s and per-request credentials.
func NewFactory(s *runtime.Settings) runtime.ProviderFactory {
	return func(apiKey, baseURL string) (runtime.Provider, error) {
		return New(Config{
			APIKey:     apiKey,
			BaseURL:    baseURL,
			Timeout:    s.ProviderTimeout,
			MaxRetries: s.ProviderRetries,
		})
	}
}

// Complete sends one non-streaming chat completion and waits for the full
// answer. Missing content yields an empty string; usage is only set when
// the response carries a non-null usage object.
func (p *Provider) Complete(ctx context.Context, req runtime.CompletionRequest) (runtime.Completion, error) {
	resp, err := p.client.R().
		SetContext(ctx).
		SetBody(req).
		Post(completionsPath)
	if err != nil {
		return runtime.Completion{}, fmt.Errorf("completion request failed: %w", err)
	}

	if resp.IsError() {
		return runtime.Completion{}, &CompletionError{
			StatusCode: resp.StatusCode(),
			Message:    errorMessage(resp.Body()),
		}
	}

	parsed, err := gabs.ParseJSON(resp.Body())
	if err != nil {
		return runtime.Completion{}, fmt.Errorf("error parsing completion response: %w", err)
	}

	content, _ := parsed.Path("choices.0.message.content").Data().(string)
	out := runtime.Completion{Content: content}

	if _, ok := parsed.Search("usage").Data().(map[string]any); ok {
		out.Usage = &runtime.TokenUsage{
			Input:  intAt(parsed, "usage.prompt_tokens"),
			Output: intAt(parsed, "usage.completion_tokens"),
			Total:  intAt(parsed, "usage.total_tokens"),
		}
	}
	return out, nil
}

// errorMessage extracts error.message from an API error body, falling back
// to the raw body.
func errorMessage(body []byte) string {
	if parsed, err := gabs.ParseJSON(body); err == nil {
		if msg, ok := parsed.Path("error.message").Data().(string); ok && msg != "" {
			return msg
		}
	}
	msg := strings.TrimSpace(string(body))
	if msg == "" {
		return "empty response body"
	}
	return msg
}

func intAt(c *gabs.Container, path string) int {
	switch v := c.Path(path).Data().(type) {
	case float64:
		return int(v)
	case json.Number:
		n, _ := v.Int64()
		return int(n)
	default:
		return 0
	}
}
