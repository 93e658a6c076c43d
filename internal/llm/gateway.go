package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"astba/training-app/internal/config"
	"astba/training-app/internal/logger"
	"astba/training-app/internal/metrics"
	"astba/training-app/internal/plan"
)

const (
	chatCompletionsPath = "/v1/chat/completions"
	schemaName          = "training_plan_v1"
	maxLoggedBody       = 2 << 10
	defaultTimeout      = 20 * time.Second
)

// Request carries everything needed for one plan generation call. Language,
// PromptText and Constraints are only used in stub mode.
type Request struct {
	SystemPrompt string
	UserPrompt   string
	Schema       map[string]any
	Language     string
	PromptText   string
	Constraints  *plan.Constraints
}

// Gateway returns the raw text a model produced for a plan request.
type Gateway interface {
	RequestPlanJSON(ctx context.Context, req Request) (string, error)
}

// Client talks to an OpenAI-compatible chat completions endpoint.
type Client struct {
	baseURL     string
	apiKey      string
	model       string
	maxTokens   int
	temperature float64
	timeout     time.Duration
	stub        bool

	httpClient *http.Client
	log        *logger.Logger
}

func NewClient(cfg config.LLMConfig, log *logger.Logger) *Client {
	timeout := timeoutOf(cfg)
	tr := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   timeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		ForceAttemptHTTP2:   true,
		MaxIdleConns:        20,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	}
	return NewClientWithHTTPClient(cfg, &http.Client{Transport: tr}, log)
}

// NewClientWithHTTPClient is used by tests to point the client at a fake provider.
func NewClientWithHTTPClient(cfg config.LLMConfig, httpClient *http.Client, log *logger.Logger) *Client {
	if log == nil {
		log = logger.NewNop()
	}
	return &Client{
		baseURL:     strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
		apiKey:      strings.TrimSpace(cfg.APIKey),
		model:       cfg.Model,
		maxTokens:   cfg.MaxTokens,
		temperature: cfg.Temperature,
		timeout:     timeoutOf(cfg),
		stub:        cfg.StubEnabled,
		httpClient:  httpClient,
		log:         log.With("component", "llm"),
	}
}

func timeoutOf(cfg config.LLMConfig) time.Duration {
	if t := cfg.Timeout(); t > 0 {
		return t
	}
	return defaultTimeout
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletionRequest struct {
	Model          string         `json:"model"`
	Temperature    float64        `json:"temperature"`
	MaxTokens      int            `json:"max_tokens"`
	Messages       []chatMessage  `json:"messages"`
	ResponseFormat map[string]any `json:"response_format"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message struct {
			Content json.RawMessage `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

func (c *Client) RequestPlanJSON(ctx context.Context, req Request) (string, error) {
	if c.stub {
		b, err := json.Marshal(plan.BuildStub(req.Language, req.PromptText, req.Constraints))
		if err != nil {
			return "", err
		}
		return string(b), nil
	}
	if c.apiKey == "" {
		return "", ErrProviderNotConfigured
	}

	body := chatCompletionRequest{
		Model:       c.model,
		Temperature: c.temperature,
		MaxTokens:   c.maxTokens,
		Messages: []chatMessage{
			{Role: "system", Content: req.SystemPrompt},
			{Role: "user", Content: req.UserPrompt},
		},
		ResponseFormat: map[string]any{
			"type": "json_schema",
			"json_schema": map[string]any{
				"name":   schemaName,
				"schema": req.Schema,
			},
		},
	}
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(body); err != nil {
		return "", err
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+chatCompletionsPath, &buf)
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if isTimeout(ctx, err) {
			metrics.LLMRequestDuration.WithLabelValues("timeout").Observe(time.Since(start).Seconds())
			c.log.Warn("provider call timed out", "timeout", c.timeout, "model", c.model)
			return "", ErrTimeout
		}
		metrics.LLMRequestDuration.WithLabelValues("transport_error").Observe(time.Since(start).Seconds())
		c.log.Error("provider call failed", "error", err)
		return "", fmt.Errorf("%w: %v", ErrProviderError, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxLoggedBody))
		metrics.LLMRequestDuration.WithLabelValues("http_error").Observe(time.Since(start).Seconds())
		c.log.Error("provider returned error status",
			"status", resp.StatusCode,
			"provider_request_id", resp.Header.Get("x-request-id"),
			"body", string(raw))
		return "", ErrProviderError
	}

	var out chatCompletionResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		if isTimeout(ctx, err) {
			metrics.LLMRequestDuration.WithLabelValues("timeout").Observe(time.Since(start).Seconds())
			return "", ErrTimeout
		}
		metrics.LLMRequestDuration.WithLabelValues("bad_envelope").Observe(time.Since(start).Seconds())
		c.log.Error("provider response is not a chat completion envelope", "error", err)
		return "", ErrEmptyResponse
	}
	metrics.LLMRequestDuration.WithLabelValues("ok").Observe(time.Since(start).Seconds())

	if len(out.Choices) == 0 {
		return "", ErrEmptyResponse
	}
	return extractContent(out.Choices[0].Message.Content)
}

// extractContent returns string content as is and re-serializes object or array
// content. Null, missing or blank content is ErrEmptyResponse.
func extractContent(raw json.RawMessage) (string, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return "", ErrEmptyResponse
	}
	switch trimmed[0] {
	case '"':
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return "", ErrEmptyResponse
		}
		if strings.TrimSpace(s) == "" {
			return "", ErrEmptyResponse
		}
		return s, nil
	case '{', '[':
		var compact bytes.Buffer
		if err := json.Compact(&compact, trimmed); err != nil {
			return "", ErrEmptyResponse
		}
		return compact.String(), nil
	default:
		return "", ErrEmptyResponse
	}
}

func isTimeout(ctx context.Context, err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
