// Package completion calls an OpenAI-compatible text completion API.
package completion

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/cuongbtq/itinerary-be/internal/itinerary"
	jmespath "github.com/jmespath-community/go-jmespath"
	"golang.org/x/time/rate"
)

const (
	// DefaultEndpoint is the OpenAI chat completions URL
	DefaultEndpoint = "https://api.openai.com/v1/chat/completions"

	// DefaultResponsePath extracts the text of every choice of a chat completion
	DefaultResponsePath = "choices[*].message.content"

	maxErrorBodyBytes = 4 * 1024
)

// Params holds the model parameters sent with every request
type Params struct {
	Model       string
	Temperature float64
	MaxTokens   int
}

// Choice is one completion alternative returned by the provider
type Choice struct {
	Text string
}

// Response is the provider-neutral result of a completion call
type Response struct {
	Choices []Choice
}

// Config holds completion client configuration
type Config struct {
	Endpoint          string
	APIKey            string
	ResponsePath      string        // JMESPath expression selecting choice texts
	Timeout           time.Duration // per request
	RequestsPerSecond float64       // 0 disables client-side rate limiting
	Burst             int
	HTTPClient        *http.Client
}

// Client is an HTTP completion client
type Client struct {
	endpoint     string
	apiKey       string
	responsePath string
	http         *http.Client
	limiter      *rate.Limiter
	logger       *slog.Logger
}

// NewClient creates a completion client, validating the response path
func NewClient(cfg *Config, logger *slog.Logger) (*Client, error) {
	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}

	responsePath := cfg.ResponsePath
	if responsePath == "" {
		responsePath = DefaultResponsePath
	}
	if _, err := jmespath.Compile(responsePath); err != nil {
		return nil, fmt.Errorf("invalid response path %q: %w", responsePath, err)
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 60 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	var limiter *rate.Limiter
	if cfg.RequestsPerSecond > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}

	return &Client{
		endpoint:     endpoint,
		apiKey:       cfg.APIKey,
		responsePath: responsePath,
		http:         httpClient,
		limiter:      limiter,
		logger:       logger,
	}, nil
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

// Complete sends prompt as a single user message. Every failure, including
// a non-2xx status or an undecodable body, wraps itinerary.ErrProvider.
func (c *Client) Complete(ctx context.Context, prompt string, params Params) (*Response, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("%w: rate limiter: %v", itinerary.ErrProvider, err)
		}
	}

	body, err := json.Marshal(chatRequest{
		Model:       params.Model,
		Messages:    []chatMessage{{Role: "user", Content: prompt}},
		Temperature: params.Temperature,
		MaxTokens:   params.MaxTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: failed to encode request: %v", itinerary.ErrProvider, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to build request: %v", itinerary.ErrProvider, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: request failed: %v", itinerary.ErrProvider, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
		c.logger.Warn("Completion request rejected",
			slog.Int("status", resp.StatusCode),
			slog.String("body", string(snippet)),
		)
		return nil, fmt.Errorf("%w: unexpected status %d", itinerary.ErrProvider, resp.StatusCode)
	}

	var raw any
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("%w: failed to decode response: %v", itinerary.ErrProvider, err)
	}

	choices, err := c.extractChoices(raw)
	if err != nil {
		return nil, err
	}

	c.logger.Debug("Completion received",
		slog.Int("choices", len(choices)),
		slog.Duration("latency", time.Since(start)),
	)

	return &Response{Choices: choices}, nil
}

// extractChoices evaluates the response path against the decoded body
func (c *Client) extractChoices(raw any) ([]Choice, error) {
	found, err := jmespath.Search(c.responsePath, raw)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to evaluate response path: %v", itinerary.ErrProvider, err)
	}

	switch v := found.(type) {
	case nil:
		return nil, nil
	case string:
		return []Choice{{Text: v}}, nil
	case []any:
		choices := make([]Choice, 0, len(v))
		for _, item := range v {
			text, _ := item.(string)
			choices = append(choices, Choice{Text: text})
		}
		return choices, nil
	default:
		return nil, fmt.Errorf("%w: response path selected %T", itinerary.ErrProvider, found)
	}
}
