package openai_provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/briefly-ai/briefly/config"
	"github.com/briefly-ai/briefly/internal/brief"
)

// Recorder receives per-call telemetry. The telemetry package satisfies it.
type Recorder interface {
	RecordLLMRequest(tier string, took time.Duration, err error)
}

// Client implements brief.Generator against the OpenAI chat completions
// API. The primary tier runs the configured primary model (planning,
// synthesis); the secondary tier runs the cheaper model (condensation,
// per-source summaries).
type Client struct {
	cfg        config.LLMConfig
	httpClient *http.Client
	recorder   Recorder
}

// Message represents a message in a conversation.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type request struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
}

type response struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// New creates an OpenAI client. recorder may be nil.
func New(cfg config.LLMConfig, recorder Recorder) *Client {
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		recorder:   recorder,
	}
}

// Generate sends one chat completion request on the model for the tier.
// Transient transport failures are retried with backoff up to
// cfg.MaxRetries extra attempts.
func (c *Client) Generate(ctx context.Context, prompt string, tier brief.ModelTier) (string, error) {
	model := c.cfg.PrimaryModel
	if tier == brief.TierSecondary {
		model = c.cfg.SecondaryModel
	}

	start := time.Now()
	out, err := c.sendWithRetry(ctx, model, []Message{{Role: "user", Content: prompt}})
	if c.recorder != nil {
		c.recorder.RecordLLMRequest(string(tier), time.Since(start), err)
	}
	return out, err
}

func (c *Client) sendWithRetry(ctx context.Context, model string, messages []Message) (string, error) {
	var lastErr error
	for attempt := 0; attempt <= c.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(time.Duration(attempt) * time.Second):
			}
		}
		out, retryable, err := c.sendRequest(ctx, model, messages)
		if err == nil {
			return out, nil
		}
		lastErr = err
		if !retryable {
			break
		}
	}
	return "", lastErr
}

func (c *Client) sendRequest(ctx context.Context, model string, messages []Message) (string, bool, error) {
	requestBody := request{
		Model:       model,
		Messages:    messages,
		Temperature: c.cfg.Temperature,
		MaxTokens:   c.cfg.MaxTokens,
	}

	jsonData, err := json.Marshal(requestBody)
	if err != nil {
		return "", false, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/chat/completions", bytes.NewBuffer(jsonData))
	if err != nil {
		return "", false, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", ctx.Err() == nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", true, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		retryable := resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500
		return "", retryable, fmt.Errorf("API returned status %d: %s", resp.StatusCode, truncate(string(body), 200))
	}

	var openaiResp response
	if err := json.Unmarshal(body, &openaiResp); err != nil {
		return "", false, fmt.Errorf("failed to parse response: %w", err)
	}
	if len(openaiResp.Choices) == 0 {
		return "", false, fmt.Errorf("no choices in response")
	}
	return openaiResp.Choices[0].Message.Content, false, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
