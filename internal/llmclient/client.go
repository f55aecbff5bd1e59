// Package llmclient posts chat-completion requests to a configured
// OpenAI-compatible endpoint (local or remote) and validates the
// returned translation.
//
// Grounded on teacher translator/llm.go (openAIRequest, message,
// openAIResponse, translateOnce) for the HTTP request/response shape,
// and original_source/translation_service.py (remove_thinking_block,
// is_latin_charset, is_latin_char) for content-validation rules.
package llmclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/Emasoft/enchant-cli-sub000/internal/model"
)

// ErrFatal wraps a response error that the retry wrapper (C5) must treat
// as non-retriable, per spec §4.4: 401-class authentication failures.
type ErrFatal struct{ Err error }

func (e *ErrFatal) Error() string { return e.Err.Error() }
func (e *ErrFatal) Unwrap() error { return e.Err }

// ErrRetriable wraps every other C4 failure: HTTP/network error, JSON
// decode failure, empty choices, charset rejection, too-short output.
type ErrRetriable struct{ Err error }

func (e *ErrRetriable) Error() string { return e.Err.Error() }
func (e *ErrRetriable) Unwrap() error { return e.Err }

// Config configures one endpoint: local OpenAI-compatible (e.g. LM
// Studio) or remote (e.g. OpenRouter).
type Config struct {
	APIKey             string
	APIURL             string
	Model              string
	Temperature        float64 // default 0.05
	MaxTokens          int     // default 4000
	ConnectionTimeout  time.Duration // default 60s
	ResponseTimeout    time.Duration // default 360s
	Remote             bool          // remote endpoints request usage reporting
	LatinRatioThreshold float64      // default 0.10
}

// Client posts translate_messages requests against Config's endpoint.
type Client struct {
	cfg        Config
	httpClient *http.Client
}

// New builds a Client, filling in the spec's defaults for any zero field.
func New(cfg Config) *Client {
	if cfg.Temperature == 0 {
		cfg.Temperature = 0.05
	}
	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = 4000
	}
	if cfg.ConnectionTimeout == 0 {
		cfg.ConnectionTimeout = 60 * time.Second
	}
	if cfg.ResponseTimeout == 0 {
		cfg.ResponseTimeout = 360 * time.Second
	}
	if cfg.LatinRatioThreshold == 0 {
		cfg.LatinRatioThreshold = 0.10
	}
	return &Client{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: cfg.ConnectionTimeout + cfg.ResponseTimeout,
		},
	}
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
	Usage       *usageRequest `json:"usage,omitempty"`
}

// usageRequest is only set for the remote provider, which must be asked
// explicitly to report token usage/cost.
type usageRequest struct {
	Include bool `json:"include"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Usage *responseUsage `json:"usage,omitempty"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

type responseUsage struct {
	PromptTokens     int64   `json:"prompt_tokens"`
	CompletionTokens int64   `json:"completion_tokens"`
	TotalTokens      int64   `json:"total_tokens"`
	Cost             float64 `json:"cost"`
}

// Result is what TranslateMessages returns: the validated text and the
// usage it observed (zero value if the response carried none).
type Result struct {
	Text  string
	Usage model.Usage
}

// TranslateMessages posts one chat-completion request and validates the
// response per spec §4.4. isLastChunk disables the too-short-output
// rejection, since a final chunk is legitimately allowed to be short.
func (c *Client) TranslateMessages(ctx context.Context, systemPrompt, userPrompt string, isLastChunk bool) (Result, error) {
	req := chatRequest{
		Model:       c.cfg.Model,
		Temperature: c.cfg.Temperature,
		MaxTokens:   c.cfg.MaxTokens,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPrompt},
		},
	}
	if c.cfg.Remote {
		req.Usage = &usageRequest{Include: true}
	}

	body, err := json.Marshal(req)
	if err != nil {
		return Result{}, &ErrRetriable{fmt.Errorf("llmclient: marshal request: %w", err)}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.APIURL, bytes.NewReader(body))
	if err != nil {
		return Result{}, &ErrRetriable{fmt.Errorf("llmclient: build request: %w", err)}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.cfg.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return Result{}, &ErrRetriable{fmt.Errorf("llmclient: request failed: %w", err)}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return Result{}, &ErrRetriable{fmt.Errorf("llmclient: read response: %w", err)}
	}

	if resp.StatusCode == http.StatusUnauthorized {
		return Result{}, &ErrFatal{fmt.Errorf("llmclient: authentication failed (401): %s", string(respBody))}
	}
	if resp.StatusCode != http.StatusOK {
		return Result{}, &ErrRetriable{fmt.Errorf("llmclient: status %d: %s", resp.StatusCode, string(respBody))}
	}

	var apiResp chatResponse
	if err := json.Unmarshal(respBody, &apiResp); err != nil {
		return Result{}, &ErrRetriable{fmt.Errorf("llmclient: decode response: %w", err)}
	}
	if apiResp.Error != nil {
		return Result{}, &ErrRetriable{fmt.Errorf("llmclient: API error: %s", apiResp.Error.Message)}
	}
	if len(apiResp.Choices) == 0 {
		return Result{}, &ErrRetriable{fmt.Errorf("llmclient: no choices in response")}
	}

	content := RemoveThinkingBlock(apiResp.Choices[0].Message.Content)

	if !IsLatinCharset(content, c.cfg.LatinRatioThreshold) {
		return Result{}, &ErrRetriable{fmt.Errorf("llmclient: translated text is not predominantly Latin charset")}
	}
	if len(content) < 300 && !isLastChunk {
		return Result{}, &ErrRetriable{fmt.Errorf("llmclient: translated text is too short")}
	}

	result := Result{Text: content}
	if apiResp.Usage != nil {
		result.Usage = model.Usage{
			PromptTokens:     apiResp.Usage.PromptTokens,
			CompletionTokens: apiResp.Usage.CompletionTokens,
			TotalTokens:      apiResp.Usage.TotalTokens,
			Cost:             apiResp.Usage.Cost,
		}
	}
	return result, nil
}
