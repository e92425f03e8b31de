package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// ErrProvider covers transport, auth, and non-success responses from the
// completion endpoint.
var ErrProvider = errors.New("llm provider error")

// Message is a single chat message in an OpenAI-compatible payload.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Response carries the generated reply and usage accounting.
type Response struct {
	Reply  string
	Tokens int
}

// Client speaks the OpenAI-compatible chat completions protocol.
type Client struct {
	URL         string
	Model       string
	APIKey      string
	MaxTokens   int
	Temperature float64
	HTTPClient  *http.Client
}

// NewClient creates an LLM client for the given endpoint.
func NewClient(url, model, apiKey string, maxTokens int, temperature float64, timeout time.Duration) *Client {
	return &Client{
		URL:         url,
		Model:       model,
		APIKey:      apiKey,
		MaxTokens:   maxTokens,
		Temperature: temperature,
		HTTPClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Complete submits the messages and returns the first choice's content.
func (c *Client) Complete(ctx context.Context, messages []Message) (Response, error) {
	payload := map[string]interface{}{
		"model":                 c.Model,
		"messages":              messages,
		"temperature":           c.Temperature,
		"max_completion_tokens": c.MaxTokens,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return Response{}, fmt.Errorf("failed to marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.URL, bytes.NewReader(body))
	if err != nil {
		return Response{}, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.APIKey)
	}

	res, err := c.HTTPClient.Do(req)
	if err != nil {
		return Response{}, fmt.Errorf("%w: %v", ErrProvider, err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		return Response{}, fmt.Errorf("%w: status %d: %s", ErrProvider, res.StatusCode, strings.TrimSpace(string(b)))
	}

	var respStruct struct {
		Choices []struct {
			Message struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
		Usage struct {
			CompletionTokens int `json:"completion_tokens"`
		} `json:"usage"`
	}
	if err := json.NewDecoder(res.Body).Decode(&respStruct); err != nil {
		return Response{}, fmt.Errorf("%w: failed to decode response: %v", ErrProvider, err)
	}
	if len(respStruct.Choices) == 0 {
		return Response{}, fmt.Errorf("%w: response contained no choices", ErrProvider)
	}

	return Response{
		Reply:  respStruct.Choices[0].Message.Content,
		Tokens: respStruct.Usage.CompletionTokens,
	}, nil
}
