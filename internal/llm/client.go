// Package llm provides the answer generator backed by an OpenAI-compatible
// chat-completions API.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/osoriodev/ragbase/internal/model"
)

// NoContextAnswer is returned without calling the API when the engine has no
// matching chunks. Keeping it a fixed string lets the query pipeline continue
// uniformly instead of branching on an error.
const NoContextAnswer = "Error: No context provided"

// Default configuration values.
const (
	DefaultBaseURL = "https://api.openai.com/v1"
	DefaultModel   = "gpt-4o-mini"
	DefaultTimeout = 120 * time.Second
)

// Config holds client settings.
type Config struct {
	// APIKey is required.
	APIKey string
	// BaseURL can point at any compatible endpoint.
	BaseURL string
	Model   string
	Timeout time.Duration
}

// Client calls the chat-completions endpoint to synthesize answers.
type Client struct {
	client  *http.Client
	baseURL string
	apiKey  string
	model   string
}

type chatCompletionRequest struct {
	Model       string    `json:"model"`
	Messages    []message `json:"messages"`
	Temperature float64   `json:"temperature,omitempty"`
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

// New creates a Client.
func New(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("llm: API key is required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &Client{
		client:  &http.Client{Timeout: cfg.Timeout},
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		model:   cfg.Model,
	}, nil
}

// Generate answers the query from the given context chunks. Zero chunks
// short-circuit to NoContextAnswer without an API call.
func (c *Client) Generate(ctx context.Context, query string, chunks []model.Chunk) (string, error) {
	if len(chunks) == 0 {
		return NoContextAnswer, nil
	}

	contents := make([]string, len(chunks))
	for i, ch := range chunks {
		contents[i] = ch.Content
	}
	prompt := fmt.Sprintf(`Based on the following context, provide a detailed answer to the question.

Context: %s

Question: %s

Answer the question using only the information from the context above.`,
		strings.Join(contents, "\n"), query)

	reqBody := chatCompletionRequest{
		Model:       c.model,
		Messages:    []message{{Role: "user", Content: prompt}},
		Temperature: 0.7,
	}
	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("%w: marshal request: %v", model.ErrAnswerGeneration, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(jsonBody))
	if err != nil {
		return "", fmt.Errorf("%w: build request: %v", model.ErrAnswerGeneration, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", model.ErrAnswerGeneration, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("%w: read response: %v", model.ErrAnswerGeneration, err)
	}

	var completion chatCompletionResponse
	if err := json.Unmarshal(body, &completion); err != nil {
		return "", fmt.Errorf("%w: decode response: %v", model.ErrAnswerGeneration, err)
	}
	if completion.Error != nil {
		return "", fmt.Errorf("%w: %s", model.ErrAnswerGeneration, completion.Error.Message)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: unexpected status %d", model.ErrAnswerGeneration, resp.StatusCode)
	}
	if len(completion.Choices) == 0 || completion.Choices[0].Message.Content == "" {
		return "", fmt.Errorf("%w: empty completion", model.ErrAnswerGeneration)
	}
	return completion.Choices[0].Message.Content, nil
}
