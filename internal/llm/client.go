package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"
)

var (
	// ErrCredentialMissing means no API key was available; checked before
	// any network call is made.
	ErrCredentialMissing = errors.New("no API key available")
	// ErrPaymentRequired maps HTTP 402 from the completion endpoint. The
	// caller should suggest switching to a free-tier model or topping up.
	ErrPaymentRequired = errors.New("payment required (402)")
	// ErrUnreachable covers transport and response-parse failures.
	ErrUnreachable = errors.New("completion endpoint unreachable")
)

// HTTPError is any non-2xx completion response other than 402.
type HTTPError struct {
	Status int
	Body   string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("completion endpoint returned HTTP %d", e.Status)
}

// ChatMessage is one turn in the wire format of the completion endpoint.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Completer sends a conversation to a completion endpoint and returns the
// reply text. One attempt, no internal retry.
type Completer interface {
	Complete(ctx context.Context, apiKey, model string, messages []ChatMessage, temperature float64, maxTokens int) (string, error)
}

// Client talks to an OpenRouter-compatible chat completions endpoint.
type Client struct {
	url         string
	fallbackKey string // used when the session has no key of its own
	httpClient  *http.Client
}

func NewClient(url, fallbackKey string) *Client {
	return &Client{
		url:         url,
		fallbackKey: fallbackKey,
		// LLM calls can take time; no explicit deadline beyond the transport's.
		httpClient: &http.Client{Timeout: 120 * time.Second},
	}
}

type completionRequest struct {
	Model       string        `json:"model"`
	Messages    []ChatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens"`
	Temperature float64       `json:"temperature"`
}

type completionResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

func (c *Client) Complete(ctx context.Context, apiKey, model string, messages []ChatMessage, temperature float64, maxTokens int) (string, error) {
	key := apiKey
	if key == "" {
		key = c.fallbackKey
	}
	if key == "" {
		return "", ErrCredentialMissing
	}

	body, err := json.Marshal(completionRequest{
		Model:       model,
		Messages:    messages,
		MaxTokens:   maxTokens,
		Temperature: temperature,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal completion request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to build completion request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+key)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnreachable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusPaymentRequired {
		return "", ErrPaymentRequired
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", &HTTPError{Status: resp.StatusCode, Body: string(raw)}
	}

	var parsed completionResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("%w: decoding response: %v", ErrUnreachable, err)
	}
	if len(parsed.Choices) == 0 {
		log.Println("Completion response contained no choices")
		return "", fmt.Errorf("%w: empty response", ErrUnreachable)
	}

	return parsed.Choices[0].Message.Content, nil
}
