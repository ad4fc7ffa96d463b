package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
)

// completionTemperature is the fixed creativity setting for non-streaming
// completions. Streaming calls use the provider default.
const completionTemperature = 0.7

const maxErrorBody = 2048

// OpenAIClient calls any OpenAI-compatible chat-completions endpoint.
type OpenAIClient struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewOpenAIClient creates a client for the given base URL
// (e.g. "https://api.openai.com/v1").
func NewOpenAIClient(baseURL string, logger *slog.Logger) *OpenAIClient {
	if logger == nil {
		logger = slog.Default()
	}
	return &OpenAIClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		// No client timeout: a hung provider call is bounded only by the
		// request context, matching the per-request cancellation model.
		httpClient: &http.Client{},
		logger:     logger,
	}
}

type wireMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type completionPayload struct {
	Model       string        `json:"model"`
	Messages    []wireMessage `json:"messages"`
	Temperature float64       `json:"temperature,omitempty"`
	Stream      bool          `json:"stream,omitempty"`
}

// Complete implements Client.
func (c *OpenAIClient) Complete(ctx context.Context, req Request) (string, error) {
	resp, err := c.post(ctx, req, false)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var decoded struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", fmt.Errorf("failed to decode provider response: %w", err)
	}
	if len(decoded.Choices) == 0 || decoded.Choices[0].Message.Content == "" {
		return "", ErrEmptyReply
	}

	return decoded.Choices[0].Message.Content, nil
}

// Stream implements Client. The returned channel carries fragments in the
// order the provider emits them and is closed when the stream ends. The
// producer goroutine exits as soon as ctx is cancelled.
func (c *OpenAIClient) Stream(ctx context.Context, req Request) (<-chan string, error) {
	resp, err := c.post(ctx, req, true)
	if err != nil {
		return nil, err
	}

	fragments := make(chan string)

	go func() {
		defer close(fragments)
		defer resp.Body.Close()

		scanner := newSSEScanner(resp.Body)
		for {
			data, ok := scanner.Next()
			if !ok {
				if err := scanner.Err(); err != nil && ctx.Err() == nil {
					c.logger.Warn("provider stream ended unexpectedly", "error", err)
				}
				return
			}
			if data == "[DONE]" {
				return
			}

			var chunk struct {
				Choices []struct {
					Delta struct {
						Content *string `json:"content"`
					} `json:"delta"`
				} `json:"choices"`
			}
			if err := json.Unmarshal([]byte(data), &chunk); err != nil {
				c.logger.Warn("skipping malformed stream chunk", "error", err)
				continue
			}
			if len(chunk.Choices) == 0 || chunk.Choices[0].Delta.Content == nil {
				continue
			}

			select {
			case fragments <- *chunk.Choices[0].Delta.Content:
			case <-ctx.Done():
				return
			}
		}
	}()

	return fragments, nil
}

func (c *OpenAIClient) post(ctx context.Context, req Request, stream bool) (*http.Response, error) {
	payload := completionPayload{
		Model:    req.Model,
		Messages: make([]wireMessage, 0, len(req.Messages)),
		Stream:   stream,
	}
	if !stream {
		payload.Temperature = completionTemperature
	}
	for _, m := range req.Messages {
		payload.Messages = append(payload.Messages, wireMessage(m))
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode provider request: %w", err)
	}

	endpoint := c.baseURL + "/chat/completions"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create provider request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+req.APIKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("provider request failed: %w", err)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		_ = resp.Body.Close()
		return nil, fmt.Errorf("provider returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(detail)))
	}

	return resp, nil
}
