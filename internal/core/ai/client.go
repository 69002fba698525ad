package ai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"meal2list/internal/infrastructure/config"
	"meal2list/internal/pkg/common"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// Message a chat message. Content is either a plain string or a list
// of content parts for multimodal requests.
type Message struct {
	Role    string      `json:"role"`
	Content interface{} `json:"content"`
}

// TextMessage builds a plain text message
func TextMessage(role, text string) Message {
	return Message{Role: role, Content: text}
}

// VisionMessage builds a user message pairing a prompt with an image
func VisionMessage(prompt, imageDataURL string) Message {
	return Message{
		Role: "user",
		Content: []map[string]interface{}{
			{"type": "text", "text": prompt},
			{"type": "image_url", "image_url": map[string]string{"url": imageDataURL}},
		},
	}
}

// Options per-request model parameters
type Options struct {
	Model       string
	Temperature float64
	MaxTokens   int
}

// Client LLM relay client. The relay speaks the OpenAI chat
// completion protocol; some deployments return the generated content
// under a bare "data" key instead, which is handled transparently.
type Client struct {
	config *config.Config
	client *resty.Client
}

// NewClient creates a relay client
func NewClient(cfg *config.Config) *Client {
	client := resty.New().
		SetBaseURL(cfg.Relay.BaseURL).
		SetTimeout(cfg.Relay.Timeout).
		SetHeader("Authorization", fmt.Sprintf("Bearer %s", cfg.Relay.APIKey)).
		SetHeader("HTTP-Referer", "https://meal2list.app").
		SetHeader("X-Title", "meal2list")

	return &Client{
		config: cfg,
		client: client,
	}
}

// ChatCompletion sends messages to the relay and returns the
// generated text. Failures are classified into the shared taxonomy:
// 401 unauthorized, 400 invalid input with the upstream message,
// timeouts, network errors, and upstream 5xx.
func (c *Client) ChatCompletion(ctx context.Context, opts Options, messages []Message) (string, error) {
	model := opts.Model
	if model == "" {
		model = c.config.Relay.TextModel
	}
	maxTokens := opts.MaxTokens
	if maxTokens <= 0 {
		maxTokens = c.config.Relay.MaxTokens
	}

	body := map[string]interface{}{
		"model":      model,
		"messages":   messages,
		"max_tokens": maxTokens,
	}
	if opts.Temperature > 0 {
		body["temperature"] = opts.Temperature
	}

	start := time.Now()
	resp, err := c.client.R().
		SetContext(ctx).
		SetBody(body).
		Post("/chat/completions")
	common.LogRelayCall(model, time.Since(start), err)

	if err != nil {
		return "", classifyTransportError(err)
	}

	if resp.StatusCode() != http.StatusOK {
		return "", classifyStatusError(resp)
	}

	content, err := extractContent(resp.Body())
	if err != nil {
		return "", common.ErrAPIError.WithMessage("relay returned an unusable response").WithCause(err)
	}
	return content, nil
}

// extractContent pulls generated text out of the relay response,
// trying choices[0].message.content first, then the bare content and
// data fallbacks.
func extractContent(body []byte) (string, error) {
	var result struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
		Content string      `json:"content"`
		Data    interface{} `json:"data"`
	}

	if err := common.ParseJSONBytes(body, &result); err != nil {
		return "", fmt.Errorf("failed to parse relay response: %w", err)
	}

	if len(result.Choices) > 0 && result.Choices[0].Message.Content != "" {
		return result.Choices[0].Message.Content, nil
	}
	if result.Content != "" {
		return result.Content, nil
	}
	if s, ok := result.Data.(string); ok && s != "" {
		return s, nil
	}

	return "", fmt.Errorf("empty content in relay response")
}

func classifyTransportError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) || isTimeout(err) {
		return common.ErrRequestTimeout.WithCause(err)
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	return common.ErrNetworkError.WithCause(err)
}

func isTimeout(err error) bool {
	var netErr interface{ Timeout() bool }
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}
	return strings.Contains(err.Error(), "timeout")
}

func classifyStatusError(resp *resty.Response) error {
	status := resp.StatusCode()

	var payload struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
		Message string `json:"message"`
	}
	_ = common.ParseJSONBytes(resp.Body(), &payload)
	upstreamMsg := payload.Error.Message
	if upstreamMsg == "" {
		upstreamMsg = payload.Message
	}

	common.LogError("relay returned error status",
		zap.Int("status_code", status),
		zap.String("upstream_message", upstreamMsg),
	)

	switch {
	case status == http.StatusUnauthorized:
		return common.ErrUnauthorized.WithCause(fmt.Errorf("relay status %d", status))
	case status == http.StatusBadRequest:
		msg := upstreamMsg
		if msg == "" {
			msg = "invalid input"
		}
		return common.NewError(common.ErrCodeInvalidRequest, msg, http.StatusBadRequest, fmt.Errorf("relay status %d", status))
	case status == http.StatusTooManyRequests:
		return common.ErrRateLimit.WithCause(fmt.Errorf("relay status %d", status))
	case status >= 500:
		return common.ErrAPIError.WithCause(fmt.Errorf("relay status %d: %s", status, upstreamMsg))
	default:
		return common.ErrServerError.WithCause(fmt.Errorf("relay status %d: %s", status, upstreamMsg))
	}
}
