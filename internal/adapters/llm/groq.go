package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/tidwall/gjson"

	"github.com/utec-cdia-v4/web-chat-ia-v3/internal/domain"
)

const (
	DefaultGroqURL   = "https://api.groq.com/openai/v1/chat/completions"
	DefaultGroqModel = "llama-3.3-70b-versatile"
	DefaultTimeout   = 30 * time.Second

	// The provider's edge rejects requests carrying Go's default agent.
	browserUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) " +
		"AppleWebKit/537.36 (KHTML, like Gecko) Chrome/121.0.0.0 Safari/537.36"
)

// GroqClient calls an OpenAI-compatible chat-completion endpoint and retries
// transient failures. It keeps no state between calls and is safe for concurrent use.
type GroqClient struct {
	apiKey     string
	url        string
	model      string
	timeout    time.Duration
	httpClient *http.Client
	retry      retrier
}

var _ domain.Completer = (*GroqClient)(nil)

type GroqOption func(*GroqClient)

func WithURL(url string) GroqOption {
	return func(c *GroqClient) { c.url = url }
}

func WithModel(model string) GroqOption {
	return func(c *GroqClient) { c.model = model }
}

// WithTimeout sets the per-attempt timeout. Ignored when WithHTTPClient is used.
func WithTimeout(d time.Duration) GroqOption {
	return func(c *GroqClient) { c.timeout = d }
}

func WithHTTPClient(hc *http.Client) GroqOption {
	return func(c *GroqClient) { c.httpClient = hc }
}

// WithMaxRetries sets how many attempts may follow the first one.
func WithMaxRetries(n int) GroqOption {
	return func(c *GroqClient) {
		if n < 0 {
			n = 0
		}
		c.retry.maxRetries = n
	}
}

func WithBackoff(b Backoff) GroqOption {
	return func(c *GroqClient) { c.retry.backoff = b }
}

func WithSleeper(s Sleeper) GroqOption {
	return func(c *GroqClient) { c.retry.sleep = s }
}

// NewGroqClient fails with a *domain.ConfigError when apiKey is empty.
func NewGroqClient(apiKey string, opts ...GroqOption) (*GroqClient, error) {
	if apiKey == "" {
		return nil, missingKeyError()
	}

	c := &GroqClient{
		apiKey:  apiKey,
		url:     DefaultGroqURL,
		model:   DefaultGroqModel,
		timeout: DefaultTimeout,
		retry: retrier{
			provider:   "groq",
			maxRetries: DefaultMaxRetries,
			backoff:    NewBackoff(DefaultBackoffBase, DefaultBackoffCap),
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.httpClient == nil {
		c.httpClient = &http.Client{Timeout: c.timeout}
	}
	return c, nil
}

func missingKeyError() error {
	return &domain.ConfigError{Setting: "GROQ_API_KEY", Reason: "is not set"}
}

// --- wire types ---

type chatRequest struct {
	Model    string               `json:"model"`
	Messages []domain.ChatMessage `json:"messages"`
}

// Complete sends the whole history (oldest first, new prompt last) and returns the
// first choice's content. A response without choices yields an empty completion.
func (c *GroqClient) Complete(ctx context.Context, history []domain.ChatMessage) (domain.Completion, error) {
	if c == nil || c.apiKey == "" {
		return domain.Completion{}, missingKeyError()
	}

	if history == nil {
		history = []domain.ChatMessage{}
	}
	body, err := json.Marshal(chatRequest{Model: c.model, Messages: history})
	if err != nil {
		return domain.Completion{}, fmt.Errorf("marshal request: %w", err)
	}

	return c.retry.do(ctx, func(ctx context.Context) attemptOutcome {
		return c.attempt(ctx, body)
	})
}

// attempt performs one request and classifies the result.
func (c *GroqClient) attempt(ctx context.Context, body []byte) attemptOutcome {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return terminal(fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", browserUserAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return terminal(ctxErr)
		}
		return retryable(&domain.ProviderError{Transient: true, Err: err})
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return terminal(ctxErr)
		}
		return retryable(&domain.ProviderError{Transient: true, Err: fmt.Errorf("read response: %w", err)})
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		completion, err := parseCompletion(raw)
		if err != nil {
			return terminal(err)
		}
		return succeeded(completion)
	}

	perr := &domain.ProviderError{
		Status:    resp.StatusCode,
		Message:   parseErrorMessage(raw),
		Transient: IsTransientStatus(resp.StatusCode),
	}
	if perr.Transient {
		return retryable(perr)
	}
	return terminal(perr)
}

var errInvalidCompletion = errors.New("completion response is not valid JSON")

func parseCompletion(raw []byte) (domain.Completion, error) {
	if !gjson.ValidBytes(raw) {
		return domain.Completion{}, errInvalidCompletion
	}
	content := gjson.GetBytes(raw, "choices.0.message.content")
	return domain.Completion{Content: content.String()}, nil
}

// parseErrorMessage extracts error.message from a JSON error envelope. A JSON body
// without that field is returned verbatim; an empty or non-JSON body gives "".
func parseErrorMessage(raw []byte) string {
	if len(bytes.TrimSpace(raw)) == 0 || !gjson.ValidBytes(raw) {
		return ""
	}
	if msg := gjson.GetBytes(raw, "error.message"); msg.Type == gjson.String && msg.Str != "" {
		return msg.Str
	}
	return string(raw)
}
