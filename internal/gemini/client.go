// Package gemini implements the model gateway against the Gemini API.
// Each operation is a single request/response exchange; responses either
// validate fully against the declared schema or the call fails.
package gemini

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"
	genai "google.golang.org/genai"

	"github.com/repairlens/repairlens/internal/config"
	"github.com/repairlens/repairlens/internal/domain"
	"github.com/repairlens/repairlens/internal/tokens"
)

const detectCacheSize = 32

// Option configures the client.
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client, used by recorded-exchange tests.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithBaseURL overrides the API endpoint.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		c.baseURL = baseURL
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// Client is a thin wrapper around the official genai client implementing
// domain.Gateway. Construction never fails; a missing credential surfaces
// as a configuration error on the first call instead.
type Client struct {
	apiKey     string
	model      string
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
	tracer     trace.Tracer

	limiter    *rate.Limiter
	counter    *tokens.Counter
	chatBudget int

	detectCache *lru.Cache[string, []domain.DetectedItem]

	initOnce sync.Once
	cli      *genai.Client
	initErr  error
}

// New creates a gateway client for the configured model.
func New(cfg config.GeminiConfig, chatBudget int, opts ...Option) *Client {
	c := &Client{
		apiKey:     cfg.APIKey,
		model:      cfg.Model,
		baseURL:    cfg.BaseURL,
		logger:     slog.Default(),
		tracer:     otel.Tracer("repairlens/gemini"),
		counter:    tokens.NewCounter(),
		chatBudget: chatBudget,
	}
	if cfg.RequestsPerSecond > 0 {
		burst := cfg.Burst
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}
	for _, opt := range opts {
		opt(c)
	}
	c.detectCache, _ = lru.New[string, []domain.DetectedItem](detectCacheSize)
	return c
}

// ensure initializes the underlying SDK client on first use.
func (c *Client) ensure(ctx context.Context, op string) error {
	if c.apiKey == "" {
		return domain.ErrConfiguration(op, "the service is unavailable")
	}
	c.initOnce.Do(func() {
		cc := &genai.ClientConfig{
			APIKey:  c.apiKey,
			Backend: genai.BackendGeminiAPI,
		}
		if c.httpClient != nil {
			cc.HTTPClient = c.httpClient
		}
		if c.baseURL != "" {
			cc.HTTPOptions.BaseURL = c.baseURL
		}
		c.cli, c.initErr = genai.NewClient(ctx, cc)
	})
	if c.initErr != nil {
		return domain.ErrConfiguration(op, "the service is unavailable")
	}
	return nil
}

// generate performs one exchange and returns the concatenated text parts.
func (c *Client) generate(ctx context.Context, op, failMsg string, contents []*genai.Content, cfg *genai.GenerateContentConfig) (string, error) {
	if err := c.ensure(ctx, op); err != nil {
		return "", err
	}
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return "", domain.ErrService(op, failMsg, err)
		}
	}

	ctx, span := c.tracer.Start(ctx, op, trace.WithAttributes(
		attribute.String("gemini.model", c.model),
	))
	defer span.End()

	resp, err := c.cli.Models.GenerateContent(ctx, c.model, contents, cfg)
	if err != nil {
		c.logger.Error("model call failed",
			slog.String("op", op),
			slog.String("error", err.Error()),
		)
		return "", domain.ErrService(op, failMsg, err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", domain.ErrService(op, failMsg, errEmptyResponse)
	}

	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		sb.WriteString(part.Text)
	}
	text := sb.String()
	if strings.TrimSpace(text) == "" {
		return "", domain.ErrService(op, failMsg, errEmptyResponse)
	}
	return text, nil
}

// mediaPart converts a capture into an inline-data part.
func mediaPart(media *domain.MediaReference) *genai.Part {
	return &genai.Part{InlineData: &genai.Blob{
		MIMEType: media.MIMEType,
		Data:     media.Data,
	}}
}

// userContent wraps parts in a single user turn.
func userContent(parts ...*genai.Part) []*genai.Content {
	return []*genai.Content{{Role: "user", Parts: parts}}
}

// systemContent builds a system instruction content.
func systemContent(text string) *genai.Content {
	return &genai.Content{Parts: []*genai.Part{{Text: text}}}
}
