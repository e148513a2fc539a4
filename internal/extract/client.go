package extract

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"expense-bot/internal/cache"
	"expense-bot/internal/metrics"

	"google.golang.org/genai"
)

// Content is the normalized message content sent to the model: the instruction
// prompt plus the user's text and, for photo messages, the image payload.
type Content struct {
	Text  string
	Image *Image
}

// Image is a fetched photo ready to be inlined into the model request.
type Image struct {
	Data     []byte
	MIMEType string
}

// Config holds extraction client configuration.
type Config struct {
	APIKey   string
	Model    string
	Timeout  time.Duration
	CacheTTL time.Duration
}

// Client calls the Gemini API to turn message content into a Result. It is a
// long-lived handle, safe for concurrent use; every call is independent.
type Client struct {
	genai    *genai.Client
	model    string
	timeout  time.Duration
	cacheTTL time.Duration
	logger   *slog.Logger
	metrics  *metrics.Metrics
	cache    *cache.Redis
}

// New creates the extraction client. The redis cache is optional; when present,
// identical content skips the model call and reuses the cached result.
func New(ctx context.Context, cfg Config, logger *slog.Logger, metricRegistry *metrics.Metrics, redis *cache.Redis) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("gemini api key is required")
	}
	model := cfg.Model
	if model == "" {
		model = "gemini-2.0-flash"
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	gc, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}

	return &Client{
		genai:    gc,
		model:    model,
		timeout:  timeout,
		cacheTTL: cfg.CacheTTL,
		logger:   logger.With("component", "extract"),
		metrics:  metricRegistry,
		cache:    redis,
	}, nil
}

// Extract sends the content to the model once and returns the parsed result.
// There is no retry: any provider error is terminal for the message, and
// unparsable output is reported as ErrUnparsable.
func (c *Client) Extract(ctx context.Context, content Content) (*Result, error) {
	key := c.cacheKey(content)
	if c.cache != nil && c.cacheTTL > 0 {
		var cached Result
		hit, err := c.cache.GetJSON(ctx, key, &cached)
		if err != nil {
			c.logger.Warn("extraction cache lookup failed", "error", err)
		} else if hit {
			c.metrics.ExtractCacheHits.Inc()
			return &cached, nil
		}
	}

	raw, err := c.generate(ctx, content)
	if err != nil {
		return nil, err
	}

	res, err := Parse(raw)
	if err != nil {
		if errors.Is(err, ErrUnparsable) {
			c.logger.Error("model returned unparsable output", "raw", raw)
		}
		return nil, err
	}

	if c.cache != nil && c.cacheTTL > 0 {
		if err := c.cache.SetJSON(ctx, key, res, c.cacheTTL); err != nil {
			c.logger.Warn("extraction cache store failed", "error", err)
		}
	}

	return res, nil
}

func (c *Client) generate(ctx context.Context, content Content) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	parts := []*genai.Part{{Text: extractionPrompt}}
	if content.Text != "" {
		parts = append(parts, &genai.Part{Text: "User message:\n" + content.Text})
	}
	if content.Image != nil {
		parts = append(parts, &genai.Part{
			InlineData: &genai.Blob{
				MIMEType: content.Image.MIMEType,
				Data:     content.Image.Data,
			},
		})
	}

	contents := []*genai.Content{{Role: "user", Parts: parts}}
	genCfg := &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		ResponseSchema:   responseSchema(),
	}

	start := time.Now()
	resp, err := c.genai.Models.GenerateContent(ctx, c.model, contents, genCfg)
	status := "ok"
	if err != nil {
		status = "error"
	}
	c.metrics.ExtractRequests.WithLabelValues(status).Inc()
	c.metrics.ExtractLatency.WithLabelValues(status).Observe(time.Since(start).Seconds())
	if err != nil {
		return "", fmt.Errorf("generate content: %w", err)
	}

	raw := resp.Text()
	if raw == "" {
		return "", errors.New("empty response from model")
	}
	return raw, nil
}

func (c *Client) cacheKey(content Content) string {
	return cache.ContentKey("extract", cachePayload(content))
}

// cachePayload length-prefixes the text segment so distinct (text, image)
// pairs cannot produce the same hash input.
func cachePayload(content Content) []byte {
	payload := binary.AppendUvarint(nil, uint64(len(content.Text)))
	payload = append(payload, content.Text...)
	if content.Image != nil {
		payload = append(payload, content.Image.Data...)
	}
	return payload
}
