package llm

import (
	"context"
	"errors"
	"fmt"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/cartmatch/reconciler/internal/domain"
)

// errNoChoices marks a completion that came back without any choices; the
// provider occasionally does this under load, so it is retried like any other
// transient failure.
var errNoChoices = errors.New("response contained no choices")

// Config holds configuration for the LLM client. Matching and inference get
// independent limiters and retry budgets because they run against different
// provider quotas.
type Config struct {
	APIKey      string
	BaseURL     string
	Model       string
	Temperature float32
	Timeout     time.Duration

	MatchRate        rate.Limit
	MatchBurst       int
	MatchAttempts    int
	MatchBackoffBase time.Duration

	InferRate        rate.Limit
	InferBurst       int
	InferAttempts    int
	InferBackoffBase time.Duration
}

// chatCompleter is the slice of the OpenAI client the reconciler uses.
// Narrowing it to one method keeps retry behavior testable without a server.
type chatCompleter interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// Client talks to an OpenAI-compatible chat API under a shared token-bucket
// rate limit with bounded retry. It implements domain.Matcher and
// domain.BrandInferrer.
type Client struct {
	api         chatCompleter
	model       string
	temperature float32
	timeout     time.Duration

	matchLimiter     *rate.Limiter
	matchAttempts    int
	matchBackoffBase time.Duration

	inferLimiter     *rate.Limiter
	inferAttempts    int
	inferBackoffBase time.Duration

	logger *zap.Logger
}

// NewClient creates an LLM client from configuration. Zero-valued knobs fall
// back to the operating defaults used against the free-tier provider quota.
func NewClient(cfg Config, logger *zap.Logger) *Client {
	apiConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		apiConfig.BaseURL = cfg.BaseURL
	}

	if cfg.Model == "" {
		cfg.Model = openai.GPT4oMini
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 90 * time.Second
	}
	if cfg.MatchRate <= 0 {
		cfg.MatchRate = rate.Limit(12.0 / 60.0)
	}
	if cfg.MatchBurst <= 0 {
		cfg.MatchBurst = 12
	}
	if cfg.MatchAttempts <= 0 {
		cfg.MatchAttempts = 3
	}
	if cfg.MatchBackoffBase <= 0 {
		cfg.MatchBackoffBase = 4 * time.Second
	}
	if cfg.InferRate <= 0 {
		cfg.InferRate = rate.Limit(14.0 / 60.0)
	}
	if cfg.InferBurst <= 0 {
		cfg.InferBurst = 14
	}
	if cfg.InferAttempts <= 0 {
		cfg.InferAttempts = 5
	}
	if cfg.InferBackoffBase <= 0 {
		cfg.InferBackoffBase = 2 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Client{
		api:              openai.NewClientWithConfig(apiConfig),
		model:            cfg.Model,
		temperature:      cfg.Temperature,
		timeout:          cfg.Timeout,
		matchLimiter:     rate.NewLimiter(cfg.MatchRate, cfg.MatchBurst),
		matchAttempts:    cfg.MatchAttempts,
		matchBackoffBase: cfg.MatchBackoffBase,
		inferLimiter:     rate.NewLimiter(cfg.InferRate, cfg.InferBurst),
		inferAttempts:    cfg.InferAttempts,
		inferBackoffBase: cfg.InferBackoffBase,
		logger:           logger,
	}
}

// MatchProducts asks the model which products in the two candidate lists are
// the same item. The response is treated as untrusted text: anything that
// does not parse as a JSON pair array yields an empty pair list, not an
// error.
func (c *Client) MatchProducts(ctx context.Context, brand string, storeA, storeB []domain.Product) ([]domain.CandidatePair, error) {
	prompt, err := matchPrompt(storeA, storeB)
	if err != nil {
		return nil, fmt.Errorf("building match prompt: %w", err)
	}

	raw, err := c.complete(ctx, c.matchLimiter, c.matchAttempts, c.matchBackoffBase, matchSystemPrompt, prompt)
	if err != nil {
		return nil, err
	}

	pairs := extractPairs(raw)
	c.logger.Debug("match response parsed",
		zap.String("brand", brand),
		zap.Int("response_chars", len(raw)),
		zap.Int("pairs", len(pairs)),
	)
	return pairs, nil
}

// InferBrands asks the model to name the brand of each product, preferring
// exact spellings from the known-brand vocabulary. Unparseable responses
// yield an empty map.
func (c *Client) InferBrands(ctx context.Context, products []domain.Product, knownBrands []string) (map[string]string, error) {
	prompt, err := inferPrompt(products, knownBrands)
	if err != nil {
		return nil, fmt.Errorf("building inference prompt: %w", err)
	}

	raw, err := c.complete(ctx, c.inferLimiter, c.inferAttempts, c.inferBackoffBase, inferSystemPrompt, prompt)
	if err != nil {
		return nil, err
	}

	return extractBrandMap(raw), nil
}

// complete performs one rate-limited chat completion with bounded retry.
// Transient provider errors back off exponentially from backoffBase, doubling
// each attempt; the sleep suspends only this task, never the limiter or
// sibling tasks. Non-transient errors return immediately.
func (c *Client) complete(ctx context.Context, limiter *rate.Limiter, attempts int, backoffBase time.Duration, system, user string) (string, error) {
	var lastErr error

	for attempt := 1; attempt <= attempts; attempt++ {
		if err := limiter.Wait(ctx); err != nil {
			return "", err
		}

		attemptCtx, cancel := context.WithTimeout(ctx, c.timeout)
		resp, err := c.api.CreateChatCompletion(attemptCtx, openai.ChatCompletionRequest{
			Model: c.model,
			Messages: []openai.ChatCompletionMessage{
				{Role: openai.ChatMessageRoleSystem, Content: system},
				{Role: openai.ChatMessageRoleUser, Content: user},
			},
			Temperature: c.temperature,
		})
		cancel()

		if err == nil && len(resp.Choices) > 0 {
			return resp.Choices[0].Message.Content, nil
		}
		if err == nil {
			err = errNoChoices
		}
		lastErr = err

		if !isTransient(err) {
			return "", err
		}

		if attempt < attempts {
			delay := backoffBase << (attempt - 1)
			c.logger.Warn("chat completion failed, retrying",
				zap.Int("attempt", attempt),
				zap.Duration("backoff", delay),
				zap.Error(err),
			)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return "", ctx.Err()
			}
		}
	}

	return "", fmt.Errorf("%w after %d attempts: %v", domain.ErrAttemptsExhausted, attempts, lastErr)
}

// isTransient classifies provider errors worth retrying: API rejections
// (rate limits, server-side failures, malformed-request responses), transport
// errors, attempt timeouts, and empty-choice responses. Everything else is
// unexpected and fails the attempt loop immediately.
func isTransient(err error) bool {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return true
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return true
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	return errors.Is(err, errNoChoices)
}
