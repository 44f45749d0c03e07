package gemini

import (
	"context"
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/generative-ai-go/genai"
	"go.uber.org/zap"
	"google.golang.org/api/option"

	"github.com/deusflow/pacwatch/internal/logger"
	"github.com/deusflow/pacwatch/internal/ratelimit"
	"github.com/deusflow/pacwatch/internal/retry"
)

const (
	maxPromptRunes = 4000
	defaultTimeout = 20 * time.Second
)

// generateFunc sends one prompt and returns the model's text reply.
type generateFunc func(ctx context.Context, prompt string) (string, error)

// Client scores sentiment polarity with a Gemini model.
type Client struct {
	client   *genai.Client
	generate generateFunc
	limiter  *ratelimit.Limiter
	retry    retry.RetryConfig
	timeout  time.Duration // per attempt
	logger   *zap.Logger
}

// NewClient connects to Gemini. Each attempt of a request is bounded by
// timeout; zero means 20s.
func NewClient(ctx context.Context, apiKey, modelName string, timeout time.Duration, limiter *ratelimit.Limiter, log *zap.Logger) (*Client, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	model := client.GenerativeModel(modelName)
	model.SetTemperature(0)

	c := newClient(func(ctx context.Context, prompt string) (string, error) {
		resp, err := model.GenerateContent(ctx, genai.Text(prompt))
		if err != nil {
			return "", fmt.Errorf("failed to generate content: %w", err)
		}
		if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
			return "", retry.Permanent(errors.New("no response from Gemini"))
		}
		return fmt.Sprintf("%v", resp.Candidates[0].Content.Parts[0]), nil
	}, limiter, log)
	c.client = client
	if timeout > 0 {
		c.timeout = timeout
	}
	return c, nil
}

func newClient(generate generateFunc, limiter *ratelimit.Limiter, log *zap.Logger) *Client {
	if limiter == nil {
		limiter = ratelimit.New(0, 0)
	}
	return &Client{
		generate: generate,
		limiter:  limiter,
		retry:    retry.RetryConfig{MaxAttempts: 2, Delay: 500 * time.Millisecond, Backoff: true},
		timeout:  defaultTimeout,
		logger:   logger.OrNop(log),
	}
}

func (c *Client) Close() {
	if c.client != nil {
		c.client.Close()
	}
}

// ResetBudget starts a new per-cycle request budget.
func (c *Client) ResetBudget() {
	c.limiter.Reset()
}

// Stats exposes the request budget counters.
func (c *Client) Stats() map[string]interface{} {
	stats := c.limiter.GetStats()
	stats["timeout_seconds"] = c.timeout.Seconds()
	return stats
}

// Polarity asks the model for the sentiment of text towards its subject,
// as a number in -1..1.
func (c *Client) Polarity(ctx context.Context, text string) (float64, error) {
	prompt := buildPrompt(text)

	var reply string
	err := retry.WithRetry(ctx, c.retry, func() error {
		if err := c.limiter.Wait(ctx); err != nil {
			return retry.Permanent(err)
		}
		attemptCtx, cancel := context.WithTimeout(ctx, c.timeout)
		defer cancel()
		out, err := c.generate(attemptCtx, prompt)
		if err != nil {
			if ctx.Err() == nil && errors.Is(err, context.DeadlineExceeded) {
				return fmt.Errorf("gemini request timed out after %s: %w", c.timeout, err)
			}
			return err
		}
		reply = out
		return nil
	})
	if err != nil {
		return 0, err
	}

	score, err := parsePolarity(reply)
	if err != nil {
		c.logger.Debug("unparseable gemini reply", zap.String("reply", reply))
		return 0, err
	}
	return score, nil
}

func buildPrompt(text string) string {
	text = strings.Join(strings.Fields(strings.ReplaceAll(text, "\r", "")), " ")
	if utf8.RuneCountInString(text) > maxPromptRunes {
		text = string([]rune(text)[:maxPromptRunes])
	}
	return fmt.Sprintf(`Rate the sentiment of the following news excerpt towards the actor it mentions.
Reply with a single number between -1 (very negative) and 1 (very positive), 0 for neutral.
Do not add any other text.

EXCERPT:
%s
`, text)
}

var numberPattern = regexp.MustCompile(`[-+]?\d*\.?\d+`)

// parsePolarity extracts the first number of a reply and clamps it to -1..1.
func parsePolarity(reply string) (float64, error) {
	m := numberPattern.FindString(reply)
	if m == "" {
		return 0, fmt.Errorf("could not parse Gemini response: no number in %q", truncate(reply, 80))
	}
	v, err := strconv.ParseFloat(m, 64)
	if err != nil || math.IsNaN(v) {
		return 0, fmt.Errorf("could not parse Gemini response %q: %w", m, err)
	}
	return math.Max(-1, math.Min(1, v)), nil
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n]) + "…"
}
