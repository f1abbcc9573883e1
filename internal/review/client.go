// Package review calls an OpenAI-compatible chat completion endpoint to
// screen diary entries. Verdicts are advisory and never change entry state.
package review

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/traveldairy2025nju/td-backend/internal/config"
	"github.com/traveldairy2025nju/td-backend/internal/models"
	"github.com/traveldairy2025nju/td-backend/internal/observability"

	gobreaker "github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
)

const (
	maxResponseBytes = 1 << 20
	peerName         = "review-oracle"
)

// Verdict is the oracle's advisory decision.
type Verdict struct {
	Approved bool   `json:"approved"`
	Reason   string `json:"reason"`
}

// Reviewer screens a title and body.
type Reviewer interface {
	Review(ctx context.Context, title, content string) (*Verdict, error)
}

// Config tunes the oracle client.
type Config struct {
	BaseURL          string
	APIKey           string
	Model            string
	Timeout          time.Duration
	FailureThreshold uint32
	OpenTimeout      time.Duration
}

// ConfigFromApp builds a client config from application settings.
func ConfigFromApp(cfg *config.Config) Config {
	timeout := time.Duration(cfg.ReviewTimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return Config{
		BaseURL:          cfg.ReviewAPIURL,
		APIKey:           cfg.ReviewAPIKey,
		Model:            cfg.ReviewModel,
		Timeout:          timeout,
		FailureThreshold: 5,
		OpenTimeout:      30 * time.Second,
	}
}

// Client is the HTTP implementation of Reviewer. A circuit breaker stops
// calling the oracle after repeated failures.
type Client struct {
	cfg     Config
	http    *http.Client
	breaker *gobreaker.CircuitBreaker[*Verdict]
}

// NewClient creates a Client. A nil httpClient uses http.DefaultClient.
func NewClient(cfg Config, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if cfg.FailureThreshold == 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.OpenTimeout <= 0 {
		cfg.OpenTimeout = 30 * time.Second
	}

	settings := gobreaker.Settings{
		Name:        peerName,
		MaxRequests: 1,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.FailureThreshold
		},
		IsSuccessful: func(err error) bool {
			// Callers giving up is not an oracle failure.
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			slog.Warn("circuit breaker state changed",
				"breaker", name,
				"from", from.String(),
				"to", to.String(),
			)
		},
	}

	return &Client{
		cfg:     cfg,
		http:    httpClient,
		breaker: gobreaker.NewCircuitBreaker[*Verdict](settings),
	}
}

// State reports the breaker state, e.g. "closed" or "open".
func (c *Client) State() string {
	return c.breaker.State().String()
}

// Review asks the oracle for a verdict. Timeouts, transport failures,
// unparseable output and an open breaker all yield REVIEW_UNAVAILABLE.
func (c *Client) Review(ctx context.Context, title, content string) (*Verdict, error) {
	start := time.Now()
	ctx, span := observability.StartClientSpan(ctx, peerName, "chat.completions")

	callCtx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	verdict, err := c.breaker.Execute(func() (*Verdict, error) {
		return c.call(callCtx, title, content)
	})
	observability.EndSpan(span, err)

	if err != nil {
		outcome := "error"
		switch {
		case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
			outcome = "rejected"
		case errors.Is(err, context.DeadlineExceeded):
			outcome = "timeout"
		}
		observability.ObserveReview(outcome, start)
		slog.WarnContext(ctx, "content review unavailable",
			slog.String("error", err.Error()),
			"outcome", outcome,
		)
		return nil, models.NewReviewUnavailableError(err)
	}

	observability.ObserveReview("ok", start)
	return verdict, nil
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

const systemPrompt = "You are a professional content compliance reviewer for travel diaries. " +
	"Judge compliance only: violence, pornography, discrimination, illegal activity and similar."

func userPrompt(title, content string) string {
	return "/no_think Review the following travel diary strictly for content compliance.\n" +
		"Reply with JSON only, using exactly these fields:\n" +
		"{\n  \"approved\": true/false,\n  \"reason\": \"why the content passes or fails\"\n}\n\n" +
		"Title: " + title + "\n" +
		"Content: " + content
}

func (c *Client) call(ctx context.Context, title, content string) (*Verdict, error) {
	body, err := json.Marshal(chatRequest{
		Model: c.cfg.Model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPrompt(title, content)},
		},
		Temperature: 0.7,
		MaxTokens:   800,
	})
	if err != nil {
		return nil, fmt.Errorf("encode review request: %w", err)
	}

	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + "/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build review request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("review request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("read review response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("review service returned status %d", resp.StatusCode)
	}

	var parsed chatResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("decode review response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return nil, errors.New("review response has no choices")
	}
	return ParseVerdict(parsed.Choices[0].Message.Content)
}

// ParseVerdict extracts the JSON verdict from model output. Surrounding
// prose, markdown fences and <think> blocks are ignored.
func ParseVerdict(text string) (*Verdict, error) {
	if _, after, found := strings.Cut(text, "</think>"); found {
		text = after
	}
	open := strings.Index(text, "{")
	closing := strings.LastIndex(text, "}")
	if open < 0 || closing < open {
		return nil, errors.New("review output contains no JSON object")
	}

	var out struct {
		Approved *bool  `json:"approved"`
		Reason   string `json:"reason"`
	}
	if err := json.Unmarshal([]byte(text[open:closing+1]), &out); err != nil {
		return nil, fmt.Errorf("parse review verdict: %w", err)
	}
	if out.Approved == nil {
		return nil, errors.New("review verdict missing approved field")
	}
	return &Verdict{Approved: *out.Approved, Reason: out.Reason}, nil
}
