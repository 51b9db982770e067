package core

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sashabaranov/go-openai"
	"github.com/sirupsen/logrus"
)

// CompletionError is the final outcome of a failed chat completion.
// Transient failures have been retried and exhausted before this is
// returned; permanent ones (bad credentials, malformed request) fail on
// the first attempt.
type CompletionError struct {
	Transient   bool
	RateLimited bool
	Err         error
}

func (e *CompletionError) Error() string {
	if e.Transient {
		return fmt.Sprintf("chat completion failed after retries: %v", e.Err)
	}
	return fmt.Sprintf("chat completion failed: %v", e.Err)
}

func (e *CompletionError) Unwrap() error { return e.Err }

// Usage mirrors the provider's token accounting for one completion.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// CompletionResult is the response text plus usage and the estimated cost
// derived from the per-model rate table. It lives for one request only.
type CompletionResult struct {
	Text             string
	Usage            Usage
	EstimatedCostUSD float64
}

// RetryPolicy bounds the retry loop around the outbound call. MaxAttempts
// counts the first attempt; backoff between attempts starts at
// InitialInterval and multiplies up to MaxInterval.
type RetryPolicy struct {
	MaxAttempts     uint64
	InitialInterval time.Duration
	Multiplier      float64
	MaxInterval     time.Duration
}

// DefaultRetryPolicy matches the provider guidance the service shipped
// with: 3 attempts, waits of 2s and 4s, capped at 10s.
var DefaultRetryPolicy = RetryPolicy{
	MaxAttempts:     3,
	InitialInterval: 2 * time.Second,
	Multiplier:      2,
	MaxInterval:     10 * time.Second,
}

// chatCompleter is the slice of the OpenAI client the service needs.
type chatCompleter interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// CompletionService wraps the outbound chat-completion call with bounded
// retry and token/cost accounting. Every attempt is reported to the
// supplied logger; callers only ever see the final outcome.
type CompletionService struct {
	client         chatCompleter
	maxTokens      int
	temperature    float32
	attemptTimeout time.Duration
	policy         RetryPolicy
	log            logrus.FieldLogger
}

func NewCompletionService(apiKey string, maxTokens int, temperature float32, log logrus.FieldLogger) *CompletionService {
	return &CompletionService{
		client:         openai.NewClient(apiKey),
		maxTokens:      maxTokens,
		temperature:    temperature,
		attemptTimeout: 60 * time.Second,
		policy:         DefaultRetryPolicy,
		log:            log,
	}
}

// Complete sends messages to the given model and returns the response text
// with usage counters. Transient failures (rate limiting, provider 5xx,
// per-attempt timeout) are retried per the policy; anything else
// propagates immediately.
func (s *CompletionService) Complete(ctx context.Context, messages []openai.ChatCompletionMessage, model string) (*CompletionResult, error) {
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = s.policy.InitialInterval
	exp.Multiplier = s.policy.Multiplier
	exp.MaxInterval = s.policy.MaxInterval
	exp.RandomizationFactor = 0
	exp.MaxElapsedTime = 0
	exp.Reset()

	var sched backoff.BackOff = backoff.WithMaxRetries(exp, s.policy.MaxAttempts-1)
	sched = backoff.WithContext(sched, ctx)

	log := s.log.WithFields(logrus.Fields{"model": model, "message_count": len(messages)})
	log.Info("Chat completion started")

	attempt := 0
	var resp openai.ChatCompletionResponse

	operation := func() error {
		attempt++

		actx := ctx
		if s.attemptTimeout > 0 {
			var cancel context.CancelFunc
			actx, cancel = context.WithTimeout(ctx, s.attemptTimeout)
			defer cancel()
		}

		r, err := s.client.CreateChatCompletion(actx, openai.ChatCompletionRequest{
			Model:       model,
			Messages:    messages,
			MaxTokens:   s.maxTokens,
			Temperature: s.temperature,
		})
		if err != nil {
			if isTransient(err) {
				return err
			}
			return backoff.Permanent(err)
		}
		if len(r.Choices) == 0 {
			// Not a retryable failure class; surface it immediately.
			return backoff.Permanent(errors.New("provider returned no choices"))
		}
		resp = r
		return nil
	}

	notify := func(err error, wait time.Duration) {
		log.WithFields(logrus.Fields{
			"attempt": attempt,
			"backoff": wait,
			"error":   err.Error(),
		}).Warn("Chat completion attempt failed, retrying")
	}

	if err := backoff.RetryNotify(operation, sched, notify); err != nil {
		final := &CompletionError{
			Transient:   isTransient(err),
			RateLimited: isRateLimited(err),
			Err:         err,
		}
		log.WithFields(logrus.Fields{"attempts": attempt, "transient": final.Transient}).
			WithError(err).Error("Chat completion failed")
		return nil, final
	}

	usage := Usage{
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
		TotalTokens:      resp.Usage.TotalTokens,
	}
	result := &CompletionResult{
		Text:             resp.Choices[0].Message.Content,
		Usage:            usage,
		EstimatedCostUSD: estimateCost(model, usage),
	}

	log.WithFields(logrus.Fields{
		"attempts":           attempt,
		"prompt_tokens":      usage.PromptTokens,
		"completion_tokens":  usage.CompletionTokens,
		"total_tokens":       usage.TotalTokens,
		"estimated_cost_usd": result.EstimatedCostUSD,
		"response_length":    len(result.Text),
	}).Info("Chat completion completed")

	return result, nil
}

// isTransient reports whether err is worth retrying: rate limiting,
// provider-side 5xx, a timed-out attempt, or a network-level failure.
func isTransient(err error) bool {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode == http.StatusTooManyRequests || apiErr.HTTPStatusCode >= 500
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

func isRateLimited(err error) bool {
	var apiErr *openai.APIError
	return errors.As(err, &apiErr) && apiErr.HTTPStatusCode == http.StatusTooManyRequests
}
