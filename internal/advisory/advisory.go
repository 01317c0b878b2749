// Package advisory forwards a single free-text question to a hosted
// generative-text service and returns its raw answer or a visible error.
// No conversation history is kept and no fallback answer is ever produced.
package advisory

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

// Providers accepted by New.
const (
	ProviderGemini     = "gemini"
	ProviderOpenAI     = "openai"
	ProviderCompatible = "compatible"
)

// User-facing error strings.
const (
	MsgEmptyQuestion = "question is empty"
	MsgDisabled      = "advisory service is not configured"
	MsgRateLimited   = "advisory service is busy, try again shortly"
	MsgTimeout       = "advisory service did not answer in time"
	MsgEmptyReply    = "advisory service returned an empty response"
)

var (
	ErrService     = errors.New("advisory service error")
	ErrUnavailable = errors.New(MsgDisabled)
	ErrEmptyReply  = errors.New(MsgEmptyReply)
)

// ServiceError wraps a failure from the remote generator.
type ServiceError struct {
	Provider string
	Err      error
}

func (e *ServiceError) Error() string {
	return fmt.Sprintf("%s: %v", e.Provider, e.Err)
}

func (e *ServiceError) Is(target error) bool { return target == ErrService }

func (e *ServiceError) Unwrap() error { return e.Err }

// RateLimitError reports a question rejected by the local limiter.
type RateLimitError struct {
	Limit rate.Limit
	Err   error
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limit %.2f/s exceeded: %v", float64(e.Limit), e.Err)
}

func (e *RateLimitError) Unwrap() error { return e.Err }

// Generator produces text for a single prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
	Name() string
}

// MetricsInterface defines metrics methods needed by the gateway
type MetricsInterface interface {
	AdvisoryRequestsInc(outcome string)
	AdvisoryLatencyObserve(seconds float64)
}

type nopMetrics struct{}

func (nopMetrics) AdvisoryRequestsInc(string)     {}
func (nopMetrics) AdvisoryLatencyObserve(float64) {}

// Outcome labels reported to MetricsInterface.
const (
	OutcomeOK          = "ok"
	OutcomeInvalid     = "invalid_question"
	OutcomeDisabled    = "disabled"
	OutcomeRateLimited = "rate_limited"
	OutcomeTimeout     = "timeout"
	OutcomeError       = "error"
)

// Exchange is one question and whatever came back. Exactly one of Response
// and Error is set.
type Exchange struct {
	ID        string        `json:"id"`
	Question  string        `json:"question"`
	Response  string        `json:"response,omitempty"`
	Error     string        `json:"error,omitempty"`
	Provider  string        `json:"provider,omitempty"`
	AskedAt   time.Time     `json:"asked_at"`
	Latency   time.Duration `json:"latency_ns"`
	Succeeded bool          `json:"succeeded"`
}

// Options configures a Gateway.
type Options struct {
	Timeout           time.Duration
	RequestsPerMinute int
	MaxQuestionLength int
	Metrics           MetricsInterface
}

// Gateway is safe for concurrent use. A nil generator yields a disabled
// gateway whose every answer is MsgDisabled.
type Gateway struct {
	gen       Generator
	limiter   *rate.Limiter
	timeout   time.Duration
	maxLength int
	metrics   MetricsInterface
}

// NewGateway wraps gen with a per-call timeout and a token-bucket limit.
func NewGateway(gen Generator, opts Options) *Gateway {
	g := &Gateway{
		gen:       gen,
		timeout:   opts.Timeout,
		maxLength: opts.MaxQuestionLength,
		metrics:   opts.Metrics,
	}
	if g.timeout <= 0 {
		g.timeout = 30 * time.Second
	}
	if g.maxLength <= 0 {
		g.maxLength = 4000
	}
	if g.metrics == nil {
		g.metrics = nopMetrics{}
	}
	if opts.RequestsPerMinute > 0 {
		burst := max(1, opts.RequestsPerMinute/6)
		g.limiter = rate.NewLimiter(rate.Limit(float64(opts.RequestsPerMinute)/60), burst)
	}
	return g
}

// Enabled reports whether a generator is configured.
func (g *Gateway) Enabled() bool { return g != nil && g.gen != nil }

// Provider names the configured generator.
func (g *Gateway) Provider() string {
	if !g.Enabled() {
		return ""
	}
	return g.gen.Name()
}

// Ask sends question alone to the generator. Failures never escape as
// errors; they are reported in Exchange.Error.
func (g *Gateway) Ask(ctx context.Context, question string) Exchange {
	ex := Exchange{
		ID:       uuid.NewString(),
		Question: question,
		AskedAt:  time.Now(),
	}
	finish := func(outcome string) Exchange {
		ex.Latency = time.Since(ex.AskedAt)
		ex.Succeeded = ex.Error == ""
		if g != nil {
			g.metrics.AdvisoryRequestsInc(outcome)
			if outcome == OutcomeOK || outcome == OutcomeError || outcome == OutcomeTimeout {
				g.metrics.AdvisoryLatencyObserve(ex.Latency.Seconds())
			}
		}
		return ex
	}

	prompt := strings.TrimSpace(question)
	if prompt == "" {
		ex.Error = MsgEmptyQuestion
		return finish(OutcomeInvalid)
	}
	if !g.Enabled() {
		ex.Error = MsgDisabled
		return finish(OutcomeDisabled)
	}
	ex.Provider = g.gen.Name()
	if len(prompt) > g.maxLength {
		ex.Error = fmt.Sprintf("question is too long (%d characters, limit %d)", len(prompt), g.maxLength)
		return finish(OutcomeInvalid)
	}

	if g.limiter != nil && !g.limiter.Allow() {
		err := &RateLimitError{Limit: g.limiter.Limit(), Err: errors.New("no tokens available")}
		log.Warn().Err(err).Str("exchange_id", ex.ID).Msg("Advisory question rejected")
		ex.Error = MsgRateLimited
		return finish(OutcomeRateLimited)
	}

	callCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	answer, err := g.gen.Generate(callCtx, prompt)
	if err == nil && strings.TrimSpace(answer) == "" {
		err = ErrEmptyReply
	}
	if err != nil {
		serr := &ServiceError{Provider: g.gen.Name(), Err: err}
		outcome := OutcomeError
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(callCtx.Err(), context.DeadlineExceeded) {
			outcome = OutcomeTimeout
			ex.Error = MsgTimeout
		} else {
			ex.Error = "advisory service error: " + err.Error()
		}
		log.Error().
			Err(serr).
			Str("exchange_id", ex.ID).
			Str("provider", g.gen.Name()).
			Dur("timeout", g.timeout).
			Msg("Advisory request failed")
		return finish(outcome)
	}

	ex.Response = answer
	log.Debug().
		Str("exchange_id", ex.ID).
		Str("provider", g.gen.Name()).
		Int("response_length", len(answer)).
		Msg("Advisory answer received")
	return finish(OutcomeOK)
}
