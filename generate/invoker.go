// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package generate

import (
	"context"
	"log/slog"
	"math"
	"math/rand/v2"
	"strings"
	"time"

	"google.golang.org/genai"
)

const (
	// DefaultMaxAttempts is the number of tries, including the first one.
	DefaultMaxAttempts = 3

	// Fallback is returned when every attempt failed.
	Fallback = "Summary generation failed."

	// TemperatureStep is added to the base temperature for every retry.
	TemperatureStep = 0.5
)

// Request is the input of a single generation attempt.
type Request struct {
	// Document is the text to summarize.
	Document string

	// Temperature is the sampling temperature.
	Temperature float64

	// MaxTokens limits the length of the generated text.
	MaxTokens int32

	// SafetySettings is passed through to the generator unchanged. Optional.
	SafetySettings []*genai.SafetySetting
}

// TextGenerator produces text for a [Request].
type TextGenerator interface {
	GenerateText(ctx context.Context, req Request) (string, error)
}

// TextGeneratorFunc adapts a function to [TextGenerator].
type TextGeneratorFunc func(ctx context.Context, req Request) (string, error)

var _ TextGenerator = TextGeneratorFunc(nil)

// GenerateText implements [TextGenerator].
func (f TextGeneratorFunc) GenerateText(ctx context.Context, req Request) (string, error) {
	return f(ctx, req)
}

// FailureKind classifies a failed attempt for logging.
type FailureKind string

const (
	// FailureSafety marks a content safety rejection.
	FailureSafety FailureKind = "safety"

	// FailureTransient marks every other failure.
	FailureTransient FailureKind = "transient"
)

// Classify returns [FailureSafety] when the error text mentions safety in any case,
// and [FailureTransient] otherwise.
func Classify(err error) FailureKind {
	if err != nil && strings.Contains(strings.ToLower(err.Error()), "safety") {
		return FailureSafety
	}
	return FailureTransient
}

// Outcome is the result of one attempt.
type Outcome string

const (
	OutcomeSuccess   Outcome = "success"
	OutcomeRetry     Outcome = "retry"
	OutcomeExhausted Outcome = "exhausted"
)

// Attempt records one call to the generator.
type Attempt struct {
	Index       int
	Temperature float64
	Outcome     Outcome
	Kind        FailureKind
	Err         error
}

// Temperature returns the temperature of the given 0-based attempt.
func Temperature(attempt int, base float64) float64 {
	return base + float64(attempt)*TemperatureStep
}

// maxBackoffExponent bounds the exponent of [Backoff] so the pause fits in a
// [time.Duration].
const maxBackoffExponent = 30

// Backoff returns the pause after the failed attempt: 2^attempt seconds plus jitter
// seconds. Attempts past 30 back off like attempt 30.
func Backoff(attempt int, jitter float64) time.Duration {
	attempt = min(attempt, maxBackoffExponent)
	return time.Duration((math.Pow(2, float64(attempt)) + jitter) * float64(time.Second))
}

// Invoker calls a [TextGenerator] with retries.
type Invoker struct {
	maxAttempts    int
	maxTemperature float64
	fallback       string
	sleep          func(time.Duration)
	jitter         func() float64
	logger         *slog.Logger
}

// Option is a functional option for configuring an [Invoker].
type Option func(*Invoker)

// WithMaxAttempts sets the number of tries. Values below one are ignored.
func WithMaxAttempts(n int) Option {
	return func(inv *Invoker) {
		if n >= 1 {
			inv.maxAttempts = n
		}
	}
}

// WithMaxTemperature caps the escalated temperature. Zero leaves it uncapped.
func WithMaxTemperature(max float64) Option {
	return func(inv *Invoker) {
		inv.maxTemperature = max
	}
}

// WithFallback replaces the text returned on exhaustion. An empty text is ignored.
func WithFallback(text string) Option {
	return func(inv *Invoker) {
		if text != "" {
			inv.fallback = text
		}
	}
}

// WithSleep replaces the function used to pause between attempts.
func WithSleep(sleep func(time.Duration)) Option {
	return func(inv *Invoker) {
		inv.sleep = sleep
	}
}

// WithJitter replaces the jitter source. It must return values in [0, 1).
func WithJitter(jitter func() float64) Option {
	return func(inv *Invoker) {
		inv.jitter = jitter
	}
}

// WithLogger sets a custom logger for the invoker.
func WithLogger(logger *slog.Logger) Option {
	return func(inv *Invoker) {
		inv.logger = logger
	}
}

// NewInvoker returns an [Invoker] with [DefaultMaxAttempts] tries and the [Fallback] text.
func NewInvoker(opts ...Option) *Invoker {
	inv := &Invoker{
		maxAttempts: DefaultMaxAttempts,
		fallback:    Fallback,
		sleep:       time.Sleep,
		jitter:      rand.Float64,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(inv)
	}

	return inv
}

// MaxAttempts returns the configured number of tries.
func (inv *Invoker) MaxAttempts() int {
	return inv.maxAttempts
}

// Generate returns the generated text, or the fallback text when every attempt failed.
func (inv *Invoker) Generate(ctx context.Context, gen TextGenerator, req Request) string {
	text, _ := inv.GenerateAttempts(ctx, gen, req)
	return text
}

// GenerateAttempts is like [Invoker.Generate] and also returns the attempts made.
//
// ctx is handed to the generator only. The pause between attempts always runs to
// completion.
func (inv *Invoker) GenerateAttempts(ctx context.Context, gen TextGenerator, req Request) (string, []Attempt) {
	attempts := make([]Attempt, 0, inv.maxAttempts)

	for i := range inv.maxAttempts {
		attemptReq := req
		attemptReq.Temperature = inv.temperature(i, req.Temperature)

		inv.logger.DebugContext(ctx, "Generating text",
			slog.Int("attempt", i),
			slog.Int("document_length", len(req.Document)),
			slog.Float64("temperature", attemptReq.Temperature),
		)

		text, err := gen.GenerateText(ctx, attemptReq)
		if err == nil {
			attempts = append(attempts, Attempt{
				Index:       i,
				Temperature: attemptReq.Temperature,
				Outcome:     OutcomeSuccess,
			})
			return text, attempts
		}

		kind := Classify(err)
		last := i == inv.maxAttempts-1
		outcome := OutcomeRetry
		if last {
			outcome = OutcomeExhausted
		}
		attempts = append(attempts, Attempt{
			Index:       i,
			Temperature: attemptReq.Temperature,
			Outcome:     outcome,
			Kind:        kind,
			Err:         err,
		})

		attrs := []any{
			slog.Int("attempt", i),
			slog.Int("document_length", len(req.Document)),
			slog.Float64("temperature", attemptReq.Temperature),
			slog.String("kind", string(kind)),
			slog.Any("error", err),
		}
		if kind == FailureSafety {
			inv.logger.WarnContext(ctx, "Generation blocked by safety filters", attrs...)
		} else {
			inv.logger.WarnContext(ctx, "Generation attempt failed", attrs...)
		}

		if last {
			break
		}

		delay := Backoff(i, inv.jitter())
		inv.logger.InfoContext(ctx, "Retrying generation",
			slog.Int("next_attempt", i+1),
			slog.Float64("next_temperature", inv.temperature(i+1, req.Temperature)),
			slog.Duration("delay", delay),
		)
		inv.sleep(delay)
	}

	inv.logger.ErrorContext(ctx, "All generation attempts failed, returning fallback",
		slog.Int("attempts", inv.maxAttempts),
		slog.Int("document_length", len(req.Document)),
	)

	return inv.fallback, attempts
}

func (inv *Invoker) temperature(attempt int, base float64) float64 {
	t := Temperature(attempt, base)
	if inv.maxTemperature > 0 && t > inv.maxTemperature {
		return inv.maxTemperature
	}
	return t
}
