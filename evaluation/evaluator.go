// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package evaluation

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/go-json-experiment/json"
	"github.com/go-json-experiment/json/jsontext"
	"github.com/google/uuid"
	"google.golang.org/genai"

	"github.com/go-a2a/tuneflow/dataset"
	"github.com/go-a2a/tuneflow/generate"
)

const (
	// DefaultTemperature is the base sampling temperature of generated summaries.
	DefaultTemperature = 0.7

	// DefaultMaxTokens limits the length of generated summaries.
	DefaultMaxTokens = 512
)

// Metric names of [Report.Metrics].
const (
	MetricRouge1 = "rouge1_fmeasure"
	MetricRouge2 = "rouge2_fmeasure"
	MetricRougeL = "rougeL_fmeasure"
)

// Result is the evaluation of one record.
type Result struct {
	Document         string  `json:"document"`
	Summary          string  `json:"summary"`
	GeneratedSummary string  `json:"generated_summary"`
	Rouge1FMeasure   float64 `json:"rouge1_fmeasure"`
	Rouge2FMeasure   float64 `json:"rouge2_fmeasure"`
	RougeLFMeasure   float64 `json:"rougeL_fmeasure"`
	Attempts         int     `json:"attempts"`
	Fallback         bool    `json:"fallback"`
}

// Report is the outcome of an evaluation run.
type Report struct {
	RunID       string           `json:"run_id"`
	Model       string           `json:"model,omitempty"`
	StartedAt   time.Time        `json:"started_at"`
	CompletedAt time.Time        `json:"completed_at"`
	Results     []Result         `json:"results"`
	Metrics     map[string]Stats `json:"metrics"`
	Fallbacks   int              `json:"fallbacks"`
}

// Evaluator generates and scores summaries.
type Evaluator struct {
	invoker        *generate.Invoker
	scorer         *Scorer
	temperature    float64
	maxTokens      int32
	safetySettings []*genai.SafetySetting
	model          string
	logger         *slog.Logger
	now            func() time.Time
}

// Option is a functional option for configuring an [Evaluator].
type Option func(*Evaluator)

// WithInvoker sets the invoker used to generate summaries.
func WithInvoker(inv *generate.Invoker) Option {
	return func(e *Evaluator) {
		e.invoker = inv
	}
}

// WithScorer sets the ROUGE scorer.
func WithScorer(s *Scorer) Option {
	return func(e *Evaluator) {
		e.scorer = s
	}
}

// WithGenerationConfig sets the base temperature and output limit of generated summaries.
func WithGenerationConfig(temperature float64, maxTokens int32) Option {
	return func(e *Evaluator) {
		e.temperature = temperature
		e.maxTokens = maxTokens
	}
}

// WithSafetySettings sets the safety settings passed to the generator.
func WithSafetySettings(settings []*genai.SafetySetting) Option {
	return func(e *Evaluator) {
		e.safetySettings = settings
	}
}

// WithModelName records the evaluated model in the report.
func WithModelName(name string) Option {
	return func(e *Evaluator) {
		e.model = name
	}
}

// WithLogger sets a custom logger for the evaluator.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Evaluator) {
		e.logger = logger
	}
}

// NewEvaluator returns an [Evaluator] with a stemming scorer and the default
// generation config.
func NewEvaluator(opts ...Option) *Evaluator {
	e := &Evaluator{
		scorer:      NewScorer(true),
		temperature: DefaultTemperature,
		maxTokens:   DefaultMaxTokens,
		logger:      slog.Default(),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.invoker == nil {
		e.invoker = generate.NewInvoker(generate.WithLogger(e.logger))
	}
	return e
}

// Run generates a summary for every record with gen and scores it against the
// record's reference summary. Generation failures end in the fallback summary and
// are scored like any other prediction; only ctx cancellation aborts the run.
func (e *Evaluator) Run(ctx context.Context, gen generate.TextGenerator, records []dataset.Record) (*Report, error) {
	report := &Report{
		RunID:     uuid.NewString(),
		Model:     e.model,
		StartedAt: e.now(),
		Results:   make([]Result, 0, len(records)),
	}
	e.logger.InfoContext(ctx, "Running evaluation",
		slog.String("run_id", report.RunID),
		slog.Int("examples", len(records)),
	)

	for i, record := range records {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("evaluation interrupted after %d of %d examples: %w", i, len(records), err)
		}

		e.logger.DebugContext(ctx, "Generating summary",
			slog.Int("index", i),
			slog.Int("document_length", len(record.InputText)),
		)
		summary, attempts := e.invoker.GenerateAttempts(ctx, gen, generate.Request{
			Document:       record.InputText,
			Temperature:    e.temperature,
			MaxTokens:      e.maxTokens,
			SafetySettings: e.safetySettings,
		})
		fallback := attempts[len(attempts)-1].Outcome == generate.OutcomeExhausted
		if fallback {
			report.Fallbacks++
		}

		scores := e.scorer.Score(record.OutputText, summary)
		report.Results = append(report.Results, Result{
			Document:         record.InputText,
			Summary:          record.OutputText,
			GeneratedSummary: summary,
			Rouge1FMeasure:   scores.Rouge1.FMeasure,
			Rouge2FMeasure:   scores.Rouge2.FMeasure,
			RougeLFMeasure:   scores.RougeL.FMeasure,
			Attempts:         len(attempts),
			Fallback:         fallback,
		})
	}

	report.Metrics = Summarize(report.Results)
	report.CompletedAt = e.now()

	e.logger.InfoContext(ctx, "Evaluation completed",
		slog.String("run_id", report.RunID),
		slog.Int("fallbacks", report.Fallbacks),
		slog.Float64(MetricRouge1, report.Metrics[MetricRouge1].Mean),
		slog.Float64(MetricRouge2, report.Metrics[MetricRouge2].Mean),
		slog.Float64(MetricRougeL, report.Metrics[MetricRougeL].Mean),
	)

	return report, nil
}

// Summarize describes each F-measure column of results.
func Summarize(results []Result) map[string]Stats {
	r1 := make([]float64, len(results))
	r2 := make([]float64, len(results))
	rl := make([]float64, len(results))
	for i, r := range results {
		r1[i] = r.Rouge1FMeasure
		r2[i] = r.Rouge2FMeasure
		rl[i] = r.RougeLFMeasure
	}

	return map[string]Stats{
		MetricRouge1: Describe(r1),
		MetricRouge2: Describe(r2),
		MetricRougeL: Describe(rl),
	}
}

// WriteReport writes r to w as indented JSON.
func WriteReport(w io.Writer, r *Report) error {
	if err := json.MarshalWrite(w, r, jsontext.WithIndent("  "), json.Deterministic(true)); err != nil {
		return fmt.Errorf("write evaluation report: %w", err)
	}
	return nil
}

// ReadReport decodes a report written by [WriteReport].
func ReadReport(r io.Reader) (*Report, error) {
	var report Report
	if err := json.UnmarshalRead(r, &report); err != nil {
		return nil, fmt.Errorf("read evaluation report: %w", err)
	}
	return &report, nil
}
