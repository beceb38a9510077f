// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package model

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"

	"cloud.google.com/go/auth"

	"github.com/go-a2a/tuneflow/generate"
)

var (
	// ErrSafetyBlocked reports a prompt or response blocked by content filters.
	ErrSafetyBlocked = errors.New("blocked by safety filters")

	// ErrEmptyResponse reports a response without any text.
	ErrEmptyResponse = errors.New("empty response")

	// ErrUnsupportedModel reports a model name no provider serves.
	ErrUnsupportedModel = errors.New("unsupported model")
)

// Provider names a model backend.
type Provider string

const (
	ProviderGemini Provider = "gemini"
	ProviderClaude Provider = "claude"
)

// Config selects and authenticates a model.
type Config struct {
	// Model is the model name or a Vertex AI endpoint resource name.
	Model string

	// APIKey authenticates against the provider's public API. When empty the
	// provider's environment variable is used, unless Project is set.
	APIKey string

	// Project and Location select Vertex AI.
	Project  string
	Location string

	// Credentials overrides Application Default Credentials on Vertex AI. Optional.
	Credentials *auth.Credentials
}

func (c Config) vertex() bool {
	return c.Project != "" && c.APIKey == ""
}

// Option is a functional option for configuring a model.
type Option func(*options)

type options struct {
	logger *slog.Logger
}

// WithLogger sets a custom logger for the model.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

func newOptions(opts []Option) *options {
	o := &options{
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

var providerPatterns = []struct {
	provider Provider
	patterns []*regexp.Regexp
}{
	{
		provider: ProviderClaude,
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`^claude-.*`),
			regexp.MustCompile(`^projects/[^/]+/locations/[^/]+/publishers/anthropic/models/claude-.*`),
		},
	},
	{
		provider: ProviderGemini,
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`^gemini-.*`),
			regexp.MustCompile(`^projects/[^/]+/locations/[^/]+/endpoints/[^/]+$`),
			regexp.MustCompile(`^projects/[^/]+/locations/[^/]+/publishers/google/models/gemini-.*`),
		},
	},
}

// Resolve returns the provider serving modelName.
func Resolve(modelName string) (Provider, error) {
	for _, entry := range providerPatterns {
		for _, pattern := range entry.patterns {
			if pattern.MatchString(modelName) {
				return entry.provider, nil
			}
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedModel, modelName)
}

// New returns the text generator for cfg.Model.
func New(ctx context.Context, cfg Config, opts ...Option) (generate.TextGenerator, error) {
	provider, err := Resolve(cfg.Model)
	if err != nil {
		return nil, err
	}

	switch provider {
	case ProviderClaude:
		return NewClaude(ctx, cfg, opts...)
	default:
		return NewGemini(ctx, cfg, opts...)
	}
}
