// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package model

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"google.golang.org/genai"

	"github.com/go-a2a/tuneflow/generate"
)

const (
	// GeminiDefaultModel is the model used when [Config.Model] is empty.
	GeminiDefaultModel = "gemini-1.5-pro-002"

	// EnvGoogleAPIKey is the environment variable name for the Gemini API key.
	EnvGoogleAPIKey = "GOOGLE_API_KEY"
)

// Gemini generates text with a Gemini model.
type Gemini struct {
	client *genai.Client
	model  string
	logger *slog.Logger
}

var _ generate.TextGenerator = (*Gemini)(nil)

// NewGemini creates a new [Gemini].
//
// With cfg.Project set and no API key the Vertex AI backend is used, which also
// serves tuned model endpoints. Otherwise the Gemini API is used with cfg.APIKey
// or the [EnvGoogleAPIKey] environment variable.
func NewGemini(ctx context.Context, cfg Config, opts ...Option) (*Gemini, error) {
	o := newOptions(opts)

	modelName := cfg.Model
	if modelName == "" {
		modelName = GeminiDefaultModel
	}

	clientConfig := &genai.ClientConfig{}
	if cfg.vertex() {
		clientConfig.Backend = genai.BackendVertexAI
		clientConfig.Project = cfg.Project
		clientConfig.Location = cfg.Location
		clientConfig.Credentials = cfg.Credentials
	} else {
		apiKey := cfg.APIKey
		if apiKey == "" {
			apiKey = os.Getenv(EnvGoogleAPIKey)
		}
		if apiKey == "" {
			return nil, fmt.Errorf("either an API key, a project or the %q environment variable must be set", EnvGoogleAPIKey)
		}
		clientConfig.Backend = genai.BackendGeminiAPI
		clientConfig.APIKey = apiKey
	}

	client, err := genai.NewClient(ctx, clientConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}

	return &Gemini{
		client: client,
		model:  modelName,
		logger: o.logger,
	}, nil
}

// Name returns the model name.
func (m *Gemini) Name() string {
	return m.model
}

// GenerateText implements [generate.TextGenerator].
func (m *Gemini) GenerateText(ctx context.Context, req generate.Request) (string, error) {
	resp, err := m.client.Models.GenerateContent(ctx, m.model, genai.Text(req.Document), geminiConfig(req))
	if err != nil {
		return "", fmt.Errorf("gemini API error: %w", err)
	}

	text, err := geminiText(resp)
	if err != nil {
		return "", err
	}
	m.logger.DebugContext(ctx, "Gemini response",
		slog.String("model", m.model),
		slog.Int("text_length", len(text)),
	)

	return text, nil
}

func geminiConfig(req generate.Request) *genai.GenerateContentConfig {
	config := &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(float32(req.Temperature)),
		MaxOutputTokens: req.MaxTokens,
	}
	if len(req.SafetySettings) > 0 {
		config.SafetySettings = req.SafetySettings
	}
	return config
}

// geminiText extracts the text of the first candidate.
func geminiText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil {
		return "", ErrEmptyResponse
	}
	if fb := resp.PromptFeedback; fb != nil && fb.BlockReason != "" {
		return "", fmt.Errorf("prompt %w: %s", ErrSafetyBlocked, fb.BlockReason)
	}
	if len(resp.Candidates) == 0 {
		return "", ErrEmptyResponse
	}

	candidate := resp.Candidates[0]
	switch candidate.FinishReason {
	case genai.FinishReasonSafety,
		genai.FinishReasonProhibitedContent,
		genai.FinishReasonBlocklist,
		genai.FinishReasonSPII:
		return "", fmt.Errorf("response %w: %s", ErrSafetyBlocked, candidate.FinishReason)
	}
	if candidate.Content == nil {
		return "", ErrEmptyResponse
	}

	var buf strings.Builder
	for _, part := range candidate.Content.Parts {
		if part != nil && !part.Thought {
			buf.WriteString(part.Text)
		}
	}
	if buf.Len() == 0 {
		return "", ErrEmptyResponse
	}

	return buf.String(), nil
}
