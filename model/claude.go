// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package model

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/vertex"
	"golang.org/x/oauth2/google"

	"github.com/go-a2a/tuneflow/generate"
	"github.com/go-a2a/tuneflow/internal/gcp"
)

const (
	// ClaudeDefaultModel is the model used when [Config.Model] is empty.
	ClaudeDefaultModel = "claude-3-5-sonnet-v2@20241022"

	// EnvAnthropicAPIKey is the environment variable name for the Anthropic API key.
	EnvAnthropicAPIKey = "ANTHROPIC_API_KEY"

	// claudeDefaultMaxTokens is sent when the request does not limit the output.
	claudeDefaultMaxTokens = 1024

	// stopReasonRefusal is the stop reason of a response declined by the safety classifiers.
	stopReasonRefusal anthropic.StopReason = "refusal"
)

// Claude generates text with an Anthropic Claude model.
type Claude struct {
	client anthropic.Client
	model  string
	logger *slog.Logger
}

var _ generate.TextGenerator = (*Claude)(nil)

// NewClaude creates a new [Claude].
//
// With cfg.Project set and no API key the model is reached through Vertex AI with
// Application Default Credentials. Otherwise the Anthropic API is used with
// cfg.APIKey or the [EnvAnthropicAPIKey] environment variable.
func NewClaude(ctx context.Context, cfg Config, opts ...Option) (*Claude, error) {
	o := newOptions(opts)

	modelName := cfg.Model
	if modelName == "" {
		modelName = ClaudeDefaultModel
	}

	var reqOpts []option.RequestOption
	if cfg.vertex() {
		creds, err := google.FindDefaultCredentials(ctx, gcp.CloudPlatformScope)
		if err != nil {
			return nil, fmt.Errorf("failed to find default credentials: %w", err)
		}
		reqOpts = append(reqOpts, vertex.WithCredentials(ctx, cfg.Location, cfg.Project, creds))
	} else {
		apiKey := cfg.APIKey
		if apiKey == "" {
			apiKey = os.Getenv(EnvAnthropicAPIKey)
		}
		if apiKey == "" {
			return nil, fmt.Errorf("either an API key, a project or the %q environment variable must be set", EnvAnthropicAPIKey)
		}
		reqOpts = append(reqOpts, option.WithAPIKey(apiKey))
	}

	return &Claude{
		client: anthropic.NewClient(reqOpts...),
		model:  modelName,
		logger: o.logger,
	}, nil
}

// Name returns the model name.
func (m *Claude) Name() string {
	return m.model
}

// GenerateText implements [generate.TextGenerator].
func (m *Claude) GenerateText(ctx context.Context, req generate.Request) (string, error) {
	msg, err := m.client.Messages.New(ctx, claudeParams(m.model, req))
	if err != nil {
		return "", fmt.Errorf("anthropic API error: %w", err)
	}

	text, err := claudeText(msg)
	if err != nil {
		return "", err
	}
	m.logger.DebugContext(ctx, "Claude response",
		slog.String("model", m.model),
		slog.String("stop_reason", string(msg.StopReason)),
		slog.Int("text_length", len(text)),
	)

	return text, nil
}

func claudeParams(modelName string, req generate.Request) anthropic.MessageNewParams {
	maxTokens := int64(req.MaxTokens)
	if maxTokens <= 0 {
		maxTokens = claudeDefaultMaxTokens
	}

	return anthropic.MessageNewParams{
		Model:     anthropic.Model(modelName),
		MaxTokens: maxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(req.Document)),
		},
		Temperature: anthropic.Float(req.Temperature),
	}
}

// claudeText concatenates the text blocks of msg.
func claudeText(msg *anthropic.Message) (string, error) {
	if msg == nil {
		return "", ErrEmptyResponse
	}
	if msg.StopReason == stopReasonRefusal {
		return "", fmt.Errorf("response %w: %s", ErrSafetyBlocked, msg.StopReason)
	}

	var buf strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			buf.WriteString(block.Text)
		}
	}
	if buf.Len() == 0 {
		return "", ErrEmptyResponse
	}

	return buf.String(), nil
}
