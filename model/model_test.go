// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package model

import (
	"errors"
	"testing"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	"google.golang.org/genai"

	"github.com/go-a2a/tuneflow/generate"
)

func TestResolve(t *testing.T) {
	tests := []struct {
		model   string
		want    Provider
		wantErr bool
	}{
		{model: "gemini-1.5-pro-002", want: ProviderGemini},
		{model: "projects/p/locations/us-central1/endpoints/123", want: ProviderGemini},
		{model: "projects/p/locations/us-central1/publishers/google/models/gemini-2.0-flash", want: ProviderGemini},
		{model: "claude-3-5-sonnet-v2@20241022", want: ProviderClaude},
		{model: "projects/p/locations/us-east5/publishers/anthropic/models/claude-3-haiku", want: ProviderClaude},
		{model: "gpt-4o", wantErr: true},
		{model: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.model, func(t *testing.T) {
			got, err := Resolve(tt.model)
			if tt.wantErr {
				if !errors.Is(err, ErrUnsupportedModel) {
					t.Fatalf("Resolve(%q) error = %v, want ErrUnsupportedModel", tt.model, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Resolve(%q) error = %v", tt.model, err)
			}
			if got != tt.want {
				t.Errorf("Resolve(%q) = %q, want %q", tt.model, got, tt.want)
			}
		})
	}
}

func TestGeminiText(t *testing.T) {
	tests := []struct {
		name       string
		resp       *genai.GenerateContentResponse
		want       string
		wantErr    error
		wantSafety bool
	}{
		{
			name: "text",
			resp: &genai.GenerateContentResponse{
				Candidates: []*genai.Candidate{{
					Content:      genai.NewContentFromText("a short summary", genai.RoleModel),
					FinishReason: genai.FinishReasonStop,
				}},
			},
			want: "a short summary",
		},
		{
			name: "multiple parts",
			resp: &genai.GenerateContentResponse{
				Candidates: []*genai.Candidate{{
					Content: &genai.Content{
						Role:  genai.RoleModel,
						Parts: []*genai.Part{{Text: "first "}, {Text: "second"}},
					},
				}},
			},
			want: "first second",
		},
		{
			name: "blocked prompt",
			resp: &genai.GenerateContentResponse{
				PromptFeedback: &genai.GenerateContentResponsePromptFeedback{BlockReason: genai.BlockedReasonSafety},
			},
			wantErr:    ErrSafetyBlocked,
			wantSafety: true,
		},
		{
			name: "safety finish",
			resp: &genai.GenerateContentResponse{
				Candidates: []*genai.Candidate{{FinishReason: genai.FinishReasonSafety}},
			},
			wantErr:    ErrSafetyBlocked,
			wantSafety: true,
		},
		{
			name:    "no candidates",
			resp:    &genai.GenerateContentResponse{},
			wantErr: ErrEmptyResponse,
		},
		{
			name:    "nil",
			wantErr: ErrEmptyResponse,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := geminiText(tt.resp)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("geminiText() error = %v, want %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("geminiText() = %q, want %q", got, tt.want)
			}
			if err != nil {
				if safety := generate.Classify(err) == generate.FailureSafety; safety != tt.wantSafety {
					t.Errorf("Classify(%v) safety = %v, want %v", err, safety, tt.wantSafety)
				}
			}
		})
	}
}

func TestGeminiConfig(t *testing.T) {
	config := geminiConfig(generate.Request{Temperature: 0.5, MaxTokens: 128})

	if config.Temperature == nil || *config.Temperature != 0.5 {
		t.Errorf("Temperature = %v, want 0.5", config.Temperature)
	}
	if config.MaxOutputTokens != 128 {
		t.Errorf("MaxOutputTokens = %d, want 128", config.MaxOutputTokens)
	}
	if config.SafetySettings != nil {
		t.Errorf("SafetySettings = %v, want nil", config.SafetySettings)
	}

	settings := []*genai.SafetySetting{{
		Category:  genai.HarmCategoryHarassment,
		Threshold: genai.HarmBlockThresholdBlockOnlyHigh,
	}}
	config = geminiConfig(generate.Request{SafetySettings: settings})
	if len(config.SafetySettings) != 1 {
		t.Errorf("SafetySettings not passed through: %v", config.SafetySettings)
	}
}

func TestClaudeText(t *testing.T) {
	tests := []struct {
		name    string
		msg     *anthropic.Message
		want    string
		wantErr error
	}{
		{
			name: "text blocks",
			msg: &anthropic.Message{
				Content: []anthropic.ContentBlockUnion{
					{Type: "text", Text: "hello "},
					{Type: "tool_use"},
					{Type: "text", Text: "world"},
				},
				StopReason: anthropic.StopReasonEndTurn,
			},
			want: "hello world",
		},
		{
			name:    "refusal",
			msg:     &anthropic.Message{StopReason: stopReasonRefusal},
			wantErr: ErrSafetyBlocked,
		},
		{
			name:    "empty",
			msg:     &anthropic.Message{StopReason: anthropic.StopReasonMaxTokens},
			wantErr: ErrEmptyResponse,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := claudeText(tt.msg)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("claudeText() error = %v, want %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("claudeText() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestClaudeParams(t *testing.T) {
	params := claudeParams("claude-3-haiku@20240307", generate.Request{Document: "doc", Temperature: 0.7})

	if params.MaxTokens != claudeDefaultMaxTokens {
		t.Errorf("MaxTokens = %d, want %d", params.MaxTokens, claudeDefaultMaxTokens)
	}
	if got := params.Temperature.Value; got != 0.7 {
		t.Errorf("Temperature = %v, want 0.7", got)
	}
	if len(params.Messages) != 1 || params.Messages[0].Role != anthropic.MessageParamRoleUser {
		t.Errorf("Messages = %+v, want one user message", params.Messages)
	}

	params = claudeParams("claude-3-haiku@20240307", generate.Request{MaxTokens: 64})
	if params.MaxTokens != 64 {
		t.Errorf("MaxTokens = %d, want 64", params.MaxTokens)
	}
}

func TestNewGeminiRequiresCredentials(t *testing.T) {
	t.Setenv(EnvGoogleAPIKey, "")

	if _, err := NewGemini(t.Context(), Config{Model: "gemini-2.0-flash"}); err == nil {
		t.Fatal("NewGemini() error = nil, want missing API key error")
	}
}

func TestNewClaudeRequiresCredentials(t *testing.T) {
	t.Setenv(EnvAnthropicAPIKey, "")

	if _, err := NewClaude(t.Context(), Config{Model: "claude-3-haiku@20240307"}); err == nil {
		t.Fatal("NewClaude() error = nil, want missing API key error")
	}
}
