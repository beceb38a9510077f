// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

// Package model provides the text generation capabilities used to summarize
// documents during evaluation.
//
// [Gemini] talks to Gemini models through google.golang.org/genai, either on
// Vertex AI (tuned model endpoints included) or through the Gemini API. [Claude]
// talks to Anthropic models through github.com/anthropics/anthropic-sdk-go,
// either directly or on Vertex AI. Both implement [generate.TextGenerator].
//
// [New] picks the provider from the model name:
//
//	gen, err := model.New(ctx, model.Config{
//		Model:    "projects/my-project/locations/us-central1/endpoints/1234",
//		Project:  "my-project",
//		Location: "us-central1",
//	})
//
// Responses rejected by the provider's content filters are reported as
// [ErrSafetyBlocked], whose message mentions safety so that the generation
// invoker classifies it as a safety failure.
package model
