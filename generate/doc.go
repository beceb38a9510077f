// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

// Package generate wraps a text generation call with bounded retries.
//
// An [Invoker] calls a [TextGenerator] up to a fixed number of times. After each
// failed attempt that is not the last one it raises the sampling temperature by
// 0.5 and sleeps 2^i seconds plus up to one second of jitter. When every attempt
// fails it returns a fixed fallback text, so callers always receive a non-empty
// string:
//
//	inv := generate.NewInvoker(generate.WithLogger(logger))
//	summary := inv.Generate(ctx, gemini, generate.Request{
//		Document:    doc,
//		Temperature: 0.2,
//		MaxTokens:   256,
//	})
package generate
