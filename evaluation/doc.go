// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

// Package evaluation scores generated summaries against reference summaries.
//
// [Scorer] computes ROUGE-1, ROUGE-2 and ROUGE-L with the tokenization of the
// reference rouge_score implementation: lower-cased text, runs of characters
// other than a-z and 0-9 act as separators, and tokens longer than three
// characters are stemmed. [Evaluator] generates one summary per record through a
// [generate.Invoker] and aggregates the F-measures with [Describe].
package evaluation
