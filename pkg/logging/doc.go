// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

// Package logging provides context-based structured logging utilities using Go's standard slog package.
//
// A logger is stored in a [context.Context] with [NewContext] and retrieved with
// [FromContext], so a command can configure logging once and every stage of the
// tuning pipeline logs through the same handler:
//
//	logger := logging.New(os.Stderr, verbose)
//	ctx = logging.NewContext(ctx, logger)
//
//	logging.FromContext(ctx).Info("Uploaded dataset", "uri", uri)
//
// # Default Behavior
//
// When no logger is found in the context, FromContext returns a JSON logger
// that writes to stdout at INFO level.
//
// # Logger Configuration
//
// [New] returns the text logger used by the command line: DEBUG level when
// verbose, INFO otherwise.
package logging
