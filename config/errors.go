// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"errors"
	"fmt"
)

// ErrMissingKey is returned when a required configuration key is absent or empty.
var ErrMissingKey = errors.New("missing configuration key")

// ParseError reports a configuration file whose content is not a valid YAML mapping.
type ParseError struct {
	Path string
	Err  error
}

// Error implements [error].
func (e *ParseError) Error() string {
	return fmt.Sprintf("parse config %s: %v", e.Path, e.Err)
}

// Unwrap returns the underlying decoding error.
func (e *ParseError) Unwrap() error {
	return e.Err
}
