// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"fmt"
	"os"
)

// EnvCredentials is the environment variable Google Cloud client libraries read
// the service account file from.
const EnvCredentials = "GOOGLE_APPLICATION_CREDENTIALS"

// CredentialsPath returns the configured service account file. A top-level
// CREDENTIALS_PATH wins over PROJECT.credentials_path.
func CredentialsPath(ns *Namespace) string {
	if path := ns.String("", "credentials_path"); path != "" {
		return path
	}
	return ns.String("", "project", "credentials_path")
}

// ApplyCredentialBinding exports the configured credentials path as
// [EnvCredentials] and returns it. Nothing is set when no path is configured.
func ApplyCredentialBinding(ns *Namespace) (string, error) {
	path := CredentialsPath(ns)
	if path == "" {
		return "", nil
	}
	if err := os.Setenv(EnvCredentials, path); err != nil {
		return "", fmt.Errorf("set %s: %w", EnvCredentials, err)
	}
	return path, nil
}
