// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

// Package gcp holds the Google Cloud client plumbing shared by the Vertex AI
// components: credential detection, regional endpoints and resource names.
package gcp

import (
	"fmt"

	"cloud.google.com/go/auth"
	"cloud.google.com/go/auth/credentials"
	"google.golang.org/api/option"
)

// CloudPlatformScope is the OAuth scope requested for every client.
const CloudPlatformScope = "https://www.googleapis.com/auth/cloud-platform"

// DetectCredentials returns Application Default Credentials. The service account
// file named by GOOGLE_APPLICATION_CREDENTIALS takes precedence.
func DetectCredentials() (*auth.Credentials, error) {
	creds, err := credentials.DetectDefault(&credentials.DetectOptions{
		Scopes: []string{
			CloudPlatformScope,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to detect credentials: %w", err)
	}
	return creds, nil
}

// Endpoint returns the regional Vertex AI gRPC endpoint for location.
func Endpoint(location string) string {
	return location + "-aiplatform.googleapis.com:443"
}

// LocationName returns the "projects/{project}/locations/{location}" resource name.
func LocationName(project, location string) string {
	return fmt.Sprintf("projects/%s/locations/%s", project, location)
}

// ClientOptions returns the options for a regional Vertex AI client using creds.
// Extra options are appended and win on conflict.
func ClientOptions(creds *auth.Credentials, location string, extra ...option.ClientOption) []option.ClientOption {
	opts := []option.ClientOption{
		option.WithAuthCredentials(creds),
	}
	if location != "" {
		opts = append(opts, option.WithEndpoint(Endpoint(location)))
	}
	return append(opts, extra...)
}
