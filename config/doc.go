// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

// Package config resolves the layered YAML configuration of a tuning project.
//
// A configuration directory holds a project-wide base file and one optional
// subdirectory per model:
//
//	configs/
//	  project.yml
//	  gemini_1_5/
//	    dataset.yml
//	    hyperparameters.yml
//
// [Resolver.Resolve] loads project.yml, merges every *.yaml and *.yml file of the
// selected model directory on top of it (in lexicographic file name order) and
// returns a [Namespace] whose top-level keys are exposed in upper case:
//
//	resolver := config.NewResolver("./configs")
//	ns, err := resolver.Resolve(ctx, "gemini_1_5")
//	if err != nil {
//		return err
//	}
//	path := ns.String("", "dataset", "test_dataset_path")
//
// # Failure semantics
//
// A missing project.yml or model directory is logged and resolution continues
// with less configuration. Malformed YAML anywhere aborts resolution with a
// [*ParseError] and no namespace is returned.
//
// # Caching
//
// The project-level configuration is read once per directory and kept in a
// [Cache]. Resolvers sharing a cache reuse the parsed base across model
// selections; [Cache.Invalidate] forces the next resolution to read it again.
// The cache is safe for concurrent use.
//
// # Credential binding
//
// Resolution has no side effects. Callers that need the service account file
// exported for Google Cloud clients call [ApplyCredentialBinding] explicitly.
package config
