// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

// Package deploy serves open models on Vertex AI endpoints with a Text Generation
// Inference (TGI) container and sends prompts to them.
//
// A [Deployer] checks serving quota, creates an endpoint, uploads the model with
// its serving container and deploys it on the configured machine:
//
//	spec, err := deploy.SpecFromConfig(ns)
//	d := deploy.New(api, project, location, deploy.WithQuotaChecker(checker))
//	deployment, err := d.Deploy(ctx, spec)
//
// The endpoint is then reachable as a [generate.TextGenerator] through
// [Deployer.Generator].
package deploy
