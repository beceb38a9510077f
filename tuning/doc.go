// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

// Package tuning submits and tracks Vertex AI supervised fine-tuning jobs.
//
// A [Spec] describes the job: the base model, the training and validation
// datasets in Cloud Storage and the hyperparameters. [SpecFromConfig] builds it
// from the HYPERPARAMETERS and DATASET configuration sections. A [Client] creates
// the job and polls it until it ends:
//
//	client, err := tuning.NewClient(ctx, project, location)
//	if err != nil {
//		return err
//	}
//	defer client.Close()
//
//	job, err := client.Train(ctx, spec)
//	if err != nil {
//		return err
//	}
//	job, err = client.Wait(ctx, job.Name)
package tuning
