// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

// Package dataset prepares tuning and evaluation data.
//
// Chat transcripts in JSON Lines form are converted to the supervised tuning
// sample format with [ConvertMessages]. The prepared files are copied to Cloud
// Storage with an [Uploader]; [TransfersFromConfig] reads the local and remote
// locations from the DATASET configuration section. Evaluation corpora are read
// from CSV with [ReadCorpus].
package dataset
