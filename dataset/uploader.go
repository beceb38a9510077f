// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package dataset

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"golang.org/x/sync/errgroup"

	"github.com/go-a2a/tuneflow/config"
)

// Transfer copies a local file to a gs:// URI.
type Transfer struct {
	Local  string
	Remote string
}

// TransfersFromConfig returns the train and validation transfers of the DATASET
// section. The validation transfer is omitted when either of its paths is unset.
func TransfersFromConfig(ns *config.Namespace) ([]Transfer, error) {
	trainLocal, err := ns.RequireString("dataset", "train_dataset_local_path")
	if err != nil {
		return nil, err
	}
	trainRemote, err := ns.RequireString("dataset", "train_dataset_path")
	if err != nil {
		return nil, err
	}
	transfers := []Transfer{{Local: trainLocal, Remote: trainRemote}}

	valLocal := ns.String("", "dataset", "validation_dataset_local_path")
	valRemote := ns.String("", "dataset", "validation_dataset_path")
	if valLocal != "" && valRemote != "" {
		transfers = append(transfers, Transfer{Local: valLocal, Remote: valRemote})
	}

	return transfers, nil
}

// Uploader copies local dataset files to a [Store].
type Uploader struct {
	store  Store
	logger *slog.Logger
}

// Option is a functional option for configuring an [Uploader].
type Option func(*Uploader)

// WithLogger sets a custom logger for the uploader.
func WithLogger(logger *slog.Logger) Option {
	return func(u *Uploader) {
		u.logger = logger
	}
}

// NewUploader returns an [Uploader] writing to store.
func NewUploader(store Store, opts ...Option) *Uploader {
	u := &Uploader{
		store:  store,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(u)
	}
	return u
}

// Upload copies the local file to gcsURI.
func (u *Uploader) Upload(ctx context.Context, local, gcsURI string) error {
	bucket, object, err := ParseGCSURI(gcsURI)
	if err != nil {
		return err
	}

	f, err := os.Open(local)
	if err != nil {
		return fmt.Errorf("open dataset: %w", err)
	}
	defer f.Close()

	if err := u.store.Put(ctx, bucket, object, f); err != nil {
		u.logger.ErrorContext(ctx, "Failed to upload dataset",
			slog.String("local", local),
			slog.String("uri", gcsURI),
			slog.Any("error", err),
		)
		return err
	}

	u.logger.InfoContext(ctx, "Uploaded dataset",
		slog.String("local", local),
		slog.String("uri", gcsURI),
	)
	return nil
}

// Prepare runs every transfer concurrently and returns the first error.
func (u *Uploader) Prepare(ctx context.Context, transfers ...Transfer) error {
	u.logger.InfoContext(ctx, "Starting data preparation", slog.Int("files", len(transfers)))

	eg, egCtx := errgroup.WithContext(ctx)
	for _, t := range transfers {
		eg.Go(func() error {
			return u.Upload(egCtx, t.Local, t.Remote)
		})
	}
	if err := eg.Wait(); err != nil {
		return fmt.Errorf("prepare datasets: %w", err)
	}

	u.logger.InfoContext(ctx, "Data preparation completed")
	return nil
}
