// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

// Package quota derives Vertex AI accelerator quota resource IDs and checks that a
// project has enough quota for a training or serving request.
package quota

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// ServiceName is the service whose quota metrics are inspected.
const ServiceName = "aiplatform.googleapis.com"

// RequestInstructions is appended to quota errors.
const RequestInstructions = "Either use a different region or request additional quota. " +
	"Follow instructions here: https://cloud.google.com/docs/quotas/view-manage#requesting_higher_quota" +
	" to check quota in a region or request additional quota for your project."

var (
	// ErrUnsupportedAccelerator reports an accelerator type without a quota resource.
	ErrUnsupportedAccelerator = errors.New("unsupported accelerator type")

	// ErrIncompatibleUsage reports a usage combination Vertex AI does not offer.
	ErrIncompatibleUsage = errors.New("incompatible accelerator usage")

	// ErrQuotaNotFound reports that no quota could be determined.
	ErrQuotaNotFound = errors.New("quota not found")

	// ErrInsufficientQuota reports a quota below the requested accelerator count.
	ErrInsufficientQuota = errors.New("quota not enough")
)

// acceleratorSuffixes maps accelerator types to their quota resource suffix.
var acceleratorSuffixes = map[string]string{
	"NVIDIA_TESLA_V100": "nvidia_v100_gpus",
	"NVIDIA_L4":         "nvidia_l4_gpus",
	"NVIDIA_TESLA_A100": "nvidia_a100_gpus",
	"NVIDIA_A100_80GB":  "nvidia_a100_80gb_gpus",
	"NVIDIA_H100_80GB":  "nvidia_h100_gpus",
	"NVIDIA_TESLA_T4":   "nvidia_t4_gpus",
	"TPU_V5e":           "tpu_v5e",
	"TPU_V3":            "tpu_v3",
}

// restrictedImageAccelerator is the only accelerator offered for restricted image training.
const restrictedImageAccelerator = "NVIDIA_A100_80GB"

// Usage describes how the accelerators are used.
type Usage struct {
	// Training selects training quota; serving quota otherwise.
	Training bool

	// RestrictedImage selects restricted image training quota.
	RestrictedImage bool

	// DynamicWorkloadScheduler selects preemptible training quota.
	DynamicWorkloadScheduler bool
}

// ResourceID returns the quota resource ID of accelerator for usage.
func ResourceID(accelerator string, usage Usage) (string, error) {
	if !usage.Training {
		if usage.DynamicWorkloadScheduler {
			return "", fmt.Errorf("%w: Dynamic Workload Scheduler does not work for serving", ErrIncompatibleUsage)
		}
		suffix, err := acceleratorSuffix(accelerator)
		if err != nil {
			return "", err
		}
		return "custom_model_serving_" + suffix, nil
	}

	if usage.RestrictedImage {
		if usage.DynamicWorkloadScheduler {
			return "", fmt.Errorf("%w: Dynamic Workload Scheduler does not work for restricted image training", ErrIncompatibleUsage)
		}
		if accelerator != restrictedImageAccelerator {
			return "", fmt.Errorf("%w for restricted image: %s", ErrUnsupportedAccelerator, accelerator)
		}
		return "restricted_image_training_nvidia_a100_80gb_gpus", nil
	}

	suffix, err := acceleratorSuffix(accelerator)
	if err != nil {
		return "", err
	}
	prefix := "custom_model_training"
	if usage.DynamicWorkloadScheduler {
		prefix = "custom_model_training_preemptible"
	}
	return prefix + "_" + suffix, nil
}

func acceleratorSuffix(accelerator string) (string, error) {
	suffix, ok := acceleratorSuffixes[accelerator]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedAccelerator, accelerator)
	}
	return suffix, nil
}

// Bucket is the quota of one dimension combination.
type Bucket struct {
	Dimensions     map[string]string
	EffectiveLimit int64
}

// Limit is one quota limit of a metric.
type Limit struct {
	Name    string
	Buckets []Bucket
}

// Metric is the consumer quota of one quota metric.
type Metric struct {
	Name   string
	Limits []Limit
}

// RegionLimit returns the effective limit of region in the first limit of the
// first metric. It returns -1 when the data holds no buckets or no bucket for
// region, and 0 when the region bucket carries no effective limit.
func RegionLimit(metrics []Metric, region string) int64 {
	if len(metrics) == 0 || len(metrics[0].Limits) == 0 || len(metrics[0].Limits[0].Buckets) == 0 {
		return -1
	}
	for _, bucket := range metrics[0].Limits[0].Buckets {
		if bucket.Dimensions["region"] == region {
			return bucket.EffectiveLimit
		}
	}
	return -1
}

// MetricsFetcher returns the consumer quota metrics of a quota resource.
type MetricsFetcher interface {
	FetchQuotaMetrics(ctx context.Context, project, resourceID string) ([]Metric, error)
}

// Checker checks accelerator quota.
type Checker struct {
	fetcher MetricsFetcher
	logger  *slog.Logger
}

// Option is a functional option for configuring a [Checker].
type Option func(*Checker)

// WithLogger sets a custom logger for the checker.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Checker) {
		c.logger = logger
	}
}

// NewChecker returns a [Checker] reading quota through fetcher.
func NewChecker(fetcher MetricsFetcher, opts ...Option) *Checker {
	c := &Checker{
		fetcher: fetcher,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Quota returns the quota of resourceID in region, or -1 when it cannot be determined.
func (c *Checker) Quota(ctx context.Context, project, region, resourceID string) int64 {
	metrics, err := c.fetcher.FetchQuotaMetrics(ctx, project, resourceID)
	if err != nil {
		c.logger.ErrorContext(ctx, "Failed to get quota",
			slog.String("resource_id", resourceID),
			slog.Any("error", err),
		)
		return -1
	}

	limit := RegionLimit(metrics, region)
	switch limit {
	case -1:
		c.logger.WarnContext(ctx, "No quota data found for region",
			slog.String("resource_id", resourceID),
			slog.String("region", region),
		)
	default:
		c.logger.InfoContext(ctx, "Quota for region",
			slog.String("resource_id", resourceID),
			slog.String("region", region),
			slog.Int64("limit", limit),
		)
	}
	return limit
}

// Request is a quota check request.
type Request struct {
	Project          string
	Region           string
	Accelerator      string
	AcceleratorCount int64
	Usage            Usage
}

// Check verifies that req.Project has at least req.AcceleratorCount accelerators of
// quota in req.Region.
func (c *Checker) Check(ctx context.Context, req Request) error {
	c.logger.InfoContext(ctx, "Checking quota",
		slog.String("project", req.Project),
		slog.String("region", req.Region),
		slog.String("accelerator", req.Accelerator),
	)

	resourceID, err := ResourceID(req.Accelerator, req.Usage)
	if err != nil {
		return err
	}

	quota := c.Quota(ctx, req.Project, req.Region, resourceID)
	if quota == -1 {
		return fmt.Errorf("%w for: %s in %s. %s", ErrQuotaNotFound, resourceID, req.Region, RequestInstructions)
	}
	if quota < req.AcceleratorCount {
		return fmt.Errorf("%w for %s in %s: %d < %d. %s",
			ErrInsufficientQuota, resourceID, req.Region, quota, req.AcceleratorCount, RequestInstructions)
	}

	c.logger.InfoContext(ctx, "Sufficient quota available",
		slog.String("resource_id", resourceID),
		slog.String("region", req.Region),
		slog.Int64("quota", quota),
	)
	return nil
}
