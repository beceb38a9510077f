// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package quota

import (
	"context"
	"fmt"

	"google.golang.org/api/option"
	serviceusage "google.golang.org/api/serviceusage/v1beta1"
)

// ServiceUsageFetcher reads consumer quota metrics from the Service Usage API.
type ServiceUsageFetcher struct {
	service *serviceusage.APIService
}

var _ MetricsFetcher = (*ServiceUsageFetcher)(nil)

// NewServiceUsageFetcher creates a new [ServiceUsageFetcher].
func NewServiceUsageFetcher(ctx context.Context, opts ...option.ClientOption) (*ServiceUsageFetcher, error) {
	service, err := serviceusage.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create service usage client: %w", err)
	}
	return &ServiceUsageFetcher{service: service}, nil
}

// FetchQuotaMetrics implements [MetricsFetcher].
func (f *ServiceUsageFetcher) FetchQuotaMetrics(ctx context.Context, project, resourceID string) ([]Metric, error) {
	parent := fmt.Sprintf("projects/%s/services/%s", project, ServiceName)
	want := ServiceName + "/" + resourceID

	var metrics []Metric
	err := f.service.Services.ConsumerQuotaMetrics.List(parent).
		View("BASIC").
		Pages(ctx, func(page *serviceusage.ListConsumerQuotaMetricsResponse) error {
			for _, m := range page.Metrics {
				if m.Metric == want {
					metrics = append(metrics, convertMetric(m))
				}
			}
			return nil
		})
	if err != nil {
		return nil, fmt.Errorf("list consumer quota metrics of %s: %w", parent, err)
	}

	return metrics, nil
}

func convertMetric(m *serviceusage.ConsumerQuotaMetric) Metric {
	metric := Metric{Name: m.Metric}
	for _, l := range m.ConsumerQuotaLimits {
		limit := Limit{Name: l.Name}
		for _, b := range l.QuotaBuckets {
			limit.Buckets = append(limit.Buckets, Bucket{
				Dimensions:     b.Dimensions,
				EffectiveLimit: b.EffectiveLimit,
			})
		}
		metric.Limits = append(metric.Limits, limit)
	}
	return metric
}
