// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package quota

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"google.golang.org/api/option"
	serviceusage "google.golang.org/api/serviceusage/v1beta1"
)

func TestResourceID(t *testing.T) {
	tests := []struct {
		name        string
		accelerator string
		usage       Usage
		want        string
		wantErr     error
	}{
		{
			name:        "training",
			accelerator: "NVIDIA_L4",
			usage:       Usage{Training: true},
			want:        "custom_model_training_nvidia_l4_gpus",
		},
		{
			name:        "training h100",
			accelerator: "NVIDIA_H100_80GB",
			usage:       Usage{Training: true},
			want:        "custom_model_training_nvidia_h100_gpus",
		},
		{
			name:        "preemptible training",
			accelerator: "TPU_V5e",
			usage:       Usage{Training: true, DynamicWorkloadScheduler: true},
			want:        "custom_model_training_preemptible_tpu_v5e",
		},
		{
			name:        "restricted image",
			accelerator: "NVIDIA_A100_80GB",
			usage:       Usage{Training: true, RestrictedImage: true},
			want:        "restricted_image_training_nvidia_a100_80gb_gpus",
		},
		{
			name:        "restricted image other accelerator",
			accelerator: "NVIDIA_TESLA_T4",
			usage:       Usage{Training: true, RestrictedImage: true},
			wantErr:     ErrUnsupportedAccelerator,
		},
		{
			name:        "restricted image with scheduler",
			accelerator: "NVIDIA_A100_80GB",
			usage:       Usage{Training: true, RestrictedImage: true, DynamicWorkloadScheduler: true},
			wantErr:     ErrIncompatibleUsage,
		},
		{
			name:        "serving",
			accelerator: "NVIDIA_TESLA_V100",
			want:        "custom_model_serving_nvidia_v100_gpus",
		},
		{
			name:        "serving restricted image ignored",
			accelerator: "TPU_V3",
			usage:       Usage{RestrictedImage: true},
			want:        "custom_model_serving_tpu_v3",
		},
		{
			name:        "serving with scheduler",
			accelerator: "NVIDIA_L4",
			usage:       Usage{DynamicWorkloadScheduler: true},
			wantErr:     ErrIncompatibleUsage,
		},
		{
			name:        "unknown accelerator",
			accelerator: "NVIDIA_B200",
			usage:       Usage{Training: true},
			wantErr:     ErrUnsupportedAccelerator,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ResourceID(tt.accelerator, tt.usage)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("ResourceID() error = %v, want %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ResourceID() = %q, want %q", got, tt.want)
			}
		})
	}
}

func regionMetrics(buckets ...Bucket) []Metric {
	return []Metric{{
		Name:   ServiceName + "/custom_model_training_nvidia_l4_gpus",
		Limits: []Limit{{Buckets: buckets}},
	}}
}

func TestRegionLimit(t *testing.T) {
	tests := []struct {
		name    string
		metrics []Metric
		want    int64
	}{
		{name: "no data", want: -1},
		{name: "no limits", metrics: []Metric{{Name: "m"}}, want: -1},
		{name: "no buckets", metrics: regionMetrics(), want: -1},
		{
			name: "region found",
			metrics: regionMetrics(
				Bucket{Dimensions: map[string]string{"region": "europe-west4"}, EffectiveLimit: 2},
				Bucket{Dimensions: map[string]string{"region": "us-central1"}, EffectiveLimit: 8},
			),
			want: 8,
		},
		{
			name:    "region without limit",
			metrics: regionMetrics(Bucket{Dimensions: map[string]string{"region": "us-central1"}}),
			want:    0,
		},
		{
			name:    "region missing",
			metrics: regionMetrics(Bucket{EffectiveLimit: 16}),
			want:    -1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := RegionLimit(tt.metrics, "us-central1"); got != tt.want {
				t.Errorf("RegionLimit() = %d, want %d", got, tt.want)
			}
		})
	}
}

type fakeFetcher struct {
	metrics    []Metric
	err        error
	resourceID string
}

func (f *fakeFetcher) FetchQuotaMetrics(_ context.Context, _, resourceID string) ([]Metric, error) {
	f.resourceID = resourceID
	return f.metrics, f.err
}

func TestCheck(t *testing.T) {
	tests := []struct {
		name    string
		fetcher *fakeFetcher
		count   int64
		wantErr error
	}{
		{
			name:    "sufficient",
			fetcher: &fakeFetcher{metrics: regionMetrics(Bucket{Dimensions: map[string]string{"region": "us-central1"}, EffectiveLimit: 4})},
			count:   4,
		},
		{
			name:    "insufficient",
			fetcher: &fakeFetcher{metrics: regionMetrics(Bucket{Dimensions: map[string]string{"region": "us-central1"}, EffectiveLimit: 1})},
			count:   2,
			wantErr: ErrInsufficientQuota,
		},
		{
			name:    "not found",
			fetcher: &fakeFetcher{},
			count:   1,
			wantErr: ErrQuotaNotFound,
		},
		{
			name:    "fetch error",
			fetcher: &fakeFetcher{err: errors.New("permission denied")},
			count:   1,
			wantErr: ErrQuotaNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checker := NewChecker(tt.fetcher, WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
			err := checker.Check(t.Context(), Request{
				Project:          "demo",
				Region:           "us-central1",
				Accelerator:      "NVIDIA_L4",
				AcceleratorCount: tt.count,
				Usage:            Usage{Training: true},
			})
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Check() error = %v, want %v", err, tt.wantErr)
			}
			if err != nil && !strings.Contains(err.Error(), "request additional quota") {
				t.Errorf("Check() error %q lacks request instructions", err)
			}
			if got, want := tt.fetcher.resourceID, "custom_model_training_nvidia_l4_gpus"; got != want {
				t.Errorf("fetched resource = %q, want %q", got, want)
			}
		})
	}
}

func TestCheckUnsupportedAccelerator(t *testing.T) {
	checker := NewChecker(&fakeFetcher{}, WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	err := checker.Check(t.Context(), Request{Accelerator: "UNKNOWN", Usage: Usage{Training: true}})
	if !errors.Is(err, ErrUnsupportedAccelerator) {
		t.Fatalf("Check() error = %v, want ErrUnsupportedAccelerator", err)
	}
}

func TestConvertMetric(t *testing.T) {
	in := &serviceusage.ConsumerQuotaMetric{
		Metric: ServiceName + "/custom_model_serving_nvidia_l4_gpus",
		ConsumerQuotaLimits: []*serviceusage.ConsumerQuotaLimit{{
			Name: "limit",
			QuotaBuckets: []*serviceusage.QuotaBucket{
				{Dimensions: map[string]string{"region": "us-east1"}, EffectiveLimit: 3},
			},
		}},
	}

	want := Metric{
		Name: ServiceName + "/custom_model_serving_nvidia_l4_gpus",
		Limits: []Limit{{
			Name:    "limit",
			Buckets: []Bucket{{Dimensions: map[string]string{"region": "us-east1"}, EffectiveLimit: 3}},
		}},
	}
	if diff := cmp.Diff(want, convertMetric(in)); diff != "" {
		t.Errorf("convertMetric() mismatch (-want +got):\n%s", diff)
	}
}

func TestServiceUsageFetcher(t *testing.T) {
	const path = "/v1beta1/projects/demo/services/aiplatform.googleapis.com/consumerQuotaMetrics"

	var tokens []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != path {
			http.NotFound(w, r)
			return
		}
		if got := r.URL.Query().Get("view"); got != "BASIC" {
			t.Errorf("view = %q, want BASIC", got)
		}
		token := r.URL.Query().Get("pageToken")
		tokens = append(tokens, token)

		w.Header().Set("Content-Type", "application/json")
		switch token {
		case "":
			io.WriteString(w, `{
  "metrics": [{"metric": "aiplatform.googleapis.com/custom_model_serving_nvidia_t4_gpus"}],
  "nextPageToken": "page-2"
}`)
		default:
			io.WriteString(w, `{
  "metrics": [{
    "metric": "aiplatform.googleapis.com/custom_model_serving_nvidia_l4_gpus",
    "consumerQuotaLimits": [{
      "name": "limit-1",
      "quotaBuckets": [
        {"effectiveLimit": "3", "dimensions": {"region": "us-central1"}},
        {"effectiveLimit": "8", "dimensions": {"region": "europe-west4"}}
      ]
    }]
  }]
}`)
		}
	}))
	defer srv.Close()

	fetcher, err := NewServiceUsageFetcher(t.Context(), option.WithEndpoint(srv.URL+"/"), option.WithoutAuthentication())
	if err != nil {
		t.Fatal(err)
	}
	got, err := fetcher.FetchQuotaMetrics(t.Context(), "demo", "custom_model_serving_nvidia_l4_gpus")
	if err != nil {
		t.Fatalf("FetchQuotaMetrics() error = %v", err)
	}

	want := []Metric{{
		Name: "aiplatform.googleapis.com/custom_model_serving_nvidia_l4_gpus",
		Limits: []Limit{{
			Name: "limit-1",
			Buckets: []Bucket{
				{Dimensions: map[string]string{"region": "us-central1"}, EffectiveLimit: 3},
				{Dimensions: map[string]string{"region": "europe-west4"}, EffectiveLimit: 8},
			},
		}},
	}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("FetchQuotaMetrics() mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"", "page-2"}, tokens); diff != "" {
		t.Errorf("page tokens mismatch (-want +got):\n%s", diff)
	}
	if limit := RegionLimit(got, "us-central1"); limit != 3 {
		t.Errorf("RegionLimit() = %d, want 3", limit)
	}
}
