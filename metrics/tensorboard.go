// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package metrics

import (
	"context"
	"errors"
	"fmt"

	aiplatform "cloud.google.com/go/aiplatform/apiv1beta1"
	"cloud.google.com/go/aiplatform/apiv1beta1/aiplatformpb"
	"google.golang.org/api/iterator"

	"github.com/go-a2a/tuneflow/internal/gcp"
)

// maxDataPoints caps the points read per time series.
const maxDataPoints = 10000

// tensorboardAPI implements [API] with the Vertex AI TensorBoard service.
type tensorboardAPI struct {
	client *aiplatform.TensorboardClient
}

var _ API = (*tensorboardAPI)(nil)

// NewReader connects to the regional TensorBoard service with Application
// Default Credentials.
func NewReader(ctx context.Context, location string, opts ...Option) (*Reader, error) {
	creds, err := gcp.DetectCredentials()
	if err != nil {
		return nil, err
	}
	client, err := aiplatform.NewTensorboardClient(ctx, gcp.ClientOptions(creds, location)...)
	if err != nil {
		return nil, fmt.Errorf("failed to create tensorboard client: %w", err)
	}
	return New(&tensorboardAPI{client: client}, opts...), nil
}

func (a *tensorboardAPI) ListTimeSeries(ctx context.Context, run string) ([]*aiplatformpb.TensorboardTimeSeries, error) {
	it := a.client.ListTensorboardTimeSeries(ctx, &aiplatformpb.ListTensorboardTimeSeriesRequest{
		Parent: run,
	})

	var out []*aiplatformpb.TensorboardTimeSeries
	for {
		ts, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, err
		}
		out = append(out, ts)
	}
	return out, nil
}

func (a *tensorboardAPI) ReadTimeSeries(ctx context.Context, name string) ([]*aiplatformpb.TimeSeriesDataPoint, error) {
	resp, err := a.client.ReadTensorboardTimeSeriesData(ctx, &aiplatformpb.ReadTensorboardTimeSeriesDataRequest{
		TensorboardTimeSeries: name,
		MaxDataPoints:         maxDataPoints,
	})
	if err != nil {
		return nil, err
	}
	return resp.GetTimeSeriesData().GetValues(), nil
}

func (a *tensorboardAPI) Close() error {
	return a.client.Close()
}
