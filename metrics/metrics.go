// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

// Package metrics reads the training curves of a tuning job from Vertex AI
// TensorBoard and exports them as CSV.
package metrics

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"sync"

	"cloud.google.com/go/aiplatform/apiv1beta1/aiplatformpb"
	"golang.org/x/sync/errgroup"
)

// Loss metrics written by supervised tuning jobs.
const (
	TrainLoss = "/train_total_loss"
	EvalLoss  = "/eval_total_loss"
)

// ErrMetricNotFound reports a metric missing from a run.
var ErrMetricNotFound = errors.New("metric not found")

// RunName returns the resource name of a TensorBoard run.
func RunName(tensorboard, experiment, run string) string {
	return fmt.Sprintf("%s/experiments/%s/runs/%s", tensorboard, experiment, run)
}

// Series is a scalar time series.
type Series struct {
	Steps  []int64
	Values []float64
}

// Len returns the number of points.
func (s Series) Len() int {
	return len(s.Steps)
}

func seriesFromPoints(points []*aiplatformpb.TimeSeriesDataPoint) Series {
	var s Series
	for _, p := range points {
		scalar := p.GetScalar()
		if scalar == nil {
			continue
		}
		s.Steps = append(s.Steps, p.GetStep())
		s.Values = append(s.Values, scalar.GetValue())
	}
	return s
}

// API is the subset of the TensorBoard service used by [Reader].
type API interface {
	ListTimeSeries(ctx context.Context, run string) ([]*aiplatformpb.TensorboardTimeSeries, error)
	ReadTimeSeries(ctx context.Context, name string) ([]*aiplatformpb.TimeSeriesDataPoint, error)
	Close() error
}

// Reader reads scalar metrics of TensorBoard runs.
type Reader struct {
	api    API
	logger *slog.Logger
}

// Option is a functional option for configuring a [Reader].
type Option func(*Reader)

// WithLogger sets a custom logger for the reader.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Reader) {
		r.logger = logger
	}
}

// New returns a [Reader] over api.
func New(api API, opts ...Option) *Reader {
	r := &Reader{
		api:    api,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Close closes the underlying service client.
func (r *Reader) Close() error {
	return r.api.Close()
}

// ReadRun returns every scalar time series of run keyed by display name.
func (r *Reader) ReadRun(ctx context.Context, run string) (map[string]Series, error) {
	timeSeries, err := r.api.ListTimeSeries(ctx, run)
	if err != nil {
		return nil, fmt.Errorf("list time series of %s: %w", run, err)
	}

	var mu sync.Mutex
	data := make(map[string]Series, len(timeSeries))

	eg, egCtx := errgroup.WithContext(ctx)
	for _, ts := range timeSeries {
		if ts.GetValueType() != aiplatformpb.TensorboardTimeSeries_SCALAR {
			continue
		}
		eg.Go(func() error {
			points, err := r.api.ReadTimeSeries(egCtx, ts.GetName())
			if err != nil {
				return fmt.Errorf("read time series %s: %w", ts.GetDisplayName(), err)
			}
			mu.Lock()
			data[ts.GetDisplayName()] = seriesFromPoints(points)
			mu.Unlock()
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	r.logger.InfoContext(ctx, "Read TensorBoard run",
		slog.String("run", run),
		slog.Int("time_series", len(data)),
	)
	return data, nil
}

// LossValues returns the named metric of data.
func LossValues(data map[string]Series, metric string) (Series, error) {
	s, ok := data[metric]
	if !ok {
		return Series{}, fmt.Errorf("%w: %s", ErrMetricNotFound, metric)
	}
	return s, nil
}

// WriteCSV writes the train and eval loss curves to w as metric,step,value rows.
func WriteCSV(w io.Writer, train, eval Series) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"metric", "step", "value"}); err != nil {
		return err
	}
	for _, curve := range []struct {
		name string
		s    Series
	}{
		{name: "train_loss", s: train},
		{name: "eval_loss", s: eval},
	} {
		for i := range curve.s.Steps {
			row := []string{
				curve.name,
				strconv.FormatInt(curve.s.Steps[i], 10),
				strconv.FormatFloat(curve.s.Values[i], 'g', -1, 64),
			}
			if err := cw.Write(row); err != nil {
				return err
			}
		}
	}
	cw.Flush()
	return cw.Error()
}
