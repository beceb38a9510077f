// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package tuning

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	aiplatform "cloud.google.com/go/aiplatform/apiv1beta1"
	"cloud.google.com/go/aiplatform/apiv1beta1/aiplatformpb"
	gax "github.com/googleapis/gax-go/v2"

	"github.com/go-a2a/tuneflow/internal/gcp"
)

// DefaultPollInterval is the pause between job state checks in [Client.Wait].
const DefaultPollInterval = 60 * time.Second

// ErrJobFailed reports a job that ended without succeeding.
var ErrJobFailed = errors.New("tuning job did not succeed")

// API is the subset of the Vertex AI GenAI tuning service used by [Client].
type API interface {
	CreateTuningJob(ctx context.Context, req *aiplatformpb.CreateTuningJobRequest, opts ...gax.CallOption) (*aiplatformpb.TuningJob, error)
	GetTuningJob(ctx context.Context, req *aiplatformpb.GetTuningJobRequest, opts ...gax.CallOption) (*aiplatformpb.TuningJob, error)
	CancelTuningJob(ctx context.Context, req *aiplatformpb.CancelTuningJobRequest, opts ...gax.CallOption) error
	Close() error
}

var _ API = (*aiplatform.GenAiTuningClient)(nil)

// Job is the state of a tuning job.
type Job struct {
	Name        string
	DisplayName string
	State       aiplatformpb.JobState

	// TunedModel and Endpoint are set once the job succeeded.
	TunedModel string
	Endpoint   string

	// Experiment is the Vertex AI experiment holding the training metrics.
	Experiment string

	// Error is the service error of a failed job.
	Error string
}

// ID returns the last segment of the job resource name.
func (j *Job) ID() string {
	return j.Name[strings.LastIndex(j.Name, "/")+1:]
}

// Ended reports whether the job reached a final state.
func (j *Job) Ended() bool {
	switch j.State {
	case aiplatformpb.JobState_JOB_STATE_SUCCEEDED,
		aiplatformpb.JobState_JOB_STATE_FAILED,
		aiplatformpb.JobState_JOB_STATE_CANCELLED,
		aiplatformpb.JobState_JOB_STATE_EXPIRED,
		aiplatformpb.JobState_JOB_STATE_PARTIALLY_SUCCEEDED:
		return true
	default:
		return false
	}
}

// Succeeded reports whether the job succeeded.
func (j *Job) Succeeded() bool {
	return j.State == aiplatformpb.JobState_JOB_STATE_SUCCEEDED
}

func jobFromProto(pb *aiplatformpb.TuningJob) *Job {
	job := &Job{
		Name:        pb.GetName(),
		DisplayName: pb.GetTunedModelDisplayName(),
		State:       pb.GetState(),
		Experiment:  pb.GetExperiment(),
	}
	if tm := pb.GetTunedModel(); tm != nil {
		job.TunedModel = tm.GetModel()
		job.Endpoint = tm.GetEndpoint()
	}
	if st := pb.GetError(); st != nil {
		job.Error = st.GetMessage()
	}
	return job
}

// Client submits and tracks tuning jobs.
type Client struct {
	api          API
	project      string
	location     string
	pollInterval time.Duration
	logger       *slog.Logger
}

// Option is a functional option for configuring a [Client].
type Option func(*Client)

// WithLogger sets a custom logger for the client.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithPollInterval sets the pause between job state checks.
func WithPollInterval(d time.Duration) Option {
	return func(c *Client) {
		c.pollInterval = d
	}
}

// New returns a [Client] over api.
func New(api API, project, location string, opts ...Option) *Client {
	c := &Client{
		api:          api,
		project:      project,
		location:     location,
		pollInterval: DefaultPollInterval,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// NewClient connects to the regional Vertex AI tuning service with Application
// Default Credentials.
func NewClient(ctx context.Context, project, location string, opts ...Option) (*Client, error) {
	if project == "" {
		return nil, fmt.Errorf("project is required")
	}
	if location == "" {
		return nil, fmt.Errorf("location is required")
	}

	creds, err := gcp.DetectCredentials()
	if err != nil {
		return nil, err
	}
	api, err := aiplatform.NewGenAiTuningClient(ctx, gcp.ClientOptions(creds, location)...)
	if err != nil {
		return nil, fmt.Errorf("failed to create tuning client: %w", err)
	}

	return New(api, project, location, opts...), nil
}

// Close closes the underlying service client.
func (c *Client) Close() error {
	return c.api.Close()
}

// JobResourceName expands a bare job ID to its full resource name.
func (c *Client) JobResourceName(name string) string {
	if strings.Contains(name, "/") {
		return name
	}
	return gcp.LocationName(c.project, c.location) + "/tuningJobs/" + name
}

// Train submits spec and returns the created job.
func (c *Client) Train(ctx context.Context, spec *Spec) (*Job, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}

	c.logger.InfoContext(ctx, "Starting model tuning",
		slog.String("source_model", spec.SourceModel),
		slog.String("train_dataset", spec.TrainDatasetURI),
		slog.Int64("epochs", spec.Epochs),
	)

	pb, err := c.api.CreateTuningJob(ctx, &aiplatformpb.CreateTuningJobRequest{
		Parent:    gcp.LocationName(c.project, c.location),
		TuningJob: spec.TuningJob(),
	})
	if err != nil {
		return nil, fmt.Errorf("create tuning job: %w", err)
	}

	job := jobFromProto(pb)
	c.logger.InfoContext(ctx, "Tuning job created", slog.String("name", job.Name))
	return job, nil
}

// Get returns the current state of the named job. name may be a bare job ID.
func (c *Client) Get(ctx context.Context, name string) (*Job, error) {
	pb, err := c.api.GetTuningJob(ctx, &aiplatformpb.GetTuningJobRequest{
		Name: c.JobResourceName(name),
	})
	if err != nil {
		return nil, fmt.Errorf("get tuning job %s: %w", name, err)
	}
	return jobFromProto(pb), nil
}

// Cancel requests cancellation of the named job.
func (c *Client) Cancel(ctx context.Context, name string) error {
	if err := c.api.CancelTuningJob(ctx, &aiplatformpb.CancelTuningJobRequest{
		Name: c.JobResourceName(name),
	}); err != nil {
		return fmt.Errorf("cancel tuning job %s: %w", name, err)
	}
	return nil
}

// Wait polls the named job until it ends. A job ending in any state but
// succeeded is reported as [ErrJobFailed] together with the final job.
func (c *Client) Wait(ctx context.Context, name string) (*Job, error) {
	for {
		job, err := c.Get(ctx, name)
		if err != nil {
			return nil, err
		}

		if job.Ended() {
			if !job.Succeeded() {
				c.logger.ErrorContext(ctx, "Tuning job ended without success",
					slog.String("name", job.Name),
					slog.String("state", job.State.String()),
					slog.String("error", job.Error),
				)
				return job, fmt.Errorf("%w: %s in state %s: %s", ErrJobFailed, job.Name, job.State, job.Error)
			}
			c.logger.InfoContext(ctx, "Model tuning completed",
				slog.String("name", job.Name),
				slog.String("endpoint", job.Endpoint),
			)
			return job, nil
		}

		c.logger.InfoContext(ctx, "Tuning job in progress",
			slog.String("name", job.Name),
			slog.String("state", job.State.String()),
		)

		select {
		case <-ctx.Done():
			return job, ctx.Err()
		case <-time.After(c.pollInterval):
		}
	}
}
