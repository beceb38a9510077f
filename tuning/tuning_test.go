// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package tuning

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"cloud.google.com/go/aiplatform/apiv1beta1/aiplatformpb"
	"github.com/google/go-cmp/cmp"
	gax "github.com/googleapis/gax-go/v2"
	"google.golang.org/genproto/googleapis/rpc/status"
	"google.golang.org/protobuf/testing/protocmp"

	"github.com/go-a2a/tuneflow/config"
)

func TestJobName(t *testing.T) {
	ts := time.Date(2024, 10, 5, 9, 7, 3, 0, time.UTC)
	tests := []struct {
		prefix string
		want   string
	}{
		{prefix: "gemini", want: "gemini-20241005-090703"},
		{prefix: "gemini_1_5_sft", want: "gemini-1-5-sft-20241005-090703"},
	}
	for _, tt := range tests {
		if got := JobName(tt.prefix, ts); got != tt.want {
			t.Errorf("JobName(%q) = %q, want %q", tt.prefix, got, tt.want)
		}
	}
}

func TestSpecFromConfig(t *testing.T) {
	ns := config.NewNamespace(map[string]any{
		"hyperparameters": map[string]any{
			"source_model":             "gemini-1.5-flash-002",
			"tuned_model_display_name": "summarizer",
			"epochs":                   3,
			"learning_rate_multiplier": 1.5,
			"adapter_size":             4,
		},
		"dataset": map[string]any{
			"train_dataset_path":      "gs://b/train.jsonl",
			"validation_dataset_path": "gs://b/val.jsonl",
		},
	})

	got, err := SpecFromConfig(ns)
	if err != nil {
		t.Fatalf("SpecFromConfig() error = %v", err)
	}
	want := &Spec{
		SourceModel:            "gemini-1.5-flash-002",
		TrainDatasetURI:        "gs://b/train.jsonl",
		ValidationDatasetURI:   "gs://b/val.jsonl",
		DisplayName:            "summarizer",
		Epochs:                 3,
		LearningRateMultiplier: 1.5,
		AdapterSize:            4,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("SpecFromConfig() mismatch (-want +got):\n%s", diff)
	}
}

func TestSpecFromConfigDefaults(t *testing.T) {
	ns := config.NewNamespace(map[string]any{
		"dataset": map[string]any{"train_dataset_path": "gs://b/train.jsonl"},
	})
	got, err := SpecFromConfig(ns)
	if err != nil {
		t.Fatalf("SpecFromConfig() error = %v", err)
	}
	if got.SourceModel != DefaultSourceModel {
		t.Errorf("SourceModel = %q, want %q", got.SourceModel, DefaultSourceModel)
	}

	_, err = SpecFromConfig(config.NewNamespace(nil))
	if !errors.Is(err, config.ErrMissingKey) {
		t.Errorf("SpecFromConfig(empty) error = %v, want ErrMissingKey", err)
	}
}

func TestSpecValidate(t *testing.T) {
	valid := Spec{SourceModel: "gemini-1.5-pro-002", TrainDatasetURI: "gs://b/t.jsonl"}
	tests := []struct {
		name    string
		mutate  func(*Spec)
		wantErr bool
	}{
		{name: "valid", mutate: func(*Spec) {}},
		{name: "local train", mutate: func(s *Spec) { s.TrainDatasetURI = "train.jsonl" }, wantErr: true},
		{name: "local validation", mutate: func(s *Spec) { s.ValidationDatasetURI = "val.jsonl" }, wantErr: true},
		{name: "no source", mutate: func(s *Spec) { s.SourceModel = "" }, wantErr: true},
		{name: "negative epochs", mutate: func(s *Spec) { s.Epochs = -1 }, wantErr: true},
		{name: "adapter size", mutate: func(s *Spec) { s.AdapterSize = 3 }, wantErr: true},
		{name: "adapter size 16", mutate: func(s *Spec) { s.AdapterSize = 16 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			spec := valid
			tt.mutate(&spec)
			if err := spec.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestSpecTuningJob(t *testing.T) {
	spec := &Spec{
		SourceModel:            "gemini-1.5-pro-002",
		TrainDatasetURI:        "gs://b/train.jsonl",
		ValidationDatasetURI:   "gs://b/val.jsonl",
		DisplayName:            "summarizer",
		Epochs:                 5,
		LearningRateMultiplier: 1,
		AdapterSize:            8,
	}
	want := &aiplatformpb.TuningJob{
		SourceModel:           &aiplatformpb.TuningJob_BaseModel{BaseModel: "gemini-1.5-pro-002"},
		TunedModelDisplayName: "summarizer",
		TuningSpec: &aiplatformpb.TuningJob_SupervisedTuningSpec{
			SupervisedTuningSpec: &aiplatformpb.SupervisedTuningSpec{
				TrainingDatasetUri:   "gs://b/train.jsonl",
				ValidationDatasetUri: "gs://b/val.jsonl",
				HyperParameters: &aiplatformpb.SupervisedHyperParameters{
					EpochCount:             5,
					LearningRateMultiplier: 1,
					AdapterSize:            aiplatformpb.SupervisedHyperParameters_ADAPTER_SIZE_EIGHT,
				},
			},
		},
	}
	if diff := cmp.Diff(want, spec.TuningJob(), protocmp.Transform()); diff != "" {
		t.Errorf("TuningJob() mismatch (-want +got):\n%s", diff)
	}
}

// fakeAPI returns the scripted states on successive GetTuningJob calls.
type fakeAPI struct {
	states    []aiplatformpb.JobState
	gets      int
	created   *aiplatformpb.CreateTuningJobRequest
	cancelled string
	getErr    error
}

var _ API = (*fakeAPI)(nil)

func (f *fakeAPI) CreateTuningJob(_ context.Context, req *aiplatformpb.CreateTuningJobRequest, _ ...gax.CallOption) (*aiplatformpb.TuningJob, error) {
	f.created = req
	return &aiplatformpb.TuningJob{
		Name:                  req.GetParent() + "/tuningJobs/123",
		TunedModelDisplayName: req.GetTuningJob().GetTunedModelDisplayName(),
		State:                 aiplatformpb.JobState_JOB_STATE_PENDING,
	}, nil
}

func (f *fakeAPI) GetTuningJob(_ context.Context, req *aiplatformpb.GetTuningJobRequest, _ ...gax.CallOption) (*aiplatformpb.TuningJob, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	state := f.states[min(f.gets, len(f.states)-1)]
	f.gets++

	job := &aiplatformpb.TuningJob{
		Name:       req.GetName(),
		State:      state,
		Experiment: "projects/p/locations/us-central1/metadataStores/default/contexts/exp",
	}
	switch state {
	case aiplatformpb.JobState_JOB_STATE_SUCCEEDED:
		job.TunedModel = &aiplatformpb.TunedModel{
			Model:    "projects/p/locations/us-central1/models/9",
			Endpoint: "projects/p/locations/us-central1/endpoints/7",
		}
	case aiplatformpb.JobState_JOB_STATE_FAILED:
		job.Error = &status.Status{Code: 3, Message: "invalid dataset"}
	}
	return job, nil
}

func (f *fakeAPI) CancelTuningJob(_ context.Context, req *aiplatformpb.CancelTuningJobRequest, _ ...gax.CallOption) error {
	f.cancelled = req.GetName()
	return nil
}

func (f *fakeAPI) Close() error { return nil }

func newTestClient(api API) *Client {
	return New(api, "p", "us-central1",
		WithPollInterval(time.Millisecond),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)
}

func TestClientTrain(t *testing.T) {
	api := &fakeAPI{}
	client := newTestClient(api)

	job, err := client.Train(t.Context(), &Spec{SourceModel: "gemini-1.5-pro-002", TrainDatasetURI: "gs://b/t.jsonl", DisplayName: "d"})
	if err != nil {
		t.Fatalf("Train() error = %v", err)
	}
	if got, want := api.created.GetParent(), "projects/p/locations/us-central1"; got != want {
		t.Errorf("parent = %q, want %q", got, want)
	}
	if job.ID() != "123" || job.DisplayName != "d" {
		t.Errorf("Train() job = %+v", job)
	}

	if _, err := client.Train(t.Context(), &Spec{SourceModel: "m", TrainDatasetURI: "local.jsonl"}); err == nil {
		t.Error("Train(invalid) error = nil")
	}
}

func TestClientWait(t *testing.T) {
	api := &fakeAPI{states: []aiplatformpb.JobState{
		aiplatformpb.JobState_JOB_STATE_PENDING,
		aiplatformpb.JobState_JOB_STATE_RUNNING,
		aiplatformpb.JobState_JOB_STATE_SUCCEEDED,
	}}

	job, err := newTestClient(api).Wait(t.Context(), "123")
	if err != nil {
		t.Fatalf("Wait() error = %v", err)
	}
	if api.gets != 3 {
		t.Errorf("GetTuningJob called %d times, want 3", api.gets)
	}
	want := &Job{
		Name:       "projects/p/locations/us-central1/tuningJobs/123",
		State:      aiplatformpb.JobState_JOB_STATE_SUCCEEDED,
		TunedModel: "projects/p/locations/us-central1/models/9",
		Endpoint:   "projects/p/locations/us-central1/endpoints/7",
		Experiment: "projects/p/locations/us-central1/metadataStores/default/contexts/exp",
	}
	if diff := cmp.Diff(want, job); diff != "" {
		t.Errorf("Wait() mismatch (-want +got):\n%s", diff)
	}
}

func TestClientWaitFailed(t *testing.T) {
	api := &fakeAPI{states: []aiplatformpb.JobState{aiplatformpb.JobState_JOB_STATE_FAILED}}

	job, err := newTestClient(api).Wait(t.Context(), "projects/p/locations/us-central1/tuningJobs/5")
	if !errors.Is(err, ErrJobFailed) {
		t.Fatalf("Wait() error = %v, want ErrJobFailed", err)
	}
	if job == nil || job.Error != "invalid dataset" {
		t.Errorf("Wait() job = %+v, want error message", job)
	}
}

func TestClientWaitCanceled(t *testing.T) {
	api := &fakeAPI{states: []aiplatformpb.JobState{aiplatformpb.JobState_JOB_STATE_RUNNING}}
	client := New(api, "p", "us-central1",
		WithPollInterval(time.Hour),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)

	ctx, cancel := context.WithTimeout(t.Context(), 10*time.Millisecond)
	defer cancel()
	if _, err := client.Wait(ctx, "123"); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Wait() error = %v, want DeadlineExceeded", err)
	}
}

func TestClientGetError(t *testing.T) {
	api := &fakeAPI{getErr: errors.New("not found")}
	if _, err := newTestClient(api).Wait(t.Context(), "123"); err == nil {
		t.Fatal("Wait() error = nil")
	}
}

func TestClientCancel(t *testing.T) {
	api := &fakeAPI{}
	if err := newTestClient(api).Cancel(t.Context(), "42"); err != nil {
		t.Fatal(err)
	}
	if want := "projects/p/locations/us-central1/tuningJobs/42"; api.cancelled != want {
		t.Errorf("cancelled = %q, want %q", api.cancelled, want)
	}
}
