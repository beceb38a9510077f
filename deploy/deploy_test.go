// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package deploy

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"cloud.google.com/go/aiplatform/apiv1beta1/aiplatformpb"
	"github.com/google/go-cmp/cmp"
	"google.golang.org/protobuf/testing/protocmp"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/go-a2a/tuneflow/config"
	"github.com/go-a2a/tuneflow/generate"
	"github.com/go-a2a/tuneflow/quota"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testSpec() *Spec {
	return &Spec{
		DisplayName:      "gemma-2-9b-20250101-120000",
		ModelID:          "google/gemma-2-9b",
		ImageURI:         "us-docker.pkg.dev/tgi:latest",
		Env:              map[string]string{"MAX_TOTAL_TOKENS": "4096", "MAX_INPUT_LENGTH": "2048"},
		MachineType:      "g2-standard-8",
		AcceleratorType:  "NVIDIA_L4",
		AcceleratorCount: 1,
	}
}

func TestSpecFromConfig(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, config.ProjectFile), []byte(`
model:
  model_id: google/gemma-2-9b
  tgi_docker_uri: us-docker.pkg.dev/tgi:latest
  max_input_length: 2048
  max_total_tokens: 4096
deployment:
  machine_type: g2-standard-8
  accelerator_type: NVIDIA_L4
  accelerator_count: 1
  use_dedicated_endpoint: true
`), 0o644); err != nil {
		t.Fatal(err)
	}
	ns, err := config.NewResolver(dir, config.WithCache(config.NewCache()), config.WithLogger(discardLogger())).Resolve(t.Context(), "")
	if err != nil {
		t.Fatal(err)
	}

	got, err := SpecFromConfig(ns)
	if err != nil {
		t.Fatalf("SpecFromConfig() error = %v", err)
	}
	want := testSpec()
	want.DisplayName = "google/gemma-2-9b"
	want.DedicatedEndpoint = true
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("SpecFromConfig() mismatch (-want +got):\n%s", diff)
	}

	if _, err := SpecFromConfig(config.NewNamespace(nil)); !errors.Is(err, config.ErrMissingKey) {
		t.Errorf("SpecFromConfig(empty) error = %v, want ErrMissingKey", err)
	}
}

func TestSpecValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Spec)
		wantErr bool
	}{
		{name: "valid", mutate: func(*Spec) {}},
		{name: "no accelerator", mutate: func(s *Spec) { s.AcceleratorType, s.AcceleratorCount = "", 0 }},
		{name: "unknown accelerator", mutate: func(s *Spec) { s.AcceleratorType = "NVIDIA_K1" }, wantErr: true},
		{name: "zero accelerators", mutate: func(s *Spec) { s.AcceleratorCount = 0 }, wantErr: true},
		{name: "no machine", mutate: func(s *Spec) { s.MachineType = "" }, wantErr: true},
		{name: "no image", mutate: func(s *Spec) { s.ImageURI = "" }, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			spec := testSpec()
			tt.mutate(spec)
			if err := spec.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestSpecModel(t *testing.T) {
	want := &aiplatformpb.Model{
		DisplayName: "gemma-2-9b-20250101-120000",
		ContainerSpec: &aiplatformpb.ModelContainerSpec{
			ImageUri: "us-docker.pkg.dev/tgi:latest",
			Env: []*aiplatformpb.EnvVar{
				{Name: "MODEL_ID", Value: "google/gemma-2-9b"},
				{Name: "NUM_SHARD", Value: "1"},
				{Name: "MAX_INPUT_LENGTH", Value: "2048"},
				{Name: "MAX_TOTAL_TOKENS", Value: "4096"},
				{Name: "DEPLOY_SOURCE", Value: "tuneflow"},
			},
			Ports:              []*aiplatformpb.Port{{ContainerPort: 8080}},
			SharedMemorySizeMb: 16384,
		},
	}
	if diff := cmp.Diff(want, testSpec().Model(), protocmp.Transform()); diff != "" {
		t.Errorf("Model() mismatch (-want +got):\n%s", diff)
	}
}

type fakeAPI struct {
	calls []string

	createReq  *aiplatformpb.CreateEndpointRequest
	uploadReq  *aiplatformpb.UploadModelRequest
	deployReq  *aiplatformpb.DeployModelRequest
	predictReq *aiplatformpb.PredictRequest

	predictions []*structpb.Value
	uploadErr   error
}

var _ API = (*fakeAPI)(nil)

func (f *fakeAPI) CreateEndpoint(_ context.Context, req *aiplatformpb.CreateEndpointRequest) (*aiplatformpb.Endpoint, error) {
	f.calls = append(f.calls, "create")
	f.createReq = req
	return &aiplatformpb.Endpoint{Name: req.GetParent() + "/endpoints/77"}, nil
}

func (f *fakeAPI) UploadModel(_ context.Context, req *aiplatformpb.UploadModelRequest) (*aiplatformpb.UploadModelResponse, error) {
	f.calls = append(f.calls, "upload")
	f.uploadReq = req
	if f.uploadErr != nil {
		return nil, f.uploadErr
	}
	return &aiplatformpb.UploadModelResponse{Model: req.GetParent() + "/models/9"}, nil
}

func (f *fakeAPI) DeployModel(ctx context.Context, req *aiplatformpb.DeployModelRequest) (*aiplatformpb.DeployModelResponse, error) {
	f.calls = append(f.calls, "deploy")
	f.deployReq = req
	if _, ok := ctx.Deadline(); !ok {
		return nil, errors.New("deploy without deadline")
	}
	return &aiplatformpb.DeployModelResponse{DeployedModel: &aiplatformpb.DeployedModel{Id: "dm-1"}}, nil
}

func (f *fakeAPI) Predict(_ context.Context, req *aiplatformpb.PredictRequest) (*aiplatformpb.PredictResponse, error) {
	f.predictReq = req
	return &aiplatformpb.PredictResponse{Predictions: f.predictions}, nil
}

func (f *fakeAPI) Close() error { return nil }

type fakeFetcher struct {
	limit int64
}

func (f fakeFetcher) FetchQuotaMetrics(context.Context, string, string) ([]quota.Metric, error) {
	return []quota.Metric{{Limits: []quota.Limit{{Buckets: []quota.Bucket{
		{Dimensions: map[string]string{"region": "us-central1"}, EffectiveLimit: f.limit},
	}}}}}, nil
}

func TestDeploy(t *testing.T) {
	api := &fakeAPI{}
	checker := quota.NewChecker(fakeFetcher{limit: 4}, quota.WithLogger(discardLogger()))
	d := New(api, "demo", "us-central1", WithQuotaChecker(checker), WithLogger(discardLogger()))

	got, err := d.Deploy(t.Context(), testSpec())
	if err != nil {
		t.Fatalf("Deploy() error = %v", err)
	}

	want := &Deployment{
		Endpoint:        "projects/demo/locations/us-central1/endpoints/77",
		Model:           "projects/demo/locations/us-central1/models/9",
		DeployedModelID: "dm-1",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Deploy() mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"create", "upload", "deploy"}, api.calls); diff != "" {
		t.Errorf("call order mismatch (-want +got):\n%s", diff)
	}
	if got := api.createReq.GetEndpoint().GetDisplayName(); got != "gemma-2-9b-20250101-120000-endpoint" {
		t.Errorf("endpoint display name = %q", got)
	}

	wantDeploy := &aiplatformpb.DeployModelRequest{
		Endpoint: "projects/demo/locations/us-central1/endpoints/77",
		DeployedModel: &aiplatformpb.DeployedModel{
			Model:       "projects/demo/locations/us-central1/models/9",
			DisplayName: "gemma-2-9b-20250101-120000",
			PredictionResources: &aiplatformpb.DeployedModel_DedicatedResources{
				DedicatedResources: &aiplatformpb.DedicatedResources{
					MachineSpec: &aiplatformpb.MachineSpec{
						MachineType:      "g2-standard-8",
						AcceleratorType:  aiplatformpb.AcceleratorType_NVIDIA_L4,
						AcceleratorCount: 1,
					},
					MinReplicaCount: 1,
				},
			},
		},
		TrafficSplit: map[string]int32{"0": 100},
	}
	if diff := cmp.Diff(wantDeploy, api.deployReq, protocmp.Transform()); diff != "" {
		t.Errorf("DeployModel request mismatch (-want +got):\n%s", diff)
	}
}

func TestDeployInsufficientQuota(t *testing.T) {
	api := &fakeAPI{}
	checker := quota.NewChecker(fakeFetcher{limit: 0}, quota.WithLogger(discardLogger()))
	d := New(api, "demo", "us-central1", WithQuotaChecker(checker), WithLogger(discardLogger()))

	if _, err := d.Deploy(t.Context(), testSpec()); !errors.Is(err, quota.ErrInsufficientQuota) {
		t.Fatalf("Deploy() error = %v, want ErrInsufficientQuota", err)
	}
	if len(api.calls) != 0 {
		t.Errorf("calls = %v, want none", api.calls)
	}
}

func TestDeployUploadError(t *testing.T) {
	api := &fakeAPI{uploadErr: errors.New("permission denied")}
	d := New(api, "demo", "us-central1", WithLogger(discardLogger()))

	if _, err := d.Deploy(t.Context(), testSpec()); err == nil {
		t.Fatal("Deploy() error = nil")
	}
	if diff := cmp.Diff([]string{"create", "upload"}, api.calls); diff != "" {
		t.Errorf("call order mismatch (-want +got):\n%s", diff)
	}
}

func TestPredict(t *testing.T) {
	api := &fakeAPI{predictions: []*structpb.Value{structpb.NewStringValue("In ten years...")}}
	d := New(api, "demo", "us-central1", WithLogger(discardLogger()))

	got, err := d.Predict(t.Context(), "77", "How would AI look?", PredictParams{MaxNewTokens: 128, Temperature: 0.5, TopK: 10})
	if err != nil {
		t.Fatalf("Predict() error = %v", err)
	}
	if diff := cmp.Diff([]string{"In ten years..."}, got); diff != "" {
		t.Errorf("Predict() mismatch (-want +got):\n%s", diff)
	}

	if got, want := api.predictReq.GetEndpoint(), "projects/demo/locations/us-central1/endpoints/77"; got != want {
		t.Errorf("endpoint = %q, want %q", got, want)
	}
	want := map[string]any{
		"inputs": "### Human: How would AI look?### Assistant: ",
		"parameters": map[string]any{
			"max_new_tokens": 128.0,
			"temperature":    0.5,
			"top_k":          10.0,
		},
	}
	if diff := cmp.Diff(want, api.predictReq.GetInstances()[0].AsInterface()); diff != "" {
		t.Errorf("instance mismatch (-want +got):\n%s", diff)
	}
}

func TestGenerator(t *testing.T) {
	api := &fakeAPI{predictions: []*structpb.Value{structpb.NewStringValue("summary")}}
	d := New(api, "demo", "us-central1", WithLogger(discardLogger()))
	gen := d.Generator("77", PredictParams{MaxNewTokens: 64})

	got, err := gen.GenerateText(t.Context(), generate.Request{Document: "doc", Temperature: 0.7, MaxTokens: 256})
	if err != nil || got != "summary" {
		t.Fatalf("GenerateText() = %q, %v", got, err)
	}
	params := api.predictReq.GetInstances()[0].GetStructValue().GetFields()["parameters"].GetStructValue().GetFields()
	if params["max_new_tokens"].GetNumberValue() != 256 || params["temperature"].GetNumberValue() != 0.7 {
		t.Errorf("parameters = %v", params)
	}

	api.predictions = nil
	if _, err := gen.GenerateText(t.Context(), generate.Request{Document: "doc"}); !errors.Is(err, ErrEmptyPrediction) {
		t.Errorf("GenerateText() error = %v, want ErrEmptyPrediction", err)
	}
}
