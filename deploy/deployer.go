// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package deploy

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"cloud.google.com/go/aiplatform/apiv1beta1/aiplatformpb"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/go-a2a/tuneflow/generate"
	"github.com/go-a2a/tuneflow/internal/gcp"
	"github.com/go-a2a/tuneflow/quota"
)

// DeployTimeout bounds the deployment of a model to its endpoint.
const DeployTimeout = 30 * time.Minute

// ErrEmptyPrediction reports an endpoint response without predictions.
var ErrEmptyPrediction = errors.New("endpoint returned no predictions")

// API is the subset of the Vertex AI endpoint, model and prediction services used
// by [Deployer]. Long-running operations are awaited by the implementation.
type API interface {
	CreateEndpoint(ctx context.Context, req *aiplatformpb.CreateEndpointRequest) (*aiplatformpb.Endpoint, error)
	UploadModel(ctx context.Context, req *aiplatformpb.UploadModelRequest) (*aiplatformpb.UploadModelResponse, error)
	DeployModel(ctx context.Context, req *aiplatformpb.DeployModelRequest) (*aiplatformpb.DeployModelResponse, error)
	Predict(ctx context.Context, req *aiplatformpb.PredictRequest) (*aiplatformpb.PredictResponse, error)
	Close() error
}

// Deployment is a model deployed to an endpoint.
type Deployment struct {
	Endpoint        string
	Model           string
	DeployedModelID string
}

// Deployer deploys models to Vertex AI endpoints.
type Deployer struct {
	api      API
	project  string
	location string
	checker  *quota.Checker
	logger   *slog.Logger
}

// Option is a functional option for configuring a [Deployer].
type Option func(*Deployer)

// WithLogger sets a custom logger for the deployer.
func WithLogger(logger *slog.Logger) Option {
	return func(d *Deployer) {
		d.logger = logger
	}
}

// WithQuotaChecker verifies serving quota before anything is created.
func WithQuotaChecker(checker *quota.Checker) Option {
	return func(d *Deployer) {
		d.checker = checker
	}
}

// New returns a [Deployer] over api.
func New(api API, project, location string, opts ...Option) *Deployer {
	d := &Deployer{
		api:      api,
		project:  project,
		location: location,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Close closes the underlying service clients.
func (d *Deployer) Close() error {
	return d.api.Close()
}

// EndpointResourceName expands a bare endpoint ID to its full resource name.
func (d *Deployer) EndpointResourceName(name string) string {
	if strings.Contains(name, "/") {
		return name
	}
	return gcp.LocationName(d.project, d.location) + "/endpoints/" + name
}

// Deploy creates an endpoint, uploads the model of spec and deploys it there.
func (d *Deployer) Deploy(ctx context.Context, spec *Spec) (*Deployment, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}

	if d.checker != nil && spec.AcceleratorType != "" {
		if err := d.checker.Check(ctx, quota.Request{
			Project:          d.project,
			Region:           d.location,
			Accelerator:      spec.AcceleratorType,
			AcceleratorCount: int64(spec.AcceleratorCount),
		}); err != nil {
			return nil, err
		}
	}

	parent := gcp.LocationName(d.project, d.location)
	d.logger.InfoContext(ctx, "Starting deployment", slog.String("model", spec.DisplayName))

	endpoint, err := d.api.CreateEndpoint(ctx, &aiplatformpb.CreateEndpointRequest{
		Parent: parent,
		Endpoint: &aiplatformpb.Endpoint{
			DisplayName:              spec.EndpointDisplayName(),
			DedicatedEndpointEnabled: spec.DedicatedEndpoint,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("create endpoint: %w", err)
	}
	d.logger.InfoContext(ctx, "Endpoint created", slog.String("endpoint", endpoint.GetName()))

	uploaded, err := d.api.UploadModel(ctx, &aiplatformpb.UploadModelRequest{
		Parent: parent,
		Model:  spec.Model(),
	})
	if err != nil {
		return nil, fmt.Errorf("upload model %s: %w", spec.DisplayName, err)
	}
	d.logger.InfoContext(ctx, "Model uploaded", slog.String("model", uploaded.GetModel()))

	deployCtx, cancel := context.WithTimeout(ctx, DeployTimeout)
	defer cancel()
	deployed, err := d.api.DeployModel(deployCtx, &aiplatformpb.DeployModelRequest{
		Endpoint: endpoint.GetName(),
		DeployedModel: &aiplatformpb.DeployedModel{
			Model:       uploaded.GetModel(),
			DisplayName: spec.DisplayName,
			PredictionResources: &aiplatformpb.DeployedModel_DedicatedResources{
				DedicatedResources: &aiplatformpb.DedicatedResources{
					MachineSpec:     spec.MachineSpec(),
					MinReplicaCount: 1,
				},
			},
		},
		TrafficSplit: map[string]int32{"0": 100},
	})
	if err != nil {
		return nil, fmt.Errorf("deploy model %s to %s: %w", uploaded.GetModel(), endpoint.GetName(), err)
	}

	deployment := &Deployment{
		Endpoint:        endpoint.GetName(),
		Model:           uploaded.GetModel(),
		DeployedModelID: deployed.GetDeployedModel().GetId(),
	}
	d.logger.InfoContext(ctx, "Model deployed",
		slog.String("model", deployment.Model),
		slog.String("endpoint", deployment.Endpoint),
	)
	return deployment, nil
}

// PredictParams are the TGI generation parameters of a prediction.
type PredictParams struct {
	MaxNewTokens int32
	Temperature  float64
	TopP         float64
	TopK         int32
}

// Prompt wraps text in the chat template served by the TGI container.
func Prompt(text string) string {
	return "### Human: " + text + "### Assistant: "
}

func predictInstance(text string, params PredictParams) (*structpb.Value, error) {
	parameters := map[string]any{
		"max_new_tokens": params.MaxNewTokens,
		"temperature":    params.Temperature,
	}
	if params.TopP > 0 {
		parameters["top_p"] = params.TopP
	}
	if params.TopK > 0 {
		parameters["top_k"] = params.TopK
	}
	return structpb.NewValue(map[string]any{
		"inputs":     Prompt(text),
		"parameters": parameters,
	})
}

// Predict sends text to endpoint and returns the predictions.
func (d *Deployer) Predict(ctx context.Context, endpoint, text string, params PredictParams) ([]string, error) {
	instance, err := predictInstance(text, params)
	if err != nil {
		return nil, fmt.Errorf("build prediction instance: %w", err)
	}

	resp, err := d.api.Predict(ctx, &aiplatformpb.PredictRequest{
		Endpoint:  d.EndpointResourceName(endpoint),
		Instances: []*structpb.Value{instance},
	})
	if err != nil {
		return nil, fmt.Errorf("predict on %s: %w", endpoint, err)
	}

	predictions := make([]string, 0, len(resp.GetPredictions()))
	for _, p := range resp.GetPredictions() {
		if s, ok := p.GetKind().(*structpb.Value_StringValue); ok {
			predictions = append(predictions, s.StringValue)
			continue
		}
		predictions = append(predictions, fmt.Sprint(p.AsInterface()))
	}
	return predictions, nil
}

// Generator returns a [generate.TextGenerator] sending documents to endpoint.
func (d *Deployer) Generator(endpoint string, params PredictParams) generate.TextGenerator {
	return generate.TextGeneratorFunc(func(ctx context.Context, req generate.Request) (string, error) {
		p := params
		p.Temperature = req.Temperature
		if req.MaxTokens > 0 {
			p.MaxNewTokens = req.MaxTokens
		}
		predictions, err := d.Predict(ctx, endpoint, req.Document, p)
		if err != nil {
			return "", err
		}
		if len(predictions) == 0 || predictions[0] == "" {
			return "", ErrEmptyPrediction
		}
		return predictions[0], nil
	})
}
