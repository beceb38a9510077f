// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package deploy

import (
	"context"
	"errors"
	"fmt"

	aiplatform "cloud.google.com/go/aiplatform/apiv1beta1"
	"cloud.google.com/go/aiplatform/apiv1beta1/aiplatformpb"

	"github.com/go-a2a/tuneflow/internal/gcp"
)

// vertexAPI implements [API] with the regional Vertex AI services.
type vertexAPI struct {
	endpoints  *aiplatform.EndpointClient
	models     *aiplatform.ModelClient
	prediction *aiplatform.PredictionClient
}

var _ API = (*vertexAPI)(nil)

// NewDeployer connects to the regional Vertex AI services with Application
// Default Credentials.
func NewDeployer(ctx context.Context, project, location string, opts ...Option) (*Deployer, error) {
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
	clientOpts := gcp.ClientOptions(creds, location)

	api := &vertexAPI{}
	if api.endpoints, err = aiplatform.NewEndpointClient(ctx, clientOpts...); err != nil {
		return nil, fmt.Errorf("failed to create endpoint client: %w", err)
	}
	if api.models, err = aiplatform.NewModelClient(ctx, clientOpts...); err != nil {
		api.Close()
		return nil, fmt.Errorf("failed to create model client: %w", err)
	}
	if api.prediction, err = aiplatform.NewPredictionClient(ctx, clientOpts...); err != nil {
		api.Close()
		return nil, fmt.Errorf("failed to create prediction client: %w", err)
	}

	return New(api, project, location, opts...), nil
}

func (a *vertexAPI) CreateEndpoint(ctx context.Context, req *aiplatformpb.CreateEndpointRequest) (*aiplatformpb.Endpoint, error) {
	op, err := a.endpoints.CreateEndpoint(ctx, req)
	if err != nil {
		return nil, err
	}
	return op.Wait(ctx)
}

func (a *vertexAPI) UploadModel(ctx context.Context, req *aiplatformpb.UploadModelRequest) (*aiplatformpb.UploadModelResponse, error) {
	op, err := a.models.UploadModel(ctx, req)
	if err != nil {
		return nil, err
	}
	return op.Wait(ctx)
}

func (a *vertexAPI) DeployModel(ctx context.Context, req *aiplatformpb.DeployModelRequest) (*aiplatformpb.DeployModelResponse, error) {
	op, err := a.endpoints.DeployModel(ctx, req)
	if err != nil {
		return nil, err
	}
	return op.Wait(ctx)
}

func (a *vertexAPI) Predict(ctx context.Context, req *aiplatformpb.PredictRequest) (*aiplatformpb.PredictResponse, error) {
	return a.prediction.Predict(ctx, req)
}

func (a *vertexAPI) Close() error {
	var errs []error
	if a.endpoints != nil {
		errs = append(errs, a.endpoints.Close())
	}
	if a.models != nil {
		errs = append(errs, a.models.Close())
	}
	if a.prediction != nil {
		errs = append(errs, a.prediction.Close())
	}
	return errors.Join(errs...)
}
