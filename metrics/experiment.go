// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package metrics

import (
	"context"
	"errors"
	"fmt"
	"strings"

	aiplatform "cloud.google.com/go/aiplatform/apiv1beta1"
	"cloud.google.com/go/aiplatform/apiv1beta1/aiplatformpb"
	"google.golang.org/api/iterator"

	"github.com/go-a2a/tuneflow/internal/gcp"
)

const (
	// backingTensorboardKey is the experiment metadata field naming its TensorBoard.
	backingTensorboardKey = "backing_tensorboard_resource"

	// experimentRunSchema is the schema title of experiment run contexts.
	experimentRunSchema = "system.ExperimentRun"
)

var (
	// ErrNoTensorboard reports an experiment without a backing TensorBoard.
	ErrNoTensorboard = errors.New("experiment has no backing TensorBoard")

	// ErrNoExperimentRun reports an experiment without runs.
	ErrNoExperimentRun = errors.New("experiment has no runs")
)

// ExperimentAPI is the subset of the Vertex AI Metadata service used by [RunForExperiment].
type ExperimentAPI interface {
	GetContext(ctx context.Context, name string) (*aiplatformpb.Context, error)
	ListContexts(ctx context.Context, parent, filter string) ([]*aiplatformpb.Context, error)
	Close() error
}

// RunForExperiment returns the TensorBoard run backing the first run of experiment,
// the metadata context resource name recorded on a tuning job.
func RunForExperiment(ctx context.Context, api ExperimentAPI, experiment string) (string, error) {
	i := strings.Index(experiment, "/contexts/")
	if i < 0 {
		return "", fmt.Errorf("invalid experiment resource name %q", experiment)
	}
	store, experimentID := experiment[:i], experiment[i+len("/contexts/"):]

	exp, err := api.GetContext(ctx, experiment)
	if err != nil {
		return "", fmt.Errorf("get experiment %s: %w", experiment, err)
	}
	tensorboard := exp.GetMetadata().GetFields()[backingTensorboardKey].GetStringValue()
	if tensorboard == "" {
		return "", fmt.Errorf("%w: %s", ErrNoTensorboard, experiment)
	}

	filter := fmt.Sprintf("schema_title=%q AND parent_contexts:%q", experimentRunSchema, experiment)
	runs, err := api.ListContexts(ctx, store, filter)
	if err != nil {
		return "", fmt.Errorf("list runs of %s: %w", experiment, err)
	}
	if len(runs) == 0 {
		return "", fmt.Errorf("%w: %s", ErrNoExperimentRun, experiment)
	}

	// Run contexts are named "<experiment>-<run>".
	name := runs[0].GetName()
	runContext := name[strings.LastIndex(name, "/")+1:]
	run := strings.TrimPrefix(runContext, experimentID+"-")

	return RunName(tensorboard, experimentID, run), nil
}

// metadataAPI implements [ExperimentAPI] with the Vertex AI Metadata service.
type metadataAPI struct {
	client *aiplatform.MetadataClient
}

var _ ExperimentAPI = (*metadataAPI)(nil)

// NewExperimentAPI connects to the regional Metadata service with Application
// Default Credentials.
func NewExperimentAPI(ctx context.Context, location string) (ExperimentAPI, error) {
	creds, err := gcp.DetectCredentials()
	if err != nil {
		return nil, err
	}
	client, err := aiplatform.NewMetadataClient(ctx, gcp.ClientOptions(creds, location)...)
	if err != nil {
		return nil, fmt.Errorf("failed to create metadata client: %w", err)
	}
	return &metadataAPI{client: client}, nil
}

func (a *metadataAPI) GetContext(ctx context.Context, name string) (*aiplatformpb.Context, error) {
	return a.client.GetContext(ctx, &aiplatformpb.GetContextRequest{Name: name})
}

func (a *metadataAPI) ListContexts(ctx context.Context, parent, filter string) ([]*aiplatformpb.Context, error) {
	it := a.client.ListContexts(ctx, &aiplatformpb.ListContextsRequest{
		Parent: parent,
		Filter: filter,
	})

	var out []*aiplatformpb.Context
	for {
		c, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

func (a *metadataAPI) Close() error {
	return a.client.Close()
}
