// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package deploy

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"strconv"

	"cloud.google.com/go/aiplatform/apiv1beta1/aiplatformpb"

	"github.com/go-a2a/tuneflow/config"
)

const (
	// ServingPort is the port the TGI container listens on.
	ServingPort = 8080

	// SharedMemoryMB is the shared memory given to the serving container.
	SharedMemoryMB = 16 * 1024

	// deploySource is reported to TGI as DEPLOY_SOURCE.
	deploySource = "tuneflow"
)

// Spec describes a model deployment.
type Spec struct {
	// DisplayName names the model; the endpoint is named DisplayName + "-endpoint".
	DisplayName string

	ModelID  string
	ImageURI string

	// Env holds the container environment besides MODEL_ID, NUM_SHARD and DEPLOY_SOURCE.
	Env map[string]string

	MachineType       string
	AcceleratorType   string
	AcceleratorCount  int32
	DedicatedEndpoint bool
}

// SpecFromConfig reads a [Spec] from the MODEL and DEPLOYMENT sections.
func SpecFromConfig(ns *config.Namespace) (*Spec, error) {
	modelID, err := ns.RequireString("model", "model_id")
	if err != nil {
		return nil, err
	}
	image, err := ns.RequireString("model", "tgi_docker_uri")
	if err != nil {
		return nil, err
	}

	env := make(map[string]string)
	for key, name := range map[string]string{
		"max_input_length":         "MAX_INPUT_LENGTH",
		"max_total_tokens":         "MAX_TOTAL_TOKENS",
		"max_batch_prefill_tokens": "MAX_BATCH_PREFILL_TOKENS",
	} {
		if v := ns.Int(0, "model", key); v > 0 {
			env[name] = strconv.Itoa(v)
		}
	}

	spec := &Spec{
		DisplayName:       modelID,
		ModelID:           modelID,
		ImageURI:          image,
		Env:               env,
		MachineType:       ns.String("", "deployment", "machine_type"),
		AcceleratorType:   ns.String("", "deployment", "accelerator_type"),
		AcceleratorCount:  int32(ns.Int(0, "deployment", "accelerator_count")),
		DedicatedEndpoint: ns.Bool(false, "deployment", "use_dedicated_endpoint"),
	}
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	return spec, nil
}

// Validate reports every invalid field of s.
func (s *Spec) Validate() error {
	var errs []error
	if s.DisplayName == "" {
		errs = append(errs, errors.New("display name is required"))
	}
	if s.ModelID == "" {
		errs = append(errs, errors.New("model ID is required"))
	}
	if s.ImageURI == "" {
		errs = append(errs, errors.New("serving container image is required"))
	}
	if s.MachineType == "" {
		errs = append(errs, errors.New("machine type is required"))
	}
	if s.AcceleratorType != "" {
		if _, ok := aiplatformpb.AcceleratorType_value[s.AcceleratorType]; !ok {
			errs = append(errs, fmt.Errorf("unknown accelerator type %q", s.AcceleratorType))
		}
		if s.AcceleratorCount < 1 {
			errs = append(errs, errors.New("accelerator count must be positive"))
		}
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("invalid deployment spec: %w", err)
	}
	return nil
}

// EndpointDisplayName returns the display name of the endpoint created for s.
func (s *Spec) EndpointDisplayName() string {
	return s.DisplayName + "-endpoint"
}

// Model returns the model resource uploaded for s.
func (s *Spec) Model() *aiplatformpb.Model {
	env := []*aiplatformpb.EnvVar{
		{Name: "MODEL_ID", Value: s.ModelID},
		{Name: "NUM_SHARD", Value: strconv.Itoa(int(max(s.AcceleratorCount, 1)))},
	}
	for _, name := range slices.Sorted(maps.Keys(s.Env)) {
		env = append(env, &aiplatformpb.EnvVar{Name: name, Value: s.Env[name]})
	}
	env = append(env, &aiplatformpb.EnvVar{Name: "DEPLOY_SOURCE", Value: deploySource})

	return &aiplatformpb.Model{
		DisplayName: s.DisplayName,
		ContainerSpec: &aiplatformpb.ModelContainerSpec{
			ImageUri:           s.ImageURI,
			Env:                env,
			Ports:              []*aiplatformpb.Port{{ContainerPort: ServingPort}},
			SharedMemorySizeMb: SharedMemoryMB,
		},
	}
}

// MachineSpec returns the machine serving s.
func (s *Spec) MachineSpec() *aiplatformpb.MachineSpec {
	spec := &aiplatformpb.MachineSpec{
		MachineType: s.MachineType,
	}
	if s.AcceleratorType != "" {
		spec.AcceleratorType = aiplatformpb.AcceleratorType(aiplatformpb.AcceleratorType_value[s.AcceleratorType])
		spec.AcceleratorCount = s.AcceleratorCount
	}
	return spec
}
