// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package tuning

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/aiplatform/apiv1beta1/aiplatformpb"

	"github.com/go-a2a/tuneflow/config"
)

// DefaultSourceModel is tuned when the configuration names no source model.
const DefaultSourceModel = "gemini-1.5-pro-002"

// jobNameLayout is the timestamp appended by [JobName].
const jobNameLayout = "20060102_150405"

// JobName returns prefix followed by the timestamp of t, with every underscore
// replaced by a dash.
func JobName(prefix string, t time.Time) string {
	return strings.ReplaceAll(prefix+"-"+t.Format(jobNameLayout), "_", "-")
}

// Spec describes a supervised tuning job.
type Spec struct {
	SourceModel            string
	TrainDatasetURI        string
	ValidationDatasetURI   string
	DisplayName            string
	Epochs                 int64
	LearningRateMultiplier float64

	// AdapterSize is the LoRA adapter size: 0 lets the service choose, otherwise
	// one of 1, 4, 8 or 16.
	AdapterSize int
}

// SpecFromConfig reads a [Spec] from the HYPERPARAMETERS and DATASET sections.
func SpecFromConfig(ns *config.Namespace) (*Spec, error) {
	train, err := ns.RequireString("dataset", "train_dataset_path")
	if err != nil {
		return nil, err
	}

	spec := &Spec{
		SourceModel:            ns.String(DefaultSourceModel, "hyperparameters", "source_model"),
		TrainDatasetURI:        train,
		ValidationDatasetURI:   ns.String("", "dataset", "validation_dataset_path"),
		DisplayName:            ns.String("", "hyperparameters", "tuned_model_display_name"),
		Epochs:                 int64(ns.Int(0, "hyperparameters", "epochs")),
		LearningRateMultiplier: ns.Float(0, "hyperparameters", "learning_rate_multiplier"),
		AdapterSize:            ns.Int(0, "hyperparameters", "adapter_size"),
	}
	if err := spec.Validate(); err != nil {
		return nil, err
	}

	return spec, nil
}

var adapterSizes = map[int]aiplatformpb.SupervisedHyperParameters_AdapterSize{
	1:  aiplatformpb.SupervisedHyperParameters_ADAPTER_SIZE_ONE,
	4:  aiplatformpb.SupervisedHyperParameters_ADAPTER_SIZE_FOUR,
	8:  aiplatformpb.SupervisedHyperParameters_ADAPTER_SIZE_EIGHT,
	16: aiplatformpb.SupervisedHyperParameters_ADAPTER_SIZE_SIXTEEN,
}

// Validate reports whether s can be submitted.
func (s *Spec) Validate() error {
	var errs []error
	if s.SourceModel == "" {
		errs = append(errs, errors.New("source model is required"))
	}
	if !strings.HasPrefix(s.TrainDatasetURI, "gs://") {
		errs = append(errs, fmt.Errorf("train dataset must be a gs:// URI: %q", s.TrainDatasetURI))
	}
	if s.ValidationDatasetURI != "" && !strings.HasPrefix(s.ValidationDatasetURI, "gs://") {
		errs = append(errs, fmt.Errorf("validation dataset must be a gs:// URI: %q", s.ValidationDatasetURI))
	}
	if s.Epochs < 0 {
		errs = append(errs, fmt.Errorf("epochs must not be negative: %d", s.Epochs))
	}
	if s.LearningRateMultiplier < 0 {
		errs = append(errs, fmt.Errorf("learning rate multiplier must not be negative: %v", s.LearningRateMultiplier))
	}
	if _, ok := adapterSizes[s.AdapterSize]; s.AdapterSize != 0 && !ok {
		errs = append(errs, fmt.Errorf("unsupported adapter size: %d", s.AdapterSize))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("invalid tuning spec: %w", err)
	}
	return nil
}

// TuningJob returns the job resource submitted for s.
func (s *Spec) TuningJob() *aiplatformpb.TuningJob {
	params := &aiplatformpb.SupervisedHyperParameters{
		EpochCount:             s.Epochs,
		LearningRateMultiplier: s.LearningRateMultiplier,
	}
	if size, ok := adapterSizes[s.AdapterSize]; ok {
		params.AdapterSize = size
	}

	return &aiplatformpb.TuningJob{
		SourceModel: &aiplatformpb.TuningJob_BaseModel{
			BaseModel: s.SourceModel,
		},
		TunedModelDisplayName: s.DisplayName,
		TuningSpec: &aiplatformpb.TuningJob_SupervisedTuningSpec{
			SupervisedTuningSpec: &aiplatformpb.SupervisedTuningSpec{
				TrainingDatasetUri:   s.TrainDatasetURI,
				ValidationDatasetUri: s.ValidationDatasetURI,
				HyperParameters:      params,
			},
		},
	}
}
