// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/MakeNowJust/heredoc/v2"
	"github.com/spf13/cobra"

	"github.com/go-a2a/tuneflow/config"
	"github.com/go-a2a/tuneflow/dataset"
	"github.com/go-a2a/tuneflow/evaluation"
	"github.com/go-a2a/tuneflow/metrics"
	"github.com/go-a2a/tuneflow/model"
	"github.com/go-a2a/tuneflow/tuning"
)

// defaultJobPrefix names tuned models when hyperparameters.tuned_model_display_name is unset.
const defaultJobPrefix = "tuneflow"

var (
	// errNoRun reports that no TensorBoard run is configured.
	errNoRun = errors.New("no TensorBoard run configured: set --run, --job or metrics.tensorboard_run")

	// errNoEndpoint reports a tuning job without a tuned model endpoint.
	errNoEndpoint = errors.New("tuning job has no tuned model endpoint")

	// errNoExperiment reports a tuning job without a Vertex AI experiment.
	errNoExperiment = errors.New("tuning job has no experiment")
)

func newPrepareCmd(a *app) *cobra.Command {
	var convert bool
	cmd := &cobra.Command{
		Use:   "prepare",
		Short: "Upload the train and validation datasets to Cloud Storage",
		Long: heredoc.Doc(`
			Upload dataset.train_dataset_local_path to dataset.train_dataset_path and,
			when both are set, dataset.validation_dataset_local_path to
			dataset.validation_dataset_path.

			With --convert the local files are chat transcripts
			({"messages": [{"role", "content"}]}) and are converted to tuning samples
			before the upload.
		`),
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.prepare(cmd.Context(), convert)
		},
	}
	cmd.Flags().BoolVar(&convert, "convert", false, "convert chat transcripts to tuning samples before uploading")
	return cmd
}

func (a *app) prepare(ctx context.Context, convert bool) error {
	transfers, err := dataset.TransfersFromConfig(a.ns)
	if err != nil {
		return err
	}

	if convert {
		dir, err := os.MkdirTemp("", "tuneflow-")
		if err != nil {
			return err
		}
		defer os.RemoveAll(dir)

		for i, t := range transfers {
			dst := filepath.Join(dir, fmt.Sprintf("%d-%s", i, filepath.Base(t.Local)))
			n, err := dataset.ConvertFile(t.Local, dst)
			if err != nil {
				return err
			}
			a.logger.InfoContext(ctx, "Converted transcripts",
				slog.String("source", t.Local),
				slog.Int("samples", n),
			)
			transfers[i].Local = dst
		}
	}

	store, err := dataset.NewGCSStore(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	return dataset.NewUploader(store, dataset.WithLogger(a.logger)).Prepare(ctx, transfers...)
}

func newTuneCmd(a *app) *cobra.Command {
	var wait bool
	cmd := &cobra.Command{
		Use:   "tune",
		Short: "Start a supervised tuning job",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			job, err := a.tune(cmd.Context(), wait)
			if err != nil {
				return err
			}
			return printJob(cmd.OutOrStdout(), job)
		},
	}
	cmd.Flags().BoolVar(&wait, "wait", false, "wait for the job to end")
	cmd.AddCommand(
		newTuneStatusCmd(a),
		newTuneCancelCmd(a),
	)
	return cmd
}

func (a *app) tune(ctx context.Context, wait bool) (*tuning.Job, error) {
	project, location, err := a.project()
	if err != nil {
		return nil, err
	}
	spec, err := tuning.SpecFromConfig(a.ns)
	if err != nil {
		return nil, err
	}
	spec.DisplayName = tuning.JobName(cmp.Or(spec.DisplayName, defaultJobPrefix), time.Now())

	client, err := tuning.NewClient(ctx, project, location, tuning.WithLogger(a.logger))
	if err != nil {
		return nil, err
	}
	defer client.Close()

	job, err := client.Train(ctx, spec)
	if err != nil {
		return nil, err
	}
	if !wait {
		return job, nil
	}
	return client.Wait(ctx, job.Name)
}

func printJob(w io.Writer, job *tuning.Job) error {
	_, err := fmt.Fprintf(w, "job:      %s\nstate:    %s\n", job.Name, job.State)
	if err != nil {
		return err
	}
	if job.Endpoint != "" {
		_, err = fmt.Fprintf(w, "endpoint: %s\n", job.Endpoint)
	}
	return err
}

type evaluateFlags struct {
	data     string
	endpoint string
	job      string
	output   string
}

func (f *evaluateFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.data, "data", "", "test CSV with input_text and output_text columns (default dataset.test_dataset_path)")
	cmd.Flags().StringVar(&f.output, "output", "-", "report file, - for stdout")
}

func newEvaluateCmd(a *app) *cobra.Command {
	var flags evaluateFlags
	cmd := &cobra.Command{
		Use:   "evaluate",
		Short: "Score generated summaries against reference summaries with ROUGE",
		Long: heredoc.Doc(`
			Generate a summary of every test document and score it with ROUGE-1,
			ROUGE-2 and ROUGE-L. Failed generations are retried with a higher
			temperature and end in a fallback summary. The report is written as JSON.
		`),
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := a.evaluate(cmd, flags)
			return err
		},
	}
	flags.register(cmd)
	cmd.Flags().StringVar(&flags.endpoint, "endpoint", "", "model name or tuned model endpoint (default hyperparameters.source_model)")
	cmd.Flags().StringVar(&flags.job, "job", "", "evaluate the endpoint of this tuning job")
	cmd.MarkFlagsMutuallyExclusive("endpoint", "job")
	return cmd
}

func (a *app) evaluate(cmd *cobra.Command, flags evaluateFlags) (*evaluation.Report, error) {
	ctx := cmd.Context()

	path := cmp.Or(flags.data, a.ns.String("", "dataset", "test_dataset_path"))
	if path == "" {
		return nil, fmt.Errorf("%w: DATASET.test_dataset_path", config.ErrMissingKey)
	}
	records, err := dataset.ReadCorpusFile(path)
	if err != nil {
		return nil, err
	}

	endpoint := flags.endpoint
	if flags.job != "" {
		job, err := a.job(ctx, flags.job)
		if err != nil {
			return nil, err
		}
		if job.Endpoint == "" {
			return nil, fmt.Errorf("%w: %s is %s", errNoEndpoint, job.Name, job.State)
		}
		endpoint = job.Endpoint
	}

	modelName := a.evaluationModel(endpoint)
	gen, err := model.New(ctx, model.Config{
		Model:    modelName,
		Project:  a.ns.String("", "project", "project_id"),
		Location: a.ns.String(defaultLocation, "project", "location"),
	}, model.WithLogger(a.logger))
	if err != nil {
		return nil, err
	}

	evaluator := evaluation.NewEvaluator(
		evaluation.WithInvoker(a.invoker()),
		evaluation.WithGenerationConfig(
			a.ns.Float(evaluation.DefaultTemperature, "generation_config", "temperature"),
			int32(a.ns.Int(evaluation.DefaultMaxTokens, "generation_config", "max_output_tokens")),
		),
		evaluation.WithModelName(modelName),
		evaluation.WithLogger(a.logger),
	)
	report, err := evaluator.Run(ctx, gen, records)
	if err != nil {
		return nil, err
	}

	w, closeFn, err := output(cmd, flags.output)
	if err != nil {
		return nil, err
	}
	if err := evaluation.WriteReport(w, report); err != nil {
		closeFn()
		return nil, err
	}
	return report, closeFn()
}

type lossesFlags struct {
	run    string
	job    string
	output string
}

func (f *lossesFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.run, "run", "", "TensorBoard run resource name (default metrics.tensorboard_run)")
}

// evaluationModel returns the model evaluated: endpoint, else the tuning source
// model, else the default Gemini model.
func (a *app) evaluationModel(endpoint string) string {
	return cmp.Or(endpoint, a.ns.String("", "hyperparameters", "source_model"), model.GeminiDefaultModel)
}

func newLossesCmd(a *app) *cobra.Command {
	var flags lossesFlags
	cmd := &cobra.Command{
		Use:   "losses",
		Short: "Export the train and eval loss curves of a tuning run as CSV",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.losses(cmd, flags)
		},
	}
	flags.register(cmd)
	cmd.Flags().StringVar(&flags.output, "output", "", "CSV file, - for stdout (default metrics.output_path)")
	cmd.Flags().StringVar(&flags.job, "job", "", "export the losses of the experiment run of this tuning job")
	cmd.MarkFlagsMutuallyExclusive("run", "job")
	return cmd
}

// runName returns the TensorBoard run named by flag, metrics.tensorboard_run or
// the metrics.tensorboard, metrics.experiment and metrics.run triple.
func (a *app) runName(flag string) string {
	if name := cmp.Or(flag, a.ns.String("", "metrics", "tensorboard_run")); name != "" {
		return name
	}
	tensorboard := a.ns.String("", "metrics", "tensorboard")
	experiment := a.ns.String("", "metrics", "experiment")
	run := a.ns.String("", "metrics", "run")
	if tensorboard == "" || experiment == "" || run == "" {
		return ""
	}
	return metrics.RunName(tensorboard, experiment, run)
}

func (a *app) losses(cmd *cobra.Command, flags lossesFlags) error {
	ctx := cmd.Context()

	run := a.runName(flags.run)
	if flags.job != "" {
		job, err := a.job(ctx, flags.job)
		if err != nil {
			return err
		}
		if run, err = a.experimentRun(ctx, job.Experiment); err != nil {
			return err
		}
	}
	if run == "" {
		return errNoRun
	}

	reader, err := metrics.NewReader(ctx, a.ns.String(defaultLocation, "project", "location"), metrics.WithLogger(a.logger))
	if err != nil {
		return err
	}
	defer reader.Close()

	data, err := reader.ReadRun(ctx, run)
	if err != nil {
		return err
	}
	train, err := metrics.LossValues(data, metrics.TrainLoss)
	if err != nil {
		return err
	}
	eval, err := metrics.LossValues(data, metrics.EvalLoss)
	if err != nil {
		return err
	}

	w, closeFn, err := output(cmd, cmp.Or(flags.output, a.ns.String("", "metrics", "output_path")))
	if err != nil {
		return err
	}
	if err := metrics.WriteCSV(w, train, eval); err != nil {
		closeFn()
		return err
	}
	return closeFn()
}

func newRunCmd(a *app) *cobra.Command {
	var (
		convert bool
		eval    evaluateFlags
		losses  lossesFlags
	)
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the whole pipeline: prepare, tune, evaluate and export losses",
		Long: heredoc.Doc(`
			Upload the datasets, tune the source model and wait for the job, evaluate
			the tuned endpoint and export the loss curves. The loss curves are read
			from the configured TensorBoard run or else from the run of the job's
			experiment; the export is skipped when neither is available.
		`),
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			if err := a.prepare(ctx, convert); err != nil {
				return err
			}

			job, err := a.tune(ctx, true)
			if err != nil {
				return err
			}
			a.logger.InfoContext(ctx, "Tuning job succeeded",
				slog.String("job", job.Name),
				slog.String("endpoint", job.Endpoint),
				slog.String("experiment", job.Experiment),
			)

			eval.endpoint = job.Endpoint
			if _, err := a.evaluate(cmd, eval); err != nil {
				return err
			}

			if a.runName(losses.run) == "" {
				run, err := a.experimentRun(ctx, job.Experiment)
				if err != nil {
					a.logger.WarnContext(ctx, "Skipping loss export", slog.Any("error", err))
					return nil
				}
				losses.run = run
			}
			return a.losses(cmd, losses)
		},
	}
	cmd.Flags().BoolVar(&convert, "convert", false, "convert chat transcripts to tuning samples before uploading")
	eval.register(cmd)
	losses.register(cmd)
	cmd.Flags().StringVar(&losses.output, "losses-output", "", "loss CSV file (default metrics.output_path)")
	return cmd
}
