// Package training fits the loan approval pipeline on a labelled data file,
// evaluates it on a held-out split and persists it as the serving artifact.
package training

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/Adithya-Monish-Kumar-K/home-loan-approval/internal/applicant"
	"github.com/Adithya-Monish-Kumar-K/home-loan-approval/internal/dataset"
	"github.com/Adithya-Monish-Kumar-K/home-loan-approval/internal/model"
	"github.com/Adithya-Monish-Kumar-K/home-loan-approval/internal/quality"
	"github.com/Adithya-Monish-Kumar-K/home-loan-approval/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/home-loan-approval/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/home-loan-approval/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/home-loan-approval/pkg/tracing"
)

// EventModelTrained is the Kafka event type published after a run.
const EventModelTrained = "model.trained"

// RunRecorder persists a summary of each training run.
type RunRecorder interface {
	RecordRun(ctx context.Context, run Run) error
}

// Publisher announces finished runs.
type Publisher interface {
	Publish(ctx context.Context, event kafka.Event) error
}

// Run summarises one completed training run.
type Run struct {
	RunID          string    `json:"run_id"`
	DataPath       string    `json:"data_path"`
	ArtifactPath   string    `json:"artifact_path"`
	TrainRows      int       `json:"train_rows"`
	ValidationRows int       `json:"validation_rows"`
	Accuracy       float64   `json:"accuracy"`
	ROCAUC         float64   `json:"roc_auc"`
	Report         Report    `json:"report"`
	TrainedAt      time.Time `json:"trained_at"`
}

// Options overrides per invocation.
type Options struct {
	DataPath     string
	ArtifactPath string
	// Validate runs the data-quality gate first and aborts on failure.
	Validate bool
}

// Trainer runs the load, split, fit, evaluate and persist sequence.
type Trainer struct {
	cfg       config.TrainingConfig
	recorder  RunRecorder
	publisher Publisher
	logger    *slog.Logger
	now       func() time.Time
}

// Option configures optional Trainer collaborators.
type Option func(*Trainer)

// WithRecorder stores each run through r.
func WithRecorder(r RunRecorder) Option {
	return func(t *Trainer) { t.recorder = r }
}

// WithPublisher announces each run through p.
func WithPublisher(p Publisher) Option {
	return func(t *Trainer) { t.publisher = p }
}

// New creates a Trainer.
func New(cfg config.TrainingConfig, opts ...Option) *Trainer {
	t := &Trainer{
		cfg:    cfg,
		logger: slog.Default().With("component", "trainer"),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// QualityError is returned when the data-quality gate fails.
type QualityError struct {
	Report quality.Report
}

func (e *QualityError) Error() string {
	failed := e.Report.Failed()
	parts := make([]string, len(failed))
	for i, r := range failed {
		parts[i] = fmt.Sprintf("%s(%s)", r.Expectation, r.Column)
	}
	return fmt.Sprintf("%d expectations failed: %v", len(failed), parts)
}

func (e *QualityError) Unwrap() error { return apperrors.ErrValidationFailed }

// Train executes one run and writes the artifact. The held-out rows never
// reach any fitted stage.
func (t *Trainer) Train(ctx context.Context, opts Options) (*Run, error) {
	ctx, span := tracing.StartSpan(ctx, "train")
	defer func() {
		span.End()
		span.Log(t.logger)
	}()
	dataPath := opts.DataPath
	if dataPath == "" {
		dataPath = t.cfg.DataPath
	}
	if opts.ArtifactPath == "" {
		return nil, fmt.Errorf("%w: artifact path is required", apperrors.ErrInvalidInput)
	}

	t.logger.Info("loading training data", "path", dataPath)
	table, err := dataset.Load(dataPath)
	if err != nil {
		return nil, err
	}
	if opts.Validate {
		report := quality.Validate(table)
		if !report.Success {
			return nil, &QualityError{Report: report}
		}
		t.logger.Info("data quality gate passed", "expectations", len(report.Results))
	}

	records, labels, err := dataset.Applicants(table, t.cfg.TargetColumn, t.cfg.PositiveLabel, t.cfg.NegativeLabel)
	if err != nil {
		return nil, fmt.Errorf("reading applicants: %w", err)
	}
	trainIdx, testIdx := dataset.Split(len(records), t.cfg.TestSize, t.cfg.Seed)
	if len(trainIdx) == 0 || len(testIdx) == 0 {
		return nil, fmt.Errorf("%w: %d rows cannot be split into train and validation", apperrors.ErrInvalidInput, len(records))
	}
	trainX, trainY := subset(records, labels, trainIdx)
	testX, testY := subset(records, labels, testIdx)
	span.SetAttr("train_rows", len(trainX))
	span.SetAttr("validation_rows", len(testX))

	pipeline, err := model.Fit(ctx, trainX, trainY, model.Options{
		Neighbors: t.cfg.Neighbors,
		C:         t.cfg.Regularization,
		MaxIter:   t.cfg.MaxIter,
	})
	if err != nil {
		return nil, fmt.Errorf("fitting pipeline: %w", err)
	}

	out, err := pipeline.Predict(ctx, testX)
	if err != nil {
		return nil, fmt.Errorf("scoring validation split: %w", err)
	}
	auc, err := ROCAUC(testY, out.Probabilities)
	if err != nil {
		return nil, fmt.Errorf("evaluating validation split: %w", err)
	}

	run := &Run{
		RunID:          uuid.NewString(),
		DataPath:       dataPath,
		ArtifactPath:   opts.ArtifactPath,
		TrainRows:      len(trainX),
		ValidationRows: len(testX),
		Accuracy:       Accuracy(testY, out.Labels),
		ROCAUC:         auc,
		Report:         ClassificationReport(testY, out.Labels, t.cfg.NegativeLabel, t.cfg.PositiveLabel),
		TrainedAt:      t.now().UTC(),
	}
	pipeline.Metadata.RunID = run.RunID
	pipeline.Metadata.TrainedAt = run.TrainedAt
	pipeline.Metadata.DataPath = dataPath
	pipeline.Metadata.ValidationRows = run.ValidationRows
	pipeline.Metadata.Accuracy = run.Accuracy
	pipeline.Metadata.ROCAUC = run.ROCAUC

	if err := model.Save(opts.ArtifactPath, pipeline); err != nil {
		return nil, fmt.Errorf("saving artifact: %w", err)
	}
	t.logger.Info("training run complete",
		"run_id", run.RunID,
		"accuracy", run.Accuracy,
		"roc_auc", run.ROCAUC,
		"artifact", opts.ArtifactPath,
	)

	t.announce(ctx, *run)
	return run, nil
}

// announce records and publishes the run. Failures are logged only; the
// artifact is already in place.
func (t *Trainer) announce(ctx context.Context, run Run) {
	var errs []error
	if t.recorder != nil {
		if err := t.recorder.RecordRun(ctx, run); err != nil {
			errs = append(errs, fmt.Errorf("recording run: %w", err))
		}
	}
	if t.publisher != nil {
		event := kafka.Event{Key: run.RunID, Type: EventModelTrained, Value: run}
		if err := t.publisher.Publish(ctx, event); err != nil {
			errs = append(errs, fmt.Errorf("publishing run: %w", err))
		}
	}
	if err := errors.Join(errs...); err != nil {
		t.logger.Warn("training run side effects failed", "run_id", run.RunID, "error", err)
	}
}

func subset(records []applicant.Record, labels []int, idx []int) ([]applicant.Record, []int) {
	xs := make([]applicant.Record, len(idx))
	ys := make([]int, len(idx))
	for i, j := range idx {
		xs[i] = records[j]
		ys[i] = labels[j]
	}
	return xs, ys
}
