package model

import (
	"context"
	"fmt"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/Adithya-Monish-Kumar-K/home-loan-approval/internal/applicant"
	"github.com/Adithya-Monish-Kumar-K/home-loan-approval/internal/features"
	"github.com/Adithya-Monish-Kumar-K/home-loan-approval/internal/preprocess"
	"github.com/Adithya-Monish-Kumar-K/home-loan-approval/pkg/tracing"
)

// Options configures a pipeline fit.
type Options struct {
	Neighbors int
	C         float64
	MaxIter   int
}

// DefaultOptions returns k=5 imputation and C=1 with 1000 iterations.
func DefaultOptions() Options {
	return Options{
		Neighbors: preprocess.DefaultNeighbors,
		C:         DefaultC,
		MaxIter:   DefaultMaxIter,
	}
}

// Metadata describes the training run that produced a pipeline.
type Metadata struct {
	RunID          string    `json:"run_id"`
	TrainedAt      time.Time `json:"trained_at"`
	DataPath       string    `json:"data_path,omitempty"`
	TrainRows      int       `json:"train_rows"`
	ValidationRows int       `json:"validation_rows"`
	Accuracy       float64   `json:"accuracy"`
	ROCAUC         float64   `json:"roc_auc"`
	Features       []string  `json:"features"`
}

// Pipeline is the fitted engineer, preprocessor and classifier composition.
// Training and serving both go through Transform, so feature derivation is
// identical on both paths.
type Pipeline struct {
	Preprocessor *preprocess.Preprocessor `json:"preprocessor"`
	Classifier   *LogisticRegression      `json:"classifier"`
	Metadata     Metadata                 `json:"metadata"`
}

// Output is the per-row result of Predict.
type Output struct {
	Labels        []int
	Probabilities []float64
	Diagnostics   preprocess.Diagnostics
}

// Fit learns every stage from records and their 0/1 labels.
func Fit(ctx context.Context, records []applicant.Record, labels []int, opts Options) (*Pipeline, error) {
	if len(records) != len(labels) {
		return nil, fmt.Errorf("fitting pipeline: %d records but %d labels", len(records), len(labels))
	}
	ctx, span := tracing.StartChildSpan(ctx, "pipeline.fit")
	defer span.End()
	span.SetAttr("rows", len(records))

	engineered := features.Engineer(ctx, applicant.ToFrame(records))
	pre, x, err := preprocess.Fit(ctx, engineered, opts.Neighbors)
	if err != nil {
		return nil, fmt.Errorf("fitting preprocessing: %w", err)
	}

	y := make([]float64, len(labels))
	for i, l := range labels {
		if l != 0 && l != 1 {
			return nil, fmt.Errorf("fitting pipeline: label %d at row %d is not 0 or 1", l, i)
		}
		y[i] = float64(l)
	}
	clf := NewLogisticRegression(opts.C, opts.MaxIter)
	if err := clf.Fit(ctx, x, y); err != nil {
		return nil, err
	}

	return &Pipeline{
		Preprocessor: pre,
		Classifier:   clf,
		Metadata: Metadata{
			TrainRows: len(records),
			Features:  append([]string(nil), pre.Features...),
		},
	}, nil
}

// Transform runs feature engineering and preprocessing.
func (p *Pipeline) Transform(ctx context.Context, records []applicant.Record) (*mat.Dense, preprocess.Diagnostics, error) {
	ctx, span := tracing.StartChildSpan(ctx, "pipeline.transform")
	defer span.End()
	engineered := features.Engineer(ctx, applicant.ToFrame(records))
	return p.Preprocessor.Transform(ctx, engineered)
}

// Predict returns labels and positive-class probabilities for every record.
func (p *Pipeline) Predict(ctx context.Context, records []applicant.Record) (*Output, error) {
	x, diag, err := p.Transform(ctx, records)
	if err != nil {
		return nil, err
	}
	_, span := tracing.StartChildSpan(ctx, "pipeline.classify")
	defer span.End()
	labels, err := p.Classifier.Predict(x)
	if err != nil {
		return nil, err
	}
	probs, err := p.Classifier.PredictProba(x)
	if err != nil {
		return nil, err
	}
	return &Output{Labels: labels, Probabilities: probs, Diagnostics: diag}, nil
}

// PredictProba returns only the positive-class probabilities.
func (p *Pipeline) PredictProba(ctx context.Context, records []applicant.Record) ([]float64, error) {
	out, err := p.Predict(ctx, records)
	if err != nil {
		return nil, err
	}
	return out.Probabilities, nil
}

func (p *Pipeline) validate() error {
	if p.Preprocessor == nil || p.Classifier == nil {
		return fmt.Errorf("pipeline is missing a stage")
	}
	if w := p.Preprocessor.Width(); w != len(p.Classifier.Coef) {
		return fmt.Errorf("preprocessor emits %d features, classifier expects %d", w, len(p.Classifier.Coef))
	}
	if p.Preprocessor.Imputer == nil || p.Preprocessor.Scaler == nil ||
		p.Preprocessor.Mode == nil || p.Preprocessor.Encoder == nil {
		return fmt.Errorf("preprocessor is missing a stage")
	}
	return nil
}
