// Package predictor serves approval predictions from the persisted fitted
// pipeline. The pipeline is loaded once when the Service is built and is
// read-only afterwards; a missing artifact turns every prediction into an
// error result instead of a crash.
package predictor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/Adithya-Monish-Kumar-K/home-loan-approval/internal/applicant"
	"github.com/Adithya-Monish-Kumar-K/home-loan-approval/internal/audit"
	"github.com/Adithya-Monish-Kumar-K/home-loan-approval/internal/model"
	"github.com/Adithya-Monish-Kumar-K/home-loan-approval/internal/preprocess"
	apperrors "github.com/Adithya-Monish-Kumar-K/home-loan-approval/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/home-loan-approval/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/home-loan-approval/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/home-loan-approval/pkg/tracing"
)

// Result labels.
const (
	StatusApproved = "Approved"
	StatusRejected = "Rejected"
)

// MsgModelNotFound is the user-facing text for a missing artifact.
const MsgModelNotFound = "Model not found. Please train the model first."

// Result is the outcome for one applicant. Error is set only by PredictOne
// when no prediction could be made.
type Result struct {
	Status       string  `json:"status,omitempty"`
	Probability  float64 `json:"probability"`
	Explanation  string  `json:"explanation,omitempty"`
	PredictionID string  `json:"prediction_id,omitempty"`
	Error        string  `json:"error,omitempty"`
}

// Tracker receives audit events. *audit.Collector implements it.
type Tracker interface {
	Track(event audit.PredictionEvent)
}

// Service owns the loaded pipeline.
type Service struct {
	pipeline     *model.Pipeline
	loadErr      error
	artifactPath string
	maxBatch     int
	cache        *Cache
	tracker      Tracker
	metrics      *metrics.Metrics
	logger       *slog.Logger
}

// Option configures optional collaborators.
type Option func(*Service)

// WithCache memoises single-record predictions.
func WithCache(c *Cache) Option { return func(s *Service) { s.cache = c } }

// WithTracker emits an audit event per prediction.
func WithTracker(t Tracker) Option { return func(s *Service) { s.tracker = t } }

// WithMetrics records prediction metrics.
func WithMetrics(m *metrics.Metrics) Option { return func(s *Service) { s.metrics = m } }

// WithMaxBatch rejects batches larger than n. Zero means unlimited.
func WithMaxBatch(n int) Option { return func(s *Service) { s.maxBatch = n } }

// New loads the artifact at artifactPath. Load failures are kept, logged and
// reported by every later prediction.
func New(artifactPath string, opts ...Option) *Service {
	s := &Service{
		artifactPath: artifactPath,
		logger:       slog.Default().With("component", "predictor"),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.pipeline, s.loadErr = model.Load(artifactPath)
	if s.loadErr != nil {
		s.logger.Error("fitted pipeline unavailable", "path", artifactPath, "error", s.loadErr)
	} else {
		s.logger.Info("fitted pipeline loaded",
			"path", artifactPath,
			"run_id", s.pipeline.Metadata.RunID,
			"features", len(s.pipeline.Metadata.Features),
		)
	}
	if s.metrics != nil {
		if s.loadErr == nil {
			s.metrics.ModelLoaded.Set(1)
		} else {
			s.metrics.ModelLoaded.Set(0)
		}
	}
	return s
}

// NewFromPipeline wraps an already fitted pipeline.
func NewFromPipeline(p *model.Pipeline, opts ...Option) *Service {
	s := &Service{pipeline: p, logger: slog.Default().With("component", "predictor")}
	for _, opt := range opts {
		opt(s)
	}
	if s.metrics != nil {
		s.metrics.ModelLoaded.Set(1)
	}
	return s
}

// Ready returns the load error, if any.
func (s *Service) Ready(context.Context) error {
	if s.pipeline == nil {
		return s.notLoaded()
	}
	return nil
}

// Metadata describes the loaded model.
func (s *Service) Metadata() (model.Metadata, error) {
	if s.pipeline == nil {
		return model.Metadata{}, s.notLoaded()
	}
	return s.pipeline.Metadata, nil
}

func (s *Service) notLoaded() error {
	return apperrors.New(apperrors.ErrModelNotLoaded, http.StatusServiceUnavailable, MsgModelNotFound)
}

// PredictOne scores a single applicant. It never returns an error; failures
// are reported in Result.Error.
func (s *Service) PredictOne(ctx context.Context, r applicant.Record) Result {
	results, err := s.Predict(ctx, []applicant.Record{r})
	if err != nil {
		return Result{Error: userMessage(err)}
	}
	return results[0]
}

// Predict scores every record. A model-not-loaded, validation or schema
// failure rejects the whole batch.
func (s *Service) Predict(ctx context.Context, records []applicant.Record) ([]Result, error) {
	start := time.Now()
	if s.pipeline == nil {
		s.countOutcome("error", len(records))
		return nil, s.notLoaded()
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%w: no applicants to score", apperrors.ErrInvalidInput)
	}
	if s.maxBatch > 0 && len(records) > s.maxBatch {
		return nil, apperrors.Newf(apperrors.ErrInvalidInput, http.StatusRequestEntityTooLarge,
			"batch of %d exceeds the limit of %d", len(records), s.maxBatch)
	}

	ctx, span := tracing.StartSpan(ctx, "predict")
	span.SetAttr("records", len(records))
	defer func() {
		span.End()
		span.Log(logger.FromContext(ctx))
	}()

	var (
		scores   []score
		cacheHit bool
		err      error
	)
	if s.cache != nil && len(records) == 1 {
		key := Key(s.pipeline.Metadata.RunID, records[0].Fingerprint())
		var one score
		one, cacheHit, err = s.cache.GetOrCompute(ctx, key, func() (score, error) {
			out, err := s.score(ctx, records)
			if err != nil {
				return score{}, err
			}
			return out[0], nil
		})
		scores = []score{one}
	} else {
		scores, err = s.score(ctx, records)
	}
	if err != nil {
		s.countOutcome("error", len(records))
		return nil, err
	}
	span.SetAttr("cache_hit", cacheHit)

	elapsed := time.Since(start)
	results := make([]Result, len(records))
	for i, sc := range scores {
		status := StatusRejected
		if sc.Label == 1 {
			status = StatusApproved
		}
		results[i] = Result{
			Status:       status,
			Probability:  sc.Probability,
			Explanation:  Explain(records[i], status),
			PredictionID: uuid.NewString(),
		}
		s.observe(ctx, records[i], results[i], cacheHit, elapsed)
	}
	if s.metrics != nil {
		cacheStatus := "none"
		if s.cache != nil && len(records) == 1 {
			cacheStatus = "miss"
			if cacheHit {
				cacheStatus = "hit"
			}
		}
		s.metrics.PredictionLatency.WithLabelValues(cacheStatus).Observe(elapsed.Seconds())
	}
	return results, nil
}

func (s *Service) score(ctx context.Context, records []applicant.Record) ([]score, error) {
	out, err := s.pipeline.Predict(ctx, records)
	if err != nil {
		return nil, err
	}
	s.reportUnseen(out.Diagnostics)
	scores := make([]score, len(records))
	for i := range records {
		scores[i] = score{Label: out.Labels[i], Probability: out.Probabilities[i]}
	}
	return scores, nil
}

func (s *Service) reportUnseen(d preprocess.Diagnostics) {
	if s.metrics == nil {
		return
	}
	for _, u := range d.Unseen {
		s.metrics.UnseenCategoriesTotal.WithLabelValues(u.Column).Inc()
	}
}

func (s *Service) observe(ctx context.Context, r applicant.Record, res Result, cacheHit bool, elapsed time.Duration) {
	if s.metrics != nil {
		s.metrics.PredictionsTotal.WithLabelValues(outcomeLabel(res.Status)).Inc()
		s.metrics.ApprovalProbability.Observe(res.Probability)
	}
	if s.tracker == nil {
		return
	}
	var area string
	if r.PropertyArea != nil {
		area = *r.PropertyArea
	}
	s.tracker.Track(audit.PredictionEvent{
		PredictionID: res.PredictionID,
		RequestID:    logger.RequestID(ctx),
		ModelRunID:   s.pipeline.Metadata.RunID,
		Status:       res.Status,
		Probability:  res.Probability,
		Explanation:  res.Explanation,
		PropertyArea: area,
		CacheHit:     cacheHit,
		LatencyUs:    elapsed.Microseconds(),
		Timestamp:    time.Now().UTC(),
	})
}

func (s *Service) countOutcome(outcome string, n int) {
	if s.metrics != nil {
		s.metrics.PredictionsTotal.WithLabelValues(outcome).Add(float64(n))
	}
}

func outcomeLabel(status string) string {
	if status == StatusApproved {
		return "approved"
	}
	return "rejected"
}

// userMessage is the text shown to an end user for err.
func userMessage(err error) string {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	return err.Error()
}
