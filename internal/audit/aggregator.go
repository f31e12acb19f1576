package audit

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/Adithya-Monish-Kumar-K/home-loan-approval/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/home-loan-approval/pkg/metrics"
)

// maxLatencySamples bounds the latency window used for percentiles.
const maxLatencySamples = 10000

// ApprovalStats is the aggregated view served by the audit service.
type ApprovalStats struct {
	TotalPredictions int64            `json:"total_predictions"`
	Approved         int64            `json:"approved"`
	Rejected         int64            `json:"rejected"`
	ApprovalRate     float64          `json:"approval_rate"`
	MeanProbability  float64          `json:"mean_probability"`
	CacheHitRate     float64          `json:"cache_hit_rate"`
	P50LatencyUs     int64            `json:"p50_latency_us"`
	P95LatencyUs     int64            `json:"p95_latency_us"`
	P99LatencyUs     int64            `json:"p99_latency_us"`
	Reasons          map[string]int64 `json:"reasons"`
	ByPropertyArea   []AreaCount      `json:"by_property_area"`
	CurrentModel     *ModelEvent      `json:"current_model,omitempty"`
	PerMinute        float64          `json:"predictions_per_minute"`
	CapturedAt       time.Time        `json:"captured_at"`
}

// AreaCount is the approval breakdown for one Property_Area value.
type AreaCount struct {
	Area     string `json:"area"`
	Total    int64  `json:"total"`
	Approved int64  `json:"approved"`
}

// EventSink receives every consumed prediction event.
type EventSink interface {
	SaveEvent(ctx context.Context, event PredictionEvent) error
}

// Aggregator folds prediction events into running statistics.
type Aggregator struct {
	mu             sync.RWMutex
	total          int64
	approved       int64
	cacheHits      int64
	probabilitySum float64
	latencies      []int64
	next           int
	reasons        map[string]int64
	areas          map[string]*AreaCount
	model          *ModelEvent
	startTime      time.Time

	sink    EventSink
	metrics *metrics.Metrics
	logger  *slog.Logger
	now     func() time.Time
}

// NewAggregator creates an empty Aggregator. sink and m may be nil.
func NewAggregator(sink EventSink, m *metrics.Metrics) *Aggregator {
	return &Aggregator{
		latencies: make([]int64, 0, 1024),
		reasons:   make(map[string]int64),
		areas:     make(map[string]*AreaCount),
		startTime: time.Now(),
		sink:      sink,
		metrics:   m,
		logger:    slog.Default().With("component", "audit-aggregator"),
		now:       time.Now,
	}
}

// HandleMessage routes consumed Kafka messages by their type header.
// Undecodable messages are logged and skipped so they do not block the
// partition.
func HandleMessage(agg *Aggregator) kafka.MessageHandler {
	return func(ctx context.Context, msg kafka.Message) error {
		switch msg.Type {
		case EventPrediction, "":
			event, err := kafka.DecodeJSON[PredictionEvent](msg.Value)
			if err != nil {
				agg.logger.Error("failed to decode prediction event", "error", err)
				return nil
			}
			agg.Record(event)
			if agg.sink != nil {
				if err := agg.sink.SaveEvent(ctx, event); err != nil {
					return err
				}
			}
		case EventModelTrained:
			event, err := kafka.DecodeJSON[ModelEvent](msg.Value)
			if err != nil {
				agg.logger.Error("failed to decode model event", "error", err)
				return nil
			}
			agg.RecordModel(event)
		default:
			agg.logger.Debug("ignoring event", "type", msg.Type)
		}
		return nil
	}
}

// Record folds one prediction into the statistics.
func (a *Aggregator) Record(event PredictionEvent) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.total++
	if event.Status == "Approved" {
		a.approved++
	}
	if event.CacheHit {
		a.cacheHits++
	}
	a.probabilitySum += event.Probability
	if event.Explanation != "" {
		a.reasons[event.Explanation]++
	}
	if event.PropertyArea != "" {
		ac, ok := a.areas[event.PropertyArea]
		if !ok {
			ac = &AreaCount{Area: event.PropertyArea}
			a.areas[event.PropertyArea] = ac
		}
		ac.Total++
		if event.Status == "Approved" {
			ac.Approved++
		}
	}
	if len(a.latencies) < maxLatencySamples {
		a.latencies = append(a.latencies, event.LatencyUs)
	} else {
		a.latencies[a.next] = event.LatencyUs
		a.next = (a.next + 1) % maxLatencySamples
	}
	if a.metrics != nil {
		a.metrics.AuditEventsTotal.WithLabelValues("consumed").Inc()
	}
}

// RecordModel notes the most recently trained model.
func (a *Aggregator) RecordModel(event ModelEvent) {
	a.mu.Lock()
	a.model = &event
	a.mu.Unlock()
	a.logger.Info("model run observed", "run_id", event.RunID, "roc_auc", event.ROCAUC)
}

// Stats returns a consistent snapshot.
func (a *Aggregator) Stats() ApprovalStats {
	a.mu.RLock()
	defer a.mu.RUnlock()

	now := a.now()
	stats := ApprovalStats{
		TotalPredictions: a.total,
		Approved:         a.approved,
		Rejected:         a.total - a.approved,
		Reasons:          make(map[string]int64, len(a.reasons)),
		ByPropertyArea:   make([]AreaCount, 0, len(a.areas)),
		CapturedAt:       now.UTC(),
	}
	if a.total > 0 {
		stats.ApprovalRate = float64(a.approved) / float64(a.total)
		stats.MeanProbability = a.probabilitySum / float64(a.total)
		stats.CacheHitRate = float64(a.cacheHits) / float64(a.total)
	}
	if len(a.latencies) > 0 {
		sorted := make([]int64, len(a.latencies))
		copy(sorted, a.latencies)
		sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
		stats.P50LatencyUs = percentile(sorted, 50)
		stats.P95LatencyUs = percentile(sorted, 95)
		stats.P99LatencyUs = percentile(sorted, 99)
	}
	for reason, n := range a.reasons {
		stats.Reasons[reason] = n
	}
	for _, ac := range a.areas {
		stats.ByPropertyArea = append(stats.ByPropertyArea, *ac)
	}
	sort.Slice(stats.ByPropertyArea, func(i, j int) bool {
		return stats.ByPropertyArea[i].Area < stats.ByPropertyArea[j].Area
	})
	if a.model != nil {
		m := *a.model
		stats.CurrentModel = &m
	}
	if elapsed := now.Sub(a.startTime).Minutes(); elapsed > 0 {
		stats.PerMinute = float64(a.total) / elapsed
	}
	return stats
}

func percentile(sorted []int64, pct int) int64 {
	if len(sorted) == 0 {
		return 0
	}
	idx := (pct * len(sorted)) / 100
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}
