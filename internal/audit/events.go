// Package audit carries the prediction audit trail: the serving side tracks
// prediction events onto Kafka, and the audit service consumes them into
// running approval statistics persisted to PostgreSQL.
package audit

import "time"

// Event types carried in the Kafka type header.
const (
	EventPrediction   = "prediction"
	EventModelTrained = "model.trained"
)

// PredictionEvent is emitted once per scored applicant.
type PredictionEvent struct {
	PredictionID string    `json:"prediction_id"`
	RequestID    string    `json:"request_id,omitempty"`
	ModelRunID   string    `json:"model_run_id"`
	Status       string    `json:"status"`
	Probability  float64   `json:"probability"`
	Explanation  string    `json:"explanation,omitempty"`
	PropertyArea string    `json:"property_area,omitempty"`
	CacheHit     bool      `json:"cache_hit"`
	LatencyUs    int64     `json:"latency_us"`
	Timestamp    time.Time `json:"timestamp"`
}

// ModelEvent is the subset of a training run announcement the audit service
// keeps.
type ModelEvent struct {
	RunID     string    `json:"run_id"`
	Accuracy  float64   `json:"accuracy"`
	ROCAUC    float64   `json:"roc_auc"`
	TrainedAt time.Time `json:"trained_at"`
}
