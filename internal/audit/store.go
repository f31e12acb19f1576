package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Adithya-Monish-Kumar-K/home-loan-approval/pkg/postgres"
)

// Store persists prediction events and periodic statistics snapshots in the
// prediction_events and approval_snapshots tables.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewStore creates a Store on an open client. Migrations must already have
// been applied.
func NewStore(client *postgres.Client) *Store {
	return &Store{
		db:     client.DB,
		logger: slog.Default().With("component", "audit-store"),
	}
}

// SaveEvent inserts a prediction event. Redelivered events are ignored.
func (s *Store) SaveEvent(ctx context.Context, e PredictionEvent) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO prediction_events
		    (prediction_id, request_id, model_run_id, status, probability, explanation,
		     property_area, cache_hit, latency_us, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		 ON CONFLICT (prediction_id) DO NOTHING`,
		e.PredictionID, e.RequestID, e.ModelRunID, e.Status, e.Probability, e.Explanation,
		e.PropertyArea, e.CacheHit, e.LatencyUs, e.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("saving prediction event: %w", err)
	}
	return nil
}

// SaveSnapshot persists a stats snapshot.
func (s *Store) SaveSnapshot(ctx context.Context, stats ApprovalStats) error {
	data, err := json.Marshal(stats)
	if err != nil {
		return fmt.Errorf("marshaling stats: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO approval_snapshots (data, captured_at) VALUES ($1, $2)`,
		data, stats.CapturedAt,
	)
	if err != nil {
		return fmt.Errorf("saving approval snapshot: %w", err)
	}
	s.logger.Info("approval snapshot saved",
		"total_predictions", stats.TotalPredictions,
		"approval_rate", stats.ApprovalRate,
	)
	return nil
}

// LatestSnapshot returns the newest snapshot, or nil if none exist.
func (s *Store) LatestSnapshot(ctx context.Context) (*ApprovalStats, error) {
	var data []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT data FROM approval_snapshots ORDER BY captured_at DESC LIMIT 1`,
	).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying latest snapshot: %w", err)
	}
	var stats ApprovalStats
	if err := json.Unmarshal(data, &stats); err != nil {
		return nil, fmt.Errorf("unmarshaling snapshot: %w", err)
	}
	return &stats, nil
}

// ListSnapshots returns the last limit snapshots, newest first.
func (s *Store) ListSnapshots(ctx context.Context, limit int) ([]ApprovalStats, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT data FROM approval_snapshots ORDER BY captured_at DESC LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("listing snapshots: %w", err)
	}
	defer rows.Close()

	snapshots := make([]ApprovalStats, 0, limit)
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("scanning snapshot row: %w", err)
		}
		var stats ApprovalStats
		if err := json.Unmarshal(data, &stats); err != nil {
			s.logger.Warn("skipping corrupt snapshot", "error", err)
			continue
		}
		snapshots = append(snapshots, stats)
	}
	return snapshots, rows.Err()
}

// StartPeriodicSave snapshots agg every interval until ctx is cancelled.
func (s *Store) StartPeriodicSave(ctx context.Context, agg *Aggregator, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if err := s.SaveSnapshot(ctx, agg.Stats()); err != nil {
					s.logger.Error("periodic snapshot failed", "error", err)
				}
			case <-ctx.Done():
				saveCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				if err := s.SaveSnapshot(saveCtx, agg.Stats()); err != nil {
					s.logger.Error("final snapshot failed", "error", err)
				}
				cancel()
				return
			}
		}
	}()
	s.logger.Info("periodic snapshot started", "interval", interval)
}
