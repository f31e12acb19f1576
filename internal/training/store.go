package training

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/Adithya-Monish-Kumar-K/home-loan-approval/pkg/postgres"
)

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// RunStore writes training runs to the training_runs table.
type RunStore struct {
	db     execer
	logger *slog.Logger
}

// NewRunStore creates a RunStore on an open PostgreSQL client.
func NewRunStore(db *postgres.Client) *RunStore {
	return newRunStore(db.DB)
}

func newRunStore(db execer) *RunStore {
	return &RunStore{
		db:     db,
		logger: slog.Default().With("component", "training-run-store"),
	}
}

// RecordRun inserts one run; the report is stored as JSONB.
func (s *RunStore) RecordRun(ctx context.Context, run Run) error {
	report, err := json.Marshal(run.Report)
	if err != nil {
		return fmt.Errorf("marshaling report: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO training_runs
		    (run_id, data_path, artifact_path, train_rows, validation_rows, accuracy, roc_auc, report, trained_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		run.RunID, run.DataPath, run.ArtifactPath, run.TrainRows, run.ValidationRows,
		run.Accuracy, run.ROCAUC, report, run.TrainedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting training run: %w", err)
	}
	s.logger.Info("training run recorded", "run_id", run.RunID)
	return nil
}
