package training

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/home-loan-approval/internal/model"
	"github.com/Adithya-Monish-Kumar-K/home-loan-approval/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/home-loan-approval/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/home-loan-approval/pkg/kafka"
)

func TestROCAUC(t *testing.T) {
	tests := []struct {
		name   string
		truth  []int
		scores []float64
		want   float64
	}{
		{"textbook", []int{0, 0, 1, 1}, []float64{0.1, 0.4, 0.35, 0.8}, 0.75},
		{"perfect", []int{0, 1, 0, 1}, []float64{0.1, 0.9, 0.2, 0.8}, 1},
		{"all tied", []int{0, 1, 0, 1}, []float64{0.5, 0.5, 0.5, 0.5}, 0.5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ROCAUC(tt.truth, tt.scores)
			if err != nil {
				t.Fatal(err)
			}
			if math.Abs(got-tt.want) > 1e-12 {
				t.Errorf("auc = %v, want %v", got, tt.want)
			}
		})
	}
	if _, err := ROCAUC([]int{1, 1}, []float64{0.2, 0.3}); !errors.Is(err, ErrSingleClass) {
		t.Errorf("err = %v", err)
	}
}

func TestClassificationReport(t *testing.T) {
	truth := []int{1, 1, 1, 0, 0}
	pred := []int{1, 1, 0, 0, 1}
	r := ClassificationReport(truth, pred, "N", "Y")
	if r.Accuracy != 0.6 {
		t.Errorf("accuracy = %v", r.Accuracy)
	}
	y := r.Classes[1]
	if y.Label != "Y" || y.Support != 3 || math.Abs(y.Precision-2.0/3) > 1e-12 || math.Abs(y.Recall-2.0/3) > 1e-12 {
		t.Errorf("Y row = %+v", y)
	}
	if !strings.Contains(r.String(), "weighted avg") {
		t.Errorf("rendered report:\n%s", r)
	}
}

type fakeRecorder struct{ runs []Run }

func (f *fakeRecorder) RecordRun(_ context.Context, run Run) error {
	f.runs = append(f.runs, run)
	return nil
}

type fakePublisher struct {
	events []kafka.Event
	err    error
}

func (f *fakePublisher) Publish(_ context.Context, e kafka.Event) error {
	f.events = append(f.events, e)
	return f.err
}

func writeTrainingCSV(t *testing.T, n int, mutate func(i int, row []string)) string {
	t.Helper()
	var b strings.Builder
	b.WriteString("Loan_ID,Gender,Married,Dependents,Education,Self_Employed,ApplicantIncome,CoapplicantIncome,LoanAmount,Loan_Amount_Term,Credit_History,Property_Area,Loan_Status\n")
	areas := []string{"Urban", "Semiurban", "Rural"}
	for i := 0; i < n; i++ {
		credit := "1"
		if i%4 == 0 {
			credit = "0"
		}
		income := 1500 + (i*733)%6000
		status := "N"
		if credit == "1" && income > 2500 {
			status = "Y"
		}
		row := []string{
			fmt.Sprintf("LP%04d", i), []string{"Male", "Female"}[i%2], "Yes", "0", "Graduate", "No",
			fmt.Sprint(income), "0", fmt.Sprint(100 + i%7*10), "360", credit, areas[i%3], status,
		}
		if i%13 == 0 {
			row[8] = ""
		}
		if mutate != nil {
			mutate(i, row)
		}
		b.WriteString(strings.Join(row, ",") + "\n")
	}
	path := filepath.Join(t.TempDir(), "loan-train.csv")
	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestTrainWritesArtifact(t *testing.T) {
	data := writeTrainingCSV(t, 120, nil)
	artifact := filepath.Join(t.TempDir(), "model.lam")
	rec := &fakeRecorder{}
	pub := &fakePublisher{err: errors.New("broker down")}

	trainer := New(config.Default().Training, WithRecorder(rec), WithPublisher(pub))
	run, err := trainer.Train(context.Background(), Options{DataPath: data, ArtifactPath: artifact, Validate: true})
	if err != nil {
		t.Fatalf("Train: %v", err)
	}
	if run.TrainRows != 96 || run.ValidationRows != 24 {
		t.Errorf("split = %d/%d", run.TrainRows, run.ValidationRows)
	}
	if run.Accuracy < 0.8 || run.ROCAUC < 0.8 {
		t.Errorf("weak model: accuracy %v auc %v", run.Accuracy, run.ROCAUC)
	}

	p, err := model.Load(artifact)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if p.Metadata.RunID != run.RunID || p.Metadata.ValidationRows != 24 {
		t.Errorf("metadata = %+v", p.Metadata)
	}
	if len(rec.runs) != 1 {
		t.Errorf("recorded %d runs", len(rec.runs))
	}
	if len(pub.events) != 1 || pub.events[0].Type != EventModelTrained {
		t.Errorf("events = %+v", pub.events)
	}
}

func TestTrainIsReproducible(t *testing.T) {
	data := writeTrainingCSV(t, 60, nil)
	dir := t.TempDir()
	trainer := New(config.Default().Training)
	a, err := trainer.Train(context.Background(), Options{DataPath: data, ArtifactPath: filepath.Join(dir, "a.lam")})
	if err != nil {
		t.Fatal(err)
	}
	b, err := trainer.Train(context.Background(), Options{DataPath: data, ArtifactPath: filepath.Join(dir, "b.lam")})
	if err != nil {
		t.Fatal(err)
	}
	if a.Accuracy != b.Accuracy || a.ROCAUC != b.ROCAUC {
		t.Errorf("runs differ: %v/%v vs %v/%v", a.Accuracy, a.ROCAUC, b.Accuracy, b.ROCAUC)
	}
}

func TestTrainErrors(t *testing.T) {
	trainer := New(config.Default().Training)
	artifact := filepath.Join(t.TempDir(), "model.lam")

	_, err := trainer.Train(context.Background(), Options{DataPath: "does/not/exist.csv", ArtifactPath: artifact})
	if !errors.Is(err, apperrors.ErrDataFileNotFound) {
		t.Errorf("missing file: err = %v", err)
	}

	bad := writeTrainingCSV(t, 40, func(i int, row []string) {
		if i == 3 {
			row[6] = "-10"
		}
	})
	_, err = trainer.Train(context.Background(), Options{DataPath: bad, ArtifactPath: artifact, Validate: true})
	var qe *QualityError
	if !errors.As(err, &qe) || !errors.Is(err, apperrors.ErrValidationFailed) {
		t.Errorf("quality gate: err = %v", err)
	}
	if _, statErr := os.Stat(artifact); !errors.Is(statErr, os.ErrNotExist) {
		t.Error("artifact written despite failed gate")
	}

	badLabel := writeTrainingCSV(t, 40, func(i int, row []string) {
		if i == 5 {
			row[12] = "maybe"
		}
	})
	_, err = trainer.Train(context.Background(), Options{DataPath: badLabel, ArtifactPath: artifact})
	if !errors.Is(err, apperrors.ErrInvalidInput) || !strings.Contains(err.Error(), "row 5") {
		t.Errorf("bad label: err = %v", err)
	}
}

type fakeExec struct {
	query string
	args  []any
}

func (f *fakeExec) ExecContext(_ context.Context, query string, args ...any) (sql.Result, error) {
	f.query, f.args = query, args
	return nil, nil
}

func TestRunStoreRecordRun(t *testing.T) {
	db := &fakeExec{}
	store := newRunStore(db)
	if err := store.RecordRun(context.Background(), Run{RunID: "r1", Accuracy: 0.8}); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(db.query, "INSERT INTO training_runs") || len(db.args) != 9 || db.args[0] != "r1" {
		t.Errorf("query = %q args = %v", db.query, db.args)
	}
}
