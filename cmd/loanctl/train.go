package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/home-loan-approval/internal/migrations"
	"github.com/Adithya-Monish-Kumar-K/home-loan-approval/internal/training"
	"github.com/Adithya-Monish-Kumar-K/home-loan-approval/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/home-loan-approval/pkg/postgres"
)

var trainCmd = &cobra.Command{
	Use:   "train",
	Short: "Fit the pipeline on a labelled data file and write the artifact",
	RunE:  runTrain,
}

func init() {
	trainCmd.Flags().Bool("validate", false, "run the data-quality gate first and abort on failure")
	rootCmd.AddCommand(trainCmd)
}

func runTrain(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	validate, _ := cmd.Flags().GetBool("validate")

	var opts []training.Option
	if cfg.Postgres.Enabled {
		db, err := postgres.New(ctx, cfg.Postgres)
		if err != nil {
			slog.Warn("postgres unavailable, training run will not be recorded", "error", err)
		} else {
			defer db.Close()
			if err := db.Migrate(migrations.FS); err != nil {
				slog.Warn("migrations failed, training run will not be recorded", "error", err)
			} else {
				opts = append(opts, training.WithRecorder(training.NewRunStore(db)))
			}
		}
	}
	if cfg.Kafka.Enabled {
		producer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.TrainingRuns)
		defer producer.Close()
		opts = append(opts, training.WithPublisher(producer))
	}

	run, err := training.New(cfg.Training, opts...).Train(ctx, training.Options{
		DataPath:     cfg.Training.DataPath,
		ArtifactPath: cfg.Predictor.ArtifactPath,
		Validate:     validate,
	})
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "run %s\n", run.RunID)
	fmt.Fprintf(out, "train rows: %d, validation rows: %d\n", run.TrainRows, run.ValidationRows)
	fmt.Fprintf(out, "validation accuracy: %.4f\n", run.Accuracy)
	fmt.Fprintf(out, "validation ROC-AUC:  %.4f\n\n", run.ROCAUC)
	fmt.Fprint(out, run.Report.String())
	fmt.Fprintf(out, "\nartifact written to %s\n", run.ArtifactPath)
	return nil
}
