package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"irisapi/db"
	"irisapi/ml"
)

type trainOptions struct {
	DataPath    string
	ModelType   string
	OutPath     string
	MetricsPath string
	LedgerPath  string
	TestRatio   float64
	Seed        int64
	Model       ml.TrainOptions
}

type trainResult struct {
	Metrics   ml.Metrics
	TrainRows int
	TestRows  int
	Artifact  string
	ModelType string
}

func trainCmd() *cobra.Command {
	var (
		dataPath  string
		modelType string
		outPath   string
	)
	cmd := &cobra.Command{
		Use:   "train",
		Short: "Train a classifier and write the model artifact",
		RunE: func(cmd *cobra.Command, _ []string) error {
			opts := trainOptions{
				DataPath:    dataPath,
				ModelType:   cfg.Model.Type,
				OutPath:     cfg.Model.Path,
				MetricsPath: cfg.Training.MetricsPath,
				LedgerPath:  cfg.Database.Path,
				TestRatio:   cfg.Training.TestRatio,
				Seed:        cfg.Training.Seed,
				Model: ml.TrainOptions{
					MaxIter:      cfg.Training.MaxIter,
					LearningRate: cfg.Training.LearningRate,
					MaxDepth:     cfg.Training.MaxTreeDepth,
				},
			}
			if opts.DataPath == "" {
				opts.DataPath = cfg.Training.DataPath
			}
			if modelType != "" {
				opts.ModelType = modelType
			}
			if outPath != "" {
				opts.OutPath = outPath
			}

			result, err := runTrain(opts, logger, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "accuracy=%.4f precision=%.4f recall=%.4f\nmodel saved to %s\n",
				result.Metrics.Accuracy, result.Metrics.Precision, result.Metrics.Recall, result.Artifact)
			return nil
		},
	}
	cmd.Flags().StringVar(&dataPath, "data", "", "prepared CSV (default: bundled iris data)")
	cmd.Flags().StringVar(&modelType, "model-type", "", "logistic_regression or decision_tree")
	cmd.Flags().StringVarP(&outPath, "out", "o", "", "artifact output path")
	return cmd
}

func runTrain(opts trainOptions, logger *zap.Logger, progress io.Writer) (*trainResult, error) {
	dataset, err := loadTrainingData(opts.DataPath, logger)
	if err != nil {
		return nil, err
	}
	train, test := ml.StratifiedSplit(dataset, opts.TestRatio, opts.Seed)
	logger.Info("dataset split",
		zap.Int("train_rows", train.Len()),
		zap.Int("test_rows", test.Len()))

	model, err := ml.NewModel(opts.ModelType, opts.Model)
	if err != nil {
		return nil, fmt.Errorf("model type %q: %w", opts.ModelType, err)
	}

	if lr, ok := model.(*ml.LogisticRegression); ok && progress != nil {
		bar := progressbar.NewOptions(lr.MaxIter(),
			progressbar.OptionSetWriter(progress),
			progressbar.OptionShowCount(),
			progressbar.OptionSetWidth(40),
			progressbar.OptionSetDescription("training"),
			progressbar.OptionThrottle(50*time.Millisecond),
			progressbar.OptionOnCompletion(func() { fmt.Fprintln(progress) }),
		)
		lr.OnIteration = func(int) { _ = bar.Add(1) }
	}

	if err := model.Train(train.Features, train.Labels); err != nil {
		return nil, fmt.Errorf("train %s: %w", model.Type(), err)
	}
	metrics, err := ml.Score(model, test)
	if err != nil {
		return nil, fmt.Errorf("evaluate: %w", err)
	}
	logger.Info("model evaluated",
		zap.String("model", model.Type()),
		zap.Float64("accuracy", metrics.Accuracy),
		zap.Float64("precision", metrics.Precision),
		zap.Float64("recall", metrics.Recall))

	if err := os.MkdirAll(filepath.Dir(opts.OutPath), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create model dir: %w", err)
	}
	if err := ml.SaveModel(model, opts.OutPath); err != nil {
		return nil, fmt.Errorf("failed to save model: %w", err)
	}

	if opts.MetricsPath != "" {
		if err := appendAccuracy(opts.MetricsPath, metrics.Accuracy); err != nil {
			return nil, err
		}
	}
	if opts.LedgerPath != "" {
		recordRun(opts.LedgerPath, db.TrainingLog{
			ModelName:    model.Type(),
			ArtifactPath: opts.OutPath,
			Accuracy:     metrics.Accuracy,
			Precision:    metrics.Precision,
			Recall:       metrics.Recall,
			DataPoints:   train.Len(),
			TestPoints:   test.Len(),
		}, logger)
	}

	return &trainResult{
		Metrics:   metrics,
		TrainRows: train.Len(),
		TestRows:  test.Len(),
		Artifact:  opts.OutPath,
		ModelType: model.Type(),
	}, nil
}

func loadTrainingData(path string, logger *zap.Logger) (*ml.Dataset, error) {
	if path == "" {
		logger.Info("using bundled iris dataset")
		return ml.BundledDataset()
	}
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open dataset: %w", err)
	}
	defer file.Close()

	dataset, dropped, err := ml.ReadDataset(file)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	if dropped > 0 {
		logger.Warn("dropped invalid rows", zap.String("path", path), zap.Int("dropped", dropped))
	}
	return dataset, nil
}

func appendAccuracy(path string, accuracy float64) error {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open metrics file: %w", err)
	}
	if _, err := fmt.Fprintf(file, "accuracy=%v\n", accuracy); err != nil {
		file.Close()
		return fmt.Errorf("write metrics file: %w", err)
	}
	return file.Close()
}

// recordRun writes to the ledger; a ledger failure never fails the run.
func recordRun(path string, run db.TrainingLog, logger *zap.Logger) {
	if err := db.InitDB(path); err != nil {
		logger.Warn("training ledger unavailable", zap.String("path", path), zap.Error(err))
		return
	}
	defer db.Close()
	if err := db.SaveTrainingLog(run); err != nil {
		logger.Warn("failed to record training run", zap.Error(err))
	}
}
