package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"irisapi/ml"
	"irisapi/pipeline"
)

func prepareCmd() *cobra.Command {
	var (
		inPath, outPath string
		dedupe          bool
	)
	cmd := &cobra.Command{
		Use:   "prepare",
		Short: "Clean a raw iris CSV into the canonical training layout",
		RunE: func(cmd *cobra.Command, _ []string) error {
			rows, err := runPrepare(inPath, outPath, dedupe, logger)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %d rows to %s\n", rows, outPath)
			return nil
		},
	}
	cmd.Flags().StringVar(&inPath, "in", "", "raw CSV (default: bundled iris data)")
	cmd.Flags().StringVar(&outPath, "out", "data/iris_prepared.csv", "prepared CSV output path")
	cmd.Flags().BoolVar(&dedupe, "dedupe", false, "drop repeated rows")
	return cmd
}

func runPrepare(inPath, outPath string, dedupe bool, logger *zap.Logger) (int, error) {
	raw, err := loadTrainingData(inPath, logger)
	if err != nil {
		return 0, err
	}

	cleaner := pipeline.NewDataCleaner(logger)
	if dedupe {
		cleaner.AddRule(pipeline.NewDuplicateDetectionRule())
	}
	dataset, issues := cleaner.Clean(raw)
	for _, issue := range issues {
		logger.Debug("row rejected",
			zap.Int("row", issue.Row),
			zap.String("rule", issue.Type),
			zap.String("reason", issue.Message))
	}
	if dataset.Len() == 0 {
		return 0, fmt.Errorf("no rows left after cleaning %d input rows", raw.Len())
	}
	if stats := cleaner.GetStats(); stats.Rejected > 0 {
		logger.Warn("rejected rows during cleaning", zap.Int64("rejected", stats.Rejected), zap.Any("issues", stats.Issues))
	}

	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return 0, fmt.Errorf("failed to create output dir: %w", err)
	}
	file, err := os.Create(outPath)
	if err != nil {
		return 0, err
	}
	if err := ml.WriteDataset(file, dataset); err != nil {
		file.Close()
		return 0, fmt.Errorf("write %s: %w", outPath, err)
	}
	if err := file.Close(); err != nil {
		return 0, err
	}
	logger.Info("prepared dataset", zap.String("out", outPath), zap.Int("rows", dataset.Len()))
	return dataset.Len(), nil
}
