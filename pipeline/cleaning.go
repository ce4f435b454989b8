// Package pipeline cleans raw iris data before training.
package pipeline

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"irisapi/ml"
)

// Sample is one dataset row as seen by the cleaning rules.
type Sample struct {
	Row      int
	Features []float64
	Label    int
}

// CleaningRule checks one row and returns it, or an error if the row must be dropped.
type CleaningRule interface {
	Apply(*Sample) (*Sample, error)
	Name() string
}

// QualityIssue is a problem found in one row.
type QualityIssue struct {
	Type      string    `json:"type"`
	Message   string    `json:"message"`
	Row       int       `json:"row"`
	Timestamp time.Time `json:"timestamp"`
}

// CleaningStats summarizes a cleaning run.
type CleaningStats struct {
	TotalProcessed int64            `json:"total_processed"`
	Passed         int64            `json:"passed"`
	Rejected       int64            `json:"rejected"`
	Issues         map[string]int64 `json:"issues"`
	LastClean      time.Time        `json:"last_clean"`
}

// DataCleaner applies its rules in order.
type DataCleaner struct {
	rules  []CleaningRule
	logger *zap.Logger

	stats     CleaningStats
	statsLock sync.RWMutex
}

// NewDataCleaner returns a cleaner with the measurement and label rules.
func NewDataCleaner(logger *zap.Logger) *DataCleaner {
	if logger == nil {
		logger = zap.NewNop()
	}
	cleaner := &DataCleaner{
		logger: logger,
		stats: CleaningStats{
			Issues: make(map[string]int64),
		},
	}

	cleaner.AddRule(NewMeasurementValidationRule())
	cleaner.AddRule(NewLabelValidationRule())

	return cleaner
}

// AddRule appends a rule.
func (dc *DataCleaner) AddRule(rule CleaningRule) {
	dc.rules = append(dc.rules, rule)
	dc.logger.Debug("added cleaning rule", zap.String("rule", rule.Name()))
}

// Clean runs every rule over every row and returns the surviving rows as a
// new dataset. The input is not modified.
func (dc *DataCleaner) Clean(d *ml.Dataset) (*ml.Dataset, []QualityIssue) {
	cleaned := &ml.Dataset{}
	var issues []QualityIssue

	dc.statsLock.Lock()
	defer dc.statsLock.Unlock()

	for i := range d.Features {
		dc.stats.TotalProcessed++
		sample := &Sample{
			Row:      i,
			Features: append([]float64(nil), d.Features[i]...),
			Label:    d.Labels[i],
		}

		var sampleIssues []QualityIssue
		for _, rule := range dc.rules {
			next, err := rule.Apply(sample)
			if err != nil {
				sampleIssues = append(sampleIssues, QualityIssue{
					Type:      rule.Name(),
					Message:   err.Error(),
					Row:       i,
					Timestamp: time.Now(),
				})
				dc.stats.Issues[rule.Name()]++
				continue
			}
			if next != nil {
				sample = next
			}
		}

		if len(sampleIssues) > 0 {
			dc.stats.Rejected++
			issues = append(issues, sampleIssues...)
			continue
		}
		dc.stats.Passed++
		cleaned.Features = append(cleaned.Features, sample.Features)
		cleaned.Labels = append(cleaned.Labels, sample.Label)
	}

	dc.stats.LastClean = time.Now()
	return cleaned, issues
}

// GetStats returns the stats of the last run.
func (dc *DataCleaner) GetStats() CleaningStats {
	dc.statsLock.RLock()
	defer dc.statsLock.RUnlock()

	stats := dc.stats
	stats.Issues = make(map[string]int64, len(dc.stats.Issues))
	for k, v := range dc.stats.Issues {
		stats.Issues[k] = v
	}
	return stats
}

// Rules

// MeasurementValidationRule rejects rows whose measurements are not physical
// lengths in centimetres.
type MeasurementValidationRule struct {
	MinValue float64
	MaxValue float64
}

func NewMeasurementValidationRule() *MeasurementValidationRule {
	return &MeasurementValidationRule{
		MinValue: 0,
		MaxValue: 100,
	}
}

func (r *MeasurementValidationRule) Name() string {
	return "measurement_validation"
}

func (r *MeasurementValidationRule) Apply(sample *Sample) (*Sample, error) {
	names := ml.FeatureNames()
	if len(sample.Features) != len(names) {
		return nil, fmt.Errorf("expected %d measurements, got %d", len(names), len(sample.Features))
	}
	for i, v := range sample.Features {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("%s is not finite", names[i])
		}
		if v <= r.MinValue || v > r.MaxValue {
			return nil, fmt.Errorf("%s out of range: %v", names[i], v)
		}
	}
	return sample, nil
}

// LabelValidationRule drops rows with an unknown class index.
type LabelValidationRule struct{}

func NewLabelValidationRule() *LabelValidationRule {
	return &LabelValidationRule{}
}

func (r *LabelValidationRule) Name() string {
	return "label_validation"
}

func (r *LabelValidationRule) Apply(sample *Sample) (*Sample, error) {
	if _, ok := ml.LabelFor(sample.Label); !ok {
		return nil, fmt.Errorf("unknown class index %d", sample.Label)
	}
	return sample, nil
}

// DuplicateDetectionRule drops exact duplicate rows.
type DuplicateDetectionRule struct {
	seenMap map[string]int
	mu      sync.Mutex
}

func NewDuplicateDetectionRule() *DuplicateDetectionRule {
	return &DuplicateDetectionRule{
		seenMap: make(map[string]int),
	}
}

func (r *DuplicateDetectionRule) Name() string {
	return "duplicate_detection"
}

func (r *DuplicateDetectionRule) Apply(sample *Sample) (*Sample, error) {
	parts := make([]string, 0, len(sample.Features)+1)
	for _, v := range sample.Features {
		parts = append(parts, strconv.FormatFloat(v, 'g', -1, 64))
	}
	parts = append(parts, strconv.Itoa(sample.Label))
	key := strings.Join(parts, "_")

	r.mu.Lock()
	defer r.mu.Unlock()

	if first, exists := r.seenMap[key]; exists {
		return nil, fmt.Errorf("duplicate of row %d", first)
	}
	r.seenMap[key] = sample.Row
	return sample, nil
}
