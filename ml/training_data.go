package ml

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"math/rand"
	"strconv"
	"strings"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// LabelColumn is the header of the class column in prepared datasets.
const LabelColumn = "species"

var labelColumnAliases = []string{LabelColumn, "target", "variety", "class"}

type Dataset struct {
	Features [][]float64
	Labels   []int
}

func (d *Dataset) Len() int { return len(d.Labels) }

// ReadDataset parses a CSV with a header row. Columns are matched by name, so
// any column order is accepted; rows are returned in FeatureNames order.
// Rows with missing or unparsable values are skipped and counted.
func ReadDataset(r io.Reader) (*Dataset, int, error) {
	// strips a UTF-8 BOM and decodes UTF-16 when a BOM says so
	decoded := transform.NewReader(r, unicode.BOMOverride(unicode.UTF8.NewDecoder()))
	reader := csv.NewReader(decoded)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, 0, errors.New("dataset is empty")
		}
		return nil, 0, fmt.Errorf("read header: %w", err)
	}
	featureCols, labelCol, err := resolveColumns(header)
	if err != nil {
		return nil, 0, err
	}

	dataset := &Dataset{}
	dropped := 0
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, 0, fmt.Errorf("read row %d: %w", dataset.Len()+dropped+1, err)
		}
		row, label, ok := parseRecord(record, featureCols, labelCol)
		if !ok {
			dropped++
			continue
		}
		dataset.Features = append(dataset.Features, row)
		dataset.Labels = append(dataset.Labels, label)
	}
	if dataset.Len() == 0 {
		return nil, dropped, errors.New("dataset has no usable rows")
	}
	return dataset, dropped, nil
}

func resolveColumns(header []string) ([]int, int, error) {
	index := make(map[string]int, len(header))
	for i, name := range header {
		index[strings.ToLower(strings.TrimSpace(name))] = i
	}

	featureCols := make([]int, 0, len(FeatureNames()))
	for _, name := range FeatureNames() {
		col, ok := index[name]
		if !ok {
			return nil, 0, fmt.Errorf("missing column %q", name)
		}
		featureCols = append(featureCols, col)
	}
	for _, alias := range labelColumnAliases {
		if col, ok := index[alias]; ok {
			return featureCols, col, nil
		}
	}
	return nil, 0, fmt.Errorf("missing column %q", LabelColumn)
}

func parseRecord(record []string, featureCols []int, labelCol int) ([]float64, int, bool) {
	if labelCol >= len(record) {
		return nil, 0, false
	}
	row := make([]float64, len(featureCols))
	for i, col := range featureCols {
		if col >= len(record) {
			return nil, 0, false
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(record[col]), 64)
		if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, 0, false
		}
		row[i] = v
	}
	label, ok := ClassIndex(record[labelCol])
	if !ok {
		return nil, 0, false
	}
	return row, label, true
}

// WriteDataset writes d with the canonical header: FeatureNames then species.
func WriteDataset(w io.Writer, d *Dataset) error {
	writer := csv.NewWriter(w)
	header := append(FeatureNames(), LabelColumn)
	if err := writer.Write(header); err != nil {
		return err
	}
	record := make([]string, len(header))
	for i, row := range d.Features {
		for j, v := range row {
			record[j] = strconv.FormatFloat(v, 'f', -1, 64)
		}
		label, _ := LabelFor(d.Labels[i])
		record[len(record)-1] = label
		if err := writer.Write(record); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

// StratifiedSplit shuffles every class with a seeded source and moves
// testRatio of each class into the test set, so class balance is preserved.
func StratifiedSplit(d *Dataset, testRatio float64, seed int64) (train, test *Dataset) {
	if testRatio <= 0 || testRatio >= 1 {
		testRatio = 0.2
	}
	rnd := rand.New(rand.NewSource(seed))

	byClass := make([][]int, len(ClassLabels()))
	for i, label := range d.Labels {
		byClass[label] = append(byClass[label], i)
	}

	train, test = &Dataset{}, &Dataset{}
	for _, indices := range byClass {
		rnd.Shuffle(len(indices), func(i, j int) { indices[i], indices[j] = indices[j], indices[i] })
		split := int(math.Round(float64(len(indices)) * testRatio))
		for i, idx := range indices {
			target := train
			if i < split {
				target = test
			}
			target.Features = append(target.Features, d.Features[idx])
			target.Labels = append(target.Labels, d.Labels[idx])
		}
	}
	return train, test
}

// Metrics summarizes a classifier on a held-out set. Precision and Recall are
// macro averages over the classes present in the set.
type Metrics struct {
	Accuracy  float64
	Precision float64
	Recall    float64
}

// Evaluate returns the fraction of rows model classifies correctly.
func Evaluate(model Classifier, d *Dataset) (float64, error) {
	metrics, err := Score(model, d)
	if err != nil {
		return 0, err
	}
	return metrics.Accuracy, nil
}

func Score(model Classifier, d *Dataset) (Metrics, error) {
	if d.Len() == 0 {
		return Metrics{}, errors.New("evaluation set is empty")
	}
	numClasses := len(ClassLabels())
	truePositive := make([]int, numClasses)
	predicted := make([]int, numClasses)
	actual := make([]int, numClasses)

	correct := 0
	for i, row := range d.Features {
		label, err := model.Classify(row)
		if err != nil {
			return Metrics{}, err
		}
		if label >= 0 && label < numClasses {
			predicted[label]++
		}
		actual[d.Labels[i]]++
		if label == d.Labels[i] {
			correct++
			truePositive[label]++
		}
	}

	var metrics Metrics
	metrics.Accuracy = float64(correct) / float64(d.Len())
	present := 0
	for k := 0; k < numClasses; k++ {
		if actual[k] == 0 {
			continue
		}
		present++
		metrics.Recall += float64(truePositive[k]) / float64(actual[k])
		if predicted[k] > 0 {
			metrics.Precision += float64(truePositive[k]) / float64(predicted[k])
		}
	}
	metrics.Precision /= float64(present)
	metrics.Recall /= float64(present)
	return metrics, nil
}
