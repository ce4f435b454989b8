package ml

import (
	"bytes"
	_ "embed"
)

//go:embed iris.csv
var bundledIris []byte

// BundledDataset returns the 150-row iris reference dataset.
func BundledDataset() (*Dataset, error) {
	dataset, _, err := ReadDataset(bytes.NewReader(bundledIris))
	return dataset, err
}
