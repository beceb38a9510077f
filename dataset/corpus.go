// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
)

const (
	columnInput  = "input_text"
	columnOutput = "output_text"
)

// Record is one evaluation example: a document and its reference summary.
type Record struct {
	InputText  string `json:"input_text"`
	OutputText string `json:"output_text"`
}

// ReadCorpus reads evaluation records from CSV. The header row must name the
// input_text and output_text columns; other columns are ignored.
func ReadCorpus(r io.Reader) ([]Record, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("read corpus: missing header")
		}
		return nil, fmt.Errorf("read corpus header: %w", err)
	}

	input, output := -1, -1
	for i, name := range header {
		switch name {
		case columnInput:
			input = i
		case columnOutput:
			output = i
		}
	}
	if input < 0 || output < 0 {
		return nil, fmt.Errorf("read corpus: header must contain %q and %q columns", columnInput, columnOutput)
	}

	var records []Record
	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read corpus: %w", err)
		}
		records = append(records, Record{
			InputText:  field(row, input),
			OutputText: field(row, output),
		})
	}

	return records, nil
}

func field(row []string, i int) string {
	if i < len(row) {
		return row[i]
	}
	return ""
}

// ReadCorpusFile reads evaluation records from the CSV file at path.
func ReadCorpusFile(path string) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	records, err := ReadCorpus(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return records, nil
}
