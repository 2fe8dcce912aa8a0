package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/bmir-radx/harmonization-framework/internal/ops"
)

// missingTokens are cell texts read as missing values.
var missingTokens = map[string]bool{
	"": true, "#N/A": true, "#N/A N/A": true, "#NA": true, "-1.#IND": true,
	"-1.#QNAN": true, "-NaN": true, "-nan": true, "1.#IND": true, "1.#QNAN": true,
	"<NA>": true, "N/A": true, "NA": true, "NULL": true, "NaN": true,
	"None": true, "n/a": true, "nan": true, "null": true,
}

// ReadCSV reads a table from CSV. The first record is the header.
//
// Each column gets one inferred type. A column whose present cells are all
// "True"/"False" holds bools. A column whose present cells all parse as
// integers holds int64, unless it has missing cells, in which case it holds
// float64. A column whose present cells all parse as numbers holds float64.
// Anything else holds strings. Missing cells are nil.
func ReadCSV(r io.Reader) (*Table, error) {
	cr := csv.NewReader(r)
	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("read csv header: empty input")
		}
		return nil, fmt.Errorf("read csv header: %w", err)
	}
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}

	cells := make([][]string, len(header))
	for {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv: %w", err)
		}
		for i, cell := range record {
			cells[i] = append(cells[i], cell)
		}
	}

	rows := 0
	if len(cells) > 0 {
		rows = len(cells[0])
	}
	t := New(rows)
	for i, name := range header {
		if err := t.AddColumn(name, infer(cells[i])); err != nil {
			return nil, err
		}
	}
	return t, nil
}

// ReadFile reads a CSV file.
func ReadFile(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	t, err := ReadCSV(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return t, nil
}

func infer(raw []string) []any {
	allBool, allInt, allFloat := true, true, true
	missing := false
	for _, s := range raw {
		if missingTokens[s] {
			missing = true
			continue
		}
		allBool = allBool && (s == "True" || s == "False")
		if allInt {
			_, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
			allInt = err == nil
		}
		if allFloat {
			_, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
			allFloat = err == nil
		}
	}

	values := make([]any, len(raw))
	for i, s := range raw {
		if missingTokens[s] {
			continue
		}
		switch {
		case allBool:
			values[i] = s == "True"
		case allInt && !missing:
			values[i], _ = strconv.ParseInt(strings.TrimSpace(s), 10, 64)
		case allFloat:
			values[i], _ = strconv.ParseFloat(strings.TrimSpace(s), 64)
		default:
			values[i] = s
		}
	}
	return values
}

// WriteCSV writes the table as CSV with a header record. Cells are
// formatted with ops.FormatValue.
func WriteCSV(w io.Writer, t *Table) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(t.Names()); err != nil {
		return err
	}
	record := make([]string, t.NumColumns())
	for i := 0; i < t.rows; i++ {
		for j, c := range t.columns {
			record[j] = ops.FormatValue(c.Values[i])
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteFile writes the table to path as CSV, replacing any existing file.
func WriteFile(path string, t *Table) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := WriteCSV(f, t); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}
