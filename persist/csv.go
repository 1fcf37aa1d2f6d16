// Copyright 2016 The Gofem Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package persist

import (
	"bytes"
	"encoding/csv"
	"strconv"

	"github.com/cpmech/gosl/io"
	"github.com/llnl/griddyn/kernel"
)

// WriteCSV writes s as the text-output sibling of the binary format: a
// header row of
// "time" plus each column name, followed by one row per sample.
func WriteCSV(path string, s *Series) error {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	header := make([]string, 0, s.ColCount()+1)
	header = append(header, "time")
	header = append(header, s.ColNames...)
	if err := w.Write(header); err != nil {
		return kernel.Newf(kernel.FileIncomplete, "persist: csv header write failed: %v", err)
	}

	row := make([]string, s.ColCount()+1)
	for i := 0; i < s.RowCount(); i++ {
		row[0] = strconv.FormatFloat(s.Time[i], 'g', -1, 64)
		for k := range s.ColNames {
			row[k+1] = strconv.FormatFloat(s.Cols[k][i], 'g', -1, 64)
		}
		if err := w.Write(row); err != nil {
			return kernel.Newf(kernel.FileIncomplete, "persist: csv row write failed: %v", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return kernel.Newf(kernel.FileIncomplete, "persist: csv flush failed: %v", err)
	}

	io.WriteFileV(path, &buf)
	return nil
}

// ReadCSV reads back a file written by WriteCSV.
func ReadCSV(path string) (*Series, error) {
	raw, err := io.ReadFile(path)
	if err != nil {
		return nil, kernel.Newf(kernel.FileNotFound, "persist: cannot read %q: %v", path, err)
	}
	r := csv.NewReader(bytes.NewReader(raw))
	rows, err := r.ReadAll()
	if err != nil {
		return nil, kernel.Newf(kernel.FileIncomplete, "persist: csv parse failed: %v", err)
	}
	if len(rows) == 0 {
		return nil, kernel.Newf(kernel.FileIncomplete, "persist: %q has no header row", path)
	}
	header := rows[0]
	if len(header) < 1 || header[0] != "time" {
		return nil, kernel.Newf(kernel.FileIncomplete, "persist: %q has no leading time column", path)
	}
	s := New("", header[1:])
	for _, row := range rows[1:] {
		if len(row) != len(header) {
			return nil, kernel.Newf(kernel.FileIncomplete, "persist: %q has a row with %d fields, want %d", path, len(row), len(header))
		}
		t, err := strconv.ParseFloat(row[0], 64)
		if err != nil {
			return nil, kernel.Newf(kernel.FileIncomplete, "persist: %q has a malformed time value %q", path, row[0])
		}
		vals := make([]float64, len(s.ColNames))
		for k := range vals {
			v, err := strconv.ParseFloat(row[k+1], 64)
			if err != nil {
				return nil, kernel.Newf(kernel.FileIncomplete, "persist: %q has a malformed value %q in column %q", path, row[k+1], header[k+1])
			}
			vals[k] = v
		}
		if err := s.Append(t, vals); err != nil {
			return nil, err
		}
	}
	return s, nil
}
