// Copyright 2016 The Gofem Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package persist

import (
	"path/filepath"
	"testing"

	"github.com/cpmech/gosl/chk"
	"github.com/llnl/griddyn/kernel"
)

func sampleSeries() *Series {
	s := New("run one", []string{"bus1.V", "bus1.theta"})
	s.Append(0.0, []float64{1.05, 0.0})
	s.Append(0.5, []float64{1.047, -0.012})
	return s
}

func Test_series01_binary_roundtrip(tst *testing.T) {
	chk.PrintTitle("series01. binary write/read round trip")

	path := filepath.Join(tst.TempDir(), "run.dat")
	s := sampleSeries()
	if err := WriteBinary(path, s); err != nil {
		tst.Fatalf("WriteBinary failed: %v", err)
	}
	r, err := ReadBinary(path)
	if err != nil {
		tst.Fatalf("ReadBinary failed: %v", err)
	}
	if r.Desc != s.Desc || r.ColCount() != s.ColCount() || r.RowCount() != s.RowCount() {
		tst.Fatalf("header mismatch after round trip: %+v", r)
	}
	chk.Vector(tst, "time column", 1e-15, r.Time, s.Time)
	for k := range s.Cols {
		chk.Vector(tst, "value column", 1e-15, r.Cols[k], s.Cols[k])
	}
}

func Test_series02_append_blocks(tst *testing.T) {
	path := filepath.Join(tst.TempDir(), "run.dat")
	s := sampleSeries()
	if err := AppendBinary(path, s); err != nil {
		tst.Fatalf("first AppendBinary failed: %v", err)
	}
	blk := New("run one", s.ColNames)
	blk.Append(1.0, []float64{1.046, -0.013})
	if err := AppendBinary(path, blk); err != nil {
		tst.Fatalf("second AppendBinary failed: %v", err)
	}

	r, err := ReadBinary(path)
	if err != nil {
		tst.Fatalf("ReadBinary failed: %v", err)
	}
	if r.RowCount() != 3 {
		tst.Fatalf("appended blocks must concatenate: want 3 rows, got %d", r.RowCount())
	}
	chk.Scalar(tst, "last appended time", 1e-15, r.Time[2], 1.0)
}

func Test_series03_csv_roundtrip(tst *testing.T) {
	path := filepath.Join(tst.TempDir(), "run.csv")
	s := sampleSeries()
	if err := WriteCSV(path, s); err != nil {
		tst.Fatalf("WriteCSV failed: %v", err)
	}
	r, err := ReadCSV(path)
	if err != nil {
		tst.Fatalf("ReadCSV failed: %v", err)
	}
	if r.ColCount() != s.ColCount() || r.RowCount() != s.RowCount() {
		tst.Fatalf("shape mismatch after csv round trip")
	}
	chk.Vector(tst, "csv time column", 1e-15, r.Time, s.Time)
}

func Test_series04_errors(tst *testing.T) {
	if _, err := ReadBinary(filepath.Join(tst.TempDir(), "missing.dat")); err == nil || !kernel.Is(err, kernel.FileNotFound) {
		tst.Errorf("reading a missing file must fail with FileNotFound, got %v", err)
	}
	s := New("run", []string{"a"})
	if err := s.Append(0, []float64{1, 2}); err == nil || !kernel.Is(err, kernel.FileIncomplete) {
		tst.Errorf("a row of the wrong width must fail with FileIncomplete, got %v", err)
	}
}
