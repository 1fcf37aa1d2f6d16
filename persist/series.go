// Copyright 2016 The Gofem Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package persist implements the kernel's produced time-series format
//: an appendable binary layout plus a CSV
// sibling for text output. The kernel only specifies *how* a run's output
// is laid out on disk -- deciding *what* to record is a recorder/driver
// concern outside this package.
package persist

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"os"

	"github.com/cpmech/gosl/io"
	"github.com/llnl/griddyn/kernel"
)

// Series is one recorded time series: a shared time column plus one or
// more named value columns sampled at the same rows, matching the
// "time[rowCount], col_k[rowCount] for k=1..cols" shape of the binary
// format.
type Series struct {
	Desc     string
	ColNames []string
	Time     []float64
	Cols     [][]float64 // Cols[k][row], len(Cols) == len(ColNames)
}

// New returns an empty series with the given description and column
// names.
func New(desc string, colNames []string) *Series {
	return &Series{
		Desc:     desc,
		ColNames: append([]string(nil), colNames...),
		Cols:     make([][]float64, len(colNames)),
	}
}

// Append adds one row: a time value and one value per column; the driver's
// recorder appends one row per recorded step.
func (s *Series) Append(t float64, row []float64) error {
	if len(row) != len(s.ColNames) {
		return kernel.Newf(kernel.FileIncomplete, "series %q: row has %d values, want %d", s.Desc, len(row), len(s.ColNames))
	}
	s.Time = append(s.Time, t)
	for k, v := range row {
		s.Cols[k] = append(s.Cols[k], v)
	}
	return nil
}

// RowCount returns the number of recorded rows.
func (s *Series) RowCount() int { return len(s.Time) }

// ColCount returns the number of value columns.
func (s *Series) ColCount() int { return len(s.ColNames) }

// Encoder is the encode sink a Series hands its Time and Cols vectors
// to, the same single-method contract model elements use for their
// internal variables, reused here for whole-run time series.
type Encoder interface {
	Encode(v interface{}) error
}

// Decoder is Encoder's read-side counterpart.
type Decoder interface {
	Decode(v interface{}) error
}

// Encode writes the series' variable data through enc in a single
// call.
func (s *Series) Encode(enc Encoder) error {
	return enc.Encode(s)
}

// Decode reads a series' variable data back through dec.
func (s *Series) Decode(dec Decoder) error {
	return dec.Decode(s)
}

// binAlign is the fixed alignment word written at the start of each
// binary block; readers can check it to detect a wrong-endian or
// corrupt file before trusting the rest of the header.
const binAlign uint32 = 0x47440100 // "GD", format version 1, block kind 0

// WriteBinary writes s as one block's binary time-series
// format: `{align, descLen, desc, rowCount, colCount, [colNameLen,
// colName]..., time[], col_k[]...}`, all integers little-endian. This
// truncates path; use AppendBinary to add a further block to an existing
// file (the "appendable" requirement is a property of the file, not of
// any single call).
func WriteBinary(path string, s *Series) error {
	var buf bytes.Buffer
	if err := writeBlock(&buf, s); err != nil {
		return err
	}
	io.WriteFileV(path, &buf)
	return nil
}

// AppendBinary appends one further block to an existing (or not yet
// existing) binary series file; the driver itself writes whole files with
// WriteBinary and does not call it. gosl/io's WriteFile* helpers
// always truncate, so the append itself uses the standard library's
// O_APPEND file mode -- the one place this package reaches past the
// teacher's io helpers, since they expose no append mode.
func AppendBinary(path string, s *Series) error {
	var buf bytes.Buffer
	if err := writeBlock(&buf, s); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return kernel.Newf(kernel.FileLoadFailure, "persist: cannot open %q for append: %v", path, err)
	}
	defer f.Close()
	if _, err := f.Write(buf.Bytes()); err != nil {
		return kernel.Newf(kernel.FileLoadFailure, "persist: append to %q failed: %v", path, err)
	}
	return nil
}

func writeBlock(buf *bytes.Buffer, s *Series) error {
	if err := binary.Write(buf, binary.LittleEndian, binAlign); err != nil {
		return err
	}
	desc := []byte(s.Desc)
	if err := binary.Write(buf, binary.LittleEndian, uint32(len(desc))); err != nil {
		return err
	}
	buf.Write(desc)

	rowCount := uint32(s.RowCount())
	colCount := uint32(s.ColCount())
	if err := binary.Write(buf, binary.LittleEndian, rowCount); err != nil {
		return err
	}
	if err := binary.Write(buf, binary.LittleEndian, colCount); err != nil {
		return err
	}
	for _, name := range s.ColNames {
		nb := []byte(name)
		if len(nb) > 255 {
			return kernel.Newf(kernel.FileIncomplete, "persist: column name %q longer than 255 bytes", name)
		}
		buf.WriteByte(byte(len(nb)))
		buf.Write(nb)
	}
	if err := binary.Write(buf, binary.LittleEndian, s.Time); err != nil {
		return err
	}
	for k := range s.ColNames {
		if err := binary.Write(buf, binary.LittleEndian, s.Cols[k]); err != nil {
			return err
		}
	}
	return nil
}

// ReadBinary reads every block of a binary series file in order and
// returns them concatenated into a single Series (later blocks' rows
// appended after earlier ones), under the assumption that every block in
// one file shares the same column layout -- the shape successive
// AppendBinary calls with one series produce.
func ReadBinary(path string) (*Series, error) {
	raw, err := io.ReadFile(path)
	if err != nil {
		return nil, kernel.Newf(kernel.FileNotFound, "persist: cannot read %q: %v", path, err)
	}
	r := bytes.NewReader(raw)
	var out *Series
	for r.Len() > 0 {
		blk, err := readBlock(r)
		if err != nil {
			return nil, err
		}
		if out == nil {
			out = blk
			continue
		}
		if err := mergeBlock(out, blk); err != nil {
			return nil, err
		}
	}
	if out == nil {
		return nil, kernel.Newf(kernel.FileIncomplete, "persist: %q contains no blocks", path)
	}
	return out, nil
}

func mergeBlock(into, blk *Series) error {
	if blk.ColCount() != into.ColCount() {
		return kernel.Newf(kernel.FileIncomplete, "persist: block column count %d does not match %d", blk.ColCount(), into.ColCount())
	}
	into.Time = append(into.Time, blk.Time...)
	for k := range into.Cols {
		into.Cols[k] = append(into.Cols[k], blk.Cols[k]...)
	}
	return nil
}

func readBlock(r *bytes.Reader) (*Series, error) {
	var align uint32
	if err := binary.Read(r, binary.LittleEndian, &align); err != nil {
		return nil, kernel.Newf(kernel.FileIncomplete, "persist: truncated block header: %v", err)
	}
	if align != binAlign {
		return nil, kernel.Newf(kernel.FileIncomplete, "persist: bad alignment word %#x", align)
	}
	var descLen uint32
	if err := binary.Read(r, binary.LittleEndian, &descLen); err != nil {
		return nil, kernel.Newf(kernel.FileIncomplete, "persist: truncated desc length: %v", err)
	}
	desc := make([]byte, descLen)
	if _, err := readFull(r, desc); err != nil {
		return nil, kernel.Newf(kernel.FileIncomplete, "persist: truncated desc: %v", err)
	}

	var rowCount, colCount uint32
	if err := binary.Read(r, binary.LittleEndian, &rowCount); err != nil {
		return nil, kernel.Newf(kernel.FileIncomplete, "persist: truncated row count: %v", err)
	}
	if err := binary.Read(r, binary.LittleEndian, &colCount); err != nil {
		return nil, kernel.Newf(kernel.FileIncomplete, "persist: truncated col count: %v", err)
	}

	colNames := make([]string, colCount)
	for i := range colNames {
		var nameLen uint8
		if err := binary.Read(r, binary.LittleEndian, &nameLen); err != nil {
			return nil, kernel.Newf(kernel.FileIncomplete, "persist: truncated column name length: %v", err)
		}
		nb := make([]byte, nameLen)
		if _, err := readFull(r, nb); err != nil {
			return nil, kernel.Newf(kernel.FileIncomplete, "persist: truncated column name: %v", err)
		}
		colNames[i] = string(nb)
	}

	s := New(string(desc), colNames)
	s.Time = make([]float64, rowCount)
	if err := binary.Read(r, binary.LittleEndian, s.Time); err != nil {
		return nil, kernel.Newf(kernel.FileIncomplete, "persist: truncated time column: %v", err)
	}
	for k := range colNames {
		s.Cols[k] = make([]float64, rowCount)
		if err := binary.Read(r, binary.LittleEndian, s.Cols[k]); err != nil {
			return nil, kernel.Newf(kernel.FileIncomplete, "persist: truncated column %d: %v", k, err)
		}
	}
	return s, nil
}

// readFull mirrors io.ReadFull without importing the standard "io" package
// under a name that collides with gosl/io in this file.
func readFull(r *bytes.Reader, buf []byte) (int, error) {
	n, err := r.Read(buf)
	if err != nil {
		return n, err
	}
	if n < len(buf) {
		return n, fmt.Errorf("short read: got %d of %d bytes", n, len(buf))
	}
	return n, nil
}
