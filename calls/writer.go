// elstat: statistics for somatic variant calls.
// Copyright (c) 2020-2021 imec vzw.

// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version, and Additional Terms
// (see below).

// This program is distributed in the hope that it will be useful, but
// WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the GNU
// Affero General Public License for more details.

// You should have received a copy of the GNU Affero General Public
// License and Additional Terms along with this program. If not, see
// <https://github.com/ExaScience/elstat/blob/master/LICENSE.txt>.

package calls

import (
	"bufio"

	"github.com/pkg/errors"

	"github.com/exascience/elstat/vcf"
)

// Writer writes a call set as VCF, BGZF-compressed VCF, or BCF.
type Writer struct {
	name   string
	output *vcf.OutputFile
	writer *bufio.Writer
	buf    []byte
}

// Create creates a call set for output. See vcf.Create for the
// supported file names.
func Create(name string) (*Writer, error) {
	output, err := vcf.Create(name)
	if err != nil {
		return nil, errors.Wrapf(err, "couldn't create call set %v", name)
	}
	return &Writer{name: name, output: output, writer: output.Writer}, nil
}

// NewWriter writes a call set to an already opened stream. The caller
// flushes it.
func NewWriter(name string, writer *bufio.Writer) *Writer {
	return &Writer{name: name, writer: writer}
}

// WriteHeader writes the VCF header.
func (w *Writer) WriteHeader(header *vcf.Header) error {
	if err := header.Format(w.writer); err != nil {
		return errors.Wrapf(err, "couldn't write VCF header to %v", w.name)
	}
	return nil
}

// Write writes one record.
func (w *Writer) Write(record *Record) (err error) {
	if w.buf, err = record.Format(w.buf[:0]); err != nil {
		return err
	}
	if _, err = w.writer.Write(w.buf); err != nil {
		return errors.Wrapf(err, "couldn't write to %v", w.name)
	}
	return nil
}

// Close flushes the output and closes the underlying file, if it was
// created by Create.
func (w *Writer) Close() error {
	if w.output == nil {
		return w.writer.Flush()
	}
	return w.output.Close()
}

// SliceWriter collects records in memory.
type SliceWriter struct {
	Header  *vcf.Header
	Records []*Record
}

// WriteHeader stores the header.
func (w *SliceWriter) WriteHeader(header *vcf.Header) error {
	w.Header = header
	return nil
}

// Write appends the record.
func (w *SliceWriter) Write(record *Record) error {
	w.Records = append(w.Records, record)
	return nil
}
