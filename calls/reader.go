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
	"io"
	"strings"

	"github.com/pkg/errors"

	"github.com/exascience/elstat/vcf"
)

// A RecordScanner is a stream of records with a common header. It
// follows the bufio.Scanner protocol.
type RecordScanner interface {
	Header() *vcf.Header
	Scan() bool
	Record() *Record
	Err() error
}

// A RecordWriter consumes a header followed by records.
type RecordWriter interface {
	WriteHeader(*vcf.Header) error
	Write(*Record) error
}

// Reader streams the records of a VCF or BCF file.
type Reader struct {
	name   string
	input  *vcf.InputFile
	reader *bufio.Reader
	header *vcf.Header
	line   int
	sc     vcf.StringScanner
	record *Record
	err    error
}

// Open opens a call set and parses its header. See vcf.Open for the
// supported file names.
func Open(name string) (*Reader, error) {
	input, err := vcf.Open(name)
	if err != nil {
		return nil, errors.Wrapf(err, "couldn't open call set %v", name)
	}
	r, err := NewReader(name, input.Reader)
	if err != nil {
		_ = input.Close()
		return nil, err
	}
	r.input = input
	return r, nil
}

// NewReader reads a call set from an already opened stream.
func NewReader(name string, reader *bufio.Reader) (*Reader, error) {
	header, lines, err := vcf.ParseHeader(reader)
	if err != nil {
		return nil, errors.Wrapf(err, "couldn't parse VCF header of %v", name)
	}
	return &Reader{name: name, reader: reader, header: header, line: lines}, nil
}

// Header returns the parsed VCF header.
func (r *Reader) Header() *vcf.Header {
	return r.header
}

// Scan advances to the next record.
func (r *Reader) Scan() bool {
	if r.err != nil {
		return false
	}
	for {
		line, err := r.reader.ReadString('\n')
		if err != nil && err != io.EOF {
			r.err = errors.Wrapf(err, "couldn't read %v", r.name)
			return false
		}
		if line == "" && err == io.EOF {
			return false
		}
		r.line++
		line = strings.TrimRight(line, "\r\n")
		if line == "" {
			continue
		}
		r.record, r.err = parseRecord(&r.sc, line)
		if r.err != nil {
			r.err = errors.Wrapf(r.err, "%v, line %v", r.name, r.line)
			return false
		}
		return true
	}
}

func parseRecord(sc *vcf.StringScanner, line string) (*Record, error) {
	sc.Reset(line)
	variant := sc.ParseVariant()
	if err := sc.Err(); err != nil {
		return nil, errors.Wrapf(err, "while parsing VCF variant %v", line)
	}
	return NewRecord(variant)
}

// Record returns the record produced by the last call to Scan.
func (r *Reader) Record() *Record {
	return r.record
}

// Err returns the first error encountered while scanning.
func (r *Reader) Err() error {
	return r.err
}

// Close closes the underlying file, if it was opened by Open.
func (r *Reader) Close() error {
	if r.input == nil {
		return nil
	}
	return r.input.Close()
}

// SliceScanner replays records held in memory.
type SliceScanner struct {
	header  *vcf.Header
	records []*Record
	index   int
}

// NewSliceScanner returns a RecordScanner over the given records.
func NewSliceScanner(header *vcf.Header, records []*Record) *SliceScanner {
	return &SliceScanner{header: header, records: records, index: -1}
}

// Header returns the header given to NewSliceScanner.
func (s *SliceScanner) Header() *vcf.Header {
	return s.header
}

// Scan advances to the next record.
func (s *SliceScanner) Scan() bool {
	if s.index+1 >= len(s.records) {
		s.index = len(s.records)
		return false
	}
	s.index++
	return true
}

// Record returns the current record.
func (s *SliceScanner) Record() *Record {
	return s.records[s.index]
}

// Err always returns nil.
func (s *SliceScanner) Err() error {
	return nil
}
