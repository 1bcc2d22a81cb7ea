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

// Package estimation implements the statistics engines of elstat:
// effective mutation rate estimation from an allele frequency
// spectrum, local false discovery rate annotation, and false
// discovery rate control against a null model.
package estimation

import (
	"bufio"
	"io"
	"log"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/grailbio/base/tsv"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/stat"

	"github.com/exascience/elstat/utils"
)

// A FrequencyScanner is a stream of allele frequencies. It follows the
// bufio.Scanner protocol.
type FrequencyScanner interface {
	Scan() bool
	Frequency() float64
	Err() error
}

// SliceFrequencies is a FrequencyScanner over frequencies held in
// memory.
type SliceFrequencies struct {
	freqs []float64
	index int
}

// NewSliceFrequencies returns a FrequencyScanner over freqs.
func NewSliceFrequencies(freqs ...float64) *SliceFrequencies {
	return &SliceFrequencies{freqs: freqs, index: -1}
}

// Scan advances to the next frequency.
func (s *SliceFrequencies) Scan() bool {
	if s.index+1 >= len(s.freqs) {
		s.index = len(s.freqs)
		return false
	}
	s.index++
	return true
}

// Frequency returns the current frequency.
func (s *SliceFrequencies) Frequency() float64 {
	return s.freqs[s.index]
}

// Err always returns nil.
func (s *SliceFrequencies) Err() error {
	return nil
}

// WindowFilter passes on the frequencies f of a FrequencyScanner with
// Min <= f <= Max.
type WindowFilter struct {
	FrequencyScanner
	Min, Max float64
}

// Scan advances to the next frequency within the window.
func (w *WindowFilter) Scan() bool {
	for w.FrequencyScanner.Scan() {
		if f := w.Frequency(); f >= w.Min && f <= w.Max {
			return true
		}
	}
	return false
}

type frequencyRow struct {
	Frequency float64 `tsv:"frequency"`
}

// TSVFrequencies reads allele frequencies from a single column table.
// Lines starting with '#' are comments. A first row that is not a
// number is taken to be a header row.
type TSVFrequencies struct {
	reader *tsv.Reader
	row    frequencyRow
	err    error
}

// NewTSVFrequencies returns a FrequencyScanner for the table in r.
func NewTSVFrequencies(r io.Reader) (*TSVFrequencies, error) {
	reader := bufio.NewReader(r)
	var first string
	for {
		line, err := reader.ReadString('\n')
		if err != nil && err != io.EOF {
			return nil, errors.Wrap(err, "couldn't read allele frequencies")
		}
		if trimmed := strings.TrimSpace(line); trimmed != "" && !strings.HasPrefix(trimmed, "#") {
			first = line
			break
		}
		if err == io.EOF {
			break
		}
	}
	field := strings.TrimSpace(strings.SplitN(first, "\t", 2)[0])
	_, perr := strconv.ParseFloat(field, 64)
	tsvReader := tsv.NewReader(io.MultiReader(strings.NewReader(first), reader))
	tsvReader.Comment = '#'
	tsvReader.HasHeaderRow = first != "" && perr != nil
	return &TSVFrequencies{reader: tsvReader}, nil
}

// Scan advances to the next frequency.
func (t *TSVFrequencies) Scan() bool {
	if t.err != nil {
		return false
	}
	if err := t.reader.Read(&t.row); err != nil {
		if err != io.EOF {
			t.err = errors.Wrap(err, "couldn't parse allele frequency")
		}
		return false
	}
	return true
}

// Frequency returns the current frequency.
func (t *TSVFrequencies) Frequency() float64 {
	return t.row.Frequency
}

// Err returns the first error encountered while scanning.
func (t *TSVFrequencies) Err() error {
	return t.err
}

// A FitPoint compares the observed cumulative count M(f) of
// frequencies >= f with the fitted model.
type FitPoint struct {
	Frequency        float64 `json:"frequency"`
	InverseFrequency float64 `json:"inverseFrequency"`
	ObservedCount    int     `json:"observedCount"`
	ModelCount       float64 `json:"modelCount"`
}

// MutationRateEstimate is the result of fitting the 1/f law to an
// allele frequency spectrum.
type MutationRateEstimate struct {
	Rate         float64    `json:"rate"`
	Intercept    float64    `json:"intercept"`
	RSquared     float64    `json:"rSquared"`
	Frequencies  int        `json:"frequencies"`
	MaxFrequency float64    `json:"maxFrequency"`
	Points       []FitPoint `json:"points"`
}

// EffectiveMutationRate returns the fitted rate.
func (e *MutationRateEstimate) EffectiveMutationRate() float64 {
	return e.Rate
}

// EstimateEffectiveMutationRate fits M(f) = a + rate * (1/f - 1/fmax)
// by least squares, where M(f) is the number of frequencies >= f and
// fmax is the largest frequency. Under neutral evolution in a growing
// tumor, rate is the effective mutation rate. The input is expected to
// be restricted to a frequency window already; see WindowFilter.
func EstimateEffectiveMutationRate(freqs FrequencyScanner) (*MutationRateEstimate, error) {
	var all []float64
	for freqs.Scan() {
		all = append(all, freqs.Frequency())
	}
	if err := freqs.Err(); err != nil {
		return nil, err
	}
	if len(all) == 0 {
		return nil, errors.Wrap(utils.ErrEmptyInput, "no allele frequencies to estimate the effective mutation rate from")
	}
	sort.Sort(sort.Reverse(sort.Float64Slice(all)))
	fmax := all[0]
	if fmax <= 0 || math.IsInf(fmax, 0) {
		return nil, errors.Errorf("invalid maximum allele frequency %v", fmax)
	}

	var xs, ys []float64
	estimate := &MutationRateEstimate{Frequencies: len(all), MaxFrequency: fmax}
	for i, f := range all {
		if i+1 < len(all) && all[i+1] == f {
			continue
		}
		if f <= 0 {
			return nil, errors.Errorf("invalid allele frequency %v", f)
		}
		x := 1/f - 1/fmax
		xs = append(xs, x)
		ys = append(ys, float64(i+1))
		estimate.Points = append(estimate.Points, FitPoint{Frequency: f, InverseFrequency: 1 / f, ObservedCount: i + 1})
	}

	if len(xs) < 2 {
		log.Printf("Warning: only %v distinct allele frequencies, the effective mutation rate is reported as 0", len(xs))
		estimate.Intercept = float64(len(all))
		estimate.RSquared = 1
		for i := range estimate.Points {
			estimate.Points[i].ModelCount = estimate.Intercept
		}
		return estimate, nil
	}

	estimate.Intercept, estimate.Rate = stat.LinearRegression(xs, ys, nil, false)
	estimate.RSquared = stat.RSquared(xs, ys, nil, estimate.Intercept, estimate.Rate)
	for i, x := range xs {
		estimate.Points[i].ModelCount = estimate.Intercept + estimate.Rate*x
	}
	return estimate, nil
}
