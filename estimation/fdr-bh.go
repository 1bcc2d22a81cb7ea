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

package estimation

import (
	"context"
	"fmt"
	"io"
	"math"
	"sort"
	"strings"

	"github.com/exascience/pargo/parallel"
	"github.com/grailbio/base/tsv"
	"github.com/pkg/errors"
	"github.com/willf/bitset"

	"github.com/exascience/elstat/calls"
	"github.com/exascience/elstat/utils"
	"github.com/exascience/elstat/vcf"
)

// TiePolicy determines which null calls count at a threshold t.
type TiePolicy int

// The tie policies. TieInclusive counts null calls with probability
// >= t, like observed calls; TieStrict counts only those > t.
const (
	TieInclusive TiePolicy = iota
	TieStrict
)

func (p TiePolicy) String() string {
	if p == TieStrict {
		return "strict"
	}
	return "inclusive"
}

// ParseTiePolicy maps "inclusive" and "strict" to a TiePolicy.
func ParseTiePolicy(name string) (TiePolicy, error) {
	switch strings.ToLower(name) {
	case "inclusive", "":
		return TieInclusive, nil
	case "strict":
		return TieStrict, nil
	default:
		return TieInclusive, errors.Wrapf(utils.ErrConfiguration, "unknown tie policy %q", name)
	}
}

// FDROptions are the parameters of ControlFDR.
type FDROptions struct {
	// Alpha is the target false discovery rate.
	Alpha float64
	// Pi0 is the assumed proportion of true nulls among the observed
	// calls. It is ignored when EstimatePi0 is set.
	Pi0         float64
	EstimatePi0 bool
	// Pi0Lambda is the probability below which calls are considered
	// null when estimating pi0.
	Pi0Lambda float64
	TiePolicy TiePolicy
}

// DefaultFDROptions returns alpha 0.05 with a fixed pi0 of 1.
func DefaultFDROptions() FDROptions {
	return FDROptions{Alpha: 0.05, Pi0: 1, Pi0Lambda: 0.5}
}

func (opts FDROptions) validate() error {
	switch {
	case !(opts.Alpha > 0 && opts.Alpha <= 1):
		return errors.Wrapf(utils.ErrConfiguration, "alpha %v must lie within (0, 1]", opts.Alpha)
	case !opts.EstimatePi0 && !(opts.Pi0 > 0 && opts.Pi0 <= 1):
		return errors.Wrapf(utils.ErrConfiguration, "pi0 %v must lie within (0, 1]", opts.Pi0)
	case opts.EstimatePi0 && !(opts.Pi0Lambda > 0 && opts.Pi0Lambda <= 1):
		return errors.Wrapf(utils.ErrConfiguration, "pi0 lambda %v must lie within (0, 1]", opts.Pi0Lambda)
	}
	return nil
}

// An FDRStep is one point of the empirical FDR curve, at a distinct
// observed probability.
type FDRStep struct {
	Threshold float64 `tsv:"threshold"`
	Observed  int     `tsv:"observed"`
	Null      int     `tsv:"null"`
	RawFDR    float64 `tsv:"raw_fdr"`
	FDR       float64 `tsv:"fdr"`
}

// ControlledFDR is the result of ControlFDR.
type ControlledFDR struct {
	Event       calls.Event
	VariantType calls.VariantType
	Alpha       float64
	Pi0         float64
	// Selected is false when no threshold achieves Alpha; Threshold
	// and FDR are then meaningless.
	Selected      bool
	Threshold     float64
	FDR           float64
	ObservedTotal int
	NullTotal     int
	Passed        int
	Steps         []FDRStep
}

// estimatePi0 estimates the proportion of true nulls from the calls
// below lambda. sortedNull is in decreasing order. It falls back to 1
// when either set has nothing below lambda.
func estimatePi0(observed []probabilityEntry, sortedNull []float64, lambda float64) float64 {
	var observedBelow int
	for _, entry := range observed {
		if entry.prob < lambda {
			observedBelow++
		}
	}
	nullBelow := len(sortedNull) - sort.Search(len(sortedNull), func(i int) bool {
		return sortedNull[i] < lambda
	})
	if nullBelow == 0 || observedBelow == 0 {
		return 1
	}
	pi0 := (float64(observedBelow) / float64(len(observed))) / (float64(nullBelow) / float64(len(sortedNull)))
	return math.Min(1, pi0)
}

// fdrCurve walks the observed probabilities (sorted by decreasing
// probability) and the null probabilities (decreasing) with two
// cursors, and computes the monotone empirical FDR at every distinct
// observed probability. efdr receives the FDR of each observed entry
// by input index.
func fdrCurve(ctx context.Context, observed []probabilityEntry, sortedNull []float64, pi0 float64, policy TiePolicy, efdr []float64) ([]FDRStep, error) {
	var steps []FDRStep
	nObserved, nNull := float64(len(observed)), float64(len(sortedNull))
	var fdr float64
	nullCount := 0
	for i := 0; i < len(observed); {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		end := tieGroupEnd(observed, i)
		t := observed[i].prob
		for nullCount < len(sortedNull) && (sortedNull[nullCount] > t || (policy == TieInclusive && sortedNull[nullCount] == t)) {
			nullCount++
		}
		raw := math.Min(1, pi0*(float64(nullCount)/nNull)/(float64(end)/nObserved))
		fdr = math.Max(fdr, raw)
		steps = append(steps, FDRStep{Threshold: t, Observed: end, Null: nullCount, RawFDR: raw, FDR: fdr})
		for _, entry := range observed[i:end] {
			efdr[entry.index] = fdr
		}
		i = end
	}
	return steps, nil
}

// ControlFDR selects a probability threshold for event calls of the
// given variant type such that the false discovery rate, estimated
// empirically against the null call set, does not exceed opts.Alpha.
//
// At each distinct observed probability t, the FDR is estimated as
// pi0 * (null(t)/N_null) / (observed(t)/N_observed), with the counts
// taken over calls with probability >= t. The estimates are made
// non-decreasing from the most confident end, and the least stringent
// t with an estimate <= Alpha is selected.
//
// The observed records of the variant type are written to out in
// input order, with an EFDR_<EVENT> field and, at or above the
// selected threshold, an EFDR_PASS_<EVENT> flag. Records of other
// variant types are dropped. Nothing is written when an error is
// returned.
func ControlFDR(
	ctx context.Context,
	observed calls.RecordScanner,
	null calls.ProbabilitySource,
	event calls.Event,
	vartype calls.VariantType,
	opts FDROptions,
	out calls.RecordWriter,
) (*ControlledFDR, error) {
	if err := vartype.Validate(); err != nil {
		return nil, err
	}
	if err := opts.validate(); err != nil {
		return nil, err
	}
	header := observed.Header()
	if err := requireProbabilityFields(header, event); err != nil {
		return nil, err
	}

	var (
		records     []*calls.Record
		entries     []probabilityEntry
		nullProbs   []float64
		nullErr     error
		observedErr error
	)
	parallel.Do(
		func() {
			if nullProbs, nullErr = null.Probabilities(ctx, event, vartype); nullErr == nil {
				sort.Sort(sort.Reverse(sort.Float64Slice(nullProbs)))
			}
		},
		func() {
			for observed.Scan() {
				if observedErr = ctx.Err(); observedErr != nil {
					return
				}
				record := observed.Record()
				if !vartype.Matches(record) {
					continue
				}
				p, ok, err := record.Probability(event)
				if err != nil {
					observedErr = err
					return
				}
				if ok {
					entries = append(entries, probabilityEntry{index: len(records), prob: p})
				}
				records = append(records, record)
			}
			observedErr = observed.Err()
		},
	)
	if nullErr != nil {
		return nil, nullErr
	}
	if observedErr != nil {
		return nil, observedErr
	}
	if len(nullProbs) == 0 {
		return nil, errors.Wrapf(utils.ErrEmptyNullSet, "no %v calls with a probability for event %v", vartype, event)
	}
	if len(entries) == 0 {
		return nil, errors.Wrapf(utils.ErrEmptyInput, "no observed %v calls with a probability for event %v", vartype, event)
	}

	parallelSortByDecreasingProbability(entries)
	result := &ControlledFDR{
		Event:         event,
		VariantType:   vartype,
		Alpha:         opts.Alpha,
		Pi0:           opts.Pi0,
		ObservedTotal: len(entries),
		NullTotal:     len(nullProbs),
	}
	if opts.EstimatePi0 {
		result.Pi0 = estimatePi0(entries, nullProbs, opts.Pi0Lambda)
	}
	efdr := make([]float64, len(records))
	steps, err := fdrCurve(ctx, entries, nullProbs, result.Pi0, opts.TiePolicy, efdr)
	if err != nil {
		return nil, err
	}
	result.Steps = steps
	for _, step := range steps {
		if step.FDR > opts.Alpha {
			break
		}
		result.Selected = true
		result.Threshold = step.Threshold
		result.FDR = step.FDR
		result.Passed = step.Observed
	}

	pass := bitset.New(uint(len(records)))
	hasFDR := bitset.New(uint(len(records)))
	for _, entry := range entries {
		hasFDR.Set(uint(entry.index))
		if result.Selected && entry.prob >= result.Threshold {
			pass.Set(uint(entry.index))
		}
	}

	if err := addFloatInfo(header, event.EmpiricalFDRKey(), fmt.Sprintf("Empirical false discovery rate of %v %v calls with at least this probability, estimated against a null model", vartype, event)); err != nil {
		return nil, err
	}
	passInfo := vcf.NewFormatInformation()
	passInfo.ID = event.PassKey()
	passInfo.Number = 0
	passInfo.Type = vcf.Flag
	passInfo.Description = fmt.Sprintf("Probability of %v is at or above the threshold controlling the empirical FDR at %v", event, opts.Alpha)
	if _, err := header.AddInfo(passInfo); err != nil {
		return nil, err
	}
	if err := out.WriteHeader(header); err != nil {
		return nil, err
	}
	for i, record := range records {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if hasFDR.Test(uint(i)) {
			record.SetInfoFloat(event.EmpiricalFDRKey(), efdr[i])
		}
		if pass.Test(uint(i)) {
			record.SetInfoFlag(event.PassKey())
		} else {
			record.Info, _ = record.Info.Delete(event.PassKey())
		}
		if err := out.Write(record); err != nil {
			return nil, err
		}
	}
	return result, nil
}

// WriteFDRTable writes the FDR curve as a table with one row per
// step.
func WriteFDRTable(steps []FDRStep, w io.Writer) error {
	writer := tsv.NewRowWriter(w)
	for i := range steps {
		if err := writer.Write(&steps[i]); err != nil {
			return errors.Wrap(err, "couldn't write FDR table")
		}
	}
	return writer.Flush()
}
