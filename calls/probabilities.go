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
	"context"

	"github.com/exascience/pargo/pipeline"
	"github.com/pkg/errors"

	"github.com/exascience/elstat/vcf"
)

// A ProbabilitySource yields the probabilities of an event over the
// records of a given variant type. Records without a value for the
// event are skipped.
type ProbabilitySource interface {
	Probabilities(ctx context.Context, event Event, vartype VariantType) ([]float64, error)
}

// MaxLineSize is the longest data line a ProbabilityFile accepts.
const MaxLineSize = 1 << 30

// RecordProbabilities is a ProbabilitySource over records held in
// memory.
type RecordProbabilities []*Record

// Probabilities implements ProbabilitySource.
func (records RecordProbabilities) Probabilities(ctx context.Context, event Event, vartype VariantType) ([]float64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var probs []float64
	for _, record := range records {
		p, ok, err := selectProbability(record, event, vartype)
		if err != nil {
			return nil, err
		}
		if ok {
			probs = append(probs, p)
		}
	}
	return probs, nil
}

func selectProbability(record *Record, event Event, vartype VariantType) (float64, bool, error) {
	if !vartype.Matches(record) {
		return 0, false, nil
	}
	return record.Probability(event)
}

// ProbabilityFile is a ProbabilitySource over a call set on disk. Its
// records are parsed in parallel and only their probabilities are
// retained.
type ProbabilityFile string

// Probabilities implements ProbabilitySource. The result is in file
// order.
func (filename ProbabilityFile) Probabilities(ctx context.Context, event Event, vartype VariantType) (probs []float64, err error) {
	name := string(filename)
	input, err := vcf.Open(name)
	if err != nil {
		return nil, errors.Wrapf(err, "couldn't open call set %v", name)
	}
	defer func() {
		if nerr := input.Close(); err == nil && nerr != nil {
			probs, err = nil, errors.Wrapf(nerr, "couldn't close %v", name)
		}
	}()
	if _, _, err = vcf.ParseHeader(input.Reader); err != nil {
		return nil, errors.Wrapf(err, "couldn't parse VCF header of %v", name)
	}
	scanner := pipeline.NewScanner(input.Reader)
	scanner.Buffer(make([]byte, 0, 64*1024), MaxLineSize)
	var p pipeline.Pipeline
	p.Source(scanner)
	p.Add(pipeline.LimitedPar(0, pipeline.Receive(func(_ int, data interface{}) interface{} {
		lines := data.([]string)
		batch := make([]float64, 0, len(lines))
		if err := ctx.Err(); err != nil {
			p.SetErr(err)
			return batch
		}
		var sc vcf.StringScanner
		for _, line := range lines {
			if line == "" {
				continue
			}
			record, err := parseRecord(&sc, line)
			if err != nil {
				p.SetErr(err)
				return batch
			}
			prob, ok, err := selectProbability(record, event, vartype)
			if err != nil {
				p.SetErr(err)
				return batch
			}
			if ok {
				batch = append(batch, prob)
			}
		}
		return batch
	})))
	p.Add(pipeline.Ord(pipeline.Receive(func(_ int, data interface{}) interface{} {
		probs = append(probs, data.([]float64)...)
		return data
	})))
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	p.RunWithContext(runCtx, cancel)
	if err = p.Err(); err == nil {
		err = ctx.Err()
	}
	if err != nil {
		return nil, errors.Wrapf(err, "while reading %v", name)
	}
	return probs, nil
}
