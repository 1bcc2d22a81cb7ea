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

	"github.com/pkg/errors"
	"github.com/willf/bitset"

	"github.com/exascience/elstat/calls"
	"github.com/exascience/elstat/utils"
	"github.com/exascience/elstat/vcf"
)

// requireProbabilityFields checks that the header declares the
// probability field of every event.
func requireProbabilityFields(header *vcf.Header, events ...calls.Event) error {
	for _, event := range events {
		if header.Info(event.ProbabilityKey()) == nil {
			return errors.Wrapf(utils.ErrConfiguration, "event %v: the call set declares no INFO field %v", event, *event.ProbabilityKey())
		}
	}
	return nil
}

func addFloatInfo(header *vcf.Header, id utils.Symbol, description string) error {
	info := vcf.NewFormatInformation()
	info.ID = id
	info.Number = 1
	info.Type = vcf.Float
	info.Description = description
	_, err := header.AddInfo(info)
	return err
}

// localFDR holds the local FDR of one event for every record; present
// marks the records that carry the event.
type localFDR struct {
	values  []float64
	present *bitset.BitSet
}

func computeLocalFDR(ctx context.Context, records []*calls.Record, event calls.Event) (*localFDR, error) {
	result := &localFDR{
		values:  make([]float64, len(records)),
		present: bitset.New(uint(len(records))),
	}
	var entries []probabilityEntry
	for i, record := range records {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		p, ok, err := record.Probability(event)
		if err != nil {
			return nil, err
		}
		if ok {
			entries = append(entries, probabilityEntry{index: i, prob: p})
			result.present.Set(uint(i))
		}
	}
	if len(entries) == 0 {
		return nil, errors.Wrapf(utils.ErrMissingEvent, "no record has a probability for event %v", event)
	}
	parallelSortByDecreasingProbability(entries)
	var falseDiscoveries float64
	for i := 0; i < len(entries); {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		end := tieGroupEnd(entries, i)
		for _, entry := range entries[i:end] {
			falseDiscoveries += 1 - entry.prob
		}
		fdr := falseDiscoveries / float64(end)
		for _, entry := range entries[i:end] {
			result.values[entry.index] = fdr
		}
		i = end
	}
	return result, nil
}

// AnnotateFDR annotates every record of in with the local false
// discovery rate of each event: for a record with probability p, the
// expected fraction of false calls among all records with probability
// >= p. The records are written to out in input order with an added
// FDR_<EVENT> INFO field; records without a probability for an event
// get no value for it.
//
// All records are buffered, so out receives nothing when an error is
// returned.
func AnnotateFDR(ctx context.Context, in calls.RecordScanner, events []calls.Event, out calls.RecordWriter) error {
	events = calls.UniqueEvents(events)
	if len(events) == 0 {
		return errors.Wrap(utils.ErrConfiguration, "no events given for FDR annotation")
	}
	header := in.Header()
	if err := requireProbabilityFields(header, events...); err != nil {
		return err
	}

	var records []*calls.Record
	for in.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		records = append(records, in.Record())
	}
	if err := in.Err(); err != nil {
		return err
	}
	if len(records) == 0 {
		return errors.Wrap(utils.ErrEmptyInput, "no records to annotate")
	}

	fdrs := make([]*localFDR, len(events))
	for i, event := range events {
		fdr, err := computeLocalFDR(ctx, records, event)
		if err != nil {
			return err
		}
		fdrs[i] = fdr
	}

	for _, event := range events {
		if err := addFloatInfo(header, event.FDRKey(), fmt.Sprintf("Local false discovery rate of %v calls with at least this probability", event)); err != nil {
			return err
		}
	}
	if err := out.WriteHeader(header); err != nil {
		return err
	}
	for i, record := range records {
		if err := ctx.Err(); err != nil {
			return err
		}
		for j, event := range events {
			if fdrs[j].present.Test(uint(i)) {
				record.SetInfoFloat(event.FDRKey(), fdrs[j].values[i])
			}
		}
		if err := out.Write(record); err != nil {
			return err
		}
	}
	return nil
}
