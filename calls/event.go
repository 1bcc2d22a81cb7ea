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
	"strings"

	"github.com/samber/lo"

	"github.com/exascience/elstat/utils"
)

// An Event is a named hypothesis about a variant, such as "somatic" or
// "germline". Only its name matters: it selects which probability
// field of a record is read.
type Event string

func (e Event) key(prefix string) utils.Symbol {
	return utils.Intern(prefix + strings.ToUpper(string(e)))
}

// ProbabilityKey is the INFO field holding the PHRED-scaled
// probability of the event.
func (e Event) ProbabilityKey() utils.Symbol {
	return e.key("PROB_")
}

// FDRKey is the INFO field that the local FDR annotation adds.
func (e Event) FDRKey() utils.Symbol {
	return e.key("FDR_")
}

// EmpiricalFDRKey is the INFO field that null-model FDR control adds.
func (e Event) EmpiricalFDRKey() utils.Symbol {
	return e.key("EFDR_")
}

// PassKey is the INFO flag that null-model FDR control sets on
// records at or above the selected threshold.
func (e Event) PassKey() utils.Symbol {
	return e.key("EFDR_PASS_")
}

// UniqueEvents drops events whose names differ only in case from an
// earlier one, since they share their INFO fields.
func UniqueEvents(events []Event) []Event {
	return lo.UniqBy(events, func(e Event) string {
		return strings.ToUpper(string(e))
	})
}

// ParseEvents splits comma-separated event names, dropping empty
// entries and duplicates while keeping the first-seen order.
func ParseEvents(names ...string) []Event {
	var events []Event
	for _, name := range names {
		for _, e := range strings.Split(name, ",") {
			if e = strings.TrimSpace(e); e != "" {
				events = append(events, Event(e))
			}
		}
	}
	return UniqueEvents(events)
}
