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
	"sort"

	psort "github.com/exascience/pargo/sort"
)

// probabilityEntry associates a probability with the position of its
// record in the input stream.
type probabilityEntry struct {
	index int
	prob  float64
}

func sortByDecreasingProbability(entries []probabilityEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].prob > entries[j].prob
	})
}

type stableProbabilitySorter []probabilityEntry

func (s stableProbabilitySorter) SequentialSort(i, j int) {
	sortByDecreasingProbability(s[i:j])
}

func (s stableProbabilitySorter) NewTemp() psort.StableSorter {
	return stableProbabilitySorter(make([]probabilityEntry, len(s)))
}

func (s stableProbabilitySorter) Len() int {
	return len(s)
}

func (s stableProbabilitySorter) Less(i, j int) bool {
	return s[i].prob > s[j].prob
}

func (s stableProbabilitySorter) Assign(source psort.StableSorter) func(i, j, len int) {
	dst, src := s, source.(stableProbabilitySorter)
	return func(i, j, len int) {
		copy(dst[i:i+len], src[j:j+len])
	}
}

// parallelSortByDecreasingProbability sorts entries by decreasing
// probability. Entries with equal probabilities keep their input
// order.
func parallelSortByDecreasingProbability(entries []probabilityEntry) {
	psort.StableSort(stableProbabilitySorter(entries))
}

// tieGroupEnd returns the index one past the last entry, starting at
// i, that has the same probability as entries[i].
func tieGroupEnd(entries []probabilityEntry, i int) int {
	j := i + 1
	for j < len(entries) && entries[j].prob == entries[i].prob {
		j++
	}
	return j
}
