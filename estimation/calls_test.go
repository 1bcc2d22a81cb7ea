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
	"bufio"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/exascience/elstat/calls"
)

const testHeader = `##fileformat=VCFv4.2
##INFO=<ID=PROB_SOMATIC,Number=1,Type=Float,Description="PHRED-scaled posterior probability for somatic variant">
##INFO=<ID=PROB_GERMLINE,Number=1,Type=Float,Description="PHRED-scaled posterior probability for germline variant">
#CHROM	POS	ID	REF	ALT	QUAL	FILTER	INFO	FORMAT	tumor
`

type testCall struct {
	ref, alt string
	info     string
}

func snv(info string) testCall {
	return testCall{ref: "A", alt: "T", info: info}
}

// somatic returns the INFO entry for a linear-scale somatic
// probability.
func somatic(p float64) string {
	return fmt.Sprintf("PROB_SOMATIC=%v", calls.ProbToPHRED(p))
}

func callSetText(testCalls []testCall) string {
	var text strings.Builder
	text.WriteString(testHeader)
	for i, call := range testCalls {
		fmt.Fprintf(&text, "chr1\t%v\t.\t%v\t%v\t.\tPASS\t%v\tGT\t0/1\n", 100*(i+1), call.ref, call.alt, call.info)
	}
	return text.String()
}

func readCallSet(t *testing.T, testCalls []testCall) *calls.Reader {
	reader, err := calls.NewReader("test", bufio.NewReader(strings.NewReader(callSetText(testCalls))))
	require.NoError(t, err)
	return reader
}

func callRecords(t *testing.T, testCalls []testCall) []*calls.Record {
	reader := readCallSet(t, testCalls)
	var records []*calls.Record
	for reader.Scan() {
		records = append(records, reader.Record())
	}
	require.NoError(t, reader.Err())
	return records
}
