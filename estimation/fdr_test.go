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
	"path/filepath"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/exascience/elstat/calls"
	"github.com/exascience/elstat/utils"
)

func fdrValue(t *testing.T, record *calls.Record, event calls.Event) (float64, bool) {
	fdr, ok, err := record.InfoFloat(event.FDRKey())
	require.NoError(t, err)
	return fdr, ok
}

func TestAnnotateFDR(t *testing.T) {
	in := readCallSet(t, []testCall{
		snv(somatic(0.9)),
		snv(somatic(0.99)),
		snv("PROB_SOMATIC=."),
		snv(somatic(0.9) + ";PROB_GERMLINE=0"),
		snv(somatic(0.5)),
	})
	var out calls.SliceWriter
	require.NoError(t, AnnotateFDR(context.Background(), in, calls.ParseEvents("somatic,germline,SOMATIC"), &out))
	require.Len(t, out.Records, 5)
	require.NotNil(t, out.Header.Info(utils.Intern("FDR_SOMATIC")))
	require.NotNil(t, out.Header.Info(utils.Intern("FDR_GERMLINE")))

	somaticEvent := calls.Event("somatic")
	expected := []float64{0.07, 0.01, -1, 0.07, 0.1775}
	for i, record := range out.Records {
		assert.Equal(t, int32(100*(i+1)), record.Pos)
		fdr, ok := fdrValue(t, record, somaticEvent)
		if expected[i] < 0 {
			assert.False(t, ok)
			continue
		}
		assert.True(t, ok)
		assert.InDelta(t, expected[i], fdr, 1e-9, "record %v", i)
	}

	germline, ok := fdrValue(t, out.Records[3], calls.Event("germline"))
	assert.True(t, ok)
	assert.Equal(t, 0.0, germline)
	_, ok = fdrValue(t, out.Records[0], calls.Event("germline"))
	assert.False(t, ok)
}

func TestLocalFDRMonotone(t *testing.T) {
	probs := []float64{0.3, 0.999, 0.5, 0.8, 0.8, 0.01, 0.95, 0.6, 0.999, 0.2, 0.75}
	var testCalls []testCall
	for _, p := range probs {
		testCalls = append(testCalls, snv(somatic(p)))
	}
	var out calls.SliceWriter
	require.NoError(t, AnnotateFDR(context.Background(), readCallSet(t, testCalls), []calls.Event{"somatic"}, &out))

	type annotated struct{ prob, fdr float64 }
	var values []annotated
	for _, record := range out.Records {
		p, ok, err := record.Probability("somatic")
		require.NoError(t, err)
		require.True(t, ok)
		fdr, ok := fdrValue(t, record, "somatic")
		require.True(t, ok)
		values = append(values, annotated{p, fdr})
	}
	sort.Slice(values, func(i, j int) bool { return values[i].prob > values[j].prob })
	for i := 1; i < len(values); i++ {
		assert.GreaterOrEqual(t, values[i].fdr, values[i-1].fdr)
		if values[i].prob == values[i-1].prob {
			assert.Equal(t, values[i].fdr, values[i-1].fdr)
		}
	}
}

func TestAnnotateFDRErrors(t *testing.T) {
	ctx := context.Background()

	var out calls.SliceWriter
	err := AnnotateFDR(ctx, readCallSet(t, []testCall{snv(somatic(0.9))}), []calls.Event{"loh"}, &out)
	assert.ErrorIs(t, err, utils.ErrConfiguration)
	assert.Nil(t, out.Header)

	err = AnnotateFDR(ctx, readCallSet(t, []testCall{snv(somatic(0.9))}), nil, &out)
	assert.ErrorIs(t, err, utils.ErrConfiguration)

	err = AnnotateFDR(ctx, readCallSet(t, []testCall{snv(somatic(0.9)), snv("DP=3")}), []calls.Event{"somatic", "germline"}, &out)
	assert.ErrorIs(t, err, utils.ErrMissingEvent)
	assert.Nil(t, out.Header)
	assert.Empty(t, out.Records)

	err = AnnotateFDR(ctx, readCallSet(t, nil), []calls.Event{"somatic"}, &out)
	assert.ErrorIs(t, err, utils.ErrEmptyInput)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	err = AnnotateFDR(cancelled, readCallSet(t, []testCall{snv(somatic(0.9))}), []calls.Event{"somatic"}, &out)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, out.Header)
}

func TestAnnotateFDRReread(t *testing.T) {
	testCalls := []testCall{
		snv(somatic(0.9)),
		{ref: "A", alt: "ACG", info: somatic(0.7)},
		{ref: "ACG", alt: "A", info: somatic(0.2)},
		snv("PROB_SOMATIC=."),
	}
	path := filepath.Join(t.TempDir(), "annotated.vcf.gz")
	out, err := calls.Create(path)
	require.NoError(t, err)
	require.NoError(t, AnnotateFDR(context.Background(), readCallSet(t, testCalls), []calls.Event{"somatic"}, out))
	require.NoError(t, out.Close())

	original := callRecords(t, testCalls)
	reread, err := calls.Open(path)
	require.NoError(t, err)
	defer func() { require.NoError(t, reread.Close()) }()
	require.NotNil(t, reread.Header().Info(utils.Intern("FDR_SOMATIC")))
	i := 0
	for ; reread.Scan(); i++ {
		record := reread.Record()
		require.Less(t, i, len(original))
		assert.Equal(t, original[i].Chrom, record.Chrom)
		assert.Equal(t, original[i].Pos, record.Pos)
		assert.Equal(t, original[i].Class, record.Class)
		assert.Equal(t, original[i].Samples, record.Samples)
		p, ok, err := record.Probability("somatic")
		require.NoError(t, err)
		q, qok, err := original[i].Probability("somatic")
		require.NoError(t, err)
		assert.Equal(t, qok, ok)
		assert.Equal(t, q, p)
		_, hasFDR := fdrValue(t, record, "somatic")
		assert.Equal(t, ok, hasFDR)
	}
	require.NoError(t, reread.Err())
	assert.Equal(t, len(original), i)
}
