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
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/exascience/elstat/calls"
	"github.com/exascience/elstat/utils"
)

var snvType = calls.VariantType{Kind: calls.SNV}

func somaticCalls(probs ...float64) []testCall {
	var result []testCall
	for _, p := range probs {
		result = append(result, snv(somatic(p)))
	}
	return result
}

func empiricalFDR(t *testing.T, record *calls.Record) (float64, bool) {
	value, ok, err := record.InfoFloat(calls.Event("somatic").EmpiricalFDRKey())
	require.NoError(t, err)
	return value, ok
}

func passes(record *calls.Record) bool {
	return record.Info.Has(calls.Event("somatic").PassKey())
}

func TestControlFDR(t *testing.T) {
	observed := somaticCalls(0.9, 0.99, 0.2, 0.95, 0.5, 0.99)
	observed = append(observed, testCall{ref: "AC", alt: "A", info: somatic(0.999)})
	null := calls.RecordProbabilities(callRecords(t, somaticCalls(0.92, 0.3, 0.1, 0.05)))

	var out calls.SliceWriter
	result, err := ControlFDR(context.Background(), readCallSet(t, observed), null, "somatic", snvType, DefaultFDROptions(), &out)
	require.NoError(t, err)

	assert.True(t, result.Selected)
	assert.InDelta(t, 0.95, result.Threshold, 1e-9)
	assert.Equal(t, 0.0, result.FDR)
	assert.Equal(t, 3, result.Passed)
	assert.Equal(t, 6, result.ObservedTotal)
	assert.Equal(t, 4, result.NullTotal)
	assert.Equal(t, 1.0, result.Pi0)

	require.Len(t, result.Steps, 5)
	var fdrs, raws []float64
	var observedCounts, nullCounts []int
	for _, step := range result.Steps {
		fdrs = append(fdrs, step.FDR)
		raws = append(raws, step.RawFDR)
		observedCounts = append(observedCounts, step.Observed)
		nullCounts = append(nullCounts, step.Null)
	}
	assert.Equal(t, []int{2, 3, 4, 5, 6}, observedCounts)
	assert.Equal(t, []int{0, 0, 1, 1, 2}, nullCounts)
	assert.InDeltaSlice(t, []float64{0, 0, 0.375, 0.375, 0.5}, fdrs, 1e-9)
	assert.InDeltaSlice(t, []float64{0, 0, 0.375, 0.3, 0.5}, raws, 1e-9)

	require.Len(t, out.Records, 6)
	require.NotNil(t, out.Header.Info(utils.Intern("EFDR_SOMATIC")))
	require.NotNil(t, out.Header.Info(utils.Intern("EFDR_PASS_SOMATIC")))
	expectedFDR := []float64{0.375, 0, 0.5, 0, 0.375, 0}
	expectedPass := []bool{false, true, false, true, false, true}
	for i, record := range out.Records {
		assert.Equal(t, calls.SNV, record.Class.Kind)
		value, ok := empiricalFDR(t, record)
		assert.True(t, ok)
		assert.InDelta(t, expectedFDR[i], value, 1e-9, "record %v", i)
		assert.Equal(t, expectedPass[i], passes(record), "record %v", i)
	}
}

func TestControlFDRIdenticalNull(t *testing.T) {
	probs := []float64{0.99, 0.9, 0.9, 0.7, 0.4, 0.1}
	null := calls.RecordProbabilities(callRecords(t, somaticCalls(probs...)))

	opts := DefaultFDROptions()
	var out calls.SliceWriter
	result, err := ControlFDR(context.Background(), readCallSet(t, somaticCalls(probs...)), null, "somatic", snvType, opts, &out)
	require.NoError(t, err)
	assert.False(t, result.Selected)
	assert.Equal(t, 0, result.Passed)
	for _, step := range result.Steps {
		assert.InDelta(t, 1, step.FDR, 1e-9)
	}
	for _, record := range out.Records {
		assert.False(t, passes(record))
		value, ok := empiricalFDR(t, record)
		assert.True(t, ok)
		assert.InDelta(t, 1, value, 1e-9)
	}

	opts.Alpha = 1
	out = calls.SliceWriter{}
	result, err = ControlFDR(context.Background(), readCallSet(t, somaticCalls(probs...)), null, "somatic", snvType, opts, &out)
	require.NoError(t, err)
	assert.True(t, result.Selected)
	assert.InDelta(t, 1, result.FDR, 1e-9)
	assert.InDelta(t, 0.1, result.Threshold, 1e-9)
	assert.Equal(t, len(probs), result.Passed)
	for _, record := range out.Records {
		assert.True(t, passes(record))
	}
}

func TestControlFDRTiePolicy(t *testing.T) {
	observed := somaticCalls(0.99, 0.99, 0.95, 0.9, 0.5, 0.2)
	null := calls.RecordProbabilities(callRecords(t, somaticCalls(0.95, 0.3, 0.1, 0.05)))

	opts := DefaultFDROptions()
	result, err := ControlFDR(context.Background(), readCallSet(t, observed), null, "somatic", snvType, opts, &calls.SliceWriter{})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Steps[1].Null)
	assert.InDelta(t, 0.5, result.Steps[1].FDR, 1e-9)
	assert.InDelta(t, 0.99, result.Threshold, 1e-9)

	opts.TiePolicy = TieStrict
	result, err = ControlFDR(context.Background(), readCallSet(t, observed), null, "somatic", snvType, opts, &calls.SliceWriter{})
	require.NoError(t, err)
	assert.Equal(t, 0, result.Steps[1].Null)
	assert.Equal(t, 0.0, result.Steps[1].FDR)
	assert.InDelta(t, 0.95, result.Threshold, 1e-9)

	policy, err := ParseTiePolicy("Strict")
	require.NoError(t, err)
	assert.Equal(t, TieStrict, policy)
	assert.Equal(t, "strict", policy.String())
	_, err = ParseTiePolicy("loose")
	assert.ErrorIs(t, err, utils.ErrConfiguration)
}

func TestControlFDREstimatePi0(t *testing.T) {
	observed := somaticCalls(0.99, 0.99, 0.95, 0.9, 0.6, 0.2)
	null := calls.RecordProbabilities(callRecords(t, somaticCalls(0.92, 0.3, 0.1, 0.05)))
	opts := DefaultFDROptions()
	opts.EstimatePi0 = true
	result, err := ControlFDR(context.Background(), readCallSet(t, observed), null, "somatic", snvType, opts, &calls.SliceWriter{})
	require.NoError(t, err)
	assert.InDelta(t, (1.0/6)/(3.0/4), result.Pi0, 1e-9)
	assert.InDelta(t, result.Pi0*0.375, result.Steps[2].FDR, 1e-9)

	high := calls.RecordProbabilities(callRecords(t, somaticCalls(0.92, 0.8)))
	result, err = ControlFDR(context.Background(), readCallSet(t, observed), high, "somatic", snvType, opts, &calls.SliceWriter{})
	require.NoError(t, err)
	assert.Equal(t, 1.0, result.Pi0)
}

func TestControlFDRErrors(t *testing.T) {
	ctx := context.Background()
	observed := somaticCalls(0.99, 0.5)
	deletions := []testCall{{ref: "ACG", alt: "A", info: somatic(0.9)}}

	var out calls.SliceWriter
	_, err := ControlFDR(ctx, readCallSet(t, observed), calls.RecordProbabilities(callRecords(t, deletions)), "somatic", snvType, DefaultFDROptions(), &out)
	assert.ErrorIs(t, err, utils.ErrEmptyNullSet)
	assert.Nil(t, out.Header)
	assert.Empty(t, out.Records)

	null := calls.RecordProbabilities(callRecords(t, observed))
	_, err = ControlFDR(ctx, readCallSet(t, deletions), null, "somatic", snvType, DefaultFDROptions(), &out)
	assert.ErrorIs(t, err, utils.ErrEmptyInput)
	assert.Nil(t, out.Header)

	_, err = ControlFDR(ctx, readCallSet(t, observed), null, "somatic", calls.VariantType{Kind: calls.Complex}, DefaultFDROptions(), &out)
	assert.ErrorIs(t, err, utils.ErrUnsupportedVariantType)

	_, err = ControlFDR(ctx, readCallSet(t, observed), null, "loh", snvType, DefaultFDROptions(), &out)
	assert.ErrorIs(t, err, utils.ErrConfiguration)

	opts := DefaultFDROptions()
	opts.Alpha = 0
	_, err = ControlFDR(ctx, readCallSet(t, observed), null, "somatic", snvType, opts, &out)
	assert.ErrorIs(t, err, utils.ErrConfiguration)
	assert.Nil(t, out.Header)
}

func TestControlFDRFiles(t *testing.T) {
	dir := t.TempDir()
	nullPath := filepath.Join(dir, "null.vcf.gz")
	nullOut, err := calls.Create(nullPath)
	require.NoError(t, err)
	nullIn := readCallSet(t, somaticCalls(0.92, 0.3, 0.1, 0.05))
	require.NoError(t, nullOut.WriteHeader(nullIn.Header()))
	for nullIn.Scan() {
		require.NoError(t, nullOut.Write(nullIn.Record()))
	}
	require.NoError(t, nullOut.Close())

	observed := somaticCalls(0.9, 0.99, 0.2, 0.95, 0.5, 0.99)
	fromFile, err := ControlFDR(context.Background(), readCallSet(t, observed), calls.ProbabilityFile(nullPath), "somatic", snvType, DefaultFDROptions(), &calls.SliceWriter{})
	require.NoError(t, err)
	inMemory, err := ControlFDR(context.Background(), readCallSet(t, observed), calls.RecordProbabilities(callRecords(t, somaticCalls(0.92, 0.3, 0.1, 0.05))), "somatic", snvType, DefaultFDROptions(), &calls.SliceWriter{})
	require.NoError(t, err)
	assert.Equal(t, inMemory, fromFile)

	var table bytes.Buffer
	require.NoError(t, WriteFDRTable(fromFile.Steps, &table))
	lines := strings.Split(strings.TrimSpace(table.String()), "\n")
	assert.Contains(t, []int{len(fromFile.Steps), len(fromFile.Steps) + 1}, len(lines))
	assert.Len(t, strings.Split(lines[len(lines)-1], "\t"), 5)
}

func TestControlFDRLongNullLines(t *testing.T) {
	var null strings.Builder
	null.WriteString(testHeader)
	ad := strings.Repeat("12,", 30000) + "12"
	for i, p := range []float64{0.92, 0.3, 0.1, 0.05} {
		fmt.Fprintf(&null, "chr1\t%v\t.\tA\tT\t.\tPASS\t%v\tGT:AD\t0/1:%v\n", 100*(i+1), somatic(p), ad)
	}
	require.Greater(t, len(ad), 64*1024)
	nullPath := filepath.Join(t.TempDir(), "null.vcf")
	require.NoError(t, os.WriteFile(nullPath, []byte(null.String()), 0o644))

	observed := somaticCalls(0.9, 0.99, 0.2, 0.95, 0.5, 0.99)
	result, err := ControlFDR(context.Background(), readCallSet(t, observed), calls.ProbabilityFile(nullPath), "somatic", snvType, DefaultFDROptions(), &calls.SliceWriter{})
	require.NoError(t, err)
	assert.Equal(t, 4, result.NullTotal)
	assert.Equal(t, 6, result.ObservedTotal)
}
