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

package cmd

import (
	"flag"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/exascience/elstat/config"
	"github.com/exascience/elstat/utils"
	"github.com/exascience/elstat/vcf"
)

func TestConfigFlagPrecedence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "elstat.yaml")
	require.NoError(t, os.WriteFile(path, []byte("alpha: 0.1\npi0: 0.8\ntie_policy: strict\n"), 0o644))
	t.Setenv("ELSTAT_PI0", "0.9")
	t.Setenv("ELSTAT_PI0_LAMBDA", "0.4")

	var values config.Config
	var flags flag.FlagSet
	defineConfigFlags(&flags, &values, "alpha", "pi0", "pi0-lambda", "tie-policy")
	require.NoError(t, flags.Parse([]string{"--pi0", "0.7", "--tie-policy", "inclusive"}))

	cfg, err := loadConfig(&flags, path, &values)
	require.NoError(t, err)
	assert.Equal(t, 0.1, cfg.Alpha)
	assert.Equal(t, 0.7, cfg.Pi0)
	assert.Equal(t, 0.4, cfg.Pi0Lambda)
	assert.Equal(t, config.TieInclusive, cfg.TiePolicy)
	assert.Equal(t, 0.12, cfg.MinAF)

	var flags2 flag.FlagSet
	defineConfigFlags(&flags2, &values, "alpha")
	require.NoError(t, flags2.Parse([]string{"--alpha", "0"}))
	_, err = loadConfig(&flags2, "", &values)
	assert.ErrorIs(t, err, utils.ErrConfiguration)
}

func TestUint32Flag(t *testing.T) {
	var minLen, maxLen uint32Flag
	var flags flag.FlagSet
	flags.Var(&minLen, "min-len", "")
	flags.Var(&maxLen, "max-len", "")
	require.NoError(t, flags.Parse([]string{"--min-len", "3"}))
	require.NotNil(t, minLen.get())
	assert.Equal(t, uint32(3), *minLen.get())
	assert.Equal(t, "3", minLen.String())
	assert.Nil(t, maxLen.get())
	assert.Equal(t, "", maxLen.String())

	var flags2 flag.FlagSet
	flags2.SetOutput(nil)
	flags2.Var(&maxLen, "max-len", "")
	assert.Error(t, flags2.Parse([]string{"--max-len", "-1"}))
}

func TestAddProvenance(t *testing.T) {
	header := vcf.NewHeader()
	addProvenance(header, "fdr")
	require.Len(t, header.Meta, 1)
	meta := header.Meta[0]
	assert.Equal(t, "elstatCommand", meta.Key)
	assert.True(t, strings.HasPrefix(meta.Value, "<ID=fdr,Version=\""+utils.ProgramVersion+"\",RunID="))
	assert.True(t, strings.HasSuffix(meta.Value, "\">"))
}

func TestCheckFiles(t *testing.T) {
	dir := t.TempDir()
	existing := filepath.Join(dir, "calls.vcf")
	require.NoError(t, os.WriteFile(existing, nil, 0o644))

	assert.True(t, checkExist("--calls", existing))
	assert.True(t, checkExist("--calls", "-"))
	assert.False(t, checkExist("--calls", filepath.Join(dir, "missing.vcf")))
	assert.False(t, checkExist("--calls", ""))
	assert.False(t, checkExist("--calls", "--events"))

	created := filepath.Join(dir, "out", "annotated.vcf")
	assert.True(t, checkCreate("--output", created))
	_, err := os.Stat(created)
	assert.True(t, os.IsNotExist(err))
	assert.True(t, checkCreate("--output", "/dev/stdout"))
	assert.False(t, checkCreate("--output", ""))
}
