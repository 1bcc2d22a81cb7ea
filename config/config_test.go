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

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/exascience/elstat/utils"
)

func writeConfig(t *testing.T, contents string) string {
	path := filepath.Join(t.TempDir(), "elstat.yaml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

func TestDefault(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	assert.Equal(t, 0.12, cfg.MinAF)
	assert.Equal(t, 0.25, cfg.MaxAF)
	assert.Equal(t, 0.05, cfg.Alpha)
	assert.Equal(t, 1.0, cfg.Pi0)
	assert.False(t, cfg.EstimatePi0)
	assert.Equal(t, TieInclusive, cfg.TiePolicy)
}

func TestPrecedence(t *testing.T) {
	path := writeConfig(t, "min_af: 0.1\nalpha: 0.1\ntie_policy: Strict\n")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 0.1, cfg.MinAF)
	assert.Equal(t, 0.25, cfg.MaxAF)
	assert.Equal(t, 0.1, cfg.Alpha)
	assert.Equal(t, TieStrict, cfg.TiePolicy)

	t.Setenv("ELSTAT_ALPHA", "0.01")
	t.Setenv("ELSTAT_ESTIMATE_PI0", "true")
	cfg, err = Load(path)
	require.NoError(t, err)
	assert.Equal(t, 0.1, cfg.MinAF)
	assert.Equal(t, 0.01, cfg.Alpha)
	assert.True(t, cfg.EstimatePi0)
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	_, err = Load(writeConfig(t, "alpha: [1, 2]\n"))
	assert.ErrorIs(t, err, utils.ErrConfiguration)

	_, err = Load(writeConfig(t, "min_af: 0.3\nmax_af: 0.2\n"))
	assert.ErrorIs(t, err, utils.ErrConfiguration)

	t.Setenv("ELSTAT_PI0", "lots")
	_, err = Load("")
	assert.ErrorIs(t, err, utils.ErrConfiguration)
}

func TestValidate(t *testing.T) {
	for _, modify := range []func(*Config){
		func(c *Config) { c.MinAF = -0.1 },
		func(c *Config) { c.MaxAF = 1.5 },
		func(c *Config) { c.Alpha = 0 },
		func(c *Config) { c.Pi0 = 2 },
		func(c *Config) { c.Pi0Lambda = 0 },
		func(c *Config) { c.TiePolicy = "sometimes" },
	} {
		cfg := Default()
		modify(&cfg)
		assert.ErrorIs(t, cfg.Validate(), utils.ErrConfiguration)
	}
	cfg := Default()
	cfg.Alpha = 1
	assert.NoError(t, cfg.Validate())
}
