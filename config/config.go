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

// Package config holds the tunable parameters of the elstat commands.
//
// Values are taken, from lowest to highest priority, from the
// built-in defaults, an optional YAML file, ELSTAT_* environment
// variables, and finally explicitly given command line flags.
package config

import (
	"math"
	"os"
	"strings"

	"github.com/kelseyhightower/envconfig"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/exascience/elstat/utils"
)

// EnvPrefix is the prefix of the environment variables that override
// configuration values.
const EnvPrefix = "elstat"

// Tie policies for counting null calls at a threshold.
const (
	TieInclusive = "inclusive"
	TieStrict    = "strict"
)

// Config holds the statistics parameters shared by the commands.
type Config struct {
	MinAF       float64 `yaml:"min_af" envconfig:"MIN_AF"`
	MaxAF       float64 `yaml:"max_af" envconfig:"MAX_AF"`
	Alpha       float64 `yaml:"alpha" envconfig:"ALPHA"`
	Pi0         float64 `yaml:"pi0" envconfig:"PI0"`
	EstimatePi0 bool    `yaml:"estimate_pi0" envconfig:"ESTIMATE_PI0"`
	Pi0Lambda   float64 `yaml:"pi0_lambda" envconfig:"PI0_LAMBDA"`
	TiePolicy   string  `yaml:"tie_policy" envconfig:"TIE_POLICY"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		MinAF:     0.12,
		MaxAF:     0.25,
		Alpha:     0.05,
		Pi0:       1,
		Pi0Lambda: 0.5,
		TiePolicy: TieInclusive,
	}
}

// Load returns the default configuration, overridden by the YAML file
// at path (if path is not empty) and then by the environment. The
// result is validated.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, errors.Wrapf(err, "couldn't read config file %v", path)
		}
		if err = yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, errors.Wrapf(utils.ErrConfiguration, "invalid config file %v: %v", path, err)
		}
	}
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return cfg, errors.Wrapf(utils.ErrConfiguration, "invalid environment: %v", err)
	}
	err := cfg.Validate()
	return cfg, err
}

func isProbability(x float64) bool {
	return !math.IsNaN(x) && x >= 0 && x <= 1
}

// Validate checks that all values are in range.
func (cfg *Config) Validate() error {
	switch {
	case !isProbability(cfg.MinAF) || !isProbability(cfg.MaxAF):
		return errors.Wrapf(utils.ErrConfiguration, "allele frequency window [%v, %v] must lie within [0, 1]", cfg.MinAF, cfg.MaxAF)
	case cfg.MinAF > cfg.MaxAF:
		return errors.Wrapf(utils.ErrConfiguration, "min-af %v exceeds max-af %v", cfg.MinAF, cfg.MaxAF)
	case !isProbability(cfg.Alpha) || cfg.Alpha == 0:
		return errors.Wrapf(utils.ErrConfiguration, "alpha %v must lie within (0, 1]", cfg.Alpha)
	case !isProbability(cfg.Pi0) || cfg.Pi0 == 0:
		return errors.Wrapf(utils.ErrConfiguration, "pi0 %v must lie within (0, 1]", cfg.Pi0)
	case !isProbability(cfg.Pi0Lambda) || cfg.Pi0Lambda == 0:
		return errors.Wrapf(utils.ErrConfiguration, "pi0-lambda %v must lie within (0, 1]", cfg.Pi0Lambda)
	}
	switch strings.ToLower(cfg.TiePolicy) {
	case TieInclusive, TieStrict:
		cfg.TiePolicy = strings.ToLower(cfg.TiePolicy)
	default:
		return errors.Wrapf(utils.ErrConfiguration, "unknown tie policy %q, expected %v or %v", cfg.TiePolicy, TieInclusive, TieStrict)
	}
	return nil
}
