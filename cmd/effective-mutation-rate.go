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
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/pkg/errors"

	"github.com/exascience/elstat/config"
	"github.com/exascience/elstat/estimation"
	"github.com/exascience/elstat/internal"
)

// EffectiveMutationRateHelp is the help string for this command.
const EffectiveMutationRateHelp = "effective-mutation-rate parameters:\n" +
	"elstat effective-mutation-rate < allele-frequencies.tsv\n" +
	"[--min-af f]\n" +
	"[--max-af f]\n" +
	"[--fit json-file]\n" +
	"[--config yaml-file]\n" +
	"[--log-path path]\n"

// EffectiveMutationRate implements the elstat effective-mutation-rate
// command. It reads one allele frequency per line from stdin and
// prints the estimated effective mutation rate to stdout.
func EffectiveMutationRate() error {
	var (
		fit, configPath, logPath string
		values                   config.Config
	)

	var flags flag.FlagSet
	defineConfigFlags(&flags, &values, "min-af", "max-af")
	flags.StringVar(&fit, "fit", "", "write the fit diagnostics as JSON to the specified file")
	flags.StringVar(&configPath, "config", "", "read configuration from the specified YAML file")
	flags.StringVar(&logPath, "log-path", "", "write log files to the specified directory")

	parseFlags(&flags, 2, EffectiveMutationRateHelp)

	setLogOutput(logPath)

	// sanity checks

	var sanityChecksFailed bool

	if configPath != "" && !checkExist("--config", configPath) {
		sanityChecksFailed = true
	}

	if fit != "" && !checkCreate("--fit", fit) {
		sanityChecksFailed = true
	}

	if sanityChecksFailed {
		fmt.Fprint(os.Stderr, EffectiveMutationRateHelp)
		os.Exit(1)
	}

	cfg, err := loadConfig(&flags, configPath, &values)
	if err != nil {
		return err
	}

	log.Printf("Estimating the effective mutation rate from allele frequencies in [%v, %v].\n", cfg.MinAF, cfg.MaxAF)

	freqs, err := estimation.NewTSVFrequencies(os.Stdin)
	if err != nil {
		return err
	}
	estimate, err := estimation.EstimateEffectiveMutationRate(&estimation.WindowFilter{
		FrequencyScanner: freqs,
		Min:              cfg.MinAF,
		Max:              cfg.MaxAF,
	})
	if err != nil {
		return err
	}

	log.Printf("Fitted %v distinct frequencies out of %v, R-squared %v.\n", len(estimate.Points), estimate.Frequencies, estimate.RSquared)
	fmt.Println(estimate.EffectiveMutationRate())

	if fit != "" {
		data, err := json.MarshalIndent(estimate, "", "  ")
		if err != nil {
			return errors.Wrap(err, "couldn't encode fit diagnostics")
		}
		f := internal.FileCreate(fit)
		defer internal.Close(f)
		if _, err = f.Write(append(data, '\n')); err != nil {
			return errors.Wrapf(err, "couldn't write %v", fit)
		}
	}
	return nil
}
