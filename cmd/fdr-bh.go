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
	"fmt"
	"log"
	"os"

	"github.com/exascience/elstat/calls"
	"github.com/exascience/elstat/config"
	"github.com/exascience/elstat/estimation"
	"github.com/exascience/elstat/internal"
)

// FDRBHHelp is the help string for this command.
const FDRBHHelp = "\nfdr-bh parameters:\n" +
	"elstat fdr-bh --calls vcf-file --null-calls vcf-file --event event --vartype SNV|INS|DEL\n" +
	"[--min-len n --max-len n]\n" +
	"[--alpha a]\n" +
	"[--pi0 p | --estimate-pi0 [--pi0-lambda l]]\n" +
	"[--tie-policy inclusive|strict]\n" +
	"[--output vcf-file]\n" +
	"[--table tsv-file]\n" +
	"[--config yaml-file]\n" +
	"[--log-path path]\n"

// FDRBH implements the elstat fdr-bh command.
func FDRBH() (err error) {
	var (
		input, nullCalls, event, vartypeName, output, table, configPath, logPath string
		minLen, maxLen                                                           uint32Flag
		values                                                                   config.Config
	)

	var flags flag.FlagSet
	flags.StringVar(&input, "calls", "", "control the FDR of the calls in the specified VCF/BCF file")
	flags.StringVar(&nullCalls, "null-calls", "", "calls on data simulated under the null model")
	flags.StringVar(&event, "event", "", "name of the event to control the FDR for")
	flags.StringVar(&vartypeName, "vartype", "", "variant type: SNV, INS or DEL")
	flags.Var(&minLen, "min-len", "minimum net indel length (inclusive)")
	flags.Var(&maxLen, "max-len", "maximum net indel length (exclusive)")
	defineConfigFlags(&flags, &values, "alpha", "pi0", "estimate-pi0", "pi0-lambda", "tie-policy")
	flags.StringVar(&output, "output", "/dev/stdout", "write the annotated calls to the specified file")
	flags.StringVar(&table, "table", "", "write the FDR curve as a table to the specified file")
	flags.StringVar(&configPath, "config", "", "read configuration from the specified YAML file")
	flags.StringVar(&logPath, "log-path", "", "write log files to the specified directory")

	parseFlags(&flags, 2, FDRBHHelp)

	setLogOutput(logPath)

	// sanity checks

	var sanityChecksFailed bool

	if !checkExist("--calls", input) {
		sanityChecksFailed = true
	}

	if !checkExist("--null-calls", nullCalls) {
		sanityChecksFailed = true
	}

	eventList := calls.ParseEvents(event)
	if len(eventList) != 1 {
		sanityChecksFailed = true
		log.Println("Error: Exactly one event is required for command line parameter --event.")
	}

	if !checkCreate("--output", output) {
		sanityChecksFailed = true
	}

	if table != "" && !checkCreate("--table", table) {
		sanityChecksFailed = true
	}

	if configPath != "" && !checkExist("--config", configPath) {
		sanityChecksFailed = true
	}

	if sanityChecksFailed {
		fmt.Fprint(os.Stderr, FDRBHHelp)
		os.Exit(1)
	}

	vartype, err := calls.ParseVariantType(vartypeName, minLen.get(), maxLen.get())
	if err != nil {
		return err
	}
	if vartype.Kind == calls.SNV && (minLen.set || maxLen.set) {
		log.Println("Warning: The --min-len and --max-len parameters are ignored for SNVs.")
	}

	cfg, err := loadConfig(&flags, configPath, &values)
	if err != nil {
		return err
	}
	tiePolicy, err := estimation.ParseTiePolicy(cfg.TiePolicy)
	if err != nil {
		return err
	}
	opts := estimation.FDROptions{
		Alpha:       cfg.Alpha,
		Pi0:         cfg.Pi0,
		EstimatePi0: cfg.EstimatePi0,
		Pi0Lambda:   cfg.Pi0Lambda,
		TiePolicy:   tiePolicy,
	}

	ctx, cancel := signalContext()
	defer cancel()

	in, err := calls.Open(input)
	if err != nil {
		return err
	}
	defer func() {
		if nerr := in.Close(); err == nil {
			err = nerr
		}
	}()
	addProvenance(in.Header(), "fdr-bh")

	out, err := calls.Create(output)
	if err != nil {
		return err
	}
	defer removeOnError(&err, output)
	defer func() {
		if nerr := out.Close(); err == nil {
			err = nerr
		}
	}()

	log.Printf("Controlling the FDR of %v calls for event %v at alpha %v.\n", vartype, eventList[0], opts.Alpha)
	result, err := estimation.ControlFDR(ctx, in, calls.ProbabilityFile(nullCalls), eventList[0], vartype, opts, out)
	if err != nil {
		return err
	}

	log.Printf("%v observed and %v null calls, pi0 %v.\n", result.ObservedTotal, result.NullTotal, result.Pi0)
	if result.Selected {
		log.Printf("Selected probability threshold %v (PHRED %v) with empirical FDR %v, %v calls pass.\n",
			result.Threshold, calls.ProbToPHRED(result.Threshold), result.FDR, result.Passed)
	} else {
		log.Printf("Warning: No probability threshold achieves an empirical FDR of at most %v.\n", opts.Alpha)
	}

	if table != "" {
		f := internal.FileCreate(table)
		defer internal.Close(f)
		if err = estimation.WriteFDRTable(result.Steps, f); err != nil {
			return err
		}
	}
	return nil
}
