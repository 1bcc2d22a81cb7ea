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
	"strings"

	"github.com/samber/lo"

	"github.com/exascience/elstat/calls"
	"github.com/exascience/elstat/config"
	"github.com/exascience/elstat/estimation"
)

// FDRHelp is the help string for this command.
const FDRHelp = "\nfdr parameters:\n" +
	"elstat fdr --calls vcf-file --events event1,event2\n" +
	"[--output vcf-file]\n" +
	"[--config yaml-file]\n" +
	"[--log-path path]\n"

// removeOnError removes an output file that was created before a
// command failed.
func removeOnError(err *error, filename string) {
	if *err != nil && !isStdStream(filename) {
		_ = os.Remove(filename)
	}
}

// FDR implements the elstat fdr command.
func FDR() (err error) {
	var (
		input, output, events, configPath, logPath string
	)

	var flags flag.FlagSet
	flags.StringVar(&input, "calls", "", "annotate the calls in the specified VCF/BCF file")
	flags.StringVar(&output, "output", "/dev/stdout", "write the annotated calls to the specified file")
	flags.StringVar(&events, "events", "", "comma-separated names of the events to annotate")
	flags.StringVar(&configPath, "config", "", "read configuration from the specified YAML file")
	flags.StringVar(&logPath, "log-path", "", "write log files to the specified directory")

	parseFlags(&flags, 2, FDRHelp)

	setLogOutput(logPath)

	// sanity checks

	var sanityChecksFailed bool

	if !checkExist("--calls", input) {
		sanityChecksFailed = true
	}

	if !checkCreate("--output", output) {
		sanityChecksFailed = true
	}

	eventList := calls.ParseEvents(events)
	if len(eventList) == 0 {
		sanityChecksFailed = true
		log.Println("Error: No events given for command line parameter --events.")
	}

	if configPath != "" && !checkExist("--config", configPath) {
		sanityChecksFailed = true
	}

	if sanityChecksFailed {
		fmt.Fprint(os.Stderr, FDRHelp)
		os.Exit(1)
	}

	// fdr uses no configuration values, but rejects a bad configuration
	// file or environment like the other commands.
	if _, err = config.Load(configPath); err != nil {
		return err
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
	addProvenance(in.Header(), "fdr")

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

	names := lo.Map(eventList, func(event calls.Event, _ int) string {
		return string(event)
	})
	log.Println("Annotating local FDR for events", strings.Join(names, ", "))
	return estimation.AnnotateFDR(ctx, in, eventList, out)
}
