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
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sys/unix"

	"github.com/exascience/elstat/config"
	"github.com/exascience/elstat/internal"
	"github.com/exascience/elstat/utils"
	"github.com/exascience/elstat/vcf"
)

// ProgramMessage is the first line printed when the elstat binary is
// called.
var ProgramMessage string

func init() {
	ProgramMessage = fmt.Sprint(
		"\n", utils.ProgramName, " version ", utils.ProgramVersion,
		" compiled with ", runtime.Version(),
		" - see ", utils.ProgramURL, " for more information.\n",
	)
}

// HelpMessage is printed to show the --help flag
const HelpMessage = "Print command details:\n" +
	"[--help]\n"

func parseFlags(flags *flag.FlagSet, requiredArgs int, help string) {
	if len(os.Args) < requiredArgs {
		fmt.Fprintln(os.Stderr, "Incorrect number of parameters.")
		fmt.Fprint(os.Stderr, help)
		os.Exit(1)
	}
	flags.SetOutput(io.Discard)
	if err := flags.Parse(os.Args[requiredArgs:]); err != nil {
		x := 0
		if err != flag.ErrHelp {
			fmt.Fprintln(os.Stderr, err)
			x = 1
		}
		fmt.Fprint(os.Stderr, help)
		os.Exit(x)
	}
	if flags.NArg() > 0 {
		fmt.Fprintln(os.Stderr, "Cannot parse remaining parameters:", flags.Args())
		fmt.Fprint(os.Stderr, help)
		os.Exit(1)
	}
}

func logCheckFile(parameter, format string, v ...interface{}) {
	if parameter != "" {
		log.Printf(format+" for command line parameter %v.\n", append(v, parameter)...)
	} else {
		log.Printf(format+".\n", v...)
	}
}

func isStdStream(filename string) bool {
	switch filename {
	case "-", "/dev/stdin", "/dev/stdout":
		return true
	default:
		return false
	}
}

func checkExist(parameter, filename string) bool {
	if len(filename) == 0 {
		logCheckFile(parameter, "Error: Missing filename")
		return false
	}
	if isStdStream(filename) {
		return true
	}
	if filename[0] == '-' {
		logCheckFile(parameter, "Error: Missing filename before %v", filename)
		return false
	}
	if _, err := os.Stat(filename); err == nil {
		return true
	} else if os.IsNotExist(err) {
		logCheckFile(parameter, "Error: File %v does not exist", filename)
		return false
	} else if os.IsPermission(err) {
		logCheckFile(parameter, "Error: No permission to read file %v", filename)
		return false
	} else {
		logCheckFile(parameter, "Error %v when trying to access file %v", err, filename)
		return false
	}
}

func checkCreate(parameter, filename string) bool {
	if len(filename) == 0 {
		logCheckFile(parameter, "Error: Missing filename")
		return false
	}
	if isStdStream(filename) {
		return true
	}
	if filename[0] == '-' {
		logCheckFile(parameter, "Error: Missing filename before %v", filename)
		return false
	}
	if _, err := os.Stat(filename); err == nil {
		// Assume that the file has been written by previous elstat runs, and can be overwritten.
		return true
	}
	err := os.MkdirAll(filepath.Dir(filename), 0700)
	if err == nil {
		err = os.WriteFile(filename, nil, 0666)
	}
	if err != nil {
		if os.IsPermission(err) {
			logCheckFile(parameter, "Error: No permission to create file %v", filename)
		} else {
			logCheckFile(parameter, "Error %v when trying to create file %v", err, filename)
		}
		return false
	}
	_ = os.Remove(filename)
	return true
}

func createLogFilename() string {
	t := time.Now()
	zone, _ := t.Zone()
	return fmt.Sprintf("logs/elstat/elstat-%d-%02d-%02d-%02d-%02d-%02d-%09d-%v.log", t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), zone)
}

// setLogOutput tees the log and stderr into a fresh log file below
// path. Without a path, logging goes to stderr only.
func setLogOutput(path string) {
	if path == "" {
		log.Println("Command line:", os.Args)
		return
	}
	fullPath, err := internal.FullPathname(filepath.Join(path, createLogFilename()))
	if err != nil {
		log.Panic(err)
	}
	internal.MkdirAll(filepath.Dir(fullPath), 0700)
	f := internal.FileCreate(fullPath)
	fmt.Fprintln(f, ProgramMessage)

	orgStderr, err := unix.Dup(2)
	if err != nil {
		log.Panic(err)
	}
	ferr := os.NewFile(uintptr(orgStderr), "/dev/stderr")
	if err := unix.Dup2(int(f.Fd()), 2); err != nil {
		log.Panic(err)
	}

	multi := io.MultiWriter(f, ferr)

	log.SetOutput(multi)
	log.Println("Created log file at", fullPath)
	log.Println("Command line:", os.Args)
}

// configFlags maps command line flags to the configuration fields
// they override.
var configFlags = map[string]struct {
	usage string
	apply func(dst, src *config.Config)
}{
	"min-af": {"lower bound of the allele frequency window", func(dst, src *config.Config) { dst.MinAF = src.MinAF }},
	"max-af": {"upper bound of the allele frequency window", func(dst, src *config.Config) { dst.MaxAF = src.MaxAF }},
	"alpha":  {"target false discovery rate", func(dst, src *config.Config) { dst.Alpha = src.Alpha }},
	"pi0":    {"assumed proportion of true nulls", func(dst, src *config.Config) { dst.Pi0 = src.Pi0 }},
	"estimate-pi0": {"estimate the proportion of true nulls from the data", func(dst, src *config.Config) {
		dst.EstimatePi0 = src.EstimatePi0
	}},
	"pi0-lambda": {"probability below which calls count as null when estimating pi0", func(dst, src *config.Config) {
		dst.Pi0Lambda = src.Pi0Lambda
	}},
	"tie-policy": {"count null calls tied with a threshold (inclusive) or not (strict)", func(dst, src *config.Config) {
		dst.TiePolicy = src.TiePolicy
	}},
}

// defineConfigFlags defines the named configuration flags on flags,
// storing their values in values.
func defineConfigFlags(flags *flag.FlagSet, values *config.Config, names ...string) {
	*values = config.Default()
	for _, name := range names {
		usage := configFlags[name].usage
		switch name {
		case "min-af":
			flags.Float64Var(&values.MinAF, name, values.MinAF, usage)
		case "max-af":
			flags.Float64Var(&values.MaxAF, name, values.MaxAF, usage)
		case "alpha":
			flags.Float64Var(&values.Alpha, name, values.Alpha, usage)
		case "pi0":
			flags.Float64Var(&values.Pi0, name, values.Pi0, usage)
		case "estimate-pi0":
			flags.BoolVar(&values.EstimatePi0, name, values.EstimatePi0, usage)
		case "pi0-lambda":
			flags.Float64Var(&values.Pi0Lambda, name, values.Pi0Lambda, usage)
		case "tie-policy":
			flags.StringVar(&values.TiePolicy, name, values.TiePolicy, usage)
		default:
			log.Panicf("unknown configuration flag %v", name)
		}
	}
}

// loadConfig loads the configuration file at path and the environment,
// and then applies the configuration flags that were given explicitly.
func loadConfig(flags *flag.FlagSet, path string, values *config.Config) (config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return cfg, err
	}
	flags.Visit(func(f *flag.Flag) {
		if entry, ok := configFlags[f.Name]; ok {
			entry.apply(&cfg, values)
		}
	})
	err = cfg.Validate()
	return cfg, err
}

// uint32Flag is a flag.Value that records whether it was set.
type uint32Flag struct {
	value uint32
	set   bool
}

func (f *uint32Flag) String() string {
	if f == nil || !f.set {
		return ""
	}
	return strconv.FormatUint(uint64(f.value), 10)
}

func (f *uint32Flag) Set(s string) error {
	v, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return err
	}
	f.value, f.set = uint32(v), true
	return nil
}

func (f *uint32Flag) get() *uint32 {
	if !f.set {
		return nil
	}
	return &f.value
}

// addProvenance records the command line and a fresh run id in the
// header of an annotated call set.
func addProvenance(header *vcf.Header, command string) {
	var value strings.Builder
	fmt.Fprintf(&value, "<ID=%v,Version=", command)
	_ = vcf.FormatString(&value, utils.ProgramVersion)
	fmt.Fprintf(&value, ",RunID=%v,Date=", uuid.New())
	_ = vcf.FormatString(&value, time.Now().Format(time.RFC3339))
	value.WriteString(",CommandLine=")
	_ = vcf.FormatString(&value, strings.Join(os.Args, " "))
	value.WriteByte('>')
	header.AddMeta(utils.ProgramName+"Command", value.String())
}

// signalContext returns a context that is cancelled on SIGINT or
// SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), unix.SIGINT, unix.SIGTERM)
}
