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

// elstat computes statistics over somatic variant calls: the effective
// mutation rate of a tumor from its allele frequency spectrum, local
// false discovery rates of event calls, and false discovery rate
// control against calls on simulated null data.
//
// Please see https://github.com/exascience/elstat for a documentation
// of the tool.
package main

import (
	"fmt"
	"log"
	"os"

	"github.com/exascience/elstat/cmd"
)

func printHelp() {
	fmt.Fprintln(os.Stderr, "Available commands: effective-mutation-rate, fdr, fdr-bh")
	fmt.Fprint(os.Stderr, "\n", cmd.EffectiveMutationRateHelp)
	fmt.Fprint(os.Stderr, "\n", cmd.FDRHelp)
	fmt.Fprint(os.Stderr, "\n", cmd.FDRBHHelp)
}

func main() {
	fmt.Fprintln(os.Stderr, cmd.ProgramMessage)
	if len(os.Args) < 2 {
		log.Println("Incorrect number of parameters.")
		fmt.Fprintln(os.Stderr, cmd.HelpMessage)
		printHelp()
		os.Exit(1)
	}

	var err error
	switch os.Args[1] {
	case "effective-mutation-rate":
		err = cmd.EffectiveMutationRate()
	case "fdr":
		err = cmd.FDR()
	case "fdr-bh":
		err = cmd.FDRBH()
	case "help", "-help", "--help", "-h", "--h":
		printHelp()
	default:
		log.Println("Unknown command", os.Args[1])
		printHelp()
		os.Exit(1)
	}
	if err != nil {
		log.Fatal(err)
	}
}
