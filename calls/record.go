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

package calls

import (
	"math"
	"strings"

	"github.com/pkg/errors"

	"github.com/exascience/elstat/vcf"
)

// Class is the classification of a record: its kind, and for indels
// its net length.
type Class struct {
	Kind   Kind
	Length uint32
}

// Classify determines the Class of a variant from REF and the first
// ALT allele. Indels are expected in anchored, normalized form (one
// shared leading base); symbolic <INS> and <DEL> alleles take their
// length from SVLEN.
func Classify(variant *vcf.Variant) (Class, error) {
	if len(variant.Alt) == 0 {
		return Class{}, nil
	}
	ref, alt := variant.Ref, variant.Alt[0]
	if strings.HasPrefix(alt, "<") {
		var kind Kind
		switch {
		case strings.HasPrefix(alt, "<DEL"):
			kind = Deletion
		case strings.HasPrefix(alt, "<INS"):
			kind = Insertion
		default:
			return Class{}, nil
		}
		svlen, ok, err := variant.InfoInt(vcf.SVLEN)
		if err != nil || !ok {
			return Class{}, err
		}
		if svlen < 0 {
			svlen = -svlen
		}
		return Class{Kind: kind, Length: uint32(svlen)}, nil
	}
	switch {
	case alt == "*" || alt == ".":
		return Class{}, nil
	case len(ref) == 1 && len(alt) == 1:
		if ref == alt {
			return Class{}, nil
		}
		return Class{Kind: SNV}, nil
	case len(ref) == 1 && len(alt) > 1:
		return Class{Kind: Insertion, Length: uint32(len(alt) - 1)}, nil
	case len(alt) == 1 && len(ref) > 1:
		return Class{Kind: Deletion, Length: uint32(len(ref) - 1)}, nil
	default:
		return Class{}, nil
	}
}

// PHREDToProb converts a PHRED-scaled value q to the probability
// 10^(-q/10).
func PHREDToProb(q float64) float64 {
	return math.Pow(10, -q/10)
}

// ProbToPHRED converts a probability to its PHRED-scaled value.
func ProbToPHRED(p float64) float64 {
	return -10 * math.Log10(p)
}

// A Record is one variant of a call set, with its classification.
type Record struct {
	*vcf.Variant
	Class Class
}

// NewRecord classifies a variant and wraps it in a Record.
func NewRecord(variant *vcf.Variant) (*Record, error) {
	class, err := Classify(variant)
	if err != nil {
		return nil, err
	}
	return &Record{Variant: variant, Class: class}, nil
}

// Probability returns the linear-scale probability of the event. ok
// is false when the record carries no value for the event; that is
// never reported as probability 0.
func (r *Record) Probability(e Event) (p float64, ok bool, err error) {
	q, ok, err := r.InfoFloat(e.ProbabilityKey())
	if err != nil || !ok || math.IsNaN(q) {
		return 0, false, err
	}
	if q < 0 {
		return 0, false, errors.Errorf("negative PHRED value %v for %v at %v:%v", q, *e.ProbabilityKey(), r.Chrom, r.Pos)
	}
	return PHREDToProb(q), true, nil
}
