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
	"fmt"
	"strings"

	"github.com/pkg/errors"

	"github.com/exascience/elstat/utils"
)

// Kind is the kind of a variant.
type Kind uint8

// The variant kinds. Complex covers everything that is neither a
// single-base substitution nor a pure insertion or deletion, and is
// never selected by a VariantType.
const (
	Complex Kind = iota
	SNV
	Insertion
	Deletion
)

func (k Kind) String() string {
	switch k {
	case SNV:
		return "SNV"
	case Insertion:
		return "INS"
	case Deletion:
		return "DEL"
	default:
		return "COMPLEX"
	}
}

// A LengthRange bounds the net length of an indel to [Min, Max).
type LengthRange struct {
	Min, Max uint32
}

// Contains reports whether Min <= length < Max.
func (r LengthRange) Contains(length uint32) bool {
	return r.Min <= length && length < r.Max
}

// A VariantType selects records by kind and, for insertions and
// deletions, optionally by net length. A nil Range is unconstrained.
type VariantType struct {
	Kind  Kind
	Range *LengthRange
}

func (vt VariantType) String() string {
	if vt.Range == nil {
		return vt.Kind.String()
	}
	return fmt.Sprintf("%v[%v,%v)", vt.Kind, vt.Range.Min, vt.Range.Max)
}

// Validate checks that the variant type is SNV, INS or DEL, and that
// a length range, if any, is non-empty and belongs to an indel.
func (vt VariantType) Validate() error {
	switch vt.Kind {
	case SNV:
		if vt.Range != nil {
			return errors.Wrap(utils.ErrConfiguration, "a length range is not supported for SNVs")
		}
	case Insertion, Deletion:
		if vt.Range != nil && vt.Range.Min >= vt.Range.Max {
			return errors.Wrapf(utils.ErrConfiguration, "invalid length range [%v, %v): min-len must be less than max-len", vt.Range.Min, vt.Range.Max)
		}
	default:
		return errors.Wrapf(utils.ErrUnsupportedVariantType, "variant type %v", vt.Kind)
	}
	return nil
}

// Matches reports whether a record is of this variant type.
func (vt VariantType) Matches(record *Record) bool {
	class := record.Class
	if class.Kind != vt.Kind {
		return false
	}
	if vt.Range == nil || class.Kind == SNV {
		return true
	}
	return vt.Range.Contains(class.Length)
}

// ParseVariantType maps command line parameters to a VariantType.
// minLen and maxLen are nil when not given; they must be given
// together for INS and DEL, and are ignored for SNV.
func ParseVariantType(name string, minLen, maxLen *uint32) (VariantType, error) {
	var vt VariantType
	switch strings.ToUpper(name) {
	case "SNV":
		return VariantType{Kind: SNV}, nil
	case "INS":
		vt.Kind = Insertion
	case "DEL":
		vt.Kind = Deletion
	default:
		return vt, errors.Wrapf(utils.ErrUnsupportedVariantType, "variant type %q", name)
	}
	switch {
	case minLen != nil && maxLen != nil:
		vt.Range = &LengthRange{Min: *minLen, Max: *maxLen}
	case minLen != nil || maxLen != nil:
		return vt, errors.Wrap(utils.ErrConfiguration, "min-len and max-len must be given together")
	}
	return vt, vt.Validate()
}
