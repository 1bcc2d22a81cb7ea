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

package vcf

import (
	"bufio"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/exascience/elstat/utils"
)

// The supported VCF file format version.
const (
	FileFormatVersion           = "VCFv4.3"
	FileFormatVersionLine       = "##fileformat=VCFv4.3"
	fileFormatVersionLinePrefix = "##fileformat=VCFv4."
)

// DefaultHeaderColumns for VCF files.
var DefaultHeaderColumns = []string{"CHROM", "POS", "ID", "REF", "ALT", "QUAL", "FILTER", "INFO"}

// Type is an enumeration type for different VCF field types
type Type uint

// The different VCF field types
const (
	InvalidType Type = iota
	Integer
	Float
	Flag
	Character
	String
)

func (t Type) String() string {
	switch t {
	case Integer:
		return "Integer"
	case Float:
		return "Float"
	case Flag:
		return "Flag"
	case Character:
		return "Character"
	case String:
		return "String"
	default:
		return "Invalid"
	}
}

// Constants for format information Number entries.
const (
	NumberA int32 = -1 * (1 + iota)
	NumberR
	NumberG
	NumberDot
	InvalidNumber
)

// Commonly used VCF entries.
var (
	PASS  = utils.Intern("PASS")
	SVLEN = utils.Intern("SVLEN")
)

type (
	// FormatInformation is the parsed form of an INFO or FORMAT
	// meta-information line.
	FormatInformation struct {
		ID          utils.Symbol
		Description string // "" if not present
		Number      int32  // > InvalidNumber
		Type        Type
		Fields      utils.StringMap
	}

	// MetaLine is a ##key=value line of a VCF header. Value is kept
	// verbatim so that headers survive a read/write cycle unchanged.
	MetaLine struct {
		Key, Value string
	}

	// Header section of a VCF file.
	Header struct {
		FileFormat string
		Meta       []MetaLine
		Infos      []*FormatInformation
		Columns    []string
	}

	// Variant line in a VCF file.
	//
	// Only the fields that statistics need are decoded. ID, QUAL and
	// the sample columns are kept as raw text, and INFO values are
	// raw strings (or true for flags), so that formatting a Variant
	// reproduces the parsed line except for entries that were Set.
	Variant struct {
		Chrom   string
		Pos     int32 // < 0 if unknown
		ID      string
		Ref     string
		Alt     []string // nil/empty if missing
		Qual    string
		Filter  []utils.Symbol // nil/empty if missing
		Info    utils.SmallMap // values are string or bool
		Samples string         // FORMAT and sample columns, "" if absent
	}
)

// NewFormatInformation creates an empty instance.
func NewFormatInformation() *FormatInformation {
	return &FormatInformation{Number: InvalidNumber, Fields: make(utils.StringMap)}
}

// NewHeader creates an empty instance.
func NewHeader() *Header {
	return &Header{
		FileFormat: FileFormatVersionLine,
		Columns:    append([]string(nil), DefaultHeaderColumns...),
	}
}

// Info returns the INFO definition with the given ID, or nil.
func (header *Header) Info(id utils.Symbol) *FormatInformation {
	for _, info := range header.Infos {
		if info.ID == id {
			return info
		}
	}
	return nil
}

// AddInfo adds an INFO definition to the header, unless one with the
// same ID already exists. It returns false in the latter case.
func (header *Header) AddInfo(info *FormatInformation) (bool, error) {
	if header.Info(info.ID) != nil {
		return false, nil
	}
	var out strings.Builder
	if err := FormatFormatInformation(&out, info); err != nil {
		return false, err
	}
	header.Infos = append(header.Infos, info)
	header.Meta = append(header.Meta, MetaLine{Key: "INFO", Value: out.String()})
	return true, nil
}

// AddMeta appends a meta-information line.
func (header *Header) AddMeta(key, value string) {
	header.Meta = append(header.Meta, MetaLine{Key: key, Value: value})
}

// NSamples returns the number of sample columns.
func (header *Header) NSamples() int {
	n := len(header.Columns) - len(DefaultHeaderColumns) - 1
	if n < 0 {
		return 0
	}
	return n
}

// Pass determines whether the variant passed all filters.
func (v *Variant) Pass() bool {
	return len(v.Filter) == 1 && v.Filter[0] == PASS
}

// InfoString returns the raw text of an INFO entry. Flags yield "".
func (v *Variant) InfoString(key utils.Symbol) (string, bool) {
	value, ok := v.Info.Get(key)
	if !ok {
		return "", false
	}
	if s, isString := value.(string); isString {
		return s, true
	}
	return "", true
}

// InfoFloat parses the first value of an INFO entry as a float.
// A missing entry or a "." value yields ok == false without error.
func (v *Variant) InfoFloat(key utils.Symbol) (f float64, ok bool, err error) {
	s, found := v.InfoString(key)
	if !found {
		return 0, false, nil
	}
	if i := strings.IndexByte(s, ','); i >= 0 {
		s = s[:i]
	}
	if s == "" || s == "." {
		return 0, false, nil
	}
	f, err = strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false, errors.Wrapf(err, "invalid %v value in VCF variant at %v:%v", *key, v.Chrom, v.Pos)
	}
	return f, true, nil
}

// InfoInt parses the first value of an INFO entry as an integer.
func (v *Variant) InfoInt(key utils.Symbol) (i int64, ok bool, err error) {
	s, found := v.InfoString(key)
	if !found {
		return 0, false, nil
	}
	if j := strings.IndexByte(s, ','); j >= 0 {
		s = s[:j]
	}
	if s == "" || s == "." {
		return 0, false, nil
	}
	i, err = strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, false, errors.Wrapf(err, "invalid %v value in VCF variant at %v:%v", *key, v.Chrom, v.Pos)
	}
	return i, true, nil
}

// SetInfoFloat sets an INFO entry to the given float value.
func (v *Variant) SetInfoFloat(key utils.Symbol, value float64) {
	v.Info.Set(key, strconv.FormatFloat(value, 'g', -1, 64))
}

// SetInfoFlag sets an INFO flag.
func (v *Variant) SetInfoFlag(key utils.Symbol) {
	v.Info.Set(key, true)
}

// Format outputs a VCF header
func (header *Header) Format(out *bufio.Writer) error {
	_, _ = out.WriteString(header.FileFormat)
	_ = out.WriteByte('\n')
	for _, meta := range header.Meta {
		_, _ = out.WriteString("##")
		_, _ = out.WriteString(meta.Key)
		_ = out.WriteByte('=')
		_, _ = out.WriteString(meta.Value)
		_ = out.WriteByte('\n')
	}
	_ = out.WriteByte('#')
	_, _ = out.WriteString(strings.Join(header.Columns, "\t"))
	return out.WriteByte('\n')
}
