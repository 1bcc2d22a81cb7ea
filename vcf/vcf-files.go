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
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	"github.com/grailbio/hts/bgzf"
	"github.com/pkg/errors"

	"github.com/exascience/elstat/utils"
)

const (
	descriptionKey = "Description"
	idKey          = "ID"
	numberKey      = "Number"
	typeKey        = "Type"
)

// ParseMetaField parses a key=value field of a structured VCF
// meta-information line.
func (sc *StringScanner) ParseMetaField() (key, value string) {
	if sc.err != nil {
		return
	}
	sc.SkipSpace()
	start := sc.index
	for ; sc.index < len(sc.data); sc.index++ {
		if c := sc.data[sc.index]; (c == ' ') || (c == '=') {
			break
		}
	}
	key = sc.data[start:sc.index]
	sc.SkipSpace()
	if sc.index >= len(sc.data) || sc.data[sc.index] != '=' {
		sc.setErr(fmt.Errorf("invalid key=value pair in a VCF meta-information line: %v", sc.data))
		return
	}
	sc.index++
	start = sc.index
	if sc.index < len(sc.data) && sc.data[sc.index] == '"' {
		sc.index++
		var buf strings.Builder
		for ; sc.index < len(sc.data); sc.index++ {
			switch sc.data[sc.index] {
			case '"':
				sc.index++
				return key, buf.String()
			case '\\':
				sc.index++
				if sc.index >= len(sc.data) {
					continue
				}
			}
			_ = buf.WriteByte(sc.data[sc.index])
		}
		sc.setErr(fmt.Errorf("missing closing \" in a VCF meta-information line: %v", sc.data))
		return key, buf.String()
	}
	for ; sc.index < len(sc.data); sc.index++ {
		if c := sc.data[sc.index]; (c == ' ') || (c == ',') || (c == '>') {
			return key, sc.data[start:sc.index]
		}
	}
	sc.setErr(fmt.Errorf("missing closing > in a VCF meta-information line: %v", sc.data))
	return key, sc.data[start:]
}

func parseNumber(value string) (int32, error) {
	switch value {
	case "a", "A":
		return NumberA, nil
	case "r", "R":
		return NumberR, nil
	case "g", "G":
		return NumberG, nil
	case ".":
		return NumberDot, nil
	}
	n, err := strconv.ParseInt(value, 10, 32)
	if err != nil {
		return InvalidNumber, err
	}
	return int32(n), nil
}

func parseType(value string) Type {
	switch value {
	case "Integer":
		return Integer
	case "Float":
		return Float
	case "Flag":
		return Flag
	case "Character":
		return Character
	case "String":
		return String
	default:
		return InvalidType
	}
}

// ParseFormatInformation parses VCF format information
func (sc *StringScanner) ParseFormatInformation() *FormatInformation {
	if sc.err != nil {
		return nil
	}
	if sc.index >= len(sc.data) || sc.data[sc.index] != '<' {
		sc.setErr(fmt.Errorf("missing open angle bracket in a VCF INFO meta-information line: %v", sc.data))
		return nil
	}
	sc.index++
	format := NewFormatInformation()
	for {
		key, value := sc.ParseMetaField()
		if sc.err != nil {
			return nil
		}
		switch key {
		case idKey:
			if format.ID != nil {
				sc.setErr(fmt.Errorf("multiple IDs in a VCF INFO meta-information line: %v", sc.data))
			} else {
				format.ID = utils.Intern(value)
			}
		case descriptionKey:
			if format.Description != "" {
				sc.setErr(fmt.Errorf("multiple Descriptions in a VCF INFO meta-information line: %v", sc.data))
			} else {
				format.Description = value
			}
		case numberKey:
			if format.Number > InvalidNumber {
				sc.setErr(fmt.Errorf("multiple Number entries in a VCF INFO meta-information line: %v", sc.data))
			} else if n, err := parseNumber(value); err != nil {
				sc.setErr(err)
			} else {
				format.Number = n
			}
		case typeKey:
			if format.Type != InvalidType {
				sc.setErr(fmt.Errorf("multiple types in a VCF INFO meta-information line: %v", sc.data))
			} else if format.Type = parseType(value); format.Type == InvalidType {
				sc.setErr(fmt.Errorf("unknown type in a VCF INFO meta-information line: %v", sc.data))
			}
		default:
			if !format.Fields.SetUniqueEntry(key, value) {
				sc.setErr(fmt.Errorf("duplicate field key %v in a VCF meta-information line: %v", key, sc.data))
			}
		}
		sc.SkipSpace()
		if sc.index < len(sc.data) {
			if c := sc.data[sc.index]; c == ',' {
				sc.index++
				continue
			} else if c == '>' {
				sc.index++
				break
			}
		}
		sc.setErr(fmt.Errorf("invalid syntax in a VCF INFO meta-information line: %v", sc.data))
		break
	}
	switch {
	case format.ID == nil:
		sc.setErr(fmt.Errorf("missing ID in a VCF INFO meta-information line: %v", sc.data))
	case format.Number <= InvalidNumber:
		sc.setErr(fmt.Errorf("missing number entry in a VCF INFO meta-information line: %v", sc.data))
	case format.Type == InvalidType:
		sc.setErr(fmt.Errorf("missing type in a VCF INFO meta-information line: %v", sc.data))
	}
	return format
}

func getLine(reader *bufio.Reader) (line string, err error) {
	line, err = reader.ReadString('\n')
	switch {
	case err == nil:
		line = strings.TrimSuffix(line[:len(line)-1], "\r")
	case err == io.EOF && line != "":
		err = nil
	}
	return
}

// ParseHeader parses a VCF header. It also returns the number of
// lines read.
func ParseHeader(reader *bufio.Reader) (hdr *Header, lines int, err error) {
	line, err := getLine(reader)
	if err != nil {
		if err == io.EOF {
			return nil, 0, errors.New("empty VCF file")
		}
		return nil, 0, err
	}
	lines++
	if !strings.HasPrefix(line, fileFormatVersionLinePrefix) {
		return nil, 0, errors.New("invalid first line in a VCF file")
	}
	hdr = NewHeader()
	hdr.FileFormat = line
	hdr.Columns = nil
	var sc StringScanner
	for {
		if line, err = getLine(reader); err != nil {
			if err == io.EOF {
				return nil, 0, errors.New("unexpected end of VCF header")
			}
			return nil, 0, err
		}
		lines++
		if !strings.HasPrefix(line, "##") {
			break
		}
		sc.Reset(line[2:])
		key, found := sc.readUntilByte('=')
		if !found {
			return nil, 0, errors.Errorf("invalid syntax in a VCF header line: %v", line)
		}
		if key == "fileformat" {
			return nil, 0, errors.New("multiple file format meta-information lines in a VCF file")
		}
		value := sc.data[sc.index:]
		if key == "INFO" {
			info := sc.ParseFormatInformation()
			if err := sc.Err(); err != nil {
				return nil, 0, err
			}
			hdr.Infos = append(hdr.Infos, info)
		}
		hdr.Meta = append(hdr.Meta, MetaLine{Key: key, Value: value})
	}
	if !strings.HasPrefix(line, "#") {
		return nil, 0, errors.New("missing column header line in a VCF file")
	}
	hdr.Columns = strings.Split(line[1:], "\t")
	if len(hdr.Columns) < len(DefaultHeaderColumns) {
		return nil, 0, errors.Errorf("too few columns in a VCF header line: %v", line)
	}
	return hdr, lines, nil
}

func (sc *StringScanner) doField() string {
	value, found := sc.readUntilByte('\t')
	if !found {
		sc.setErr(errors.New("missing tabulator in VCF data line"))
	}
	return value
}

var passList = []utils.Symbol{PASS}

func parseFilter(s string) []utils.Symbol {
	switch s {
	case ".":
		return nil
	case "PASS":
		return passList
	}
	var result []utils.Symbol
	for _, f := range strings.Split(s, ";") {
		result = append(result, utils.Intern(f))
	}
	return result
}

func parseInfo(s string) (result utils.SmallMap) {
	if s == "." || s == "" {
		return nil
	}
	for _, entry := range strings.Split(s, ";") {
		if i := strings.IndexByte(entry, '='); i >= 0 {
			result = append(result, utils.SmallMapEntry{Key: utils.Intern(entry[:i]), Value: entry[i+1:]})
		} else {
			result = append(result, utils.SmallMapEntry{Key: utils.Intern(entry), Value: true})
		}
	}
	return result
}

// ParseVariant parses a VCF variant line
func (sc *StringScanner) ParseVariant() *Variant {
	var variant Variant
	variant.Chrom = sc.doField()
	if pos := sc.doField(); pos == "." {
		variant.Pos = -1
	} else if p, err := strconv.ParseInt(pos, 10, 32); err != nil {
		sc.setErr(err)
	} else {
		variant.Pos = int32(p)
	}
	variant.ID = sc.doField()
	variant.Ref = sc.doField()
	if alt := sc.doField(); alt != "." {
		variant.Alt = strings.Split(alt, ",")
	}
	variant.Qual = sc.doField()
	variant.Filter = parseFilter(sc.doField())
	info, more := sc.readUntilByte('\t')
	variant.Info = parseInfo(info)
	if more {
		variant.Samples = sc.rest()
	}
	if sc.err != nil {
		return nil
	}
	return &variant
}

type formatWriter interface {
	io.ByteWriter
	io.StringWriter
}

// FormatString outputs a string to a VCF file, adding necessary double quotes and escapes
func FormatString(out io.ByteWriter, str string) error {
	_ = out.WriteByte('"')
	for i := 0; i < len(str); i++ {
		b := str[i]
		if b == '"' || b == '\\' {
			_ = out.WriteByte('\\')
		}
		_ = out.WriteByte(b)
	}
	return out.WriteByte('"')
}

func needsQuotes(s string) bool {
	for i := 0; i < len(s); i++ {
		if ch := s[i]; ch == '"' || ch == ' ' || ch == ',' {
			return true
		}
	}
	return false
}

// FormatFormatInformation outputs the <...> part of an INFO
// meta-information line.
func FormatFormatInformation(out formatWriter, format *FormatInformation) error {
	_, _ = out.WriteString("<ID=")
	_, _ = out.WriteString(*format.ID)
	_, _ = out.WriteString(",Number=")
	if format.Number >= 0 {
		_, _ = out.WriteString(strconv.FormatInt(int64(format.Number), 10))
	} else {
		switch format.Number {
		case NumberA:
			_ = out.WriteByte('A')
		case NumberR:
			_ = out.WriteByte('R')
		case NumberG:
			_ = out.WriteByte('G')
		case NumberDot:
			_ = out.WriteByte('.')
		default:
			return errors.New("unknown Number kind in a VCF meta-information line")
		}
	}
	if format.Type == InvalidType {
		return errors.New("invalid Type in a VCF meta-information line")
	}
	_, _ = out.WriteString(",Type=")
	_, _ = out.WriteString(format.Type.String())
	if format.Description != "" {
		_, _ = out.WriteString(",Description=")
		_ = FormatString(out, format.Description)
	}
	for key, value := range format.Fields {
		_ = out.WriteByte(',')
		_, _ = out.WriteString(key)
		_ = out.WriteByte('=')
		if key == "Source" || key == "Version" || needsQuotes(value) {
			_ = FormatString(out, value)
		} else {
			_, _ = out.WriteString(value)
		}
	}
	return out.WriteByte('>')
}

func formatInfo(out []byte, info utils.SmallMap) ([]byte, error) {
	if len(info) == 0 {
		return append(out, '.'), nil
	}
	for i, entry := range info {
		if i > 0 {
			out = append(out, ';')
		}
		out = append(out, (*entry.Key)...)
		switch value := entry.Value.(type) {
		case bool:
			if !value {
				return nil, errors.Errorf("unexpected false value for INFO flag %v", *entry.Key)
			}
		case string:
			out = append(append(out, '='), value...)
		default:
			return nil, errors.Errorf("invalid value type %T for INFO entry %v", entry.Value, *entry.Key)
		}
	}
	return out, nil
}

func orMissing(out []byte, s string) []byte {
	if s == "" {
		return append(out, '.')
	}
	return append(out, s...)
}

// Format appends a VCF variant line to out.
func (variant *Variant) Format(out []byte) ([]byte, error) {
	out = append(append(out, variant.Chrom...), '\t')
	if variant.Pos < 0 {
		out = append(out, '.', '\t')
	} else {
		out = append(strconv.AppendInt(out, int64(variant.Pos), 10), '\t')
	}
	out = append(orMissing(out, variant.ID), '\t')
	out = append(append(out, variant.Ref...), '\t')
	out = append(orMissing(out, strings.Join(variant.Alt, ",")), '\t')
	out = append(orMissing(out, variant.Qual), '\t')
	if len(variant.Filter) == 0 {
		out = append(out, '.')
	} else {
		for i, f := range variant.Filter {
			if i > 0 {
				out = append(out, ';')
			}
			out = append(out, (*f)...)
		}
	}
	out = append(out, '\t')
	out, err := formatInfo(out, variant.Info)
	if err != nil {
		return nil, err
	}
	if variant.Samples != "" {
		out = append(append(out, '\t'), variant.Samples...)
	}
	return append(out, '\n'), nil
}

// The possible file extensions for VCF or BCF files, or block-gzipped
// VCF files
const (
	VcfExt = ".vcf"
	BcfExt = ".bcf"
	GzExt  = ".gz"
)

// InputFile represents a VCF or BCF file for input.
type InputFile struct {
	closers []io.Closer
	*bufio.Reader
	*exec.Cmd
}

// OutputFile represents a VCF or BCF file for output.
type OutputFile struct {
	closers []io.Closer
	*bufio.Writer
	*exec.Cmd
}

func isStdin(name string) bool {
	return name == "-" || name == "/dev/stdin"
}

func isStdout(name string) bool {
	return name == "-" || name == "/dev/stdout"
}

// Open a VCF file for input.
//
// If the filename extension is .bcf, use bcftools view for input.
// bcftools must be visible in the directories named by the PATH
// environment variable for .bcf input.
//
// If the filename extension is .gz, the file is decompressed as
// BGZF. Otherwise, plain text .vcf is assumed.
//
// If the name is "-" or "/dev/stdin", then the input is read from
// os.Stdin.
func Open(name string) (*InputFile, error) {
	if isStdin(name) {
		return &InputFile{Reader: bufio.NewReader(os.Stdin)}, nil
	}
	switch filepath.Ext(name) {
	case BcfExt:
		if _, err := os.Stat(name); err != nil {
			return nil, err
		}
		cmd := exec.Command("bcftools", "view", "--threads", strconv.Itoa(runtime.GOMAXPROCS(0)), name)
		outPipe, err := cmd.StdoutPipe()
		if err != nil {
			return nil, err
		}
		if err = cmd.Start(); err != nil {
			return nil, errors.Wrap(err, "couldn't start bcftools")
		}
		return &InputFile{[]io.Closer{outPipe}, bufio.NewReader(outPipe), cmd}, nil
	case GzExt:
		file, err := os.Open(name)
		if err != nil {
			return nil, err
		}
		bz, err := bgzf.NewReader(file, runtime.GOMAXPROCS(0))
		if err != nil {
			_ = file.Close()
			return nil, errors.Wrapf(err, "couldn't read %v as BGZF", name)
		}
		return &InputFile{[]io.Closer{bz, file}, bufio.NewReader(bz), nil}, nil
	default:
		file, err := os.Open(name)
		if err != nil {
			return nil, err
		}
		return &InputFile{[]io.Closer{file}, bufio.NewReader(file), nil}, nil
	}
}

// Create a VCF file for output.
//
// If the filename extension is .bcf, use bcftools view for output.
// If it is .gz, the output is BGZF-compressed VCF. Otherwise, plain
// text .vcf is written.
//
// If the name is "-" or "/dev/stdout", then the output is written to
// os.Stdout.
func Create(name string) (*OutputFile, error) {
	if isStdout(name) {
		return &OutputFile{Writer: bufio.NewWriter(os.Stdout)}, nil
	}
	switch filepath.Ext(name) {
	case BcfExt:
		cmd := exec.Command("bcftools", "view", "-Ob", "--threads", strconv.Itoa(runtime.GOMAXPROCS(0)), "-o", name, "-")
		inPipe, err := cmd.StdinPipe()
		if err != nil {
			return nil, err
		}
		if err = cmd.Start(); err != nil {
			return nil, errors.Wrap(err, "couldn't start bcftools")
		}
		return &OutputFile{[]io.Closer{inPipe}, bufio.NewWriter(inPipe), cmd}, nil
	case GzExt:
		file, err := os.Create(name)
		if err != nil {
			return nil, err
		}
		bz := bgzf.NewWriter(file, runtime.GOMAXPROCS(0))
		return &OutputFile{[]io.Closer{bz, file}, bufio.NewWriter(bz), nil}, nil
	default:
		file, err := os.Create(name)
		if err != nil {
			return nil, err
		}
		return &OutputFile{[]io.Closer{file}, bufio.NewWriter(file), nil}, nil
	}
}

// Close the VCF input file. If bcftools view is used for input, wait
// for its process to finish.
func (input *InputFile) Close() (err error) {
	for _, c := range input.closers {
		if nerr := c.Close(); err == nil {
			err = nerr
		}
	}
	if input.Cmd != nil {
		if nerr := input.Wait(); err == nil {
			err = nerr
		}
	}
	return err
}

// Close the VCF output file. If bcftools view is used for output,
// wait for its process to finish.
func (output *OutputFile) Close() error {
	err := output.Flush()
	for _, c := range output.closers {
		if nerr := c.Close(); err == nil {
			err = nerr
		}
	}
	if output.Cmd != nil {
		if nerr := output.Wait(); err == nil {
			err = nerr
		}
	}
	return err
}
