// Package guestcsv converts guest lists to and from the two-column
// `name,category` CSV format used for bulk import and export.
package guestcsv

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Guest categories accepted by the import.
const (
	CategoryFamily    = "family"
	CategoryFriend    = "friend"
	CategoryColleague = "colleague"
)

// Categories lists every valid category in display order.
var Categories = []string{CategoryFamily, CategoryFriend, CategoryColleague}

// Header is the exact header row written on export and expected on import.
var Header = []string{"name", "category"}

// ErrMalformed reports a stream that could not be parsed as CSV or whose
// header is not `name,category`. Nothing from such a stream is imported.
var ErrMalformed = errors.New("malformed guest csv")

// Record is a single guest row.
type Record struct {
	Name     string
	Category string
}

// RowErrorCode identifies why a row was rejected.
type RowErrorCode int

// Row rejection reasons.
const (
	ErrCodeColumnCount RowErrorCode = iota + 1
	ErrCodeEmptyName
	ErrCodeInvalidCategory
)

// RowError describes a data row that was rejected. Line is the physical line
// number in the file, so the header is line 1.
type RowError struct {
	Line   int
	Code   RowErrorCode
	Value  string
	Reason string
}

func (e RowError) Error() string {
	return fmt.Sprintf("row %d: %s", e.Line, e.Reason)
}

// Result holds the accepted records and the rejected rows of a decoded stream.
type Result struct {
	Records []Record
	Errors  []RowError
}

// ValidCategory reports whether category is one of Categories.
func ValidCategory(category string) bool {
	for _, c := range Categories {
		if c == category {
			return true
		}
	}
	return false
}

// NormalizeName trims whitespace, folds CRLF to LF and applies NFC so visually
// identical names compare equal. encoding/csv reads a quoted CRLF back as LF.
func NormalizeName(name string) string {
	return norm.NFC.String(strings.TrimSpace(strings.ReplaceAll(name, "\r\n", "\n")))
}

// NormalizeCategory trims and lower-cases a category value.
func NormalizeCategory(category string) string {
	return strings.ToLower(strings.TrimSpace(category))
}

// Encode writes the header followed by one row per record, in input order.
func Encode(w io.Writer, records []Record) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return err
	}
	for _, r := range records {
		if err := cw.Write([]string{r.Name, r.Category}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// Decode parses the whole stream before validating any row. A parse failure or
// a wrong header returns ErrMalformed; invalid rows are collected in
// Result.Errors and never abort decoding.
func Decode(r io.Reader) (Result, error) {
	var result Result

	raw, err := io.ReadAll(r)
	if err != nil {
		return result, err
	}
	raw = bytes.TrimPrefix(raw, []byte("\xef\xbb\xbf"))

	cr := csv.NewReader(bytes.NewReader(raw))
	cr.FieldsPerRecord = -1

	type line struct {
		number int
		fields []string
	}

	var lines []line
	for {
		fields, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return result, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		number, _ := cr.FieldPos(0)
		lines = append(lines, line{number: number, fields: fields})
	}

	if len(lines) == 0 {
		return result, fmt.Errorf("%w: missing header row", ErrMalformed)
	}
	if !headerMatches(lines[0].fields) {
		return result, fmt.Errorf("%w: header must be %q", ErrMalformed, strings.Join(Header, ","))
	}

	for _, l := range lines[1:] {
		record, rowErr := validateRow(l.fields)
		if rowErr != nil {
			rowErr.Line = l.number
			result.Errors = append(result.Errors, *rowErr)
			continue
		}
		result.Records = append(result.Records, record)
	}

	return result, nil
}

func headerMatches(fields []string) bool {
	if len(fields) != len(Header) {
		return false
	}
	for i, f := range fields {
		if strings.ToLower(strings.TrimSpace(f)) != Header[i] {
			return false
		}
	}
	return true
}

func validateRow(fields []string) (Record, *RowError) {
	if len(fields) != len(Header) {
		return Record{}, &RowError{
			Code:   ErrCodeColumnCount,
			Value:  strconv.Itoa(len(fields)),
			Reason: fmt.Sprintf("expected %d columns, got %d", len(Header), len(fields)),
		}
	}

	record := Record{
		Name:     NormalizeName(fields[0]),
		Category: NormalizeCategory(fields[1]),
	}
	if record.Name == "" {
		return Record{}, &RowError{Code: ErrCodeEmptyName, Reason: "name is required"}
	}
	if !ValidCategory(record.Category) {
		value := strings.TrimSpace(fields[1])
		return Record{}, &RowError{
			Code:   ErrCodeInvalidCategory,
			Value:  value,
			Reason: fmt.Sprintf("invalid category %q (expected one of %s)", value, strings.Join(Categories, ", ")),
		}
	}
	return record, nil
}
