package dataset

import (
	"encoding/csv"
	"io"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"

	"go-etl-pipeline/pkg/utils"
)

// NullMarker is the field written for a null cell in an artifact.
const NullMarker = `\N`

const kindSeparator = "::"

// Write serializes d as CSV: a header row followed by one record per row.
// Non-text column headers carry a kind suffix ("price::float") and null cells
// are written as NullMarker. A text value made of backslashes followed by N
// gets one extra leading backslash, so Read restores the dataset exactly.
func Write(w io.Writer, d *Dataset) error {
	writer := csv.NewWriter(w)

	header := make([]string, len(d.Columns))
	for i, c := range d.Columns {
		header[i] = c.Name
		if c.Kind != Text || parseHeader(c.Name).Name != c.Name {
			header[i] += kindSeparator + c.Kind.String()
		}
	}
	if err := writer.Write(header); err != nil {
		return eris.Wrap(err, "failed to write header")
	}

	record := make([]string, len(d.Columns))
	for r, row := range d.Rows {
		for i, v := range row {
			record[i] = formatCell(v)
		}
		if err := writer.Write(record); err != nil {
			return eris.Wrapf(err, "failed to write row %d", r)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return eris.Wrap(err, "failed to flush csv")
	}
	return nil
}

// Read parses an artifact produced by Write.
func Read(r io.Reader) (*Dataset, error) {
	reader := csv.NewReader(r)
	header, err := reader.Read()
	if err == io.EOF {
		return New(), nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "failed to read csv header")
	}

	d := &Dataset{Columns: make([]Column, len(header))}
	for i, h := range header {
		d.Columns[i] = parseHeader(h)
	}

	for {
		record, err := reader.Read()
		if err == io.EOF {
			return d, nil
		}
		if err != nil {
			return nil, eris.Wrap(err, "csv read error")
		}
		row := make([]interface{}, len(record))
		for i, field := range record {
			v, err := parseCell(field, d.Columns[i].Kind)
			if err != nil {
				line, _ := reader.FieldPos(i)
				return nil, eris.Wrapf(err, "line %d column %q", line, d.Columns[i].Name)
			}
			row[i] = v
		}
		d.Rows = append(d.Rows, row)
	}
}

// ReadRaw parses a source CSV file the way a dataframe loader would: header
// names are cleaned, empty fields become null and each column gets the
// narrowest kind (int, float, text) that all of its non-null fields parse as.
func ReadRaw(r io.Reader) (*Dataset, error) {
	reader := csv.NewReader(r)
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1

	headers, err := reader.Read()
	if err == io.EOF {
		return New(), nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "failed to read csv header")
	}

	d := &Dataset{Columns: make([]Column, len(headers))}
	for i, h := range headers {
		// Clean header names: trim whitespace and remove ALL quotes
		cleanHeader := strings.TrimSpace(h)
		cleanHeader = strings.ReplaceAll(cleanHeader, `"`, "")
		cleanHeader = strings.TrimPrefix(cleanHeader, "\ufeff")
		if cleanHeader == "" {
			cleanHeader = "Unnamed: " + strconv.Itoa(i)
		}
		d.Columns[i] = Column{Name: cleanHeader, Kind: Text}
	}

	var raw [][]string
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, eris.Wrap(err, "csv read error")
		}
		raw = append(raw, record)
	}

	kinds := inferKinds(len(headers), raw)
	for c := range d.Columns {
		d.Columns[c].Kind = kinds[c]
	}
	d.Rows = make([][]interface{}, len(raw))
	for r, record := range raw {
		row := make([]interface{}, len(headers))
		for c := range headers {
			if c >= len(record) || record[c] == "" {
				continue
			}
			row[c] = convertRaw(record[c], kinds[c])
		}
		d.Rows[r] = row
	}
	return d, nil
}

func inferKinds(width int, raw [][]string) []Kind {
	kinds := make([]Kind, width)
	for c := 0; c < width; c++ {
		kind := Int
		seen := false
		for _, record := range raw {
			if c >= len(record) || record[c] == "" {
				continue
			}
			seen = true
			switch utils.ParseValue(record[c]).(type) {
			case int64:
			case float64:
				kind = Float
			default:
				kind = Text
			}
			if kind == Text {
				break
			}
		}
		if !seen {
			kind = Text
		}
		kinds[c] = kind
	}
	return kinds
}

func convertRaw(field string, kind Kind) interface{} {
	switch v := utils.ParseValue(field).(type) {
	case int64:
		switch kind {
		case Int:
			return v
		case Float:
			return float64(v)
		}
	case float64:
		if kind == Float {
			return v
		}
	}
	return field
}

func parseHeader(h string) Column {
	if i := strings.LastIndex(h, kindSeparator); i >= 0 {
		switch h[i+len(kindSeparator):] {
		case "float":
			return Column{Name: h[:i], Kind: Float}
		case "int":
			return Column{Name: h[:i], Kind: Int}
		case "text":
			return Column{Name: h[:i], Kind: Text}
		}
	}
	return Column{Name: h, Kind: Text}
}

func formatCell(v interface{}) string {
	if v == nil {
		return NullMarker
	}
	switch val := v.(type) {
	case float64:
		return strconv.FormatFloat(val, 'g', -1, 64)
	case int64:
		return strconv.FormatInt(val, 10)
	case string:
		if isMarkerLike(val) {
			return `\` + val
		}
		return val
	}
	s, _ := AsText(v)
	return s
}

// isMarkerLike reports whether s is one or more backslashes followed by N.
func isMarkerLike(s string) bool {
	if len(s) < 2 || s[len(s)-1] != 'N' {
		return false
	}
	return strings.Trim(s[:len(s)-1], `\`) == ""
}

func parseCell(field string, kind Kind) (interface{}, error) {
	if field == NullMarker {
		return nil, nil
	}
	switch kind {
	case Float:
		f, err := strconv.ParseFloat(field, 64)
		if err != nil {
			return nil, eris.Wrapf(err, "invalid float %q", field)
		}
		return f, nil
	case Int:
		i, err := strconv.ParseInt(field, 10, 64)
		if err != nil {
			return nil, eris.Wrapf(err, "invalid int %q", field)
		}
		return i, nil
	default:
		if isMarkerLike(field) {
			return field[1:], nil
		}
		return field, nil
	}
}
