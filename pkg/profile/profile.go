package profile

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
)

var ErrProfile = errors.New("profiling columns")

// A Profile summarises every column of a delimited file with a header row.
type Profile struct {
	Names  []string
	Fields []Field
	Rows   int
}

// New returns an empty Profile for the named columns.
func New(names []string) *Profile {
	p := &Profile{
		Names:  make([]string, len(names)),
		Fields: make([]Field, len(names)),
	}
	for i, name := range names {
		p.Names[i] = strings.TrimSpace(name)
		p.Fields[i] = &EmptyField{}
	}
	return p
}

// Add records one row. Short rows are padded with missing cells.
func (p *Profile) Add(record []string) error {
	if len(record) > len(p.Fields) {
		return fmt.Errorf("%w: row %d has %d cells, header has %d", ErrProfile, p.Rows+1, len(record), len(p.Fields))
	}
	for j := range p.Fields {
		cell := ""
		if j < len(record) {
			cell = record[j]
		}
		p.Fields[j] = p.Fields[j].Add(cell)
	}
	p.Rows++
	return nil
}

// Read profiles a delimited file. progress, if not nil, is called after every
// row with the number of rows read so far.
func Read(r io.Reader, delimiter rune, progress func(rows int)) (*Profile, error) {
	rdr := csv.NewReader(r)
	rdr.Comma = delimiter
	rdr.FieldsPerRecord = -1
	rdr.ReuseRecord = true

	header, err := rdr.Read()
	if err != nil {
		return nil, fmt.Errorf("%w: reading header: %w", ErrProfile, err)
	}
	p := New(header)

	for {
		record, err := rdr.Read()
		if errors.Is(err, io.EOF) {
			break
		} else if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrProfile, err)
		}

		if err := p.Add(record); err != nil {
			return nil, err
		}
		if progress != nil {
			progress(p.Rows)
		}
	}

	return p, nil
}

// Hints maps every column to the type the CSV loader should read it as:
// "float64" for numeric and all-missing columns, "string" otherwise.
func (p *Profile) Hints() map[string]string {
	hints := make(map[string]string, len(p.Names))
	for i, name := range p.Names {
		switch p.Fields[i].(type) {
		case *StringField:
			hints[name] = "string"
		default:
			hints[name] = "float64"
		}
	}
	return hints
}
