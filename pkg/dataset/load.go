package dataset

import (
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/kshedden/datareader"
	"github.com/willbeason/progresa/pkg/tables"
)

// Open reads a dataset from a file, choosing the reader from the extension:
// .csv (optionally .csv.gz), .dta or .parquet.
func Open(ctx context.Context, path string) (*Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoad, err)
	}
	defer func() {
		_ = f.Close()
	}()

	lower := strings.ToLower(path)
	switch {
	case strings.HasSuffix(lower, ".csv.gz"):
		gz, err := gzip.NewReader(f)
		if err != nil {
			return nil, fmt.Errorf("%w: starting gzip reader stream for %q: %w", ErrLoad, path, err)
		}
		return LoadCSV(gz)
	case strings.HasSuffix(lower, ".csv"):
		return LoadCSV(f)
	case strings.HasSuffix(lower, ".dta"):
		return LoadStata(f)
	case strings.HasSuffix(lower, tables.ParquetExt):
		return LoadParquet(ctx, f)
	default:
		return nil, fmt.Errorf("%w: %q is not a .csv, .csv.gz, .dta or %s file",
			ErrLoad, filepath.Base(path), tables.ParquetExt)
	}
}

// LoadCSV reads a delimited file with a header row. Known survey variables
// are read with their dictionary types; other columns are sniffed.
func LoadCSV(r io.Reader) (*Dataset, error) {
	rdr := datareader.NewCSVReader(r)
	rdr.TypeHintsName = tables.TypeHints()

	series, err := rdr.Read(-1)
	if err != nil {
		return nil, fmt.Errorf("%w: reading csv: %w", ErrLoad, err)
	}
	return FromSeries(series)
}

// LoadStata reads a Stata dta file. Value labels are substituted for coded
// categorical variables.
func LoadStata(r io.ReadSeeker) (*Dataset, error) {
	rdr, err := datareader.NewStataReader(r)
	if err != nil {
		return nil, fmt.Errorf("%w: reading stata header: %w", ErrLoad, err)
	}
	rdr.ConvertDates = false
	rdr.InsertCategoryLabels = true

	series, err := rdr.Read(-1)
	if err != nil && err != io.EOF {
		return nil, fmt.Errorf("%w: reading stata data: %w", ErrLoad, err)
	}
	return FromSeries(series)
}

// FromSeries converts reader output into a validated Dataset.
func FromSeries(series []*datareader.Series) (*Dataset, error) {
	columns := make([]*Column, 0, len(series))
	for _, s := range series {
		s = s.UpcastNumeric().NullStringMissing()
		name := strings.TrimSpace(s.Name)

		switch data := s.Data().(type) {
		case []float64:
			columns = append(columns, NewNumeric(name, data, s.Missing()))
		case []string:
			columns = append(columns, NewCategorical(name, trimAll(data), s.Missing()))
		default:
			return nil, fmt.Errorf("%w: column %q has unsupported type %T", ErrLoad, name, data)
		}
	}

	ds, err := New(columns...)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoad, err)
	}
	return validate(ds)
}

// validate checks the group columns. The treatment label is converted to its
// 0/1 code; the poverty column keeps its labels until RecodePoverty.
func validate(ds *Dataset) (*Dataset, error) {
	if col, err := ds.Column(ColProgresa); err == nil {
		codes := make([]float64, col.Len())
		missing := make([]bool, col.Len())
		for i := range codes {
			if col.IsMissing(i) {
				missing[i] = true
				continue
			}
			t, err := ParseTreatment(col.Label(i))
			if err != nil {
				return nil, fmt.Errorf("%w: row %d: %w", ErrLoad, i, err)
			}
			codes[i] = t.Code()
		}
		ds = ds.withColumn(NewNumeric(ColProgresa, codes, missing))
	}

	if col, err := ds.Column(ColPoor); err == nil {
		for i := 0; i < col.Len(); i++ {
			if col.IsMissing(i) {
				continue
			}
			if _, err := ParsePoverty(col.Label(i)); err != nil {
				return nil, fmt.Errorf("%w: row %d: %w", ErrLoad, i, err)
			}
		}
	}

	return ds, nil
}

func trimAll(labels []string) []string {
	out := make([]string, len(labels))
	for i, l := range labels {
		out[i] = strings.TrimSpace(l)
	}
	return out
}
