package dataset

import (
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/apache/arrow/go/v18/arrow"
	"github.com/apache/arrow/go/v18/arrow/array"
	"github.com/apache/arrow/go/v18/arrow/memory"
	"github.com/apache/arrow/go/v18/parquet"
	"github.com/apache/arrow/go/v18/parquet/compress"
	"github.com/apache/arrow/go/v18/parquet/file"
	"github.com/apache/arrow/go/v18/parquet/pqarrow"
	"github.com/willbeason/progresa/pkg/tables"
)

const batchSize = 1 << 16

// Schema returns the Arrow schema used to store ds.
func (ds *Dataset) Schema() *arrow.Schema {
	fields := make([]tables.Field, len(ds.columns))
	for i, c := range ds.columns {
		fields[i] = tables.Field{Name: c.Name(), Categorical: c.Kind() == Categorical}
	}
	return tables.Observations(fields)
}

// WriteParquet stores ds as a gzip-compressed Parquet file. Recoding state is
// not stored; a recoded column is written as an ordinary numeric column.
//
// w is closed when WriteParquet returns, whether or not it succeeds.
func WriteParquet(ds *Dataset, w io.WriteCloser) (err error) {
	sink := &closeOnce{WriteCloser: w}
	defer func() {
		closeErr := sink.Close()
		if err == nil {
			err = closeErr
		}
	}()

	schema := ds.Schema()

	allocator := memory.NewGoAllocator()
	recordBuilder := array.NewRecordBuilder(allocator, schema)
	defer recordBuilder.Release()

	for j, c := range ds.columns {
		switch field := recordBuilder.Field(j).(type) {
		case *array.Float64Builder:
			field.Reserve(c.Len())
			for i := 0; i < c.Len(); i++ {
				if c.IsMissing(i) {
					field.AppendNull()
				} else {
					field.Append(c.Value(i))
				}
			}
		case *array.BinaryDictionaryBuilder:
			for i := 0; i < c.Len(); i++ {
				if c.IsMissing(i) {
					field.AppendNull()
					continue
				}
				err := field.AppendString(c.Label(i))
				if err != nil {
					return fmt.Errorf("appending %q: %w", c.Name(), err)
				}
			}
		default:
			return fmt.Errorf("unsupported builder %T for column %q", field, c.Name())
		}
	}

	// The parquet writer closes sink on success.
	writer, err := pqarrow.NewFileWriter(
		schema,
		sink,
		parquet.NewWriterProperties(parquet.WithCompression(compress.Codecs.Gzip),
			parquet.WithCompressionLevel(gzip.BestCompression)),
		pqarrow.DefaultWriterProps(),
	)
	if err != nil {
		return fmt.Errorf("creating writer: %w", err)
	}

	record := recordBuilder.NewRecord()
	defer record.Release()

	err = writer.Write(record)
	if err != nil {
		_ = writer.Close()
		return fmt.Errorf("writing observations: %w", err)
	}
	return writer.Close()
}

// closeOnce lets both the parquet writer and WriteParquet close the
// destination.
type closeOnce struct {
	io.WriteCloser
	closed bool
}

func (c *closeOnce) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	return c.WriteCloser.Close()
}

type columnAccumulator struct {
	name        string
	categorical bool
	values      []float64
	labels      []string
	missing     []bool
}

func (a *columnAccumulator) appendFrom(col arrow.Array) error {
	n := col.Len()
	for i := 0; i < n; i++ {
		null := col.IsNull(i)
		a.missing = append(a.missing, null)

		switch c := col.(type) {
		case *array.Dictionary:
			label := ""
			if !null {
				dict, ok := c.Dictionary().(*array.String)
				if !ok {
					return fmt.Errorf("%w: column %q has dictionary of %T, want strings", ErrTypeMismatch, a.name, c.Dictionary())
				}
				label = dict.Value(c.GetValueIndex(i))
			}
			a.labels = append(a.labels, label)
		case *array.String:
			a.labels = append(a.labels, c.Value(i))
		default:
			v := math.NaN()
			if !null {
				var err error
				v, err = numericValue(col, i)
				if err != nil {
					return fmt.Errorf("column %q: %w", a.name, err)
				}
			}
			a.values = append(a.values, v)
		}
	}
	return nil
}

func numericValue(col arrow.Array, i int) (float64, error) {
	switch c := col.(type) {
	case *array.Float64:
		return c.Value(i), nil
	case *array.Float32:
		return float64(c.Value(i)), nil
	case *array.Int64:
		return float64(c.Value(i)), nil
	case *array.Int32:
		return float64(c.Value(i)), nil
	case *array.Int16:
		return float64(c.Value(i)), nil
	case *array.Uint32:
		return float64(c.Value(i)), nil
	case *array.Uint16:
		return float64(c.Value(i)), nil
	case *array.Uint8:
		return float64(c.Value(i)), nil
	case *array.Boolean:
		if c.Value(i) {
			return 1, nil
		}
		return 0, nil
	default:
		return 0, fmt.Errorf("%w: unsupported arrow type %s", ErrTypeMismatch, col.DataType())
	}
}

// LoadParquet reads an observations file written by WriteParquet or any
// Parquet file with numeric and string columns.
func LoadParquet(ctx context.Context, r parquet.ReaderAtSeeker) (*Dataset, error) {
	allocator := memory.NewGoAllocator()
	fileReader, err := file.NewParquetReader(r)
	if err != nil {
		return nil, fmt.Errorf("%w: opening parquet file: %w", ErrLoad, err)
	}
	defer func() {
		_ = fileReader.Close()
	}()

	reader, err := pqarrow.NewFileReader(fileReader,
		pqarrow.ArrowReadProperties{BatchSize: batchSize},
		allocator,
	)
	if err != nil {
		return nil, fmt.Errorf("%w: creating pqarrow FileReader: %w", ErrLoad, err)
	}

	schema, err := reader.Schema()
	if err != nil {
		return nil, fmt.Errorf("%w: getting schema: %w", ErrLoad, err)
	}

	accumulators := make([]*columnAccumulator, schema.NumFields())
	for i, field := range schema.Fields() {
		categorical := false
		switch field.Type.ID() {
		case arrow.DICTIONARY, arrow.STRING:
			categorical = true
		}
		accumulators[i] = &columnAccumulator{name: field.Name, categorical: categorical}
	}

	recordReader, err := reader.GetRecordReader(ctx, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: getting record reader: %w", ErrLoad, err)
	}
	defer recordReader.Release()

	var record arrow.Record
	for record, err = recordReader.Read(); err == nil; record, err = recordReader.Read() {
		for j, acc := range accumulators {
			if err := acc.appendFrom(record.Column(j)); err != nil {
				return nil, fmt.Errorf("%w: %w", ErrLoad, err)
			}
		}
	}
	if !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: reading records: %w", ErrLoad, err)
	}

	columns := make([]*Column, len(accumulators))
	for j, acc := range accumulators {
		if acc.categorical {
			columns[j] = NewCategorical(acc.name, acc.labels, acc.missing)
		} else {
			columns[j] = NewNumeric(acc.name, acc.values, acc.missing)
		}
	}

	ds, err := New(columns...)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoad, err)
	}
	return validate(ds)
}
