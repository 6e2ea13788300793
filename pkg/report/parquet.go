package report

import (
	"compress/gzip"
	"fmt"
	"math"
	"os"
	"path/filepath"

	"github.com/apache/arrow/go/v18/arrow"
	"github.com/apache/arrow/go/v18/arrow/array"
	"github.com/apache/arrow/go/v18/arrow/memory"
	"github.com/apache/arrow/go/v18/parquet"
	"github.com/apache/arrow/go/v18/parquet/compress"
	"github.com/apache/arrow/go/v18/parquet/pqarrow"
	"github.com/willbeason/progresa/pkg/analysis"
	"github.com/willbeason/progresa/pkg/tables"
)

// WriteParquet stores the summary, test and coefficient tables of report in
// dir and returns the paths written.
func WriteParquet(dir string, report *analysis.Report) ([]string, error) {
	err := os.MkdirAll(dir, os.ModePerm)
	if err != nil {
		return nil, fmt.Errorf("creating output directory: %w", err)
	}

	writes := []struct {
		name   string
		schema *arrow.Schema
		fill   func(*array.RecordBuilder, *analysis.Result) error
	}{
		{name: tables.SummaryName, schema: tables.Summary, fill: fillSummary},
		{name: tables.TestsName, schema: tables.Tests, fill: fillTests},
		{name: tables.CoefficientsName, schema: tables.Coefficients, fill: fillCoefficients},
	}

	paths := make([]string, 0, len(writes))
	for _, w := range writes {
		path := filepath.Join(dir, w.name+tables.ParquetExt)
		err = writeTable(path, w.schema, report, w.fill)
		if err != nil {
			return paths, fmt.Errorf("writing %s: %w", w.name, err)
		}
		paths = append(paths, path)
	}
	return paths, nil
}

func writeTable(path string, schema *arrow.Schema, report *analysis.Report, fill func(*array.RecordBuilder, *analysis.Result) error) error {
	allocator := memory.NewGoAllocator()
	recordBuilder := array.NewRecordBuilder(allocator, schema)
	defer recordBuilder.Release()

	for _, r := range report.Results {
		err := fill(recordBuilder, r)
		if err != nil {
			return fmt.Errorf("step %q: %w", r.Step, err)
		}
	}

	outFile, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %q: %w", path, err)
	}

	// Don't close outFile; parquet handles closing it.
	writer, err := pqarrow.NewFileWriter(
		schema,
		outFile,
		parquet.NewWriterProperties(parquet.WithCompression(compress.Codecs.Gzip),
			parquet.WithCompressionLevel(gzip.BestCompression)),
		pqarrow.DefaultWriterProps(),
	)
	if err != nil {
		_ = outFile.Close()
		return fmt.Errorf("creating writer: %w", err)
	}

	record := recordBuilder.NewRecord()
	defer record.Release()

	err = writer.Write(record)
	if err != nil {
		_ = writer.Close()
		return fmt.Errorf("writing record: %w", err)
	}
	return writer.Close()
}

func fillSummary(b *array.RecordBuilder, r *analysis.Result) error {
	for _, s := range r.Summary {
		err := appendStep(b, r.Step)
		if err != nil {
			return err
		}
		b.Field(1).(*array.StringBuilder).Append(s.Column)
		b.Field(2).(*array.Uint32Builder).Append(uint32(s.N))
		b.Field(3).(*array.Uint32Builder).Append(uint32(s.Missing))
		appendNullable(b.Field(4).(*array.Float64Builder), s.Mean)
		appendNullable(b.Field(5).(*array.Float64Builder), s.Std)
	}
	return nil
}

func fillTests(b *array.RecordBuilder, r *analysis.Result) error {
	for _, t := range r.Tests {
		err := appendStep(b, r.Step)
		if err != nil {
			return err
		}
		b.Field(1).(*array.StringBuilder).Append(t.Column)
		b.Field(2).(*array.Float64Builder).Append(t.MeanA)
		b.Field(3).(*array.Float64Builder).Append(t.MeanB)
		b.Field(4).(*array.Uint32Builder).Append(uint32(t.NA))
		b.Field(5).(*array.Uint32Builder).Append(uint32(t.NB))
		b.Field(6).(*array.Float64Builder).Append(t.Statistic)
		b.Field(7).(*array.Float64Builder).Append(t.DF)
		b.Field(8).(*array.Float64Builder).Append(t.PValue)
		b.Field(9).(*array.BooleanBuilder).Append(t.Significant)
		b.Field(10).(*array.BooleanBuilder).Append(t.EqualVariance)
	}
	return nil
}

func fillCoefficients(b *array.RecordBuilder, r *analysis.Result) error {
	for _, m := range r.Models {
		for _, c := range m.Terms {
			err := appendStep(b, r.Step)
			if err != nil {
				return err
			}
			b.Field(1).(*array.StringBuilder).Append(m.Formula)
			b.Field(2).(*array.StringBuilder).Append(c.Name)
			b.Field(3).(*array.Float64Builder).Append(c.Estimate)
			b.Field(4).(*array.Float64Builder).Append(c.StdErr)
			b.Field(5).(*array.Float64Builder).Append(c.T)
			b.Field(6).(*array.Float64Builder).Append(c.PValue)
			b.Field(7).(*array.Float64Builder).Append(c.CILow)
			b.Field(8).(*array.Float64Builder).Append(c.CIHigh)
		}
	}
	return nil
}

// appendStep fills the step column, which is always the first field.
func appendStep(b *array.RecordBuilder, step string) error {
	return b.Field(0).(*array.BinaryDictionaryBuilder).AppendString(step)
}

func appendNullable(b *array.Float64Builder, v float64) {
	if math.IsNaN(v) {
		b.AppendNull()
		return
	}
	b.Append(v)
}
