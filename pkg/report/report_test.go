package report

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/apache/arrow/go/v18/arrow"
	"github.com/apache/arrow/go/v18/arrow/array"
	"github.com/apache/arrow/go/v18/arrow/memory"
	"github.com/apache/arrow/go/v18/parquet/file"
	"github.com/apache/arrow/go/v18/parquet/pqarrow"
	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/willbeason/progresa/pkg/analysis"
	"github.com/willbeason/progresa/pkg/did"
	"github.com/willbeason/progresa/pkg/regress"
	"github.com/willbeason/progresa/pkg/stats"
	"github.com/willbeason/progresa/pkg/tables"
)

func fixture() *analysis.Report {
	tabular := did.FromMeans(0.8076, 0.8464, 0.8164, 0.8078)
	tabular.Outcome = "sc"

	return &analysis.Report{
		RunID:    uuid.MustParse("6f1c2a4e-2b7d-4f43-9a5e-0c1d2e3f4a5b"),
		Started:  time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
		Duration: 1500 * time.Millisecond,
		Rows:     100,
		Results: []*analysis.Result{
			{
				Step:    "summary",
				Subsets: []string{"all rows"},
				Summary: []stats.Summary{
					{Column: "age", N: 98, Missing: 2, Mean: 11.4, Std: 3.1},
					{Column: "grc", N: 1, Mean: 4, Std: math.NaN()},
				},
			},
			{
				Step: "simple-difference",
				Tests: []stats.TestResult{{
					Column: "sc", MeanA: 0.8464, MeanB: 0.8076, NA: 50, NB: 48,
					Diff: 0.0388, Statistic: 8.36, DF: 96, PValue: 6.6e-17, Significant: true,
				}},
			},
			{
				Step: "enrollment-by-education",
				Panels: []analysis.Panel{{
					Name: "enrollment-by-hohedu", By: "hohedu", Outcome: "sc", Plot: analysis.Scatter,
					Groups: []stats.Group{
						{Label: "0", Key: 0, N: 10, Mean: 0.7},
						{Label: "1", Key: 1, N: 12, Mean: 0.75},
						{Label: "2", Key: 2, N: 0, Mean: math.NaN()},
					},
				}, {
					Name: "village-enrollment-97", By: "village", Outcome: "sc", Plot: analysis.Histogram,
					Groups: []stats.Group{
						{Label: "1", N: 5, Mean: 0.6},
						{Label: "2", N: 5, Mean: 0.8},
						{Label: "3", N: 5, Mean: 0.9},
					},
				}},
			},
			{
				Step: "did-check",
				Models: []*regress.Model{{
					Formula: "sc ~ progresa + time + progresa:time",
					Outcome: "sc",
					Terms: []regress.Coefficient{
						{Name: "Intercept", Estimate: 0.8164, StdErr: 0.01, T: 81.6, PValue: 0, CILow: 0.79, CIHigh: 0.83},
						{Name: "progresa:time", Estimate: 0.0474, StdErr: 0.02, T: 2.37, PValue: 0.018, CILow: 0.008, CIHigh: 0.087},
					},
					N: 98, DFModel: 3, DFResid: 94, R2: 0.01, AdjR2: 0.005, FStat: 3.2, FPValue: 0.03,
				}},
				DiD: &tabular,
				Agreement: &analysis.Agreement{
					Tabular: 0.0474, Regression: 0.0474, Tolerance: analysis.AgreementTolerance, Agree: true,
				},
				Notes: []string{"estimated on 98 rows"},
			},
		},
		Errors: []*analysis.StepError{
			{Step: "spillover", Err: errors.New("insufficient data")},
		},
	}
}

func TestText(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Text(&buf, fixture()))
	got := buf.String()

	for _, want := range []string{
		"6f1c2a4e-2b7d-4f43-9a5e-0c1d2e3f4a5b",
		"summary",
		"11.4000",
		"nan",
		"6.60e-17",
		"enrollment-by-hohedu",
		"sc ~ progresa + time + progresa:time",
		"progresa:time",
		"0.0474",
		"treated after",
		"agree within 1e-06",
		"note: estimated on 98 rows",
		`step "spillover": insufficient data`,
	} {
		require.Contains(t, got, want)
	}
}

func TestWriteJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteJSON(&buf, fixture()))

	var got JSON
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))

	require.Equal(t, "6f1c2a4e-2b7d-4f43-9a5e-0c1d2e3f4a5b", got.RunID)
	require.InDelta(t, 1.5, got.Seconds, 1e-12)
	require.Len(t, got.Steps, 4)

	summary := got.Steps[0].Summary
	require.NotNil(t, summary[1].Mean)
	require.Nil(t, summary[1].Std)

	require.Nil(t, got.Steps[2].Panels[0].Groups[2].Mean)

	check := got.Steps[3]
	require.InDelta(t, 0.0474, *check.DiD.Estimate, 1e-12)
	require.Len(t, check.DiD.Means, 4)
	require.True(t, check.Agreement.Agree)
	require.Equal(t, "classical", check.Models[0].SE)

	want := []Failure{{Step: "spillover", Error: "insufficient data"}}
	if diff := cmp.Diff(want, got.Failures); diff != "" {
		t.Errorf("failures (-want +got):\n%s", diff)
	}
}

func readColumn(t *testing.T, path string, name string) *arrow.Chunked {
	t.Helper()

	rdr, err := file.OpenParquetFile(path, false)
	require.NoError(t, err)
	defer rdr.Close()

	fileReader, err := pqarrow.NewFileReader(rdr, pqarrow.ArrowReadProperties{}, memory.NewGoAllocator())
	require.NoError(t, err)

	tbl, err := fileReader.ReadTable(context.Background())
	require.NoError(t, err)
	t.Cleanup(tbl.Release)

	indices := tbl.Schema().FieldIndices(name)
	require.Len(t, indices, 1)
	return tbl.Column(indices[0]).Data()
}

func TestWriteParquet(t *testing.T) {
	dir := t.TempDir()
	paths, err := WriteParquet(dir, fixture())
	require.NoError(t, err)
	require.Equal(t, []string{
		filepath.Join(dir, tables.SummaryName+tables.ParquetExt),
		filepath.Join(dir, tables.TestsName+tables.ParquetExt),
		filepath.Join(dir, tables.CoefficientsName+tables.ParquetExt),
	}, paths)

	std := readColumn(t, paths[0], "std")
	require.Equal(t, 2, std.Len())
	require.Equal(t, 1, std.NullN())

	pValues := readColumn(t, paths[1], "p_value")
	require.Equal(t, 1, pValues.Len())
	require.InDelta(t, 6.6e-17, pValues.Chunk(0).(*array.Float64).Value(0), 1e-30)

	terms := readColumn(t, paths[2], "term")
	require.Equal(t, 2, terms.Len())
	require.Equal(t, "progresa:time", terms.Chunk(0).(*array.String).Value(1))
}

func TestWriteFigures(t *testing.T) {
	dir := t.TempDir()
	paths, err := WriteFigures(dir, fixture())
	require.NoError(t, err)
	require.Equal(t, []string{
		filepath.Join(dir, "enrollment-by-hohedu"+FigureExt),
		filepath.Join(dir, "village-enrollment-97"+FigureExt),
	}, paths)

	for _, path := range paths {
		info, err := os.Stat(path)
		require.NoError(t, err)
		require.NotZero(t, info.Size())
	}
}

func TestFigure_Empty(t *testing.T) {
	p, err := Figure(analysis.Panel{Plot: analysis.Histogram, Groups: []stats.Group{{Mean: math.NaN()}}})
	require.NoError(t, err)
	require.Nil(t, p)

	p, err = Figure(analysis.Panel{Plot: analysis.NoPlot})
	require.NoError(t, err)
	require.Nil(t, p)
}
