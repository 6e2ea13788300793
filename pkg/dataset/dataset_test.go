package dataset

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

const sample = `year,progresa,poor,sc,age,village,folnum
97,basal,pobre,1,10,1,1
98,basal,pobre,1,11,1,1
97,0,pobre,0,12,2,2
98,0,pobre,,13,2,2
97,basal,no pobre,1,9,1,3
98,basal,no pobre,0,10,1,3
97,0,no pobre,1,8,2,4
98,0,no pobre,1,9,2,4
`

func load(t *testing.T) *Dataset {
	t.Helper()
	ds, err := LoadCSV(strings.NewReader(sample))
	require.NoError(t, err)
	return ds
}

func recoded(t *testing.T) *Dataset {
	t.Helper()
	ds, err := Recode(load(t), DefaultPeriods)
	require.NoError(t, err)
	return ds
}

func TestLoadCSV(t *testing.T) {
	ds := load(t)

	require.Equal(t, 8, ds.Rows())
	require.Equal(t, []string{"year", "progresa", "poor", "sc", "age", "village", "folnum"}, ds.Names())

	progresa, err := ds.Numeric(ColProgresa)
	require.NoError(t, err)
	got, _ := progresa.Float64s()
	if diff := cmp.Diff([]float64{1, 1, 0, 0, 1, 1, 0, 0}, got); diff != "" {
		t.Errorf("progresa codes (-want +got):\n%s", diff)
	}

	poor, err := ds.Column(ColPoor)
	require.NoError(t, err)
	require.Equal(t, Categorical, poor.Kind())
	require.Equal(t, []string{"no pobre", "pobre"}, poor.Levels())

	sc, err := ds.Numeric(ColEnrolled)
	require.NoError(t, err)
	require.Equal(t, 1, sc.Missing())
	require.True(t, sc.IsMissing(3))
}

func TestLoadCSV_UnknownLabel(t *testing.T) {
	for _, tc := range []struct {
		name string
		csv  string
	}{
		{name: "treatment", csv: "progresa,poor\nbasal,pobre\nyes,pobre\n"},
		{name: "poverty", csv: "progresa,poor\nbasal,pobre\n0,rico\n"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			_, err := LoadCSV(strings.NewReader(tc.csv))
			require.ErrorIs(t, err, ErrLoad)
			require.ErrorIs(t, err, ErrTypeMismatch)
		})
	}
}

func TestNew_Errors(t *testing.T) {
	a := NewNumeric("a", []float64{1, 2}, nil)
	b := NewNumeric("b", []float64{1}, nil)

	_, err := New(a, b)
	require.ErrorIs(t, err, ErrSchema)

	_, err = New(a, a)
	require.ErrorIs(t, err, ErrSchema)
}

func TestWhere(t *testing.T) {
	ds := load(t)

	tests := []struct {
		name  string
		conds []Condition
		want  []int
	}{
		{name: "all", want: []int{0, 1, 2, 3, 4, 5, 6, 7}},
		{name: "year", conds: []Condition{Eq(ColYear, 98)}, want: []int{1, 3, 5, 7}},
		{name: "treated poor", conds: []Condition{Is(ColProgresa, Treated), Is(ColPoor, Poor)}, want: []int{0, 1}},
		{name: "control", conds: []Condition{Is(ColProgresa, Control)}, want: []int{2, 3, 6, 7}},
		{name: "between", conds: []Condition{Between("age", 9, 10)}, want: []int{0, 4, 5, 7}},
		{name: "in", conds: []Condition{In(ColChild, 2, 4)}, want: []int{2, 3, 6, 7}},
		{name: "missing never matches", conds: []Condition{Eq(ColEnrolled, 0)}, want: []int{2, 5}},
		{name: "present", conds: []Condition{Present(ColEnrolled), Eq(ColYear, 98)}, want: []int{1, 5, 7}},
		{name: "empty", conds: []Condition{Eq(ColYear, 99)}, want: []int{}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ds.Where(tc.conds...).Rows()
			require.NoError(t, err)
			if diff := cmp.Diff(tc.want, got); diff != "" {
				t.Errorf("rows (-want +got):\n%s", diff)
			}
		})
	}
}

func TestWhere_Recoded(t *testing.T) {
	ds := recoded(t)

	got, err := ds.Where(Is(ColPoor, NonPoor), Eq(ColTime, 1)).Rows()
	require.NoError(t, err)
	require.Equal(t, []int{5, 7}, got)
}

func TestWhere_Errors(t *testing.T) {
	ds := load(t)

	_, err := ds.Where(Eq("missing_column", 1)).Rows()
	require.ErrorIs(t, err, ErrColumnNotFound)
	require.ErrorIs(t, err, ErrSchema)

	_, err = ds.Where(Eq(ColPoor, 1)).Rows()
	require.ErrorIs(t, err, ErrTypeMismatch)

	bad, err := LoadCSV(strings.NewReader("region\nnorte\nsur\n"))
	require.NoError(t, err)
	_, err = bad.Where(Is("region", Poor)).Rows()
	require.ErrorIs(t, err, ErrTypeMismatch)
}

func TestWhere_CategoryCodes(t *testing.T) {
	poor := NewNumeric(ColPoor, []float64{0, 1, 2, 2}, nil)
	ds, err := New(poor)
	require.NoError(t, err)

	for _, category := range []Category{Poor, NonPoor} {
		_, err = ds.Where(Is(ColPoor, category)).Rows()
		require.ErrorIs(t, err, ErrTypeMismatch, "category %v", category)
	}

	// Missing codes are skipped rather than rejected.
	ds, err = New(NewNumeric(ColPoor, []float64{0, 1, 7}, []bool{false, false, true}))
	require.NoError(t, err)
	got, err := ds.Where(Is(ColPoor, Poor)).Rows()
	require.NoError(t, err)
	require.Equal(t, []int{1}, got)
}

func TestSubset_Materialize(t *testing.T) {
	ds := load(t)

	sub := ds.Where(Is(ColPoor, Poor)).Where(Eq(ColYear, 97))
	require.Equal(t, "poor is poor && year == 97", sub.String())

	out, err := sub.Materialize()
	require.NoError(t, err)
	require.Equal(t, 2, out.Rows())

	age, err := out.Numeric("age")
	require.NoError(t, err)
	got, _ := age.Float64s()
	require.Equal(t, []float64{10, 12}, got)

	// The source is untouched.
	require.Equal(t, 8, ds.Rows())
}

func TestRecode(t *testing.T) {
	ds := load(t)

	require.ErrorIs(t, ds.Require(RecodedPoverty), ErrNotRecoded)

	once, err := Recode(ds, DefaultPeriods)
	require.NoError(t, err)
	require.NoError(t, once.Require(RecodedAll))

	twice, err := Recode(once, DefaultPeriods)
	require.NoError(t, err)
	require.True(t, once.Equal(twice))

	poor, err := once.Numeric(ColPoor)
	require.NoError(t, err)
	got, _ := poor.Float64s()
	require.Equal(t, []float64{1, 1, 1, 1, 0, 0, 0, 0}, got)

	tm, err := once.Numeric(ColTime)
	require.NoError(t, err)
	got, _ = tm.Float64s()
	require.Equal(t, []float64{0, 1, 0, 1, 0, 1, 0, 1}, got)

	// The original is not modified.
	require.Equal(t, Recoding(0), ds.Recoded())
	require.False(t, ds.Has(ColTime))
}

func TestRecodeTime_Errors(t *testing.T) {
	ds := recoded(t)

	_, err := RecodeTime(ds, Periods{Base: 98, Post: 99})
	require.ErrorIs(t, err, ErrRecoding)

	_, err = RecodeTime(load(t), Periods{Base: 97, Post: 97})
	require.ErrorIs(t, err, ErrRecoding)

	p, err := ds.Periods()
	require.NoError(t, err)
	require.Equal(t, DefaultPeriods, p)
}

func TestRecodeTime_OtherYearsMissing(t *testing.T) {
	ds, err := LoadCSV(strings.NewReader("year\n97\n98\n99\n"))
	require.NoError(t, err)

	ds, err = RecodeTime(ds, DefaultPeriods)
	require.NoError(t, err)

	tm, err := ds.Numeric(ColTime)
	require.NoError(t, err)
	require.False(t, tm.IsMissing(0))
	require.False(t, tm.IsMissing(1))
	require.True(t, tm.IsMissing(2))
}

// countingCloser is an in-memory destination which records how often it was
// closed.
type countingCloser struct {
	bytes.Buffer
	closes int
}

func (c *countingCloser) Close() error {
	c.closes++
	return nil
}

func TestParquetRoundTrip(t *testing.T) {
	ds := load(t)

	var buf countingCloser
	require.NoError(t, WriteParquet(ds, &buf))
	require.Equal(t, 1, buf.closes)

	got, err := LoadParquet(context.Background(), bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	require.True(t, ds.Equal(got), "round trip changed the dataset")
}

func TestCloseOnce(t *testing.T) {
	var dst countingCloser
	sink := &closeOnce{WriteCloser: &dst}

	require.NoError(t, sink.Close())
	require.NoError(t, sink.Close())
	require.Equal(t, 1, dst.closes)
}

func TestOpen(t *testing.T) {
	dir := t.TempDir()

	csvPath := filepath.Join(dir, "progresa_sample.csv")
	require.NoError(t, os.WriteFile(csvPath, []byte(sample), 0o644))

	ds, err := Open(context.Background(), csvPath)
	require.NoError(t, err)
	require.Equal(t, 8, ds.Rows())

	_, err = Open(context.Background(), filepath.Join(dir, "progresa_sample.xlsx"))
	require.ErrorIs(t, err, ErrLoad)
}
