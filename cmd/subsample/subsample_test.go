package main

import (
	"fmt"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
	"github.com/willbeason/progresa/pkg/dataset"
)

func survey(t *testing.T) *dataset.Dataset {
	t.Helper()
	var b strings.Builder
	b.WriteString("year,village,progresa,poor,sc\n")
	for village := 1; village <= 40; village++ {
		for _, year := range []int{97, 98} {
			for k := 0; k < 3; k++ {
				fmt.Fprintf(&b, "%d,%d,basal,pobre,%d\n", year, village, k%2)
			}
		}
	}
	ds, err := dataset.LoadCSV(strings.NewReader(b.String()))
	require.NoError(t, err)
	return ds
}

func TestGetPartitions(t *testing.T) {
	ds := survey(t)
	thresholds := []float64{0.25, 0.75}

	partitions, err := getPartitions(ds, 7, thresholds)
	require.NoError(t, err)
	require.Len(t, partitions, 2)

	again, err := getPartitions(ds, 7, thresholds)
	require.NoError(t, err)
	if diff := cmp.Diff(partitions, again); diff != "" {
		t.Errorf("same seed gave different partitions (-first +second):\n%s", diff)
	}

	village, err := ds.Column(dataset.ColVillage)
	require.NoError(t, err)

	owner := make(map[float64]int)
	seen := make(map[int]bool)
	for p, rows := range partitions {
		for _, row := range rows {
			require.False(t, seen[row], "row %d in two partitions", row)
			seen[row] = true

			v := village.Value(row)
			if prev, ok := owner[v]; ok {
				require.Equal(t, prev, p, "village %g split between partitions", v)
			}
			owner[v] = p
		}
	}

	// Every sampled village keeps all six of its rows.
	for v := range owner {
		n := 0
		for _, rows := range partitions {
			for _, row := range rows {
				if village.Value(row) == v {
					n++
				}
			}
		}
		require.Equal(t, 6, n)
	}
}

func TestGetPartitions_NoVillage(t *testing.T) {
	ds, err := dataset.LoadCSV(strings.NewReader("year,progresa,poor\n97,basal,pobre\n"))
	require.NoError(t, err)

	_, err = getPartitions(ds, 1, []float64{0.5})
	require.ErrorIs(t, err, dataset.ErrColumnNotFound)
}
