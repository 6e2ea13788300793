package main

import (
	"flag"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/willbeason/progresa/pkg/dataset"
	"github.com/willbeason/progresa/pkg/tables"
)

const (
	FlagPartitions = "partitions"
	FlagSeed       = "seed"
)

func init() {
	cmd.Flags().Float64Slice(FlagPartitions, []float64{0.1, 0.25}, "dataset partitions, as fractions of villages")
	cmd.Flags().Int64(FlagSeed, 0, "random seed")
}

func main() {
	flag.Parse()
	err := cmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

var cmd = cobra.Command{
	Use:     "subsample IN_FILE OUT_DIR",
	Short:   "subsamples the Progresa survey by village",
	Args:    cobra.ExactArgs(2),
	Version: "0.1.0",
	RunE:    runE,
}

func runE(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	inPath := args[0]
	outDir := args[1]

	err := os.MkdirAll(outDir, os.ModePerm)
	if err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}

	partitions, err := cmd.Flags().GetFloat64Slice(FlagPartitions)
	if err != nil {
		return fmt.Errorf("getting partitions: %w", err)
	}

	thresholds := make([]float64, len(partitions))
	sum := 0.0
	for i, partition := range partitions {
		sum += partition
		thresholds[i] = sum
	}
	if sum > 1 {
		return fmt.Errorf("partitions sum to %g, more than every village", sum)
	}

	seed, err := getSeed(cmd)
	if err != nil {
		return fmt.Errorf("getting seed: %w", err)
	}

	ds, err := dataset.Open(ctx, inPath)
	if err != nil {
		return fmt.Errorf("reading %q: %w", inPath, err)
	}

	rowPartitions, err := getPartitions(ds, seed, thresholds)
	if err != nil {
		return fmt.Errorf("getting village partitions: %w", err)
	}

	for i, rows := range rowPartitions {
		outPath := filepath.Join(outDir, fmt.Sprintf("%s_%d%s", tables.ObservationsName, i, tables.ParquetExt))
		err = writePartition(ds.Take(rows), outPath)
		if err != nil {
			return fmt.Errorf("writing partition %d: %w", i, err)
		}
		fmt.Println(outPath, len(rows))
	}

	return nil
}

// getPartitions assigns every village to at most one partition, so a village
// is never split between subsamples, and returns the rows of each partition.
func getPartitions(ds *dataset.Dataset, seed int64, thresholds []float64) ([][]int, error) {
	village, err := ds.Column(dataset.ColVillage)
	if err != nil {
		return nil, err
	}

	villageRows := make(map[float64][]int)
	for i := 0; i < village.Len(); i++ {
		if village.IsMissing(i) {
			continue
		}
		v := village.Value(i)
		villageRows[v] = append(villageRows[v], i)
	}

	// Draw villages in a fixed order so a seed always gives the same result.
	villages := make([]float64, 0, len(villageRows))
	for v := range villageRows {
		villages = append(villages, v)
	}
	sort.Float64s(villages)

	rng := rand.New(rand.NewSource(seed))
	partitions := make([][]int, len(thresholds))
	for _, v := range villages {
		randValue := rng.Float64()
		for j, threshold := range thresholds {
			if randValue < threshold {
				partitions[j] = append(partitions[j], villageRows[v]...)
				break
			}
		}
	}

	for _, rows := range partitions {
		sort.Ints(rows)
	}
	return partitions, nil
}

func writePartition(ds *dataset.Dataset, outPath string) error {
	outFile, err := os.Create(outPath)
	if err != nil {
		return fmt.Errorf("creating %q: %w", outPath, err)
	}
	return dataset.WriteParquet(ds, outFile)
}

func getSeed(cmd *cobra.Command) (int64, error) {
	// Check if the user set the seed manually.
	seedSet := false
	cmd.Flags().Visit(func(f *pflag.Flag) {
		if f.Name == FlagSeed {
			seedSet = true
		}
	})

	if seedSet {
		// User-provided seed.
		seed, err := cmd.Flags().GetInt64(FlagSeed)
		if err != nil {
			return 0, err
		}
		return seed, nil
	} else {
		// Use time as seed.
		return time.Now().UnixNano(), nil
	}
}
