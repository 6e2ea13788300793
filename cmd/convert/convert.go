package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/willbeason/progresa/pkg/dataset"
	"github.com/willbeason/progresa/pkg/tables"
)

const (
	FlagRecode   = "recode"
	FlagBaseYear = "base-year"
	FlagPostYear = "post-year"
)

func init() {
	cmd.Flags().Bool(FlagRecode, false, "store the recoded poverty and time columns")
	cmd.Flags().Float64(FlagBaseYear, dataset.DefaultPeriods.Base, "survey year before treatment")
	cmd.Flags().Float64(FlagPostYear, dataset.DefaultPeriods.Post, "survey year after treatment")
}

func main() {
	err := cmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

var cmd = cobra.Command{
	Use:     "convert IN_FILE OUT_DIR",
	Short:   "converts a .csv, .csv.gz or .dta survey file into the Apache Parquet format",
	Args:    cobra.ExactArgs(2),
	Version: "0.1.0",
	RunE:    runE,
}

func runE(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	inPath := args[0]
	outDir := args[1]

	ds, err := dataset.Open(ctx, inPath)
	if err != nil {
		return fmt.Errorf("reading %q: %w", inPath, err)
	}

	recode, err := cmd.Flags().GetBool(FlagRecode)
	if err != nil {
		return err
	}
	if recode {
		var p dataset.Periods
		p.Base, err = cmd.Flags().GetFloat64(FlagBaseYear)
		if err != nil {
			return err
		}
		p.Post, err = cmd.Flags().GetFloat64(FlagPostYear)
		if err != nil {
			return err
		}
		ds, err = dataset.Recode(ds, p)
		if err != nil {
			return err
		}
	}

	err = os.MkdirAll(outDir, os.ModePerm)
	if err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}

	outPath := filepath.Join(outDir, tables.ObservationsName+tables.ParquetExt)
	outFile, err := os.Create(outPath)
	if err != nil {
		return fmt.Errorf("creating %q: %w", outPath, err)
	}

	// WriteParquet closes outFile.
	err = dataset.WriteParquet(ds, outFile)
	if err != nil {
		return fmt.Errorf("writing %q: %w", outPath, err)
	}

	fmt.Printf("wrote %d rows, %d columns to %s\n", ds.Rows(), len(ds.Names()), outPath)
	return nil
}
