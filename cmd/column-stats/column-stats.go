package main

import (
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/spf13/cobra"
	"github.com/vbauerster/mpb"
	"github.com/vbauerster/mpb/decor"
	"github.com/willbeason/bondsmith"
	"github.com/willbeason/progresa/pkg/profile"
	"github.com/willbeason/progresa/pkg/tables"
	"golang.org/x/term"
	"gopkg.in/yaml.v3"
)

const IncEvery = 1 << 10

const (
	FlagOut       = "out"
	FlagDelimiter = "delimiter"
	FlagHints     = "hints"
)

func main() {
	cmd.Flags().String(FlagOut, "", "output file path (default: stdout)")
	cmd.Flags().String(FlagDelimiter, ",", "field delimiter")
	cmd.Flags().Bool(FlagHints, false, "print loader type hints as YAML instead of statistics")

	err := cmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

var cmd = cobra.Command{
	Use:     "column-stats FILE",
	Short:   "Collect statistics about the columns of a .csv or .csv.gz survey file",
	Args:    cobra.ExactArgs(1),
	Version: "0.1.0",
	RunE:    runE,
}

var ErrColumnStats = errors.New("getting column statistics")

func runE(cmd *cobra.Command, args []string) error {
	inPath := args[0]

	if !strings.HasSuffix(inPath, ".csv") && !strings.HasSuffix(inPath, ".csv.gz") {
		return fmt.Errorf("%w: file %q is not a .csv or .csv.gz file", ErrColumnStats, inPath)
	}

	delimiter, err := cmd.Flags().GetString(FlagDelimiter)
	if err != nil {
		return err
	}
	if utf8.RuneCountInString(delimiter) != 1 {
		return fmt.Errorf("%w: delimiter must be one character, got %q", ErrColumnStats, delimiter)
	}
	comma, _ := utf8.DecodeRuneInString(delimiter)

	width, _, err := term.GetSize(int(os.Stderr.Fd()))
	if err != nil {
		width = 80
	}
	p := mpb.New(mpb.WithWidth(width), mpb.WithOutput(os.Stderr))

	prof, err := processFile(p, inPath, comma)
	if err != nil {
		return err
	}
	p.Wait()

	outPath, err := cmd.Flags().GetString(FlagOut)
	if err != nil {
		return err
	}

	outFile := os.Stdout
	if outPath != "" {
		outFile, err = os.Create(outPath)
		if err != nil {
			return err
		}
		defer func() {
			_ = outFile.Close()
		}()
	}

	hints, err := cmd.Flags().GetBool(FlagHints)
	if err != nil {
		return err
	}
	if hints {
		enc := yaml.NewEncoder(outFile)
		enc.SetIndent(2)
		err = enc.Encode(prof.Hints())
		if err != nil {
			return err
		}
		return enc.Close()
	}

	return writeStats(outFile, prof)
}

func processFile(p *mpb.Progress, inPath string, comma rune) (*profile.Profile, error) {
	file, err := os.Open(inPath)
	if err != nil {
		return nil, fmt.Errorf("%w: opening %q: %w", ErrColumnStats, inPath, err)
	}
	defer func() {
		_ = file.Close()
	}()

	stat, err := os.Stat(inPath)
	if err != nil {
		return nil, fmt.Errorf("%w: getting stat for %q: %w", ErrColumnStats, inPath, err)
	}

	countReader := bondsmith.NewCountReader(file)
	var reader io.Reader = countReader
	if strings.HasSuffix(inPath, ".gz") {
		reader, err = gzip.NewReader(countReader)
		if err != nil {
			return nil, fmt.Errorf("%w: starting gzip reader stream for %q: %w", ErrColumnStats, inPath, err)
		}
	}

	bar := p.AddBar(stat.Size(),
		mpb.AppendDecorators(decor.AverageETA(decor.ET_STYLE_GO)),
		mpb.PrependDecorators(decor.Name(filepath.Base(inPath))),
		mpb.BarRemoveOnComplete(),
	)

	lastSeen := 0
	start := time.Now()
	prof, err := profile.Read(reader, comma, func(rows int) {
		if rows%IncEvery == 0 {
			curProgress := int(countReader.Count())
			bar.IncrBy(curProgress-lastSeen, time.Since(start))
			lastSeen = curProgress
		}
	})
	if err != nil {
		return nil, fmt.Errorf("%w: processing %q: %w", ErrColumnStats, inPath, err)
	}
	bar.IncrBy(int(countReader.Count())-lastSeen, time.Since(start))

	return prof, nil
}

// writeStats prints one line per column: name, inferred type, the data
// dictionary description and the value statistics.
func writeStats(w io.Writer, prof *profile.Profile) error {
	_, err := fmt.Fprintf(w, "# %d rows\n", prof.Rows)
	if err != nil {
		return err
	}

	for i, name := range prof.Names {
		field := prof.Fields[i]
		description := ""
		if v, ok := tables.Lookup(name); ok {
			description = v.Description
		}
		_, err = fmt.Fprintf(w, "%s;%s;%s;%s\n", name, field.Type(), description, field)
		if err != nil {
			return err
		}
	}
	return nil
}
