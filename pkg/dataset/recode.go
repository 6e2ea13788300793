package dataset

import (
	"fmt"
	"strings"
)

// Recoding is a set of flags recording which recodings a Dataset has been
// through.
type Recoding uint8

const (
	// RecodedPoverty means the poverty column holds 0/1 codes instead of labels.
	RecodedPoverty Recoding = 1 << iota
	// RecodedTime means the binary post-period column exists.
	RecodedTime

	RecodedAll = RecodedPoverty | RecodedTime
)

func (r Recoding) String() string {
	var parts []string
	if r&RecodedPoverty != 0 {
		parts = append(parts, "poverty")
	}
	if r&RecodedTime != 0 {
		parts = append(parts, "time")
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, "+")
}

// Periods maps survey years onto the binary time indicator.
type Periods struct {
	Base float64 `yaml:"base_year" json:"base_year"`
	Post float64 `yaml:"post_year" json:"post_year"`
}

// DefaultPeriods are the two survey rounds in the sample file.
var DefaultPeriods = Periods{Base: 97, Post: 98}

// RecodePoverty replaces the categorical poverty column with its 0/1 code.
// Applying it to an already recoded dataset returns the dataset unchanged.
func RecodePoverty(ds *Dataset) (*Dataset, error) {
	if ds.recoded&RecodedPoverty != 0 {
		return ds, nil
	}

	col, err := ds.Column(ColPoor)
	if err != nil {
		return nil, fmt.Errorf("%w: poverty: %w", ErrRecoding, err)
	}

	codes := make([]float64, col.Len())
	missing := make([]bool, col.Len())
	for i := range codes {
		if col.IsMissing(i) {
			missing[i] = true
			continue
		}
		p, err := ParsePoverty(col.Label(i))
		if err != nil {
			return nil, fmt.Errorf("%w: poverty: row %d: %w", ErrRecoding, i, err)
		}
		codes[i] = p.Code()
	}

	out := ds.withColumn(NewNumeric(ColPoor, codes, missing))
	out.recoded |= RecodedPoverty
	return out, nil
}

// RecodeTime adds the binary post-period column: 0 in the base year, 1 in the
// post year and missing otherwise. Applying the same mapping twice returns
// the dataset unchanged; a different mapping is an error.
func RecodeTime(ds *Dataset, p Periods) (*Dataset, error) {
	if ds.recoded&RecodedTime != 0 {
		if ds.periods != p {
			return nil, fmt.Errorf("%w: time already recoded with %v, not %v", ErrRecoding, ds.periods, p)
		}
		return ds, nil
	}
	if p.Base == p.Post {
		return nil, fmt.Errorf("%w: base and post year are both %g", ErrRecoding, p.Base)
	}

	year, err := ds.Numeric(ColYear)
	if err != nil {
		return nil, fmt.Errorf("%w: time: %w", ErrRecoding, err)
	}

	codes := make([]float64, year.Len())
	missing := make([]bool, year.Len())
	for i := range codes {
		switch {
		case year.IsMissing(i):
			missing[i] = true
		case year.Value(i) == p.Base:
			codes[i] = 0
		case year.Value(i) == p.Post:
			codes[i] = 1
		default:
			missing[i] = true
		}
	}

	out := ds.withColumn(NewNumeric(ColTime, codes, missing))
	out.recoded |= RecodedTime
	out.periods = p
	return out, nil
}

// Recode applies the poverty and then the time recoding.
func Recode(ds *Dataset, p Periods) (*Dataset, error) {
	out, err := RecodePoverty(ds)
	if err != nil {
		return nil, err
	}
	return RecodeTime(out, p)
}

// Periods returns the year mapping used by the time recoding.
func (ds *Dataset) Periods() (Periods, error) {
	if err := ds.Require(RecodedTime); err != nil {
		return Periods{}, err
	}
	return ds.periods, nil
}
