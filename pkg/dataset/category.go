package dataset

import (
	"fmt"
	"strings"
)

// Names of the survey columns the analysis refers to directly.
const (
	ColYear     = "year"
	ColTime     = "time"
	ColPoor     = "poor"
	ColProgresa = "progresa"
	ColEnrolled = "sc"
	ColVillage  = "village"
	ColChild    = "folnum"
	ColHohedu   = "hohedu"
)

// A Category is one value of a validated binary group column. It knows both
// the raw label used in the survey file and the 0/1 code used after recoding.
type Category interface {
	Label() string
	Code() float64
	fmt.Stringer

	// parse maps a raw label onto the category type, failing for labels
	// outside its domain.
	parse(label string) (Category, error)
}

// Treatment is the program assignment of a village. It is fixed per village
// and does not change between survey years.
type Treatment uint8

const (
	Control Treatment = iota
	Treated
)

func (t Treatment) Label() string {
	if t == Treated {
		return "basal"
	}
	return "0"
}

func (t Treatment) Code() float64 { return float64(t) }

func (t Treatment) String() string {
	if t == Treated {
		return "treated"
	}
	return "control"
}

func (Treatment) parse(label string) (Category, error) {
	return ParseTreatment(label)
}

// ParseTreatment accepts the survey labels ("basal", "0") and 0/1 codes.
func ParseTreatment(label string) (Treatment, error) {
	switch strings.ToLower(strings.TrimSpace(label)) {
	case "basal", "1", "1.0":
		return Treated, nil
	case "0", "0.0":
		return Control, nil
	default:
		return Control, fmt.Errorf("%w: unknown treatment label %q", ErrTypeMismatch, label)
	}
}

// Poverty is the baseline poverty classification of a household.
type Poverty uint8

const (
	NonPoor Poverty = iota
	Poor
)

func (p Poverty) Label() string {
	if p == Poor {
		return "pobre"
	}
	return "no pobre"
}

func (p Poverty) Code() float64 { return float64(p) }

func (p Poverty) String() string {
	if p == Poor {
		return "poor"
	}
	return "non-poor"
}

func (Poverty) parse(label string) (Category, error) {
	return ParsePoverty(label)
}

// ParsePoverty accepts the survey labels ("pobre", "no pobre") and 0/1 codes.
func ParsePoverty(label string) (Poverty, error) {
	switch strings.ToLower(strings.TrimSpace(label)) {
	case "pobre", "1", "1.0":
		return Poor, nil
	case "no pobre", "0", "0.0":
		return NonPoor, nil
	default:
		return NonPoor, fmt.Errorf("%w: unknown poverty label %q", ErrTypeMismatch, label)
	}
}
