package profile

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

// MaxEnum is the largest number of unique values to track before not trying to
// interpret the column as an enum.
const MaxEnum = 20

// Field accumulates the raw cells of one column of a delimited file.
// Adding a cell may promote the field to a more general kind, so callers must
// keep the returned Field.
type Field interface {
	Add(cell string) Field
	// Type is the storage type suggested for the column.
	Type() string
	String() string
}

// IsMissing reports whether a raw cell denotes a missing value.
func IsMissing(cell string) bool {
	switch strings.TrimSpace(cell) {
	case "", "NA", "NaN", "nan", ".":
		return true
	default:
		return false
	}
}

// counts is shared by every field kind.
type counts struct {
	Present int
	Missing int

	// Seen tracks the unique cells passed to this field.
	// Stops collecting values after it contains more than MaxEnum entries.
	Seen map[string]int
}

func (c *counts) see(cell string) {
	c.Present++
	if c.Seen == nil {
		c.Seen = make(map[string]int)
	}
	if len(c.Seen) <= MaxEnum {
		c.Seen[cell]++
	}
}

func (c *counts) enum() bool {
	return len(c.Seen) <= MaxEnum
}

func (c *counts) writeSeen(result *strings.Builder) {
	if !c.enum() {
		return
	}
	keys := make([]string, 0, len(c.Seen))
	for k := range c.Seen {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		result.WriteString(fmt.Sprintf("%s:%d;", k, c.Seen[k]))
	}
}

// EmptyField represents a column which has held only missing values so far.
// Adding a present cell returns a non-EmptyField.
type EmptyField struct {
	Missing int
}

func (f *EmptyField) Add(cell string) Field {
	if IsMissing(cell) {
		f.Missing++
		return f
	}

	cell = strings.TrimSpace(cell)
	if x, err := strconv.ParseFloat(cell, 64); err == nil {
		nf := &NumberField{counts: counts{Missing: f.Missing}}
		nf.add(cell, x)
		return nf
	}
	sf := &StringField{counts: counts{Missing: f.Missing}}
	sf.see(cell)
	return sf
}

func (f *EmptyField) Type() string { return "empty" }

func (f *EmptyField) String() string {
	return fmt.Sprintf("empty;missing:%d", f.Missing)
}

// A NumberField only holds numbers. Keeps track of the properties of the
// numbers passed in to determine the types of numbers used.
type NumberField struct {
	counts

	// Integral tracks if all instances of this field are integers.
	Integral bool
	// Float32 tracks if all instances of this field can fit in a 32-bit floating
	// point type. Note that integers greater than about 2^23 cannot fit in
	// 32-bit floats.
	Float32 bool

	// Min and Max allow determining whether the number is unsigned, or, for
	// integers, the smallest type which can hold all seen values.
	Min, Max float64
}

func (f *NumberField) Add(cell string) Field {
	if IsMissing(cell) {
		f.Missing++
		return f
	}

	cell = strings.TrimSpace(cell)
	x, err := strconv.ParseFloat(cell, 64)
	if err != nil {
		// A label in a numeric column makes the whole column a string column.
		sf := &StringField{counts: f.counts}
		sf.see(cell)
		return sf
	}
	f.add(cell, x)
	return f
}

func (f *NumberField) add(cell string, x float64) {
	if f.Present > 0 {
		f.Integral = f.Integral && isIntegral(x)
		f.Float32 = f.Float32 && isFloat32(x)

		if x < f.Min {
			f.Min = x
		} else if x > f.Max {
			f.Max = x
		}
	} else {
		f.Integral = isIntegral(x)
		f.Float32 = isFloat32(x)

		f.Min = x
		f.Max = x
	}
	f.see(cell)
}

func isIntegral(f float64) bool {
	return math.Round(f) == f
}

const (
	Float64FractionLength = 52
	Float32FractionLength = 23
	Float64Mask           = (1 << (Float64FractionLength - Float32FractionLength)) - 1
)

func isFloat32(f float64) bool {
	n := math.Float64bits(f)
	n &= Float64Mask

	// The number can be represented as a float32 without loss of precision as
	// it uses none of the float64-specific fraction bits.
	// Does not handle exponents out of the range of float32.
	return n == 0
}

func (f *NumberField) Type() string {
	if !f.Integral {
		if f.Float32 {
			return "float32"
		}
		return "float64"
	}

	if f.Min < 0 {
		switch {
		case f.Min >= math.MinInt8 && f.Max <= math.MaxInt8:
			return "int8"
		case f.Min >= math.MinInt16 && f.Max <= math.MaxInt16:
			return "int16"
		case f.Min >= math.MinInt32 && f.Max <= math.MaxInt32:
			return "int32"
		default:
			return "int64"
		}
	}

	switch {
	case f.Max <= math.MaxUint8:
		return "uint8"
	case f.Max <= math.MaxUint16:
		return "uint16"
	case f.Max <= math.MaxUint32:
		return "uint32"
	default:
		return "uint64"
	}
}

func (f *NumberField) String() string {
	result := strings.Builder{}
	result.WriteString(f.Type())
	result.WriteString(";")
	if f.Integral {
		result.WriteString(fmt.Sprintf("%d;%d;", int64(f.Min), int64(f.Max)))
	} else {
		result.WriteString(fmt.Sprintf("%f;%f;", f.Min, f.Max))
	}
	result.WriteString(fmt.Sprintf("missing:%d;", f.Missing))
	f.writeSeen(&result)

	return result.String()
}

// A StringField holds at least one value which is not a number.
type StringField struct {
	counts
}

func (f *StringField) Add(cell string) Field {
	if IsMissing(cell) {
		f.Missing++
		return f
	}
	f.see(strings.TrimSpace(cell))
	return f
}

// Type is "enum" while few enough unique values have been seen to treat the
// column as categorical.
func (f *StringField) Type() string {
	if f.enum() {
		return "enum"
	}
	return "string"
}

func (f *StringField) String() string {
	result := strings.Builder{}
	if f.enum() {
		result.WriteString(fmt.Sprintf("enum;%d;", len(f.Seen)))
	} else {
		result.WriteString("string;")
	}
	result.WriteString(fmt.Sprintf("missing:%d;", f.Missing))
	f.writeSeen(&result)

	return result.String()
}
