package tables

import (
	"github.com/apache/arrow/go/v18/arrow"
)

const (
	ObservationsName = "observations"

	ParquetExt = ".parquet"
)

// Variable describes one field of the Progresa survey extract.
type Variable struct {
	Name        string
	Description string
	// Categorical variables hold string labels in the raw file.
	Categorical bool
	Units       string
}

// Dictionary is the data dictionary of the child-year survey extract, in file
// order.
var Dictionary = []Variable{
	{Name: "year", Description: "Year in which data is collected", Units: "two-digit year"},
	{Name: "sex", Description: "Sex of the child (male = 1)"},
	{Name: "indig", Description: "Indigenous (indigenous = 1)"},
	{Name: "dist_sec", Description: "Nearest distance to a secondary school", Units: "km"},
	{Name: "sc", Description: "Enrolled in school in year of survey"},
	{Name: "grc", Description: "Grade enrolled"},
	{Name: "fam_n", Description: "Family size"},
	{Name: "min_dist", Description: "Minimum distance to an urban center", Units: "km"},
	{Name: "dist_cap", Description: "Minimum distance to the capital", Units: "km"},
	{Name: "poor", Description: "Poverty classification at baseline (pobre, no pobre)", Categorical: true},
	{Name: "progresa", Description: "Treatment village (basal = treated, 0 = control)", Categorical: true},
	{Name: "hohedu", Description: "Years of schooling of head of household", Units: "years"},
	{Name: "hohwag", Description: "Monthly wages of head of household", Units: "pesos"},
	{Name: "welfare_index", Description: "Welfare index used to classify poor"},
	{Name: "hohsex", Description: "Gender of head of household (male = 1)"},
	{Name: "hohage", Description: "Age of head of household", Units: "years"},
	{Name: "age", Description: "Age of the child", Units: "years"},
	{Name: "village", Description: "Village identifier"},
	{Name: "folnum", Description: "Individual identifier"},
	{Name: "grc97", Description: "Grade enrolled in 1997"},
	{Name: "sc97", Description: "Enrolled in school in 1997"},
}

// Lookup returns the dictionary entry for name.
func Lookup(name string) (Variable, bool) {
	for _, v := range Dictionary {
		if v.Name == name {
			return v, true
		}
	}
	return Variable{}, false
}

// TypeHints maps every dictionary variable to the storage type the CSV reader
// should use instead of sniffing it from the first rows of the file.
func TypeHints() map[string]string {
	hints := make(map[string]string, len(Dictionary))
	for _, v := range Dictionary {
		if v.Categorical {
			hints[v.Name] = "string"
		} else {
			hints[v.Name] = "float64"
		}
	}
	return hints
}

// Field describes a column to be stored in an observations file.
type Field struct {
	Name        string
	Categorical bool
}

var labelType = &arrow.DictionaryType{
	IndexType: arrow.PrimitiveTypes.Uint8,
	ValueType: arrow.BinaryTypes.String,
	Ordered:   false,
}

// Observations builds the Arrow schema for a table of child-year
// observations. Numeric columns are stored as nullable float64 and categorical
// columns as dictionary-encoded strings. Known variables carry their
// dictionary description.
func Observations(fields []Field) *arrow.Schema {
	result := make([]arrow.Field, len(fields))
	for i, f := range fields {
		md := NewMetadataBuilder()
		if v, ok := Lookup(f.Name); ok {
			md.Comment(v.Description)
			if v.Units != "" {
				md.Add(units, v.Units)
			}
		}

		var t arrow.DataType = arrow.PrimitiveTypes.Float64
		if f.Categorical {
			t = labelType
		}

		result[i] = arrow.Field{
			Name:     f.Name,
			Type:     t,
			Nullable: true,
			Metadata: md.Build(),
		}
	}

	return arrow.NewSchema(result, NewMetadataBuilder().Comment(
		"Child-year observations from the Progresa evaluation sample",
	).BuildReference())
}
