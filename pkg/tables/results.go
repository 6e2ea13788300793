package tables

import "github.com/apache/arrow/go/v18/arrow"

const (
	SummaryName      = "summary"
	TestsName        = "tests"
	CoefficientsName = "coefficients"

	StepFieldName = "step"
)

var stepField = arrow.Field{
	Name: StepFieldName,
	Type: labelType,
	Metadata: NewMetadataBuilder().Comment(
		"The analysis step which produced the row",
	).Build(),
}

// Summary holds per-column descriptive statistics.
var Summary = arrow.NewSchema([]arrow.Field{
	stepField,
	{Name: "column", Type: arrow.BinaryTypes.String,
		Metadata: NewMetadataBuilder().Comment("The summarised column").Build()},
	{Name: "n", Type: arrow.PrimitiveTypes.Uint32,
		Metadata: NewMetadataBuilder().Comment("Number of present values").Build()},
	{Name: "missing", Type: arrow.PrimitiveTypes.Uint32,
		Metadata: NewMetadataBuilder().Comment("Number of missing values").Build()},
	{Name: "mean", Type: arrow.PrimitiveTypes.Float64, Nullable: true,
		Metadata: NewMetadataBuilder().Comment("Mean over present values").Build()},
	{Name: "std", Type: arrow.PrimitiveTypes.Float64, Nullable: true,
		Metadata: NewMetadataBuilder().Comment("Sample standard deviation over present values").Build()},
}, NewMetadataBuilder().Comment("Descriptive statistics").BuildReference())

// Tests holds two-sample t-test results.
var Tests = arrow.NewSchema([]arrow.Field{
	stepField,
	{Name: "column", Type: arrow.BinaryTypes.String,
		Metadata: NewMetadataBuilder().Comment("The tested column").Build()},
	{Name: "mean_a", Type: arrow.PrimitiveTypes.Float64,
		Metadata: NewMetadataBuilder().Comment("Mean of the first group (treatment)").Build()},
	{Name: "mean_b", Type: arrow.PrimitiveTypes.Float64,
		Metadata: NewMetadataBuilder().Comment("Mean of the second group (control)").Build()},
	{Name: "n_a", Type: arrow.PrimitiveTypes.Uint32},
	{Name: "n_b", Type: arrow.PrimitiveTypes.Uint32},
	{Name: "statistic", Type: arrow.PrimitiveTypes.Float64,
		Metadata: NewMetadataBuilder().Comment("The t statistic").Build()},
	{Name: "df", Type: arrow.PrimitiveTypes.Float64},
	{Name: "p_value", Type: arrow.PrimitiveTypes.Float64,
		Metadata: NewMetadataBuilder().Comment("Two-sided p-value").Build()},
	{Name: "significant", Type: arrow.FixedWidthTypes.Boolean},
	{Name: "equal_variance", Type: arrow.FixedWidthTypes.Boolean,
		Metadata: NewMetadataBuilder().Comment("Whether Student's pooled-variance test was used instead of Welch's").Build()},
}, NewMetadataBuilder().Comment("Two-sample t-tests").BuildReference())

// Coefficients holds fitted regression terms.
var Coefficients = arrow.NewSchema([]arrow.Field{
	stepField,
	{Name: "model", Type: arrow.BinaryTypes.String,
		Metadata: NewMetadataBuilder().Comment("The model specification").Build()},
	{Name: "term", Type: arrow.BinaryTypes.String},
	{Name: "estimate", Type: arrow.PrimitiveTypes.Float64},
	{Name: "std_err", Type: arrow.PrimitiveTypes.Float64},
	{Name: "t", Type: arrow.PrimitiveTypes.Float64},
	{Name: "p_value", Type: arrow.PrimitiveTypes.Float64},
	{Name: "ci_low", Type: arrow.PrimitiveTypes.Float64},
	{Name: "ci_high", Type: arrow.PrimitiveTypes.Float64},
}, NewMetadataBuilder().Comment("Regression coefficients").BuildReference())
