package tables

import (
	"testing"

	"github.com/apache/arrow/go/v18/arrow"
	"github.com/stretchr/testify/require"
)

func TestObservations(t *testing.T) {
	schema := Observations([]Field{
		{Name: "progresa", Categorical: true},
		{Name: "dist_sec"},
		{Name: "extra"},
	})
	require.Equal(t, 3, schema.NumFields())

	progresa := schema.Field(0)
	require.Equal(t, arrow.DICTIONARY, progresa.Type.ID())
	require.True(t, progresa.Nullable)
	require.Equal(t, "Treatment village (basal = treated, 0 = control)", CommentOf(progresa))

	distSec := schema.Field(1)
	require.Equal(t, arrow.PrimitiveTypes.Float64, distSec.Type)
	i := distSec.Metadata.FindKey(units)
	require.GreaterOrEqual(t, i, 0)
	require.Equal(t, "km", distSec.Metadata.Values()[i])

	require.Empty(t, CommentOf(schema.Field(2)))
}

func TestTypeHints(t *testing.T) {
	hints := TypeHints()
	require.Len(t, hints, len(Dictionary))
	require.Equal(t, "string", hints["poor"])
	require.Equal(t, "float64", hints["sc"])
	require.Equal(t, "float64", hints["village"])
}

func TestResultSchemas(t *testing.T) {
	for _, schema := range []*arrow.Schema{Summary, Tests, Coefficients} {
		require.Equal(t, StepFieldName, schema.Field(0).Name)
		require.NotEmpty(t, CommentOf(schema.Field(0)))
	}
}
