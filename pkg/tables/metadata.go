package tables

import "github.com/apache/arrow/go/v18/arrow"

const (
	comment = "comment"
	units   = "units"
)

// MetadataBuilder is a convenience type to aid readability of code that
// specifies metadata for Arrow fields and schemas.
type MetadataBuilder struct {
	keys   []string
	values []string
}

func NewMetadataBuilder() *MetadataBuilder {
	return &MetadataBuilder{}
}

func (b *MetadataBuilder) Add(key, value string) *MetadataBuilder {
	b.keys = append(b.keys, key)
	b.values = append(b.values, value)
	return b
}

// Comment adds a human-readable description.
func (b *MetadataBuilder) Comment(text string) *MetadataBuilder {
	return b.Add(comment, text)
}

// Build constructs and returns the arrow.Metadata.
func (b *MetadataBuilder) Build() arrow.Metadata {
	return arrow.NewMetadata(b.keys, b.values)
}

// BuildReference constructs and returns the arrow.Metadata result as a
// reference.
func (b *MetadataBuilder) BuildReference() *arrow.Metadata {
	result := b.Build()
	return &result
}

// CommentOf returns the description attached to a field, if any.
func CommentOf(field arrow.Field) string {
	i := field.Metadata.FindKey(comment)
	if i < 0 {
		return ""
	}
	return field.Metadata.Values()[i]
}
