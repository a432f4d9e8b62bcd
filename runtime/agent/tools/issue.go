package tools

// FieldIssue represents a single validation issue for a tool payload.
// Constraint values: missing_field, invalid_enum_value, invalid_format,
// invalid_pattern, invalid_range, invalid_length, invalid_field_type,
// schema_compile_error.
type FieldIssue struct {
	Field      string
	Constraint string
	// Optional extras for richer retry hints; not all are populated for every constraint.
	Allowed []string
	MinLen  *int
	MaxLen  *int
	Pattern string
	Format  string
}
