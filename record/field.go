package record

// FieldType represents the declared type of a schema field.
type FieldType string

const (
	STRING   FieldType = "STRING"
	INT      FieldType = "INT"
	FLOAT    FieldType = "FLOAT"
	BOOLEAN  FieldType = "BOOLEAN"
	DATETIME FieldType = "DATETIME"
	BYTES    FieldType = "BYTES"
	JSON     FieldType = "JSON"
)

// Field describes one column of a record type: its name, declared type and
// stable index within the schema's ordered field list. Fields are immutable
// and shared by all records of a type.
type Field struct {
	Name  string
	Type  FieldType
	Index int
}
