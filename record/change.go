package record

// ChangeKind is the mutation kind of a row change.
type ChangeKind int

const (
	Add ChangeKind = iota + 1
	Update
	Delete
)

// String returns the kind name.
func (k ChangeKind) String() string {
	switch k {
	case Add:
		return "insert"
	case Update:
		return "update"
	case Delete:
		return "delete"
	default:
		return "unknown"
	}
}

// RowChange is an externally computed mutation instruction: a kind, the
// record it applies to and, for updates, the explicit set of changed fields.
// The explicit set is independent of the record's own change tracking; a diff
// computed against another store may cover a different field subset than the
// record's local mutations. An empty Changed set on an Update means
// "record-driven": the record's own changed set is used.
type RowChange struct {
	Kind    ChangeKind
	Record  *Record
	Changed FieldSet
}

// AddChange builds an insert row change.
func AddChange(r *Record) RowChange {
	return RowChange{Kind: Add, Record: r}
}

// UpdateChange builds an update row change carrying an explicit diff.
func UpdateChange(r *Record, changed FieldSet) RowChange {
	return RowChange{Kind: Update, Record: r, Changed: changed}
}

// DeleteChange builds a delete row change.
func DeleteChange(r *Record) RowChange {
	return RowChange{Kind: Delete, Record: r}
}
