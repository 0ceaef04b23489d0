package model

// Field is a database property resolved against the schema: its name and
// its type. An empty name means the role is not mapped.
type Field struct {
	Name string
	Kind string
}

func (f Field) IsSet() bool {
	return f.Name != ""
}

// FieldMap holds the property for each role the sync reads or writes.
type FieldMap struct {
	VideoURL  Field
	Views     Field
	Likes     Field
	Comments  Field
	Published Field
	Title     Field
}
