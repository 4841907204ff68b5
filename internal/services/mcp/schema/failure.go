package schema

// Violation classifies why an argument failed validation.
type Violation string

const (
	ViolationMissing    Violation = "missing"
	ViolationWrongType  Violation = "wrong-type"
	ViolationOutOfRange Violation = "out-of-range"
	ViolationUnexpected Violation = "unexpected-field"
)

// ParseFailure describes the first argument that violated the schema.
// Path is the argument key, with "[i]" appended for list items; it is empty
// when the arguments as a whole are malformed.
type ParseFailure struct {
	Path      string
	Violation Violation
	Detail    string
}

func (f *ParseFailure) Error() string {
	if f.Path == "" {
		return f.Detail
	}
	return f.Path + ": " + f.Detail
}

func failure(path string, violation Violation, detail string) *ParseFailure {
	return &ParseFailure{Path: path, Violation: violation, Detail: detail}
}
