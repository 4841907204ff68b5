// Package schema declares tool parameter schemas and validates loosely-typed
// call arguments against them.
//
// A Schema serves two purposes: it turns a raw JSON argument object into
// normalized Values (or a single ParseFailure naming the first offending path),
// and it publishes a JSON Schema document for discovery. Both views are derived
// from the same field declarations so they cannot drift apart: each field's
// published document is resolved with jsonschema-go and that resolved schema
// performs the type, bound, length and enum checks. This package only shapes
// values first (trimming, declared coercion, JSON number conversion) and maps
// the failing keyword to a Violation with a stable path.
package schema

import (
	"fmt"
	"math"
	"strings"

	"github.com/google/jsonschema-go/jsonschema"
)

// Kind is the declared value kind of a field.
type Kind uint8

const (
	KindString Kind = iota + 1
	KindInteger
	KindNumber
	KindBoolean
	KindStringList
)

// String returns the JSON Schema type name for the kind.
func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindInteger:
		return "integer"
	case KindNumber:
		return "number"
	case KindBoolean:
		return "boolean"
	case KindStringList:
		return "array"
	default:
		return "unknown"
	}
}

// Field declares one named parameter. Fields are values; every modifier
// returns a copy so shared declarations can be specialized safely.
type Field struct {
	name        string
	kind        Kind
	description string
	required    bool
	trim        bool
	nonEmpty    bool
	coercible   bool
	min         *float64
	max         *float64
	maxLength   int
	maxItems    int
	enum        []string
	def         any
}

func newField(kind Kind, name, description string) Field {
	return Field{name: name, kind: kind, description: description}
}

// String declares a string field.
func String(name, description string) Field {
	return newField(KindString, name, description)
}

// Integer declares an integer field.
func Integer(name, description string) Field {
	return newField(KindInteger, name, description)
}

// Number declares a floating point field.
func Number(name, description string) Field {
	return newField(KindNumber, name, description)
}

// Boolean declares a boolean field.
func Boolean(name, description string) Field {
	return newField(KindBoolean, name, description)
}

// StringList declares an array-of-strings field.
func StringList(name, description string) Field {
	return newField(KindStringList, name, description)
}

// Required marks the field as mandatory.
func (f Field) Required() Field {
	f.required = true
	return f
}

// Trimmed strips surrounding whitespace from strings (and list items) before
// any other check runs.
func (f Field) Trimmed() Field {
	f.trim = true
	return f
}

// NonEmpty rejects empty strings (and empty list items).
func (f Field) NonEmpty() Field {
	f.nonEmpty = true
	return f
}

// Coercible accepts string encodings of integers, numbers and booleans.
// Without it a quoted number is a wrong-type failure.
func (f Field) Coercible() Field {
	f.coercible = true
	return f
}

// Min sets an inclusive lower bound for numeric fields.
func (f Field) Min(v float64) Field {
	f.min = &v
	return f
}

// Max sets an inclusive upper bound for numeric fields.
func (f Field) Max(v float64) Field {
	f.max = &v
	return f
}

// MaxLength caps string length in runes.
func (f Field) MaxLength(n int) Field {
	f.maxLength = n
	return f
}

// MaxItems caps list length.
func (f Field) MaxItems(n int) Field {
	f.maxItems = n
	return f
}

// Enum restricts a string field to the given values.
func (f Field) Enum(values ...string) Field {
	f.enum = append([]string(nil), values...)
	return f
}

// Default supplies the value used when the field is absent or null.
func (f Field) Default(v any) Field {
	f.def = v
	return f
}

// Name returns the field's argument key.
func (f Field) Name() string { return f.name }

// Kind returns the declared kind.
func (f Field) Kind() Kind { return f.kind }

// IsRequired reports whether the field is mandatory.
func (f Field) IsRequired() bool { return f.required }

// Schema is an ordered set of field declarations describing a JSON object.
type Schema struct {
	fields     []Field
	checks     []fieldCheck
	resolveErr error
	lenient    bool
}

// fieldCheck holds the resolved JSON Schema for one field. List fields keep
// the array shape and the item schema apart so a failing item is reported
// with its index.
type fieldCheck struct {
	value *jsonschema.Resolved
	item  *jsonschema.Resolved
}

// Object declares a strict object schema: unknown keys are rejected.
func Object(fields ...Field) Schema {
	s := Schema{fields: append([]Field(nil), fields...)}
	s.checks, s.resolveErr = resolveChecks(s.fields)
	return s
}

func resolveChecks(fields []Field) ([]fieldCheck, error) {
	checks := make([]fieldCheck, len(fields))
	for i, field := range fields {
		doc := field.document()
		if doc.Items != nil {
			item, err := doc.Items.Resolve(nil)
			if err != nil {
				return nil, fmt.Errorf("field %q items: %w", field.name, err)
			}
			checks[i].item = item
			doc.Items = nil
		}
		value, err := doc.Resolve(nil)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", field.name, err)
		}
		checks[i].value = value
	}
	return checks, nil
}

// Lenient returns a copy of the schema that ignores unknown keys.
func (s Schema) Lenient() Schema {
	s.lenient = true
	return s
}

// Fields returns the declared fields in declaration order.
func (s Schema) Fields() []Field {
	return append([]Field(nil), s.fields...)
}

// Check reports declaration mistakes. Registries call it at startup so a bad
// schema fails the process instead of a request.
func (s Schema) Check() error {
	seen := make(map[string]struct{}, len(s.fields))
	for i, field := range s.fields {
		name := strings.TrimSpace(field.name)
		if name == "" {
			return fmt.Errorf("field %d: name is required", i)
		}
		if _, ok := seen[name]; ok {
			return fmt.Errorf("field %q declared twice", name)
		}
		seen[name] = struct{}{}
		if field.kind < KindString || field.kind > KindStringList {
			return fmt.Errorf("field %q: unknown kind", name)
		}
		if len(field.enum) > 0 && field.kind != KindString {
			return fmt.Errorf("field %q: enum is only supported on strings", name)
		}
		if (field.min != nil || field.max != nil) && field.kind != KindInteger && field.kind != KindNumber {
			return fmt.Errorf("field %q: bounds are only supported on numbers", name)
		}
		if field.min != nil && field.max != nil && *field.min > *field.max {
			return fmt.Errorf("field %q: min %v exceeds max %v", name, *field.min, *field.max)
		}
		if field.kind == KindInteger {
			if field.min != nil && *field.min != math.Trunc(*field.min) {
				return fmt.Errorf("field %q: integer min must be whole", name)
			}
			if field.max != nil && *field.max != math.Trunc(*field.max) {
				return fmt.Errorf("field %q: integer max must be whole", name)
			}
		}
		if field.def != nil && field.required {
			return fmt.Errorf("field %q: required fields cannot declare a default", name)
		}
	}
	if s.resolveErr != nil {
		return fmt.Errorf("resolve schema: %w", s.resolveErr)
	}
	return nil
}
