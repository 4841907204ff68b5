package schema

import (
	"encoding/json"

	"github.com/google/jsonschema-go/jsonschema"
)

// Document publishes the schema as a JSON Schema object for tool discovery.
func (s Schema) Document() *jsonschema.Schema {
	doc := &jsonschema.Schema{
		Type:       "object",
		Properties: make(map[string]*jsonschema.Schema, len(s.fields)),
	}
	for _, field := range s.fields {
		doc.Properties[field.name] = field.document()
		if field.required {
			doc.Required = append(doc.Required, field.name)
		}
	}
	if !s.lenient {
		// false schema: no additional properties allowed.
		doc.AdditionalProperties = &jsonschema.Schema{Not: &jsonschema.Schema{}}
	}
	return doc
}

func (f Field) document() *jsonschema.Schema {
	prop := &jsonschema.Schema{
		Type:        f.kind.String(),
		Description: f.description,
	}
	switch f.kind {
	case KindString:
		f.documentString(prop)
	case KindInteger, KindNumber:
		prop.Minimum = f.min
		prop.Maximum = f.max
	case KindStringList:
		item := &jsonschema.Schema{Type: "string"}
		f.documentString(item)
		prop.Items = item
		if f.maxItems > 0 {
			maxItems := f.maxItems
			prop.MaxItems = &maxItems
		}
	}
	if f.def != nil {
		if raw, err := json.Marshal(f.def); err == nil {
			prop.Default = raw
		}
	}
	return prop
}

func (f Field) documentString(prop *jsonschema.Schema) {
	if f.nonEmpty {
		minLength := 1
		prop.MinLength = &minLength
	}
	if f.maxLength > 0 {
		maxLength := f.maxLength
		prop.MaxLength = &maxLength
	}
	for _, value := range f.enum {
		prop.Enum = append(prop.Enum, value)
	}
}
