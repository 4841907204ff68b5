package schema

import (
	"fmt"
	"reflect"
	"sort"
	"strings"
)

// CheckBinding reports mismatches between the schema and the input struct its
// values are decoded into. Every declared field needs a json-tagged struct
// field of a compatible Go type, and every decodable struct field needs a
// declaration; otherwise a field could be validated and then silently dropped.
// Non-struct targets are not checked.
func (s Schema) CheckBinding(target reflect.Type) error {
	for target != nil && target.Kind() == reflect.Pointer {
		target = target.Elem()
	}
	if target == nil || target.Kind() != reflect.Struct {
		return nil
	}

	tagged := make(map[string]reflect.Type)
	collectJSONFields(target, tagged)

	for _, field := range s.fields {
		goType, ok := tagged[field.name]
		if !ok {
			return fmt.Errorf("field %q has no matching json tag on %s", field.name, target)
		}
		if !field.kind.accepts(goType) {
			return fmt.Errorf("field %q is %s but %s.%s is %s", field.name, field.kind, target, field.name, goType)
		}
		delete(tagged, field.name)
	}
	if len(tagged) > 0 {
		extra := make([]string, 0, len(tagged))
		for name := range tagged {
			extra = append(extra, name)
		}
		sort.Strings(extra)
		return fmt.Errorf("%s decodes undeclared fields: %s", target, strings.Join(extra, ", "))
	}
	return nil
}

// collectJSONFields records the JSON names encoding/json would decode into t,
// flattening untagged embedded structs.
func collectJSONFields(t reflect.Type, into map[string]reflect.Type) {
	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		tag := sf.Tag.Get("json")
		if tag == "-" {
			continue
		}
		name, _, _ := strings.Cut(tag, ",")
		if sf.Anonymous && name == "" {
			embedded := sf.Type
			if embedded.Kind() == reflect.Pointer {
				embedded = embedded.Elem()
			}
			if embedded.Kind() == reflect.Struct {
				collectJSONFields(embedded, into)
				continue
			}
		}
		if !sf.IsExported() {
			continue
		}
		if name == "" {
			name = sf.Name
		}
		into[name] = sf.Type
	}
}

func (k Kind) accepts(t reflect.Type) bool {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	switch k {
	case KindString:
		return t.Kind() == reflect.String
	case KindInteger:
		switch t.Kind() {
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			return true
		}
		return false
	case KindNumber:
		return t.Kind() == reflect.Float32 || t.Kind() == reflect.Float64
	case KindBoolean:
		return t.Kind() == reflect.Bool
	case KindStringList:
		return t.Kind() == reflect.Slice && t.Elem().Kind() == reflect.String
	default:
		return false
	}
}
