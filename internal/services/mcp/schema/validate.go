package schema

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

// Values holds validated, normalized arguments keyed by field name.
// Strings are string, integers int64, numbers float64, booleans bool and
// string lists []string. Defaults appear as declared.
type Values map[string]any

// Validate checks raw arguments against the schema. Missing or null
// arguments are treated as an empty object. Declared fields are checked in
// declaration order, then unknown keys in sorted order; the first violation
// is returned as a *ParseFailure.
func (s Schema) Validate(raw json.RawMessage) (Values, error) {
	object, pf := decodeObject(raw)
	if pf != nil {
		return nil, pf
	}

	if s.resolveErr != nil {
		return nil, s.resolveErr
	}
	values := make(Values, len(s.fields))
	for i, field := range s.fields {
		value, present := object[field.name]
		if !present || value == nil {
			if field.def != nil {
				values[field.name] = field.def
				continue
			}
			if field.required {
				return nil, failure(field.name, ViolationMissing, "is required")
			}
			continue
		}
		normalized, pf := field.check(s.checks[i], value)
		if pf != nil {
			return nil, pf
		}
		values[field.name] = normalized
	}

	if s.lenient {
		return values, nil
	}
	declared := make(map[string]struct{}, len(s.fields))
	for _, field := range s.fields {
		declared[field.name] = struct{}{}
	}
	unknown := make([]string, 0)
	for key := range object {
		if _, ok := declared[key]; !ok {
			unknown = append(unknown, key)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return nil, failure(unknown[0], ViolationUnexpected, "is not a recognized parameter")
	}
	return values, nil
}

// Decode converts validated values into the typed input struct T using its
// json tags.
func Decode[T any](values Values) (T, error) {
	var out T
	data, err := json.Marshal(values)
	if err != nil {
		return out, fmt.Errorf("encode arguments: %w", err)
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return out, fmt.Errorf("decode arguments into %T: %w", out, err)
	}
	return out, nil
}

func decodeObject(raw json.RawMessage) (map[string]any, *ParseFailure) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return map[string]any{}, nil
	}
	decoder := json.NewDecoder(bytes.NewReader(trimmed))
	decoder.UseNumber()
	var decoded any
	if err := decoder.Decode(&decoded); err != nil {
		return nil, failure("", ViolationWrongType, "arguments must be a JSON object")
	}
	if decoder.More() {
		return nil, failure("", ViolationWrongType, "arguments must be a single JSON object")
	}
	object, ok := decoded.(map[string]any)
	if !ok {
		return nil, failure("", ViolationWrongType, "arguments must be a JSON object, got "+typeOf(decoded))
	}
	return object, nil
}

// check prepares value for f and validates it against the field's resolved
// JSON Schema. Preparation trims, coerces declared string encodings and turns
// JSON numbers into int64 or float64; everything structural is left to the
// schema.
func (f Field) check(c fieldCheck, value any) (any, *ParseFailure) {
	if c.value == nil {
		return nil, failure(f.name, ViolationWrongType, "has an unsupported declaration")
	}
	if f.kind == KindStringList {
		return f.checkList(c, value)
	}
	prepared, pf := f.prepare(f.name, value)
	if pf != nil {
		return nil, pf
	}
	if err := c.value.Validate(prepared); err != nil {
		return nil, f.violation(f.name, f.kind, value, prepared, err)
	}
	return prepared, nil
}

func (f Field) checkList(c fieldCheck, value any) (any, *ParseFailure) {
	items, ok := value.([]any)
	if !ok {
		return nil, wrongType(f.name, KindStringList.String(), value)
	}
	if err := c.value.Validate(items); err != nil {
		return nil, f.violation(f.name, KindStringList, value, items, err)
	}
	out := make([]string, 0, len(items))
	for i, item := range items {
		path := fmt.Sprintf("%s[%d]", f.name, i)
		prepared := plain(item)
		if text, ok := prepared.(string); ok && f.trim {
			prepared = strings.TrimSpace(text)
		}
		if err := c.item.Validate(prepared); err != nil {
			return nil, f.violation(path, KindString, item, prepared, err)
		}
		out = append(out, prepared.(string))
	}
	return out, nil
}

func (f Field) prepare(path string, value any) (any, *ParseFailure) {
	switch f.kind {
	case KindString:
		if text, ok := value.(string); ok && f.trim {
			return strings.TrimSpace(text), nil
		}
	case KindInteger:
		number, ok := f.numberOf(value)
		if !ok {
			break
		}
		if parsed, err := number.Int64(); err == nil {
			return parsed, nil
		}
		asFloat, err := number.Float64()
		if err != nil || math.IsNaN(asFloat) || math.IsInf(asFloat, 0) {
			return nil, wrongType(path, "integer", value)
		}
		if asFloat != math.Trunc(asFloat) {
			return asFloat, nil
		}
		// float64(math.MaxInt64) rounds up to 2^63, which int64 cannot hold.
		if asFloat >= math.MaxInt64 || asFloat < math.MinInt64 {
			return nil, failure(path, ViolationOutOfRange, "is outside the integer range")
		}
		return int64(asFloat), nil
	case KindNumber:
		number, ok := f.numberOf(value)
		if !ok {
			break
		}
		parsed, err := number.Float64()
		if err != nil || math.IsNaN(parsed) || math.IsInf(parsed, 0) {
			return nil, wrongType(path, "number", value)
		}
		return parsed, nil
	case KindBoolean:
		if text, ok := value.(string); ok && f.coercible {
			switch strings.TrimSpace(text) {
			case "true":
				return true, nil
			case "false":
				return false, nil
			}
		}
	}
	return plain(value), nil
}

// numberOf returns value as a JSON number when it is one, or when it is a
// string and the field accepts string encodings.
func (f Field) numberOf(value any) (json.Number, bool) {
	switch v := value.(type) {
	case json.Number:
		return v, true
	case string:
		trimmed := strings.TrimSpace(v)
		if !f.coercible || trimmed == "" {
			return "", false
		}
		if _, err := strconv.ParseFloat(trimmed, 64); err != nil {
			return "", false
		}
		return json.Number(trimmed), true
	default:
		return "", false
	}
}

// plain converts decoded JSON numbers into Go numbers. The schema validator
// would otherwise see json.Number as a string.
func plain(value any) any {
	number, ok := value.(json.Number)
	if !ok {
		return value
	}
	if parsed, err := number.Int64(); err == nil {
		return parsed
	}
	if parsed, err := number.Float64(); err == nil {
		return parsed
	}
	return value
}

// violation turns a JSON Schema validation error into a ParseFailure. Only the
// failing keyword is used; the detail is rendered from the declaration so
// messages stay stable and never echo the argument.
func (f Field) violation(path string, kind Kind, original, prepared any, err error) *ParseFailure {
	switch failedKeyword(err) {
	case "type":
		if _, fractional := prepared.(float64); fractional && kind == KindInteger {
			return failure(path, ViolationWrongType, "expected integer, got fractional number")
		}
		return wrongType(path, kind.String(), original)
	case "enum":
		return failure(path, ViolationOutOfRange, "must be one of: "+strings.Join(f.enum, ", "))
	case "minimum":
		return failure(path, ViolationOutOfRange, "must be >= "+formatBound(*f.min))
	case "maximum":
		return failure(path, ViolationOutOfRange, "must be <= "+formatBound(*f.max))
	case "minLength":
		return failure(path, ViolationOutOfRange, "must not be empty")
	case "maxLength":
		return failure(path, ViolationOutOfRange, fmt.Sprintf("must be at most %d characters", f.maxLength))
	case "maxItems":
		return failure(path, ViolationOutOfRange, fmt.Sprintf("must have at most %d items", f.maxItems))
	default:
		return failure(path, ViolationOutOfRange, "is invalid")
	}
}

// failedKeyword returns the keyword of the innermost validation error.
// jsonschema-go wraps each nested schema level around a leaf error of the
// form "<keyword>: <detail>".
func failedKeyword(err error) string {
	for {
		next := errors.Unwrap(err)
		if next == nil {
			break
		}
		err = next
	}
	keyword, _, _ := strings.Cut(err.Error(), ":")
	return strings.TrimSpace(keyword)
}

func wrongType(path, expected string, got any) *ParseFailure {
	return failure(path, ViolationWrongType, fmt.Sprintf("expected %s, got %s", expected, typeOf(got)))
}

func typeOf(value any) string {
	switch value.(type) {
	case nil:
		return "null"
	case string:
		return "string"
	case json.Number, float64:
		return "number"
	case bool:
		return "boolean"
	case []any:
		return "array"
	case map[string]any:
		return "object"
	default:
		return fmt.Sprintf("%T", value)
	}
}

func formatBound(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
