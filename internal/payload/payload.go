// Package payload converts arbitrary JSON-like message payloads to and from
// the document store's native dynamic value form (bson.M / bson.A / scalars).
//
// Bare scalars are stored inside a single-field wrapper document
// {"value": X} so every stored payload is a document; FromStoredForm
// unwraps that special case.
package payload

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
)

const wrapperField = "value"

// ToStoredForm normalizes a payload value for persistence.
//
//   - nil stays nil;
//   - values already in stored form (bson.M/bson.A/bson.D) pass through;
//   - a string that looks like a JSON object or array is parsed; on parse
//     failure it is wrapped as {"value": s};
//   - any other string is wrapped as {"value": s};
//   - any other structured value is converted field-by-field; unexpected
//     conversion failure degrades to {"value": "<string form>"} rather than
//     failing the write.
func ToStoredForm(v any) any {
	switch typed := v.(type) {
	case nil:
		return nil
	case bson.M, bson.A, bson.D:
		return v
	case string:
		if looksLikeJSON(typed) {
			if parsed, err := parseJSON(typed); err == nil {
				return toBSONValue(parsed)
			}
		}
		return bson.M{wrapperField: typed}
	default:
		converted, err := convertStructured(v)
		if err != nil {
			return bson.M{wrapperField: fmt.Sprintf("%v", v)}
		}
		return converted
	}
}

// FromStoredForm reverses ToStoredForm, returning native dynamic values
// (map[string]any, []any, string, int64, float64, bool, time.Time, nil).
// The single-field {"value": X} wrapper is unwrapped; a wrapped string that
// looks like JSON is re-parsed.
func FromStoredForm(doc any) any {
	native := fromBSONValue(doc)
	m, ok := native.(map[string]any)
	if !ok || len(m) != 1 {
		return native
	}
	inner, ok := m[wrapperField]
	if !ok {
		return native
	}
	if s, isStr := inner.(string); isStr {
		if looksLikeJSON(s) {
			if parsed, err := parseJSON(s); err == nil {
				return normalizeJSON(parsed)
			}
		}
		return s
	}
	return inner
}

func looksLikeJSON(s string) bool {
	trimmed := strings.TrimSpace(s)
	return (strings.HasPrefix(trimmed, "{") && strings.HasSuffix(trimmed, "}")) ||
		(strings.HasPrefix(trimmed, "[") && strings.HasSuffix(trimmed, "]"))
}

// parseJSON decodes with json.Number so integers survive undamaged.
func parseJSON(s string) (any, error) {
	dec := json.NewDecoder(strings.NewReader(s))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	return v, nil
}

// convertStructured maps an already-parsed tree or typed object to stored
// form. Typed objects take a round trip through encoding/json so only their
// serializable fields persist.
func convertStructured(v any) (any, error) {
	switch v.(type) {
	case map[string]any, []any, bool,
		int, int32, int64, float32, float64, json.Number, time.Time:
		return toBSONValue(v), nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	parsed, err := parseJSON(string(raw))
	if err != nil {
		return nil, err
	}
	return toBSONValue(parsed), nil
}

func toBSONValue(v any) any {
	switch typed := v.(type) {
	case nil:
		return nil
	case map[string]any:
		m := bson.M{}
		for k, val := range typed {
			m[k] = toBSONValue(val)
		}
		return m
	case bson.M:
		m := bson.M{}
		for k, val := range typed {
			m[k] = toBSONValue(val)
		}
		return m
	case []any:
		a := make(bson.A, len(typed))
		for i, val := range typed {
			a[i] = toBSONValue(val)
		}
		return a
	case bson.A:
		a := make(bson.A, len(typed))
		for i, val := range typed {
			a[i] = toBSONValue(val)
		}
		return a
	case json.Number:
		if i, err := typed.Int64(); err == nil {
			if i >= -2147483648 && i <= 2147483647 {
				return int32(i)
			}
			return i
		}
		if f, err := typed.Float64(); err == nil {
			return f
		}
		return typed.String()
	case int:
		return toBSONValue(json.Number(strconv.Itoa(typed)))
	case int32, int64, float64, bool, string, time.Time:
		return typed
	case float32:
		return float64(typed)
	default:
		return fmt.Sprintf("%v", v)
	}
}

func fromBSONValue(v any) any {
	switch typed := v.(type) {
	case nil:
		return nil
	case bson.M:
		m := make(map[string]any, len(typed))
		for k, val := range typed {
			m[k] = fromBSONValue(val)
		}
		return m
	case map[string]any:
		m := make(map[string]any, len(typed))
		for k, val := range typed {
			m[k] = fromBSONValue(val)
		}
		return m
	case bson.D:
		m := make(map[string]any, len(typed))
		for _, e := range typed {
			m[e.Key] = fromBSONValue(e.Value)
		}
		return m
	case bson.A:
		a := make([]any, len(typed))
		for i, val := range typed {
			a[i] = fromBSONValue(val)
		}
		return a
	case []any:
		a := make([]any, len(typed))
		for i, val := range typed {
			a[i] = fromBSONValue(val)
		}
		return a
	case int32:
		return int64(typed)
	case bson.DateTime:
		return typed.Time()
	case bson.Decimal128:
		if f, err := strconv.ParseFloat(typed.String(), 64); err == nil {
			return f
		}
		return typed.String()
	default:
		return v
	}
}

// normalizeJSON maps a json.Number tree onto the same native types
// fromBSONValue produces, so wrapped-JSON unwrapping and document decoding
// agree on number representation.
func normalizeJSON(v any) any {
	switch typed := v.(type) {
	case map[string]any:
		m := make(map[string]any, len(typed))
		for k, val := range typed {
			m[k] = normalizeJSON(val)
		}
		return m
	case []any:
		a := make([]any, len(typed))
		for i, val := range typed {
			a[i] = normalizeJSON(val)
		}
		return a
	case json.Number:
		if i, err := typed.Int64(); err == nil {
			return i
		}
		if f, err := typed.Float64(); err == nil {
			return f
		}
		return typed.String()
	default:
		return v
	}
}
