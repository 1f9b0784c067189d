package schema

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"

	"toolhub/internal/domain"
)

// validator checks one argument value and returns its normalized form:
// string, int64, float64, bool, []any or map[string]any.
type validator func(value any) (any, error)

var validators = map[domain.ParamType]validator{
	domain.ParamString:  validateString,
	domain.ParamInteger: validateInteger,
	domain.ParamFloat:   validateFloat,
	domain.ParamBoolean: validateBoolean,
	domain.ParamList:    validateList,
	domain.ParamMapping: validateMapping,
}

func validatorFor(t domain.ParamType) validator {
	if v, ok := validators[t]; ok {
		return v
	}
	return validateString
}

var errNull = errors.New("must not be null")

func validateString(value any) (any, error) {
	switch v := value.(type) {
	case nil:
		return nil, errNull
	case string:
		return v, nil
	default:
		return nil, fmt.Errorf("expected string, got %s", kindOf(value))
	}
}

func validateInteger(value any) (any, error) {
	switch v := value.(type) {
	case nil:
		return nil, errNull
	case bool:
		return nil, fmt.Errorf("expected integer, got %s", kindOf(value))
	case json.Number:
		if n, err := v.Int64(); err == nil {
			return n, nil
		}
		f, err := v.Float64()
		if err != nil {
			return nil, fmt.Errorf("expected integer, got %q", v.String())
		}
		return integralFloat(f)
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("expected integer, got %q", v)
		}
		return n, nil
	case float32:
		return integralFloat(float64(v))
	case float64:
		return integralFloat(v)
	}
	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int(), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		u := rv.Uint()
		if u > math.MaxInt64 {
			return nil, errors.New("integer out of range")
		}
		return int64(u), nil
	}
	return nil, fmt.Errorf("expected integer, got %s", kindOf(value))
}

func integralFloat(f float64) (any, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return nil, fmt.Errorf("expected integer, got %v", f)
	}
	if f >= 1<<63 || f < -1<<63 {
		return nil, errors.New("integer out of range")
	}
	return int64(f), nil
}

func validateFloat(value any) (any, error) {
	switch v := value.(type) {
	case nil:
		return nil, errNull
	case bool:
		return nil, fmt.Errorf("expected number, got %s", kindOf(value))
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return nil, fmt.Errorf("expected number, got %q", v.String())
		}
		return f, nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return nil, fmt.Errorf("expected number, got %q", v)
		}
		return f, nil
	}
	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.Float32, reflect.Float64:
		return rv.Float(), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(rv.Int()), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(rv.Uint()), nil
	}
	return nil, fmt.Errorf("expected number, got %s", kindOf(value))
}

func validateBoolean(value any) (any, error) {
	switch v := value.(type) {
	case nil:
		return nil, errNull
	case bool:
		return v, nil
	case string:
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return nil, fmt.Errorf("expected boolean, got %q", v)
		}
		return b, nil
	default:
		return nil, fmt.Errorf("expected boolean, got %s", kindOf(value))
	}
}

func validateList(value any) (any, error) {
	switch v := value.(type) {
	case nil:
		return nil, errNull
	case []any:
		return v, nil
	case string:
		return nil, fmt.Errorf("expected list, got %s", kindOf(value))
	}
	rv := reflect.ValueOf(value)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, fmt.Errorf("expected list, got %s", kindOf(value))
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out, nil
}

func validateMapping(value any) (any, error) {
	switch v := value.(type) {
	case nil:
		return nil, errNull
	case map[string]any:
		return v, nil
	}
	rv := reflect.ValueOf(value)
	if rv.Kind() != reflect.Map || rv.Type().Key().Kind() != reflect.String {
		return nil, fmt.Errorf("expected mapping, got %s", kindOf(value))
	}
	out := make(map[string]any, rv.Len())
	iter := rv.MapRange()
	for iter.Next() {
		out[iter.Key().String()] = iter.Value().Interface()
	}
	return out, nil
}

func kindOf(value any) string {
	if value == nil {
		return "null"
	}
	switch value.(type) {
	case string:
		return "string"
	case bool:
		return "boolean"
	case json.Number:
		return "number"
	}
	switch reflect.ValueOf(value).Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return "integer"
	case reflect.Float32, reflect.Float64:
		return "number"
	case reflect.Slice, reflect.Array:
		return "list"
	case reflect.Map:
		return "mapping"
	default:
		return fmt.Sprintf("%T", value)
	}
}
