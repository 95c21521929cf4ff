package filter

import (
	"encoding/json"
	"math"
	"reflect"
)

// Eval reports whether md satisfies e. A field that is missing or nil never
// matches a leaf, so a record without an account_id can not be reached by an
// account predicate.
func Eval(e Expr, md map[string]any) bool {
	switch n := e.(type) {
	case True:
		return true
	case And:
		for _, t := range n.Terms {
			if !Eval(t, md) {
				return false
			}
		}
		return true
	case Or:
		for _, t := range n.Terms {
			if Eval(t, md) {
				return true
			}
		}
		return false
	case Eq:
		v, ok := scalar(md, n.Field)
		return ok && v == normalize(n.Value)
	case In:
		v, ok := scalar(md, n.Field)
		return ok && contains(n.Values, v)
	case Intersects:
		raw, ok := md[n.Field]
		if !ok || raw == nil {
			return false
		}
		for _, el := range elements(raw) {
			if el != nil && contains(n.Values, el) {
				return true
			}
		}
		return false
	}
	return false
}

func scalar(md map[string]any, field string) (any, bool) {
	raw, ok := md[field]
	if !ok || raw == nil {
		return nil, false
	}
	v := normalize(raw)
	if v == nil {
		return nil, false
	}
	return v, true
}

func contains(set []any, v any) bool {
	for _, s := range set {
		if normalize(s) == v {
			return true
		}
	}
	return false
}

// elements flattens the slice shapes metadata arrays arrive in, either built
// in process or decoded from JSON.
func elements(raw any) []any {
	switch a := raw.(type) {
	case []any:
		out := make([]any, len(a))
		for i, x := range a {
			out[i] = normalize(x)
		}
		return out
	case []int64:
		out := make([]any, len(a))
		for i, x := range a {
			out[i] = x
		}
		return out
	case []int:
		out := make([]any, len(a))
		for i, x := range a {
			out[i] = int64(x)
		}
		return out
	case []string:
		out := make([]any, len(a))
		for i, x := range a {
			out[i] = x
		}
		return out
	}
	return []any{normalize(raw)}
}

// normalize maps numeric inputs onto int64 when they are integral so values
// decoded from JSON compare equal to values built in Go. Non-integral floats
// and unsupported types map to nil and never match.
func normalize(v any) any {
	switch x := v.(type) {
	case string:
		return x
	case int64:
		return x
	case int:
		return int64(x)
	case int32:
		return int64(x)
	case uint32:
		return int64(x)
	case float64:
		if x == math.Trunc(x) && !math.IsInf(x, 0) {
			return int64(x)
		}
	case json.Number:
		if i, err := x.Int64(); err == nil {
			return i
		}
	default:
		rv := reflect.ValueOf(v)
		switch rv.Kind() {
		case reflect.String:
			return rv.String()
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			return rv.Int()
		}
	}
	return nil
}
