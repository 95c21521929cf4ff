package filter

import (
	"encoding/json"
	"fmt"
)

// Document renders e in the Mongo-style operator form accepted by document
// vector stores:
//
//	{"$or":[{"$and":[{"source":{"$in":["pupil","teacher"]}},{"tenant_id":{"$eq":7}}]}]}
//
// [True] renders as an empty object. [Intersects] renders as "$in" because
// the stores apply membership tests element-wise to array fields.
func Document(e Expr) (map[string]any, error) {
	switch n := e.(type) {
	case True:
		return map[string]any{}, nil
	case And:
		terms, err := documents(n.Terms)
		if err != nil {
			return nil, err
		}
		return map[string]any{"$and": terms}, nil
	case Or:
		terms, err := documents(n.Terms)
		if err != nil {
			return nil, err
		}
		return map[string]any{"$or": terms}, nil
	case Eq:
		return map[string]any{n.Field: map[string]any{"$eq": normalize(n.Value)}}, nil
	case In:
		return map[string]any{n.Field: map[string]any{"$in": normalizeAll(n.Values)}}, nil
	case Intersects:
		return map[string]any{n.Field: map[string]any{"$in": normalizeAll(n.Values)}}, nil
	}
	return nil, fmt.Errorf("filter: unsupported node %T", e)
}

// MarshalJSON is a convenience wrapper around [Document].
func MarshalJSON(e Expr) ([]byte, error) {
	doc, err := Document(e)
	if err != nil {
		return nil, err
	}
	return json.Marshal(doc)
}

func documents(terms []Expr) ([]any, error) {
	out := make([]any, 0, len(terms))
	for _, t := range terms {
		d, err := Document(t)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, nil
}

func normalizeAll(vs []any) []any {
	out := make([]any, len(vs))
	for i, v := range vs {
		out[i] = normalize(v)
	}
	return out
}
