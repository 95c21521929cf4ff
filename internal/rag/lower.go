package rag

import (
	"fmt"

	"github.com/qdrant/go-client/qdrant"

	"github.com/54b3r/ednevnik-kb/internal/corpus"
	"github.com/54b3r/ednevnik-kb/internal/filter"
)

// LowerFilter translates a predicate into a Qdrant filter. [filter.True]
// lowers to nil, meaning an unfiltered query. And becomes Must, Or becomes
// Should, and leaves become keyword or integer matches. Qdrant matches an
// array payload when any element matches, which is exactly Intersects.
func LowerFilter(e filter.Expr) (*qdrant.Filter, error) {
	if _, ok := e.(filter.True); ok {
		return nil, nil
	}
	return lower(e)
}

func lower(e filter.Expr) (*qdrant.Filter, error) {
	switch n := e.(type) {
	case filter.True:
		return &qdrant.Filter{}, nil
	case filter.And:
		conds, err := conditions(n.Terms)
		if err != nil {
			return nil, err
		}
		return &qdrant.Filter{Must: conds}, nil
	case filter.Or:
		if len(n.Terms) == 0 {
			return &qdrant.Filter{Must: []*qdrant.Condition{neverCondition()}}, nil
		}
		conds, err := conditions(n.Terms)
		if err != nil {
			return nil, err
		}
		return &qdrant.Filter{Should: conds}, nil
	default:
		c, err := leaf(e)
		if err != nil {
			return nil, err
		}
		return &qdrant.Filter{Must: []*qdrant.Condition{c}}, nil
	}
}

func conditions(terms []filter.Expr) ([]*qdrant.Condition, error) {
	out := make([]*qdrant.Condition, 0, len(terms))
	for _, t := range terms {
		switch t.(type) {
		case filter.And, filter.Or, filter.True:
			f, err := lower(t)
			if err != nil {
				return nil, err
			}
			out = append(out, &qdrant.Condition{ConditionOneOf: &qdrant.Condition_Filter{Filter: f}})
		default:
			c, err := leaf(t)
			if err != nil {
				return nil, err
			}
			out = append(out, c)
		}
	}
	return out, nil
}

func leaf(e filter.Expr) (*qdrant.Condition, error) {
	switch n := e.(type) {
	case filter.Eq:
		switch v := n.Value.(type) {
		case string:
			return fieldMatch(n.Field, &qdrant.Match{MatchValue: &qdrant.Match_Keyword{Keyword: v}}), nil
		case int64:
			return fieldMatch(n.Field, &qdrant.Match{MatchValue: &qdrant.Match_Integer{Integer: v}}), nil
		}
		return nil, fmt.Errorf("qdrant: unsupported value %T for field %q", n.Value, n.Field)
	case filter.In:
		return anyOf(n.Field, n.Values)
	case filter.Intersects:
		return anyOf(n.Field, n.Values)
	}
	return nil, fmt.Errorf("qdrant: unsupported predicate %T", e)
}

func anyOf(field string, values []any) (*qdrant.Condition, error) {
	if len(values) == 0 {
		return neverCondition(), nil
	}
	var strs []string
	var ints []int64
	for _, v := range values {
		switch x := v.(type) {
		case string:
			strs = append(strs, x)
		case int64:
			ints = append(ints, x)
		default:
			return nil, fmt.Errorf("qdrant: unsupported value %T for field %q", v, field)
		}
	}
	switch {
	case ints == nil:
		return fieldMatch(field, &qdrant.Match{MatchValue: &qdrant.Match_Keywords{
			Keywords: &qdrant.RepeatedStrings{Strings: strs},
		}}), nil
	case strs == nil:
		return fieldMatch(field, &qdrant.Match{MatchValue: &qdrant.Match_Integers{
			Integers: &qdrant.RepeatedIntegers{Integers: ints},
		}}), nil
	}
	return nil, fmt.Errorf("qdrant: mixed value types for field %q", field)
}

func fieldMatch(field string, m *qdrant.Match) *qdrant.Condition {
	return &qdrant.Condition{
		ConditionOneOf: &qdrant.Condition_Field{
			Field: &qdrant.FieldCondition{Key: field, Match: m},
		},
	}
}

// neverCondition matches no stored entry: every entry has a non-empty source.
func neverCondition() *qdrant.Condition {
	return fieldMatch(corpus.KeySource, &qdrant.Match{MatchValue: &qdrant.Match_Keyword{Keyword: ""}})
}
