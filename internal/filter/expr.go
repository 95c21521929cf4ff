// Package filter is a small boolean expression algebra over record metadata.
// Access predicates are built from these nodes and handed to a corpus store,
// which either evaluates them in process ([Eval]) or lowers them to its own
// query language.
//
// Leaf values are int64 or string. Integer-like inputs of other Go types are
// normalised on construction so equality is exact.
package filter

// Expr is a node in a predicate tree. The set of implementations is closed.
type Expr interface {
	expr()
}

// True matches every record.
type True struct{}

// And matches when every term matches. An empty And matches everything.
type And struct {
	Terms []Expr
}

// Or matches when at least one term matches. An empty Or matches nothing.
type Or struct {
	Terms []Expr
}

// Eq matches when the scalar field equals Value.
type Eq struct {
	Field string
	Value any
}

// In matches when the scalar field equals any of Values.
type In struct {
	Field  string
	Values []any
}

// Intersects matches when the array field shares at least one element with
// Values.
type Intersects struct {
	Field  string
	Values []any
}

func (True) expr()       {}
func (And) expr()        {}
func (Or) expr()         {}
func (Eq) expr()         {}
func (In) expr()         {}
func (Intersects) expr() {}

// AllOf builds an [And] node.
func AllOf(terms ...Expr) And { return And{Terms: terms} }

// AnyOf builds an [Or] node.
func AnyOf(terms ...Expr) Or { return Or{Terms: terms} }

// Equals builds an [Eq] node.
func Equals(field string, value any) Eq {
	return Eq{Field: field, Value: normalize(value)}
}

// OneOf builds an [In] node from strings.
func OneOf[T ~string](field string, values ...T) In {
	vs := make([]any, len(values))
	for i, v := range values {
		vs[i] = string(v)
	}
	return In{Field: field, Values: vs}
}

// OneOfInts builds an [In] node from integers.
func OneOfInts[T ~int64](field string, values []T) In {
	return In{Field: field, Values: ints(values)}
}

// ContainsAny builds an [Intersects] node from integers.
func ContainsAny[T ~int64](field string, values []T) Intersects {
	return Intersects{Field: field, Values: ints(values)}
}

func ints[T ~int64](values []T) []any {
	vs := make([]any, len(values))
	for i, v := range values {
		vs[i] = int64(v)
	}
	return vs
}
