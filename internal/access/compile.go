package access

import (
	"fmt"

	"github.com/54b3r/ednevnik-kb/internal/corpus"
	"github.com/54b3r/ednevnik-kb/internal/filter"
)

// NeverMatchSource is a source value no record carries. A predicate on it is
// the explicit unsatisfiable clause used for scopeless requesters.
const NeverMatchSource = "__NEVER_MATCH__"

// NeverMatch returns the unsatisfiable predicate.
func NeverMatch() filter.Expr {
	return filter.Equals(corpus.KeySource, NeverMatchSource)
}

var (
	personSources = []corpus.Source{corpus.SourcePupil, corpus.SourceTeacher}
	tenantSources = []corpus.Source{
		corpus.SourceGrade,
		corpus.SourceBehaviour,
		corpus.SourceInstitution,
		corpus.SourceSection,
	}
)

// Compile returns the predicate for r. It performs no I/O and keeps no state.
func Compile(r Requester) (filter.Expr, error) {
	switch q := r.(type) {
	case Root:
		return filter.True{}, nil

	case TenantAdmin:
		return filter.AnyOf(
			filter.AllOf(
				filter.OneOf(corpus.KeySource, personSources...),
				filter.ContainsAny(corpus.KeyAvailableIn, []int64{q.TenantID}),
			),
			filter.AllOf(
				filter.OneOf(corpus.KeySource, tenantSources...),
				filter.Equals(corpus.KeyTenantID, q.TenantID),
			),
		), nil

	case Teacher:
		if len(q.TenantIDs) == 0 {
			return NeverMatch(), nil
		}
		return filter.AnyOf(
			filter.AllOf(
				filter.OneOf(corpus.KeySource, personSources...),
				filter.ContainsAny(corpus.KeyAvailableIn, q.TenantIDs),
			),
			filter.AllOf(
				filter.OneOf(corpus.KeySource, tenantSources...),
				filter.OneOfInts(corpus.KeyTenantID, q.TenantIDs),
			),
		), nil

	case Pupil:
		if len(q.TenantIDs) == 0 {
			// Without tenant membership the pupil only reaches records
			// owned by their account. Institution and section records
			// are deliberately unreachable here.
			return filter.AnyOf(
				filter.AllOf(filter.Equals(corpus.KeySource, string(corpus.SourcePupil)), filter.Equals(corpus.KeyAccountID, q.AccountID)),
				filter.AllOf(filter.Equals(corpus.KeySource, string(corpus.SourceGrade)), filter.Equals(corpus.KeyAccountID, q.AccountID)),
				filter.AllOf(filter.Equals(corpus.KeySource, string(corpus.SourceBehaviour)), filter.Equals(corpus.KeyAccountID, q.AccountID)),
			), nil
		}
		return filter.AnyOf(
			filter.AllOf(
				filter.OneOf(corpus.KeySource, corpus.SourceInstitution, corpus.SourceSection),
				filter.OneOfInts(corpus.KeyTenantID, q.TenantIDs),
			),
			filter.AllOf(
				filter.OneOf(corpus.KeySource, corpus.SourcePupil, corpus.SourceGrade, corpus.SourceBehaviour),
				filter.Equals(corpus.KeyAccountID, q.AccountID),
			),
		), nil
	}
	return nil, fmt.Errorf("%w: requester %T", ErrUnknownRole, r)
}

// CompileScope resolves s and compiles the resulting requester.
func CompileScope(s Scope) (filter.Expr, error) {
	r, err := Resolve(s)
	if err != nil {
		return nil, err
	}
	return Compile(r)
}
