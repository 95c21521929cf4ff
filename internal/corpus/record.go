// Package corpus defines the embedding record model shared by the extraction
// pipeline and the retrieval layer. The metadata keys declared here are the
// only fields access predicates are allowed to reference, so both sides of the
// system import them from this package rather than spelling them inline.
package corpus

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// Source is the discriminator stored under [KeySource] on every record.
type Source string

const (
	// SourceInstitution tags institution records. The persisted value is
	// "tenant" because predicates and stored corpora already use that name.
	SourceInstitution Source = "tenant"
	// SourceSection tags class section records.
	SourceSection Source = "section"
	// SourceTeacher tags teacher records, one per person across all tenants.
	SourceTeacher Source = "teacher"
	// SourcePupil tags pupil records, one per person across all tenants.
	SourcePupil Source = "pupil"
	// SourceGrade tags one (pupil, section, subject) grade group.
	SourceGrade Source = "grade"
	// SourceBehaviour tags one pupil behaviour mark in one section.
	SourceBehaviour Source = "behaviour"
)

// Sources returns every source in pipeline emission order.
func Sources() []Source {
	return []Source{
		SourceInstitution,
		SourceSection,
		SourceTeacher,
		SourcePupil,
		SourceGrade,
		SourceBehaviour,
	}
}

// Scoping keys and the kind label. Display keys live next to the extractor
// that fills them.
const (
	KeySource      = "source"
	KeyTenantID    = "tenant_id"
	KeyAccountID   = "account_id"
	KeyAvailableIn = "available_in_tenant_ids"
	KeyKind        = "vrsta"
)

// Metadata is the open key/value mapping attached to a record.
type Metadata map[string]any

// Record is one projected entity before encoding.
type Record struct {
	// Metadata holds display fields plus the scoping keys.
	Metadata Metadata `json:"metadata"`
	// Description is the natural-language text handed to the encoder.
	Description string `json:"description"`
}

// Source returns the record's discriminator, or "" when it is missing.
func (r Record) Source() Source {
	switch v := r.Metadata[KeySource].(type) {
	case Source:
		return v
	case string:
		return Source(v)
	}
	return ""
}

// Entry is a record paired with its encoded vector, the persisted unit.
type Entry struct {
	Record
	// Position is the record's index in its run. (source, position) is the
	// stable identity stores derive ids from.
	Position int
	Vector   []float32
}

// entryNamespace scopes entry ids so they never collide with other UUIDv5
// users of the same store.
var entryNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://ednevnik.ba/kb/entry"))

// ID is the deterministic UUIDv5 of (source, position). Rebuilding an
// unchanged corpus reproduces the same ids.
func (e Entry) ID() string {
	return uuid.NewSHA1(entryNamespace, []byte(fmt.Sprintf("%s/%d", e.Source(), e.Position))).String()
}

// ErrInvalidRecord is returned by [Validate] for records that could not be
// matched correctly by access predicates.
var ErrInvalidRecord = errors.New("corpus: invalid record")

// Validate checks that r carries the scoping keys its source requires.
// Tenant-bound sources need exactly one integer tenant_id. Person sources
// need a non-nil tenant list and an account_id key, whose value may be nil.
func Validate(r Record) error {
	src := r.Source()
	switch src {
	case SourceInstitution, SourceSection, SourceGrade, SourceBehaviour:
		if _, ok := r.Metadata[KeyTenantID].(int64); !ok {
			return fmt.Errorf("%w: %s record needs an int64 %s, got %T", ErrInvalidRecord, src, KeyTenantID, r.Metadata[KeyTenantID])
		}
		if _, ok := r.Metadata[KeyAvailableIn]; ok {
			return fmt.Errorf("%w: %s record must not carry %s", ErrInvalidRecord, src, KeyAvailableIn)
		}
	case SourceTeacher, SourcePupil:
		ids, ok := r.Metadata[KeyAvailableIn].([]int64)
		if !ok || ids == nil {
			return fmt.Errorf("%w: %s record needs a %s list", ErrInvalidRecord, src, KeyAvailableIn)
		}
		if _, ok := r.Metadata[KeyTenantID]; ok {
			return fmt.Errorf("%w: %s record must not carry %s", ErrInvalidRecord, src, KeyTenantID)
		}
	default:
		return fmt.Errorf("%w: unknown source %q", ErrInvalidRecord, src)
	}

	switch src {
	case SourceTeacher, SourcePupil, SourceGrade, SourceBehaviour:
		v, ok := r.Metadata[KeyAccountID]
		if !ok {
			return fmt.Errorf("%w: %s record needs an %s key", ErrInvalidRecord, src, KeyAccountID)
		}
		if v != nil {
			if _, isInt := v.(int64); !isInt {
				return fmt.Errorf("%w: %s must be int64 or nil, got %T", ErrInvalidRecord, KeyAccountID, v)
			}
		}
	}
	if r.Description == "" {
		return fmt.Errorf("%w: %s record has an empty description", ErrInvalidRecord, src)
	}
	return nil
}
