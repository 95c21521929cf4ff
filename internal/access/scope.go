// Package access compiles a requester's role and scope into a metadata
// predicate. The predicate is an allow-list: a record is reachable only if
// its source is named in one of the role's clauses and its scoping key
// intersects the requester's scope.
package access

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
)

// Role is the account type claimed by an authenticated session.
type Role string

const (
	// RoleRoot has unrestricted access.
	RoleRoot Role = "root"
	// RoleTenantAdmin administers exactly one institution.
	RoleTenantAdmin Role = "tenant_admin"
	// RoleTeacher sees the institutions they are associated with.
	RoleTeacher Role = "teacher"
	// RolePupil sees their own records plus their institutions.
	RolePupil Role = "pupil"
)

var (
	// ErrUnknownRole is returned for any role outside the four known values.
	ErrUnknownRole = errors.New("access: unknown role")
	// ErrMissingScope is returned when a role's mandatory scope is absent.
	ErrMissingScope = errors.New("access: missing scope")
)

// Scope is the wire form of the requester claims supplied per query.
type Scope struct {
	// Role is the account type.
	Role Role `json:"account_type"`
	// AccountID identifies the login. Only pupils are scoped by it.
	AccountID int64 `json:"account_id"`
	// TenantIDs lists the tenants the account is associated with.
	TenantIDs TenantIDs `json:"tenant_ids,omitempty"`
	// AdministeredTenantID is the tenant a tenant_admin administers.
	AdministeredTenantID *int64 `json:"tenant_admin_tenant_id,omitempty"`
}

// TenantIDs decodes from a JSON array of integers or numeric strings. Session
// payloads have historically carried tenant ids as strings.
type TenantIDs []int64

// UnmarshalJSON implements [json.Unmarshaler].
func (ids *TenantIDs) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*ids = nil
		return nil
	}
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("access: tenant_ids: %w", err)
	}
	out := make(TenantIDs, 0, len(raw))
	for i, r := range raw {
		var n int64
		if err := json.Unmarshal(r, &n); err == nil {
			out = append(out, n)
			continue
		}
		var s string
		if err := json.Unmarshal(r, &s); err != nil {
			return fmt.Errorf("access: tenant_ids[%d]: want integer or string", i)
		}
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return fmt.Errorf("access: tenant_ids[%d]: %w", i, err)
		}
		out = append(out, n)
	}
	*ids = out
	return nil
}

// Requester is the closed set of resolved requester shapes. Only the types in
// this package implement it.
type Requester interface {
	role() Role
}

// Root is an unrestricted requester.
type Root struct{}

// TenantAdmin administers a single tenant.
type TenantAdmin struct {
	TenantID int64
}

// Teacher is scoped by the tenants they are associated with.
type Teacher struct {
	TenantIDs []int64
}

// Pupil is scoped by tenant membership and by their own account.
type Pupil struct {
	TenantIDs []int64
	AccountID int64
}

func (Root) role() Role        { return RoleRoot }
func (TenantAdmin) role() Role { return RoleTenantAdmin }
func (Teacher) role() Role     { return RoleTeacher }
func (Pupil) role() Role       { return RolePupil }

// Resolve turns wire claims into a [Requester]. Unknown roles and a
// tenant_admin without an administered tenant are rejected so a malformed
// session can never fall through to a broader predicate.
func Resolve(s Scope) (Requester, error) {
	switch s.Role {
	case RoleRoot:
		return Root{}, nil
	case RoleTenantAdmin:
		if s.AdministeredTenantID == nil {
			return nil, fmt.Errorf("%w: tenant_admin without tenant_admin_tenant_id", ErrMissingScope)
		}
		return TenantAdmin{TenantID: *s.AdministeredTenantID}, nil
	case RoleTeacher:
		return Teacher{TenantIDs: s.TenantIDs}, nil
	case RolePupil:
		return Pupil{TenantIDs: s.TenantIDs, AccountID: s.AccountID}, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownRole, s.Role)
}
