package extract

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// Refs holds workspace reference tables that tenant rows point into. Tenant
// partitions can not join across databases, so the lookups are loaded once
// and resolved in process.
type Refs struct {
	tenants   map[int64]string
	curricula map[string]curriculumRef
	courses   map[string]string
	subjects  map[string]string
}

type curriculumRef struct {
	Code       string         `db:"curriculum_code"`
	Name       string         `db:"curriculum_name"`
	CourseCode sql.NullString `db:"course_code"`
}

// LoadRefs reads the reference tables from the workspace.
func LoadRefs(ctx context.Context, db *sqlx.DB) (*Refs, error) {
	r := &Refs{
		tenants:   make(map[int64]string),
		curricula: make(map[string]curriculumRef),
		courses:   make(map[string]string),
		subjects:  make(map[string]string),
	}

	var tenants []struct {
		ID   int64  `db:"id"`
		Name string `db:"tenant_name"`
	}
	if err := query(ctx, db, &tenants, `SELECT id, tenant_name FROM tenant`); err != nil {
		return nil, fmt.Errorf("extract: load tenant names: %w", err)
	}
	for _, t := range tenants {
		r.tenants[t.ID] = t.Name
	}

	var curricula []curriculumRef
	if err := query(ctx, db, &curricula, `SELECT curriculum_code, curriculum_name, course_code FROM curriculum`); err != nil {
		return nil, fmt.Errorf("extract: load curricula: %w", err)
	}
	for _, c := range curricula {
		r.curricula[c.Code] = c
	}

	var codes []struct {
		Code string `db:"code"`
		Name string `db:"name"`
	}
	if err := query(ctx, db, &codes, `SELECT course_code AS code, course_name AS name FROM courses_secondary`); err != nil {
		return nil, fmt.Errorf("extract: load courses: %w", err)
	}
	for _, c := range codes {
		r.courses[c.Code] = c.Name
	}

	codes = codes[:0]
	if err := query(ctx, db, &codes, `SELECT subject_code AS code, subject_name AS name FROM subjects`); err != nil {
		return nil, fmt.Errorf("extract: load subjects: %w", err)
	}
	for _, c := range codes {
		r.subjects[c.Code] = c.Name
	}
	return r, nil
}

// TenantName resolves a tenant id to its display name.
func (r *Refs) TenantName(id int64) (string, bool) {
	name, ok := r.tenants[id]
	return name, ok
}

// Curriculum resolves a curriculum code to its name.
func (r *Refs) Curriculum(code sql.NullString) (string, bool) {
	if !code.Valid {
		return "", false
	}
	c, ok := r.curricula[code.String]
	return c.Name, ok
}

// Course returns the secondary-school course of a curriculum, or "" when the
// curriculum has none.
func (r *Refs) Course(curriculumCode sql.NullString) string {
	if !curriculumCode.Valid {
		return ""
	}
	c, ok := r.curricula[curriculumCode.String]
	if !ok || !c.CourseCode.Valid {
		return ""
	}
	return r.courses[c.CourseCode.String]
}

// Subject resolves a subject code to its name.
func (r *Refs) Subject(code string) (string, bool) {
	name, ok := r.subjects[code]
	return name, ok
}

// sectionRow is the section columns every section-bearing kind reads.
type sectionRow struct {
	SectionID      int64          `db:"section_id"`
	SectionCode    string         `db:"section_code"`
	ClassCode      string         `db:"class_code"`
	TenantID       int64          `db:"section_tenant_id"`
	CurriculumCode sql.NullString `db:"curriculum_code"`
	Archived       bool           `db:"archived"`
}

// sectionColumns selects a [sectionRow] from a sections table aliased s.
const sectionColumns = `s.id AS section_id, s.section_code, s.class_code, s.tenant_id AS section_tenant_id, s.curriculum_code, s.archived`

// Code is the display code, class then section.
func (s sectionRow) Code() string {
	return s.ClassCode + "-" + s.SectionCode
}
