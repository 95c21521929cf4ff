// Package catalogtest builds throwaway sqlite workspace and tenant partitions
// for tests that need a real [catalog.Catalog].
package catalogtest

import (
	"context"
	"testing"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite" // register "sqlite" driver

	"github.com/54b3r/ednevnik-kb/internal/catalog"
)

// WorkspaceSchema is the subset of the shared workspace schema read by the
// extractors.
const WorkspaceSchema = `
CREATE TABLE cantons (
    canton_code TEXT PRIMARY KEY,
    canton_name TEXT NOT NULL
);
CREATE TABLE tenant (
    id              INTEGER PRIMARY KEY,
    tenant_name     TEXT NOT NULL,
    tenant_city     TEXT,
    tenant_type     TEXT,
    canton_code     TEXT,
    phone           TEXT,
    email           TEXT,
    director_name   TEXT,
    longitude       REAL,
    latitude        REAL,
    domain          TEXT,
    specialization  TEXT,
    tenant_admin_id INTEGER
);
CREATE TABLE courses_secondary (
    course_code TEXT PRIMARY KEY,
    course_name TEXT NOT NULL
);
CREATE TABLE curriculum (
    curriculum_code TEXT PRIMARY KEY,
    curriculum_name TEXT NOT NULL,
    course_code     TEXT
);
CREATE TABLE subjects (
    subject_code TEXT PRIMARY KEY,
    subject_name TEXT NOT NULL
);
CREATE TABLE accounts (
    id           INTEGER PRIMARY KEY,
    email        TEXT,
    account_type TEXT
);
CREATE TABLE teachers (
    id           INTEGER PRIMARY KEY,
    name         TEXT NOT NULL,
    last_name    TEXT NOT NULL,
    phone        TEXT,
    contractions TEXT,
    title        TEXT,
    account_id   INTEGER
);
CREATE TABLE teacher_tenant (
    teacher_id INTEGER NOT NULL,
    tenant_id  INTEGER NOT NULL
);
CREATE TABLE pupil_global (
    id              INTEGER PRIMARY KEY,
    name            TEXT NOT NULL,
    last_name       TEXT NOT NULL,
    gender          TEXT,
    address         TEXT,
    guardian_name   TEXT,
    phone_number    TEXT,
    guardian_number TEXT,
    date_of_birth   TEXT,
    place_of_birth  TEXT,
    religion        TEXT,
    account_id      INTEGER
);
CREATE TABLE pupil_tenant (
    pupil_id  INTEGER NOT NULL,
    tenant_id INTEGER NOT NULL
);
`

// TenantSchema is the subset of a tenant partition schema read by the
// extractors.
const TenantSchema = `
CREATE TABLE sections (
    id              INTEGER PRIMARY KEY,
    section_code    TEXT NOT NULL,
    class_code      TEXT NOT NULL,
    year            TEXT,
    curriculum_code TEXT,
    tenant_id       INTEGER NOT NULL,
    archived        BOOLEAN NOT NULL DEFAULT FALSE
);
CREATE TABLE pupils (
    id         INTEGER PRIMARY KEY,
    name       TEXT NOT NULL,
    last_name  TEXT NOT NULL,
    account_id INTEGER
);
CREATE TABLE pupils_sections (
    pupil_id   INTEGER NOT NULL,
    section_id INTEGER NOT NULL,
    is_active  BOOLEAN NOT NULL DEFAULT TRUE
);
CREATE TABLE pupil_behaviour (
    pupil_id   INTEGER NOT NULL,
    section_id INTEGER NOT NULL,
    behaviour  TEXT
);
CREATE TABLE student_grades (
    id           INTEGER PRIMARY KEY,
    pupil_id     INTEGER NOT NULL,
    section_id   INTEGER NOT NULL,
    subject_code TEXT NOT NULL,
    teacher_id   INTEGER,
    grade        INTEGER,
    type         TEXT NOT NULL,
    grade_date   TEXT,
    signature    TEXT
);
CREATE TABLE teachers_sections_subjects (
    teacher_id   INTEGER NOT NULL,
    section_id   INTEGER NOT NULL,
    subject_code TEXT
);
CREATE TABLE homeroom_assignments (
    section_id INTEGER NOT NULL,
    teacher_id INTEGER NOT NULL
);
`

// Fixture is a temporary on-disk catalog.
type Fixture struct {
	// Dir holds the partition files.
	Dir string
	// Workspace is a writable handle on the workspace partition.
	Workspace *sqlx.DB

	tenants map[catalog.TenantID]*sqlx.DB
}

// New creates an empty workspace partition under t.TempDir().
func New(t testing.TB) *Fixture {
	t.Helper()
	dir := t.TempDir()
	f := &Fixture{Dir: dir, tenants: make(map[catalog.TenantID]*sqlx.DB)}
	f.Workspace = create(t, catalog.SQLitePath(dir, catalog.WorkspaceName), WorkspaceSchema)
	return f
}

// AddTenant inserts a tenant row and creates its partition. Extra columns of
// the tenant row can be set later with [Fixture.Exec].
func (f *Fixture) AddTenant(t testing.TB, id catalog.TenantID, name string) *sqlx.DB {
	t.Helper()
	f.Exec(t, f.Workspace, `INSERT INTO tenant (id, tenant_name) VALUES (?, ?)`, int64(id), name)
	db := create(t, catalog.SQLitePath(f.Dir, catalog.PartitionName(id)), TenantSchema)
	f.tenants[id] = db
	return db
}

// Tenant returns the writable handle for a tenant added with AddTenant.
func (f *Fixture) Tenant(id catalog.TenantID) *sqlx.DB {
	return f.tenants[id]
}

// Exec runs a statement and fails the test on error.
func (f *Fixture) Exec(t testing.TB, db *sqlx.DB, query string, args ...any) {
	t.Helper()
	if _, err := db.Exec(query, args...); err != nil {
		t.Fatalf("catalogtest: exec %q: %v", query, err)
	}
}

// Catalog opens a catalog over the fixture directory.
func (f *Fixture) Catalog(t testing.TB) *catalog.Catalog {
	t.Helper()
	c, err := catalog.Open(context.Background(), catalog.Config{Driver: catalog.DriverSQLite, Dir: f.Dir})
	if err != nil {
		t.Fatalf("catalogtest: open catalog: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func create(t testing.TB, path, ddl string) *sqlx.DB {
	t.Helper()
	db, err := sqlx.Open("sqlite", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		t.Fatalf("catalogtest: open %s: %v", path, err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })
	if _, err := db.Exec(ddl); err != nil {
		t.Fatalf("catalogtest: schema %s: %v", path, err)
	}
	return db
}
