package extract

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/54b3r/ednevnik-kb/internal/catalog"
	"github.com/54b3r/ednevnik-kb/internal/corpus"
)

type teacherRow struct {
	ID           int64          `db:"id"`
	Name         string         `db:"name"`
	LastName     string         `db:"last_name"`
	Phone        sql.NullString `db:"phone"`
	Contractions sql.NullString `db:"contractions"`
	Title        sql.NullString `db:"title"`
	AccountID    sql.NullInt64  `db:"account_id"`
	Email        sql.NullString `db:"email"`
	AccountType  sql.NullString `db:"account_type"`
}

type teacherBase struct {
	teachers []teacherRow
	// administers maps a teacher to the institutions they administer.
	administers map[int64][]string
	// tenants maps a teacher to their teacher_tenant associations.
	tenants map[int64][]int64
}

type teacherSection struct {
	sectionRow
	TeacherID int64 `db:"teacher_id"`
	Homeroom  bool  `db:"-"`
}

type teacherScan struct {
	grades   map[int64]tally
	sections map[int64][]teacherSection
}

// Teachers extracts one record per workspace teacher, aggregated across all
// partitions. Teachers without sections or grades are kept.
func Teachers() Extractor {
	return Stage[teacherBase, teacherScan]{
		Kind: corpus.SourceTeacher,
		Base: loadTeachers,
		Scan: scanTeachers,
		Emit: emitTeachers,
	}
}

func loadTeachers(ctx context.Context, env *Env) (teacherBase, error) {
	b := teacherBase{
		administers: make(map[int64][]string),
		tenants:     make(map[int64][]int64),
	}
	if err := query(ctx, env.Workspace, &b.teachers, `
SELECT t.id, t.name, t.last_name, t.phone, t.contractions, t.title, t.account_id,
       a.email, a.account_type
FROM teachers t
LEFT JOIN accounts a ON t.account_id = a.id
ORDER BY t.id`); err != nil {
		return b, fmt.Errorf("teachers: %w", err)
	}

	var admins []struct {
		TeacherID int64  `db:"tenant_admin_id"`
		Name      string `db:"tenant_name"`
	}
	if err := query(ctx, env.Workspace, &admins, `
SELECT DISTINCT tenant_admin_id, tenant_name FROM tenant
WHERE tenant_admin_id IS NOT NULL
ORDER BY tenant_admin_id, tenant_name`); err != nil {
		return b, fmt.Errorf("tenant admins: %w", err)
	}
	for _, a := range admins {
		b.administers[a.TeacherID] = append(b.administers[a.TeacherID], a.Name)
	}

	var links []struct {
		TeacherID int64 `db:"teacher_id"`
		TenantID  int64 `db:"tenant_id"`
	}
	if err := query(ctx, env.Workspace, &links, `SELECT teacher_id, tenant_id FROM teacher_tenant ORDER BY teacher_id, tenant_id`); err != nil {
		return b, fmt.Errorf("teacher tenants: %w", err)
	}
	for _, l := range links {
		b.tenants[l.TeacherID] = append(b.tenants[l.TeacherID], l.TenantID)
	}
	return b, nil
}

func scanTeachers(ctx context.Context, _ *Env, _ teacherBase, p *catalog.Partition) (teacherScan, error) {
	grades, err := tallyBy(ctx, p.DB, "teacher_id")
	if err != nil {
		return teacherScan{}, err
	}

	var rows []teacherSection
	if err := query(ctx, p.DB, &rows, `
SELECT DISTINCT tss.teacher_id, `+sectionColumns+`
FROM teachers_sections_subjects tss
JOIN sections s ON tss.section_id = s.id
ORDER BY tss.teacher_id, s.id`); err != nil {
		return teacherScan{}, fmt.Errorf("teacher sections: %w", err)
	}

	var homerooms []struct {
		SectionID int64 `db:"section_id"`
		TeacherID int64 `db:"teacher_id"`
	}
	if err := query(ctx, p.DB, &homerooms, `SELECT section_id, teacher_id FROM homeroom_assignments`); err != nil {
		return teacherScan{}, fmt.Errorf("homeroom assignments: %w", err)
	}
	type pair struct{ section, teacher int64 }
	homeroom := make(map[pair]bool, len(homerooms))
	for _, h := range homerooms {
		homeroom[pair{h.SectionID, h.TeacherID}] = true
	}

	sections := make(map[int64][]teacherSection)
	for _, r := range rows {
		r.Homeroom = homeroom[pair{r.SectionID, r.TeacherID}]
		sections[r.TeacherID] = append(sections[r.TeacherID], r)
	}
	return teacherScan{grades: grades, sections: sections}, nil
}

func emitTeachers(env *Env, b teacherBase, scans []teacherScan) []corpus.Record {
	out := make([]corpus.Record, 0, len(b.teachers))
	for _, t := range b.teachers {
		var total tally
		var sections []map[string]any
		var current, past []string

		for _, s := range scans {
			total.add(s.grades[t.ID])
			for _, sec := range s.sections[t.ID] {
				tenantName, ok := env.Refs.TenantName(sec.TenantID)
				if !ok {
					continue
				}
				entry := map[string]any{
					"kod":         sec.Code(),
					"institucija": tenantName,
					"razrednik":   yesNo(sec.Homeroom),
					"arhivirano":  yesNo(sec.Archived),
				}
				label := sec.Code() + " - " + tenantName
				if course := env.Refs.Course(sec.CurriculumCode); course != "" {
					entry["smjer"] = course
					label += " smjera " + course
				}
				if sec.Homeroom {
					label += " (razrednik)"
				}
				sections = append(sections, entry)
				if sec.Archived {
					past = append(past, label)
				} else {
					current = append(current, label)
				}
			}
		}

		criteria := Criteria(total.mean())
		full := t.Name + " " + t.LastName

		md := corpus.Metadata{
			corpus.KeyKind:        "Opšte informacije o Nastavnik/Profesoru",
			"ime":                 t.Name,
			"prezime":             t.LastName,
			"telefon":             str(t.Phone),
			"email":               str(t.Email),
			"oslovljavanje":       str(t.Contractions),
			"titula":              str(t.Title),
			"kriterij":            criteria,
			"odjeljenja":          sectionList(sections),
			corpus.KeySource:      string(corpus.SourceTeacher),
			corpus.KeyAccountID:   nullInt(t.AccountID),
			corpus.KeyAvailableIn: tenantList(b.tenants[t.ID]),
		}

		parts := []string{
			fmt.Sprintf("Nastavnik/Profesor: %s, titula %s, oslovljavanje %s, kontakt telefon: %s, email: %s.",
				full, str(t.Title), str(t.Contractions), str(t.Phone), str(t.Email)),
			fmt.Sprintf("Kriterij nastavnika/profesora %s je %s.", full, criteria),
			"Tip entiteta: nastavnik/profesor.",
		}
		if len(current) > 0 {
			parts = append(parts, fmt.Sprintf("Nastavnik/Profesor: %s predaje u slijedećim odjeljenjima: %s.", full, strings.Join(current, ", ")))
		}
		if len(past) > 0 {
			parts = append(parts, fmt.Sprintf("Nastavnik/Profesor: %s je predavao slijedećim odjeljenjima: %s.", full, strings.Join(past, ", ")))
		}
		switch str(t.AccountType) {
		case "root":
			parts = append(parts, fmt.Sprintf("Nastavnik/Profesor: %s je superadmin.", full))
		case "tenant_admin":
			if names := b.administers[t.ID]; len(names) > 0 {
				parts = append(parts, fmt.Sprintf("Nastavnik/Profesor: %s je tenant admin za instituciju %s.", full, strings.Join(names, ", ")))
			}
		}

		out = append(out, corpus.Record{Metadata: md, Description: strings.Join(parts, " ")})
	}
	return out
}

// sectionList returns an empty, non-nil list so the stored metadata is [] not null.
func sectionList(s []map[string]any) []map[string]any {
	if s == nil {
		return []map[string]any{}
	}
	return s
}
