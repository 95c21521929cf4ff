package extract

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	"github.com/54b3r/ednevnik-kb/internal/catalog"
	"github.com/54b3r/ednevnik-kb/internal/corpus"
)

type gradeRow struct {
	sectionRow
	PupilID     int64          `db:"pupil_id"`
	Name        string         `db:"name"`
	LastName    string         `db:"last_name"`
	AccountID   sql.NullInt64  `db:"account_id"`
	SubjectCode string         `db:"subject_code"`
	Grade       int64          `db:"grade"`
	Signature   sql.NullString `db:"signature"`
}

// Grades extracts one record per (pupil, section, subject) in every
// partition, listing eligible grades in grade-date order.
func Grades() Extractor {
	return Stage[struct{}, []corpus.Record]{
		Kind: corpus.SourceGrade,
		Scan: scanGrades,
		Emit: concat[struct{}],
	}
}

func scanGrades(ctx context.Context, env *Env, _ struct{}, p *catalog.Partition) ([]corpus.Record, error) {
	var rows []gradeRow
	if err := query(ctx, p.DB, &rows, `
SELECT sg.pupil_id, p.name, p.last_name, p.account_id, sg.subject_code, sg.grade, sg.signature,
       `+sectionColumns+`
FROM student_grades sg
JOIN pupils p ON sg.pupil_id = p.id
JOIN sections s ON sg.section_id = s.id
WHERE sg.type IN ('exam', 'oral', 'written_assignment') AND sg.grade IS NOT NULL
ORDER BY sg.pupil_id, sg.section_id, sg.subject_code, sg.grade_date, sg.id`); err != nil {
		return nil, fmt.Errorf("grades: %w", err)
	}

	var out []corpus.Record
	for start := 0; start < len(rows); {
		end := start + 1
		for end < len(rows) && sameGroup(rows[start], rows[end]) {
			end++
		}
		if rec, ok := projectGrades(env, p.ID, rows[start:end]); ok {
			out = append(out, rec)
		}
		start = end
	}
	return out, nil
}

func sameGroup(a, b gradeRow) bool {
	return a.PupilID == b.PupilID && a.SectionID == b.SectionID && a.SubjectCode == b.SubjectCode
}

func projectGrades(env *Env, tenant catalog.TenantID, group []gradeRow) (corpus.Record, bool) {
	first := group[0]
	subject, ok := env.Refs.Subject(first.SubjectCode)
	if !ok {
		return corpus.Record{}, false
	}
	tenantName, ok := env.Refs.TenantName(first.TenantID)
	if !ok {
		return corpus.Record{}, false
	}

	grades := make([]int64, 0, len(group))
	signatures := make([]string, 0, len(group))
	pairs := make([]string, 0, len(group))
	for _, r := range group {
		grades = append(grades, r.Grade)
		g := strconv.FormatInt(r.Grade, 10)
		if sig := strings.TrimSpace(str(r.Signature)); sig != "" {
			signatures = append(signatures, sig)
			g += " (" + sig + ")"
		}
		pairs = append(pairs, g)
	}

	section := first.Code()
	full := first.Name + " " + first.LastName
	md := corpus.Metadata{
		corpus.KeyKind:      "Ocjene učenika za određeni predmet u određenom odjeljenju",
		"institucija":       tenantName,
		"odjeljenje":        section,
		"ime_ucenika":       first.Name,
		"prezime_ucenik":    first.LastName,
		"predmet":           subject,
		"ocjene":            grades,
		"potpisi":           signatures,
		"arhivirano":        yesNo(first.Archived),
		corpus.KeySource:    string(corpus.SourceGrade),
		corpus.KeyTenantID:  int64(tenant),
		corpus.KeyAccountID: nullInt(first.AccountID),
	}

	var desc string
	if course := env.Refs.Course(first.CurriculumCode); course != "" {
		md["smjer"] = course
		desc = fmt.Sprintf("Ocjene: učenika %s iz (%s%s - %s) smjera %s za predmet %s su: %s. Tip entiteta: ocjena.",
			full, section, archiveNote(first.Archived), tenantName, course, subject, strings.Join(pairs, ", "))
	} else {
		desc = fmt.Sprintf("Ocjene: učenika %s (odjeljenje: %s%s - %s) za predmet %s su: %s. Tip entiteta: ocjena.",
			full, section, archiveNote(first.Archived), tenantName, subject, strings.Join(pairs, ", "))
	}
	return corpus.Record{Metadata: md, Description: desc}, true
}
