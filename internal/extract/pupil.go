package extract

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/54b3r/ednevnik-kb/internal/catalog"
	"github.com/54b3r/ednevnik-kb/internal/corpus"
)

type pupilRow struct {
	ID            int64          `db:"id"`
	Name          string         `db:"name"`
	LastName      string         `db:"last_name"`
	Gender        sql.NullString `db:"gender"`
	Address       sql.NullString `db:"address"`
	GuardianName  sql.NullString `db:"guardian_name"`
	Phone         sql.NullString `db:"phone_number"`
	GuardianPhone sql.NullString `db:"guardian_number"`
	DateOfBirth   sql.NullString `db:"date_of_birth"`
	PlaceOfBirth  sql.NullString `db:"place_of_birth"`
	Religion      sql.NullString `db:"religion"`
	AccountID     sql.NullInt64  `db:"account_id"`
	Email         sql.NullString `db:"email"`
}

type pupilBase struct {
	pupils  []pupilRow
	tenants map[int64][]int64
}

type enrolment struct {
	sectionRow
	PupilID   int64          `db:"pupil_id"`
	Behaviour sql.NullString `db:"behaviour"`
}

type pupilScan struct {
	// present holds pupils that exist in this partition. Grades and
	// enrolments of other pupil ids are ignored.
	present  map[int64]bool
	grades   map[int64]tally
	enrolled map[int64][]enrolment
}

// Pupils extracts one record per workspace pupil with at least one active
// enrolment in any partition. Pupils with none are skipped.
func Pupils() Extractor {
	return Stage[pupilBase, pupilScan]{
		Kind: corpus.SourcePupil,
		Base: loadPupils,
		Scan: scanPupils,
		Emit: emitPupils,
	}
}

func loadPupils(ctx context.Context, env *Env) (pupilBase, error) {
	b := pupilBase{tenants: make(map[int64][]int64)}
	if err := query(ctx, env.Workspace, &b.pupils, `
SELECT p.id, p.name, p.last_name, p.gender, p.address, p.guardian_name,
       p.phone_number, p.guardian_number, p.date_of_birth, p.place_of_birth,
       p.religion, p.account_id, a.email
FROM pupil_global p
LEFT JOIN accounts a ON p.account_id = a.id
ORDER BY p.id`); err != nil {
		return b, fmt.Errorf("pupils: %w", err)
	}

	var links []struct {
		PupilID  int64 `db:"pupil_id"`
		TenantID int64 `db:"tenant_id"`
	}
	if err := query(ctx, env.Workspace, &links, `SELECT pupil_id, tenant_id FROM pupil_tenant ORDER BY pupil_id, tenant_id`); err != nil {
		return b, fmt.Errorf("pupil tenants: %w", err)
	}
	for _, l := range links {
		b.tenants[l.PupilID] = append(b.tenants[l.PupilID], l.TenantID)
	}
	return b, nil
}

func scanPupils(ctx context.Context, _ *Env, _ pupilBase, p *catalog.Partition) (pupilScan, error) {
	var ids []int64
	if err := query(ctx, p.DB, &ids, `SELECT id FROM pupils`); err != nil {
		return pupilScan{}, fmt.Errorf("pupils: %w", err)
	}
	present := make(map[int64]bool, len(ids))
	for _, id := range ids {
		present[id] = true
	}

	grades, err := tallyBy(ctx, p.DB, "pupil_id")
	if err != nil {
		return pupilScan{}, err
	}

	var rows []enrolment
	if err := query(ctx, p.DB, &rows, `
SELECT DISTINCT ps.pupil_id, `+sectionColumns+`, pb.behaviour
FROM pupils_sections ps
JOIN sections s ON ps.section_id = s.id
LEFT JOIN pupil_behaviour pb ON pb.pupil_id = ps.pupil_id AND pb.section_id = ps.section_id
WHERE ps.is_active = TRUE
ORDER BY ps.pupil_id, s.id`); err != nil {
		return pupilScan{}, fmt.Errorf("enrolments: %w", err)
	}
	enrolled := make(map[int64][]enrolment)
	for _, r := range rows {
		enrolled[r.PupilID] = append(enrolled[r.PupilID], r)
	}
	return pupilScan{present: present, grades: grades, enrolled: enrolled}, nil
}

func emitPupils(env *Env, b pupilBase, scans []pupilScan) []corpus.Record {
	var out []corpus.Record
	for _, p := range b.pupils {
		var total tally
		var sections []map[string]any
		var current, past []string

		for _, s := range scans {
			if !s.present[p.ID] {
				continue
			}
			total.add(s.grades[p.ID])
			for _, e := range s.enrolled[p.ID] {
				tenantName, ok := env.Refs.TenantName(e.TenantID)
				if !ok {
					continue
				}
				entry := map[string]any{
					"kod":         e.Code(),
					"institucija": tenantName,
					"ponašanje":   pupilConduct.translate(e.Behaviour),
					"arhivirano":  yesNo(e.Archived),
				}
				label := e.Code() + " (" + tenantName + ")"
				if course := env.Refs.Course(e.CurriculumCode); course != "" {
					entry["smjer"] = course
					label += " - " + course
				}
				sections = append(sections, entry)
				if e.Archived {
					past = append(past, label)
				} else {
					current = append(current, label)
				}
			}
		}
		if len(sections) == 0 {
			continue
		}

		success := Success(total.mean())
		gender := genders.translate(p.Gender)
		religion := religions.translate(p.Religion)
		full := p.Name + " " + p.LastName

		md := corpus.Metadata{
			corpus.KeyKind:        "Opšte informacije o učeniku",
			"ime":                 p.Name,
			"prezime":             p.LastName,
			"spol":                titleCase(gender),
			"adresa":              str(p.Address),
			"staratelj":           str(p.GuardianName),
			"email":               str(p.Email),
			"telefon":             str(p.Phone),
			"telefon_staratelja":  str(p.GuardianPhone),
			"datum_rodjenja":      str(p.DateOfBirth),
			"mjesto_rodjenja":     str(p.PlaceOfBirth),
			"vjeroispovijest":     religion,
			"uspjeh":              success,
			"odjeljenja":          sections,
			corpus.KeySource:      string(corpus.SourcePupil),
			corpus.KeyAvailableIn: tenantList(b.tenants[p.ID]),
			corpus.KeyAccountID:   nullInt(p.AccountID),
		}

		var desc strings.Builder
		fmt.Fprintf(&desc, "Učenik: %s, %s spola, rođen %s u %s, živi na adresi %s. ",
			full, gender, str(p.DateOfBirth), str(p.PlaceOfBirth), str(p.Address))
		fmt.Fprintf(&desc, "Staratelj učenika %s je %s, kontakt: %s. ", full, str(p.GuardianName), str(p.GuardianPhone))
		fmt.Fprintf(&desc, "Učenik %s ima telefon: %s i email: %s. ", full, str(p.Phone), str(p.Email))
		fmt.Fprintf(&desc, "Vjeroispovijest učenika %s je %s. ", full, religion)
		fmt.Fprintf(&desc, "Uspjeh učenika %s je %s.", full, success)
		if len(current) > 0 {
			fmt.Fprintf(&desc, " Učenik pohađa slijedeća odjeljenja: %s.", strings.Join(current, ", "))
		}
		if len(past) > 0 {
			fmt.Fprintf(&desc, " Učenik je pohađao slijedeća odjeljenja: %s.", strings.Join(past, ", "))
		}
		desc.WriteString(" Tip entiteta: učenik.")

		out = append(out, corpus.Record{Metadata: md, Description: desc.String()})
	}
	return out
}
