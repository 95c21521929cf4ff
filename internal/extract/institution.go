package extract

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"

	"github.com/jmoiron/sqlx"

	"github.com/54b3r/ednevnik-kb/internal/catalog"
	"github.com/54b3r/ednevnik-kb/internal/corpus"
)

type institutionRow struct {
	ID             int64           `db:"id"`
	Name           string          `db:"tenant_name"`
	City           sql.NullString  `db:"tenant_city"`
	Type           sql.NullString  `db:"tenant_type"`
	Canton         sql.NullString  `db:"canton_name"`
	Phone          sql.NullString  `db:"phone"`
	Email          sql.NullString  `db:"email"`
	Director       sql.NullString  `db:"director_name"`
	Longitude      sql.NullFloat64 `db:"longitude"`
	Latitude       sql.NullFloat64 `db:"latitude"`
	Domain         sql.NullString  `db:"domain"`
	Specialization sql.NullString  `db:"specialization"`
}

// Institutions extracts one record per workspace tenant row. Difficulty is
// derived from the tenant-wide mean of eligible grades.
func Institutions() Extractor {
	return Stage[[]institutionRow, tally]{
		Kind: corpus.SourceInstitution,
		Base: func(ctx context.Context, env *Env) ([]institutionRow, error) {
			var rows []institutionRow
			err := query(ctx, env.Workspace, &rows, `
SELECT t.id, t.tenant_name, t.tenant_city, t.tenant_type, c.canton_name, t.phone, t.email,
       t.director_name, t.longitude, t.latitude, t.domain, t.specialization
FROM tenant t
LEFT JOIN cantons c ON t.canton_code = c.canton_code
ORDER BY t.id`)
			return rows, err
		},
		Scan: func(ctx context.Context, _ *Env, _ []institutionRow, p *catalog.Partition) (tally, error) {
			return tenantTally(ctx, p.DB)
		},
		Emit: emitInstitutions,
	}
}

func tenantTally(ctx context.Context, db *sqlx.DB) (tally, error) {
	var t tally
	q := `SELECT COALESCE(SUM(grade), 0) AS total, COUNT(grade) AS n FROM student_grades WHERE ` + eligibleGrades
	if err := db.GetContext(ctx, &t, db.Rebind(q)); err != nil {
		return tally{}, fmt.Errorf("tenant grade tally: %w", err)
	}
	return t, nil
}

func emitInstitutions(env *Env, rows []institutionRow, scans []tally) []corpus.Record {
	byTenant := make(map[int64]tally, len(scans))
	for i, p := range env.Partitions {
		byTenant[int64(p.ID)] = scans[i]
	}

	out := make([]corpus.Record, 0, len(rows))
	for _, t := range rows {
		difficulty := Difficulty(byTenant[t.ID].mean())
		kind := schoolTypes.translate(t.Type)
		spec := specializations.translate(t.Specialization)
		lon, lat := coordinate(t.Longitude), coordinate(t.Latitude)
		name := t.Name

		md := corpus.Metadata{
			corpus.KeyKind:     "Opšte informacije o instituciji",
			"ime":              name,
			"grad":             str(t.City),
			"tip":              kind,
			"kanton":           str(t.Canton),
			"telefon":          str(t.Phone),
			"email":            str(t.Email),
			"direktor":         str(t.Director),
			"longitude":        lon,
			"latitude":         lat,
			"domena":           str(t.Domain),
			"specijalizacija":  spec,
			"težina":           difficulty,
			corpus.KeySource:   string(corpus.SourceInstitution),
			corpus.KeyTenantID: t.ID,
		}

		desc := fmt.Sprintf("Institucija (škola) %[1]s: se nalazi u gradu %[2]s, tip institucije (škole): %[3]s, u kantonu %[4]s. "+
			"Direktor institucije (škole) %[1]s je %[5]s. "+
			"Kontakt institucije (škole) %[1]s, telefon: %[6]s, email: %[7]s. "+
			"Web domena institucije (škole) %[1]s: %[8]s. "+
			"Specijalizacija institucije (škole) %[1]s: %[9]s. "+
			"Geografska širina institucije (škole) %[1]s: %[10]s, geografska dužina institucije (škole) %[1]s: %[11]s. "+
			"Težina institucije (škole) %[1]s je %[12]s. Tip entiteta: škola.",
			name, str(t.City), kind, str(t.Canton), str(t.Director), str(t.Phone), str(t.Email),
			str(t.Domain), spec, lat, lon, difficulty)

		out = append(out, corpus.Record{Metadata: md, Description: desc})
	}
	return out
}

// coordinate renders a nullable coordinate, treating zero as unset.
func coordinate(v sql.NullFloat64) string {
	if !v.Valid || v.Float64 == 0 {
		return ""
	}
	return strconv.FormatFloat(v.Float64, 'f', -1, 64)
}
