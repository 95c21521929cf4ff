package extract

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/54b3r/ednevnik-kb/internal/catalog"
	"github.com/54b3r/ednevnik-kb/internal/corpus"
)

type behaviourRow struct {
	sectionRow
	PupilID   int64          `db:"pupil_id"`
	Name      string         `db:"name"`
	LastName  string         `db:"last_name"`
	AccountID sql.NullInt64  `db:"account_id"`
	Behaviour sql.NullString `db:"behaviour"`
}

// Behaviours extracts one record per pupil behaviour mark in every partition.
func Behaviours() Extractor {
	return Stage[struct{}, []corpus.Record]{
		Kind: corpus.SourceBehaviour,
		Scan: scanBehaviours,
		Emit: concat[struct{}],
	}
}

func scanBehaviours(ctx context.Context, env *Env, _ struct{}, p *catalog.Partition) ([]corpus.Record, error) {
	var rows []behaviourRow
	if err := query(ctx, p.DB, &rows, `
SELECT pb.pupil_id, p.name, p.last_name, p.account_id, pb.behaviour, `+sectionColumns+`
FROM pupil_behaviour pb
JOIN pupils p ON pb.pupil_id = p.id
JOIN sections s ON pb.section_id = s.id
ORDER BY pb.pupil_id, s.id`); err != nil {
		return nil, fmt.Errorf("behaviour: %w", err)
	}

	var out []corpus.Record
	for _, r := range rows {
		tenantName, ok := env.Refs.TenantName(r.TenantID)
		if !ok {
			continue
		}
		mark := conductMarks.translate(r.Behaviour)
		section := r.Code()
		full := r.Name + " " + r.LastName

		md := corpus.Metadata{
			corpus.KeyKind:      "Vladanje učenika u određenom odjeljenju",
			"institucija":       tenantName,
			"odjeljenje":        section,
			"ime_ucenika":       r.Name,
			"prezime_ucenik":    r.LastName,
			"vladanje":          mark,
			"arhivirano":        yesNo(r.Archived),
			corpus.KeySource:    string(corpus.SourceBehaviour),
			corpus.KeyTenantID:  int64(p.ID),
			corpus.KeyAccountID: nullInt(r.AccountID),
		}

		var desc string
		if course := env.Refs.Course(r.CurriculumCode); course != "" {
			md["smjer"] = course
			desc = fmt.Sprintf("Vladanje učenika: %s (%s%s - %s smjer: %s) je: %s. Tip entiteta: vladanje.",
				full, section, archiveNote(r.Archived), tenantName, course, mark)
		} else {
			desc = fmt.Sprintf("Vladanje učenika: %s (%s%s - %s) je: %s. Tip entiteta: vladanje.",
				full, section, archiveNote(r.Archived), tenantName, mark)
		}
		out = append(out, corpus.Record{Metadata: md, Description: desc})
	}
	return out, nil
}
