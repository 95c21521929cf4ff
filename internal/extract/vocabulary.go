package extract

import (
	"database/sql"
	"unicode"
	"unicode/utf8"
)

// vocabulary translates a stored enum value to its display form. Unknown or
// null values fall back to the default; they are never an error.
type vocabulary struct {
	entries  map[string]string
	fallback string
}

func (v vocabulary) translate(s sql.NullString) string {
	if !s.Valid {
		return v.fallback
	}
	if out, ok := v.entries[s.String]; ok {
		return out
	}
	return v.fallback
}

var (
	specializations = vocabulary{
		entries: map[string]string{
			"regular":  "obična",
			"religion": "vjerska",
			"musical":  "muzička",
		},
		fallback: "obična",
	}
	schoolTypes = vocabulary{
		entries: map[string]string{
			"primary":   "Osnovna škola",
			"secondary": "Srednja škola",
		},
		fallback: "Osnovna škola",
	}
	genders = vocabulary{
		entries: map[string]string{
			"M": "muškog",
			"F": "ženskog",
		},
		fallback: "muškog",
	}
	religions = vocabulary{
		entries: map[string]string{
			"Islam":                "Islamska",
			"Catholic":             "Katolička",
			"Orthodox":             "Pravoslavna",
			"Jewish":               "Jevrejska",
			"Other":                "Ostala",
			"NotAttendingReligion": "Ne pohađa vjeronauku",
		},
		fallback: "Islamska",
	}
	// pupilConduct is the wording used inside pupil records.
	pupilConduct = vocabulary{
		entries: map[string]string{
			"primjerno":       "Primjerno",
			"vrlodobro":       "Vrlo dobro",
			"dobro":           "Dobro",
			"zadovoljavajuće": "Zadovoljavajuće",
			"loše":            "Loše",
		},
		fallback: "Primjerno",
	}
	// conductMarks is the wording used by standalone behaviour records.
	conductMarks = vocabulary{
		entries: map[string]string{
			"primjerno":       "Primjereno",
			"vrlodobro":       "Vrlo dobro",
			"dobro":           "Dobro",
			"zadovoljavajuće": "Zadovoljavajuće",
			"loše":            "Loše",
		},
		fallback: "Primjereno",
	}
)

// titleCase upper-cases the first rune of s.
func titleCase(s string) string {
	r, n := utf8.DecodeRuneInString(s)
	if n == 0 {
		return s
	}
	return string(unicode.ToUpper(r)) + s[n:]
}

// yesNo renders a flag as "Da" or "Ne".
func yesNo(b bool) string {
	if b {
		return "Da"
	}
	return "Ne"
}

// archiveNote is appended to descriptions of archived sections.
func archiveNote(archived bool) string {
	if archived {
		return " (Odjeljenje je arhivirano)"
	}
	return ""
}

// str returns the value of a nullable string or "".
func str(s sql.NullString) string {
	if s.Valid {
		return s.String
	}
	return ""
}
