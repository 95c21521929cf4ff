package extract

// DefaultAverage is used wherever an entity has no eligible grades.
const DefaultAverage = 3.0

// band is one step of a grade scale. Lower bounds are inclusive.
type band struct {
	min   float64
	label string
}

// scale maps an average onto the first band whose lower bound it reaches.
// The last band has no lower bound.
type scale []band

func (s scale) label(avg float64) string {
	for _, b := range s[:len(s)-1] {
		if avg >= b.min {
			return b.label
		}
	}
	return s[len(s)-1].label
}

var (
	difficultyScale = scale{
		{4.50, "Vrlo lagana"},
		{3.50, "Lagana"},
		{2.50, "Srednja"},
		{0, "Teška"},
	}
	criteriaScale = scale{
		{4.50, "Vrlo lagan"},
		{3.50, "Lagan"},
		{2.50, "Srednji"},
		{0, "Težak"},
	}
	successScale = scale{
		{4.50, "Odličan"},
		{4.00, "Vrlo dobar"},
		{3.00, "Dobar"},
		{2.00, "Dovoljan"},
		{0, "Nedovoljan"},
	}
)

// Difficulty is the institution difficulty category for an average.
func Difficulty(avg float64) string { return difficultyScale.label(avg) }

// Criteria is the teacher grading-criteria category for an average.
func Criteria(avg float64) string { return criteriaScale.label(avg) }

// Success is the success category used for pupils and sections.
func Success(avg float64) string { return successScale.label(avg) }
