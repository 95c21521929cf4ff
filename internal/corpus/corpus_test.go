package corpus

import (
	"errors"
	"strings"
	"testing"
)

func TestFormatFloat(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		in   float32
		want string
	}{
		{"zero", 0, "0"},
		{"integral", 2, "2"},
		{"negative half", -1.5, "-1.5"},
		{"quarter", 0.25, "0.25"},
		{"tiny stays fixed point", 1e-7, "0.0000001"},
		{"below precision", 1e-14, "0"},
		{"large", 12345678, "12345678"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got := FormatFloat(tc.in)
			if got != tc.want {
				t.Errorf("FormatFloat(%v): want %q, got %q", tc.in, tc.want, got)
			}
			if strings.ContainsAny(got, "eE") {
				t.Errorf("FormatFloat(%v) used an exponent: %q", tc.in, got)
			}
		})
	}
}

func TestFormatVector_RoundTrip(t *testing.T) {
	t.Parallel()

	in := []float32{0.123456789, -1.5, 0, 3e-5, 42}
	text := FormatVector(in)
	if !strings.HasPrefix(text, "[") || !strings.HasSuffix(text, "]") {
		t.Fatalf("want bracketed vector, got %q", text)
	}
	if strings.Contains(text, " ") {
		t.Errorf("vector text must not contain spaces: %q", text)
	}

	out, err := ParseVector(text)
	if err != nil {
		t.Fatalf("ParseVector: %v", err)
	}
	if len(out) != len(in) {
		t.Fatalf("want %d components, got %d", len(in), len(out))
	}
	for i := range in {
		if d := out[i] - in[i]; d > 1e-6 || d < -1e-6 {
			t.Errorf("component %d: want %v, got %v", i, in[i], out[i])
		}
	}
}

func TestFormatVector_Empty(t *testing.T) {
	t.Parallel()
	if got := FormatVector(nil); got != "[]" {
		t.Errorf("want [], got %q", got)
	}
	v, err := ParseVector("[]")
	if err != nil || len(v) != 0 {
		t.Errorf("want empty vector, got %v (err %v)", v, err)
	}
}

func TestParseVector_Malformed(t *testing.T) {
	t.Parallel()
	for _, in := range []string{"", "1,2", "[1,x]"} {
		if _, err := ParseVector(in); err == nil {
			t.Errorf("ParseVector(%q): want error, got nil", in)
		}
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()

	acct := int64(9)
	cases := []struct {
		name    string
		md      Metadata
		wantErr bool
	}{
		{"institution ok", Metadata{KeySource: "tenant", KeyTenantID: int64(1)}, false},
		{"section int tenant wrong type", Metadata{KeySource: "section", KeyTenantID: 1}, true},
		{"grade nil account ok", Metadata{KeySource: "grade", KeyTenantID: int64(1), KeyAccountID: nil}, false},
		{"grade missing account key", Metadata{KeySource: "grade", KeyTenantID: int64(1)}, true},
		{"behaviour with tenant list", Metadata{KeySource: "behaviour", KeyTenantID: int64(1), KeyAccountID: acct, KeyAvailableIn: []int64{1}}, true},
		{"pupil empty list ok", Metadata{KeySource: "pupil", KeyAvailableIn: []int64{}, KeyAccountID: acct}, false},
		{"teacher nil list", Metadata{KeySource: "teacher", KeyAccountID: acct}, true},
		{"teacher with tenant id", Metadata{KeySource: "teacher", KeyAvailableIn: []int64{2}, KeyAccountID: acct, KeyTenantID: int64(2)}, true},
		{"unknown source", Metadata{KeySource: "notice"}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			err := Validate(Record{Metadata: tc.md, Description: "x"})
			if tc.wantErr {
				if !errors.Is(err, ErrInvalidRecord) {
					t.Errorf("want ErrInvalidRecord, got %v", err)
				}
				return
			}
			if err != nil {
				t.Errorf("want nil, got %v", err)
			}
		})
	}
}

func TestValidate_EmptyDescription(t *testing.T) {
	t.Parallel()
	err := Validate(Record{Metadata: Metadata{KeySource: "tenant", KeyTenantID: int64(3)}})
	if !errors.Is(err, ErrInvalidRecord) {
		t.Errorf("want ErrInvalidRecord, got %v", err)
	}
}

func TestEntry_IDDeterministic(t *testing.T) {
	t.Parallel()
	grade := func(pos int) Entry {
		return Entry{Record: Record{Metadata: Metadata{KeySource: string(SourceGrade)}}, Position: pos}
	}
	if grade(3).ID() != grade(3).ID() {
		t.Error("want equal ids for equal (source, position)")
	}
	if grade(3).ID() == grade(4).ID() {
		t.Error("want distinct ids for distinct positions")
	}
	pupil := Entry{Record: Record{Metadata: Metadata{KeySource: string(SourcePupil)}}, Position: 3}
	if pupil.ID() == grade(3).ID() {
		t.Error("want distinct ids for distinct sources")
	}
}
