package filter

import (
	"encoding/json"
	"testing"
)

func TestEval_Leaves(t *testing.T) {
	t.Parallel()

	md := map[string]any{
		"source":                  "grade",
		"tenant_id":               int64(7),
		"account_id":              nil,
		"available_in_tenant_ids": []int64{3, 7},
	}

	cases := []struct {
		name string
		expr Expr
		want bool
	}{
		{"true", True{}, true},
		{"eq string", Equals("source", "grade"), true},
		{"eq string miss", Equals("source", "pupil"), false},
		{"eq int from int", Equals("tenant_id", 7), true},
		{"eq nil field", Equals("account_id", int64(1)), false},
		{"eq missing field", Equals("email", "x"), false},
		{"in hit", OneOf("source", "tenant", "grade"), true},
		{"in miss", OneOf("source", "tenant", "section"), false},
		{"in ints", OneOfInts("tenant_id", []int64{1, 7}), true},
		{"intersects hit", ContainsAny("available_in_tenant_ids", []int64{7, 9}), true},
		{"intersects miss", ContainsAny("available_in_tenant_ids", []int64{8}), false},
		{"intersects empty set", ContainsAny("available_in_tenant_ids", []int64{}), false},
		{"empty and", AllOf(), true},
		{"empty or", AnyOf(), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := Eval(tc.expr, md); got != tc.want {
				t.Errorf("want %v, got %v", tc.want, got)
			}
		})
	}
}

func TestEval_DecodedJSONMetadata(t *testing.T) {
	t.Parallel()

	var md map[string]any
	raw := `{"source":"pupil","account_id":42,"available_in_tenant_ids":[1,2]}`
	if err := json.Unmarshal([]byte(raw), &md); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	e := AllOf(
		OneOf("source", "pupil", "teacher"),
		ContainsAny("available_in_tenant_ids", []int64{2}),
		Equals("account_id", int64(42)),
	)
	if !Eval(e, md) {
		t.Errorf("want match on float64-decoded metadata")
	}
}

func TestEval_NamedStringType(t *testing.T) {
	t.Parallel()

	type source string
	md := map[string]any{"source": source("section")}
	if !Eval(OneOf("source", source("section")), md) {
		t.Errorf("want named string values to compare as strings")
	}
}

func TestMarshalJSON_Shape(t *testing.T) {
	t.Parallel()

	e := AnyOf(
		AllOf(OneOf("source", "pupil", "teacher"), ContainsAny("available_in_tenant_ids", []int64{7})),
		AllOf(OneOf("source", "grade", "behaviour", "tenant", "section"), Equals("tenant_id", int64(7))),
	)
	got, err := MarshalJSON(e)
	if err != nil {
		t.Fatalf("MarshalJSON: %v", err)
	}
	want := `{"$or":[{"$and":[{"source":{"$in":["pupil","teacher"]}},{"available_in_tenant_ids":{"$in":[7]}}]},` +
		`{"$and":[{"source":{"$in":["grade","behaviour","tenant","section"]}},{"tenant_id":{"$eq":7}}]}]}`
	if string(got) != want {
		t.Errorf("want %s\ngot  %s", want, got)
	}
}

func TestMarshalJSON_True(t *testing.T) {
	t.Parallel()
	got, err := MarshalJSON(True{})
	if err != nil {
		t.Fatalf("MarshalJSON: %v", err)
	}
	if string(got) != "{}" {
		t.Errorf("want {}, got %s", got)
	}
}
