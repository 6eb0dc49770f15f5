package wirecase

import (
	"encoding/json"
	"reflect"
	"testing"
)

func TestToCamel(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"created_at", "createdAt"},
		{"estimated_hours", "estimatedHours"},
		{"so_that", "soThat"},
		{"conversation_id", "conversationId"},
		{"kebab-case", "kebabCase"},
		{"already", "already"},
		{"alreadyCamel", "alreadyCamel"},
		{"", ""},
		{"_leading", "Leading"},
		{"trailing_", "trailing_"},
		{"double__under", "double_Under"},
	}
	for _, tc := range cases {
		if got := ToCamel(tc.in); got != tc.want {
			t.Errorf("ToCamel(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestToSnake(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"createdAt", "created_at"},
		{"estimatedHours", "estimated_hours"},
		{"conversationId", "conversation_id"},
		{"already_snake", "already_snake"},
		{"plain", "plain"},
		{"", ""},
	}
	for _, tc := range cases {
		if got := ToSnake(tc.in); got != tc.want {
			t.Errorf("ToSnake(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestToCamelToSnakeRoundTrip(t *testing.T) {
	keys := []string{"created_at", "so_that", "i_want", "estimated_hours", "id", "trailing_"}
	for _, k := range keys {
		if got := ToSnake(ToCamel(k)); got != k {
			t.Errorf("round trip of %q gave %q", k, got)
		}
	}
}

func TestCamelJSONNestedDocument(t *testing.T) {
	in := []byte(`{"project_id":"p1","epics":[{"epic_id":7,"user_stories":[{"as_a":"dev","estimated_hours":1.5}]}]}`)

	out, err := CamelJSON(in)
	if err != nil {
		t.Fatal(err)
	}

	var got map[string]any
	if err := json.Unmarshal(out, &got); err != nil {
		t.Fatal(err)
	}
	if _, ok := got["projectId"]; !ok {
		t.Fatalf("top-level key not converted: %s", out)
	}
	epics := got["epics"].([]any)
	epic := epics[0].(map[string]any)
	if _, ok := epic["epicId"]; !ok {
		t.Fatalf("nested key not converted: %s", out)
	}
	story := epic["userStories"].([]any)[0].(map[string]any)
	if _, ok := story["asA"]; !ok {
		t.Fatalf("doubly nested key not converted: %s", out)
	}
}

func TestSnakeJSONPreservesNumbersVerbatim(t *testing.T) {
	// A float64 round trip would mangle these; json.Number must carry them.
	in := []byte(`{"bigId":9007199254740993,"exactHours":0.1}`)

	out, err := SnakeJSON(in)
	if err != nil {
		t.Fatal(err)
	}

	var got map[string]json.Number
	if err := json.Unmarshal(out, &got); err != nil {
		t.Fatal(err)
	}
	if got["big_id"].String() != "9007199254740993" {
		t.Fatalf("integer precision lost: %s", got["big_id"])
	}
	if got["exact_hours"].String() != "0.1" {
		t.Fatalf("decimal representation changed: %s", got["exact_hours"])
	}
}

func TestJSONRoundTripIsIdentity(t *testing.T) {
	in := []byte(`{"created_at":"2026-03-01T10:00:00Z","nested":{"open_count":3,"tags":["a_b","c"]}}`)

	camel, err := CamelJSON(in)
	if err != nil {
		t.Fatal(err)
	}
	back, err := SnakeJSON(camel)
	if err != nil {
		t.Fatal(err)
	}

	var want, got any
	if err := json.Unmarshal(in, &want); err != nil {
		t.Fatal(err)
	}
	if err := json.Unmarshal(back, &got); err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(want, got) {
		t.Fatalf("round trip not identity:\n in: %s\nout: %s", in, back)
	}
}

func TestConvertJSONEmptyAndMalformed(t *testing.T) {
	if out, err := CamelJSON(nil); err != nil || len(out) != 0 {
		t.Fatalf("empty input should pass through, got %q, %v", out, err)
	}
	if _, err := CamelJSON([]byte(`{"broken"`)); err == nil {
		t.Fatal("malformed JSON should error")
	}
}

func TestKeysLeaveValuesAlone(t *testing.T) {
	in := map[string]any{"some_key": "keep_this_value", "list": []any{"a_b"}}
	got := CamelKeys(in).(map[string]any)
	if got["someKey"] != "keep_this_value" {
		t.Fatalf("value was rewritten: %+v", got)
	}
	if got["list"].([]any)[0] != "a_b" {
		t.Fatalf("slice value was rewritten: %+v", got)
	}
}
