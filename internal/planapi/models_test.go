package planapi

import (
	"encoding/json"
	"testing"
	"time"
)

func TestIDUnmarshalAcceptsStringAndNumber(t *testing.T) {
	cases := []struct {
		raw  string
		want ID
	}{
		{`"abc-123"`, "abc-123"},
		{`"42"`, "42"},
		{`42`, "42"},
		{`9007199254740993`, "9007199254740993"},
		{`null`, ""},
	}
	for _, tc := range cases {
		var id ID
		if err := json.Unmarshal([]byte(tc.raw), &id); err != nil {
			t.Errorf("unmarshal %s: %v", tc.raw, err)
			continue
		}
		if id != tc.want {
			t.Errorf("unmarshal %s = %q, want %q", tc.raw, id, tc.want)
		}
	}
}

func TestIDMarshalAlwaysString(t *testing.T) {
	raw, err := json.Marshal(ID("42"))
	if err != nil {
		t.Fatal(err)
	}
	if string(raw) != `"42"` {
		t.Fatalf("got %s", raw)
	}
}

func TestIDNum(t *testing.T) {
	if n, ok := ID("42").Num(); !ok || n != 42 {
		t.Fatalf("got %d, %v", n, ok)
	}
	if _, ok := ID("abc").Num(); ok {
		t.Fatal("non-numeric id reported as numeric")
	}
	if _, ok := ID("").Num(); ok {
		t.Fatal("empty id reported as numeric")
	}
}

func TestTimeUnmarshalLayouts(t *testing.T) {
	cases := []struct {
		raw  string
		want time.Time
	}{
		{`"2026-03-01T10:00:05Z"`, time.Date(2026, 3, 1, 10, 0, 5, 0, time.UTC)},
		{`"2026-03-01T10:00:05.5Z"`, time.Date(2026, 3, 1, 10, 0, 5, 500000000, time.UTC)},
		{`"2026-03-01T10:00:05"`, time.Date(2026, 3, 1, 10, 0, 5, 0, time.UTC)},
		{`"2026-03-01 10:00:05"`, time.Date(2026, 3, 1, 10, 0, 5, 0, time.UTC)},
	}
	for _, tc := range cases {
		var got Time
		if err := json.Unmarshal([]byte(tc.raw), &got); err != nil {
			t.Errorf("unmarshal %s: %v", tc.raw, err)
			continue
		}
		if !got.Equal(tc.want) {
			t.Errorf("unmarshal %s = %v, want %v", tc.raw, got.Time, tc.want)
		}
	}
}

func TestTimeUnmarshalTolerance(t *testing.T) {
	// Junk never fails the payload; it just decodes to zero.
	for _, raw := range []string{`"not a date"`, `null`, `12345`, `""`} {
		var got Time
		if err := json.Unmarshal([]byte(raw), &got); err != nil {
			t.Errorf("unmarshal %s should not error: %v", raw, err)
		}
		if !got.IsZero() {
			t.Errorf("unmarshal %s should be zero, got %v", raw, got.Time)
		}
	}
}

func TestTimeMarshal(t *testing.T) {
	raw, err := json.Marshal(Time{})
	if err != nil {
		t.Fatal(err)
	}
	if string(raw) != "null" {
		t.Fatalf("zero time should marshal to null, got %s", raw)
	}

	raw, err = json.Marshal(NewTime(time.Date(2026, 3, 1, 10, 0, 5, 0, time.UTC)))
	if err != nil {
		t.Fatal(err)
	}
	if string(raw) != `"2026-03-01T10:00:05Z"` {
		t.Fatalf("got %s", raw)
	}
}

func TestProjectDetailDecode(t *testing.T) {
	raw := []byte(`{
		"id": 7,
		"name": "Rocket",
		"epics": [
			{"id": "e1", "title": "Launch", "priority": "HIGH", "status": "TODO", "order": 1,
			 "stories": [{"id": "s1", "title": "Countdown", "asA": "pilot", "tasks": [{"id": 42, "title": "Fuel", "estimatedHours": 1.5}]}]}
		]
	}`)

	var detail ProjectDetail
	if err := json.Unmarshal(raw, &detail); err != nil {
		t.Fatal(err)
	}
	if detail.ID != "7" || detail.Name != "Rocket" {
		t.Fatalf("project header wrong: %+v", detail.Project)
	}
	task := detail.Epics[0].Stories[0].Tasks[0]
	if task.ID != "42" || task.EstimatedHours != 1.5 {
		t.Fatalf("task wrong: %+v", task)
	}
	if detail.Epics[0].Stories[0].AsA != "pilot" {
		t.Fatalf("story wrong: %+v", detail.Epics[0].Stories[0])
	}
}
