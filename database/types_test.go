package database

import "testing"

func TestJSONBRoundTrip(t *testing.T) {
	src := JSONB{"model": "SLU-101", "state": "allocated"}
	v, err := src.Value()
	if err != nil {
		t.Fatalf("value: %v", err)
	}

	var got JSONB
	if err := got.Scan(v); err != nil {
		t.Fatalf("scan: %v", err)
	}
	if got["model"] != "SLU-101" {
		t.Fatalf("unexpected value: %v", got)
	}

	var empty JSONB
	if err := empty.Scan(nil); err != nil || empty == nil {
		t.Fatalf("nil scan must yield empty map: %v %v", empty, err)
	}
	if err := empty.Scan(42); err == nil {
		t.Fatalf("expected unsupported type error")
	}
}

func TestToJSONB(t *testing.T) {
	type snapshot struct {
		Model string `json:"model"`
	}
	got, err := ToJSONB(snapshot{Model: "AC-50"})
	if err != nil {
		t.Fatalf("ToJSONB: %v", err)
	}
	if got["model"] != "AC-50" {
		t.Fatalf("unexpected map: %v", got)
	}

	got, err = ToJSONB([]int{1, 2})
	if err != nil {
		t.Fatalf("ToJSONB slice: %v", err)
	}
	if _, ok := got["value"]; !ok {
		t.Fatalf("expected wrapped value: %v", got)
	}

	got, err = ToJSONB(nil)
	if err != nil || got != nil {
		t.Fatalf("nil input must yield nil: %v %v", got, err)
	}
}
