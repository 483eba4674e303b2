package entityschema

import (
	"encoding/json"
	"testing"
)

func TestValidateEntityPayload_Valid(t *testing.T) {
	t.Parallel()

	raw := json.RawMessage(`{
		"entities": [
			{"entity_name": "Lazarus Group", "entity_category": "apt_group", "entity_id": 12},
			{"entity_name": "CVE-2024-9999", "entity_category": "cve"}
		]
	}`)

	payload, err := ValidateEntityPayload(raw)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if len(payload.Entities) != 2 {
		t.Fatalf("entities: got %d want 2", len(payload.Entities))
	}
	if payload.Entities[0].EntityName != "Lazarus Group" || payload.Entities[0].EntityCategory != "apt_group" {
		t.Fatalf("unexpected first entity: %+v", payload.Entities[0])
	}
	if payload.Entities[0].EntityID == nil || *payload.Entities[0].EntityID != 12 {
		t.Fatalf("unexpected entity id: %+v", payload.Entities[0].EntityID)
	}
	if payload.SkipClustering() {
		t.Fatalf("expected clustering not skipped by default")
	}
}

func TestValidateEntityPayload_DropsBlankTags(t *testing.T) {
	t.Parallel()

	raw := json.RawMessage(`{
		"entities": [
			{"entity_name": "  ", "entity_category": "cve"},
			{"entity_name": "LockBit", "entity_category": "ransomware_group"}
		]
	}`)

	payload, err := ValidateEntityPayload(raw)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if len(payload.Entities) != 1 {
		t.Fatalf("entities after blank drop: got %d want 1", len(payload.Entities))
	}
	if payload.Entities[0].EntityName != "LockBit" {
		t.Fatalf("unexpected surviving entity: %+v", payload.Entities[0])
	}
}

func TestValidateEntityPayload_RejectsInvalidShape(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"entities not array": `{"entities": "nope"}`,
		"missing name":       `{"entities": [{"entity_category": "cve"}]}`,
		"empty name":         `{"entities": [{"entity_name": "", "entity_category": "cve"}]}`,
		"bad no_clustering":  `{"no_clustering": 5}`,
		"malformed json":     `{"entities": [`,
		"trailing content":   `{} {}`,
		"empty payload":      ``,
	}
	for name, raw := range cases {
		if _, err := ValidateEntityPayload(json.RawMessage(raw)); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
}

func TestSkipClustering(t *testing.T) {
	t.Parallel()

	cases := []struct {
		raw  string
		want bool
	}{
		{`{"no_clustering": true}`, true},
		{`{"no_clustering": false}`, false},
		{`{"no_clustering": "true"}`, true},
		{`{"no_clustering": "TRUE"}`, true},
		{`{"no_clustering": " true "}`, true},
		{`{"no_clustering": "false"}`, false},
		{`{}`, false},
	}
	for _, tc := range cases {
		payload, err := ValidateEntityPayload(json.RawMessage(tc.raw))
		if err != nil {
			t.Fatalf("%s: validate: %v", tc.raw, err)
		}
		if got := payload.SkipClustering(); got != tc.want {
			t.Fatalf("%s: skip clustering got %t want %t", tc.raw, got, tc.want)
		}
	}

	var nilPayload *EntityPayload
	if nilPayload.SkipClustering() {
		t.Fatalf("nil payload should not skip clustering")
	}
}
