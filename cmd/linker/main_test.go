package main

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/kbatlas/linker"
)

func TestDecodeMention(t *testing.T) {
	m, ok := decodeMention([]byte(`{"mention":"Kyiv","type":"GPE","context":"the capital"}`))
	if !ok {
		t.Fatal("expected valid mention")
	}
	if m.Text != "Kyiv" || m.Type != "GPE" || m.Context != "the capital" {
		t.Errorf("unexpected mention: %+v", m)
	}

	if _, ok := decodeMention(nil); ok {
		t.Error("empty line should be skipped")
	}
	if _, ok := decodeMention([]byte("not json")); ok {
		t.Error("malformed line should be skipped")
	}
}

func TestEmitUnresolved(t *testing.T) {
	var buf bytes.Buffer
	emit(json.NewEncoder(&buf), linker.Mention{Text: "Atlantis", Type: "GPE"}, linker.Outcome{}, nil)

	var res result
	if err := json.Unmarshal(buf.Bytes(), &res); err != nil {
		t.Fatalf("invalid output frame: %v", err)
	}
	if res.Resolved != linker.Unresolved {
		t.Errorf("Resolved = %q, want %q", res.Resolved, linker.Unresolved)
	}
	if len(res.Candidates) != 0 {
		t.Errorf("unexpected candidates: %v", res.Candidates)
	}
}

func TestEmitResolved(t *testing.T) {
	var buf bytes.Buffer
	out := linker.Outcome{
		Resolved: true,
		Candidates: []linker.ScoredCandidate{
			{EntityRecord: linker.EntityRecord{ID: "g1", Name: "Kyiv", Type: "GPE"}, Confidence: 1.0},
		},
	}
	emit(json.NewEncoder(&buf), linker.Mention{Text: "Kyiv", Type: "GPE"}, out, nil)

	if !strings.Contains(buf.String(), `"resolved":"g1"`) {
		t.Errorf("output missing resolved id: %s", buf.String())
	}
}
