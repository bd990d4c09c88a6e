package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/bft-labs/hubble/pkg/hubble"
)

func TestApplyFields(t *testing.T) {
	batch := hubble.Batch{"source": "file"}
	err := applyFields(batch, []string{
		"source=cli",
		"count=3",
		`batch=[{"event":"ping"}]`,
		"note=hello world",
		"empty=",
	})
	if err != nil {
		t.Fatalf("applyFields() error = %v", err)
	}

	if batch["source"] != "cli" {
		t.Errorf("source = %v, want cli", batch["source"])
	}
	if batch["count"] != json.Number("3") {
		t.Errorf("count = %#v, want json.Number(3)", batch["count"])
	}
	if events, ok := batch["batch"].([]any); !ok || len(events) != 1 {
		t.Errorf("batch = %#v, want one event", batch["batch"])
	}
	if batch["note"] != "hello world" {
		t.Errorf("note = %v, want hello world", batch["note"])
	}
	if batch["empty"] != "" {
		t.Errorf("empty = %#v, want empty string", batch["empty"])
	}
}

func TestApplyFields_Invalid(t *testing.T) {
	for _, kv := range []string{"novalue", "=value"} {
		if err := applyFields(hubble.Batch{}, []string{kv}); err == nil {
			t.Errorf("applyFields(%q) error = nil, want error", kv)
		}
	}
}

func TestReadBatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "batch.json")
	if err := os.WriteFile(path, []byte(`{"from":"file"}`), 0644); err != nil {
		t.Fatal(err)
	}
	stdin := `{"from":"stdin"}`

	tests := []struct {
		name     string
		file     string
		useStdin bool
		want     any
	}{
		{name: "file", file: path, want: "file"},
		{name: "dash reads stdin", file: "-", want: "stdin"},
		{name: "stdin when no fields", useStdin: true, want: "stdin"},
		{name: "empty when fields only", want: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := readBatch(strings.NewReader(stdin), tt.file, tt.useStdin)
			if err != nil {
				t.Fatalf("readBatch() error = %v", err)
			}
			if b["from"] != tt.want {
				t.Errorf("from = %v, want %v", b["from"], tt.want)
			}
		})
	}
}
