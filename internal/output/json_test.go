package output

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/dshills/asmexplain/internal/artifact"
)

func TestJSONWriter(t *testing.T) {
	var buf bytes.Buffer
	w := &JSONWriter{}
	if err := w.Write(&buf, sampleRecord()); err != nil {
		t.Fatalf("Write error: %v", err)
	}

	var parsed map[string]any
	if err := json.Unmarshal(buf.Bytes(), &parsed); err != nil {
		t.Fatalf("Output is not valid JSON: %v", err)
	}

	if parsed["fileId"] != "f1" {
		t.Errorf("fileId = %v, want f1", parsed["fileId"])
	}
	if parsed["address"] != "0x100" {
		t.Errorf("address = %v, want 0x100", parsed["address"])
	}
	if parsed["explanation"] != "Moves ebx into eax and returns.\n" {
		t.Errorf("explanation = %q", parsed["explanation"])
	}
	if len(parsed) != 3 {
		t.Errorf("Expected exactly 3 fields, got %v", parsed)
	}
	if !strings.HasSuffix(buf.String(), "}\n") {
		t.Error("Output should end with a newline")
	}
}

func TestWriteFunctions_JSON(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteFunctions(&buf, nil, "json"); err != nil {
		t.Fatalf("WriteFunctions error: %v", err)
	}
	if strings.TrimSpace(buf.String()) != "[]" {
		t.Errorf("Empty index should render as [], got %q", buf.String())
	}

	buf.Reset()
	fns := []artifact.Function{{Name: "main", Address: "0x401000", Size: 42, Instructions: 12}}
	if err := WriteFunctions(&buf, fns, "json"); err != nil {
		t.Fatalf("WriteFunctions error: %v", err)
	}
	var parsed []artifact.Function
	if err := json.Unmarshal(buf.Bytes(), &parsed); err != nil {
		t.Fatalf("Output is not valid JSON: %v", err)
	}
	if len(parsed) != 1 || parsed[0] != fns[0] {
		t.Errorf("Round trip = %+v, want %+v", parsed, fns)
	}
}
