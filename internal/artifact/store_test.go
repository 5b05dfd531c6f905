package artifact

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func writeArtifact(t *testing.T, root, fileID, address, body string) {
	t.Helper()
	path := filepath.Join(root, fileID, "disassembly", address+".json")
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func TestStore_Load(t *testing.T) {
	root := t.TempDir()
	writeArtifact(t, root, "f1", "0x100", `{"ops":[{"offset":0,"disasm":"mov eax, ebx"},{"offset":2,"disasm":"ret"}]}`)

	a, err := NewStore(root).Load("f1", "0x100")
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if a.FileID != "f1" || a.Address != "0x100" {
		t.Errorf("ids = %q/%q, want f1/0x100", a.FileID, a.Address)
	}
	if len(a.Ops) != 2 {
		t.Fatalf("len(Ops) = %d, want 2", len(a.Ops))
	}
	if a.Ops[0].Text != "mov eax, ebx" || a.Ops[1].Offset != 2 {
		t.Errorf("Ops = %+v", a.Ops)
	}
	if a.Trimmed {
		t.Error("Trimmed should be false")
	}
}

func TestStore_LoadNotFound(t *testing.T) {
	_, err := NewStore(t.TempDir()).Load("f1", "0x100")
	if !IsNotFound(err) {
		t.Fatalf("expected NotFoundError, got %v", err)
	}
}

func TestStore_LoadInvalidID(t *testing.T) {
	s := NewStore(t.TempDir())
	for _, tc := range []struct{ fileID, address string }{
		{"..", "0x100"},
		{"f1", "../etc"},
		{"f1:x", "0x100"},
		{"", "0x100"},
		{"f1", ""},
	} {
		if _, err := s.Load(tc.fileID, tc.address); !errors.Is(err, ErrInvalidID) {
			t.Errorf("Load(%q, %q) error = %v, want ErrInvalidID", tc.fileID, tc.address, err)
		}
	}
}

func TestDecode_Malformed(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"not json", `not json`},
		{"top-level list", `[{"offset":0}]`},
		{"missing ops", `{"instructions":[]}`},
		{"ops null", `{"ops":null}`},
		{"ops object", `{"ops":{"offset":0}}`},
		{"op not object", `{"ops":["mov eax, ebx"]}`},
		{"negative offset", `{"ops":[{"offset":-4,"disasm":"nop"}]}`},
		{"fractional offset", `{"ops":[{"offset":1.5,"disasm":"nop"}]}`},
		{"text not string", `{"ops":[{"offset":0,"disasm":7}]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode([]byte(tt.body))
			if !IsFormatError(err) {
				t.Fatalf("Decode(%s) error = %v, want FormatError", tt.body, err)
			}
		})
	}
}

func TestDecode_Lenient(t *testing.T) {
	a, err := Decode([]byte(`{"ops":[{},{"offset":16},{"disasm":""}],"_trimmed":true,"_original_length":300,"arch":"x86"}`))
	if err != nil {
		t.Fatalf("Decode error: %v", err)
	}
	if len(a.Ops) != 3 {
		t.Fatalf("len(Ops) = %d, want 3", len(a.Ops))
	}
	if a.Ops[0] != (Operation{}) || a.Ops[1].Offset != 16 {
		t.Errorf("Ops = %+v", a.Ops)
	}
	if !a.Trimmed || a.OriginalCount != 300 {
		t.Errorf("trim metadata = %v/%d, want true/300", a.Trimmed, a.OriginalCount)
	}
}

func TestDecode_EmptyOps(t *testing.T) {
	a, err := Decode([]byte(`{"ops":[]}`))
	if err != nil {
		t.Fatalf("Decode error: %v", err)
	}
	if a.Len() != 0 {
		t.Errorf("Len() = %d, want 0", a.Len())
	}
}

func TestStore_SaveLoadIndex(t *testing.T) {
	s := NewStore(t.TempDir())
	a := &Artifact{FileID: "bin", Address: "0x401000", Ops: []Operation{{Offset: 0x401000, Text: "ret"}}}
	if err := s.Save(a); err != nil {
		t.Fatalf("Save error: %v", err)
	}
	got, err := s.Load("bin", "0x401000")
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if len(got.Ops) != 1 || got.Ops[0].Text != "ret" || got.Ops[0].Offset != 0x401000 {
		t.Errorf("round trip Ops = %+v", got.Ops)
	}

	if _, err := s.LoadIndex("bin"); !IsNotFound(err) {
		t.Fatalf("LoadIndex before save: %v, want NotFoundError", err)
	}
	fns := []Function{{Name: "main", Address: "0x401000", Size: 1, Instructions: 1}}
	if err := s.SaveIndex("bin", fns); err != nil {
		t.Fatalf("SaveIndex error: %v", err)
	}
	idx, err := s.LoadIndex("bin")
	if err != nil {
		t.Fatalf("LoadIndex error: %v", err)
	}
	if len(idx) != 1 || idx[0].Name != "main" {
		t.Errorf("LoadIndex = %+v", idx)
	}
}

func TestValidateID(t *testing.T) {
	valid := []string{"f1", "0x100", "3f2a9c1e-uuid", "lib.so", "a_b"}
	for _, v := range valid {
		if err := ValidateID("id", v); err != nil {
			t.Errorf("ValidateID(%q) = %v, want nil", v, err)
		}
	}
	invalid := []string{"", ".", "..", "a/b", "a:b", "a b", `a\b`}
	for _, v := range invalid {
		if err := ValidateID("id", v); !errors.Is(err, ErrInvalidID) {
			t.Errorf("ValidateID(%q) = %v, want ErrInvalidID", v, err)
		}
	}
}
