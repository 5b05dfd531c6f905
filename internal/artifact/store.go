package artifact

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
)

const (
	disassemblyDir  = "disassembly"
	explanationsDir = "explanations"
	indexFile       = "functions.json"
)

// Store reads and writes artifacts below a root directory laid out as
// <root>/<fileId>/disassembly/<address>.json.
type Store struct {
	root string
}

// NewStore returns a Store rooted at dir.
func NewStore(dir string) *Store {
	return &Store{root: dir}
}

// Root returns the store's root directory.
func (s *Store) Root() string { return s.root }

// FileDir returns the directory holding everything produced for fileID.
func (s *Store) FileDir(fileID string) string {
	return filepath.Join(s.root, fileID)
}

// DisassemblyPath returns the artifact path for a file and address.
func (s *Store) DisassemblyPath(fileID, address string) string {
	return filepath.Join(s.root, fileID, disassemblyDir, address+".json")
}

// ExplanationsDir returns the per-file directory of persisted explanations.
func (s *Store) ExplanationsDir(fileID string) string {
	return filepath.Join(s.root, fileID, explanationsDir)
}

// IndexPath returns the path of the function index for fileID.
func (s *Store) IndexPath(fileID string) string {
	return filepath.Join(s.root, fileID, indexFile)
}

// Load reads and validates the artifact for fileID and address.
func (s *Store) Load(fileID, address string) (*Artifact, error) {
	if err := ValidateID("file id", fileID); err != nil {
		return nil, err
	}
	if err := ValidateID("address", address); err != nil {
		return nil, err
	}
	path := s.DisassemblyPath(fileID, address)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &NotFoundError{FileID: fileID, Address: address}
		}
		return nil, fmt.Errorf("reading disassembly: %w", err)
	}
	a, err := Decode(data)
	if err != nil {
		if fe, ok := err.(*FormatError); ok {
			fe.Path = path
		}
		return nil, err
	}
	a.FileID = fileID
	a.Address = address
	return a, nil
}

type rawOperation struct {
	Offset json.Number `json:"offset"`
	Disasm string      `json:"disasm"`
}

type rawMeta struct {
	Trimmed        bool `json:"_trimmed"`
	OriginalLength int  `json:"_original_length"`
}

// Decode parses an artifact document. The document must be an object with an
// "ops" list; missing operation fields decode as zero values.
func Decode(data []byte) (*Artifact, error) {
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, &FormatError{Reason: "document is not a JSON object", Err: err}
	}
	rawOps, ok := doc["ops"]
	if !ok {
		return nil, &FormatError{Reason: "missing ops field"}
	}
	if t := bytes.TrimSpace(rawOps); len(t) == 0 || t[0] != '[' {
		return nil, &FormatError{Reason: "ops is not a list"}
	}
	var items []json.RawMessage
	if err := json.Unmarshal(rawOps, &items); err != nil {
		return nil, &FormatError{Reason: "ops is not a list", Err: err}
	}

	a := &Artifact{Ops: make([]Operation, 0, len(items))}
	for i, item := range items {
		if t := bytes.TrimSpace(item); len(t) == 0 || t[0] != '{' {
			return nil, &FormatError{Reason: fmt.Sprintf("operation %d is not an object", i)}
		}
		var ro rawOperation
		if err := json.Unmarshal(item, &ro); err != nil {
			return nil, &FormatError{Reason: fmt.Sprintf("operation %d", i), Err: err}
		}
		var offset uint64
		if ro.Offset != "" {
			n, err := strconv.ParseUint(ro.Offset.String(), 10, 64)
			if err != nil {
				return nil, &FormatError{Reason: fmt.Sprintf("operation %d has invalid offset %q", i, ro.Offset)}
			}
			offset = n
		}
		a.Ops = append(a.Ops, Operation{Offset: offset, Text: ro.Disasm})
	}

	var meta rawMeta
	if err := json.Unmarshal(data, &meta); err == nil {
		a.Trimmed = meta.Trimmed
		a.OriginalCount = meta.OriginalLength
	}
	return a, nil
}

// Save writes a's operations to its disassembly path.
func (s *Store) Save(a *Artifact) error {
	if err := ValidateID("file id", a.FileID); err != nil {
		return err
	}
	if err := ValidateID("address", a.Address); err != nil {
		return err
	}
	data, err := json.MarshalIndent(a, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling artifact: %w", err)
	}
	return writeFile(s.DisassemblyPath(a.FileID, a.Address), data)
}

// SaveIndex writes the function index for fileID.
func (s *Store) SaveIndex(fileID string, fns []Function) error {
	if err := ValidateID("file id", fileID); err != nil {
		return err
	}
	if fns == nil {
		fns = []Function{}
	}
	data, err := json.MarshalIndent(fns, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling function index: %w", err)
	}
	return writeFile(s.IndexPath(fileID), data)
}

// LoadIndex reads the function index for fileID. A missing index is reported
// as a NotFoundError with an empty address.
func (s *Store) LoadIndex(fileID string) ([]Function, error) {
	if err := ValidateID("file id", fileID); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(s.IndexPath(fileID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &NotFoundError{FileID: fileID}
		}
		return nil, fmt.Errorf("reading function index: %w", err)
	}
	var fns []Function
	if err := json.Unmarshal(data, &fns); err != nil {
		return nil, &FormatError{Path: s.IndexPath(fileID), Reason: "function index is not a JSON list", Err: err}
	}
	return fns, nil
}

func writeFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating directory: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}
