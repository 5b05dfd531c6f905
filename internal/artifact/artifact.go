package artifact

import (
	"errors"
	"fmt"
	"regexp"
)

// Operation is one decoded instruction of a function.
type Operation struct {
	Offset uint64 `json:"offset"`
	Text   string `json:"disasm"`
}

// Artifact is the disassembly document for one function, keyed by file and
// address. Loaded artifacts are never modified; trimming produces a copy.
type Artifact struct {
	FileID        string      `json:"-"`
	Address       string      `json:"-"`
	Ops           []Operation `json:"ops"`
	Trimmed       bool        `json:"_trimmed,omitempty"`
	OriginalCount int         `json:"_original_length,omitempty"`
}

// Len returns the number of operations, treating a nil artifact as empty.
func (a *Artifact) Len() int {
	if a == nil {
		return 0
	}
	return len(a.Ops)
}

// Function describes one entry of a file's function index.
type Function struct {
	Name         string `json:"name"`
	Address      string `json:"address"`
	Size         uint64 `json:"size"`
	Instructions int    `json:"instructions"`
}

// ErrInvalidID is returned for file ids or addresses that cannot be used as
// storage keys.
var ErrInvalidID = errors.New("invalid identifier")

const maxIDLength = 255

// ids become path segments and are joined with ':' into cache keys, so
// neither '/' nor ':' may appear.
var idPattern = regexp.MustCompile(`^[A-Za-z0-9._-]+$`)

// ValidateID checks that v is usable as a file id or address.
func ValidateID(kind, v string) error {
	if v == "" || v == "." || v == ".." || len(v) > maxIDLength || !idPattern.MatchString(v) {
		return fmt.Errorf("%w: %s %q", ErrInvalidID, kind, v)
	}
	return nil
}

// NotFoundError reports that no artifact exists for a file and address.
type NotFoundError struct {
	FileID  string
	Address string
}

func (e *NotFoundError) Error() string {
	if e.Address == "" {
		return "function index not found for " + e.FileID
	}
	return fmt.Sprintf("disassembly not found for %s at %s", e.FileID, e.Address)
}

// FormatError reports an artifact that exists but is structurally invalid.
type FormatError struct {
	Path   string
	Reason string
	Err    error
}

func (e *FormatError) Error() string {
	msg := "disassembly is in unexpected format: " + e.Reason
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *FormatError) Unwrap() error { return e.Err }

// IsNotFound reports whether err is, or wraps, a NotFoundError.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

// IsFormatError reports whether err is, or wraps, a FormatError.
func IsFormatError(err error) bool {
	var fe *FormatError
	return errors.As(err, &fe)
}
