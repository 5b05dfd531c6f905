package explain

import "github.com/dshills/asmexplain/internal/artifact"

// DefaultTrimLimit is the largest listing sent to the provider untrimmed.
const DefaultTrimLimit = 120

// Trim bounds the listing to limit operations by keeping its head and tail.
// The head receives the extra operation when limit is odd. Artifacts within
// the limit are returned as is; otherwise a trimmed copy is returned with
// Trimmed set and OriginalCount recording the full length. A limit <= 0 means
// DefaultTrimLimit.
func Trim(a *artifact.Artifact, limit int) *artifact.Artifact {
	if limit <= 0 {
		limit = DefaultTrimLimit
	}
	if a == nil || len(a.Ops) <= limit {
		return a
	}

	tail := limit / 2
	head := limit - tail
	ops := make([]artifact.Operation, 0, limit)
	ops = append(ops, a.Ops[:head]...)
	ops = append(ops, a.Ops[len(a.Ops)-tail:]...)

	return &artifact.Artifact{
		FileID:        a.FileID,
		Address:       a.Address,
		Ops:           ops,
		Trimmed:       true,
		OriginalCount: len(a.Ops),
	}
}
