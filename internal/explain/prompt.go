package explain

import (
	"fmt"
	"strings"

	"github.com/dshills/asmexplain/internal/artifact"
)

const systemPrompt = "You are a helpful assistant that explains assembly code."

const promptTemplate = `You are an expert reverse engineer.
Explain this function in 3 parts:

1) High-level summary.
2) Important steps in order.
3) Simple pseudocode.

Be concise. Avoid unnecessary details.

Disassembly (file_id: %s, addr: %s):
%s`

// SystemPrompt returns the system instruction sent with every prompt.
func SystemPrompt() string {
	return systemPrompt
}

// BuildPrompt renders the listing of a as "0x<offset>: <text>" lines inside
// the explanation template. Trimmed artifacts get a note with the original
// and included instruction counts.
func BuildPrompt(fileID, address string, a *artifact.Artifact) string {
	var listing strings.Builder
	if a != nil {
		for i, op := range a.Ops {
			if i > 0 {
				listing.WriteByte('\n')
			}
			fmt.Fprintf(&listing, "0x%x: %s", op.Offset, op.Text)
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, promptTemplate, fileID, address, listing.String())

	if a != nil && a.Trimmed {
		original := a.OriginalCount
		if original == 0 {
			original = len(a.Ops)
		}
		b.WriteString("\n\nNOTE: The disassembly was trimmed to stay within the model's token limits.\n")
		b.WriteString("Only the first and last parts of the function are included.\n")
		fmt.Fprintf(&b, "Original instruction count: %d\n", original)
		fmt.Fprintf(&b, "Included: %d instructions.", len(a.Ops))
	}
	return b.String()
}
