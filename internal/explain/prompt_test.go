package explain

import (
	"strings"
	"testing"

	"github.com/dshills/asmexplain/internal/artifact"
)

func TestBuildPrompt_Listing(t *testing.T) {
	a := &artifact.Artifact{Ops: []artifact.Operation{
		{Offset: 0x100, Text: "mov eax, ebx"},
		{Offset: 0x102, Text: "ret"},
	}}
	got := BuildPrompt("f1", "0x100", a)

	if !strings.Contains(got, "0x100: mov eax, ebx\n0x102: ret") {
		t.Errorf("listing not rendered:\n%s", got)
	}
	for _, want := range []string{
		"file_id: f1, addr: 0x100",
		"1) High-level summary.",
		"2) Important steps in order.",
		"3) Simple pseudocode.",
		"Be concise.",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
	if strings.Contains(got, "NOTE:") {
		t.Error("untrimmed prompt should not carry a trim note")
	}
}

func TestBuildPrompt_TrimDisclosure(t *testing.T) {
	a := Trim(makeArtifact(500), 120)
	got := BuildPrompt("f1", "0x1000", a)
	if !strings.Contains(got, "Original instruction count: 500") {
		t.Errorf("missing original count:\n%s", got)
	}
	if !strings.Contains(got, "Included: 120 instructions.") {
		t.Errorf("missing included count:\n%s", got)
	}
}

func TestBuildPrompt_IncludedCountFollowsLimit(t *testing.T) {
	got := BuildPrompt("f1", "0x1000", Trim(makeArtifact(50), 10))
	if !strings.Contains(got, "Included: 10 instructions.") {
		t.Errorf("included count should reflect the trimmed listing:\n%s", got)
	}
}

func TestBuildPrompt_MissingFields(t *testing.T) {
	a := &artifact.Artifact{Ops: []artifact.Operation{{}, {Offset: 0x10}}}
	got := BuildPrompt("f1", "0x0", a)
	if !strings.Contains(got, "0x0: \n0x10: ") {
		t.Errorf("zero-valued ops should render as defaults:\n%s", got)
	}
	if nilPrompt := BuildPrompt("f1", "0x0", nil); !strings.HasSuffix(nilPrompt, "addr: 0x0):\n") {
		t.Errorf("nil artifact should render an empty listing:\n%s", nilPrompt)
	}
}

func TestSystemPrompt(t *testing.T) {
	if SystemPrompt() != "You are a helpful assistant that explains assembly code." {
		t.Errorf("SystemPrompt = %q", SystemPrompt())
	}
}
