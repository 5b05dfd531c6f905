package disasm

import (
	"errors"
	"fmt"
	"sort"

	"golang.org/x/arch/arm64/arm64asm"
	"golang.org/x/arch/x86/x86asm"

	"github.com/dshills/asmexplain/internal/artifact"
)

// Arch identifies an instruction set the decoder supports.
type Arch string

const (
	ArchAMD64 Arch = "amd64"
	Arch386   Arch = "386"
	ArchARM64 Arch = "arm64"
)

// ErrUnsupportedArch is returned for machines the decoder cannot handle.
var ErrUnsupportedArch = errors.New("unsupported architecture")

// Symbolizer resolves an address to the enclosing symbol's name and start
// address. It returns an empty name when nothing matches.
type Symbolizer func(addr uint64) (name string, base uint64)

// Decode disassembles code loaded at base. Bytes that do not decode are
// emitted as data directives and decoding resumes after them.
func Decode(arch Arch, code []byte, base uint64, sym Symbolizer) ([]artifact.Operation, error) {
	switch arch {
	case ArchAMD64:
		return decodeX86(code, base, 64, sym), nil
	case Arch386:
		return decodeX86(code, base, 32, sym), nil
	case ArchARM64:
		return decodeARM64(code, base), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedArch, arch)
	}
}

func decodeX86(code []byte, base uint64, mode int, sym Symbolizer) []artifact.Operation {
	var lookup x86asm.SymLookup
	if sym != nil {
		lookup = x86asm.SymLookup(sym)
	}
	ops := make([]artifact.Operation, 0, len(code)/3)
	for pc := 0; pc < len(code); {
		addr := base + uint64(pc)
		inst, err := x86asm.Decode(code[pc:], mode)
		if err != nil || inst.Len == 0 {
			ops = append(ops, artifact.Operation{Offset: addr, Text: fmt.Sprintf(".byte 0x%02x", code[pc])})
			pc++
			continue
		}
		ops = append(ops, artifact.Operation{Offset: addr, Text: x86asm.IntelSyntax(inst, addr, lookup)})
		pc += inst.Len
	}
	return ops
}

func decodeARM64(code []byte, base uint64) []artifact.Operation {
	ops := make([]artifact.Operation, 0, len(code)/4)
	for pc := 0; pc+4 <= len(code); pc += 4 {
		addr := base + uint64(pc)
		inst, err := arm64asm.Decode(code[pc : pc+4])
		if err != nil {
			word := uint32(code[pc]) | uint32(code[pc+1])<<8 | uint32(code[pc+2])<<16 | uint32(code[pc+3])<<24
			ops = append(ops, artifact.Operation{Offset: addr, Text: fmt.Sprintf(".inst 0x%08x", word)})
			continue
		}
		ops = append(ops, artifact.Operation{Offset: addr, Text: arm64asm.GNUSyntax(inst)})
	}
	return ops
}

// symbolTable is an address-sorted list of function symbols.
type symbolTable []symbol

type symbol struct {
	name string
	addr uint64
	size uint64
}

func newSymbolTable(syms []symbol) symbolTable {
	t := make(symbolTable, len(syms))
	copy(t, syms)
	sort.Slice(t, func(i, j int) bool { return t[i].addr < t[j].addr })
	return t
}

// lookup implements Symbolizer.
func (t symbolTable) lookup(addr uint64) (string, uint64) {
	i := sort.Search(len(t), func(i int) bool { return t[i].addr > addr }) - 1
	if i < 0 {
		return "", 0
	}
	s := t[i]
	if addr != s.addr && addr >= s.addr+s.size {
		return "", 0
	}
	return s.name, s.addr
}
