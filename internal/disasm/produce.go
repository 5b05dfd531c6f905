package disasm

import (
	"context"
	"debug/elf"
	"errors"
	"fmt"
	"runtime"
	"sort"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/ianlancetaylor/demangle"
	"golang.org/x/sync/errgroup"

	"github.com/dshills/asmexplain/internal/artifact"
	"github.com/dshills/asmexplain/internal/logging"
)

// Options controls Produce.
type Options struct {
	// FileID names the output directory. Empty generates a random id.
	FileID string
	// MinSize skips functions smaller than this many bytes.
	MinSize uint64
	// Concurrency bounds parallel decoding. Zero means runtime.NumCPU().
	Concurrency int
	Logger      *log.Logger
}

// Result summarizes one Produce run.
type Result struct {
	FileID    string
	Arch      Arch
	Functions []artifact.Function
}

// ArchOf maps an ELF machine to a decoder architecture.
func ArchOf(m elf.Machine) (Arch, error) {
	switch m {
	case elf.EM_X86_64:
		return ArchAMD64, nil
	case elf.EM_386:
		return Arch386, nil
	case elf.EM_AARCH64:
		return ArchARM64, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedArch, m)
	}
}

// Produce disassembles every function symbol in the ELF file at path and
// writes the artifacts and function index to store.
func Produce(ctx context.Context, store *artifact.Store, path string, opts Options) (Result, error) {
	logger := logging.OrDiscard(opts.Logger)

	fileID := opts.FileID
	if fileID == "" {
		fileID = uuid.NewString()
	}
	if err := artifact.ValidateID("file id", fileID); err != nil {
		return Result{}, err
	}

	f, err := elf.Open(path)
	if err != nil {
		return Result{}, fmt.Errorf("open elf: %w", err)
	}
	defer f.Close()

	arch, err := ArchOf(f.Machine)
	if err != nil {
		return Result{}, err
	}

	syms, err := functionSymbols(f, opts.MinSize)
	if err != nil {
		return Result{}, err
	}
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	table := newSymbolTable(syms)
	sections := newSectionReader(f)

	logger.Info("disassembling", "path", path, "arch", arch, "functions", len(syms), "file_id", fileID)

	limit := opts.Concurrency
	if limit <= 0 {
		limit = runtime.NumCPU()
	}
	fns := make([]artifact.Function, len(syms))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for i, s := range syms {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			code, err := sections.read(s.addr, s.size)
			if err != nil {
				logger.Warn("skipping function", "name", s.name, "err", err)
				return nil
			}
			ops, err := Decode(arch, code, s.addr, table.lookup)
			if err != nil {
				return err
			}
			addr := formatAddress(s.addr)
			a := &artifact.Artifact{FileID: fileID, Address: addr, Ops: ops}
			if err := store.Save(a); err != nil {
				return fmt.Errorf("saving %s: %w", s.name, err)
			}
			fns[i] = artifact.Function{
				Name:         s.name,
				Address:      addr,
				Size:         s.size,
				Instructions: len(ops),
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Result{}, err
	}

	index := make([]artifact.Function, 0, len(fns))
	for _, fn := range fns {
		if fn.Address != "" {
			index = append(index, fn)
		}
	}
	if err := store.SaveIndex(fileID, index); err != nil {
		return Result{}, fmt.Errorf("saving function index: %w", err)
	}
	logger.Info("disassembly complete", "file_id", fileID, "functions", len(index))
	return Result{FileID: fileID, Arch: arch, Functions: index}, nil
}

func formatAddress(addr uint64) string {
	return fmt.Sprintf("0x%x", addr)
}

// functionSymbols returns sized, defined function symbols, one per address,
// with demangled names. Dynamic symbols are used when the static table is
// stripped.
func functionSymbols(f *elf.File, minSize uint64) ([]symbol, error) {
	raw, err := f.Symbols()
	if errors.Is(err, elf.ErrNoSymbols) {
		raw, err = f.DynamicSymbols()
	}
	if err != nil && !errors.Is(err, elf.ErrNoSymbols) {
		return nil, fmt.Errorf("reading symbols: %w", err)
	}

	byAddr := make(map[uint64]symbol)
	for _, s := range raw {
		if elf.ST_TYPE(s.Info) != elf.STT_FUNC || s.Value == 0 || s.Size == 0 {
			continue
		}
		if s.Section == elf.SHN_UNDEF || s.Size < minSize {
			continue
		}
		name := demangle.Filter(s.Name)
		if name == "" {
			name = s.Name
		}
		if prev, ok := byAddr[s.Value]; ok && prev.name <= name {
			continue
		}
		byAddr[s.Value] = symbol{name: name, addr: s.Value, size: s.Size}
	}

	out := make([]symbol, 0, len(byAddr))
	for _, s := range byAddr {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].addr < out[j].addr })
	return out, nil
}

// sectionReader serves function bytes from executable sections, reading
// each section at most once.
type sectionReader struct {
	sections []*elf.Section

	mu   sync.Mutex
	data map[*elf.Section][]byte
}

func newSectionReader(f *elf.File) *sectionReader {
	r := &sectionReader{data: make(map[*elf.Section][]byte)}
	for _, s := range f.Sections {
		if s.Type == elf.SHT_PROGBITS && s.Flags&elf.SHF_EXECINSTR != 0 {
			r.sections = append(r.sections, s)
		}
	}
	return r
}

func (r *sectionReader) read(addr, size uint64) ([]byte, error) {
	for _, s := range r.sections {
		if addr < s.Addr || addr >= s.Addr+s.Size {
			continue
		}
		data, err := r.sectionData(s)
		if err != nil {
			return nil, err
		}
		start := addr - s.Addr
		if start >= uint64(len(data)) {
			return nil, fmt.Errorf("address 0x%x is past the data of section %s", addr, s.Name)
		}
		end := min(start+size, uint64(len(data)))
		return data[start:end], nil
	}
	return nil, fmt.Errorf("address 0x%x is not in an executable section", addr)
}

func (r *sectionReader) sectionData(s *elf.Section) ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if d, ok := r.data[s]; ok {
		return d, nil
	}
	d, err := s.Data()
	if err != nil {
		return nil, fmt.Errorf("reading section %s: %w", s.Name, err)
	}
	r.data[s] = d
	return d, nil
}
