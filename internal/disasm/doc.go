// Package disasm produces disassembly artifacts from ELF binaries.
//
// [Produce] walks the function symbols of an x86-64, 386 or arm64 ELF file,
// decodes each function with golang.org/x/arch, and writes one artifact per
// function plus a function index through an [artifact.Store]. Functions are
// decoded in parallel, bounded by the number of CPUs.
package disasm
