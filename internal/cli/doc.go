// Package cli wires together the Cobra command tree for the asmexplain binary.
//
// It defines the root command and all subcommands (serve, explain, disasm,
// config, models, cache, version), binds flags, reads configuration, builds
// the explanation pipeline, and returns deterministic exit codes. On a
// terminal the tree runs through fang for styled help and errors.
package cli
