// Package artifact defines the disassembly artifact consumed by the
// explanation pipeline and the on-disk store it is read from.
//
// An artifact is a JSON document with an "ops" list of {offset, disasm}
// records, written by a producer (see package disasm) to
// <root>/<fileId>/disassembly/<address>.json. [Store.Load] validates the
// document's structure and returns a [*FormatError] for malformed input and a
// [*NotFoundError] when no artifact exists. File ids and addresses are checked
// by [ValidateID] before they touch the filesystem.
package artifact
