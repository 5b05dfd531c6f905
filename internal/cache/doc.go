// Package cache provides the two-tier cache for function explanations.
//
// The memory tier is a map guarded by a read/write mutex and lives as long as
// the Cache value. The durable tier stores each explanation as a plain UTF-8
// text file at <dir>/<fileId>/explanations/<address>.txt, next to the
// disassembly artifacts. Files are written to a temporary name and renamed
// into place so readers never see a partial explanation.
//
// Writes to the durable tier are best-effort: a failure is wrapped in a
// [PersistenceError], logged and counted, and the in-memory entry stays
// authoritative. Reads check memory first, then disk, and promote disk hits
// into memory.
//
// Keys are not validated here. Callers pass ids that have already been
// checked with artifact.ValidateID.
package cache
