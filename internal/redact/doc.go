// Package redact removes credentials from text before it is logged or
// returned in an error.
//
// The provider credential travels as a query parameter, so request URLs are
// scrubbed with [URL]. Response bodies and payload dumps go through [Value],
// which removes the known credential verbatim and then applies the
// credential-shaped heuristics in [Secrets].
package redact
