// Package explain produces natural-language explanations of disassembled
// functions.
//
// [Service.Explain] loads a function's disassembly artifact, serves the
// explanation from the two-tier cache when possible and otherwise trims the
// instruction listing, builds the prompt and asks the LLM provider. Successful
// explanations are cached; failures are returned unchanged and never cached.
//
// Concurrent misses for the same function share a single provider call, and
// the provider call is detached from the caller's context so an abandoned
// request still populates the cache.
package explain
