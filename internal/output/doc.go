// Package output formats explanations for display or machine consumption.
//
// Four formats are supported:
//   - text: plain terminal output (default)
//   - json: the explanation record as JSON, as served over HTTP
//   - markdown: a markdown document with a heading per function
//   - pretty: markdown rendered for the terminal with glamour
//
// Use [GetWriter] to obtain a [Writer] for a given format string, then call
// [Writer.Write] with an [io.Writer] and an [explain.Record]. [WriteRecord]
// handles destination selection. [WriteFunctions] prints a function index.
package output
