// Package diag carries diagnostics through the pipeline.
//
// Semantic problems in user input are always data (Diagnostic values in a
// Bag), never Go errors. Go errors are reserved for pipeline misuse and
// cancellation. Each pass owns one Bag; stage boundaries merge bags in a
// defined order and Sort before presenting.
package diag
