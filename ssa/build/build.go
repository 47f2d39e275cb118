// Package build constructs the SSA IR consumed by the analyses in the parent
// directory.
//
// Usage
//
// There are two ways of building SSA IR from source code:
//
// Build from a list of source files
//
// This is the normal usage, where a number of files are supplied (usually as
// command line arguments), and the builder considers all of the files part of
// the same package (i.e. in the same directory).
//
// Build from a Reader
//
// This is mostly used for testing or demo, where the input source code is
// read from a given io.Reader and parsed in place of a source file.
//
// By default the builder lifts local variables into SSA registers, leaving
// explicit loads and stores only for address-taken variables. WithMode can
// replace the builder mode, e.g. with ssa.NaiveForm to keep every local
// variable in memory.
package build
