// Package ssa is a library to build and work with SSA.
// For most part the package contains helper or wrapper functions to use the
// packages in Go project's extra tools.
//
// In particular, the SSA IR is from golang.org/x/tools/go/ssa, and reuses many
// of the packages in the static analysis stack built on top of it. The memory
// SSA layers of this module (mr, mssa) consume the Info built here.
//
package ssa

import (
	"go/token"
	"io"
	"log"

	"github.com/pkg/errors"
	"golang.org/x/tools/go/loader"
	"golang.org/x/tools/go/ssa"
)

// Errors for finding entry points of a program.
var (
	// ErrNoMainPkgs is the error when no main packages are found in a program.
	ErrNoMainPkgs = errors.New("no main packages")

	// ErrNoTestMainPkgs is the error when no testable packages are found in a
	// program.
	ErrNoTestMainPkgs = errors.New("no test main packages")
)

// Info holds the results of a SSA build for analysis.
// To populate this structure, the 'build' subpackage should be used.
//
type Info struct {
	IgnoredPkgs []string // Record of ignored package during the build process.

	FSet  *token.FileSet  // FileSet for parsed source files.
	Prog  *ssa.Program    // SSA IR for whole program.
	LProg *loader.Program // Loaded program from go/loader.

	BldLog io.Writer // Build log.
	PtaLog io.Writer // Pointer analysis log.

	Logger *log.Logger // Build logger.
}
