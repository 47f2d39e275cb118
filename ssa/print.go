package ssa

import (
	"io"

	"github.com/pkg/errors"
)

// WriteTo writes the functions of the Program to w in human readable SSA IR
// instruction format, in the order Functions returns them. Functions without
// a body are not written.
func (info *Info) WriteTo(w io.Writer) (int64, error) {
	var n int64
	for _, f := range info.Functions() {
		written, err := f.WriteTo(w)
		if err != nil {
			return n, err
		}
		n += written
	}
	return n, nil
}

// WriteFunc writes a single function to w in human readable SSA IR
// instruction format. The path is resolved with FindFunc.
func (info *Info) WriteFunc(w io.Writer, path string) (int64, error) {
	f := info.FindFunc(path)
	if f == nil {
		return 0, errors.Errorf("ssa: function %s not found", path)
	}
	return f.WriteTo(w)
}
