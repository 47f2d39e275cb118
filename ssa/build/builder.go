package build

import (
	"bytes"
	"io"
	"io/ioutil"
	"log"

	"github.com/bsauce/memssa/ssa"
	"github.com/pkg/errors"
)

// Builder builds SSA IR and metainfo.
type Builder interface {
	Build() (*ssa.Info, error)
}

// FileSrc is a set of filenames.
type FileSrc struct {
	Files []string
}

// FromFiles returns a non-nil Builder from a slice of filenames.
// The files are treated as a single package.
func FromFiles(files []string) Configurer {
	return newConfig(&FileSrc{Files: files})
}

// NewReader returns an io.Reader for reading all files in sequence.
func (s *FileSrc) NewReader() io.Reader {
	var bufs []io.Reader
	for _, file := range s.Files {
		b, err := ioutil.ReadFile(file)
		if err != nil {
			log.Fatal(errors.Wrapf(err, "failed to read from file: %s", file))
		}
		bufs = append(bufs, bytes.NewReader(b))
	}
	return io.MultiReader(bufs...)
}

// CachedSrc is source file from a reader.
type CachedSrc struct {
	cached []byte
}

// FromReader returns a non-nil Builder for a reader.
// This is typically used for testing or building a temporary file.
func FromReader(r io.Reader) Configurer {
	b, err := ioutil.ReadAll(r)
	if err != nil {
		log.Fatal(errors.Wrap(err, "failed to read from reader"))
	}
	return newConfig(&CachedSrc{cached: b})
}

// NewReader returns a reader for reading the string content.
func (s *CachedSrc) NewReader() io.Reader {
	return bytes.NewReader(s.cached)
}
