package vfs

import (
	"io"
)

// Element is a model file or a directory of them, addressed by name.
type Element interface {
	Name() string
	IsDirectory() bool
}

type File interface {
	Element
	Size() int64
	Open(readonly bool) error
	Close() error
	Reader() (*io.SectionReader, error)
	Copy(src io.Reader) error
}

type Directory interface {
	Element
	List() ([]string, error)
	GetElement(name string) (Element, error)
	// Add creates an empty file or directory named after e
	Add(e Element) error
}
