package interp

import "os"

// files is the open-file table: a mapping from small integer descriptors to
// endpoints. It is logically copied, never aliased, into each new execution
// context, so redirections performed in one context stay scoped to it. An
// entry may be nil, meaning the descriptor is closed.
type files []*os.File

// StdFiles is the conventional initial table.
var StdFiles = []*os.File{os.Stdin, os.Stdout, os.Stderr}

func (f files) clone() files {
	return append(files(nil), f...)
}

func (f files) get(fd int) *os.File {
	if fd < 0 || fd >= len(f) {
		return nil
	}
	return f[fd]
}

// set grows the table as needed and installs src at fd. Installing does not
// close whatever was there before: the table does not own inherited streams,
// and duplicated descriptors must not close their originals.
func (f files) set(fd int, src *os.File) files {
	for fd >= len(f) {
		f = append(f, nil)
	}
	f[fd] = src
	return f
}

// stdOr returns files[fd], or the fallback when the table is shorter than
// three entries or the slot was explicitly closed.
func (f files) stdOr(fd int, fallback *os.File) *os.File {
	if file := f.get(fd); file != nil {
		return file
	}
	return fallback
}
