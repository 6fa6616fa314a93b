//go:build !unix

package source

import "os"

func newFileSource(f *os.File) *ReaderSource {
	return newReaderSource(f, f)
}
