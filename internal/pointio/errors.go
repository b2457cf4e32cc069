// Package pointio reads and writes point cloud files. Supported read
// formats: PLY (ascii and binary little endian), PCD (ascii), and
// whitespace or comma separated numeric text (.xyz/.txt/.csv).
// Supported write formats: PLY (ascii), .xyz/.txt and .csv.
package pointio

import "fmt"

// ReadError reports a source file that could not be decoded: an
// unsupported extension, malformed content, fewer than 3 points or
// columns, or non-finite coordinates.
type ReadError struct {
	Path string
	Err  error
}

func (e *ReadError) Error() string { return fmt.Sprintf("read %s: %v", e.Path, e.Err) }
func (e *ReadError) Unwrap() error { return e.Err }

// WriteError reports an output file that could not be produced.
type WriteError struct {
	Path string
	Err  error
}

func (e *WriteError) Error() string { return fmt.Sprintf("write %s: %v", e.Path, e.Err) }
func (e *WriteError) Unwrap() error { return e.Err }

func readErr(path string, format string, args ...any) error {
	return &ReadError{Path: path, Err: fmt.Errorf(format, args...)}
}
