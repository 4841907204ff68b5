package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Exitf reports a fatal startup error on stderr, prefixed with the binary
// name, and exits with code 1.
func Exitf(format string, args ...any) {
	writeFatal(os.Stderr, filepath.Base(os.Args[0]), format, args...)
	os.Exit(1)
}

func writeFatal(w io.Writer, prog, format string, args ...any) {
	fmt.Fprintf(w, prog+": "+format+"\n", args...)
}
