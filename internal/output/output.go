// Package output writes query results to the console, one line per event.
package output

import (
	"fmt"
	"io"
	"os"

	"github.com/alecthomas/chroma/v2/quick"
	"golang.org/x/term"
)

// ColorMode selects when results are syntax highlighted.
type ColorMode string

const (
	ColorAuto   ColorMode = "auto"
	ColorAlways ColorMode = "always"
	ColorNever  ColorMode = "never"
)

const (
	highlightFormatter = "terminal256"
	highlightStyle     = "monokai"
)

// Printer writes lines to an output stream.
type Printer struct {
	w     io.Writer
	color bool
}

// NewPrinter returns a printer for w. With ColorAuto, highlighting is enabled
// only when w is a terminal.
func NewPrinter(w io.Writer, mode ColorMode) *Printer {
	return &Printer{w: w, color: useColor(w, mode)}
}

func useColor(w io.Writer, mode ColorMode) bool {
	switch mode {
	case ColorAlways:
		return true
	case ColorNever:
		return false
	}
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// Print writes line followed by a newline.
func (p *Printer) Print(line string) error {
	if p.color && line != "" {
		return quick.Highlight(p.w, line+"\n", "json", highlightFormatter, highlightStyle)
	}
	_, err := fmt.Fprintln(p.w, line)
	return err
}
