package output

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrinter_Plain(t *testing.T) {
	var buf bytes.Buffer
	printer := NewPrinter(&buf, ColorAuto)

	require.NoError(t, printer.Print(`{"signal":"A"}`))
	require.NoError(t, printer.Print(""))
	require.NoError(t, printer.Print("raw text"))

	assert.Equal(t, "{\"signal\":\"A\"}\n\nraw text\n", buf.String())
}

func TestPrinter_Never(t *testing.T) {
	var buf bytes.Buffer
	printer := NewPrinter(&buf, ColorNever)
	require.NoError(t, printer.Print(`[1,2]`))
	assert.Equal(t, "[1,2]\n", buf.String())
}

func TestPrinter_Always(t *testing.T) {
	var buf bytes.Buffer
	printer := NewPrinter(&buf, ColorAlways)

	require.NoError(t, printer.Print(`{"signal":"A"}`))
	out := buf.String()
	assert.Contains(t, out, "\x1b[", "highlighted output should contain ANSI escapes")
	assert.Contains(t, out, "signal")
}
