// Package logging wires up a zerolog.Logger for cmd/flowverify: a
// console writer that colorizes output when attached to a real
// terminal, plain otherwise. The library packages that log (validate,
// simulate) take an optional zerolog.Logger in their Config, silent when
// left unset, instead of calling into this package, so they stay
// side-effect-free by default; petri, compile and explore take no logger.
package logging

import (
	"io"
	"os"

	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
)

// Level mirrors zerolog's level constants under the module's own name,
// so cmd/flowverify's flag parsing doesn't need to import zerolog itself.
type Level = zerolog.Level

const (
	DebugLevel Level = zerolog.DebugLevel
	InfoLevel  Level = zerolog.InfoLevel
	WarnLevel  Level = zerolog.WarnLevel
	ErrorLevel Level = zerolog.ErrorLevel
)

// New builds a zerolog.Logger writing to w at the given level. When w
// is os.Stdout or os.Stderr and is attached to a terminal, output is
// colorized via mattn/go-colorable; otherwise it falls back to a plain
// (non-colored) console writer, since piping colorized output to a file
// or another process corrupts it.
func New(w *os.File, level Level) zerolog.Logger {
	var out io.Writer = w
	noColor := true
	if isatty.IsTerminal(w.Fd()) || isatty.IsCygwinTerminal(w.Fd()) {
		out = colorable.NewColorable(w)
		noColor = false
	}
	console := zerolog.ConsoleWriter{Out: out, NoColor: noColor, TimeFormat: "15:04:05"}
	return zerolog.New(console).Level(level).With().Timestamp().Logger()
}

// Default builds a logger writing to os.Stderr at InfoLevel.
func Default() zerolog.Logger {
	return New(os.Stderr, InfoLevel)
}

// Nop is the silent logger every library package defaults to.
func Nop() zerolog.Logger {
	return zerolog.Nop()
}
