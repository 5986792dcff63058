package utils

import (
	"fmt"
	"io"
)

// Logger is a nil-safe trace writer handed to parsers.
type Logger struct {
	io.Writer
}

func NewLogger(w io.Writer) *Logger {
	return &Logger{Writer: w}
}

func (l *Logger) Println(a ...interface{}) {
	if l != nil && l.Writer != nil {
		fmt.Fprintln(l, a...)
	}
}

func (l *Logger) Printf(format string, a ...interface{}) {
	if l != nil && l.Writer != nil {
		fmt.Fprintf(l, format+"\n", a...)
	}
}
