package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"github.com/kingrea/bam/internal/logbook"
)

var (
	stepStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#5FD7FF")).Bold(true)
	infoStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#AAAAAA"))
	warnStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFD75F"))
	errStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF6B6B")).Bold(true)
)

// Logger prints user-facing progress lines and mirrors each one into the
// run's logbook so failures can be inspected after the terminal is gone.
type Logger struct {
	out  io.Writer
	err  io.Writer
	book *logbook.Logbook
	mu   sync.Mutex
}

// New returns a logger writing to stdout/stderr. book may be nil.
func New(book *logbook.Logbook) *Logger {
	return NewWithWriters(os.Stdout, os.Stderr, book)
}

// NewWithWriters is New with explicit destinations.
func NewWithWriters(out, errOut io.Writer, book *logbook.Logbook) *Logger {
	if out == nil {
		out = io.Discard
	}
	if errOut == nil {
		errOut = io.Discard
	}
	return &Logger{out: out, err: errOut, book: book}
}

// Logbook returns the journal backing this logger.
func (l *Logger) Logbook() *logbook.Logbook {
	if l == nil {
		return nil
	}
	return l.book
}

// Step announces a top-level action ("Run Install").
func (l *Logger) Step(format string, args ...any) {
	l.write(l.out, stepStyle, logbook.LevelInfo, format, args...)
}

// Printf writes an informational line.
func (l *Logger) Printf(format string, args ...any) {
	l.write(l.out, infoStyle, logbook.LevelInfo, format, args...)
}

// Warnf writes a warning line.
func (l *Logger) Warnf(format string, args ...any) {
	l.write(l.err, warnStyle, logbook.LevelWarn, format, args...)
}

// Errorf writes an error line.
func (l *Logger) Errorf(format string, args ...any) {
	l.write(l.err, errStyle, logbook.LevelError, format, args...)
}

func (l *Logger) write(w io.Writer, style lipgloss.Style, level logbook.Level, format string, args ...any) {
	if l == nil {
		return
	}
	line := strings.TrimRight(fmt.Sprintf(format, args...), "\n")
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintln(w, style.Render(line))
	l.book.Append(level, line)
}
