package cli

import (
	"fmt"
	"io"
)

// writerLogger is the --verbose logger. It writes to stderr so command
// output stays clean.
type writerLogger struct {
	w io.Writer
}

func newWriterLogger(w io.Writer) writerLogger {
	return writerLogger{w: w}
}

func (l writerLogger) Error(format string, args ...any) { l.print("ERR", format, args...) }
func (l writerLogger) Warn(format string, args ...any)  { l.print("WRN", format, args...) }
func (l writerLogger) Info(format string, args ...any)  { l.print("INF", format, args...) }
func (l writerLogger) Debug(format string, args ...any) { l.print("DBG", format, args...) }

func (l writerLogger) print(level, format string, args ...any) {
	fmt.Fprintf(l.w, "[%s] LIBCTL %s\n", level, fmt.Sprintf(format, args...))
}
