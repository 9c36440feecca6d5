package plugins

import (
	"log/slog"

	"gopkg.in/natefinch/lumberjack.v2"
)

// PanicLog appends structured entries for every panic caught at the plugin
// boundary. Entries always carry a backtrace, independent of the host's
// verbosity settings. Write failures are swallowed: the log must never fail
// the user-facing operation.
type PanicLog struct {
	sink   *lumberjack.Logger
	logger *slog.Logger
}

// NewPanicLog opens (or creates) a rotating log file at path. Retention is
// seven days.
func NewPanicLog(path string) *PanicLog {
	sink := &lumberjack.Logger{
		Filename:   path,
		MaxSize:    10, // megabytes
		MaxAge:     7,  // days
		MaxBackups: 7,
	}
	return &PanicLog{
		sink:   sink,
		logger: slog.New(slog.NewJSONHandler(sink, nil)),
	}
}

// Write records one caught panic.
func (l *PanicLog) Write(plugin, message string, stack []byte) {
	if l == nil {
		return
	}
	defer func() {
		// A broken log file must not take the host down with it.
		recover()
	}()
	l.logger.Error("plugin panic",
		"plugin", plugin,
		"message", message,
		"backtrace", string(stack),
	)
}

// Close releases the underlying file.
func (l *PanicLog) Close() error {
	if l == nil || l.sink == nil {
		return nil
	}
	return l.sink.Close()
}
