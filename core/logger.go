package core

import "log"

// Logger is implemented by every logging backend of the app.
// args may carry errors, extra maps and the access.Principal the log line is about.
type Logger interface {
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
	Fatal(msg string, args ...interface{})
}

// StdLogger is a Logger writing to a standard library logger only; used by tests and CLIs.
type StdLogger struct {
	Std   *log.Logger
	Quiet bool
}

var _ Logger = (*StdLogger)(nil)

func (l StdLogger) print(level, msg string, args []interface{}) {
	if l.Quiet || l.Std == nil {
		return
	}
	l.Std.Println(level + ": " + msg)
	for _, arg := range args {
		l.Std.Printf("%+v\n", arg)
	}
}

func (l StdLogger) Debug(msg string, args ...interface{}) { l.print("DEBUG", msg, args) }
func (l StdLogger) Info(msg string, args ...interface{})  { l.print("INFO", msg, args) }
func (l StdLogger) Warn(msg string, args ...interface{})  { l.print("WARN", msg, args) }
func (l StdLogger) Error(msg string, args ...interface{}) { l.print("ERROR", msg, args) }

func (l StdLogger) Fatal(msg string, args ...interface{}) {
	l.print("FATAL", msg, args)
	if l.Std != nil {
		l.Std.Fatal(msg)
	} else {
		log.Fatal(msg)
	}
}
