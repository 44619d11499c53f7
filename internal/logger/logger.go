package logger

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	esbuild "github.com/evanw/esbuild/pkg/api"
)

// Level mirrors the bundler's logLevel option.
type Level uint8

const (
	LevelInfo Level = iota
	LevelWarn
	LevelError
	LevelSilent
)

func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(s) {
	case "", "info":
		return LevelInfo, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	case "silent":
		return LevelSilent, nil
	default:
		return LevelInfo, fmt.Errorf("unknown log level %q", s)
	}
}

func (l Level) String() string {
	switch l {
	case LevelInfo:
		return "info"
	case LevelWarn:
		return "warn"
	case LevelError:
		return "error"
	case LevelSilent:
		return "silent"
	default:
		panic("Unknown log level")
	}
}

func (l Level) slog() slog.Level {
	switch l {
	case LevelWarn:
		return slog.LevelWarn
	case LevelError:
		return slog.LevelError
	case LevelSilent:
		return slog.LevelError + 4
	default:
		return slog.LevelInfo
	}
}

// New returns a text logger writing to w that drops records below level.
func New(w io.Writer, level Level) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level.slog()}))
}

// Discard is a logger that writes nothing.
func Discard() *slog.Logger {
	return New(io.Discard, LevelSilent)
}

// Log collects diagnostics reported while building.
type Log struct {
	AddMessage func(Message)
	Warnings   func() []Message
	Errors     func() []Message
	Done       func() []Message
}

type MessageKind uint8

const (
	Error MessageKind = iota
	Warning
)

type Message struct {
	Kind MessageKind
	Data MessageData
}

type MessageData struct {
	Text     string
	File     string
	Line     int
	Column   int
	LineText string
}

func (kind MessageKind) String() string {
	switch kind {
	case Error:
		return "error"
	case Warning:
		return "warning"
	default:
		panic("Unknown message kind")
	}
}

func (d MessageData) String() string {
	if d.File == "" {
		return d.Text
	}
	return fmt.Sprintf("%s:%d:%d: %s", d.File, d.Line, d.Column, d.Text)
}

func NewLog() Log {
	var msgs []Message
	var mutex sync.Mutex

	byKind := func(kind MessageKind) []Message {
		mutex.Lock()
		defer mutex.Unlock()
		out := []Message{}
		for _, msg := range msgs {
			if msg.Kind == kind {
				out = append(out, msg)
			}
		}
		return out
	}

	return Log{
		AddMessage: func(msg Message) {
			mutex.Lock()
			defer mutex.Unlock()
			msgs = append(msgs, msg)
		},
		Warnings: func() []Message {
			return byKind(Warning)
		},
		Errors: func() []Message {
			return byKind(Error)
		},
		Done: func() []Message {
			mutex.Lock()
			defer mutex.Unlock()
			return append([]Message{}, msgs...)
		},
	}
}

func (log Log) AddError(text string) {
	log.AddMessage(Message{
		Kind: Error,
		Data: MessageData{Text: text},
	})
}

func (log Log) AddWarning(text string) {
	log.AddMessage(Message{
		Kind: Warning,
		Data: MessageData{Text: text},
	})
}

// AddEsbuild records the messages of an esbuild result.
func (log Log) AddEsbuild(errors, warnings []esbuild.Message) {
	for _, msg := range errors {
		log.AddMessage(Message{Kind: Error, Data: fromEsbuild(msg)})
	}
	for _, msg := range warnings {
		log.AddMessage(Message{Kind: Warning, Data: fromEsbuild(msg)})
	}
}

// Err joins the collected errors into one, or returns nil.
func (log Log) Err() error {
	errs := log.Errors()
	if len(errs) == 0 {
		return nil
	}
	lines := make([]string, 0, len(errs))
	for _, msg := range errs {
		lines = append(lines, msg.Data.String())
	}
	return fmt.Errorf("Encountered %d build error(s):\n%s", len(errs), strings.Join(lines, "\n"))
}

// Flush writes collected warnings to l.
func (log Log) Flush(l *slog.Logger) {
	for _, msg := range log.Warnings() {
		l.Warn(msg.Data.Text, "file", msg.Data.File, "line", msg.Data.Line)
	}
}

func fromEsbuild(msg esbuild.Message) MessageData {
	data := MessageData{Text: msg.Text}
	if msg.Location != nil {
		data.File = msg.Location.File
		data.Line = msg.Location.Line
		data.Column = msg.Location.Column
		data.LineText = msg.Location.LineText
	}
	return data
}
