package logging

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

// StdoutLogger is a tiny structured logger that prints JSON lines.
// It implements Logger; persistent fields added via With are merged into
// every entry.
type StdoutLogger struct {
	component string
	fields    []Field
	min       Level

	mu  *sync.Mutex
	out io.Writer
}

// NewStdoutLogger creates a logger writing to stdout at info level.
// component is optional and is emitted on every line.
func NewStdoutLogger(component string) *StdoutLogger {
	return NewLogger(os.Stdout, component, LevelInfo)
}

// NewLogger creates a logger writing to w, dropping entries below min.
func NewLogger(w io.Writer, component string, min Level) *StdoutLogger {
	return &StdoutLogger{
		component: component,
		min:       min,
		mu:        &sync.Mutex{},
		out:       w,
	}
}

type outEntry struct {
	Level     string         `json:"level"`
	Msg       string         `json:"msg"`
	Component string         `json:"component,omitempty"`
	Time      string         `json:"time"`
	Fields    map[string]any `json:"fields,omitempty"`
}

func (s *StdoutLogger) log(level Level, msg string, fields ...Field) {
	if level < s.min {
		return
	}
	m := make(map[string]any, len(s.fields)+len(fields))
	for _, f := range s.fields {
		m[f.Key] = f.Value
	}
	for _, f := range fields {
		m[f.Key] = f.Value
	}
	entry := outEntry{
		Level:     level.String(),
		Msg:       msg,
		Component: s.component,
		Time:      time.Now().UTC().Format(time.RFC3339),
		Fields:    m,
	}
	if len(m) == 0 {
		entry.Fields = nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	enc, err := json.Marshal(entry)
	if err != nil {
		// Fallback simple formatting if a field value cannot be marshalled
		fmt.Fprintf(s.out, "%s %s %v\n", level, msg, m)
		return
	}
	fmt.Fprintln(s.out, string(enc))
}

func (s *StdoutLogger) Debug(msg string, fields ...Field) { s.log(LevelDebug, msg, fields...) }
func (s *StdoutLogger) Info(msg string, fields ...Field)  { s.log(LevelInfo, msg, fields...) }
func (s *StdoutLogger) Warn(msg string, fields ...Field)  { s.log(LevelWarn, msg, fields...) }
func (s *StdoutLogger) Error(msg string, fields ...Field) { s.log(LevelError, msg, fields...) }

// With returns a child logger. A "component" field replaces the component
// name; everything else becomes a persistent field.
func (s *StdoutLogger) With(fields ...Field) Logger {
	child := &StdoutLogger{
		component: s.component,
		min:       s.min,
		mu:        s.mu,
		out:       s.out,
		fields:    append([]Field(nil), s.fields...),
	}
	for _, f := range fields {
		if f.Key == "component" {
			if str, ok := f.Value.(string); ok {
				child.component = str
				continue
			}
		}
		child.fields = append(child.fields, f)
	}
	return child
}

// Nop discards everything.
type Nop struct{}

func (Nop) Debug(string, ...Field) {}
func (Nop) Info(string, ...Field)  {}
func (Nop) Warn(string, ...Field)  {}
func (Nop) Error(string, ...Field) {}
func (n Nop) With(...Field) Logger { return n }
