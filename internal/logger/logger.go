package logger

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"
)

type LogLevel int

const (
	DEBUG LogLevel = iota
	INFO
	WARN
	ERROR
)

type LogEntry struct {
	Timestamp string `json:"timestamp"`
	Level     string `json:"level"`
	Category  string `json:"category"`
	Message   string `json:"message"`
	File      string `json:"file,omitempty"`
	Line      int    `json:"line,omitempty"`
}

type Options struct {
	// Dir enables the JSON lines file <Dir>/<Service>-<date>.log when set.
	Dir     string
	Service string
	Color   bool
	// Output receives the terminal lines. Defaults to os.Stdout.
	Output io.Writer
}

type Logger struct {
	mu           sync.Mutex
	out          io.Writer
	logFile      *os.File
	colorEnabled bool
}

func New(opts Options) (*Logger, error) {
	out := opts.Output
	if out == nil {
		out = os.Stdout
	}
	l := &Logger{out: out, colorEnabled: opts.Color}

	if opts.Dir != "" {
		if err := os.MkdirAll(opts.Dir, 0o755); err != nil {
			return nil, fmt.Errorf("create log dir: %w", err)
		}
		service := opts.Service
		if service == "" {
			service = "app"
		}
		name := filepath.Join(opts.Dir, fmt.Sprintf("%s-%s.log", service, time.Now().Format("2006-01-02")))
		f, err := os.OpenFile(name, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("open log file: %w", err)
		}
		l.logFile = f
		l.Info("LOGGER", fmt.Sprintf("Log file: %s", name))
	}
	return l, nil
}

// Discard returns a logger that writes nowhere.
func Discard() *Logger {
	return &Logger{out: io.Discard}
}

func (l *Logger) log(level LogLevel, category, message string) {
	if l == nil {
		return
	}
	_, file, line, ok := runtime.Caller(2)
	if ok {
		file = filepath.Base(file)
	}

	entry := LogEntry{
		Timestamp: time.Now().UTC().Format("2006-01-02T15:04:05.000Z"),
		Level:     levelToString(level),
		Category:  strings.ToUpper(category),
		Message:   message,
		File:      file,
		Line:      line,
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprint(l.out, l.formatTerminalOutput(entry))
	if l.logFile != nil {
		data, _ := json.Marshal(entry)
		l.logFile.Write(append(data, '\n'))
	}
}

func (l *Logger) formatTerminalOutput(entry LogEntry) string {
	timestamp := entry.Timestamp[11:19]

	var levelColor *color.Color
	switch entry.Level {
	case "DEBUG":
		levelColor = color.New(color.FgCyan)
	case "WARN":
		levelColor = color.New(color.FgYellow)
	case "ERROR":
		levelColor = color.New(color.FgRed, color.Bold)
	default:
		levelColor = color.New(color.FgGreen)
	}
	timeColor := color.New(color.FgBlue)
	fileColor := color.New(color.FgMagenta)
	if !l.colorEnabled {
		levelColor.DisableColor()
		timeColor.DisableColor()
		fileColor.DisableColor()
	}

	out := fmt.Sprintf("%s %s %s %s",
		timeColor.Sprint(timestamp),
		levelColor.Sprintf("%-5s", entry.Level),
		levelColor.Sprintf("[%-10s]", entry.Category),
		entry.Message)
	if entry.File != "" && entry.Line > 0 {
		out += fileColor.Sprintf(" (%s:%d)", entry.File, entry.Line)
	}
	return out + "\n"
}

func levelToString(level LogLevel) string {
	switch level {
	case DEBUG:
		return "DEBUG"
	case WARN:
		return "WARN"
	case ERROR:
		return "ERROR"
	default:
		return "INFO"
	}
}

func (l *Logger) Debug(category, message string) { l.log(DEBUG, category, message) }
func (l *Logger) Info(category, message string)  { l.log(INFO, category, message) }
func (l *Logger) Warn(category, message string)  { l.log(WARN, category, message) }
func (l *Logger) Error(category, message string) { l.log(ERROR, category, message) }

func (l *Logger) LogBooking(action string, bookingID int64, message string) {
	l.log(INFO, "BOOKING", fmt.Sprintf("[%s] %d - %s", action, bookingID, message))
}

func (l *Logger) LogAPI(method, path string, status int, duration time.Duration) {
	l.log(INFO, "API", fmt.Sprintf("%s %s - %d (%s)", method, path, status, duration))
}

func (l *Logger) LogKafka(action, topic, message string) {
	l.log(INFO, "KAFKA", fmt.Sprintf("[%s] %s - %s", action, topic, message))
}

func (l *Logger) LogDatabase(operation, table, message string) {
	l.log(INFO, "DATABASE", fmt.Sprintf("[%s] %s - %s", operation, table, message))
}

func (l *Logger) Close() error {
	if l == nil || l.logFile == nil {
		return nil
	}
	return l.logFile.Close()
}
