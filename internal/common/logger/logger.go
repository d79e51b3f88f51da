package logger

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

var levels = map[string]int{"DEBUG": 0, "INFO": 1, "WARN": 2, "ERROR": 3}

type Logger struct {
	service   string
	requestID string
	min       int
	out       io.Writer
	mu        *sync.Mutex
}

func New(service string) *Logger {
	return &Logger{service: service, min: levels[defaultLevel()], out: os.Stdout, mu: &sync.Mutex{}}
}

// NewWithWriter пишет в w начиная с уровня level (DEBUG|INFO|WARN|ERROR).
func NewWithWriter(service string, w io.Writer, level string) *Logger {
	l := New(service)
	l.out = w
	l.SetLevel(level)
	return l
}

func (l *Logger) SetLevel(level string) {
	if n, ok := levels[strings.ToUpper(strings.TrimSpace(level))]; ok {
		l.min = n
	}
}

// WithRequestID returns a copy that stamps every entry with id.
func (l *Logger) WithRequestID(id string) *Logger {
	cp := *l
	cp.requestID = id
	return &cp
}

func (l *Logger) log(level, action, msg string, fields map[string]any, err error) {
	if levels[level] < l.min {
		return
	}
	entry := map[string]any{
		"timestamp":  time.Now().UTC().Format(time.RFC3339Nano),
		"level":      level,
		"service":    l.service,
		"action":     action,
		"message":    msg,
		"hostname":   hostname(),
		"request_id": l.requestID,
	}
	for k, v := range fields {
		entry[k] = v
	}
	if err != nil {
		entry["error"] = map[string]any{"msg": err.Error(), "stack": fmt.Sprintf("%T", err)}
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	_ = json.NewEncoder(l.out).Encode(entry)
}

func (l *Logger) Info(action string, fields map[string]any)             { l.log("INFO", action, action, fields, nil) }
func (l *Logger) Debug(action string, fields map[string]any)            { l.log("DEBUG", action, action, fields, nil) }
func (l *Logger) Warn(action string, fields map[string]any)             { l.log("WARN", action, action, fields, nil) }
func (l *Logger) Error(action string, err error, fields map[string]any) { l.log("ERROR", action, action, fields, err) }

func hostname() string { h, _ := os.Hostname(); return h }

var configuredLevel atomic.Value

// SetDefaultLevel applies to loggers created afterwards. POS_LOG_LEVEL still wins.
func SetDefaultLevel(level string) {
	configuredLevel.Store(strings.ToUpper(strings.TrimSpace(level)))
}

func defaultLevel() string {
	if v := os.Getenv("POS_LOG_LEVEL"); v != "" {
		return strings.ToUpper(v)
	}
	if v, ok := configuredLevel.Load().(string); ok {
		if _, known := levels[v]; known {
			return v
		}
	}
	return "INFO"
}
