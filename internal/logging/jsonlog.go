package logging

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"
)

type entry struct {
	Level   string         `json:"level"`
	Time    string         `json:"time"`
	Message string         `json:"message"`
	Fields  map[string]any `json:"fields,omitempty"`
}

var (
	mu    sync.Mutex
	out   io.Writer = os.Stdout
	debug           = strings.EqualFold(os.Getenv("LOG_LEVEL"), "debug")
)

// SetOutput redirects log lines, mostly for tests.
func SetOutput(w io.Writer) {
	mu.Lock()
	out = w
	mu.Unlock()
}

// SetDebug toggles Debug output.
func SetDebug(on bool) {
	mu.Lock()
	debug = on
	mu.Unlock()
}

func Log(level, msg string, fields map[string]any) {
	e := entry{Level: level, Time: time.Now().UTC().Format(time.RFC3339Nano), Message: msg, Fields: fields}
	b, err := json.Marshal(e)
	if err != nil {
		b, _ = json.Marshal(entry{Level: level, Time: e.Time, Message: msg, Fields: map[string]any{"marshal_error": err.Error()}})
	}
	mu.Lock()
	fmt.Fprintln(out, string(b))
	mu.Unlock()
}

func Debug(msg string, fields map[string]any) {
	mu.Lock()
	on := debug
	mu.Unlock()
	if on {
		Log("debug", msg, fields)
	}
}

func Info(msg string, fields map[string]any)  { Log("info", msg, fields) }
func Warn(msg string, fields map[string]any)  { Log("warn", msg, fields) }
func Error(msg string, fields map[string]any) { Log("error", msg, fields) }
