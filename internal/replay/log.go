// Package replay records applied harmonization rules and re-runs them.
//
// The replay log is newline-delimited JSON. Each line is one event:
//
//	{"action": <serialized rule>, "dataset": "<dataset name>"}
//
// The log is append-only. Events for one dataset are ordered; events for
// different datasets may interleave.
package replay

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/bmir-radx/harmonization-framework/internal/rule"
)

// Event records one rule applied to one dataset.
type Event struct {
	Action  *rule.Rule `json:"action"`
	Dataset string     `json:"dataset"`
}

// Logger appends events to a replay log file.
//
// Thread-safety: Record is safe for concurrent use. Each event is written
// with a single write call under the mutex, so lines never interleave.
type Logger struct {
	mu   sync.Mutex
	path string
	f    *os.File
}

// Open opens path for appending, creating it if needed.
func Open(path string) (*Logger, error) {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open replay log: %w", err)
	}
	return &Logger{path: path, f: f}, nil
}

// Path returns the log file path.
func (l *Logger) Path() string { return l.path }

// Record appends one event.
func (l *Logger) Record(r *rule.Rule, dataset string) error {
	line, err := json.Marshal(Event{Action: r, Dataset: dataset})
	if err != nil {
		return fmt.Errorf("encode replay event: %w", err)
	}
	line = append(line, '\n')

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.f == nil {
		return fmt.Errorf("replay log %s is closed", l.path)
	}
	if _, err := l.f.Write(line); err != nil {
		return fmt.Errorf("write replay event: %w", err)
	}
	return nil
}

// Close closes the log file. Closing twice is a no-op.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.f == nil {
		return nil
	}
	err := l.f.Close()
	l.f = nil
	return err
}

// maxLineSize bounds a single event line.
const maxLineSize = 16 << 20

// ReadEvents reads every event from a replay log. Blank lines are skipped.
func ReadEvents(path string) ([]Event, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open replay log: %w", err)
	}
	defer f.Close()

	var events []Event
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), maxLineSize)
	for n := 1; scanner.Scan(); n++ {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var ev Event
		if err := json.Unmarshal(line, &ev); err != nil {
			return nil, fmt.Errorf("%s:%d: %w", path, n, err)
		}
		if ev.Action == nil {
			return nil, fmt.Errorf("%s:%d: event has no action", path, n)
		}
		events = append(events, ev)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read replay log: %w", err)
	}
	return events, nil
}
