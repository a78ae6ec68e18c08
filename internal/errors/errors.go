// Package errors provides the structured error types used while inlining
// templates and a collector for per-file failures in a batch run.
//
// Errors fall into two classes. Recoverable errors (template read and
// minification failures) may be downgraded to a warning and a skipped match
// when skip_errors is enabled. Everything else aborts the current file.
package errors

import (
	"fmt"
	"sort"
	"sync"
	"time"
)

// FileFailure records a hard error for one source file.
type FileFailure struct {
	File      string
	Err       error
	Timestamp time.Time
}

// Error implements the error interface
func (f FileFailure) Error() string {
	return fmt.Sprintf("%s: %v", f.File, f.Err)
}

// Unwrap returns the underlying error
func (f FileFailure) Unwrap() error {
	return f.Err
}

// Collector collects per-file failures from concurrent workers
type Collector struct {
	failures []FileFailure
	mutex    sync.RWMutex
}

// NewCollector creates a new collector
func NewCollector() *Collector {
	return &Collector{
		failures: make([]FileFailure, 0),
	}
}

// Add records a failure for file. Nil errors are ignored.
func (c *Collector) Add(file string, err error) {
	if err == nil {
		return
	}
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.failures = append(c.failures, FileFailure{
		File:      file,
		Err:       err,
		Timestamp: time.Now(),
	})
}

// Failures returns the collected failures sorted by file
func (c *Collector) Failures() []FileFailure {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	result := make([]FileFailure, len(c.failures))
	copy(result, c.failures)
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].File < result[j].File
	})
	return result
}

// HasErrors returns true if there are any failures
func (c *Collector) HasErrors() bool {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	return len(c.failures) > 0
}

// Len returns the number of failures
func (c *Collector) Len() int {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	return len(c.failures)
}

// Clear removes all failures
func (c *Collector) Clear() {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.failures = c.failures[:0]
}

// Err summarizes the collected failures as a single error, or nil.
func (c *Collector) Err() error {
	failures := c.Failures()
	switch len(failures) {
	case 0:
		return nil
	case 1:
		return failures[0]
	default:
		return fmt.Errorf("%d files failed, first: %w", len(failures), failures[0])
	}
}
