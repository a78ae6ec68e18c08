// Package watcher reports debounced batches of file changes using fsnotify.
package watcher

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/conneroisu/gridinline/internal/logging"
)

// FileWatcher watches for file changes with debouncing
type FileWatcher struct {
	watcher   *fsnotify.Watcher
	debouncer *Debouncer
	filters   []FileFilter
	skipDirs  []FileFilter
	handlers  []ChangeHandler
	logger    logging.Logger
	mutex     sync.RWMutex
}

// ChangeEvent represents a file change event
type ChangeEvent struct {
	Type    EventType
	Path    string
	ModTime time.Time
	Size    int64
}

// EventType represents the type of file change
type EventType int

const (
	EventTypeCreated EventType = iota
	EventTypeModified
	EventTypeDeleted
	EventTypeRenamed
)

// String returns the string representation of the EventType
func (e EventType) String() string {
	switch e {
	case EventTypeCreated:
		return "created"
	case EventTypeModified:
		return "modified"
	case EventTypeDeleted:
		return "deleted"
	case EventTypeRenamed:
		return "renamed"
	default:
		return "unknown"
	}
}

// FileFilter determines if a file should be reported
type FileFilter func(path string) bool

// ChangeHandler handles a debounced batch of change events
type ChangeHandler func(ctx context.Context, events []ChangeEvent) error

// Debouncer groups rapid file changes together
type Debouncer struct {
	delay   time.Duration
	events  chan ChangeEvent
	output  chan []ChangeEvent
	timer   *time.Timer
	pending []ChangeEvent
	mutex   sync.Mutex
}

// NewDebouncer creates a debouncer emitting a batch once delay has passed
// without new events.
func NewDebouncer(delay time.Duration) *Debouncer {
	return &Debouncer{
		delay:   delay,
		events:  make(chan ChangeEvent, 100),
		output:  make(chan []ChangeEvent, 10),
		pending: make([]ChangeEvent, 0),
	}
}

// NewFileWatcher creates a new file watcher
func NewFileWatcher(debounceDelay time.Duration, logger logging.Logger) (*FileWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = logging.NopLogger{}
	}

	fw := &FileWatcher{
		watcher:   watcher,
		debouncer: NewDebouncer(debounceDelay),
		filters:   make([]FileFilter, 0),
		handlers:  make([]ChangeHandler, 0),
		logger:    logger.WithComponent("watcher"),
	}

	return fw, nil
}

// AddFilter adds a file filter. A change is reported only when every filter
// accepts its path.
func (fw *FileWatcher) AddFilter(filter FileFilter) {
	fw.mutex.Lock()
	defer fw.mutex.Unlock()
	fw.filters = append(fw.filters, filter)
}

// SkipDirs registers a predicate for directories AddRecursive must not
// descend into.
func (fw *FileWatcher) SkipDirs(skip FileFilter) {
	fw.mutex.Lock()
	defer fw.mutex.Unlock()
	fw.skipDirs = append(fw.skipDirs, skip)
}

// AddHandler adds a change handler
func (fw *FileWatcher) AddHandler(handler ChangeHandler) {
	fw.mutex.Lock()
	defer fw.mutex.Unlock()
	fw.handlers = append(fw.handlers, handler)
}

// AddPath adds a path to watch
func (fw *FileWatcher) AddPath(path string) error {
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("invalid path: %w", err)
	}
	return fw.watcher.Add(filepath.Clean(path))
}

// AddRecursive adds a directory and all subdirectories to watch
func (fw *FileWatcher) AddRecursive(root string) error {
	root = filepath.Clean(root)

	return filepath.WalkDir(root, func(path string, entry os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !entry.IsDir() {
			return nil
		}
		if path != root && fw.skipped(path) {
			return filepath.SkipDir
		}
		return fw.watcher.Add(path)
	})
}

// WatchList returns the watched directories.
func (fw *FileWatcher) WatchList() []string {
	list := fw.watcher.WatchList()
	sort.Strings(list)
	return list
}

func (fw *FileWatcher) skipped(dir string) bool {
	fw.mutex.RLock()
	defer fw.mutex.RUnlock()
	for _, skip := range fw.skipDirs {
		if skip(dir) {
			return true
		}
	}
	return false
}

// Start starts the file watcher
func (fw *FileWatcher) Start(ctx context.Context) error {
	go fw.debouncer.start(ctx)
	go fw.processEvents(ctx)
	go fw.watchLoop(ctx)

	return nil
}

// Stop stops the file watcher and cleans up resources
func (fw *FileWatcher) Stop() error {
	fw.debouncer.stop()
	return fw.watcher.Close()
}

func (fw *FileWatcher) watchLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-fw.watcher.Events:
			if !ok {
				return
			}
			fw.handleFsnotifyEvent(ctx, event)
		case err, ok := <-fw.watcher.Errors:
			if !ok {
				return
			}
			fw.logger.Warn(ctx, err, "file watcher error")
		}
	}
}

func (fw *FileWatcher) handleFsnotifyEvent(ctx context.Context, event fsnotify.Event) {
	info, statErr := os.Stat(event.Name)

	// New directories are watched as they appear.
	if statErr == nil && info.IsDir() {
		if event.Op&fsnotify.Create == fsnotify.Create && !fw.skipped(event.Name) {
			if err := fw.AddRecursive(event.Name); err != nil {
				fw.logger.Warn(ctx, err, "cannot watch new directory", "path", event.Name)
			}
		}
		return
	}

	fw.mutex.RLock()
	filters := fw.filters
	fw.mutex.RUnlock()

	for _, filter := range filters {
		if !filter(event.Name) {
			return
		}
	}

	var modTime time.Time
	var size int64
	if statErr == nil {
		modTime = info.ModTime()
		size = info.Size()
	}

	changeEvent := ChangeEvent{
		Type:    eventType(event.Op),
		Path:    event.Name,
		ModTime: modTime,
		Size:    size,
	}

	select {
	case fw.debouncer.events <- changeEvent:
	default:
		fw.logger.Warn(ctx, nil, "change event dropped, debouncer is full", "path", event.Name)
	}
}

func eventType(op fsnotify.Op) EventType {
	switch {
	case op&fsnotify.Create == fsnotify.Create:
		return EventTypeCreated
	case op&fsnotify.Write == fsnotify.Write:
		return EventTypeModified
	case op&fsnotify.Remove == fsnotify.Remove:
		return EventTypeDeleted
	case op&fsnotify.Rename == fsnotify.Rename:
		return EventTypeRenamed
	default:
		return EventTypeModified
	}
}

func (fw *FileWatcher) processEvents(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case events := <-fw.debouncer.Output():
			fw.mutex.RLock()
			handlers := fw.handlers
			fw.mutex.RUnlock()

			for _, handler := range handlers {
				if err := handler(ctx, events); err != nil {
					fw.logger.Error(ctx, err, "change handler failed", "events", len(events))
				}
			}
		}
	}
}

// Output returns the channel debounced batches are sent on.
func (d *Debouncer) Output() <-chan []ChangeEvent {
	return d.output
}

func (d *Debouncer) start(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			d.stop()
			return
		case event := <-d.events:
			d.Add(event)
		}
	}
}

func (d *Debouncer) stop() {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	if d.timer != nil {
		d.timer.Stop()
	}
}

// Add queues an event and restarts the quiet period.
func (d *Debouncer) Add(event ChangeEvent) {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	d.pending = append(d.pending, event)

	if d.timer != nil {
		d.timer.Stop()
	}

	d.timer = time.AfterFunc(d.delay, func() {
		d.flush()
	})
}

func (d *Debouncer) flush() {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	if len(d.pending) == 0 {
		return
	}

	// Last event per path wins
	eventMap := make(map[string]ChangeEvent)
	for _, event := range d.pending {
		eventMap[event.Path] = event
	}

	events := make([]ChangeEvent, 0, len(eventMap))
	for _, event := range eventMap {
		events = append(events, event)
	}
	sort.Slice(events, func(i, j int) bool {
		return events[i].Path < events[j].Path
	})

	select {
	case d.output <- events:
	default:
		// Channel full, skip
	}

	d.pending = d.pending[:0]
}

// Common file filters

// ExtFilter accepts files with any of the given extensions.
func ExtFilter(exts ...string) FileFilter {
	return func(path string) bool {
		ext := filepath.Ext(path)
		for _, e := range exts {
			if ext == e {
				return true
			}
		}
		return false
	}
}

// AnyFilter accepts a path when at least one filter does.
func AnyFilter(filters ...FileFilter) FileFilter {
	return func(path string) bool {
		for _, f := range filters {
			if f(path) {
				return true
			}
		}
		return false
	}
}

// Under accepts dir and paths inside it.
func Under(dir string) FileFilter {
	abs, err := filepath.Abs(dir)
	if err != nil || dir == "" {
		return func(string) bool { return false }
	}
	return func(path string) bool {
		p, err := filepath.Abs(path)
		if err != nil {
			return false
		}
		return p == abs || strings.HasPrefix(p, abs+string(filepath.Separator))
	}
}

// NotUnder rejects dir and paths inside it.
func NotUnder(dir string) FileFilter {
	under := Under(dir)
	return func(path string) bool {
		return !under(path)
	}
}

func NoGitFilter(path string) bool {
	path = filepath.ToSlash(path)
	return !strings.HasPrefix(path, ".git/") && !strings.Contains(path, "/.git/")
}

func NoNodeModulesFilter(path string) bool {
	path = filepath.ToSlash(path)
	return !strings.HasPrefix(path, "node_modules/") && !strings.Contains(path, "/node_modules/")
}
