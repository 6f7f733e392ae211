package watcher

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"kcl-navigator/src/internal/common"
	"kcl-navigator/src/internal/gitignore"
	"kcl-navigator/src/internal/project"
)

// Operation is the kind of change observed for a path
type Operation string

const (
	OpWrite  Operation = "write"
	OpCreate Operation = "create"
	OpRemove Operation = "remove"
	OpRename Operation = "rename"
)

// DefaultDebounce is the quiet period before pending events are flushed
const DefaultDebounce = 300 * time.Millisecond

// FileChangeEvent represents a file change event
type FileChangeEvent struct {
	Path      string
	Operation Operation
	Timestamp time.Time
}

// FileWatcher watches for file system changes and triggers callbacks
type FileWatcher struct {
	watcher       *fsnotify.Watcher
	watchPaths    []string
	extensions    []string
	onChange      func([]FileChangeEvent)
	debounceDelay time.Duration

	// Debouncing
	pendingEvents map[string]*FileChangeEvent
	eventMutex    sync.Mutex
	debounceTimer *time.Timer

	// Control
	ctx      context.Context
	cancel   context.CancelFunc
	done     chan struct{}
	started  bool
	stopOnce sync.Once
}

// NewFileWatcher creates a new file watcher
func NewFileWatcher(extensions []string, onChange func([]FileChangeEvent)) (*FileWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())

	fw := &FileWatcher{
		watcher:       watcher,
		watchPaths:    []string{},
		extensions:    extensions,
		onChange:      onChange,
		debounceDelay: DefaultDebounce,
		pendingEvents: make(map[string]*FileChangeEvent),
		ctx:           ctx,
		cancel:        cancel,
		done:          make(chan struct{}),
	}

	return fw, nil
}

// AddPath adds a path to watch (can be file or directory)
func (fw *FileWatcher) AddPath(path string) error {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return err
	}

	// Add to watcher
	if err := fw.watcher.Add(absPath); err != nil {
		return err
	}

	fw.watchPaths = append(fw.watchPaths, absPath)
	common.WatchLogger.Debug("Added watch path: %s", absPath)

	// If it's a directory, walk and add subdirectories
	if err := fw.addSubdirectories(absPath); err != nil {
		common.WatchLogger.Warn("Failed to add subdirectories for %s: %v", absPath, err)
	}

	return nil
}

// WatchPaths returns the roots passed to AddPath
func (fw *FileWatcher) WatchPaths() []string {
	return append([]string(nil), fw.watchPaths...)
}

// addSubdirectories recursively adds subdirectories to watch
func (fw *FileWatcher) addSubdirectories(root string) error {
	return filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil // Skip errors
		}
		if !info.IsDir() || path == root {
			return nil
		}

		base := filepath.Base(path)
		if gitignore.ShouldSkipDirectory(base) || strings.HasPrefix(base, ".") {
			return filepath.SkipDir
		}
		if err := fw.watcher.Add(path); err != nil {
			common.WatchLogger.Warn("Failed to watch directory %s: %v", path, err)
		}
		return nil
	})
}

// Start begins watching for file changes
func (fw *FileWatcher) Start() {
	fw.started = true
	go fw.watchLoop()
}

// watchLoop is the main event processing loop
func (fw *FileWatcher) watchLoop() {
	defer close(fw.done)

	for {
		select {
		case <-fw.ctx.Done():
			return

		case event, ok := <-fw.watcher.Events:
			if !ok {
				return
			}

			// Filter by extension
			if !fw.shouldProcess(event) {
				continue
			}

			// Handle the event with debouncing
			fw.handleEvent(event)

		case err, ok := <-fw.watcher.Errors:
			if !ok {
				return
			}
			common.WatchLogger.Error("Watcher error: %v", err)
		}
	}
}

// shouldProcess checks if an event concerns a source file or a .gitignore. New
// directories are added to the watch set on the way.
func (fw *FileWatcher) shouldProcess(event fsnotify.Event) bool {
	if event.Op&fsnotify.Create == fsnotify.Create {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			base := filepath.Base(event.Name)
			if gitignore.ShouldSkipDirectory(base) || strings.HasPrefix(base, ".") {
				return false
			}
			if err := fw.watcher.Add(event.Name); err != nil {
				common.WatchLogger.Warn("Failed to watch new directory %s: %v", event.Name, err)
			}
			if err := fw.addSubdirectories(event.Name); err != nil {
				common.WatchLogger.Warn("Failed to add new directory %s: %v", event.Name, err)
			}
			return false
		}
	}
	return project.HasExtension(event.Name, fw.extensions) || filepath.Base(event.Name) == ".gitignore"
}

// handleEvent processes a file system event with debouncing
func (fw *FileWatcher) handleEvent(event fsnotify.Event) {
	fw.eventMutex.Lock()
	defer fw.eventMutex.Unlock()

	// Determine operation type
	var operation Operation
	switch {
	case event.Op&fsnotify.Remove == fsnotify.Remove:
		operation = OpRemove
	case event.Op&fsnotify.Rename == fsnotify.Rename:
		operation = OpRename
	case event.Op&fsnotify.Create == fsnotify.Create:
		operation = OpCreate
	case event.Op&fsnotify.Write == fsnotify.Write:
		operation = OpWrite
	default:
		return // Ignore chmod
	}

	// a create followed by writes is still a create
	if prev, ok := fw.pendingEvents[event.Name]; ok && prev.Operation == OpCreate && operation == OpWrite {
		operation = OpCreate
	}

	fw.pendingEvents[event.Name] = &FileChangeEvent{
		Path:      filepath.Clean(event.Name),
		Operation: operation,
		Timestamp: time.Now(),
	}

	// Reset debounce timer
	if fw.debounceTimer != nil {
		fw.debounceTimer.Stop()
	}

	fw.debounceTimer = time.AfterFunc(fw.debounceDelay, fw.flushEvents)
}

// flushEvents sends all pending events to the callback in path order
func (fw *FileWatcher) flushEvents() {
	fw.eventMutex.Lock()
	defer fw.eventMutex.Unlock()

	if len(fw.pendingEvents) == 0 {
		return
	}

	events := make([]FileChangeEvent, 0, len(fw.pendingEvents))
	for _, event := range fw.pendingEvents {
		events = append(events, *event)
	}
	sort.Slice(events, func(i, j int) bool {
		return events[i].Path < events[j].Path
	})

	fw.pendingEvents = make(map[string]*FileChangeEvent)

	if fw.onChange != nil {
		common.WatchLogger.Debug("Flushing %d file change events", len(events))
		go fw.onChange(events)
	}
}

// Stop stops the file watcher. Pending events are flushed first.
func (fw *FileWatcher) Stop() error {
	var err error
	fw.stopOnce.Do(func() {
		fw.cancel()

		fw.eventMutex.Lock()
		if fw.debounceTimer != nil {
			fw.debounceTimer.Stop()
		}
		fw.eventMutex.Unlock()
		fw.flushEvents()

		err = fw.watcher.Close()

		if fw.started {
			<-fw.done
		}
	})
	return err
}

// SetDebounceDelay sets the debounce delay for file events
func (fw *FileWatcher) SetDebounceDelay(delay time.Duration) {
	fw.debounceDelay = delay
}
