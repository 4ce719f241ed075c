package watch

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"waitroom/internal/errors"
	"waitroom/internal/log"

	"github.com/fsnotify/fsnotify"
)

// FileModification represents a document event detected by the watcher
type FileModification struct {
	Path      string
	Timestamp time.Time
	Op        fsnotify.Op
}

// Removed reports whether the document is gone after this event
func (m FileModification) Removed() bool {
	return m.Op.Has(fsnotify.Remove) || m.Op.Has(fsnotify.Rename)
}

// Watcher monitors directories for document changes using fsnotify
type Watcher struct {
	// Directories being watched
	directories []string

	// Channel to receive file modifications
	fileModChan chan FileModification

	// Channel to signal stop
	stopChan chan struct{}

	// Closed when the event loop exits
	doneChan chan struct{}

	// fsnotify watcher instance
	fsWatcher *fsnotify.Watcher

	mutex   sync.RWMutex
	running bool
}

// New creates a new directory watcher using fsnotify
func New() (*Watcher, error) {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.Wrap(err, "failed to create fsnotify watcher")
	}

	return &Watcher{
		directories: []string{},
		fileModChan: make(chan FileModification, 64),
		stopChan:    make(chan struct{}),
		fsWatcher:   fsWatcher,
	}, nil
}

// AddDirectory adds a directory to watch using fsnotify
func (w *Watcher) AddDirectory(dir string) error {
	info, err := os.Stat(dir)
	if err != nil {
		return errors.NewFileError("error accessing directory", dir, errors.FileNotFound, err)
	}
	if !info.IsDir() {
		return errors.NewFileError("not a directory", dir, errors.InvalidPath, nil)
	}

	if err := w.fsWatcher.Add(dir); err != nil {
		return errors.NewFileError("failed to add directory to watcher", dir, errors.FileOperationFailed, err)
	}

	w.mutex.Lock()
	found := false
	for _, existingDir := range w.directories {
		if existingDir == dir {
			found = true
			break
		}
	}
	if !found {
		w.directories = append(w.directories, dir)
	}
	w.mutex.Unlock()
	log.LogWithFields(log.F("directory", dir)).Info("Watching directory")
	return nil
}

// FileChannel returns the channel that delivers file modification events
func (w *Watcher) FileChannel() <-chan FileModification {
	return w.fileModChan
}

// relevant filters out directories, temp files from atomic writes and
// anything that is not a JSON document.
func relevant(path string) bool {
	base := filepath.Base(path)
	if strings.HasPrefix(base, ".") || !strings.HasSuffix(base, ".json") {
		return false
	}
	return true
}

// Start begins the file watching process using fsnotify
func (w *Watcher) Start() error {
	w.mutex.Lock()
	if w.running {
		w.mutex.Unlock()
		return errors.New("watcher already running")
	}
	w.running = true
	w.stopChan = make(chan struct{})
	w.doneChan = make(chan struct{})
	stop, done := w.stopChan, w.doneChan
	w.mutex.Unlock()

	go func() {
		defer close(done)
		log.Debug("Watcher event loop started")

		for {
			select {
			case event, ok := <-w.fsWatcher.Events:
				if !ok {
					return
				}
				if !relevant(event.Name) {
					continue
				}
				if !event.Op.Has(fsnotify.Create) && !event.Op.Has(fsnotify.Write) && !event.Op.Has(fsnotify.Remove) && !event.Op.Has(fsnotify.Rename) {
					continue
				}
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					continue
				}

				mod := FileModification{
					Path:      event.Name,
					Timestamp: time.Now(),
					Op:        event.Op,
				}

				// Non-blocking so a slow consumer never stalls fsnotify
				select {
				case w.fileModChan <- mod:
				case <-stop:
					return
				default:
					log.LogWithFields(log.F("file", event.Name)).Warn("Event channel is full, dropped event")
				}

			case err, ok := <-w.fsWatcher.Errors:
				if !ok {
					return
				}
				log.LogWithError(err).Error("fsnotify watcher error")

			case <-stop:
				return
			}
		}
	}()

	log.Debug("Watcher started")
	return nil
}

// Stop halts the file watching process and closes the event channel.
// A stopped watcher cannot be restarted.
func (w *Watcher) Stop() {
	w.mutex.Lock()
	defer w.mutex.Unlock()

	if !w.running {
		return
	}

	close(w.stopChan)
	if err := w.fsWatcher.Close(); err != nil {
		log.LogWithError(err).Error("Error closing fsnotify watcher")
	}
	<-w.doneChan
	w.running = false

	// Safe to close now that the event loop has exited
	close(w.fileModChan)

	log.Debug("Watcher stopped")
}

// IsRunning returns whether the watcher is currently active
func (w *Watcher) IsRunning() bool {
	w.mutex.RLock()
	defer w.mutex.RUnlock()
	return w.running
}

// GetDirectories returns the list of directories being watched
func (w *Watcher) GetDirectories() []string {
	w.mutex.RLock()
	defer w.mutex.RUnlock()
	dirsCopy := make([]string, len(w.directories))
	copy(dirsCopy, w.directories)
	return dirsCopy
}
