package watch

import (
	"path/filepath"
	"sync"
	"time"

	"waitroom/internal/errors"
	"waitroom/internal/log"
)

// DefaultDebounce coalesces the bursts produced by a single atomic write.
const DefaultDebounce = 200 * time.Millisecond

// DaemonStatus represents the current status of the daemon
type DaemonStatus struct {
	Running          bool      // Whether the daemon is currently active
	WatchDirectories []string  // Directories being watched
	LastActivity     time.Time // Time of last document change
	ChangesReported  int       // Total changes passed to the callback
}

// Daemon watches a data directory and its contents directory and reports
// each changed document once its events have settled.
type Daemon struct {
	dataDir  string
	subdirs  []string
	debounce time.Duration
	watcher  *Watcher

	// Callback receives the document path relative to the data directory
	callback func(rel string)

	pending map[string]*time.Timer

	reported     int
	lastActivity time.Time
	mutex        sync.Mutex
	running      bool
	done         chan struct{}
}

// NewDaemon returns a daemon for dataDir that also watches the named
// subdirectories. A non-positive debounce selects DefaultDebounce.
func NewDaemon(dataDir string, debounce time.Duration, subdirs ...string) *Daemon {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	return &Daemon{
		dataDir:  dataDir,
		subdirs:  subdirs,
		debounce: debounce,
		pending:  map[string]*time.Timer{},
	}
}

// SetCallback sets the function called for each settled change. It runs
// on timer goroutines and must be safe for concurrent use.
func (d *Daemon) SetCallback(cb func(rel string)) {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	d.callback = cb
}

// Start initiates the daemon process
func (d *Daemon) Start() error {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	if d.running {
		return errors.New("daemon is already running")
	}

	w, err := New()
	if err != nil {
		return err
	}
	dirs := []string{d.dataDir}
	for _, sub := range d.subdirs {
		dirs = append(dirs, filepath.Join(d.dataDir, sub))
	}
	for _, dir := range dirs {
		if err := w.AddDirectory(dir); err != nil {
			w.fsWatcher.Close()
			return err
		}
	}
	if err := w.Start(); err != nil {
		return err
	}

	d.watcher = w
	d.running = true
	d.done = make(chan struct{})
	go d.processEvents(w, d.done)
	return nil
}

// Stop halts the daemon process. Pending changes are discarded.
func (d *Daemon) Stop() {
	d.mutex.Lock()
	if !d.running {
		d.mutex.Unlock()
		return
	}
	w, done := d.watcher, d.done
	d.running = false
	d.mutex.Unlock()

	w.Stop()
	<-done

	d.mutex.Lock()
	for rel, t := range d.pending {
		t.Stop()
		delete(d.pending, rel)
	}
	d.mutex.Unlock()
}

// Status returns the current status of the daemon
func (d *Daemon) Status() DaemonStatus {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	var dirs []string
	if d.watcher != nil {
		dirs = d.watcher.GetDirectories()
	}
	return DaemonStatus{
		Running:          d.running,
		WatchDirectories: dirs,
		LastActivity:     d.lastActivity,
		ChangesReported:  d.reported,
	}
}

// processEvents handles file modification events from the watcher
func (d *Daemon) processEvents(w *Watcher, done chan struct{}) {
	defer close(done)
	for ev := range w.FileChannel() {
		rel, err := filepath.Rel(d.dataDir, ev.Path)
		if err != nil {
			continue
		}
		rel = filepath.ToSlash(rel)

		d.mutex.Lock()
		d.lastActivity = ev.Timestamp
		if t, ok := d.pending[rel]; ok {
			t.Reset(d.debounce)
		} else {
			d.pending[rel] = time.AfterFunc(d.debounce, func() { d.fire(rel) })
		}
		d.mutex.Unlock()
	}
}

func (d *Daemon) fire(rel string) {
	d.mutex.Lock()
	if _, ok := d.pending[rel]; !ok || !d.running {
		d.mutex.Unlock()
		return
	}
	delete(d.pending, rel)
	d.reported++
	cb := d.callback
	d.mutex.Unlock()

	log.LogWithFields(log.F("file", rel)).Debug("Document changed")
	if cb != nil {
		cb(rel)
	}
}
