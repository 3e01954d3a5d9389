package config

import (
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// reloadDebounce collapses the burst of events editors emit for one save.
const reloadDebounce = 100 * time.Millisecond

// Reload is one re-read of the watched config file.
type Reload struct {
	Encounter EncounterConfig
	Warnings  []string
	Err       error
}

// Watcher re-reads a config file whenever it changes on disk.
// The parent directory is watched so editors that save via rename still trigger.
type Watcher struct {
	path    string
	watcher *fsnotify.Watcher
	Updates chan Reload
	closeCh chan struct{}
	done    chan struct{}
	once    sync.Once
}

// NewWatcher starts watching path. Close must be called to release the watcher.
func NewWatcher(path string) (*Watcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fw.Add(filepath.Dir(abs)); err != nil {
		_ = fw.Close()
		return nil, err
	}

	w := &Watcher{
		path:    abs,
		watcher: fw,
		Updates: make(chan Reload, 4),
		closeCh: make(chan struct{}),
		done:    make(chan struct{}),
	}
	go w.run()
	return w, nil
}

// Close stops the watcher. Updates is closed once the run loop exits.
func (w *Watcher) Close() error {
	var err error
	w.once.Do(func() {
		close(w.closeCh)
		err = w.watcher.Close()
		<-w.done
	})
	return err
}

func (w *Watcher) run() {
	defer close(w.done)
	defer close(w.Updates)

	// Trailing debounce: reload once the file has been quiet for reloadDebounce.
	timer := time.NewTimer(reloadDebounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			timer.Reset(reloadDebounce)
		case <-timer.C:
			w.emit(w.reload())
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.emit(Reload{Err: err})
		case <-w.closeCh:
			return
		}
	}
}

func (w *Watcher) reload() Reload {
	enc, warnings, err := LoadEncounter(w.path)
	return Reload{Encounter: enc, Warnings: warnings, Err: err}
}

// emit never blocks the fsnotify loop; a reader that falls behind only sees the latest reloads.
func (w *Watcher) emit(r Reload) {
	select {
	case w.Updates <- r:
	case <-w.closeCh:
	default:
	}
}
