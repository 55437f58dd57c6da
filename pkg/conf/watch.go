package conf

import (
	"fmt"
	"log"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// Watcher reloads a config file when it changes on disk.
type Watcher struct {
	watcher *fsnotify.Watcher
	done    chan struct{}
}

// Watch starts an fsnotify watcher on the directory holding path. Each write
// or create of that file reloads it and passes the result to onChange.
// Files that fail to load are logged and skipped; the previous config stays
// in effect.
func Watch(path string, onChange func(*BridgeConf)) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("conf: watcher: %w", err)
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		fw.Close()
		return nil, fmt.Errorf("conf: %w", err)
	}

	// Watch the directory: editors often replace the file rather than
	// writing it in place, which drops a watch on the file itself.
	if err := fw.Add(filepath.Dir(abs)); err != nil {
		fw.Close()
		return nil, fmt.Errorf("conf: watch %s: %w", filepath.Dir(abs), err)
	}

	w := &Watcher{watcher: fw, done: make(chan struct{})}
	go func() {
		defer close(w.done)
		for {
			select {
			case event, ok := <-fw.Events:
				if !ok {
					return
				}
				if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				if filepath.Clean(event.Name) != abs {
					continue
				}
				bc, err := LoadBridgeConf(abs)
				if err != nil {
					log.Printf("Config reload skipped: %v", err)
					continue
				}
				log.Printf("Config file changed: %s", abs)
				onChange(bc)

			case err, ok := <-fw.Errors:
				if !ok {
					return
				}
				log.Printf("Config watcher error: %v", err)
			}
		}
	}()

	log.Printf("Watching config file for changes: %s", abs)
	return w, nil
}

// Close stops the watcher and waits for its goroutine to exit.
func (w *Watcher) Close() error {
	err := w.watcher.Close()
	<-w.done
	return err
}
