package ui

import (
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"
	"github.com/fsnotify/fsnotify"
)

// chapterChangedMsg is sent when a file in a watched directory was written.
type chapterChangedMsg struct {
	path string
}

func newWatcher() *fsnotify.Watcher {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		log.Error("error creating fsnotify watcher", "error", err)
		return nil
	}
	return w
}

// watchDir starts watching the directory that holds path.
func watchDir(w *fsnotify.Watcher, path string) {
	if w == nil {
		return
	}
	dir := filepath.Dir(path)
	if err := w.Add(dir); err != nil {
		log.Error("error adding dir to fsnotify watcher", "error", err)
		return
	}
	log.Debug("fsnotify watching dir", "dir", dir)
}

// waitForChange blocks until a file is written or created.
func waitForChange(w *fsnotify.Watcher) tea.Cmd {
	if w == nil {
		return nil
	}
	return func() tea.Msg {
		for {
			select {
			case event, ok := <-w.Events:
				if !ok {
					return nil
				}
				if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
					continue
				}
				log.Debug("fsnotify event", "file", event.Name, "event", event.Op)
				return chapterChangedMsg{path: event.Name}
			case err, ok := <-w.Errors:
				if !ok {
					return nil
				}
				log.Debug("fsnotify error", "error", err)
			}
		}
	}
}
