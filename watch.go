package moody

import (
	"log"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// Logger is used to print notifications and errors when using the
// "WatchFiles" feature.
var Logger = log.New(os.Stderr, "[moody] ", 0)

// WatchFiles tells the loader to watch the directories of its directory
// sources and drop its cache whenever a template file changes, so the next
// Load picks up the new content. It is meant as a development aid; call it
// once, after the sources are configured.
func (l *Loader) WatchFiles(watch bool) *Loader {
	if !watch || l.err != nil || l.watcher != nil {
		return l
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		l.err = err
		return l
	}
	l.watcher = watcher
	for _, source := range l.sources {
		if dir, ok := source.(DirectorySource); ok {
			if err := watchDirs(watcher, dir.Dir); err != nil {
				l.err = err
				return l
			}
		}
	}
	go l.watchLoop()
	return l
}

func (l *Loader) watchLoop() {
	for {
		select {
		case ev, ok := <-l.watcher.Events:
			if !ok {
				return
			}
			l.ClearCache()
			Logger.Printf("template change detected (%v), cache cleared", ev)
		case err, ok := <-l.watcher.Errors:
			if !ok {
				return
			}
			Logger.Println(err)
		}
	}
}

// watchDirs registers dir and all of its subdirectories with the watcher.
func watchDirs(watcher *fsnotify.Watcher, dir string) error {
	return filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return watcher.Add(path)
		}
		return nil
	})
}
