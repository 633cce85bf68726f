// control/hotreload.go
// Author: momentics <momentics@gmail.com>
//
// Settings file watcher. Reloads the file on change and pushes the new
// values into a Settings store, which in turn fires its reload hooks.

package control

import (
	"fmt"
	"maps"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// Watcher keeps a Settings store in sync with a TOML file.
type Watcher struct {
	path     string
	settings *Settings
	log      zerolog.Logger
	watcher  *fsnotify.Watcher
	done     chan struct{}
	wg       sync.WaitGroup
	once     sync.Once

	mu        sync.Mutex
	overrides map[string]string
}

// NewWatcher watches path and replaces settings on every successful reload.
// The parent directory is watched so editors that rename-on-save still work.
func NewWatcher(path string, settings *Settings, log zerolog.Logger) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		fw.Close()
		return nil, err
	}
	if err := fw.Add(filepath.Dir(abs)); err != nil {
		fw.Close()
		return nil, fmt.Errorf("watch %s: %w", filepath.Dir(abs), err)
	}
	w := &Watcher{
		path:     abs,
		settings: settings,
		log:      log.With().Str("component", "settings-watcher").Logger(),
		watcher:  fw,
		done:     make(chan struct{}),
	}
	w.wg.Add(1)
	go w.loop()
	return w, nil
}

func (w *Watcher) loop() {
	defer w.wg.Done()
	for {
		select {
		case <-w.done:
			return
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != w.path {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			w.Reload()
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.log.Warn().Err(err).Msg("watch error")
		}
	}
}

// SetOverrides sets keys that win over the file on every reload, such as
// values given on the command line.
func (w *Watcher) SetOverrides(overrides map[string]string) {
	w.mu.Lock()
	w.overrides = maps.Clone(overrides)
	w.mu.Unlock()
}

// Reload re-reads the file and layers the overrides on top. A file that
// fails to parse leaves the current settings untouched.
func (w *Watcher) Reload() {
	values, err := LoadSettingsFile(w.path)
	if err != nil {
		w.log.Error().Err(err).Msg("reload failed, keeping previous settings")
		return
	}
	w.mu.Lock()
	maps.Copy(values, w.overrides)
	n := len(w.overrides)
	w.mu.Unlock()
	w.log.Info().Str("path", w.path).Int("keys", len(values)).Int("overrides", n).Msg("settings reloaded")
	w.settings.Replace(values)
}

// Close stops watching and waits for the watch goroutine to exit.
func (w *Watcher) Close() error {
	var err error
	w.once.Do(func() {
		close(w.done)
		err = w.watcher.Close()
		w.wg.Wait()
	})
	return err
}
