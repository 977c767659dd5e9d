package config

import (
	"context"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"metronome/pkg/logx"
)

const debounceDelay = 250 * time.Millisecond

// Watcher reloads the config file on change and hands validated configs to a
// callback. Invalid edits are logged and skipped; the previous config stays
// in effect.
type Watcher struct {
	path     string
	log      logx.Logger
	onChange func(*Config)

	lastHash uint64
}

func NewWatcher(path string, log logx.Logger, onChange func(*Config)) *Watcher {
	return &Watcher{path: path, log: log, onChange: onChange}
}

// Prime records the hash of the currently loaded file so the first watch event
// after startup is not treated as a change when the content is identical.
func (w *Watcher) Prime() {
	if _, sum, err := loadWithHash(w.path); err == nil {
		w.lastHash = sum
	}
}

// Watch blocks until ctx is done. The parent directory is watched rather than
// the file itself: editors and config management tools typically replace the
// file, which would otherwise drop the watch.
func (w *Watcher) Watch(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fw.Close()

	dir := filepath.Dir(w.path)
	if err := fw.Add(dir); err != nil {
		return err
	}
	base := filepath.Base(w.path)
	w.log.Debug("config watch started", logx.String("path", w.path))

	var debounce *time.Timer
	var fire <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			if debounce != nil {
				debounce.Stop()
			}
			return nil

		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if filepath.Base(ev.Name) != base {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if debounce == nil {
				debounce = time.NewTimer(debounceDelay)
				fire = debounce.C
			} else {
				debounce.Reset(debounceDelay)
			}

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.log.Warn("config watch error", logx.Err(err))

		case <-fire:
			debounce = nil
			fire = nil
			w.reload()
		}
	}
}

func (w *Watcher) reload() {
	cfg, sum, err := loadWithHash(w.path)
	if err != nil {
		w.log.Warn("config reload rejected", logx.String("path", w.path), logx.Err(err))
		return
	}
	if sum == w.lastHash {
		w.log.Debug("config unchanged, skipping reload")
		return
	}
	w.lastHash = sum
	w.log.Info("config reloaded", logx.String("path", w.path), logx.Int("jobs", len(cfg.Jobs)))
	if w.onChange != nil {
		w.onChange(cfg)
	}
}
