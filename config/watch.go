package config

import (
	"context"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Watch reloads path whenever it changes and sends each valid result on the
// returned channel. The directory is watched rather than the file, since
// editors usually replace a file instead of writing it in place. A reload
// that fails to parse or validate is logged and skipped. The channel closes
// when ctx ends.
func Watch(ctx context.Context, path string, log *zap.Logger) (<-chan *Config, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		w.Close()
		return nil, err
	}
	if err := w.Add(filepath.Dir(abs)); err != nil {
		w.Close()
		return nil, err
	}

	out := make(chan *Config, 1)
	go func() {
		defer close(out)
		defer w.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if filepath.Clean(ev.Name) != abs || ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
					continue
				}
				cfg, err := Load(abs)
				if err != nil {
					log.Warn("config reload failed", zap.String("path", abs), zap.Error(err))
					continue
				}
				// Keep only the newest pending config.
				select {
				case <-out:
				default:
				}
				out <- cfg
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				log.Warn("config watch error", zap.Error(err))
			}
		}
	}()
	return out, nil
}
