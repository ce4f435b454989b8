package artifact

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Watch clears a failed load whenever the artifact file is created, written
// or renamed into place, so a fixed artifact is picked up without a restart.
// It blocks until ctx is done. The artifact's directory must exist.
func (l *Loader) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	target := filepath.Clean(l.path)
	dir := filepath.Dir(target)
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}
	l.logger.Info("watching model artifact", zap.String("path", target))

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) && !event.Has(fsnotify.Rename) {
				continue
			}
			l.logger.Debug("model artifact changed", zap.String("op", event.Op.String()))
			l.Reset()
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			l.logger.Warn("artifact watcher error", zap.Error(err))
		}
	}
}
