package pm

import (
	"context"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"github.com/devserve-run/devserve/internal/event"
	"github.com/devserve-run/devserve/internal/logging"
)

// Watch observes the project's lockfile while a server runs and
// publishes install.stale when its content no longer matches the
// recorded install stamp. It returns when ctx is cancelled or the
// watcher fails; projects without a lockfile return immediately.
func (s *Service) Watch(ctx context.Context, dir string) error {
	res := s.Resolve(dir)
	if res.Lockfile == "" {
		return nil
	}
	lockPath := filepath.Join(dir, res.Lockfile)

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	// Watch the directory: editors and package managers replace the
	// lockfile instead of writing it in place.
	if err := watcher.Add(dir); err != nil {
		return err
	}

	log := logging.Component("pm")
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != lockPath {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			if s.lockfileStale(dir, lockPath) {
				log.Info().Str("lockfile", res.Lockfile).Msg("lockfile changed since last install")
				s.publish(event.Event{Type: event.InstallStale, Message: "dependencies out of date: " + res.Lockfile + " changed"})
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Warn().Err(err).Msg("lockfile watcher error")
		}
	}
}

// lockfileStale reports whether the lockfile hash diverged from the stamp.
func (s *Service) lockfileStale(dir, lockPath string) bool {
	hash, err := HashFile(lockPath)
	if err != nil {
		return false
	}
	stamp, err := ReadStamp(dir)
	if err != nil {
		return true
	}
	return stamp.LockfileHash != hash
}
