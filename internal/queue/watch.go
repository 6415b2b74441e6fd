package queue

import (
	"context"
	"time"

	"github.com/fsnotify/fsnotify"

	"tracksmith/internal/logging"
)

// Watch drains the queue, then blocks watching the pending folder and drains
// again whenever new items arrive, until ctx is cancelled. The debounce
// window batches a burst of enqueues into one drain.
func (r *Runner) Watch(ctx context.Context, debounce time.Duration) error {
	if debounce <= 0 {
		debounce = 500 * time.Millisecond
	}
	if err := r.store.Init(); err != nil {
		return err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()
	if err := watcher.Add(r.store.PendingDir()); err != nil {
		return err
	}

	log := logging.WithContext(ctx, r.logger)
	log.Info("queue watch started",
		logging.String(logging.FieldEventType, "queue_watch_started"),
		logging.String("dir", r.store.PendingDir()))

	if _, err := r.Drain(ctx, 0); err != nil {
		log.Error("initial drain failed", logging.Error(err))
	}

	var timer *time.Timer
	var pending <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !event.Op.Has(fsnotify.Create) && !event.Op.Has(fsnotify.Rename) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(debounce)
				pending = timer.C
			} else {
				timer.Reset(debounce)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Error("queue watch error", logging.Error(err))
		case <-pending:
			timer = nil
			pending = nil
			if _, err := r.Drain(ctx, 0); err != nil {
				log.Error("queue drain failed", logging.Error(err))
			}
		}
	}
}
