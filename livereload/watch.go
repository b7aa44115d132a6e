package livereload

import (
	"context"
	"errors"
	"time"

	"github.com/livebud/watcher"
)

const (
	restartBaseDelay = 200 * time.Millisecond
	restartMaxDelay  = 5 * time.Second
)

func restartDelay(attempt int) time.Duration {
	if attempt > 8 {
		return restartMaxDelay
	}
	delay := restartBaseDelay * time.Duration(1<<attempt)
	if delay > restartMaxDelay {
		return restartMaxDelay
	}
	return delay
}

var errWatchStopped = errors.New("livereload: watcher stopped")

// Watch a directory for changes and send the events to the browser. Watch
// failures are logged and the watch is restarted until ctx is cancelled.
func (r *Reloader) Watch(ctx context.Context, watchDir string) error {
	for attempt := 0; ; {
		started := time.Now()
		err := watcher.Watch(ctx, watchDir, r.watched)
		if ctx.Err() != nil {
			return nil
		}
		if err == nil {
			err = errWatchStopped
		}
		// A watch that ran for a while was healthy, so start backing off again
		if time.Since(started) > restartMaxDelay {
			attempt = 0
		}
		delay := restartDelay(attempt)
		attempt++
		r.log.Error("livereload: watch failed", "dir", watchDir, "error", err, "attempt", attempt, "retry", delay)
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case <-timer.C:
		}
	}
}

func (r *Reloader) watched(events []watcher.Event) error {
	changes := make([]Change, 0, len(events))
	for _, event := range events {
		r.log.Debug("livereload: got event", "event", event)
		changes = append(changes, ParseChange(event.String()))
	}
	r.Notify(changes...)
	return nil
}
