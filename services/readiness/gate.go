// Package readiness blocks until a dependency has produced a filesystem
// artifact (a JWT secret, a keystore entry, an IPC socket).
package readiness

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"github.com/ezenkico/deploy-commander/ethnode/models"
)

// Gate polls a path until it holds at least one entry.
//
// MaxAttempts bounds the number of polls; zero polls until ctx ends. Backoff
// multiplies the interval after every miss (values <= 1 keep it fixed) and
// MaxInterval caps it.
type Gate struct {
	Interval    time.Duration
	MaxInterval time.Duration
	MaxAttempts int
	Backoff     float64
	Log         zerolog.Logger
}

func New(cfg models.WaitConfig, log zerolog.Logger) Gate {
	return Gate{
		Interval:    cfg.Interval,
		MaxInterval: cfg.MaxInterval,
		MaxAttempts: cfg.MaxAttempts,
		Backoff:     cfg.Backoff,
		Log:         log,
	}
}

// Await returns the artifact once path is non-empty. A non-empty file is its
// own artifact. For a directory the last entry of the listing is returned,
// joined with the directory; listings are name ordered, which is not a
// creation-time ordering in general.
func (g Gate) Await(ctx context.Context, path string) (string, error) {
	start := time.Now()
	interval := g.Interval
	if interval <= 0 {
		interval = time.Second
	}

	for attempt := 1; ; attempt++ {
		if artifact, ok := Newest(path); ok {
			g.Log.Debug().Str("path", path).Str("artifact", artifact).Int("attempt", attempt).Msg("artifact ready")
			return artifact, nil
		}

		if g.MaxAttempts > 0 && attempt >= g.MaxAttempts {
			return "", &models.TimeoutError{Path: path, Attempts: attempt, Elapsed: time.Since(start)}
		}

		g.Log.Debug().Str("path", path).Int("attempt", attempt).Dur("retry_in", interval).Msg("WAIT")

		timer := time.NewTimer(interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return "", ctx.Err()
		case <-timer.C:
		}

		interval = g.next(interval)
	}
}

func (g Gate) next(interval time.Duration) time.Duration {
	if g.Backoff <= 1 {
		return interval
	}
	next := time.Duration(float64(interval) * g.Backoff)
	if g.MaxInterval > 0 && next > g.MaxInterval {
		return g.MaxInterval
	}
	return next
}

// Newest takes a fresh look at path without waiting.
func Newest(path string) (string, bool) {
	info, err := os.Stat(path)
	if err != nil {
		return "", false
	}
	if !info.IsDir() {
		return path, info.Size() > 0
	}

	entries, err := os.ReadDir(path)
	if err != nil || len(entries) == 0 {
		return "", false
	}
	return filepath.Join(path, entries[len(entries)-1].Name()), true
}
