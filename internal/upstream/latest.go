// Package upstream builds the sensors the distance component depends on.
package upstream

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"sync"
)

// ErrNoReading is returned when a sensor has produced nothing before the
// caller's deadline or before its source ended.
var ErrNoReading = errors.New("no reading received yet")

// latest holds the most recent reading of a push-based source.
type latest struct {
	mu      sync.RWMutex
	reading map[string]any
	err     error

	ready     chan struct{}
	readyOnce sync.Once
	ended     chan struct{}
	endOnce   sync.Once
}

func newLatest() *latest {
	return &latest{ready: make(chan struct{}), ended: make(chan struct{})}
}

func (l *latest) set(r map[string]any) {
	l.mu.Lock()
	l.reading = r
	l.mu.Unlock()
	l.readyOnce.Do(func() { close(l.ready) })
}

// end records that the source stopped producing. Readings already received
// stay available.
func (l *latest) end(err error) {
	l.mu.Lock()
	if l.err == nil {
		l.err = err
	}
	l.mu.Unlock()
	l.endOnce.Do(func() { close(l.ended) })
}

// get returns a copy of the current reading, waiting for the first one until
// ctx is done or the source ends.
func (l *latest) get(ctx context.Context) (map[string]any, error) {
	select {
	case <-l.ready:
	default:
		select {
		case <-l.ready:
		case <-l.ended:
			l.mu.RLock()
			defer l.mu.RUnlock()
			if l.reading != nil {
				return maps.Clone(l.reading), nil
			}
			return nil, fmt.Errorf("%w: source ended: %v", ErrNoReading, l.err)
		case <-ctx.Done():
			return nil, errors.Join(ErrNoReading, ctx.Err())
		}
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	return maps.Clone(l.reading), nil
}
