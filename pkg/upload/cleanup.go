package upload

import (
	"sync"
	"time"
)

// janitor evicts terminal records once the retention period has passed.
type janitor struct {
	mu        sync.Mutex
	retention time.Duration
	timers    map[string]*time.Timer
	evict     func(uploadID string)
	stopped   bool
}

func newJanitor(retention time.Duration, evict func(uploadID string)) *janitor {
	return &janitor{
		retention: retention,
		timers:    make(map[string]*time.Timer),
		evict:     evict,
	}
}

// schedule arranges a single eviction of uploadID. Scheduling the same id
// again before it fires is a no-op.
func (j *janitor) schedule(uploadID string) {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.stopped {
		return
	}

	if _, ok := j.timers[uploadID]; ok {
		return
	}

	j.timers[uploadID] = time.AfterFunc(j.retention, func() {
		j.mu.Lock()
		delete(j.timers, uploadID)
		j.mu.Unlock()

		j.evict(uploadID)
	})
}

func (j *janitor) pending() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return len(j.timers)
}

// stop cancels every pending eviction.
func (j *janitor) stop() {
	j.mu.Lock()
	defer j.mu.Unlock()

	j.stopped = true
	for id, t := range j.timers {
		t.Stop()
		delete(j.timers, id)
	}
}
