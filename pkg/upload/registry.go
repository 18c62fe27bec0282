package upload

import (
	"sync"
	"time"

	"github.com/pkg/errors"
)

// Registry holds the progress record of every upload known to this process.
// Updates are published to the Broadcaster while the registry lock is held,
// so observers see the updates of one upload in the order they were made.
type Registry struct {
	mu          sync.Mutex
	records     map[string]*Record
	broadcaster *Broadcaster
	now         func() time.Time
}

func NewRegistry(b *Broadcaster) *Registry {
	if b == nil {
		b = NewBroadcaster(nil)
	}

	return &Registry{
		records:     make(map[string]*Record),
		broadcaster: b,
		now:         time.Now,
	}
}

// Create adds a record at progress 0 in the validation stage.
func (r *Registry) Create(uploadID string, totalBytes int64) (Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.records[uploadID]; ok {
		return Record{}, errors.Errorf("upload %s already exists", uploadID)
	}

	rec := &Record{
		UploadID:   uploadID,
		Progress:   0,
		Status:     StatusUploading,
		Stage:      StageValidation,
		Message:    "Validating file...",
		TotalBytes: totalBytes,
		StartTime:  r.now(),
	}
	r.records[uploadID] = rec
	r.broadcaster.publish(*rec)

	return *rec, nil
}

// Update applies fn to a copy of the record and stores the result. Progress
// never moves backwards and records in a terminal status are left untouched.
// The returned bool reports whether the update was applied.
func (r *Registry) Update(uploadID string, fn func(rec *Record)) (Record, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.records[uploadID]
	if !ok {
		return Record{}, false
	}

	if current.Status.IsTerminal() {
		return *current, false
	}

	next := *current
	fn(&next)

	next.UploadID = current.UploadID
	next.StartTime = current.StartTime
	next.Progress = clampProgress(next.Progress, current.Progress)
	next.EstimatedTimeRemaining = estimateRemaining(r.now().Sub(next.StartTime), next.Progress)

	*current = next
	r.broadcaster.publish(next)

	return next, true
}

func clampProgress(progress, previous int) int {
	switch {
	case progress < previous:
		return previous
	case progress > 100:
		return 100
	default:
		return progress
	}
}

// estimateRemaining extrapolates linearly from the time spent so far.
func estimateRemaining(elapsed time.Duration, progress int) *int64 {
	if progress <= 0 {
		return nil
	}

	remaining := elapsed * time.Duration(100-progress) / time.Duration(progress)
	secs := int64(remaining.Round(time.Second) / time.Second)
	return &secs
}

func (r *Registry) Get(uploadID string) (Record, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.records[uploadID]
	if !ok {
		return Record{}, false
	}

	return *rec, true
}

// ListAll returns every record in no particular order.
func (r *Registry) ListAll() []Record {
	r.mu.Lock()
	defer r.mu.Unlock()

	all := make([]Record, 0, len(r.records))
	for _, rec := range r.records {
		all = append(all, *rec)
	}

	return all
}

func (r *Registry) Stats() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()

	var stats Stats
	for _, rec := range r.records {
		stats.add(rec.Status)
	}

	return stats
}

// Observe attaches an observer to the upload. The first event it receives is
// the current record; when that record is already terminal it is also the
// last.
func (r *Registry) Observe(uploadID string) (*Subscription, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.records[uploadID]
	if !ok {
		return nil, notFound(uploadID)
	}

	s := r.broadcaster.subscribe(uploadID)
	s.push(progressEvent(*rec))
	if rec.Status.IsTerminal() {
		r.broadcaster.detach(s)
		s.finish()
	}

	return s, nil
}

// Evict removes the record. Observers still attached are left to their own
// disconnect handling.
func (r *Registry) Evict(uploadID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.records[uploadID]; !ok {
		return false
	}

	delete(r.records, uploadID)
	return true
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.records)
}
