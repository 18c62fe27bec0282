package upload

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newClockedRegistry(start time.Time) (*Registry, *time.Time) {
	now := start
	r := NewRegistry(nil)
	r.now = func() time.Time { return now }
	return r, &now
}

func TestRegistryCreateAndGet(t *testing.T) {
	r, _ := newClockedRegistry(time.Unix(1000, 0))

	rec, err := r.Create("u1", 42)
	require.NoError(t, err)
	assert.Equal(t, 0, rec.Progress)
	assert.Equal(t, StatusUploading, rec.Status)
	assert.Equal(t, StageValidation, rec.Stage)
	assert.EqualValues(t, 42, rec.TotalBytes)
	assert.Nil(t, rec.EstimatedTimeRemaining)

	_, err = r.Create("u1", 1)
	assert.Error(t, err)

	_, ok := r.Get("missing")
	assert.False(t, ok)
}

func TestRegistryUpdateEstimatesRemainingTime(t *testing.T) {
	start := time.Unix(1000, 0)
	r, now := newClockedRegistry(start)
	_, err := r.Create("u1", 0)
	require.NoError(t, err)

	*now = start.Add(10 * time.Second)
	rec, ok := r.Update("u1", func(rec *Record) { rec.Progress = 25 })
	require.True(t, ok)
	require.NotNil(t, rec.EstimatedTimeRemaining)
	assert.EqualValues(t, 30, *rec.EstimatedTimeRemaining)
	assert.Equal(t, start, rec.StartTime)
}

func TestRegistryProgressNeverDecreases(t *testing.T) {
	r, _ := newClockedRegistry(time.Now())
	_, _ = r.Create("u1", 0)

	r.Update("u1", func(rec *Record) { rec.Progress = 40 })
	rec, _ := r.Update("u1", func(rec *Record) { rec.Progress = 10 })
	assert.Equal(t, 40, rec.Progress)

	rec, _ = r.Update("u1", func(rec *Record) { rec.Progress = 140 })
	assert.Equal(t, 100, rec.Progress)
}

func TestRegistryIgnoresUpdatesAfterTerminal(t *testing.T) {
	r, _ := newClockedRegistry(time.Now())
	_, _ = r.Create("u1", 0)

	_, ok := r.Update("u1", func(rec *Record) { rec.Status = StatusCancelled })
	require.True(t, ok)

	rec, ok := r.Update("u1", func(rec *Record) {
		rec.Status = StatusCompleted
		rec.Progress = 100
	})
	assert.False(t, ok)
	assert.Equal(t, StatusCancelled, rec.Status)
	assert.Equal(t, 0, rec.Progress)

	_, ok = r.Update("missing", func(rec *Record) {})
	assert.False(t, ok)
}

func TestRegistryListStatsEvict(t *testing.T) {
	r, _ := newClockedRegistry(time.Now())
	_, _ = r.Create("u1", 0)
	_, _ = r.Create("u2", 0)
	r.Update("u2", func(rec *Record) { rec.Status = StatusError })

	assert.Len(t, r.ListAll(), 2)
	assert.Equal(t, Stats{Total: 2, Uploading: 1, Error: 1}, r.Stats())

	assert.True(t, r.Evict("u1"))
	assert.False(t, r.Evict("u1"))
	assert.Equal(t, 1, r.Len())
}

func TestObserveReceivesEventsInOrderThenDetaches(t *testing.T) {
	r, _ := newClockedRegistry(time.Now())
	_, _ = r.Create("u1", 0)

	sub, err := r.Observe("u1")
	require.NoError(t, err)
	assert.Equal(t, 1, r.broadcaster.Count())

	for p := 10; p <= 50; p += 10 {
		progress := p
		r.Update("u1", func(rec *Record) { rec.Progress = progress })
	}
	r.Update("u1", func(rec *Record) {
		rec.Status = StatusCompleted
		rec.Progress = 100
	})
	r.Update("u1", func(rec *Record) { rec.Message = "ignored" })

	events := collect(t, sub)
	require.Len(t, events, 7)
	assert.Equal(t, 0, events[0].Progress)
	for i := 1; i <= 5; i++ {
		assert.Equal(t, i*10, events[i].Progress)
	}
	assert.True(t, events[6].IsTerminal())
	assert.Equal(t, 0, r.broadcaster.Count())
}

func TestObserveTerminalRecordYieldsSingleEvent(t *testing.T) {
	r, _ := newClockedRegistry(time.Now())
	_, _ = r.Create("u1", 0)
	r.Update("u1", func(rec *Record) { rec.Status = StatusError })

	sub, err := r.Observe("u1")
	require.NoError(t, err)

	events := collect(t, sub)
	require.Len(t, events, 1)
	assert.Equal(t, StatusError, events[0].Status)
}

func TestSubscriptionCloseDetachesOnlyThatObserver(t *testing.T) {
	r, _ := newClockedRegistry(time.Now())
	_, _ = r.Create("u1", 0)

	first, err := r.Observe("u1")
	require.NoError(t, err)
	second, err := r.Observe("u1")
	require.NoError(t, err)

	first.Close()
	first.Close()
	assert.Equal(t, 1, r.broadcaster.Count())

	r.Update("u1", func(rec *Record) { rec.Status = StatusCompleted })
	events := collect(t, second)
	require.Len(t, events, 2)
	assert.True(t, events[1].IsTerminal())

	for range first.Events() {
	}
}

func TestIsVideoFile(t *testing.T) {
	assert.True(t, IsVideoFile("a.bin", "video/mp4"))
	assert.True(t, IsVideoFile("a.bin", "video/quicktime; codecs=avc1"))
	assert.True(t, IsVideoFile("movie.WebM", ""))
	assert.False(t, IsVideoFile("image.png", "image/png"))
	assert.False(t, IsVideoFile("mp4", "application/octet-stream"))
}
