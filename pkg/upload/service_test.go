package upload

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const mb = 1024 * 1024

func newTestService(host *fakeHost, videos *fakeVideos, opts Options) *Service {
	return NewService(host, videos, fakeCategories{"cat-1": true}, opts)
}

func mp4Request(title string, size int64) (Request, *trackedBody) {
	body := payload(size)
	return Request{
		Title:       title,
		Filename:    "demo.mp4",
		ContentType: "video/mp4",
		Size:        size,
		Body:        body,
	}, body
}

func collect(t *testing.T, sub *Subscription) []Event {
	t.Helper()

	var events []Event
	timeout := time.After(10 * time.Second)
	for {
		select {
		case ev, ok := <-sub.Events():
			if !ok {
				return events
			}
			events = append(events, ev)
		case <-timeout:
			t.Fatalf("observer was not detached, got %d events", len(events))
		}
	}
}

func assertMonotonic(t *testing.T, events []Event) {
	t.Helper()
	for i := 1; i < len(events); i++ {
		assert.GreaterOrEqual(t, events[i].Progress, events[i-1].Progress, "event %d went backwards", i)
	}
}

func TestUpload50MBCompletes(t *testing.T) {
	host := &fakeHost{gate: make(chan struct{})}
	videos := &fakeVideos{}
	s := newTestService(host, videos, Options{})

	req, body := mp4Request("demo", 50*mb)
	req.CategoryIDs = []string{"cat-1"}

	session, err := s.Start(context.Background(), req)
	require.NoError(t, err)

	sub, err := s.Subscribe(session.UploadID)
	require.NoError(t, err)
	close(host.gate)

	events := collect(t, sub)
	video, err := session.Wait(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "demo", video.Title)
	assert.NotEmpty(t, video.CloudinaryID)
	assert.NotEmpty(t, video.PublicID)
	assert.NotEmpty(t, video.URL)
	assert.Equal(t, []string{"cat-1"}, video.CategoryIDs())
	assert.EqualValues(t, 50*mb, *video.FileSize)
	assert.True(t, body.isClosed())

	require.NotEmpty(t, events)
	assertMonotonic(t, events)
	last := events[len(events)-1]
	assert.Equal(t, StatusCompleted, last.Status)
	assert.Equal(t, StageFinished, last.Stage)
	assert.Equal(t, 100, last.Progress)

	terminal := 0
	for _, ev := range events {
		if ev.IsTerminal() {
			terminal++
		}
	}
	assert.Equal(t, 1, terminal)

	rec, err := s.Get(session.UploadID)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, rec.Status)
	assert.Equal(t, 1, videos.count())
	assert.Equal(t, 0, s.ActiveTransfers())
}

func TestUploadSyncReturnsUploadID(t *testing.T) {
	s := newTestService(&fakeHost{}, &fakeVideos{}, Options{})
	req, _ := mp4Request("sync", 3*mb)

	video, uploadID, err := s.Upload(context.Background(), req)
	require.NoError(t, err)
	assert.NotEmpty(t, uploadID)
	assert.Equal(t, "sync", video.Title)

	rec, err := s.Get(uploadID)
	require.NoError(t, err)
	assert.Equal(t, 100, rec.Progress)
}

func TestUploadRejectsImage(t *testing.T) {
	host := &fakeHost{}
	videos := &fakeVideos{}
	s := newTestService(host, videos, Options{})

	body := payload(1024)
	_, err := s.Start(context.Background(), Request{
		Title:       "picture",
		Filename:    "picture.png",
		ContentType: "image/png",
		Size:        1024,
		Body:        body,
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidInput))
	assert.True(t, body.isClosed())

	records := s.ListAll()
	require.Len(t, records, 1)
	assert.Equal(t, StatusError, records[0].Status)
	assert.Equal(t, StageValidation, records[0].Stage)
	assert.Equal(t, 0, records[0].Progress)
	assert.Equal(t, 0, host.callCount())
	assert.Equal(t, 0, videos.count())
}

func TestUploadValidation(t *testing.T) {
	tests := []struct {
		name string
		req  Request
	}{
		{name: "no file", req: Request{Title: "t", Filename: "a.mp4", ContentType: "video/mp4", Size: 10}},
		{name: "empty", req: Request{Title: "t", Filename: "a.mp4", ContentType: "video/mp4", Size: 0, Body: payload(0)}},
		{name: "too big", req: Request{Title: "t", Filename: "a.mp4", ContentType: "video/mp4", Size: 2 * mb, Body: payload(2 * mb)}},
		{name: "no title", req: Request{Title: "  ", Filename: "a.mp4", ContentType: "video/mp4", Size: 10, Body: payload(10)}},
		{name: "unknown category", req: Request{Title: "t", Filename: "a.mp4", ContentType: "video/mp4", Size: 10, Body: payload(10), CategoryIDs: []string{"cat-1", "cat-9"}}},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			s := newTestService(&fakeHost{}, &fakeVideos{}, Options{MaxBytes: mb})
			_, err := s.Start(context.Background(), test.req)
			assert.True(t, errors.Is(err, ErrInvalidInput), "got %v", err)
		})
	}
}

func TestUploadAcceptsExtensionWhenMIMETypeIsGeneric(t *testing.T) {
	s := newTestService(&fakeHost{}, &fakeVideos{}, Options{})

	video, _, err := s.Upload(context.Background(), Request{
		Title:       "generic",
		Filename:    "clip.MKV",
		ContentType: "application/octet-stream",
		Size:        1024,
		Body:        payload(1024),
	})
	require.NoError(t, err)
	assert.Equal(t, "generic", video.Title)
}

func TestCancelMidTransfer(t *testing.T) {
	host := &fakeHost{delay: 100 * time.Millisecond}
	videos := &fakeVideos{}
	s := newTestService(host, videos, Options{})

	req, body := mp4Request("slow", 100*mb)
	session, err := s.Start(context.Background(), req)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		rec, _ := s.Get(session.UploadID)
		return rec.Progress > transferBandStart
	}, 5*time.Second, 10*time.Millisecond)

	applied, err := s.Cancel(session.UploadID)
	require.NoError(t, err)
	assert.True(t, applied)

	rec, err := s.Get(session.UploadID)
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, rec.Status)

	_, err = session.Wait(context.Background())
	assert.True(t, errors.Is(err, ErrCancelled), "got %v", err)

	applied, err = s.Cancel(session.UploadID)
	require.NoError(t, err)
	assert.False(t, applied)

	assert.Equal(t, 1, host.abortCount())
	assert.Equal(t, 0, videos.count())
	assert.True(t, body.isClosed())
	assert.Equal(t, 0, s.ActiveTransfers())

	rec, _ = s.Get(session.UploadID)
	assert.Equal(t, StatusCancelled, rec.Status)
}

func TestCancelDuringValidation(t *testing.T) {
	host := &fakeHost{}
	videos := &fakeVideos{}
	categories := &blockingCategories{entered: make(chan struct{}), release: make(chan struct{})}
	s := NewService(host, videos, categories, Options{})

	req, body := mp4Request("early", mb)
	req.CategoryIDs = []string{"cat-1"}

	started := make(chan error, 1)
	go func() {
		_, err := s.Start(context.Background(), req)
		started <- err
	}()

	<-categories.entered
	recs := s.ListAll()
	require.Len(t, recs, 1)
	uploadID := recs[0].UploadID
	assert.Equal(t, StatusUploading, recs[0].Status)

	applied, err := s.Cancel(uploadID)
	require.NoError(t, err)
	assert.True(t, applied)

	close(categories.release)
	err = <-started
	assert.True(t, errors.Is(err, ErrCancelled), "got %v", err)

	rec, err := s.Get(uploadID)
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, rec.Status)
	assert.Equal(t, StageValidation, rec.Stage)

	assert.Equal(t, 0, host.callCount())
	assert.Equal(t, 0, videos.count())
	assert.True(t, body.isClosed())
	assert.Equal(t, 0, s.ActiveTransfers())
}

func TestCancelAfterCompletionIsNoop(t *testing.T) {
	s := newTestService(&fakeHost{}, &fakeVideos{}, Options{})
	req, _ := mp4Request("done", mb)

	_, uploadID, err := s.Upload(context.Background(), req)
	require.NoError(t, err)

	applied, err := s.Cancel(uploadID)
	require.NoError(t, err)
	assert.False(t, applied)

	rec, _ := s.Get(uploadID)
	assert.Equal(t, StatusCompleted, rec.Status)
	assert.Equal(t, 100, rec.Progress)
}

func TestCancelUnknownUpload(t *testing.T) {
	s := newTestService(&fakeHost{}, &fakeVideos{}, Options{})
	_, err := s.Cancel("upload_missing")
	assert.True(t, errors.Is(err, ErrNotFound))

	_, err = s.Get("upload_missing")
	assert.True(t, errors.Is(err, ErrNotFound))

	_, err = s.Subscribe("upload_missing")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestTransferFailure(t *testing.T) {
	host := &fakeHost{err: errors.New("connection reset")}
	videos := &fakeVideos{}
	s := newTestService(host, videos, Options{})

	req, _ := mp4Request("broken", 2*mb)
	_, uploadID, err := s.Upload(context.Background(), req)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrTransferFailed))
	assert.Contains(t, errors.Cause(err).Error(), "connection reset")
	assert.NotEmpty(t, uploadID)

	records := s.ListAll()
	require.Len(t, records, 1)
	assert.Equal(t, StatusError, records[0].Status)
	assert.Equal(t, StageTransfer, records[0].Stage)
	assert.Equal(t, transferBandStart+transferBandWidth, records[0].Progress)
	assert.Equal(t, 0, videos.count())
}

func TestTransferTimeout(t *testing.T) {
	host := &fakeHost{gate: make(chan struct{})}
	s := newTestService(host, &fakeVideos{}, Options{TransferTimeout: 50 * time.Millisecond})

	req, _ := mp4Request("stuck", mb)
	session, err := s.Start(context.Background(), req)
	require.NoError(t, err)

	_, err = session.Wait(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrTransferFailed))

	rec, _ := s.Get(session.UploadID)
	assert.Equal(t, StatusError, rec.Status)
	assert.Contains(t, rec.Message, "transfer exceeded")
}

func TestPersistenceFailureLeavesNoVideo(t *testing.T) {
	host := &fakeHost{}
	videos := &fakeVideos{err: errors.New("db unavailable")}
	s := newTestService(host, videos, Options{})

	req, _ := mp4Request("orphan", 2*mb)
	session, err := s.Start(context.Background(), req)
	require.NoError(t, err)

	_, err = session.Wait(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrPersistenceFailed))

	rec, _ := s.Get(session.UploadID)
	assert.Equal(t, StatusError, rec.Status)
	assert.Equal(t, StagePersistence, rec.Stage)
	assert.Equal(t, 90, rec.Progress)
	assert.Equal(t, 0, videos.count())
	assert.Empty(t, host.deletes)
}

func TestRecordsEvictedAfterRetention(t *testing.T) {
	s := newTestService(&fakeHost{}, &fakeVideos{}, Options{Retention: 20 * time.Millisecond})
	req, _ := mp4Request("short-lived", mb)

	_, uploadID, err := s.Upload(context.Background(), req)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		_, err := s.Get(uploadID)
		return errors.Is(err, ErrNotFound)
	}, 2*time.Second, 10*time.Millisecond)
}

func TestShutdownCancelsRunningTransfers(t *testing.T) {
	host := &fakeHost{gate: make(chan struct{})}
	s := newTestService(host, &fakeVideos{}, Options{})

	req, _ := mp4Request("interrupted", mb)
	session, err := s.Start(context.Background(), req)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, s.Shutdown(ctx))

	rec, _ := s.Get(session.UploadID)
	assert.Equal(t, StatusCancelled, rec.Status)
	assert.Equal(t, 1, host.abortCount())
}

func TestStats(t *testing.T) {
	s := newTestService(&fakeHost{}, &fakeVideos{}, Options{})

	req, _ := mp4Request("ok", mb)
	_, _, err := s.Upload(context.Background(), req)
	require.NoError(t, err)

	_, err = s.Start(context.Background(), Request{Title: "bad", Filename: "a.txt", ContentType: "text/plain", Size: 1, Body: payload(1)})
	require.Error(t, err)

	stats := s.Stats()
	assert.Equal(t, 2, stats.Total)
	assert.Equal(t, 1, stats.Completed)
	assert.Equal(t, 1, stats.Error)
}
