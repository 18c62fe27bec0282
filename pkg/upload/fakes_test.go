package upload

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/akademi-crypto/vidhub/pkg/mediahost"
	"github.com/akademi-crypto/vidhub/pkg/vhdb/vhmodel"
	"github.com/hashicorp/go-uuid"
)

type zeros struct{}

func (zeros) Read(p []byte) (int, error) {
	for i := range p {
		p[i] = 0
	}
	return len(p), nil
}

type trackedBody struct {
	io.Reader
	mu     sync.Mutex
	closed bool
}

func (b *trackedBody) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	return nil
}

func (b *trackedBody) isClosed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closed
}

func payload(size int64) *trackedBody {
	return &trackedBody{Reader: io.LimitReader(zeros{}, size)}
}

type fakeHost struct {
	mu      sync.Mutex
	chunk   int
	delay   time.Duration
	err     error
	gate    chan struct{}
	calls   int
	aborts  int
	deletes []string
}

func (h *fakeHost) UploadVideo(ctx context.Context, p mediahost.UploadParams, r io.Reader, progress mediahost.ProgressFunc) (*mediahost.Asset, error) {
	h.mu.Lock()
	h.calls++
	chunk := h.chunk
	h.mu.Unlock()

	if chunk == 0 {
		chunk = 1024 * 1024
	}

	if h.gate != nil {
		select {
		case <-h.gate:
		case <-ctx.Done():
			return nil, h.abort(ctx)
		}
	}

	buf := make([]byte, chunk)
	var sent int64
	for {
		if ctx.Err() != nil {
			return nil, h.abort(ctx)
		}

		n, err := r.Read(buf)
		sent += int64(n)
		if n > 0 && progress != nil {
			progress(sent, p.Size)
		}

		if err == io.EOF {
			break
		}

		if err != nil {
			return nil, err
		}

		if h.delay > 0 {
			select {
			case <-time.After(h.delay):
			case <-ctx.Done():
				return nil, h.abort(ctx)
			}
		}
	}

	if h.err != nil {
		return nil, h.err
	}

	return &mediahost.Asset{
		AssetID:   "asset-" + p.UploadID,
		PublicID:  "videos/" + p.UploadID,
		URL:       "http://res.example.com/" + p.UploadID + ".mp4",
		SecureURL: "https://res.example.com/" + p.UploadID + ".mp4",
		Format:    "mp4",
		Duration:  42,
		Width:     1280,
		Height:    720,
		Bytes:     sent,
	}, nil
}

func (h *fakeHost) abort(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.aborts++
	return ctx.Err()
}

func (h *fakeHost) DeleteVideo(_ context.Context, publicID string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.deletes = append(h.deletes, publicID)
	return nil
}

func (h *fakeHost) abortCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.aborts
}

func (h *fakeHost) callCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.calls
}

type fakeVideos struct {
	mu     sync.Mutex
	err    error
	videos []*vhmodel.Video
}

func (f *fakeVideos) CreateVideo(video *vhmodel.Video, categoryIDs []string) (*vhmodel.Video, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.err != nil {
		return nil, f.err
	}

	video.ID, _ = uuid.GenerateUUID()
	for _, id := range categoryIDs {
		video.Categories = append(video.Categories, vhmodel.Category{ID: id})
	}
	f.videos = append(f.videos, video)

	return video, nil
}

func (f *fakeVideos) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.videos)
}

type fakeCategories map[string]bool

func (f fakeCategories) MissingCategoryIDs(ids []string) ([]string, error) {
	var missing []string
	for _, id := range ids {
		if !f[id] {
			missing = append(missing, id)
		}
	}

	return missing, nil
}

// blockingCategories holds validation open until release is closed.
type blockingCategories struct {
	entered chan struct{}
	release chan struct{}
}

func (b *blockingCategories) MissingCategoryIDs(_ []string) ([]string, error) {
	close(b.entered)
	<-b.release
	return nil, nil
}
