// Package upload drives video uploads from the first byte received to the
// persisted video row. Each upload gets a progress record in a Registry,
// observers attach through the Broadcaster, and a running transfer can be
// cancelled by upload id.
package upload

import (
	"context"
	"io"
	"math"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/akademi-crypto/vidhub/pkg/clog"
	"github.com/akademi-crypto/vidhub/pkg/config"
	"github.com/akademi-crypto/vidhub/pkg/mediahost"
	"github.com/akademi-crypto/vidhub/pkg/metrics"
	"github.com/akademi-crypto/vidhub/pkg/vhdb/vhmodel"
	"github.com/apex/log"
	"github.com/hashicorp/go-uuid"
	"github.com/pkg/errors"
)

const (
	DefaultRetention       = time.Hour
	DefaultTransferTimeout = 30 * time.Minute
	DefaultKeepAlive       = 30 * time.Second

	transferBandStart = 5
	transferBandWidth = 75
)

// MediaHost stores the video payload remotely.
type MediaHost interface {
	UploadVideo(ctx context.Context, p mediahost.UploadParams, r io.Reader, progress mediahost.ProgressFunc) (*mediahost.Asset, error)
	DeleteVideo(ctx context.Context, publicID string) error
}

type VideoStore interface {
	CreateVideo(video *vhmodel.Video, categoryIDs []string) (*vhmodel.Video, error)
}

type CategoryChecker interface {
	MissingCategoryIDs(ids []string) ([]string, error)
}

type Options struct {
	MaxBytes        int64
	Retention       time.Duration
	TransferTimeout time.Duration
	KeepAlive       time.Duration
	Metrics         *metrics.UploadMetrics
}

// OptionsFrom reads the UPLOAD_* keys.
func OptionsFrom(c config.Configer) Options {
	return Options{
		MaxBytes:        c.GetInt64KeyWithDefault("UPLOAD_MAX_BYTES", DefaultMaxBytes),
		Retention:       c.GetDurationKeyWithDefault("UPLOAD_RETENTION", DefaultRetention),
		TransferTimeout: c.GetDurationKeyWithDefault("UPLOAD_TRANSFER_TIMEOUT", DefaultTransferTimeout),
		KeepAlive:       c.GetDurationKeyWithDefault("UPLOAD_KEEPALIVE", DefaultKeepAlive),
	}
}

func (o *Options) setDefaults() {
	if o.MaxBytes <= 0 {
		o.MaxBytes = DefaultMaxBytes
	}

	if o.Retention <= 0 {
		o.Retention = DefaultRetention
	}

	if o.TransferTimeout <= 0 {
		o.TransferTimeout = DefaultTransferTimeout
	}

	if o.KeepAlive <= 0 {
		o.KeepAlive = DefaultKeepAlive
	}
}

// Request is one video to upload. Body is closed by the Service once the
// session is over, whatever the outcome.
type Request struct {
	Title       string
	Description string
	CategoryIDs []string
	Filename    string
	ContentType string
	Size        int64
	Body        io.ReadCloser
}

type Service struct {
	host        MediaHost
	videos      VideoStore
	categories  CategoryChecker
	opts        Options
	registry    *Registry
	broadcaster *Broadcaster
	transfers   *transfers
	janitor     *janitor
	sessions    sync.WaitGroup
}

func NewService(host MediaHost, videos VideoStore, categories CategoryChecker, opts Options) *Service {
	opts.setDefaults()

	b := NewBroadcaster(opts.Metrics)
	s := &Service{
		host:        host,
		videos:      videos,
		categories:  categories,
		opts:        opts,
		broadcaster: b,
		registry:    NewRegistry(b),
		transfers:   newTransfers(),
	}

	s.janitor = newJanitor(opts.Retention, func(uploadID string) {
		s.registry.Evict(uploadID)
		s.transfers.release(uploadID)
	})

	return s
}

func (s *Service) Options() Options {
	return s.opts
}

// Session is a started upload.
type Session struct {
	UploadID string

	done  chan struct{}
	video *vhmodel.Video
	err   error
}

func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Wait blocks until the session reaches a terminal status or ctx is done.
// Giving up on the wait does not stop the upload.
func (s *Session) Wait(ctx context.Context) (*vhmodel.Video, error) {
	select {
	case <-s.done:
		return s.video, s.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Start validates req and launches the transfer in the background. Invalid
// requests fail here with ErrInvalidInput and leave an error record behind.
// ctx only bounds validation; the transfer is bounded by the configured
// transfer timeout and by Cancel.
func (s *Service) Start(ctx context.Context, req Request) (*Session, error) {
	uploadID, err := newUploadID()
	if err != nil {
		closeBody(req.Body)
		return nil, err
	}

	// The transfer slot exists before the record so Cancel can reach the
	// upload while it is still being validated.
	transferCtx, cancel := context.WithTimeout(context.Background(), s.opts.TransferTimeout)
	s.transfers.add(uploadID, cancel)

	if _, err := s.registry.Create(uploadID, req.Size); err != nil {
		cancel()
		s.transfers.release(uploadID)
		closeBody(req.Body)
		return nil, err
	}
	s.opts.Metrics.Started()

	rejectWith := func(status Status, message string, err error) (*Session, error) {
		cancel()
		s.transfers.release(uploadID)
		closeBody(req.Body)
		s.finish(uploadID, status, StageValidation, message)
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		return rejectWith(StatusCancelled, "Upload cancelled before validation", cancelled(uploadID))
	}

	err = s.validate(&req)
	switch {
	case s.transfers.aborted(uploadID):
		return rejectWith(StatusCancelled, "Upload cancelled", cancelled(uploadID))
	case err != nil:
		return rejectWith(StatusError, err.Error(), err)
	}

	s.registry.Update(uploadID, func(r *Record) {
		r.Progress = transferBandStart
		r.Stage = StageTransfer
		r.Message = "Starting upload to media host..."
	})

	session := &Session{UploadID: uploadID, done: make(chan struct{})}

	s.sessions.Add(1)
	go func() {
		defer s.sessions.Done()
		defer close(session.done)
		defer cancel()
		defer closeBody(req.Body)

		session.video, session.err = s.run(transferCtx, uploadID, req)
	}()

	return session, nil
}

// Upload runs a whole session and returns the persisted video with the
// upload id it was tracked under.
func (s *Service) Upload(ctx context.Context, req Request) (*vhmodel.Video, string, error) {
	session, err := s.Start(ctx, req)
	if err != nil {
		return nil, "", err
	}

	video, err := session.Wait(ctx)
	return video, session.UploadID, err
}

func (s *Service) run(ctx context.Context, uploadID string, req Request) (*vhmodel.Video, error) {
	asset, err := s.transfer(ctx, uploadID, req)
	if err != nil {
		s.transfers.release(uploadID)
		return nil, err
	}

	if !s.transfers.commit(uploadID) {
		s.transfers.release(uploadID)
		s.deleteAbandonedAsset(uploadID, asset.PublicID)
		s.finish(uploadID, StatusCancelled, StageTransfer, "Upload cancelled")
		return nil, cancelled(uploadID)
	}
	s.transfers.release(uploadID)

	return s.persist(uploadID, req, asset)
}

func (s *Service) transfer(ctx context.Context, uploadID string, req Request) (*mediahost.Asset, error) {
	var (
		lastPercent atomic.Int64
		lastSent    atomic.Int64
	)
	lastPercent.Store(-1)

	onProgress := func(sent, total int64) {
		if total <= 0 {
			return
		}

		s.opts.Metrics.BytesSent(sent - lastSent.Swap(sent))

		percent := int64(math.Round(float64(sent) / float64(total) * transferBandWidth))
		if lastPercent.Swap(percent) == percent && sent < total {
			return
		}

		s.registry.Update(uploadID, func(r *Record) {
			r.Progress = transferBandStart + int(percent)
			r.Message = "Uploading to media host..."
			r.BytesUploaded = sent
			r.TotalBytes = total
		})
	}

	params := mediahost.UploadParams{
		UploadID:    uploadID,
		Title:       req.Title,
		Description: req.Description,
		Filename:    req.Filename,
		Size:        req.Size,
	}

	asset, err := s.host.UploadVideo(ctx, params, req.Body, onProgress)
	switch {
	case err == nil:
		return asset, nil

	case s.transfers.aborted(uploadID):
		s.finish(uploadID, StatusCancelled, StageTransfer, "Upload cancelled")
		return nil, cancelled(uploadID)

	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		err = errors.Wrapf(err, "transfer exceeded %s", s.opts.TransferTimeout)
	}

	s.finish(uploadID, StatusError, StageTransfer, "Media host upload failed: "+err.Error())
	return nil, transferFailed(err)
}

func (s *Service) persist(uploadID string, req Request, asset *mediahost.Asset) (*vhmodel.Video, error) {
	s.registry.Update(uploadID, func(r *Record) {
		r.Progress = transferBandStart + transferBandWidth
		r.Status = StatusProcessing
		r.Stage = StagePersistence
		r.Message = "Upload completed, saving to database..."
	})

	s.registry.Update(uploadID, func(r *Record) {
		r.Progress = 90
		r.Message = "Saving video metadata to database..."
	})

	video, err := s.videos.CreateVideo(videoFromAsset(req, asset), req.CategoryIDs)
	if err != nil {
		s.opts.Metrics.Orphaned()
		s.logger(uploadID).WithFields(log.Fields{
			"public_id": asset.PublicID,
			"error":     err,
		}).Error("Video row not written, remote asset left orphaned")

		s.finish(uploadID, StatusError, StagePersistence, "Failed to save video: "+err.Error())
		return nil, persistenceFailed(err)
	}

	s.finish(uploadID, StatusCompleted, StageFinished, "Video upload completed successfully!")
	return video, nil
}

func videoFromAsset(req Request, asset *mediahost.Asset) *vhmodel.Video {
	video := &vhmodel.Video{
		Title:        strings.TrimSpace(req.Title),
		CloudinaryID: asset.ContentID(),
		PublicID:     asset.PublicID,
		URL:          asset.URL,
		SecureURL:    asset.SecureURL,
		Format:       asset.Format,
	}

	if req.Description != "" {
		description := req.Description
		video.Description = &description
	}

	if asset.Duration > 0 {
		duration := asset.Duration
		video.Duration = &duration
	}

	if asset.Width > 0 {
		width, height := asset.Width, asset.Height
		video.Width, video.Height = &width, &height
	}

	size := asset.Bytes
	if size <= 0 {
		size = req.Size
	}
	video.FileSize = &size

	return video
}

// finish moves the record to a terminal status, unless something else got
// there first, and schedules its eviction.
func (s *Service) finish(uploadID string, status Status, stage Stage, message string) {
	rec, _ := s.registry.Update(uploadID, func(r *Record) {
		r.Status = status
		r.Stage = stage
		r.Message = message
		if status == StatusCompleted {
			r.Progress = 100
		}
	})

	s.opts.Metrics.Finished(string(rec.Status), string(rec.Stage))
	s.logger(uploadID).WithFields(log.Fields{
		"stage":  rec.Stage,
		"status": rec.Status,
	}).Info(rec.Message)

	s.janitor.schedule(uploadID)
}

func (s *Service) deleteAbandonedAsset(uploadID, publicID string) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	if err := s.host.DeleteVideo(ctx, publicID); err != nil {
		s.opts.Metrics.Orphaned()
		s.logger(uploadID).WithFields(log.Fields{
			"public_id": publicID,
			"error":     err,
		}).Warn("Unable to delete remote asset of cancelled upload")
	}
}

// Cancel aborts an upload whose transfer is still running. It returns false
// when the upload is already terminal or has moved on to persistence.
func (s *Service) Cancel(uploadID string) (bool, error) {
	rec, ok := s.registry.Get(uploadID)
	if !ok {
		return false, notFound(uploadID)
	}

	if rec.Status.IsTerminal() || !s.transfers.abort(uploadID) {
		return false, nil
	}

	s.registry.Update(uploadID, func(r *Record) {
		r.Status = StatusCancelled
		r.Message = "Upload cancelled"
	})

	return true, nil
}

func (s *Service) Get(uploadID string) (Record, error) {
	rec, ok := s.registry.Get(uploadID)
	if !ok {
		return Record{}, notFound(uploadID)
	}

	return rec, nil
}

func (s *Service) ListAll() []Record {
	return s.registry.ListAll()
}

func (s *Service) Stats() Stats {
	return s.registry.Stats()
}

// Subscribe attaches an observer to the upload's progress events.
func (s *Service) Subscribe(uploadID string) (*Subscription, error) {
	return s.registry.Observe(uploadID)
}

// ActiveTransfers is the number of transfers that can still be cancelled or
// are committing.
func (s *Service) ActiveTransfers() int {
	return s.transfers.len()
}

// Shutdown aborts every running transfer, waits for the sessions to unwind
// or ctx to expire, and drops pending evictions.
func (s *Service) Shutdown(ctx context.Context) error {
	for _, rec := range s.registry.ListAll() {
		if !rec.Status.IsTerminal() {
			_, _ = s.Cancel(rec.UploadID)
		}
	}

	done := make(chan struct{})
	go func() {
		s.sessions.Wait()
		close(done)
	}()

	defer s.janitor.stop()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Service) logger(uploadID string) *log.Entry {
	return clog.UsingCtx(clog.Upload).WithField("upload_id", uploadID)
}

func newUploadID() (string, error) {
	id, err := uuid.GenerateUUID()
	if err != nil {
		return "", err
	}

	return "upload_" + id, nil
}

func closeBody(body io.ReadCloser) {
	if body != nil {
		_ = body.Close()
	}
}
