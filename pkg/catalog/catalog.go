// Package catalog manages persisted videos: listing, editing and deleting
// them together with their remote assets.
package catalog

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/akademi-crypto/vidhub/pkg/clog"
	"github.com/akademi-crypto/vidhub/pkg/lock"
	"github.com/akademi-crypto/vidhub/pkg/metrics"
	"github.com/akademi-crypto/vidhub/pkg/vhdb/stor"
	"github.com/akademi-crypto/vidhub/pkg/vhdb/vhmodel"
	"github.com/apex/log"
	"github.com/pkg/errors"
)

var ErrNoVideos = errors.New("no videos found to delete")

const remoteDeleteTimeout = 30 * time.Second

// RemoteDeleter removes a remote asset by public id.
type RemoteDeleter interface {
	DeleteVideo(ctx context.Context, publicID string) error
}

type Pagination struct {
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	TotalCount int64 `json:"totalCount"`
	TotalPages int   `json:"totalPages"`
	HasNext    bool  `json:"hasNext"`
	HasPrev    bool  `json:"hasPrev"`
}

type VideoPage struct {
	Videos     []vhmodel.Video `json:"videos"`
	Pagination Pagination      `json:"pagination"`
}

type Service struct {
	videos  stor.VideoStor
	remote  RemoteDeleter
	locker  *lock.IdLocker
	metrics *metrics.UploadMetrics
}

func NewService(videos stor.VideoStor, remote RemoteDeleter, m *metrics.UploadMetrics) *Service {
	return &Service{
		videos:  videos,
		remote:  remote,
		locker:  lock.NewIdLocker(),
		metrics: m,
	}
}

func (s *Service) List(q stor.VideoQuery) (*VideoPage, error) {
	videos, total, err := s.videos.ListVideos(q)
	if err != nil {
		return nil, errors.Wrap(err, "failed to fetch videos")
	}

	q.Normalize()
	page, limit := q.Page, q.Limit

	if videos == nil {
		videos = []vhmodel.Video{}
	}

	return &VideoPage{
		Videos: videos,
		Pagination: Pagination{
			Page:       page,
			Limit:      limit,
			TotalCount: total,
			TotalPages: int(math.Ceil(float64(total) / float64(limit))),
			HasNext:    int64(page*limit) < total,
			HasPrev:    page > 1,
		},
	}, nil
}

func (s *Service) Get(id string) (*vhmodel.Video, error) {
	return s.videos.GetVideoByID(id)
}

func (s *Service) Update(id string, updates stor.VideoUpdates) (*vhmodel.Video, error) {
	var video *vhmodel.Video
	err := s.locker.WithLock(id, func() error {
		var err error
		video, err = s.videos.UpdateVideo(id, updates)
		return err
	})

	return video, err
}

// Delete removes the remote asset and then the row. A failed remote delete
// is logged and does not stop the row from being deleted.
func (s *Service) Delete(ctx context.Context, id string) error {
	return s.locker.WithLock(id, func() error {
		video, err := s.videos.GetVideoByID(id)
		if err != nil {
			return err
		}

		s.deleteRemote(ctx, video.PublicID)
		return s.videos.DeleteVideo(id)
	})
}

// BulkDelete removes the remote assets in parallel, then every matching
// row. Ids that do not exist are skipped.
func (s *Service) BulkDelete(ctx context.Context, ids []string) (int64, error) {
	videos, err := s.videos.GetVideosByIDs(ids)
	if err != nil {
		return 0, err
	}

	if len(videos) == 0 {
		return 0, ErrNoVideos
	}

	var wg sync.WaitGroup
	for _, video := range videos {
		wg.Add(1)
		go func(publicID string) {
			defer wg.Done()
			s.deleteRemote(ctx, publicID)
		}(video.PublicID)
	}
	wg.Wait()

	return s.videos.DeleteVideosByIDs(ids)
}

func (s *Service) deleteRemote(ctx context.Context, publicID string) {
	if s.remote == nil || publicID == "" {
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), remoteDeleteTimeout)
	defer cancel()

	if err := s.remote.DeleteVideo(ctx, publicID); err != nil {
		reason := "error"
		if errors.Is(err, context.DeadlineExceeded) {
			reason = "timeout"
		}
		s.metrics.RemoteDeleteFailed(reason)

		clog.UsingCtx(clog.HTTP).WithFields(log.Fields{
			"public_id": publicID,
			"error":     err,
		}).Warn("Failed to delete remote asset, deleting row anyway")
	}
}
