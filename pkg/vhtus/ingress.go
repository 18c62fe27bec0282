// Package vhtus accepts resumable uploads over the tus protocol and hands
// each finished upload to an upload session.
package vhtus

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/akademi-crypto/vidhub/pkg/clog"
	"github.com/akademi-crypto/vidhub/pkg/config"
	"github.com/akademi-crypto/vidhub/pkg/upload"
	"github.com/apex/log"
	"github.com/pkg/errors"
	"github.com/tus/tusd/v2/pkg/filelocker"
	"github.com/tus/tusd/v2/pkg/filestore"
	tusd "github.com/tus/tusd/v2/pkg/handler"
)

const DefaultBasePath = "/files/"

type Config struct {
	Dir      string
	BasePath string
	MaxBytes int64
}

// ConfigFrom reads TUS_DIR. An empty Dir means the ingress is disabled.
func ConfigFrom(c config.Configer) Config {
	return Config{
		Dir:      c.GetKey("TUS_DIR"),
		BasePath: c.GetKeyWithDefault("TUS_BASE_PATH", DefaultBasePath),
	}
}

// Ingress wraps a tusd handler backed by a local file store. Finished tus
// uploads are started as upload sessions; SessionFor maps a tus upload id
// to the upload id whose progress can be observed.
type Ingress struct {
	handler *tusd.Handler
	store   filestore.FileStore
	uploads *upload.Service

	mu       sync.Mutex
	sessions map[string]string
}

func New(cfg Config, uploads *upload.Service) (*Ingress, error) {
	if cfg.Dir == "" {
		return nil, errors.New("tus directory not configured")
	}

	if cfg.BasePath == "" {
		cfg.BasePath = DefaultBasePath
	}

	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = uploads.Options().MaxBytes
	}

	if err := os.MkdirAll(cfg.Dir, 0755); err != nil {
		return nil, errors.Wrapf(err, "create tus directory %s", cfg.Dir)
	}

	i := &Ingress{
		store:    filestore.New(cfg.Dir),
		uploads:  uploads,
		sessions: make(map[string]string),
	}

	composer := tusd.NewStoreComposer()
	i.store.UseIn(composer)
	filelocker.New(cfg.Dir).UseIn(composer)

	var err error
	i.handler, err = tusd.NewHandler(tusd.Config{
		BasePath:                cfg.BasePath,
		StoreComposer:           composer,
		MaxSize:                 cfg.MaxBytes,
		NotifyCompleteUploads:   true,
		PreUploadCreateCallback: i.preCreate,
	})
	if err != nil {
		return nil, errors.Wrap(err, "create tus handler")
	}

	return i, nil
}

// Handler serves the tus protocol. Mount it with the base path stripped.
func (i *Ingress) Handler() http.Handler {
	return i.handler
}

// SessionFor returns the upload id started for a finished tus upload. The
// mapping lives as long as the upload's progress record.
func (i *Ingress) SessionFor(tusID string) (string, bool) {
	i.mu.Lock()
	defer i.mu.Unlock()

	uploadID, ok := i.sessions[tusID]
	if !ok {
		return "", false
	}

	if _, err := i.uploads.Get(uploadID); err != nil {
		delete(i.sessions, tusID)
		return "", false
	}

	return uploadID, true
}

// Run consumes finished tus uploads until ctx is done.
func (i *Ingress) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case event := <-i.handler.CompleteUploads:
			i.complete(event)
		}
	}
}

// preCreate rejects uploads that could never become a video before any
// bytes are sent.
func (i *Ingress) preCreate(hook tusd.HookEvent) (tusd.HTTPResponse, tusd.FileInfoChanges, error) {
	md := hook.Upload.MetaData

	if strings.TrimSpace(md["title"]) == "" {
		return tusd.HTTPResponse{}, tusd.FileInfoChanges{}, tusd.NewError("ERR_MISSING_TITLE", "title metadata is required", http.StatusBadRequest)
	}

	if !upload.IsVideoFile(md["filename"], md["filetype"]) {
		return tusd.HTTPResponse{}, tusd.FileInfoChanges{}, tusd.NewError("ERR_INVALID_FILETYPE", "only video files are allowed", http.StatusBadRequest)
	}

	if _, err := parseCategoryIDs(md["category_ids"]); err != nil {
		return tusd.HTTPResponse{}, tusd.FileInfoChanges{}, tusd.NewError("ERR_INVALID_CATEGORIES", err.Error(), http.StatusBadRequest)
	}

	return tusd.HTTPResponse{}, tusd.FileInfoChanges{}, nil
}

func (i *Ingress) complete(event tusd.HookEvent) {
	info := event.Upload
	logger := clog.UsingCtx(clog.Tus).WithField("tus_id", info.ID)

	f, err := os.Open(info.Storage["Path"])
	if err != nil {
		logger.Errorf("Unable to open finished tus upload: %s", err)
		i.terminate(info.ID)
		return
	}

	categoryIDs, _ := parseCategoryIDs(info.MetaData["category_ids"])
	req := upload.Request{
		Title:       info.MetaData["title"],
		Description: info.MetaData["description"],
		CategoryIDs: categoryIDs,
		Filename:    info.MetaData["filename"],
		ContentType: info.MetaData["filetype"],
		Size:        info.Size,
		Body:        &tusFile{File: f, terminate: func() { i.terminate(info.ID) }},
	}

	session, err := i.uploads.Start(context.Background(), req)
	if err != nil {
		logger.Warnf("Finished tus upload rejected: %s", err)
		return
	}

	i.mu.Lock()
	i.sessions[info.ID] = session.UploadID
	i.mu.Unlock()
	go i.forgetWhenDone(info.ID, session)

	logger.WithFields(log.Fields{"upload_id": session.UploadID, "size": info.Size}).Info("Started session for tus upload")
}

// forgetWhenDone drops the tus mapping once the session's progress record
// has been retained for as long as the upload service keeps it.
func (i *Ingress) forgetWhenDone(tusID string, session *upload.Session) {
	<-session.Done()
	time.AfterFunc(i.uploads.Options().Retention, func() {
		i.mu.Lock()
		defer i.mu.Unlock()

		if i.sessions[tusID] == session.UploadID {
			delete(i.sessions, tusID)
		}
	})
}

// terminate removes the tus data and info files.
func (i *Ingress) terminate(tusID string) {
	ctx := context.Background()

	up, err := i.store.GetUpload(ctx, tusID)
	if err != nil {
		clog.UsingCtx(clog.Tus).Warnf("Unable to find tus upload %s for removal: %s", tusID, err)
		return
	}

	if err := i.store.AsTerminatableUpload(up).Terminate(ctx); err != nil {
		clog.UsingCtx(clog.Tus).Warnf("Unable to remove tus upload %s: %s", tusID, err)
	}
}

// tusFile removes the tus upload once the session is done with it.
type tusFile struct {
	*os.File
	terminate func()
	once      sync.Once
}

func (f *tusFile) Close() error {
	err := f.File.Close()
	f.once.Do(f.terminate)
	return err
}

// parseCategoryIDs accepts a JSON array or a comma separated list.
func parseCategoryIDs(value string) ([]string, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}

	if strings.HasPrefix(value, "[") {
		var ids []string
		if err := json.Unmarshal([]byte(value), &ids); err != nil {
			return nil, errors.New("category_ids must be a JSON array of strings")
		}
		return ids, nil
	}

	var ids []string
	for _, id := range strings.Split(value, ",") {
		if id = strings.TrimSpace(id); id != "" {
			ids = append(ids, id)
		}
	}

	return ids, nil
}
