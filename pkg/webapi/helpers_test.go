package webapi

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http/httptest"
	"net/textproto"
	"sync"
	"testing"

	"github.com/akademi-crypto/vidhub/pkg/catalog"
	"github.com/akademi-crypto/vidhub/pkg/mediahost"
	"github.com/akademi-crypto/vidhub/pkg/upload"
	"github.com/akademi-crypto/vidhub/pkg/vhdb"
	"github.com/akademi-crypto/vidhub/pkg/vhdb/stor"
	"github.com/hashicorp/go-uuid"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type testHost struct {
	mu        sync.Mutex
	gate      chan struct{}
	deleteErr error
	deleted   []string
}

func (h *testHost) UploadVideo(ctx context.Context, p mediahost.UploadParams, r io.Reader, progress mediahost.ProgressFunc) (*mediahost.Asset, error) {
	if h.gate != nil {
		select {
		case <-h.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	n, err := io.Copy(io.Discard, r)
	if err != nil {
		return nil, err
	}

	if progress != nil {
		progress(n, p.Size)
	}

	return &mediahost.Asset{
		AssetID:   "asset-" + p.UploadID,
		PublicID:  "videos/" + p.UploadID,
		URL:       "http://res.example.com/v.mp4",
		SecureURL: "https://res.example.com/v.mp4",
		Format:    "mp4",
		Bytes:     n,
	}, nil
}

func (h *testHost) DeleteVideo(_ context.Context, publicID string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.deleted = append(h.deleted, publicID)
	return h.deleteErr
}

type testEnv struct {
	db       *gorm.DB
	stors    *stor.Stors
	host     *testHost
	uploads  *upload.Service
	catalog  *catalog.Service
	spoolDir string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	name, err := uuid.GenerateUUID()
	require.NoError(t, err)

	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", name)),
		&gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	require.NoError(t, vhdb.AutoMigrate(db))

	stors := stor.NewGormStors(db)
	host := &testHost{}
	uploads := upload.NewService(host, stors.VideoStor, stors.CategoryStor, upload.Options{})

	return &testEnv{
		db:       db,
		stors:    stors,
		host:     host,
		uploads:  uploads,
		catalog:  catalog.NewService(stors.VideoStor, host, nil),
		spoolDir: t.TempDir(),
	}
}

func newEcho() *echo.Echo {
	e := echo.New()
	e.Validator = NewValidator()
	e.HTTPErrorHandler = HTTPErrorHandler
	return e
}

// setupEchoContext creates a test Echo context with a JSON body.
func setupEchoContext(method, target string, body []byte) (echo.Context, *httptest.ResponseRecorder) {
	e := newEcho()

	req := httptest.NewRequest(method, target, bytes.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)

	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

// setupUploadContext creates an Echo context carrying a multipart upload.
func setupUploadContext(t *testing.T, target, filename, contentType string, content []byte, fields map[string]string) (echo.Context, *httptest.ResponseRecorder) {
	t.Helper()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}

	if filename != "" {
		header := make(textproto.MIMEHeader)
		header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="video"; filename="%s"`, filename))
		header.Set("Content-Type", contentType)
		part, err := mw.CreatePart(header)
		require.NoError(t, err)
		_, err = part.Write(content)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	e := newEcho()
	req := httptest.NewRequest("POST", target, &body)
	req.Header.Set(echo.HeaderContentType, mw.FormDataContentType())

	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func withParams(c echo.Context, names []string, values []string) echo.Context {
	c.SetParamNames(names...)
	c.SetParamValues(values...)
	return c
}
