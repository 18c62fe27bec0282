// Package mediahost talks to the Cloudinary REST API. Uploads are streamed
// as multipart bodies so the payload is never held in memory, and payloads
// above the chunk size are sent as a sequence of Content-Range requests that
// share one upload id.
package mediahost

import (
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"strconv"
	"sync"
	"time"

	"github.com/akademi-crypto/vidhub/pkg/config"
	"github.com/go-resty/resty/v2"
	"github.com/hashicorp/go-uuid"
	"github.com/pkg/errors"
)

const (
	DefaultBaseURL   = "https://api.cloudinary.com"
	DefaultFolder    = "videos"
	DefaultChunkSize = 20 * 1024 * 1024

	// renditions generated by the media host after the upload finishes
	eagerTransformations = "c_limit,w_1280,h_720,q_auto:good/mp4|c_limit,w_854,h_480,q_auto:low/mp4|c_limit,w_640,h_360,q_auto:low/webm"
)

type Config struct {
	CloudName string
	APIKey    string
	APISecret string
	Folder    string
	BaseURL   string
	ChunkSize int64
	Timeout   time.Duration
}

// ConfigFrom reads the CLOUDINARY_* keys.
func ConfigFrom(c config.Configer) Config {
	return Config{
		CloudName: c.GetKey("CLOUDINARY_CLOUD_NAME"),
		APIKey:    c.GetKey("CLOUDINARY_API_KEY"),
		APISecret: c.GetKey("CLOUDINARY_API_SECRET"),
		Folder:    c.GetKeyWithDefault("CLOUDINARY_FOLDER", DefaultFolder),
		BaseURL:   c.GetKeyWithDefault("CLOUDINARY_BASE_URL", DefaultBaseURL),
		ChunkSize: c.GetInt64KeyWithDefault("CLOUDINARY_CHUNK_SIZE", DefaultChunkSize),
	}
}

// UploadParams describes one video upload.
type UploadParams struct {
	UploadID    string
	Title       string
	Description string
	Filename    string
	Size        int64
}

// Asset is the media host's description of a stored video.
type Asset struct {
	AssetID      string  `json:"asset_id"`
	PublicID     string  `json:"public_id"`
	Version      int64   `json:"version"`
	ResourceType string  `json:"resource_type"`
	Format       string  `json:"format"`
	URL          string  `json:"url"`
	SecureURL    string  `json:"secure_url"`
	Duration     float64 `json:"duration"`
	Width        int     `json:"width"`
	Height       int     `json:"height"`
	Bytes        int64   `json:"bytes"`
	Done         *bool   `json:"done,omitempty"`
}

// ContentID is the identifier recorded as the video's content id. Older
// accounts do not return asset ids, so it falls back to the public id.
func (a *Asset) ContentID() string {
	if a.AssetID != "" {
		return a.AssetID
	}

	return a.PublicID
}

// ProgressFunc is called as bytes of the payload are handed to the transport.
type ProgressFunc func(sent, total int64)

type Client struct {
	cfg    Config
	client *resty.Client
	now    func() time.Time
}

func NewClient(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}

	if cfg.Folder == "" {
		cfg.Folder = DefaultFolder
	}

	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = DefaultChunkSize
	}

	c := resty.New().SetBaseURL(cfg.BaseURL)
	if cfg.Timeout > 0 {
		c.SetTimeout(cfg.Timeout)
	}

	return &Client{cfg: cfg, client: c, now: time.Now}
}

func (c *Client) endpoint(action string) string {
	return fmt.Sprintf("/v1_1/%s/video/%s", c.cfg.CloudName, action)
}

func (c *Client) signedParams(params map[string]string) map[string]string {
	params["timestamp"] = strconv.FormatInt(c.now().Unix(), 10)
	params["signature"] = Sign(params, c.cfg.APISecret)
	params["api_key"] = c.cfg.APIKey
	return params
}

func (c *Client) uploadParams(p UploadParams) map[string]string {
	return c.signedParams(map[string]string{
		"folder":      c.cfg.Folder,
		"eager":       eagerTransformations,
		"eager_async": "true",
		"context": encodeContext(map[string]string{
			"alt":       p.Title,
			"caption":   p.Description,
			"upload_id": p.UploadID,
		}),
	})
}

// UploadVideo streams r to the media host. Cancelling ctx aborts the request
// in flight. Payloads larger than the chunk size are split, which requires
// p.Size to be known.
func (c *Client) UploadVideo(ctx context.Context, p UploadParams, r io.Reader, progress ProgressFunc) (*Asset, error) {
	params := c.uploadParams(p)

	if p.Size <= c.cfg.ChunkSize {
		pr := &progressReader{r: r, expect: p.Size, total: p.Size, progress: progress}
		asset, err := c.postChunk(ctx, params, p.Filename, pr, nil)
		if pr.short() {
			return nil, pr.shortError()
		}

		return asset, err
	}

	uniqueID, err := uuid.GenerateUUID()
	if err != nil {
		return nil, err
	}

	var asset *Asset
	for start := int64(0); start < p.Size; start += c.cfg.ChunkSize {
		end := start + c.cfg.ChunkSize - 1
		if end >= p.Size {
			end = p.Size - 1
		}

		headers := map[string]string{
			"X-Unique-Upload-Id": uniqueID,
			"Content-Range":      fmt.Sprintf("bytes %d-%d/%d", start, end, p.Size),
		}

		pr := &progressReader{r: io.LimitReader(r, end-start+1), offset: start, expect: end - start + 1, total: p.Size, progress: progress}
		asset, err = c.postChunk(ctx, params, p.Filename, pr, headers)
		switch {
		case pr.short():
			return nil, pr.shortError()
		case err != nil:
			return nil, errors.Wrapf(err, "chunk %d-%d", start, end)
		}
	}

	return asset, nil
}

func (c *Client) postChunk(ctx context.Context, params map[string]string, filename string, body io.Reader, headers map[string]string) (*Asset, error) {
	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)

	go func() {
		pw.CloseWithError(writeMultipart(mw, params, filename, body))
	}()
	defer pr.Close()

	var asset Asset
	resp, err := c.client.R().
		SetContext(ctx).
		SetHeaders(headers).
		SetHeader("Content-Type", mw.FormDataContentType()).
		SetBody(pr).
		SetResult(&asset).
		Post(c.endpoint("upload"))

	switch {
	case err != nil:
		return nil, err
	case resp.IsError():
		return nil, toErrorFromResponse(resp)
	default:
		return &asset, nil
	}
}

func writeMultipart(mw *multipart.Writer, params map[string]string, filename string, body io.Reader) error {
	for k, v := range params {
		if err := mw.WriteField(k, v); err != nil {
			return err
		}
	}

	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return err
	}

	if _, err := io.Copy(part, body); err != nil {
		return err
	}

	return mw.Close()
}

type destroyResult struct {
	Result string `json:"result"`
}

// DeleteVideo removes the asset with the given public id. A public id the
// media host does not know is treated as already deleted.
func (c *Client) DeleteVideo(ctx context.Context, publicID string) error {
	params := c.signedParams(map[string]string{
		"public_id":  publicID,
		"invalidate": "true",
	})

	var result destroyResult
	resp, err := c.client.R().
		SetContext(ctx).
		SetFormData(params).
		SetResult(&result).
		Post(c.endpoint("destroy"))

	switch {
	case err != nil:
		return err
	case resp.IsError():
		return toErrorFromResponse(resp)
	case result.Result == "ok" || result.Result == "not found":
		return nil
	default:
		return errors.Wrapf(ErrAPI, "destroy %s: %s", publicID, result.Result)
	}
}

// progressReader reports bytes read and fails with io.ErrUnexpectedEOF when
// its source ends before expect bytes. The failure aborts the request body,
// so a short chunk never reaches the media host complete. Read runs on the
// multipart writer goroutine, which can outlive the request.
type progressReader struct {
	r        io.Reader
	offset   int64
	expect   int64
	total    int64
	progress ProgressFunc

	mu        sync.Mutex
	sent      int64
	truncated bool
}

func (p *progressReader) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)

	p.mu.Lock()
	p.sent += int64(n)
	sent := p.sent
	if err == io.EOF && sent < p.expect {
		p.truncated = true
		err = io.ErrUnexpectedEOF
	}
	p.mu.Unlock()

	if n > 0 && p.progress != nil {
		p.progress(p.offset+sent, p.total)
	}

	return n, err
}

func (p *progressReader) short() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.truncated
}

func (p *progressReader) shortError() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return errors.Errorf("payload ended at %d bytes, expected %d", p.offset+p.sent, p.total)
}
