package webapi

import (
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"strings"

	"github.com/akademi-crypto/vidhub/pkg/catalog"
	"github.com/akademi-crypto/vidhub/pkg/upload"
	"github.com/akademi-crypto/vidhub/pkg/vhdb/stor"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
)

const videoFormField = "video"

type VideoController struct {
	uploads  *upload.Service
	catalog  *catalog.Service
	spoolDir string
}

// NewVideoController creates the controller. spoolDir holds request bodies
// of asynchronous uploads while they are transferred; "" means os.TempDir.
func NewVideoController(uploads *upload.Service, catalog *catalog.Service, spoolDir string) *VideoController {
	return &VideoController{uploads: uploads, catalog: catalog, spoolDir: spoolDir}
}

// UploadVideo accepts a multipart form with the file in the "video" field.
// With ?async=true it answers 202 as soon as the upload is validated so the
// caller can follow it on the progress stream.
func (c *VideoController) UploadVideo(ctx echo.Context) error {
	fh, err := ctx.FormFile(videoFormField)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "No file uploaded")
	}

	if strings.TrimSpace(ctx.FormValue("title")) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "Title is required")
	}

	categoryIDs, err := parseCategoryIDs(ctx)
	if err != nil {
		return err
	}

	req := upload.Request{
		Title:       ctx.FormValue("title"),
		Description: ctx.FormValue("description"),
		CategoryIDs: categoryIDs,
		Filename:    fh.Filename,
		ContentType: fh.Header.Get(echo.HeaderContentType),
		Size:        fh.Size,
	}

	if ctx.QueryParam("async") == "true" {
		if req.Body, err = c.spool(fh); err != nil {
			return err
		}

		session, err := c.uploads.Start(ctx.Request().Context(), req)
		if err != nil {
			return err
		}

		return ctx.JSON(http.StatusAccepted, map[string]string{
			"message":  "Upload started",
			"uploadId": session.UploadID,
		})
	}

	if req.Body, err = fh.Open(); err != nil {
		return errors.Wrap(err, "open uploaded file")
	}

	video, uploadID, err := c.uploads.Upload(ctx.Request().Context(), req)
	if err != nil {
		return err
	}

	return ctx.JSON(http.StatusCreated, map[string]interface{}{
		"message":  "Video uploaded successfully",
		"data":     video,
		"uploadId": uploadID,
	})
}

// parseCategoryIDs accepts repeated categoryIds fields, a JSON array or a
// comma separated list.
func parseCategoryIDs(ctx echo.Context) ([]string, error) {
	form, err := ctx.MultipartForm()
	if err != nil {
		return nil, nil
	}

	var ids []string
	for _, value := range form.Value["categoryIds"] {
		value = strings.TrimSpace(value)
		switch {
		case value == "":
		case strings.HasPrefix(value, "["):
			var parsed []string
			if err := json.Unmarshal([]byte(value), &parsed); err != nil {
				return nil, echo.NewHTTPError(http.StatusBadRequest, "categoryIds must be a JSON array of strings")
			}
			ids = append(ids, parsed...)
		default:
			for _, id := range strings.Split(value, ",") {
				if id = strings.TrimSpace(id); id != "" {
					ids = append(ids, id)
				}
			}
		}
	}

	return ids, nil
}

// spooledFile removes itself on Close. Multipart temp files are deleted when
// the request ends, so asynchronous uploads need their own copy.
type spooledFile struct {
	*os.File
}

func (f spooledFile) Close() error {
	err := f.File.Close()
	_ = os.Remove(f.Name())
	return err
}

func (c *VideoController) spool(fh *multipart.FileHeader) (io.ReadCloser, error) {
	src, err := fh.Open()
	if err != nil {
		return nil, errors.Wrap(err, "open uploaded file")
	}
	defer src.Close()

	dst, err := os.CreateTemp(c.spoolDir, "vidhub-upload-*")
	if err != nil {
		return nil, errors.Wrap(err, "create spool file")
	}

	spooled := spooledFile{File: dst}
	if _, err := io.Copy(dst, src); err != nil {
		_ = spooled.Close()
		return nil, errors.Wrap(err, "spool upload")
	}

	if _, err := dst.Seek(0, io.SeekStart); err != nil {
		_ = spooled.Close()
		return nil, err
	}

	return spooled, nil
}

func (c *VideoController) ListVideos(ctx echo.Context) error {
	var req struct {
		Page       int    `query:"page"`
		Limit      int    `query:"limit"`
		Search     string `query:"search"`
		CategoryID string `query:"categoryId"`
		SortBy     string `query:"sortBy"`
		SortOrder  string `query:"sortOrder"`
	}

	if err := ctx.Bind(&req); err != nil {
		return err
	}

	page, err := c.catalog.List(stor.VideoQuery(req))
	if err != nil {
		return err
	}

	return ctx.JSON(http.StatusOK, envelope{Message: "Videos retrieved successfully", Data: page})
}

func (c *VideoController) GetVideo(ctx echo.Context) error {
	video, err := c.catalog.Get(ctx.Param("id"))
	if err != nil {
		return err
	}

	return ctx.JSON(http.StatusOK, envelope{Message: "Video retrieved successfully", Data: video})
}

func (c *VideoController) UpdateVideo(ctx echo.Context) error {
	var req struct {
		Title       *string   `json:"title" validate:"omitempty,min=1,max=255"`
		Description *string   `json:"description"`
		CategoryIDs *[]string `json:"categoryIds"`
	}

	if err := bindAndValidate(ctx, &req); err != nil {
		return err
	}

	if req.Title != nil && strings.TrimSpace(*req.Title) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "Title cannot be empty")
	}

	updates := stor.VideoUpdates{Title: req.Title, Description: req.Description}
	if req.CategoryIDs != nil {
		updates.CategoryIDs = append([]string{}, *req.CategoryIDs...)
	}

	video, err := c.catalog.Update(ctx.Param("id"), updates)
	if err != nil {
		return err
	}

	return ctx.JSON(http.StatusOK, envelope{Message: "Video updated successfully", Data: video})
}

func (c *VideoController) DeleteVideo(ctx echo.Context) error {
	if err := c.catalog.Delete(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return err
	}

	return ctx.JSON(http.StatusOK, envelope{Message: "Video deleted successfully"})
}

func (c *VideoController) BulkDeleteVideos(ctx echo.Context) error {
	var req struct {
		IDs []string `json:"ids" validate:"required,min=1,dive,required"`
	}

	if err := bindAndValidate(ctx, &req); err != nil {
		return err
	}

	deleted, err := c.catalog.BulkDelete(ctx.Request().Context(), req.IDs)
	if err != nil {
		return err
	}

	return ctx.JSON(http.StatusOK, map[string]interface{}{
		"message":      fmt.Sprintf("Successfully deleted %d videos", deleted),
		"deletedCount": deleted,
	})
}
