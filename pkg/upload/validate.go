package upload

import (
	"path/filepath"
	"regexp"
	"strings"
)

const DefaultMaxBytes = 100 * 1024 * 1024

var allowedMIMETypes = map[string]bool{
	"video/mp4":       true,
	"video/avi":       true,
	"video/mov":       true,
	"video/wmv":       true,
	"video/flv":       true,
	"video/webm":      true,
	"video/mkv":       true,
	"video/quicktime": true,
	"video/x-msvideo": true,
}

var allowedExtensions = regexp.MustCompile(`(?i)^\.(mp4|mov|avi|mkv|wmv|flv|webm)$`)

// IsVideoFile accepts a file when either its declared media type or its
// extension is on the allow list.
func IsVideoFile(filename, contentType string) bool {
	mediaType := strings.ToLower(strings.TrimSpace(strings.Split(contentType, ";")[0]))
	if allowedMIMETypes[mediaType] {
		return true
	}

	return allowedExtensions.MatchString(filepath.Ext(filename))
}

func (s *Service) validate(req *Request) error {
	switch {
	case req.Body == nil:
		return invalidInput("No video file uploaded")
	case req.Size <= 0:
		return invalidInput("File buffer is empty or invalid")
	case req.Size > s.opts.MaxBytes:
		return invalidInput("File size exceeds maximum limit of %dMB", s.opts.MaxBytes/1024/1024)
	case !IsVideoFile(req.Filename, req.ContentType):
		return invalidInput("Invalid file type. Only video files are allowed. Received: %s", req.ContentType)
	case strings.TrimSpace(req.Title) == "":
		return invalidInput("Title is required")
	}

	if len(req.CategoryIDs) == 0 || s.categories == nil {
		return nil
	}

	missing, err := s.categories.MissingCategoryIDs(req.CategoryIDs)
	if err != nil {
		return persistenceFailed(err)
	}

	if len(missing) != 0 {
		return invalidInput("Unknown category ids: %s", strings.Join(missing, ", "))
	}

	return nil
}
