package service

import (
	"context"
	"fmt"
	"log/slog"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"dailyshot/internal/middleware"
	"dailyshot/internal/models"
	"dailyshot/internal/validation"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
)

// DefaultUploadMaxSizeMB applies when the configured limit is not positive.
const DefaultUploadMaxSizeMB = 10

var imageExtensions = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

// UploadService stores submitted photos on local disk and hands back the public path
// used as a post's image reference.
type UploadService struct {
	dir          string
	maxSizeBytes int64
}

type UploadImageInput struct {
	UserID      uint
	Filename    string
	ContentType string
	Content     []byte
}

// Upload is the stored file's public location.
type Upload struct {
	URL       string `json:"url"`
	MimeType  string `json:"mime_type"`
	SizeBytes int64  `json:"size_bytes"`
}

func NewUploadService(dir string, maxSizeMB int) *UploadService {
	if maxSizeMB <= 0 {
		maxSizeMB = DefaultUploadMaxSizeMB
	}
	return &UploadService{dir: dir, maxSizeBytes: int64(maxSizeMB) * 1024 * 1024}
}

// MaxSizeBytes is the largest accepted upload.
func (s *UploadService) MaxSizeBytes() int64 {
	return s.maxSizeBytes
}

// Dir is where uploads are written.
func (s *UploadService) Dir() string {
	return s.dir
}

func (s *UploadService) Upload(ctx context.Context, in UploadImageInput) (*Upload, error) {
	if in.UserID == 0 {
		return nil, models.NewUnauthorizedError("Authorization required")
	}
	if len(in.Content) == 0 {
		return nil, models.NewValidationError("No file uploaded")
	}
	if int64(len(in.Content)) > s.maxSizeBytes {
		return nil, models.NewValidationError(fmt.Sprintf("File too large (max %dMB)", s.maxSizeBytes/(1024*1024)))
	}

	detected := mimetype.Detect(in.Content).String()
	if i := strings.IndexByte(detected, ';'); i >= 0 {
		detected = detected[:i]
	}
	ext, ok := imageExtensions[detected]
	if !ok {
		return nil, models.NewValidationError("Invalid image type")
	}
	if provided := normalizeContentType(in.ContentType); strings.HasPrefix(provided, "image/") && provided != detected {
		return nil, models.NewValidationError("Image content type mismatch")
	}

	name := uuid.NewString() + ext
	if err := os.MkdirAll(s.dir, 0o750); err != nil {
		return nil, models.NewInternalError(err)
	}
	if err := os.WriteFile(filepath.Join(s.dir, name), in.Content, 0o600); err != nil {
		return nil, models.NewInternalError(err)
	}

	middleware.Logger.InfoContext(ctx, "image uploaded",
		slog.Uint64("user_id", uint64(in.UserID)),
		slog.String("file", name),
		slog.Int("size", len(in.Content)),
	)

	return &Upload{
		URL:       validation.UploadPrefix + name,
		MimeType:  detected,
		SizeBytes: int64(len(in.Content)),
	}, nil
}

func normalizeContentType(contentType string) string {
	if contentType == "" {
		return ""
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mediaType = contentType
	}
	mediaType = strings.ToLower(strings.TrimSpace(mediaType))
	if mediaType == "image/jpg" {
		return "image/jpeg"
	}
	return mediaType
}
