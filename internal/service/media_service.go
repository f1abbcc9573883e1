package service

import (
	"context"
	"fmt"
	"log/slog"
	"mime"
	"net/http"
	"strings"

	"github.com/traveldairy2025nju/td-backend/internal/models"
	"github.com/traveldairy2025nju/td-backend/internal/observability"
	"github.com/traveldairy2025nju/td-backend/internal/storage"
)

const (
	DefaultImageMaxUploadSizeMB = 5
	VideoMaxUploadSizeMB        = 100
)

// Media kinds accepted for upload.
const (
	MediaImage = "image"
	MediaVideo = "video"
)

var allowedMediaTypes = map[string]string{
	"image/jpeg":      MediaImage,
	"image/png":       MediaImage,
	"image/gif":       MediaImage,
	"image/webp":      MediaImage,
	"video/mp4":       MediaVideo,
	"video/mpeg":      MediaVideo,
	"video/webm":      MediaVideo,
	"video/quicktime": MediaVideo,
}

type UploadMediaInput struct {
	UserID      uint
	Filename    string
	ContentType string
	Content     []byte
}

// UploadResult is the public location of a stored file.
type UploadResult struct {
	URL         string `json:"url"`
	Kind        string `json:"kind"`
	ContentType string `json:"content_type"`
	Size        int    `json:"size"`
}

// MediaService stores entry images and videos in the blob store. Files are
// opaque; only type and size are checked.
type MediaService struct {
	store         storage.BlobStore
	imageMaxBytes int64
	videoMaxBytes int64
}

func NewMediaService(store storage.BlobStore, imageMaxSizeMB int) *MediaService {
	if imageMaxSizeMB <= 0 {
		imageMaxSizeMB = DefaultImageMaxUploadSizeMB
	}
	return &MediaService{
		store:         store,
		imageMaxBytes: int64(imageMaxSizeMB) * 1024 * 1024,
		videoMaxBytes: int64(VideoMaxUploadSizeMB) * 1024 * 1024,
	}
}

// MaxBytes is the largest upload accepted of any kind.
func (s *MediaService) MaxBytes() int64 {
	return max(s.imageMaxBytes, s.videoMaxBytes)
}

func (s *MediaService) Upload(ctx context.Context, in UploadMediaInput) (*UploadResult, error) {
	if in.UserID == 0 {
		return nil, models.NewUnauthorizedError("Authentication required")
	}
	if len(in.Content) == 0 {
		return nil, models.NewValidationError("No file uploaded")
	}
	if s.store == nil {
		return nil, models.NewInternalError(fmt.Errorf("blob store not configured"))
	}

	contentType := detectMediaType(in.Content, in.ContentType)
	kind, ok := allowedMediaTypes[contentType]
	if !ok {
		observability.BlobUploads.WithLabelValues("rejected").Inc()
		return nil, models.NewValidationError("Unsupported file type")
	}

	limit := s.imageMaxBytes
	if kind == MediaVideo {
		limit = s.videoMaxBytes
	}
	if int64(len(in.Content)) > limit {
		observability.BlobUploads.WithLabelValues("rejected").Inc()
		return nil, models.NewValidationError(fmt.Sprintf("File too large (max %dMB)", limit/(1024*1024)))
	}

	url, err := s.store.Upload(ctx, in.Filename, in.Content, contentType)
	if err != nil {
		observability.BlobUploads.WithLabelValues("error").Inc()
		slog.ErrorContext(ctx, "blob upload failed", "user_id", in.UserID, "error", err)
		return nil, models.NewInternalError(err)
	}
	observability.BlobUploads.WithLabelValues("ok").Inc()

	return &UploadResult{
		URL:         url,
		Kind:        kind,
		ContentType: contentType,
		Size:        len(in.Content),
	}, nil
}

// detectMediaType sniffs the content. Containers the sniffer cannot name,
// such as QuickTime, fall back to the declared type.
func detectMediaType(content []byte, declared string) string {
	sniffed := normalizeContentType(http.DetectContentType(content))
	if sniffed != "application/octet-stream" {
		return sniffed
	}
	declared = normalizeContentType(declared)
	if declared == "image/jpg" {
		declared = "image/jpeg"
	}
	if allowedMediaTypes[declared] == MediaVideo {
		return declared
	}
	return sniffed
}

func normalizeContentType(v string) string {
	mediaType, _, err := mime.ParseMediaType(v)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(v))
	}
	return strings.ToLower(mediaType)
}
