// Package storage archives inbound media to object storage so messages keep
// a durable copy after provider URLs expire.
package storage

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"path"
	"time"

	"leadflow_backend/platform/config"
	"leadflow_backend/platform/logger"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// PresignedURLTTL is the expiration for download links served to operators.
const PresignedURLTTL = 15 * time.Minute

// Archiver copies media from provider URLs into a MinIO bucket. A nil
// archiver is a valid no-op when MinIO is not configured.
type Archiver struct {
	client *minio.Client
	bucket string
	http   *http.Client
	log    *logger.Logger
}

// NewArchiver creates a MinIO-backed media archiver, or nil when disabled.
func NewArchiver(cfg config.MinIOConfig, log *logger.Logger) (*Archiver, error) {
	if !cfg.IsMinIOEnabled() {
		return nil, nil
	}

	client, err := minio.New(cfg.GetMinIOEndpoint(), &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.GetMinIOAccessKey(), cfg.GetMinIOSecretKey(), ""),
		Secure: cfg.GetMinIOUseSSL(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create MinIO client: %w", err)
	}

	return &Archiver{
		client: client,
		bucket: cfg.GetMinioBucketMessageMedia(),
		http:   &http.Client{Timeout: 30 * time.Second},
		log:    log,
	}, nil
}

// EnsureBucket creates the media bucket if it does not exist.
func (a *Archiver) EnsureBucket(ctx context.Context) error {
	if a == nil {
		return nil
	}
	exists, err := a.client.BucketExists(ctx, a.bucket)
	if err != nil {
		return fmt.Errorf("failed to check bucket existence: %w", err)
	}
	if !exists {
		if err := a.client.MakeBucket(ctx, a.bucket, minio.MakeBucketOptions{}); err != nil {
			return fmt.Errorf("failed to create bucket %s: %w", a.bucket, err)
		}
	}
	return nil
}

// ArchiveFromURL fetches the media behind a provider URL and stores it under
// tenant/message scoped keys. Returns the object key, or "" when archiving
// is disabled or the fetch fails (the message keeps the provider URL either way).
func (a *Archiver) ArchiveFromURL(ctx context.Context, tenantID, messageID uuid.UUID, mediaURL string) string {
	if a == nil || mediaURL == "" {
		return ""
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, mediaURL, nil)
	if err != nil {
		a.log.Warn("media archive request build failed", "error", err)
		return ""
	}

	resp, err := a.http.Do(req)
	if err != nil {
		a.log.Warn("media fetch failed", "error", err, "message_id", messageID)
		return ""
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode >= http.StatusBadRequest {
		a.log.Warn("media fetch rejected", "status", resp.StatusCode, "message_id", messageID)
		return ""
	}

	ext := path.Ext(mediaURL)
	key := fmt.Sprintf("%s/%s%s", tenantID, messageID, ext)

	_, err = a.client.PutObject(ctx, a.bucket, key, resp.Body, resp.ContentLength, minio.PutObjectOptions{
		ContentType: resp.Header.Get("Content-Type"),
	})
	if err != nil {
		a.log.Warn("media store failed", "error", err, "message_id", messageID)
		return ""
	}

	return key
}

// DownloadURL returns a presigned link to an archived object.
func (a *Archiver) DownloadURL(ctx context.Context, key string) (string, error) {
	if a == nil {
		return "", fmt.Errorf("media storage is not configured")
	}
	u, err := a.client.PresignedGetObject(ctx, a.bucket, key, PresignedURLTTL, nil)
	if err != nil {
		return "", fmt.Errorf("failed to presign download URL: %w", err)
	}
	return u.String(), nil
}

// Download streams an archived object. Caller closes the reader.
func (a *Archiver) Download(ctx context.Context, key string) (io.ReadCloser, error) {
	if a == nil {
		return nil, fmt.Errorf("media storage is not configured")
	}
	obj, err := a.client.GetObject(ctx, a.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to get object %s: %w", key, err)
	}
	return obj, nil
}
