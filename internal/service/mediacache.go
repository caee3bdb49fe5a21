package service

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"mime"
	"path"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/vinialveslopesanjos/sentimenta/internal/storage"
)

// MediaCacher stores a copy of remote post media and returns a stable URL.
// Implementations must be best-effort: ingestion never fails on media errors.
type MediaCacher interface {
	CacheURL(ctx context.Context, url string) (string, error)
}

// MediaCacheService downloads post media and stores it in object storage,
// keyed by the content URL hash so repeated ingests reuse the stored copy.
type MediaCacheService struct {
	client  *resty.Client
	storage storage.ObjectStorage
}

// NewMediaCacheService creates a new media cache service.
// Parameters:
//   - objectStorage: destination storage for cached media.
//
// Returns:
//   - *MediaCacheService: initialized service.
func NewMediaCacheService(objectStorage storage.ObjectStorage) *MediaCacheService {
	client := resty.New()
	client.SetTimeout(20 * time.Second)
	client.SetHeader("User-Agent",
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/125.0.0.0 Safari/537.36")
	return &MediaCacheService{
		client:  client,
		storage: objectStorage,
	}
}

// CacheURL downloads the media at url and uploads it to object storage,
// returning the public URL of the stored copy. An already-cached URL is
// served from storage without re-downloading.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - url: remote media URL.
//
// Returns:
//   - string: URL of the cached copy.
//   - error: non-nil when the media cannot be cached; callers treat this as
//     a skip, not a failure.
func (s *MediaCacheService) CacheURL(ctx context.Context, url string) (string, error) {
	if url == "" || (!strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://")) {
		return "", fmt.Errorf("not a cacheable URL")
	}

	sum := sha256.Sum256([]byte(url))
	key := hex.EncodeToString(sum[:])

	resp, err := s.client.R().SetContext(ctx).Get(url)
	if err != nil {
		return "", fmt.Errorf("failed to download media: %w", err)
	}
	if resp.StatusCode() != 200 {
		return "", fmt.Errorf("media download returned HTTP %d", resp.StatusCode())
	}

	contentType := resp.Header().Get("Content-Type")
	if !strings.HasPrefix(contentType, "image/") {
		return "", fmt.Errorf("unsupported media content type %q", contentType)
	}

	ext := extensionFor(contentType, url)
	storageKey := fmt.Sprintf("%s/%s%s", key[:2], key, ext)

	exists, err := s.storage.Exists(ctx, storageKey)
	if err != nil {
		return "", fmt.Errorf("failed to check media cache: %w", err)
	}
	if !exists {
		body := resp.Body()
		if err := s.storage.Upload(ctx, storageKey, bytes.NewReader(body), int64(len(body)), contentType); err != nil {
			return "", fmt.Errorf("failed to store media: %w", err)
		}
	}

	return s.storage.GetURL(storageKey), nil
}

// extensionFor picks a file extension from the content type, falling back to
// the URL path and finally .jpg.
func extensionFor(contentType, url string) string {
	if contentType != "" {
		exts, err := mime.ExtensionsByType(strings.TrimSpace(strings.Split(contentType, ";")[0]))
		if err == nil && len(exts) > 0 {
			return exts[0]
		}
	}
	ext := strings.ToLower(path.Ext(strings.Split(url, "?")[0]))
	switch ext {
	case ".jpg", ".jpeg", ".png", ".webp", ".gif":
		return ext
	}
	return ".jpg"
}
