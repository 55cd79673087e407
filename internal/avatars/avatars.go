// Package avatars stores player profile pictures on local disk, S3 or GCS.
package avatars

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"

	"github.com/codr1/Courtside/internal/config"
)

var (
	ErrUnsupportedType = errors.New("avatar must be a png, jpeg, gif or webp image")
	ErrTooLarge        = errors.New("avatar is too large")
	ErrEmpty           = errors.New("avatar file is empty")
)

// allowedTypes maps accepted content types to the extension used in keys.
var allowedTypes = map[string]string{
	"image/png":  ".png",
	"image/jpeg": ".jpg",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

// Store persists avatar objects and returns the URL clients load them from.
type Store interface {
	Put(ctx context.Context, key, contentType string, r io.Reader) (string, error)
	Delete(ctx context.Context, key string) error
	// KeyFromURL reports the key of an object this store served, so a
	// replaced avatar can be removed.
	KeyFromURL(url string) (string, bool)
}

// Upload is a validated image ready to store.
type Upload struct {
	Data        []byte
	ContentType string
	Ext         string
}

// Read consumes r, rejecting anything over maxBytes or not an accepted
// image type. The declared content type is ignored; the bytes decide.
func Read(r io.Reader, maxBytes int64) (Upload, error) {
	data, err := io.ReadAll(io.LimitReader(r, maxBytes+1))
	if err != nil {
		return Upload{}, fmt.Errorf("read avatar: %w", err)
	}
	if len(data) == 0 {
		return Upload{}, ErrEmpty
	}
	if int64(len(data)) > maxBytes {
		return Upload{}, ErrTooLarge
	}

	detected := mimetype.Detect(data)
	contentType := detected.String()
	if i := strings.IndexByte(contentType, ';'); i >= 0 {
		contentType = contentType[:i]
	}
	ext, ok := allowedTypes[contentType]
	if !ok {
		return Upload{}, fmt.Errorf("%w: got %s", ErrUnsupportedType, contentType)
	}
	return Upload{Data: data, ContentType: contentType, Ext: ext}, nil
}

// Key names a new avatar object for userID.
func Key(userID, ext string) string {
	return "avatars/" + safeSegment(userID) + "/" + uuid.NewString() + ext
}

// Save stores upload under a fresh key for userID.
func Save(ctx context.Context, store Store, userID string, upload Upload) (string, error) {
	return store.Put(ctx, Key(userID, upload.Ext), upload.ContentType, bytes.NewReader(upload.Data))
}

func safeSegment(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	if b.Len() == 0 {
		return "unknown"
	}
	return b.String()
}

func keyFromURL(prefix, url string) (string, bool) {
	prefix = strings.TrimRight(prefix, "/") + "/"
	if !strings.HasPrefix(url, prefix) {
		return "", false
	}
	key := strings.TrimPrefix(url, prefix)
	if !strings.HasPrefix(key, "avatars/") || strings.Contains(key, "..") {
		return "", false
	}
	return key, true
}

// New builds the store selected in cfg.
func New(ctx context.Context, cfg *config.Config) (Store, error) {
	switch cfg.Avatars.Provider {
	case config.AvatarsLocal:
		return NewLocalStore(cfg.Avatars.Dir, cfg.Avatars.PublicBaseURL)
	case config.AvatarsS3:
		return NewS3Store(ctx, cfg.Avatars.Bucket, cfg.Avatars.Region, cfg.Avatars.PublicBaseURL,
			cfg.Secrets.AWSAccessKeyID, cfg.Secrets.AWSSecretAccessKey)
	case config.AvatarsGCS:
		return NewGCSStore(ctx, cfg.Avatars.Bucket, cfg.Avatars.PublicBaseURL, cfg.Secrets.GCSCredentialsJSON)
	default:
		return nil, fmt.Errorf("unsupported avatars provider: %s", cfg.Avatars.Provider)
	}
}
