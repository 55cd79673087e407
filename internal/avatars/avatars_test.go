package avatars

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

var (
	pngBytes = append([]byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR"), make([]byte, 32)...)
	gifBytes = append([]byte("GIF89a"), make([]byte, 32)...)
)

func TestRead(t *testing.T) {
	tests := []struct {
		name     string
		data     []byte
		max      int64
		wantType string
		wantExt  string
		wantErr  error
	}{
		{"png", pngBytes, 1024, "image/png", ".png", nil},
		{"gif", gifBytes, 1024, "image/gif", ".gif", nil},
		{"text", []byte("hello, this is not an image"), 1024, "", "", ErrUnsupportedType},
		{"empty", nil, 1024, "", "", ErrEmpty},
		{"too large", pngBytes, 10, "", "", ErrTooLarge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			upload, err := Read(bytes.NewReader(tt.data), tt.max)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("expected %v, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("read: %v", err)
			}
			if upload.ContentType != tt.wantType || upload.Ext != tt.wantExt {
				t.Fatalf("got %s %s, want %s %s", upload.ContentType, upload.Ext, tt.wantType, tt.wantExt)
			}
		})
	}
}

func TestKeySanitizesUserID(t *testing.T) {
	key := Key("../evil/user", ".png")
	if !strings.HasPrefix(key, "avatars/___evil_user/") || !strings.HasSuffix(key, ".png") {
		t.Fatalf("unexpected key: %q", key)
	}
}

func TestLocalStore(t *testing.T) {
	dir := t.TempDir()
	store, err := NewLocalStore(dir, "")
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	ctx := context.Background()

	upload, err := Read(bytes.NewReader(pngBytes), 1024)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	url, err := Save(ctx, store, "user-1", upload)
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if !strings.HasPrefix(url, "/uploads/avatars/user-1/") {
		t.Fatalf("unexpected url: %q", url)
	}

	key, ok := store.KeyFromURL(url)
	if !ok {
		t.Fatalf("expected key for %q", url)
	}
	stored, err := os.ReadFile(filepath.Join(dir, filepath.FromSlash(key)))
	if err != nil {
		t.Fatalf("read stored file: %v", err)
	}
	if !bytes.Equal(stored, pngBytes) {
		t.Fatal("stored bytes differ")
	}

	if err := store.Delete(ctx, key); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, filepath.FromSlash(key))); !os.IsNotExist(err) {
		t.Fatalf("expected file removed, got %v", err)
	}
	if err := store.Delete(ctx, key); err != nil {
		t.Fatalf("second delete should be a no-op: %v", err)
	}

	if _, err := store.Put(ctx, "../outside.png", "image/png", bytes.NewReader(pngBytes)); err == nil {
		t.Fatal("expected error for key escaping the directory")
	}
	if _, ok := store.KeyFromURL("https://elsewhere.example.com/a.png"); ok {
		t.Fatal("expected foreign url to have no key")
	}
}

type fakeS3 struct {
	put     *s3.PutObjectInput
	body    []byte
	deleted string
}

func (f *fakeS3) PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.put = in
	body, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.body = body
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	f.deleted = aws.ToString(in.Key)
	return &s3.DeleteObjectOutput{}, nil
}

func TestS3Store(t *testing.T) {
	fake := &fakeS3{}
	store := &S3Store{client: fake, bucket: "league-avatars", baseURL: "https://cdn.example.com"}
	ctx := context.Background()

	url, err := store.Put(ctx, "avatars/u/1.png", "image/png", bytes.NewReader(pngBytes))
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if url != "https://cdn.example.com/avatars/u/1.png" {
		t.Fatalf("unexpected url: %q", url)
	}
	if aws.ToString(fake.put.Bucket) != "league-avatars" || aws.ToString(fake.put.ContentType) != "image/png" {
		t.Fatalf("unexpected put input: %+v", fake.put)
	}
	if !bytes.Equal(fake.body, pngBytes) {
		t.Fatal("uploaded body differs")
	}

	key, ok := store.KeyFromURL(url)
	if !ok || key != "avatars/u/1.png" {
		t.Fatalf("unexpected key %q ok=%v", key, ok)
	}
	if err := store.Delete(ctx, key); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if fake.deleted != key {
		t.Fatalf("expected %q deleted, got %q", key, fake.deleted)
	}
}
