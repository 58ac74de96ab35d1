package adapter

import (
	"context"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"cloud.google.com/go/storage"
	"github.com/m-mizutani/goerr/v2"
)

const gcsScheme = "gs://"

// Storage saves and loads named objects such as scenario transcripts
type Storage interface {
	// Put returns a writer; the object is committed on Close
	Put(ctx context.Context, key string) (io.WriteCloser, error)
	// Get opens a stored object
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	// Location describes where key is stored
	Location(key string) string
}

// NewStorage chooses Cloud Storage for a gs://bucket/prefix location and a
// local directory otherwise
func NewStorage(ctx context.Context, location string) (Storage, error) {
	if location == "" {
		return nil, goerr.New("storage location is required")
	}

	if strings.HasPrefix(location, gcsScheme) {
		bucket, prefix, _ := strings.Cut(strings.TrimPrefix(location, gcsScheme), "/")
		return NewCloudStorage(ctx, bucket, prefix)
	}
	return NewLocalStorage(location)
}

// storageClient implements Storage interface using Cloud Storage
type storageClient struct {
	bucketName string
	prefix     string
	client     *storage.Client
}

// NewCloudStorage creates a new Cloud Storage client. Keys are stored under prefix.
func NewCloudStorage(ctx context.Context, bucketName, prefix string) (Storage, error) {
	if bucketName == "" {
		return nil, goerr.New("bucket name is required")
	}

	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create storage client")
	}

	return &storageClient{
		bucketName: bucketName,
		prefix:     strings.Trim(prefix, "/"),
		client:     client,
	}, nil
}

func (s *storageClient) objectName(key string) string {
	if s.prefix == "" {
		return key
	}
	return path.Join(s.prefix, key)
}

func (s *storageClient) Put(ctx context.Context, key string) (io.WriteCloser, error) {
	bucket := s.client.Bucket(s.bucketName)
	obj := bucket.Object(s.objectName(key))
	writer := obj.NewWriter(ctx)
	writer.ContentType = "text/plain; charset=utf-8"
	return writer, nil
}

func (s *storageClient) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	bucket := s.client.Bucket(s.bucketName)
	obj := bucket.Object(s.objectName(key))
	reader, err := obj.NewReader(ctx)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read from storage", goerr.Value("key", key))
	}

	return reader, nil
}

func (s *storageClient) Location(key string) string {
	return gcsScheme + s.bucketName + "/" + s.objectName(key)
}

// localStorage implements Storage interface on a directory
type localStorage struct {
	dir string
}

// NewLocalStorage creates dir if needed and stores objects as files in it
func NewLocalStorage(dir string) (Storage, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, goerr.Wrap(err, "failed to create output directory", goerr.Value("dir", dir))
	}
	return &localStorage{dir: dir}, nil
}

func (s *localStorage) path(key string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(key))
	if clean == "." || filepath.IsAbs(clean) || strings.HasPrefix(clean, "..") {
		return "", goerr.New("invalid storage key", goerr.Value("key", key))
	}
	return filepath.Join(s.dir, clean), nil
}

func (s *localStorage) Put(_ context.Context, key string) (io.WriteCloser, error) {
	p, err := s.path(key)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return nil, goerr.Wrap(err, "failed to create directory", goerr.Value("key", key))
	}

	f, err := os.Create(p)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create file", goerr.Value("key", key))
	}
	return f, nil
}

func (s *localStorage) Get(_ context.Context, key string) (io.ReadCloser, error) {
	p, err := s.path(key)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(p)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read from storage", goerr.Value("key", key))
	}
	return f, nil
}

func (s *localStorage) Location(key string) string {
	p, err := s.path(key)
	if err != nil {
		return filepath.Join(s.dir, key)
	}
	return p
}
