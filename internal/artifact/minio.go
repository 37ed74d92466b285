package artifact

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"sync"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/jonathan/boot-release/internal/types"
)

// MinioConfig holds connection settings for an S3-compatible bucket
type MinioConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Prefix    string // Run-scoped key prefix, e.g. "runs/<run-id>"
	UseSSL    bool
}

// objectClient is the subset of *minio.Client used by MinioStore
type objectClient interface {
	StatObject(ctx context.Context, bucket, object string, opts minio.StatObjectOptions) (minio.ObjectInfo, error)
	PutObject(ctx context.Context, bucket, object string, reader io.Reader, size int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
	GetObject(ctx context.Context, bucket, object string, opts minio.GetObjectOptions) (*minio.Object, error)
	ListObjects(ctx context.Context, bucket string, opts minio.ListObjectsOptions) <-chan minio.ObjectInfo
	BucketExists(ctx context.Context, bucket string) (bool, error)
	MakeBucket(ctx context.Context, bucket string, opts minio.MakeBucketOptions) error
}

// MinioStore keeps artifacts as objects under a prefix in an S3-compatible bucket
type MinioStore struct {
	client objectClient
	bucket string
	prefix string

	// serializes the stat-then-put sequence so two writers in this process
	// can't both observe a missing key
	mu sync.Mutex
}

// NewMinioStore connects to the endpoint and ensures the bucket exists
func NewMinioStore(ctx context.Context, cfg MinioConfig) (*MinioStore, error) {
	// Endpoints are host[:port]; tolerate a scheme in configuration
	endpoint := cfg.Endpoint
	if i := strings.Index(endpoint, "://"); i >= 0 {
		if strings.HasPrefix(endpoint, "https://") {
			cfg.UseSSL = true
		}
		endpoint = endpoint[i+3:]
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, &StoreError{Message: fmt.Sprintf("failed to create minio client for %s", endpoint), Cause: err}
	}

	return newMinioStore(ctx, client, cfg.Bucket, cfg.Prefix)
}

func newMinioStore(ctx context.Context, client objectClient, bucket, prefix string) (*MinioStore, error) {
	exists, err := client.BucketExists(ctx, bucket)
	if err != nil {
		return nil, &StoreError{Message: fmt.Sprintf("failed to check bucket %s", bucket), Cause: err}
	}
	if !exists {
		if err := client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, &StoreError{Message: fmt.Sprintf("failed to create bucket %s", bucket), Cause: err}
		}
	}

	return &MinioStore{
		client: client,
		bucket: bucket,
		prefix: strings.Trim(prefix, "/"),
	}, nil
}

func (s *MinioStore) objectName(key string) string {
	if s.prefix == "" {
		return key
	}
	return path.Join(s.prefix, key)
}

func (s *MinioStore) keyFromObject(name string) string {
	if s.prefix == "" {
		return name
	}
	return strings.TrimPrefix(name, s.prefix+"/")
}

func isNoSuchKey(err error) bool {
	code := minio.ToErrorResponse(err).Code
	return code == "NoSuchKey" || code == "NotFound"
}

// Put implements Store
func (s *MinioStore) Put(ctx context.Context, key string, data []byte) error {
	if err := checkKey(key); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	object := s.objectName(key)
	if _, err := s.client.StatObject(ctx, s.bucket, object, minio.StatObjectOptions{}); err == nil {
		return &DuplicateKeyError{Key: key}
	} else if !isNoSuchKey(err) {
		return &StoreError{Message: fmt.Sprintf("failed to stat %s", object), Cause: err}
	}

	_, err := s.client.PutObject(ctx, s.bucket, object, bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: "application/octet-stream"})
	if err != nil {
		return &StoreError{Message: fmt.Sprintf("failed to upload %s", object), Cause: err}
	}
	return nil
}

// Get implements Store
func (s *MinioStore) Get(ctx context.Context, key string) ([]byte, error) {
	object := s.objectName(key)
	obj, err := s.client.GetObject(ctx, s.bucket, object, minio.GetObjectOptions{})
	if err != nil {
		if isNoSuchKey(err) {
			return nil, &NotFoundError{Key: key}
		}
		return nil, &StoreError{Message: fmt.Sprintf("failed to get %s", object), Cause: err}
	}
	defer func() {
		_ = obj.Close()
	}()

	// GetObject is lazy; a missing key surfaces on first read
	data, err := io.ReadAll(obj)
	if err != nil {
		if isNoSuchKey(err) {
			return nil, &NotFoundError{Key: key}
		}
		return nil, &StoreError{Message: fmt.Sprintf("failed to read %s", object), Cause: err}
	}
	return data, nil
}

// List implements Store
func (s *MinioStore) List(ctx context.Context) ([]types.Artifact, error) {
	opts := minio.ListObjectsOptions{Recursive: true}
	if s.prefix != "" {
		opts.Prefix = s.prefix + "/"
	}

	// Cancelling stops the lister goroutine if we return early
	listCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var keys []string
	for info := range s.client.ListObjects(listCtx, s.bucket, opts) {
		if info.Err != nil {
			return nil, &StoreError{Message: "failed to list objects", Cause: info.Err}
		}
		keys = append(keys, s.keyFromObject(info.Key))
	}

	list := make([]types.Artifact, 0, len(keys))
	for _, key := range keys {
		data, err := s.Get(ctx, key)
		if err != nil {
			return nil, err
		}
		list = append(list, types.NewArtifact(key, data))
	}
	sortArtifacts(list)
	return list, nil
}
