package blob

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// Config contains connection details for a MinIO-compatible blob store.
type Config struct {
	Endpoint    string // may carry a scheme; stripped before dialing
	AccessKey   string
	SecretKey   string
	Secure      bool
	InsecureTLS bool
	Timeout     time.Duration
}

// Store is a MinIO-backed blob store. Bucket names are normalized
// (lowercased, spaces to hyphens) before every call.
type Store struct {
	client    *minio.Client
	publicURL string
	timeout   time.Duration
}

var schemeRe = regexp.MustCompile(`(?i)^https?://`)

// NewStore creates a blob store client. No connection is dialed here;
// failures surface on the first call.
func NewStore(cfg Config) (*Store, error) {
	// Only host:port is allowed when dialing; drop scheme and path.
	endpoint := schemeRe.ReplaceAllString(cfg.Endpoint, "")
	endpoint = strings.SplitN(endpoint, "/", 2)[0]

	opts := &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.Secure,
	}
	if cfg.InsecureTLS {
		opts.Transport = &http.Transport{TLSClientConfig: &tls.Config{InsecureSkipVerify: true}}
	}
	client, err := minio.New(endpoint, opts)
	if err != nil {
		return nil, fmt.Errorf("create blob store client: %w", err)
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 60 * time.Second
	}
	publicURL := cfg.Endpoint
	if !schemeRe.MatchString(publicURL) {
		scheme := "http"
		if cfg.Secure {
			scheme = "https"
		}
		publicURL = scheme + "://" + publicURL
	}
	return &Store{client: client, publicURL: strings.TrimRight(publicURL, "/"), timeout: timeout}, nil
}

// NormalizeBucketName lowercases a bucket name and replaces spaces with
// hyphens, matching the store's naming rules.
func NormalizeBucketName(name string) string {
	return strings.ReplaceAll(strings.ToLower(name), " ", "-")
}

// SourceURL is the canonical provenance URL for an object.
func (s *Store) SourceURL(bucket, object string) string {
	return fmt.Sprintf("%s/%s/%s", s.publicURL, NormalizeBucketName(bucket), object)
}

// ListBuckets returns all bucket names, normalized.
func (s *Store) ListBuckets() ([]string, error) {
	ctx, cancel := s.callContext()
	defer cancel()
	buckets, err := s.client.ListBuckets(ctx)
	if err != nil {
		return nil, fmt.Errorf("list buckets: %w", err)
	}
	names := make([]string, 0, len(buckets))
	for _, b := range buckets {
		names = append(names, NormalizeBucketName(b.Name))
	}
	return names, nil
}

// ListObjects returns every object name in a bucket, recursively.
func (s *Store) ListObjects(bucket string) ([]string, error) {
	ctx, cancel := s.callContext()
	defer cancel()
	var names []string
	for obj := range s.client.ListObjects(ctx, NormalizeBucketName(bucket), minio.ListObjectsOptions{Recursive: true}) {
		if obj.Err != nil {
			return nil, fmt.Errorf("list objects in %s: %w", bucket, obj.Err)
		}
		names = append(names, obj.Key)
	}
	return names, nil
}

// GetObject downloads an object into memory.
func (s *Store) GetObject(bucket, object string) ([]byte, error) {
	ctx, cancel := s.callContext()
	defer cancel()
	obj, err := s.client.GetObject(ctx, NormalizeBucketName(bucket), object, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("get object %s/%s: %w", bucket, object, err)
	}
	defer obj.Close()
	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, fmt.Errorf("read object %s/%s: %w", bucket, object, err)
	}
	return data, nil
}

// DeleteObject removes an object from a bucket.
func (s *Store) DeleteObject(bucket, object string) error {
	ctx, cancel := s.callContext()
	defer cancel()
	normalized := NormalizeBucketName(bucket)
	object = trimBucketPrefix(normalized, object)
	if err := s.client.RemoveObject(ctx, normalized, object, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("delete object %s/%s: %w", bucket, object, err)
	}
	return nil
}

// CreateBucket makes a bucket unless it already exists.
func (s *Store) CreateBucket(bucket string) error {
	ctx, cancel := s.callContext()
	defer cancel()
	normalized := NormalizeBucketName(bucket)
	exists, err := s.client.BucketExists(ctx, normalized)
	if err != nil {
		return fmt.Errorf("check bucket %s: %w", bucket, err)
	}
	if exists {
		return nil
	}
	if err := s.client.MakeBucket(ctx, normalized, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("create bucket %s: %w", bucket, err)
	}
	return nil
}

// Upload stores an object, creating the bucket if needed.
func (s *Store) Upload(bucket, object string, data []byte) error {
	if err := s.CreateBucket(bucket); err != nil {
		return err
	}
	ctx, cancel := s.callContext()
	defer cancel()
	_, err := s.client.PutObject(ctx, NormalizeBucketName(bucket), object, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{})
	if err != nil {
		return fmt.Errorf("upload object %s/%s: %w", bucket, object, err)
	}
	return nil
}

func (s *Store) callContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), s.timeout)
}

// trimBucketPrefix strips a duplicated bucket prefix from an object name,
// e.g. "docs/file.pdf" inside bucket "docs" becomes "file.pdf".
func trimBucketPrefix(bucket, object string) string {
	return strings.TrimPrefix(object, bucket+"/")
}
