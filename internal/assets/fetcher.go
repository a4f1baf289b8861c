// Package assets resolves a track's audio source to bytes. Sources may be
// http(s) URLs, s3://bucket/key objects, file:// URLs or plain paths.
package assets

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// DefaultMaxSize matches the server's per-file upload limit.
const DefaultMaxSize = 10 << 20

var (
	ErrTooLarge          = errors.New("asset exceeds size limit")
	ErrNoObjectStore     = errors.New("s3 source requires an object store")
	ErrUnsupportedScheme = errors.New("unsupported asset scheme")
)

// ObjectStore reads whole objects from a bucket.
type ObjectStore interface {
	GetObjectBytes(ctx context.Context, bucket, key string, limit int64) ([]byte, error)
}

type Fetcher struct {
	HTTP *http.Client
	// BaseURL resolves scheme-less sources over HTTP when set; otherwise
	// they are read from disk relative to Root.
	BaseURL string
	Root    string
	Objects ObjectStore
	MaxSize int64
}

func (f *Fetcher) limit() int64 {
	if f.MaxSize > 0 {
		return f.MaxSize
	}
	return DefaultMaxSize
}

func (f *Fetcher) Fetch(ctx context.Context, source string) ([]byte, error) {
	u, err := url.Parse(source)
	if err != nil {
		return nil, fmt.Errorf("parsing source %q: %w", source, err)
	}

	switch u.Scheme {
	case "http", "https":
		return f.fetchHTTP(ctx, source)
	case "s3":
		if f.Objects == nil {
			return nil, ErrNoObjectStore
		}
		key := strings.TrimPrefix(u.Path, "/")
		return f.Objects.GetObjectBytes(ctx, u.Host, key, f.limit())
	case "file":
		return f.readFile(u.Path)
	case "":
		if f.BaseURL != "" {
			base, err := url.Parse(f.BaseURL)
			if err != nil {
				return nil, fmt.Errorf("parsing base url: %w", err)
			}
			return f.fetchHTTP(ctx, base.ResolveReference(u).String())
		}
		path := source
		if !filepath.IsAbs(path) && f.Root != "" {
			path = filepath.Join(f.Root, path)
		}
		return f.readFile(path)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedScheme, u.Scheme)
	}
}

func (f *Fetcher) fetchHTTP(ctx context.Context, src string) ([]byte, error) {
	client := f.HTTP
	if client == nil {
		client = http.DefaultClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src, nil)
	if err != nil {
		return nil, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", src, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetching %s: unexpected status %s", src, resp.Status)
	}
	return readLimited(resp.Body, f.limit())
}

func (f *Fetcher) readFile(path string) ([]byte, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	return readLimited(file, f.limit())
}

func readLimited(r io.Reader, limit int64) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > limit {
		return nil, ErrTooLarge
	}
	return data, nil
}

// MinioConfig describes an S3-compatible endpoint.
type MinioConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Region    string
	UseSSL    bool
}

// MinioStore serves s3:// sources from MinIO or any S3-compatible store.
type MinioStore struct {
	client *minio.Client
}

func NewMinioStore(cfg MinioConfig) (*MinioStore, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("creating minio client: %w", err)
	}
	return &MinioStore{client: client}, nil
}

func (m *MinioStore) GetObjectBytes(ctx context.Context, bucket, key string, limit int64) ([]byte, error) {
	obj, err := m.client.GetObject(ctx, bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("getting s3://%s/%s: %w", bucket, key, err)
	}
	defer obj.Close()

	data, err := readLimited(obj, limit)
	if err != nil {
		return nil, fmt.Errorf("reading s3://%s/%s: %w", bucket, key, err)
	}
	return data, nil
}
