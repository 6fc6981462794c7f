package archive

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"golang.org/x/time/rate"

	appconfig "marketarc/config"
	"marketarc/logger"
)

// ErrNotFound reports that a key does not exist in the archive. It covers
// every absence condition of the remote tier so the orchestrator can collapse
// them into a single not-found outcome.
var ErrNotFound = errors.New("not found in archive")

// Span is an inclusive byte range within a bulk object. End < 0 means the
// range is open-ended.
type Span struct {
	Start int64
	End   int64
}

func (s Span) rangeHeader() string {
	if s.End < 0 {
		return "bytes=" + strconv.FormatInt(s.Start, 10) + "-"
	}
	return "bytes=" + strconv.FormatInt(s.Start, 10) + "-" + strconv.FormatInt(s.End, 10)
}

// Store fetches archive objects by day-partitioned key, whole or by byte
// range. Both backends resolve the same key space.
type Store interface {
	Fetch(ctx context.Context, key string) ([]byte, error)
	FetchRange(ctx context.Context, key string, span Span) ([]byte, error)
}

type httpStore struct {
	root    string
	client  *http.Client
	limiter *rate.Limiter
	log     *logger.Log
}

func newHTTPStore(cfg appconfig.ArchiveConfig) *httpStore {
	return &httpStore{
		root: strings.TrimSuffix(cfg.Root, "/"),
		client: &http.Client{
			Timeout: cfg.Timeout,
		},
		limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.Burst),
		log:     logger.GetLogger(),
	}
}

func (s *httpStore) Fetch(ctx context.Context, key string) ([]byte, error) {
	return s.get(ctx, key, "")
}

func (s *httpStore) FetchRange(ctx context.Context, key string, span Span) ([]byte, error) {
	return s.get(ctx, key, span.rangeHeader())
}

func (s *httpStore) get(ctx context.Context, key, rangeHeader string) ([]byte, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("archive rate limit: %w", err)
	}

	url := s.root + "/" + key
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build archive request: %w", err)
	}
	if rangeHeader != "" {
		req.Header.Set("Range", rangeHeader)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, ErrNotFound
	case resp.StatusCode >= 300:
		return nil, fmt.Errorf("fetch %s: unexpected status %s", url, resp.Status)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", url, err)
	}

	s.log.WithComponent("archive_store").WithFields(logger.Fields{
		"key":   key,
		"range": rangeHeader,
		"bytes": len(body),
	}).Debug("fetched archive object")
	logger.IncrementArchiveFetch(len(body))

	return body, nil
}

type s3Store struct {
	client *s3.Client
	bucket string
	prefix string
	log    *logger.Log
}

func newS3Store(ctx context.Context, cfg appconfig.S3Config) (*s3Store, error) {
	loadOpts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS configuration: %w", err)
	}

	return &s3Store{
		client: s3.NewFromConfig(awsCfg),
		bucket: cfg.Bucket,
		prefix: strings.Trim(cfg.Prefix, "/"),
		log:    logger.GetLogger(),
	}, nil
}

func (s *s3Store) Fetch(ctx context.Context, key string) ([]byte, error) {
	return s.get(ctx, key, nil)
}

func (s *s3Store) FetchRange(ctx context.Context, key string, span Span) ([]byte, error) {
	header := span.rangeHeader()
	return s.get(ctx, key, &header)
}

func (s *s3Store) get(ctx context.Context, key string, rangeHeader *string) ([]byte, error) {
	objectKey := key
	if s.prefix != "" {
		objectKey = s.prefix + "/" + key
	}

	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(objectKey),
		Range:  rangeHeader,
	})
	if err != nil {
		var noKey *s3types.NoSuchKey
		if errors.As(err, &noKey) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("fetch s3://%s/%s: %w", s.bucket, objectKey, err)
	}
	defer out.Body.Close()

	body, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("read s3://%s/%s: %w", s.bucket, objectKey, err)
	}

	s.log.WithComponent("archive_store").WithFields(logger.Fields{
		"key":   objectKey,
		"bytes": len(body),
	}).Debug("fetched archive object")
	logger.IncrementArchiveFetch(len(body))

	return body, nil
}
