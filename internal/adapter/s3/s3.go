// Package s3 reads archived GLOBE API payloads from S3-compatible storage.
package s3

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
	"github.com/couchcryptid/globe-observer-qa/internal/domain"
	"github.com/couchcryptid/globe-observer-qa/internal/observability"
)

// Source serves a single s3://bucket/key object as the observation payload.
type Source struct {
	uri        string
	downloader *s3manager.Downloader
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// NewSession returns an AWS session for region using the default credential chain.
func NewSession(region string) (*session.Session, error) {
	sess, err := session.NewSession(&aws.Config{Region: aws.String(region)})
	if err != nil {
		return nil, fmt.Errorf("create aws session: %w", err)
	}
	return sess, nil
}

// NewSource creates a Source reading uri through sess.
func NewSource(sess *session.Session, uri string, metrics *observability.Metrics, logger *slog.Logger) *Source {
	return newSourceWithClient(s3.New(sess), uri, metrics, logger)
}

func newSourceWithClient(client s3iface.S3API, uri string, metrics *observability.Metrics, logger *slog.Logger) *Source {
	return &Source{
		uri:        uri,
		downloader: s3manager.NewDownloaderWithClient(client),
		metrics:    metrics,
		logger:     logger,
	}
}

// IsURI reports whether path names an S3 object.
func IsURI(path string) bool {
	return strings.HasPrefix(path, "s3://")
}

// Name identifies the source in logs and metrics.
func (s *Source) Name() string { return "s3" }

// Fetch downloads the object. The archive already holds one fetch window, so
// w is not used to select data.
func (s *Source) Fetch(ctx context.Context, _ domain.Window) ([]byte, error) {
	bucket, key, err := getBucketAndKey(s.uri)
	if err != nil {
		s.metrics.FetchRequests.WithLabelValues(s.Name(), "error").Inc()
		return nil, err
	}

	buf := aws.NewWriteAtBuffer(nil)
	n, err := s.downloader.DownloadWithContext(ctx, buf, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		s.metrics.FetchRequests.WithLabelValues(s.Name(), "error").Inc()
		return nil, fmt.Errorf("download %s: %w", s.uri, err)
	}

	s.metrics.FetchRequests.WithLabelValues(s.Name(), "success").Inc()
	s.logger.Info("downloaded archived payload", "uri", s.uri, "bytes", n)
	return buf.Bytes(), nil
}

func getBucketAndKey(uri string) (bucket, key string, err error) {
	u, err := url.Parse(uri)
	if err != nil {
		return "", "", fmt.Errorf("parse s3 uri: %w", err)
	}
	if u.Scheme != "s3" || u.Hostname() == "" || strings.TrimPrefix(u.Path, "/") == "" {
		return "", "", fmt.Errorf("invalid s3 uri %q: want s3://bucket/key", uri)
	}
	return u.Hostname(), strings.TrimPrefix(u.Path, "/"), nil
}
