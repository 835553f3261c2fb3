// Package remote mirrors the local cache store to S3-compatible object storage.
package remote

import (
	"context"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.trai.ch/rbt/internal/core/domain"
	"go.trai.ch/zerr"
)

// ObjectClient is the subset of the minio client used by the remote tier.
type ObjectClient interface {
	FGetObject(ctx context.Context, bucket, object, filePath string, opts minio.GetObjectOptions) error
	FPutObject(ctx context.Context, bucket, object, filePath string, opts minio.PutObjectOptions) (minio.UploadInfo, error)
	PutObject(
		ctx context.Context, bucket, object string, reader io.Reader, size int64, opts minio.PutObjectOptions,
	) (minio.UploadInfo, error)
}

// BucketChecker reports whether a bucket exists.
type BucketChecker interface {
	BucketExists(ctx context.Context, bucket string) (bool, error)
}

// checkTimeout bounds the reachability check done before a build uses the tier.
const checkTimeout = 5 * time.Second

// CheckBucket verifies once that the endpoint answers and bucket exists.
func CheckBucket(ctx context.Context, client BucketChecker, bucket string) error {
	ctx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()

	exists, err := client.BucketExists(ctx, bucket)
	if err != nil {
		return zerr.With(zerr.Wrap(err, domain.ErrRemoteCacheFailed.Error()), "bucket", bucket)
	}
	if !exists {
		return zerr.With(zerr.Wrap(domain.ErrRemoteCacheFailed, "bucket does not exist"), "bucket", bucket)
	}
	return nil
}

// NewMinioClient creates a client for the endpoint described by cfg. It does
// not dial; use CheckBucket to verify the endpoint.
func NewMinioClient(cfg *domain.RemoteCache) (*minio.Client, error) {
	if !cfg.Enabled() {
		return nil, zerr.Wrap(domain.ErrInvalidConfig, "remote cache requires an endpoint and a bucket")
	}

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:     credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure:    cfg.UseSSL,
		Region:    cfg.Region,
		Transport: newTransport(),
	})
	if err != nil {
		return nil, zerr.With(zerr.Wrap(err, domain.ErrRemoteCacheFailed.Error()), "endpoint", cfg.Endpoint)
	}
	return client, nil
}

func newTransport() *http.Transport {
	dialer := &net.Dialer{
		Timeout:   5 * time.Second,
		KeepAlive: 30 * time.Second,
	}
	return &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           dialer.DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   5 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
}

func isNotFound(err error) bool {
	code := minio.ToErrorResponse(err).Code
	return code == "NoSuchKey" || code == "NoSuchBucket"
}
