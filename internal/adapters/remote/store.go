package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"

	"github.com/cenkalti/backoff/v4"
	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"go.trai.ch/rbt/internal/core/domain"
	"go.trai.ch/rbt/internal/core/ports"
	"go.trai.ch/zerr"
	"golang.org/x/sync/singleflight"
)

const (
	manifestsPrefix = "manifests"
	artifactsPrefix = "artifacts"
	maxRetries      = 3
)

var _ ports.CacheStore = (*Store)(nil)

// Store is a two-tier cache: a local store backed by a bucket. Remote
// failures are logged and reported as misses.
type Store struct {
	local   ports.CacheStore
	client  ObjectClient
	bucket  string
	prefix  string
	staging string
	logger  ports.Logger
	backoff func() backoff.BackOff
	group   singleflight.Group
}

// Option configures a Store.
type Option func(*Store)

// WithBackOff replaces the retry policy of remote operations.
func WithBackOff(newBackOff func() backoff.BackOff) Option {
	return func(s *Store) {
		s.backoff = newBackOff
	}
}

// NewStore wraps local with the bucket described by cfg. Downloads are
// staged below stagingDir before they are committed to local.
func NewStore(
	local ports.CacheStore,
	client ObjectClient,
	cfg *domain.RemoteCache,
	stagingDir string,
	logger ports.Logger,
	opts ...Option,
) *Store {
	s := &Store{
		local:   local,
		client:  client,
		bucket:  cfg.Bucket,
		prefix:  cfg.Prefix,
		staging: stagingDir,
		logger:  logger,
		backoff: func() backoff.BackOff {
			return backoff.WithMaxRetries(backoff.NewExponentialBackOff(), maxRetries)
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ManifestKey returns the object key of the manifest of fp.
func (s *Store) ManifestKey(fp domain.Fingerprint) string {
	return path.Join(s.prefix, manifestsPrefix, fp.String()+".json")
}

// ArtifactKey returns the object key of the artifact rel of fp.
func (s *Store) ArtifactKey(fp domain.Fingerprint, rel string) string {
	return path.Join(s.prefix, artifactsPrefix, fp.String(), rel)
}

// Get returns the local entry of fp, fetching it from the bucket on a local miss.
func (s *Store) Get(ctx context.Context, fp domain.Fingerprint) (*domain.Outputs, error) {
	out, err := s.local.Get(ctx, fp)
	if err != nil || out != nil {
		return out, err
	}

	v, err, _ := s.group.Do(fp.String(), func() (any, error) {
		// Another caller may have committed the entry while we waited.
		if out, err := s.local.Get(ctx, fp); err != nil || out != nil {
			return out, err
		}
		return s.fetch(ctx, fp)
	})
	if err != nil {
		return nil, err
	}
	out, _ = v.(*domain.Outputs)
	return out, nil
}

// Put commits outputs locally and mirrors the entry to the bucket.
func (s *Store) Put(ctx context.Context, fp domain.Fingerprint, outputs *domain.Outputs) (*domain.Outputs, error) {
	stored, err := s.local.Put(ctx, fp, outputs)
	if err != nil {
		return nil, err
	}

	if err := s.upload(ctx, stored); err != nil {
		s.logger.Warn("failed to upload to remote cache", "fingerprint", fp.String(), "error", err.Error())
	}
	return stored, nil
}

// fetch downloads the entry of fp into a staging directory and commits it
// to the local store. Any remote problem is a miss.
func (s *Store) fetch(ctx context.Context, fp domain.Fingerprint) (*domain.Outputs, error) {
	manifest, found, err := s.fetchManifest(ctx, fp)
	if err != nil {
		s.logger.Warn("remote cache lookup failed", "fingerprint", fp.String(), "error", err.Error())
		return nil, nil
	}
	if !found {
		return nil, nil
	}
	if err := manifest.Validate(); err != nil {
		s.logger.Warn("remote cache manifest rejected", "fingerprint", fp.String(), "error", err.Error())
		return nil, nil
	}

	dir := filepath.Join(s.staging, "remote-"+uuid.NewString())
	defer func() { _ = os.RemoveAll(dir) }()

	for _, a := range manifest.Artifacts {
		target := filepath.Join(dir, filepath.FromSlash(a.Path))
		if err := s.retry(ctx, func() error {
			return s.client.FGetObject(ctx, s.bucket, s.ArtifactKey(fp, a.Path), target, minio.GetObjectOptions{})
		}); err != nil {
			s.logger.Warn("remote cache download failed", "fingerprint", fp.String(), "path", a.Path, "error", err.Error())
			return nil, nil
		}
		if err := verifyArtifact(target, a); err != nil {
			s.logger.Warn("remote cache artifact rejected", "fingerprint", fp.String(), "path", a.Path, "error", err.Error())
			return nil, nil
		}
		if err := os.Chmod(target, os.FileMode(a.Mode)|0o400); err != nil {
			return nil, zerr.With(zerr.Wrap(err, domain.ErrStoreWriteFailed.Error()), "path", target)
		}
	}

	manifest.Dir = dir
	stored, err := s.local.Put(ctx, fp, manifest)
	if err != nil {
		return nil, err
	}
	s.logger.Debug("remote cache hit", "fingerprint", fp.String())
	return stored, nil
}

func (s *Store) fetchManifest(ctx context.Context, fp domain.Fingerprint) (*domain.Outputs, bool, error) {
	if err := os.MkdirAll(s.staging, domain.DirPerm); err != nil {
		return nil, false, zerr.With(zerr.Wrap(err, domain.ErrStoreWriteFailed.Error()), "path", s.staging)
	}
	file := filepath.Join(s.staging, "manifest-"+uuid.NewString()+".json")
	defer func() { _ = os.Remove(file) }()

	found := true
	err := s.retry(ctx, func() error {
		err := s.client.FGetObject(ctx, s.bucket, s.ManifestKey(fp), file, minio.GetObjectOptions{})
		if err != nil && isNotFound(err) {
			found = false
			return nil
		}
		return err
	})
	if err != nil || !found {
		return nil, false, err
	}

	data, err := os.ReadFile(file) //nolint:gosec // Path is generated below the staging directory
	if err != nil {
		return nil, false, zerr.Wrap(err, domain.ErrStoreReadFailed.Error())
	}
	var manifest domain.Outputs
	if err := json.Unmarshal(data, &manifest); err != nil {
		return nil, false, zerr.Wrap(err, domain.ErrStoreReadFailed.Error())
	}
	if manifest.Fingerprint != fp {
		return nil, false, zerr.With(zerr.New("manifest fingerprint mismatch"), "fingerprint", manifest.Fingerprint.String())
	}
	return &manifest, true, nil
}

// upload mirrors artifacts first and the manifest last, so a visible manifest
// always names complete artifacts.
func (s *Store) upload(ctx context.Context, outputs *domain.Outputs) error {
	fp := outputs.Fingerprint
	for _, a := range outputs.Artifacts {
		src := outputs.Path(a.Path)
		if err := s.retry(ctx, func() error {
			_, err := s.client.FPutObject(ctx, s.bucket, s.ArtifactKey(fp, a.Path), src, minio.PutObjectOptions{})
			return err
		}); err != nil {
			return zerr.With(zerr.Wrap(err, domain.ErrRemoteCacheFailed.Error()), "path", a.Path)
		}
	}

	data, err := json.Marshal(outputs)
	if err != nil {
		return zerr.Wrap(err, "failed to marshal cache manifest")
	}
	return s.retry(ctx, func() error {
		_, err := s.client.PutObject(ctx, s.bucket, s.ManifestKey(fp), bytes.NewReader(data), int64(len(data)),
			minio.PutObjectOptions{ContentType: "application/json"})
		if err != nil {
			return zerr.Wrap(err, domain.ErrRemoteCacheFailed.Error())
		}
		return nil
	})
}

func (s *Store) retry(ctx context.Context, op func() error) error {
	return backoff.Retry(func() error {
		if err := ctx.Err(); err != nil {
			return backoff.Permanent(err)
		}
		return op()
	}, backoff.WithContext(s.backoff(), ctx))
}

func verifyArtifact(file string, a domain.Artifact) error {
	f, err := os.Open(file) //nolint:gosec // Path is generated below the staging directory
	if err != nil {
		return err
	}
	defer f.Close() //nolint:errcheck // Best effort close in defer

	digest := xxhash.New()
	n, err := io.Copy(digest, f)
	if err != nil {
		return err
	}
	if got := fmt.Sprintf("%016x", digest.Sum64()); got != a.Digest || n != a.Size {
		return zerr.With(zerr.New("artifact digest mismatch"), "digest", got)
	}
	return nil
}
