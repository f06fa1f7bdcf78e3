// Package imagestore resolves an attachment reference ("img" list entry:
// {id, name, coll}) to a browsable URL. It is narrowed to the one read
// path the federator's attachment records need: URL resolution plus an
// existence check, backed by either pass-through collection settings or this
// service's own S3-compatible object store.
package imagestore

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awscfg "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/oit-uog/solr-federator/config"
	"github.com/oit-uog/solr-federator/internal/backend"
)

// Store resolves attachment URLs, optionally proxying them through this
// service's own S3-compatible object store instead of the upstream's.
type Store struct {
	client  *s3.Client
	presign *s3.PresignClient
	bucket  string
	ttl     time.Duration
}

// New builds a Store. When S3_BUCKET isn't configured, every resolution
// falls back to pass-through (the collection's own imageBaseUrl), matching
// the original's behaviour exactly.
func New(ctx context.Context) (*Store, error) {
	bucket := config.S3Bucket()
	if bucket == "" {
		return &Store{}, nil
	}

	opts := []func(*awscfg.LoadOptions) error{
		awscfg.WithRegion(config.S3Region()),
	}
	if key, secret := config.S3Key(), config.S3Secret(); key != "" && secret != "" {
		opts = append(opts, awscfg.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(key, secret, ""),
		))
	}

	cfg, err := awscfg.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("imagestore: load aws config: %w", err)
	}

	clientOpts := []func(*s3.Options){}
	if endpoint := config.S3Endpoint(); endpoint != "" {
		clientOpts = append(clientOpts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(endpoint)
			o.UsePathStyle = true
		})
	}

	client := s3.NewFromConfig(cfg, clientOpts...)
	return &Store{
		client:  client,
		presign: s3.NewPresignClient(client),
		bucket:  bucket,
		ttl:     15 * time.Minute,
	}, nil
}

// Enabled reports whether this service's own object store is configured;
// when false, Resolve always falls back to pass-through.
func (s *Store) Enabled() bool { return s.client != nil }

// key is the S3 object key an attachment is proxied under: collection/id,
// matching how attachments are addressed upstream.
func key(att backend.Attachment) string {
	return att.Coll + "/" + strconv.Itoa(att.ID)
}

// Resolve returns a browsable URL for att. If this service's own object
// store is configured and holds the object, a presigned GET URL is
// returned; otherwise the URL is built by prefixing baseImageURL
// (Settings.ImageBaseURL for att's collection), matching the Python
// original's pass-through behaviour.
func (s *Store) Resolve(ctx context.Context, att backend.Attachment, baseImageURL string) (string, error) {
	if s.Enabled() {
		if ok, err := s.exists(ctx, key(att)); err == nil && ok {
			return s.presignedURL(ctx, key(att))
		}
	}
	return strings.TrimRight(baseImageURL, "/") + "/" + att.Name, nil
}

// PublicURL resolves the object key coll/id (as advertised by BaseURL) to a
// presigned GET URL, or "" if the object isn't present in this service's
// own store. Used by the /images proxy route.
func (s *Store) PublicURL(ctx context.Context, coll, id string) string {
	if !s.Enabled() {
		return ""
	}
	objectKey := coll + "/" + id
	if ok, err := s.exists(ctx, objectKey); err != nil || !ok {
		return ""
	}
	url, err := s.presignedURL(ctx, objectKey)
	if err != nil {
		return ""
	}
	return url
}

// BaseURL returns the imageBaseUrl a collection's Settings should advertise:
// this service's own proxy prefix for coll when an object store is
// configured, or upstreamBaseURL unchanged otherwise. Under the proxy
// prefix, an object missing from this service's own store gets no URL from
// PublicURL; only Resolve falls back to the upstream URL.
func (s *Store) BaseURL(coll, upstreamBaseURL string) string {
	if !s.Enabled() {
		return upstreamBaseURL
	}
	return strings.TrimRight(config.AppOrigin(), "/") + "/images/" + coll
}

// Exists reports whether objectKey is present in this service's own
// object store.
func (s *Store) Exists(ctx context.Context, objectKey string) bool {
	if !s.Enabled() {
		return false
	}
	_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(objectKey),
	})
	return err == nil
}

func (s *Store) exists(ctx context.Context, objectKey string) (bool, error) {
	return s.Exists(ctx, objectKey), nil
}

// presignedURL signs a time-limited GET URL for objectKey.
func (s *Store) presignedURL(ctx context.Context, objectKey string) (string, error) {
	out, err := s.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(objectKey),
	}, s3.WithPresignExpires(s.ttl))
	if err != nil {
		return "", fmt.Errorf("imagestore: presign %s: %w", objectKey, err)
	}
	return out.URL, nil
}
