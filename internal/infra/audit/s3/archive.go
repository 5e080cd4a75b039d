package s3

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"strings"
	"sync"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"rentdesk/internal/app/audit"
)

// objectStore is the part of *minio.Client the archive needs.
type objectStore interface {
	BucketExists(ctx context.Context, bucket string) (bool, error)
	MakeBucket(ctx context.Context, bucket string, opts minio.MakeBucketOptions) error
	PutObject(ctx context.Context, bucket, object string, reader io.Reader, size int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
}

// Archive writes every audit entry as one JSON object to an S3-compatible
// bucket. The bucket is created on first write and stays private.
type Archive struct {
	bucket         string
	prefix         string
	client         objectStore
	logger         *slog.Logger
	bucketInitOnce sync.Once
	bucketInitErr  error
}

// NewArchive configures the archive using the provided endpoint and credentials.
func NewArchive(endpoint string, useSSL bool, accessKey, secretKey, bucket string, logger *slog.Logger) (*Archive, error) {
	cleanEndpoint := strings.TrimSpace(endpoint)
	if cleanEndpoint == "" {
		return nil, errors.New("s3: endpoint is required")
	}
	if bucket = strings.TrimSpace(bucket); bucket == "" {
		return nil, errors.New("s3: bucket is required")
	}
	opts := &minio.Options{
		Creds:  credentials.NewStaticV4(strings.TrimSpace(accessKey), strings.TrimSpace(secretKey), ""),
		Secure: useSSL,
	}
	minioClient, err := minio.New(parseEndpoint(cleanEndpoint), opts)
	if err != nil {
		return nil, fmt.Errorf("s3: create client: %w", err)
	}
	return newArchive(minioClient, bucket, logger), nil
}

func newArchive(client objectStore, bucket string, logger *slog.Logger) *Archive {
	return &Archive{bucket: bucket, prefix: "audit", client: client, logger: logger}
}

type entryObject struct {
	ID         string          `json:"id"`
	ActorID    string          `json:"actor_id"`
	Action     string          `json:"action"`
	EntityType string          `json:"entity_type"`
	EntityID   string          `json:"entity_id"`
	Before     json.RawMessage `json:"before,omitempty"`
	After      json.RawMessage `json:"after,omitempty"`
	RequestID  string          `json:"request_id,omitempty"`
	At         string          `json:"at"`
}

func (a *Archive) Write(ctx context.Context, e audit.Entry) error {
	if err := a.ensureBucket(ctx); err != nil {
		return err
	}
	body, err := json.Marshal(entryObject{
		ID:         e.ID,
		ActorID:    e.ActorID,
		Action:     e.Action,
		EntityType: e.EntityType,
		EntityID:   e.EntityID,
		Before:     raw(e.BeforeJSON),
		After:      raw(e.AfterJSON),
		RequestID:  e.RequestID,
		At:         e.At.UTC().Format("2006-01-02T15:04:05.000Z07:00"),
	})
	if err != nil {
		return fmt.Errorf("s3: encode audit entry: %w", err)
	}
	key := a.objectKey(e)
	_, err = a.client.PutObject(ctx, a.bucket, key, bytes.NewReader(body), int64(len(body)), minio.PutObjectOptions{
		ContentType: "application/json",
	})
	if err != nil {
		return fmt.Errorf("s3: put object: %w", err)
	}
	if a.logger != nil {
		a.logger.Debug("audit entry archived", "bucket", a.bucket, "key", key)
	}
	return nil
}

// objectKey partitions by day: audit/2024/01/31/booking/b-1/<entry id>.json
func (a *Archive) objectKey(e audit.Entry) string {
	at := e.At.UTC()
	return fmt.Sprintf("%s/%04d/%02d/%02d/%s/%s/%s.json",
		a.prefix, at.Year(), int(at.Month()), at.Day(),
		safeSegment(e.EntityType), safeSegment(e.EntityID), safeSegment(e.ID))
}

func (a *Archive) ensureBucket(ctx context.Context) error {
	a.bucketInitOnce.Do(func() {
		exists, err := a.client.BucketExists(ctx, a.bucket)
		if err != nil {
			a.bucketInitErr = fmt.Errorf("s3: check bucket: %w", err)
			return
		}
		if exists {
			return
		}
		if err := a.client.MakeBucket(ctx, a.bucket, minio.MakeBucketOptions{}); err != nil {
			a.bucketInitErr = fmt.Errorf("s3: create bucket: %w", err)
		}
	})
	return a.bucketInitErr
}

func raw(s string) json.RawMessage {
	if s == "" {
		return nil
	}
	return json.RawMessage(s)
}

func safeSegment(s string) string {
	s = strings.Trim(strings.TrimSpace(s), "/")
	if s == "" {
		return "_"
	}
	return strings.ReplaceAll(s, "/", "_")
}

func parseEndpoint(endpoint string) string {
	if parsed, err := url.Parse(endpoint); err == nil && parsed.Host != "" {
		return parsed.Host
	}
	return endpoint
}

var _ audit.Sink = (*Archive)(nil)
