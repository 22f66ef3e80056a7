// Package storage wraps the S3-compatible object store holding track audio:
// source downloads, separated stems, and enhanced takes. Objects are keyed
// under a per-track prefix so a track's artifacts can be listed together.
package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"songmill/internal/config"
)

// Client wraps a MinIO connection scoped to the pipeline bucket.
type Client struct {
	client *minio.Client
	bucket string
}

// New connects to the object store described by the configuration.
func New(cfg config.Storage) (*Client, error) {
	if strings.TrimSpace(cfg.Endpoint) == "" {
		return nil, errors.New("storage: endpoint required")
	}
	if strings.TrimSpace(cfg.Bucket) == "" {
		return nil, errors.New("storage: bucket required")
	}
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("storage: connect: %w", err)
	}
	return &Client{client: client, bucket: cfg.Bucket}, nil
}

// EnsureBucket creates the pipeline bucket when it does not exist.
func (c *Client) EnsureBucket(ctx context.Context) error {
	exists, err := c.client.BucketExists(ctx, c.bucket)
	if err != nil {
		return fmt.Errorf("storage: check bucket: %w", err)
	}
	if exists {
		return nil
	}
	if err := c.client.MakeBucket(ctx, c.bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("storage: make bucket: %w", err)
	}
	return nil
}

// TrackKey builds the object key for one artifact of a track.
func TrackKey(trackID int64, artifact string) string {
	return fmt.Sprintf("tracks/%d/%s", trackID, artifact)
}

// Put uploads an object.
func (c *Client) Put(ctx context.Context, key string, data []byte, contentType string) error {
	if key == "" {
		return errors.New("storage put: key required")
	}
	_, err := c.client.PutObject(ctx, c.bucket, key, bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return fmt.Errorf("storage put %s: %w", key, err)
	}
	return nil
}

// Get downloads an object fully into memory. Audio artifacts are bounded by
// track length, so streaming to disk buys nothing here.
func (c *Client) Get(ctx context.Context, key string) ([]byte, error) {
	if key == "" {
		return nil, errors.New("storage get: key required")
	}
	object, err := c.client.GetObject(ctx, c.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("storage get %s: %w", key, err)
	}
	defer object.Close()
	data, err := io.ReadAll(object)
	if err != nil {
		return nil, fmt.Errorf("storage read %s: %w", key, err)
	}
	return data, nil
}

// Remove deletes an object. Removing a missing object is not an error.
func (c *Client) Remove(ctx context.Context, key string) error {
	if err := c.client.RemoveObject(ctx, c.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("storage remove %s: %w", key, err)
	}
	return nil
}

// ListTrack returns the keys of every artifact stored for a track.
func (c *Client) ListTrack(ctx context.Context, trackID int64) ([]string, error) {
	prefix := fmt.Sprintf("tracks/%d/", trackID)
	var keys []string
	for object := range c.client.ListObjects(ctx, c.bucket, minio.ListObjectsOptions{Prefix: prefix, Recursive: true}) {
		if object.Err != nil {
			return nil, fmt.Errorf("storage list %s: %w", prefix, object.Err)
		}
		keys = append(keys, object.Key)
	}
	return keys, nil
}

// HealthCheck verifies the bucket is reachable.
func (c *Client) HealthCheck(ctx context.Context) error {
	exists, err := c.client.BucketExists(ctx, c.bucket)
	if err != nil {
		return fmt.Errorf("storage health: %w", err)
	}
	if !exists {
		return fmt.Errorf("storage health: bucket %s missing", c.bucket)
	}
	return nil
}
