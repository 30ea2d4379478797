// internal/common/aws/s3.go
package aws

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	sdkaws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
)

type S3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// DocumentStore keeps uploaded wizard documents in one bucket under
// "<keyPrefix>/<session>/<slot>/<uuid><ext>".
type DocumentStore struct {
	client    S3API
	bucket    string
	region    string
	keyPrefix string
	baseURL   string
}

type DocumentStoreConfig struct {
	Bucket        string
	Region        string
	KeyPrefix     string
	PublicBaseURL string
}

func NewDocumentStore(cfg sdkaws.Config, dc DocumentStoreConfig) *DocumentStore {
	return NewDocumentStoreWithClient(s3.NewFromConfig(cfg), dc)
}

func NewDocumentStoreWithClient(client S3API, dc DocumentStoreConfig) *DocumentStore {
	return &DocumentStore{
		client:    client,
		bucket:    dc.Bucket,
		region:    dc.Region,
		keyPrefix: strings.Trim(dc.KeyPrefix, "/"),
		baseURL:   strings.TrimRight(dc.PublicBaseURL, "/"),
	}
}

// Upload stores body and returns the public URL of the new object.
func (d *DocumentStore) Upload(ctx context.Context, sessionID, slot, filename, contentType string, body io.Reader) (string, error) {
	key := d.objectKey(sessionID, slot, filename)
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	_, err := d.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      sdkaws.String(d.bucket),
		Key:         sdkaws.String(key),
		Body:        body,
		ContentType: sdkaws.String(contentType),
		Metadata: map[string]string{
			"session-id":    sessionID,
			"document-slot": slot,
		},
	})
	if err != nil {
		return "", fmt.Errorf("put s3://%s/%s: %w", d.bucket, key, err)
	}
	return d.URL(key), nil
}

// Delete removes the object behind a URL produced by Upload. URLs from
// elsewhere are ignored.
func (d *DocumentStore) Delete(ctx context.Context, url string) error {
	prefix := d.URL("")
	if !strings.HasPrefix(url, prefix) {
		return nil
	}
	key := strings.TrimPrefix(url, prefix)
	_, err := d.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: sdkaws.String(d.bucket),
		Key:    sdkaws.String(key),
	})
	if err != nil {
		return fmt.Errorf("delete s3://%s/%s: %w", d.bucket, key, err)
	}
	return nil
}

func (d *DocumentStore) URL(key string) string {
	if d.baseURL != "" {
		return d.baseURL + "/" + key
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", d.bucket, d.region, key)
}

func (d *DocumentStore) objectKey(sessionID, slot, filename string) string {
	ext := strings.ToLower(path.Ext(filename))
	parts := []string{sessionID, slot, uuid.New().String() + ext}
	if d.keyPrefix != "" {
		parts = append([]string{d.keyPrefix}, parts...)
	}
	return path.Join(parts...)
}
