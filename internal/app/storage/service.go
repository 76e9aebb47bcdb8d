/*
Package storage resolves product image references into URLs the browser can load.

Cart lines reference images either by absolute URL or by an object key in the product
image bucket. Keys are turned into short-lived presigned download URLs.
*/
package storage

import (
	"context"
	"strings"
	"time"
)

// ImageURLTTL is the lifetime of a presigned image URL.
const ImageURLTTL = 30 * time.Minute

// ServiceConfig holds the configuration required to connect to the image bucket.
type ServiceConfig struct {
	S3BucketName      string
	S3Endpoint        string
	S3AccessKeyID     string
	S3SecretAccessKey string
}

// ImageSigner issues download URLs for objects in the image bucket.
type ImageSigner interface {
	// PresignDownload generates a pre-signed URL for downloading key.
	PresignDownload(ctx context.Context, key string, duration time.Duration) (string, error)
}

// NewImageSigner is the factory function for ImageSigner.
func NewImageSigner(ctx context.Context, cfg ServiceConfig) (ImageSigner, error) {
	return newS3Client(ctx, cfg)
}

// ResolveImage returns the browser URL of ref. Absolute URLs and empty references are
// returned unchanged, as is every reference when signer is nil or signing fails.
func ResolveImage(ctx context.Context, signer ImageSigner, ref string) string {
	if ref == "" || signer == nil || isAbsoluteURL(ref) {
		return ref
	}

	signed, err := signer.PresignDownload(ctx, strings.TrimPrefix(ref, "/"), ImageURLTTL)
	if err != nil {
		return ref
	}
	return signed
}

func isAbsoluteURL(ref string) bool {
	return strings.HasPrefix(ref, "https://") || strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "data:")
}
