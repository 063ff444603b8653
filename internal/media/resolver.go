package media

import (
	"context"
	"fmt"
	"strings"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"social-publisher/internal/models"
)

// Resolver turns a post's stored image references into URLs the platform
// APIs can fetch. References that are already absolute pass through.
type Resolver interface {
	Resolve(ctx context.Context, post models.Post) ([]string, error)
}

// S3Resolver presigns object keys in the media bucket. Platforms download
// the image within minutes of the publish call, so short-lived URLs are fine.
type S3Resolver struct {
	presigner *s3.PresignClient
	bucket    string
	expiry    time.Duration
}

// NewS3Resolver builds a resolver from the default AWS credential chain.
func NewS3Resolver(ctx context.Context, bucket, region string, expiry time.Duration) (*S3Resolver, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	client := s3.NewFromConfig(cfg)
	return &S3Resolver{
		presigner: s3.NewPresignClient(client),
		bucket:    bucket,
		expiry:    expiry,
	}, nil
}

func (r *S3Resolver) Resolve(ctx context.Context, post models.Post) ([]string, error) {
	urls := make([]string, 0, len(post.Images))
	for _, ref := range post.Images {
		if isAbsolute(ref) {
			urls = append(urls, ref)
			continue
		}
		key := ref
		req, err := r.presigner.PresignGetObject(ctx, &s3.GetObjectInput{
			Bucket: &r.bucket,
			Key:    &key,
		}, s3.WithPresignExpires(r.expiry))
		if err != nil {
			return nil, fmt.Errorf("presign %s: %w", ref, err)
		}
		urls = append(urls, req.URL)
	}
	return urls, nil
}

// PassthroughResolver returns image references unchanged. Used when no media
// bucket is configured and in tests.
type PassthroughResolver struct{}

func (PassthroughResolver) Resolve(_ context.Context, post models.Post) ([]string, error) {
	return post.Images, nil
}

func isAbsolute(ref string) bool {
	return strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://")
}
