package backup

import (
	"context"
	"fmt"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3Mirror pushes a completed backup file to an S3-compatible bucket
// (SPEC_FULL.md's optional retention mirror), grounded on
// state/backends/s3.go's client construction. It is additive to spec.md
// §4.7's local retention sweep, never a replacement.
type S3Mirror struct {
	client *s3.Client
	bucket string
}

// NewS3Mirror loads the default AWS config for region and builds a client
// scoped to bucket. Returns an error only if credentials/region can't be
// resolved; bucket existence is not checked here (upload failures are
// logged, non-fatal, by the caller).
func NewS3Mirror(ctx context.Context, bucket, region string) (*S3Mirror, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS configuration: %w", err)
	}
	return &S3Mirror{client: s3.NewFromConfig(cfg), bucket: bucket}, nil
}

// Upload puts localPath's contents at key in the configured bucket.
func (m *S3Mirror) Upload(ctx context.Context, localPath, key string) error {
	f, err := os.Open(localPath)
	if err != nil {
		return err
	}
	defer f.Close()

	_, err = m.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(m.bucket),
		Key:    aws.String(key),
		Body:   f,
	})
	return err
}
