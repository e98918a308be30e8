// Package storage checks that identity documents referenced by role upgrade
// requests were actually uploaded to object storage.
package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"donasi/internal/models"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// DocumentVerifier confirms uploaded documents exist.
type DocumentVerifier interface {
	VerifyDocuments(ctx context.Context, keys []string) error
}

// HeadObjectAPI is the part of the S3 client the verifier calls.
type HeadObjectAPI interface {
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
}

// S3Verifier looks documents up with HeadObject.
type S3Verifier struct {
	client HeadObjectAPI
	bucket string
}

// NewS3Verifier loads the default AWS credential chain for region.
func NewS3Verifier(ctx context.Context, region, bucket string) (*S3Verifier, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return NewS3VerifierWithClient(s3.NewFromConfig(cfg), bucket), nil
}

// NewS3VerifierWithClient allows injecting a test client.
func NewS3VerifierWithClient(client HeadObjectAPI, bucket string) *S3Verifier {
	return &S3Verifier{client: client, bucket: bucket}
}

// VerifyDocuments returns a VALIDATION_ERROR naming every missing key.
func (v *S3Verifier) VerifyDocuments(ctx context.Context, keys []string) error {
	var missing []string
	for _, key := range keys {
		_, err := v.client.HeadObject(ctx, &s3.HeadObjectInput{
			Bucket: aws.String(v.bucket),
			Key:    aws.String(key),
		})
		if err == nil {
			continue
		}
		var nf *types.NotFound
		if errors.As(err, &nf) {
			missing = append(missing, key)
			continue
		}
		return models.NewInternalError(fmt.Errorf("head object %s: %w", key, err))
	}
	if len(missing) > 0 {
		return models.NewValidationError("documents not uploaded: " + strings.Join(missing, ", "))
	}
	return nil
}

// AcceptAll is used when no document bucket is configured.
type AcceptAll struct{}

func (AcceptAll) VerifyDocuments(context.Context, []string) error { return nil }
