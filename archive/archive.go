// Package archive stores a JSON copy of each indexed article in S3, keyed
// by fingerprint. The archive is a side channel; the vector index stays
// the system of record.
package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"newspulse/types"
)

// Config selects the target bucket and key prefix.
type Config struct {
	Bucket string
	Region string
	Prefix string
}

// S3Archive uploads article records as JSON objects.
type S3Archive struct {
	client *s3.Client
	bucket string
	prefix string
}

// New builds an archive using the default AWS configuration chain.
func New(ctx context.Context, cfg Config) (*S3Archive, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("archive: bucket is required")
	}
	var loadOpts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(cfg.Region))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, err
	}
	return &S3Archive{
		client: s3.NewFromConfig(awsCfg),
		bucket: cfg.Bucket,
		prefix: cfg.Prefix,
	}, nil
}

// Archive uploads the record as articles/<fingerprint>.json under the
// configured prefix. Uploads are idempotent per fingerprint.
func (a *S3Archive) Archive(ctx context.Context, rec types.ProcessedArticle) error {
	body, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("archive: marshal %s: %w", rec.Fingerprint, err)
	}

	key := path.Join(a.prefix, "articles", rec.Fingerprint+".json")
	_, err = a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("archive: put %s: %w", key, err)
	}
	return nil
}
