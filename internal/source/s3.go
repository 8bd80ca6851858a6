package source

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/tierdoc/internal/config"
	appErr "github.com/xxxsen/tierdoc/internal/pkg/errors"
)

type objectAPI interface {
	s3.ListObjectsV2APIClient
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

type s3Source struct {
	client objectAPI
	bucket string
	prefix string
}

func init() {
	Register("s3", createS3Source)
}

func createS3Source(cfg config.SourceConfig) (Source, error) {
	c := cfg.S3
	if c.Bucket == "" {
		return nil, fmt.Errorf("s3 bucket is required")
	}
	region := c.Region
	if region == "" {
		region = "us-east-1"
	}
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(region)}
	if c.SecretID != "" && c.SecretKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(c.SecretID, c.SecretKey, "")))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(), opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if c.Endpoint != "" {
			o.BaseEndpoint = aws.String(c.Endpoint)
		}
		o.UsePathStyle = c.UsePathStyle
	})
	return newS3Source(client, c.Bucket, c.Prefix), nil
}

func newS3Source(client objectAPI, bucket, prefix string) *s3Source {
	return &s3Source{client: client, bucket: bucket, prefix: strings.TrimPrefix(prefix, "/")}
}

// Walk lists objects under root (a key prefix) and parses each supported one.
// Keys come back in the lexical order S3 lists them.
func (s *s3Source) Walk(ctx context.Context, root string, fn WalkFunc) error {
	prefix := s.prefix
	if root != "" {
		prefix = strings.TrimPrefix(root, "/")
	}
	p := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(prefix),
	})
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return fmt.Errorf("list s3://%s/%s: %w", s.bucket, prefix, err)
		}
		for _, obj := range page.Contents {
			key := aws.ToString(obj.Key)
			if strings.HasSuffix(key, "/") || !Supported(key) {
				logutil.GetLogger(ctx).Debug("skip unsupported object", zap.String("key", key))
				continue
			}
			data, err := s.get(ctx, key)
			if err != nil {
				return err
			}
			doc, err := Parse(key, data)
			if err != nil {
				return err
			}
			if err := fn(ctx, doc); err != nil {
				return err
			}
		}
	}
	return nil
}

func (s *s3Source) get(ctx context.Context, key string) ([]byte, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("get s3://%s/%s: %w", s.bucket, key, err)
	}
	defer out.Body.Close()
	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("read s3://%s/%s: %w", s.bucket, key, err)
	}
	return data, nil
}

// Confine treats root as a key prefix below the configured prefix.
func (s *s3Source) Confine(root string) (string, error) {
	root = strings.TrimPrefix(root, "/")
	for _, part := range strings.Split(root, "/") {
		if part == ".." {
			return "", fmt.Errorf("root %q is outside the source prefix: %w", root, appErr.ErrInvalid)
		}
	}
	if root == "" || s.prefix == "" {
		return s.prefix + root, nil
	}
	return strings.TrimSuffix(s.prefix, "/") + "/" + root, nil
}
