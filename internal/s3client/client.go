package s3client

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	appConfig "hsmimport/config"
	"hsmimport/internal/hsm"
)

// HeadObjectAPI is the part of the S3 API the backend needs.
type HeadObjectAPI interface {
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
}

// Client resolves archived objects stored in an S3 bucket. It satisfies
// hsm.Backend.
type Client struct {
	s3Client HeadObjectAPI
	config   *appConfig.Config
}

func New(cfg *appConfig.Config) (*Client, error) {
	opts := []func(*config.LoadOptions) error{
		config.WithRegion(cfg.Region),
	}
	if cfg.AccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(credentials.StaticCredentialsProvider{
			Value: aws.Credentials{
				AccessKeyID:     cfg.AccessKey,
				SecretAccessKey: cfg.SecretKey,
			},
		}))
	}

	awsConfig, err := config.LoadDefaultConfig(context.TODO(), opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	var s3Client *s3.Client
	if cfg.ApiURL != "" {
		s3Client = s3.NewFromConfig(awsConfig, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.ApiURL)
			o.UsePathStyle = true
		})
	} else {
		s3Client = s3.NewFromConfig(awsConfig)
	}

	return NewWithAPI(s3Client, cfg), nil
}

// NewWithAPI wraps an existing S3 API implementation.
func NewWithAPI(api HeadObjectAPI, cfg *appConfig.Config) *Client {
	return &Client{
		s3Client: api,
		config:   cfg,
	}
}

func (c *Client) Stat(ctx context.Context, name string) (hsm.Object, error) {
	key := c.objectKey(name)

	resp, err := c.s3Client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(c.config.BucketName),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFound(err) {
			return hsm.Object{}, fmt.Errorf("%w: s3://%s/%s", hsm.ErrObjectNotFound, c.config.BucketName, key)
		}
		return hsm.Object{}, fmt.Errorf("failed to head object %s: %w", key, err)
	}

	obj := hsm.Object{
		Name: name,
		Size: aws.ToInt64(resp.ContentLength),
		ETag: strings.Trim(aws.ToString(resp.ETag), `"`),
	}
	if resp.LastModified != nil {
		obj.ModTime = *resp.LastModified
	}
	return obj, nil
}

func (c *Client) objectKey(name string) string {
	prefix := strings.TrimPrefix(c.config.S3Prefix, "/")
	if prefix == "" {
		return name
	}

	if !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}

	return prefix + strings.TrimPrefix(name, "/")
}

func isNotFound(err error) bool {
	var notFound *types.NotFound
	if errors.As(err, &notFound) {
		return true
	}
	var noSuchKey *types.NoSuchKey
	if errors.As(err, &noSuchKey) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NotFound", "NoSuchKey":
			return true
		}
	}
	return false
}
