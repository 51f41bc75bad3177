package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"bookwyrm/internal/config"
)

const (
	defaultTimeout = 30 * time.Second
	uploadTimeout  = 5 * time.Minute
)

// Client is an S3-compatible Storage.
type Client struct {
	client *s3.Client
	bucket string
}

// NewClient builds the client and checks that the bucket is reachable.
func NewClient(conf config.S3Config) (*Client, error) {
	if conf.AccessKeyID == "" || conf.SecretAccessKey == "" || conf.Bucket == "" {
		return nil, fmt.Errorf("missing required configuration: accessKeyID, secretAccessKey, and bucket are required")
	}

	creds := aws.NewCredentialsCache(credentials.NewStaticCredentialsProvider(
		conf.AccessKeyID,
		conf.SecretAccessKey,
		"",
	))

	client := s3.New(s3.Options{
		BaseEndpoint:     aws.String(conf.Endpoint),
		Region:           conf.Region,
		Credentials:      creds,
		UsePathStyle:     conf.UsePathStyle,
		RetryMode:        aws.RetryModeAdaptive,
		RetryMaxAttempts: 3,
	})

	c := &Client{
		client: client,
		bucket: conf.Bucket,
	}

	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	_, err := c.client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(conf.Bucket),
	})
	if err != nil {
		return nil, fmt.Errorf("unable to access bucket %s: %w", conf.Bucket, err)
	}

	return c, nil
}

// UploadBytes puts data under key.
func (c *Client) UploadBytes(ctx context.Context, key string, data []byte, contentType string) error {
	if key == "" {
		return fmt.Errorf("key is required")
	}

	ctx, cancel := context.WithTimeout(ctx, uploadTimeout)
	defer cancel()

	_, err := c.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(c.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentType:   aws.String(contentType),
		ContentLength: aws.Int64(int64(len(data))),
	})
	if err != nil {
		return fmt.Errorf("failed to upload object to S3: %w", err)
	}

	return nil
}

// GetObject opens the object under key. The caller closes it.
func (c *Client) GetObject(ctx context.Context, key string) (Object, error) {
	result, err := c.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var nsk *types.NoSuchKey
		if errors.As(err, &nsk) {
			return nil, fmt.Errorf("%w: %s", ErrObjectNotFound, key)
		}
		return nil, fmt.Errorf("failed to get object from S3: %w", err)
	}

	return NewObject(result.Body, aws.ToInt64(result.ContentLength), aws.ToString(result.ContentType)), nil
}

// DeleteObject removes the object under key. A missing object is not an error.
func (c *Client) DeleteObject(ctx context.Context, key string) error {
	if key == "" {
		return fmt.Errorf("key is required")
	}

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	_, err := c.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(key),
	})

	var nsk *types.NotFound
	if err != nil && errors.As(err, &nsk) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to check object existence: %w", err)
	}

	_, err = c.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("failed to delete object from S3: %w", err)
	}

	return nil
}
