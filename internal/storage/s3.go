package storage

import (
	"bytes"
	"context"
	"errors"
	"io"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"

	"github.com/cloudratio/advisor-report-backend/internal/config"
	"github.com/cloudratio/advisor-report-backend/internal/logging"
	"github.com/cloudratio/advisor-report-backend/internal/types"
)

type S3Store struct {
	bucket string
	client *s3.S3
}

func NewS3Store() *S3Store {
	cfg := config.GetConfig()
	log := logging.GetLogger()

	awsConfig := aws.NewConfig().WithRegion(cfg.S3Region).WithS3ForcePathStyle(cfg.S3PathStyle)
	if cfg.S3Endpoint != "" {
		awsConfig = awsConfig.WithEndpoint(cfg.S3Endpoint)
	}
	if cfg.S3AccessKey != "" {
		awsConfig = awsConfig.WithCredentials(credentials.NewStaticCredentials(cfg.S3AccessKey, cfg.S3SecretKey, ""))
	}

	sess, err := session.NewSession(awsConfig)
	if err != nil {
		log.Fatalf("unable to create S3 session: %v", err)
	}
	return &S3Store{bucket: cfg.S3Bucket, client: s3.New(sess)}
}

// Put uploads under the content-addressed key. S3 failures are transient by
// definition here: the same bytes can always be pushed again.
func (s *S3Store) Put(ctx context.Context, key string, data []byte, contentType string) error {
	_, err := s.client.PutObjectWithContext(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return types.Transient("upload artifact", err)
	}
	return nil
}

func (s *S3Store) Get(ctx context.Context, key string) ([]byte, string, error) {
	out, err := s.client.GetObjectWithContext(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNoSuchKey(err) {
			return nil, "", ErrNotFound
		}
		return nil, "", types.Transient("download artifact", err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, "", types.Transient("download artifact", err)
	}
	return data, aws.StringValue(out.ContentType), nil
}

func (s *S3Store) Exists(ctx context.Context, key string) (bool, error) {
	_, err := s.client.HeadObjectWithContext(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNoSuchKey(err) {
			return false, nil
		}
		return false, types.Transient("stat artifact", err)
	}
	return true, nil
}

// Delete is idempotent: removing a key that is already gone succeeds.
func (s *S3Store) Delete(ctx context.Context, key string) error {
	_, err := s.client.DeleteObjectWithContext(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return types.Transient("delete artifact", err)
	}
	return nil
}

func isNoSuchKey(err error) bool {
	var awsErr awserr.Error
	if !errors.As(err, &awsErr) {
		return false
	}
	switch awsErr.Code() {
	case s3.ErrCodeNoSuchKey, "NotFound":
		return true
	}
	return false
}
