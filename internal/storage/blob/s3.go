package blob

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"

	"github.com/vkuznetsov-dev/cipherchat/internal/common"
	"github.com/vkuznetsov-dev/cipherchat/internal/filex"
	"github.com/vkuznetsov-dev/cipherchat/internal/logging"
)

var (
	loadDefaultAWSConfig = config.LoadDefaultConfig

	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		return s3.NewFromConfig(cfg, optFns...)
	}
)

// S3Config carries the settings for an S3-compatible backend (MinIO in
// the default deployment).
type S3Config struct {
	RootUser     string
	RootPassword string
	Bucket       string
	Region       string
	BaseEndpoint string
}

// S3Store implements Store over an S3-compatible object store. Relative
// paths double as object keys, so the file index stays backend-agnostic.
type S3Store struct {
	client *s3.Client
	bucket string
	logger logging.Logger
	now    func() time.Time
}

func NewS3Store(ctx context.Context, c S3Config, logger logging.Logger) (*S3Store, error) {
	cfg, err := loadDefaultAWSConfig(ctx,
		config.WithRegion(c.Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			c.RootUser,
			c.RootPassword,
			"",
		)))
	if err != nil {
		return nil, fmt.Errorf("s3 config: %w", err)
	}

	client := newS3ClientFromConfig(cfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(c.BaseEndpoint)
		o.UsePathStyle = true
	})

	return &S3Store{
		client: client,
		bucket: c.Bucket,
		logger: logger.With("module", "blob_s3"),
		now:    time.Now,
	}, nil
}

// validateKey applies the same traversal rules as the filesystem store
// so a hostile path never becomes an object key.
func validateKey(relPath string) (string, error) {
	resolved, err := filex.ResolveUnderRoot("/s3", relPath)
	if err != nil {
		return "", err
	}
	return strings.TrimPrefix(resolved, "/s3/"), nil
}

// EnsureConversationDir is a no-op: object stores have no directories
// to provision.
func (s *S3Store) EnsureConversationDir(ctx context.Context, conversationID int64) error {
	return nil
}

func (s *S3Store) Put(ctx context.Context, conversationID, fileID int64, filename, payload string) (string, error) {
	rel := generatePath(conversationID, fileID, filename, s.now())

	data := []byte(payload)
	if !isChunkEnvelope(data) {
		raw, err := base64.StdEncoding.DecodeString(payload)
		if err != nil {
			return "", fmt.Errorf("decode payload for file %d: %w", fileID, err)
		}
		data = raw
	}

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: &s.bucket,
		Key:    &rel,
		Body:   strings.NewReader(string(data)),
	})
	if err != nil {
		return "", fmt.Errorf("%w: put %s: %v", common.ErrStorageIO, rel, err)
	}
	s.logger.Info(ctx, "blob saved", "key", rel, "size", len(data))
	return rel, nil
}

func (s *S3Store) Get(ctx context.Context, relPath string) (string, error) {
	key, err := validateKey(relPath)
	if err != nil {
		return "", err
	}

	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: &s.bucket,
		Key:    &key,
	})
	if err != nil {
		if isNoSuchKey(err) {
			return "", fmt.Errorf("blob %s: %w", relPath, common.ErrNotFound)
		}
		return "", fmt.Errorf("%w: get %s: %v", common.ErrStorageIO, relPath, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return "", fmt.Errorf("%w: read %s: %v", common.ErrStorageIO, relPath, err)
	}

	if isChunkEnvelope(data) {
		return string(data), nil
	}
	return base64.StdEncoding.EncodeToString(data), nil
}

func (s *S3Store) Delete(ctx context.Context, relPath string) (bool, error) {
	key, err := validateKey(relPath)
	if err != nil {
		return false, err
	}

	// DeleteObject succeeds silently for absent keys, so probe first to
	// keep the "false when absent" contract.
	if _, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: &s.bucket,
		Key:    &key,
	}); err != nil {
		if isNoSuchKey(err) {
			s.logger.Warn(ctx, "blob already absent", "key", key)
			return false, nil
		}
		return false, fmt.Errorf("%w: head %s: %v", common.ErrStorageIO, relPath, err)
	}

	if _, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: &s.bucket,
		Key:    &key,
	}); err != nil {
		return false, fmt.Errorf("%w: delete %s: %v", common.ErrStorageIO, relPath, err)
	}
	s.logger.Info(ctx, "blob deleted", "key", key)
	return true, nil
}

func isNoSuchKey(err error) bool {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchKey", "NotFound":
			return true
		}
	}
	return false
}
