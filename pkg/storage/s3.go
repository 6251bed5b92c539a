package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/assoc-site/backend/internal/models"
	"github.com/assoc-site/backend/pkg/remote"
)

const (
	// MaxFileSize is the maximum allowed upload size (10MB).
	MaxFileSize = 10 * 1024 * 1024
)

// Content domains, each mapped to its own bucket.
const (
	DomainMembershipForms = "membership_forms"
	DomainMembers         = "members"
	DomainArticles        = "articles"
	DomainTherapyPrograms = "therapy_programs"
	DomainCourses         = "courses"
	DomainEvents          = "events"
)

var (
	ErrFileTooLarge   = fmt.Errorf("file exceeds %d MB", MaxFileSize/1024/1024)
	ErrFileType       = errors.New("file type not allowed")
	ErrUnknownDomain  = errors.New("unknown storage domain")
	ErrUploadDisabled = errors.New("file uploads are not configured")
)

// AllowedExtensions maps accepted extensions to their MIME type: images, pdf, doc/docx.
var AllowedExtensions = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".webp": "image/webp",
	".gif":  "image/gif",
	".pdf":  "application/pdf",
	".doc":  "application/msword",
	".docx": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
}

// FileStore is the blob store used by forms and content handlers.
type FileStore interface {
	UploadFile(ctx context.Context, domain, folder, base, filename, contentType string, body io.Reader, size int64) (*models.FileRef, error)
	DeleteObject(ctx context.Context, domain, key string) error
}

// S3Config holds S3 client configuration.
type S3Config struct {
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	Endpoint        string
	PublicBaseURL   string
	Buckets         map[string]string // domain -> bucket
}

type objectAPI interface {
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

type uploadAPI interface {
	Upload(ctx context.Context, in *s3.PutObjectInput, opts ...func(*manager.Uploader)) (*manager.UploadOutput, error)
}

// S3 stores uploaded files, one bucket per content domain.
type S3 struct {
	client   objectAPI
	uploader uploadAPI
	cfg      S3Config
	logger   *zap.Logger
	now      func() time.Time
}

// NewS3 creates an S3 client using credentials from config or .env (AWS_ACCESS_KEY_ID, AWS_SECRET_ACCESS_KEY).
func NewS3(ctx context.Context, cfg S3Config, logger *zap.Logger) (*S3, error) {
	accessKey := cfg.AccessKeyID
	secretKey := cfg.SecretAccessKey
	if accessKey == "" || secretKey == "" {
		accessKey = os.Getenv("AWS_ACCESS_KEY_ID")
		secretKey = os.Getenv("AWS_SECRET_ACCESS_KEY")
	}
	opts := []func(*config.LoadOptions) error{
		config.WithRegion(cfg.Region),
	}
	if accessKey != "" && secretKey != "" {
		opts = append(opts, config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			accessKey, secretKey, "",
		)))
		logger.Info("S3 client using static credentials", zap.String("region", cfg.Region))
	} else {
		logger.Warn("S3 client using default credential chain (AWS_ACCESS_KEY_ID/AWS_SECRET_ACCESS_KEY not set)")
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})
	uploader := manager.NewUploader(client, func(u *manager.Uploader) {
		u.PartSize = 5 * 1024 * 1024 // 5MB parts for streaming
	})
	return newS3(client, uploader, cfg, logger), nil
}

func newS3(client objectAPI, uploader uploadAPI, cfg S3Config, logger *zap.Logger) *S3 {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &S3{client: client, uploader: uploader, cfg: cfg, logger: logger, now: time.Now}
}

// Bucket returns the bucket configured for domain.
func (s *S3) Bucket(domain string) (string, error) {
	b, ok := s.cfg.Buckets[domain]
	if !ok || b == "" {
		return "", fmt.Errorf("%w: %s", ErrUnknownDomain, domain)
	}
	return b, nil
}

// ValidateFile checks the size limit and that the extension or content type is allowed.
func ValidateFile(filename, contentType string, size int64) error {
	if size > MaxFileSize {
		return ErrFileTooLarge
	}
	if _, ok := AllowedExtensions[strings.ToLower(path.Ext(filename))]; ok {
		return nil
	}
	ct := strings.ToLower(strings.TrimSpace(strings.Split(contentType, ";")[0]))
	for _, allowed := range AllowedExtensions {
		if ct == allowed {
			return nil
		}
	}
	return ErrFileType
}

// ContentTypeForFilename returns the MIME type for a filename extension.
func ContentTypeForFilename(filename string) string {
	if ct, ok := AllowedExtensions[strings.ToLower(path.Ext(filename))]; ok {
		return ct
	}
	return "application/octet-stream"
}

// ObjectName builds {base}_{unixMillis}_{random8}{ext}.
func ObjectName(base, filename string, at time.Time) string {
	base = slug(base)
	if base == "" {
		base = "file"
	}
	return fmt.Sprintf("%s_%d_%s%s", base, at.UnixMilli(), uuid.NewString()[:8], strings.ToLower(path.Ext(filename)))
}

func slug(s string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(strings.TrimSpace(s)) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
			dash = false
		} else if !dash && b.Len() > 0 {
			b.WriteByte('-')
			dash = true
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}

// PublicObjectURL returns the public URL for an object (no signing; buckets are public-read).
func (s *S3) PublicObjectURL(bucket, key string) string {
	if s.cfg.PublicBaseURL != "" {
		return strings.TrimRight(s.cfg.PublicBaseURL, "/") + "/" + bucket + "/" + key
	}
	if s.cfg.Endpoint != "" {
		return strings.TrimRight(s.cfg.Endpoint, "/") + "/" + bucket + "/" + key
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", bucket, s.cfg.Region, key)
}

// UploadFile validates and streams a file to the domain bucket under
// {folder}/{generated name}. Bucket and policy failures come back as *remote.Error.
func (s *S3) UploadFile(ctx context.Context, domain, folder, base, filename, contentType string, body io.Reader, size int64) (*models.FileRef, error) {
	if err := ValidateFile(filename, contentType, size); err != nil {
		return nil, err
	}
	bucket, err := s.Bucket(domain)
	if err != nil {
		return nil, err
	}
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = ContentTypeForFilename(filename)
	}
	key := path.Join(folder, ObjectName(base, filename, s.now()))

	var contentLength *int64
	if size > 0 {
		contentLength = &size
	}
	_, err = s.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(bucket),
		Key:           aws.String(key),
		Body:          body,
		ContentType:   aws.String(contentType),
		ContentLength: contentLength,
	})
	if err != nil {
		s.logger.Warn("s3 upload failed", zap.String("bucket", bucket), zap.String("key", key), zap.Error(err))
		return nil, remote.Classify(err, bucket)
	}
	s.logger.Info("file uploaded", zap.String("bucket", bucket), zap.String("key", key), zap.Int64("size", size))
	return &models.FileRef{
		Name:        filename,
		Size:        size,
		Type:        contentType,
		StoragePath: key,
		URL:         s.PublicObjectURL(bucket, key),
		Uploaded:    true,
	}, nil
}

// DeleteObject removes an object from the domain bucket.
func (s *S3) DeleteObject(ctx context.Context, domain, key string) error {
	bucket, err := s.Bucket(domain)
	if err != nil {
		return err
	}
	_, err = s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return remote.Classify(err, bucket)
	}
	return nil
}

// DeleteFiles removes every uploaded reference, logging failures.
func DeleteFiles(ctx context.Context, fs FileStore, domain string, refs ...models.FileRef) {
	if fs == nil {
		return
	}
	for _, ref := range refs {
		if ref.StoragePath == "" {
			continue
		}
		if err := fs.DeleteObject(ctx, domain, ref.StoragePath); err != nil {
			zap.L().Debug("delete object failed", zap.String("key", ref.StoragePath), zap.Error(err))
		}
	}
}
