package storage

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"go.uber.org/zap"
)

const (
	// MaxUploadSize is the maximum allowed size for receipt and chat
	// attachment uploads (10MB).
	MaxUploadSize = 10 * 1024 * 1024
	// FolderReceipts is the S3 prefix for event participation receipts.
	FolderReceipts = "receipts"
	// FolderAttachments is the S3 prefix for chat attachments.
	FolderAttachments = "attachments"
)

// Allowed upload MIME types and extensions (images and PDFs).
var (
	AllowedUploadTypes = map[string]string{
		"image/jpeg":      ".jpg",
		"image/jpg":       ".jpg",
		"image/png":       ".png",
		"image/webp":      ".webp",
		"application/pdf": ".pdf",
	}
	AllowedUploadExtensions = map[string]string{
		".jpg":  "image/jpeg",
		".jpeg": "image/jpeg",
		".png":  "image/png",
		".webp": "image/webp",
		".pdf":  "application/pdf",
	}
)

// S3Config holds S3 client configuration.
type S3Config struct {
	Region               string
	AccessKeyID          string
	SecretAccessKey      string
	ReceiptsBucket       string
	AttachmentsBucket    string
	PresignExpireMinutes int
}

// S3 provides object storage for receipts and chat attachments.
type S3 struct {
	client   *s3.Client
	uploader *manager.Uploader
	cfg      S3Config
	logger   *zap.Logger
}

// NewS3 creates an S3 client using static credentials when configured,
// falling back to the default credential chain.
func NewS3(ctx context.Context, cfg S3Config, logger *zap.Logger) (*S3, error) {
	opts := []func(*config.LoadOptions) error{
		config.WithRegion(cfg.Region),
	}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID, cfg.SecretAccessKey, "",
		)))
	} else if logger != nil {
		logger.Warn("S3 client using default credential chain")
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	client := s3.NewFromConfig(awsCfg)
	uploader := manager.NewUploader(client, func(u *manager.Uploader) {
		u.PartSize = 5 * 1024 * 1024
	})
	return &S3{client: client, uploader: uploader, cfg: cfg, logger: logger}, nil
}

// ValidateUploadType returns true if the content type and/or extension are allowed.
func ValidateUploadType(contentType, filename string) bool {
	if contentType != "" {
		if _, ok := AllowedUploadTypes[strings.ToLower(contentType)]; ok {
			return true
		}
	}
	if ext := strings.ToLower(path.Ext(filename)); ext != "" {
		if _, ok := AllowedUploadExtensions[ext]; ok {
			return true
		}
	}
	return false
}

// ContentTypeForFilename returns the MIME type for an upload filename extension.
func ContentTypeForFilename(filename string) string {
	ext := strings.ToLower(path.Ext(filename))
	if ct, ok := AllowedUploadExtensions[ext]; ok {
		return ct
	}
	return "application/octet-stream"
}

// ReceiptKey returns the object key: receipts/{school_id}/{event_id}/{filename}.
func ReceiptKey(schoolID, eventID int64, filename string) string {
	return path.Join(FolderReceipts, fmt.Sprint(schoolID), fmt.Sprint(eventID), path.Base(filename))
}

// AttachmentKey returns the object key: attachments/{school_id}/{student_id}/{filename}.
func AttachmentKey(schoolID, studentID int64, filename string) string {
	return path.Join(FolderAttachments, fmt.Sprint(schoolID), fmt.Sprint(studentID), path.Base(filename))
}

// KeyFromURL recovers the object key from a stored object URL, the inverse
// of the URL Upload returns. Returns "" when the URL has no key path.
func KeyFromURL(rawURL string) string {
	if i := strings.Index(rawURL, ".amazonaws.com/"); i >= 0 {
		return rawURL[i+len(".amazonaws.com/"):]
	}
	if j := strings.Index(rawURL, "://"); j >= 0 {
		rest := rawURL[j+3:]
		if k := strings.Index(rest, "/"); k >= 0 {
			return rest[k+1:]
		}
	}
	return ""
}

// ReceiptsBucket returns the configured receipts bucket name.
func (s *S3) ReceiptsBucket() string { return s.cfg.ReceiptsBucket }

// AttachmentsBucket returns the configured attachments bucket name.
func (s *S3) AttachmentsBucket() string { return s.cfg.AttachmentsBucket }

// PresignExpire returns the configured presigned URL lifetime.
func (s *S3) PresignExpire() time.Duration {
	if s.cfg.PresignExpireMinutes <= 0 {
		return 15 * time.Minute
	}
	return time.Duration(s.cfg.PresignExpireMinutes) * time.Minute
}

// Upload streams a reader to S3 and returns the object URL.
func (s *S3) Upload(ctx context.Context, bucket, key, contentType string, body io.Reader, contentLength int64) (string, error) {
	var contentLengthPtr *int64
	if contentLength > 0 {
		contentLengthPtr = &contentLength
	}
	input := &s3.PutObjectInput{
		Bucket:        aws.String(bucket),
		Key:           aws.String(key),
		Body:          body,
		ContentType:   aws.String(contentType),
		ContentLength: contentLengthPtr,
	}
	if _, err := s.uploader.Upload(ctx, input); err != nil {
		return "", fmt.Errorf("upload: %w", err)
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", bucket, s.cfg.Region, key), nil
}

// GeneratePresignedDownloadURL returns a presigned GET URL for private objects.
func (s *S3) GeneratePresignedDownloadURL(ctx context.Context, bucket, key string, expires time.Duration) (string, error) {
	presign := s3.NewPresignClient(s.client)
	out, err := presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(expires))
	if err != nil {
		return "", fmt.Errorf("presign get: %w", err)
	}
	return out.URL, nil
}

// DeleteObject removes an object from S3.
func (s *S3) DeleteObject(ctx context.Context, bucket, key string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("delete object: %w", err)
	}
	return nil
}
