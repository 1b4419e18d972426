package storage

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/inkwell/internal/config"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MinIOStorage 把文章封面托管到 MinIO，实现 service.ImageStore。
type MinIOStorage struct {
	client *minio.Client
	bucket string
}

// NewMinIOStorage 初始化 MinIO 客户端，桶不存在时自动创建。
func NewMinIOStorage(cfg config.MinIOConfig) (*MinIOStorage, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}

	ctx := context.Background()
	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("failed to check bucket: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("failed to create bucket: %w", err)
		}
	}

	return &MinIOStorage{client: client, bucket: cfg.Bucket}, nil
}

// Upload 上传封面并返回可公开访问的 URL。
func (s *MinIOStorage) Upload(ctx context.Context, data []byte, contentType string) (string, error) {
	key := fmt.Sprintf("covers/%s-%s%s", time.Now().Format("20060102"), uuid.New().String(), extensionFor(contentType))

	_, err := s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload to minio: %w", err)
	}

	scheme := "http"
	if s.client.EndpointURL().Scheme == "https" {
		scheme = "https"
	}
	return fmt.Sprintf("%s://%s/%s/%s", scheme, s.client.EndpointURL().Host, s.bucket, key), nil
}

// Delete 按 Upload 返回的 URL 删除对象。
func (s *MinIOStorage) Delete(ctx context.Context, ref string) error {
	key := s.objectKey(ref)
	if key == "" {
		return fmt.Errorf("unrecognized object reference: %s", ref)
	}
	if err := s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("failed to delete object: %w", err)
	}
	return nil
}

// objectKey 从完整 URL 中还原桶内对象键；传入裸键时原样返回。
func (s *MinIOStorage) objectKey(ref string) string {
	marker := "/" + s.bucket + "/"
	if idx := strings.Index(ref, marker); idx >= 0 {
		return ref[idx+len(marker):]
	}
	if strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://") {
		return ""
	}
	return ref
}

func extensionFor(contentType string) string {
	switch contentType {
	case "image/jpeg":
		return ".jpg"
	case "image/png":
		return ".png"
	case "image/webp":
		return ".webp"
	default:
		return ""
	}
}
