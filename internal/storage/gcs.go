package storage

import (
	"context"
	stderrors "errors"
	"fashion-backend/internal/util"
	"fmt"
	"io"
	"mime/multipart"

	"cloud.google.com/go/storage"
	"go.uber.org/zap"
	"google.golang.org/api/option"
)

// GCSClient 未指定凭证文件时使用应用默认凭证
type GCSClient struct {
	client     *storage.Client
	bucketName string
}

func NewGCSClient(ctx context.Context, projectID, bucketName, credentialsFile string) (*GCSClient, error) {
	if bucketName == "" {
		return nil, fmt.Errorf("GCS bucket is required (project %s)", projectID)
	}
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("创建 GCS 客户端失败: %w", err)
	}
	return &GCSClient{client: client, bucketName: bucketName}, nil
}

func (c *GCSClient) UploadFile(ctx context.Context, file *multipart.FileHeader, key string) (string, error) {
	src, err := file.Open()
	if err != nil {
		return "", err
	}
	defer src.Close()

	key = cleanKey(key)
	writer := c.client.Bucket(c.bucketName).Object(key).NewWriter(ctx)
	writer.ContentType = file.Header.Get("Content-Type")
	if _, err = io.Copy(writer, src); err != nil {
		writer.Close()
		return "", fmt.Errorf("上传到 GCS 失败: %w", err)
	}
	// Close 时才真正完成上传
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("上传到 GCS 失败: %w", err)
	}

	util.Logger.Info("文件已上传到 GCS", zap.String("bucket", c.bucketName), zap.String("key", key))
	return fmt.Sprintf("https://storage.googleapis.com/%s/%s", c.bucketName, key), nil
}

func (c *GCSClient) DeleteFile(ctx context.Context, key string) error {
	err := c.client.Bucket(c.bucketName).Object(cleanKey(key)).Delete(ctx)
	if err != nil && !stderrors.Is(err, storage.ErrObjectNotExist) {
		return err
	}
	return nil
}
