package storage

import (
	"context"
	"fmt"
	"mime/multipart"
	"path/filepath"
	"strings"
)

// Storage 退款凭证等用户上传文件的存储后端
type Storage interface {
	// UploadFile 保存文件并返回可访问的地址
	UploadFile(ctx context.Context, file *multipart.FileHeader, key string) (string, error)
	// DeleteFile 删除已上传的文件，文件不存在不视为错误
	DeleteFile(ctx context.Context, key string) error
}

var (
	_ Storage = (*LocalStorage)(nil)
	_ Storage = (*S3Client)(nil)
	_ Storage = (*GCSClient)(nil)
)

// Config 存储后端配置
type Config struct {
	Driver             string // local | s3 | gcs
	LocalPath          string
	S3Region           string
	S3Bucket           string
	GCSProjectID       string
	GCSBucketName      string
	GCSCredentialsFile string
}

// New 根据驱动名称创建存储后端
func New(ctx context.Context, cfg Config) (Storage, error) {
	switch cfg.Driver {
	case "", "local":
		return NewLocalStorage(cfg.LocalPath)
	case "s3":
		return NewS3Client(cfg.S3Region, cfg.S3Bucket)
	case "gcs":
		return NewGCSClient(ctx, cfg.GCSProjectID, cfg.GCSBucketName, cfg.GCSCredentialsFile)
	}
	return nil, fmt.Errorf("unknown storage driver: %s", cfg.Driver)
}

// cleanKey 规范化对象键，去掉 ".." 与开头的 "/"
func cleanKey(key string) string {
	return strings.TrimPrefix(filepath.ToSlash(filepath.Clean("/"+key)), "/")
}
