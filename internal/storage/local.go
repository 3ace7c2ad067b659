package storage

import (
	"context"
	"fashion-backend/internal/util"
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"

	"go.uber.org/zap"
)

// PublicPrefix 本地文件通过 gin 静态路由对外提供
const PublicPrefix = "/uploads/"

// LocalStorage 保存在本机目录，适合单实例部署和开发环境
type LocalStorage struct {
	basePath string
}

func NewLocalStorage(basePath string) (*LocalStorage, error) {
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("创建存储目录失败: %w", err)
	}
	return &LocalStorage{basePath: basePath}, nil
}

func (s *LocalStorage) fullPath(key string) (string, string) {
	rel := cleanKey(key)
	return rel, filepath.Join(s.basePath, filepath.FromSlash(rel))
}

func (s *LocalStorage) UploadFile(ctx context.Context, file *multipart.FileHeader, key string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	src, err := file.Open()
	if err != nil {
		return "", err
	}
	defer src.Close()

	rel, target := s.fullPath(key)
	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return "", fmt.Errorf("创建目录失败: %w", err)
	}

	// 先写临时文件再改名，避免读到写了一半的凭证
	tmp, err := os.CreateTemp(filepath.Dir(target), ".upload-*")
	if err != nil {
		return "", fmt.Errorf("创建文件失败: %w", err)
	}
	if _, err = io.Copy(tmp, src); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", fmt.Errorf("保存文件失败: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("保存文件失败: %w", err)
	}
	if err := os.Rename(tmp.Name(), target); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("保存文件失败: %w", err)
	}

	util.Logger.Info("文件已保存到本地", zap.String("key", rel), zap.Int64("size", file.Size))
	return PublicPrefix + rel, nil
}

func (s *LocalStorage) DeleteFile(ctx context.Context, key string) error {
	_, target := s.fullPath(key)
	if err := os.Remove(target); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("删除文件失败: %w", err)
	}
	return nil
}
