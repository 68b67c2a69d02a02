package service

import (
	"context"
	"fmt"
	"io"
	"lms_backend/internal/config"
	"lms_backend/internal/util"
	"lms_backend/pkg/logger"
	"os"
	"path/filepath"
	"strings"

	"github.com/aliyun/aliyun-oss-go-sdk/oss"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// FileStore 业务层依赖的对象存储能力。对象名使用 "目录/文件名" 形式，返回可公开访问的 URL
type FileStore interface {
	Upload(ctx context.Context, object string, reader io.Reader, size int64, contentType string) (string, error)
	UploadFile(ctx context.Context, object string, localPath string, contentType string) (string, error)
	Delete(ctx context.Context, object string) error
}

type StorageProvider interface {
	FileStore
	GetURL(object string) string
	Name() string
}

// LocalStorageProvider 写入本地目录，由 /uploads 静态路由对外提供
type LocalStorageProvider struct {
	Config *config.StorageConfig
}

// resolve 把对象名映射到根目录下的路径，拒绝越出根目录的名字
func (p *LocalStorageProvider) resolve(object string) (string, error) {
	root, err := filepath.Abs(p.Config.LocalPath)
	if err != nil {
		return "", err
	}
	dst := filepath.Join(root, filepath.FromSlash(object))
	if !strings.HasPrefix(dst, root+string(os.PathSeparator)) {
		return "", fmt.Errorf("invalid object name %q", object)
	}
	return dst, nil
}

func (p *LocalStorageProvider) Upload(ctx context.Context, object string, reader io.Reader, size int64, contentType string) (string, error) {
	dst, err := p.resolve(object)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return "", err
	}

	// 先写临时文件再改名，读者不会看到写了一半的对象
	tmp, err := os.CreateTemp(filepath.Dir(dst), ".upload-*")
	if err != nil {
		return "", err
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, reader); err != nil {
		tmp.Close()
		return "", err
	}
	if err := tmp.Close(); err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := os.Rename(tmp.Name(), dst); err != nil {
		return "", err
	}
	return p.GetURL(object), nil
}

func (p *LocalStorageProvider) UploadFile(ctx context.Context, object string, localPath string, contentType string) (string, error) {
	src, err := os.Open(localPath)
	if err != nil {
		return "", err
	}
	defer src.Close()
	return p.Upload(ctx, object, src, -1, contentType)
}

func (p *LocalStorageProvider) Delete(ctx context.Context, object string) error {
	dst, err := p.resolve(object)
	if err != nil {
		return err
	}
	if err := os.Remove(dst); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

func (p *LocalStorageProvider) GetURL(object string) string {
	return strings.TrimRight(p.Config.PublicBaseURL, "/") + "/uploads/" + object
}

func (p *LocalStorageProvider) Name() string { return util.StorageLocal }

// MinioStorageProvider 对象写入单一 bucket，启动时确保 bucket 存在
type MinioStorageProvider struct {
	Config *config.StorageConfig
	Client *minio.Client
}

func NewMinioStorageProvider(ctx context.Context, cfg *config.StorageConfig) (*MinioStorageProvider, error) {
	client, err := minio.New(cfg.MinioEndpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.MinioAccessID, cfg.MinioSecret, ""),
		Secure: cfg.MinioSecure,
	})
	if err != nil {
		return nil, err
	}

	exists, err := client.BucketExists(ctx, cfg.MinioBucket)
	if err != nil {
		return nil, errors.Wrapf(err, "check bucket %s", cfg.MinioBucket)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.MinioBucket, minio.MakeBucketOptions{}); err != nil {
			return nil, errors.Wrapf(err, "create bucket %s", cfg.MinioBucket)
		}
		logger.Log.Info("minio bucket created", zap.String("bucket", cfg.MinioBucket))
	}
	return &MinioStorageProvider{Config: cfg, Client: client}, nil
}

func (p *MinioStorageProvider) Upload(ctx context.Context, object string, reader io.Reader, size int64, contentType string) (string, error) {
	_, err := p.Client.PutObject(ctx, p.Config.MinioBucket, object, reader, size, minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return "", err
	}
	return p.GetURL(object), nil
}

func (p *MinioStorageProvider) UploadFile(ctx context.Context, object string, localPath string, contentType string) (string, error) {
	_, err := p.Client.FPutObject(ctx, p.Config.MinioBucket, object, localPath, minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return "", err
	}
	return p.GetURL(object), nil
}

func (p *MinioStorageProvider) Delete(ctx context.Context, object string) error {
	return p.Client.RemoveObject(ctx, p.Config.MinioBucket, object, minio.RemoveObjectOptions{})
}

func (p *MinioStorageProvider) GetURL(object string) string {
	return strings.TrimRight(p.Config.PublicBaseURL, "/") + "/" + p.Config.MinioBucket + "/" + object
}

func (p *MinioStorageProvider) Name() string { return util.StorageMinio }

// OSSStorageProvider 阿里云 OSS，bucket 句柄在构造时取得
type OSSStorageProvider struct {
	Config *config.StorageConfig
	Bucket *oss.Bucket
}

func NewOSSStorageProvider(cfg *config.StorageConfig) (*OSSStorageProvider, error) {
	client, err := oss.New(cfg.OSSEndpoint, cfg.OSSAccessKey, cfg.OSSSecretKey)
	if err != nil {
		return nil, err
	}
	bucket, err := client.Bucket(cfg.OSSBucket)
	if err != nil {
		return nil, errors.Wrapf(err, "open bucket %s", cfg.OSSBucket)
	}
	return &OSSStorageProvider{Config: cfg, Bucket: bucket}, nil
}

func (p *OSSStorageProvider) Upload(ctx context.Context, object string, reader io.Reader, size int64, contentType string) (string, error) {
	err := p.Bucket.PutObject(object, reader, oss.ContentType(contentType), oss.WithContext(ctx))
	if err != nil {
		return "", err
	}
	return p.GetURL(object), nil
}

func (p *OSSStorageProvider) UploadFile(ctx context.Context, object string, localPath string, contentType string) (string, error) {
	err := p.Bucket.PutObjectFromFile(object, localPath, oss.ContentType(contentType), oss.WithContext(ctx))
	if err != nil {
		return "", err
	}
	return p.GetURL(object), nil
}

func (p *OSSStorageProvider) Delete(ctx context.Context, object string) error {
	return p.Bucket.DeleteObject(object, oss.WithContext(ctx))
}

func (p *OSSStorageProvider) GetURL(object string) string {
	if p.Config.PublicBaseURL != "" {
		return strings.TrimRight(p.Config.PublicBaseURL, "/") + "/" + object
	}
	return fmt.Sprintf("https://%s.%s/%s", p.Config.OSSBucket, p.Config.OSSEndpoint, object)
}

func (p *OSSStorageProvider) Name() string { return util.StorageOSS }

// StorageService 按配置选择存储后端，远端不可用时退回本地目录
type StorageService struct {
	provider StorageProvider
}

func NewStorageService(cfg *config.Config) *StorageService {
	var (
		provider StorageProvider
		err      error
	)
	switch cfg.Storage.Type {
	case util.StorageMinio:
		provider, err = NewMinioStorageProvider(context.Background(), &cfg.Storage)
	case util.StorageOSS:
		provider, err = NewOSSStorageProvider(&cfg.Storage)
	}
	if err != nil {
		logger.Log.Error("remote storage unavailable, falling back to local",
			zap.String("type", cfg.Storage.Type), zap.Error(err))
		provider = nil
	}
	if provider == nil {
		provider = &LocalStorageProvider{Config: &cfg.Storage}
	}

	logger.Log.Info("storage provider ready", zap.String("provider", provider.Name()))
	return &StorageService{provider: provider}
}

func (s *StorageService) Upload(ctx context.Context, object string, reader io.Reader, size int64, contentType string) (string, error) {
	url, err := s.provider.Upload(ctx, object, reader, size, contentType)
	if err != nil {
		return "", errors.Wrapf(err, "%s upload %s", s.provider.Name(), object)
	}
	return url, nil
}

func (s *StorageService) UploadFile(ctx context.Context, object string, localPath string, contentType string) (string, error) {
	url, err := s.provider.UploadFile(ctx, object, localPath, contentType)
	if err != nil {
		return "", errors.Wrapf(err, "%s upload %s", s.provider.Name(), object)
	}
	return url, nil
}

func (s *StorageService) Delete(ctx context.Context, object string) error {
	return errors.Wrapf(s.provider.Delete(ctx, object), "%s delete %s", s.provider.Name(), object)
}

func (s *StorageService) GetURL(object string) string {
	return s.provider.GetURL(object)
}
