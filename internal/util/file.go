package util

import (
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// ValidateMimeType 深度校验文件 MIME 类型
// allowedTypes: 允许的 MIME 前缀或完整类型，如 "image/", "video/", "application/pdf"
func ValidateMimeType(reader io.Reader, allowedTypes []string) (string, error) {
	buffer := make([]byte, 512)
	n, err := reader.Read(buffer)
	if err != nil && err != io.EOF {
		return "", err
	}

	mimeType := http.DetectContentType(buffer[:n])

	for _, allowed := range allowedTypes {
		if strings.HasPrefix(mimeType, allowed) || mimeType == allowed {
			return mimeType, nil
		}
	}

	return mimeType, errors.New("invalid file type: " + mimeType)
}

// SniffUpload 校验上传文件类型，返回检测到的 MIME
func SniffUpload(fh *multipart.FileHeader, allowedTypes []string) (string, error) {
	f, err := fh.Open()
	if err != nil {
		return "", err
	}
	defer f.Close()
	return ValidateMimeType(f, allowedTypes)
}

func HasAllowedExtension(filename string, allowed []string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	for _, a := range allowed {
		if ext == a {
			return true
		}
	}
	return false
}

// ObjectName 生成存储对象名：prefix/uuid.ext
func ObjectName(prefix, filename string) string {
	return prefix + "/" + uuid.NewString() + strings.ToLower(filepath.Ext(filename))
}
