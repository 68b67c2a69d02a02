package util

const (
	StorageLocal = "local"
	StorageMinio = "minio"
	StorageOSS   = "oss"
)

// 文件上传相关常量
const (
	MimeVideo       = "video/"
	MimeImage       = "image/"
	MimePDF         = "application/pdf"
	MimeOctetStream = "application/octet-stream"
	MimeZip         = "application/zip"
)

const (
	MaxThumbnailSize  = 5 << 20
	MaxVideoSize      = 2 << 30
	MaxSubmissionSize = 50 << 20
)

var (
	AllowedVideoExtensions     = []string{".mp4", ".mov", ".avi", ".mkv", ".wmv", ".flv", ".webm"}
	AllowedImageExtensions     = []string{".jpg", ".jpeg", ".png", ".webp"}
	AllowedSubmissionMimeTypes = []string{MimePDF, MimeZip, "text/plain", MimeImage}
	AllowedThumbnailMimeTypes  = []string{MimeImage}
)
