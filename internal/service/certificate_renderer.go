package service

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"lms_backend/internal/config"
	"lms_backend/pkg/logger"
	"os"
	"time"

	"github.com/go-pdf/fpdf"
	"go.uber.org/zap"
)

// 默认字体为 DejaVu Sans Condensed，覆盖拉丁扩展、希腊与西里尔字符
//
//go:embed fonts/*.ttf
var defaultFonts embed.FS

const certificateFont = "certificate"

type CertificateData struct {
	CertificateID  string
	StudentName    string
	CourseTitle    string
	InstructorName string
	PlatformName   string
	Signatory      string
	CompletionDate time.Time
}

// CertificateRenderer 把证书数据渲染为可存储的文件
type CertificateRenderer interface {
	Render(ctx context.Context, data CertificateData) ([]byte, error)
	ContentType() string
	Extension() string
}

// PDFCertificateRenderer A4 横版 PDF 证书，文字以 UTF-8 字体嵌入。
// fonts 以样式（""、"B"、"I"）为键
type PDFCertificateRenderer struct {
	fonts map[string][]byte
}

// NewPDFCertificateRenderer 配置了字体文件时使用它（例如覆盖中日韩字符的字体），
// 读取失败则退回内置字体
func NewPDFCertificateRenderer(cfg *config.CertificateConfig) *PDFCertificateRenderer {
	if cfg != nil && cfg.FontPath != "" {
		fonts, err := loadFonts(cfg.FontPath, cfg.BoldFontPath)
		if err == nil {
			return &PDFCertificateRenderer{fonts: fonts}
		}
		logger.Log.Error("certificate font unavailable, using built-in font",
			zap.String("font_path", cfg.FontPath), zap.Error(err))
	}
	return &PDFCertificateRenderer{fonts: builtinFonts()}
}

func loadFonts(regularPath, boldPath string) (map[string][]byte, error) {
	regular, err := os.ReadFile(regularPath)
	if err != nil {
		return nil, err
	}
	bold := regular
	if boldPath != "" {
		if bold, err = os.ReadFile(boldPath); err != nil {
			return nil, err
		}
	}
	fonts := map[string][]byte{"": regular, "B": bold, "I": regular}
	if err := checkFonts(fonts); err != nil {
		return nil, err
	}
	return fonts, nil
}

// checkFonts 在启动时确认字体可被 fpdf 解析，解析失败的字体不会被注册，SetFont 随即报错
func checkFonts(fonts map[string][]byte) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("parse font: %v", r)
		}
	}()
	check := fpdf.New("L", "mm", "A4", "")
	for style, b := range fonts {
		check.AddUTF8FontFromBytes(certificateFont, style, b)
		check.SetFont(certificateFont, style, 12)
	}
	return check.Error()
}

func builtinFonts() map[string][]byte {
	files := map[string]string{
		"":  "fonts/DejaVuSansCondensed.ttf",
		"B": "fonts/DejaVuSansCondensed-Bold.ttf",
		"I": "fonts/DejaVuSansCondensed-Oblique.ttf",
	}
	fonts := make(map[string][]byte, len(files))
	for style, name := range files {
		b, err := defaultFonts.ReadFile(name)
		if err != nil {
			// 文件随二进制嵌入，读不到说明构建有误
			panic(err)
		}
		fonts[style] = b
	}
	return fonts
}

func (r *PDFCertificateRenderer) ContentType() string { return "application/pdf" }

func (r *PDFCertificateRenderer) Extension() string { return ".pdf" }

func (r *PDFCertificateRenderer) Render(ctx context.Context, data CertificateData) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	pdf := fpdf.New("L", "mm", "A4", "")
	pdf.SetTitle("Certificate "+data.CertificateID, true)
	pdf.SetAuthor(data.PlatformName, true)
	pdf.SetAutoPageBreak(false, 0)
	for style, b := range r.fonts {
		pdf.AddUTF8FontFromBytes(certificateFont, style, b)
	}
	pdf.AddPage()

	w, h := pdf.GetPageSize()

	// 边框
	pdf.SetDrawColor(30, 64, 120)
	pdf.SetLineWidth(2)
	pdf.Rect(10, 10, w-20, h-20, "D")
	pdf.SetLineWidth(0.5)
	pdf.Rect(14, 14, w-28, h-28, "D")

	center := func(y float64, size float64, style, text string) {
		pdf.SetFont(certificateFont, style, size)
		pdf.SetXY(20, y)
		pdf.CellFormat(w-40, size*0.6, text, "", 0, "C", false, 0, "")
	}

	pdf.SetTextColor(30, 64, 120)
	center(30, 16, "B", data.PlatformName)
	center(48, 34, "B", "Certificate of Completion")

	pdf.SetTextColor(60, 60, 60)
	center(75, 14, "", "This is to certify that")
	pdf.SetTextColor(0, 0, 0)
	center(88, 28, "B", data.StudentName)
	pdf.SetTextColor(60, 60, 60)
	center(110, 14, "", "has successfully completed the course")
	pdf.SetTextColor(0, 0, 0)
	center(122, 22, "B", data.CourseTitle)

	pdf.SetTextColor(60, 60, 60)
	if data.InstructorName != "" {
		center(142, 12, "", "Offered by "+data.InstructorName)
	}
	center(152, 12, "", "Completed on "+data.CompletionDate.Format("January 2, 2006"))

	if data.Signatory != "" {
		pdf.SetFont(certificateFont, "I", 12)
		pdf.SetXY(w-110, h-45)
		pdf.CellFormat(80, 8, data.Signatory, "T", 0, "C", false, 0, "")
	}

	pdf.SetFont(certificateFont, "", 9)
	pdf.SetXY(20, h-28)
	pdf.CellFormat(w-40, 6, "Certificate ID: "+data.CertificateID, "", 0, "L", false, 0, "")

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
