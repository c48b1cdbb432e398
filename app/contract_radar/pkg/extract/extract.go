// Package extract 从各类文档中提取纯文本
package extract

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrUnsupportedType 不支持的文件类型
	ErrUnsupportedType = errors.New("unsupported file type")
	// ErrExtraction 文本提取失败
	ErrExtraction = errors.New("text extraction failed")
)

// MIME 类型常量
const (
	MIMEPlain    = "text/plain"
	MIMEMarkdown = "text/markdown"
	MIMECSV      = "text/csv"
	MIMEHTML     = "text/html"
	MIMEJSON     = "application/json"
	MIMEPDF      = "application/pdf"
	MIMEDOCX     = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	MIMEXLSX     = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	MIMEZIP      = "application/zip"
	MIMEEML      = "message/rfc822"
	MIMEUnknown  = "application/octet-stream"
)

// Document 待分析的原始文件
type Document struct {
	Name     string
	MIMEType string
	Data     []byte
}

// Extractor 单一格式的文本提取器
type Extractor interface {
	Extract(ctx context.Context, data []byte) (string, error)
}

// ExtractorFunc 函数适配器
type ExtractorFunc func(ctx context.Context, data []byte) (string, error)

// Extract 实现 Extractor
func (f ExtractorFunc) Extract(ctx context.Context, data []byte) (string, error) {
	return f(ctx, data)
}

// Registry MIME 类型到提取器的映射
type Registry struct {
	extractors map[string]Extractor
}

// NewRegistry 创建空的注册表
func NewRegistry() *Registry {
	return &Registry{extractors: make(map[string]Extractor)}
}

// DefaultRegistry 注册全部内置格式
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(MIMEPlain, ExtractorFunc(extractText))
	r.Register(MIMEMarkdown, ExtractorFunc(extractText))
	r.Register(MIMECSV, ExtractorFunc(extractCSV))
	r.Register(MIMEJSON, ExtractorFunc(extractJSON))
	r.Register(MIMEHTML, ExtractorFunc(extractHTML))
	r.Register(MIMEDOCX, ExtractorFunc(extractDOCX))
	r.Register(MIMEXLSX, ExtractorFunc(extractXLSX))
	r.Register(MIMEEML, ExtractorFunc(extractEmail))
	r.Register(MIMEZIP, ExtractorFunc(extractZIP))
	r.Register(MIMEPDF, ExtractorFunc(extractPDF))
	return r
}

// Register 注册提取器，已存在时覆盖
func (r *Registry) Register(mimeType string, e Extractor) {
	r.extractors[normalizeMIME(mimeType)] = e
}

// Supports 是否支持该类型
func (r *Registry) Supports(mimeType string) bool {
	_, ok := r.extractors[normalizeMIME(mimeType)]
	return ok
}

// Extract 提取文档文本，未指定 MIME 类型时自动识别
func (r *Registry) Extract(ctx context.Context, doc Document) (string, error) {
	mimeType := doc.MIMEType
	if mimeType == "" {
		mimeType = DetectMIME(doc.Name, doc.Data)
	}

	e, ok := r.extractors[normalizeMIME(mimeType)]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedType, mimeType)
	}

	text, err := e.Extract(ctx, doc.Data)
	if err != nil {
		if errors.Is(err, ErrExtraction) {
			return "", err
		}
		return "", fmt.Errorf("%w: %s: %v", ErrExtraction, mimeType, err)
	}
	return text, nil
}

// normalizeMIME 去掉参数部分，如 "text/plain; charset=utf-8"
func normalizeMIME(mimeType string) string {
	if i := strings.IndexByte(mimeType, ';'); i >= 0 {
		mimeType = mimeType[:i]
	}
	return strings.ToLower(strings.TrimSpace(mimeType))
}
