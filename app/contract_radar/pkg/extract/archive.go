package extract

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/mail"
	"sort"
	"strings"

	"github.com/ledongthuc/pdf"
)

// zip 内每个文件最多保留的字符数
const zipMemberLimit = 2000

var zipMemberExts = []string{".txt", ".csv", ".md"}

// extractZIP 汇总压缩包内的文本文件，每个文件以 "--- 路径 ---" 开头
func extractZIP(_ context.Context, data []byte) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("%w: zip open: %v", ErrExtraction, err)
	}

	files := make([]*zip.File, 0, len(zr.File))
	for _, f := range zr.File {
		if !f.FileInfo().IsDir() && hasTextExt(f.Name) {
			files = append(files, f)
		}
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Name < files[j].Name })

	var summaries []string
	for _, f := range files {
		rc, err := f.Open()
		if err != nil {
			return "", fmt.Errorf("%w: zip member %s: %v", ErrExtraction, f.Name, err)
		}
		content, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return "", fmt.Errorf("%w: zip member %s: %v", ErrExtraction, f.Name, err)
		}

		r := []rune(strings.TrimSpace(string(content)))
		if len(r) > zipMemberLimit {
			r = r[:zipMemberLimit]
		}
		summaries = append(summaries, fmt.Sprintf("--- %s ---\n%s", f.Name, string(r)))
	}
	return strings.Join(summaries, "\n\n"), nil
}

func hasTextExt(name string) bool {
	lower := strings.ToLower(name)
	for _, ext := range zipMemberExts {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}
	return false
}

// extractEmail 解析 .eml，输出发件人、日期、主题和正文
func extractEmail(_ context.Context, data []byte) (string, error) {
	msg, err := mail.ReadMessage(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("%w: unable to parse email: %v", ErrExtraction, err)
	}

	header := func(key, fallback string) string {
		v := msg.Header.Get(key)
		if v == "" {
			return fallback
		}
		dec := new(mime.WordDecoder)
		if decoded, err := dec.DecodeHeader(v); err == nil {
			return decoded
		}
		return v
	}

	body, err := emailBody(msg.Header.Get("Content-Type"), msg.Body)
	if err != nil {
		return "", fmt.Errorf("%w: email body: %v", ErrExtraction, err)
	}

	return fmt.Sprintf("Email Summary\n\nFrom: %s\nDate: %s\nSubject: %s\n\n--- Body ---\n%s",
		header("From", "Unknown sender"),
		header("Date", "No date"),
		header("Subject", "No subject"),
		strings.TrimSpace(body)), nil
}

// emailBody multipart 邮件取第一个 text/plain 部分
func emailBody(contentType string, body io.Reader) (string, error) {
	mediaType, params, err := mime.ParseMediaType(contentType)
	if err != nil || !strings.HasPrefix(mediaType, "multipart/") {
		b, err := io.ReadAll(body)
		return string(b), err
	}

	mr := multipart.NewReader(body, params["boundary"])
	var fallback string
	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", err
		}
		b, err := io.ReadAll(part)
		if err != nil {
			return "", err
		}
		partType, _, _ := mime.ParseMediaType(part.Header.Get("Content-Type"))
		if partType == "text/plain" || partType == "" {
			return string(b), nil
		}
		if fallback == "" && partType == MIMEHTML {
			fallback, _ = visibleText(b)
		}
	}
	return fallback, nil
}

// extractPDF 按页提取纯文本
func extractPDF(_ context.Context, data []byte) (string, error) {
	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("%w: PDF parsing failed: %v", ErrExtraction, err)
	}

	var pages []string
	for i := 1; i <= r.NumPage(); i++ {
		p := r.Page(i)
		if p.V.IsNull() {
			continue
		}
		text, err := p.GetPlainText(nil)
		if err != nil {
			return "", fmt.Errorf("%w: PDF page %d: %v", ErrExtraction, i, err)
		}
		if text = strings.TrimSpace(text); text != "" {
			pages = append(pages, text)
		}
	}
	return strings.Join(pages, "\n\n"), nil
}
